package toolkit

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"

	"github.com/rakhadjo/svara/pkg/tools"
)

// OpenBrowserTool opens a URL in the host browser. Only http and
// https URLs are accepted. The opener can be overridden, mainly for
// tests.
func OpenBrowserTool(open func(ctx context.Context, url string) error) tools.Tool {
	if open == nil {
		open = openPlatformBrowser
	}
	return tools.Tool{
		Name:        "open_browser",
		Description: "Open a URL in the user's browser.",
		Parameters: objectSchema(map[string]any{
			"url": stringParam("The http(s) URL to open."),
		}, "url"),
		Handler: func(ctx context.Context, args map[string]any) (tools.Result, error) {
			raw, _ := args["url"].(string)
			parsed, err := url.Parse(raw)
			if err != nil {
				return tools.Result{}, fmt.Errorf("invalid url: %w", err)
			}
			if parsed.Scheme != "http" && parsed.Scheme != "https" {
				return tools.Result{}, fmt.Errorf("refusing to open %q scheme", parsed.Scheme)
			}
			if err := open(ctx, parsed.String()); err != nil {
				return tools.Result{}, err
			}
			return tools.Result{
				Content: fmt.Sprintf("Opened %s in the browser.", parsed.String()),
				URL:     parsed.String(),
			}, nil
		},
	}
}

func openPlatformBrowser(ctx context.Context, target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", target)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", target)
	}
	return cmd.Start()
}
