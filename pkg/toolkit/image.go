package toolkit

import (
	"context"
	"encoding/json"

	"github.com/rakhadjo/svara/pkg/frames"
	"github.com/rakhadjo/svara/pkg/tools"
)

// GenerateImageTool renders an image from a prompt and hands the UI a
// display hint pointing at it.
func GenerateImageTool(images ImageGenerator) tools.Tool {
	return tools.Tool{
		Name:        "generate_image",
		Description: "Generate an image from a text prompt and show it in the chat.",
		Parameters: objectSchema(map[string]any{
			"prompt": stringParam("Description of the image to generate."),
		}, "prompt"),
		Handler: func(ctx context.Context, args map[string]any) (tools.Result, error) {
			prompt, _ := args["prompt"].(string)
			img, err := images.Generate(ctx, prompt)
			if err != nil {
				return tools.Result{}, err
			}
			payload, err := json.Marshal(map[string]any{"url": img.URL})
			if err != nil {
				return tools.Result{}, err
			}
			result := tools.Result{
				Content: string(payload),
				Display: frames.DisplayImage,
				MIME:    "image/png",
				URL:     img.URL,
			}
			if img.B64JSON != "" {
				result.Data = map[string]any{"b64_json": img.B64JSON}
			}
			return result, nil
		},
	}
}
