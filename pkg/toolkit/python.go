package toolkit

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rakhadjo/svara/pkg/llm"
	"github.com/rakhadjo/svara/pkg/tools"
)

const pythonSystemPrompt = "You write complete, runnable Python scripts. " +
	"Respond with only the code, no markdown fences and no commentary. " +
	"Use only the standard library unless the task demands otherwise."

const execTimeout = 30 * time.Second

// CreatePythonFileTool asks the chat model for a script and writes it
// into the workspace directory. Filenames are confined to the
// workspace: any path component is stripped.
func CreatePythonFileTool(adapter llm.Adapter, workspaceDir string) tools.Tool {
	return tools.Tool{
		Name:        "create_python_file",
		Description: "Generate a Python script for the described task and save it to the workspace.",
		Parameters: objectSchema(map[string]any{
			"filename":    stringParam("Name for the script, e.g. fetch_data.py."),
			"description": stringParam("What the script should do."),
		}, "filename", "description"),
		Handler: func(ctx context.Context, args map[string]any) (tools.Result, error) {
			filename, _ := args["filename"].(string)
			description, _ := args["description"].(string)

			name, err := scriptName(filename)
			if err != nil {
				return tools.Result{}, err
			}
			resp, err := adapter.Generate(ctx, llm.Context{Messages: []map[string]any{
				llm.SystemMessage(pythonSystemPrompt),
				llm.UserMessage(description),
			}})
			if err != nil {
				return tools.Result{}, err
			}
			code := stripCodeFences(resp.Text)
			if strings.TrimSpace(code) == "" {
				return tools.Result{}, fmt.Errorf("model returned an empty script")
			}

			if err := os.MkdirAll(workspaceDir, 0o755); err != nil {
				return tools.Result{}, err
			}
			path := filepath.Join(workspaceDir, name)
			if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
				return tools.Result{}, err
			}
			return tools.Result{
				Content: fmt.Sprintf("Created %s:\n\n%s", name, code),
				Data:    map[string]any{"filename": name},
			}, nil
		},
	}
}

// ExecutePythonFileTool runs a previously created workspace script.
// Execution is off unless explicitly enabled in config.
func ExecutePythonFileTool(workspaceDir, pythonBin string, allowExec bool) tools.Tool {
	if pythonBin == "" {
		pythonBin = "python3"
	}
	return tools.Tool{
		Name:        "execute_python_file",
		Description: "Execute a Python script from the workspace and return its output.",
		Parameters: objectSchema(map[string]any{
			"filename": stringParam("Name of the workspace script to run."),
		}, "filename"),
		Handler: func(ctx context.Context, args map[string]any) (tools.Result, error) {
			if !allowExec {
				return tools.Result{}, fmt.Errorf("script execution is disabled; enable tools.allow_exec to use it")
			}
			filename, _ := args["filename"].(string)
			name, err := scriptName(filename)
			if err != nil {
				return tools.Result{}, err
			}
			path := filepath.Join(workspaceDir, name)
			if _, err := os.Stat(path); err != nil {
				return tools.Result{}, fmt.Errorf("script %s not found in workspace", name)
			}

			runCtx, cancel := context.WithTimeout(ctx, execTimeout)
			defer cancel()
			cmd := exec.CommandContext(runCtx, pythonBin, name)
			cmd.Dir = workspaceDir
			output, err := cmd.CombinedOutput()
			if runCtx.Err() == context.DeadlineExceeded {
				return tools.Result{}, fmt.Errorf("script %s timed out after %s", name, execTimeout)
			}
			if err != nil {
				return tools.Result{}, fmt.Errorf("script %s failed: %v\n%s", name, err, output)
			}
			return tools.Result{
				Content: string(output),
				Data:    map[string]any{"filename": name},
			}, nil
		},
	}
}

// scriptName strips any directory components and requires a .py
// suffix so tools can never reach outside the workspace.
func scriptName(filename string) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid script name %q", filename)
	}
	if !strings.HasSuffix(name, ".py") {
		name += ".py"
	}
	return name, nil
}

func stripCodeFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
