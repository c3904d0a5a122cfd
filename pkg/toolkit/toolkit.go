// Package toolkit assembles the assistant's tool set. Each
// constructor returns one tools.Tool bound to its provider; Register
// wires the full set into a registry.
package toolkit

import (
	"context"

	"github.com/rakhadjo/svara/pkg/knowledge"
	"github.com/rakhadjo/svara/pkg/llm"
	"github.com/rakhadjo/svara/pkg/providers/openai"
	"github.com/rakhadjo/svara/pkg/providers/tavily"
	"github.com/rakhadjo/svara/pkg/providers/yahoo"
	"github.com/rakhadjo/svara/pkg/tools"
)

// QuoteSource serves stock quotes.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (yahoo.Quote, error)
	Name() string
}

// Searcher serves web search.
type Searcher interface {
	Search(ctx context.Context, query string) (tavily.Answer, error)
	Name() string
}

// ImageGenerator renders images from prompts.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (openai.GeneratedImage, error)
	Name() string
}

// Deps carries everything the tool set needs. Optional fields leave
// their tools unregistered.
type Deps struct {
	LLM       llm.Adapter
	Quotes    QuoteSource
	Search    Searcher
	Images    ImageGenerator
	Knowledge *knowledge.Store

	// WorkspaceDir confines generated and executed scripts.
	WorkspaceDir string
	// AllowExec gates execute_python_file.
	AllowExec bool
	// PythonBin defaults to "python3".
	PythonBin string

	// OpenURL overrides the platform browser opener, used in tests.
	OpenURL func(ctx context.Context, url string) error
}

// Register adds every tool whose dependencies are present.
func Register(reg *tools.Registry, deps Deps) error {
	var set []tools.Tool
	if deps.Quotes != nil {
		set = append(set, StockPriceTool(deps.Quotes))
	}
	set = append(set, PlotlyChartTool())
	if deps.Images != nil {
		set = append(set, GenerateImageTool(deps.Images))
	}
	if deps.Search != nil {
		set = append(set, InternetSearchTool(deps.Search))
	}
	if deps.LLM != nil {
		set = append(set, LinkedInPostTool(deps.LLM))
	}
	if deps.LLM != nil && deps.WorkspaceDir != "" {
		set = append(set, CreatePythonFileTool(deps.LLM, deps.WorkspaceDir))
	}
	if deps.WorkspaceDir != "" {
		set = append(set, ExecutePythonFileTool(deps.WorkspaceDir, deps.PythonBin, deps.AllowExec))
	}
	set = append(set, OpenBrowserTool(deps.OpenURL))
	if deps.Knowledge != nil && deps.LLM != nil {
		set = append(set, KnowledgebaseTool(deps.Knowledge, deps.LLM))
	}
	for _, t := range set {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func stringParam(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func objectSchema(properties map[string]any, required ...any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}
