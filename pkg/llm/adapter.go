package llm

import "context"

type Context struct {
	Messages []map[string]any
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

type Response struct {
	Text         string
	Usage        Usage
	FinishReason string
}

// Adapter is a plain chat completion boundary. Tool handlers that draft
// content (posts, scripts, knowledge-base answers) go through it; the
// realtime conversation itself never does.
type Adapter interface {
	Generate(ctx context.Context, input Context) (Response, error)
	Stream(ctx context.Context, input Context) (<-chan string, error)
	Name() string
}

// SystemMessage builds a system role message.
func SystemMessage(text string) map[string]any {
	return map[string]any{"role": "system", "content": text}
}

// UserMessage builds a user role message.
func UserMessage(text string) map[string]any {
	return map[string]any{"role": "user", "content": text}
}
