// Package tools holds the function-calling boundary: a registry of
// callable tools and a dispatcher that routes model function calls to
// their handlers.
package tools

import "context"

// Handler executes one tool invocation with decoded arguments.
type Handler func(ctx context.Context, args map[string]any) (Result, error)

// Tool is one callable capability exposed to the model.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object describing the arguments.
	Parameters map[string]any
	Handler    Handler
}

// Result is a tool outcome. Content is the text handed back to the
// model; the remaining fields are optional UI hints for the transport.
type Result struct {
	Content string
	Display string
	MIME    string
	URL     string
	Data    map[string]any
}

// Descriptor renders the tool in the wire shape session.update expects.
func (t Tool) Descriptor() map[string]any {
	params := t.Parameters
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return map[string]any{
		"type":        "function",
		"name":        t.Name,
		"description": t.Description,
		"parameters":  params,
	}
}
