package toolkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/rakhadjo/svara/pkg/knowledge"
	"github.com/rakhadjo/svara/pkg/llm"
	"github.com/rakhadjo/svara/pkg/tools"
)

const knowledgeSystemPrompt = "Answer the question using only the provided " +
	"context. If the context does not cover the question, say so plainly. " +
	"Cite the source titles you drew from."

// KnowledgebaseTool answers a question from the local corpus: keyword
// retrieval picks the paragraphs, the chat model writes the answer.
func KnowledgebaseTool(store *knowledge.Store, adapter llm.Adapter) tools.Tool {
	return tools.Tool{
		Name:        "get_answer_from_knowledgebase",
		Description: "Answer a question from the local knowledgebase.",
		Parameters: objectSchema(map[string]any{
			"question": stringParam("The question to answer."),
		}, "question"),
		Handler: func(ctx context.Context, args map[string]any) (tools.Result, error) {
			question, _ := args["question"].(string)
			snippets := store.Search(question, 4)
			if len(snippets) == 0 {
				return tools.Result{
					Content: "The knowledgebase has nothing relevant to that question.",
				}, nil
			}

			var b strings.Builder
			for _, s := range snippets {
				fmt.Fprintf(&b, "[%s]\n%s\n\n", s.Source, s.Text)
			}
			resp, err := adapter.Generate(ctx, llm.Context{Messages: []map[string]any{
				llm.SystemMessage(knowledgeSystemPrompt),
				llm.UserMessage(fmt.Sprintf("Context:\n%sQuestion: %s", b.String(), question)),
			}})
			if err != nil {
				return tools.Result{}, err
			}

			sources := make([]string, 0, len(snippets))
			seen := map[string]bool{}
			for _, s := range snippets {
				if !seen[s.Source] {
					seen[s.Source] = true
					sources = append(sources, s.Source)
				}
			}
			return tools.Result{
				Content: resp.Text,
				Data:    map[string]any{"sources": sources},
			}, nil
		},
	}
}
