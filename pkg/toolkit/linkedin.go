package toolkit

import (
	"context"
	"fmt"

	"github.com/rakhadjo/svara/pkg/llm"
	"github.com/rakhadjo/svara/pkg/tools"
)

const linkedinSystemPrompt = "You write LinkedIn posts. Keep them under 200 words, " +
	"use a strong hook in the first line, short paragraphs, and end with a " +
	"question or call to action. Plain text only, a few tasteful emoji at most."

// LinkedInPostTool drafts a LinkedIn post on a topic through the chat
// model.
func LinkedInPostTool(adapter llm.Adapter) tools.Tool {
	return tools.Tool{
		Name:        "draft_linkedin_post",
		Description: "Draft a LinkedIn post on the given topic.",
		Parameters: objectSchema(map[string]any{
			"topic": stringParam("Topic or rough idea for the post."),
		}, "topic"),
		Handler: func(ctx context.Context, args map[string]any) (tools.Result, error) {
			topic, _ := args["topic"].(string)
			resp, err := adapter.Generate(ctx, llm.Context{Messages: []map[string]any{
				llm.SystemMessage(linkedinSystemPrompt),
				llm.UserMessage(fmt.Sprintf("Draft a LinkedIn post about: %s", topic)),
			}})
			if err != nil {
				return tools.Result{}, err
			}
			return tools.Result{Content: resp.Text}, nil
		},
	}
}
