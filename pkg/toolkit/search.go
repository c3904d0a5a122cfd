package toolkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/rakhadjo/svara/pkg/tools"
)

// InternetSearchTool answers a query from live web search results.
func InternetSearchTool(search Searcher) tools.Tool {
	return tools.Tool{
		Name:        "internet_search",
		Description: "Search the internet and return a synthesized answer with sources.",
		Parameters: objectSchema(map[string]any{
			"query": stringParam("The search query."),
		}, "query"),
		Handler: func(ctx context.Context, args map[string]any) (tools.Result, error) {
			query, _ := args["query"].(string)
			answer, err := search.Search(ctx, query)
			if err != nil {
				return tools.Result{}, err
			}

			var b strings.Builder
			if answer.Answer != "" {
				b.WriteString(answer.Answer)
			}
			if len(answer.Results) > 0 {
				b.WriteString("\n\nSources:\n")
				for i, r := range answer.Results {
					fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, r.Title, r.URL)
				}
			}
			content := strings.TrimSpace(b.String())
			if content == "" {
				content = "No results found."
			}

			sources := make([]map[string]any, 0, len(answer.Results))
			for _, r := range answer.Results {
				sources = append(sources, map[string]any{"title": r.Title, "url": r.URL})
			}
			return tools.Result{
				Content: content,
				Data:    map[string]any{"sources": sources},
			}, nil
		},
	}
}
