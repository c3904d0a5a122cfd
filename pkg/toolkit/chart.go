package toolkit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rakhadjo/svara/pkg/frames"
	"github.com/rakhadjo/svara/pkg/tools"
)

// PlotlyChartTool renders a chart in the UI from a Plotly figure the
// model composes. The figure JSON is validated here; rendering is the
// transport's job.
func PlotlyChartTool() tools.Tool {
	return tools.Tool{
		Name:        "draw_plotly_chart",
		Description: "Draw a Plotly chart in the chat from a JSON figure, with a message explaining it.",
		Parameters: objectSchema(map[string]any{
			"message":         stringParam("Message shown alongside the chart."),
			"plotly_json_fig": stringParam("Plotly figure serialized as a JSON string."),
		}, "message", "plotly_json_fig"),
		Handler: func(_ context.Context, args map[string]any) (tools.Result, error) {
			message, _ := args["message"].(string)
			figJSON, _ := args["plotly_json_fig"].(string)

			var fig map[string]any
			if err := json.Unmarshal([]byte(figJSON), &fig); err != nil {
				return tools.Result{}, fmt.Errorf("plotly figure is not valid JSON: %w", err)
			}
			if _, ok := fig["data"]; !ok {
				return tools.Result{}, fmt.Errorf("plotly figure has no data field")
			}

			return tools.Result{
				Content: message,
				Display: frames.DisplayChart,
				MIME:    "application/vnd.plotly.v1+json",
				Data:    map[string]any{"figure": figJSON, "message": message},
			}, nil
		},
	}
}
