package toolkit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rakhadjo/svara/pkg/tools"
)

// StockPriceTool looks up the latest market price for a ticker.
func StockPriceTool(quotes QuoteSource) tools.Tool {
	return tools.Tool{
		Name:        "query_stock_price",
		Description: "Query the latest stock price for a ticker symbol.",
		Parameters: objectSchema(map[string]any{
			"ticker": stringParam("Ticker symbol, e.g. AAPL or NVDA."),
		}, "ticker"),
		Handler: func(ctx context.Context, args map[string]any) (tools.Result, error) {
			ticker, _ := args["ticker"].(string)
			quote, err := quotes.Quote(ctx, ticker)
			if err != nil {
				return tools.Result{}, err
			}
			price := fmt.Sprintf("%.2f", quote.Price)
			payload, err := json.Marshal(map[string]any{
				"symbol":   quote.Symbol,
				"price":    price,
				"currency": quote.Currency,
				"exchange": quote.Exchange,
				"as_of":    quote.AsOf.UTC().Format("2006-01-02T15:04:05Z"),
			})
			if err != nil {
				return tools.Result{}, err
			}
			return tools.Result{
				Content: string(payload),
				Data: map[string]any{
					"symbol": quote.Symbol,
					"price":  price,
				},
			}, nil
		},
	}
}
