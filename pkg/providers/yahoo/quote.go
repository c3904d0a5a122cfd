package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rakhadjo/svara/pkg/resilience"
)

// Quote is the latest price snapshot for one ticker.
type Quote struct {
	Symbol   string
	Price    float64
	Currency string
	Exchange string
	AsOf     time.Time
}

// Client fetches quotes from the Yahoo Finance chart endpoint. No API
// key is required.
type Client struct {
	BaseURL string
	Client  *http.Client
}

func NewClient() *Client {
	return &Client{
		BaseURL: "https://query1.finance.yahoo.com",
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) Name() string { return "yahoo" }

// Quote returns the regular market price for symbol. Unknown symbols
// yield an error from the upstream 404.
func (c *Client) Quote(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Quote{}, errors.New("empty symbol")
	}
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=1d&interval=1d", c.BaseURL, url.PathEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Quote{}, err
	}
	req.Header.Set("User-Agent", "svara/1.0")
	resp, err := c.client().Do(req)
	if err != nil {
		return Quote{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		return Quote{}, resilience.RateLimitError{Provider: "yahoo", Message: string(body)}
	}
	if resp.StatusCode == http.StatusNotFound {
		return Quote{}, fmt.Errorf("unknown symbol %q", symbol)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return Quote{}, errors.New(string(body))
	}
	var payload struct {
		Chart struct {
			Result []struct {
				Meta struct {
					Symbol             string  `json:"symbol"`
					Currency           string  `json:"currency"`
					ExchangeName       string  `json:"exchangeName"`
					RegularMarketPrice float64 `json:"regularMarketPrice"`
					RegularMarketTime  int64   `json:"regularMarketTime"`
				} `json:"meta"`
			} `json:"result"`
			Error *struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		} `json:"chart"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Quote{}, err
	}
	if payload.Chart.Error != nil {
		return Quote{}, fmt.Errorf("%s: %s", payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return Quote{}, fmt.Errorf("no quote for %q", symbol)
	}
	meta := payload.Chart.Result[0].Meta
	return Quote{
		Symbol:   meta.Symbol,
		Price:    meta.RegularMarketPrice,
		Currency: meta.Currency,
		Exchange: meta.ExchangeName,
		AsOf:     time.Unix(meta.RegularMarketTime, 0),
	}, nil
}

func (c *Client) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}
