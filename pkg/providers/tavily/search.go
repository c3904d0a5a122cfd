package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rakhadjo/svara/pkg/resilience"
)

// Result is one search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Answer is the full search response.
type Answer struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer"`
	Results []Result `json:"results"`
}

// Client calls the Tavily search API.
type Client struct {
	APIKey     string
	BaseURL    string
	MaxResults int
	Client     *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:     apiKey,
		BaseURL:    "https://api.tavily.com",
		MaxResults: 5,
		Client:     &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Name() string { return "tavily" }

func (c *Client) Search(ctx context.Context, query string) (Answer, error) {
	if query == "" {
		return Answer{}, errors.New("empty query")
	}
	payload := map[string]any{
		"api_key":        c.APIKey,
		"query":          query,
		"include_answer": true,
		"max_results":    c.maxResults(),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Answer{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/search", bytes.NewBuffer(b))
	if err != nil {
		return Answer{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client().Do(req)
	if err != nil {
		return Answer{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		body, _ := io.ReadAll(resp.Body)
		return Answer{}, resilience.RateLimitError{Provider: "tavily", Message: string(body)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return Answer{}, errors.New(string(body))
	}
	var out Answer
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Answer{}, err
	}
	return out, nil
}

func (c *Client) maxResults() int {
	if c.MaxResults > 0 {
		return c.MaxResults
	}
	return 5
}

func (c *Client) client() *http.Client {
	if c.Client != nil {
		return c.Client
	}
	return http.DefaultClient
}
