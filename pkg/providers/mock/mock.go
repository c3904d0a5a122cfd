// Package mock provides in-memory provider doubles for tests and for
// running the engine without credentials.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rakhadjo/svara/pkg/llm"
	"github.com/rakhadjo/svara/pkg/providers/openai"
	"github.com/rakhadjo/svara/pkg/providers/tavily"
	"github.com/rakhadjo/svara/pkg/providers/yahoo"
)

// LLM is a canned chat adapter. It records every Generate call.
type LLM struct {
	mu       sync.Mutex
	Response llm.Response
	Err      error
	Calls    []llm.Context
}

func NewLLM(text string) *LLM {
	return &LLM{Response: llm.Response{Text: text, FinishReason: "stop"}}
}

func (m *LLM) Name() string { return "mock" }

func (m *LLM) Generate(_ context.Context, input llm.Context) (llm.Response, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, input)
	m.mu.Unlock()
	if m.Err != nil {
		return llm.Response{}, m.Err
	}
	return m.Response, nil
}

func (m *LLM) Stream(ctx context.Context, input llm.Context) (<-chan string, error) {
	resp, err := m.Generate(ctx, input)
	if err != nil {
		return nil, err
	}
	out := make(chan string, 1)
	out <- resp.Text
	close(out)
	return out, nil
}

// CallCount returns the number of Generate calls observed.
func (m *LLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// QuoteSource serves fixed quotes keyed by upper-cased symbol.
type QuoteSource struct {
	Quotes map[string]yahoo.Quote
	Err    error
}

func NewQuoteSource() *QuoteSource {
	return &QuoteSource{
		Quotes: map[string]yahoo.Quote{
			"AAPL": {Symbol: "AAPL", Price: 150.00, Currency: "USD", Exchange: "NMS", AsOf: time.Now()},
		},
	}
}

func (m *QuoteSource) Name() string { return "mock" }

func (m *QuoteSource) Quote(_ context.Context, symbol string) (yahoo.Quote, error) {
	if m.Err != nil {
		return yahoo.Quote{}, m.Err
	}
	q, ok := m.Quotes[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return yahoo.Quote{}, &UnknownSymbolError{Symbol: symbol}
	}
	return q, nil
}

type UnknownSymbolError struct{ Symbol string }

func (e *UnknownSymbolError) Error() string { return "unknown symbol " + e.Symbol }

// Searcher returns a fixed answer for any query.
type Searcher struct {
	Result tavily.Answer
	Err    error
}

func NewSearcher(answer string) *Searcher {
	return &Searcher{Result: tavily.Answer{Answer: answer}}
}

func (m *Searcher) Name() string { return "mock" }

func (m *Searcher) Search(_ context.Context, query string) (tavily.Answer, error) {
	if m.Err != nil {
		return tavily.Answer{}, m.Err
	}
	out := m.Result
	out.Query = query
	return out, nil
}

// ImageGen returns a fixed image for any prompt.
type ImageGen struct {
	Image openai.GeneratedImage
	Err   error
}

func NewImageGen(url string) *ImageGen {
	return &ImageGen{Image: openai.GeneratedImage{URL: url}}
}

func (m *ImageGen) Name() string { return "mock" }

func (m *ImageGen) Generate(_ context.Context, _ string) (openai.GeneratedImage, error) {
	if m.Err != nil {
		return openai.GeneratedImage{}, m.Err
	}
	return m.Image, nil
}
