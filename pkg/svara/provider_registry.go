package svara

import (
	"fmt"
	"strings"

	"github.com/rakhadjo/svara/pkg/llm"
	"github.com/rakhadjo/svara/pkg/realtime"
	"github.com/rakhadjo/svara/pkg/toolkit"
)

type RealtimeFactory func(cfg Config, sessionID string) (*realtime.Client, error)
type LLMFactory func(cfg Config) (llm.Adapter, error)
type SearchFactory func(cfg Config) (toolkit.Searcher, error)
type StockFactory func(cfg Config) (toolkit.QuoteSource, error)
type ImageFactory func(cfg Config) (toolkit.ImageGenerator, error)

type ProviderRegistry struct {
	realtime map[string]RealtimeFactory
	llm      map[string]LLMFactory
	search   map[string]SearchFactory
	stock    map[string]StockFactory
	image    map[string]ImageFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		realtime: make(map[string]RealtimeFactory),
		llm:      make(map[string]LLMFactory),
		search:   make(map[string]SearchFactory),
		stock:    make(map[string]StockFactory),
		image:    make(map[string]ImageFactory),
	}
}

func (r *ProviderRegistry) RegisterRealtime(name string, factory RealtimeFactory) {
	r.realtime[normalize(name)] = factory
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[normalize(name)] = factory
}

func (r *ProviderRegistry) RegisterSearch(name string, factory SearchFactory) {
	r.search[normalize(name)] = factory
}

func (r *ProviderRegistry) RegisterStock(name string, factory StockFactory) {
	r.stock[normalize(name)] = factory
}

func (r *ProviderRegistry) RegisterImage(name string, factory ImageFactory) {
	r.image[normalize(name)] = factory
}

func (r *ProviderRegistry) BuildRealtime(provider string, cfg Config, sessionID string) (*realtime.Client, error) {
	fn := r.realtime[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("realtime provider not registered: %s", provider)
	}
	return fn(cfg, sessionID)
}

func (r *ProviderRegistry) BuildLLM(provider string, cfg Config) (llm.Adapter, error) {
	fn := r.llm[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildSearch(provider string, cfg Config) (toolkit.Searcher, error) {
	fn := r.search[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("search provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildStock(provider string, cfg Config) (toolkit.QuoteSource, error) {
	fn := r.stock[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("stock provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildImage(provider string, cfg Config) (toolkit.ImageGenerator, error) {
	fn := r.image[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("image provider not registered: %s", provider)
	}
	return fn(cfg)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
