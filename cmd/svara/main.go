package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rakhadjo/svara/pkg/configutil"
	"github.com/rakhadjo/svara/pkg/llm"
	mockprov "github.com/rakhadjo/svara/pkg/providers/mock"
	"github.com/rakhadjo/svara/pkg/providers/openai"
	"github.com/rakhadjo/svara/pkg/providers/tavily"
	"github.com/rakhadjo/svara/pkg/providers/yahoo"
	"github.com/rakhadjo/svara/pkg/realtime"
	"github.com/rakhadjo/svara/pkg/svara"
	"github.com/rakhadjo/svara/pkg/toolkit"
	"github.com/rakhadjo/svara/pkg/transports"
	"github.com/rakhadjo/svara/pkg/transports/chatui"
	mocktransport "github.com/rakhadjo/svara/pkg/transports/mock"
)

type openAIRealtimeSettings struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	URL    string `mapstructure:"url"`
}

type openAISettings struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type tavilySettings struct {
	APIKey     string `mapstructure:"api_key"`
	MaxResults int    `mapstructure:"max_results"`
}

type yahooSettings struct {
	BaseURL string `mapstructure:"base_url"`
}

type openAIImageSettings struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
	Size   string `mapstructure:"size"`
}

type mockLLMSettings struct {
	ResponseText string `mapstructure:"response_text"`
}

type mockSearchSettings struct {
	Answer string `mapstructure:"answer"`
}

type mockImageSettings struct {
	URL string `mapstructure:"url"`
}

type chatuiSettings struct {
	ServerAddr     string   `mapstructure:"server_addr"`
	WebsocketPath  string   `mapstructure:"ws_path"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	SampleRate     int      `mapstructure:"sample_rate"`
}

func main() {
	configPath := flag.String("config", "configs/svara.yaml", "")
	flag.Parse()

	cfg, err := svara.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	providers := svara.NewProviderRegistry()
	registerProviders(providers)

	transport, err := buildTransport(cfg)
	if err != nil {
		panic(err)
	}

	app := svara.NewEngine(svara.EngineOptions{
		Config:    cfg,
		Providers: providers,
		Transport: transport,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		panic(err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	_ = app.Stop()
}

func registerProviders(reg *svara.ProviderRegistry) {
	reg.RegisterRealtime("openai", func(cfg svara.Config, sessionID string) (*realtime.Client, error) {
		if err := validateSettings("vendors.realtime.settings", cfg.Vendors.Realtime.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "url"},
		}); err != nil {
			return nil, err
		}
		var settings openAIRealtimeSettings
		if err := configutil.DecodeSettings(cfg.Vendors.Realtime.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.realtime.settings.api_key"); err != nil {
			return nil, err
		}
		if settings.Model == "" {
			settings.Model = "gpt-4o-realtime-preview"
		}
		return realtime.NewClient(realtime.ClientConfig{
			URL:        settings.URL,
			APIKey:     settings.APIKey,
			Model:      settings.Model,
			SampleRate: cfg.Session.SampleRate,
			Session:    sessionConfigFromConfig(cfg),
		}), nil
	})

	reg.RegisterLLM("openai", func(cfg svara.Config) (llm.Adapter, error) {
		if err := validateSettings("vendors.llm.settings", cfg.Vendors.LLM.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "base_url"},
		}); err != nil {
			return nil, err
		}
		var settings openAISettings
		if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.llm.settings.api_key"); err != nil {
			return nil, err
		}
		if settings.Model == "" {
			settings.Model = "gpt-4o-mini"
		}
		adapter := openai.NewAdapter(settings.APIKey, settings.Model)
		if settings.BaseURL != "" {
			adapter.BaseURL = settings.BaseURL
		}
		return adapter, nil
	})

	reg.RegisterLLM("mock", func(cfg svara.Config) (llm.Adapter, error) {
		if err := validateSettings("vendors.llm.settings", cfg.Vendors.LLM.Settings, configutil.Schema{
			Optional: []string{"response_text"},
		}); err != nil {
			return nil, err
		}
		var settings mockLLMSettings
		if err := configutil.DecodeSettings(cfg.Vendors.LLM.Settings, &settings); err != nil {
			return nil, err
		}
		return mockprov.NewLLM(settings.ResponseText), nil
	})

	reg.RegisterSearch("tavily", func(cfg svara.Config) (toolkit.Searcher, error) {
		if err := validateSettings("vendors.search.settings", cfg.Vendors.Search.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"max_results"},
		}); err != nil {
			return nil, err
		}
		var settings tavilySettings
		if err := configutil.DecodeSettings(cfg.Vendors.Search.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.search.settings.api_key"); err != nil {
			return nil, err
		}
		client := tavily.NewClient(settings.APIKey)
		if settings.MaxResults > 0 {
			client.MaxResults = settings.MaxResults
		}
		return client, nil
	})

	reg.RegisterSearch("mock", func(cfg svara.Config) (toolkit.Searcher, error) {
		var settings mockSearchSettings
		if err := configutil.DecodeSettings(cfg.Vendors.Search.Settings, &settings); err != nil {
			return nil, err
		}
		return mockprov.NewSearcher(settings.Answer), nil
	})

	reg.RegisterStock("yahoo", func(cfg svara.Config) (toolkit.QuoteSource, error) {
		if err := validateSettings("vendors.stock.settings", cfg.Vendors.Stock.Settings, configutil.Schema{
			Optional: []string{"base_url"},
		}); err != nil {
			return nil, err
		}
		var settings yahooSettings
		if err := configutil.DecodeSettings(cfg.Vendors.Stock.Settings, &settings); err != nil {
			return nil, err
		}
		client := yahoo.NewClient()
		if settings.BaseURL != "" {
			client.BaseURL = settings.BaseURL
		}
		return client, nil
	})

	reg.RegisterStock("mock", func(cfg svara.Config) (toolkit.QuoteSource, error) {
		return mockprov.NewQuoteSource(), nil
	})

	reg.RegisterImage("openai", func(cfg svara.Config) (toolkit.ImageGenerator, error) {
		if err := validateSettings("vendors.image.settings", cfg.Vendors.Image.Settings, configutil.Schema{
			Required: []string{"api_key"},
			Optional: []string{"model", "size"},
		}); err != nil {
			return nil, err
		}
		var settings openAIImageSettings
		if err := configutil.DecodeSettings(cfg.Vendors.Image.Settings, &settings); err != nil {
			return nil, err
		}
		if err := configutil.RequireString(settings.APIKey, "vendors.image.settings.api_key"); err != nil {
			return nil, err
		}
		if settings.Model == "" {
			settings.Model = "dall-e-3"
		}
		client := openai.NewImageClient(settings.APIKey, settings.Model)
		if settings.Size != "" {
			client.Size = settings.Size
		}
		return client, nil
	})

	reg.RegisterImage("mock", func(cfg svara.Config) (toolkit.ImageGenerator, error) {
		var settings mockImageSettings
		if err := configutil.DecodeSettings(cfg.Vendors.Image.Settings, &settings); err != nil {
			return nil, err
		}
		return mockprov.NewImageGen(settings.URL), nil
	})
}

func sessionConfigFromConfig(cfg svara.Config) realtime.SessionConfig {
	sc := realtime.DefaultSessionConfig()
	if cfg.Session.Instructions != "" {
		sc.Instructions = cfg.Session.Instructions
	}
	if cfg.Session.Voice != "" {
		sc.Voice = cfg.Session.Voice
	}
	if cfg.Session.Temperature > 0 {
		sc.Temperature = cfg.Session.Temperature
	}
	if cfg.Session.MaxResponseOutputTokens > 0 {
		sc.MaxResponseOutputTokens = cfg.Session.MaxResponseOutputTokens
	}
	if strings.EqualFold(strings.TrimSpace(cfg.Session.TurnDetection), "none") {
		sc.TurnDetection = nil
	}
	return sc
}

func buildTransport(cfg svara.Config) (transports.Transport, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Transports.Provider)) {
	case "chatui":
		if err := validateSettings("transports.settings", cfg.Transports.Settings, configutil.Schema{
			Optional: []string{"server_addr", "ws_path", "allow_any_origin", "allowed_origins", "sample_rate"},
		}); err != nil {
			return nil, err
		}
		var settings chatuiSettings
		if err := configutil.DecodeSettings(cfg.Transports.Settings, &settings); err != nil {
			return nil, err
		}
		if settings.SampleRate == 0 {
			settings.SampleRate = cfg.Session.SampleRate
		}
		return chatui.New(chatui.Config{
			ServerAddr:     settings.ServerAddr,
			WebsocketPath:  settings.WebsocketPath,
			AllowAnyOrigin: settings.AllowAnyOrigin,
			AllowedOrigins: settings.AllowedOrigins,
			SampleRate:     settings.SampleRate,
		}), nil
	case "mock":
		return mocktransport.New(), nil
	default:
		return nil, fmt.Errorf("unsupported transport provider: %s", cfg.Transports.Provider)
	}
}

func validateSettings(path string, input map[string]any, schema configutil.Schema) error {
	if err := configutil.ValidateSettings(input, schema); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
