package svara

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Vendors       VendorsConfig       `mapstructure:"vendors"`
	Transports    TransportsConfig    `mapstructure:"transports"`
	Session       SessionConfig       `mapstructure:"session"`
	Tools         ToolsConfig         `mapstructure:"tools"`
	Knowledge     KnowledgeConfig     `mapstructure:"knowledge"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
	Environment   string              `mapstructure:"environment"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	Realtime VendorConfig `mapstructure:"realtime"`
	LLM      VendorConfig `mapstructure:"llm"`
	Search   VendorConfig `mapstructure:"search"`
	Stock    VendorConfig `mapstructure:"stock"`
	Image    VendorConfig `mapstructure:"image"`
}

type TransportsConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type SessionConfig struct {
	Instructions            string  `mapstructure:"instructions"`
	Voice                   string  `mapstructure:"voice"`
	Temperature             float64 `mapstructure:"temperature"`
	SampleRate              int     `mapstructure:"sample_rate"`
	MaxResponseOutputTokens int     `mapstructure:"max_response_output_tokens"`
	TurnDetection           string  `mapstructure:"turn_detection"`
}

type ToolsConfig struct {
	WorkspaceDir string `mapstructure:"workspace_dir"`
	AllowExec    bool   `mapstructure:"allow_exec"`
	PythonBin    string `mapstructure:"python_bin"`
}

type KnowledgeConfig struct {
	Dir string `mapstructure:"dir"`
}

type ObservabilityConfig struct {
	ArtifactsDir  string `mapstructure:"artifacts_dir"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("session.voice", "shimmer")
	v.SetDefault("session.temperature", 0.8)
	v.SetDefault("session.sample_rate", 24000)
	v.SetDefault("session.max_response_output_tokens", 4096)
	v.SetDefault("session.turn_detection", "server_vad")
	v.SetDefault("tools.workspace_dir", "workspace")
	v.SetDefault("tools.allow_exec", false)
	v.SetDefault("tools.python_bin", "python3")
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.retention_days", 0)
	v.SetDefault("privacy.redact_pii", true)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Transports.Provider) == "" {
		return fmt.Errorf("transports.provider is required")
	}
	if strings.TrimSpace(c.Vendors.Realtime.Provider) == "" {
		return fmt.Errorf("vendors.realtime.provider is required")
	}
	if strings.TrimSpace(c.Vendors.LLM.Provider) == "" {
		return fmt.Errorf("vendors.llm.provider is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.Session.TurnDetection)) {
	case "", "none", "server_vad":
	default:
		return fmt.Errorf("session.turn_detection must be server_vad or none")
	}
	for _, vc := range []struct {
		path string
		cfg  VendorConfig
	}{
		{"vendors.realtime", c.Vendors.Realtime},
		{"vendors.llm", c.Vendors.LLM},
		{"vendors.search", c.Vendors.Search},
		{"vendors.stock", c.Vendors.Stock},
		{"vendors.image", c.Vendors.Image},
	} {
		if !keyedProviders[strings.ToLower(strings.TrimSpace(vc.cfg.Provider))] {
			continue
		}
		key, _ := vc.cfg.Settings["api_key"].(string)
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("%s.settings.api_key is required for provider %q", vc.path, vc.cfg.Provider)
		}
	}
	return nil
}

// keyedProviders lists hosted providers that cannot run without an
// api_key. Validation happens after ${ENV} expansion, so an unset
// variable surfaces here as an empty credential.
var keyedProviders = map[string]bool{
	"openai": true,
	"tavily": true,
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Vendors.Realtime.Settings = expandSettings(cfg.Vendors.Realtime.Settings)
	cfg.Vendors.LLM.Settings = expandSettings(cfg.Vendors.LLM.Settings)
	cfg.Vendors.Search.Settings = expandSettings(cfg.Vendors.Search.Settings)
	cfg.Vendors.Stock.Settings = expandSettings(cfg.Vendors.Stock.Settings)
	cfg.Vendors.Image.Settings = expandSettings(cfg.Vendors.Image.Settings)
	cfg.Transports.Settings = expandSettings(cfg.Transports.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			ks, ok := k.(string)
			if !ok {
				continue
			}
			out[ks] = expandAny(v)
		}
		return out
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			expandValue(v.Index(i))
		}
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String && v.Type().Elem().Kind() == reflect.String {
			for _, key := range v.MapKeys() {
				val := v.MapIndex(key)
				expanded := os.ExpandEnv(val.String())
				v.SetMapIndex(key, reflect.ValueOf(expanded))
			}
		}
	}
}
