package svara

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "svara.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaultsAndEnvExpansion(t *testing.T) {
	t.Setenv("SVARA_TEST_KEY", "sk-test-abc")
	path := writeConfig(t, `
transports:
  provider: chatui
vendors:
  realtime:
    provider: openai
    settings:
      api_key: ${SVARA_TEST_KEY}
  llm:
    provider: openai
    settings:
      api_key: ${SVARA_TEST_KEY}
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Session.Voice != "shimmer" {
		t.Fatalf("expected default voice, got %q", cfg.Session.Voice)
	}
	if cfg.Session.SampleRate != 24000 {
		t.Fatalf("expected default sample rate, got %d", cfg.Session.SampleRate)
	}
	if cfg.Session.TurnDetection != "server_vad" {
		t.Fatalf("expected default turn detection, got %q", cfg.Session.TurnDetection)
	}
	if cfg.Tools.PythonBin != "python3" || cfg.Tools.AllowExec {
		t.Fatalf("unexpected tool defaults: %+v", cfg.Tools)
	}
	if !cfg.Privacy.RedactPII {
		t.Fatal("expected redact_pii default true")
	}
	if got := cfg.Vendors.Realtime.Settings["api_key"]; got != "sk-test-abc" {
		t.Fatalf("env var not expanded: %v", got)
	}
}

func TestLoadConfigRequiresProviders(t *testing.T) {
	path := writeConfig(t, `
vendors:
  realtime:
    provider: openai
  llm:
    provider: openai
`)
	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "transports.provider") {
		t.Fatalf("expected transports.provider error, got %v", err)
	}
}

func TestLoadConfigRequiresCredentials(t *testing.T) {
	t.Setenv("SVARA_TEST_KEY", "sk-test-abc")
	os.Unsetenv("SVARA_UNSET_KEY")
	path := writeConfig(t, `
transports:
  provider: chatui
vendors:
  realtime:
    provider: openai
    settings:
      api_key: ${SVARA_UNSET_KEY}
  llm:
    provider: openai
    settings:
      api_key: ${SVARA_TEST_KEY}
`)
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "vendors.realtime.settings.api_key") {
		t.Fatalf("expected missing credential error, got %v", err)
	}
}

func TestLoadConfigAllowsKeylessProviders(t *testing.T) {
	t.Setenv("SVARA_TEST_KEY", "sk-test-abc")
	path := writeConfig(t, `
transports:
  provider: chatui
vendors:
  realtime:
    provider: openai
    settings:
      api_key: ${SVARA_TEST_KEY}
  llm:
    provider: openai
    settings:
      api_key: ${SVARA_TEST_KEY}
  stock:
    provider: yahoo
`)
	if _, err := LoadConfig(path); err != nil {
		t.Fatalf("yahoo needs no api_key: %v", err)
	}
}

func TestLoadConfigRejectsBadTurnDetection(t *testing.T) {
	path := writeConfig(t, `
transports:
  provider: chatui
vendors:
  realtime:
    provider: openai
  llm:
    provider: openai
session:
  turn_detection: hybrid
`)
	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), "turn_detection") {
		t.Fatalf("expected turn_detection error, got %v", err)
	}
}

func TestProviderRegistryUnknownProvider(t *testing.T) {
	reg := NewProviderRegistry()
	if _, err := reg.BuildRealtime("nope", Config{}, "s1"); err == nil || !strings.Contains(err.Error(), "not registered") {
		t.Fatalf("expected not registered error, got %v", err)
	}
	if _, err := reg.BuildLLM("nope", Config{}); err == nil {
		t.Fatal("expected llm build error")
	}
}
