package observers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rakhadjo/svara/pkg/metrics"
)

func TestTimelineWritesPerSessionFile(t *testing.T) {
	dir := t.TempDir()
	obs := NewTimelineObserver(dir)
	defer obs.Close()

	obs.RecordEvent(metrics.MetricsEvent{
		Name: "tool_call",
		Time: time.Now(),
		Tags: map[string]string{
			"session_id": "sess-1",
			"tool_name":  "query_stock_price",
		},
		Fields: map[string]any{"arguments": `{"ticker":"AAPL"}`},
	})
	obs.RecordEvent(metrics.MetricsEvent{
		Name: "tool_result",
		Time: time.Now(),
		Tags: map[string]string{
			"session_id":  "sess-1",
			"tool_status": "ok",
		},
	})
	if err := obs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "sess-1.jsonl"))
	if err != nil {
		t.Fatalf("read timeline: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(lines))
	}
	var entry timelineEvent
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry.Event != "tool_call" || entry.SessionID != "sess-1" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Tags["tool_name"] != "query_stock_price" {
		t.Fatalf("expected tool_name tag, got %+v", entry.Tags)
	}
}

func TestTimelineIgnoresEventsWithoutSession(t *testing.T) {
	dir := t.TempDir()
	obs := NewTimelineObserver(dir)
	defer obs.Close()

	obs.RecordEvent(metrics.MetricsEvent{Name: "tool_call", Time: time.Now()})

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no files, got %d", len(entries))
	}
}

func TestTimelineRedactsSecrets(t *testing.T) {
	dir := t.TempDir()
	obs := NewTimelineObserver(dir)

	obs.RecordEvent(metrics.MetricsEvent{
		Name: "realtime_event",
		Time: time.Now(),
		Tags: map[string]string{"session_id": "sess-2"},
		Fields: map[string]any{
			"payload": "Authorization: Bearer abc123def456",
		},
	})
	if err := obs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "sess-2.jsonl"))
	if err != nil {
		t.Fatalf("read timeline: %v", err)
	}
	if strings.Contains(string(raw), "abc123def456") {
		t.Fatalf("secret leaked into timeline: %s", raw)
	}
}

func TestPurgeArtifactsRemovesOldFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.jsonl")
	if err := os.WriteFile(old, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	removed, err := PurgeArtifacts(dir, 24*time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
}
