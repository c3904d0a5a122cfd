package svara

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rakhadjo/svara/pkg/frames"
	"github.com/rakhadjo/svara/pkg/llm"
	mockprov "github.com/rakhadjo/svara/pkg/providers/mock"
	"github.com/rakhadjo/svara/pkg/realtime"
	"github.com/rakhadjo/svara/pkg/toolkit"
	mocktransport "github.com/rakhadjo/svara/pkg/transports/mock"
)

// rtServer fakes the realtime endpoint: it acks the first
// session.update with session.created and records every client event.
type rtServer struct {
	upgrader websocket.Upgrader
	received chan realtime.Event
	conns    chan *websocket.Conn
}

func newRTServer(t *testing.T) (*rtServer, string) {
	t.Helper()
	rs := &rtServer{
		received: make(chan realtime.Event, 64),
		conns:    make(chan *websocket.Conn, 4),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := rs.upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		rs.conns <- conn
		created := false
		for {
			var ev realtime.Event
			if err := conn.ReadJSON(&ev); err != nil {
				return
			}
			rs.received <- ev
			if ev.Type() == realtime.EventSessionUpdate && !created {
				created = true
				if err := conn.WriteJSON(realtime.Event{"type": realtime.EventSessionCreated}); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return rs, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func (rs *rtServer) waitConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case c := <-rs.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("realtime connection not established")
		return nil
	}
}

func (rs *rtServer) waitEvent(t *testing.T, eventType string) realtime.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-rs.received:
			if ev.Type() == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("event %q never arrived", eventType)
			return nil
		}
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testEngine(t *testing.T, wsURL string) (*Engine, *mocktransport.Transport) {
	t.Helper()
	providers := NewProviderRegistry()
	providers.RegisterRealtime("fake", func(cfg Config, sessionID string) (*realtime.Client, error) {
		return realtime.NewClient(realtime.ClientConfig{
			URL:     wsURL,
			APIKey:  "test-key",
			Session: realtime.DefaultSessionConfig(),
		}), nil
	})
	providers.RegisterLLM("mock", func(Config) (llm.Adapter, error) {
		return mockprov.NewLLM("drafted"), nil
	})
	providers.RegisterStock("mock", func(Config) (toolkit.QuoteSource, error) {
		return mockprov.NewQuoteSource(), nil
	})

	transport := mocktransport.New()
	app := NewEngine(EngineOptions{
		Config: Config{
			Vendors: VendorsConfig{
				Realtime: VendorConfig{Provider: "fake"},
				LLM:      VendorConfig{Provider: "mock"},
				Stock:    VendorConfig{Provider: "mock"},
			},
			Transports: TransportsConfig{Provider: "mock"},
			Session:    SessionConfig{SampleRate: 24000},
			LogLevel:   "error",
		},
		Providers: providers,
		Transport: transport,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := app.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = app.Stop() })
	return app, transport
}

func startTestSession(t *testing.T, app *Engine, transport *mocktransport.Transport, rs *rtServer, sessionID string) *websocket.Conn {
	t.Helper()
	transport.Inject(frames.NewSystemFrame(sessionID, 1, "session_start", nil))
	conn := rs.waitConn(t)
	rs.waitEvent(t, realtime.EventSessionUpdate)
	waitFor(t, "session registered", func() bool { return app.SessionCount() == 1 })
	return conn
}

func TestEngineSessionLifecycle(t *testing.T) {
	rs, wsURL := newRTServer(t)
	app, transport := testEngine(t, wsURL)

	startTestSession(t, app, transport, rs, "s1")

	transport.Inject(frames.NewSystemFrame("s1", 2, "session_end", map[string]string{
		frames.MetaEndReason: "user_closed",
	}))
	waitFor(t, "session removed", func() bool { return app.SessionCount() == 0 })
}

func TestEngineRoutesUserText(t *testing.T) {
	rs, wsURL := newRTServer(t)
	app, transport := testEngine(t, wsURL)
	startTestSession(t, app, transport, rs, "s1")

	transport.Inject(frames.NewTextFrame("s1", 2, "what is AAPL trading at", map[string]string{
		frames.MetaRole: "user",
	}))
	created := rs.waitEvent(t, realtime.EventConversationItemCreate)
	item := created.Object("item")
	if item["role"] != "user" {
		t.Fatalf("expected user item, got %+v", item)
	}
	rs.waitEvent(t, realtime.EventResponseCreate)
}

func TestEngineDispatchesFunctionCall(t *testing.T) {
	rs, wsURL := newRTServer(t)
	app, transport := testEngine(t, wsURL)
	conn := startTestSession(t, app, transport, rs, "s1")

	for _, ev := range []realtime.Event{
		{"type": realtime.EventItemCreated, "item": map[string]any{
			"id": "item-1", "type": "function_call",
			"call_id": "call-1", "name": "query_stock_price",
		}},
		{"type": realtime.EventFunctionCallArgsDelta, "item_id": "item-1", "delta": `{"ticker":"AAPL"}`},
		{"type": realtime.EventOutputItemDone, "item": map[string]any{"id": "item-1", "status": "completed"}},
	} {
		if err := conn.WriteJSON(ev); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	created := rs.waitEvent(t, realtime.EventConversationItemCreate)
	item := created.Object("item")
	if item["type"] != "function_call_output" || item["call_id"] != "call-1" {
		t.Fatalf("unexpected output item: %+v", item)
	}
	output, _ := item["output"].(string)
	if !strings.Contains(output, "150.00") {
		t.Fatalf("expected quote in output, got %q", output)
	}
	rs.waitEvent(t, realtime.EventResponseCreate)

	waitFor(t, "tool status frames", func() bool {
		statuses := map[string]bool{}
		for _, f := range transport.SentOfKind(frames.KindSystem) {
			sf := f.(frames.SystemFrame)
			if sf.Name() == "tool_status" {
				statuses[sf.Meta()[frames.MetaToolStatus]] = true
			}
		}
		return statuses["running"] && statuses["ok"]
	})
}

func TestEngineReturnsToolErrorToModel(t *testing.T) {
	rs, wsURL := newRTServer(t)
	app, transport := testEngine(t, wsURL)
	conn := startTestSession(t, app, transport, rs, "s1")

	for _, ev := range []realtime.Event{
		{"type": realtime.EventItemCreated, "item": map[string]any{
			"id": "item-1", "type": "function_call",
			"call_id": "call-1", "name": "query_stock_price",
		}},
		{"type": realtime.EventFunctionCallArgsDelta, "item_id": "item-1", "delta": `{"ticker":"ZZZZ"}`},
		{"type": realtime.EventOutputItemDone, "item": map[string]any{"id": "item-1", "status": "completed"}},
	} {
		if err := conn.WriteJSON(ev); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	created := rs.waitEvent(t, realtime.EventConversationItemCreate)
	output, _ := created.Object("item")["output"].(string)
	if !strings.Contains(output, "error") {
		t.Fatalf("expected error payload, got %q", output)
	}
	rs.waitEvent(t, realtime.EventResponseCreate)

	// A name outside the registry also comes back as an error payload
	// and the session stays up.
	for _, ev := range []realtime.Event{
		{"type": realtime.EventItemCreated, "item": map[string]any{
			"id": "item-2", "type": "function_call",
			"call_id": "call-2", "name": "launch_rocket",
		}},
		{"type": realtime.EventOutputItemDone, "item": map[string]any{"id": "item-2", "status": "completed"}},
	} {
		if err := conn.WriteJSON(ev); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	created = rs.waitEvent(t, realtime.EventConversationItemCreate)
	output, _ = created.Object("item")["output"].(string)
	if !strings.Contains(output, "unknown tool") {
		t.Fatalf("expected unknown tool payload, got %q", output)
	}
	if app.SessionCount() != 1 {
		t.Fatal("session should survive a failed tool call")
	}
}

func TestEngineInterruptCancelsResponse(t *testing.T) {
	rs, wsURL := newRTServer(t)
	app, transport := testEngine(t, wsURL)
	startTestSession(t, app, transport, rs, "s1")

	transport.Inject(frames.NewControlFrame("s1", 2, frames.ControlInterrupt, nil))
	rs.waitEvent(t, realtime.EventResponseCancel)

	waitFor(t, "clear frame", func() bool {
		return len(transport.SentOfKind(frames.KindControl)) > 0
	})
}

func TestEngineAssemblesFullToolSet(t *testing.T) {
	knowledgeDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(knowledgeDir, "guide.md"), []byte("# Guide\n\nResearch methods.\n"), 0o644); err != nil {
		t.Fatalf("write doc: %v", err)
	}

	providers := NewProviderRegistry()
	providers.RegisterLLM("mock", func(Config) (llm.Adapter, error) { return mockprov.NewLLM("ok"), nil })
	providers.RegisterStock("mock", func(Config) (toolkit.QuoteSource, error) { return mockprov.NewQuoteSource(), nil })
	providers.RegisterSearch("mock", func(Config) (toolkit.Searcher, error) { return mockprov.NewSearcher("answer"), nil })
	providers.RegisterImage("mock", func(Config) (toolkit.ImageGenerator, error) { return mockprov.NewImageGen("https://img.example/x.png"), nil })

	app := NewEngine(EngineOptions{
		Config: Config{
			Vendors: VendorsConfig{
				Realtime: VendorConfig{Provider: "fake"},
				LLM:      VendorConfig{Provider: "mock"},
				Stock:    VendorConfig{Provider: "mock"},
				Search:   VendorConfig{Provider: "mock"},
				Image:    VendorConfig{Provider: "mock"},
			},
			Transports: TransportsConfig{Provider: "mock"},
			Tools:      ToolsConfig{WorkspaceDir: t.TempDir(), PythonBin: "echo"},
			Knowledge:  KnowledgeConfig{Dir: knowledgeDir},
			LogLevel:   "error",
		},
		Providers: providers,
		Transport: mocktransport.New(),
	})

	want := []string{
		"create_python_file",
		"draft_linkedin_post",
		"draw_plotly_chart",
		"execute_python_file",
		"generate_image",
		"get_answer_from_knowledgebase",
		"internet_search",
		"open_browser",
		"query_stock_price",
	}
	if got := app.ToolRegistry().Names(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected tool set:\n got %v\nwant %v", got, want)
	}
}
