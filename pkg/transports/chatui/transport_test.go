package chatui

import (
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rakhadjo/svara/pkg/frames"
)

func dialTransport(t *testing.T, tr *Transport) (*websocket.Conn, string) {
	t.Helper()
	srv := httptest.NewServer(tr)
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	var started map[string]any
	if err := conn.ReadJSON(&started); err != nil {
		t.Fatalf("read session_started: %v", err)
	}
	if started["event"] != "session_started" {
		t.Fatalf("expected session_started, got %+v", started)
	}
	sessionID, _ := started["session_id"].(string)
	if sessionID == "" {
		t.Fatal("missing session_id")
	}
	return conn, sessionID
}

func waitFrame(t *testing.T, tr *Transport) frames.Frame {
	t.Helper()
	select {
	case f := <-tr.Recv():
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func TestSessionStartAndTextFrame(t *testing.T) {
	tr := New(Config{})
	conn, sessionID := dialTransport(t, tr)

	f := waitFrame(t, tr)
	sf, ok := f.(frames.SystemFrame)
	if !ok || sf.Name() != "session_start" {
		t.Fatalf("expected session_start frame, got %T %+v", f, f)
	}

	if err := conn.WriteJSON(ClientEvent{Event: "text", Text: "what is AAPL at"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f = waitFrame(t, tr)
	tf, ok := f.(frames.TextFrame)
	if !ok {
		t.Fatalf("expected text frame, got %T", f)
	}
	if tf.Text() != "what is AAPL at" {
		t.Fatalf("unexpected text: %q", tf.Text())
	}
	meta := tf.Meta()
	if meta[frames.MetaSessionID] != sessionID || meta[frames.MetaRole] != "user" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestAudioEventDecodesToAudioFrame(t *testing.T) {
	tr := New(Config{SampleRate: 16000})
	conn, _ := dialTransport(t, tr)
	waitFrame(t, tr) // session_start

	pcm := []byte{1, 2, 3, 4}
	if err := conn.WriteJSON(ClientEvent{
		Event:   "audio",
		Payload: base64.StdEncoding.EncodeToString(pcm),
	}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := waitFrame(t, tr)
	af, ok := f.(frames.AudioFrame)
	if !ok {
		t.Fatalf("expected audio frame, got %T", f)
	}
	if af.Rate() != 16000 || len(af.RawPayload()) != 4 {
		t.Fatalf("unexpected audio frame: rate=%d len=%d", af.Rate(), len(af.RawPayload()))
	}
}

func TestSendRendersToolStatusAndChart(t *testing.T) {
	tr := New(Config{})
	conn, sessionID := dialTransport(t, tr)
	waitFrame(t, tr) // session_start

	sf := frames.NewSystemFrame(sessionID, time.Now().UnixNano(), "tool_status", map[string]string{
		frames.MetaToolName:   "query_stock_price",
		frames.MetaToolStatus: "ok",
	})
	if err := tr.Send(sf); err != nil {
		t.Fatalf("send: %v", err)
	}
	var toolMsg map[string]any
	if err := conn.ReadJSON(&toolMsg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if toolMsg["event"] != "tool" || toolMsg["name"] != "query_stock_price" {
		t.Fatalf("unexpected tool message: %+v", toolMsg)
	}

	fig := `{"data":[{"type":"scatter"}]}`
	cf := frames.NewChartFrame(sessionID, time.Now().UnixNano(), fig, nil)
	if err := tr.Send(cf); err != nil {
		t.Fatalf("send chart: %v", err)
	}
	var chartMsg map[string]any
	if err := conn.ReadJSON(&chartMsg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if chartMsg["event"] != "chart" {
		t.Fatalf("unexpected chart message: %+v", chartMsg)
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(chartMsg["figure"].(string)), &parsed); err != nil {
		t.Fatalf("figure not valid JSON: %v", err)
	}
}

func TestInterruptControlFrame(t *testing.T) {
	tr := New(Config{})
	conn, _ := dialTransport(t, tr)
	waitFrame(t, tr) // session_start

	if err := conn.WriteJSON(ClientEvent{Event: "interrupt"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := waitFrame(t, tr)
	cf, ok := f.(frames.ControlFrame)
	if !ok || cf.Code() != frames.ControlInterrupt {
		t.Fatalf("expected interrupt control, got %T %+v", f, f)
	}
}

func TestStopEmitsSessionEnd(t *testing.T) {
	tr := New(Config{})
	conn, _ := dialTransport(t, tr)
	waitFrame(t, tr) // session_start

	if err := conn.WriteJSON(ClientEvent{Event: "stop"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := waitFrame(t, tr)
	sf, ok := f.(frames.SystemFrame)
	if !ok || sf.Name() != "session_end" {
		t.Fatalf("expected session_end, got %T %+v", f, f)
	}
	if sf.Meta()[frames.MetaEndReason] != "user_closed" {
		t.Fatalf("unexpected end reason: %+v", sf.Meta())
	}
}

func TestSendUnknownSessionIsNoop(t *testing.T) {
	tr := New(Config{})
	f := frames.NewTextFrame("absent", time.Now().UnixNano(), "hello", nil)
	if err := tr.Send(f); err != nil {
		t.Fatalf("expected nil error for unknown session, got %v", err)
	}
}
