// Package chatui is the websocket transport for the browser chat UI.
// Each connection is one session: typed messages and microphone audio
// flow in, assistant text, audio, images, charts, and tool status
// flow out.
package chatui

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rakhadjo/svara/pkg/frames"
)

type Config struct {
	ServerAddr     string   `mapstructure:"server_addr"`
	WebsocketPath  string   `mapstructure:"ws_path"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	SampleRate     int      `mapstructure:"sample_rate"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8080"
	}
	if c.WebsocketPath == "" {
		c.WebsocketPath = "/ws"
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 24000
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// ClientEvent is one inbound UI message.
type ClientEvent struct {
	Event   string `json:"event"`
	Text    string `json:"text,omitempty"`
	Payload string `json:"payload,omitempty"`
}

type Transport struct {
	cfg      Config
	server   *http.Server
	upgrader websocket.Upgrader
	recvCh   chan frames.Frame

	mu       sync.Mutex
	sessions map[string]*session
	traceIDs map[string]string

	// handlers tracks connection goroutines so Stop can close recvCh
	// only after every sender has exited.
	handlers sync.WaitGroup
	draining atomic.Bool
}

func New(cfg Config) *Transport {
	cfg = cfg.withDefaults()
	t := &Transport{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		recvCh:   make(chan frames.Frame, 512),
		sessions: make(map[string]*session),
		traceIDs: make(map[string]string),
	}
	t.upgrader.CheckOrigin = t.checkOrigin
	return t
}

func (t *Transport) Name() string { return "chatui" }

func (t *Transport) Recv() <-chan frames.Frame { return t.recvCh }

func (t *Transport) ReadyFields() map[string]any {
	return map[string]any{
		"ws_url": "ws://" + displayAddr(t.cfg.ServerAddr) + t.cfg.WebsocketPath,
	}
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.Handle(t.cfg.WebsocketPath, t)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	t.server = &http.Server{
		Addr:              t.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("chatui_server_error", "error", err.Error())
		}
	}()
	return nil
}

func (t *Transport) Stop() error {
	t.mu.Lock()
	if t.draining.Swap(true) {
		t.mu.Unlock()
		return nil
	}
	sessions := t.sessions
	t.sessions = make(map[string]*session)
	t.traceIDs = make(map[string]string)
	t.mu.Unlock()

	if t.server != nil {
		_ = t.server.Close()
	}
	for _, sess := range sessions {
		_ = sess.close()
	}
	t.handlers.Wait()
	close(t.recvCh)
	return nil
}

// enter admits one connection goroutine unless draining has begun.
func (t *Transport) enter() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.draining.Load() {
		return false
	}
	t.handlers.Add(1)
	return true
}

func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !t.enter() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	defer t.handlers.Done()
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sessionID := uuid.NewString()
	traceID := uuid.NewString()
	t.attach(sessionID, traceID, conn)
	defer t.detach(sessionID, "transport_closed")

	sess := t.session(sessionID)
	_ = sess.enqueue(map[string]any{
		"event":      "session_started",
		"session_id": sessionID,
	})
	meta := t.metaFor(sessionID)
	nonBlockingSend(t.recvCh, frames.NewSystemFrame(sessionID, now(), "session_start", meta))

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var evt ClientEvent
		if err := json.Unmarshal(msg, &evt); err != nil {
			continue
		}
		switch evt.Event {
		case "text":
			if strings.TrimSpace(evt.Text) == "" {
				continue
			}
			meta := t.metaFor(sessionID)
			meta[frames.MetaRole] = "user"
			nonBlockingSend(t.recvCh, frames.NewTextFrame(sessionID, now(), evt.Text, meta))
		case "audio":
			pcm, err := base64.StdEncoding.DecodeString(evt.Payload)
			if err != nil || len(pcm) == 0 {
				continue
			}
			meta := t.metaFor(sessionID)
			meta[frames.MetaEncoding] = "pcm16"
			nonBlockingSend(t.recvCh, frames.NewAudioFrame(sessionID, now(), pcm, t.cfg.SampleRate, 1, meta))
		case "commit":
			nonBlockingSend(t.recvCh, frames.NewControlFrame(sessionID, now(), frames.ControlCommit, t.metaFor(sessionID)))
		case "interrupt":
			nonBlockingSend(t.recvCh, frames.NewControlFrame(sessionID, now(), frames.ControlInterrupt, t.metaFor(sessionID)))
		case "stop":
			t.detach(sessionID, "user_closed")
			return
		}
	}
}

func (t *Transport) Send(f frames.Frame) error {
	sessionID := f.Meta()[frames.MetaSessionID]
	sess := t.session(sessionID)
	if sess == nil {
		return nil
	}

	switch f.Kind() {
	case frames.KindText:
		tf := f.(frames.TextFrame)
		meta := tf.Meta()
		return sess.enqueue(map[string]any{
			"event": "text",
			"text":  tf.Text(),
			"role":  meta[frames.MetaRole],
			"final": meta[frames.MetaFinal] == "true",
		})
	case frames.KindAudio:
		af := f.(frames.AudioFrame)
		return sess.enqueue(map[string]any{
			"event":       "audio",
			"payload":     base64.StdEncoding.EncodeToString(af.RawPayload()),
			"sample_rate": af.Rate(),
		})
	case frames.KindImage:
		im := f.(frames.ImageFrame)
		msg := map[string]any{
			"event":   "image",
			"url":     im.URL(),
			"mime":    im.MIME(),
			"caption": im.Meta()[frames.MetaCaption],
		}
		if len(im.RawPayload()) > 0 {
			msg["payload"] = base64.StdEncoding.EncodeToString(im.RawPayload())
		}
		return sess.enqueue(msg)
	case frames.KindChart:
		cf := f.(frames.ChartFrame)
		return sess.enqueue(map[string]any{
			"event":   "chart",
			"figure":  cf.Spec(),
			"caption": cf.Meta()[frames.MetaCaption],
		})
	case frames.KindControl:
		cf := f.(frames.ControlFrame)
		switch cf.Code() {
		case frames.ControlInterrupt, frames.ControlCancel, frames.ControlFlush:
			return sess.enqueue(map[string]any{"event": "clear"})
		}
		return nil
	case frames.KindSystem:
		sf := f.(frames.SystemFrame)
		if sf.Name() != "tool_status" {
			return nil
		}
		meta := sf.Meta()
		msg := map[string]any{
			"event":  "tool",
			"name":   meta[frames.MetaToolName],
			"status": meta[frames.MetaToolStatus],
		}
		if v := meta[frames.MetaToolError]; v != "" {
			msg["error"] = v
		}
		return sess.enqueue(msg)
	}
	return nil
}

func (t *Transport) attach(sessionID, traceID string, conn *websocket.Conn) {
	sess := &session{
		conn:   conn,
		sendCh: make(chan []byte, 256),
	}
	t.mu.Lock()
	t.sessions[sessionID] = sess
	t.traceIDs[sessionID] = traceID
	t.mu.Unlock()
	go sess.loop()
}

func (t *Transport) detach(sessionID, reason string) {
	t.mu.Lock()
	sess := t.sessions[sessionID]
	delete(t.sessions, sessionID)
	traceID := t.traceIDs[sessionID]
	delete(t.traceIDs, sessionID)
	t.mu.Unlock()
	if sess == nil {
		return
	}
	meta := map[string]string{
		frames.MetaSessionID: sessionID,
		frames.MetaSource:    "transport",
		frames.MetaEndReason: reason,
	}
	if traceID != "" {
		meta[frames.MetaTraceID] = traceID
	}
	nonBlockingSend(t.recvCh, frames.NewSystemFrame(sessionID, now(), "session_end", meta))
	_ = sess.close()
}

func (t *Transport) session(sessionID string) *session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessions[sessionID]
}

func (t *Transport) metaFor(sessionID string) map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	meta := map[string]string{
		frames.MetaSessionID: sessionID,
		frames.MetaSource:    "transport",
	}
	if v := t.traceIDs[sessionID]; v != "" {
		meta[frames.MetaTraceID] = v
	}
	return meta
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	if t.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	origin = strings.TrimRight(origin, "/")
	originHost := strings.TrimPrefix(origin, "https://")
	originHost = strings.TrimPrefix(originHost, "http://")
	for _, allowed := range t.cfg.AllowedOrigins {
		a := strings.TrimRight(strings.TrimSpace(allowed), "/")
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "http://") || strings.HasPrefix(a, "https://") {
			if strings.EqualFold(a, origin) {
				return true
			}
			continue
		}
		if strings.EqualFold(a, originHost) {
			return true
		}
	}
	return false
}

type session struct {
	conn   *websocket.Conn
	sendCh chan []byte
	closed atomic.Bool
}

func (s *session) enqueue(msg map[string]any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case s.sendCh <- b:
	default:
	}
	return nil
}

func (s *session) loop() {
	for msg := range s.sendCh {
		_ = s.conn.WriteMessage(websocket.TextMessage, msg)
	}
}

func (s *session) close() error {
	if s.closed.CompareAndSwap(false, true) {
		close(s.sendCh)
	}
	return s.conn.Close()
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func now() int64 { return time.Now().UnixNano() }

func nonBlockingSend(ch chan frames.Frame, f frames.Frame) {
	select {
	case ch <- f:
	default:
	}
}
