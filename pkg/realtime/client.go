package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rakhadjo/svara/pkg/errorsx"
	"github.com/rakhadjo/svara/pkg/logging"
)

const DefaultURL = "wss://api.openai.com/v1/realtime"

// Handler receives one dispatched event. Handlers run on the read
// goroutine for server events and on the caller for client events;
// they must not block.
type Handler func(Event)

// APIConfig configures the low-level socket.
type APIConfig struct {
	URL    string
	APIKey string
	Model  string
}

// API is the raw event socket: it dials the realtime endpoint, sends
// client events with generated event ids, and fans incoming server
// events out to registered handlers. Handler keys are "server.<type>",
// "client.<type>", "server.*", and "client.*".
type API struct {
	cfg    APIConfig
	dialer *websocket.Dialer
	logger *slog.Logger

	mu       sync.RWMutex
	conn     *websocket.Conn
	handlers map[string][]Handler

	writeMu sync.Mutex
	seq     atomic.Int64
	done    chan struct{}
}

func NewAPI(cfg APIConfig) *API {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	return &API{
		cfg:      cfg,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:   logging.NewComponentLogger(slog.Default(), "realtime_api"),
		handlers: make(map[string][]Handler),
	}
}

// On registers a handler for an event key. Registration is not safe
// once Connect has been called.
func (a *API) On(key string, h Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[key] = append(a.handlers[key], h)
}

// ClearHandlers drops every registered handler.
func (a *API) ClearHandlers() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers = make(map[string][]Handler)
}

func (a *API) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.conn != nil
}

// Connect dials the endpoint and starts the read loop.
func (a *API) Connect(ctx context.Context) error {
	if a.IsConnected() {
		return errorsx.Wrap(fmt.Errorf("already connected"), errorsx.ReasonRealtimeConnect)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")
	url := a.cfg.URL
	if a.cfg.Model != "" {
		url = fmt.Sprintf("%s?model=%s", a.cfg.URL, a.cfg.Model)
	}

	conn, resp, err := a.dialer.DialContext(ctx, url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		a.logger.Error("realtime_connect_failed",
			slog.String("url", a.cfg.URL),
			slog.Int("status", status),
			slog.String("error", err.Error()))
		return errorsx.Wrap(err, errorsx.ReasonRealtimeConnect)
	}

	a.mu.Lock()
	a.conn = conn
	a.done = make(chan struct{})
	a.mu.Unlock()

	a.logger.Info("realtime_connected",
		slog.String("url", a.cfg.URL),
		slog.String("model", a.cfg.Model))

	go a.readLoop(conn)
	return nil
}

// Disconnect closes the socket. Safe to call when not connected.
func (a *API) Disconnect() error {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close()
	a.logger.Info("realtime_disconnected", slog.String("url", a.cfg.URL))
	return err
}

// Done is closed when the read loop exits.
func (a *API) Done() <-chan struct{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.done
}

// Send emits one client event. The event_id is generated; data fields
// are merged at the top level next to type.
func (a *API) Send(eventType string, data map[string]any) error {
	a.mu.RLock()
	conn := a.conn
	a.mu.RUnlock()
	if conn == nil {
		return errorsx.Wrap(fmt.Errorf("not connected"), errorsx.ReasonRealtimeSend)
	}

	event := Event{
		"event_id": a.nextEventID(),
		"type":     eventType,
	}
	for k, v := range data {
		event[k] = v
	}

	a.dispatch("client."+eventType, event)
	a.dispatch("client.*", event)

	payload, err := json.Marshal(event)
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonRealtimeSend)
	}

	a.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, payload)
	a.writeMu.Unlock()
	if err != nil {
		a.logger.Error("realtime_send_failed",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()))
		return errorsx.Wrap(err, errorsx.ReasonRealtimeSend)
	}
	a.logger.Debug("realtime_event_sent", slog.String("event_type", eventType))
	return nil
}

func (a *API) readLoop(conn *websocket.Conn) {
	a.mu.RLock()
	done := a.done
	a.mu.RUnlock()
	defer close(done)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if a.IsConnected() {
				a.logger.Warn("realtime_read_closed", slog.String("error", err.Error()))
			}
			return
		}
		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			a.logger.Warn("realtime_event_decode_failed", slog.String("error", err.Error()))
			continue
		}
		if event.Type() == "error" {
			a.logger.Error("realtime_server_error", slog.Any("event", map[string]any(event)))
		}
		a.dispatch("server."+event.Type(), event)
		a.dispatch("server.*", event)
	}
}

func (a *API) dispatch(key string, event Event) {
	a.mu.RLock()
	handlers := a.handlers[key]
	a.mu.RUnlock()
	for _, h := range handlers {
		h(event)
	}
}

func (a *API) nextEventID() string {
	return fmt.Sprintf("evt_%d_%d", time.Now().UnixMilli(), a.seq.Add(1))
}
