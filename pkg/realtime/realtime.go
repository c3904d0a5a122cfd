// Package realtime speaks the OpenAI realtime websocket protocol: a
// raw event socket (API), a conversation state tracker
// (Conversation), and a session-level client (Client) tying the two
// together.
package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rakhadjo/svara/pkg/audio"
	"github.com/rakhadjo/svara/pkg/errorsx"
	"github.com/rakhadjo/svara/pkg/logging"
)

// Callbacks fan session activity out to the owner. All callbacks run
// on the socket read goroutine and must not block. Nil callbacks are
// skipped.
type Callbacks struct {
	// OnEvent sees every wire event; source is "client" or "server".
	OnEvent func(source string, ev Event)
	// OnConversationUpdated fires for every tracked item change.
	OnConversationUpdated func(item *Item, delta *Delta)
	// OnItemAppended fires when the server creates an item.
	OnItemAppended func(item *Item)
	// OnItemCompleted fires when an item reaches completed status.
	OnItemCompleted func(item *Item)
	// OnFunctionCall fires when a function_call item completes with
	// its full argument payload.
	OnFunctionCall func(call FunctionCall)
	// OnInterrupted fires when server VAD detects the user speaking
	// over the assistant.
	OnInterrupted func(ev Event)
}

// ClientConfig configures a session client.
type ClientConfig struct {
	URL        string
	APIKey     string
	Model      string
	SampleRate int
	Session    SessionConfig
}

// Client owns one realtime session: it connects, pushes session
// config and tool descriptors, feeds user input, and tracks the
// conversation.
type Client struct {
	api    *API
	conv   *Conversation
	cfg    ClientConfig
	logger *slog.Logger

	mu             sync.Mutex
	callbacks      Callbacks
	toolDescs      []map[string]any
	inputAudio     []byte
	sessionCreated chan struct{}
	createdOnce    sync.Once
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 24000
	}
	c := &Client{
		api:            NewAPI(APIConfig{URL: cfg.URL, APIKey: cfg.APIKey, Model: cfg.Model}),
		conv:           NewConversation(cfg.SampleRate),
		cfg:            cfg,
		logger:         logging.NewComponentLogger(slog.Default(), "realtime_client"),
		sessionCreated: make(chan struct{}),
	}
	c.registerHandlers()
	return c
}

// SetCallbacks installs the callback set. Call before Connect.
func (c *Client) SetCallbacks(cb Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = cb
}

// SetTools replaces the tool descriptors advertised to the session.
// When connected, the session is updated immediately.
func (c *Client) SetTools(descriptors []map[string]any) error {
	c.mu.Lock()
	c.toolDescs = descriptors
	c.mu.Unlock()
	if c.api.IsConnected() {
		return c.UpdateSession()
	}
	return nil
}

func (c *Client) IsConnected() bool { return c.api.IsConnected() }

// Conversation exposes the tracked conversation state.
func (c *Client) Conversation() *Conversation { return c.conv }

// Connect dials the realtime endpoint and pushes the session config.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.api.Connect(ctx); err != nil {
		return err
	}
	return c.UpdateSession()
}

// WaitForSessionCreated blocks until the server acknowledges the
// session or the context ends.
func (c *Client) WaitForSessionCreated(ctx context.Context) error {
	if !c.api.IsConnected() {
		return errorsx.Wrap(fmt.Errorf("not connected"), errorsx.ReasonRealtimeConnect)
	}
	select {
	case <-c.sessionCreated:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect closes the socket and clears conversation state.
func (c *Client) Disconnect() error {
	c.conv.Clear()
	c.mu.Lock()
	c.inputAudio = nil
	c.mu.Unlock()
	return c.api.Disconnect()
}

// Done is closed when the underlying socket read loop exits.
func (c *Client) Done() <-chan struct{} { return c.api.Done() }

// UpdateSession pushes the current session config and tool
// descriptors.
func (c *Client) UpdateSession() error {
	c.mu.Lock()
	descs := c.toolDescs
	c.mu.Unlock()
	return c.api.Send(EventSessionUpdate, map[string]any{
		"session": c.cfg.Session.payload(descs),
	})
}

// SendUserText creates a user text item and requests a response.
func (c *Client) SendUserText(text string) error {
	if err := c.api.Send(EventConversationItemCreate, map[string]any{
		"item": map[string]any{
			"type": "message",
			"role": "user",
			"content": []map[string]any{
				{"type": "input_text", "text": text},
			},
		},
	}); err != nil {
		return err
	}
	return c.CreateResponse()
}

// AppendInputAudio streams one PCM16 chunk into the input buffer.
func (c *Client) AppendInputAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	if err := c.api.Send(EventInputAudioAppend, map[string]any{
		"audio": audio.EncodeBase64(pcm),
	}); err != nil {
		return err
	}
	c.mu.Lock()
	c.inputAudio = append(c.inputAudio, pcm...)
	c.mu.Unlock()
	return nil
}

// CreateResponse asks the model to respond. Without server turn
// detection, buffered input audio is committed first.
func (c *Client) CreateResponse() error {
	if c.cfg.Session.TurnDetectionType() == "" {
		c.mu.Lock()
		buffered := c.inputAudio
		c.inputAudio = nil
		c.mu.Unlock()
		if len(buffered) > 0 {
			if err := c.api.Send(EventInputAudioCommit, nil); err != nil {
				return err
			}
			c.conv.QueueInputAudio(buffered)
		}
	}
	return c.api.Send(EventResponseCreate, nil)
}

// CancelResponse cancels the in-flight response. With an item id, the
// assistant item is also truncated at sampleCount so replayed audio
// matches what the user heard.
func (c *Client) CancelResponse(itemID string, sampleCount int) error {
	if itemID == "" {
		return c.api.Send(EventResponseCancel, nil)
	}
	it, ok := c.conv.Item(itemID)
	if !ok {
		return fmt.Errorf("cancel: item %q not found", itemID)
	}
	if it.Type != "message" || it.Role != "assistant" {
		return fmt.Errorf("cancel: item %q is not an assistant message", itemID)
	}
	audioIndex := -1
	for i, part := range it.Content {
		if t, _ := part["type"].(string); t == "audio" {
			audioIndex = i
			break
		}
	}
	if audioIndex == -1 {
		return fmt.Errorf("cancel: item %q has no audio content", itemID)
	}
	if err := c.api.Send(EventResponseCancel, nil); err != nil {
		return err
	}
	return c.api.Send(EventItemTruncate, map[string]any{
		"item_id":       itemID,
		"content_index": audioIndex,
		"audio_end_ms":  sampleCount * 1000 / c.cfg.SampleRate,
	})
}

// SendFunctionCallOutput returns a tool result to the model and
// requests the follow-up response.
func (c *Client) SendFunctionCallOutput(callID, output string) error {
	if err := c.api.Send(EventConversationItemCreate, map[string]any{
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": callID,
			"output":  output,
		},
	}); err != nil {
		return err
	}
	return c.CreateResponse()
}

// DeleteItem removes an item from the server conversation.
func (c *Client) DeleteItem(id string) error {
	return c.api.Send(EventConversationItemDelete, map[string]any{"item_id": id})
}

func (c *Client) registerHandlers() {
	c.api.On("client.*", func(ev Event) { c.emitEvent("client", ev) })
	c.api.On("server.*", func(ev Event) { c.emitEvent("server", ev) })

	c.api.On("server."+EventSessionCreated, func(Event) {
		c.createdOnce.Do(func() { close(c.sessionCreated) })
	})

	for _, name := range []string{
		EventResponseCreated,
		EventOutputItemAdded,
		EventContentPartAdded,
		EventItemTruncated,
		EventItemDeleted,
		EventInputTranscriptDone,
		EventAudioTranscriptDelta,
		EventAudioDelta,
		EventTextDelta,
		EventFunctionCallArgsDelta,
	} {
		c.api.On("server."+name, func(ev Event) { c.processEvent(ev) })
	}

	c.api.On("server."+EventSpeechStarted, func(ev Event) {
		c.processEvent(ev)
		if cb := c.snapshotCallbacks().OnInterrupted; cb != nil {
			cb(ev)
		}
	})
	c.api.On("server."+EventSpeechStopped, func(ev Event) {
		c.mu.Lock()
		buffered := c.inputAudio
		c.mu.Unlock()
		if _, _, err := c.conv.ProcessSpeechStopped(ev, buffered); err != nil {
			c.logger.Warn("conversation_event_failed",
				slog.String("event_type", ev.Type()),
				slog.String("error", err.Error()))
		}
	})
	c.api.On("server."+EventItemCreated, func(ev Event) {
		item := c.processEvent(ev)
		cb := c.snapshotCallbacks()
		if item != nil && cb.OnItemAppended != nil {
			cb.OnItemAppended(item)
		}
		if item != nil && item.Status == "completed" && cb.OnItemCompleted != nil {
			cb.OnItemCompleted(item)
		}
	})
	c.api.On("server."+EventOutputItemDone, func(ev Event) {
		item := c.processEvent(ev)
		if item == nil {
			return
		}
		cb := c.snapshotCallbacks()
		if item.Status == "completed" && cb.OnItemCompleted != nil {
			cb.OnItemCompleted(item)
		}
		if call, ok := item.ToolCall(); ok && cb.OnFunctionCall != nil {
			cb.OnFunctionCall(call)
		}
	})
}

func (c *Client) processEvent(ev Event) *Item {
	item, delta, err := c.conv.ProcessEvent(ev)
	if err != nil {
		c.logger.Warn("conversation_event_failed",
			slog.String("event_type", ev.Type()),
			slog.String("error", err.Error()))
		return nil
	}
	if item != nil {
		if cb := c.snapshotCallbacks().OnConversationUpdated; cb != nil {
			cb(item, delta)
		}
	}
	return item
}

func (c *Client) emitEvent(source string, ev Event) {
	if cb := c.snapshotCallbacks().OnEvent; cb != nil {
		cb(source, ev)
	}
}

func (c *Client) snapshotCallbacks() Callbacks {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callbacks
}
