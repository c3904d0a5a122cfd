// Package svara wires the voice assistant together: config, provider
// registry, tool registry, transport routing, and per-session realtime
// clients.
package svara

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rakhadjo/svara/pkg/frames"
	"github.com/rakhadjo/svara/pkg/knowledge"
	"github.com/rakhadjo/svara/pkg/logging"
	"github.com/rakhadjo/svara/pkg/metrics"
	"github.com/rakhadjo/svara/pkg/observers"
	"github.com/rakhadjo/svara/pkg/realtime"
	"github.com/rakhadjo/svara/pkg/redact"
	"github.com/rakhadjo/svara/pkg/runner"
	"github.com/rakhadjo/svara/pkg/toolkit"
	"github.com/rakhadjo/svara/pkg/tools"
	"github.com/rakhadjo/svara/pkg/transports"
)

type Engine struct {
	cfg        Config
	transport  transports.Transport
	providers  *ProviderRegistry
	registry   *tools.Registry
	dispatcher *tools.Dispatcher
	runner     *runner.LifecycleRunner
	asyncObs   *metrics.AsyncObserver
	logger     *slog.Logger
	pts        *frames.PTSGen
	ctx        context.Context
	cancel     context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session
}

type EngineOptions struct {
	Config    Config
	Providers *ProviderRegistry
	Transport transports.Transport
	// ExtraTools are registered alongside the built-in tool set.
	ExtraTools []tools.Tool
	// OpenURL overrides the platform browser opener, used in tests.
	OpenURL func(ctx context.Context, url string) error
}

// session pairs one transport session with its realtime client.
// assistantItem/assistantBytes track the audio item currently streaming
// to the user so an interrupt can truncate it at the right sample.
type session struct {
	id      string
	traceID string
	client  *realtime.Client

	mu             sync.Mutex
	assistantItem  string
	assistantBytes int
}

func NewEngine(opts EngineOptions) *Engine {
	cfg := opts.Config
	logger := logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	redact.SetEnabled(cfg.Privacy.RedactPII)

	slog.Info("svara_init",
		"environment", cfg.Environment,
		"realtime_provider", cfg.Vendors.Realtime.Provider,
		"llm_provider", cfg.Vendors.LLM.Provider,
		"transport", cfg.Transports.Provider,
	)

	logObs := observers.NewLoggerObserver(logger)
	var timelineObs *observers.TimelineObserver
	obsList := []metrics.Observer{logObs}
	if dir := strings.TrimSpace(cfg.Observability.ArtifactsDir); dir != "" {
		if cfg.Observability.RetentionDays > 0 {
			_, _ = observers.PurgeArtifacts(dir, time.Duration(cfg.Observability.RetentionDays)*24*time.Hour)
		}
		timelineObs = observers.NewTimelineObserver(dir)
		obsList = append(obsList, timelineObs)
	}
	multiObs := observers.NewMultiObserver(obsList...)
	asyncObs := metrics.NewAsyncObserver(multiObs, 2048)

	providers := opts.Providers
	if providers == nil {
		providers = NewProviderRegistry()
	}

	registry := tools.NewRegistry()
	deps := buildToolDeps(cfg, providers, opts.OpenURL)
	if err := toolkit.Register(registry, deps); err != nil {
		slog.Error("toolkit_register_failed", "error", err)
	}
	for _, t := range opts.ExtraTools {
		if err := registry.Register(t); err != nil {
			slog.Error("extra_tool_register_failed", "tool_name", t.Name, "error", err)
		}
	}
	slog.Info("tools_ready", "tools", registry.Names())

	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		cfg:        cfg,
		transport:  opts.Transport,
		providers:  providers,
		registry:   registry,
		dispatcher: tools.NewDispatcher(registry, logger, asyncObs),
		asyncObs:   asyncObs,
		logger:     logger,
		pts:        frames.NewPTSGen(),
		ctx:        ctx,
		cancel:     cancel,
		sessions:   make(map[string]*session),
	}

	hooks := runner.Hooks{
		OnStart: func() {
			fields := []any{"message", "Svara Engine Ready"}
			if rr, ok := opts.Transport.(transports.ReadyReporter); ok {
				for k, v := range rr.ReadyFields() {
					fields = append(fields, k, v)
				}
			}
			slog.Info("engine_ready", fields...)
		},
		OnStop: func() {
			if asyncObs != nil {
				asyncObs.Close()
			}
			if timelineObs != nil {
				_ = timelineObs.Close()
			}
			slog.Info("shutdown", "goroutines", runtime.NumGoroutine(), "active_sessions", e.SessionCount())
		},
	}

	drainer := runner.DrainerFunc(func() error {
		if e.transport != nil {
			_ = e.transport.Stop()
		}
		e.closeSessions("engine_drain")
		return nil
	})

	e.runner = runner.NewLifecycleRunner(drainer, hooks, 30*time.Second)
	return e
}

// buildToolDeps resolves the optional tool providers. A vendor with no
// provider configured leaves its tools unregistered; a build failure is
// logged and treated the same way.
func buildToolDeps(cfg Config, providers *ProviderRegistry, openURL func(ctx context.Context, url string) error) toolkit.Deps {
	deps := toolkit.Deps{
		WorkspaceDir: cfg.Tools.WorkspaceDir,
		AllowExec:    cfg.Tools.AllowExec,
		PythonBin:    cfg.Tools.PythonBin,
		OpenURL:      openURL,
	}
	if p := cfg.Vendors.LLM.Provider; strings.TrimSpace(p) != "" {
		adapter, err := providers.BuildLLM(p, cfg)
		if err != nil {
			slog.Error("llm_provider_unavailable", "provider", p, "error", err)
		} else {
			deps.LLM = adapter
		}
	}
	if p := cfg.Vendors.Search.Provider; strings.TrimSpace(p) != "" {
		searcher, err := providers.BuildSearch(p, cfg)
		if err != nil {
			slog.Error("search_provider_unavailable", "provider", p, "error", err)
		} else {
			deps.Search = searcher
		}
	}
	if p := cfg.Vendors.Stock.Provider; strings.TrimSpace(p) != "" {
		quotes, err := providers.BuildStock(p, cfg)
		if err != nil {
			slog.Error("stock_provider_unavailable", "provider", p, "error", err)
		} else {
			deps.Quotes = quotes
		}
	}
	if p := cfg.Vendors.Image.Provider; strings.TrimSpace(p) != "" {
		images, err := providers.BuildImage(p, cfg)
		if err != nil {
			slog.Error("image_provider_unavailable", "provider", p, "error", err)
		} else {
			deps.Images = images
		}
	}
	if dir := strings.TrimSpace(cfg.Knowledge.Dir); dir != "" {
		store, err := knowledge.Open(dir)
		if err != nil {
			slog.Error("knowledge_store_unavailable", "dir", dir, "error", err)
		} else {
			deps.Knowledge = store
		}
	}
	return deps
}

func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.transport != nil {
		if err := e.transport.Start(ctx); err != nil {
			return err
		}
		go e.routeTransport(ctx)
	}
	go func() {
		_ = e.runner.Run(ctx)
	}()
	return nil
}

func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	return e.runner.Stop()
}

func (e *Engine) State() runner.State { return e.runner.State() }

func (e *Engine) Transport() transports.Transport { return e.transport }

func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) ProviderRegistry() *ProviderRegistry { return e.providers }

func (e *Engine) ToolRegistry() *tools.Registry { return e.registry }

func (e *Engine) SessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

func (e *Engine) Health() error {
	if e.transport == nil {
		return fmt.Errorf("missing transport")
	}
	return nil
}

func (e *Engine) routeTransport(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-e.transport.Recv():
			if !ok {
				return
			}
			e.routeFrame(f)
		}
	}
}

func (e *Engine) routeFrame(f frames.Frame) {
	meta := f.Meta()
	sessionID := meta[frames.MetaSessionID]
	if sessionID == "" {
		return
	}

	if f.Kind() == frames.KindSystem {
		sf := f.(frames.SystemFrame)
		switch sf.Name() {
		case "session_start":
			go e.startSession(sessionID, meta[frames.MetaTraceID])
		case "session_end":
			e.endSession(sessionID, meta[frames.MetaEndReason])
		}
		return
	}

	s := e.session(sessionID)
	if s == nil {
		e.logger.Warn("frame_for_unknown_session", "session_id", sessionID, "kind", string(f.Kind()))
		return
	}

	switch f.Kind() {
	case frames.KindText:
		tf := f.(frames.TextFrame)
		if err := s.client.SendUserText(tf.Text()); err != nil {
			e.logger.Error("send_user_text_failed", "session_id", sessionID, "error", err.Error())
		}
	case frames.KindAudio:
		af := f.(frames.AudioFrame)
		e.asyncObs.RecordEvent(metrics.MetricsEvent{
			Name: "audio_in",
			Time: time.Now(),
			Tags: map[string]string{
				frames.MetaSessionID: sessionID,
				frames.MetaTraceID:   s.traceID,
				"component":          "transport",
			},
			Fields: map[string]any{
				"sample_rate": af.Rate(),
				"bytes":       len(af.RawPayload()),
			},
		})
		if err := s.client.AppendInputAudio(af.RawPayload()); err != nil {
			e.logger.Error("append_input_audio_failed", "session_id", sessionID, "error", err.Error())
		}
	case frames.KindControl:
		cf := f.(frames.ControlFrame)
		switch cf.Code() {
		case frames.ControlCommit:
			if err := s.client.CreateResponse(); err != nil {
				e.logger.Error("create_response_failed", "session_id", sessionID, "error", err.Error())
			}
		case frames.ControlInterrupt, frames.ControlCancel:
			e.interrupt(s)
		}
	}
}

func (e *Engine) startSession(sessionID, traceID string) {
	client, err := e.providers.BuildRealtime(e.cfg.Vendors.Realtime.Provider, e.cfg, sessionID)
	if err != nil {
		e.logger.Error("realtime_provider_unavailable",
			"provider", e.cfg.Vendors.Realtime.Provider,
			"session_id", sessionID,
			"error", err.Error())
		return
	}
	s := &session{id: sessionID, traceID: traceID, client: client}
	client.SetCallbacks(e.sessionCallbacks(s))
	if err := client.SetTools(e.registry.Descriptors()); err != nil {
		e.logger.Error("set_tools_failed", "session_id", sessionID, "error", err.Error())
	}

	if err := client.Connect(e.ctx); err != nil {
		e.logger.Error("realtime_connect_failed", "session_id", sessionID, "error", err.Error())
		return
	}
	waitCtx, cancel := context.WithTimeout(e.ctx, 15*time.Second)
	defer cancel()
	if err := client.WaitForSessionCreated(waitCtx); err != nil {
		e.logger.Error("realtime_session_timeout", "session_id", sessionID, "error", err.Error())
		_ = client.Disconnect()
		return
	}

	e.mu.Lock()
	e.sessions[sessionID] = s
	e.mu.Unlock()

	e.logger.Info("session_started", "session_id", sessionID, "trace_id", traceID)
	e.asyncObs.RecordEvent(metrics.MetricsEvent{
		Name: "session_start",
		Time: time.Now(),
		Tags: map[string]string{
			frames.MetaSessionID: sessionID,
			frames.MetaTraceID:   traceID,
		},
	})
}

func (e *Engine) endSession(sessionID, reason string) {
	e.mu.Lock()
	s := e.sessions[sessionID]
	delete(e.sessions, sessionID)
	e.mu.Unlock()
	if s == nil {
		return
	}
	if err := s.client.Disconnect(); err != nil {
		e.logger.Warn("realtime_disconnect_failed", "session_id", sessionID, "error", err.Error())
	}
	if reason == "" {
		reason = "unknown"
	}
	e.logger.Info("session_ended", "session_id", sessionID, "end_reason", reason)
	e.asyncObs.RecordEvent(metrics.MetricsEvent{
		Name: "session_end",
		Time: time.Now(),
		Tags: map[string]string{
			frames.MetaSessionID: sessionID,
			frames.MetaTraceID:   s.traceID,
			"end_reason":         reason,
		},
	})
}

func (e *Engine) closeSessions(reason string) {
	e.mu.Lock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	for _, id := range ids {
		e.endSession(id, reason)
	}
}

func (e *Engine) session(id string) *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions[id]
}

// sessionCallbacks bridges realtime activity back to the transport.
// All callbacks run on the socket read goroutine, so anything that can
// block goes through a goroutine.
func (e *Engine) sessionCallbacks(s *session) realtime.Callbacks {
	return realtime.Callbacks{
		OnEvent: func(source string, ev realtime.Event) {
			e.asyncObs.RecordEvent(metrics.MetricsEvent{
				Name: "realtime_event",
				Time: time.Now(),
				Tags: map[string]string{
					frames.MetaSessionID: s.id,
					frames.MetaTraceID:   s.traceID,
					"source":             source,
					"event_type":         ev.Type(),
				},
			})
		},
		OnConversationUpdated: func(item *realtime.Item, delta *realtime.Delta) {
			e.onConversationUpdated(s, item, delta)
		},
		OnItemCompleted: func(item *realtime.Item) {
			e.onItemCompleted(s, item)
		},
		OnFunctionCall: func(call realtime.FunctionCall) {
			go e.handleFunctionCall(s, call)
		},
		OnInterrupted: func(realtime.Event) {
			s.resetAssistantAudio()
			e.send(frames.NewControlFrame(s.id, e.pts.Next(s.id), frames.ControlInterrupt, nil))
		},
	}
}

func (e *Engine) onConversationUpdated(s *session, item *realtime.Item, delta *realtime.Delta) {
	if item == nil || delta == nil {
		return
	}
	if item.Type != "message" || item.Role != "assistant" {
		return
	}
	if text := firstNonEmpty(delta.Text, delta.Transcript); text != "" {
		e.send(frames.NewTextFrame(s.id, e.pts.Next(s.id), text, map[string]string{
			frames.MetaRole:   "assistant",
			frames.MetaItemID: item.ID,
			frames.MetaFinal:  "false",
		}))
	}
	if len(delta.Audio) > 0 {
		s.trackAssistantAudio(item.ID, len(delta.Audio))
		e.send(frames.NewAudioFrame(s.id, e.pts.Next(s.id), delta.Audio, e.sampleRate(), 1, map[string]string{
			frames.MetaRole:   "assistant",
			frames.MetaItemID: item.ID,
		}))
	}
}

func (e *Engine) onItemCompleted(s *session, item *realtime.Item) {
	if item == nil || item.Type != "message" {
		return
	}
	switch item.Role {
	case "assistant":
		if text := firstNonEmpty(item.Transcript, item.Text); text != "" {
			e.send(frames.NewTextFrame(s.id, e.pts.Next(s.id), text, map[string]string{
				frames.MetaRole:   "assistant",
				frames.MetaItemID: item.ID,
				frames.MetaFinal:  "true",
			}))
		}
	case "user":
		// Voice input only: typed text is already on screen, the
		// transcript is not.
		if item.Transcript != "" {
			e.send(frames.NewTextFrame(s.id, e.pts.Next(s.id), item.Transcript, map[string]string{
				frames.MetaRole:   "user",
				frames.MetaItemID: item.ID,
				frames.MetaFinal:  "true",
			}))
		}
	}
}

// handleFunctionCall dispatches one model tool call and returns the
// result as a function_call_output item. Failures go back to the model
// as an error payload so it can recover in conversation.
func (e *Engine) handleFunctionCall(s *session, call realtime.FunctionCall) {
	e.sendToolStatus(s, call, "running", "")

	result, err := e.dispatcher.Dispatch(e.ctx, tools.Call{
		ID:        call.CallID,
		Name:      call.Name,
		Arguments: call.Arguments,
	})
	if err != nil {
		payload, _ := json.Marshal(map[string]string{"error": err.Error()})
		e.sendToolStatus(s, call, "error", err.Error())
		if serr := s.client.SendFunctionCallOutput(call.CallID, string(payload)); serr != nil {
			e.logger.Error("function_call_output_failed", "session_id", s.id, "call_id", call.CallID, "error", serr.Error())
		}
		return
	}

	if serr := s.client.SendFunctionCallOutput(call.CallID, result.Content); serr != nil {
		e.logger.Error("function_call_output_failed", "session_id", s.id, "call_id", call.CallID, "error", serr.Error())
	}
	e.sendToolStatus(s, call, "ok", "")
	e.renderToolResult(s, call, result)
}

// renderToolResult forwards display-worthy tool output to the UI.
func (e *Engine) renderToolResult(s *session, call realtime.FunctionCall, result tools.Result) {
	meta := map[string]string{
		frames.MetaToolName:   call.Name,
		frames.MetaToolCallID: call.CallID,
	}
	switch result.Display {
	case frames.DisplayImage:
		var data []byte
		if b64, _ := result.Data["b64_json"].(string); b64 != "" && result.URL == "" {
			if decoded, err := base64.StdEncoding.DecodeString(b64); err == nil {
				data = decoded
			}
		}
		e.send(frames.NewImageFrame(s.id, e.pts.Next(s.id), data, result.MIME, result.URL, meta))
	case frames.DisplayChart:
		fig, _ := result.Data["figure"].(string)
		if fig == "" {
			return
		}
		if result.Content != "" {
			meta[frames.MetaCaption] = result.Content
		}
		e.send(frames.NewChartFrame(s.id, e.pts.Next(s.id), fig, meta))
	}
}

func (e *Engine) sendToolStatus(s *session, call realtime.FunctionCall, status, errText string) {
	meta := map[string]string{
		frames.MetaToolName:   call.Name,
		frames.MetaToolCallID: call.CallID,
		frames.MetaToolStatus: status,
	}
	if errText != "" {
		meta[frames.MetaToolError] = redact.Secret(errText)
	}
	e.send(frames.NewSystemFrame(s.id, e.pts.Next(s.id), "tool_status", meta))
}

// interrupt cancels the in-flight response and truncates the assistant
// item at the last sample the transport has been handed.
func (e *Engine) interrupt(s *session) {
	itemID, bytes := s.takeAssistantAudio()
	sampleCount := bytes / 2
	if err := s.client.CancelResponse(itemID, sampleCount); err != nil {
		e.logger.Warn("cancel_response_failed", "session_id", s.id, "error", err.Error())
		if itemID != "" {
			_ = s.client.CancelResponse("", 0)
		}
	}
	e.send(frames.NewControlFrame(s.id, e.pts.Next(s.id), frames.ControlInterrupt, nil))
}

func (e *Engine) send(f frames.Frame) {
	if e.transport == nil {
		return
	}
	if err := e.transport.Send(f); err != nil {
		e.logger.Warn("transport_send_failed", "kind", string(f.Kind()), "error", err.Error())
	}
}

func (e *Engine) sampleRate() int {
	if e.cfg.Session.SampleRate > 0 {
		return e.cfg.Session.SampleRate
	}
	return 24000
}

func (s *session) trackAssistantAudio(itemID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.assistantItem != itemID {
		s.assistantItem = itemID
		s.assistantBytes = 0
	}
	s.assistantBytes += n
}

func (s *session) takeAssistantAudio() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, bytes := s.assistantItem, s.assistantBytes
	s.assistantItem = ""
	s.assistantBytes = 0
	return item, bytes
}

func (s *session) resetAssistantAudio() {
	s.mu.Lock()
	s.assistantItem = ""
	s.assistantBytes = 0
	s.mu.Unlock()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
