package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/rakhadjo/svara/pkg/metrics"
)

// Call is one function call emitted by the model. Arguments is the raw
// JSON string accumulated from argument deltas.
type Call struct {
	ID        string
	Name      string
	Arguments string
}

// Dispatcher routes calls to registry handlers. It holds no per-call
// state: concurrent Dispatch invocations are independent, and a failed
// call affects nothing but its own result. Retries, timeouts, and
// queueing belong to callers.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	observer metrics.Observer
}

func NewDispatcher(registry *Registry, logger *slog.Logger, observer metrics.Observer) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = metrics.NoopObserver{}
	}
	return &Dispatcher{registry: registry, logger: logger, observer: observer}
}

// Dispatch resolves the named tool, validates arguments, and runs the
// handler. Errors are always one of *UnknownToolError,
// *InvalidArgumentError, or *ExecutionError.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) (Result, error) {
	tool, ok := d.registry.Lookup(call.Name)
	if !ok {
		err := &UnknownToolError{Name: call.Name}
		d.record(call, "unknown_tool", 0)
		d.logger.Warn("tool_dispatch_unknown", "tool_name", call.Name, "call_id", call.ID)
		return Result{}, err
	}

	args, err := decodeArguments(call.Arguments)
	if err != nil {
		verr := &InvalidArgumentError{Tool: call.Name, Reason: err.Error()}
		d.record(call, "invalid_arguments", 0)
		d.logger.Warn("tool_dispatch_invalid_args", "tool_name", call.Name, "call_id", call.ID, "error", verr.Error())
		return Result{}, verr
	}
	if verr := validateArgs(call.Name, tool.Parameters, args); verr != nil {
		d.record(call, "invalid_arguments", 0)
		d.logger.Warn("tool_dispatch_invalid_args", "tool_name", call.Name, "call_id", call.ID, "error", verr.Error())
		return Result{}, verr
	}

	start := time.Now()
	result, err := tool.Handler(ctx, args)
	elapsed := time.Since(start)
	if err != nil {
		d.record(call, "execution_error", elapsed)
		d.logger.Error("tool_dispatch_failed",
			"tool_name", call.Name,
			"call_id", call.ID,
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err.Error(),
		)
		return Result{}, &ExecutionError{Tool: call.Name, Err: err}
	}

	d.record(call, "ok", elapsed)
	d.logger.Info("tool_dispatch_ok",
		"tool_name", call.Name,
		"call_id", call.ID,
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return result, nil
}

func (d *Dispatcher) record(call Call, status string, elapsed time.Duration) {
	d.observer.RecordEvent(metrics.MetricsEvent{
		Name: "tool_dispatch",
		Time: time.Now(),
		Tags: map[string]string{
			"tool_name":   call.Name,
			"tool_status": status,
		},
		Fields: map[string]any{
			"call_id":    call.ID,
			"elapsed_ms": elapsed.Milliseconds(),
		},
	})
}

// decodeArguments treats empty and whitespace-only payloads as an
// empty object, matching how models emit zero-argument calls.
func decodeArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
