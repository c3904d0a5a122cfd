// Package metrics carries session activity events (audio in, realtime
// wire traffic, tool dispatches) to pluggable observers.
package metrics

import "time"

// MetricsEvent is one observation. Tags identify the session and
// component; Fields carry event-specific payload.
type MetricsEvent struct {
	Name   string
	Time   time.Time
	Value  float64
	Tags   map[string]string
	Fields map[string]any
}

// Observer receives events. Implementations must tolerate calls from
// multiple goroutines.
type Observer interface {
	RecordEvent(ev MetricsEvent)
}

// Flusher is implemented by observers that buffer writes.
type Flusher interface {
	Flush() error
}

// NoopObserver discards every event.
type NoopObserver struct{}

func (NoopObserver) RecordEvent(MetricsEvent) {}
