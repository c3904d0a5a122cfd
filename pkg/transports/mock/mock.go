// Package mock is an in-memory transport for engine tests.
package mock

import (
	"context"
	"sync"

	"github.com/rakhadjo/svara/pkg/frames"
)

type Transport struct {
	recvCh chan frames.Frame

	mu   sync.Mutex
	sent []frames.Frame

	stopOnce sync.Once
}

func New() *Transport {
	return &Transport{recvCh: make(chan frames.Frame, 64)}
}

func (t *Transport) Name() string { return "mock" }

func (t *Transport) Start(context.Context) error { return nil }

func (t *Transport) Stop() error {
	t.stopOnce.Do(func() { close(t.recvCh) })
	return nil
}

func (t *Transport) Send(f frames.Frame) error {
	t.mu.Lock()
	t.sent = append(t.sent, f)
	t.mu.Unlock()
	return nil
}

func (t *Transport) Recv() <-chan frames.Frame { return t.recvCh }

// Inject feeds one frame to the engine as if the user produced it.
func (t *Transport) Inject(f frames.Frame) { t.recvCh <- f }

// Sent returns a copy of everything the engine rendered.
func (t *Transport) Sent() []frames.Frame {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]frames.Frame, len(t.sent))
	copy(out, t.sent)
	return out
}

// SentOfKind filters rendered frames by kind.
func (t *Transport) SentOfKind(kind frames.Kind) []frames.Frame {
	var out []frames.Frame
	for _, f := range t.Sent() {
		if f.Kind() == kind {
			out = append(out, f)
		}
	}
	return out
}
