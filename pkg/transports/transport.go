// Package transports defines the boundary between the engine and a
// user-facing surface. A transport turns user input into frames and
// renders engine frames back to the user.
package transports

import (
	"context"

	"github.com/rakhadjo/svara/pkg/frames"
)

type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	// Send renders one engine frame to the user. Frames the transport
	// cannot render are dropped silently.
	Send(f frames.Frame) error
	// Recv streams user activity into the engine. The channel closes
	// on Stop.
	Recv() <-chan frames.Frame
}

// ReadyReporter lets a transport surface endpoint details at startup.
type ReadyReporter interface {
	ReadyFields() map[string]any
}
