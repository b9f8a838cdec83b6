package interfaces

import (
	"context"
)

type Runnable interface {
	// Start starts running the component.  The component will stop running
	// when the context is closed. Start blocks until the context is closed or
	// an error occurs.
	Start(context.Context) error
}

// QueueController reads packets from a kernel queue and issues a verdict
// for each of them.
type QueueController interface {
	Runnable
	Close() error
}
