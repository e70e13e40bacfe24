package pipeline

import (
	"context"
)

// Delivery is one raw message handed to the pipeline by a Source, together
// with the handles that settle it with the broker. Every delivery that enters
// the pipeline must be settled by exactly one call to either Ack or Reject.
type Delivery struct {
	// Body is the raw payload as received from the broker.
	Body []byte

	// RoutingKey is the key the message was published under.
	RoutingKey string

	// MessageID is the publisher-assigned message identity, when present.
	MessageID string

	// Ack confirms processing so the broker permanently removes the message.
	Ack func() error

	// Reject discards the message without requeueing it.
	Reject func() error
}

// Source defines the interface for a broker subscription that feeds the
// pipeline. It is responsible for fetching deliveries and handing them off to
// the workers.
type Source interface {
	// Deliveries returns a read-only channel from which pipeline workers will
	// receive deliveries.
	Deliveries() <-chan Delivery
	// Start opens the subscription and begins forwarding deliveries.
	Start(ctx context.Context) error
	// Stop ceases intake and waits for forwarding to finish. Deliveries
	// already buffered remain readable until the channel is closed.
	Stop(ctx context.Context) error
	// Done returns a channel that is closed when the source has completely
	// shut down.
	Done() <-chan struct{}
}
