// Package ws owns the subscriber side of the stream: the registry of live
// handles, the broadcast fan-out and the gorilla/websocket endpoint.
package ws

import "context"

// Subscriber is one live connection that receives every broadcast.
//
// Send must return within the deadline carried by ctx. Close must not block:
// it marks the handle closed so later Sends fail with domain.ErrSubscriberClosed
// and releases the transport. Close may be called more than once.
type Subscriber interface {
	ID() string
	Send(ctx context.Context, msg []byte) error
	Close() error
}
