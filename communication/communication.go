package communication

import (
	"errors"
	"time"
)

var (
	ErrClosed      = errors.New("transport closed")
	ErrUnknownPeer = errors.New("unknown peer")
)

// Envelope is a decoded message with its routing.
type Envelope struct {
	From    int
	To      int
	Message Message
}

// Transport abstracts the message passing between search processes. Delivery
// is reliable and ordered per sender/receiver pair.
type Transport interface {
	// ID is this process's rank.
	ID() int
	// Size is the number of processes, master included.
	Size() int
	Send(to int, msg Message) error
	// Receive returns the next message, waiting at most timeout. A zero or
	// negative timeout polls without blocking. ok is false when nothing arrived.
	Receive(timeout time.Duration) (env Envelope, ok bool, err error)
	Close() error
}
