package networking

import (
	"context"
	"errors"
	"net"
	"time"
)

// ErrTimeout is returned by Receive when nothing arrived in time
var ErrTimeout = errors.New("receive timeout")

// Datagram is a raw packet together with its sender
type Datagram struct {
	Data []byte
	From *net.UDPAddr
}

// Transport is the only suspension point of both protocol drivers
type Transport interface {
	// SendTo sends one datagram to a unicast or broadcast address.
	SendTo(b []byte, to *net.UDPAddr) error
	// Receive returns the next datagram in receipt order. A zero timeout polls
	// without blocking; otherwise it waits until timeout, ctx or Close.
	Receive(ctx context.Context, timeout time.Duration) (*Datagram, error)
	Close() error
}
