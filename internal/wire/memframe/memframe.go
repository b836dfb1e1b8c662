// Package memframe provides an in-process implementation of
// wire.Framed backed by a pair of buffered channels. It stands in for
// the real length-delimited socket framing (an external collaborator
// per spec §1) so the Peer session state machine can be driven
// end-to-end in tests without opening real sockets.
package memframe

import (
	"errors"
	"sync"

	"github.com/crocme10/area-net/internal/wire"
)

// ErrClosed is returned by Send/Recv once the pipe has been closed.
var ErrClosed = errors.New("memframe: closed")

const defaultBuffer = 64

// NewPipe returns two connected Framed endpoints: messages sent on one
// side are received on the other, in both directions.
func NewPipe() (wire.Framed, wire.Framed) {
	ab := make(chan wire.Message, defaultBuffer)
	ba := make(chan wire.Message, defaultBuffer)

	a := &endpoint{send: ab, recv: ba, closedCh: make(chan struct{})}
	b := &endpoint{send: ba, recv: ab, closedCh: make(chan struct{})}
	return a, b
}

type endpoint struct {
	send chan<- wire.Message
	recv <-chan wire.Message

	mu       sync.Mutex
	closed   bool
	closedCh chan struct{}
}

func (e *endpoint) Send(m wire.Message) (err error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return ErrClosed
	}

	defer func() {
		// a concurrent Close of this endpoint can close e.send after the
		// check above, and sending on a closed channel panics; convert
		// that into ErrClosed rather than propagating the panic.
		if recover() != nil {
			err = ErrClosed
		}
	}()
	e.send <- m
	return nil
}

func (e *endpoint) Recv() (wire.Message, error) {
	select {
	case m, ok := <-e.recv:
		if !ok {
			return wire.Message{}, ErrClosed
		}
		return m, nil
	case <-e.closedCh:
		return wire.Message{}, ErrClosed
	}
}

func (e *endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	close(e.send)
	close(e.closedCh)
	return nil
}
