// Package tcpframe is the real Framed implementation for overlay
// connections: a length-prefixed JSON encoding of wire.Message over a
// net.Conn, generalizing gossip/pkg/gossiper.go's Envelope exchange
// (there, request/reply over net/rpc's own framing; here, the
// Controller/Peer protocol is asynchronous in both directions, so the
// framing has to be rolled explicitly rather than riding on net/rpc).
package tcpframe

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/crocme10/area-net/internal/netid"
	"github.com/crocme10/area-net/internal/wire"
)

// maxFrameBytes bounds a single decoded message, guarding against a
// corrupt or hostile length prefix requesting an enormous allocation.
const maxFrameBytes = 1 << 20

// Conn wraps a net.Conn as a wire.Framed, using a 4-byte big-endian
// length prefix followed by a JSON-encoded wire.Message.
type Conn struct {
	conn net.Conn
	r    *bufio.Reader

	writeMu sync.Mutex
}

// New wraps an already-established net.Conn.
func New(conn net.Conn) *Conn {
	return &Conn{conn: conn, r: bufio.NewReader(conn)}
}

func (c *Conn) Send(m wire.Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("tcpframe: encode message: %w", err)
	}
	if len(body) > maxFrameBytes {
		return fmt.Errorf("tcpframe: encoded message too large (%d bytes)", len(body))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := c.conn.Write(prefix[:]); err != nil {
		return fmt.Errorf("tcpframe: write length prefix: %w", err)
	}
	if _, err := c.conn.Write(body); err != nil {
		return fmt.Errorf("tcpframe: write body: %w", err)
	}
	return nil
}

func (c *Conn) Recv() (wire.Message, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(c.r, prefix[:]); err != nil {
		return wire.Message{}, err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > maxFrameBytes {
		return wire.Message{}, fmt.Errorf("tcpframe: frame of %d bytes exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(c.r, body); err != nil {
		return wire.Message{}, err
	}
	var m wire.Message
	if err := json.Unmarshal(body, &m); err != nil {
		return wire.Message{}, fmt.Errorf("tcpframe: decode message: %w", err)
	}
	return m, nil
}

func (c *Conn) Close() error { return c.conn.Close() }

// Dialer dials real TCP connections, implementing peer.Dialer.
type Dialer struct {
	netDialer net.Dialer
}

func (d Dialer) Dial(ctx context.Context, addr netid.NetAddress) (wire.Framed, error) {
	conn, err := d.netDialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}
