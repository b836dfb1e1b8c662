package peer

import "fmt"

// TransportError wraps a socket-level read/write/dial failure. It is
// always local to a session: it closes the session and surfaces as a
// PeerFailed event, never unwinds into the controller loop.
type TransportError struct{ Cause error }

func (e *TransportError) Error() string { return fmt.Sprintf("transport error: %v", e.Cause) }
func (e *TransportError) Unwrap() error { return e.Cause }

// ProtocolError reports a malformed or unexpected message, such as a
// second Handshake or an incompatible protocol major version.
type ProtocolError struct{ Detail string }

func (e *ProtocolError) Error() string { return fmt.Sprintf("protocol error: %s", e.Detail) }

// HeartbeatTimeoutError reports that no HeartbeatResponse arrived
// before the armed deadline.
type HeartbeatTimeoutError struct{ Nonce uint64 }

func (e *HeartbeatTimeoutError) Error() string {
	return fmt.Sprintf("heartbeat timeout: nonce=%d", e.Nonce)
}

// HandshakeTimeoutError reports that a session sat in Handshaking
// without receiving the peer's Handshake before the armed deadline.
type HandshakeTimeoutError struct{}

func (e *HandshakeTimeoutError) Error() string { return "handshake timeout" }
