// Package peer implements the per-connection actor described in spec
// §4.2: a session owns exactly one framed duplex stream and drives a
// handshake -> steady-state -> shutdown state machine with periodic
// heartbeats and bounded-timeout liveness detection.
//
// The main loop is the sole mutator of session state, in the style of
// the teacher's worker actors (distributed-queue/pkg/queue), which use
// one consumer goroutine reading a `select` over a handful of channels
// instead of locking shared fields.
package peer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crocme10/area-net/internal/netid"
	"github.com/crocme10/area-net/internal/wire"
)

// Dialer opens an outbound Framed connection to addr. It is the
// session's only way of reaching the network, kept as an interface so
// tests can substitute memframe pipes for real sockets.
type Dialer interface {
	Dial(ctx context.Context, addr netid.NetAddress) (wire.Framed, error)
}

const defaultCommandBuffer = 8

// Config bundles the tunables a session needs, all sourced from the
// resolved controller Config (spec §6).
type Config struct {
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
}

// New creates a Peer session. For an incoming connection pass the
// already-accepted conn and a nil dialer/dialAddr. For an outgoing
// connection pass a nil conn plus a dialer and the target address;
// the dial happens when the controller sends a StartCommand.
func New(
	id netid.PeerId,
	direction netid.Direction,
	self netid.NodeInfo,
	conn wire.Framed,
	dialer Dialer,
	dialAddr netid.NetAddress,
	events chan<- Event,
	cfg Config,
	logger *zap.Logger,
) *Session {
	return &Session{
		id:        id,
		direction: direction,
		self:      self,
		conn:      conn,
		dialer:    dialer,
		dialAddr:  dialAddr,
		events:    events,
		cfg:       cfg,
		commands:  make(chan Command, defaultCommandBuffer),
		logger:    logger.With(zap.String("peer_id", id.String()), zap.String("direction", direction.String())),
		state:     StateInitial,
		outNonces: map[uint64]time.Time{},
	}
}

// Session is one TCP connection plus its driving state machine.
type Session struct {
	id        netid.PeerId
	direction netid.Direction
	self      netid.NodeInfo
	dialAddr  netid.NetAddress

	conn   wire.Framed
	dialer Dialer

	events   chan<- Event
	commands chan Command
	cfg      Config
	logger   *zap.Logger

	state             State
	remote            netid.NodeInfo
	nextNonce         uint64
	outNonces         map[uint64]time.Time
	lastRTT           time.Duration
	haveRTT           bool
	handshakeDeadline time.Time
}

// State returns the session's current state. Intended for tests; the
// controller learns of state changes only through emitted events.
func (s *Session) State() State { return s.state }

// LastRTT returns the most recently measured round-trip time, if any.
func (s *Session) LastRTT() (time.Duration, bool) { return s.lastRTT, s.haveRTT }

// Commands returns the command inbox handle the controller holds to
// drive this session.
func (s *Session) Commands() chan<- Command { return s.commands }

// ID returns the session's PeerId.
func (s *Session) ID() netid.PeerId { return s.id }

// Run drives the session's main loop until the session closes or ctx
// is cancelled. It always emits exactly one PeerClosed or the session
// never reaches Closed (e.g. aborted via ctx cancellation, in which
// case the controller is expected to have already removed the
// PeerRecord through its own drain-deadline bookkeeping).
func (s *Session) Run(ctx context.Context) {
	inbound := make(chan wire.Message)
	readErr := make(chan error, 1)

	if s.conn != nil {
		go s.readFeed(inbound, readErr)
	}

	if s.direction == netid.DirectionIncoming {
		s.state = StateHandshaking
		s.handshakeDeadline = time.Now().Add(s.cfg.HeartbeatTimeout)
		if err := s.sendHandshake(); err != nil {
			s.fail(ctx, err.Error())
			return
		}
	}

	var heartbeatTicker *time.Ticker
	defer func() {
		if heartbeatTicker != nil {
			heartbeatTicker.Stop()
		}
	}()

	for s.state != StateClosed {
		var tickCh <-chan time.Time
		if heartbeatTicker != nil {
			tickCh = heartbeatTicker.C
		}

		select {
		case <-ctx.Done():
			return

		case cmd := <-s.commands:
			switch cmd.Kind {
			case CmdStart:
				if s.state == StateInitial && s.direction == netid.DirectionOutgoing {
					if err := s.dial(ctx); err != nil {
						s.fail(ctx, err.Error())
						continue
					}
					go s.readFeed(inbound, readErr)
					s.state = StateHandshaking
					s.handshakeDeadline = time.Now().Add(s.cfg.HeartbeatTimeout)
					if err := s.sendHandshake(); err != nil {
						s.fail(ctx, err.Error())
					}
				}

			case CmdShutdown:
				if s.state == StateReady || s.state == StateHandshaking {
					s.beginClosing(ctx, "")
				}

			case CmdSendContactsRequest:
				if s.state == StateReady {
					if err := s.conn.Send(wire.NewContactsRequest(cmd.Graph)); err != nil {
						s.fail(ctx, (&TransportError{Cause: err}).Error())
					}
				}

			case CmdSendContactsResponse:
				if s.state == StateReady {
					if err := s.conn.Send(wire.NewContactsResponse(cmd.Graph)); err != nil {
						s.fail(ctx, (&TransportError{Cause: err}).Error())
					}
				}
			}

		case msg, ok := <-inbound:
			if !ok {
				continue
			}
			s.handleInbound(ctx, msg)
			if s.state == StateReady && heartbeatTicker == nil {
				heartbeatTicker = time.NewTicker(s.cfg.HeartbeatInterval)
			}

		case err := <-readErr:
			if s.state != StateClosing && s.state != StateClosed {
				s.fail(ctx, (&TransportError{Cause: err}).Error())
			}

		case <-tickCh:
			s.sendHeartbeat(ctx)

		case <-s.timeoutChan():
			s.reapTimeouts(ctx)

		case <-s.handshakeTimeoutChan():
			s.fail(ctx, (&HandshakeTimeoutError{}).Error())
		}
	}
}

func (s *Session) readFeed(inbound chan<- wire.Message, readErr chan<- error) {
	for {
		msg, err := s.conn.Recv()
		if err != nil {
			select {
			case readErr <- err:
			default:
			}
			return
		}
		inbound <- msg
	}
}

func (s *Session) dial(ctx context.Context) error {
	conn, err := s.dialer.Dial(ctx, s.dialAddr)
	if err != nil {
		return err
	}
	s.conn = conn
	return nil
}

func (s *Session) sendHandshake() error {
	if err := s.conn.Send(wire.NewHandshake(s.self)); err != nil {
		return &TransportError{Cause: err}
	}
	return nil
}

func (s *Session) handleInbound(ctx context.Context, msg wire.Message) {
	switch msg.Kind {
	case wire.KindHandshake:
		s.handleHandshake(ctx, msg.Handshake)

	case wire.KindHeartbeatRequest:
		if s.state != StateReady || msg.HeartbeatRequest == nil {
			return
		}
		if err := s.conn.Send(wire.NewHeartbeatResponse(msg.HeartbeatRequest.Nonce)); err != nil {
			s.fail(ctx, (&TransportError{Cause: err}).Error())
		}

	case wire.KindHeartbeatResponse:
		if msg.HeartbeatResponse == nil {
			return
		}
		s.handleHeartbeatResponse(ctx, msg.HeartbeatResponse.Nonce)

	case wire.KindContactsRequest:
		if s.state != StateReady || msg.ContactsRequest == nil {
			return
		}
		s.emit(contactsRequestEvent(s.id, msg.ContactsRequest.Graph))

	case wire.KindContactsResponse:
		if s.state != StateReady || msg.ContactsResponse == nil {
			return
		}
		s.emit(contactsResponseEvent(s.id, msg.ContactsResponse.Graph))

	case wire.KindGoodbye:
		s.beginClosing(ctx, "")

	default:
		s.logger.Debug("dropping unknown message kind", zap.Int("kind", int(msg.Kind)))
	}
}

func (s *Session) handleHandshake(ctx context.Context, hs *wire.Handshake) {
	if hs == nil {
		s.fail(ctx, (&ProtocolError{Detail: "empty handshake payload"}).Error())
		return
	}
	if s.state != StateHandshaking {
		s.fail(ctx, (&ProtocolError{Detail: "unexpected second handshake"}).Error())
		return
	}
	if netid.MajorVersion(hs.Node.ProtocolVersion) != netid.MajorVersion(netid.ProtocolVersion) {
		s.fail(ctx, (&ProtocolError{
			Detail: fmt.Sprintf("incompatible protocol version %d", hs.Node.ProtocolVersion),
		}).Error())
		return
	}

	s.remote = hs.Node
	s.state = StateReady
	s.emit(readyEvent(s.id, s.remote))
}

func (s *Session) sendHeartbeat(ctx context.Context) {
	if s.state != StateReady {
		return
	}
	nonce := s.nextNonce
	s.nextNonce++
	now := time.Now()
	s.outNonces[nonce] = now.Add(s.cfg.HeartbeatTimeout)

	if err := s.conn.Send(wire.NewHeartbeatRequest(nonce, now)); err != nil {
		s.fail(ctx, (&TransportError{Cause: err}).Error())
	}
}

func (s *Session) handleHeartbeatResponse(ctx context.Context, nonce uint64) {
	deadline, ok := s.outNonces[nonce]
	if !ok {
		return
	}
	delete(s.outNonces, nonce)
	sentAt := deadline.Add(-s.cfg.HeartbeatTimeout)
	s.lastRTT = time.Since(sentAt)
	s.haveRTT = true
	s.emit(rttEvent(s.id, s.lastRTT))
}

// timeoutChan returns a channel that fires at the earliest outstanding
// heartbeat deadline, implementing the "single reaper" design from
// spec §9 instead of one timer per request.
func (s *Session) timeoutChan() <-chan time.Time {
	if len(s.outNonces) == 0 {
		return nil
	}
	var earliest time.Time
	for _, d := range s.outNonces {
		if earliest.IsZero() || d.Before(earliest) {
			earliest = d
		}
	}
	return time.After(time.Until(earliest))
}

// handshakeTimeoutChan returns a channel that fires once the armed
// handshake deadline elapses, only while the session is waiting on the
// peer's Handshake (spec §4.2: Handshaking | timeout -> Closing ->
// PeerFailed). Outside Handshaking it returns nil so the select case
// never fires.
func (s *Session) handshakeTimeoutChan() <-chan time.Time {
	if s.state != StateHandshaking {
		return nil
	}
	return time.After(time.Until(s.handshakeDeadline))
}

func (s *Session) reapTimeouts(ctx context.Context) {
	now := time.Now()
	for nonce, deadline := range s.outNonces {
		if !now.Before(deadline) {
			delete(s.outNonces, nonce)
			s.fail(ctx, (&HeartbeatTimeoutError{Nonce: nonce}).Error())
			return
		}
	}
}

func (s *Session) fail(ctx context.Context, reason string) {
	if s.state == StateClosing || s.state == StateClosed {
		return
	}
	s.emit(failedEvent(s.id, reason))
	s.beginClosing(ctx, reason)
}

func (s *Session) beginClosing(ctx context.Context, reason string) {
	if s.state == StateClosing || s.state == StateClosed {
		return
	}
	s.state = StateClosing
	if s.conn != nil {
		_ = s.conn.Send(wire.NewGoodbye(reason))
		_ = s.conn.Close()
	}
	s.finishClosing(ctx)
}

func (s *Session) finishClosing(ctx context.Context) {
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	s.emit(closedEvent(s.id))
}

func (s *Session) emit(e Event) {
	s.events <- e
}
