package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	platformerrors "github.com/louisbranch/tablesync/internal/platform/errors"
	platformotel "github.com/louisbranch/tablesync/internal/platform/otel"
	"github.com/louisbranch/tablesync/internal/platform/timeouts"
	"github.com/louisbranch/tablesync/internal/services/table/domain/action"
	"github.com/louisbranch/tablesync/internal/services/table/wire"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// State is a step of the connection lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// TokenProvider supplies the opaque bearer token. An empty token connects
// without an Authorization header.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Config describes how a Session reaches the table.
type Config struct {
	URL    string
	Origin string
	// User is announced in the Connect frame of every connection.
	User   string
	Tokens TokenProvider
	// OutboxSize bounds queued outbound frames per connection.
	OutboxSize int
	Policy     OverflowPolicy
	// SendRate caps outbound frames per second; zero disables the cap.
	SendRate float64
}

// Session is a single logical connection to the table.
//
// mu guards the lifecycle state and the live connection. Delivery is
// at-most-once per connection: frames queued on a connection that drops are
// discarded, never replayed on the next one.
type Session struct {
	cfg     Config
	limiter *rate.Limiter
	tracer  trace.Tracer

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	outbox     *Outbox
	streamConn *websocket.Conn
	handshakes int
	dropped    uint64

	// attempt identifies the latest dial; a Close during the dial bumps it.
	attempt    uint64
	dialing    chan struct{}
	cancelDial context.CancelFunc
}

// NewSession validates cfg and returns a disconnected session.
func NewSession(cfg Config) (*Session, error) {
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.URL == "" {
		return nil, errors.New("transport: url is required")
	}
	if strings.TrimSpace(cfg.Origin) == "" {
		cfg.Origin = "http://localhost/"
	}
	policy, err := ParseOverflowPolicy(string(cfg.Policy))
	if err != nil {
		return nil, err
	}
	cfg.Policy = policy

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.SendRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), max(1, int(cfg.SendRate)))
	}
	return &Session{
		cfg:     cfg,
		limiter: limiter,
		tracer:  platformotel.Tracer("transport"),
	}, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Handshakes returns how many connections have completed the handshake.
func (s *Session) Handshakes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakes
}

// Dropped returns how many outbound frames overflow discarded.
func (s *Session) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := s.dropped
	if s.outbox != nil {
		total += s.outbox.Dropped()
	}
	return total
}

// Connect opens the connection and sends the Connect handshake. It returns
// immediately when a connection is already live, and joins an attempt that
// is already dialing. The lock is not held while dialing, so Send and Close
// never wait on the network.
func (s *Session) Connect(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "transport.Connect")
	defer span.End()

	s.mu.Lock()
	switch {
	case s.state == StateConnected && s.conn != nil:
		s.mu.Unlock()
		return nil
	case s.state == StateConnecting:
		dialing := s.dialing
		s.mu.Unlock()
		return s.awaitDial(ctx, dialing)
	}
	s.attempt++
	attempt := s.attempt
	dialing := make(chan struct{})
	dialCtx, cancel := context.WithCancel(ctx)
	s.state = StateConnecting
	s.dialing = dialing
	s.cancelDial = cancel
	reconnect := s.handshakes > 0
	s.mu.Unlock()
	defer close(dialing)
	defer cancel()

	conn, err := s.dial(dialCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt != attempt || s.state != StateConnecting {
		// Close ran while dialing; the handle must not be installed.
		if conn != nil {
			_ = conn.Close()
		}
		if err = ctx.Err(); err == nil {
			err = ErrConnectAborted
		}
		span.RecordError(err)
		return err
	}
	s.cancelDial = nil
	if err != nil {
		s.state = StateDisconnected
		err = normalizeDial(ctx, err, reconnect)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Printf("transport: connect failed url=%q reconnect=%t err=%v", s.cfg.URL, reconnect, err)
		return err
	}

	s.conn = conn
	s.outbox = NewOutbox(s.cfg.OutboxSize, s.cfg.Policy)
	s.state = StateConnected
	s.handshakes++
	log.Printf("transport: connected url=%q user=%q handshakes=%d", s.cfg.URL, s.cfg.User, s.handshakes)
	return nil
}

// awaitDial waits for another caller's attempt and reports its outcome.
func (s *Session) awaitDial(ctx context.Context, dialing <-chan struct{}) error {
	select {
	case <-dialing:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateConnected && s.conn != nil {
		return nil
	}
	return ErrNotConnected
}

// dial establishes the socket and writes the Connect frame. Any failure
// closes the socket so no half-open handle is installed.
func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	token := ""
	if s.cfg.Tokens != nil {
		var err error
		token, err = s.cfg.Tokens.Token(ctx)
		if err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindLocal, platformerrors.CodeUnknown, "load token", err)
		}
	}

	wsConfig, err := websocket.NewConfig(s.cfg.URL, s.cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("websocket config: %w", err)
	}
	if token = strings.TrimSpace(token); token != "" {
		wsConfig.Header.Set("Authorization", "Bearer "+token)
	} else {
		log.Printf("transport: connecting without token url=%q", s.cfg.URL)
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeouts.Dial)
	defer cancel()
	conn, err := wsConfig.DialContext(dialCtx)
	if err != nil {
		return nil, err
	}

	frame, err := wire.EncodeOutbound(action.Connect{User: s.cfg.User})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(timeouts.Handshake))
	if err := websocket.Message.Send(conn, string(frame)); err != nil {
		_ = conn.Close()
		return nil, err
	}
	_ = conn.SetWriteDeadline(time.Time{})
	if err := ctx.Err(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// Stream starts the reader and writer for the live connection and returns
// the inbound results in wire order. Undecodable frames become error items
// and the stream continues. The stream ends when ctx ends or the connection
// fails, and the connection is closed with it. A connection supports one
// stream.
func (s *Session) Stream(ctx context.Context) (<-chan action.Result[action.Inbound], error) {
	s.mu.Lock()
	if s.state != StateConnected || s.conn == nil {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	if s.streamConn == s.conn {
		s.mu.Unlock()
		return nil, ErrStreamActive
	}
	conn, outbox := s.conn, s.outbox
	s.streamConn = conn
	s.mu.Unlock()

	out := make(chan action.Result[action.Inbound])
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.readLoop(gctx, conn, out) })
	g.Go(func() error { return s.writeLoop(gctx, conn, outbox, out) })
	go func() {
		<-gctx.Done()
		_ = conn.Close()
	}()
	go func() {
		err := g.Wait()
		cancel()
		s.endStream(conn, err)
		close(out)
	}()
	return out, nil
}

func (s *Session) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- action.Result[action.Inbound]) error {
	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			if ctx.Err() != nil || !s.isCurrent(conn) {
				return nil
			}
			err = normalize(ctx, err)
			log.Printf("transport: read failed url=%q err=%v", s.cfg.URL, err)
			emit(ctx, out, action.Fail[action.Inbound](err))
			return err
		}

		var result action.Result[action.Inbound]
		inbound, err := wire.DecodeInbound(data)
		if err != nil {
			log.Printf("transport: undecodable frame err=%v", err)
			result = action.Fail[action.Inbound](platformerrors.Wrap(
				platformerrors.KindWebSocket, platformerrors.CodeSerialization, "undecodable frame", err))
		} else {
			result = action.Ok(inbound)
		}
		if !emit(ctx, out, result) {
			return nil
		}
	}
}

func (s *Session) writeLoop(ctx context.Context, conn *websocket.Conn, outbox *Outbox, out chan<- action.Result[action.Inbound]) error {
	for {
		frame, ok := outbox.Next(ctx)
		if !ok {
			return nil
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil
		}
		if err := websocket.Message.Send(conn, string(frame)); err != nil {
			if ctx.Err() != nil || !s.isCurrent(conn) {
				return nil
			}
			err = normalize(ctx, err)
			log.Printf("transport: write failed url=%q err=%v", s.cfg.URL, err)
			emit(ctx, out, action.Fail[action.Inbound](err))
			return err
		}
	}
}

func emit(ctx context.Context, out chan<- action.Result[action.Inbound], result action.Result[action.Inbound]) bool {
	select {
	case out <- result:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Session) isCurrent(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == conn
}

func (s *Session) endStream(conn *websocket.Conn, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.streamConn == conn {
		s.streamConn = nil
	}
	if s.conn != conn {
		return
	}
	if err != nil {
		log.Printf("transport: stream ended url=%q err=%v", s.cfg.URL, err)
	}
	_ = s.closeLocked()
}

// Send encodes a and queues it for the writer according to the outbox
// overflow policy.
func (s *Session) Send(ctx context.Context, a action.Outbound) error {
	if a == nil {
		return errors.New("transport: send nil action")
	}
	ctx, span := s.tracer.Start(ctx, "transport.Send", trace.WithAttributes(
		attribute.String("tablesync.action", string(a.Type())),
	))
	defer span.End()

	frame, err := wire.EncodeOutbound(a)
	if err != nil {
		span.RecordError(err)
		return err
	}

	s.mu.Lock()
	if s.state != StateConnected || s.outbox == nil {
		s.mu.Unlock()
		return ErrNotConnected
	}
	outbox := s.outbox
	s.mu.Unlock()

	before := outbox.Dropped()
	if err := outbox.Push(ctx, frame); err != nil {
		switch {
		case errors.Is(err, ErrClosed):
			return ErrNotConnected
		case errors.Is(err, ErrDropped):
			log.Printf("transport: outbox full policy=%s action=%q dropped=%d", s.cfg.Policy, a.Type(), outbox.Dropped())
		}
		span.RecordError(err)
		return err
	}
	if dropped := outbox.Dropped(); dropped > before {
		log.Printf("transport: outbox full policy=%s action=%q dropped=%d", s.cfg.Policy, a.Type(), dropped)
	}
	return nil
}

// Close releases the live connection, if any. A running stream ends.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Session) closeLocked() error {
	if s.state == StateConnecting {
		s.attempt++
		if s.cancelDial != nil {
			s.cancelDial()
			s.cancelDial = nil
		}
	}
	if s.conn == nil {
		s.state = StateDisconnected
		return nil
	}
	s.state = StateClosing
	s.outbox.Close()
	s.dropped += s.outbox.Dropped()
	err := s.conn.Close()
	s.conn = nil
	s.outbox = nil
	s.state = StateDisconnected
	log.Printf("transport: closed url=%q", s.cfg.URL)
	return err
}
