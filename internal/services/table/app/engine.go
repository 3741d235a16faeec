package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hako/durafmt"
	platformerrors "github.com/louisbranch/tablesync/internal/platform/errors"
	"github.com/louisbranch/tablesync/internal/services/table/domain/action"
	"github.com/louisbranch/tablesync/internal/services/table/domain/state"
	"github.com/louisbranch/tablesync/internal/services/table/transport"
)

const (
	// DefaultPingTTL is how long a ping stays on the map.
	DefaultPingTTL = 3 * time.Second
	// DefaultEchoTimeout is how long a committed move waits for the table
	// to echo it before the token returns to where it started.
	DefaultEchoTimeout = 5 * time.Second

	defaultRetryInitial = 500 * time.Millisecond
	defaultRetryMax     = 30 * time.Second
	defaultRetryElapsed = 5 * time.Minute
)

// ErrDisconnected is returned by Run when the table connection ends and no
// reconnection is attempted.
var ErrDisconnected = errors.New("table connection closed")

// Conn is the connection an Engine drives. *transport.Session satisfies it.
type Conn interface {
	Connect(ctx context.Context) error
	Stream(ctx context.Context) (<-chan action.Result[action.Inbound], error)
	Send(ctx context.Context, a action.Outbound) error
	Close() error
}

// EngineConfig tunes an Engine.
type EngineConfig struct {
	Viewer state.Viewer
	// Reconnect retries failed and dropped connections with exponential
	// backoff. Without it the first failure ends Run.
	Reconnect   bool
	PingTTL     time.Duration
	EchoTimeout time.Duration

	RetryInitial time.Duration
	RetryMax     time.Duration
	// RetryElapsed caps how long one reconnection keeps retrying.
	RetryElapsed time.Duration
}

// Engine is the single writer of the client GameState.
//
// Authoritative results and local intents are merged into one serialized
// sequence of folds. Side effects (sending commits and pings, expiring
// pings) happen here, never inside the folds.
type Engine struct {
	conn    Conn
	cfg     EngineConfig
	intents chan state.Intent
	states  *feed

	mu      sync.RWMutex
	current state.GameState
}

// NewEngine returns an engine in the loading state.
func NewEngine(conn Conn, cfg EngineConfig) *Engine {
	if cfg.PingTTL <= 0 {
		cfg.PingTTL = DefaultPingTTL
	}
	if cfg.EchoTimeout <= 0 {
		cfg.EchoTimeout = DefaultEchoTimeout
	}
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = defaultRetryInitial
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = defaultRetryMax
	}
	if cfg.RetryElapsed <= 0 {
		cfg.RetryElapsed = defaultRetryElapsed
	}
	return &Engine{
		conn:    conn,
		cfg:     cfg,
		intents: make(chan state.Intent),
		states:  newFeed(),
		current: state.New(cfg.Viewer),
	}
}

// State returns the latest snapshot.
func (e *Engine) State() state.GameState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current
}

// Subscribe returns a channel that always offers the newest snapshot.
// Snapshots a slow reader did not take in time are skipped.
func (e *Engine) Subscribe() <-chan state.GameState {
	return e.states.subscribe()
}

// Unsubscribe releases a channel returned by Subscribe.
func (e *Engine) Unsubscribe(ch <-chan state.GameState) {
	e.states.unsubscribe(ch)
}

// Dispatch hands a local intent to the running engine.
func (e *Engine) Dispatch(ctx context.Context, in state.Intent) error {
	select {
	case e.intents <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Command sends a table command that has no optimistic effect, such as
// loading a map or ending the turn.
func (e *Engine) Command(ctx context.Context, a action.Outbound) error {
	return e.conn.Send(ctx, a)
}

// Run connects and folds until ctx ends or the connection is lost for good.
// It returns nil when ctx ends.
func (e *Engine) Run(ctx context.Context) error {
	results := make(chan action.Result[action.Inbound])
	pumpDone := make(chan error, 1)
	// Pending timers and the pump end with Run.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { pumpDone <- e.pump(runCtx, results) }()

	for {
		select {
		case <-ctx.Done():
			cancel()
			<-pumpDone
			return nil
		case r := <-results:
			e.applyResult(runCtx, r)
		case in := <-e.intents:
			e.applyIntent(runCtx, in)
		case err := <-pumpDone:
			if err != nil {
				log.Printf("engine: stopped user=%q err=%v", e.cfg.Viewer.User, err)
			}
			return err
		}
	}
}

// pump owns the connection lifecycle and forwards every inbound result. A
// failure that ends it is forwarded first so the fold sees it. A move still
// awaiting its echo when a stream ends is abandoned before reconnecting.
func (e *Engine) pump(ctx context.Context, results chan<- action.Result[action.Inbound]) error {
	defer e.conn.Close()
	for epoch := 0; ; epoch++ {
		if epoch > 0 {
			log.Printf("engine: reconnecting user=%q epoch=%d", e.cfg.Viewer.User, epoch)
		}
		stream, err := e.open(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			forward(ctx, results, action.Fail[action.Inbound](err))
			return err
		}

		last := e.drain(ctx, stream, results)
		if ctx.Err() != nil {
			return nil
		}
		if last == nil {
			last = ErrDisconnected
		}
		if !e.cfg.Reconnect || !retryable(ctx, last) {
			if errors.Is(last, ErrDisconnected) {
				return last
			}
			return fmt.Errorf("%w: %w", ErrDisconnected, last)
		}
		if err := e.Dispatch(ctx, state.AbandonPending{}); err != nil {
			return nil
		}
	}
}

// drain forwards one stream until it ends and returns its last error.
func (e *Engine) drain(ctx context.Context, stream <-chan action.Result[action.Inbound], results chan<- action.Result[action.Inbound]) error {
	var last error
	for {
		select {
		case <-ctx.Done():
			return last
		case r, ok := <-stream:
			if !ok {
				return last
			}
			if r.Err != nil {
				last = r.Err
				// A lost network is retried before it may end the session.
				if e.cfg.Reconnect && platformerrors.As(r.Err).Terminal() && retryable(ctx, r.Err) {
					continue
				}
			}
			if !forward(ctx, results, r) {
				return last
			}
		}
	}
}

func forward(ctx context.Context, results chan<- action.Result[action.Inbound], r action.Result[action.Inbound]) bool {
	select {
	case results <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) open(ctx context.Context) (<-chan action.Result[action.Inbound], error) {
	if err := e.connect(ctx); err != nil {
		return nil, err
	}
	return e.conn.Stream(ctx)
}

func (e *Engine) connect(ctx context.Context) error {
	if !e.cfg.Reconnect {
		return e.conn.Connect(ctx)
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.cfg.RetryInitial
	policy.MaxInterval = e.cfg.RetryMax
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := e.conn.Connect(ctx)
		if err != nil && !retryable(ctx, err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(e.cfg.RetryElapsed),
		backoff.WithNotify(func(err error, delay time.Duration) {
			log.Printf("engine: connect failed, retrying in %s err=%v", durafmt.Parse(delay).LimitFirstN(2), err)
		}),
	)
	return err
}

// retryable reports whether a connection failure may heal on its own. Losing
// the network is worth retrying; a rejected session is not.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var dataErr *platformerrors.Error
	if errors.As(err, &dataErr) {
		return !dataErr.Terminal() || dataErr.Code == platformerrors.CodeNoInternet
	}
	return true
}

func (e *Engine) applyResult(ctx context.Context, r action.Result[action.Inbound]) {
	prev := e.State()
	next := state.ApplyResult(prev, r)
	e.publish(next)

	if next.Phase == state.PhaseError && prev.Phase != state.PhaseError {
		log.Printf("engine: session ended kind=%s code=%s err=%v", next.Err.Kind, next.Err.Code, next.Err)
	}
	for _, p := range next.Map.Pings {
		if p.Seq > prev.Map.PingSeq {
			e.later(ctx, e.cfg.PingTTL, state.ExpirePing{Seq: p.Seq})
		}
	}
}

func (e *Engine) applyIntent(ctx context.Context, in state.Intent) {
	prev := e.State()
	next := state.ApplyIntent(prev, in)
	if out := outboundFor(prev, next, in); out != nil {
		err := e.conn.Send(ctx, out)
		switch {
		case errors.Is(err, transport.ErrDropped):
			// The connection is intact; only this frame is lost.
			log.Printf("engine: send dropped action=%q", out.Type())
			next = prev
		case err != nil:
			log.Printf("engine: send failed action=%q err=%v", out.Type(), err)
			next = state.ApplyResult(prev, action.Fail[action.Inbound](err))
		case next.Map.Pending != nil && prev.Map.Pending == nil:
			p := next.Map.Pending
			e.later(ctx, e.cfg.EchoTimeout, state.AbandonPending{CMID: p.CMID, X: p.X, Y: p.Y})
		}
	}
	e.publish(next)
}

// outboundFor returns the command an intent produces, if any. A committed
// move carries the viewer as owner so the echo is recognized as local.
func outboundFor(prev, next state.GameState, in state.Intent) action.Outbound {
	switch in := in.(type) {
	case state.CommitMove:
		pending := next.Map.Pending
		if prev.Map.Pending != nil || pending == nil {
			return nil
		}
		c, _ := next.Map.Character(pending.CMID)
		return action.Moved{
			Name:  c.Name,
			X:     pending.X,
			Y:     pending.Y,
			Owner: prev.Viewer.User,
			CMID:  pending.CMID,
		}
	case state.Target:
		if prev.Phase == state.PhaseActive && prev.Map.Toggles.Ping {
			return action.Pinged{X: in.X, Y: in.Y}
		}
	}
	return nil
}

// later dispatches in after d unless ctx ends first.
func (e *Engine) later(ctx context.Context, d time.Duration, in state.Intent) {
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
		_ = e.Dispatch(ctx, in)
	}()
}

func (e *Engine) publish(next state.GameState) {
	e.mu.Lock()
	e.current = next
	e.mu.Unlock()
	e.states.publish(next)
}
