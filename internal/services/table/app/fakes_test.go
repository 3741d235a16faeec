package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/tablesync/internal/services/table/domain/action"
	"github.com/louisbranch/tablesync/internal/services/table/domain/state"
)

const waitTimeout = 2 * time.Second

var (
	player = state.Viewer{User: "ana"}
	master = state.Viewer{User: "gm", Admin: true}
)

func testCharacters() []action.Character {
	return []action.Character{
		{ID: "ch-1", CMID: "c1", Owner: "ana", Name: "Aria", Color: "red", Speed: 10, X: 0, Y: 0},
		{ID: "ch-2", CMID: "c2", Owner: "bob", Name: "Borin", Color: "blue", Speed: 6, X: 50, Y: 50},
	}
}

// setupActions puts the table on map m1 with Aria holding the turn.
func setupActions() []action.Inbound {
	return []action.Inbound{
		action.MapLoaded{MapID: "m1", ImageRef: "maps/m1.png", Scale: 1},
		action.Initiate{Characters: testCharacters()},
		action.TurnPassed{CMID: "c1"},
	}
}

type stream = chan action.Result[action.Inbound]

// fakeConn opens a fresh stream per connection and records sent commands.
type fakeConn struct {
	mu          sync.Mutex
	connectErrs []error
	sendErr     error
	connects    int
	closes      int
	sent        []action.Outbound

	streams chan stream
}

func newFakeConn() *fakeConn {
	return &fakeConn{streams: make(chan stream, 8)}
}

func (f *fakeConn) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	return nil
}

func (f *fakeConn) Stream(context.Context) (<-chan action.Result[action.Inbound], error) {
	s := make(stream, 16)
	f.streams <- s
	return s, nil
}

func (f *fakeConn) Send(_ context.Context, a action.Outbound) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, a)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeConn) Connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeConn) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func (f *fakeConn) Sent() []action.Outbound {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]action.Outbound(nil), f.sent...)
}

func (f *fakeConn) nextStream(t *testing.T) stream {
	t.Helper()
	select {
	case s := <-f.streams:
		return s
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for stream")
		return nil
	}
}

func push(s stream, actions ...action.Inbound) {
	for _, a := range actions {
		s <- action.Ok(a)
	}
}

// runner runs an engine until the test ends.
type runner struct {
	engine *Engine
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func startEngine(t *testing.T, conn Conn, cfg EngineConfig) *runner {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := &runner{engine: NewEngine(conn, cfg), cancel: cancel, done: make(chan struct{})}
	go func() {
		r.err = r.engine.Run(ctx)
		close(r.done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-r.done:
		case <-time.After(waitTimeout):
			t.Error("engine did not stop")
		}
	})
	return r
}

func (r *runner) wait(t *testing.T) error {
	t.Helper()
	select {
	case <-r.done:
		return r.err
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for engine to stop")
		return nil
	}
}

func (r *runner) dispatch(t *testing.T, intents ...state.Intent) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	for _, in := range intents {
		if err := r.engine.Dispatch(ctx, in); err != nil {
			t.Fatalf("dispatch %T: %v", in, err)
		}
	}
}

func eventually(t *testing.T, engine *Engine, what string, ok func(state.GameState) bool) state.GameState {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for {
		s := engine.State()
		if ok(s) {
			return s
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s (phase=%s)", what, s.Phase)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func holdsTurn(cmID string) func(state.GameState) bool {
	return func(s state.GameState) bool { return s.Map.TurnCMID == cmID }
}
