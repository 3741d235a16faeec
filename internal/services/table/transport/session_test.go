package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"reflect"
	"sync"
	"testing"
	"time"

	platformerrors "github.com/louisbranch/tablesync/internal/platform/errors"
	"github.com/louisbranch/tablesync/internal/services/table/domain/action"
	"github.com/louisbranch/tablesync/internal/testkit/tablefakes"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

type failingToken struct{}

func (failingToken) Token(context.Context) (string, error) { return "", errors.New("store offline") }

func newTestSession(t *testing.T, table *tablefakes.Authority) *Session {
	t.Helper()
	session, err := NewSession(Config{
		URL:    table.URL(),
		Origin: table.Origin(),
		User:   "ana",
		Tokens: staticToken("secret"),
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func nextResult(t *testing.T, stream <-chan action.Result[action.Inbound]) action.Result[action.Inbound] {
	t.Helper()
	select {
	case r, ok := <-stream:
		if !ok {
			t.Fatal("stream closed")
		}
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}
	return action.Result[action.Inbound]{}
}

func waitClosed(t *testing.T, stream <-chan action.Result[action.Inbound]) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for stream to close")
		}
	}
}

func TestNewSessionValidates(t *testing.T) {
	if _, err := NewSession(Config{}); err == nil {
		t.Fatal("expected error for missing url")
	}
	if _, err := NewSession(Config{URL: "ws://x", Policy: "spill"}); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	table := tablefakes.NewAuthority(t)
	session := newTestSession(t, table)
	ctx := context.Background()

	if err := session.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := session.Connect(ctx); err != nil {
		t.Fatalf("second connect: %v", err)
	}
	if got := session.Handshakes(); got != 1 {
		t.Fatalf("handshakes = %d, want 1", got)
	}
	if got := session.State(); got != StateConnected {
		t.Fatalf("state = %s, want connected", got)
	}

	table.WaitConn(t)
	if got := table.Authorization(0); got != "Bearer secret" {
		t.Fatalf("authorization = %q, want bearer token", got)
	}
	if got := table.Next(t); !reflect.DeepEqual(got, action.Connect{User: "ana"}) {
		t.Fatalf("handshake frame = %#v", got)
	}
	if got := table.Connections(); got != 1 {
		t.Fatalf("connections = %d, want 1", got)
	}
}

func TestCloseThenConnectOpensNewEpoch(t *testing.T) {
	table := tablefakes.NewAuthority(t)
	session := newTestSession(t, table)
	ctx := context.Background()

	if err := session.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := session.State(); got != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", got)
	}
	if err := session.Send(ctx, action.NewTurn{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("send after close err = %v, want ErrNotConnected", err)
	}
	if err := session.Connect(ctx); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if got := session.Handshakes(); got != 2 {
		t.Fatalf("handshakes = %d, want 2", got)
	}
}

func TestOperationsRequireConnection(t *testing.T) {
	session, err := NewSession(Config{URL: "ws://127.0.0.1:1/ws"})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if err := session.Send(context.Background(), action.NewTurn{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("send err = %v, want ErrNotConnected", err)
	}
	if _, err := session.Stream(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("stream err = %v, want ErrNotConnected", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("close idle session: %v", err)
	}
}

func TestStreamDeliversInOrderAndSurvivesBadFrames(t *testing.T) {
	table := tablefakes.NewAuthority(t)
	session := newTestSession(t, table)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := session.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	stream, err := session.Stream(ctx)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if _, err := session.Stream(ctx); !errors.Is(err, ErrStreamActive) {
		t.Fatalf("second stream err = %v, want ErrStreamActive", err)
	}

	conn := table.WaitConn(t)
	table.Send(t, conn, action.Moved{CMID: "c1", X: 1, Y: 2})
	table.SendRaw(t, conn, `{"action":"Unknown"}`)
	table.Send(t, conn, action.Pinged{X: 3, Y: 4})

	if r := nextResult(t, stream); !reflect.DeepEqual(r.Value, action.Moved{CMID: "c1", X: 1, Y: 2}) {
		t.Fatalf("first = %#v", r)
	}
	r := nextResult(t, stream)
	var dataErr *platformerrors.Error
	if !errors.As(r.Err, &dataErr) || dataErr.Kind != platformerrors.KindWebSocket || dataErr.Code != platformerrors.CodeSerialization {
		t.Fatalf("second = %#v, want websocket serialization error", r)
	}
	if r := nextResult(t, stream); !reflect.DeepEqual(r.Value, action.Pinged{X: 3, Y: 4}) {
		t.Fatalf("third = %#v", r)
	}
}

func TestSendPreservesOrder(t *testing.T) {
	table := tablefakes.NewAuthority(t)
	session := newTestSession(t, table)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := session.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	want := []action.Outbound{
		action.Moved{Name: "Aria", X: 3, Y: 4, Owner: "ana", CMID: "c1"},
		action.Pinged{X: 5, Y: 6},
		action.EndTurn{},
	}
	for _, a := range want {
		if err := session.Send(ctx, a); err != nil {
			t.Fatalf("send %T: %v", a, err)
		}
	}
	if _, err := session.Stream(ctx); err != nil {
		t.Fatalf("stream: %v", err)
	}

	if got := table.Next(t); !reflect.DeepEqual(got, action.Connect{User: "ana"}) {
		t.Fatalf("first frame = %#v, want handshake", got)
	}
	for _, w := range want {
		if got := table.Next(t); !reflect.DeepEqual(got, w) {
			t.Fatalf("frame = %#v, want %#v", got, w)
		}
	}
}

func TestCancelStreamClosesSession(t *testing.T) {
	table := tablefakes.NewAuthority(t)
	session := newTestSession(t, table)
	ctx, cancel := context.WithCancel(context.Background())

	if err := session.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	stream, err := session.Stream(ctx)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	cancel()
	waitClosed(t, stream)

	if got := session.State(); got != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", got)
	}
	if err := session.Send(context.Background(), action.NewTurn{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("send err = %v, want ErrNotConnected", err)
	}
}

func TestServerCloseIsRecoverable(t *testing.T) {
	table := tablefakes.NewAuthority(t)
	session := newTestSession(t, table)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := session.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	stream, err := session.Stream(ctx)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	conn := table.WaitConn(t)
	_ = conn.Close()

	r := nextResult(t, stream)
	var dataErr *platformerrors.Error
	if !errors.As(r.Err, &dataErr) || dataErr.Terminal() {
		t.Fatalf("result = %#v, want recoverable error", r)
	}
	waitClosed(t, stream)
	if got := session.State(); got != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", got)
	}
}

func TestRejectedHandshakeIsTerminal(t *testing.T) {
	table := tablefakes.NewAuthority(t)
	table.Reject(http.StatusUnauthorized)
	session := newTestSession(t, table)

	err := session.Connect(context.Background())
	var dataErr *platformerrors.Error
	if !errors.As(err, &dataErr) || dataErr.Kind != platformerrors.KindHTTP || dataErr.Code != platformerrors.CodeUnauthorized {
		t.Fatalf("err = %v, want http unauthorized", err)
	}
	if got := session.State(); got != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", got)
	}
	if got := session.Handshakes(); got != 0 {
		t.Fatalf("handshakes = %d, want 0", got)
	}
}

func TestConnectObservesCancellation(t *testing.T) {
	table := tablefakes.NewAuthority(t)
	session := newTestSession(t, table)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := session.Connect(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if got := session.State(); got != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", got)
	}
	if err := session.Send(context.Background(), action.NewTurn{}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("send err = %v, want ErrNotConnected", err)
	}
}

func TestTokenFailureIsLocal(t *testing.T) {
	table := tablefakes.NewAuthority(t)
	session, err := NewSession(Config{URL: table.URL(), Origin: table.Origin(), Tokens: failingToken{}})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	err = session.Connect(context.Background())
	var dataErr *platformerrors.Error
	if !errors.As(err, &dataErr) || dataErr.Kind != platformerrors.KindLocal {
		t.Fatalf("err = %v, want local error", err)
	}
	if got := table.Connections(); got != 0 {
		t.Fatalf("connections = %d, want 0", got)
	}
}

func TestConnectWithoutTokenOmitsHeader(t *testing.T) {
	table := tablefakes.NewAuthority(t)
	session, err := NewSession(Config{URL: table.URL(), Origin: table.Origin(), User: "gm", Tokens: staticToken("")})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	defer session.Close()
	if err := session.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	table.WaitConn(t)
	if got := table.Authorization(0); got != "" {
		t.Fatalf("authorization = %q, want empty", got)
	}
}

// stalledTable accepts TCP connections but never answers the upgrade.
func stalledTable(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			_ = conn.Close()
		}
	})
	return "ws://" + ln.Addr().String() + "/ws"
}

func waitState(t *testing.T, session *Session, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for session.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %s, want %s", session.State(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSendDuringStalledConnectFailsFast(t *testing.T) {
	session, err := NewSession(Config{URL: stalledTable(t), Origin: "http://localhost/", User: "ana", Tokens: staticToken("secret")})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancelConnect()
	connected := make(chan error, 1)
	go func() { connected <- session.Connect(connectCtx) }()
	waitState(t, session, StateConnecting)

	sendCtx, cancelSend := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancelSend()
	start := time.Now()
	err = session.Send(sendCtx, action.NewTurn{})
	if elapsed := time.Since(start); elapsed >= 100*time.Millisecond {
		t.Fatalf("send took %v, want it to return before its deadline", elapsed)
	}
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("send err = %v, want ErrNotConnected", err)
	}

	start = time.Now()
	if err := session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	select {
	case err := <-connected:
		if !errors.Is(err, ErrConnectAborted) {
			t.Fatalf("connect err = %v, want ErrConnectAborted", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("close did not abort the stalled connect")
	}
	if elapsed := time.Since(start); elapsed >= time.Second {
		t.Fatalf("abort took %v", elapsed)
	}
	if got := session.State(); got != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", got)
	}
	if got := session.Handshakes(); got != 0 {
		t.Fatalf("handshakes = %d, want 0", got)
	}
}

func TestConcurrentConnectJoinsAttempt(t *testing.T) {
	table := tablefakes.NewAuthority(t)
	session := newTestSession(t, table)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- session.Connect(context.Background()) }()
	}
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("connect: %v", err)
		}
	}
	if got := session.Handshakes(); got != 1 {
		t.Fatalf("handshakes = %d, want 1", got)
	}
}

func TestRejectedReconnectIsRecoverable(t *testing.T) {
	table := tablefakes.NewAuthority(t)
	session := newTestSession(t, table)
	ctx := context.Background()
	if err := session.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	table.Reject(http.StatusServiceUnavailable)
	err := session.Connect(ctx)
	var dataErr *platformerrors.Error
	if !errors.As(err, &dataErr) || dataErr.Kind != platformerrors.KindWebSocket || dataErr.Terminal() {
		t.Fatalf("err = %v, want recoverable websocket error", err)
	}

	table.Reject(0)
	if err := session.Connect(ctx); err != nil {
		t.Fatalf("connect after recovery: %v", err)
	}
	if got := session.Handshakes(); got != 2 {
		t.Fatalf("handshakes = %d, want 2", got)
	}
}

func TestSendReportsDropNewest(t *testing.T) {
	table := tablefakes.NewAuthority(t)
	session, err := NewSession(Config{
		URL:        table.URL(),
		Origin:     table.Origin(),
		User:       "ana",
		OutboxSize: 1,
		Policy:     PolicyDropNewest,
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	ctx := context.Background()
	if err := session.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// No stream is running, so nothing drains the outbox.
	if err := session.Send(ctx, action.NewTurn{}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	move := action.Moved{Name: "Aria", X: 3, Y: 4, Owner: "ana", CMID: "c1"}
	if err := session.Send(ctx, move); !errors.Is(err, ErrDropped) {
		t.Fatalf("second send err = %v, want ErrDropped", err)
	}
	if got := session.Dropped(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
}
