// Package tablefakes provides an in-process table authority for tests.
package tablefakes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/tablesync/internal/services/table/domain/action"
	"github.com/louisbranch/tablesync/internal/services/table/wire"
	"golang.org/x/net/websocket"
)

const waitTimeout = 2 * time.Second

// Authority accepts client connections on /ws, records their handshake
// headers, and decodes every frame they send.
type Authority struct {
	Server *httptest.Server

	mu      sync.Mutex
	reject  int
	headers []http.Header
	conns   []*websocket.Conn

	connected chan *websocket.Conn
	received  chan action.Outbound
}

// NewAuthority starts an authority that lives until the test ends.
func NewAuthority(t testing.TB) *Authority {
	t.Helper()
	a := &Authority{
		connected: make(chan *websocket.Conn, 16),
		received:  make(chan action.Outbound, 256),
	}
	ws := websocket.Handler(a.serve)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		reject := a.reject
		a.mu.Unlock()
		if reject != 0 {
			http.Error(w, http.StatusText(reject), reject)
			return
		}
		ws.ServeHTTP(w, r)
	})
	a.Server = httptest.NewServer(mux)
	t.Cleanup(a.Server.Close)
	t.Cleanup(a.closeConns)
	return a
}

// URL returns the WebSocket endpoint.
func (a *Authority) URL() string {
	return "ws" + strings.TrimPrefix(a.Server.URL, "http") + "/ws"
}

// Origin returns an origin accepted by the endpoint.
func (a *Authority) Origin() string {
	return a.Server.URL
}

// Reject makes subsequent upgrades fail with status; zero accepts again.
func (a *Authority) Reject(status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.reject = status
}

// Connections returns how many connections were accepted.
func (a *Authority) Connections() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}

// Authorization returns the Authorization header of the i-th connection.
func (a *Authority) Authorization(i int) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.headers) {
		return ""
	}
	return a.headers[i].Get("Authorization")
}

// WaitConn returns the next accepted connection.
func (a *Authority) WaitConn(t testing.TB) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-a.connected:
		return conn
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

// Next returns the next frame received from any client.
func (a *Authority) Next(t testing.TB) action.Outbound {
	t.Helper()
	select {
	case out := <-a.received:
		return out
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for frame")
		return nil
	}
}

// Quiet reports whether no frame arrives within d.
func (a *Authority) Quiet(d time.Duration) bool {
	select {
	case <-a.received:
		return false
	case <-time.After(d):
		return true
	}
}

// Send writes an authoritative action to conn.
func (a *Authority) Send(t testing.TB, conn *websocket.Conn, in action.Inbound) {
	t.Helper()
	data, err := wire.EncodeInbound(in)
	if err != nil {
		t.Fatalf("encode %T: %v", in, err)
	}
	a.SendRaw(t, conn, string(data))
}

// SendRaw writes a text frame to conn as is.
func (a *Authority) SendRaw(t testing.TB, conn *websocket.Conn, frame string) {
	t.Helper()
	if err := websocket.Message.Send(conn, frame); err != nil {
		t.Fatalf("send frame: %v", err)
	}
}

func (a *Authority) serve(conn *websocket.Conn) {
	a.mu.Lock()
	a.headers = append(a.headers, conn.Request().Header.Clone())
	a.conns = append(a.conns, conn)
	a.mu.Unlock()
	a.connected <- conn

	for {
		var data []byte
		if err := websocket.Message.Receive(conn, &data); err != nil {
			return
		}
		out, err := wire.DecodeOutbound(data)
		if err != nil {
			continue
		}
		select {
		case a.received <- out:
		default:
		}
	}
}

func (a *Authority) closeConns() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, conn := range a.conns {
		_ = conn.Close()
	}
}
