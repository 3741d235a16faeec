package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	platformerrors "github.com/louisbranch/tablesync/internal/platform/errors"
	"github.com/louisbranch/tablesync/internal/platform/errors/i18n"
	"github.com/louisbranch/tablesync/internal/services/table/domain/action"
	"github.com/louisbranch/tablesync/internal/services/table/domain/state"
)

type stateFunc func() state.GameState

func (f stateFunc) State() state.GameState { return f() }

func activeSnapshot() state.GameState {
	s := state.New(player)
	for _, a := range setupActions() {
		s = state.ApplyResult(s, action.Ok(a))
	}
	s = state.ApplyIntent(s, state.Select{CMID: "c1"})
	s = state.ApplyIntent(s, state.PointerMove{X: 3, Y: 4})
	return state.ApplyResult(s, action.Fail[action.Inbound](platformerrors.WebSocket(platformerrors.CodeUnknown, "dropped")))
}

func getJSON(t *testing.T, handler http.Handler, path string, v any) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s status = %d, want %d", path, rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q, want application/json", ct)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
}

func TestInspectorUp(t *testing.T) {
	handler := NewInspector("", stateFunc(func() state.GameState { return state.New(player) }), nil).Handler()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/up", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("GET /up = %d %q, want 200 OK", rec.Code, rec.Body.String())
	}
}

func TestInspectorStateActive(t *testing.T) {
	handler := NewInspector("", stateFunc(activeSnapshot), i18n.GetCatalog("pt-BR")).Handler()

	var got stateView
	getJSON(t, handler, "/state", &got)
	if got.Phase != state.PhaseActive.String() || got.User != "ana" {
		t.Fatalf("view = %s %q, want active ana", got.Phase, got.User)
	}
	if got.Map == nil {
		t.Fatal("expected map")
	}
	if got.Map.MapID != "m1" || got.Map.Turn != "c1" || !got.Map.MyTurn {
		t.Fatalf("map = %+v, want m1 with c1 holding my turn", got.Map)
	}
	if len(got.Map.Characters) != 2 {
		t.Fatalf("characters = %d, want 2", len(got.Map.Characters))
	}
	if got.Map.Preview == nil || got.Map.Preview.Distance != 5 {
		t.Fatalf("preview = %+v, want distance 5", got.Map.Preview)
	}
	if end := got.Map.Preview.Points[len(got.Map.Preview.Points)-1]; end != (pointView{X: 3, Y: 4}) {
		t.Fatalf("preview end = %+v, want (3, 4)", end)
	}
	if got.Map.Banner == nil || got.Map.Banner.Message != "A conexão com a mesa foi interrompida." {
		t.Fatalf("banner = %+v, want localized interruption", got.Map.Banner)
	}
	if len(got.Roster) != 2 || got.Roster[0].Label != "1st" {
		t.Fatalf("roster = %+v, want two ranked entries", got.Roster)
	}
}

func TestInspectorStateError(t *testing.T) {
	terminal := state.ApplyResult(state.New(player), action.Fail[action.Inbound](platformerrors.HTTP(platformerrors.CodeUnauthorized, "401")))
	handler := NewInspector("", stateFunc(func() state.GameState { return terminal }), nil).Handler()

	var got stateView
	getJSON(t, handler, "/state", &got)
	if got.Map != nil {
		t.Fatalf("map = %+v, want nil", got.Map)
	}
	want := errorView{Kind: "HTTP", Code: "UNAUTHORIZED", Message: "Your session has expired. Sign in again."}
	if got.Error == nil || *got.Error != want {
		t.Fatalf("error = %+v, want %+v", got.Error, want)
	}
}

func TestInspectorListenAndServe(t *testing.T) {
	inspector := NewInspector("127.0.0.1:0", stateFunc(func() state.GameState { return state.New(player) }), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- inspector.ListenAndServe(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("listen and serve: %v", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for shutdown")
	}
}

func TestInspectorListenFailure(t *testing.T) {
	busy := httptest.NewServer(http.NotFoundHandler())
	defer busy.Close()
	addr := busy.Listener.Addr().String()

	inspector := NewInspector(addr, stateFunc(func() state.GameState { return state.New(player) }), nil)
	if err := inspector.ListenAndServe(context.Background()); err == nil {
		t.Fatal("expected listen error")
	}
}
