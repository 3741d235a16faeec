package state

import (
	"testing"

	"github.com/louisbranch/tablesync/internal/services/table/domain/action"
)

var (
	player = Viewer{User: "ana"}
	master = Viewer{User: "gm", Admin: true}
)

func testCharacters() []action.Character {
	return []action.Character{
		{ID: "ch-1", CMID: "c1", Owner: "ana", Name: "Aria", Color: "red", Speed: 10, X: 0, Y: 0},
		{ID: "ch-2", CMID: "c2", Owner: "bob", Name: "Borin", Color: "blue", Speed: 6, X: 50, Y: 50},
		{ID: "ch-3", CMID: "c3", Name: "Goblin", Color: "green", Speed: 5, X: 100, Y: 100},
	}
}

func fold(s GameState, actions ...action.Inbound) GameState {
	for _, a := range actions {
		s = ApplyResult(s, action.Ok(a))
	}
	return s
}

func intents(s GameState, in ...Intent) GameState {
	for _, i := range in {
		s = ApplyIntent(s, i)
	}
	return s
}

// activeState returns a map with three tokens where it is Aria's turn.
func activeState(t *testing.T, viewer Viewer) GameState {
	t.Helper()
	s := fold(New(viewer),
		action.MapLoaded{MapID: "m1", ImageRef: "maps/m1.png", Scale: 1},
		action.Initiate{Characters: testCharacters()},
		action.TurnPassed{CMID: "c1"},
	)
	if s.Phase != PhaseActive {
		t.Fatalf("phase = %s, want active", s.Phase)
	}
	return s
}

func position(t *testing.T, s GameState, cmID string) (int, int) {
	t.Helper()
	c, ok := s.Map.Character(cmID)
	if !ok {
		t.Fatalf("character %s not found", cmID)
	}
	return c.X, c.Y
}
