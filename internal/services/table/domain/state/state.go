package state

import (
	platformerrors "github.com/louisbranch/tablesync/internal/platform/errors"
	"github.com/louisbranch/tablesync/internal/services/table/domain/action"
	"github.com/louisbranch/tablesync/internal/services/table/domain/movement"
)

// Phase is the lifecycle stage of the session view.
type Phase int

const (
	// PhaseLoading means no table data has arrived yet.
	PhaseLoading Phase = iota
	// PhaseError is terminal; no fold leaves it.
	PhaseError
	// PhaseActive carries a live map.
	PhaseActive
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseError:
		return "error"
	case PhaseActive:
		return "active"
	default:
		return "unknown"
	}
}

// Viewer identifies the local participant.
type Viewer struct {
	User  string
	Admin bool
}

// Owns reports whether the viewer controls tokens owned by owner. Tokens
// without an owner belong to the game master.
func (v Viewer) Owns(owner string) bool {
	if owner == "" {
		return v.Admin
	}
	return owner == v.User
}

// GameState is the client view of the table.
type GameState struct {
	Phase  Phase
	Viewer Viewer
	// Err is set in PhaseError.
	Err *platformerrors.Error
	Map MapState
	HUD HUDState
}

// Toggles are per-session UI modes.
type Toggles struct {
	Ruler  bool
	Ping   bool
	Sprint bool
	GMView bool
}

// Ping is a transient map marker. Seq identifies it for expiry.
type Ping struct {
	Seq uint64
	X   int
	Y   int
}

// PendingMove is a locally committed move awaiting the authoritative echo.
// FromX and FromY are where the token stood before the commit.
type PendingMove struct {
	CMID  string
	X     int
	Y     int
	FromX int
	FromY int
}

// MapState holds the active map.
type MapState struct {
	Admin    bool
	MapID    string
	ImageRef string
	// Scale is image pixels per world unit.
	Scale float64

	// TurnCMID is the token whose turn it is.
	TurnCMID string
	MyTurn   bool
	// RemainingSpeed is the turn holder's movement left this turn.
	RemainingSpeed float64

	Toggles    Toggles
	Characters []action.Character
	// Selected is the cmId of the locally selected token.
	Selected string
	Preview  movement.DistancePath
	Ruler    movement.DistancePath
	Pings    []Ping
	PingSeq  uint64
	Pending  *PendingMove
	// Banner is the last recoverable error, cleared by DismissError.
	Banner *platformerrors.Error
}

// New returns the loading state for viewer.
func New(viewer Viewer) GameState {
	return GameState{Phase: PhaseLoading, Viewer: viewer}
}

// Character looks up a token by cmId.
func (m MapState) Character(cmID string) (action.Character, bool) {
	if i := m.characterIndex(cmID); i >= 0 {
		return m.Characters[i], true
	}
	return action.Character{}, false
}

// SelectedCharacter returns the selected token, if any.
func (m MapState) SelectedCharacter() (action.Character, bool) {
	if m.Selected == "" {
		return action.Character{}, false
	}
	return m.Character(m.Selected)
}

func (m MapState) characterIndex(cmID string) int {
	for i, c := range m.Characters {
		if c.CMID == cmID {
			return i
		}
	}
	return -1
}

// Budget returns how far the selected token may still travel.
//
// Game master view is unbounded. The turn holder spends RemainingSpeed; any
// other token (moved by the game master) gets its full speed. Sprint adds one
// full speed on top.
func (m MapState) Budget() movement.Budget {
	if m.Toggles.GMView {
		return movement.Unlimited()
	}
	c, ok := m.SelectedCharacter()
	if !ok {
		return movement.Limit(0)
	}
	limit := c.Speed
	if c.CMID == m.TurnCMID {
		limit = m.RemainingSpeed
	}
	if m.Toggles.Sprint {
		limit += c.Speed
	}
	return movement.Limit(limit)
}

func (s GameState) clone() GameState {
	next := s
	next.Map.Characters = append([]action.Character(nil), s.Map.Characters...)
	next.Map.Pings = append([]Ping(nil), s.Map.Pings...)
	next.HUD.Order = append([]string(nil), s.HUD.Order...)
	next.HUD.Roster = append([]RosterEntry(nil), s.HUD.Roster...)
	next.HUD.Log = append([]LogEntry(nil), s.HUD.Log...)
	if s.Map.Pending != nil {
		pending := *s.Map.Pending
		next.Map.Pending = &pending
	}
	return next
}

// activate synthesizes a fresh active map from the loading state.
func (s GameState) activate() GameState {
	if s.Phase != PhaseLoading {
		return s
	}
	s.Phase = PhaseActive
	s.Map = MapState{Admin: s.Viewer.Admin, Scale: 1}
	s.HUD = HUDState{}
	return s
}

// rollbackPending returns an unconfirmed token to its pre-commit position.
// Selection and preview stay, so the move can be committed again.
func (s *GameState) rollbackPending() {
	p := s.Map.Pending
	if p == nil {
		return
	}
	if i := s.Map.characterIndex(p.CMID); i >= 0 {
		s.Map.Characters[i].X = p.FromX
		s.Map.Characters[i].Y = p.FromY
	}
	s.Map.Pending = nil
}

func (s *GameState) clearSelection() {
	s.Map.Selected = ""
	s.Map.Preview = movement.DistancePath{}
}
