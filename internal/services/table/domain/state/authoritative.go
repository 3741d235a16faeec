package state

import (
	"math"

	platformerrors "github.com/louisbranch/tablesync/internal/platform/errors"
	"github.com/louisbranch/tablesync/internal/services/table/domain/action"
)

// ApplyResult folds an authoritative result into the state.
//
// Terminal errors replace the view with PhaseError. Recoverable errors
// become the banner of the active map, synthesizing one from PhaseLoading.
// PhaseError absorbs everything.
func ApplyResult(s GameState, result action.Result[action.Inbound]) GameState {
	if s.Phase == PhaseError {
		return s
	}
	if result.Err != nil {
		return applyError(s, platformerrors.As(result.Err))
	}
	if result.Value == nil {
		return s
	}
	return applyAction(s, result.Value)
}

func applyError(s GameState, err *platformerrors.Error) GameState {
	if err.Terminal() {
		return GameState{Phase: PhaseError, Viewer: s.Viewer, Err: err}
	}
	next := s.clone().activate()
	next.Map.Banner = err
	// A malformed frame leaves the connection and any pending echo intact.
	if err.Code != platformerrors.CodeSerialization {
		next.rollbackPending()
	}
	return next
}

func applyAction(s GameState, a action.Inbound) GameState {
	switch a := a.(type) {
	case action.ConnectedUser:
		return applyConnected(s, a)
	case action.Initiate:
		return applyRoster(s, a.Characters)
	case action.GMGetMap:
		if !s.Viewer.Admin {
			return s
		}
		return applyRoster(s, a.Characters)
	case action.MapLoaded:
		return applyMapLoaded(s, a)
	case action.CharacterAdded:
		return applyCharacterAdded(s, a)
	case action.InitiativeOrder:
		return applyInitiativeOrder(s, a)
	case action.Moved:
		return applyMoved(s, a)
	case action.NewTurn:
		return applyNewTurn(s)
	case action.TurnPassed:
		return applyTurnPassed(s, a)
	case action.Pinged:
		return applyPinged(s, a)
	}
	return s
}

func applyConnected(s GameState, a action.ConnectedUser) GameState {
	if s.Phase != PhaseActive {
		return s
	}
	next := s.clone()
	next.appendLog(action.TypeConnect, "%s joined the table", a.User)
	return next
}

// applyRoster replaces the tokens with an authoritative snapshot. Any
// optimistic move still waiting for its echo is superseded.
func applyRoster(s GameState, characters []action.Character) GameState {
	next := s.clone().activate()
	next.Map.Characters = append([]action.Character(nil), characters...)
	next.HUD.Order = characterOrder(characters)
	next.Map.Pending = nil
	if _, ok := next.Map.SelectedCharacter(); !ok {
		next.clearSelection()
	}
	next.refreshTurn()
	next.rebuildRoster()
	return next
}

func applyMapLoaded(s GameState, a action.MapLoaded) GameState {
	next := s.clone().activate()
	toggles := next.Map.Toggles
	banner := next.Map.Banner
	next.Map = MapState{
		Admin:    next.Viewer.Admin,
		MapID:    a.MapID,
		ImageRef: a.ImageRef,
		Scale:    normalizeScale(a.Scale),
		Toggles:  Toggles{Sprint: toggles.Sprint, GMView: toggles.GMView},
		PingSeq:  next.Map.PingSeq,
		Banner:   banner,
	}
	next.HUD.Order = nil
	next.rebuildRoster()
	next.appendLog(action.TypeLoadMap, "Map %s loaded", a.MapID)
	return next
}

func normalizeScale(scale float64) float64 {
	if !(scale > 0) || math.IsInf(scale, 0) {
		return 1
	}
	return scale
}

func applyCharacterAdded(s GameState, a action.CharacterAdded) GameState {
	next := s.clone().activate()
	c := a.Character
	if i := next.Map.characterIndex(c.CMID); i >= 0 {
		next.Map.Characters[i] = c
	} else {
		next.Map.Characters = append(next.Map.Characters, c)
	}

	order := make([]string, 0, len(next.HUD.Order)+1)
	for _, cmID := range next.HUD.Order {
		if cmID != c.CMID {
			order = append(order, cmID)
		}
	}
	at := a.TurnOrder
	if at < 0 {
		at = 0
	}
	if at > len(order) {
		at = len(order)
	}
	order = append(order[:at], append([]string{c.CMID}, order[at:]...)...)
	next.HUD.Order = order

	next.refreshTurn()
	next.rebuildRoster()
	next.appendLog(action.TypeAddCharacter, "%s entered the map", displayName(c))
	return next
}

// applyInitiativeOrder reorders the roster display only; turn state is left
// to Next.
func applyInitiativeOrder(s GameState, a action.InitiativeOrder) GameState {
	if s.Phase != PhaseActive {
		return s
	}
	next := s.clone()
	order := make([]string, 0, len(a.Order)+len(next.HUD.Order))
	order = append(order, a.Order...)
	order = append(order, next.HUD.Order...)
	next.HUD.Order = order
	next.rebuildRoster()
	return next
}

// applyMoved relocates a token. When the local viewer moved the token it had
// selected, the previewed distance is spent and the selection is released.
func applyMoved(s GameState, a action.Moved) GameState {
	if s.Phase != PhaseActive {
		return s
	}
	i := s.Map.characterIndex(a.CMID)
	if i < 0 {
		return s
	}
	next := s.clone()
	next.Map.Characters[i].X = a.X
	next.Map.Characters[i].Y = a.Y

	if next.Viewer.Owns(a.Owner) && next.Map.Selected == a.CMID {
		if !next.Map.Toggles.GMView && a.CMID == next.Map.TurnCMID {
			next.Map.RemainingSpeed = math.Max(0, next.Map.RemainingSpeed-next.Map.Preview.TotalDistance)
		}
		next.clearSelection()
	}
	if next.Map.Pending != nil && next.Map.Pending.CMID == a.CMID {
		next.Map.Pending = nil
	}
	name := a.Name
	if name == "" {
		name = displayName(next.Map.Characters[i])
	}
	next.appendLog(action.TypeMove, "%s moved to (%d, %d)", name, a.X, a.Y)
	return next
}

func applyNewTurn(s GameState) GameState {
	if s.Phase != PhaseActive {
		return s
	}
	next := s.clone()
	if c, ok := next.Map.Character(next.Map.TurnCMID); ok {
		next.Map.RemainingSpeed = c.Speed
	}
	next.appendLog(action.TypeNewTurn, "A new round begins")
	return next
}

func applyTurnPassed(s GameState, a action.TurnPassed) GameState {
	if s.Phase != PhaseActive {
		return s
	}
	next := s.clone()
	next.Map.TurnCMID = a.CMID
	next.Map.Toggles.GMView = false
	next.Map.Toggles.Sprint = false
	next.Map.RemainingSpeed = 0
	if c, ok := next.Map.Character(a.CMID); ok {
		next.Map.RemainingSpeed = c.Speed
	}
	next.clearSelection()
	next.Map.Pending = nil
	next.refreshTurn()
	next.rebuildRoster()
	if c, ok := next.Map.Character(a.CMID); ok {
		next.appendLog(action.TypeNext, "It is %s's turn", displayName(c))
	}
	return next
}

// applyPinged toggles a marker: a ping at the coordinates of an active one
// removes it instead of adding a second.
func applyPinged(s GameState, a action.Pinged) GameState {
	if s.Phase != PhaseActive {
		return s
	}
	next := s.clone()
	for i, p := range next.Map.Pings {
		if p.X == a.X && p.Y == a.Y {
			next.Map.Pings = append(next.Map.Pings[:i], next.Map.Pings[i+1:]...)
			return next
		}
	}
	next.Map.PingSeq++
	next.Map.Pings = append(next.Map.Pings, Ping{Seq: next.Map.PingSeq, X: a.X, Y: a.Y})
	return next
}

// refreshTurn recomputes whether the turn holder belongs to the viewer.
func (s *GameState) refreshTurn() {
	c, ok := s.Map.Character(s.Map.TurnCMID)
	s.Map.MyTurn = ok && s.Viewer.Owns(c.Owner)
}
