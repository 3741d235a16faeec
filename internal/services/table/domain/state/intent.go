package state

import (
	"github.com/louisbranch/tablesync/internal/services/table/domain/movement"
)

// Intent is a local user gesture.
type Intent interface {
	intent()
}

// Select picks a token to move.
type Select struct{ CMID string }

// Unselect drops the selection and both measurement overlays.
type Unselect struct{}

// PointerMove tracks the pointer while dragging.
type PointerMove struct{ X, Y int }

// Target is a click on the map.
type Target struct{ X, Y int }

// PinWaypoint confirms the trailing point of the active path.
type PinWaypoint struct{}

// CommitMove moves the selected token to the end of its preview and waits
// for the authoritative echo.
type CommitMove struct{}

// ToggleRuler switches measurement mode.
type ToggleRuler struct{}

// TogglePing switches ping mode.
type TogglePing struct{}

// ToggleSprint switches the extra movement allowance.
type ToggleSprint struct{}

// ToggleGMView switches the unbounded game master view.
type ToggleGMView struct{}

// DismissError clears the banner.
type DismissError struct{}

// ExpirePing removes a ping once its time on the map is over.
type ExpirePing struct{ Seq uint64 }

// AbandonPending returns an unconfirmed committed move to where it started.
// The zero value matches any pending move; otherwise CMID and destination
// must match so a newer commit is left alone.
type AbandonPending struct {
	CMID string
	X    int
	Y    int
}

func (Select) intent()         {}
func (Unselect) intent()       {}
func (PointerMove) intent()    {}
func (Target) intent()         {}
func (PinWaypoint) intent()    {}
func (CommitMove) intent()     {}
func (ToggleRuler) intent()    {}
func (TogglePing) intent()     {}
func (ToggleSprint) intent()   {}
func (ToggleGMView) intent()   {}
func (DismissError) intent()   {}
func (ExpirePing) intent()     {}
func (AbandonPending) intent() {}

// ApplyIntent folds a local intent into the state for immediate feedback.
// Intents only affect an active map.
func ApplyIntent(s GameState, in Intent) GameState {
	if s.Phase != PhaseActive {
		return s
	}
	switch in := in.(type) {
	case Select:
		return applySelect(s, in)
	case Unselect:
		next := s.clone()
		next.clearSelection()
		next.Map.Ruler = movement.DistancePath{}
		return next
	case PointerMove:
		return applyPointer(s, movement.Pt(in.X, in.Y), false)
	case Target:
		return applyPointer(s, movement.Pt(in.X, in.Y), true)
	case PinWaypoint:
		return applyPin(s)
	case CommitMove:
		return applyCommit(s)
	case ToggleRuler:
		next := s.clone()
		next.Map.Toggles.Ruler = !next.Map.Toggles.Ruler
		next.Map.Toggles.Ping = false
		next.Map.Ruler = movement.DistancePath{}
		next.clearSelection()
		return next
	case TogglePing:
		next := s.clone()
		next.Map.Toggles.Ping = !next.Map.Toggles.Ping
		next.Map.Toggles.Ruler = false
		next.Map.Ruler = movement.DistancePath{}
		next.clearSelection()
		return next
	case ToggleSprint:
		return applySprint(s)
	case ToggleGMView:
		if !s.Viewer.Admin {
			return s
		}
		next := s.clone()
		next.Map.Toggles.GMView = !next.Map.Toggles.GMView
		next.clearSelection()
		return next
	case DismissError:
		if s.Map.Banner == nil {
			return s
		}
		next := s.clone()
		next.Map.Banner = nil
		return next
	case ExpirePing:
		return applyExpirePing(s, in)
	case AbandonPending:
		return applyAbandonPending(s, in)
	}
	return s
}

// applySelect seeds a zero-length preview at the token. Players may only
// pick their own token on their turn; the game master may pick any token.
// Clicks in ruler or ping mode belong to those overlays.
func applySelect(s GameState, in Select) GameState {
	if s.Map.Toggles.Ruler || s.Map.Toggles.Ping || s.Map.Pending != nil {
		return s
	}
	c, ok := s.Map.Character(in.CMID)
	if !ok {
		return s
	}
	mine := s.Viewer.Owns(c.Owner) && s.Map.TurnCMID == c.CMID
	if !mine && !s.Viewer.Admin {
		return s
	}
	next := s.clone()
	next.Map.Selected = c.CMID
	next.Map.Preview = movement.Start(movement.Pt(c.X, c.Y), next.Map.Scale)
	return next
}

// applyPointer drives the ruler in ruler mode and the selected token's
// preview otherwise. Clicks use single-segment targeting; drags use the
// polyline.
func applyPointer(s GameState, p movement.Point, click bool) GameState {
	switch {
	case s.Map.Toggles.Ruler:
		if !click && !s.Map.Ruler.Started() {
			return s
		}
		next := s.clone()
		if click {
			next.Map.Ruler = movement.Start(p, next.Map.Scale)
		} else {
			next.Map.Ruler = next.Map.Ruler.Update(p, movement.Unlimited())
		}
		return next
	case s.Map.Toggles.Ping:
		return s
	case s.Map.Selected == "" || s.Map.Pending != nil:
		return s
	}
	next := s.clone()
	if click {
		next.Map.Preview = next.Map.Preview.Extend(p, next.Map.Budget())
	} else {
		next.Map.Preview = next.Map.Preview.Update(p, next.Map.Budget())
	}
	return next
}

func applyPin(s GameState) GameState {
	next := s.clone()
	switch {
	case s.Map.Toggles.Ruler:
		next.Map.Ruler = next.Map.Ruler.Pin()
	case s.Map.Selected != "" && s.Map.Pending == nil:
		next.Map.Preview = next.Map.Preview.Pin()
	default:
		return s
	}
	return next
}

// applyCommit relocates the token optimistically. Selection and preview stay
// in place until the echo arrives, because the echo spends the previewed
// distance.
func applyCommit(s GameState) GameState {
	if s.Map.Pending != nil || !s.Map.Preview.Moved() {
		return s
	}
	i := s.Map.characterIndex(s.Map.Selected)
	if i < 0 {
		return s
	}
	next := s.clone()
	x, y := next.Map.Preview.End().Pixel()
	next.Map.Pending = &PendingMove{
		CMID:  next.Map.Selected,
		X:     x,
		Y:     y,
		FromX: next.Map.Characters[i].X,
		FromY: next.Map.Characters[i].Y,
	}
	next.Map.Characters[i].X = x
	next.Map.Characters[i].Y = y
	return next
}

// applySprint flips sprint and re-measures the preview against the new
// budget, aiming at the last requested point.
func applySprint(s GameState) GameState {
	next := s.clone()
	next.Map.Toggles.Sprint = !next.Map.Toggles.Sprint
	if next.Map.Selected == "" || next.Map.Pending != nil || !next.Map.Preview.Started() {
		return next
	}
	target := next.Map.Preview.End()
	if stop := next.Map.Preview.UnreachableStop; stop != nil {
		target = *stop
	}
	if next.Map.Preview.Moved() || next.Map.Preview.UnreachableStop != nil {
		next.Map.Preview = next.Map.Preview.Update(target, next.Map.Budget())
	}
	return next
}

func applyExpirePing(s GameState, in ExpirePing) GameState {
	for i, p := range s.Map.Pings {
		if p.Seq == in.Seq {
			next := s.clone()
			next.Map.Pings = append(next.Map.Pings[:i], next.Map.Pings[i+1:]...)
			return next
		}
	}
	return s
}

func applyAbandonPending(s GameState, in AbandonPending) GameState {
	p := s.Map.Pending
	if p == nil {
		return s
	}
	if in != (AbandonPending{}) && (in.CMID != p.CMID || in.X != p.X || in.Y != p.Y) {
		return s
	}
	next := s.clone()
	next.rollbackPending()
	return next
}
