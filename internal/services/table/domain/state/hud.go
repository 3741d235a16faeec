package state

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/louisbranch/tablesync/internal/services/table/domain/action"
)

// MaxLogEntries bounds the activity log; older entries are dropped.
const MaxLogEntries = 100

// HUDState is derived display data.
type HUDState struct {
	// Order is the display order of token cmIds.
	Order  []string
	Roster []RosterEntry
	Log    []LogEntry
}

// RosterEntry is one token in initiative display order.
type RosterEntry struct {
	CMID  string
	Name  string
	Color string
	Owner string
	// Label is the ordinal position ("1st", "2nd").
	Label string
	Turn  bool
}

// LogEntry is one line of the activity log.
type LogEntry struct {
	Kind action.Type
	Text string
}

func (s *GameState) appendLog(kind action.Type, format string, args ...any) {
	s.HUD.Log = append(s.HUD.Log, LogEntry{Kind: kind, Text: fmt.Sprintf(format, args...)})
	if over := len(s.HUD.Log) - MaxLogEntries; over > 0 {
		s.HUD.Log = append([]LogEntry(nil), s.HUD.Log[over:]...)
	}
}

// rebuildRoster derives the roster from Order, appending tokens Order does
// not mention.
func (s *GameState) rebuildRoster() {
	listed := make(map[string]bool, len(s.HUD.Order))
	order := make([]string, 0, len(s.Map.Characters))
	for _, cmID := range s.HUD.Order {
		if listed[cmID] || s.Map.characterIndex(cmID) < 0 {
			continue
		}
		listed[cmID] = true
		order = append(order, cmID)
	}
	for _, c := range s.Map.Characters {
		if !listed[c.CMID] {
			listed[c.CMID] = true
			order = append(order, c.CMID)
		}
	}
	s.HUD.Order = order

	roster := make([]RosterEntry, 0, len(order))
	for i, cmID := range order {
		c, _ := s.Map.Character(cmID)
		roster = append(roster, RosterEntry{
			CMID:  c.CMID,
			Name:  c.Name,
			Color: c.Color,
			Owner: c.Owner,
			Label: humanize.Ordinal(i + 1),
			Turn:  c.CMID == s.Map.TurnCMID,
		})
	}
	s.HUD.Roster = roster
}

func characterOrder(characters []action.Character) []string {
	order := make([]string, 0, len(characters))
	for _, c := range characters {
		order = append(order, c.CMID)
	}
	return order
}

func displayName(c action.Character) string {
	if c.Name != "" {
		return c.Name
	}
	return c.CMID
}
