package wire

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/louisbranch/tablesync/internal/services/table/domain/action"
)

// flexID is an identifier that may arrive as a JSON string or number.
type flexID string

func (id *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = flexID(n.String())
	return nil
}

func idPtr(s string) *flexID {
	id := flexID(s)
	return &id
}

// coord is an image-pixel coordinate. Authorities may send fractional
// values; they are truncated toward zero on ingestion so tokens always sit
// on whole pixels. The fraction is lost on purpose.
type coord int

func (c *coord) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	f = math.Trunc(f)
	switch {
	case f > math.MaxInt32:
		f = math.MaxInt32
	case f < math.MinInt32:
		f = math.MinInt32
	}
	*c = coord(f)
	return nil
}

type userPayload struct {
	User *flexID `json:"user"`
}

type rosterPayload struct {
	Characters []characterPayload `json:"characters"`
}

type characterPayload struct {
	CharacterID flexID  `json:"characterId,omitempty"`
	CMID        flexID  `json:"cmId"`
	Owner       flexID  `json:"owner,omitempty"`
	Name        string  `json:"name,omitempty"`
	Color       string  `json:"color,omitempty"`
	Speed       float64 `json:"speed"`
	X           coord   `json:"x"`
	Y           coord   `json:"y"`
}

type mapLoadedPayload struct {
	MapID *flexID  `json:"mapId"`
	Image string   `json:"image,omitempty"`
	Scale *float64 `json:"scale,omitempty"`
}

type loadMapPayload struct {
	MapID *flexID `json:"mapId"`
}

type characterAddedPayload struct {
	Character *characterPayload `json:"character"`
	TurnOrder coord             `json:"turnOrder"`
}

type addCharacterPayload struct {
	CharacterID *flexID `json:"characterId"`
	X           coord   `json:"x"`
	Y           coord   `json:"y"`
}

type orderPayload struct {
	Order []flexID `json:"order"`
}

type movePayload struct {
	Name  string  `json:"name,omitempty"`
	X     *coord  `json:"x"`
	Y     *coord  `json:"y"`
	Owner flexID  `json:"owner,omitempty"`
	CMID  *flexID `json:"cmId"`
}

type turnPayload struct {
	CMID *flexID `json:"cmId"`
}

type pingPayload struct {
	X *coord `json:"x"`
	Y *coord `json:"y"`
}

func toCharacter(t action.Type, p characterPayload) (action.Character, error) {
	if p.CMID == "" {
		return action.Character{}, missing(t, "character.cmId")
	}
	return action.Character{
		ID:    string(p.CharacterID),
		CMID:  string(p.CMID),
		Owner: string(p.Owner),
		Name:  p.Name,
		Color: p.Color,
		Speed: p.Speed,
		X:     int(p.X),
		Y:     int(p.Y),
	}, nil
}

func toCharacters(t action.Type, in []characterPayload) ([]action.Character, error) {
	out := make([]action.Character, 0, len(in))
	for _, p := range in {
		c, err := toCharacter(t, p)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func fromCharacter(c action.Character) characterPayload {
	return characterPayload{
		CharacterID: flexID(c.ID),
		CMID:        flexID(c.CMID),
		Owner:       flexID(c.Owner),
		Name:        c.Name,
		Color:       c.Color,
		Speed:       c.Speed,
		X:           coord(c.X),
		Y:           coord(c.Y),
	}
}

func fromCharacters(in []action.Character) []characterPayload {
	out := make([]characterPayload, 0, len(in))
	for _, c := range in {
		out = append(out, fromCharacter(c))
	}
	return out
}

func toMapLoaded(p mapLoadedPayload) action.MapLoaded {
	scale := 1.0
	if p.Scale != nil {
		scale = *p.Scale
	}
	return action.MapLoaded{MapID: string(*p.MapID), ImageRef: p.Image, Scale: scale}
}

func fromMapLoaded(a action.MapLoaded) mapLoadedPayload {
	scale := a.Scale
	return mapLoadedPayload{MapID: idPtr(a.MapID), Image: a.ImageRef, Scale: &scale}
}

func toIDs(in []flexID) []string {
	out := make([]string, 0, len(in))
	for _, id := range in {
		if id != "" {
			out = append(out, string(id))
		}
	}
	return out
}

func fromIDs(in []string) []flexID {
	out := make([]flexID, 0, len(in))
	for _, id := range in {
		out = append(out, flexID(id))
	}
	return out
}

func toMoved(p movePayload) action.Moved {
	return action.Moved{
		Name:  p.Name,
		X:     int(*p.X),
		Y:     int(*p.Y),
		Owner: string(p.Owner),
		CMID:  string(*p.CMID),
	}
}

func fromMoved(a action.Moved) movePayload {
	x, y := coord(a.X), coord(a.Y)
	return movePayload{
		Name:  a.Name,
		X:     &x,
		Y:     &y,
		Owner: flexID(a.Owner),
		CMID:  idPtr(a.CMID),
	}
}

func fromPinged(a action.Pinged) pingPayload {
	x, y := coord(a.X), coord(a.Y)
	return pingPayload{X: &x, Y: &y}
}
