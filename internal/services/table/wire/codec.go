package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/louisbranch/tablesync/internal/services/table/domain/action"
)

// ErrDeserialization marks frames that could not be turned into an action.
var ErrDeserialization = errors.New("wire: deserialization failed")

// CodecError describes why a frame was rejected.
type CodecError struct {
	Action string
	Field  string
	Err    error
}

func (e *CodecError) Error() string {
	msg := "wire: decode"
	if e.Action != "" {
		msg += " " + e.Action
	}
	if e.Field != "" {
		msg += " field " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CodecError) Unwrap() error { return e.Err }

// Is reports every codec error as ErrDeserialization.
func (e *CodecError) Is(target error) bool { return target == ErrDeserialization }

type frame struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var errMissing = errors.New("required field missing")

func missing(t action.Type, field string) error {
	return &CodecError{Action: string(t), Field: field, Err: errMissing}
}

func splitFrame(data []byte) (action.Type, []byte, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return "", nil, &CodecError{Err: err}
	}
	if f.Action == "" {
		return "", nil, &CodecError{Field: "action", Err: errMissing}
	}
	payload := []byte(f.Payload)
	if len(payload) == 0 || string(payload) == "null" {
		payload = []byte("{}")
	}
	return action.Type(f.Action), payload, nil
}

func unmarshalPayload(t action.Type, payload []byte, v any) error {
	if err := json.Unmarshal(payload, v); err != nil {
		return &CodecError{Action: string(t), Err: err}
	}
	return nil
}

func encodeFrame(t action.Type, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("wire: encode %s: %w", t, err)
	}
	return json.Marshal(frame{Action: string(t), Payload: body})
}

// DecodeInbound parses a frame sent by the table authority.
func DecodeInbound(data []byte) (action.Inbound, error) {
	t, payload, err := splitFrame(data)
	if err != nil {
		return nil, err
	}
	switch t {
	case action.TypeConnect:
		var p userPayload
		if err := unmarshalPayload(t, payload, &p); err != nil {
			return nil, err
		}
		if p.User == nil || *p.User == "" {
			return nil, missing(t, "user")
		}
		return action.ConnectedUser{User: string(*p.User)}, nil
	case action.TypeInitiate, action.TypeGMGetMap:
		var p rosterPayload
		if err := unmarshalPayload(t, payload, &p); err != nil {
			return nil, err
		}
		characters, err := toCharacters(t, p.Characters)
		if err != nil {
			return nil, err
		}
		if t == action.TypeGMGetMap {
			return action.GMGetMap{Characters: characters}, nil
		}
		return action.Initiate{Characters: characters}, nil
	case action.TypeLoadMap:
		var p mapLoadedPayload
		if err := unmarshalPayload(t, payload, &p); err != nil {
			return nil, err
		}
		if p.MapID == nil || *p.MapID == "" {
			return nil, missing(t, "mapId")
		}
		return toMapLoaded(p), nil
	case action.TypeAddCharacter:
		var p characterAddedPayload
		if err := unmarshalPayload(t, payload, &p); err != nil {
			return nil, err
		}
		if p.Character == nil {
			return nil, missing(t, "character")
		}
		c, err := toCharacter(t, *p.Character)
		if err != nil {
			return nil, err
		}
		return action.CharacterAdded{Character: c, TurnOrder: int(p.TurnOrder)}, nil
	case action.TypeInitiativeOrder:
		var p orderPayload
		if err := unmarshalPayload(t, payload, &p); err != nil {
			return nil, err
		}
		if p.Order == nil {
			return nil, missing(t, "order")
		}
		return action.InitiativeOrder{Order: toIDs(p.Order)}, nil
	case action.TypeMove:
		moved, err := decodeMove(t, payload)
		if err != nil {
			return nil, err
		}
		return moved, nil
	case action.TypeNewTurn:
		return action.NewTurn{}, nil
	case action.TypeNext:
		var p turnPayload
		if err := unmarshalPayload(t, payload, &p); err != nil {
			return nil, err
		}
		if p.CMID == nil || *p.CMID == "" {
			return nil, missing(t, "cmId")
		}
		return action.TurnPassed{CMID: string(*p.CMID)}, nil
	case action.TypePing:
		pinged, err := decodePing(t, payload)
		if err != nil {
			return nil, err
		}
		return pinged, nil
	}
	return nil, &CodecError{Action: string(t), Err: errors.New("unknown action")}
}

// EncodeOutbound renders a client command.
func EncodeOutbound(a action.Outbound) ([]byte, error) {
	switch a := a.(type) {
	case action.Connect:
		return encodeFrame(a.Type(), userPayload{User: idPtr(a.User)})
	case action.LoadMap:
		return encodeFrame(a.Type(), loadMapPayload{MapID: idPtr(a.MapID)})
	case action.AddCharacter:
		return encodeFrame(a.Type(), addCharacterPayload{
			CharacterID: idPtr(a.CharacterID),
			X:           coord(a.X),
			Y:           coord(a.Y),
		})
	case action.InitiativeOrder:
		return encodeFrame(a.Type(), orderPayload{Order: fromIDs(a.Order)})
	case action.Moved:
		return encodeFrame(a.Type(), fromMoved(a))
	case action.NewTurn:
		return encodeFrame(a.Type(), struct{}{})
	case action.EndTurn:
		return encodeFrame(a.Type(), struct{}{})
	case action.Pinged:
		return encodeFrame(a.Type(), fromPinged(a))
	case nil:
		return nil, errors.New("wire: encode nil action")
	}
	return nil, fmt.Errorf("wire: encode %s: unsupported outbound action", a.Type())
}

// DecodeOutbound parses a client command, as a table authority would.
func DecodeOutbound(data []byte) (action.Outbound, error) {
	t, payload, err := splitFrame(data)
	if err != nil {
		return nil, err
	}
	switch t {
	case action.TypeConnect:
		var p userPayload
		if err := unmarshalPayload(t, payload, &p); err != nil {
			return nil, err
		}
		if p.User == nil || *p.User == "" {
			return nil, missing(t, "user")
		}
		return action.Connect{User: string(*p.User)}, nil
	case action.TypeLoadMap:
		var p loadMapPayload
		if err := unmarshalPayload(t, payload, &p); err != nil {
			return nil, err
		}
		if p.MapID == nil || *p.MapID == "" {
			return nil, missing(t, "mapId")
		}
		return action.LoadMap{MapID: string(*p.MapID)}, nil
	case action.TypeAddCharacter:
		var p addCharacterPayload
		if err := unmarshalPayload(t, payload, &p); err != nil {
			return nil, err
		}
		if p.CharacterID == nil || *p.CharacterID == "" {
			return nil, missing(t, "characterId")
		}
		return action.AddCharacter{CharacterID: string(*p.CharacterID), X: int(p.X), Y: int(p.Y)}, nil
	case action.TypeInitiativeOrder:
		var p orderPayload
		if err := unmarshalPayload(t, payload, &p); err != nil {
			return nil, err
		}
		if p.Order == nil {
			return nil, missing(t, "order")
		}
		return action.InitiativeOrder{Order: toIDs(p.Order)}, nil
	case action.TypeMove:
		moved, err := decodeMove(t, payload)
		if err != nil {
			return nil, err
		}
		return moved, nil
	case action.TypeNewTurn:
		return action.NewTurn{}, nil
	case action.TypeNext:
		return action.EndTurn{}, nil
	case action.TypePing:
		pinged, err := decodePing(t, payload)
		if err != nil {
			return nil, err
		}
		return pinged, nil
	case action.TypeInitiate, action.TypeGMGetMap:
		return nil, &CodecError{Action: string(t), Err: errors.New("receive-only action")}
	}
	return nil, &CodecError{Action: string(t), Err: errors.New("unknown action")}
}

// EncodeInbound renders an authoritative action, as a table authority would.
func EncodeInbound(a action.Inbound) ([]byte, error) {
	switch a := a.(type) {
	case action.ConnectedUser:
		return encodeFrame(a.Type(), userPayload{User: idPtr(a.User)})
	case action.Initiate:
		return encodeFrame(a.Type(), rosterPayload{Characters: fromCharacters(a.Characters)})
	case action.GMGetMap:
		return encodeFrame(a.Type(), rosterPayload{Characters: fromCharacters(a.Characters)})
	case action.MapLoaded:
		return encodeFrame(a.Type(), fromMapLoaded(a))
	case action.CharacterAdded:
		c := fromCharacter(a.Character)
		return encodeFrame(a.Type(), characterAddedPayload{Character: &c, TurnOrder: coord(a.TurnOrder)})
	case action.InitiativeOrder:
		return encodeFrame(a.Type(), orderPayload{Order: fromIDs(a.Order)})
	case action.Moved:
		return encodeFrame(a.Type(), fromMoved(a))
	case action.NewTurn:
		return encodeFrame(a.Type(), struct{}{})
	case action.TurnPassed:
		return encodeFrame(a.Type(), turnPayload{CMID: idPtr(a.CMID)})
	case action.Pinged:
		return encodeFrame(a.Type(), fromPinged(a))
	case nil:
		return nil, errors.New("wire: encode nil action")
	}
	return nil, fmt.Errorf("wire: encode %s: unsupported inbound action", a.Type())
}

func decodeMove(t action.Type, payload []byte) (action.Moved, error) {
	var p movePayload
	if err := unmarshalPayload(t, payload, &p); err != nil {
		return action.Moved{}, err
	}
	switch {
	case p.X == nil:
		return action.Moved{}, missing(t, "x")
	case p.Y == nil:
		return action.Moved{}, missing(t, "y")
	case p.CMID == nil || *p.CMID == "":
		return action.Moved{}, missing(t, "cmId")
	}
	return toMoved(p), nil
}

func decodePing(t action.Type, payload []byte) (action.Pinged, error) {
	var p pingPayload
	if err := unmarshalPayload(t, payload, &p); err != nil {
		return action.Pinged{}, err
	}
	switch {
	case p.X == nil:
		return action.Pinged{}, missing(t, "x")
	case p.Y == nil:
		return action.Pinged{}, missing(t, "y")
	}
	return action.Pinged{X: int(*p.X), Y: int(*p.Y)}, nil
}
