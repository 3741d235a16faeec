package action

// Type identifies an action on the wire and in logs.
type Type string

const (
	TypeConnect         Type = "Connect"
	TypeInitiate        Type = "Initiate"
	TypeGMGetMap        Type = "GMGetMap"
	TypeLoadMap         Type = "LoadMap"
	TypeAddCharacter    Type = "AddCharacter"
	TypeInitiativeOrder Type = "InitiativeOrder"
	TypeMove            Type = "Move"
	TypeNewTurn         Type = "NewTurn"
	TypeNext            Type = "Next"
	TypePing            Type = "Ping"
)

// Types lists every known identifier.
func Types() []Type {
	return []Type{
		TypeConnect,
		TypeInitiate,
		TypeGMGetMap,
		TypeLoadMap,
		TypeAddCharacter,
		TypeInitiativeOrder,
		TypeMove,
		TypeNewTurn,
		TypeNext,
		TypePing,
	}
}

// Character is a token placed on the active map.
type Character struct {
	// ID is the persistent character identifier.
	ID string
	// CMID correlates the token on the current map; unique per map session.
	CMID string
	// Owner is the owning player identity; empty for game master tokens.
	Owner string
	Name  string
	Color string
	// Speed is the movement budget per turn in world units.
	Speed float64
	// X and Y are image-pixel coordinates.
	X int
	Y int
}

// Inbound is an authoritative action received from the table.
type Inbound interface {
	Type() Type
	inbound()
}

// Outbound is a command sent to the table.
type Outbound interface {
	Type() Type
	outbound()
}

// ConnectedUser announces that a participant joined the table.
type ConnectedUser struct{ User string }

// Initiate carries the player-visible roster snapshot.
type Initiate struct{ Characters []Character }

// GMGetMap carries the full game master snapshot.
type GMGetMap struct{ Characters []Character }

// MapLoaded switches the active map.
type MapLoaded struct {
	MapID    string
	ImageRef string
	// Scale is image pixels per world unit.
	Scale float64
}

// CharacterAdded places a token at a turn order position.
type CharacterAdded struct {
	Character Character
	TurnOrder int
}

// InitiativeOrder lists token cmIds in display order.
type InitiativeOrder struct{ Order []string }

// Moved relocates a token. Used in both directions.
type Moved struct {
	Name  string
	X     int
	Y     int
	Owner string
	CMID  string
}

// NewTurn starts a new round. Used in both directions.
type NewTurn struct{}

// TurnPassed names the new turn holder.
type TurnPassed struct{ CMID string }

// Pinged toggles a transient map marker. Used in both directions.
type Pinged struct {
	X int
	Y int
}

func (ConnectedUser) Type() Type   { return TypeConnect }
func (Initiate) Type() Type        { return TypeInitiate }
func (GMGetMap) Type() Type        { return TypeGMGetMap }
func (MapLoaded) Type() Type       { return TypeLoadMap }
func (CharacterAdded) Type() Type  { return TypeAddCharacter }
func (InitiativeOrder) Type() Type { return TypeInitiativeOrder }
func (Moved) Type() Type           { return TypeMove }
func (NewTurn) Type() Type         { return TypeNewTurn }
func (TurnPassed) Type() Type      { return TypeNext }
func (Pinged) Type() Type          { return TypePing }

func (ConnectedUser) inbound()   {}
func (Initiate) inbound()        {}
func (GMGetMap) inbound()        {}
func (MapLoaded) inbound()       {}
func (CharacterAdded) inbound()  {}
func (InitiativeOrder) inbound() {}
func (Moved) inbound()           {}
func (NewTurn) inbound()         {}
func (TurnPassed) inbound()      {}
func (Pinged) inbound()          {}

// Connect identifies the local user on a fresh connection.
type Connect struct{ User string }

// LoadMap asks the table to switch to a map.
type LoadMap struct{ MapID string }

// AddCharacter places a library character on the map.
type AddCharacter struct {
	CharacterID string
	X           int
	Y           int
}

// EndTurn passes the turn to the next token in initiative.
type EndTurn struct{}

func (Connect) Type() Type      { return TypeConnect }
func (LoadMap) Type() Type      { return TypeLoadMap }
func (AddCharacter) Type() Type { return TypeAddCharacter }
func (EndTurn) Type() Type      { return TypeNext }

func (Connect) outbound()         {}
func (LoadMap) outbound()         {}
func (AddCharacter) outbound()    {}
func (InitiativeOrder) outbound() {}
func (Moved) outbound()           {}
func (NewTurn) outbound()         {}
func (EndTurn) outbound()         {}
func (Pinged) outbound()          {}
