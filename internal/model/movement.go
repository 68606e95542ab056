package model

import (
	"strings"
	"time"
)

// MovementType is the closed set of ledger movement kinds.
type MovementType string

// Movement types.
const (
	MovementEntry     MovementType = "entry"
	MovementExit      MovementType = "exit"
	MovementInventory MovementType = "inventory"
)

// MovementTypes lists every accepted movement type.
var MovementTypes = []MovementType{MovementEntry, MovementExit, MovementInventory}

// ParseMovementType normalizes raw input and reports whether it names a known type.
func ParseMovementType(raw string) (MovementType, bool) {
	t := MovementType(strings.ToLower(strings.TrimSpace(raw)))
	return t, t.Valid()
}

// Valid reports whether t is one of entry, exit or inventory.
func (t MovementType) Valid() bool {
	switch t {
	case MovementEntry, MovementExit, MovementInventory:
		return true
	default:
		return false
	}
}

// IsAbsolute reports whether the movement replaces stock instead of adjusting it.
func (t MovementType) IsAbsolute() bool {
	return t == MovementInventory
}

// Title returns the capitalized type name used in operator messages.
func (t MovementType) Title() string {
	if t == "" {
		return ""
	}
	return strings.ToUpper(string(t[:1])) + string(t[1:])
}

// Movement is an append-only ledger entry.
type Movement struct {
	DateMovement      time.Time
	RecordedAt        time.Time // Set by the store on insert and refreshed on every update
	DestinationOrigin string
	Signature         string
	Type              MovementType
	ID                int64
	DrugID            int64
	PiecesMoved       int
}
