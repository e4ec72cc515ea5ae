package domain

import "time"

// PositionStatus is the stored lifecycle state of a position.
type PositionStatus string

const (
	PositionStatusActive    PositionStatus = "active"
	PositionStatusExercised PositionStatus = "exercised"
	// PositionStatusExpired is part of the wire enumeration but is never
	// written by any operation; expiry is computed for display only.
	PositionStatusExpired PositionStatus = "expired"
)

// Valid reports whether s is one of the known status values.
func (s PositionStatus) Valid() bool {
	switch s {
	case PositionStatusActive, PositionStatusExercised, PositionStatusExpired:
		return true
	}
	return false
}

// PositionType is the option kind.
type PositionType string

const (
	PositionTypeCall PositionType = "call"
	PositionTypePut  PositionType = "put"
)

// Valid reports whether t is call or put.
func (t PositionType) Valid() bool {
	return t == PositionTypeCall || t == PositionTypePut
}

// Position is an option position record. Premium and Amount hold obscured
// ciphertext produced by a codec, never plaintext numbers.
type Position struct {
	ID          string         `json:"id"`
	Asset       string         `json:"asset"`
	StrikePrice string         `json:"strikePrice"`
	Expiry      int64          `json:"expiry"`
	Premium     string         `json:"premium"`
	Amount      string         `json:"amount"`
	Type        PositionType   `json:"positionType"`
	Owner       string         `json:"owner"`
	Status      PositionStatus `json:"status"`
}

// ExpiresAt returns the expiry as a time.Time in UTC.
func (p Position) ExpiresAt() time.Time {
	return time.Unix(p.Expiry, 0).UTC()
}

// ObscuredField names one of the two obscured numeric fields.
type ObscuredField string

const (
	FieldPremium ObscuredField = "premium"
	FieldAmount  ObscuredField = "amount"
)

// Ciphertext returns the stored ciphertext for field.
func (p Position) Ciphertext(field ObscuredField) (string, bool) {
	switch field {
	case FieldPremium:
		return p.Premium, true
	case FieldAmount:
		return p.Amount, true
	}
	return "", false
}
