// Package ledger holds the key schema and payload formats of the position
// ledger, the position index built on top of it, and an in-process Ledger
// used for local runs and tests.
//
// Key schema:
//
//	position_keys  - JSON array of position ids, insertion order
//	position_{id}  - JSON object describing one position
package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/rwaoptions/internal/domain"
)

// IndexKey is the ledger key of the position index.
const IndexKey = "position_keys"

// RecordKey returns the ledger key of the record for id.
func RecordKey(id string) string { return "position_" + id }

// record is the stored shape of a position. The id is carried by the key,
// not the payload.
type record struct {
	Asset        string `json:"asset"`
	StrikePrice  string `json:"strikePrice"`
	Expiry       int64  `json:"expiry"`
	Premium      string `json:"premium"`
	Amount       string `json:"amount"`
	PositionType string `json:"positionType"`
	Owner        string `json:"owner"`
	Status       string `json:"status,omitempty"`
}

// MarshalRecord serialises p into the position_{id} payload.
func MarshalRecord(p domain.Position) ([]byte, error) {
	data, err := json.Marshal(record{
		Asset:        p.Asset,
		StrikePrice:  p.StrikePrice,
		Expiry:       p.Expiry,
		Premium:      p.Premium,
		Amount:       p.Amount,
		PositionType: string(p.Type),
		Owner:        p.Owner,
		Status:       string(p.Status),
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: marshal record %s: %w", p.ID, err)
	}
	return data, nil
}

// ParseRecord decodes a position_{id} payload. A missing status defaults to
// active. Any structural problem, including an unknown status or position
// type, yields domain.ErrParse.
func ParseRecord(id string, data []byte) (domain.Position, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return domain.Position{}, fmt.Errorf("ledger: record %s is empty: %w", id, domain.ErrParse)
	}

	var r record
	if err := json.Unmarshal(data, &r); err != nil {
		return domain.Position{}, fmt.Errorf("ledger: record %s: %w: %v", id, domain.ErrParse, err)
	}

	status := domain.PositionStatus(r.Status)
	if status == "" {
		status = domain.PositionStatusActive
	}
	if !status.Valid() {
		return domain.Position{}, fmt.Errorf("ledger: record %s has status %q: %w", id, r.Status, domain.ErrParse)
	}

	typ := domain.PositionType(r.PositionType)
	if !typ.Valid() {
		return domain.Position{}, fmt.Errorf("ledger: record %s has position type %q: %w", id, r.PositionType, domain.ErrParse)
	}

	return domain.Position{
		ID:          id,
		Asset:       r.Asset,
		StrikePrice: r.StrikePrice,
		Expiry:      r.Expiry,
		Premium:     r.Premium,
		Amount:      r.Amount,
		Type:        typ,
		Owner:       r.Owner,
		Status:      status,
	}, nil
}

// SetStatus returns data with its status field replaced by status. Every
// other field, including ones this package does not know, is carried over
// unchanged.
func SetStatus(data []byte, status domain.PositionStatus) ([]byte, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("ledger: set status: %w: %v", domain.ErrParse, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("ledger: set status: record is null: %w", domain.ErrParse)
	}

	v, err := json.Marshal(string(status))
	if err != nil {
		return nil, fmt.Errorf("ledger: set status: %w", err)
	}
	fields["status"] = v

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("ledger: set status: %w", err)
	}
	return out, nil
}

// MarshalIndex serialises ids into the position_keys payload. A nil slice
// is written as an empty array, never as null.
func MarshalIndex(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return nil, fmt.Errorf("ledger: marshal index: %w", err)
	}
	return data, nil
}

// ParseIndex decodes a position_keys payload. Empty or whitespace-only input
// is an empty index; anything that is not a JSON array of strings yields
// domain.ErrParse.
func ParseIndex(data []byte) ([]string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []string{}, nil
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("ledger: index: %w: %v", domain.ErrParse, err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
