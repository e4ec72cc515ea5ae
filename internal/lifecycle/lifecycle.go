// Package lifecycle governs which status transitions a position may take and
// who may trigger them.
//
// Active is the initial state and Exercised is terminal. Expired exists in the
// status enumeration but no transition assigns it: expiry is derived from the
// expiry timestamp when a position is displayed and the stored status is left
// untouched.
package lifecycle

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/rwaoptions/internal/domain"
)

// Exercise returns a copy of pos with status exercised. It fails with
// domain.ErrAuthorization, leaving pos unchanged, unless pos is active and
// caller matches the owner case-insensitively.
func Exercise(pos domain.Position, caller string) (domain.Position, error) {
	if pos.Status != domain.PositionStatusActive {
		return pos, fmt.Errorf("lifecycle: exercise %s in status %q: %w", pos.ID, pos.Status, domain.ErrAuthorization)
	}
	if !IsOwner(pos, caller) {
		return pos, fmt.Errorf("lifecycle: exercise %s by non-owner: %w", pos.ID, domain.ErrAuthorization)
	}

	next := pos
	next.Status = domain.PositionStatusExercised
	return next, nil
}

// IsOwner reports whether account is the owner of pos. Account identifiers
// compare case-insensitively; an empty account never owns anything.
func IsOwner(pos domain.Position, account string) bool {
	if strings.TrimSpace(account) == "" {
		return false
	}
	return strings.EqualFold(pos.Owner, account)
}

// CanExercise reports whether Exercise would succeed for caller.
func CanExercise(pos domain.Position, caller string) bool {
	return pos.Status == domain.PositionStatusActive && IsOwner(pos, caller)
}

// Expired reports whether the expiry timestamp of pos is at or before now.
func Expired(pos domain.Position, now time.Time) bool {
	return pos.Expiry <= now.Unix()
}

// DisplayStatus is the status to show for pos at now. An active position past
// its expiry displays as expired; the stored status is not changed.
func DisplayStatus(pos domain.Position, now time.Time) domain.PositionStatus {
	if pos.Status == domain.PositionStatusActive && Expired(pos, now) {
		return domain.PositionStatusExpired
	}
	return pos.Status
}
