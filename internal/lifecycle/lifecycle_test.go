package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/rwaoptions/internal/domain"
)

const owner = "0xAbCdEf0000000000000000000000000000000001"

func activePosition() domain.Position {
	return domain.Position{
		ID:          "p1",
		Asset:       "WETH",
		StrikePrice: "2500",
		Expiry:      2_000_000_000,
		Premium:     "FHE-MTA=",
		Amount:      "FHE-MjA=",
		Type:        domain.PositionTypePut,
		Owner:       owner,
		Status:      domain.PositionStatusActive,
	}
}

func TestExercise_OwnerOnActive(t *testing.T) {
	pos := activePosition()

	got, err := Exercise(pos, "0xabcdef0000000000000000000000000000000001")
	require.NoError(t, err)

	assert.Equal(t, domain.PositionStatusExercised, got.Status)

	want := pos
	want.Status = domain.PositionStatusExercised
	assert.Equal(t, want, got, "only status may change")
	assert.Equal(t, domain.PositionStatusActive, pos.Status, "input must not be mutated")
}

func TestExercise_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Position)
		caller string
	}{
		{"non-owner", func(*domain.Position) {}, "0x0000000000000000000000000000000000000002"},
		{"empty caller", func(*domain.Position) {}, ""},
		{"already exercised", func(p *domain.Position) { p.Status = domain.PositionStatusExercised }, owner},
		{"stored expired", func(p *domain.Position) { p.Status = domain.PositionStatusExpired }, owner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := activePosition()
			tt.mutate(&pos)

			got, err := Exercise(pos, tt.caller)
			assert.ErrorIs(t, err, domain.ErrAuthorization)
			assert.Equal(t, pos, got)
			assert.False(t, CanExercise(pos, tt.caller))
		})
	}
}

func TestExercise_PastExpiryStillAllowed(t *testing.T) {
	// Expiry is display-only; the stored status governs the transition.
	pos := activePosition()
	pos.Expiry = 1

	got, err := Exercise(pos, owner)
	require.NoError(t, err)
	assert.Equal(t, domain.PositionStatusExercised, got.Status)
}

func TestDisplayStatus(t *testing.T) {
	now := time.Unix(1_000, 0)

	pos := activePosition()
	pos.Expiry = 2_000
	assert.Equal(t, domain.PositionStatusActive, DisplayStatus(pos, now))
	assert.False(t, Expired(pos, now))

	pos.Expiry = 1_000
	assert.True(t, Expired(pos, now))
	assert.Equal(t, domain.PositionStatusExpired, DisplayStatus(pos, now))
	assert.Equal(t, domain.PositionStatusActive, pos.Status)

	pos.Status = domain.PositionStatusExercised
	assert.Equal(t, domain.PositionStatusExercised, DisplayStatus(pos, now))
}

func TestIsOwner(t *testing.T) {
	pos := activePosition()
	assert.True(t, IsOwner(pos, owner))
	assert.True(t, IsOwner(pos, "0XABCDEF0000000000000000000000000000000001"))
	assert.False(t, IsOwner(pos, "  "))

	pos.Owner = ""
	assert.False(t, IsOwner(pos, ""))
}
