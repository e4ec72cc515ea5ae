package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/rwaoptions/internal/domain"
)

const (
	// DefaultExpiryDays is used when a create request leaves expiry unset.
	DefaultExpiryDays = 30
	// MaxExpiryDays bounds how far out a position may expire.
	MaxExpiryDays = 365
)

// CreateRequest is the user input for opening a position. Premium and Amount
// are plaintext here and never leave the service unencoded.
type CreateRequest struct {
	Asset        string  `json:"asset" validate:"required,oneof=USDT USDC DAI WBTC WETH"`
	StrikePrice  string  `json:"strikePrice" validate:"required"`
	ExpiryDays   int     `json:"expiryDays" validate:"omitempty,min=1,max=365"`
	Premium      float64 `json:"premium" validate:"gte=0"`
	Amount       float64 `json:"amount" validate:"gte=0"`
	PositionType string  `json:"positionType" validate:"required,oneof=call put"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// normalize validates req and returns the strike price as entered (trimmed)
// plus the effective expiry window.
func (req CreateRequest) normalize() (string, int, error) {
	if err := validate.Struct(req); err != nil {
		return "", 0, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	strike := strings.TrimSpace(req.StrikePrice)
	d, err := decimal.NewFromString(strike)
	if err != nil {
		return "", 0, fmt.Errorf("%w: strike price %q is not a decimal", domain.ErrValidation, req.StrikePrice)
	}
	if !d.IsPositive() {
		return "", 0, fmt.Errorf("%w: strike price must be positive", domain.ErrValidation)
	}

	days := req.ExpiryDays
	if days == 0 {
		days = DefaultExpiryDays
	}
	return strike, days, nil
}

// expiryAt returns the unix-seconds expiry days after now.
func expiryAt(now time.Time, days int) int64 {
	return now.Unix() + int64(days)*86400
}

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// newPositionID returns "<unix-millis>-<7 lowercase alphanumerics>". The
// suffix is drawn from a random UUID; uniqueness is not checked against
// the ledger.
func newPositionID(now time.Time) string {
	u := uuid.New()
	var suffix [7]byte
	for i := range suffix {
		suffix[i] = idAlphabet[int(u[i])%len(idAlphabet)]
	}
	return fmt.Sprintf("%d-%s", now.UnixMilli(), suffix[:])
}
