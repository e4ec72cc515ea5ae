// Package disclosure gates local decoding of obscured fields behind a fresh
// wallet signature over a canonical session message.
//
// The signature is a gate only. It is not verified, and it is not bound to
// the ciphertext being revealed: any successful signature over the session
// message unlocks any field. Decoding goes through the codec regardless of
// what was signed.
package disclosure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/rwaoptions/internal/codec"
	"github.com/alanyoungcy/rwaoptions/internal/domain"
)

// Params is the session context folded into every disclosure message. It is
// fixed when the session starts and reused for every request.
type Params struct {
	PublicKey       string
	ContractAddress string
	ChainID         int64
	StartTimestamp  int64
	DurationDays    int
}

// NewParams builds Params for a session starting at start.
func NewParams(publicKey, contractAddress string, chainID int64, start time.Time, durationDays int) Params {
	return Params{
		PublicKey:       publicKey,
		ContractAddress: contractAddress,
		ChainID:         chainID,
		StartTimestamp:  start.Unix(),
		DurationDays:    durationDays,
	}
}

// Message renders the canonical newline-joined disclosure message.
func (p Params) Message() string {
	return strings.Join([]string{
		"publickey:" + p.PublicKey,
		"contractAddresses:" + p.ContractAddress,
		"contractsChainId:" + strconv.FormatInt(p.ChainID, 10),
		"startTimestamp:" + strconv.FormatInt(p.StartTimestamp, 10),
		"durationDays:" + strconv.Itoa(p.DurationDays),
	}, "\n")
}

// Wallet signs messages on behalf of the session account. SignMessage may
// block until the user answers and returns domain.ErrUserRejected when the
// user declines.
type Wallet interface {
	SignMessage(ctx context.Context, message string) (string, error)
}

// Authorizer issues signature requests and decodes fields once one succeeds.
type Authorizer struct {
	params Params
	wallet Wallet
	codec  codec.Codec
	logger *slog.Logger
}

// NewAuthorizer creates an Authorizer for one session.
func NewAuthorizer(params Params, w Wallet, c codec.Codec, logger *slog.Logger) *Authorizer {
	return &Authorizer{
		params: params,
		wallet: w,
		codec:  c,
		logger: logger.With(slog.String("component", "disclosure")),
	}
}

// Params returns the session parameters.
func (a *Authorizer) Params() Params {
	return a.params
}

// Message returns the canonical message for this session.
func (a *Authorizer) Message() string {
	return a.params.Message()
}

// RequestSignature asks the wallet to sign the session message. Wallet
// rejections keep domain.ErrUserRejected in the chain; other wallet failures
// are reported as domain.ErrSigningFailed.
func (a *Authorizer) RequestSignature(ctx context.Context) (string, error) {
	sig, err := a.wallet.SignMessage(ctx, a.Message())
	if err != nil {
		if errors.Is(err, domain.ErrUserRejected) || errors.Is(err, domain.ErrSigningFailed) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("disclosure: request signature: %w", err)
		}
		return "", fmt.Errorf("disclosure: request signature: %w: %v", domain.ErrSigningFailed, err)
	}
	return sig, nil
}

// Disclose requests a fresh signature and, only if it succeeds, decodes the
// ciphertext of field. Nothing is cached: every call issues its own
// signature request.
func (a *Authorizer) Disclose(ctx context.Context, field domain.ObscuredField, ciphertext string) (float64, error) {
	if _, err := a.RequestSignature(ctx); err != nil {
		a.logger.InfoContext(ctx, "disclosure: signature not obtained",
			slog.String("field", string(field)),
			slog.String("error", err.Error()),
		)
		return 0, err
	}

	v, err := a.codec.Decode(ciphertext)
	if err != nil {
		return 0, fmt.Errorf("disclosure: decode %s: %w", field, err)
	}
	return v, nil
}
