// Package wallet is the signing collaborator of the disclosure protocol. A
// KeyWallet holds the session account key and answers message signature
// requests, or rejects them when the user has not approved.
package wallet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/rwaoptions/internal/crypto"
	"github.com/alanyoungcy/rwaoptions/internal/domain"
)

type approvalKey struct{}

// WithApproval records whether the user approved signing for requests made
// with the returned context. It overrides the wallet's default policy.
func WithApproval(ctx context.Context, approved bool) context.Context {
	return context.WithValue(ctx, approvalKey{}, approved)
}

// ApprovalFrom returns the approval recorded by WithApproval, if any.
func ApprovalFrom(ctx context.Context) (approved, ok bool) {
	approved, ok = ctx.Value(approvalKey{}).(bool)
	return approved, ok
}

// KeyWallet signs messages with a local secp256k1 key.
type KeyWallet struct {
	signer      *crypto.Signer
	autoApprove bool
	logger      *slog.Logger
}

// New creates a KeyWallet. When autoApprove is false, a request is signed
// only if its context carries an explicit approval.
func New(signer *crypto.Signer, autoApprove bool, logger *slog.Logger) *KeyWallet {
	return &KeyWallet{
		signer:      signer,
		autoApprove: autoApprove,
		logger:      logger.With(slog.String("component", "wallet")),
	}
}

// Account returns the checksummed address of the wallet.
func (w *KeyWallet) Account() string {
	return w.signer.Address().Hex()
}

// SignMessage returns a personal_sign signature over message, or
// domain.ErrUserRejected when the request is not approved.
func (w *KeyWallet) SignMessage(ctx context.Context, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("wallet: sign: %w", err)
	}

	approved := w.autoApprove
	if v, ok := ApprovalFrom(ctx); ok {
		approved = v
	}
	if !approved {
		w.logger.InfoContext(ctx, "wallet: signature request declined",
			slog.String("account", w.Account()),
		)
		return "", fmt.Errorf("wallet: sign: %w", domain.ErrUserRejected)
	}

	sig, err := w.signer.SignText(message)
	if err != nil {
		return "", fmt.Errorf("wallet: sign: %w: %v", domain.ErrSigningFailed, err)
	}
	return sig, nil
}
