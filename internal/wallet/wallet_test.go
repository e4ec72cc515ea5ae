package wallet

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/rwaoptions/internal/crypto"
	"github.com/alanyoungcy/rwaoptions/internal/domain"
)

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func newTestWallet(t *testing.T, autoApprove bool) *KeyWallet {
	t.Helper()
	s, err := crypto.NewSigner(testKeyHex)
	require.NoError(t, err)
	return New(s, autoApprove, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestKeyWallet_AutoApprove(t *testing.T) {
	w := newTestWallet(t, true)

	sig, err := w.SignMessage(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, sig, 2+65*2)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", w.Account())
}

func TestKeyWallet_ExplicitApprovalOverridesDefault(t *testing.T) {
	w := newTestWallet(t, false)

	_, err := w.SignMessage(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrUserRejected)

	_, err = w.SignMessage(WithApproval(context.Background(), true), "hello")
	assert.NoError(t, err)

	auto := newTestWallet(t, true)
	_, err = auto.SignMessage(WithApproval(context.Background(), false), "hello")
	assert.ErrorIs(t, err, domain.ErrUserRejected)
}

func TestKeyWallet_CancelledContext(t *testing.T) {
	w := newTestWallet(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.SignMessage(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApprovalFrom(t *testing.T) {
	_, ok := ApprovalFrom(context.Background())
	assert.False(t, ok)

	v, ok := ApprovalFrom(WithApproval(context.Background(), true))
	assert.True(t, ok)
	assert.True(t, v)
}
