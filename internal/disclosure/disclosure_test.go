package disclosure

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/rwaoptions/internal/codec"
	"github.com/alanyoungcy/rwaoptions/internal/domain"
)

// fakeWallet records every message it is asked to sign.
type fakeWallet struct {
	err      error
	messages []string
}

func (f *fakeWallet) SignMessage(_ context.Context, message string) (string, error) {
	f.messages = append(f.messages, message)
	if f.err != nil {
		return "", f.err
	}
	return "0xsig", nil
}

// countingCodec counts Decode calls.
type countingCodec struct {
	codec.Codec
	decodes int
}

func (c *countingCodec) Decode(ct string) (float64, error) {
	c.decodes++
	return c.Codec.Decode(ct)
}

func testParams() Params {
	return NewParams("0x04abcd", "0x5FbDB2315678afecb367f032d93F642f64180aa3", 11155111, time.Unix(1_700_000_000, 0), 30)
}

func newTestAuthorizer(w Wallet, c codec.Codec) *Authorizer {
	return NewAuthorizer(testParams(), w, c, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestParams_Message(t *testing.T) {
	want := "publickey:0x04abcd\n" +
		"contractAddresses:0x5FbDB2315678afecb367f032d93F642f64180aa3\n" +
		"contractsChainId:11155111\n" +
		"startTimestamp:1700000000\n" +
		"durationDays:30"
	assert.Equal(t, want, testParams().Message())
}

func TestAuthorizer_DiscloseSuccess(t *testing.T) {
	w := &fakeWallet{}
	c := codec.New()
	a := newTestAuthorizer(w, c)

	ct, err := c.Encode(5000)
	require.NoError(t, err)

	v, err := a.Disclose(context.Background(), domain.FieldAmount, ct)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, v)
	require.Len(t, w.messages, 1)
	assert.Equal(t, testParams().Message(), w.messages[0])
}

func TestAuthorizer_RejectedNeverDecodes(t *testing.T) {
	w := &fakeWallet{err: domain.ErrUserRejected}
	c := &countingCodec{Codec: codec.New()}
	a := newTestAuthorizer(w, c)

	v, err := a.Disclose(context.Background(), domain.FieldPremium, "FHE-MTAw")
	assert.ErrorIs(t, err, domain.ErrUserRejected)
	assert.Zero(t, v)
	assert.Zero(t, c.decodes)
}

func TestAuthorizer_FreshSignaturePerRequest(t *testing.T) {
	w := &fakeWallet{}
	c := &countingCodec{Codec: codec.New()}
	a := newTestAuthorizer(w, c)

	premium, _ := c.Encode(100)
	amount, _ := c.Encode(5000)

	p, err := a.Disclose(context.Background(), domain.FieldPremium, premium)
	require.NoError(t, err)
	am, err := a.Disclose(context.Background(), domain.FieldAmount, amount)
	require.NoError(t, err)

	assert.Equal(t, 100.0, p)
	assert.Equal(t, 5000.0, am)
	assert.Len(t, w.messages, 2, "one signature request per disclosure")
	assert.Equal(t, 2, c.decodes, "one decode per disclosure")

	// A later rejection is not covered by the earlier signatures.
	w.err = domain.ErrUserRejected
	_, err = a.Disclose(context.Background(), domain.FieldPremium, premium)
	assert.ErrorIs(t, err, domain.ErrUserRejected)
	assert.Equal(t, 2, c.decodes)
}

func TestAuthorizer_DecodeFailureAfterSignature(t *testing.T) {
	a := newTestAuthorizer(&fakeWallet{}, codec.New())

	_, err := a.Disclose(context.Background(), domain.FieldPremium, "garbage")
	assert.ErrorIs(t, err, domain.ErrDecode)
}

func TestAuthorizer_UnknownWalletErrorIsSigningFailure(t *testing.T) {
	a := newTestAuthorizer(&fakeWallet{err: errors.New("device unplugged")}, codec.New())

	_, err := a.RequestSignature(context.Background())
	assert.ErrorIs(t, err, domain.ErrSigningFailed)
	assert.NotErrorIs(t, err, domain.ErrUserRejected)
}
