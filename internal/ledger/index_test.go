package ledger

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/rwaoptions/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// barrierLedger holds every index read until n readers have arrived, so
// concurrent appends are guaranteed to observe the same prior index.
type barrierLedger struct {
	*Memory
	wg *sync.WaitGroup
}

func newBarrierLedger(n int) *barrierLedger {
	wg := &sync.WaitGroup{}
	wg.Add(n)
	return &barrierLedger{Memory: NewMemory(), wg: wg}
}

func (b *barrierLedger) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := b.Memory.Get(ctx, key)
	if key == IndexKey {
		b.wg.Done()
		b.wg.Wait()
	}
	return v, err
}

// plainLedger hides CompareAndSwap from the wrapped Memory.
type plainLedger struct {
	m *Memory
}

func (p plainLedger) Get(ctx context.Context, key string) ([]byte, error) { return p.m.Get(ctx, key) }
func (p plainLedger) Set(ctx context.Context, key string, v []byte) error  { return p.m.Set(ctx, key, v) }
func (p plainLedger) IsAvailable(ctx context.Context) bool                 { return p.m.IsAvailable(ctx) }

func TestIndex_ListEmptyWhenMissing(t *testing.T) {
	ix := NewIndex(NewMemory(), testLogger())

	ids, err := ix.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestIndex_SequentialAppendsPreserveOrder(t *testing.T) {
	ctx := context.Background()
	ix := NewIndex(NewMemory(), testLogger())

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, ix.Append(ctx, id))

		ids, err := ix.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id)
	}

	ids, err := ix.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestIndex_StoredAsJSONArray(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	ix := NewIndex(mem, testLogger())

	require.NoError(t, ix.Append(ctx, "p1"))
	require.NoError(t, ix.Append(ctx, "p2"))

	raw, err := mem.Get(ctx, IndexKey)
	require.NoError(t, err)
	assert.Equal(t, `["p1","p2"]`, string(raw))
}

func TestIndex_MalformedIndexListsEmpty(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, mem.Set(ctx, IndexKey, []byte("not json")))
	ix := NewIndex(mem, testLogger())

	ids, err := ix.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestIndex_AppendOverMalformedIndexStartsFresh(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	require.NoError(t, mem.Set(ctx, IndexKey, []byte("{broken")))
	ix := NewIndex(mem, testLogger())

	require.NoError(t, ix.Append(ctx, "p1"))

	ids, err := ix.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids)
}

func TestIndex_NetworkErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	mem := NewMemory()
	ix := NewIndex(mem, testLogger())
	mem.SetAvailable(false)

	_, err := ix.List(ctx)
	assert.ErrorIs(t, err, domain.ErrNetwork)

	err = ix.Append(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrNetwork)

	err = ix.AppendChecked(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

// Two appends that observe the same prior index lose one id. This is the
// documented behaviour of the read-modify-write index.
func TestIndex_InterleavedAppendsLoseAnUpdate(t *testing.T) {
	ctx := context.Background()
	bl := newBarrierLedger(2)
	ix := NewIndex(bl, testLogger())

	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, ix.Append(ctx, id))
		}(id)
	}
	wg.Wait()

	raw, err := bl.Memory.Get(ctx, IndexKey)
	require.NoError(t, err)
	ids, err := ParseIndex(raw)
	require.NoError(t, err)

	require.Len(t, ids, 1)
	assert.Contains(t, []string{"a", "b"}, ids[0])
}

func TestIndex_AppendCheckedDetectsConflict(t *testing.T) {
	ctx := context.Background()
	bl := newBarrierLedger(2)
	ix := NewIndex(bl, testLogger())

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			errs <- ix.AppendChecked(ctx, id)
		}(id)
	}
	wg.Wait()
	close(errs)

	var ok, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, domain.ErrIndexConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	raw, err := bl.Memory.Get(ctx, IndexKey)
	require.NoError(t, err)
	ids, err := ParseIndex(raw)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func TestIndex_AppendCheckedSequential(t *testing.T) {
	ctx := context.Background()
	ix := NewIndex(NewMemory(), testLogger())

	require.NoError(t, ix.AppendChecked(ctx, "a"))
	require.NoError(t, ix.AppendChecked(ctx, "b"))

	ids, err := ix.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestIndex_AppendCheckedNeedsSwapLedger(t *testing.T) {
	ix := NewIndex(plainLedger{m: NewMemory()}, testLogger())

	err := ix.AppendChecked(context.Background(), "a")
	assert.ErrorIs(t, err, domain.ErrDisabled)
}
