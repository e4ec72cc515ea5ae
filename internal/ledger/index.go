package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/rwaoptions/internal/domain"
)

// Index maintains the ordered list of known position ids as a single ledger
// value under IndexKey.
//
// Append is a plain read-modify-write: two appends that observe the same
// prior index each write a list missing the other's id, and one id is lost.
// Nothing here serialises appends. AppendChecked turns that lost update into
// domain.ErrIndexConflict when the ledger supports compare-and-swap.
type Index struct {
	ledger domain.Ledger
	logger *slog.Logger
}

// NewIndex creates an Index over l.
func NewIndex(l domain.Ledger, logger *slog.Logger) *Index {
	return &Index{
		ledger: l,
		logger: logger.With(slog.String("component", "position_index")),
	}
}

// List returns the indexed ids in insertion order. A missing or malformed
// index is reported as empty; only ledger failures are returned.
func (ix *Index) List(ctx context.Context) ([]string, error) {
	ids, _, err := ix.load(ctx)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Append adds id to the end of the index by fetching the current list,
// appending, and storing the result back.
func (ix *Index) Append(ctx context.Context, id string) error {
	ids, _, err := ix.load(ctx)
	if err != nil {
		return err
	}

	ids = append(ids, id)
	data, err := MarshalIndex(ids)
	if err != nil {
		return err
	}

	if err := ix.ledger.Set(ctx, IndexKey, data); err != nil {
		return fmt.Errorf("ledger: store index: %w", err)
	}

	ix.logger.DebugContext(ctx, "index: appended",
		slog.String("position_id", id),
		slog.Int("size", len(ids)),
	)
	return nil
}

// AppendChecked behaves like Append but only stores the new list if the
// index still holds exactly the bytes that were read. When another writer
// got there first it returns domain.ErrIndexConflict and writes nothing.
// There is no retry; the caller decides whether to try again.
func (ix *Index) AppendChecked(ctx context.Context, id string) error {
	swapper, ok := ix.ledger.(domain.SwapLedger)
	if !ok {
		return fmt.Errorf("ledger: checked append needs compare-and-swap: %w", domain.ErrDisabled)
	}

	ids, raw, err := ix.load(ctx)
	if err != nil {
		return err
	}

	ids = append(ids, id)
	data, err := MarshalIndex(ids)
	if err != nil {
		return err
	}

	swapped, err := swapper.CompareAndSwap(ctx, IndexKey, raw, data)
	if err != nil {
		return fmt.Errorf("ledger: swap index: %w", err)
	}
	if !swapped {
		ix.logger.WarnContext(ctx, "index: concurrent update detected",
			slog.String("position_id", id),
		)
		return fmt.Errorf("ledger: append %s: %w", id, domain.ErrIndexConflict)
	}
	return nil
}

// load fetches and parses the index, returning the parsed ids together with
// the raw bytes they came from. Parse failures are logged and treated as an
// empty index.
func (ix *Index) load(ctx context.Context) ([]string, []byte, error) {
	raw, err := ix.ledger.Get(ctx, IndexKey)
	if err != nil {
		return nil, nil, fmt.Errorf("ledger: fetch index: %w", err)
	}

	ids, err := ParseIndex(raw)
	if err != nil {
		if !errors.Is(err, domain.ErrParse) {
			return nil, nil, err
		}
		ix.logger.WarnContext(ctx, "index: malformed payload treated as empty",
			slog.Int("bytes", len(raw)),
			slog.String("error", err.Error()),
		)
		return []string{}, raw, nil
	}
	return ids, raw, nil
}
