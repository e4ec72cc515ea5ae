package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/rwaoptions/internal/domain"
)

// Ledger implements domain.SwapLedger over plain Redis string keys. Values
// are stored verbatim; the key schema belongs to the ledger package.
type Ledger struct {
	rdb    *redis.Client
	prefix string
}

// NewLedger creates a Ledger. A non-empty prefix is prepended to every key
// so several deployments can share one database.
func NewLedger(c *Client, prefix string) *Ledger {
	return &Ledger{rdb: c.Underlying(), prefix: prefix}
}

func (l *Ledger) key(k string) string {
	return l.prefix + k
}

// Get returns the value at key, or an empty slice when the key is absent.
func (l *Ledger) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := l.rdb.Get(ctx, l.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return []byte{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: ledger get %s: %w: %v", key, domain.ErrNetwork, err)
	}
	return v, nil
}

// Set overwrites the value at key with no expiry.
func (l *Ledger) Set(ctx context.Context, key string, value []byte) error {
	if err := l.rdb.Set(ctx, l.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis: ledger set %s: %w: %v", key, domain.ErrNetwork, err)
	}
	return nil
}

// IsAvailable reports whether the server answers a ping.
func (l *Ledger) IsAvailable(ctx context.Context) bool {
	return l.rdb.Ping(ctx).Err() == nil
}

// CompareAndSwap writes new at key only if the current value equals old. An
// absent key compares equal to an empty old. It uses WATCH/MULTI and does
// not retry: a concurrent write between the read and EXEC reports false.
func (l *Ledger) CompareAndSwap(ctx context.Context, key string, old, new []byte) (bool, error) {
	k := l.key(key)
	swapped := false

	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, k).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if !bytes.Equal(cur, old) {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, k, new, 0)
			return nil
		})
		if err != nil {
			return err
		}
		swapped = true
		return nil
	}

	err := l.rdb.Watch(ctx, txf, k)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis: ledger cas %s: %w: %v", key, domain.ErrNetwork, err)
	}
	return swapped, nil
}

// Compile-time interface check.
var _ domain.SwapLedger = (*Ledger)(nil)
