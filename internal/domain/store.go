package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// Ledger is the external key/value store holding position records and the
// position index. A missing key yields an empty byte slice and a nil error.
// Calls are independent; none are atomic with respect to each other, and no
// implementation retries on failure.
type Ledger interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	IsAvailable(ctx context.Context) bool
}

// SwapLedger is implemented by ledgers that can atomically replace a value
// only when it still equals an expected value. It returns false without
// writing when the current value differs from old.
type SwapLedger interface {
	Ledger
	CompareAndSwap(ctx context.Context, key string, old, new []byte) (bool, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"createdAt"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
