package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/rwaoptions/internal/codec"
	"github.com/alanyoungcy/rwaoptions/internal/disclosure"
	"github.com/alanyoungcy/rwaoptions/internal/domain"
	"github.com/alanyoungcy/rwaoptions/internal/ledger"
	"github.com/alanyoungcy/rwaoptions/internal/lifecycle"
)

// Event names published on the bus, written to the audit log and offered to
// the notifier.
const (
	EventPositionCreated   = "position_created"
	EventPositionExercised = "position_exercised"
	EventFieldDisclosed    = "field_disclosed"
	EventDisclosureDenied  = "disclosure_rejected"
	EventSnapshotWritten   = "snapshot_written"
)

// Notifier delivers operator alerts. Notify is filtered by event name.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Summary is the dashboard tally over all listed positions.
type Summary struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Exercised int `json:"exercised"`
}

// Catalog composes the codec, ledger, index, lifecycle and disclosure
// components into the create/list/exercise/disclose use cases of one
// session. Errors are returned to the caller; nothing is retried.
type Catalog struct {
	ledger  domain.Ledger
	index   *ledger.Index
	codec   codec.Codec
	auth    *disclosure.Authorizer
	session Session

	indexCAS bool
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier Notifier
	snaps    *snapshotter

	now    func() time.Time
	logger *slog.Logger
}

// NewCatalog creates a Catalog with its required collaborators. Optional
// ones are attached with the With* methods.
func NewCatalog(
	l domain.Ledger,
	c codec.Codec,
	auth *disclosure.Authorizer,
	session Session,
	logger *slog.Logger,
) *Catalog {
	return &Catalog{
		ledger:  l,
		index:   ledger.NewIndex(l, logger),
		codec:   c,
		auth:    auth,
		session: session,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "catalog")),
	}
}

// WithIndexCAS makes Create append through compare-and-swap, turning a lost
// index update into domain.ErrIndexConflict. The ledger must implement
// domain.SwapLedger.
func (c *Catalog) WithIndexCAS(enabled bool) *Catalog {
	c.indexCAS = enabled
	return c
}

// WithSignalBus publishes position events on domain.ChannelPositions.
func (c *Catalog) WithSignalBus(bus domain.SignalBus) *Catalog {
	c.bus = bus
	return c
}

// WithAudit records events in an audit store.
func (c *Catalog) WithAudit(audit domain.AuditStore) *Catalog {
	c.audit = audit
	return c
}

// AuditLog returns recorded events newest first. It returns
// domain.ErrDisabled when no audit store is attached.
func (c *Catalog) AuditLog(ctx context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	if c.audit == nil {
		return nil, fmt.Errorf("catalog: audit log: %w", domain.ErrDisabled)
	}
	entries, err := c.audit.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("catalog: audit log: %w", err)
	}
	return entries, nil
}

// WithNotifier forwards events to operator channels.
func (c *Catalog) WithNotifier(n Notifier) *Catalog {
	c.notifier = n
	return c
}

// WithClock overrides the time source.
func (c *Catalog) WithClock(now func() time.Time) *Catalog {
	c.now = now
	return c
}

// Session returns the session the catalog acts for.
func (c *Catalog) Session() Session {
	return c.session
}

// Create validates req, encodes the obscured fields, writes the record and
// then appends its id to the index. The two writes are independent: if the
// index write fails the record stays in the ledger undiscoverable.
func (c *Catalog) Create(ctx context.Context, req CreateRequest) (domain.Position, error) {
	strike, days, err := req.normalize()
	if err != nil {
		return domain.Position{}, fmt.Errorf("catalog: create: %w", err)
	}

	premium, err := c.codec.Encode(req.Premium)
	if err != nil {
		return domain.Position{}, fmt.Errorf("catalog: encode premium: %w", err)
	}
	amount, err := c.codec.Encode(req.Amount)
	if err != nil {
		return domain.Position{}, fmt.Errorf("catalog: encode amount: %w", err)
	}

	now := c.now()
	pos := domain.Position{
		ID:          newPositionID(now),
		Asset:       req.Asset,
		StrikePrice: strike,
		Expiry:      expiryAt(now, days),
		Premium:     premium,
		Amount:      amount,
		Type:        domain.PositionType(req.PositionType),
		Owner:       c.session.Account,
		Status:      domain.PositionStatusActive,
	}

	data, err := ledger.MarshalRecord(pos)
	if err != nil {
		return domain.Position{}, fmt.Errorf("catalog: create: %w", err)
	}
	if err := c.ledger.Set(ctx, ledger.RecordKey(pos.ID), data); err != nil {
		return domain.Position{}, fmt.Errorf("catalog: write record %s: %w", pos.ID, err)
	}

	if c.indexCAS {
		err = c.index.AppendChecked(ctx, pos.ID)
	} else {
		err = c.index.Append(ctx, pos.ID)
	}
	if err != nil {
		c.logger.ErrorContext(ctx, "catalog: record written but not indexed",
			slog.String("position_id", pos.ID),
			slog.String("error", err.Error()),
		)
		return domain.Position{}, fmt.Errorf("catalog: index %s: %w", pos.ID, err)
	}

	c.emit(ctx, EventPositionCreated, map[string]any{
		"position_id":   pos.ID,
		"asset":         pos.Asset,
		"strike_price":  pos.StrikePrice,
		"expiry":        pos.Expiry,
		"position_type": string(pos.Type),
		"owner":         pos.Owner,
	})
	c.notify(ctx, EventPositionCreated, "Position created",
		fmt.Sprintf("%s %s strike %s, expires %s", pos.Asset, pos.Type, pos.StrikePrice, pos.ExpiresAt().Format(time.DateOnly)))

	c.logger.InfoContext(ctx, "catalog: position created",
		slog.String("position_id", pos.ID),
		slog.String("asset", pos.Asset),
		slog.String("position_type", string(pos.Type)),
		slog.Int64("expiry", pos.Expiry),
	)
	return pos, nil
}

// List returns every indexed position ordered by expiry, latest first. An
// unavailable ledger yields an empty list. Records that are missing or fail
// to parse are skipped and logged; a failed ledger call aborts the listing.
func (c *Catalog) List(ctx context.Context) ([]domain.Position, error) {
	if !c.ledger.IsAvailable(ctx) {
		c.logger.WarnContext(ctx, "catalog: ledger unavailable, returning empty list")
		return []domain.Position{}, nil
	}

	ids, err := c.index.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("catalog: list: %w", err)
	}

	out := make([]domain.Position, 0, len(ids))
	for _, id := range ids {
		data, err := c.ledger.Get(ctx, ledger.RecordKey(id))
		if err != nil {
			return nil, fmt.Errorf("catalog: list: get %s: %w", id, err)
		}
		if len(data) == 0 {
			c.logger.WarnContext(ctx, "catalog: indexed position has no record",
				slog.String("position_id", id),
			)
			continue
		}
		pos, err := ledger.ParseRecord(id, data)
		if err != nil {
			c.logger.WarnContext(ctx, "catalog: skipping unparseable record",
				slog.String("position_id", id),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, pos)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Expiry > out[j].Expiry
	})
	return out, nil
}

// Get loads one position. A missing record is domain.ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (domain.Position, error) {
	pos, _, err := c.load(ctx, id)
	return pos, err
}

// load reads and parses one record, returning the raw payload alongside.
func (c *Catalog) load(ctx context.Context, id string) (domain.Position, []byte, error) {
	data, err := c.ledger.Get(ctx, ledger.RecordKey(id))
	if err != nil {
		return domain.Position{}, nil, fmt.Errorf("catalog: get %s: %w", id, err)
	}
	if len(data) == 0 {
		return domain.Position{}, nil, fmt.Errorf("catalog: position %s: %w", id, domain.ErrNotFound)
	}
	pos, err := ledger.ParseRecord(id, data)
	if err != nil {
		return domain.Position{}, nil, fmt.Errorf("catalog: get %s: %w", id, err)
	}
	return pos, data, nil
}

// Exercise moves an active position owned by the session account to
// exercised. Any other caller or state yields domain.ErrAuthorization and
// the ledger is not written. Only the stored status changes; every other
// field of the record is written back as read.
func (c *Catalog) Exercise(ctx context.Context, id string) (domain.Position, error) {
	pos, raw, err := c.load(ctx, id)
	if err != nil {
		return domain.Position{}, err
	}

	updated, err := lifecycle.Exercise(pos, c.session.Account)
	if err != nil {
		c.logger.WarnContext(ctx, "catalog: exercise rejected",
			slog.String("position_id", id),
			slog.String("status", string(pos.Status)),
			slog.String("caller", c.session.Account),
		)
		return domain.Position{}, fmt.Errorf("catalog: exercise %s: %w", id, err)
	}

	data, err := ledger.SetStatus(raw, updated.Status)
	if err != nil {
		return domain.Position{}, fmt.Errorf("catalog: exercise %s: %w", id, err)
	}
	if err := c.ledger.Set(ctx, ledger.RecordKey(id), data); err != nil {
		return domain.Position{}, fmt.Errorf("catalog: write record %s: %w", id, err)
	}

	c.emit(ctx, EventPositionExercised, map[string]any{
		"position_id": id,
		"asset":       updated.Asset,
		"owner":       updated.Owner,
	})
	c.notify(ctx, EventPositionExercised, "Position exercised",
		fmt.Sprintf("%s %s strike %s (%s)", updated.Asset, updated.Type, updated.StrikePrice, id))

	c.logger.InfoContext(ctx, "catalog: position exercised",
		slog.String("position_id", id),
	)
	return updated, nil
}

// Disclose reveals one obscured field of a position after a fresh wallet
// signature. On rejection nothing is decoded.
func (c *Catalog) Disclose(ctx context.Context, id string, field domain.ObscuredField) (float64, error) {
	pos, err := c.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	ct, ok := pos.Ciphertext(field)
	if !ok {
		return 0, fmt.Errorf("catalog: disclose %s: unknown field %q: %w", id, field, domain.ErrValidation)
	}

	v, err := c.auth.Disclose(ctx, field, ct)
	if err != nil {
		if errors.Is(err, domain.ErrUserRejected) {
			c.emit(ctx, EventDisclosureDenied, map[string]any{
				"position_id": id,
				"field":       string(field),
			})
		}
		return 0, fmt.Errorf("catalog: disclose %s %s: %w", id, field, err)
	}

	// The decoded value is returned to the caller only; events carry the
	// field name, never the plaintext.
	c.emit(ctx, EventFieldDisclosed, map[string]any{
		"position_id": id,
		"field":       string(field),
	})
	return v, nil
}

// Summary tallies the listed positions by stored status.
func (c *Catalog) Summary(ctx context.Context) (Summary, error) {
	positions, err := c.List(ctx)
	if err != nil {
		return Summary{}, err
	}
	s := Summary{Total: len(positions)}
	for _, p := range positions {
		switch p.Status {
		case domain.PositionStatusActive:
			s.Active++
		case domain.PositionStatusExercised:
			s.Exercised++
		}
	}
	return s, nil
}

// emit publishes an event on the bus and records it in the audit log. Both
// are best effort: failures are logged and do not fail the operation.
func (c *Catalog) emit(ctx context.Context, event string, detail map[string]any) {
	if c.bus != nil {
		payload := make(map[string]any, len(detail)+2)
		for k, v := range detail {
			payload[k] = v
		}
		payload["event"] = event
		payload["timestamp"] = c.now().UTC().Format(time.RFC3339)

		evt, err := json.Marshal(payload)
		if err != nil {
			c.logger.WarnContext(ctx, "catalog: marshal event failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		} else if err := c.bus.Publish(ctx, domain.ChannelPositions, evt); err != nil {
			c.logger.WarnContext(ctx, "catalog: publish event failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}

	if c.audit != nil {
		if err := c.audit.Log(ctx, event, detail); err != nil {
			c.logger.WarnContext(ctx, "catalog: audit log failed",
				slog.String("event", event),
				slog.String("error", err.Error()),
			)
		}
	}
}

func (c *Catalog) notify(ctx context.Context, event, title, message string) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Notify(ctx, event, title, message); err != nil {
		c.logger.WarnContext(ctx, "catalog: notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
