package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/rwaoptions/internal/service"
)

// SnapshotService exports the ledger to object storage.
type SnapshotService interface {
	Snapshot(ctx context.Context) (service.SnapshotResult, error)
}

// SnapshotHandler serves the snapshot trigger.
type SnapshotHandler struct {
	svc    SnapshotService
	logger *slog.Logger
}

// NewSnapshotHandler creates a SnapshotHandler.
func NewSnapshotHandler(svc SnapshotService, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{svc: svc, logger: logger.With(slog.String("handler", "snapshots"))}
}

// CreateSnapshot writes a ledger snapshot. 404 when snapshots are disabled,
// 409 while another snapshot holds the lock.
// POST /api/snapshots
func (h *SnapshotHandler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Snapshot(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "snapshot", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}
