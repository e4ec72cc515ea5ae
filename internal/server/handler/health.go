package handler

import (
	"context"
	"net/http"
	"time"
)

// LedgerProbe reports ledger liveness.
type LedgerProbe interface {
	IsAvailable(ctx context.Context) bool
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	ledger LedgerProbe
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(ledger LedgerProbe) *HealthHandler {
	return &HealthHandler{ledger: ledger}
}

// HealthCheck reports process liveness and ledger availability. The process
// is healthy even when the ledger is not; listing then returns empty.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"ledgerAvailable": h.ledger.IsAvailable(r.Context()),
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	})
}
