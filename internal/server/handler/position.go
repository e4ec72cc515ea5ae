package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/rwaoptions/internal/domain"
	"github.com/alanyoungcy/rwaoptions/internal/lifecycle"
	"github.com/alanyoungcy/rwaoptions/internal/service"
)

// PositionService is the part of the catalog the position endpoints use.
type PositionService interface {
	Create(ctx context.Context, req service.CreateRequest) (domain.Position, error)
	List(ctx context.Context) ([]domain.Position, error)
	Get(ctx context.Context, id string) (domain.Position, error)
	Exercise(ctx context.Context, id string) (domain.Position, error)
	Summary(ctx context.Context) (service.Summary, error)
}

// PositionHandler serves the position endpoints for one session account.
type PositionHandler struct {
	positions PositionService
	account   string
	now       func() time.Time
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler. account is used to compute
// whether the viewer may exercise each position.
func NewPositionHandler(positions PositionService, account string, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		account:   account,
		now:       time.Now,
		logger:    logger.With(slog.String("handler", "positions")),
	}
}

// positionView is a position as shown to the session account. Premium and
// amount stay obscured.
type positionView struct {
	domain.Position
	DisplayStatus domain.PositionStatus `json:"displayStatus"`
	ExpiresAt     string                `json:"expiresAt"`
	CanExercise   bool                  `json:"canExercise"`
}

func (h *PositionHandler) view(p domain.Position) positionView {
	return positionView{
		Position:      p,
		DisplayStatus: lifecycle.DisplayStatus(p, h.now()),
		ExpiresAt:     p.ExpiresAt().Format(time.RFC3339),
		CanExercise:   lifecycle.CanExercise(p, h.account),
	}
}

type listPositionsResponse struct {
	Positions []positionView `json:"positions"`
}

// ListPositions returns all positions, latest expiry first.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.List(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "list positions", err)
		return
	}

	out := make([]positionView, 0, len(positions))
	for _, p := range positions {
		out = append(out, h.view(p))
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: out})
}

// GetPosition returns one position.
// GET /api/positions/{id}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	pos, err := h.positions.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get position", err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(pos))
}

// CreatePosition opens a position owned by the session account.
// POST /api/positions
func (h *PositionHandler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, "create position", err)
		return
	}

	pos, err := h.positions.Create(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, h.logger, "create position", err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(pos))
}

// ExercisePosition exercises a position as the session account.
// POST /api/positions/{id}/exercise
func (h *PositionHandler) ExercisePosition(w http.ResponseWriter, r *http.Request) {
	pos, err := h.positions.Exercise(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, "exercise position", err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(pos))
}

// Summary returns dashboard totals.
// GET /api/summary
func (h *PositionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.positions.Summary(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, "summary", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
