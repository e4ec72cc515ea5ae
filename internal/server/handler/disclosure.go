package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/rwaoptions/internal/domain"
	"github.com/alanyoungcy/rwaoptions/internal/service"
	"github.com/alanyoungcy/rwaoptions/internal/wallet"
)

// DisclosureService reveals obscured fields and describes the session.
type DisclosureService interface {
	Disclose(ctx context.Context, id string, field domain.ObscuredField) (float64, error)
	Session() service.Session
}

// DisclosureHandler serves the reveal and session endpoints.
type DisclosureHandler struct {
	svc    DisclosureService
	logger *slog.Logger
}

// NewDisclosureHandler creates a DisclosureHandler.
func NewDisclosureHandler(svc DisclosureService, logger *slog.Logger) *DisclosureHandler {
	return &DisclosureHandler{
		svc:    svc,
		logger: logger.With(slog.String("handler", "disclosure")),
	}
}

// discloseRequest names the field to reveal. Approve is the user's answer to
// the signature prompt; when absent the wallet's default policy applies.
type discloseRequest struct {
	Field   domain.ObscuredField `json:"field"`
	Approve *bool                `json:"approve"`
}

type discloseResponse struct {
	PositionID string               `json:"positionId"`
	Field      domain.ObscuredField `json:"field"`
	Value      float64              `json:"value"`
}

// Disclose reveals one obscured field after a fresh signature.
// POST /api/positions/{id}/disclose
func (h *DisclosureHandler) Disclose(w http.ResponseWriter, r *http.Request) {
	var req discloseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, h.logger, "disclose", err)
		return
	}

	ctx := r.Context()
	if req.Approve != nil {
		ctx = wallet.WithApproval(ctx, *req.Approve)
	}

	id := r.PathValue("id")
	v, err := h.svc.Disclose(ctx, id, req.Field)
	if err != nil {
		writeServiceError(w, r, h.logger, "disclose", err)
		return
	}
	writeJSON(w, http.StatusOK, discloseResponse{PositionID: id, Field: req.Field, Value: v})
}

type sessionResponse struct {
	Account         string `json:"account"`
	PublicKey       string `json:"publicKey"`
	ContractAddress string `json:"contractAddress"`
	ChainID         int64  `json:"chainId"`
	StartTimestamp  int64  `json:"startTimestamp"`
	DurationDays    int    `json:"durationDays"`
	Message         string `json:"message"`
}

// Session describes the session account and the message it signs.
// GET /api/session
func (h *DisclosureHandler) Session(w http.ResponseWriter, r *http.Request) {
	s := h.svc.Session()
	writeJSON(w, http.StatusOK, sessionResponse{
		Account:         s.Account,
		PublicKey:       s.Params.PublicKey,
		ContractAddress: s.Params.ContractAddress,
		ChainID:         s.Params.ChainID,
		StartTimestamp:  s.Params.StartTimestamp,
		DurationDays:    s.Params.DurationDays,
		Message:         s.Message(),
	})
}
