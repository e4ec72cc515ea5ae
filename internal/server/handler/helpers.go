// Package handler holds the HTTP handlers of the options API. Each handler
// depends on a narrow interface over the service layer and maps domain
// errors to status codes at the boundary.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/rwaoptions/internal/domain"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// writeJSON marshals v and writes it with status. A marshal failure becomes
// a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError sends {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps a domain error to an HTTP status and a client-safe
// message. Validation errors keep their detail; everything else reports
// only the sentinel text.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.ErrNotFound.Error()
	case errors.Is(err, domain.ErrDisabled):
		return http.StatusNotFound, domain.ErrDisabled.Error()
	case errors.Is(err, domain.ErrAuthorization):
		return http.StatusForbidden, domain.ErrAuthorization.Error()
	case errors.Is(err, domain.ErrUserRejected):
		return http.StatusConflict, domain.ErrUserRejected.Error()
	case errors.Is(err, domain.ErrIndexConflict):
		return http.StatusConflict, domain.ErrIndexConflict.Error()
	case errors.Is(err, domain.ErrLockHeld):
		return http.StatusConflict, domain.ErrLockHeld.Error()
	case errors.Is(err, domain.ErrDecode):
		return http.StatusUnprocessableEntity, domain.ErrDecode.Error()
	case errors.Is(err, domain.ErrParse):
		return http.StatusUnprocessableEntity, domain.ErrParse.Error()
	case errors.Is(err, domain.ErrNetwork):
		return http.StatusServiceUnavailable, domain.ErrNetwork.Error()
	case errors.Is(err, domain.ErrSigningFailed):
		return http.StatusBadGateway, domain.ErrSigningFailed.Error()
	}
	return http.StatusInternalServerError, "internal server error"
}

// writeServiceError logs err and answers with its mapped status. Client
// errors log at warn, server errors at error.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, action string, err error) {
	status, msg := errorStatus(err)
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	logger.Log(r.Context(), level, "handler: "+action+" failed",
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	writeError(w, status, msg)
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrValidation, err)
	}
	return nil
}

// parseListOpts reads limit, offset, since and until from the query string.
// Defaults: limit=50 (max 500), offset=0. since and until are RFC 3339
// timestamps; a malformed value is an ErrValidation.
func parseListOpts(r *http.Request) (domain.ListOpts, error) {
	q := r.URL.Query()

	limit := 50
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}

	offset := 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	opts := domain.ListOpts{Limit: limit, Offset: offset}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &opts.Since}, {"until", &opts.Until}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return domain.ListOpts{}, fmt.Errorf("%w: %s must be an RFC 3339 timestamp", domain.ErrValidation, p.name)
		}
		*p.dst = &t
	}
	return opts, nil
}
