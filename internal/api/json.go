package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/docvault/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusOf maps an error kind onto an HTTP status.
func statusOf(err error) int {
	switch apperr.KindOf(err) {
	case apperr.ErrNotFound:
		return http.StatusNotFound
	case apperr.ErrPathTraversal, apperr.ErrInvalidPath:
		return http.StatusBadRequest
	case apperr.ErrConflict:
		return http.StatusConflict
	case apperr.ErrEncoding:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as a JSON error body. Server-side failures are
// logged and reported without details.
func writeError(w http.ResponseWriter, op string, vaultID int64, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed", slog.Int64("vault_id", vaultID), slog.String("error", err.Error()))
		writeJSON(w, status, errorBody("internal error"))
		return
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg := ae.Kind.Error()
		if ae.Path != "" {
			msg = ae.Path + ": " + msg
		}
		writeJSON(w, status, errorBody(msg))
		return
	}
	writeJSON(w, status, errorBody(err.Error()))
}
