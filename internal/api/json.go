package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/bookbot/internal/apperr"
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

var errorStatus = []struct {
	err    error
	status int
}{
	{apperr.ErrNotFound, http.StatusNotFound},
	{apperr.ErrNoBook, http.StatusConflict},
	{apperr.ErrEmptyTranscript, http.StatusConflict},
	{apperr.ErrNotPDF, http.StatusUnsupportedMediaType},
	{apperr.ErrUnreadableDocument, http.StatusUnprocessableEntity},
	{apperr.ErrEmptyDocument, http.StatusUnprocessableEntity},
	{apperr.ErrEmptyQuestion, http.StatusBadRequest},
	{apperr.ErrInvalidAnswerLimit, http.StatusBadRequest},
	{apperr.ErrInvalidMode, http.StatusBadRequest},
	{apperr.ErrMissingCredential, http.StatusBadRequest},
	{apperr.ErrUnsupportedFormat, http.StatusBadRequest},
}

// writeError maps a service error to a status and a user-facing message.
// Unknown errors are logged and reported as internal errors.
func writeError(w http.ResponseWriter, op string, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			writeJSON(w, e.status, errorBody(e.err.Error()))
			return
		}
	}
	slog.Error(op+" failed", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}
