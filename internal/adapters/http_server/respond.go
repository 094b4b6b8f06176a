package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"flex_reviews/internal/domain"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("encode response failed")
		status = http.StatusInternalServerError
		body = []byte(`{"success":false,"error":"Internal server error"}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("write response failed")
	}
}

func writeError(w http.ResponseWriter, status int, title, msg string) {
	writeJSON(w, status, errorBody{Success: false, Error: title, Message: msg})
}

// writeServiceError maps service errors onto the envelope. fallback is the
// error title used for unexpected failures.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error(), "")
	case errors.Is(err, domain.ErrUnknownSource):
		writeError(w, http.StatusNotFound, "Unknown provider", "")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "Review not found", "")
	default:
		log.Error().Err(err).Msg(fallback)
		writeError(w, http.StatusInternalServerError, fallback, err.Error())
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	return `W/"` + hex.EncodeToString(sum[:]) + `"`, body
}

// writeWithETag answers 304 when the client already holds this representation.
func writeWithETag(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeError(w, http.StatusInternalServerError, "Internal server error", "")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("write response failed")
	}
}
