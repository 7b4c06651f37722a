package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/linesmerrill/event-checkin-api/config"
	"github.com/linesmerrill/event-checkin-api/services"
)

const (
	rateLimiterTTL = 10 * time.Minute
	maxBodyBytes   = 1 << 20
)

// errorStatus maps the service error kinds to http status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, message string, err error) {
	code := services.ErrorCode(err)
	if code == "" {
		code = "internal"
	}
	config.ErrorStatusCode(message, code, errorStatus(err), w, err)
}

func respond(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// decode reads a json body of at most maxBodyBytes into v
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return false
	}
	return true
}
