package cargoapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BearBump/CargoTrack/internal/models"
	"github.com/pkg/errors"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, errUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, models.ErrConflict), errors.Is(err, models.ErrStaleStatus):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusBadRequest, "INVALID_TRANSITION"
	case errors.Is(err, models.ErrInvalidArgument):
		return http.StatusBadRequest, "BAD_REQUEST"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeError(w http.ResponseWriter, err error) {
	code, name := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		slog.Error("request failed", "error", msg)
		msg = "internal error"
	}
	writeJSON(w, code, errorBody{Error: msg, Code: name})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return errors.Wrapf(models.ErrInvalidArgument, "bad json: %v", err)
	}
	return nil
}

type pageResponse[T any] struct {
	Data []T             `json:"data"`
	Meta models.PageMeta `json:"meta"`
}

func writeErrorLogOnly(err error) {
	slog.Error("write response", "error", err.Error())
}
