package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/domain/lot"
	"agritrace/internal/errs"
	"agritrace/internal/ports"
	"agritrace/internal/usecase/lots"
)

// statusFor maps error kinds to HTTP codes. Anything unrecognised is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lot.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, lot.ErrUnauthorizedRole):
		return http.StatusForbidden
	case errors.Is(err, ports.ErrLotNotFound), errors.Is(err, ports.ErrBlobNotFound):
		return http.StatusNotFound
	case errors.Is(err, lot.ErrInvalidTransition),
		errors.Is(err, ports.ErrVersionConflict),
		errors.Is(err, ports.ErrLotExists),
		errors.Is(err, lots.ErrCertificateExists):
		return http.StatusConflict
	case errors.Is(err, ports.ErrStoreUnavailable), errors.Is(err, lots.ErrGeneratorDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorStatus(w, r, statusFor(err), err)
}

func writeErrorStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	body := errorResponse{Error: err.Error()}
	var verr *lot.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}

	if status >= http.StatusInternalServerError {
		logging.Error(
			logging.WithAttrs(r.Context(), slog.String("component", "httpapi")),
			"request failed",
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.Any("err", errs.Loggable(err)),
		)
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	}
	writeJSON(w, status, body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := decoder.Decode(dst); err != nil {
		return &lot.ValidationError{Fields: []lot.FieldError{{Field: "body", Message: "must be a JSON object"}}}
	}
	return nil
}
