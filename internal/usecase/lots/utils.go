package lots

import (
	"errors"
	"strconv"

	"agritrace/internal/domain/lot"
	"agritrace/internal/ports"
)

func itoa(v int) string {
	return strconv.Itoa(v)
}

func fieldError(field string, message string) error {
	return &lot.ValidationError{Fields: []lot.FieldError{{Field: field, Message: message}}}
}

// transitionResult labels the outcome of a lifecycle write for metrics.
func transitionResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, lot.ErrValidation):
		return "validation"
	case errors.Is(err, lot.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, lot.ErrUnauthorizedRole):
		return "unauthorized_role"
	case errors.Is(err, ports.ErrLotNotFound):
		return "not_found"
	case errors.Is(err, ports.ErrVersionConflict):
		return "version_conflict"
	default:
		return "error"
	}
}
