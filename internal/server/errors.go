package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/resume-builder/internal/db"
	"github.com/jonathan/resume-builder/internal/schemas"
	"github.com/jonathan/resume-builder/internal/templates"
)

// ErrFeatureDisabled is returned by endpoints whose collaborator was not configured.
var ErrFeatureDisabled = errors.New("feature not configured")

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var verr *ErrValidation
	var serr *schemas.ValidationError
	var fieldErrs validator.ValidationErrors

	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr), errors.As(err, &serr), errors.As(err, &fieldErrs):
		return http.StatusBadRequest
	case errors.Is(err, templates.ErrUnknownTemplate):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound), errors.Is(err, ErrInvalidShareToken):
		return http.StatusNotFound
	case errors.Is(err, ErrFeatureDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fieldErrors flattens validation errors into {field, message} pairs for
// response bodies. It returns nil for other errors.
func fieldErrors(err error) []schemas.FieldError {
	var serr *schemas.ValidationError
	if errors.As(err, &serr) {
		return serr.Errors
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make([]schemas.FieldError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			out = append(out, schemas.FieldError{
				Field:   fe.Field(),
				Message: fmt.Sprintf("failed %q validation", fe.Tag()),
			})
		}
		return out
	}

	var verr *ErrValidation
	if errors.As(err, &verr) {
		return []schemas.FieldError{{Field: verr.Field, Message: verr.Message}}
	}
	return nil
}

// validationResponse writes a 400 with per-field details.
func (s *Server) validationResponse(w http.ResponseWriter, err error) {
	s.jsonResponse(w, http.StatusBadRequest, map[string]any{
		"error":  "Invalid request",
		"fields": fieldErrors(err),
	})
}
