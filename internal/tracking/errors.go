package tracking

import (
	"errors"
	"fmt"
)

var (
	ErrBusNotFound      = errors.New("bus not found")
	ErrRouteNotFound    = errors.New("route not found")
	ErrNoRouteAssigned  = errors.New("bus is not assigned to a route")
	ErrVersionConflict  = errors.New("bus was modified by another update")
	ErrInvalidDirection = errors.New("invalid direction")
)

// ValidationError reports malformed input for a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
