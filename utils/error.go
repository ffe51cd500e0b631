package utils

import (
	"errors"
	"fmt"
)

// ErrorRecordNotFound is returned when a referenced entity does not exist or
// does not belong to the caller's establishment.
var ErrorRecordNotFound = errors.New("record not found")

// ValidationError marks malformed or missing required input. Pipelines abort
// immediately on it; the caller maps it to a terminal job error.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func ErrorPanic(err error) {
	if err != nil {
		panic(err)
	}
}
