package models

import (
	"errors"
	"fmt"
)

// ErrorType classifies contact engine failures. The values double as the
// APIError.Type strings returned by the HTTP layer.
type ErrorType string

const (
	ValidationError   ErrorType = "ValidationError"
	NotFoundError     ErrorType = "NotFoundError"
	ConflictError     ErrorType = "ConflictError"
	SubscriptionError ErrorType = "SubscriptionError"
)

// Error is the typed error returned by the façade, the repositories and the cache.
type Error struct {
	Type    ErrorType
	Message string
	Field   string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewValidationError builds a ValidationError, optionally bound to a field.
func NewValidationError(field, message string) *Error {
	return &Error{Type: ValidationError, Field: field, Message: message}
}

// NewNotFoundError reports that entity id was absent at write time.
func NewNotFoundError(entity, id string) *Error {
	return &Error{Type: NotFoundError, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewConflictError builds a ConflictError.
func NewConflictError(message string) *Error {
	return &Error{Type: ConflictError, Message: message}
}

// WrapSubscriptionError wraps a change feed failure for a collection.
func WrapSubscriptionError(collection Collection, err error) *Error {
	return &Error{
		Type:    SubscriptionError,
		Message: fmt.Sprintf("subscription to %s failed", collection),
		Err:     err,
	}
}

// ErrorTypeOf returns the type of the first *Error in err's chain, or "" when there is none.
func ErrorTypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ""
}

func IsValidation(err error) bool   { return ErrorTypeOf(err) == ValidationError }
func IsNotFound(err error) bool     { return ErrorTypeOf(err) == NotFoundError }
func IsConflict(err error) bool     { return ErrorTypeOf(err) == ConflictError }
func IsSubscription(err error) bool { return ErrorTypeOf(err) == SubscriptionError }
