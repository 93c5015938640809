package errors

import (
	"errors"
	"fmt"
)

var (
	// Notification errors
	ErrNotificationNotFound   = errors.New("notification not found")
	ErrEnqueueFailed          = errors.New("enqueue failed")
	ErrUnknownEvent           = errors.New("unknown notification event")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrClaimLost              = errors.New("notification claim lost")

	// Template errors
	ErrTemplateNotFound = errors.New("template not found")
	ErrTemplateInvalid  = errors.New("template invalid")

	// Delivery errors
	ErrInvalidRecipient   = errors.New("invalid recipient")
	ErrPermanentDelivery  = errors.New("permanent delivery failure")
	ErrTransientDelivery  = errors.New("transient delivery failure")
	ErrChannelUnavailable = errors.New("delivery channel unavailable")

	// Chat errors
	ErrConversationNotFound = errors.New("conversation not found")
	ErrEmptyMessage         = errors.New("message content is empty")

	// Lock errors
	ErrLockNotHeld = errors.New("lock not held")

	ErrUnauthorized = errors.New("unauthorized")
)

// IsPermanent reports whether a delivery error must not be retried.
// Anything not explicitly permanent is treated as transient.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrTemplateInvalid) ||
		errors.Is(err, ErrInvalidRecipient) ||
		errors.Is(err, ErrPermanentDelivery)
}

// DomainError attaches a machine-readable code to a wrapped sentinel, so
// callers can branch with errors.Is and still report the code.
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
