package domain

import (
	"errors"
	"fmt"
)

var (
	ErrStreamNotFound         = errors.New("stream record not found")
	ErrStreamExists           = errors.New("stream record already exists")
	ErrInvalidIdentity        = errors.New("invalid broadcaster identity")
	ErrInvalidInputMode       = errors.New("invalid input mode")
	ErrWebhookUnauthenticated = errors.New("webhook authorization missing")
	ErrWebhookInvalid         = errors.New("webhook verification failed")
	ErrLockTimeout            = errors.New("identity lock wait timed out")
)

type ProvisionErrorKind string

const (
	ProvisionErrInvalidInput ProvisionErrorKind = "invalid_input"
	ProvisionErrPrecondition ProvisionErrorKind = "precondition"
	ProvisionErrLocked       ProvisionErrorKind = "locked"
	ProvisionErrProvider     ProvisionErrorKind = "provider"
	ProvisionErrIncomplete   ProvisionErrorKind = "incomplete"
	ProvisionErrStorage      ProvisionErrorKind = "storage"
)

type ProvisionError struct {
	Kind    ProvisionErrorKind
	Message string
	Cause   error
}

func NewProvisionError(kind ProvisionErrorKind, message string, cause error) *ProvisionError {
	return &ProvisionError{Kind: kind, Message: message, Cause: cause}
}

func (e *ProvisionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("provision %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("provision %s: %s", e.Kind, e.Message)
}

func (e *ProvisionError) Unwrap() error {
	return e.Cause
}

// ProvisionErrorKindOf returns the kind of err, or "" when err is not a ProvisionError.
func ProvisionErrorKindOf(err error) ProvisionErrorKind {
	var pe *ProvisionError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
