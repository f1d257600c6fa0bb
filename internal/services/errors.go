package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a rejected operation.
type ErrorKind string

const (
	KindPrecondition       ErrorKind = "precondition"
	KindReferenceViolation ErrorKind = "reference_violation"
	KindPolicyViolation    ErrorKind = "policy_violation"
	KindNotFound           ErrorKind = "not_found"
	KindConflict           ErrorKind = "conflict"
	KindInternal           ErrorKind = "internal"
)

// DomainError is returned by every service operation that rejects a request.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, format string, args ...interface{}) *DomainError {
	return &DomainError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func preconditionf(format string, args ...interface{}) error {
	return newError(KindPrecondition, format, args...)
}

func referenceViolationf(format string, args ...interface{}) error {
	return newError(KindReferenceViolation, format, args...)
}

func policyViolationf(format string, args ...interface{}) error {
	return newError(KindPolicyViolation, format, args...)
}

func notFoundf(format string, args ...interface{}) error {
	return newError(KindNotFound, format, args...)
}

func conflictf(format string, args ...interface{}) error {
	return newError(KindConflict, format, args...)
}

// internalError wraps a persistence failure. Domain errors pass through.
func internalError(message string, err error) error {
	if err == nil {
		return nil
	}
	var de *DomainError
	if errors.As(err, &de) {
		return err
	}
	return &DomainError{Kind: KindInternal, Message: message, Err: err}
}

// KindOf reports the kind of err; unclassified errors are internal.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// MessageOf returns the human readable part of a domain error.
func MessageOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
