package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a price source failure
type ErrorKind string

const (
	// KindAuth means the credential was rejected (401)
	KindAuth ErrorKind = "auth"
	// KindForbidden means access was denied (403)
	KindForbidden ErrorKind = "forbidden"
	// KindRateLimit means the source throttled us (429)
	KindRateLimit ErrorKind = "rate_limit"
	// KindTimeout means the request exceeded its time budget
	KindTimeout ErrorKind = "timeout"
	// KindConnection means the request never produced a response
	KindConnection ErrorKind = "connection"
	// KindUnexpectedStatus means any other non-200 status
	KindUnexpectedStatus ErrorKind = "unexpected_status"
	// KindDecode means a 200 response whose body could not be used
	KindDecode ErrorKind = "decode"
)

// Transient reports whether the next scheduled attempt may succeed without
// operator action. Credential failures are not transient.
func (k ErrorKind) Transient() bool {
	switch k {
	case KindAuth, KindForbidden:
		return false
	default:
		return true
	}
}

func (k ErrorKind) upper() string {
	return strings.ToUpper(string(k))
}

// SourceError is a classified price source failure
type SourceError struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Cause      error
}

// Error implements the error interface
func (e *SourceError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.description())
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *SourceError) description() string {
	switch e.Kind {
	case KindAuth:
		return "authentication failed"
	case KindForbidden:
		return "access forbidden"
	case KindRateLimit:
		return "rate limit exceeded"
	case KindTimeout:
		return "request timeout"
	case KindConnection:
		return "connection error"
	case KindUnexpectedStatus:
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	case KindDecode:
		return "malformed response"
	default:
		return string(e.Kind)
	}
}

// Unwrap returns the underlying cause
func (e *SourceError) Unwrap() error {
	return e.Cause
}

// NewSourceError creates a classified price source error
func NewSourceError(provider string, kind ErrorKind, cause error) *SourceError {
	return &SourceError{Kind: kind, Provider: provider, Cause: cause}
}

// NewUnexpectedStatusError creates an error for an unhandled HTTP status
func NewUnexpectedStatusError(provider string, statusCode int) *SourceError {
	return &SourceError{Kind: KindUnexpectedStatus, Provider: provider, StatusCode: statusCode}
}

// KindOf returns the source error kind carried by err, if any
func KindOf(err error) (ErrorKind, bool) {
	var srcErr *SourceError
	if stderrors.As(err, &srcErr) {
		return srcErr.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries a source error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
