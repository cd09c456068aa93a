package domain

import "errors"

// Kind classifies an error for callers and for HTTP status mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindInvalidOperation
)

// Error is the taxonomy carried from services to the transport layer.
// Data holds optional structured detail (e.g. the offending field names)
// that ends up in the response envelope.
type Error struct {
	Kind    Kind
	Message string
	Data    any
}

func (e *Error) Error() string { return e.Message }

// Validation reports malformed input. data may carry field-level detail.
func Validation(message string, data any) *Error {
	return &Error{Kind: KindValidation, Message: message, Data: data}
}

// Unauthorized reports a missing or unverifiable identity.
func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Forbidden reports a valid identity with insufficient role or scope.
func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NotFound reports an absent referenced entity.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Conflict reports a uniqueness violation.
func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// InvalidOperation reports a structurally valid but disallowed action.
func InvalidOperation(message string) *Error {
	return &Error{Kind: KindInvalidOperation, Message: message}
}

// Internal reports a failure the caller cannot act on.
func Internal(message string) *Error {
	return &Error{Kind: KindInternal, Message: message}
}

// KindOf extracts the kind from an error chain, defaulting to KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// DataOf extracts structured detail from an error chain, if any.
func DataOf(err error) any {
	var e *Error
	if errors.As(err, &e) {
		return e.Data
	}
	return nil
}
