package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeStateConflict   Code = "STATE_CONFLICT"
	CodeIdempotency     Code = "IDEMPOTENCY_KEY_REUSED"
	CodePaymentProvider Code = "PAYMENT_PROVIDER_ERROR"
	CodeInternal        Code = "INTERNAL_ERROR"
	CodeDependency      Code = "DEPENDENCY_ERROR"
)

// Metadata is how a code surfaces over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
	// MessageVisible lets the error's own message reach the client instead of PublicMessage.
	MessageVisible bool
}

type exposure uint8

const (
	exposeMessage exposure = 1 << iota
	exposeDetails
	retryable
)

func describe(status int, public string, flags exposure) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		MessageVisible: flags&exposeMessage != 0,
		DetailsAllowed: flags&exposeDetails != 0,
		Retryable:      flags&retryable != 0,
	}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:      describe(http.StatusBadRequest, "validation failed", exposeMessage|exposeDetails),
	CodeUnauthorized:    describe(http.StatusUnauthorized, "authentication required", exposeMessage),
	CodeForbidden:       describe(http.StatusForbidden, "access denied", exposeMessage),
	CodeNotFound:        describe(http.StatusNotFound, "resource not found", exposeMessage),
	CodeConflict:        describe(http.StatusConflict, "conflict detected", exposeMessage),
	CodeStateConflict:   describe(http.StatusConflict, "state transition disallowed", exposeMessage|exposeDetails),
	CodeIdempotency:     describe(http.StatusConflict, "idempotency key reused", exposeMessage|exposeDetails),
	CodePaymentProvider: describe(http.StatusInternalServerError, "payment provider error", exposeMessage|exposeDetails),
	CodeInternal:        describe(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:      describe(http.StatusServiceUnavailable, "dependency unavailable", exposeDetails|retryable),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// IsRetryable reports whether the code carried by err marks a transient
// failure. Untyped errors are not retryable.
func IsRetryable(err error) bool {
	typed := As(err)
	return typed != nil && MetadataFor(typed.Code()).Retryable
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
