// Package apperror defines the error taxonomy shared by the scheduling and
// inventory services and the HTTP layer. Expected rejections are returned as
// typed values carrying enough detail for a caller to correct and retry;
// anything else is treated as an internal failure.
package apperror

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindValidation           Kind = "validation"
	KindConflict             Kind = "conflict"
	KindInsufficientQuota    Kind = "insufficient_quota"
	KindChannelQuotaExceeded Kind = "channel_quota_exceeded"
	KindNotOnSale            Kind = "not_on_sale"
	KindRateLimited          Kind = "rate_limited"
	KindNotFound             Kind = "not_found"
	KindInternal             Kind = "internal"
)

// Typed is implemented by every expected, caller-recoverable error.
type Typed interface {
	error
	Kind() Kind
	Details() interface{}
}

// Error is the generic typed error used for validation and lookup failures.
type Error struct {
	kind    Kind
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Details() interface{} {
	if e.Field == "" {
		return nil
	}
	return map[string]string{"field": e.Field, "reason": e.Message}
}

// New builds a typed error of an arbitrary kind.
func New(kind Kind, field, message string) *Error {
	return &Error{kind: kind, Field: field, Message: message}
}

// Validation reports a violated structural invariant on field.
func Validation(field, message string) *Error {
	return &Error{kind: KindValidation, Field: field, Message: message}
}

// NotFound reports a missing referenced entity.
func NotFound(entity string) *Error {
	return &Error{kind: KindNotFound, Field: entity, Message: "not found"}
}

// KindOf returns the kind of err, or KindInternal if err is untyped.
func KindOf(err error) Kind {
	var typed Typed
	if errors.As(err, &typed) {
		return typed.Kind()
	}
	return KindInternal
}

// IsKind reports whether err carries kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// HTTPStatus maps a kind to the status code the API answers with.
func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation, KindNotOnSale:
		return http.StatusBadRequest
	case KindConflict, KindInsufficientQuota, KindChannelQuotaExceeded:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
