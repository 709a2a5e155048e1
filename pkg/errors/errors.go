package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any *AppError carrying the same code, so callers can compare
// against the exported sentinels with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == ""
}

const (
	ErrInvalidInput ErrorCode = iota + 1000
	ErrSlotUnavailable
	ErrConflict
	ErrMalformedReference
	ErrNotFound
	ErrStoreFailure
	ErrReferenceOverflow
	ErrUnauthorized
	ErrForbidden
)

var codeNames = map[ErrorCode]string{
	ErrInvalidInput:       "invalid_input",
	ErrSlotUnavailable:    "slot_unavailable",
	ErrConflict:           "conflict",
	ErrMalformedReference: "malformed_reference",
	ErrNotFound:           "not_found",
	ErrStoreFailure:       "store_failure",
	ErrReferenceOverflow:  "reference_overflow",
	ErrUnauthorized:       "unauthorized",
	ErrForbidden:          "forbidden",
}

func (c ErrorCode) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("code_%d", int(c))
}

// Sentinels for errors.Is comparisons.
var (
	InvalidInputErr       = &AppError{Code: ErrInvalidInput}
	SlotUnavailableErr    = &AppError{Code: ErrSlotUnavailable}
	ConflictErr           = &AppError{Code: ErrConflict}
	MalformedReferenceErr = &AppError{Code: ErrMalformedReference}
	NotFoundErr           = &AppError{Code: ErrNotFound}
	StoreFailureErr       = &AppError{Code: ErrStoreFailure}
	ReferenceOverflowErr  = &AppError{Code: ErrReferenceOverflow}
	UnauthorizedErr       = &AppError{Code: ErrUnauthorized}
	ForbiddenErr          = &AppError{Code: ErrForbidden}
)

func InvalidInput(message string, err error) *AppError {
	return &AppError{Code: ErrInvalidInput, Message: message, Err: err}
}

func SlotUnavailable(message string) *AppError {
	return &AppError{Code: ErrSlotUnavailable, Message: message}
}

func Conflict(message string, err error) *AppError {
	return &AppError{Code: ErrConflict, Message: message, Err: err}
}

func MalformedReference(ref string) *AppError {
	return &AppError{Code: ErrMalformedReference, Message: fmt.Sprintf("malformed reference %q", ref)}
}

func NotFound(resource string, err error) *AppError {
	return &AppError{Code: ErrNotFound, Message: fmt.Sprintf("%s not found", resource), Err: err}
}

func StoreFailure(op string, err error) *AppError {
	return &AppError{Code: ErrStoreFailure, Message: fmt.Sprintf("store failure: %s", op), Err: err}
}

func ReferenceOverflow(message string) *AppError {
	return &AppError{Code: ErrReferenceOverflow, Message: message}
}

func Unauthorized(err error) *AppError {
	return &AppError{Code: ErrUnauthorized, Message: "unauthorized", Err: err}
}

func Forbidden(message string) *AppError {
	return &AppError{Code: ErrForbidden, Message: message}
}

// CodeOf returns the code of the first AppError in err's chain. Errors that
// carry no code are reported as store failures.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrStoreFailure
}

// Is reports whether err carries the given code.
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

// HTTPStatus maps an error code to the status handlers respond with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrInvalidInput, ErrReferenceOverflow:
		return http.StatusBadRequest
	case ErrSlotUnavailable, ErrConflict:
		return http.StatusConflict
	case ErrMalformedReference, ErrNotFound:
		return http.StatusNotFound
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
