package sdm

import "errors"

// Error is the data-model error taxonomy from spec.md §4.3. The engine
// package maps the Code field below to the matching CoAP response code
// (codeToCoAP) when it builds an error response.
type Error struct {
	Code    ErrCode
	Message string
}

func (e *Error) Error() string { return e.Message }

// ErrCode enumerates the taxonomy. Positive-only internal signals
// (BlockTransferNeeded, WantNextMsg, Memory, EOF) never reach the wire.
type ErrCode int

const (
	CodeBadRequest ErrCode = iota + 1
	CodeUnauthorized
	CodeNotFound
	CodeMethodNotAllowed
	CodeInternal
	CodeNotImplemented
	CodeServiceUnavailable
)

func newErr(code ErrCode, msg string) *Error { return &Error{Code: code, Message: msg} }

// Sentinel errors for errors.Is comparisons; wrap with pkg/errors at call
// sites that want added context without losing the taxonomy code.
var (
	ErrBadRequest         = newErr(CodeBadRequest, "bad request")
	ErrUnauthorized       = newErr(CodeUnauthorized, "unauthorized")
	ErrNotFound           = newErr(CodeNotFound, "not found")
	ErrMethodNotAllowed   = newErr(CodeMethodNotAllowed, "method not allowed")
	ErrInternal           = newErr(CodeInternal, "internal error")
	ErrNotImplemented     = newErr(CodeNotImplemented, "not implemented")
	ErrServiceUnavailable = newErr(CodeServiceUnavailable, "service unavailable")
)

// Internal-only signals, never mapped to a wire response code directly.
var (
	ErrBlockTransferNeeded = errors.New("sdm: block transfer needed")
	ErrWantNextMsg         = errors.New("sdm: want next message")
	ErrMemory              = errors.New("sdm: capacity exhausted")
	ErrEOF                 = errors.New("sdm: iteration exhausted")
)

// CodeOf extracts the taxonomy code from err, defaulting to Internal for any
// error that isn't one of the *Error sentinels (or doesn't wrap one).
func CodeOf(err error) ErrCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}
