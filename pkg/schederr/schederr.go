// Package schederr defines the typed error kinds surfaced by the scheduler
// core and their mapping to RPC response codes. Every mutating operation in
// pkg/api ends by translating whatever error it produced into one response
// code plus an operator-safe message — no stack traces cross that boundary.
package schederr

import (
	"errors"
	"fmt"
)

// Kind classifies why an operation failed.
type Kind string

const (
	KindInvalidRequest Kind = "INVALID_REQUEST"
	KindAuthFailed     Kind = "AUTH_FAILED"
	KindSchedule       Kind = "SCHEDULE_ERROR"
	KindLock           Kind = "LOCK_ERROR"
	KindRecovery       Kind = "RECOVERY_ERROR"
	KindStorage        Kind = "STORAGE_ERROR"
	KindTimeout        Kind = "TIMEOUT"
	KindInterrupted    Kind = "INTERRUPTED"
	KindInternal       Kind = "INTERNAL"
)

// ResponseCode is one of the RPC response codes every scheduler API call
// returns alongside its payload.
type ResponseCode string

const (
	ResponseOK      ResponseCode = "OK"
	ResponseInvalid ResponseCode = "INVALID_REQUEST"
	ResponseAuth    ResponseCode = "AUTH_FAILED"
	ResponseError   ResponseCode = "ERROR"
	ResponseWarning ResponseCode = "WARNING"
)

// Error is the scheduler core's typed error. Cause is unwrapped by
// errors.Is/errors.As, so a StorageError wrapping a specific go-memdb or
// raft failure can still be matched against the underlying sentinel.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newf(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// InvalidRequest wraps a malformed-input or illegal-operator-request error.
func InvalidRequest(format string, args ...any) *Error {
	return newf(KindInvalidRequest, nil, format, args...)
}

// AuthFailed wraps a missing-or-insufficient-credential error.
func AuthFailed(format string, args ...any) *Error {
	return newf(KindAuthFailed, nil, format, args...)
}

// Schedule wraps a scheduling-domain violation (quota exceeded, cron
// already running).
func Schedule(format string, args ...any) *Error {
	return newf(KindSchedule, nil, format, args...)
}

// Lock wraps a mutation rejected because its key is held by another
// identity.
func Lock(format string, args ...any) *Error {
	return newf(KindLock, nil, format, args...)
}

// Recovery wraps a backup/restore workflow failure.
func Recovery(cause error, format string, args ...any) *Error {
	return newf(KindRecovery, cause, format, args...)
}

// Storage wraps an underlying log/store failure; the storage facade
// re-raises these rather than translating them itself.
func Storage(cause error, format string, args ...any) *Error {
	return newf(KindStorage, cause, format, args...)
}

// Timeout wraps a kill-and-wait budget exhaustion.
func Timeout(format string, args ...any) *Error {
	return newf(KindTimeout, nil, format, args...)
}

// Interrupted wraps a kill-and-wait interruption.
func Interrupted(format string, args ...any) *Error {
	return newf(KindInterrupted, nil, format, args...)
}

// Internal wraps an unanticipated invariant violation; callers should log
// it with full context before translating it to a response.
func Internal(cause error, format string, args ...any) *Error {
	return newf(KindInternal, cause, format, args...)
}

// Code maps err to the response code an RPC caller should see. A nil err
// maps to OK; an error not produced by this package maps to ERROR.
func Code(err error) ResponseCode {
	if err == nil {
		return ResponseOK
	}
	var se *Error
	if !errors.As(err, &se) {
		return ResponseError
	}
	switch se.Kind {
	case KindInvalidRequest, KindLock:
		return ResponseInvalid
	case KindAuthFailed:
		return ResponseAuth
	default:
		return ResponseError
	}
}

// KindOf returns the Kind of err, or KindInternal if err was not produced
// by this package.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
