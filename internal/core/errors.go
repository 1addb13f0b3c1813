package core

import (
	"errors"
	"fmt"
)

// Error codes sent to clients.
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeRoomNotFound  = "room_not_found"
	ErrCodeJoinFailed    = "join_failed"
	ErrCodeMessageFailed = "message_failed"
	ErrCodeHistoryFailed = "history_failed"
	ErrCodeRateLimited   = "rate_limited"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrRoomNotFound = errors.New("room not found")
	ErrStorage      = errors.New("storage unavailable")
	ErrFetch        = errors.New("fetch failed")
)

// OpError ties a failed operation to one of the sentinel kinds above.
// errors.Is matches both the kind and the underlying cause.
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func opError(op string, kind, err error) *OpError {
	return &OpError{Op: op, Kind: kind, Err: err}
}

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
