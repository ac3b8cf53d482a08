package main

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyBound    = errors.New("connection already bound to a room")
	ErrNotBound        = errors.New("connection not bound to a room")
	ErrInvalidLanguage = errors.New("language not supported")
	ErrRoomFull        = errors.New("room full")
	ErrTooManyRooms    = errors.New("max rooms reached")
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrRateLimited     = errors.New("rate limit exceeded")
)

type ExecKind string

const (
	ExecTimeout           ExecKind = "timeout"
	ExecProviderFailure   ExecKind = "providerFailure"
	ExecMalformedResponse ExecKind = "malformedResponse"
	ExecBusy              ExecKind = "busy"
)

// ExecutionError is reported to the connection that asked for a run and
// never broadcast.
type ExecutionError struct {
	Kind ExecKind
	Err  error
}

func (e *ExecutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("execution %s", e.Kind)
	}
	return fmt.Sprintf("execution %s: %v", e.Kind, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func execErr(kind ExecKind, err error) *ExecutionError {
	return &ExecutionError{Kind: kind, Err: err}
}

// errorCode maps an error onto the code carried by an error ack.
func errorCode(err error) string {
	var ee *ExecutionError
	switch {
	case errors.As(err, &ee):
		return "execution"
	case errors.Is(err, ErrAlreadyBound):
		return "alreadyBound"
	case errors.Is(err, ErrNotBound):
		return "notJoined"
	case errors.Is(err, ErrInvalidLanguage):
		return "invalidLanguage"
	case errors.Is(err, ErrRoomFull):
		return "roomFull"
	case errors.Is(err, ErrTooManyRooms):
		return "tooManyRooms"
	case errors.Is(err, ErrInvalidPayload):
		return "invalidPayload"
	case errors.Is(err, ErrRateLimited):
		return "rateLimited"
	default:
		return "internal"
	}
}
