package drive

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady is returned when a move is requested before the axis is enabled
	ErrNotReady = errors.New("axis not ready")

	// ErrBusy is returned when a move is already in progress
	ErrBusy = errors.New("axis busy")

	// ErrDisconnected is returned after the axis has been closed
	ErrDisconnected = errors.New("axis disconnected")

	// ErrTimeout is reported when a tracked move does not arrive in time
	ErrTimeout = errors.New("move timed out")

	// ErrCancelled is reported when a tracked move is cancelled
	ErrCancelled = errors.New("move cancelled")
)

// PortError is a register access failure
type PortError struct {
	Op  string // "read" or "write"
	ID  ParameterID
	Err error
}

func (e *PortError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.ID, e.Err)
}

func (e *PortError) Unwrap() error { return e.Err }

// ParameterError names the profile entry that could not be written
type ParameterError struct {
	Param Parameter
	Err   error
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("apply %s (%s=%d): %v", e.Param.Name, e.Param.ID, e.Param.Value, e.Err)
}

func (e *ParameterError) Unwrap() error { return e.Err }

// DriveError is a failed state machine operation
type DriveError struct {
	Op    string
	State State
	Err   error
}

func (e *DriveError) Error() string {
	return fmt.Sprintf("%s in state %s: %v", e.Op, e.State, e.Err)
}

func (e *DriveError) Unwrap() error { return e.Err }

// SessionError is a failure to open or close the transport session
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }
