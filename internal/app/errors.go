package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hylla/kalend/internal/domain"
)

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrRemote           = errors.New("remote request failed")
	ErrNoGesture        = errors.New("no active gesture")
)

// PermissionDeniedError reports a failed permission gate.
type PermissionDeniedError struct {
	Action   Action
	Resource ResourceKind
	Policy   domain.CollaborationPolicy
	Reason   string
}

// Error renders the denial reason.
func (e *PermissionDeniedError) Error() string {
	if e.Reason != "" {
		return "permission denied: " + e.Reason
	}
	return fmt.Sprintf("permission denied: cannot %s %s", e.Action, e.Resource)
}

// Is matches ErrPermissionDenied.
func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied
}

// CreatorOnly reports whether the denial came from a creator-only project.
func (e *PermissionDeniedError) CreatorOnly() bool {
	return e.Policy == domain.PolicyCreatorOnly
}

// RemoteError wraps a failed persistence call.
type RemoteError struct {
	Op  string
	Err error
}

// Error renders a display-ready message.
func (e *RemoteError) Error() string {
	msg := "request failed"
	if e.Err != nil {
		msg = strings.TrimSpace(e.Err.Error())
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Unwrap returns the transport error.
func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Is matches ErrRemote.
func (e *RemoteError) Is(target error) bool {
	return target == ErrRemote
}

// remoteErr wraps err unless it is already classified.
func remoteErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var remote *RemoteError
	if errors.As(err, &remote) || errors.Is(err, ErrPermissionDenied) {
		return err
	}
	return &RemoteError{Op: op, Err: err}
}

func isPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}
