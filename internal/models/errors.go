package models

import (
	"errors"
	"fmt"
)

// ConflictError means an operation's precondition on session state does not hold.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }

// ErrSessionInProgress is returned when a profile already has an active or paused session.
var ErrSessionInProgress = &ConflictError{Msg: "a session is already in progress"}

// IllegalTransition builds the conflict for a rejected lifecycle move.
func IllegalTransition(from, to SessionStatus) *ConflictError {
	return &ConflictError{Msg: fmt.Sprintf("illegal session transition %s -> %s", from, to)}
}

// NotFoundError means the addressed session, exercise or record does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// SyncError is any failed remote call, transport or remote-side alike.
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string { return fmt.Sprintf("sync %s: %v", e.Op, e.Err) }

func (e *SyncError) Unwrap() error { return e.Err }

// Retryable reports whether the underlying failure looks transient. Errors
// that don't say otherwise (transport failures) count as retryable.
func (e *SyncError) Retryable() bool {
	var r interface{ Retryable() bool }
	if errors.As(e.Err, &r) {
		return r.Retryable()
	}
	return true
}

// StorageError is a failure of the local durable store. Nothing sits below
// it, so callers propagate it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("local storage: %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var n *NotFoundError
	return errors.As(err, &n)
}
