package orchestrator

import (
	"errors"
	"fmt"
)

// Kind classifies orchestrator failures.
type Kind string

const (
	KindUnknownApp         Kind = "unknown_app"
	KindPortConflict       Kind = "port_conflict"
	KindScriptNotFound     Kind = "script_not_found"
	KindSpawnFailure       Kind = "spawn_failure"
	KindCrashedBeforeReady Kind = "crashed_before_ready"
	KindReadinessTimeout   Kind = "readiness_timeout"
	KindStopFailure        Kind = "stop_failure"
)

// Sentinels for errors.Is; they match any Error of the same Kind.
var (
	ErrUnknownApp         = &Error{Kind: KindUnknownApp}
	ErrPortConflict       = &Error{Kind: KindPortConflict}
	ErrScriptNotFound     = &Error{Kind: KindScriptNotFound}
	ErrSpawnFailure       = &Error{Kind: KindSpawnFailure}
	ErrCrashedBeforeReady = &Error{Kind: KindCrashedBeforeReady}
	ErrReadinessTimeout   = &Error{Kind: KindReadinessTimeout}
	ErrStopFailure        = &Error{Kind: KindStopFailure}
)

// Error is a user-facing orchestrator failure.
type Error struct {
	Kind    Kind
	AppID   string
	Message string

	// ExitCode is set for KindCrashedBeforeReady.
	ExitCode int
	// PID is the foreign listener for KindPortConflict, when known.
	PID int

	Cause error
}

func newError(kind Kind, appID string, format string, args ...any) *Error {
	return &Error{Kind: kind, AppID: appID, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches sentinels by kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of err, or "" when err is not an orchestrator error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
