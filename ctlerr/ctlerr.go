// Package ctlerr implements the closed error taxonomy of the motion-control
// core (spec §7) as a typed error, so the cyclic executor can classify a
// failure and decide whether to promote it to an emergency stop without
// matching on error strings.
package ctlerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is one member of the closed error-kind set.
type Kind string

// The closed set of error kinds.
const (
	BusTimeout        Kind = "BusTimeout"
	BusProtocol       Kind = "BusProtocol"
	BusDriveFault     Kind = "BusDriveFault"
	LimitViolation    Kind = "LimitViolation"
	WorkspaceViolation Kind = "WorkspaceViolation"
	CollisionViolation Kind = "CollisionViolation"
	WatchdogTimeout   Kind = "WatchdogTimeout"
	EStopLatched      Kind = "EStopLatched"
	InvalidTransition Kind = "InvalidTransition"
	UnsupportedCode   Kind = "UnsupportedCode"
	InvalidArgument   Kind = "InvalidArgument"
	ConvergenceFailed Kind = "ConvergenceFailed"
)

// Error is the concrete error type carried through the system. Joint is -1
// when the error is not joint-specific.
type Error struct {
	Kind    Kind
	Joint   int
	Message string
	cause   error
}

// Joint index sentinel meaning "not applicable".
const NoJoint = -1

// New builds an Error of the given kind with no joint association.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Joint: NoJoint, Message: msg}
}

// NewJoint builds an Error of the given kind tied to a specific joint index.
func NewJoint(kind Kind, joint int, msg string) *Error {
	return &Error{Kind: kind, Joint: joint, Message: msg}
}

// Wrap attaches a kind to an underlying cause, preserving it for Unwrap.
func Wrap(kind Kind, cause error, msg string) *Error {
	return &Error{Kind: kind, Joint: NoJoint, Message: msg, cause: errors.Wrap(cause, msg)}
}

func (e *Error) Error() string {
	if e.Joint == NoJoint {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s[joint %d]: %s", e.Kind, e.Joint, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is reports whether err is a *Error of the given kind, unwrapping wrapped
// causes along the way.
func Is(err error, kind Kind) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

// Recoverable reports whether kind is locally recoverable
// (ConvergenceFailed, UnsupportedCode, InvalidTransition, InvalidArgument)
// as opposed to promoted to an emergency stop.
func Recoverable(kind Kind) bool {
	switch kind {
	case ConvergenceFailed, UnsupportedCode, InvalidTransition, InvalidArgument:
		return true
	default:
		return false
	}
}
