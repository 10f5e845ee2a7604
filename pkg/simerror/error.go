// Package simerror is the result-type error taxonomy the solver converts
// every component-boundary failure into, replacing the genius_error()
// abort-style signalling of the original C++ device solver.
package simerror

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the driver can apply the right recovery
// policy without string-matching error messages.
type Kind int

const (
	// IndexError: Index Map queried for a variable kind that is disabled
	// on the region. Programmer bug, always fatal.
	IndexError Kind = iota
	// AssemblyNaN: a NaN/Inf surfaced during residual or Jacobian assembly.
	AssemblyNaN
	// LinearSolveFailure: the linear backend returned non-converged.
	LinearSolveFailure
	// NewtonDiverged: iteration count exceeded or residual grew for three
	// consecutive iterations.
	NewtonDiverged
	// InvariantViolation: a post-projection sanity check failed.
	InvariantViolation
	// CircuitFailure: the circuit DAE step was rejected by the bridge.
	CircuitFailure
)

func (k Kind) String() string {
	switch k {
	case IndexError:
		return "IndexError"
	case AssemblyNaN:
		return "AssemblyNaN"
	case LinearSolveFailure:
		return "LinearSolveFailure"
	case NewtonDiverged:
		return "NewtonDiverged"
	case InvariantViolation:
		return "InvariantViolation"
	case CircuitFailure:
		return "CircuitFailure"
	default:
		return "UnknownError"
	}
}

// Fatal reports whether errors of this kind must abort the run outright
// rather than trigger step-size recovery (spec.md Error Handling table).
func (k Kind) Fatal() bool {
	switch k {
	case IndexError, InvariantViolation:
		return true
	default:
		return false
	}
}

// Error wraps a Kind with the operation that produced it and the
// underlying cause, if any.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Op)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err itself is a *Error of kind k, as in
// simerror.NewtonDiverged.Is(err). It does not look at errors that err
// wraps, and Kind is not an error value, so it cannot be the target of
// errors.Is; use KindOf for wrapped errors.
func (k Kind) Is(err error) bool {
	se, ok := err.(*Error)
	if !ok {
		return false
	}
	return se.Kind == k
}

// KindOf extracts the Kind from err, returning ok=false if err is not (or
// does not wrap) a *Error.
func KindOf(err error) (Kind, bool) {
	var se *Error
	if !errors.As(err, &se) {
		return 0, false
	}
	return se.Kind, true
}
