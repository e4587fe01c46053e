// Package apperrors defines the distinguished error kinds shared across
// the supervisor core. The LLM adapter tags its errors with these kinds;
// the other components return plain wrapped errors.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind tags an error with one of the propagation policies from the
// error handling design: Transient errors are retried on the next tick,
// RegionalBlock permanently degrades the affected component, Config is
// fatal at startup, InvariantViolation disables further evolutions, and
// Validation is returned to the caller without further propagation.
type Kind int

const (
	KindTransient Kind = iota
	KindRegionalBlock
	KindConfig
	KindInvariantViolation
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRegionalBlock:
		return "regional_block"
	case KindConfig:
		return "config"
	case KindInvariantViolation:
		return "invariant_violation"
	case KindValidation:
		return "validation"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch with
// errors.As without string-matching messages.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Transient(op string, err error) *Error { return New(KindTransient, op, err) }

func RegionalBlock(op string, err error) *Error { return New(KindRegionalBlock, op, err) }

func Config(op string, err error) *Error { return New(KindConfig, op, err) }

func InvariantViolation(op string, err error) *Error { return New(KindInvariantViolation, op, err) }

func Validation(op string, reason string) *Error {
	return New(KindValidation, op, errors.New(reason))
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
