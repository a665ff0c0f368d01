// Package engineerr defines the typed failures surfaced by the reasoning engine.
package engineerr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation     Kind = "validation_error"
	KindAccessDenied   Kind = "access_denied"
	KindRetrieval      Kind = "retrieval_error"
	KindTreeEvaluation Kind = "tree_evaluation_error"
	KindGeneration     Kind = "generation_error"
	KindPartialCollab  Kind = "partial_collaboration_failure"
	KindSessionFailure Kind = "session_failure"
	KindInternal       Kind = "internal_error"
)

// Sentinels for errors.Is comparisons. An *Error matches the sentinel of its Kind.
var (
	ErrValidation     = &Error{Kind: KindValidation}
	ErrAccessDenied   = &Error{Kind: KindAccessDenied}
	ErrRetrieval      = &Error{Kind: KindRetrieval}
	ErrTreeEvaluation = &Error{Kind: KindTreeEvaluation}
	ErrGeneration     = &Error{Kind: KindGeneration}
	ErrPartialCollab  = &Error{Kind: KindPartialCollab}
	ErrSessionFailure = &Error{Kind: KindSessionFailure}
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so callers can write errors.Is(err, engineerr.ErrRetrieval).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func Wrapf(kind Kind, op string, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

func Validation(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func AccessDenied(op, format string, args ...interface{}) *Error {
	return &Error{Kind: KindAccessDenied, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
