// Package wisperr defines the CompileError and RuntimeError kinds of
// spec §7, wrapped with golang.org/x/xerrors so callers can match a
// failure's Kind with errors.Is while still getting a formatted,
// %w-chained detail message and a Go call-site frame for diagnosing the
// interpreter itself (not to be confused with the *source* line
// information a CompileError also carries).
package wisperr

import (
	"fmt"

	"golang.org/x/xerrors"
)

// Kind is a sentinel identifying one of spec §7's error cases.
type Kind string

// Compile-time kinds.
const (
	KindLocalAlreadyDefined  Kind = "LocalAlreadyDefined"
	KindLocalNotInitialized  Kind = "LocalNotInitialized"
	KindReturnFromInitializer Kind = "ReturnFromInitializer"
	KindInvalidThis          Kind = "InvalidThis"
	KindInvalidLeftValue     Kind = "InvalidLeftValue"
	KindInvalidSuper         Kind = "InvalidSuper"
	KindSyntaxError          Kind = "SyntaxError"
)

// Runtime kinds.
const (
	KindStackEmpty           Kind = "StackEmpty"
	KindFrameEmpty           Kind = "FrameEmpty"
	KindGlobalNotDefined     Kind = "GlobalNotDefined"
	KindInvalidCallee        Kind = "InvalidCallee"
	KindIncorrectArity       Kind = "IncorrectArity"
	KindUnexpectedValue      Kind = "UnexpectedValue"
	KindUndefinedProperty    Kind = "UndefinedProperty"
	KindIndexOutOfRange      Kind = "IndexOutOfRange"
	KindUnknownImport        Kind = "UnknownImport"
	KindStringConstantExpected Kind = "StringConstantExpected"
)

// Error makes Kind an error, so the Is methods of CompileError and
// RuntimeError let callers write errors.Is(err,
// wisperr.KindIncorrectArity) directly.
func (k Kind) Error() string { return string(k) }

// CompileError pairs a Kind with the source line it was raised at.
type CompileError struct {
	Kind    Kind
	Line    int
	Message string
	err     error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("line %d: %s: %s", e.Line, e.Kind, e.Message)
}

func (e *CompileError) Unwrap() error { return e.err }

// Is reports whether target is e's Kind, so errors.Is(err,
// wisperr.KindInvalidThis) works against a *CompileError.
func (e *CompileError) Is(target error) bool { return e.Kind == target }

// NewCompileError builds a CompileError, wrapping Kind with xerrors so
// the resulting error carries a Go call-site frame.
func NewCompileError(kind Kind, line int, format string, args ...any) *CompileError {
	msg := fmt.Sprintf(format, args...)
	return &CompileError{
		Kind:    kind,
		Line:    line,
		Message: msg,
		err:     xerrors.Errorf("%w: %s", kind, msg),
	}
}

// RuntimeError pairs a Kind with the detail message the VM produced
// when it aborted (spec §7: "the dispatch loop returns RuntimeError").
type RuntimeError struct {
	Kind    Kind
	Message string
	err     error
}

func (e *RuntimeError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

func (e *RuntimeError) Unwrap() error { return e.err }

func (e *RuntimeError) Is(target error) bool { return e.Kind == target }

// NewRuntimeError builds a RuntimeError.
func NewRuntimeError(kind Kind, format string, args ...any) *RuntimeError {
	msg := fmt.Sprintf(format, args...)
	return &RuntimeError{
		Kind:    kind,
		Message: msg,
		err:     xerrors.Errorf("%w: %s", kind, msg),
	}
}
