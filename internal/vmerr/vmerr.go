// Package vmerr defines the structured error vocabulary shared by the
// interpreter, the native codegen and the actor runtime.
package vmerr

import (
	"errors"
	"fmt"
)

// Kind identifies a class of execution failure, per the error kinds of
// the execution pipeline's error handling design.
type Kind int

const (
	// TypeMismatch means an opcode found operands whose tags it cannot
	// act on (e.g. Add on a Bool).
	TypeMismatch Kind = iota
	// DivisionByZero means Div was executed with a zero Int divisor.
	DivisionByZero
	// UnknownVariable means LoadVar named a variable absent from locals
	// and globals.
	UnknownVariable
	// UnknownFunction means Call/Spawn/TailCall named a function absent
	// from the function table.
	UnknownFunction
	// UnknownField means LoadField named a field absent from the
	// struct. A top of stack that is not a struct Object is a
	// TypeMismatch instead.
	UnknownField
	// BadJump means Jmp/JmpIfFalse named a label absent from the
	// current function's blocks. Fatal: indicates malformed IR.
	BadJump
	// StackUnderflow means an instruction needed more operands than the
	// stack held. Indicates malformed IR.
	StackUnderflow
	// CallArityMismatch means a call supplied a different number of
	// arguments than the callee declares parameters.
	CallArityMismatch
	// MailboxClosed means Send targeted an actor whose mailbox is no
	// longer accepting messages (already Stopped or Failed).
	MailboxClosed
	// AbortedDueToDeadlock means Receive observed the deadlock sentinel's
	// broadcast instead of a message.
	AbortedDueToDeadlock
	// CodegenUnsupported is raised inside the native codegen when a
	// function uses an opcode outside the compilable subset. Recovered
	// by the caller, which falls back to interpretation.
	CodegenUnsupported
)

var kindNames = map[Kind]string{
	TypeMismatch:          "TypeMismatch",
	DivisionByZero:        "DivisionByZero",
	UnknownVariable:       "UnknownVariable",
	UnknownFunction:       "UnknownFunction",
	UnknownField:          "UnknownField",
	BadJump:               "BadJump",
	StackUnderflow:        "StackUnderflow",
	CallArityMismatch:     "CallArityMismatch",
	MailboxClosed:         "MailboxClosed",
	AbortedDueToDeadlock:  "AbortedDueToDeadlock",
	CodegenUnsupported:    "CodegenUnsupported",
}

// String renders the kind's symbolic name, or "Kind(n)" for an unknown
// value.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the concrete error type raised throughout the execution
// pipeline. It always carries a Kind so callers can branch on failure
// class with errors.As instead of string matching.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// New builds an *Error with a formatted message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Is reports whether err is a *Error of the given kind, unwrapping
// through the standard errors chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
