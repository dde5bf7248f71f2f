package vm

import (
	"errors"
	"fmt"

	"github.com/tliron/commonlog"
)

// log is the package logger. With no backend configured commonlog discards
// everything, so nothing in this file is required for correctness.
var log = commonlog.GetLogger("ferrite.vm")

// ErrorKind is the closed set of failure categories the machine can report.
type ErrorKind int

const (
	KindOutOfMemory ErrorKind = iota
	KindMemoryAccessViolation
	KindStackOverflow
	KindStackUnderflow
	KindInvalidInstruction
	KindUnsupportedOperation
	KindDivisionByZero
	KindTypeMismatch
	KindResourceExhausted
	KindInvalidConfiguration
	KindInvalidFunctionCall
	KindInvalidMemoryAccess
	KindInvalidAlignment
	KindSecurityViolation
	KindIntegerOverflow
	KindIntegerUnderflow
)

var errorKindNames = map[ErrorKind]string{
	KindOutOfMemory:           "OutOfMemory",
	KindMemoryAccessViolation: "MemoryAccessViolation",
	KindStackOverflow:         "StackOverflow",
	KindStackUnderflow:        "StackUnderflow",
	KindInvalidInstruction:    "InvalidInstruction",
	KindUnsupportedOperation:  "UnsupportedOperation",
	KindDivisionByZero:        "DivisionByZero",
	KindTypeMismatch:          "TypeMismatch",
	KindResourceExhausted:     "ResourceExhausted",
	KindInvalidConfiguration:  "InvalidConfiguration",
	KindInvalidFunctionCall:   "InvalidFunctionCall",
	KindInvalidMemoryAccess:   "InvalidMemoryAccess",
	KindInvalidAlignment:      "InvalidAlignment",
	KindSecurityViolation:     "SecurityViolation",
	KindIntegerOverflow:       "IntegerOverflow",
	KindIntegerUnderflow:      "IntegerUnderflow",
}

// String returns the canonical name of the error kind.
func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// SourceLocation optionally ties a failure to a position in the program.
type SourceLocation struct {
	PC          int    // Instruction index where the failure occurred
	Instruction string // Disassembled form of the failing instruction
}

// Error is a machine failure: a kind plus structured context. Every failure
// the engine reports is a value of this type, so callers can extract kind
// and context uniformly.
type Error struct {
	Kind       ErrorKind
	Op         string          // The operation being performed (mnemonic or lifecycle step)
	Details    string          // Human-readable description of what went wrong
	Suggestion string          // Suggested remedy
	Location   *SourceLocation // Optional source location
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Location != nil {
		return fmt.Sprintf("%s in %s at pc=%d: %s", e.Kind, e.Op, e.Location.PC, e.Details)
	}
	return fmt.Sprintf("%s in %s: %s", e.Kind, e.Op, e.Details)
}

// WithLocation returns a copy of the error annotated with a source location.
func (e *Error) WithLocation(pc int, in Instruction) *Error {
	dup := *e
	dup.Location = &SourceLocation{PC: pc, Instruction: in.String()}
	return &dup
}

// newError creates a typed failure value. Creation is logged as a side
// effect; the log call is observability only.
func newError(kind ErrorKind, op, details, suggestion string) *Error {
	e := &Error{Kind: kind, Op: op, Details: details, Suggestion: suggestion}
	log.Debugf("%s: %s (%s)", kind, details, op)
	return e
}

// AsError extracts the machine error from err, unwrapping as needed.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the error kind of err, or ok=false if err is not a
// machine error.
func KindOf(err error) (ErrorKind, bool) {
	if e, ok := AsError(err); ok {
		return e.Kind, true
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Failure constructors for the common cases
// ---------------------------------------------------------------------------

func errInvalidRegister(op string, operand string, index uint32) *Error {
	return newError(KindInvalidInstruction, op,
		fmt.Sprintf("register index %d in %s is out of range (valid: 0-%d)", index, operand, NumRegisters-1),
		"use a register index between 0 and 15")
}

func errInvalidTarget(op string, target uint32, programLen int) *Error {
	return newError(KindInvalidInstruction, op,
		fmt.Sprintf("jump target %d is outside the program (length %d)", target, programLen),
		"jump targets must be valid instruction indices")
}

func errMemoryRange(op string, addr uint32, size uint32, memSize int) *Error {
	return newError(KindMemoryAccessViolation, op,
		fmt.Sprintf("access of %d bytes at address %d exceeds memory size %d", size, addr, memSize),
		"keep address + size within the configured memory region")
}

func errStackUnderflow(op string) *Error {
	return newError(KindInvalidInstruction, op,
		"stack underflow: the stack is empty",
		"balance every POP/RET with a preceding PUSH/CALL")
}

func errDivisionByZero(op string) *Error {
	return newError(KindDivisionByZero, op,
		"division by zero",
		"check the divisor register before dividing")
}
