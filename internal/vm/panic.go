package vm

import (
	"fmt"
	"strings"

	"github.com/hesam/SketchSharp-sub001/internal/source"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// PanicCode identifies the type of VM panic.
type PanicCode int

// Stable panic codes - do not change values.
const (
	// PanicException is an exception in flight. It is caught by handler
	// regions; when it escapes the outermost call it is reported as is.
	PanicException            PanicCode = 1000 // VM1000: uncaught exception
	PanicInvalidHandle        PanicCode = 1002 // VM1002: dangling heap handle
	PanicTypeMismatch         PanicCode = 1003 // VM1003: type mismatch
	PanicOutOfBounds          PanicCode = 1004 // VM1004: out of bounds
	PanicUnsupportedIntrinsic PanicCode = 1005 // VM1005: unsupported intrinsic
	PanicMissingMethod        PanicCode = 1006 // VM1006: call target not found
	PanicBadControl           PanicCode = 1007 // VM1007: unreachable block or stray endfinally
	PanicAssumption           PanicCode = 1008 // VM1008: recorded assumption does not hold
	PanicStackOverflow        PanicCode = 1009 // VM1009: call depth exceeded
	PanicUnimplemented        PanicCode = 1999 // VM1999: unimplemented opcode/terminator
)

// String returns the code as "VM1001" format.
func (c PanicCode) String() string {
	return fmt.Sprintf("VM%d", c)
}

// BacktraceFrame represents one frame in the panic backtrace.
type BacktraceFrame struct {
	FuncName string
	Span     source.Span
}

// VMError represents a runtime panic in the VM. Exceptions raised by the
// program travel as VMErrors with Code PanicException and the exception
// object in Exception.
type VMError struct {
	Code      PanicCode
	Message   string
	Span      source.Span      // Location where panic occurred
	Backtrace []BacktraceFrame // Stack frames from top to bottom
	Exception Value
	// ExceptionType is the class name of Exception.
	ExceptionType string
}

// Error implements the error interface.
func (p *VMError) Error() string {
	if p.Code == PanicException {
		return fmt.Sprintf("uncaught %s: %s", p.ExceptionType, p.Message)
	}
	return fmt.Sprintf("panic %s: %s", p.Code, p.Message)
}

// IsException reports whether the error is an escaped exception of the
// named class.
func (p *VMError) IsException(name string) bool {
	return p != nil && p.Code == PanicException && p.ExceptionType == name
}

// Format renders the panic with its backtrace.
func (p *VMError) Format() string {
	var sb strings.Builder
	sb.WriteString(p.Error())
	sb.WriteString("\n")
	if len(p.Backtrace) > 0 {
		sb.WriteString("backtrace:\n")
		for i, frame := range p.Backtrace {
			fmt.Fprintf(&sb, "  %d: %s at %s\n", i, frame.FuncName, formatSpan(frame.Span))
		}
	}
	return sb.String()
}

func formatSpan(span source.Span) string {
	if span.Empty() {
		return "<no-span>"
	}
	return span.String()
}

// errorBuilder helps construct VMError values.
type errorBuilder struct {
	vm *VM
}

func (eb *errorBuilder) makeError(code PanicCode, msg string) *VMError {
	e := &VMError{
		Code:    code,
		Message: msg,
	}
	stack := eb.vm.Stack
	if len(stack) > 0 {
		e.Span = stack[len(stack)-1].Span
	}
	e.Backtrace = make([]BacktraceFrame, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		e.Backtrace[len(stack)-1-i] = BacktraceFrame{
			FuncName: stack[i].Func.Name,
			Span:     stack[i].Span,
		}
	}
	return e
}

func (eb *errorBuilder) typeMismatch(expected, got string) *VMError {
	return eb.makeError(PanicTypeMismatch, fmt.Sprintf("expected %s, got %s", expected, got))
}

func (eb *errorBuilder) outOfBounds(index, length int) *VMError {
	return eb.makeError(PanicOutOfBounds, fmt.Sprintf("index %d out of bounds for length %d", index, length))
}

func (eb *errorBuilder) unsupportedIntrinsic(name string) *VMError {
	return eb.makeError(PanicUnsupportedIntrinsic, fmt.Sprintf("unsupported intrinsic: %s", name))
}

func (eb *errorBuilder) missingMethod(owner, name string) *VMError {
	return eb.makeError(PanicMissingMethod, fmt.Sprintf("%s has no method %s", owner, name))
}

func (eb *errorBuilder) unimplemented(what string) *VMError {
	return eb.makeError(PanicUnimplemented, fmt.Sprintf("unimplemented: %s", what))
}

// thrown wraps an exception object for propagation.
func (eb *errorBuilder) thrown(exc Value) *VMError {
	e := eb.makeError(PanicException, "")
	e.Exception = exc
	e.ExceptionType = eb.vm.typeName(exc.TypeID)
	if obj, ok := eb.vm.Heap.Get(exc.H); ok {
		e.ExceptionType = eb.vm.typeName(obj.TypeID)
		if msg, ok := obj.Fields[types.FieldMessage]; ok && msg.Kind == VKString {
			e.Message = msg.Str
		}
	}
	return e
}
