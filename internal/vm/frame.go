package vm

import (
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/source"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// LocalSlot holds the runtime state of a local variable.
type LocalSlot struct {
	V      Value        // Current value
	Name   string       // Debug name from the lowered code
	TypeID types.TypeID // Static type from the lowered code
}

// pending is a control transfer suspended while finally handlers run.
// A leave resumes at target after the remaining handlers; an exception
// resumes the handler search at next.
type pending struct {
	handler int
	leave   bool
	target  lir.BlockID
	rest    []int
	exc     *VMError
	from    lir.BlockID
	next    int
}

// Frame represents a procedure activation.
type Frame struct {
	Func   *lir.Func   // The procedure being executed
	BB     lir.BlockID // Current basic block
	IP     int         // Instruction pointer within BB.Instrs
	Locals []LocalSlot // Local variable slots
	Span   source.Span // Current procedure span for error reporting

	// handling is the exception the current catch handler popped.
	handling Value
	// caught maps catch handler indices to the exception they handle.
	caught  map[int]Value
	pending []pending
}

// NewFrame creates a frame for fn with every local at its default value.
func (vm *VM) NewFrame(fn *lir.Func) *Frame {
	locals := make([]LocalSlot, len(fn.Locals))
	for i, local := range fn.Locals {
		locals[i] = LocalSlot{
			V:      vm.defaultValue(local.Type),
			Name:   local.Name,
			TypeID: local.Type,
		}
	}
	return &Frame{
		Func:   fn,
		BB:     fn.Entry,
		Locals: locals,
		Span:   fn.Span,
		caught: make(map[int]Value),
	}
}

// CurrentBlock returns the block being executed.
func (f *Frame) CurrentBlock() *lir.Block {
	if int(f.BB) < 0 || int(f.BB) >= len(f.Func.Blocks) {
		return nil
	}
	return &f.Func.Blocks[f.BB]
}

// AtTerminator returns true if the IP is past all instructions.
func (f *Frame) AtTerminator() bool {
	block := f.CurrentBlock()
	if block == nil {
		return true
	}
	return f.IP >= len(block.Instrs)
}
