package vm

import (
	"fmt"

	"github.com/hesam/SketchSharp-sub001/internal/lir"
)

type termStatus uint8

const (
	termContinue termStatus = iota
	termReturn
	// termEscape reports an exception that already searched this frame's
	// handlers and leaves the frame.
	termEscape
)

func (vm *VM) execTerminator(frame *Frame, term *lir.Terminator) (Value, termStatus, *VMError) {
	switch term.Kind {
	case lir.TermReturn:
		if !term.Return.HasValue {
			return Value{}, termReturn, nil
		}
		v, vmErr := vm.evalOperand(frame, &term.Return.Value)
		if vmErr != nil {
			return Value{}, termContinue, vmErr
		}
		return v, termReturn, nil
	case lir.TermGoto:
		return Value{}, termContinue, vm.transfer(frame, term.Goto.Target, term.Goto.Flags)
	case lir.TermBranch:
		ok, vmErr := vm.evalCond(frame, &term.Branch.Cond, term.Branch.Flags)
		if vmErr != nil {
			return Value{}, termContinue, vmErr
		}
		target := term.Branch.Else
		if ok {
			target = term.Branch.Target
		}
		return Value{}, termContinue, vm.transfer(frame, target, term.Branch.Flags)
	case lir.TermSwitch:
		v, vmErr := vm.evalOperand(frame, &term.Switch.Value)
		if vmErr != nil {
			return Value{}, termContinue, vmErr
		}
		if v.Kind != VKInt {
			return Value{}, termContinue, vm.eb.typeMismatch("int selector", v.Kind.String())
		}
		target := term.Switch.Default
		if v.Int >= 0 && v.Int < int64(len(term.Switch.Targets)) {
			target = term.Switch.Targets[v.Int]
		}
		vm.jump(frame, target)
		return Value{}, termContinue, nil
	case lir.TermThrow:
		v, vmErr := vm.evalOperand(frame, &term.Throw.Value)
		if vmErr != nil {
			return Value{}, termContinue, vmErr
		}
		if v.IsNull() {
			return Value{}, termContinue, vm.throwNew(vm.wk.NullReference, "throw of null")
		}
		return Value{}, termContinue, vm.eb.thrown(v)
	case lir.TermRethrow:
		for i := range frame.Func.Handlers {
			h := &frame.Func.Handlers[i]
			if h.Kind == lir.HandlerCatch && h.InHandler(frame.BB) {
				return Value{}, termContinue, vm.eb.thrown(frame.caught[i])
			}
		}
		return Value{}, termContinue, vm.eb.makeError(PanicBadControl, "rethrow outside a catch handler")
	case lir.TermEndFinally:
		return vm.endFinally(frame)
	case lir.TermUnreachable:
		return Value{}, termContinue, vm.eb.makeError(PanicBadControl, fmt.Sprintf("%s: reached unreachable bb%d", frame.Func.Name, frame.BB))
	}
	return Value{}, termContinue, vm.eb.unimplemented("terminator " + term.Kind.String())
}

func (vm *VM) evalCond(frame *Frame, c *lir.Condition, flags lir.BranchFlags) (bool, *VMError) {
	switch c.Kind {
	case lir.CondTrue, lir.CondFalse:
		v, vmErr := vm.evalOperand(frame, &c.Value)
		if vmErr != nil {
			return false, vmErr
		}
		if v.Kind != VKBool {
			return false, vm.eb.typeMismatch("bool condition", v.Kind.String())
		}
		return v.Bool == (c.Kind == lir.CondTrue), nil
	case lir.CondCompare:
		left, vmErr := vm.evalOperand(frame, &c.Left)
		if vmErr != nil {
			return false, vmErr
		}
		right, vmErr := vm.evalOperand(frame, &c.Right)
		if vmErr != nil {
			return false, vmErr
		}
		return vm.compare(c.Op, left, right, flags&lir.BranchUnsigned != 0, flags&lir.BranchUnordered != 0)
	}
	return false, vm.eb.unimplemented(fmt.Sprintf("condition kind %d", c.Kind))
}

func (vm *VM) jump(frame *Frame, target lir.BlockID) {
	frame.BB, frame.IP = target, 0
}

// transfer moves to target. A leave first runs, innermost first, the
// finally handlers of every region it exits.
func (vm *VM) transfer(frame *Frame, target lir.BlockID, flags lir.BranchFlags) *VMError {
	if flags&lir.BranchLeave == 0 {
		vm.jump(frame, target)
		return nil
	}
	var finals []int
	for i := range frame.Func.Handlers {
		h := &frame.Func.Handlers[i]
		if h.Kind == lir.HandlerFinally && h.InTry(frame.BB) && !h.InTry(target) {
			finals = append(finals, i)
		}
	}
	vm.leaveThrough(frame, target, finals)
	return nil
}

func (vm *VM) leaveThrough(frame *Frame, target lir.BlockID, finals []int) {
	if len(finals) == 0 {
		vm.jump(frame, target)
		return
	}
	h := &frame.Func.Handlers[finals[0]]
	frame.pending = append(frame.pending, pending{handler: finals[0], leave: true, target: target, rest: finals[1:]})
	vm.jump(frame, h.HandlerStart)
}

func (vm *VM) endFinally(frame *Frame) (Value, termStatus, *VMError) {
	if len(frame.pending) == 0 {
		return Value{}, termContinue, vm.eb.makeError(PanicBadControl, "endfinally without a pending transfer")
	}
	p := frame.pending[len(frame.pending)-1]
	frame.pending = frame.pending[:len(frame.pending)-1]
	if p.leave {
		vm.leaveThrough(frame, p.target, p.rest)
		return Value{}, termContinue, nil
	}
	if vmErr := vm.dispatch(frame, p.exc, p.from, p.next); vmErr != nil {
		return Value{}, termEscape, vmErr
	}
	return Value{}, termContinue, nil
}

// raise routes an error raised at frame.BB to the frame's handlers.
// Interpreter faults are not catchable. It returns the error when it
// escapes the frame.
func (vm *VM) raise(frame *Frame, vmErr *VMError) *VMError {
	if vmErr.Code != PanicException {
		return vmErr
	}
	if vmErr = vm.dispatch(frame, vmErr, frame.BB, 0); vmErr != nil {
		vm.Trace.TraceException(len(vm.Stack), frame.Func, vmErr)
	}
	return vmErr
}

// dispatch searches the handler table from index start for a region
// protecting from. A matching catch receives the exception; a finally
// runs first and resumes the search when it ends.
func (vm *VM) dispatch(frame *Frame, exc *VMError, from lir.BlockID, start int) *VMError {
	handlers := frame.Func.Handlers
	for i := start; i < len(handlers); i++ {
		h := &handlers[i]
		if !h.InTry(from) {
			continue
		}
		switch h.Kind {
		case lir.HandlerCatch:
			if h.Filter != 0 && !vm.Types.IsSubtype(vm.dynType(exc.Exception), h.Filter) {
				continue
			}
			vm.dropPending(frame, h.HandlerStart)
			frame.caught[i] = exc.Exception
			frame.handling = exc.Exception
			vm.jump(frame, h.HandlerStart)
			return nil
		case lir.HandlerFinally:
			vm.dropPending(frame, h.HandlerStart)
			frame.pending = append(frame.pending, pending{handler: i, exc: exc, from: from, next: i + 1})
			vm.jump(frame, h.HandlerStart)
			return nil
		}
	}
	return exc
}

// dropPending abandons the transfers of finally handlers that control
// leaves for good: an exception raised inside a finally body replaces
// whatever that handler was completing.
func (vm *VM) dropPending(frame *Frame, to lir.BlockID) {
	at := frame.BB
	kept := frame.pending[:0]
	for _, p := range frame.pending {
		h := &frame.Func.Handlers[p.handler]
		if h.InHandler(at) && !h.InHandler(to) {
			continue
		}
		kept = append(kept, p)
	}
	frame.pending = kept
}
