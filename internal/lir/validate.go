package lir

import (
	"errors"
	"fmt"

	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// Validate checks module invariants.
// Returns error if any invariant is violated.
func Validate(m *Module, typesIn *types.Interner) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, f := range m.Funcs() {
		if err := ValidateFunc(f, typesIn); err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

// ValidateFunc checks the invariants of a single lowered procedure.
func ValidateFunc(f *Func, typesIn *types.Interner) error {
	if f == nil {
		return nil
	}
	var errs []error

	// 1. Every block ends with exactly one terminator and IDs match layout.
	if err := validateBlocksTerminated(f); err != nil {
		errs = append(errs, err)
	}

	// 2. Branch targets exist.
	if err := validateBlockTargets(f); err != nil {
		errs = append(errs, err)
	}

	// 3. Local ids in places exist.
	if err := validateLocalIDs(f); err != nil {
		errs = append(errs, err)
	}

	// 4. Handler regions are well formed and properly nested.
	if err := validateHandlers(f); err != nil {
		errs = append(errs, err)
	}

	// 5. Every block is reachable from the entry or a live handler.
	if err := validateReachable(f); err != nil {
		errs = append(errs, err)
	}

	// 6. Return terminators agree with the result type.
	if err := validateReturn(f, typesIn); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateBlocksTerminated(f *Func) error {
	var errs []error
	if len(f.Blocks) == 0 {
		return errors.New("no blocks")
	}
	if f.Entry < 0 || int(f.Entry) >= len(f.Blocks) {
		errs = append(errs, fmt.Errorf("entry bb%d does not exist", f.Entry))
	}
	for i := range f.Blocks {
		if f.Blocks[i].ID != BlockID(i) {
			errs = append(errs, fmt.Errorf("bb%d: block id %d does not match position", i, f.Blocks[i].ID))
		}
		if f.Blocks[i].Term.Kind == TermNone {
			errs = append(errs, fmt.Errorf("bb%d: unterminated block", i))
		}
	}
	return errors.Join(errs...)
}

func validateBlockTargets(f *Func) error {
	var errs []error
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for _, target := range bb.Term.Successors() {
			if target < 0 || int(target) >= len(f.Blocks) {
				errs = append(errs, fmt.Errorf("bb%d: %s target bb%d does not exist", i, bb.Term.Kind, target))
			}
		}
	}
	return errors.Join(errs...)
}

func validateLocalIDs(f *Func) error {
	var errs []error

	localExists := func(id LocalID) bool {
		return id >= 0 && int(id) < len(f.Locals)
	}

	var checkOperand func(op Operand, context string)
	checkPlace := func(p Place, context string) {
		if p.Kind == PlaceLocal && !localExists(p.Local) {
			errs = append(errs, fmt.Errorf("%s: local L%d does not exist", context, p.Local))
		}
		for _, proj := range p.Proj {
			if proj.Kind == PlaceProjIndex {
				checkOperand(proj.Index, context)
			}
		}
	}
	checkOperand = func(op Operand, context string) {
		switch op.Kind {
		case OperandCopy, OperandAddrOf:
			checkPlace(op.Place, context)
		}
	}
	checkRValue := func(rv *RValue, context string) {
		switch rv.Kind {
		case RValueUse, RValueLen, RValueHasValue:
			checkOperand(rv.Use, context)
		case RValueUnary:
			checkOperand(rv.Unary.Operand, context)
		case RValueBinary, RValuePtrAdd:
			checkOperand(rv.Binary.Left, context)
			checkOperand(rv.Binary.Right, context)
		case RValueCast:
			checkOperand(rv.Cast.Value, context)
		case RValueNewArray:
			checkOperand(rv.NewArray.Len, context)
		case RValueArrayLit:
			for _, e := range rv.ArrayLit.Elems {
				checkOperand(e, context)
			}
		case RValueIsInst, RValueAsInst:
			checkOperand(rv.TypeTest.Value, context)
		case RValueDelegate:
			if rv.Delegate.HasTarget {
				checkOperand(rv.Delegate.Target, context)
			}
		}
	}

	for i := range f.Blocks {
		bb := &f.Blocks[i]
		for j := range bb.Instrs {
			ins := &bb.Instrs[j]
			context := fmt.Sprintf("bb%d.%d", i, j)
			switch ins.Kind {
			case InstrAssign:
				checkPlace(ins.Assign.Dst, context)
				checkRValue(&ins.Assign.Src, context)
			case InstrCall:
				if ins.Call.HasDst {
					checkPlace(ins.Call.Dst, context)
				}
				if ins.Call.HasRecv {
					checkOperand(ins.Call.Recv, context)
				}
				if ins.Call.Callee.Kind == CalleeDelegate {
					checkOperand(ins.Call.Callee.Value, context)
				}
				for _, a := range ins.Call.Args {
					checkOperand(a, context)
				}
			case InstrNew:
				checkPlace(ins.New.Dst, context)
				for _, a := range ins.New.Args {
					checkOperand(a, context)
				}
			case InstrPopException:
				checkPlace(ins.PopException.Dst, context)
			case InstrAssume:
				checkOperand(ins.Assume.Cond, context)
			}
		}
		context := fmt.Sprintf("bb%d.term", i)
		switch bb.Term.Kind {
		case TermReturn:
			if bb.Term.Return.HasValue {
				checkOperand(bb.Term.Return.Value, context)
			}
		case TermBranch:
			c := &bb.Term.Branch.Cond
			if c.Kind == CondCompare {
				checkOperand(c.Left, context)
				checkOperand(c.Right, context)
			} else {
				checkOperand(c.Value, context)
			}
		case TermSwitch:
			checkOperand(bb.Term.Switch.Value, context)
		case TermThrow:
			checkOperand(bb.Term.Throw.Value, context)
		}
	}
	return errors.Join(errs...)
}

type span struct{ lo, hi BlockID }

func (s span) overlaps(o span) bool { return s.lo < o.hi && o.lo < s.hi }
func (s span) contains(o span) bool { return s.lo <= o.lo && o.hi <= s.hi }

func properlyNested(a, b span) bool {
	return !a.overlaps(b) || a.contains(b) || b.contains(a)
}

func validateHandlers(f *Func) error {
	var errs []error
	n := BlockID(len(f.Blocks))
	for i := range f.Handlers {
		h := &f.Handlers[i]
		if h.TryStart < 0 || h.TryStart >= h.TryEnd || h.TryEnd > n {
			errs = append(errs, fmt.Errorf("H%d: bad try range [bb%d, bb%d)", i, h.TryStart, h.TryEnd))
			continue
		}
		if h.HandlerStart < 0 || h.HandlerStart >= h.HandlerEnd || h.HandlerEnd > n {
			errs = append(errs, fmt.Errorf("H%d: bad handler range [bb%d, bb%d)", i, h.HandlerStart, h.HandlerEnd))
			continue
		}
		try, handler := span{h.TryStart, h.TryEnd}, span{h.HandlerStart, h.HandlerEnd}
		if try.overlaps(handler) {
			errs = append(errs, fmt.Errorf("H%d: try and handler ranges overlap", i))
		}
		if h.Kind == HandlerCatch {
			first := &f.Blocks[h.HandlerStart]
			if len(first.Instrs) == 0 || first.Instrs[0].Kind != InstrPopException {
				errs = append(errs, fmt.Errorf("H%d: catch handler bb%d does not start with pop_exception", i, h.HandlerStart))
			}
		}
		for j := 0; j < i; j++ {
			o := &f.Handlers[j]
			ospans := []span{{o.TryStart, o.TryEnd}, {o.HandlerStart, o.HandlerEnd}}
			for _, a := range []span{try, handler} {
				for _, b := range ospans {
					if !properlyNested(a, b) {
						errs = append(errs, fmt.Errorf("H%d and H%d: regions [bb%d, bb%d) and [bb%d, bb%d) cross", j, i, b.lo, b.hi, a.lo, a.hi))
					}
				}
			}
		}
	}
	for i := range f.Blocks {
		switch f.Blocks[i].Term.Kind {
		case TermEndFinally:
			if !inHandlerOfKind(f, BlockID(i), HandlerFinally) {
				errs = append(errs, fmt.Errorf("bb%d: endfinally outside a finally handler", i))
			}
		case TermRethrow:
			if !inHandlerOfKind(f, BlockID(i), HandlerCatch) {
				errs = append(errs, fmt.Errorf("bb%d: rethrow outside a catch handler", i))
			}
		}
	}
	return errors.Join(errs...)
}

func inHandlerOfKind(f *Func, b BlockID, kind HandlerKind) bool {
	for i := range f.Handlers {
		if f.Handlers[i].Kind == kind && f.Handlers[i].InHandler(b) {
			return true
		}
	}
	return false
}

func validateReachable(f *Func) error {
	live := Reachable(f)
	var errs []error
	for i := range f.Blocks {
		if !live[i] {
			errs = append(errs, fmt.Errorf("bb%d: unreachable", i))
		}
	}
	return errors.Join(errs...)
}

func validateReturn(f *Func, typesIn *types.Interner) error {
	isVoid := f.Result == types.NoTypeID
	if typesIn != nil && !isVoid {
		isVoid = typesIn.Kind(f.Result) == types.KindVoid
	}
	var errs []error
	for i := range f.Blocks {
		t := &f.Blocks[i].Term
		if t.Kind != TermReturn {
			continue
		}
		if isVoid && t.Return.HasValue {
			errs = append(errs, fmt.Errorf("bb%d: void procedure returns a value", i))
		}
		if !isVoid && !t.Return.HasValue {
			errs = append(errs, fmt.Errorf("bb%d: missing return value", i))
		}
	}
	return errors.Join(errs...)
}
