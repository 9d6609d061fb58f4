package lower

import (
	"fmt"

	"fortio.org/safecast"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

func (l *funcLowerer) curBlock() *lir.Block {
	if l == nil || l.f == nil {
		return nil
	}
	idx := int(l.cur)
	if idx < 0 || idx >= len(l.f.Blocks) {
		return nil
	}
	return &l.f.Blocks[idx]
}

// newBlock allocates a block without placing it; startBlock fixes its
// position in the final layout.
func (l *funcLowerer) newBlock() lir.BlockID {
	raw, err := safecast.Conv[int32](len(l.f.Blocks))
	if err != nil {
		panic(fmt.Errorf("lower: block id overflow: %w", err))
	}
	id := lir.BlockID(raw)
	l.f.Blocks = append(l.f.Blocks, lir.Block{ID: id, Term: lir.Terminator{Kind: lir.TermNone}})
	return id
}

func (l *funcLowerer) startBlock(id lir.BlockID) {
	l.cur = id
	l.layout = append(l.layout, id)
}

func (l *funcLowerer) terminated() bool {
	return l.curBlock().Terminated()
}

func (l *funcLowerer) setTerm(t *lir.Terminator) {
	b := l.curBlock()
	if b == nil || b.Terminated() || t == nil {
		return
	}
	b.Term = *t
}

// emit appends ins to the current block. Code following a terminator is
// unreachable; it goes to a fresh block that compaction later drops.
func (l *funcLowerer) emit(ins *lir.Instr) {
	if ins == nil {
		return
	}
	if l.terminated() {
		l.startBlock(l.newBlock())
	}
	b := l.curBlock()
	b.Instrs = append(b.Instrs, *ins)
}

func (l *funcLowerer) gotoBlock(target lir.BlockID, flags lir.BranchFlags) {
	l.setTerm(&lir.Terminator{Kind: lir.TermGoto, Goto: lir.GotoTerm{Target: target, Flags: flags}})
}

// branchTo ends the current block with a conditional jump to target and
// continues in a fresh fall-through block.
func (l *funcLowerer) branchTo(cond lir.Condition, target lir.BlockID, flags lir.BranchFlags) {
	fall := l.newBlock()
	l.setTerm(&lir.Terminator{
		Kind:   lir.TermBranch,
		Branch: lir.BranchTerm{Cond: cond, Target: target, Else: fall, Flags: flags},
	})
	l.startBlock(fall)
}

func (l *funcLowerer) branchIfNull(op lir.Operand, target lir.BlockID) {
	l.branchTo(lir.Condition{
		Kind:  lir.CondCompare,
		Op:    ast.BinEq,
		Left:  op,
		Right: lir.NullConst(op.Type),
	}, target, 0)
}

func (l *funcLowerer) returnValue(op *lir.Operand) {
	t := &lir.Terminator{Kind: lir.TermReturn}
	if op != nil {
		t.Return = lir.ReturnTerm{HasValue: true, Value: *op}
	}
	l.setTerm(t)
}

func (l *funcLowerer) assign(dst lir.Place, rv lir.RValue) {
	l.emit(&lir.Instr{Kind: lir.InstrAssign, Assign: lir.AssignInstr{Dst: dst, Src: rv}})
}

func (l *funcLowerer) assignOp(dst lir.Place, op lir.Operand) {
	l.assign(dst, lir.Use(op))
}

// rvalueTemp evaluates rv into a fresh temporary of type ty.
func (l *funcLowerer) rvalueTemp(ty types.TypeID, rv lir.RValue, hint string) lir.Operand {
	tmp := l.newTemp(ty, hint)
	l.assign(tmp, rv)
	return lir.Copy(tmp, ty)
}

// call emits a call and returns its result; the operand is zero for void
// callees.
func (l *funcLowerer) call(result types.TypeID, callee lir.Callee, recv *lir.Operand, args ...lir.Operand) lir.Operand {
	ci := lir.CallInstr{Callee: callee, Args: args}
	if recv != nil {
		ci.HasRecv = true
		ci.Recv = *recv
	}
	var out lir.Operand
	if !l.isVoid(result) {
		dst := l.newTemp(result, "call")
		ci.HasDst = true
		ci.Dst = dst
		out = lir.Copy(dst, result)
	}
	l.emit(&lir.Instr{Kind: lir.InstrCall, Call: ci})
	return out
}

func (l *funcLowerer) callMethod(result, owner types.TypeID, name string, virtual bool, recv *lir.Operand, args ...lir.Operand) lir.Operand {
	return l.call(result, lir.Callee{Kind: lir.CalleeMethod, Owner: owner, Name: name, Virtual: virtual}, recv, args...)
}

func (l *funcLowerer) callIntrinsic(name string, result types.TypeID, args ...lir.Operand) lir.Operand {
	return l.call(result, lir.Callee{Kind: lir.CalleeIntrinsic, Name: name}, nil, args...)
}

func (l *funcLowerer) newObject(class types.TypeID, hint string, args ...lir.Operand) lir.Operand {
	dst := l.newTemp(class, hint)
	l.emit(&lir.Instr{Kind: lir.InstrNew, New: lir.NewInstr{Dst: dst, Class: class, Args: args}})
	return lir.Copy(dst, class)
}

// throwNew constructs class with a message and throws it.
func (l *funcLowerer) throwNew(class types.TypeID, msg string, extra ...lir.Operand) {
	args := append([]lir.Operand{lir.StringConst(msg, l.b.String)}, extra...)
	exc := l.newObject(class, "exc", args...)
	l.setTerm(&lir.Terminator{Kind: lir.TermThrow, Throw: lir.ThrowTerm{Value: exc}})
}

func (l *funcLowerer) addLocal(name string, ty types.TypeID, flags lir.LocalFlags, sym symbols.SymbolID) lir.LocalID {
	raw, err := safecast.Conv[int32](len(l.f.Locals))
	if err != nil {
		panic(fmt.Errorf("lower: local id overflow: %w", err))
	}
	l.f.Locals = append(l.f.Locals, lir.Local{Sym: sym, Type: ty, Flags: flags, Name: name})
	return lir.LocalID(raw)
}

// newTemp allocates a compiler temporary. Inside a state machine every
// temporary lives in a field so it survives suspension.
func (l *funcLowerer) newTemp(ty types.TypeID, hint string) lir.Place {
	if l.hoist != nil {
		return l.hoistField(ty, hint+"$")
	}
	name := fmt.Sprintf("%s$%d", hint, l.nextTemp)
	l.nextTemp++
	return lir.LocalPlace(l.addLocal(name, ty, lir.LocalFlagTemp, symbols.NoSymbolID))
}

func (l *funcLowerer) hoistField(ty types.TypeID, hint string) lir.Place {
	name := l.types.AddUniqueField(l.hoist.typ, hint, ty)
	return lir.LocalPlace(l.thisLocal).WithField(l.hoist.typ, name)
}

// spill copies op into a temporary unless it already reads one.
func (l *funcLowerer) spill(op lir.Operand, hint string) lir.Place {
	if op.Kind == lir.OperandCopy && l.isTempPlace(op.Place) {
		return op.Place
	}
	tmp := l.newTemp(op.Type, hint)
	l.assignOp(tmp, op)
	return tmp
}

func (l *funcLowerer) isTempPlace(p lir.Place) bool {
	if p.Kind != lir.PlaceLocal {
		return false
	}
	if l.hoist != nil && len(p.Proj) == 1 && p.Local == l.thisLocal {
		proj := p.Proj[0]
		return proj.Kind == lir.PlaceProjField && proj.Owner == l.hoist.typ && isTempField(proj.Field)
	}
	if len(p.Proj) != 0 || p.Local < 0 || int(p.Local) >= len(l.f.Locals) {
		return false
	}
	return l.f.Locals[p.Local].Flags&lir.LocalFlagTemp != 0
}

func isTempField(name string) bool {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '$' {
			return true
		}
	}
	return false
}

// stabilize pins the value of op before later operands with side effects
// are evaluated.
func (l *funcLowerer) stabilize(op lir.Operand) lir.Operand {
	if op.Kind != lir.OperandCopy || l.isTempPlace(op.Place) {
		return op
	}
	return lir.Copy(l.spill(op, "t"), op.Type)
}

func (l *funcLowerer) isVoid(ty types.TypeID) bool {
	return ty == types.NoTypeID || l.types.Kind(ty) == types.KindVoid
}

func (l *funcLowerer) intConst(v int64) lir.Operand {
	return lir.IntConst(v, l.b.Int)
}

func (l *funcLowerer) boolConst(v bool) lir.Operand {
	return lir.BoolConst(v, l.b.Bool)
}

// binary evaluates left op right into a temporary.
func (l *funcLowerer) binary(ty types.TypeID, op ast.BinaryOp, left, right lir.Operand) lir.Operand {
	return l.rvalueTemp(ty, lir.RValue{Kind: lir.RValueBinary, Binary: lir.BinaryOp{
		Op:       op,
		Left:     left,
		Right:    right,
		Unsigned: l.types.IsUnsigned(left.Type),
	}}, "t")
}

// increment adds one to an int place.
func (l *funcLowerer) increment(p lir.Place) {
	l.assign(p, lir.RValue{Kind: lir.RValueBinary, Binary: lir.BinaryOp{
		Op:    ast.BinAdd,
		Left:  lir.Copy(p, l.b.Int),
		Right: l.intConst(1),
	}})
}
