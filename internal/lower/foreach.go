package lower

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// lowerForEach picks a strategy from the static type of the source: a
// counting loop for ranges, indexed loops for arrays, strings and types
// with Count and an indexer, and the enumerator protocol otherwise.
func (l *funcLowerer) lowerForEach(ctx context, d ast.ForEachData) error {
	if d.Source == nil || !d.Var.IsValid() {
		return malformed("foreach without a source or variable")
	}
	nullSafe := d.NullSafe || l.s.Opts.NullSafeForeach
	src := d.Source
	if rd, ok := src.Data.(ast.RangeData); ok {
		lo, hi, err := l.lowerOperands(ctx, rd.Lo, rd.Hi)
		if err != nil {
			return err
		}
		return l.indexedLoop(ctx, d, lo, hi, l.newBlock(), false, func(i lir.Operand) lir.Operand { return i })
	}

	switch l.types.Kind(src.Type) {
	case types.KindArray, types.KindString:
		return l.forEachArray(ctx, d, nullSafe)
	case types.KindEnumerable, types.KindEnumerator:
		return l.forEachEnumerator(ctx, d, nullSafe)
	}
	if _, _, ok := l.types.LookupMethod(src.Type, "GetEnumerator"); ok {
		return l.forEachEnumerator(ctx, d, nullSafe)
	}
	_, _, hasCount := l.types.LookupMethod(src.Type, "get_Count")
	_, _, hasItem := l.types.LookupMethod(src.Type, "get_Item")
	if hasCount && hasItem {
		return l.forEachList(ctx, d, nullSafe)
	}
	return malformed("foreach over %s", l.types.TypeString(src.Type))
}

func (l *funcLowerer) forEachArray(ctx context, d ast.ForEachData, nullSafe bool) error {
	coll, err := l.lowerExpr(ctx, d.Source)
	if err != nil {
		return err
	}
	a := l.spill(coll, "coll")
	exit := l.newBlock()
	if nullSafe {
		l.branchIfNull(lir.Copy(a, coll.Type), exit)
	}
	n := l.rvalueTemp(l.b.Int, lir.RValue{Kind: lir.RValueLen, Use: lir.Copy(a, coll.Type)}, "len")
	elemTy := l.b.Char
	isArray := l.types.Kind(coll.Type) == types.KindArray
	if isArray {
		elemTy = l.types.Elem(coll.Type)
	}
	return l.indexedLoop(ctx, d, l.intConst(0), n, exit, isArray, func(i lir.Operand) lir.Operand {
		return lir.Copy(a.WithIndex(i), elemTy)
	})
}

func (l *funcLowerer) forEachList(ctx context, d ast.ForEachData, nullSafe bool) error {
	coll, err := l.lowerExpr(ctx, d.Source)
	if err != nil {
		return err
	}
	a := l.spill(coll, "coll")
	exit := l.newBlock()
	if nullSafe && l.types.IsReference(coll.Type) {
		l.branchIfNull(lir.Copy(a, coll.Type), exit)
	}
	recv := lir.Copy(a, coll.Type)
	virtual := !l.types.IsValueType(coll.Type)
	countM, countOwner, _ := l.types.LookupMethod(coll.Type, "get_Count")
	n := l.callMethod(countM.Result, countOwner, "get_Count", virtual, &recv)
	itemM, itemOwner, _ := l.types.LookupMethod(coll.Type, "get_Item")
	return l.indexedLoop(ctx, d, l.intConst(0), n, exit, false, func(i lir.Operand) lir.Operand {
		return l.callMethod(itemM.Result, itemOwner, "get_Item", virtual, &recv, i)
	})
}

// indexedLoop runs the body for i in [lo, hi), binding the loop variable to
// elem(i) and the optional position variable to i-lo.
func (l *funcLowerer) indexedLoop(ctx context, d ast.ForEachData, lo, hi lir.Operand, exit lir.BlockID, assume bool, elem func(i lir.Operand) lir.Operand) error {
	zeroBased := lo.Kind == lir.OperandConst && lo.Const.Kind == lir.ConstInt && lo.Const.IntValue == 0
	base := lo
	if !zeroBased {
		base = lir.Copy(l.spill(lo, "lo"), lo.Type)
	}
	i := l.newTemp(l.b.Int, "i")
	l.assignOp(i, base)
	n := l.spill(hi, "n")
	head, cont := l.newBlock(), l.newBlock()
	l.gotoBlock(head, 0)
	l.startBlock(head)
	if err := l.checkLoopInvariants(ctx, d.Invariants); err != nil {
		return err
	}
	iv := lir.Copy(i, l.b.Int)
	l.branchTo(lir.Condition{Kind: lir.CondCompare, Op: ast.BinGe, Left: iv, Right: lir.Copy(n, l.b.Int)}, exit, 0)

	prelude := func(ctx context) error {
		if assume && l.s.Opts.InternalContracts {
			c := l.binary(l.b.Bool, ast.BinGe, iv, l.intConst(0))
			l.emit(&lir.Instr{Kind: lir.InstrAssume, Assume: lir.AssumeInstr{Cond: c, Text: "index >= 0"}})
		}
		place, ty, err := l.varPlace(d.Var)
		if err != nil {
			return err
		}
		l.assignOp(place, l.coerce(elem(iv), ty))
		if d.Index.IsValid() {
			pos := iv
			if !zeroBased {
				pos = l.binary(l.b.Int, ast.BinSub, iv, base)
			}
			place, ty, err := l.varPlace(d.Index)
			if err != nil {
				return err
			}
			l.assignOp(place, l.coerce(pos, ty))
		}
		return nil
	}
	if err := l.lowerBlockWith(ctx.pushLoop(exit, cont), d.Body, false, prelude); err != nil {
		return err
	}
	l.gotoBlock(cont, 0)
	l.startBlock(cont)
	l.increment(i)
	l.gotoBlock(head, 0)
	l.startBlock(exit)
	return nil
}

// forEachEnumerator drives MoveNext/get_Current. A disposable enumerator is
// released in a finally region; the loop exits to a block inside that
// region so break needs no extra leave marking.
func (l *funcLowerer) forEachEnumerator(ctx context, d ast.ForEachData, nullSafe bool) error {
	coll, err := l.lowerExpr(ctx, d.Source)
	if err != nil {
		return err
	}
	exit := l.newBlock()
	enumOp := coll
	if l.types.Kind(coll.Type) != types.KindEnumerator {
		if nullSafe && l.types.IsReference(coll.Type) {
			c := l.spill(coll, "coll")
			l.branchIfNull(lir.Copy(c, coll.Type), exit)
			coll = lir.Copy(c, coll.Type)
		}
		m, owner, ok := l.types.LookupMethod(coll.Type, "GetEnumerator")
		if !ok {
			return malformed("%s has no GetEnumerator", l.types.TypeString(coll.Type))
		}
		enumOp = l.callMethod(m.Result, owner, "GetEnumerator", !l.types.IsValueType(coll.Type), &coll)
	}
	enumTy := enumOp.Type
	e := l.spill(enumOp, "enum")
	if nullSafe {
		l.branchIfNull(lir.Copy(e, enumTy), exit)
	}
	moveM, moveOwner, ok := l.types.LookupMethod(enumTy, "MoveNext")
	if !ok {
		return malformed("%s has no MoveNext", l.types.TypeString(enumTy))
	}
	curM, curOwner, ok := l.types.LookupMethod(enumTy, "get_Current")
	if !ok {
		return malformed("%s has no get_Current", l.types.TypeString(enumTy))
	}
	var k lir.Place
	if d.Index.IsValid() {
		k = l.newTemp(l.b.Int, "k")
		l.assignOp(k, l.intConst(0))
	}

	loop := func(ctx context) error {
		recv := lir.Copy(e, enumTy)
		head, cont, loopExit := l.newBlock(), l.newBlock(), l.newBlock()
		l.gotoBlock(head, 0)
		l.startBlock(head)
		if err := l.checkLoopInvariants(ctx, d.Invariants); err != nil {
			return err
		}
		more := l.callMethod(moveM.Result, moveOwner, "MoveNext", true, &recv)
		l.branchTo(lir.Condition{Kind: lir.CondFalse, Value: more}, loopExit, 0)
		prelude := func(ctx context) error {
			cur := l.callMethod(curM.Result, curOwner, "get_Current", true, &recv)
			place, ty, err := l.varPlace(d.Var)
			if err != nil {
				return err
			}
			l.assignOp(place, l.coerce(cur, ty))
			if d.Index.IsValid() {
				place, ty, err := l.varPlace(d.Index)
				if err != nil {
					return err
				}
				l.assignOp(place, l.coerce(lir.Copy(k, l.b.Int), ty))
			}
			return nil
		}
		if err := l.lowerBlockWith(ctx.pushLoop(loopExit, cont), d.Body, false, prelude); err != nil {
			return err
		}
		l.gotoBlock(cont, 0)
		l.startBlock(cont)
		if d.Index.IsValid() {
			l.increment(k)
		}
		l.gotoBlock(head, 0)
		l.startBlock(loopExit)
		return nil
	}

	if !l.types.IsDisposable(enumTy) {
		if err := loop(ctx); err != nil {
			return err
		}
	} else if err := l.tryFinally(ctx, loop, func(fl *funcLowerer, _ context) error {
		fl.disposeIfNotNull(lir.Copy(e, enumTy))
		return nil
	}); err != nil {
		return err
	}
	l.gotoBlock(exit, 0)
	l.startBlock(exit)
	return nil
}

// disposeIfNotNull calls Dispose on a reference unless it is null.
func (l *funcLowerer) disposeIfNotNull(v lir.Operand) {
	skip := l.newBlock()
	l.branchIfNull(v, skip)
	owner := l.wk.Disposable
	if _, o, ok := l.types.LookupMethod(v.Type, "Dispose"); ok {
		owner = o
	}
	l.callMethod(l.b.Void, owner, "Dispose", true, &v)
	l.gotoBlock(skip, 0)
	l.startBlock(skip)
}
