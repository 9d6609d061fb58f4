package lower

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

func (l *funcLowerer) lowerUnary(ctx context, e *ast.Expr, d ast.UnaryData) (lir.Operand, error) {
	v, err := l.lowerExpr(ctx, d.Operand)
	if err != nil {
		return lir.Operand{}, err
	}
	unary := func(ty types.TypeID, ops []lir.Operand) lir.Operand {
		return l.rvalueTemp(ty, lir.RValue{Kind: lir.RValueUnary, Unary: lir.UnaryOp{Op: d.Op, Operand: ops[0]}}, "t")
	}
	if d.Lifted || l.types.IsNullable(v.Type) {
		if !l.types.IsNullable(e.Type) {
			return lir.Operand{}, malformed("lifted %s with non-nullable result", d.Op)
		}
		return l.liftedValue(e.Type, []lir.Operand{v}, unary), nil
	}
	return unary(e.Type, []lir.Operand{v}), nil
}

func (l *funcLowerer) lowerBinary(ctx context, e *ast.Expr, d ast.BinaryData) (lir.Operand, error) {
	switch d.Op {
	case ast.BinLogAnd, ast.BinLogOr:
		if d.Lifted {
			return lir.Operand{}, malformed("lifted %s", d.Op)
		}
		return l.condValue(ctx, e)
	case ast.BinCoalesce:
		return l.lowerCoalesce(ctx, e, d)
	}
	left, right, err := l.lowerOperands(ctx, d.Left, d.Right)
	if err != nil {
		return lir.Operand{}, err
	}
	if d.Op != ast.BinShl && d.Op != ast.BinShr {
		left, right = l.widen(left, right)
	}
	lifted := d.Lifted || l.types.IsNullable(left.Type) || l.types.IsNullable(right.Type)
	if d.Op.IsComparison() {
		if lifted {
			return l.liftedCompare(d.Op, left, right), nil
		}
		return l.binary(l.b.Bool, d.Op, left, right), nil
	}
	op := func(ty types.TypeID, ops []lir.Operand) lir.Operand {
		return l.binary(ty, d.Op, ops[0], ops[1])
	}
	if lifted {
		if !l.types.IsNullable(e.Type) {
			return lir.Operand{}, malformed("lifted %s with non-nullable result", d.Op)
		}
		return l.liftedValue(e.Type, []lir.Operand{left, right}, op), nil
	}
	return op(e.Type, []lir.Operand{left, right}), nil
}

// liftedValue computes a nullable result: null when any nullable operand
// has no value, otherwise compute over the unwrapped operands.
func (l *funcLowerer) liftedValue(ty types.TypeID, ops []lir.Operand, compute func(types.TypeID, []lir.Operand) lir.Operand) lir.Operand {
	for _, op := range ops {
		if isNullConst(op) {
			return lir.NullConst(ty)
		}
	}
	elem := l.types.Elem(ty)
	dst := l.newTemp(ty, "lift")
	nullBlk, join := l.newBlock(), l.newBlock()
	pinned := make([]lir.Operand, len(ops))
	for i, op := range ops {
		pinned[i] = op
		if l.types.IsNullable(op.Type) {
			pinned[i] = lir.Copy(l.spill(op, "n"), op.Type)
		}
	}
	vals := make([]lir.Operand, len(ops))
	for i, op := range pinned {
		if !l.types.IsNullable(op.Type) {
			vals[i] = op
			continue
		}
		hv := l.rvalueTemp(l.b.Bool, lir.RValue{Kind: lir.RValueHasValue, Use: op}, "hv")
		l.branchTo(lir.Condition{Kind: lir.CondFalse, Value: hv}, nullBlk, lir.BranchInverted)
		vals[i] = l.castValue(ast.CastUnwrap, op, l.types.Elem(op.Type))
	}
	r := compute(elem, vals)
	l.assignOp(dst, l.coerce(r, ty))
	l.gotoBlock(join, 0)
	l.startBlock(nullBlk)
	l.assignOp(dst, lir.NullConst(ty))
	l.gotoBlock(join, 0)
	l.startBlock(join)
	return lir.Copy(dst, ty)
}

// liftedCompare implements comparisons over nullable operands: equality
// treats two nulls as equal and a null and a value as different; ordering
// is false whenever either side is null.
func (l *funcLowerer) liftedCompare(op ast.BinaryOp, left, right lir.Operand) lir.Operand {
	eq := op == ast.BinEq || op == ast.BinNe
	if isNullConst(left) {
		left, right = right, left
	}
	if isNullConst(right) {
		if isNullConst(left) {
			return l.boolConst(op == ast.BinEq)
		}
		if !eq {
			return l.boolConst(false)
		}
		hv := l.rvalueTemp(l.b.Bool, lir.RValue{Kind: lir.RValueHasValue, Use: left}, "hv")
		if op == ast.BinNe {
			return hv
		}
		return l.rvalueTemp(l.b.Bool, lir.RValue{Kind: lir.RValueUnary, Unary: lir.UnaryOp{Op: ast.UnaryNot, Operand: hv}}, "t")
	}
	left = lir.Copy(l.spill(left, "n"), left.Type)
	right = lir.Copy(l.spill(right, "n"), right.Type)
	hasValue := func(v lir.Operand) lir.Operand {
		if !l.types.IsNullable(v.Type) {
			return l.boolConst(true)
		}
		return l.rvalueTemp(l.b.Bool, lir.RValue{Kind: lir.RValueHasValue, Use: v}, "hv")
	}
	unwrap := func(v lir.Operand) lir.Operand {
		if !l.types.IsNullable(v.Type) {
			return v
		}
		return l.castValue(ast.CastUnwrap, v, l.types.Elem(v.Type))
	}
	dst := l.newTemp(l.b.Bool, "cmp")
	mismatch, bothNull, join := l.newBlock(), l.newBlock(), l.newBlock()
	lhv, rhv := hasValue(left), hasValue(right)
	l.branchTo(lir.Condition{Kind: lir.CondCompare, Op: ast.BinNe, Left: lhv, Right: rhv}, mismatch, 0)
	l.branchTo(lir.Condition{Kind: lir.CondFalse, Value: lhv}, bothNull, lir.BranchInverted)
	l.assignOp(dst, l.binary(l.b.Bool, op, unwrap(left), unwrap(right)))
	l.gotoBlock(join, 0)
	l.startBlock(mismatch)
	l.assignOp(dst, l.boolConst(op == ast.BinNe))
	l.gotoBlock(join, 0)
	l.startBlock(bothNull)
	l.assignOp(dst, l.boolConst(op == ast.BinEq))
	l.gotoBlock(join, 0)
	l.startBlock(join)
	return lir.Copy(dst, l.b.Bool)
}

func isNullConst(op lir.Operand) bool {
	return op.Kind == lir.OperandConst && op.Const.Kind == lir.ConstNull
}

// lowerCoalesce evaluates the right operand only when the left one is null.
func (l *funcLowerer) lowerCoalesce(ctx context, e *ast.Expr, d ast.BinaryData) (lir.Operand, error) {
	left, err := l.lowerExpr(ctx, d.Left)
	if err != nil {
		return lir.Operand{}, err
	}
	if !l.types.IsReference(left.Type) && !l.types.IsNullable(left.Type) {
		return lir.Operand{}, malformed("?? on non-nullable %s", l.types.TypeString(left.Type))
	}
	dst := l.newTemp(e.Type, "coal")
	rhs, join := l.newBlock(), l.newBlock()
	v := lir.Copy(l.spill(left, "c"), left.Type)
	if l.types.IsNullable(v.Type) {
		hv := l.rvalueTemp(l.b.Bool, lir.RValue{Kind: lir.RValueHasValue, Use: v}, "hv")
		l.branchTo(lir.Condition{Kind: lir.CondFalse, Value: hv}, rhs, lir.BranchInverted)
		if !l.types.IsNullable(e.Type) {
			v = l.castValue(ast.CastUnwrap, v, l.types.Elem(v.Type))
		}
	} else {
		l.branchIfNull(v, rhs)
	}
	l.assignOp(dst, l.coerce(v, e.Type))
	l.gotoBlock(join, 0)
	l.startBlock(rhs)
	right, err := l.lowerExpr(ctx, d.Right)
	if err != nil {
		return lir.Operand{}, err
	}
	l.assignOp(dst, l.coerce(right, e.Type))
	l.gotoBlock(join, 0)
	l.startBlock(join)
	return lir.Copy(dst, e.Type), nil
}

func (l *funcLowerer) lowerCondExpr(ctx context, e *ast.Expr, d ast.CondData) (lir.Operand, error) {
	dst := l.newTemp(e.Type, "sel")
	elseBlk, join := l.newBlock(), l.newBlock()
	if err := l.branchOn(ctx, d.Cond, false, elseBlk); err != nil {
		return lir.Operand{}, err
	}
	v, err := l.lowerExpr(ctx, d.Then)
	if err != nil {
		return lir.Operand{}, err
	}
	l.assignOp(dst, l.coerce(v, e.Type))
	l.gotoBlock(join, 0)
	l.startBlock(elseBlk)
	if v, err = l.lowerExpr(ctx, d.Else); err != nil {
		return lir.Operand{}, err
	}
	l.assignOp(dst, l.coerce(v, e.Type))
	l.gotoBlock(join, 0)
	l.startBlock(join)
	return lir.Copy(dst, e.Type), nil
}

func (l *funcLowerer) castValue(kind ast.CastKind, v lir.Operand, to types.TypeID) lir.Operand {
	return l.rvalueTemp(to, lir.RValue{Kind: lir.RValueCast, Cast: lir.CastOp{Kind: kind, Value: v, Target: to}}, "cv")
}

// coerce inserts the implicit conversion from v's type to ty, if any.
func (l *funcLowerer) coerce(v lir.Operand, ty types.TypeID) lir.Operand {
	from := v.Type
	if ty == types.NoTypeID || from == ty || l.isVoid(ty) {
		return v
	}
	if isNullConst(v) {
		return lir.NullConst(ty)
	}
	tk := l.types.Kind(ty)
	switch {
	case tk == types.KindNullable:
		elem := l.types.Elem(ty)
		if l.types.IsNullable(from) {
			return v
		}
		if from != elem {
			v = l.coerce(v, elem)
		}
		return l.castValue(ast.CastWrap, v, ty)
	case l.types.IsValueType(from) && (tk == types.KindObject || tk == types.KindInterface):
		return l.castValue(ast.CastBox, v, ty)
	case (l.types.Kind(from) == types.KindObject || l.types.Kind(from) == types.KindInterface) && l.types.IsValueType(ty):
		return l.castValue(ast.CastUnbox, v, ty)
	case l.types.IsReference(from) && l.types.IsReference(ty):
		if l.types.IsSubtype(from, ty) {
			return v
		}
		return l.castValue(ast.CastRef, v, ty)
	case l.types.IsNumeric(from) && l.types.IsNumeric(ty):
		return l.castValue(ast.CastConvert, v, ty)
	}
	return v
}

func (l *funcLowerer) coerceParam(v lir.Operand, params []types.TypeID, i int) lir.Operand {
	if i < 0 || i >= len(params) {
		return v
	}
	return l.coerce(v, params[i])
}

// widen brings two numeric operands to the wider of their types.
func (l *funcLowerer) widen(left, right lir.Operand) (lir.Operand, lir.Operand) {
	if left.Type == right.Type || !l.types.IsNumeric(left.Type) || !l.types.IsNumeric(right.Type) {
		return left, right
	}
	if l.numericRank(left.Type) < l.numericRank(right.Type) {
		return l.coerce(left, right.Type), right
	}
	return left, l.coerce(right, left.Type)
}

func (l *funcLowerer) numericRank(ty types.TypeID) int {
	t := l.types.MustLookup(ty)
	switch t.Kind {
	case types.KindFloat:
		return 100 + int(t.Width)
	case types.KindChar:
		return 16
	case types.KindUint:
		return int(t.Width) + 1
	}
	return int(t.Width)
}
