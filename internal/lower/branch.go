package lower

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
)

// branchOn jumps to target when e evaluates to sense and falls through
// otherwise. Negations and short-circuit operators become branch chains;
// comparisons are inverted structurally instead of being negated.
func (l *funcLowerer) branchOn(ctx context, e *ast.Expr, sense bool, target lir.BlockID) error {
	if e == nil {
		return malformed("missing condition")
	}
	switch d := e.Data.(type) {
	case ast.LiteralData:
		if d.Kind == ast.LiteralBool {
			if d.BoolValue == sense {
				l.gotoBlock(target, 0)
			}
			return nil
		}
	case ast.UnaryData:
		if d.Op == ast.UnaryNot && !d.Lifted {
			return l.branchOn(ctx, d.Operand, !sense, target)
		}
	case ast.BinaryData:
		if d.Lifted {
			break
		}
		switch {
		case d.Op == ast.BinLogAnd && sense, d.Op == ast.BinLogOr && !sense:
			// Both operands must agree with sense; the first one failing skips.
			skip := l.newBlock()
			if err := l.branchOn(ctx, d.Left, !sense, skip); err != nil {
				return err
			}
			if err := l.branchOn(ctx, d.Right, sense, target); err != nil {
				return err
			}
			l.gotoBlock(skip, 0)
			l.startBlock(skip)
			return nil
		case d.Op == ast.BinLogAnd, d.Op == ast.BinLogOr:
			if err := l.branchOn(ctx, d.Left, sense, target); err != nil {
				return err
			}
			return l.branchOn(ctx, d.Right, sense, target)
		case d.Op.IsComparison():
			return l.branchCompare(ctx, d, sense, target)
		}
	}
	v, err := l.lowerExpr(ctx, e)
	if err != nil {
		return err
	}
	cond := lir.Condition{Kind: lir.CondTrue, Value: v}
	var flags lir.BranchFlags
	if !sense {
		cond.Kind = lir.CondFalse
		flags = lir.BranchInverted
	}
	l.branchTo(cond, target, flags)
	return nil
}

func (l *funcLowerer) branchCompare(ctx context, d ast.BinaryData, sense bool, target lir.BlockID) error {
	left, right, err := l.lowerOperands(ctx, d.Left, d.Right)
	if err != nil {
		return err
	}
	left, right = l.widen(left, right)
	op := d.Op
	var flags lir.BranchFlags
	if l.types.IsUnsigned(left.Type) {
		flags |= lir.BranchUnsigned
	}
	if !sense {
		op = op.Negate()
		flags |= lir.BranchInverted
		if l.types.IsFloat(left.Type) && op != ast.BinEq && op != ast.BinNe {
			flags |= lir.BranchUnordered
		}
	}
	l.branchTo(lir.Condition{Kind: lir.CondCompare, Op: op, Left: left, Right: right}, target, flags)
	return nil
}

// lowerOperands evaluates a binary operand pair left to right, pinning the
// left value when the right one has side effects.
func (l *funcLowerer) lowerOperands(ctx context, le, re *ast.Expr) (lir.Operand, lir.Operand, error) {
	left, err := l.lowerExpr(ctx, le)
	if err != nil {
		return lir.Operand{}, lir.Operand{}, err
	}
	if hasEffects(re) {
		left = l.stabilize(left)
	}
	right, err := l.lowerExpr(ctx, re)
	if err != nil {
		return lir.Operand{}, lir.Operand{}, err
	}
	switch {
	case left.Type == l.b.Null && l.types.IsReference(right.Type):
		left = lir.NullConst(right.Type)
	case right.Type == l.b.Null && l.types.IsReference(left.Type):
		right = lir.NullConst(left.Type)
	}
	return left, right, nil
}

// condValue materializes a branch-only condition as a bool value.
func (l *funcLowerer) condValue(ctx context, e *ast.Expr) (lir.Operand, error) {
	dst := l.newTemp(l.b.Bool, "cond")
	falseBlk, join := l.newBlock(), l.newBlock()
	if err := l.branchOn(ctx, e, false, falseBlk); err != nil {
		return lir.Operand{}, err
	}
	l.assignOp(dst, l.boolConst(true))
	l.gotoBlock(join, 0)
	l.startBlock(falseBlk)
	l.assignOp(dst, l.boolConst(false))
	l.gotoBlock(join, 0)
	l.startBlock(join)
	return lir.Copy(dst, l.b.Bool), nil
}
