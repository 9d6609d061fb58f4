package lower

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// snapshotOlds evaluates every old(...) of the postconditions at entry.
// Arrays are copied as deep as the postconditions index into them, up to
// Options.MaxOldDepth; everything else is copied by value.
func (l *funcLowerer) snapshotOlds(ctx context, fn *ast.Func) error {
	if fn.Contract == nil {
		return nil
	}
	var conds []*ast.Expr
	for _, c := range fn.Contract.Ensures {
		conds = append(conds, c.Cond)
	}
	for _, c := range fn.Contract.Throws {
		conds = append(conds, c.Cond)
	}
	var olds []*ast.Expr
	depth := make(map[*ast.Expr]int)
	for _, c := range conds {
		ast.Visitor{Expr: func(x *ast.Expr) bool {
			switch x.Data.(type) {
			case ast.OldData:
				if _, seen := depth[x]; !seen {
					depth[x] = 0
					olds = append(olds, x)
				}
				return false
			case ast.IndexData:
				if o, n := indexedOld(x); o != nil && n > depth[o] {
					depth[o] = n
				}
			}
			return true
		}}.WalkExpr(c)
	}
	for _, o := range olds {
		d := o.Data.(ast.OldData)
		if d.Value == nil {
			return malformed("%s: old without an operand", fn.Name)
		}
		v, err := l.lowerExpr(ctx, d.Value)
		if err != nil {
			return err
		}
		n := min(depth[o], l.s.Opts.MaxOldDepth)
		snap, err := l.snapshot(ctx, l.coerce(v, o.Type), n)
		if err != nil {
			return err
		}
		l.olds[o] = snap
	}
	return nil
}

// indexedOld follows the object chain of nested index expressions and
// returns the old expression at its root with the number of index levels.
func indexedOld(e *ast.Expr) (*ast.Expr, int) {
	n := 0
	for {
		switch d := e.Data.(type) {
		case ast.IndexData:
			n++
			e = d.Object
		case ast.OldData:
			return e, n
		default:
			return nil, 0
		}
		if e == nil {
			return nil, 0
		}
	}
}

// snapshot copies v into a fresh temporary, cloning arrays depth levels
// deep. Null arrays stay null.
func (l *funcLowerer) snapshot(ctx context, v lir.Operand, depth int) (lir.Place, error) {
	dst := l.newTemp(v.Type, "old")
	if depth <= 0 || l.types.Kind(v.Type) != types.KindArray {
		l.assignOp(dst, v)
		return dst, nil
	}
	src := lir.Copy(l.spill(v, "src"), v.Type)
	l.assignOp(dst, src)
	done := l.newBlock()
	l.branchIfNull(src, done)
	l.assignOp(dst, l.callIntrinsic(lir.IntrinsicArrayClone, v.Type, src))
	elem := l.types.Elem(v.Type)
	if depth > 1 && l.types.Kind(elem) == types.KindArray {
		n := l.rvalueTemp(l.b.Int, lir.RValue{Kind: lir.RValueLen, Use: lir.Copy(dst, v.Type)}, "len")
		err := l.countingLoop(ctx, l.intConst(0), n, func(ctx context, i lir.Place) error {
			at := dst.WithIndex(lir.Copy(i, l.b.Int))
			inner, err := l.snapshot(ctx, lir.Copy(at, elem), depth-1)
			if err != nil {
				return err
			}
			l.assignOp(at, lir.Copy(inner, elem))
			return nil
		})
		if err != nil {
			return lir.Place{}, err
		}
	}
	l.gotoBlock(done, 0)
	l.startBlock(done)
	return dst, nil
}
