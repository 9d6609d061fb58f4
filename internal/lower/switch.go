package lower

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// lowerSwitch emits a linear chain of equality tests: the null label first,
// then every other label in source order, then a jump to the default
// section or past the switch. String scrutinees are interned so the chain
// can compare references.
func (l *funcLowerer) lowerSwitch(ctx context, d ast.SwitchData) error {
	if d.Value == nil {
		return malformed("switch without a value")
	}
	v, err := l.lowerExpr(ctx, d.Value)
	if err != nil {
		return err
	}
	ty := v.Type
	if l.types.Kind(ty) == types.KindString {
		v = l.callIntrinsic(lir.IntrinsicStringIsInterned, ty, v)
	}
	scrut := lir.Copy(l.spill(v, "sw"), ty)

	exit := l.newBlock()
	bodies := make([]lir.BlockID, len(d.Cases))
	deflt := exit
	for i, c := range d.Cases {
		bodies[i] = l.newBlock()
		if c.IsDefault {
			if deflt != exit {
				return malformed("switch with two default sections")
			}
			deflt = bodies[i]
		}
	}
	for i, c := range d.Cases {
		for _, lbl := range c.Labels {
			if isNullLiteral(lbl) {
				l.branchTo(l.eqCond(scrut, lir.NullConst(ty)), bodies[i], 0)
			}
		}
	}
	for i, c := range d.Cases {
		for _, lbl := range c.Labels {
			if lbl == nil {
				return malformed("switch label without a value")
			}
			if isNullLiteral(lbl) {
				continue
			}
			lv, err := l.lowerExpr(ctx, lbl)
			if err != nil {
				return err
			}
			l.branchTo(l.eqCond(scrut, l.coerce(lv, ty)), bodies[i], 0)
		}
	}
	l.gotoBlock(deflt, 0)

	sctx := ctx.pushSwitch(exit)
	for i, c := range d.Cases {
		l.startBlock(bodies[i])
		if err := l.lowerBlock(sctx, c.Body); err != nil {
			return err
		}
		l.gotoBlock(exit, 0)
	}
	l.startBlock(exit)
	return nil
}

func (l *funcLowerer) eqCond(left, right lir.Operand) lir.Condition {
	return lir.Condition{Kind: lir.CondCompare, Op: ast.BinEq, Left: left, Right: right}
}

func isNullLiteral(e *ast.Expr) bool {
	if e == nil {
		return false
	}
	d, ok := e.Data.(ast.LiteralData)
	return ok && d.Kind == ast.LiteralNull
}
