package lower

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

const (
	evaluationMessage = "Exception occurred during evaluation of a contract"
	frameHeldMessage  = "Precondition violated: target object is not exposable"
)

// assertMessage formats the violation message of a clause. Source text is
// NFC-normalized so equal clauses produce equal messages.
func assertMessage(kind, text string) string {
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return kind + " violated"
	}
	return kind + " violated: " + text
}

// lowerPreconditions emits, in order, the null checks of non-null
// reference parameters and the frame check of public methods (both only
// for externally visible procedures), then the declared preconditions.
func (l *funcLowerer) lowerPreconditions(ctx context, fn *ast.Func) error {
	if fn.IsPublic() {
		for _, p := range fn.Params {
			if !p.NonNull || !l.types.IsReference(p.Type) {
				continue
			}
			place, ty, err := l.varPlace(p.Sym)
			if err != nil {
				return err
			}
			ok := l.newBlock()
			l.branchTo(lir.Condition{Kind: lir.CondCompare, Op: ast.BinNe, Left: lir.Copy(place, ty), Right: lir.NullConst(ty)}, ok, 0)
			l.throwNew(l.wk.ArgumentNull, p.Name)
			l.startBlock(ok)
		}
		if !fn.IsStatic() && !fn.IsCtor() && l.types.HasFrame(fn.Owner) {
			this, ty, err := l.thisPlace(ctx)
			if err != nil {
				return err
			}
			held := l.callIntrinsic(lir.IntrinsicFrameIsHeld, l.b.Bool, lir.Copy(this, ty))
			ok := l.newBlock()
			l.branchTo(lir.Condition{Kind: lir.CondFalse, Value: held}, ok, lir.BranchInverted)
			l.throwNew(l.wk.Requires, frameHeldMessage)
			l.startBlock(ok)
		}
	}
	if fn.Contract == nil {
		return nil
	}
	for _, c := range fn.Contract.Requires {
		if c.Cond == nil {
			return malformed("%s: precondition without a condition", fn.Name)
		}
		msg := assertMessage("Precondition", c.Text)
		if err := l.checkClause(ctx, c.Cond, func(context) error {
			l.throwNew(l.wk.Requires, msg)
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// checkClause evaluates cond and continues when it holds; otherwise fail
// emits the violation, which must not fall through.
func (l *funcLowerer) checkClause(ctx context, cond *ast.Expr, fail func(context) error) error {
	v, err := l.guardEvaluation(ctx, cond)
	if err != nil {
		return err
	}
	holds := l.newBlock()
	l.branchTo(lir.Condition{Kind: lir.CondTrue, Value: v}, holds, 0)
	if err := fail(ctx); err != nil {
		return err
	}
	l.setTerm(&lir.Terminator{Kind: lir.TermUnreachable})
	l.startBlock(holds)
	return nil
}

// guardEvaluation evaluates a contract condition. When evaluation may
// throw, it runs in a try region whose handler wraps the exception in a
// ContractEvaluationException.
func (l *funcLowerer) guardEvaluation(ctx context, cond *ast.Expr) (lir.Operand, error) {
	if !mayThrow(cond) {
		v, err := l.lowerExpr(ctx, cond)
		if err != nil {
			return lir.Operand{}, err
		}
		return l.coerce(v, l.b.Bool), nil
	}
	dst := l.newTemp(l.b.Bool, "holds")
	err := l.tryCatch(ctx, func(ctx context) error {
		v, err := l.lowerExpr(ctx, cond)
		if err != nil {
			return err
		}
		l.assignOp(dst, l.coerce(v, l.b.Bool))
		return nil
	}, []catchSpec{{
		filter: l.wk.Exception,
		lower: func(_ context, exc lir.Place) error {
			l.throwNew(l.wk.ContractEvaluation, evaluationMessage, lir.Copy(exc, l.wk.Exception))
			return nil
		},
	}})
	if err != nil {
		return lir.Operand{}, err
	}
	return lir.Copy(dst, l.b.Bool), nil
}

// mayThrow reports whether evaluating e can raise an exception.
func mayThrow(e *ast.Expr) bool {
	found := false
	ast.Visitor{Expr: func(x *ast.Expr) bool {
		switch d := x.Data.(type) {
		case ast.LiteralData, ast.LocalData, ast.ThisData, ast.ResultData, ast.OldData,
			ast.CondData, ast.HasValueData, ast.DefaultData, ast.TypeTestData, ast.UnaryData:
		case ast.BinaryData:
			if d.Op == ast.BinDiv || d.Op == ast.BinRem {
				found = true
			}
		case ast.FieldData:
			if d.Object != nil {
				found = true
			}
		default:
			found = true
		}
		return !found
	}}.WalkExpr(e)
	return found
}

// rethrowMarker wraps a contract check region in a handler that only
// rethrows, so that tools reading the handler table can tell check code
// from user code.
func (l *funcLowerer) rethrowMarker(ctx context, body func(context) error) error {
	return l.tryCatch(ctx, body, []catchSpec{{
		filter:    l.wk.Exception,
		synthetic: true,
		lower: func(context, lir.Place) error {
			l.setTerm(&lir.Terminator{Kind: lir.TermRethrow})
			return nil
		},
	}})
}

func (l *funcLowerer) exceptionFilter(ty types.TypeID) (types.TypeID, error) {
	if ty == types.NoTypeID {
		return l.wk.Exception, nil
	}
	if !l.types.IsSubtype(ty, l.wk.Exception) {
		return types.NoTypeID, malformed("throws clause on non-exception %s", l.types.TypeString(ty))
	}
	return ty, nil
}
