package lower

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

func (l *funcLowerer) lowerBlock(ctx context, b *ast.Block) error {
	return l.lowerBlockWith(ctx, b, false, nil)
}

// lowerBlockWith lowers b. merged means b's scope was already entered by the
// caller (a procedure body). prelude runs after scope entry and before the
// statements; loops and catch handlers use it to bind their variables.
func (l *funcLowerer) lowerBlockWith(ctx context, b *ast.Block, merged bool, prelude func(context) error) error {
	if b != nil && b.Scope != nil && b.Scope.Capturable {
		if merged {
			for _, sym := range b.Scope.Locals {
				l.declareVar(sym)
			}
		} else {
			var err error
			if ctx, err = l.createEnv(ctx, nil, b.Scope.Locals, false); err != nil {
				return err
			}
		}
	}
	if prelude != nil {
		if err := prelude(ctx); err != nil {
			return err
		}
	}
	if b == nil {
		return nil
	}
	for i := range b.Stmts {
		if err := l.lowerStmt(ctx, &b.Stmts[i]); err != nil {
			return err
		}
	}
	return nil
}

func (l *funcLowerer) lowerStmt(ctx context, s *ast.Stmt) error {
	switch d := s.Data.(type) {
	case ast.LetData:
		return l.lowerLet(ctx, d)
	case ast.ExprStmtData:
		if d.Expr == nil {
			return malformed("empty expression statement")
		}
		_, err := l.lowerExpr(ctx, d.Expr)
		return err
	case ast.AssignData:
		return l.lowerAssign(ctx, d.Target, d.Value)
	case ast.ReturnData:
		return l.lowerReturn(ctx, d)
	case ast.JumpData:
		return l.lowerJump(ctx, s.Kind == ast.StmtContinue, d.Level)
	case ast.IfData:
		return l.lowerIf(ctx, d)
	case ast.LoopData:
		switch s.Kind {
		case ast.StmtWhile:
			return l.lowerWhile(ctx, d)
		case ast.StmtDoWhile:
			return l.lowerDoWhile(ctx, d, false)
		case ast.StmtRepeat:
			return l.lowerDoWhile(ctx, d, true)
		}
	case ast.ForData:
		return l.lowerFor(ctx, d)
	case ast.ForEachData:
		return l.lowerForEach(ctx, d)
	case ast.SwitchData:
		return l.lowerSwitch(ctx, d)
	case ast.BlockData:
		return l.lowerBlock(ctx, d.Block)
	case ast.TryData:
		return l.lowerTry(ctx, d)
	case ast.ThrowData:
		return l.lowerThrow(ctx, d)
	case ast.LockData:
		return l.lowerLock(ctx, d)
	case ast.UsingData:
		return l.lowerUsing(ctx, d)
	case ast.FixedData:
		return l.lowerFixed(ctx, d)
	case ast.AcquireData:
		return l.lowerAcquire(ctx, d)
	case ast.YieldData:
		return l.lowerYield(ctx, d)
	case ast.YieldBreakData:
		return l.lowerYieldBreak(ctx)
	case ast.LabelData:
		if s.Kind == ast.StmtGoto {
			return l.lowerGoto(ctx, d.Label)
		}
		return l.placeLabel(ctx, d.Label)
	case ast.AssertData:
		return l.lowerAssert(ctx, d)
	}
	return malformed("unsupported statement %s", s.Kind)
}

func (l *funcLowerer) lowerLet(ctx context, d ast.LetData) error {
	info := l.symbol(d.Sym)
	if d.Value == nil {
		l.assignOp(l.declareVar(d.Sym), defaultConst(info.Type))
		return nil
	}
	v, err := l.lowerExpr(ctx, d.Value)
	if err != nil {
		return err
	}
	v = l.coerce(v, info.Type)
	l.assignOp(l.declareVar(d.Sym), v)
	return nil
}

// lowerAssign stores value into target. Indexer targets become set_Item
// calls; everything else goes through lowerPlace, pinned against side
// effects of the value.
func (l *funcLowerer) lowerAssign(ctx context, target, value *ast.Expr) error {
	if target == nil || value == nil {
		return malformed("incomplete assignment")
	}
	if target.Kind == ast.ExprIndex && l.isIndexer(target) {
		d := target.Data.(ast.IndexData)
		recv, err := l.lowerReceiver(ctx, d.Object, true)
		if err != nil {
			return err
		}
		idx, err := l.lowerExpr(ctx, d.Index)
		if err != nil {
			return err
		}
		m, owner, _ := l.types.LookupMethod(d.Object.Type, "set_Item")
		if hasEffects(value) {
			idx = l.stabilize(idx)
		}
		v, err := l.lowerExpr(ctx, value)
		if err != nil {
			return err
		}
		args := []lir.Operand{l.coerceParam(idx, m.Params, 0), l.coerceParam(v, m.Params, 1)}
		l.callMethod(l.b.Void, owner, "set_Item", !l.types.IsValueType(d.Object.Type), &recv, args...)
		return nil
	}
	dst, err := l.lowerPlace(ctx, target, hasEffects(value))
	if err != nil {
		return err
	}
	v, err := l.lowerExpr(ctx, value)
	if err != nil {
		return err
	}
	l.assignOp(dst, l.coerce(v, target.Type))
	return nil
}

func (l *funcLowerer) lowerReturn(ctx context, d ast.ReturnData) error {
	if l.iter != nil {
		return malformed("return inside an iterator body")
	}
	if l.ret == nil {
		return internalErr("return outside a procedure body")
	}
	switch {
	case d.Value != nil && !l.ret.hasResult:
		return malformed("value returned from a void procedure")
	case d.Value == nil && l.ret.hasResult:
		return malformed("missing return value")
	}
	if d.Value != nil {
		v, err := l.lowerExpr(ctx, d.Value)
		if err != nil {
			return err
		}
		l.assignOp(l.ret.result, l.coerce(v, l.f.Locals[l.ret.result.Local].Type))
	}
	flags, err := ctx.returnFlags()
	if err != nil {
		return err
	}
	l.gotoBlock(l.ret.exit, flags)
	return nil
}

func (l *funcLowerer) lowerJump(ctx context, cont bool, level int) error {
	if level < 0 {
		return malformed("negative jump level")
	}
	target, flags, err := ctx.jumpTarget(cont, level)
	if err != nil {
		return err
	}
	l.gotoBlock(target, flags)
	return nil
}

func (l *funcLowerer) lowerIf(ctx context, d ast.IfData) error {
	if d.Cond == nil {
		return malformed("if without a condition")
	}
	join := l.newBlock()
	if d.Else.IsEmpty() {
		if err := l.branchOn(ctx, d.Cond, false, join); err != nil {
			return err
		}
		if err := l.lowerBlock(ctx, d.Then); err != nil {
			return err
		}
		l.gotoBlock(join, 0)
		l.startBlock(join)
		return nil
	}
	els := l.newBlock()
	if err := l.branchOn(ctx, d.Cond, false, els); err != nil {
		return err
	}
	if err := l.lowerBlock(ctx, d.Then); err != nil {
		return err
	}
	l.gotoBlock(join, 0)
	l.startBlock(els)
	if err := l.lowerBlock(ctx, d.Else); err != nil {
		return err
	}
	l.gotoBlock(join, 0)
	l.startBlock(join)
	return nil
}

func (l *funcLowerer) lowerThrow(ctx context, d ast.ThrowData) error {
	if d.Value == nil {
		if !ctx.inCatch() {
			return malformed("rethrow outside a catch handler")
		}
		l.setTerm(&lir.Terminator{Kind: lir.TermRethrow})
		return nil
	}
	v, err := l.lowerExpr(ctx, d.Value)
	if err != nil {
		return err
	}
	if !l.types.IsReference(v.Type) {
		return malformed("throw of non-reference %s", l.types.TypeString(v.Type))
	}
	l.setTerm(&lir.Terminator{Kind: lir.TermThrow, Throw: lir.ThrowTerm{Value: v}})
	return nil
}

func (l *funcLowerer) lowerAssert(ctx context, d ast.AssertData) error {
	if d.Clause.Cond == nil {
		return malformed("assertion without a condition")
	}
	if d.Assume {
		return l.emitAssume(ctx, d.Clause.Cond, d.Clause.Text)
	}
	msg := assertMessage("Assertion", d.Clause.Text)
	return l.checkClause(ctx, d.Clause.Cond, func(context) error {
		l.throwNew(l.wk.Assert, msg)
		return nil
	})
}

// emitAssume records cond for verification tools without a runtime check.
func (l *funcLowerer) emitAssume(ctx context, cond *ast.Expr, text string) error {
	v, err := l.lowerExpr(ctx, cond)
	if err != nil {
		return err
	}
	l.emit(&lir.Instr{Kind: lir.InstrAssume, Assume: lir.AssumeInstr{Cond: v, Text: text}})
	return nil
}

func defaultConst(ty types.TypeID) lir.Operand {
	return lir.Operand{Kind: lir.OperandConst, Type: ty, Const: lir.Const{Kind: lir.ConstDefault, Type: ty}}
}
