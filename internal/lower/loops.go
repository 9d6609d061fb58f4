package lower

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
)

func (l *funcLowerer) lowerWhile(ctx context, d ast.LoopData) error {
	if d.Cond == nil {
		return malformed("while without a condition")
	}
	head, exit := l.newBlock(), l.newBlock()
	l.gotoBlock(head, 0)
	l.startBlock(head)
	if err := l.checkLoopInvariants(ctx, d.Invariants); err != nil {
		return err
	}
	if err := l.branchOn(ctx, d.Cond, false, exit); err != nil {
		return err
	}
	if err := l.lowerBlock(ctx.pushLoop(exit, head), d.Body); err != nil {
		return err
	}
	l.gotoBlock(head, 0)
	l.startBlock(exit)
	return nil
}

// lowerDoWhile lowers do-while and, with until set, repeat-until: the body
// runs first and the test decides whether to go round again.
func (l *funcLowerer) lowerDoWhile(ctx context, d ast.LoopData, until bool) error {
	if d.Cond == nil {
		return malformed("loop without a condition")
	}
	body, cont, exit := l.newBlock(), l.newBlock(), l.newBlock()
	l.gotoBlock(body, 0)
	l.startBlock(body)
	if err := l.checkLoopInvariants(ctx, d.Invariants); err != nil {
		return err
	}
	if err := l.lowerBlock(ctx.pushLoop(exit, cont), d.Body); err != nil {
		return err
	}
	l.gotoBlock(cont, 0)
	l.startBlock(cont)
	if err := l.branchOn(ctx, d.Cond, !until, body); err != nil {
		return err
	}
	l.gotoBlock(exit, 0)
	l.startBlock(exit)
	return nil
}

func (l *funcLowerer) lowerFor(ctx context, d ast.ForData) error {
	for i := range d.Init {
		if err := l.lowerStmt(ctx, &d.Init[i]); err != nil {
			return err
		}
	}
	head, cont, exit := l.newBlock(), l.newBlock(), l.newBlock()
	l.gotoBlock(head, 0)
	l.startBlock(head)
	if err := l.checkLoopInvariants(ctx, d.Invariants); err != nil {
		return err
	}
	if d.Cond != nil {
		if err := l.branchOn(ctx, d.Cond, false, exit); err != nil {
			return err
		}
	}
	if err := l.lowerBlock(ctx.pushLoop(exit, cont), d.Body); err != nil {
		return err
	}
	l.gotoBlock(cont, 0)
	l.startBlock(cont)
	for i := range d.Post {
		if err := l.lowerStmt(ctx, &d.Post[i]); err != nil {
			return err
		}
	}
	l.gotoBlock(head, 0)
	l.startBlock(exit)
	return nil
}

func (l *funcLowerer) checkLoopInvariants(ctx context, clauses []ast.Clause) error {
	for _, c := range clauses {
		if c.Cond == nil {
			return malformed("loop invariant without a condition")
		}
		msg := assertMessage("Loop invariant", c.Text)
		if err := l.checkClause(ctx, c.Cond, func(context) error {
			l.throwNew(l.wk.Assert, msg)
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

// countingLoop runs body for i in [lo, hi). It is shared by range sources
// and old-value deep copies.
func (l *funcLowerer) countingLoop(ctx context, lo, hi lir.Operand, body func(ctx context, i lir.Place) error) error {
	i := l.newTemp(l.b.Int, "i")
	l.assignOp(i, lo)
	n := l.spill(hi, "n")
	head, cont, exit := l.newBlock(), l.newBlock(), l.newBlock()
	l.gotoBlock(head, 0)
	l.startBlock(head)
	l.branchTo(lir.Condition{Kind: lir.CondCompare, Op: ast.BinGe, Left: lir.Copy(i, l.b.Int), Right: lir.Copy(n, l.b.Int)}, exit, 0)
	if err := body(ctx.pushLoop(exit, cont), i); err != nil {
		return err
	}
	l.gotoBlock(cont, 0)
	l.startBlock(cont)
	l.increment(i)
	l.gotoBlock(head, 0)
	l.startBlock(exit)
	return nil
}
