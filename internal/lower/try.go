package lower

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// catchSpec describes one catch handler built by tryCatch. When hasDst is
// false the exception is popped into a fresh temporary.
type catchSpec struct {
	filter    types.TypeID
	synthetic bool
	hasDst    bool
	dst       lir.Place
	lower     func(ctx context, exc lir.Place) error
}

// tryCatch lays out
//
//	start: body; goto after [leave]
//	h0:    pop_exception; handler; goto after [leave]
//	...
//	after:
//
// and records one handler per catch, all protecting [start, h0).
func (l *funcLowerer) tryCatch(ctx context, body func(context) error, catches []catchSpec) error {
	if len(catches) == 0 {
		return internalErr("try region without handlers")
	}
	after, start := l.newBlock(), l.newBlock()
	l.gotoBlock(start, 0)
	l.startBlock(start)
	if err := body(ctx.pushTry(true)); err != nil {
		return err
	}
	l.gotoBlock(after, lir.BranchLeave)

	hbs := make([]lir.BlockID, len(catches))
	for i := range catches {
		hbs[i] = l.newBlock()
	}
	for i, c := range catches {
		l.startBlock(hbs[i])
		dst := c.dst
		if !c.hasDst {
			dst = l.newTemp(c.filter, "exc")
		}
		l.emit(&lir.Instr{Kind: lir.InstrPopException, PopException: lir.PopExceptionInstr{Dst: dst}})
		if err := c.lower(ctx.pushHandler(frameCatch), dst); err != nil {
			return err
		}
		l.gotoBlock(after, lir.BranchLeave)
	}
	for i, c := range catches {
		end := after
		if i+1 < len(hbs) {
			end = hbs[i+1]
		}
		l.f.Handlers = append(l.f.Handlers, lir.Handler{
			Kind:         lir.HandlerCatch,
			TryStart:     start,
			TryEnd:       hbs[0],
			HandlerStart: hbs[i],
			HandlerEnd:   end,
			Filter:       c.filter,
			Synthetic:    c.synthetic,
		})
	}
	l.startBlock(after)
	return nil
}

// tryFinally protects body with a finally handler whose code fin emits.
// Inside a generator the handler is also recorded for Dispose, which
// replays fin with its own lowerer.
func (l *funcLowerer) tryFinally(ctx context, body func(context) error, fin func(*funcLowerer, context) error) error {
	after, start := l.newBlock(), l.newBlock()
	l.gotoBlock(start, 0)
	l.startBlock(start)
	bctx := ctx.pushTry(false)
	if l.iter != nil {
		bctx.dispose = &disposeRecord{parent: ctx.dispose, env: ctx.env, emit: fin}
	}
	if err := body(bctx); err != nil {
		return err
	}
	l.gotoBlock(after, lir.BranchLeave)

	hb := l.newBlock()
	l.startBlock(hb)
	if err := fin(l, ctx.pushHandler(frameFinally)); err != nil {
		return err
	}
	l.setTerm(&lir.Terminator{Kind: lir.TermEndFinally})
	l.f.Handlers = append(l.f.Handlers, lir.Handler{
		Kind:         lir.HandlerFinally,
		TryStart:     start,
		TryEnd:       hb,
		HandlerStart: hb,
		HandlerEnd:   after,
	})
	l.startBlock(after)
	return nil
}

// lowerTry nests the catch region inside the finally region when both are
// present.
func (l *funcLowerer) lowerTry(ctx context, d ast.TryData) error {
	if d.Body == nil {
		return malformed("try without a body")
	}
	if len(d.Catches) == 0 && d.Finally == nil {
		return l.lowerBlock(ctx, d.Body)
	}
	withCatches := func(ctx context) error {
		if len(d.Catches) == 0 {
			return l.lowerBlock(ctx, d.Body)
		}
		specs := make([]catchSpec, 0, len(d.Catches))
		for i := range d.Catches {
			spec, err := l.catchClause(&d.Catches[i])
			if err != nil {
				return err
			}
			specs = append(specs, spec)
		}
		return l.tryCatch(ctx, func(ctx context) error { return l.lowerBlock(ctx, d.Body) }, specs)
	}
	if d.Finally == nil {
		return withCatches(ctx)
	}
	return l.tryFinally(ctx, withCatches, func(fl *funcLowerer, ctx context) error {
		return fl.lowerBlock(ctx, d.Finally)
	})
}

// catchClause pops straight into the catch variable when it is a plain
// stack local; otherwise the handler copies a temporary into it once the
// handler scope has been entered.
func (l *funcLowerer) catchClause(c *ast.CatchClause) (catchSpec, error) {
	if c.Body == nil {
		return catchSpec{}, malformed("catch without a body")
	}
	filter := c.Type
	if filter == types.NoTypeID {
		filter = l.wk.Exception
	}
	if !l.types.IsSubtype(filter, l.wk.Exception) {
		return catchSpec{}, malformed("catch of non-exception %s", l.types.TypeString(filter))
	}
	spec := catchSpec{filter: filter}
	capturable := c.Body.Scope != nil && c.Body.Scope.Capturable
	plain := c.Var.IsValid() && c.Target == nil && !capturable && l.hoist == nil
	if plain {
		spec.hasDst = true
		spec.dst = l.declareVar(c.Var)
	}
	spec.lower = func(ctx context, exc lir.Place) error {
		return l.lowerBlockWith(ctx, c.Body, false, func(ctx context) error {
			if plain {
				return nil
			}
			v := lir.Copy(exc, filter)
			switch {
			case c.Target != nil:
				dst, err := l.lowerPlace(ctx, c.Target, false)
				if err != nil {
					return err
				}
				l.assignOp(dst, l.coerce(v, c.Target.Type))
			case c.Var.IsValid():
				dst, ty, err := l.varPlace(c.Var)
				if err != nil {
					return err
				}
				l.assignOp(dst, l.coerce(v, ty))
			}
			return nil
		})
	}
	return spec, nil
}
