package lower

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

const (
	stateField   = "state$"
	currentField = "current$"

	stateDone = -1
)

// iterState tracks a MoveNext body while it is being lowered.
type iterState struct {
	sm   *envInfo
	elem types.TypeID
	// resume lists the re-entry blocks; resume[0] starts the body.
	resume []lir.BlockID
	// suspended[k] is the innermost try/finally enclosing yield k, nil when
	// the yield is outside every try/finally. Index 0 is unused.
	suspended []*disposeRecord
	done      lir.BlockID
}

// disposeRecord is one try/finally enclosing a point of a generator body.
// emit replays the finally code; the places it closes over are fields of
// the state machine, so it is valid in Dispose as well.
type disposeRecord struct {
	parent *disposeRecord
	env    *envInfo
	emit   func(*funcLowerer, context) error
}

// lowerGeneratorStub replaces a generator body with the construction of
// its state machine. MoveNext, Dispose and the enumerator accessors are
// synthesized on the new type.
func (l *funcLowerer) lowerGeneratorStub(ctx context, fn *ast.Func) error {
	k := l.types.Kind(fn.Result)
	if k != types.KindEnumerable && k != types.KindEnumerator {
		return malformed("%s: generator must return a sequence, not %s", fn.Name, l.types.TypeString(fn.Result))
	}
	elem := l.types.Elem(fn.Result)
	typ, name := l.types.RegisterUniqueClass(l.base+"$iter", types.KindClass, types.ClassSynthesized|types.ClassSealed|types.ClassDisposable)
	l.types.AddInterface(typ, l.wk.Disposable)
	sm := &envInfo{name: name, typ: typ, parent: l.selfEnv}
	sm.def = &lir.TypeDef{Name: name, Type: typ, Synthesized: true}
	l.proc.Types = append(l.proc.Types, sm.def)

	l.types.AddField(typ, types.Field{Name: stateField, Type: l.b.Int})
	l.types.AddField(typ, types.Field{Name: currentField, Type: elem})
	if sm.parent != nil {
		l.types.AddField(typ, types.Field{Name: outerField, Type: sm.parent.typ})
	}
	if !fn.IsStatic() && l.ownsThis {
		sm.thisField, sm.thisType = thisField, l.f.Locals[l.thisLocal].Type
		l.types.AddField(typ, types.Field{Name: thisField, Type: sm.thisType})
	}
	paramFields := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		paramFields[i] = l.types.AddUniqueField(typ, p.Name, p.Type)
	}

	ctor, err := l.buildEnvCtor(sm, nil)
	if err != nil {
		return err
	}
	sm.def.Methods = append(sm.def.Methods, ctor)
	l.types.AddMethod(typ, types.Method{Name: ".ctor", Result: l.b.Void})

	// The stub: construct, initialize, return.
	obj := l.newObject(typ, "iter")
	at := func(field string) lir.Place { return obj.Place.WithField(typ, field) }
	l.assignOp(at(stateField), l.intConst(0))
	if sm.parent != nil {
		l.assignOp(at(outerField), lir.Copy(l.envPlace(sm.parent), sm.parent.typ))
	}
	if sm.thisField != "" {
		l.assignOp(at(thisField), lir.Copy(lir.LocalPlace(l.thisLocal), sm.thisType))
	}
	for i, p := range fn.Params {
		place, ty, err := l.varPlace(p.Sym)
		if err != nil {
			return err
		}
		l.assignOp(at(paramFields[i]), lir.Copy(place, ty))
	}
	res := l.coerce(obj, fn.Result)
	l.returnValue(&res)

	enumTy := l.types.Intern(types.MakeEnumerator(elem))
	methods := []types.Method{
		{Name: "MoveNext", Result: l.b.Bool, Virtual: true},
		{Name: "get_Current", Result: elem, Virtual: true},
		{Name: "get_Current$object", Result: l.b.Object, Virtual: true},
		{Name: "Reset", Result: l.b.Void, Virtual: true},
		{Name: "Dispose", Result: l.b.Void, Virtual: true},
		{Name: "GetEnumerator", Result: enumTy, Virtual: true},
	}
	for _, m := range methods {
		l.types.AddMethod(typ, m)
	}

	st := &iterState{sm: sm, elem: elem}
	move, m, err := l.buildMoveNext(fn, sm, st, paramFields)
	if err != nil {
		return err
	}
	dispose, err := m.buildDispose(sm, st)
	if err != nil {
		return err
	}
	current, err := l.buildAccessor(sm, "get_Current", elem, func(c *funcLowerer, self lir.Operand) lir.Operand {
		return lir.Copy(self.Place.WithField(typ, currentField), elem)
	})
	if err != nil {
		return err
	}
	boxed, err := l.buildAccessor(sm, "get_Current$object", l.b.Object, func(c *funcLowerer, self lir.Operand) lir.Operand {
		return c.coerce(lir.Copy(self.Place.WithField(typ, currentField), elem), c.b.Object)
	})
	if err != nil {
		return err
	}
	reset, err := l.buildAccessor(sm, "Reset", l.b.Void, nil)
	if err != nil {
		return err
	}
	getEnum, err := l.buildAccessor(sm, "GetEnumerator", enumTy, func(c *funcLowerer, self lir.Operand) lir.Operand {
		clone := c.callIntrinsic(lir.IntrinsicMemberwiseClone, c.b.Object, self)
		return c.coerce(c.coerce(clone, typ), enumTy)
	})
	if err != nil {
		return err
	}
	sm.def.Methods = append(sm.def.Methods, move, current, boxed, dispose, reset, getEnum)
	return nil
}

// buildMoveNext lowers the generator body as the state machine's MoveNext:
//
//	entry: switch state$ [resume...] default done
//	resume0: state$ = -1; body...; goto done
//	resumeK: state$ = -1; ...
//	done: state$ = -1; return false
func (l *funcLowerer) buildMoveNext(fn *ast.Func, sm *envInfo, st *iterState, paramFields []string) (*lir.Func, *funcLowerer, error) {
	m := l.fork(sm.typ)
	m.selfEnv = sm
	m.hoist = sm
	m.iter = st
	m.base = sm.name
	m.begin("MoveNext", lir.FuncIterator, false, l.b.Bool, fn.Span)
	m.addThis(sm.typ)
	for i, p := range fn.Params {
		if p.Sym.IsValid() {
			m.homes[p.Sym] = home{env: sm, field: paramFields[i], ty: p.Type}
		}
	}
	dispatch := m.cur
	self := lir.LocalPlace(m.thisLocal)
	state := self.WithField(sm.typ, stateField)
	st.done = m.newBlock()
	st.suspended = []*disposeRecord{nil}

	start := m.newBlock()
	st.resume = []lir.BlockID{start}
	m.startBlock(start)
	m.assignOp(state, m.intConst(stateDone))
	ctx := context{}.withEnv(sm)
	if err := m.lowerBlockWith(ctx, fn.Body, true, nil); err != nil {
		return nil, nil, err
	}
	m.gotoBlock(st.done, 0)

	m.startBlock(st.done)
	m.assignOp(state, m.intConst(stateDone))
	no := m.boolConst(false)
	m.returnValue(&no)

	m.f.Blocks[dispatch].Term = lir.Terminator{Kind: lir.TermSwitch, Switch: lir.SwitchTerm{
		Value:   lir.Copy(state, l.b.Int),
		Targets: st.resume,
		Default: st.done,
	}}
	f, err := m.finish()
	return f, m, err
}

// lowerYield stores the value, records the resume point and suspends.
func (l *funcLowerer) lowerYield(ctx context, d ast.YieldData) error {
	if l.iter == nil {
		return malformed("yield outside an iterator body")
	}
	if err := yieldAllowed(ctx); err != nil {
		return err
	}
	if d.Value == nil {
		return malformed("yield without a value")
	}
	v, err := l.lowerExpr(ctx, d.Value)
	if err != nil {
		return err
	}
	st := l.iter
	self := lir.LocalPlace(l.thisLocal)
	l.assignOp(self.WithField(st.sm.typ, currentField), l.coerce(v, st.elem))
	next := len(st.resume)
	l.assignOp(self.WithField(st.sm.typ, stateField), l.intConst(int64(next)))
	t := l.boolConst(true)
	l.returnValue(&t)

	cont := l.newBlock()
	st.resume = append(st.resume, cont)
	st.suspended = append(st.suspended, ctx.dispose)
	l.startBlock(cont)
	l.assignOp(self.WithField(st.sm.typ, stateField), l.intConst(stateDone))
	return nil
}

// yieldAllowed rejects suspension inside a handler body or a try region
// with catch clauses.
func yieldAllowed(ctx context) error {
	for f := ctx.frames; f != nil; f = f.parent {
		switch f.kind {
		case frameCatch, frameFinally:
			return internalErr("yield inside a catch or finally handler")
		case frameTry:
			if f.catches {
				return malformed("yield inside a try block with catch clauses")
			}
		}
	}
	return nil
}

// lowerYieldBreak finishes the sequence; enclosing finally bodies run on
// the way out.
func (l *funcLowerer) lowerYieldBreak(ctx context) error {
	if l.iter == nil {
		return malformed("yield break outside an iterator body")
	}
	if err := yieldAllowed(ctx); err != nil {
		return err
	}
	flags, err := ctx.returnFlags()
	if err != nil {
		return err
	}
	l.gotoBlock(l.iter.done, flags)
	return nil
}

// buildDispose runs the finally bodies enclosing the suspended yield,
// innermost first, then marks the machine finished. l is the MoveNext
// lowerer, so the fork sees every variable the finally bodies use.
func (l *funcLowerer) buildDispose(sm *envInfo, st *iterState) (*lir.Func, error) {
	d := l.fork(sm.typ)
	d.selfEnv = sm
	d.base = sm.name
	d.begin("Dispose", lir.FuncIterator, false, l.b.Void, l.srcSpan())
	d.addThis(sm.typ)
	state := lir.LocalPlace(d.thisLocal).WithField(sm.typ, stateField)
	saved := d.newTemp(l.b.Int, "state")
	d.assignOp(saved, lir.Copy(state, l.b.Int))
	d.assignOp(state, d.intConst(stateDone))
	dispatch := d.cur
	done := d.newBlock()

	blocks := make(map[*disposeRecord]lir.BlockID)
	var chain func(r *disposeRecord) (lir.BlockID, error)
	chain = func(r *disposeRecord) (lir.BlockID, error) {
		if r == nil {
			return done, nil
		}
		if b, ok := blocks[r]; ok {
			return b, nil
		}
		next, err := chain(r.parent)
		if err != nil {
			return lir.NoBlockID, err
		}
		b := d.newBlock()
		blocks[r] = b
		d.startBlock(b)
		if err := r.emit(d, context{}.withEnv(r.env).pushHandler(frameFinally)); err != nil {
			return lir.NoBlockID, err
		}
		d.gotoBlock(next, 0)
		return b, nil
	}
	targets := make([]lir.BlockID, len(st.suspended))
	for i, r := range st.suspended {
		b, err := chain(r)
		if err != nil {
			return nil, err
		}
		targets[i] = b
	}
	targets[0] = done
	d.f.Blocks[dispatch].Term = lir.Terminator{Kind: lir.TermSwitch, Switch: lir.SwitchTerm{
		Value:   lir.Copy(saved, l.b.Int),
		Targets: targets,
		Default: done,
	}}
	d.startBlock(done)
	d.returnValue(nil)
	return d.finish()
}

// buildAccessor synthesizes a small instance method of the state machine.
// A nil body yields an empty void method.
func (l *funcLowerer) buildAccessor(sm *envInfo, name string, result types.TypeID, body func(c *funcLowerer, self lir.Operand) lir.Operand) (*lir.Func, error) {
	c := l.fork(sm.typ)
	c.begin(name, lir.FuncIterator, false, result, l.srcSpan())
	c.addThis(sm.typ)
	if body == nil {
		c.returnValue(nil)
		return c.finish()
	}
	v := body(c, lir.Copy(lir.LocalPlace(c.thisLocal), sm.typ))
	c.returnValue(&v)
	return c.finish()
}
