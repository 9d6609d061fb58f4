package lower

import (
	"strconv"
	"strings"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/query"
	"github.com/hesam/SketchSharp-sub001/internal/source"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// nameSeq numbers synthesized declarations of one source procedure. Every
// lowerer forked from the procedure shares it.
type nameSeq struct{ n int }

func (s *nameSeq) next() string {
	s.n++
	return strconv.Itoa(s.n)
}

type returnCtx struct {
	exit      lir.BlockID
	hasResult bool
	result    lir.Place
}

// funcLowerer builds one lir.Func. Synthesized functions (lambdas, state
// machine methods, environment constructors) get their own forked lowerer.
type funcLowerer struct {
	s     *Session
	types *types.Interner
	b     types.Builtins
	wk    types.WellKnown
	proc  *Proc
	names *nameSeq
	owner types.TypeID
	// base prefixes the names of synthesized types.
	base string
	src  *ast.Func

	f      *lir.Func
	cur    lir.BlockID
	layout []lir.BlockID

	thisLocal lir.LocalID
	// ownsThis is set when local 0 is the source receiver rather than an
	// environment or state machine.
	ownsThis bool
	selfEnv  *envInfo
	homes    map[symbols.SymbolID]home
	// hoist is the state machine whose fields replace locals and temporaries.
	hoist *envInfo
	iter  *iterState

	ret      *returnCtx
	labels   map[symbols.SymbolID]*labelInfo
	gotos    []pendingGoto
	olds     map[*ast.Expr]lir.Place
	// plans caches rewritten comprehensions and quantifiers; forks share it.
	plans    map[*ast.Expr]*query.Plan
	nextTemp int
}

func newFuncLowerer(s *Session, p *Proc, owner types.TypeID, names *nameSeq) *funcLowerer {
	return &funcLowerer{
		s:         s,
		types:     s.Types,
		b:         s.Types.Builtins(),
		wk:        s.Types.WellKnown(),
		proc:      p,
		names:     names,
		owner:     owner,
		thisLocal: lir.NoLocalID,
		homes:     make(map[symbols.SymbolID]home),
		labels:    make(map[symbols.SymbolID]*labelInfo),
		olds:      make(map[*ast.Expr]lir.Place),
		plans:     make(map[*ast.Expr]*query.Plan),
		nextTemp:  1,
	}
}

// fork returns a lowerer for a synthesized function owned by owner. It
// inherits the variable homes that live in closure environments.
func (l *funcLowerer) fork(owner types.TypeID) *funcLowerer {
	child := newFuncLowerer(l.s, l.proc, owner, l.names)
	child.base = l.base
	child.src = l.src
	child.plans = l.plans
	for sym, h := range l.homes {
		if h.env != nil {
			child.homes[sym] = h
		}
	}
	return child
}

func (l *funcLowerer) begin(name string, kind lir.FuncKind, static bool, result types.TypeID, span source.Span) {
	l.f = &lir.Func{
		Name:        name,
		Owner:       l.owner,
		Kind:        kind,
		Static:      static,
		Synthesized: kind != lir.FuncMethod && kind != lir.FuncCtor,
		Result:      result,
		Span:        span,
	}
	entry := l.newBlock()
	l.f.Entry = entry
	l.startBlock(entry)
}

func (l *funcLowerer) addThis(ty types.TypeID) {
	l.thisLocal = l.addLocal("this", ty, lir.LocalFlagThis, symbols.NoSymbolID)
	l.f.NumParams++
}

func (l *funcLowerer) addParam(name string, ty types.TypeID, sym symbols.SymbolID) lir.LocalID {
	id := l.addLocal(name, ty, lir.LocalFlagParam, sym)
	l.f.NumParams++
	if sym.IsValid() {
		l.homes[sym] = home{place: lir.LocalPlace(id), ty: ty}
	}
	return id
}

// finish resolves gotos, lays the blocks out in placement order and drops
// unreachable code.
func (l *funcLowerer) finish() (*lir.Func, error) {
	if err := l.resolveGotos(); err != nil {
		return nil, err
	}
	for i := range l.f.Blocks {
		if l.f.Blocks[i].Term.Kind == lir.TermNone {
			l.f.Blocks[i].Term.Kind = lir.TermUnreachable
		}
	}
	lir.Reorder(l.f, l.layout)
	lir.Compact(l.f)
	return l.f, nil
}

func (l *funcLowerer) className(id types.TypeID) string {
	if info, ok := l.types.ClassInfo(id); ok {
		return info.Name
	}
	return l.types.TypeString(id)
}

func procName(name string) string {
	return strings.TrimPrefix(name, ".")
}

// lowerMethod lowers a declared method or constructor.
func (l *funcLowerer) lowerMethod(fn *ast.Func) (*lir.Func, error) {
	l.src = fn
	l.base = l.className(fn.Owner) + "$" + procName(fn.Name)
	kind := lir.FuncMethod
	if fn.IsCtor() {
		kind = lir.FuncCtor
	}
	l.begin(fn.Name, kind, fn.IsStatic(), fn.Result, fn.Span)
	l.f.Virtual = fn.Flags&ast.FuncVirtual != 0
	if !fn.IsStatic() {
		l.addThis(fn.Owner)
		l.ownsThis = true
	}
	for _, p := range fn.Params {
		l.addParam(p.Name, p.Type, p.Sym)
	}
	if err := l.lowerBody(context{}, fn); err != nil {
		return nil, err
	}
	return l.finish()
}

// lowerBody lowers fn's body into the function begun on l: preconditions,
// environment setup, the statements, and the single normal-return join
// where postconditions run.
func (l *funcLowerer) lowerBody(ctx context, fn *ast.Func) error {
	ctx = ctx.withEnv(l.selfEnv)
	if fn.IsGenerator() {
		if fn.Contract != nil && (len(fn.Contract.Ensures) > 0 || len(fn.Contract.Throws) > 0) {
			return malformed("%s: postconditions on an iterator", fn.Name)
		}
		if err := l.lowerPreconditions(ctx, fn); err != nil {
			return err
		}
		return l.lowerGeneratorStub(ctx, fn)
	}

	ret := &returnCtx{exit: l.newBlock()}
	if !l.isVoid(fn.Result) {
		ret.hasResult = true
		ret.result = lir.LocalPlace(l.addLocal("result", fn.Result, lir.LocalFlagResult, symbols.NoSymbolID))
	}
	l.ret = ret

	if fn.BaseCall != nil {
		if fn.BaseCall.Kind != ast.ExprCall {
			return malformed("%s: chained constructor call is not a call", fn.Name)
		}
		if _, err := l.lowerExpr(ctx, fn.BaseCall); err != nil {
			return err
		}
	}
	ctx, err := l.enterFunctionEnv(ctx, fn)
	if err != nil {
		return err
	}
	if err := l.lowerPreconditions(ctx, fn); err != nil {
		return err
	}
	if err := l.snapshotOlds(ctx, fn); err != nil {
		return err
	}

	body := func(ctx context) error {
		if err := l.lowerBlockWith(ctx, fn.Body, true, nil); err != nil {
			return err
		}
		if l.terminated() {
			return nil
		}
		if ret.hasResult {
			l.setTerm(&lir.Terminator{Kind: lir.TermUnreachable})
			return nil
		}
		flags, err := ctx.returnFlags()
		if err != nil {
			return err
		}
		l.gotoBlock(ret.exit, flags)
		return nil
	}
	if fn.Contract != nil && len(fn.Contract.Throws) > 0 {
		err = l.lowerThrowsClauses(ctx, fn, body)
	} else {
		err = body(ctx)
	}
	if err != nil {
		return err
	}
	l.setTerm(&lir.Terminator{Kind: lir.TermUnreachable})

	l.startBlock(ret.exit)
	if err := l.lowerPostconditions(ctx, fn); err != nil {
		return err
	}
	if fn.IsCtor() && fn.IsPublic() && l.s.Opts.CheckInvariantsInCtors && l.s.hasInv[fn.Owner] {
		this := lir.Copy(lir.LocalPlace(l.thisLocal), fn.Owner)
		l.callMethod(l.b.Bool, fn.Owner, CheckInvariantName, false, &this, l.boolConst(true))
	}
	if ret.hasResult {
		v := lir.Copy(ret.result, fn.Result)
		l.returnValue(&v)
	} else {
		l.returnValue(nil)
	}
	return nil
}
