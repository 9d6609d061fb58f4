package lower

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/source"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

const (
	outerField = "outer$"
	thisField  = "this$"
)

// envInfo describes a synthesized closure environment, or the state
// machine of a generator, which plays the same role for its body.
type envInfo struct {
	name   string
	typ    types.TypeID
	def    *lir.TypeDef
	parent *envInfo

	// owner holds the environment in the local holder.
	owner  *funcLowerer
	holder lir.Place
	// holderIn/holderField locate the reference when it is itself a field
	// of another environment (environments created inside a state machine).
	holderIn    *envInfo
	holderField string

	thisField string
	thisType  types.TypeID
}

type envInit struct {
	field string
	ty    types.TypeID
	value lir.Operand
}

// enterFunctionEnv creates the procedure-level environment. It holds the
// captured parameters, the receiver when a nested function uses it, and the
// locals of the outermost body block when that block is capturable.
func (l *funcLowerer) enterFunctionEnv(ctx context, fn *ast.Func) (context, error) {
	withThis := fn.CapturesThis() && l.ownsThis
	paramsCap := fn.Scope != nil && fn.Scope.Capturable
	bodyCap := fn.Body != nil && fn.Body.Scope != nil && fn.Body.Scope.Capturable
	if !withThis && !paramsCap && !bodyCap {
		return ctx, nil
	}
	var params []ast.Param
	if paramsCap {
		params = fn.Params
	}
	var locals []symbols.SymbolID
	if bodyCap {
		locals = fn.Body.Scope.Locals
	}
	return l.createEnv(ctx, params, locals, withThis)
}

// createEnv allocates a new environment nested in ctx.env and rehomes the
// given parameters and locals into it.
func (l *funcLowerer) createEnv(ctx context, params []ast.Param, locals []symbols.SymbolID, withThis bool) (context, error) {
	typ, name := l.types.RegisterUniqueClass(l.base+"$env", types.KindClass, types.ClassSynthesized|types.ClassSealed)
	env := &envInfo{name: name, typ: typ, parent: ctx.env}
	env.def = &lir.TypeDef{Name: name, Type: typ, Synthesized: true}
	l.proc.Types = append(l.proc.Types, env.def)

	var inits []envInit
	if env.parent != nil {
		l.types.AddField(typ, types.Field{Name: outerField, Type: env.parent.typ})
		inits = append(inits, envInit{outerField, env.parent.typ, lir.Copy(l.envPlace(env.parent), env.parent.typ)})
	}
	if withThis {
		ty := l.f.Locals[l.thisLocal].Type
		l.types.AddField(typ, types.Field{Name: thisField, Type: ty})
		inits = append(inits, envInit{thisField, ty, lir.Copy(lir.LocalPlace(l.thisLocal), ty)})
		env.thisField = thisField
		env.thisType = ty
	}
	rehome := make(map[symbols.SymbolID]home, len(params)+len(locals))
	for _, p := range params {
		place, ty, err := l.varPlace(p.Sym)
		if err != nil {
			return ctx, err
		}
		field := l.types.AddUniqueField(typ, p.Name, ty)
		inits = append(inits, envInit{field, ty, lir.Copy(place, ty)})
		rehome[p.Sym] = home{env: env, field: field, ty: ty}
	}
	for _, sym := range locals {
		info := l.symbol(sym)
		field := l.types.AddUniqueField(typ, info.Name, info.Type)
		rehome[sym] = home{env: env, field: field, ty: info.Type}
	}

	ctor, err := l.buildEnvCtor(env, inits)
	if err != nil {
		return ctx, err
	}
	env.def.Methods = append(env.def.Methods, ctor)
	sig := types.Method{Name: ".ctor", Result: l.b.Void}
	args := make([]lir.Operand, 0, len(inits))
	for _, in := range inits {
		sig.Params = append(sig.Params, in.ty)
		args = append(args, in.value)
	}
	l.types.AddMethod(typ, sig)

	if l.hoist != nil {
		env.holderIn = l.hoist
		env.holderField = l.types.AddUniqueField(l.hoist.typ, "env$", typ)
	} else {
		env.owner = l
		env.holder = lir.LocalPlace(l.addLocal("env$"+l.names.next(), typ, lir.LocalFlagTemp, symbols.NoSymbolID))
	}
	l.emit(&lir.Instr{Kind: lir.InstrNew, New: lir.NewInstr{Dst: l.envPlace(env), Class: typ, Args: args}})
	for sym, h := range rehome {
		l.homes[sym] = h
	}
	return ctx.withEnv(env), nil
}

// buildEnvCtor synthesizes the constructor storing each initial value.
func (l *funcLowerer) buildEnvCtor(env *envInfo, inits []envInit) (*lir.Func, error) {
	c := l.fork(env.typ)
	c.begin(".ctor", lir.FuncEnvCtor, false, l.b.Void, l.srcSpan())
	c.addThis(env.typ)
	for _, in := range inits {
		id := c.addParam(in.field, in.ty, symbols.NoSymbolID)
		c.assignOp(lir.LocalPlace(c.thisLocal).WithField(env.typ, in.field), lir.Copy(lir.LocalPlace(id), in.ty))
	}
	c.returnValue(nil)
	return c.finish()
}

// lowerLambda converts a nested function into a method of the innermost
// live environment, or a static method of the owner when none is live, and
// yields a delegate over it.
func (l *funcLowerer) lowerLambda(ctx context, e *ast.Expr, fn *ast.Func) (lir.Operand, error) {
	if fn == nil || fn.Body == nil {
		return lir.Operand{}, malformed("lambda without a body")
	}
	env := ctx.env
	seq := l.names.next()
	owner, name := l.owner, procName(l.srcName())+"$lambda$"+seq
	if env != nil {
		owner, name = env.typ, "lambda$"+seq
	}

	child := l.fork(owner)
	child.selfEnv = env
	child.base = l.base + "$lambda" + seq
	child.begin(name, lir.FuncLambda, env == nil, fn.Result, fn.Span)
	if env != nil {
		child.addThis(env.typ)
	}
	sig := types.Method{Name: name, Result: fn.Result, Static: env == nil}
	for _, p := range fn.Params {
		child.addParam(p.Name, p.Type, p.Sym)
		sig.Params = append(sig.Params, p.Type)
	}
	if err := child.lowerBody(context{}, fn); err != nil {
		return lir.Operand{}, err
	}
	f, err := child.finish()
	if err != nil {
		return lir.Operand{}, err
	}
	l.types.AddMethod(owner, sig)
	if env != nil {
		env.def.Methods = append(env.def.Methods, f)
	} else {
		l.proc.Methods = append(l.proc.Methods, f)
	}

	rv := lir.RValue{Kind: lir.RValueDelegate, Delegate: lir.DelegateOp{Type: e.Type, Owner: owner, Method: name}}
	if env != nil {
		rv.Delegate.HasTarget = true
		rv.Delegate.Target = lir.Copy(l.envPlace(env), env.typ)
	}
	return l.rvalueTemp(e.Type, rv, "fn"), nil
}

func (l *funcLowerer) srcName() string {
	if l.src == nil {
		return "anon"
	}
	return l.src.Name
}

func (l *funcLowerer) srcSpan() (sp source.Span) {
	if l.src != nil {
		sp = l.src.Span
	}
	return sp
}
