package lower

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// lowerCall evaluates the receiver, then the arguments left to right. Base
// calls and calls on value-typed receivers bind statically.
func (l *funcLowerer) lowerCall(ctx context, e *ast.Expr, d ast.CallData) (lir.Operand, error) {
	m, owner, ok := l.types.LookupMethod(d.Owner, d.Method)
	if !ok {
		return lir.Operand{}, malformed("%s has no method %s", l.types.TypeString(d.Owner), d.Method)
	}
	var recv *lir.Operand
	virtual := d.Virtual && m.Virtual && !d.Base
	switch {
	case d.Receiver != nil:
		if m.Static {
			return lir.Operand{}, malformed("static method %s called on an instance", d.Method)
		}
		r, err := l.lowerReceiver(ctx, d.Receiver, anyEffects(d.Args))
		if err != nil {
			return lir.Operand{}, err
		}
		if l.types.IsValueType(d.Receiver.Type) {
			virtual = false
		}
		recv = &r
	case !m.Static:
		return lir.Operand{}, malformed("instance method %s called without a receiver", d.Method)
	}
	if len(d.Args) != len(m.Params) {
		return lir.Operand{}, malformed("%s expects %d arguments, got %d", d.Method, len(m.Params), len(d.Args))
	}
	args, err := l.lowerArgs(ctx, d.Args, m.Params)
	if err != nil {
		return lir.Operand{}, err
	}
	v := l.callMethod(m.Result, owner, d.Method, virtual, recv, args...)
	if l.isVoid(m.Result) {
		return v, nil
	}
	return l.coerce(v, e.Type), nil
}

func (l *funcLowerer) lowerInvoke(ctx context, e *ast.Expr, d ast.InvokeData) (lir.Operand, error) {
	info, ok := l.types.DelegateInfo(d.Delegate.Type)
	if !ok {
		return lir.Operand{}, malformed("invoke of non-delegate %s", l.types.TypeString(d.Delegate.Type))
	}
	del, err := l.lowerExpr(ctx, d.Delegate)
	if err != nil {
		return lir.Operand{}, err
	}
	if anyEffects(d.Args) {
		del = l.stabilize(del)
	}
	args, err := l.lowerArgs(ctx, d.Args, info.Params)
	if err != nil {
		return lir.Operand{}, err
	}
	return l.call(info.Result, lir.Callee{Kind: lir.CalleeDelegate, Value: del}, nil, args...), nil
}

func (l *funcLowerer) lowerNew(ctx context, e *ast.Expr, d ast.NewData) (lir.Operand, error) {
	var params []types.TypeID
	if m, _, ok := l.types.LookupMethod(e.Type, ".ctor"); ok {
		params = m.Params
	}
	args, err := l.lowerArgs(ctx, d.Args, params)
	if err != nil {
		return lir.Operand{}, err
	}
	return l.newObject(e.Type, "new", args...), nil
}

// lowerArgs evaluates args left to right. A value is pinned to a temporary
// when a later argument may have side effects.
func (l *funcLowerer) lowerArgs(ctx context, args []*ast.Expr, params []types.TypeID) ([]lir.Operand, error) {
	out := make([]lir.Operand, len(args))
	for i, a := range args {
		v, err := l.lowerExpr(ctx, a)
		if err != nil {
			return nil, err
		}
		if anyEffects(args[i+1:]) {
			v = l.stabilize(v)
		}
		out[i] = l.coerceParam(v, params, i)
	}
	return out, nil
}
