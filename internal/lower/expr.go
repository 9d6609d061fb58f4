package lower

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// lowerExpr evaluates e and returns an operand for its value. Place-like
// expressions come back as a copy of the place without a temporary; callers
// that evaluate further operands with side effects stabilize them first.
func (l *funcLowerer) lowerExpr(ctx context, e *ast.Expr) (lir.Operand, error) {
	if e == nil {
		return lir.Operand{}, malformed("missing expression")
	}
	switch d := e.Data.(type) {
	case ast.LiteralData:
		return literal(e, d), nil
	case ast.LocalData, ast.ThisData, ast.FieldData, ast.DerefData, ast.ResultData, ast.OldData:
		p, err := l.lowerPlace(ctx, e, false)
		if err != nil {
			return lir.Operand{}, err
		}
		return lir.Copy(p, e.Type), nil
	case ast.IndexData:
		if l.isIndexer(e) {
			return l.lowerIndexerGet(ctx, e, d)
		}
		p, err := l.lowerPlace(ctx, e, false)
		if err != nil {
			return lir.Operand{}, err
		}
		return lir.Copy(p, e.Type), nil
	case ast.LengthData:
		obj, err := l.lowerExpr(ctx, d.Object)
		if err != nil {
			return lir.Operand{}, err
		}
		return l.rvalueTemp(l.b.Int, lir.RValue{Kind: lir.RValueLen, Use: obj}, "len"), nil
	case ast.UnaryData:
		return l.lowerUnary(ctx, e, d)
	case ast.BinaryData:
		return l.lowerBinary(ctx, e, d)
	case ast.CondData:
		return l.lowerCondExpr(ctx, e, d)
	case ast.CallData:
		return l.lowerCall(ctx, e, d)
	case ast.InvokeData:
		return l.lowerInvoke(ctx, e, d)
	case ast.NewData:
		return l.lowerNew(ctx, e, d)
	case ast.NewArrayData:
		n, err := l.lowerExpr(ctx, d.Length)
		if err != nil {
			return lir.Operand{}, err
		}
		return l.rvalueTemp(e.Type, lir.RValue{Kind: lir.RValueNewArray, NewArray: lir.NewArrayOp{Elem: d.Elem, Len: l.coerce(n, l.b.Int)}}, "arr"), nil
	case ast.ArrayLitData:
		elems, err := l.lowerArgs(ctx, d.Elems, nil)
		if err != nil {
			return lir.Operand{}, err
		}
		for i := range elems {
			elems[i] = l.coerce(elems[i], d.Elem)
		}
		return l.rvalueTemp(e.Type, lir.RValue{Kind: lir.RValueArrayLit, ArrayLit: lir.ArrayLitOp{Elem: d.Elem, Elems: elems}}, "arr"), nil
	case ast.CastData:
		v, err := l.lowerExpr(ctx, d.Value)
		if err != nil {
			return lir.Operand{}, err
		}
		if v.Kind == lir.OperandConst && v.Const.Kind == lir.ConstNull {
			return lir.NullConst(e.Type), nil
		}
		return l.castValue(d.Kind, v, e.Type), nil
	case ast.TypeTestData:
		v, err := l.lowerExpr(ctx, d.Value)
		if err != nil {
			return lir.Operand{}, err
		}
		if l.types.IsValueType(v.Type) {
			v = l.coerce(v, l.b.Object)
		}
		if e.Kind == ast.ExprIs {
			return l.rvalueTemp(l.b.Bool, lir.RValue{Kind: lir.RValueIsInst, TypeTest: lir.TypeTestOp{Value: v, Target: d.Target}}, "is"), nil
		}
		return l.rvalueTemp(e.Type, lir.RValue{Kind: lir.RValueAsInst, TypeTest: lir.TypeTestOp{Value: v, Target: d.Target}}, "as"), nil
	case ast.HasValueData:
		v, err := l.lowerExpr(ctx, d.Value)
		if err != nil {
			return lir.Operand{}, err
		}
		return l.rvalueTemp(l.b.Bool, lir.RValue{Kind: lir.RValueHasValue, Use: v}, "hv"), nil
	case ast.LambdaData:
		return l.lowerLambda(ctx, e, d.Func)
	case ast.AddrOfData:
		p, err := l.lowerPlace(ctx, d.Value, false)
		if err != nil {
			return lir.Operand{}, err
		}
		return lir.Operand{Kind: lir.OperandAddrOf, Type: e.Type, Place: p}, nil
	case ast.DefaultData:
		return defaultConst(e.Type), nil
	case ast.QuantifierData:
		return l.lowerQuantifier(ctx, e)
	case ast.QueryData:
		return l.lowerQuery(ctx, e)
	case ast.RangeData:
		return lir.Operand{}, malformed("range used outside a foreach or query source")
	}
	return lir.Operand{}, malformed("unsupported expression %s", e.Kind)
}

func literal(e *ast.Expr, d ast.LiteralData) lir.Operand {
	c := lir.Const{Type: e.Type}
	switch d.Kind {
	case ast.LiteralInt:
		c.Kind, c.IntValue = lir.ConstInt, d.IntValue
	case ast.LiteralUint:
		c.Kind, c.UintValue = lir.ConstUint, d.UintValue
	case ast.LiteralFloat:
		c.Kind, c.FloatValue = lir.ConstFloat, d.FloatValue
	case ast.LiteralBool:
		c.Kind, c.BoolValue = lir.ConstBool, d.BoolValue
	case ast.LiteralChar:
		c.Kind, c.StringValue = lir.ConstChar, d.StringValue
	case ast.LiteralString:
		c.Kind, c.StringValue = lir.ConstString, d.StringValue
	default:
		c.Kind = lir.ConstNull
	}
	return lir.Operand{Kind: lir.OperandConst, Type: e.Type, Const: c}
}

// lowerPlace resolves an assignable expression. With stable set, object
// references and indices are copied to temporaries so that evaluating the
// right-hand side cannot redirect the store.
func (l *funcLowerer) lowerPlace(ctx context, e *ast.Expr, stable bool) (lir.Place, error) {
	if e == nil {
		return lir.Place{}, malformed("missing place")
	}
	switch d := e.Data.(type) {
	case ast.LocalData:
		p, _, err := l.varPlace(d.Sym)
		return p, err
	case ast.ThisData:
		p, _, err := l.thisPlace(ctx)
		return p, err
	case ast.FieldData:
		if d.Object == nil {
			return lir.StaticPlace(d.Owner, d.Name), nil
		}
		base, err := l.objectPlace(ctx, d.Object, stable)
		if err != nil {
			return lir.Place{}, err
		}
		return base.WithField(d.Owner, d.Name), nil
	case ast.IndexData:
		if l.isIndexer(e) {
			return lir.Place{}, malformed("indexer access is not a place")
		}
		base, err := l.objectPlace(ctx, d.Object, stable)
		if err != nil {
			return lir.Place{}, err
		}
		idx, err := l.lowerExpr(ctx, d.Index)
		if err != nil {
			return lir.Place{}, err
		}
		if stable {
			idx = l.stabilize(idx)
		}
		return base.WithIndex(idx), nil
	case ast.DerefData:
		ptr, err := l.lowerExpr(ctx, d.Pointer)
		if err != nil {
			return lir.Place{}, err
		}
		base := ptr.Place
		if ptr.Kind != lir.OperandCopy || (stable && !l.isTempPlace(ptr.Place)) {
			base = l.spill(ptr, "ptr")
		}
		return base.WithDeref(), nil
	case ast.ResultData:
		if l.ret == nil || !l.ret.hasResult {
			return lir.Place{}, malformed("result used outside a value-returning procedure")
		}
		return l.ret.result, nil
	case ast.OldData:
		if p, ok := l.olds[e]; ok {
			return p, nil
		}
		return lir.Place{}, malformed("old value outside a postcondition")
	}
	return lir.Place{}, malformed("%s is not assignable", e.Kind)
}

// objectPlace yields a place holding the object of a member access. Value
// types that are themselves places are projected in place so stores reach
// the original storage.
func (l *funcLowerer) objectPlace(ctx context, obj *ast.Expr, stable bool) (lir.Place, error) {
	if l.types.IsValueType(obj.Type) && isPlaceExpr(obj) {
		return l.lowerPlace(ctx, obj, stable)
	}
	v, err := l.lowerExpr(ctx, obj)
	if err != nil {
		return lir.Place{}, err
	}
	if v.Kind == lir.OperandCopy && (!stable || l.isTempPlace(v.Place)) {
		return v.Place, nil
	}
	return l.spill(v, "obj"), nil
}

func isPlaceExpr(e *ast.Expr) bool {
	switch e.Kind {
	case ast.ExprLocal, ast.ExprThis, ast.ExprField, ast.ExprIndex, ast.ExprDeref, ast.ExprResult, ast.ExprOld:
		return true
	}
	return false
}

// lowerReceiver evaluates the receiver of an instance call. Value-typed
// places are passed by address.
func (l *funcLowerer) lowerReceiver(ctx context, obj *ast.Expr, stable bool) (lir.Operand, error) {
	if l.types.IsValueType(obj.Type) && isPlaceExpr(obj) && !(obj.Kind == ast.ExprIndex && l.isIndexer(obj)) {
		p, err := l.lowerPlace(ctx, obj, stable)
		if err != nil {
			return lir.Operand{}, err
		}
		return lir.Operand{Kind: lir.OperandAddrOf, Type: l.types.Intern(types.MakePointer(obj.Type)), Place: p}, nil
	}
	v, err := l.lowerExpr(ctx, obj)
	if err != nil {
		return lir.Operand{}, err
	}
	if stable {
		v = l.stabilize(v)
	}
	return v, nil
}

func (l *funcLowerer) isIndexer(e *ast.Expr) bool {
	d, ok := e.Data.(ast.IndexData)
	if !ok || d.Object == nil {
		return false
	}
	switch l.types.Kind(d.Object.Type) {
	case types.KindArray, types.KindString:
		return false
	}
	return true
}

func (l *funcLowerer) lowerIndexerGet(ctx context, e *ast.Expr, d ast.IndexData) (lir.Operand, error) {
	m, owner, ok := l.types.LookupMethod(d.Object.Type, "get_Item")
	if !ok {
		return lir.Operand{}, malformed("%s has no indexer", l.types.TypeString(d.Object.Type))
	}
	recv, err := l.lowerReceiver(ctx, d.Object, hasEffects(d.Index))
	if err != nil {
		return lir.Operand{}, err
	}
	idx, err := l.lowerExpr(ctx, d.Index)
	if err != nil {
		return lir.Operand{}, err
	}
	v := l.callMethod(m.Result, owner, "get_Item", m.Virtual && !l.types.IsValueType(d.Object.Type), &recv, l.coerceParam(idx, m.Params, 0))
	return l.coerce(v, e.Type), nil
}

// hasEffects reports whether evaluating e may run user code.
func hasEffects(e *ast.Expr) bool {
	found := false
	ast.Visitor{Expr: func(x *ast.Expr) bool {
		switch x.Kind {
		case ast.ExprCall, ast.ExprInvoke, ast.ExprNew, ast.ExprQuery, ast.ExprQuantifier:
			found = true
		}
		return !found
	}}.WalkExpr(e)
	return found
}

func anyEffects(es []*ast.Expr) bool {
	for _, e := range es {
		if hasEffects(e) {
			return true
		}
	}
	return false
}
