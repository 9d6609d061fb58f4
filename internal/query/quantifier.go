package query

import (
	"math"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// Quantifier rewrites a quantifier or aggregate into an accumulator loop.
// Only forall and exists stop as soon as the answer is known; every other
// operator visits each element. Min and max start from the largest and
// smallest value of the term type, so an empty range yields that bound.
func (d *Desugarer) Quantifier(e *ast.Expr) (*Plan, error) {
	q, ok := e.Data.(ast.QuantifierData)
	if !ok {
		return nil, malformed("not a quantifier")
	}
	if q.Source == nil || !q.Var.IsValid() {
		return nil, malformed("%s without a range", q.Op)
	}
	if q.Body == nil && q.Op != ast.QuantCount {
		return nil, malformed("%s without a body", q.Op)
	}
	b := d.b
	var pre, step []ast.Stmt
	var value *ast.Expr
	switch q.Op {
	case ast.QuantForall, ast.QuantExists:
		want := q.Op == ast.QuantExists
		acc := b.Temp("all", d.bi.Bool)
		pre = append(pre, b.Let(acc, b.Bool(!want)))
		hit := q.Body
		if !want {
			hit = b.Not(q.Body)
		}
		step = append(step, b.If(hit, b.Block(b.Assign(b.Ref(acc), b.Bool(want)), b.Break()), nil))
		value = b.Ref(acc)
	case ast.QuantExistsUnique:
		n := b.Temp("hits", d.bi.Int)
		pre = append(pre, b.Let(n, b.Int(0)))
		step = append(step, b.If(q.Body, b.Block(
			b.Assign(b.Ref(n), b.Add(b.Ref(n), b.Int(1))),
		), nil))
		value = b.Eq(b.Ref(n), b.Int(1))
	case ast.QuantCount:
		n := b.Temp("count", d.bi.Int)
		pre = append(pre, b.Let(n, b.Int(0)))
		step = append(step, b.Assign(b.Ref(n), b.Add(b.Ref(n), b.Int(1))))
		value = b.Ref(n)
	case ast.QuantSum, ast.QuantProduct:
		ty := e.Type
		if !d.types.IsNumeric(ty) {
			return nil, malformed("%s over non-numeric %s", q.Op, d.types.TypeString(ty))
		}
		acc := b.Temp(q.Op.String(), ty)
		op := ast.BinAdd
		init := numberLit(d.types, ty, 0)
		if q.Op == ast.QuantProduct {
			op, init = ast.BinMul, numberLit(d.types, ty, 1)
		}
		pre = append(pre, b.Let(acc, init))
		step = append(step, b.Assign(b.Ref(acc), b.Bin(op, b.Ref(acc), q.Body)))
		value = b.Ref(acc)
	case ast.QuantMin, ast.QuantMax:
		ty := e.Type
		init, ok := boundLit(d.types, ty, q.Op == ast.QuantMin)
		if !ok {
			return nil, malformed("%s over unbounded %s", q.Op, d.types.TypeString(ty))
		}
		acc := b.Temp(q.Op.String(), ty)
		term := b.Temp("term", ty)
		better := ast.BinLt
		if q.Op == ast.QuantMax {
			better = ast.BinGt
		}
		pre = append(pre, b.Let(acc, init))
		step = append(step,
			b.Let(term, q.Body),
			b.If(b.Bin(better, b.Ref(term), b.Ref(acc)), b.Block(b.Assign(b.Ref(acc), b.Ref(term))), nil),
		)
		value = b.Ref(acc)
	default:
		return nil, malformed("unknown quantifier %s", q.Op)
	}
	body := b.Block(step...)
	if q.Filter != nil {
		body = b.Block(b.If(q.Filter, body, nil))
	}
	pre = append(pre, b.ForEach(q.Var, q.Source, body))
	return &Plan{Card: One, Prelude: b.Block(pre...), Value: value}, nil
}

// numberLit is the constant v typed as ty.
func numberLit(in *types.Interner, ty types.TypeID, v uint8) *ast.Expr {
	lit := ast.LiteralData{Kind: ast.LiteralInt, IntValue: int64(v)}
	switch {
	case in.IsFloat(ty):
		lit = ast.LiteralData{Kind: ast.LiteralFloat, FloatValue: float64(v)}
	case in.Kind(ty) == types.KindUint:
		lit = ast.LiteralData{Kind: ast.LiteralUint, UintValue: uint64(v)}
	}
	return &ast.Expr{Kind: ast.ExprLiteral, Type: ty, Data: lit}
}

// boundLit is the largest (top) or smallest value of ty, the identity of min
// and max respectively.
func boundLit(in *types.Interner, ty types.TypeID, top bool) (*ast.Expr, bool) {
	t, ok := in.Lookup(ty)
	if !ok {
		return nil, false
	}
	var lit ast.LiteralData
	switch t.Kind {
	case types.KindInt:
		bits := intBits(t.Width)
		lo, hi := int64(-1)<<(bits-1), int64(1)<<(bits-1)-1
		lit = ast.LiteralData{Kind: ast.LiteralInt, IntValue: lo}
		if top {
			lit.IntValue = hi
		}
	case types.KindUint:
		lit = ast.LiteralData{Kind: ast.LiteralUint}
		if top {
			lit.UintValue = math.MaxUint64 >> (64 - intBits(t.Width))
		}
	case types.KindFloat:
		m := math.MaxFloat64
		if t.Width == types.Width32 {
			m = math.MaxFloat32
		}
		lit = ast.LiteralData{Kind: ast.LiteralFloat, FloatValue: -m}
		if top {
			lit.FloatValue = m
		}
	case types.KindChar:
		lit = ast.LiteralData{Kind: ast.LiteralChar, StringValue: "\x00"}
		if top {
			lit.StringValue = string(rune(0xFFFF))
		}
	default:
		return nil, false
	}
	return &ast.Expr{Kind: ast.ExprLiteral, Type: ty, Data: lit}, true
}

func intBits(w types.Width) uint {
	if w == types.WidthAny {
		return 64
	}
	return uint(w)
}
