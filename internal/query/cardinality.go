package query

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// Cardinality bounds the number of values an expression produces.
type Cardinality uint8

const (
	None Cardinality = iota
	One
	ZeroOrOne
	ZeroOrMore
	OneOrMore
)

func (c Cardinality) String() string {
	switch c {
	case None:
		return "none"
	case One:
		return "one"
	case ZeroOrOne:
		return "zero-or-one"
	case ZeroOrMore:
		return "zero-or-more"
	case OneOrMore:
		return "one-or-more"
	default:
		return "cardinality?"
	}
}

// IsMany reports whether c admits more than one value.
func (c Cardinality) IsMany() bool { return c == ZeroOrMore || c == OneOrMore }

// MayBeEmpty reports whether c admits no value at all.
func (c Cardinality) MayBeEmpty() bool { return c == None || c == ZeroOrOne || c == ZeroOrMore }

// Optional relaxes c to also admit zero values.
func (c Cardinality) Optional() Cardinality {
	switch c {
	case One:
		return ZeroOrOne
	case OneOrMore:
		return ZeroOrMore
	}
	return c
}

// NonEmpty tightens c to at least one value.
func (c Cardinality) NonEmpty() Cardinality {
	switch c {
	case None, ZeroOrOne:
		return One
	case ZeroOrMore:
		return OneOrMore
	}
	return c
}

// Product is the cardinality of the cross product of a and b.
func Product(a, b Cardinality) Cardinality {
	if a == None || b == None {
		return None
	}
	empty := a.MayBeEmpty() || b.MayBeEmpty()
	switch {
	case a.IsMany() || b.IsMany():
		if empty {
			return ZeroOrMore
		}
		return OneOrMore
	case empty:
		return ZeroOrOne
	default:
		return One
	}
}

// OfType classifies a value of type ty. Sequences and arrays are
// zero-or-more; nullable values and references may be absent.
func OfType(in *types.Interner, ty types.TypeID) Cardinality {
	switch in.Kind(ty) {
	case types.KindVoid, types.KindInvalid:
		return None
	case types.KindArray, types.KindEnumerable, types.KindEnumerator:
		return ZeroOrMore
	case types.KindNullable:
		return ZeroOrOne
	}
	if in.IsReference(ty) {
		return ZeroOrOne
	}
	return One
}

// Classify computes the cardinality of e. Quantifiers always produce one
// value; comprehensions combine their clauses.
func Classify(in *types.Interner, e *ast.Expr) Cardinality {
	if e == nil {
		return None
	}
	switch d := e.Data.(type) {
	case ast.QuantifierData:
		return One
	case ast.RangeData:
		return ZeroOrMore
	case ast.QueryData:
		return classifyClauses(in, d.Clauses)
	}
	return OfType(in, e.Type)
}

func classifyClauses(in *types.Interner, clauses []ast.QueryClause) Cardinality {
	c := One
	for _, cl := range clauses {
		switch cl.Kind {
		case ast.QueryFrom:
			c = Product(c, Classify(in, cl.Source))
		case ast.QueryJoin:
			src := Classify(in, cl.Source)
			if cl.Outer {
				src = src.NonEmpty()
			} else if cl.Cond != nil {
				src = src.Optional()
			}
			c = Product(c, src)
		case ast.QueryWhere:
			c = c.Optional()
		case ast.QueryGroupBy:
			if c.MayBeEmpty() {
				c = ZeroOrMore
			} else {
				c = OneOrMore
			}
		case ast.QueryTop:
			if n, ok := literalCount(cl.Count); ok {
				switch {
				case n <= 0:
					c = c.Optional()
				case n == 1 && c == OneOrMore:
					c = One
				case n == 1 && c == ZeroOrMore:
					c = ZeroOrOne
				}
				continue
			}
			c = c.Optional()
		}
	}
	return c
}

func literalCount(e *ast.Expr) (int64, bool) {
	if e == nil {
		return 0, false
	}
	lit, ok := e.Data.(ast.LiteralData)
	if !ok || lit.Kind != ast.LiteralInt {
		return 0, false
	}
	return lit.IntValue, true
}
