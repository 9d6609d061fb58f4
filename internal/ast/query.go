package ast

import (
	"github.com/hesam/SketchSharp-sub001/internal/source"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// QueryClauseKind enumerates comprehension clauses.
type QueryClauseKind uint8

const (
	// QueryFrom binds Var to each element of Source; a second from is a cross product.
	QueryFrom QueryClauseKind = iota
	QueryWhere
	// QueryJoin binds Var over Source, keeping rows where Cond holds.
	// Outer joins emit one null-padded row for unmatched outer rows.
	QueryJoin
	QueryOrderBy
	// QueryGroupBy partitions rows by GroupKeys; afterwards only the key
	// variables and Var (the sequence of grouped elements) are in scope.
	QueryGroupBy
	QuerySelect
	QueryDistinct
	QueryTop
)

func (k QueryClauseKind) String() string {
	switch k {
	case QueryFrom:
		return "from"
	case QueryWhere:
		return "where"
	case QueryJoin:
		return "join"
	case QueryOrderBy:
		return "orderby"
	case QueryGroupBy:
		return "groupby"
	case QuerySelect:
		return "select"
	case QueryDistinct:
		return "distinct"
	case QueryTop:
		return "top"
	default:
		return "clause?"
	}
}

// OrderKey is one sort key of an orderby clause.
type OrderKey struct {
	Key        *Expr
	Descending bool
}

// GroupKey binds Sym to a grouping key expression.
type GroupKey struct {
	Sym  symbols.SymbolID
	Expr *Expr
}

// Projection initializes one field of a select result instance.
type Projection struct {
	Name  string
	Value *Expr
}

// QueryClause is one stage of a comprehension pipeline.
type QueryClause struct {
	Kind      QueryClauseKind
	Span      source.Span
	Var       symbols.SymbolID
	Source    *Expr
	Cond      *Expr
	Outer     bool
	Keys      []OrderKey
	GroupKeys []GroupKey
	Element   *Expr
	// Select either fills Result field by field or yields Value.
	Result types.TypeID
	Fields []Projection
	Value  *Expr
	Count  *Expr
}

// QueryData holds data for ExprQuery; Expr.Type is the result type.
type QueryData struct {
	Clauses []QueryClause
}

func (QueryData) exprData() {}
