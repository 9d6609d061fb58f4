// Package query rewrites comprehensions and quantifiers into ordinary
// statements before lowering. Single-valued comprehensions become straight
// line code in the enclosing procedure; many-valued ones become generator
// procedures that receive their free variables as arguments. Ordering and
// grouping go through the runtime ArrayList and Hashtable with synthesized
// key and comparer classes.
package query

import (
	"errors"
	"fmt"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// ErrMalformed reports a comprehension that cannot be rewritten.
var ErrMalformed = errors.New("query: malformed")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

// Plan is the rewritten form of one comprehension or quantifier.
type Plan struct {
	Card Cardinality
	// Prelude runs in the enclosing procedure before Value is read. It is
	// nil for many-valued comprehensions.
	Prelude *ast.Block
	Value   *ast.Expr
	// Proc is the generator behind a many-valued comprehension. It is a
	// static method of the owner and Value calls it.
	Proc *ast.Func
	// Keys are the row and key classes the plan allocates.
	Keys []*KeyType
}

// KeyType is a synthesized row or key class with its comparer class. The
// comparer's Compare, Equals and GetHashCode are registered here and built
// by the lowerer over Keys.
type KeyType struct {
	Type     types.TypeID
	Comparer types.TypeID
	Keys     []KeyField
}

// KeyField is a compared field of a key class.
type KeyField struct {
	Name       string
	Type       types.TypeID
	Descending bool
}

// Desugarer rewrites the comprehensions of one source procedure.
type Desugarer struct {
	b     *ast.Builder
	types *types.Interner
	bi    types.Builtins
	wk    types.WellKnown
	owner types.TypeID
	base  string
	next  func() string
}

// NewDesugarer returns a desugarer whose generator procedures become static
// methods of owner named after base; next numbers them.
func NewDesugarer(b *ast.Builder, owner types.TypeID, base string, next func() string) *Desugarer {
	return &Desugarer{
		b:     b,
		types: b.Types,
		bi:    b.B,
		wk:    b.Types.WellKnown(),
		owner: owner,
		base:  base,
		next:  next,
	}
}

// Query rewrites a comprehension. A result typed as a sequence always gets
// a generator; otherwise the comprehension must be single-valued and runs
// eagerly into a temporary holding the default value when no row matches.
func (d *Desugarer) Query(e *ast.Expr) (*Plan, error) {
	q, ok := e.Data.(ast.QueryData)
	if !ok {
		return nil, malformed("not a comprehension")
	}
	if len(q.Clauses) == 0 || q.Clauses[0].Kind != ast.QueryFrom {
		return nil, malformed("comprehension must start with from")
	}
	card := Classify(d.types, e)
	if d.types.IsSequence(e.Type) {
		return d.generator(e, q, card)
	}
	if card.IsMany() {
		return nil, malformed("%s comprehension typed %s", card, d.types.TypeString(e.Type))
	}
	return d.eager(e, q, card)
}

func (d *Desugarer) eager(e *ast.Expr, q ast.QueryData, card Cardinality) (*Plan, error) {
	b := d.b
	res := b.Temp("query", e.Type)
	p := &pipeline{d: d, clauses: q.Clauses, eager: true}
	p.emit = func(v *ast.Expr) []ast.Stmt {
		return []ast.Stmt{b.Assign(b.Ref(res), v)}
	}
	body, err := p.build()
	if err != nil {
		return nil, err
	}
	stmts := append([]ast.Stmt{b.Let(res, b.Default(e.Type))}, body...)
	return &Plan{Card: card, Prelude: b.Block(stmts...), Value: b.Ref(res)}, nil
}

func (d *Desugarer) generator(e *ast.Expr, q ast.QueryData, card Cardinality) (*Plan, error) {
	b := d.b
	fv := collectFree(b, e)
	p := &pipeline{d: d, clauses: q.Clauses, clone: fv.cloner()}
	p.emit = func(v *ast.Expr) []ast.Stmt {
		return []ast.Stmt{b.Yield(v)}
	}
	body, err := p.build()
	if err != nil {
		return nil, err
	}
	params := fv.params()
	name := d.base + "$query$" + d.next()
	fn := &ast.Func{
		Name:   name,
		Owner:  d.owner,
		Params: params,
		Result: e.Type,
		Body:   b.Block(body...),
		Scope:  &ast.Scope{},
		Flags:  ast.FuncStatic | ast.FuncGenerator | ast.FuncSynthesized,
		Span:   e.Span,
	}
	sig := types.Method{Name: name, Result: e.Type, Static: true}
	for _, prm := range params {
		fn.Scope.Locals = append(fn.Scope.Locals, prm.Sym)
		sig.Params = append(sig.Params, prm.Type)
	}
	d.types.AddMethod(d.owner, sig)
	return &Plan{
		Card:  card,
		Value: b.StaticCall(d.owner, name, fv.args()...),
		Proc:  fn,
		Keys:  p.keys,
	}, nil
}
