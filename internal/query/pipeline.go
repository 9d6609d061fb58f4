package query

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// pipeline turns a clause list into nested loops and conditionals. Ordering
// and grouping split it into stages: a stage collects its rows, and the
// next stage iterates the collection once the previous loops are done.
type pipeline struct {
	d       *Desugarer
	clauses []ast.QueryClause
	eager   bool
	clone   ast.Cloner
	emit    func(v *ast.Expr) []ast.Stmt

	setup []ast.Stmt
	// cont holds, per stage, the statements that follow its loops.
	cont map[int][]ast.Stmt
	// ends labels the end of a stage for top clauses that stop early.
	ends map[int]symbols.SymbolID
	keys []*KeyType
	err  error
}

// scope is what a clause sees: the variables bound so far, the current
// row value once selected, and the stage it belongs to.
type scope struct {
	bound []symbols.SymbolID
	out   *ast.Expr
	stage int
}

func (p *pipeline) build() ([]ast.Stmt, error) {
	p.cont = make(map[int][]ast.Stmt)
	p.ends = make(map[int]symbols.SymbolID)
	body := p.stream(0, scope{})
	if p.err != nil {
		return nil, p.err
	}
	out := append([]ast.Stmt{}, p.setup...)
	out = append(out, body...)
	for s := 0; ; s++ {
		if lbl, ok := p.ends[s]; ok {
			out = append(out, p.d.b.LabelAt(lbl))
		}
		c, ok := p.cont[s]
		if !ok {
			break
		}
		out = append(out, c...)
	}
	return out, nil
}

func (p *pipeline) fail(err error) []ast.Stmt {
	if p.err == nil {
		p.err = err
	}
	return nil
}

// x copies a clause expression into the code being built.
func (p *pipeline) x(e *ast.Expr) *ast.Expr {
	if p.eager || e == nil {
		return e
	}
	return p.clone.Expr(e)
}

func (p *pipeline) symType(sym symbols.SymbolID) types.TypeID {
	s, _ := p.d.b.Syms.Get(sym)
	return s.Type
}

// row is the value flowing through the clauses: the selected value, or
// the only bound variable when nothing has been selected.
func (p *pipeline) row(sc scope) (*ast.Expr, bool) {
	if sc.out != nil {
		return sc.out, true
	}
	if len(sc.bound) == 1 {
		return p.d.b.Ref(sc.bound[0]), true
	}
	return nil, false
}

func (p *pipeline) stream(i int, sc scope) []ast.Stmt {
	if p.err != nil {
		return nil
	}
	b := p.d.b
	if i == len(p.clauses) {
		v, ok := p.row(sc)
		if !ok {
			return p.fail(malformed("comprehension without select"))
		}
		return p.emit(v)
	}
	cl := p.clauses[i]
	next := func(sc scope) func() []ast.Stmt {
		return func() []ast.Stmt { return p.stream(i+1, sc) }
	}
	switch cl.Kind {
	case ast.QueryFrom:
		if !cl.Var.IsValid() || cl.Source == nil {
			return p.fail(malformed("from without a variable or source"))
		}
		inner := sc
		inner.bound = append(append([]symbols.SymbolID{}, sc.bound...), cl.Var)
		return p.bind(cl.Var, p.x(cl.Source), next(inner))

	case ast.QueryJoin:
		if !cl.Var.IsValid() || cl.Source == nil {
			return p.fail(malformed("join without a variable or source"))
		}
		inner := sc
		inner.bound = append(append([]symbols.SymbolID{}, sc.bound...), cl.Var)
		rest := next(inner)
		if !cl.Outer {
			return p.bind(cl.Var, p.x(cl.Source), func() []ast.Stmt {
				if cl.Cond == nil {
					return rest()
				}
				return []ast.Stmt{b.If(p.x(cl.Cond), b.Block(rest()...), nil)}
			})
		}
		return p.outerJoin(cl, rest)

	case ast.QueryWhere:
		if cl.Cond == nil {
			return p.fail(malformed("where without a condition"))
		}
		return []ast.Stmt{b.If(p.x(cl.Cond), b.Block(p.stream(i+1, sc)...), nil)}

	case ast.QuerySelect:
		return p.selectRow(cl, sc, next)

	case ast.QueryDistinct:
		if p.eager {
			return p.stream(i+1, sc)
		}
		v, ok := p.row(sc)
		if !ok {
			return p.fail(malformed("distinct over several variables"))
		}
		seen := b.Temp("seen", p.d.wk.Hashtable)
		p.setup = append(p.setup, b.Let(seen, b.New(p.d.wk.Hashtable, b.Null(p.d.wk.Comparer))))
		fresh := append([]ast.Stmt{b.Assign(b.Index(b.Ref(seen), v), v)}, p.stream(i+1, sc)...)
		return []ast.Stmt{b.If(b.Not(b.Call(b.Ref(seen), "ContainsKey", v)), b.Block(fresh...), nil)}

	case ast.QueryTop:
		if cl.Count == nil {
			return p.fail(malformed("top without a count"))
		}
		limit := b.Temp("limit", p.d.bi.Int)
		p.setup = append(p.setup, b.Let(limit, p.x(cl.Count)))
		if p.eager {
			return []ast.Stmt{b.If(b.Gt(b.Ref(limit), b.Int(0)), b.Block(p.stream(i+1, sc)...), nil)}
		}
		taken := b.Temp("taken", p.d.bi.Int)
		p.setup = append(p.setup, b.Let(taken, b.Int(0)))
		end, ok := p.ends[sc.stage]
		if !ok {
			end = b.Label("top$end")
			p.ends[sc.stage] = end
		}
		out := []ast.Stmt{
			b.If(b.Ge(b.Ref(taken), b.Ref(limit)), b.Block(b.Goto(end)), nil),
			b.Assign(b.Ref(taken), b.Add(b.Ref(taken), b.Int(1))),
		}
		return append(out, p.stream(i+1, sc)...)

	case ast.QueryOrderBy:
		if p.eager {
			return p.stream(i+1, sc)
		}
		return p.orderBy(i, cl, sc)

	case ast.QueryGroupBy:
		if p.eager {
			return p.fail(malformed("group by in a single-valued comprehension"))
		}
		return p.groupBy(i, cl, sc)
	}
	return p.fail(malformed("unknown clause %s", cl.Kind))
}

// bind runs rest with v bound to each value of src. A sequence source
// loops; an absent single value (null reference or empty nullable) skips
// rest.
func (p *pipeline) bind(v symbols.SymbolID, src *ast.Expr, rest func() []ast.Stmt) []ast.Stmt {
	b := p.d.b
	in := p.d.types
	vt := p.symType(v)
	switch {
	case in.Kind(src.Type) == types.KindArray || in.IsSequence(src.Type) || src.Kind == ast.ExprRange:
		return []ast.Stmt{b.ForEach(v, src, b.Block(rest()...))}
	case in.IsNullable(src.Type) && !in.IsNullable(vt):
		tmp := b.Temp("opt", src.Type)
		body := append([]ast.Stmt{b.Let(v, b.Cast(ast.CastUnwrap, b.Ref(tmp), vt))}, rest()...)
		return []ast.Stmt{b.Let(tmp, src), b.If(b.HasValue(b.Ref(tmp)), b.Block(body...), nil)}
	case in.IsReference(src.Type):
		return []ast.Stmt{b.Let(v, src), b.If(b.Ne(b.Ref(v), b.Null(vt)), b.Block(rest()...), nil)}
	default:
		return append([]ast.Stmt{b.Let(v, src)}, rest()...)
	}
}

// outerJoin gathers the inner values matching the current outer row, pads
// them with default(T) when there are none, and runs the remaining clauses
// once per gathered value.
func (p *pipeline) outerJoin(cl ast.QueryClause, rest func() []ast.Stmt) []ast.Stmt {
	b := p.d.b
	vt := p.symType(cl.Var)
	hits := b.Temp("matched", p.d.wk.ArrayList)
	out := []ast.Stmt{b.Let(hits, b.New(p.d.wk.ArrayList))}
	out = append(out, p.bind(cl.Var, p.x(cl.Source), func() []ast.Stmt {
		add := b.Do(b.Call(b.Ref(hits), "Add", b.Ref(cl.Var)))
		if cl.Cond == nil {
			return []ast.Stmt{add}
		}
		return []ast.Stmt{b.If(p.x(cl.Cond), b.Block(add), nil)}
	})...)
	count := b.Call(b.Ref(hits), "get_Count")
	out = append(out, b.If(b.Eq(count, b.Int(0)), b.Block(
		b.Do(b.Call(b.Ref(hits), "Add", b.Default(vt))),
	), nil))
	o := b.Temp("hit", p.d.bi.Object)
	body := append([]ast.Stmt{b.Let(cl.Var, p.fromObject(b.Ref(o), vt))}, rest()...)
	return append(out, b.ForEach(o, b.Ref(hits), b.Block(body...)))
}

func (p *pipeline) selectRow(cl ast.QueryClause, sc scope, next func(scope) func() []ast.Stmt) []ast.Stmt {
	b := p.d.b
	var out []ast.Stmt
	switch {
	case len(cl.Fields) > 0:
		if cl.Result == types.NoTypeID {
			return p.fail(malformed("select with fields but no result type"))
		}
		obj := b.Temp("row", cl.Result)
		out = append(out, b.Let(obj, b.New(cl.Result)))
		for _, f := range cl.Fields {
			out = append(out, b.Assign(b.Fld(b.Ref(obj), f.Name), p.x(f.Value)))
		}
		sc.out = b.Ref(obj)
	case cl.Value != nil:
		v := b.Temp("sel", cl.Value.Type)
		out = append(out, b.Let(v, p.x(cl.Value)))
		sc.out = b.Ref(v)
	default:
		return p.fail(malformed("select without a value"))
	}
	return append(out, next(sc)()...)
}

// orderBy collects the bound variables and sort keys of each row, sorts
// them once the stage is done and replays the rest of the clauses.
func (p *pipeline) orderBy(i int, cl ast.QueryClause, sc scope) []ast.Stmt {
	b := p.d.b
	if len(cl.Keys) == 0 {
		return p.fail(malformed("order by without keys"))
	}
	kt := p.newKeyType("row")
	fields := make([]string, len(sc.bound))
	for j, sym := range sc.bound {
		s, _ := b.Syms.Get(sym)
		fields[j] = p.d.types.AddUniqueField(kt.Type, s.Name, s.Type)
	}
	var outField string
	if sc.out != nil {
		outField = p.d.types.AddUniqueField(kt.Type, "out", sc.out.Type)
	}
	keyFields := make([]string, len(cl.Keys))
	for j, k := range cl.Keys {
		if !p.orderable(k.Key.Type) {
			return p.fail(malformed("cannot order by %s", p.d.types.TypeString(k.Key.Type)))
		}
		keyFields[j] = p.d.types.AddUniqueField(kt.Type, "key", k.Key.Type)
		kt.Keys = append(kt.Keys, KeyField{Name: keyFields[j], Type: k.Key.Type, Descending: k.Descending})
	}

	rows := b.Temp("rows", p.d.wk.ArrayList)
	p.setup = append(p.setup, b.Let(rows, b.New(p.d.wk.ArrayList)))
	r := b.Temp("r", kt.Type)
	collect := []ast.Stmt{b.Let(r, b.New(kt.Type))}
	for j, sym := range sc.bound {
		collect = append(collect, b.Assign(b.Fld(b.Ref(r), fields[j]), b.Ref(sym)))
	}
	if outField != "" {
		collect = append(collect, b.Assign(b.Fld(b.Ref(r), outField), sc.out))
	}
	for j, k := range cl.Keys {
		collect = append(collect, b.Assign(b.Fld(b.Ref(r), keyFields[j]), p.x(k.Key)))
	}
	collect = append(collect, b.Do(b.Call(b.Ref(rows), "Add", b.Ref(r))))

	if _, done := p.cont[sc.stage]; !done {
		p.cont[sc.stage] = nil
		o := b.Temp("o", p.d.bi.Object)
		r2 := b.Temp("sorted", kt.Type)
		replay := []ast.Stmt{b.Let(r2, b.Cast(ast.CastRef, b.Ref(o), kt.Type))}
		for j, sym := range sc.bound {
			replay = append(replay, b.Let(sym, b.Fld(b.Ref(r2), fields[j])))
		}
		next := scope{bound: sc.bound, stage: sc.stage + 1}
		if outField != "" {
			out := b.Temp("out", sc.out.Type)
			replay = append(replay, b.Let(out, b.Fld(b.Ref(r2), outField)))
			next.out = b.Ref(out)
		}
		replay = append(replay, p.stream(i+1, next)...)
		p.cont[sc.stage] = []ast.Stmt{
			b.Do(b.Call(b.Ref(rows), "Sort", b.New(kt.Comparer))),
			b.ForEach(o, b.Ref(rows), b.Block(replay...)),
		}
	}
	return collect
}

// groupBy buckets the element of each row under its composite key, keeping
// the keys in first-seen order. Afterwards only the key variables and the
// group variable are bound.
func (p *pipeline) groupBy(i int, cl ast.QueryClause, sc scope) []ast.Stmt {
	b := p.d.b
	if len(cl.GroupKeys) == 0 || !cl.Var.IsValid() {
		return p.fail(malformed("group by without keys or a group variable"))
	}
	elem := p.x(cl.Element)
	if elem == nil {
		v, ok := p.row(sc)
		if !ok {
			return p.fail(malformed("group by over several variables needs an element"))
		}
		elem = v
	}
	kt := p.newKeyType("key")
	keyFields := make([]string, len(cl.GroupKeys))
	for j, k := range cl.GroupKeys {
		keyFields[j] = p.d.types.AddUniqueField(kt.Type, "key", k.Expr.Type)
		kt.Keys = append(kt.Keys, KeyField{Name: keyFields[j], Type: k.Expr.Type})
	}

	table := b.Temp("groups", p.d.wk.Hashtable)
	order := b.Temp("keys", p.d.wk.ArrayList)
	p.setup = append(p.setup,
		b.Let(table, b.New(p.d.wk.Hashtable, b.New(kt.Comparer))),
		b.Let(order, b.New(p.d.wk.ArrayList)),
	)
	k := b.Temp("k", kt.Type)
	collect := []ast.Stmt{b.Let(k, b.New(kt.Type))}
	for j, gk := range cl.GroupKeys {
		collect = append(collect, b.Assign(b.Fld(b.Ref(k), keyFields[j]), p.x(gk.Expr)))
	}
	collect = append(collect,
		b.If(b.Not(b.Call(b.Ref(table), "ContainsKey", b.Ref(k))), b.Block(
			b.Assign(b.Index(b.Ref(table), b.Ref(k)), b.New(p.d.wk.ArrayList)),
			b.Do(b.Call(b.Ref(order), "Add", b.Ref(k))),
		), nil),
		b.Do(b.Call(b.Cast(ast.CastRef, b.Index(b.Ref(table), b.Ref(k)), p.d.wk.ArrayList), "Add", elem)),
	)

	if _, done := p.cont[sc.stage]; !done {
		p.cont[sc.stage] = nil
		ko := b.Temp("ko", p.d.bi.Object)
		k2 := b.Temp("group", kt.Type)
		lst := b.Temp("members", p.d.wk.ArrayList)
		replay := []ast.Stmt{b.Let(k2, b.Cast(ast.CastRef, b.Ref(ko), kt.Type))}
		next := scope{stage: sc.stage + 1}
		for j, gk := range cl.GroupKeys {
			replay = append(replay, b.Let(gk.Sym, b.Fld(b.Ref(k2), keyFields[j])))
			next.bound = append(next.bound, gk.Sym)
		}
		replay = append(replay, b.Let(lst, b.Cast(ast.CastRef, b.Index(b.Ref(table), b.Ref(ko)), p.d.wk.ArrayList)))
		members, ok := p.groupValue(cl.Var, lst)
		if !ok {
			return p.fail(malformed("group variable of type %s", p.d.types.TypeString(p.symType(cl.Var))))
		}
		replay = append(replay, members...)
		next.bound = append(next.bound, cl.Var)
		replay = append(replay, p.stream(i+1, next)...)
		p.cont[sc.stage] = []ast.Stmt{b.ForEach(ko, b.Ref(order), b.Block(replay...))}
	}
	return collect
}

// groupValue binds v to the members list, converted to an array when v is
// typed as one.
func (p *pipeline) groupValue(v, lst symbols.SymbolID) ([]ast.Stmt, bool) {
	b := p.d.b
	vt := p.symType(v)
	switch {
	case vt == p.d.wk.ArrayList || vt == p.d.bi.Object:
		return []ast.Stmt{b.Let(v, b.Ref(lst))}, true
	case p.d.types.Kind(vt) == types.KindArray:
		elem := p.d.types.Elem(vt)
		j := b.Temp("j", p.d.bi.Int)
		count := func() *ast.Expr { return b.Call(b.Ref(lst), "get_Count") }
		return []ast.Stmt{
			b.Let(v, b.NewArray(elem, count())),
			b.Let(j, b.Int(0)),
			b.While(b.Lt(b.Ref(j), count()), b.Block(
				b.Assign(b.Index(b.Ref(v), b.Ref(j)), p.fromObject(b.Index(b.Ref(lst), b.Ref(j)), elem)),
				b.Assign(b.Ref(j), b.Add(b.Ref(j), b.Int(1))),
			)),
		}, true
	}
	return nil, false
}

func (p *pipeline) fromObject(x *ast.Expr, ty types.TypeID) *ast.Expr {
	switch {
	case ty == p.d.bi.Object:
		return x
	case p.d.types.IsValueType(ty):
		return p.d.b.Cast(ast.CastUnbox, x, ty)
	default:
		return p.d.b.Cast(ast.CastRef, x, ty)
	}
}

func (p *pipeline) orderable(ty types.TypeID) bool {
	switch p.d.types.Kind(ty) {
	case types.KindBool, types.KindChar, types.KindInt, types.KindUint, types.KindFloat, types.KindString:
		return true
	}
	return false
}

// newKeyType registers a sealed key class and its comparer class.
func (p *pipeline) newKeyType(hint string) *KeyType {
	in := p.d.types
	kt := &KeyType{}
	var name string
	kt.Type, name = in.RegisterUniqueClass(p.d.base+"$"+hint, types.KindClass, types.ClassSynthesized|types.ClassSealed)
	kt.Comparer, _ = in.RegisterUniqueClass(name+"$cmp", types.KindClass, types.ClassSynthesized|types.ClassSealed)
	in.AddInterface(kt.Comparer, p.d.wk.Comparer)
	obj := p.d.bi.Object
	in.AddMethod(kt.Comparer, types.Method{Name: "Compare", Params: []types.TypeID{obj, obj}, Result: p.d.bi.Int, Virtual: true})
	in.AddMethod(kt.Comparer, types.Method{Name: "Equals", Params: []types.TypeID{obj, obj}, Result: p.d.bi.Bool, Virtual: true})
	in.AddMethod(kt.Comparer, types.Method{Name: "GetHashCode", Params: []types.TypeID{obj}, Result: p.d.bi.Int, Virtual: true})
	p.keys = append(p.keys, kt)
	return kt
}
