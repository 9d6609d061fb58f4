package samples

import "github.com/hesam/SketchSharp-sub001/internal/ast"

var queriesSample = Sample{
	Name:    "queries",
	Summary: "comprehensions with where, orderby, top, group by, distinct, join and a single-valued result",
	Output: []string{
		"80", "20",
		"9", "8", "5",
		"23", "2", "11",
		"1", "2", "3",
		"4", "9",
		"6",
	},
	build: buildQueries,
}

func buildQueries(k *kit) {
	b := k.b
	it := b.B.Int
	ints := k.seq(it)

	xs := b.Local("xs", k.array(it))
	from := func(name string) (func() *ast.Expr, ast.QueryClause) {
		sym := b.Local(name, it)
		return func() *ast.Expr { return b.Ref(sym) }, ast.QueryClause{Kind: ast.QueryFrom, Var: sym, Source: b.Ref(xs)}
	}

	ev, evFrom := from("x")
	evens := b.Query(ints, evFrom,
		ast.QueryClause{Kind: ast.QueryWhere, Cond: b.Eq(b.Rem(ev(), b.Int(2)), b.Int(0))},
		ast.QueryClause{Kind: ast.QuerySelect, Value: b.Mul(ev(), b.Int(10))},
	)

	tv, tvFrom := from("t")
	top := b.Query(ints, tvFrom,
		ast.QueryClause{Kind: ast.QueryOrderBy, Keys: []ast.OrderKey{{Key: tv(), Descending: true}}},
		ast.QueryClause{Kind: ast.QueryTop, Count: b.Int(3)},
		ast.QueryClause{Kind: ast.QuerySelect, Value: tv()},
	)

	gv, gvFrom := from("v")
	g := b.Local("g", k.array(it))
	key := b.Local("key", it)
	groups := b.Query(ints, gvFrom,
		ast.QueryClause{Kind: ast.QueryGroupBy, Var: g, GroupKeys: []ast.GroupKey{{Sym: key, Expr: b.Rem(gv(), b.Int(3))}}},
		ast.QueryClause{Kind: ast.QuerySelect, Value: b.Add(b.Mul(b.Ref(key), b.Int(10)), b.Len(b.Ref(g)))},
	)

	d := b.Local("d", it)
	distinct := b.Query(ints,
		ast.QueryClause{Kind: ast.QueryFrom, Var: d, Source: k.ints(1, 2, 1, 3, 2)},
		ast.QueryClause{Kind: ast.QueryDistinct},
		ast.QueryClause{Kind: ast.QuerySelect, Value: b.Ref(d)},
	)

	l := b.Local("l", it)
	r := b.Local("r", it)
	join := b.Query(ints,
		ast.QueryClause{Kind: ast.QueryFrom, Var: l, Source: k.ints(1, 2, 3)},
		ast.QueryClause{Kind: ast.QueryJoin, Var: r, Source: k.ints(2, 3, 4), Cond: b.Eq(b.Ref(l), b.Ref(r))},
		ast.QueryClause{Kind: ast.QuerySelect, Value: b.Mul(b.Ref(l), b.Ref(r))},
	)

	s := b.Local("s", it)
	single := b.Query(it,
		ast.QueryClause{Kind: ast.QueryFrom, Var: s, Source: b.Int(3)},
		ast.QueryClause{Kind: ast.QueryWhere, Cond: b.Gt(b.Ref(s), b.Int(1))},
		ast.QueryClause{Kind: ast.QuerySelect, Value: b.Mul(b.Ref(s), b.Int(2))},
	)

	each := func(q *ast.Expr) ast.Stmt {
		o := b.Local("o", it)
		return b.ForEach(o, q, b.Block(k.print(b.Ref(o))))
	}
	k.entry(
		b.Let(xs, k.ints(5, 3, 8, 1, 9, 2)),
		each(evens),
		each(top),
		each(groups),
		each(distinct),
		each(join),
		k.print(single),
	)
}

var quantifiersSample = Sample{
	Name:    "quantifiers",
	Summary: "forall, exists, unique existence and the numeric aggregates over arrays and ranges",
	Output:  []string{"True", "True", "True", "False", "3", "10", "24", "9", "2"},
	build:   buildQuantifiers,
}

func buildQuantifiers(k *kit) {
	b := k.b
	it := b.B.Int

	xs := b.Local("xs", k.array(it))
	q := func(op ast.QuantifierOp, src *ast.Expr, filter func(*ast.Expr) *ast.Expr, body func(*ast.Expr) *ast.Expr) *ast.Expr {
		v := b.Local("q", it)
		var f, e *ast.Expr
		if filter != nil {
			f = filter(b.Ref(v))
		}
		if body != nil {
			e = body(b.Ref(v))
		}
		return b.Quant(op, v, src, f, e)
	}
	over := func() *ast.Expr { return b.Ref(xs) }
	id := func(v *ast.Expr) *ast.Expr { return v }
	gt := func(n int64) func(*ast.Expr) *ast.Expr {
		return func(v *ast.Expr) *ast.Expr { return b.Gt(v, b.Int(n)) }
	}
	eq := func(n int64) func(*ast.Expr) *ast.Expr {
		return func(v *ast.Expr) *ast.Expr { return b.Eq(v, b.Int(n)) }
	}

	k.entry(
		b.Let(xs, k.ints(5, 3, 8, 1, 9, 2)),
		k.print(q(ast.QuantForall, over(), nil, gt(0))),
		k.print(q(ast.QuantExists, over(), nil, gt(8))),
		k.print(q(ast.QuantExistsUnique, over(), nil, eq(5))),
		k.print(q(ast.QuantExistsUnique, k.ints(1, 1, 2), nil, eq(1))),
		k.print(q(ast.QuantCount, over(), gt(4), nil)),
		k.print(q(ast.QuantSum, b.Range(b.Int(1), b.Int(5)), nil, id)),
		k.print(q(ast.QuantProduct, k.ints(1, 2, 3, 4), nil, id)),
		k.print(q(ast.QuantMax, over(), nil, id)),
		k.print(q(ast.QuantMin, over(), nil, func(v *ast.Expr) *ast.Expr { return b.Mul(v, b.Int(2)) })),
	)
}
