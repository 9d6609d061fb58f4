package samples

import "github.com/hesam/SketchSharp-sub001/internal/ast"

var loopsSample = Sample{
	Name:    "loops",
	Summary: "for, while and do-while loops, multi-level exits, goto and recursion",
	Output:  []string{"0", "1", "2", "4", "55", "128", "120", "26", "3"},
	build:   buildLoops,
}

func buildLoops(k *kit) {
	b := k.b
	it := b.B.Int

	n := b.Param("n", it)
	fact := b.Method(k.main, "Fact", it, []ast.Param{n}, nil, ast.FuncStatic|ast.FuncPublic)
	fact.Body = b.Block(
		b.If(b.Le(b.Ref(n.Sym), b.Int(1)), b.Block(b.Return(b.Int(1))), nil),
		b.Return(b.Mul(b.Ref(n.Sym), b.StaticCall(k.main.Type, "Fact", b.Sub(b.Ref(n.Sym), b.Int(1))))),
	)

	i := b.Local("i", it)
	total := b.Local("total", it)
	m := b.Local("m", it)
	p := b.Local("p", it)
	a := b.Local("a", it)
	c := b.Local("c", it)
	found := b.Local("found", it)
	g := b.Local("g", it)
	top := b.Label("top")

	k.entry(
		b.For([]ast.Stmt{b.Let(i, b.Int(0))}, b.Lt(b.Ref(i), b.Int(5)), []ast.Stmt{k.incr(i)}, b.Block(
			b.If(b.Eq(b.Ref(i), b.Int(3)), b.Block(b.Continue()), nil),
			k.print(b.Ref(i)),
		)),

		b.Let(total, b.Int(0)),
		b.Let(m, b.Int(10)),
		b.While(b.Bool(true), b.Block(
			b.If(b.Eq(b.Ref(m), b.Int(0)), b.Block(b.Break()), nil),
			b.Assign(b.Ref(total), b.Add(b.Ref(total), b.Ref(m))),
			b.Assign(b.Ref(m), b.Sub(b.Ref(m), b.Int(1))),
		)),
		k.print(b.Ref(total)),

		b.Let(p, b.Int(1)),
		b.DoWhile(b.Block(b.Assign(b.Ref(p), b.Mul(b.Ref(p), b.Int(2)))), b.Lt(b.Ref(p), b.Int(100))),
		k.print(b.Ref(p)),

		k.print(b.StaticCall(k.main.Type, "Fact", b.Int(5))),

		b.Let(found, b.Int(0)),
		b.For([]ast.Stmt{b.Let(a, b.Int(1))}, b.Lt(b.Ref(a), b.Int(10)), []ast.Stmt{k.incr(a)}, b.Block(
			b.For([]ast.Stmt{b.Let(c, b.Int(1))}, b.Lt(b.Ref(c), b.Int(10)), []ast.Stmt{k.incr(c)}, b.Block(
				b.If(b.Eq(b.Mul(b.Ref(a), b.Ref(c)), b.Int(12)), b.Block(
					b.Assign(b.Ref(found), b.Add(b.Mul(b.Ref(a), b.Int(10)), b.Ref(c))),
					b.BreakN(1),
				), nil),
			)),
		)),
		k.print(b.Ref(found)),

		b.Let(g, b.Int(0)),
		b.LabelAt(top),
		k.incr(g),
		b.If(b.Lt(b.Ref(g), b.Int(3)), b.Block(b.Goto(top)), nil),
		k.print(b.Ref(g)),
	)
}

var switchSample = Sample{
	Name:    "switch",
	Summary: "switch over integers with shared labels and over strings",
	Output:  []string{"zero", "small", "many", "2", "0", "1"},
	build:   buildSwitch,
}

func buildSwitch(k *kit) {
	b := k.b
	str, it := b.B.String, b.B.Int

	n := b.Param("n", it)
	r := b.Local("r", str)
	k.static("Classify", str, []ast.Param{n},
		b.Let(r, b.Str("")),
		b.Switch(b.Ref(n.Sym),
			b.Case(b.Block(b.Assign(b.Ref(r), b.Str("zero")), b.Break()), b.Int(0)),
			b.Case(b.Block(b.Assign(b.Ref(r), b.Str("small")), b.Break()), b.Int(1), b.Int(2)),
			b.DefaultCase(b.Block(b.Assign(b.Ref(r), b.Str("many")), b.Break())),
		),
		b.Return(b.Ref(r)),
	)

	s := b.Param("s", str)
	code := b.Local("code", it)
	k.static("Code", it, []ast.Param{s},
		b.Let(code, b.Int(0)),
		b.Switch(b.Ref(s.Sym),
			b.Case(b.Block(b.Assign(b.Ref(code), b.Int(1)), b.Break()), b.Str("red")),
			b.Case(b.Block(b.Assign(b.Ref(code), b.Int(2)), b.Break()), b.Str("green")),
		),
		b.Return(b.Ref(code)),
	)

	x := b.Local("x", it)
	k.entry(
		b.ForEach(x, k.ints(0, 2, 7), b.Block(
			k.print(b.StaticCall(k.main.Type, "Classify", b.Ref(x))),
		)),
		k.print(b.StaticCall(k.main.Type, "Code", b.Str("green"))),
		k.print(b.StaticCall(k.main.Type, "Code", b.Str("blue"))),
		k.print(b.StaticCall(k.main.Type, "Code", b.Str("red"))),
	)
}

var closuresSample = Sample{
	Name:    "closures",
	Summary: "lambdas sharing a captured local, per-iteration captures and capture-free lambdas",
	Output:  []string{"1", "6", "6", "10", "20", "30", "49"},
	build:   buildClosures,
}

func buildClosures(k *kit) {
	b := k.b
	it := b.B.Int

	counter := b.Local("counter", it)
	step := b.Param("step", it)
	inc := b.Lambda([]ast.Param{step}, it, b.Block(
		b.Assign(b.Ref(counter), b.Add(b.Ref(counter), b.Ref(step.Sym))),
		b.Return(b.Ref(counter)),
	))
	incVar := b.Local("inc", inc.Type)

	thunk := k.in.RegisterDelegate(nil, it)
	fs := b.Local("fs", k.array(thunk))
	v := b.Local("v", it)
	idx := b.Local("idx", it)

	x := b.Param("x", it)
	sq := b.Lambda([]ast.Param{x}, it, b.Block(b.Return(b.Mul(b.Ref(x.Sym), b.Ref(x.Sym)))))
	sqVar := b.Local("sq", sq.Type)

	k.entry(
		b.Let(counter, b.Int(0)),
		b.Let(incVar, inc),
		k.print(b.Invoke(b.Ref(incVar), b.Int(1))),
		k.print(b.Invoke(b.Ref(incVar), b.Int(5))),
		k.print(b.Ref(counter)),

		b.Let(fs, b.NewArray(thunk, b.Int(3))),
		b.ForEachIndexed(v, idx, k.ints(1, 2, 3), b.Block(
			b.Assign(b.Index(b.Ref(fs), b.Ref(idx)), b.Lambda(nil, it, b.Block(
				b.Return(b.Mul(b.Ref(v), b.Int(10))),
			))),
		)),
		k.print(b.Invoke(b.Index(b.Ref(fs), b.Int(0)))),
		k.print(b.Invoke(b.Index(b.Ref(fs), b.Int(1)))),
		k.print(b.Invoke(b.Index(b.Ref(fs), b.Int(2)))),

		b.Let(sqVar, sq),
		k.print(b.Invoke(b.Ref(sqVar), b.Int(7))),
	)
}
