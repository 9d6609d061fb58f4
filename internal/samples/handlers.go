package samples

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

var iteratorsSample = Sample{
	Name:    "iterators",
	Summary: "generator methods resumed by foreach, with finally code run on completion and on early exit",
	Output: []string{
		"0", "2", "4", "6", "evens done",
		"0", "2", "evens done",
		"3", "5",
	},
	build: buildIterators,
}

func buildIterators(k *kit) {
	b := k.b
	it := b.B.Int

	limit := b.Param("limit", it)
	i := b.Local("i", it)
	k.static("Evens", k.seq(it), []ast.Param{limit},
		b.Try(b.Block(
			b.For([]ast.Stmt{b.Let(i, b.Int(0))}, b.Lt(b.Ref(i), b.Ref(limit.Sym)), []ast.Stmt{
				b.Assign(b.Ref(i), b.Add(b.Ref(i), b.Int(2))),
			}, b.Block(b.Yield(b.Ref(i)))),
		), nil, b.Block(k.say("evens done"))),
	)

	src := b.Param("src", k.array(it))
	y := b.Local("y", it)
	k.static("Odd", k.seq(it), []ast.Param{src},
		b.ForEach(y, b.Ref(src.Sym), b.Block(
			b.If(b.Eq(b.Rem(b.Ref(y), b.Int(2)), b.Int(0)), b.Block(b.Continue()), nil),
			b.If(b.Gt(b.Ref(y), b.Int(6)), b.Block(b.YieldBreak()), nil),
			b.Yield(b.Ref(y)),
		)),
	)

	x := b.Local("x", it)
	z := b.Local("z", it)
	w := b.Local("w", it)
	k.entry(
		b.ForEach(x, b.StaticCall(k.main.Type, "Evens", b.Int(7)), b.Block(k.print(b.Ref(x)))),
		b.ForEach(z, b.StaticCall(k.main.Type, "Evens", b.Int(100)), b.Block(
			b.If(b.Gt(b.Ref(z), b.Int(2)), b.Block(b.Break()), nil),
			k.print(b.Ref(z)),
		)),
		b.ForEach(w, b.StaticCall(k.main.Type, "Odd", k.ints(2, 3, 4, 5, 9, 11)), b.Block(k.print(b.Ref(w)))),
	)
}

var exceptionsSample = Sample{
	Name:    "exceptions",
	Summary: "typed catch clauses, finally, rethrow and leaving try regions from loops",
	Output: []string{
		"5", "divide by zero", "finally",
		"caught inner", "Exception: inner",
		"0", "leave", "leave",
		"NullReferenceException",
	},
	build: buildExceptions,
}

func buildExceptions(k *kit) {
	b := k.b
	it := b.B.Int
	wk := k.wk

	num := b.Param("a", it)
	den := b.Param("b", it)
	k.static("Divide", it, []ast.Param{num, den},
		b.If(b.Eq(b.Ref(den.Sym), b.Int(0)), b.Block(
			b.Throw(b.New(wk.InvalidOperation, b.Str("divide by zero"))),
		), nil),
		b.Return(b.Div(b.Ref(num.Sym), b.Ref(den.Sym))),
	)
	divide := func(x, y int64) *ast.Expr { return b.StaticCall(k.main.Type, "Divide", b.Int(x), b.Int(y)) }

	e1 := b.Local("e", wk.InvalidOperation)
	e2 := b.Local("e2", wk.Exception)
	e3 := b.Local("e3", wk.Exception)
	e4 := b.Local("e4", wk.NullReference)
	i := b.Local("i", it)
	arr := b.Local("arr", k.array(it))

	k.entry(
		b.Try(b.Block(
			k.print(divide(10, 2)),
			k.print(divide(1, 0)),
			k.say("unreached"),
		), []ast.CatchClause{
			b.Catch(wk.InvalidOperation, e1, b.Block(k.print(b.Fld(b.Ref(e1), types.FieldMessage)))),
		}, b.Block(k.say("finally"))),

		b.Try(b.Block(
			b.Try(b.Block(
				b.Throw(b.New(wk.Exception, b.Str("inner"))),
			), []ast.CatchClause{
				b.Catch(wk.Exception, e2, b.Block(k.say("caught inner"), b.Rethrow())),
			}, nil),
		), []ast.CatchClause{
			b.Catch(wk.Exception, e3, b.Block(k.print(b.Ref(e3)))),
		}, nil),

		b.For([]ast.Stmt{b.Let(i, b.Int(0))}, b.Lt(b.Ref(i), b.Int(3)), []ast.Stmt{k.incr(i)}, b.Block(
			b.Try(b.Block(
				b.If(b.Eq(b.Ref(i), b.Int(1)), b.Block(b.Break()), nil),
				k.print(b.Ref(i)),
			), nil, b.Block(k.say("leave"))),
		)),

		b.Let(arr, b.Null(k.array(it))),
		b.Try(b.Block(
			k.print(b.Len(b.Ref(arr))),
		), []ast.CatchClause{
			b.Catch(wk.InvalidOperation, symbols.NoSymbolID, b.Block(k.say("wrong handler"))),
			b.Catch(wk.NullReference, e4, b.Block(k.say("NullReferenceException"))),
		}, nil),
	)
}

var contractsSample = Sample{
	Name:    "contracts",
	Summary: "preconditions, postconditions with old values, non-null parameters and object invariants",
	Output: []string{
		"15",
		"Precondition violated: amount > 0",
		"Invariant violated: balance >= 0",
		"value cannot be null: owner",
		"20",
	},
	build: buildContracts,
}

func buildContracts(k *kit) {
	b := k.b
	it, str := b.B.Int, b.B.String
	wk := k.wk

	acct := k.class("Account", types.KindClass)
	b.Field(acct, "balance", it)
	b.Field(acct, "owner", str)
	this := func() *ast.Expr { return b.This(acct.Type) }
	balance := func() *ast.Expr { return b.Fld(this(), "balance") }
	acct.Invariants = []ast.Clause{b.Clause(b.Ge(balance(), b.Int(0)), "balance >= 0")}

	initial := b.Param("initial", it)
	owner := b.NonNullParam("owner", str)
	b.Ctor(acct, []ast.Param{initial, owner}, b.Block(
		b.Assign(balance(), b.Ref(initial.Sym)),
		b.Assign(b.Fld(this(), "owner"), b.Ref(owner.Sym)),
	), ast.FuncPublic)

	amount := b.Param("amount", it)
	deposit := b.Method(acct, "Deposit", it, []ast.Param{amount}, b.Block(
		b.Assign(balance(), b.Add(balance(), b.Ref(amount.Sym))),
		b.Return(balance()),
	), ast.FuncPublic)
	deposit.Contract = &ast.Contract{
		Requires: []ast.Clause{b.Clause(b.Gt(b.Ref(amount.Sym), b.Int(0)), "amount > 0")},
		Ensures: []ast.Clause{b.Clause(
			b.Eq(b.Result(it), b.Add(b.Old(balance()), b.Ref(amount.Sym))),
			"result == old(balance) + amount",
		)},
	}

	a := b.Local("a", acct.Type)
	e1 := b.Local("e1", wk.Requires)
	e2 := b.Local("e2", wk.Invariant)
	e3 := b.Local("e3", wk.ArgumentNull)
	newAccount := func(balance int64, owner *ast.Expr) *ast.Expr { return b.New(acct.Type, b.Int(balance), owner) }

	k.entry(
		b.Let(a, newAccount(10, b.Str("ann"))),
		k.print(b.Call(b.Ref(a), "Deposit", b.Int(5))),
		b.Try(b.Block(
			b.Do(b.Call(b.Ref(a), "Deposit", b.Int(0))),
		), []ast.CatchClause{
			b.Catch(wk.Requires, e1, b.Block(k.print(b.Fld(b.Ref(e1), types.FieldMessage)))),
		}, nil),
		b.Try(b.Block(
			b.Do(newAccount(-1, b.Str("bob"))),
		), []ast.CatchClause{
			b.Catch(wk.Invariant, e2, b.Block(k.print(b.Fld(b.Ref(e2), types.FieldMessage)))),
		}, nil),
		b.Try(b.Block(
			b.Do(newAccount(1, b.Null(str))),
		), []ast.CatchClause{
			b.Catch(wk.ArgumentNull, e3, b.Block(k.print(b.Fld(b.Ref(e3), types.FieldMessage)))),
		}, nil),
		k.print(b.Call(b.Ref(a), "Deposit", b.Int(5))),
	)
}

var resourcesSample = Sample{
	Name:    "resources",
	Summary: "lock, using, acquire with a condition and fixed pointers into arrays",
	Output:  []string{"locked", "using", "disposed", "acquired", "read", "42"},
	build:   buildResources,
}

func buildResources(k *kit) {
	b := k.b
	it := b.B.Int

	res := k.class("Resource", types.KindClass)
	k.in.AddInterface(res.Type, k.wk.Disposable)
	b.Ctor(res, nil, b.Block(), ast.FuncPublic)
	b.Method(res, "Dispose", b.B.Void, nil, b.Block(k.say("disposed")), ast.FuncPublic|ast.FuncVirtual)

	r := b.Local("r", res.Type)
	u := b.Local("u", res.Type)
	arr := b.Local("arr", k.array(it))
	p := b.Local("p", k.in.Intern(types.MakePointer(it)))
	ready := b.Lambda(nil, b.B.Bool, b.Block(b.Return(b.Bool(true))))

	k.entry(
		b.Let(r, b.New(res.Type)),
		b.Lock(b.Ref(r), b.Block(k.say("locked"))),
		b.Using(u, b.New(res.Type), b.Block(k.say("using"))),
		b.Acquire(b.Ref(r), false, nil, b.Block(k.say("acquired"))),
		b.Acquire(b.Ref(r), true, ready, b.Block(k.say("read"))),
		b.Let(arr, k.ints(1, 2, 3)),
		b.Fixed(p, b.AddrOf(b.Index(b.Ref(arr), b.Int(1))), b.Block(
			b.Assign(b.Deref(b.Ref(p)), b.Int(42)),
		)),
		k.print(b.Index(b.Ref(arr), b.Int(1))),
	)
}

var valuesSample = Sample{
	Name:    "values",
	Summary: "structs with value-type receivers, nullables, boxing and type tests",
	Output:  []string{"7", "False", "True", "5", "8", "False", "hi"},
	build:   buildValues,
}

func buildValues(k *kit) {
	b := k.b
	it := b.B.Int
	obj := b.B.Object

	pt := k.class("Point", types.KindStruct)
	b.Field(pt, "x", it)
	b.Field(pt, "y", it)
	b.Method(pt, "Sum", it, nil, b.Block(
		b.Return(b.Add(b.Fld(b.This(pt.Type), "x"), b.Fld(b.This(pt.Type), "y"))),
	), ast.FuncPublic)

	nint := k.in.Intern(types.MakeNullable(it))
	p := b.Local("p", pt.Type)
	n := b.Local("n", nint)
	o := b.Local("o", obj)
	s := b.Local("s", obj)

	k.entry(
		b.Let(p, b.Default(pt.Type)),
		b.Assign(b.Fld(b.Ref(p), "x"), b.Int(3)),
		b.Assign(b.Fld(b.Ref(p), "y"), b.Int(4)),
		k.print(b.Call(b.Ref(p), "Sum")),

		b.Let(n, b.Null(nint)),
		k.print(b.HasValue(b.Ref(n))),
		b.Assign(b.Ref(n), b.Int(5)),
		k.print(b.HasValue(b.Ref(n))),
		k.print(b.Cast(ast.CastUnwrap, b.Ref(n), it)),

		b.Let(o, b.Cast(ast.CastBox, b.Int(7), obj)),
		k.print(b.Add(b.Cast(ast.CastUnbox, b.Ref(o), it), b.Int(1))),
		k.print(b.Is(b.Ref(o), b.B.String)),
		b.Let(s, b.Str("hi")),
		k.print(b.As(b.Ref(s), b.B.String)),
	)
}
