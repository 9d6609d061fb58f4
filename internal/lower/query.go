package lower

import (
	"errors"
	"strings"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/query"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

func (l *funcLowerer) lowerQuantifier(ctx context, e *ast.Expr) (lir.Operand, error) {
	return l.lowerPlan(ctx, e, func(d *query.Desugarer) (*query.Plan, error) { return d.Quantifier(e) })
}

func (l *funcLowerer) lowerQuery(ctx context, e *ast.Expr) (lir.Operand, error) {
	return l.lowerPlan(ctx, e, func(d *query.Desugarer) (*query.Plan, error) { return d.Query(e) })
}

// lowerPlan rewrites e once per source procedure; the synthesized
// declarations are emitted with the first rewrite, the prelude every time
// e is lowered.
func (l *funcLowerer) lowerPlan(ctx context, e *ast.Expr, rewrite func(*query.Desugarer) (*query.Plan, error)) (lir.Operand, error) {
	plan, ok := l.plans[e]
	if !ok {
		var err error
		if plan, err = rewrite(l.desugarer()); err != nil {
			if errors.Is(err, query.ErrMalformed) {
				return lir.Operand{}, malformed("%v", err)
			}
			return lir.Operand{}, err
		}
		if plan.Prelude != nil {
			ast.MarkCaptures(&ast.Func{Name: "prelude", Body: plan.Prelude})
		}
		if err := l.emitPlanDecls(plan); err != nil {
			return lir.Operand{}, err
		}
		l.plans[e] = plan
	}
	if plan.Prelude != nil {
		if err := l.lowerBlock(ctx, plan.Prelude); err != nil {
			return lir.Operand{}, err
		}
	}
	v, err := l.lowerExpr(ctx, plan.Value)
	if err != nil {
		return lir.Operand{}, err
	}
	return l.coerce(v, e.Type), nil
}

// desugarer names synthesized procedures after the source procedure and
// places them on its declaring type.
func (l *funcLowerer) desugarer() *query.Desugarer {
	owner := l.owner
	if l.src != nil {
		owner = l.src.Owner
	}
	name := strings.TrimPrefix(l.base, l.className(owner)+"$")
	return query.NewDesugarer(ast.NewBuilder(l.types, l.s.Syms), owner, name, l.names.next)
}

func (l *funcLowerer) emitPlanDecls(plan *query.Plan) error {
	for _, kt := range plan.Keys {
		if err := l.buildKeyType(kt); err != nil {
			return err
		}
	}
	if plan.Proc == nil {
		return nil
	}
	fn := plan.Proc
	ast.MarkCaptures(fn)
	c := newFuncLowerer(l.s, l.proc, fn.Owner, l.names)
	c.src = l.src
	c.base = l.className(fn.Owner) + "$" + fn.Name
	c.begin(fn.Name, lir.FuncQuery, true, fn.Result, fn.Span)
	for _, p := range fn.Params {
		c.addParam(p.Name, p.Type, p.Sym)
	}
	if err := c.lowerBody(context{}, fn); err != nil {
		return err
	}
	f, err := c.finish()
	if err != nil {
		return err
	}
	l.proc.Methods = append(l.proc.Methods, f)
	return nil
}

// buildKeyType emits the key class and its comparer. Compare orders by the
// key fields in turn, honoring descending keys; Equals and GetHashCode
// combine the runtime equality and hash of every key field.
func (l *funcLowerer) buildKeyType(kt *query.KeyType) error {
	l.proc.Types = append(l.proc.Types, &lir.TypeDef{Name: l.className(kt.Type), Type: kt.Type, Synthesized: true})
	cmp := &lir.TypeDef{Name: l.className(kt.Comparer), Type: kt.Comparer, Synthesized: true}
	obj := l.b.Object

	compare, err := l.comparerMethod(kt, "Compare", l.b.Int, 2, func(c *funcLowerer, rows []lir.Place) {
		less, greater := c.newBlock(), c.newBlock()
		for _, k := range kt.Keys {
			a := lir.Copy(rows[0].WithField(kt.Type, k.Name), k.Type)
			b := lir.Copy(rows[1].WithField(kt.Type, k.Name), k.Type)
			lt, gt := less, greater
			if k.Descending {
				lt, gt = gt, lt
			}
			c.branchTo(lir.Condition{Kind: lir.CondCompare, Op: ast.BinLt, Left: a, Right: b}, lt, 0)
			c.branchTo(lir.Condition{Kind: lir.CondCompare, Op: ast.BinGt, Left: a, Right: b}, gt, 0)
		}
		for _, r := range []struct {
			at lir.BlockID
			v  int64
		}{{lir.NoBlockID, 0}, {less, -1}, {greater, 1}} {
			if r.at != lir.NoBlockID {
				c.startBlock(r.at)
			}
			v := c.intConst(r.v)
			c.returnValue(&v)
		}
	})
	if err != nil {
		return err
	}

	equals, err := l.comparerMethod(kt, "Equals", l.b.Bool, 2, func(c *funcLowerer, rows []lir.Place) {
		no := c.newBlock()
		for _, k := range kt.Keys {
			a := c.coerce(lir.Copy(rows[0].WithField(kt.Type, k.Name), k.Type), obj)
			b := c.coerce(lir.Copy(rows[1].WithField(kt.Type, k.Name), k.Type), obj)
			eq := c.callIntrinsic(lir.IntrinsicEquals, l.b.Bool, a, b)
			c.branchTo(lir.Condition{Kind: lir.CondFalse, Value: eq}, no, 0)
		}
		yes := c.boolConst(true)
		c.returnValue(&yes)
		c.startBlock(no)
		f := c.boolConst(false)
		c.returnValue(&f)
	})
	if err != nil {
		return err
	}

	hash, err := l.comparerMethod(kt, "GetHashCode", l.b.Int, 1, func(c *funcLowerer, rows []lir.Place) {
		h := c.newTemp(l.b.Int, "h")
		c.assignOp(h, c.intConst(17))
		for _, k := range kt.Keys {
			v := c.coerce(lir.Copy(rows[0].WithField(kt.Type, k.Name), k.Type), obj)
			kh := c.callIntrinsic(lir.IntrinsicHash, l.b.Int, v)
			scaled := c.binary(l.b.Int, ast.BinMul, lir.Copy(h, l.b.Int), c.intConst(31))
			c.assignOp(h, c.binary(l.b.Int, ast.BinAdd, scaled, kh))
		}
		out := lir.Copy(h, l.b.Int)
		c.returnValue(&out)
	})
	if err != nil {
		return err
	}
	cmp.Methods = append(cmp.Methods, compare, equals, hash)
	l.proc.Types = append(l.proc.Types, cmp)
	return nil
}

// comparerMethod builds an instance method of kt's comparer whose object
// arguments are cast to the key class up front.
func (l *funcLowerer) comparerMethod(kt *query.KeyType, name string, result types.TypeID, arity int, body func(c *funcLowerer, rows []lir.Place)) (*lir.Func, error) {
	c := newFuncLowerer(l.s, l.proc, kt.Comparer, l.names)
	c.src = l.src
	c.base = l.base
	c.begin(name, lir.FuncQuery, false, result, l.srcSpan())
	c.f.Virtual = true
	c.addThis(kt.Comparer)
	params := make([]lir.LocalID, arity)
	for i := range params {
		params[i] = c.addParam(string(rune('x'+i)), l.b.Object, symbols.NoSymbolID)
	}
	rows := make([]lir.Place, arity)
	for i, p := range params {
		rows[i] = c.newTemp(kt.Type, "row")
		c.assign(rows[i], lir.RValue{Kind: lir.RValueCast, Cast: lir.CastOp{
			Kind:   ast.CastRef,
			Value:  lir.Copy(lir.LocalPlace(p), l.b.Object),
			Target: kt.Type,
		}})
	}
	body(c, rows)
	return c.finish()
}
