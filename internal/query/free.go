package query

import (
	"strconv"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// freeVar is a value a synthesized query procedure receives from its
// caller: an outer variable, the receiver, a snapshot or the result.
type freeVar struct {
	name  string
	ty    types.TypeID
	arg   *ast.Expr
	param ast.Param
}

type freeKey struct {
	sym  symbols.SymbolID
	this bool
	res  bool
	old  *ast.Expr
}

// freeVars lists the values e reads from its surroundings in first-use
// order, together with a cloner that rewrites them as parameter reads.
type freeVars struct {
	b     *ast.Builder
	list  []*freeVar
	index map[freeKey]*freeVar
}

func collectFree(b *ast.Builder, e *ast.Expr) *freeVars {
	fv := &freeVars{b: b, index: make(map[freeKey]*freeVar)}
	bound := boundSymbols(e)
	ast.Visitor{Lambdas: true, Expr: func(x *ast.Expr) bool {
		switch d := x.Data.(type) {
		case ast.LocalData:
			if !bound[d.Sym] {
				name, _ := b.Syms.Get(d.Sym)
				fv.add(freeKey{sym: d.Sym}, name.Name, x)
			}
		case ast.ThisData:
			fv.add(freeKey{this: true}, "this$", x)
		case ast.ResultData:
			fv.add(freeKey{res: true}, "result$", x)
		case ast.OldData:
			fv.add(freeKey{old: x}, "old$"+strconv.Itoa(len(fv.list)), x)
			return false
		}
		return true
	}}.WalkExpr(e)
	return fv
}

func (fv *freeVars) add(k freeKey, name string, x *ast.Expr) {
	if _, ok := fv.index[k]; ok {
		return
	}
	v := &freeVar{name: name, ty: x.Type, arg: x}
	v.param = fv.b.Param(name, x.Type)
	fv.index[k] = v
	fv.list = append(fv.list, v)
}

func (fv *freeVars) lookup(x *ast.Expr) *freeVar {
	switch d := x.Data.(type) {
	case ast.LocalData:
		return fv.index[freeKey{sym: d.Sym}]
	case ast.ThisData:
		return fv.index[freeKey{this: true}]
	case ast.ResultData:
		return fv.index[freeKey{res: true}]
	case ast.OldData:
		return fv.index[freeKey{old: x}]
	}
	return nil
}

// cloner copies query parts into the synthesized procedure.
func (fv *freeVars) cloner() ast.Cloner {
	return ast.Cloner{Subst: func(x *ast.Expr) *ast.Expr {
		if v := fv.lookup(x); v != nil {
			return fv.b.Ref(v.param.Sym)
		}
		return nil
	}}
}

func (fv *freeVars) params() []ast.Param {
	out := make([]ast.Param, len(fv.list))
	for i, v := range fv.list {
		out[i] = v.param
	}
	return out
}

func (fv *freeVars) args() []*ast.Expr {
	out := make([]*ast.Expr, len(fv.list))
	for i, v := range fv.list {
		out[i] = v.arg
	}
	return out
}

// boundSymbols collects the variables introduced inside e: clause and
// quantifier variables, group keys, and everything nested procedures declare.
func boundSymbols(e *ast.Expr) map[symbols.SymbolID]bool {
	bound := make(map[symbols.SymbolID]bool)
	mark := func(syms ...symbols.SymbolID) {
		for _, s := range syms {
			if s.IsValid() {
				bound[s] = true
			}
		}
	}
	ast.Visitor{
		Lambdas: true,
		Expr: func(x *ast.Expr) bool {
			switch d := x.Data.(type) {
			case ast.QueryData:
				for _, cl := range d.Clauses {
					mark(cl.Var)
					for _, k := range cl.GroupKeys {
						mark(k.Sym)
					}
				}
			case ast.QuantifierData:
				mark(d.Var)
			case ast.LambdaData:
				if d.Func != nil {
					for _, p := range d.Func.Params {
						mark(p.Sym)
					}
				}
			}
			return true
		},
		Stmt: func(s *ast.Stmt) bool {
			switch d := s.Data.(type) {
			case ast.LetData:
				mark(d.Sym)
			case ast.ForEachData:
				mark(d.Var, d.Index)
			case ast.UsingData:
				mark(d.Var)
			case ast.FixedData:
				mark(d.Var)
			case ast.TryData:
				for _, c := range d.Catches {
					mark(c.Var)
				}
			}
			return true
		},
	}.WalkExpr(e)
	return bound
}
