// Package samples holds small programs built directly as typed trees. The
// command line lowers and runs them by name, and the lowering and
// interpreter tests use them as end-to-end fixtures: every sample records
// the console output its Main method must produce.
package samples

import (
	"slices"
	"strings"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// EntryMethod is the static method every sample starts in.
const EntryMethod = "Main"

// Program is a built sample ready for lowering.
type Program struct {
	Module *ast.Module
	// Entry declares the static EntryMethod.
	Entry types.TypeID
}

// Sample is a named program with its expected console output.
type Sample struct {
	Name    string
	Summary string
	// Output lists the lines printed by EntryMethod.
	Output []string
	build  func(k *kit)
}

// Build constructs a fresh program. Each call uses its own interner and
// symbol table, so built programs never share state.
func (s Sample) Build() *Program {
	k := newKit(s.Name)
	s.build(k)
	return &Program{Module: k.mod, Entry: k.main.Type}
}

// Want is the expected output as written to the console.
func (s Sample) Want() string {
	if len(s.Output) == 0 {
		return ""
	}
	return strings.Join(s.Output, "\n") + "\n"
}

var registry = []Sample{
	loopsSample,
	switchSample,
	closuresSample,
	iteratorsSample,
	exceptionsSample,
	contractsSample,
	resourcesSample,
	valuesSample,
	queriesSample,
	quantifiersSample,
}

// All returns every sample sorted by name.
func All() []Sample {
	out := slices.Clone(registry)
	slices.SortFunc(out, func(a, b Sample) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Names lists the sample names in sorted order.
func Names() []string {
	all := All()
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.Name
	}
	return out
}

// Lookup finds a sample by name.
func Lookup(name string) (Sample, bool) {
	for _, s := range registry {
		if s.Name == name {
			return s, true
		}
	}
	return Sample{}, false
}

// kit bundles the builder state of one program under construction.
type kit struct {
	in   *types.Interner
	b    *ast.Builder
	wk   types.WellKnown
	mod  *ast.Module
	main *ast.TypeDecl
}

func newKit(name string) *kit {
	in := types.NewInterner()
	syms := symbols.NewTable()
	k := &kit{
		in:  in,
		b:   ast.NewBuilder(in, syms),
		wk:  in.WellKnown(),
		mod: &ast.Module{Name: name, Types: in, Symbols: syms},
	}
	k.main = k.class("Program", types.KindClass)
	return k
}

func (k *kit) class(name string, kind types.Kind) *ast.TypeDecl {
	d := k.b.Class(name, kind, types.ClassPublic)
	k.mod.Decls = append(k.mod.Decls, d)
	return d
}

// entry declares Main with the given statements.
func (k *kit) entry(stmts ...ast.Stmt) {
	k.b.Method(k.main, EntryMethod, k.b.B.Void, nil, k.b.Block(stmts...), ast.FuncStatic|ast.FuncPublic)
}

// static declares a public static helper on the program class.
func (k *kit) static(name string, result types.TypeID, params []ast.Param, stmts ...ast.Stmt) *ast.Func {
	return k.b.Method(k.main, name, result, params, k.b.Block(stmts...), ast.FuncStatic|ast.FuncPublic)
}

func (k *kit) print(e *ast.Expr) ast.Stmt {
	return k.b.Do(k.b.StaticCall(k.wk.Console, "WriteLine", e))
}

func (k *kit) say(s string) ast.Stmt {
	return k.print(k.b.Str(s))
}

func (k *kit) array(elem types.TypeID) types.TypeID {
	return k.in.Intern(types.MakeArray(elem))
}

func (k *kit) seq(elem types.TypeID) types.TypeID {
	return k.in.Intern(types.MakeEnumerable(elem))
}

func (k *kit) ints(vs ...int64) *ast.Expr {
	elems := make([]*ast.Expr, len(vs))
	for i, v := range vs {
		elems[i] = k.b.Int(v)
	}
	return k.b.ArrayLit(k.b.B.Int, elems...)
}

// incr is sym = sym + 1.
func (k *kit) incr(sym symbols.SymbolID) ast.Stmt {
	return k.b.Assign(k.b.Ref(sym), k.b.Add(k.b.Ref(sym), k.b.Int(1)))
}
