// Package testkit holds the fixtures and structural checks shared by the
// lowering, VM and driver tests.
package testkit

import (
	"testing"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/lower"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// EntryMethod is the static method Fixture.Main declares.
const EntryMethod = "Main"

// Fixture is a one-class program whose methods are supplied by a test.
type Fixture struct {
	In   *types.Interner
	B    *ast.Builder
	Mod  *ast.Module
	Prog *ast.TypeDecl
}

// NewFixture returns a module named "test" declaring the class Program.
func NewFixture() *Fixture {
	in := types.NewInterner()
	syms := symbols.NewTable()
	f := &Fixture{In: in, B: ast.NewBuilder(in, syms)}
	f.Mod = &ast.Module{Name: "test", Types: in, Symbols: syms}
	f.Prog = f.B.Class("Program", types.KindClass, types.ClassPublic)
	f.Mod.Decls = append(f.Mod.Decls, f.Prog)
	return f
}

// Static declares a public static method on Program.
func (f *Fixture) Static(name string, result types.TypeID, params []ast.Param, stmts ...ast.Stmt) *ast.Func {
	return f.B.Method(f.Prog, name, result, params, f.B.Block(stmts...), ast.FuncStatic|ast.FuncPublic)
}

// Main declares the void, parameterless entry method.
func (f *Fixture) Main(stmts ...ast.Stmt) *ast.Func {
	return f.Static(EntryMethod, f.B.B.Void, nil, stmts...)
}

// Lower lowers m with the default options and fails the test unless the
// result validates and passes CheckLoweredInvariants.
func Lower(t testing.TB, m *ast.Module) *lir.Module {
	t.Helper()
	mod, err := lower.LowerModule(m, lower.DefaultOptions())
	if err != nil {
		t.Fatalf("lowering failed: %v", err)
	}
	if err := lir.Validate(mod, m.Types); err != nil {
		t.Fatalf("lir validation failed: %v", err)
	}
	if err := CheckLoweredInvariants(m, mod); err != nil {
		t.Fatalf("lowered invariants: %v", err)
	}
	return mod
}
