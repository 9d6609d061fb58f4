package ast

import (
	"github.com/hesam/SketchSharp-sub001/internal/source"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// ModelField is a specification-only field whose value is witnessed by
// Satisfies clauses checked together with the object invariant.
type ModelField struct {
	Name      string
	Type      types.TypeID
	Satisfies []Clause
}

// TypeDecl is a class, struct or interface with its members.
type TypeDecl struct {
	Name        string
	Type        types.TypeID
	Methods     []*Func
	Invariants  []Clause
	ModelFields []ModelField
	Span        source.Span
}

// Module is the unit handed to lowering: typed declarations plus the
// interner and symbol table that give their ids meaning.
type Module struct {
	Name    string
	Decls   []*TypeDecl
	Types   *types.Interner
	Symbols *symbols.Table
}

// Decl returns the declaration for a nominal type id.
func (m *Module) Decl(id types.TypeID) *TypeDecl {
	for _, d := range m.Decls {
		if d.Type == id {
			return d
		}
	}
	return nil
}

// Method finds a declared method by owner and name.
func (m *Module) Method(owner types.TypeID, name string) *Func {
	d := m.Decl(owner)
	if d == nil {
		return nil
	}
	for _, fn := range d.Methods {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}
