package lir

import (
	"sync"

	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// TypeDef groups the lowered methods of one type. Synthesized types are
// closure environments, iterator state machines and query helpers.
type TypeDef struct {
	Name        string
	Type        types.TypeID
	Synthesized bool
	Methods     []*Func
}

// Module is the output of lowering: every type with its lowered methods.
type Module struct {
	Name  string
	Types []*TypeDef

	mu      sync.Mutex
	methods map[methodKey]*Func
}

type methodKey struct {
	owner types.TypeID
	name  string
}

// TypeDef returns the definition for id, or nil.
func (m *Module) TypeDef(id types.TypeID) *TypeDef {
	for _, td := range m.Types {
		if td.Type == id {
			return td
		}
	}
	return nil
}

// AddMethods appends fns to the definition of owner, creating it when needed.
func (m *Module) AddMethods(owner types.TypeID, name string, synthesized bool, fns ...*Func) *TypeDef {
	td := m.TypeDef(owner)
	if td == nil {
		td = &TypeDef{Name: name, Type: owner, Synthesized: synthesized}
		m.Types = append(m.Types, td)
	}
	td.Methods = append(td.Methods, fns...)
	m.mu.Lock()
	m.methods = nil
	m.mu.Unlock()
	return td
}

// Method finds the lowered method name declared directly on owner.
func (m *Module) Method(owner types.TypeID, name string) *Func {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.methods == nil {
		m.methods = make(map[methodKey]*Func)
		for _, td := range m.Types {
			for _, fn := range td.Methods {
				m.methods[methodKey{owner: td.Type, name: fn.Name}] = fn
			}
		}
	}
	return m.methods[methodKey{owner: owner, name: name}]
}

// Funcs returns every lowered procedure in declaration order.
func (m *Module) Funcs() []*Func {
	var out []*Func
	for _, td := range m.Types {
		out = append(out, td.Methods...)
	}
	return out
}
