package ast

import (
	"github.com/hesam/SketchSharp-sub001/internal/source"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// FuncFlags carries procedure modifiers.
type FuncFlags uint16

const (
	FuncStatic FuncFlags = 1 << iota
	FuncPublic
	FuncCtor
	FuncVirtual
	// FuncGenerator marks a body containing yield statements.
	FuncGenerator
	// FuncCapturesThis marks procedures whose receiver is used by a nested procedure.
	FuncCapturesThis
	// FuncSynthesized marks procedures created during lowering.
	FuncSynthesized
)

// Param is a formal parameter. NonNull marks a reference parameter whose
// type forbids null.
type Param struct {
	Sym     symbols.SymbolID
	Name    string
	Type    types.TypeID
	NonNull bool
	Span    source.Span
}

// Func is a method, constructor or anonymous nested procedure.
type Func struct {
	Name   string
	Owner  types.TypeID
	Params []Param
	Result types.TypeID
	Body   *Block
	// Scope holds the parameters; the body block's scope is its child.
	Scope *Scope
	// BaseCall is the chained constructor call that precedes the body.
	BaseCall *Expr
	Contract *Contract
	Flags    FuncFlags
	Span     source.Span
}

func (f *Func) IsStatic() bool     { return f.Flags&FuncStatic != 0 }
func (f *Func) IsPublic() bool     { return f.Flags&FuncPublic != 0 }
func (f *Func) IsCtor() bool       { return f.Flags&FuncCtor != 0 }
func (f *Func) IsGenerator() bool  { return f.Flags&FuncGenerator != 0 }
func (f *Func) CapturesThis() bool { return f.Flags&FuncCapturesThis != 0 }

// Clause is a boolean contract condition with its source text, which is
// used verbatim in violation messages.
type Clause struct {
	Cond *Expr
	Text string
	Span source.Span
}

// ThrowsClause states a condition that must hold when the procedure exits
// by throwing an exception of Type.
type ThrowsClause struct {
	Type types.TypeID
	Cond *Expr
	Text string
	Span source.Span
}

// Contract groups the specification clauses of a procedure.
type Contract struct {
	Requires []Clause
	Ensures  []Clause
	Throws   []ThrowsClause
}

// IsEmpty reports whether the contract has no clauses.
func (c *Contract) IsEmpty() bool {
	return c == nil || len(c.Requires)+len(c.Ensures)+len(c.Throws) == 0
}
