package ast

import (
	"github.com/hesam/SketchSharp-sub001/internal/source"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
)

// Scope lists the variables a block declares. A capturable scope has at
// least one variable referenced from a nested procedure, so its variables
// live in a closure environment rather than in stack locals.
type Scope struct {
	Parent     *Scope
	Locals     []symbols.SymbolID
	Capturable bool
}

// Declares reports whether sym is declared directly in s.
func (s *Scope) Declares(sym symbols.SymbolID) bool {
	if s == nil {
		return false
	}
	for _, l := range s.Locals {
		if l == sym {
			return true
		}
	}
	return false
}

// Block represents a sequence of statements with its own scope.
type Block struct {
	Stmts []Stmt
	Scope *Scope
	Span  source.Span
}

// IsEmpty returns true if the block has no statements.
func (b *Block) IsEmpty() bool {
	return b == nil || len(b.Stmts) == 0
}

// LastStmt returns the last statement in the block, or nil if empty.
func (b *Block) LastStmt() *Stmt {
	if b.IsEmpty() {
		return nil
	}
	return &b.Stmts[len(b.Stmts)-1]
}
