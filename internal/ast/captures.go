package ast

import "github.com/hesam/SketchSharp-sub001/internal/symbols"

// MarkCaptures flags every scope whose variables are referenced from a
// nested procedure as capturable, and marks fn as capturing its receiver
// when a nested procedure uses this. It only ever sets flags, so running it
// over an already annotated tree is harmless.
func MarkCaptures(fn *Func) {
	if fn == nil {
		return
	}
	g := &captureGatherer{decl: make(map[symbols.SymbolID]scopeAt), root: fn}
	g.function(fn, 0)
}

type scopeAt struct {
	scope *Scope
	depth int
}

type captureGatherer struct {
	decl map[symbols.SymbolID]scopeAt
	root *Func
}

func (g *captureGatherer) declare(s *Scope, depth int) {
	if s == nil {
		return
	}
	for _, sym := range s.Locals {
		g.decl[sym] = scopeAt{scope: s, depth: depth}
	}
}

func (g *captureGatherer) function(fn *Func, depth int) {
	if fn.Scope == nil {
		fn.Scope = &Scope{}
		for _, p := range fn.Params {
			fn.Scope.Locals = append(fn.Scope.Locals, p.Sym)
		}
	}
	g.declare(fn.Scope, depth)
	g.expr(fn.BaseCall, depth)
	if fn.Contract != nil {
		for _, c := range fn.Contract.Requires {
			g.expr(c.Cond, depth)
		}
		for _, c := range fn.Contract.Ensures {
			g.expr(c.Cond, depth)
		}
		for _, c := range fn.Contract.Throws {
			g.expr(c.Cond, depth)
		}
	}
	g.block(fn.Body, depth)
}

func (g *captureGatherer) block(b *Block, depth int) {
	if b == nil {
		return
	}
	g.declare(b.Scope, depth)
	for i := range b.Stmts {
		g.stmt(&b.Stmts[i], depth)
	}
}

func (g *captureGatherer) stmt(s *Stmt, depth int) {
	g.stmtBlocks(s, depth)
	Visitor{
		Stmt: func(inner *Stmt) bool {
			if inner == s {
				return true
			}
			g.stmt(inner, depth)
			return false
		},
		Expr: func(e *Expr) bool {
			g.expr(e, depth)
			return false
		},
	}.WalkStmt(s)
}

// stmtBlocks registers the scopes of nested blocks before their bodies are
// visited, so references resolve to their declaring depth.
func (g *captureGatherer) stmtBlocks(s *Stmt, depth int) {
	var blocks []*Block
	switch d := s.Data.(type) {
	case IfData:
		blocks = append(blocks, d.Then, d.Else)
	case LoopData:
		blocks = append(blocks, d.Body)
	case ForData:
		blocks = append(blocks, d.Body)
	case ForEachData:
		blocks = append(blocks, d.Body)
	case SwitchData:
		for _, c := range d.Cases {
			blocks = append(blocks, c.Body)
		}
	case BlockData:
		blocks = append(blocks, d.Block)
	case TryData:
		blocks = append(blocks, d.Body, d.Finally)
		for _, c := range d.Catches {
			blocks = append(blocks, c.Body)
		}
	case LockData:
		blocks = append(blocks, d.Body)
	case UsingData:
		blocks = append(blocks, d.Body)
	case FixedData:
		blocks = append(blocks, d.Body)
	case AcquireData:
		blocks = append(blocks, d.Body)
	}
	for _, b := range blocks {
		if b != nil {
			g.declare(b.Scope, depth)
		}
	}
}

func (g *captureGatherer) expr(e *Expr, depth int) {
	Visitor{Expr: func(x *Expr) bool {
		switch d := x.Data.(type) {
		case LocalData:
			if at, ok := g.decl[d.Sym]; ok && at.depth < depth {
				at.scope.Capturable = true
			}
		case ThisData:
			if depth > 0 {
				g.root.Flags |= FuncCapturesThis
			}
		case LambdaData:
			if d.Func != nil {
				g.function(d.Func, depth+1)
			}
			return false
		}
		return true
	}}.WalkExpr(e)
}
