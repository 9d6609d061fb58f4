package lower

import (
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
)

type labelInfo struct {
	block  lir.BlockID
	placed bool
	// path is the protected-region nesting at the label, innermost first.
	path []*frame
}

type pendingGoto struct {
	block lir.BlockID
	label symbols.SymbolID
	path  []*frame
}

func (l *funcLowerer) label(sym symbols.SymbolID) *labelInfo {
	li, ok := l.labels[sym]
	if !ok {
		li = &labelInfo{block: l.newBlock()}
		l.labels[sym] = li
	}
	return li
}

func (l *funcLowerer) placeLabel(ctx context, sym symbols.SymbolID) error {
	li := l.label(sym)
	if li.placed {
		return malformed("label %s placed twice", l.s.Syms.Name(sym))
	}
	li.placed = true
	li.path = ctx.regionPath()
	l.gotoBlock(li.block, 0)
	l.startBlock(li.block)
	return nil
}

// lowerGoto jumps to the label block. Whether the jump leaves protected
// regions is only known once the label is placed, so gotos are checked in
// resolveGotos.
func (l *funcLowerer) lowerGoto(ctx context, sym symbols.SymbolID) error {
	li := l.label(sym)
	if l.terminated() {
		l.startBlock(l.newBlock())
	}
	l.gotos = append(l.gotos, pendingGoto{block: l.cur, label: sym, path: ctx.regionPath()})
	l.gotoBlock(li.block, 0)
	return nil
}

func (l *funcLowerer) resolveGotos() error {
	for _, g := range l.gotos {
		li := l.labels[g.label]
		if li == nil || !li.placed {
			return malformed("goto to undefined label %s", l.s.Syms.Name(g.label))
		}
		extra := len(g.path) - len(li.path)
		if extra < 0 || !sameFrames(g.path[extra:], li.path) {
			return malformed("goto %s enters a protected region", l.s.Syms.Name(g.label))
		}
		if extra == 0 {
			continue
		}
		for _, f := range g.path[:extra] {
			if f.kind == frameFinally {
				return internalErr("goto %s leaves a finally body", l.s.Syms.Name(g.label))
			}
		}
		l.f.Blocks[g.block].Term.Goto.Flags |= lir.BranchLeave
	}
	return nil
}

func sameFrames(a, b []*frame) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
