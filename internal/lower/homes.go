package lower

import (
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// home records where a source variable lives: a local of the declaring
// function, or a field of a closure environment or state machine.
type home struct {
	env   *envInfo
	field string
	place lir.Place
	ty    types.TypeID
}

func (l *funcLowerer) symbol(sym symbols.SymbolID) symbols.Symbol {
	s, ok := l.s.Syms.Get(sym)
	if !ok {
		internalf("unknown symbol %d", sym)
	}
	return s
}

// declareVar gives sym a home if it has none and returns its place.
func (l *funcLowerer) declareVar(sym symbols.SymbolID) lir.Place {
	if h, ok := l.homes[sym]; ok {
		return l.homePlace(h)
	}
	info := l.symbol(sym)
	var h home
	if l.hoist != nil {
		h = home{env: l.hoist, field: l.types.AddUniqueField(l.hoist.typ, info.Name, info.Type), ty: info.Type}
	} else {
		id := l.addLocal(info.Name, info.Type, 0, sym)
		h = home{place: lir.LocalPlace(id), ty: info.Type}
	}
	l.homes[sym] = h
	return l.homePlace(h)
}

// varPlace resolves a variable reference. Locals without a home yet are
// declared on first use; a parameter without one is a lowering bug.
func (l *funcLowerer) varPlace(sym symbols.SymbolID) (lir.Place, types.TypeID, error) {
	if h, ok := l.homes[sym]; ok {
		return l.homePlace(h), h.ty, nil
	}
	info := l.symbol(sym)
	switch info.Kind {
	case symbols.SymbolLocal, symbols.SymbolTemp:
		return l.declareVar(sym), info.Type, nil
	case symbols.SymbolParam:
		return lir.Place{}, types.NoTypeID, internalErr("parameter %s has no home", info.Name)
	default:
		return lir.Place{}, types.NoTypeID, malformed("%s is not a variable", info.Name)
	}
}

func (l *funcLowerer) homePlace(h home) lir.Place {
	if h.env == nil {
		return h.place
	}
	return l.envPlace(h.env).WithField(h.env.typ, h.field)
}

// envPlace returns the place holding a reference to e as seen from the
// function being built: the holder local in the function that created it,
// otherwise a walk over outer$ links starting at this.
func (l *funcLowerer) envPlace(e *envInfo) lir.Place {
	if e.owner == l {
		return e.holder
	}
	if l.thisLocal != lir.NoLocalID {
		p := lir.LocalPlace(l.thisLocal)
		for cur := l.selfEnv; cur != nil; cur = cur.parent {
			if cur == e {
				return p
			}
			p = p.WithField(cur.typ, outerField)
		}
	}
	if e.holderIn != nil {
		return l.envPlace(e.holderIn).WithField(e.holderIn.typ, e.holderField)
	}
	internalf("environment %s is not reachable from %s", e.name, l.f.Name)
	return lir.Place{}
}

// thisPlace resolves the source receiver.
func (l *funcLowerer) thisPlace(ctx context) (lir.Place, types.TypeID, error) {
	if l.ownsThis {
		return lir.LocalPlace(l.thisLocal), l.f.Locals[l.thisLocal].Type, nil
	}
	for e := ctx.env; e != nil; e = e.parent {
		if e.thisField != "" {
			return l.envPlace(e).WithField(e.typ, e.thisField), e.thisType, nil
		}
	}
	return lir.Place{}, types.NoTypeID, malformed("this used in a static context")
}
