package lower

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// CheckInvariantName is the synthesized method that evaluates the object
// invariant. It takes throwOnFailure and reports whether the invariant holds.
const CheckInvariantName = "CheckInvariant"

// invariantClauses collects the invariants of d, the invariants declared on
// the interfaces it implements, and the witness clauses of its model fields.
func (s *Session) invariantClauses(d *ast.TypeDecl) []ast.Clause {
	if d == nil {
		return nil
	}
	var out []ast.Clause
	seen := map[types.TypeID]bool{}
	var visit func(decl *ast.TypeDecl)
	visit = func(decl *ast.TypeDecl) {
		if decl == nil || seen[decl.Type] {
			return
		}
		seen[decl.Type] = true
		out = append(out, decl.Invariants...)
		for _, mf := range decl.ModelFields {
			out = append(out, mf.Satisfies...)
		}
		info, ok := s.Types.ClassInfo(decl.Type)
		if !ok {
			return
		}
		for _, iface := range info.Interfaces {
			visit(s.Module.Decl(iface))
		}
	}
	visit(d)
	return out
}

// HasInvariant reports whether the type id gets a synthesized CheckInvariant.
func (s *Session) HasInvariant(id types.TypeID) bool {
	return s.hasInv[id]
}

// LowerInvariant builds CheckInvariant for d, or returns nil when d has no
// invariants. A base type with invariants is checked first.
func (s *Session) LowerInvariant(d *ast.TypeDecl) (p *Proc, err error) {
	if d == nil || !s.hasInv[d.Type] {
		return nil, nil
	}
	s.mu.Lock()
	if p, ok := s.invariants[d.Type]; ok {
		s.mu.Unlock()
		return p, nil
	}
	s.mu.Unlock()
	defer recoverInternal(d.Name+"."+CheckInvariantName, &err)

	p = &Proc{Owner: d.Type}
	l := newFuncLowerer(s, p, d.Type, &nameSeq{})
	l.base = l.className(d.Type) + "$" + CheckInvariantName
	l.begin(CheckInvariantName, lir.FuncInvariant, false, l.b.Bool, d.Span)
	l.f.Synthesized = true
	l.f.Virtual = true
	l.addThis(d.Type)
	l.ownsThis = true
	throwOn := l.addParam("throwOnFailure", l.b.Bool, 0)
	throwOnFailure := lir.Copy(lir.LocalPlace(throwOn), l.b.Bool)
	this := lir.Copy(lir.LocalPlace(l.thisLocal), d.Type)
	no := l.boolConst(false)

	if info, ok := s.Types.ClassInfo(d.Type); ok && info.Base != types.NoTypeID && s.hasInv[info.Base] {
		ok := l.callMethod(l.b.Bool, info.Base, CheckInvariantName, false, &this, throwOnFailure)
		next := l.newBlock()
		l.branchTo(lir.Condition{Kind: lir.CondTrue, Value: ok}, next, 0)
		l.returnValue(&no)
		l.startBlock(next)
	}

	ctx := context{}
	for _, c := range s.invariantClauses(d) {
		if c.Cond == nil {
			return nil, malformed("%s: invariant without a condition", d.Name)
		}
		msg := assertMessage("Invariant", c.Text)
		if err := l.checkClause(ctx, c.Cond, func(context) error {
			quiet := l.newBlock()
			l.branchTo(lir.Condition{Kind: lir.CondFalse, Value: throwOnFailure}, quiet, lir.BranchInverted)
			l.throwNew(l.wk.Invariant, msg)
			l.startBlock(quiet)
			l.returnValue(&no)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	yes := l.boolConst(true)
	l.returnValue(&yes)
	f, err := l.finish()
	if err != nil {
		return nil, err
	}
	p.Func = f
	if err := p.validate(s.Types); err != nil {
		return nil, internalErr("%s.%s: %v", d.Name, CheckInvariantName, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.invariants[d.Type]; ok {
		return prev, nil
	}
	s.invariants[d.Type] = p
	return p, nil
}
