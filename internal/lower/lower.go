// Package lower rewrites typed procedure bodies into the block form of
// package lir. One Session lowers the procedures of one module; procedures
// may be lowered concurrently because they share only the mutex-guarded
// type interner and symbol table.
package lower

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

var (
	// ErrMalformed reports input the lowering cannot accept.
	ErrMalformed = errors.New("lower: malformed input")
	// ErrInternal reports a state the lowering should never reach.
	ErrInternal = errors.New("lower: internal error")
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}

func internalErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternal, fmt.Sprintf(format, args...))
}

type internalPanic struct{ msg string }

// internalf aborts the current procedure; LowerProc turns it into ErrInternal.
func internalf(format string, args ...any) {
	panic(internalPanic{msg: fmt.Sprintf(format, args...)})
}

// Options tunes contract instrumentation and foreach semantics.
type Options struct {
	// MaxOldDepth caps how many array levels an old-value snapshot copies.
	MaxOldDepth int
	// InternalContracts enables compiler-generated assumptions such as the
	// array foreach index bound.
	InternalContracts bool
	// NullSafeForeach makes every foreach terminate normally on a null source.
	NullSafeForeach bool
	// CheckInvariantsInCtors calls CheckInvariant(true) at the end of public
	// constructors of types that declare invariants.
	CheckInvariantsInCtors bool
}

// DefaultOptions returns the settings used when no configuration is given.
func DefaultOptions() Options {
	return Options{
		MaxOldDepth:            3,
		InternalContracts:      true,
		CheckInvariantsInCtors: true,
	}
}

// Proc is the lowered form of one source procedure together with the
// declarations synthesized while lowering it.
type Proc struct {
	Owner types.TypeID
	Func  *lir.Func
	// Methods are synthesized static methods of the owning type (lambdas
	// with no live environment, query procedures).
	Methods []*lir.Func
	// Types are synthesized closure environments, state machines and query
	// helper types, in creation order.
	Types []*lir.TypeDef
}

// Funcs returns every lowered function the procedure contributed.
func (p *Proc) Funcs() []*lir.Func {
	if p == nil {
		return nil
	}
	out := make([]*lir.Func, 0, 1+len(p.Methods))
	if p.Func != nil {
		out = append(out, p.Func)
	}
	out = append(out, p.Methods...)
	for _, td := range p.Types {
		out = append(out, td.Methods...)
	}
	return out
}

func (p *Proc) merge(o *Proc) {
	if o == nil {
		return
	}
	if o.Func != nil {
		p.Methods = append(p.Methods, o.Func)
	}
	p.Methods = append(p.Methods, o.Methods...)
	p.Types = append(p.Types, o.Types...)
}

func (p *Proc) validate(typesIn *types.Interner) error {
	var errs []error
	for _, f := range p.Funcs() {
		if err := lir.ValidateFunc(f, typesIn); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Session lowers the procedures of one module.
type Session struct {
	Module *ast.Module
	Types  *types.Interner
	Syms   *symbols.Table
	Opts   Options

	mu         sync.Mutex
	done       map[*ast.Func]*procEntry
	invariants map[types.TypeID]*Proc
	hasInv     map[types.TypeID]bool
}

// NewSession prepares lowering of m. It registers the CheckInvariant
// signature of every type with invariants up front so constructors can
// call it regardless of lowering order.
func NewSession(m *ast.Module, opts Options) *Session {
	s := &Session{
		Module:     m,
		Types:      m.Types,
		Syms:       m.Symbols,
		Opts:       opts,
		done:       make(map[*ast.Func]*procEntry),
		invariants: make(map[types.TypeID]*Proc),
		hasInv:     make(map[types.TypeID]bool),
	}
	b := s.Types.Builtins()
	for _, d := range m.Decls {
		if len(s.invariantClauses(d)) == 0 {
			continue
		}
		s.hasInv[d.Type] = true
		s.Types.AddMethod(d.Type, types.Method{
			Name:    CheckInvariantName,
			Params:  []types.TypeID{b.Bool},
			Result:  b.Bool,
			Virtual: true,
		})
	}
	return s
}

// procEntry holds the one lowering of a procedure. Concurrent callers for
// the same procedure wait on once instead of lowering it twice.
type procEntry struct {
	once sync.Once
	proc *Proc
	err  error
}

// LowerProc lowers fn. Lowering the same procedure again, or concurrently,
// returns the result of the first lowering. On error nothing of fn is
// emitted.
func (s *Session) LowerProc(fn *ast.Func) (*Proc, error) {
	if fn == nil {
		return nil, malformed("nil procedure")
	}
	s.mu.Lock()
	e, ok := s.done[fn]
	if !ok {
		e = &procEntry{}
		s.done[fn] = e
	}
	s.mu.Unlock()

	e.once.Do(func() {
		e.proc, e.err = s.lowerProc(fn)
	})
	return e.proc, e.err
}

func (s *Session) lowerProc(fn *ast.Func) (p *Proc, err error) {
	defer recoverInternal(fn.Name, &err)
	if fn.Body == nil {
		return nil, malformed("%s: procedure has no body", fn.Name)
	}
	ast.MarkCaptures(fn)

	p = &Proc{Owner: fn.Owner}
	l := newFuncLowerer(s, p, fn.Owner, &nameSeq{})
	f, err := l.lowerMethod(fn)
	if err != nil {
		return nil, err
	}
	p.Func = f
	if err := p.validate(s.Types); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInternal, fn.Name, err)
	}
	return p, nil
}

func recoverInternal(name string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	if ip, ok := r.(internalPanic); ok {
		*err = fmt.Errorf("%w: %s: %s", ErrInternal, name, ip.msg)
		return
	}
	*err = fmt.Errorf("%w: %s: %v", ErrInternal, name, r)
}

// LowerModule lowers every procedure of m in declaration order and
// assembles the result. The driver offers a parallel variant.
func LowerModule(m *ast.Module, opts Options) (*lir.Module, error) {
	s := NewSession(m, opts)
	procs := make([][]*Proc, len(m.Decls))
	for i, d := range m.Decls {
		ps, err := s.LowerDecl(d)
		if err != nil {
			return nil, err
		}
		procs[i] = ps
	}
	return Assemble(m, procs), nil
}

// LowerDecl lowers the methods of d followed by its invariant checker.
func (s *Session) LowerDecl(d *ast.TypeDecl) ([]*Proc, error) {
	var out []*Proc
	for _, fn := range d.Methods {
		p, err := s.LowerProc(fn)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	p, err := s.LowerInvariant(d)
	if err != nil {
		return nil, err
	}
	if p != nil {
		out = append(out, p)
	}
	return out, nil
}

// Assemble merges lowered procedures into a module. procs[i] holds the
// procedures of m.Decls[i]; synthesized types follow their owning type.
func Assemble(m *ast.Module, procs [][]*Proc) *lir.Module {
	out := &lir.Module{Name: m.Name}
	for i, d := range m.Decls {
		td := &lir.TypeDef{Name: d.Name, Type: d.Type}
		var staged []*lir.TypeDef
		if i < len(procs) {
			for _, p := range procs[i] {
				if p == nil {
					continue
				}
				if p.Func != nil {
					td.Methods = append(td.Methods, p.Func)
				}
				td.Methods = append(td.Methods, p.Methods...)
				staged = append(staged, p.Types...)
			}
		}
		out.Types = append(out.Types, td)
		out.Types = append(out.Types, staged...)
	}
	return out
}
