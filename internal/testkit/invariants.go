package testkit

import (
	"fmt"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/source"
)

// CheckLoweredInvariants runs structural checks that lir.Validate does not
// cover because they need the source module:
// 1) every source procedure has an unsynthesized lowered counterpart with
// the same name, owner and staticness
// 2) lowered methods keep their owner's type and span inside the owning
// declaration's span
// 3) synthesized types only hold synthesized procedures
func CheckLoweredInvariants(m *ast.Module, mod *lir.Module) error {
	if m == nil || mod == nil {
		return fmt.Errorf("nil module")
	}
	for _, d := range m.Decls {
		td := mod.TypeDef(d.Type)
		if td == nil {
			if len(d.Methods) > 0 {
				return fmt.Errorf("%s: no lowered type definition", d.Name)
			}
			continue
		}
		if td.Synthesized {
			return fmt.Errorf("%s: declared type marked synthesized", d.Name)
		}
		for _, fn := range d.Methods {
			if !hasCounterpart(td, fn) {
				return fmt.Errorf("%s.%s: not lowered", d.Name, fn.Name)
			}
		}
		for _, lf := range td.Methods {
			if lf.Owner != d.Type {
				return fmt.Errorf("%s.%s: owner is %d", d.Name, lf.Name, lf.Owner)
			}
			if !within(lf.Span, d.Span) {
				return fmt.Errorf("%s.%s: span %v outside declaration span %v", d.Name, lf.Name, lf.Span, d.Span)
			}
		}
	}
	for _, td := range mod.Types {
		if !td.Synthesized {
			continue
		}
		for _, lf := range td.Methods {
			if !lf.Synthesized {
				return fmt.Errorf("%s.%s: user procedure on synthesized type", td.Name, lf.Name)
			}
		}
	}
	return nil
}

func hasCounterpart(td *lir.TypeDef, fn *ast.Func) bool {
	for _, lf := range td.Methods {
		if lf.Name == fn.Name && lf.Static == fn.IsStatic() && !lf.Synthesized {
			return true
		}
	}
	return false
}

// within reports whether inner lies inside outer. Empty spans carry no
// position and always pass.
func within(inner, outer source.Span) bool {
	if inner.Empty() || outer.Empty() {
		return true
	}
	return outer.Cover(inner) == outer
}
