package lower

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
)

// lowerPostconditions checks the normal postconditions at the return join.
func (l *funcLowerer) lowerPostconditions(ctx context, fn *ast.Func) error {
	if fn.Contract == nil || len(fn.Contract.Ensures) == 0 {
		return nil
	}
	return l.rethrowMarker(ctx, func(ctx context) error {
		for _, c := range fn.Contract.Ensures {
			if c.Cond == nil {
				return malformed("%s: postcondition without a condition", fn.Name)
			}
			msg := assertMessage("Postcondition", c.Text)
			if err := l.checkClause(ctx, c.Cond, func(context) error {
				l.throwNew(l.wk.Ensures, msg)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// lowerThrowsClauses protects body with one handler per exceptional
// postcondition. Each handler checks its condition and rethrows.
func (l *funcLowerer) lowerThrowsClauses(ctx context, fn *ast.Func, body func(context) error) error {
	specs := make([]catchSpec, 0, len(fn.Contract.Throws))
	for _, tc := range fn.Contract.Throws {
		filter, err := l.exceptionFilter(tc.Type)
		if err != nil {
			return err
		}
		msg := assertMessage("Exceptional postcondition", tc.Text)
		specs = append(specs, catchSpec{
			filter: filter,
			lower: func(ctx context, _ lir.Place) error {
				if tc.Cond != nil {
					if err := l.rethrowMarker(ctx, func(ctx context) error {
						return l.checkClause(ctx, tc.Cond, func(context) error {
							l.throwNew(l.wk.Ensures, msg)
							return nil
						})
					}); err != nil {
						return err
					}
				}
				l.setTerm(&lir.Terminator{Kind: lir.TermRethrow})
				return nil
			},
		})
	}
	return l.tryCatch(ctx, body, specs)
}
