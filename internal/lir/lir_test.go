package lir_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

func gotoTerm(target lir.BlockID) lir.Terminator {
	return lir.Terminator{Kind: lir.TermGoto, Goto: lir.GotoTerm{Target: target}}
}

func retTerm() lir.Terminator {
	return lir.Terminator{Kind: lir.TermReturn}
}

func blocks(terms ...lir.Terminator) []lir.Block {
	out := make([]lir.Block, len(terms))
	for i, t := range terms {
		out[i] = lir.Block{ID: lir.BlockID(i), Term: t}
	}
	return out
}

func popException(local lir.LocalID) lir.Instr {
	return lir.Instr{Kind: lir.InstrPopException, PopException: lir.PopExceptionInstr{Dst: lir.LocalPlace(local)}}
}

// tryCatchFunc builds: bb0 try -> bb2; bb1 catch handler -> bb2; bb2 return.
func tryCatchFunc(in *types.Interner) *lir.Func {
	f := &lir.Func{
		Name:   "f",
		Result: in.Builtins().Void,
		Locals: []lir.Local{{Name: "e", Type: in.WellKnown().Exception}},
		Blocks: blocks(
			lir.Terminator{Kind: lir.TermGoto, Goto: lir.GotoTerm{Target: 2, Flags: lir.BranchLeave}},
			lir.Terminator{Kind: lir.TermGoto, Goto: lir.GotoTerm{Target: 2, Flags: lir.BranchLeave}},
			retTerm(),
		),
		Handlers: []lir.Handler{{
			Kind: lir.HandlerCatch, TryStart: 0, TryEnd: 1, HandlerStart: 1, HandlerEnd: 2,
			Filter: in.WellKnown().Exception,
		}},
	}
	f.Blocks[1].Instrs = []lir.Instr{popException(0)}
	return f
}

func TestValidateFunc_Valid(t *testing.T) {
	in := types.NewInterner()
	if err := lir.ValidateFunc(tryCatchFunc(in), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateFunc_Invalid(t *testing.T) {
	in := types.NewInterner()
	tests := []struct {
		name    string
		mutate  func(f *lir.Func)
		wantErr string
	}{
		{
			name:    "unterminated",
			mutate:  func(f *lir.Func) { f.Blocks[2].Term = lir.Terminator{} },
			wantErr: "unterminated",
		},
		{
			name:    "missing target",
			mutate:  func(f *lir.Func) { f.Blocks[0].Term = gotoTerm(9) },
			wantErr: "does not exist",
		},
		{
			name:    "catch without pop",
			mutate:  func(f *lir.Func) { f.Blocks[1].Instrs = nil },
			wantErr: "pop_exception",
		},
		{
			name: "overlapping ranges",
			mutate: func(f *lir.Func) {
				f.Handlers[0].HandlerStart = 0
			},
			wantErr: "overlap",
		},
		{
			name:    "rethrow outside catch",
			mutate:  func(f *lir.Func) { f.Blocks[2].Term = lir.Terminator{Kind: lir.TermRethrow} },
			wantErr: "rethrow outside",
		},
		{
			name: "value returned from void",
			mutate: func(f *lir.Func) {
				f.Blocks[2].Term.Return = lir.ReturnTerm{HasValue: true, Value: lir.IntConst(1, in.Builtins().Int)}
			},
			wantErr: "returns a value",
		},
		{
			name: "unknown local",
			mutate: func(f *lir.Func) {
				f.Blocks[1].Instrs[0] = popException(7)
			},
			wantErr: "L7 does not exist",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tryCatchFunc(in)
			tt.mutate(f)
			err := lir.ValidateFunc(f, in)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CrossingRegions(t *testing.T) {
	in := types.NewInterner()
	f := &lir.Func{
		Name:   "g",
		Result: in.Builtins().Void,
		Blocks: blocks(gotoTerm(1), gotoTerm(2), gotoTerm(3), lir.Terminator{Kind: lir.TermEndFinally}, lir.Terminator{Kind: lir.TermEndFinally}),
		Handlers: []lir.Handler{
			{Kind: lir.HandlerFinally, TryStart: 0, TryEnd: 2, HandlerStart: 3, HandlerEnd: 4},
			{Kind: lir.HandlerFinally, TryStart: 1, TryEnd: 3, HandlerStart: 4, HandlerEnd: 5},
		},
	}
	f.Blocks[2].Term = retTerm()
	err := lir.ValidateFunc(f, in)
	if err == nil || !strings.Contains(err.Error(), "cross") {
		t.Fatalf("expected crossing-region error, got %v", err)
	}
}

func TestCompact_PrunesAndRemaps(t *testing.T) {
	in := types.NewInterner()
	// bb0 -> bb2; bb1 dead; bb2 try -> bb4; bb3 catch -> bb4; bb4 return; bb5 dead
	f := &lir.Func{
		Name:   "h",
		Result: in.Builtins().Void,
		Locals: []lir.Local{{Name: "e", Type: in.WellKnown().Exception}},
		Blocks: blocks(gotoTerm(2), retTerm(), gotoTerm(4), gotoTerm(4), retTerm(), gotoTerm(1)),
		Handlers: []lir.Handler{{
			Kind: lir.HandlerCatch, TryStart: 2, TryEnd: 3, HandlerStart: 3, HandlerEnd: 4,
			Filter: in.WellKnown().Exception,
		}},
	}
	f.Blocks[3].Instrs = []lir.Instr{popException(0)}

	lir.Compact(f)

	if len(f.Blocks) != 4 {
		t.Fatalf("expected 4 blocks after compaction, got %d", len(f.Blocks))
	}
	if got := f.Blocks[0].Term.Goto.Target; got != 1 {
		t.Fatalf("entry goto retargeted to bb%d, want bb1", got)
	}
	h := f.Handlers[0]
	if h.TryStart != 1 || h.TryEnd != 2 || h.HandlerStart != 2 || h.HandlerEnd != 3 {
		t.Fatalf("handler bounds not remapped: %+v", h)
	}
	if err := lir.ValidateFunc(f, in); err != nil {
		t.Fatalf("compacted function invalid: %v", err)
	}
}

func TestCompact_DropsDeadRegion(t *testing.T) {
	in := types.NewInterner()
	f := &lir.Func{
		Name:   "dead",
		Result: in.Builtins().Void,
		Blocks: blocks(retTerm(), gotoTerm(3), lir.Terminator{Kind: lir.TermEndFinally}, retTerm()),
		Handlers: []lir.Handler{{
			Kind: lir.HandlerFinally, TryStart: 1, TryEnd: 2, HandlerStart: 2, HandlerEnd: 3,
		}},
	}
	lir.Compact(f)
	if len(f.Blocks) != 1 || len(f.Handlers) != 0 {
		t.Fatalf("dead region should vanish, got %d blocks %d handlers", len(f.Blocks), len(f.Handlers))
	}
}

func TestReorder_FollowsLayout(t *testing.T) {
	in := types.NewInterner()
	// allocation order: bb0 entry, bb1 join (placed last), bb2 body
	f := &lir.Func{
		Name:   "r",
		Result: in.Builtins().Void,
		Blocks: blocks(gotoTerm(2), retTerm(), gotoTerm(1)),
		Handlers: []lir.Handler{{
			Kind: lir.HandlerFinally, TryStart: 2, TryEnd: 1, HandlerStart: 1, HandlerEnd: lir.NoBlockID,
		}},
	}
	lir.Reorder(f, []lir.BlockID{0, 2, 1})
	if f.Blocks[1].Term.Goto.Target != 2 || f.Blocks[0].Term.Goto.Target != 1 {
		t.Fatalf("targets not remapped: %+v", f.Blocks)
	}
	h := f.Handlers[0]
	if h.TryStart != 1 || h.TryEnd != 2 || h.HandlerEnd != 3 {
		t.Fatalf("handler bounds = %+v", h)
	}
}

func TestDumpFunc(t *testing.T) {
	in := types.NewInterner()
	b := in.Builtins()
	f := tryCatchFunc(in)
	f.Locals = append(f.Locals, lir.Local{Name: "x", Type: b.Int})
	f.Blocks[2].Term = lir.Terminator{Kind: lir.TermBranch, Branch: lir.BranchTerm{
		Cond: lir.Condition{
			Kind:  lir.CondCompare,
			Op:    ast.BinLt,
			Left:  lir.Copy(lir.LocalPlace(1), b.Int),
			Right: lir.IntConst(10, b.Int),
		},
		Target: 0, Else: 1, Flags: lir.BranchInverted | lir.BranchUnsigned,
	}}
	var buf bytes.Buffer
	if err := lir.DumpFunc(&buf, f, in); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"H0: catch Exception try [bb0, bb1) handler [bb1, bb2)",
		"L0 = pop_exception",
		"goto bb2 [leave]",
		"branch L1 < 10 [inverted,unsigned] -> bb0 else bb1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}
