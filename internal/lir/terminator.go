package lir

import "github.com/hesam/SketchSharp-sub001/internal/ast"

type TermKind uint8

const (
	TermNone TermKind = iota
	TermReturn
	TermGoto
	TermBranch
	TermSwitch
	TermThrow
	// TermRethrow rethrows the exception of the enclosing catch handler.
	TermRethrow
	// TermEndFinally ends a finally handler and resumes the pending transfer.
	TermEndFinally
	TermUnreachable
)

func (k TermKind) String() string {
	switch k {
	case TermNone:
		return "none"
	case TermReturn:
		return "return"
	case TermGoto:
		return "goto"
	case TermBranch:
		return "branch"
	case TermSwitch:
		return "switch"
	case TermThrow:
		return "throw"
	case TermRethrow:
		return "rethrow"
	case TermEndFinally:
		return "endfinally"
	case TermUnreachable:
		return "unreachable"
	default:
		return "term?"
	}
}

// BranchFlags annotate control transfers.
type BranchFlags uint8

const (
	// BranchInverted marks a condition whose sense was flipped during lowering.
	BranchInverted BranchFlags = 1 << iota
	// BranchUnordered makes a float comparison true when either operand is NaN.
	BranchUnordered
	// BranchUnsigned selects unsigned ordering.
	BranchUnsigned
	// BranchLeave marks a transfer out of one or more protected regions;
	// the finally handlers of the regions left run first.
	BranchLeave
)

type Terminator struct {
	Kind TermKind

	Return      ReturnTerm
	Goto        GotoTerm
	Branch      BranchTerm
	Switch      SwitchTerm
	Throw       ThrowTerm
	Unreachable struct{}
}

type ReturnTerm struct {
	HasValue bool
	Value    Operand
}

type GotoTerm struct {
	Target BlockID
	Flags  BranchFlags
}

type CondKind uint8

const (
	// CondTrue branches when Value is true.
	CondTrue CondKind = iota
	// CondFalse branches when Value is false.
	CondFalse
	// CondCompare branches when Left Op Right holds.
	CondCompare
)

// Condition is the test of a conditional branch.
type Condition struct {
	Kind  CondKind
	Value Operand
	Op    ast.BinaryOp
	Left  Operand
	Right Operand
}

// BranchTerm transfers to Target when Cond holds and to Else otherwise.
// Else is the block laid out next when the branch was emitted.
type BranchTerm struct {
	Cond   Condition
	Target BlockID
	Else   BlockID
	Flags  BranchFlags
}

// SwitchTerm jumps to Targets[Value] or to Default when out of range.
type SwitchTerm struct {
	Value   Operand
	Targets []BlockID
	Default BlockID
}

type ThrowTerm struct {
	Value Operand
}

// Successors returns the blocks control may reach directly from t.
func (t *Terminator) Successors() []BlockID {
	switch t.Kind {
	case TermGoto:
		return []BlockID{t.Goto.Target}
	case TermBranch:
		return []BlockID{t.Branch.Target, t.Branch.Else}
	case TermSwitch:
		out := make([]BlockID, 0, len(t.Switch.Targets)+1)
		out = append(out, t.Switch.Targets...)
		return append(out, t.Switch.Default)
	default:
		return nil
	}
}

// retarget rewrites every successor through remap.
func (t *Terminator) retarget(remap func(BlockID) BlockID) {
	switch t.Kind {
	case TermGoto:
		t.Goto.Target = remap(t.Goto.Target)
	case TermBranch:
		t.Branch.Target = remap(t.Branch.Target)
		t.Branch.Else = remap(t.Branch.Else)
	case TermSwitch:
		for i := range t.Switch.Targets {
			t.Switch.Targets[i] = remap(t.Switch.Targets[i])
		}
		t.Switch.Default = remap(t.Switch.Default)
	}
}
