package lir

import (
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// InstrKind enumerates instruction kinds.
type InstrKind uint8

const (
	// InstrAssign stores an rvalue into a place.
	InstrAssign InstrKind = iota
	// InstrCall invokes a method, a runtime intrinsic or a delegate.
	InstrCall
	// InstrNew allocates an instance and runs its constructor.
	InstrNew
	// InstrPopException stores the exception being handled. It is the first
	// instruction of every catch handler.
	InstrPopException
	// InstrAssume records a condition the verifier may rely on; it has no
	// runtime effect.
	InstrAssume
	// InstrNop represents a no-op instruction.
	InstrNop
)

// Instr represents an instruction.
type Instr struct {
	Kind InstrKind

	Assign       AssignInstr
	Call         CallInstr
	New          NewInstr
	PopException PopExceptionInstr
	Assume       AssumeInstr
}

// AssignInstr represents an assignment instruction.
type AssignInstr struct {
	Dst Place
	Src RValue
}

// CalleeKind distinguishes call target types.
type CalleeKind uint8

const (
	// CalleeMethod calls Name declared on Owner.
	CalleeMethod CalleeKind = iota
	// CalleeIntrinsic calls a runtime helper named by Name.
	CalleeIntrinsic
	// CalleeDelegate invokes the delegate value in Value.
	CalleeDelegate
)

// Callee represents a call target. Virtual calls dispatch on the runtime
// type of the receiver.
type Callee struct {
	Kind    CalleeKind
	Owner   types.TypeID
	Name    string
	Virtual bool
	Value   Operand
}

// CallInstr represents a call. Instance calls carry the receiver separately
// from the arguments.
type CallInstr struct {
	HasDst  bool
	Dst     Place
	Callee  Callee
	HasRecv bool
	Recv    Operand
	Args    []Operand
}

// NewInstr allocates Class and calls its constructor when one is declared.
type NewInstr struct {
	Dst   Place
	Class types.TypeID
	Args  []Operand
}

type PopExceptionInstr struct {
	Dst Place
}

type AssumeInstr struct {
	Cond Operand
	Text string
}

// Runtime intrinsics referenced by lowered code.
const (
	IntrinsicMonitorEnter       = "Monitor.Enter"
	IntrinsicMonitorExit        = "Monitor.Exit"
	IntrinsicAcquireForReading  = "Frame.AcquireForReading"
	IntrinsicAcquireForWriting  = "Frame.AcquireForWriting"
	IntrinsicReleaseForReading  = "Frame.ReleaseForReading"
	IntrinsicReleaseForWriting  = "Frame.ReleaseForWriting"
	IntrinsicFrameIsHeld        = "Frame.IsHeld"
	IntrinsicStringIsInterned   = "String.IsInterned"
	IntrinsicOffsetToStringData = "RuntimeHelpers.OffsetToStringData"
	IntrinsicMemberwiseClone    = "Object.MemberwiseClone"
	IntrinsicArrayClone         = "Array.Clone"
	IntrinsicHash               = "Object.GetHashCode"
	IntrinsicEquals             = "Object.Equals"
	IntrinsicPrint              = "Console.WriteLine"
)
