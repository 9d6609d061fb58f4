package ast

import (
	"github.com/hesam/SketchSharp-sub001/internal/source"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// StmtKind enumerates statement kinds.
type StmtKind uint8

const (
	StmtLet StmtKind = iota
	StmtExpr
	StmtAssign
	StmtReturn
	// StmtExit leaves the Level-th enclosing loop or switch (0 is innermost).
	StmtExit
	// StmtContinue restarts the Level-th enclosing loop (0 is innermost).
	StmtContinue
	StmtIf
	StmtWhile
	StmtDoWhile
	StmtFor
	// StmtRepeat runs Body until Until becomes true.
	StmtRepeat
	StmtForEach
	StmtSwitch
	StmtBlock
	StmtTry
	// StmtThrow throws Value; a nil Value rethrows the exception being handled.
	StmtThrow
	StmtLock
	StmtUsing
	StmtFixed
	// StmtAcquire exposes an object's ownership frame for the body.
	StmtAcquire
	StmtYield
	StmtYieldBreak
	// StmtLabel marks a goto target at its position in the block.
	StmtLabel
	StmtGoto
	// StmtAssert checks (or, with Assume, records) a condition at this point.
	StmtAssert
)

// String returns a human-readable name for the statement kind.
func (k StmtKind) String() string {
	switch k {
	case StmtLet:
		return "Let"
	case StmtExpr:
		return "Expr"
	case StmtAssign:
		return "Assign"
	case StmtReturn:
		return "Return"
	case StmtExit:
		return "Exit"
	case StmtContinue:
		return "Continue"
	case StmtIf:
		return "If"
	case StmtWhile:
		return "While"
	case StmtDoWhile:
		return "DoWhile"
	case StmtFor:
		return "For"
	case StmtRepeat:
		return "Repeat"
	case StmtForEach:
		return "ForEach"
	case StmtSwitch:
		return "Switch"
	case StmtBlock:
		return "Block"
	case StmtTry:
		return "Try"
	case StmtThrow:
		return "Throw"
	case StmtLock:
		return "Lock"
	case StmtUsing:
		return "Using"
	case StmtFixed:
		return "Fixed"
	case StmtAcquire:
		return "Acquire"
	case StmtYield:
		return "Yield"
	case StmtYieldBreak:
		return "YieldBreak"
	case StmtLabel:
		return "Label"
	case StmtGoto:
		return "Goto"
	case StmtAssert:
		return "Assert"
	default:
		return "Unknown"
	}
}

// Stmt represents a statement.
type Stmt struct {
	Kind StmtKind
	Span source.Span
	Data StmtData
}

// StmtData is the interface for statement-specific data.
type StmtData interface {
	stmtData()
}

// LetData holds data for StmtLet. Value may be nil for a bare declaration.
type LetData struct {
	Sym   symbols.SymbolID
	Value *Expr
}

func (LetData) stmtData() {}

// ExprStmtData holds data for StmtExpr.
type ExprStmtData struct {
	Expr *Expr
}

func (ExprStmtData) stmtData() {}

// AssignData holds data for StmtAssign.
type AssignData struct {
	Target *Expr
	Value  *Expr
}

func (AssignData) stmtData() {}

// ReturnData holds data for StmtReturn.
type ReturnData struct {
	Value *Expr
}

func (ReturnData) stmtData() {}

// JumpData holds data for StmtExit and StmtContinue.
type JumpData struct {
	Level int
}

func (JumpData) stmtData() {}

// IfData holds data for StmtIf.
type IfData struct {
	Cond *Expr
	Then *Block
	Else *Block
}

func (IfData) stmtData() {}

// LoopData holds data for StmtWhile, StmtDoWhile and StmtRepeat.
type LoopData struct {
	Cond       *Expr
	Body       *Block
	Invariants []Clause
}

func (LoopData) stmtData() {}

// ForData holds data for StmtFor.
type ForData struct {
	Init       []Stmt
	Cond       *Expr
	Post       []Stmt
	Body       *Block
	Invariants []Clause
}

func (ForData) stmtData() {}

// ForEachData holds data for StmtForEach. Index, when valid, receives the
// position of the current element.
type ForEachData struct {
	Var        symbols.SymbolID
	Index      symbols.SymbolID
	Source     *Expr
	Body       *Block
	NullSafe   bool
	Invariants []Clause
}

func (ForEachData) stmtData() {}

// SwitchCase is one section of a switch. A nil literal label matches null.
type SwitchCase struct {
	Labels    []*Expr
	IsDefault bool
	Body      *Block
	Span      source.Span
}

// SwitchData holds data for StmtSwitch.
type SwitchData struct {
	Value *Expr
	Cases []SwitchCase
}

func (SwitchData) stmtData() {}

// BlockData holds data for StmtBlock.
type BlockData struct {
	Block *Block
}

func (BlockData) stmtData() {}

// CatchClause handles exceptions whose type derives from Type. The caught
// exception is stored in Var, or in Target when it is not a simple local.
type CatchClause struct {
	Type   types.TypeID
	Var    symbols.SymbolID
	Target *Expr
	Body   *Block
	Span   source.Span
}

// TryData holds data for StmtTry.
type TryData struct {
	Body    *Block
	Catches []CatchClause
	Finally *Block
}

func (TryData) stmtData() {}

// ThrowData holds data for StmtThrow.
type ThrowData struct {
	Value *Expr
}

func (ThrowData) stmtData() {}

// LockData holds data for StmtLock.
type LockData struct {
	Guard *Expr
	Body  *Block
}

func (LockData) stmtData() {}

// UsingData holds data for StmtUsing. Var is optional.
type UsingData struct {
	Var      symbols.SymbolID
	Resource *Expr
	Body     *Block
}

func (UsingData) stmtData() {}

// FixedData holds data for StmtFixed. Init is a string expression, the
// address of an array element, or the address of a field.
type FixedData struct {
	Var  symbols.SymbolID
	Init *Expr
	Body *Block
}

func (FixedData) stmtData() {}

// AcquireData holds data for StmtAcquire. Condition is an optional delegate
// the runtime consults before granting access.
type AcquireData struct {
	Target    *Expr
	ReadOnly  bool
	Condition *Expr
	Body      *Block
}

func (AcquireData) stmtData() {}

// YieldData holds data for StmtYield.
type YieldData struct {
	Value *Expr
}

func (YieldData) stmtData() {}

// YieldBreakData holds data for StmtYieldBreak.
type YieldBreakData struct{}

func (YieldBreakData) stmtData() {}

// LabelData holds data for StmtLabel and StmtGoto.
type LabelData struct {
	Label symbols.SymbolID
}

func (LabelData) stmtData() {}

// AssertData holds data for StmtAssert.
type AssertData struct {
	Clause Clause
	Assume bool
}

func (AssertData) stmtData() {}
