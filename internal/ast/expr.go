package ast

import (
	"github.com/hesam/SketchSharp-sub001/internal/source"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// ExprKind enumerates typed expression kinds.
type ExprKind uint8

const (
	// ExprLiteral represents int, float, bool, char, string and null literals.
	ExprLiteral ExprKind = iota
	// ExprLocal references a local variable or parameter.
	ExprLocal
	// ExprThis references the receiver of an instance procedure.
	ExprThis
	// ExprField reads an instance or static field.
	ExprField
	// ExprIndex reads an array element, a string character or an indexer.
	ExprIndex
	// ExprLength reads the length of an array or string.
	ExprLength
	ExprUnary
	ExprBinary
	// ExprCond is the ternary conditional.
	ExprCond
	// ExprCall invokes a method, static or instance.
	ExprCall
	// ExprInvoke calls a delegate value.
	ExprInvoke
	// ExprNew allocates an instance and runs its constructor.
	ExprNew
	ExprNewArray
	ExprArrayLit
	ExprCast
	ExprIs
	ExprAs
	// ExprHasValue tests a nullable value for presence.
	ExprHasValue
	// ExprLambda is an anonymous nested procedure producing a delegate.
	ExprLambda
	ExprAddrOf
	ExprDeref
	ExprDefault
	// ExprOld denotes the value of its operand at procedure entry.
	ExprOld
	// ExprResult denotes the procedure's return value inside postconditions.
	ExprResult
	ExprQuantifier
	// ExprRange is the half-open integer interval lo..hi used as a source.
	ExprRange
	ExprQuery
)

// String returns a human-readable name for the expression kind.
func (k ExprKind) String() string {
	switch k {
	case ExprLiteral:
		return "Literal"
	case ExprLocal:
		return "Local"
	case ExprThis:
		return "This"
	case ExprField:
		return "Field"
	case ExprIndex:
		return "Index"
	case ExprLength:
		return "Length"
	case ExprUnary:
		return "Unary"
	case ExprBinary:
		return "Binary"
	case ExprCond:
		return "Cond"
	case ExprCall:
		return "Call"
	case ExprInvoke:
		return "Invoke"
	case ExprNew:
		return "New"
	case ExprNewArray:
		return "NewArray"
	case ExprArrayLit:
		return "ArrayLit"
	case ExprCast:
		return "Cast"
	case ExprIs:
		return "Is"
	case ExprAs:
		return "As"
	case ExprHasValue:
		return "HasValue"
	case ExprLambda:
		return "Lambda"
	case ExprAddrOf:
		return "AddrOf"
	case ExprDeref:
		return "Deref"
	case ExprDefault:
		return "Default"
	case ExprOld:
		return "Old"
	case ExprResult:
		return "Result"
	case ExprQuantifier:
		return "Quantifier"
	case ExprRange:
		return "Range"
	case ExprQuery:
		return "Query"
	default:
		return "Unknown"
	}
}

// Expr represents a typed expression.
type Expr struct {
	Kind ExprKind
	Type types.TypeID
	Span source.Span
	Data ExprData
}

// ExprData is the interface for expression-specific data.
type ExprData interface {
	exprData()
}

// LiteralKind enumerates literal value kinds.
type LiteralKind uint8

const (
	LiteralInt LiteralKind = iota
	LiteralUint
	LiteralFloat
	LiteralBool
	LiteralChar
	LiteralString
	LiteralNull
)

// LiteralData holds data for ExprLiteral.
type LiteralData struct {
	Kind        LiteralKind
	IntValue    int64
	UintValue   uint64
	FloatValue  float64
	BoolValue   bool
	StringValue string // also holds the rune for LiteralChar
}

func (LiteralData) exprData() {}

// LocalData holds data for ExprLocal.
type LocalData struct {
	Sym symbols.SymbolID
}

func (LocalData) exprData() {}

// ThisData holds data for ExprThis.
type ThisData struct{}

func (ThisData) exprData() {}

// FieldData holds data for ExprField. Object is nil for static fields.
type FieldData struct {
	Object *Expr
	Owner  types.TypeID
	Name   string
}

func (FieldData) exprData() {}

// IndexData holds data for ExprIndex.
type IndexData struct {
	Object *Expr
	Index  *Expr
}

func (IndexData) exprData() {}

// LengthData holds data for ExprLength.
type LengthData struct {
	Object *Expr
}

func (LengthData) exprData() {}

// UnaryData holds data for ExprUnary. Lifted marks nullable operands.
type UnaryData struct {
	Op      UnaryOp
	Operand *Expr
	Lifted  bool
}

func (UnaryData) exprData() {}

// BinaryData holds data for ExprBinary. Lifted marks nullable operands.
type BinaryData struct {
	Op     BinaryOp
	Left   *Expr
	Right  *Expr
	Lifted bool
}

func (BinaryData) exprData() {}

// CondData holds data for ExprCond.
type CondData struct {
	Cond *Expr
	Then *Expr
	Else *Expr
}

func (CondData) exprData() {}

// CallData holds data for ExprCall. Receiver is nil for static calls.
// Base selects the non-virtual implementation on Owner.
type CallData struct {
	Receiver *Expr
	Owner    types.TypeID
	Method   string
	Args     []*Expr
	Virtual  bool
	Base     bool
}

func (CallData) exprData() {}

// InvokeData holds data for ExprInvoke.
type InvokeData struct {
	Delegate *Expr
	Args     []*Expr
}

func (InvokeData) exprData() {}

// NewData holds data for ExprNew; the allocated class is Expr.Type.
type NewData struct {
	Args []*Expr
}

func (NewData) exprData() {}

// NewArrayData holds data for ExprNewArray.
type NewArrayData struct {
	Elem   types.TypeID
	Length *Expr
}

func (NewArrayData) exprData() {}

// ArrayLitData holds data for ExprArrayLit.
type ArrayLitData struct {
	Elem  types.TypeID
	Elems []*Expr
}

func (ArrayLitData) exprData() {}

// CastKind selects the conversion performed by ExprCast.
type CastKind uint8

const (
	// CastConvert converts between numeric types.
	CastConvert CastKind = iota
	CastBox
	CastUnbox
	// CastRef is a checked reference downcast.
	CastRef
	// CastWrap converts T to T?.
	CastWrap
	// CastUnwrap converts T? to T and fails on null.
	CastUnwrap
)

func (k CastKind) String() string {
	switch k {
	case CastConvert:
		return "conv"
	case CastBox:
		return "box"
	case CastUnbox:
		return "unbox"
	case CastRef:
		return "castclass"
	case CastWrap:
		return "wrap"
	case CastUnwrap:
		return "unwrap"
	default:
		return "cast?"
	}
}

// CastData holds data for ExprCast; the target type is Expr.Type.
type CastData struct {
	Kind  CastKind
	Value *Expr
}

func (CastData) exprData() {}

// TypeTestData holds data for ExprIs and ExprAs.
type TypeTestData struct {
	Value  *Expr
	Target types.TypeID
}

func (TypeTestData) exprData() {}

// HasValueData holds data for ExprHasValue.
type HasValueData struct {
	Value *Expr
}

func (HasValueData) exprData() {}

// LambdaData holds data for ExprLambda; Expr.Type is the delegate type.
type LambdaData struct {
	Func *Func
}

func (LambdaData) exprData() {}

// AddrOfData holds data for ExprAddrOf.
type AddrOfData struct {
	Value *Expr
}

func (AddrOfData) exprData() {}

// DerefData holds data for ExprDeref.
type DerefData struct {
	Pointer *Expr
}

func (DerefData) exprData() {}

// DefaultData holds data for ExprDefault; the type is Expr.Type.
type DefaultData struct{}

func (DefaultData) exprData() {}

// OldData holds data for ExprOld.
type OldData struct {
	Value *Expr
}

func (OldData) exprData() {}

// ResultData holds data for ExprResult.
type ResultData struct{}

func (ResultData) exprData() {}

// QuantifierOp enumerates quantifier and aggregate forms.
type QuantifierOp uint8

const (
	QuantForall QuantifierOp = iota
	QuantExists
	QuantExistsUnique
	QuantCount
	QuantSum
	QuantProduct
	QuantMin
	QuantMax
)

func (op QuantifierOp) String() string {
	switch op {
	case QuantForall:
		return "forall"
	case QuantExists:
		return "exists"
	case QuantExistsUnique:
		return "exists unique"
	case QuantCount:
		return "count"
	case QuantSum:
		return "sum"
	case QuantProduct:
		return "product"
	case QuantMin:
		return "min"
	case QuantMax:
		return "max"
	default:
		return "quantifier?"
	}
}

// QuantifierData holds data for ExprQuantifier. Var ranges over Source;
// Filter optionally restricts the elements considered. Body is the predicate
// for forall/exists forms and the term for aggregates; count ignores it.
type QuantifierData struct {
	Op     QuantifierOp
	Var    symbols.SymbolID
	Source *Expr
	Filter *Expr
	Body   *Expr
}

func (QuantifierData) exprData() {}

// RangeData holds data for ExprRange.
type RangeData struct {
	Lo *Expr
	Hi *Expr
}

func (RangeData) exprData() {}
