package lir

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

type RValueKind uint8

const (
	RValueUse RValueKind = iota
	RValueUnary
	RValueBinary
	RValueCast
	RValueNewArray
	RValueArrayLit
	// RValueLen reads the length of an array or string.
	RValueLen
	// RValueIsInst tests the dynamic type of a reference.
	RValueIsInst
	// RValueAsInst yields the reference when it has the target type, null otherwise.
	RValueAsInst
	// RValueHasValue tests a nullable value for presence.
	RValueHasValue
	// RValueDelegate binds a method (and optional receiver) into a delegate.
	RValueDelegate
	// RValuePtrAdd offsets a pointer by a byte count.
	RValuePtrAdd
)

type RValue struct {
	Kind RValueKind

	Use      Operand
	Unary    UnaryOp
	Binary   BinaryOp
	Cast     CastOp
	NewArray NewArrayOp
	ArrayLit ArrayLitOp
	TypeTest TypeTestOp
	Delegate DelegateOp
}

type UnaryOp struct {
	Op      ast.UnaryOp
	Operand Operand
}

// BinaryOp computes Left Op Right. Unsigned selects unsigned division,
// remainder, shift and ordering.
type BinaryOp struct {
	Op       ast.BinaryOp
	Left     Operand
	Right    Operand
	Unsigned bool
}

type CastOp struct {
	Kind   ast.CastKind
	Value  Operand
	Target types.TypeID
}

type NewArrayOp struct {
	Elem types.TypeID
	Len  Operand
}

type ArrayLitOp struct {
	Elem  types.TypeID
	Elems []Operand
}

type TypeTestOp struct {
	Value  Operand
	Target types.TypeID
}

// DelegateOp names the bound method. HasTarget is false for static methods.
type DelegateOp struct {
	Type      types.TypeID
	HasTarget bool
	Target    Operand
	Owner     types.TypeID
	Method    string
}

// Use wraps an operand as an rvalue.
func Use(op Operand) RValue {
	return RValue{Kind: RValueUse, Use: op}
}
