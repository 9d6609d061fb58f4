package ast

// UnaryOp enumerates prefix operators.
type UnaryOp uint8

const (
	UnaryNeg UnaryOp = iota
	UnaryNot
	UnaryBitNot
)

func (op UnaryOp) String() string {
	switch op {
	case UnaryNeg:
		return "-"
	case UnaryNot:
		return "!"
	case UnaryBitNot:
		return "~"
	default:
		return "?"
	}
}

// BinaryOp enumerates infix operators.
type BinaryOp uint8

const (
	BinAdd BinaryOp = iota
	BinSub
	BinMul
	BinDiv
	BinRem
	BinAnd
	BinOr
	BinXor
	BinShl
	BinShr
	BinEq
	BinNe
	BinLt
	BinLe
	BinGt
	BinGe
	BinLogAnd
	BinLogOr
	BinCoalesce
)

func (op BinaryOp) String() string {
	switch op {
	case BinAdd:
		return "+"
	case BinSub:
		return "-"
	case BinMul:
		return "*"
	case BinDiv:
		return "/"
	case BinRem:
		return "%"
	case BinAnd:
		return "&"
	case BinOr:
		return "|"
	case BinXor:
		return "^"
	case BinShl:
		return "<<"
	case BinShr:
		return ">>"
	case BinEq:
		return "=="
	case BinNe:
		return "!="
	case BinLt:
		return "<"
	case BinLe:
		return "<="
	case BinGt:
		return ">"
	case BinGe:
		return ">="
	case BinLogAnd:
		return "&&"
	case BinLogOr:
		return "||"
	case BinCoalesce:
		return "??"
	default:
		return "?"
	}
}

// IsComparison reports whether op yields a bool from two ordered operands.
func (op BinaryOp) IsComparison() bool {
	return op >= BinEq && op <= BinGe
}

// IsLogical reports whether op short-circuits.
func (op BinaryOp) IsLogical() bool {
	return op == BinLogAnd || op == BinLogOr
}

// Negate returns the comparison with the opposite outcome for ordered operands.
func (op BinaryOp) Negate() BinaryOp {
	switch op {
	case BinEq:
		return BinNe
	case BinNe:
		return BinEq
	case BinLt:
		return BinGe
	case BinLe:
		return BinGt
	case BinGt:
		return BinLe
	case BinGe:
		return BinLt
	default:
		return op
	}
}
