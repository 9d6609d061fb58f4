package vm

import (
	"fmt"
	"math"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
)

// evalBinary evaluates a lowered binary operation. Comparisons yield bool;
// arithmetic keeps the type of the left operand.
func (vm *VM) evalBinary(op *lir.BinaryOp, left, right Value) (Value, *VMError) {
	if op.Op.IsComparison() {
		ok, vmErr := vm.compare(op.Op, left, right, op.Unsigned, false)
		if vmErr != nil {
			return Value{}, vmErr
		}
		return MakeBool(ok, vm.b.Bool), nil
	}
	switch {
	case op.Op == ast.BinAdd && (left.Kind == VKString || right.Kind == VKString):
		return MakeString(vm.format(left)+vm.format(right), vm.b.String), nil
	case left.Kind == VKBool && right.Kind == VKBool:
		return vm.evalBoolOp(op.Op, left, right)
	case left.Kind == VKFloat || right.Kind == VKFloat:
		return vm.evalFloatOp(op.Op, left, right)
	case left.Kind == VKInt && right.Kind == VKInt:
		return vm.evalIntOp(op.Op, left, right, op.Unsigned || !vm.intShape(left.TypeID).signed)
	default:
		return Value{}, vm.eb.typeMismatch("numeric", fmt.Sprintf("%s %s %s", left.Kind, op.Op, right.Kind))
	}
}

func (vm *VM) evalBoolOp(op ast.BinaryOp, left, right Value) (Value, *VMError) {
	switch op {
	case ast.BinAnd, ast.BinLogAnd:
		return MakeBool(left.Bool && right.Bool, left.TypeID), nil
	case ast.BinOr, ast.BinLogOr:
		return MakeBool(left.Bool || right.Bool, left.TypeID), nil
	case ast.BinXor:
		return MakeBool(left.Bool != right.Bool, left.TypeID), nil
	}
	return Value{}, vm.eb.typeMismatch("integer operands", "bool "+op.String())
}

func (vm *VM) evalFloatOp(op ast.BinaryOp, left, right Value) (Value, *VMError) {
	ty := left.TypeID
	if left.Kind != VKFloat {
		ty = right.TypeID
	}
	a, vmErr := vm.convert(left, ty)
	if vmErr != nil {
		return Value{}, vmErr
	}
	b, vmErr := vm.convert(right, ty)
	if vmErr != nil {
		return Value{}, vmErr
	}
	var r float64
	switch op {
	case ast.BinAdd:
		r = a.Float + b.Float
	case ast.BinSub:
		r = a.Float - b.Float
	case ast.BinMul:
		r = a.Float * b.Float
	case ast.BinDiv:
		r = a.Float / b.Float
	case ast.BinRem:
		r = math.Mod(a.Float, b.Float)
	default:
		return Value{}, vm.eb.typeMismatch("integer operands", "float "+op.String())
	}
	return vm.makeFloat(r, ty), nil
}

func (vm *VM) evalIntOp(op ast.BinaryOp, left, right Value, unsigned bool) (Value, *VMError) {
	ty := left.TypeID
	a, b := left.Int, right.Int
	shape := vm.intShape(ty)
	switch op {
	case ast.BinAdd:
		return vm.wrapInt(a+b, ty), nil
	case ast.BinSub:
		return vm.wrapInt(a-b, ty), nil
	case ast.BinMul:
		return vm.wrapInt(a*b, ty), nil
	case ast.BinDiv, ast.BinRem:
		if b == 0 {
			return Value{}, vm.throwNew(vm.wk.DivideByZero, "division by zero")
		}
		if unsigned {
			ua, ub := uint64(a), uint64(b)
			if op == ast.BinDiv {
				return vm.wrapInt(int64(ua/ub), ty), nil
			}
			return vm.wrapInt(int64(ua%ub), ty), nil
		}
		if b == -1 {
			// MinInt / -1 wraps instead of trapping.
			if op == ast.BinDiv {
				return vm.wrapInt(-a, ty), nil
			}
			return vm.wrapInt(0, ty), nil
		}
		if op == ast.BinDiv {
			return vm.wrapInt(a/b, ty), nil
		}
		return vm.wrapInt(a%b, ty), nil
	case ast.BinAnd:
		return vm.wrapInt(a&b, ty), nil
	case ast.BinOr:
		return vm.wrapInt(a|b, ty), nil
	case ast.BinXor:
		return vm.wrapInt(a^b, ty), nil
	case ast.BinShl:
		return vm.wrapInt(a<<(uint64(b)&uint64(shape.width-1)), ty), nil
	case ast.BinShr:
		n := uint64(b) & uint64(shape.width-1)
		if unsigned {
			return vm.wrapInt(int64(uint64(a)>>n), ty), nil
		}
		return vm.wrapInt(a>>n, ty), nil
	}
	return Value{}, vm.eb.unimplemented("integer operator " + op.String())
}

func (vm *VM) evalUnary(op *lir.UnaryOp, v Value) (Value, *VMError) {
	switch op.Op {
	case ast.UnaryNot:
		if v.Kind != VKBool {
			return Value{}, vm.eb.typeMismatch("bool", v.Kind.String())
		}
		return MakeBool(!v.Bool, v.TypeID), nil
	case ast.UnaryNeg:
		switch v.Kind {
		case VKInt:
			return vm.wrapInt(-v.Int, v.TypeID), nil
		case VKFloat:
			return vm.makeFloat(-v.Float, v.TypeID), nil
		}
	case ast.UnaryBitNot:
		if v.Kind == VKInt {
			return vm.wrapInt(^v.Int, v.TypeID), nil
		}
	}
	return Value{}, vm.eb.typeMismatch("numeric", fmt.Sprintf("%s%s", op.Op, v.Kind))
}
