package vm

import (
	"math"

	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// intShape describes how an integer type stores its bits.
type intShape struct {
	width  uint
	signed bool
}

func (vm *VM) intShape(ty types.TypeID) intShape {
	tt, ok := vm.Types.Lookup(ty)
	if !ok {
		return intShape{width: 64, signed: true}
	}
	switch tt.Kind {
	case types.KindChar:
		return intShape{width: 16}
	case types.KindUint:
		return intShape{width: widthBits(tt.Width)}
	default:
		return intShape{width: widthBits(tt.Width), signed: true}
	}
}

func widthBits(w types.Width) uint {
	if w == types.WidthAny {
		return 64
	}
	return uint(w)
}

// wrap truncates n to the width of ty, sign- or zero-extending the result.
func (s intShape) wrap(n int64) int64 {
	if s.width >= 64 {
		return n
	}
	shift := 64 - s.width
	if s.signed {
		return (n << shift) >> shift
	}
	return int64(uint64(n<<shift) >> shift)
}

func (vm *VM) wrapInt(n int64, ty types.TypeID) Value {
	return MakeInt(vm.intShape(ty).wrap(n), ty)
}

func (vm *VM) isSingle(ty types.TypeID) bool {
	tt, ok := vm.Types.Lookup(ty)
	return ok && tt.Kind == types.KindFloat && tt.Width == types.Width32
}

func (vm *VM) makeFloat(f float64, ty types.TypeID) Value {
	if vm.isSingle(ty) {
		f = float64(float32(f))
	}
	return MakeFloat(f, ty)
}

// convert implements numeric conversions, including char and bool sources.
func (vm *VM) convert(v Value, target types.TypeID) (Value, *VMError) {
	if v.IsNull() {
		return MakeNull(target), nil
	}
	var asFloat float64
	var asInt int64
	switch v.Kind {
	case VKInt:
		asInt = v.Int
		if vm.intShape(v.TypeID).signed || vm.intShape(v.TypeID).width < 64 {
			asFloat = float64(v.Int)
		} else {
			asFloat = float64(uint64(v.Int))
		}
	case VKFloat:
		asFloat = v.Float
		asInt = floatToInt(v.Float)
	case VKBool:
		if v.Bool {
			asInt, asFloat = 1, 1
		}
	default:
		return Value{}, vm.eb.typeMismatch("numeric", v.Kind.String())
	}
	switch vm.Types.Kind(target) {
	case types.KindFloat:
		return vm.makeFloat(asFloat, target), nil
	case types.KindInt, types.KindUint, types.KindChar:
		if v.Kind == VKFloat && !vm.intShape(target).signed && v.Float >= math.MaxInt64 {
			asInt = int64(uint64(v.Float))
		}
		return vm.wrapInt(asInt, target), nil
	case types.KindBool:
		return MakeBool(asInt != 0, target), nil
	}
	return Value{}, vm.eb.typeMismatch("numeric target", vm.typeName(target))
}

func floatToInt(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

// sizeOf is the element stride used by pointer arithmetic.
func (vm *VM) sizeOf(ty types.TypeID) int64 {
	tt, ok := vm.Types.Lookup(ty)
	if !ok {
		return 8
	}
	switch tt.Kind {
	case types.KindBool:
		return 1
	case types.KindChar:
		return 2
	case types.KindInt, types.KindUint, types.KindFloat:
		return int64(widthBits(tt.Width) / 8)
	}
	return 8
}
