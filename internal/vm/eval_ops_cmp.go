package vm

import (
	"cmp"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
)

// compare evaluates a comparison. With unordered set a float comparison
// also holds when either operand is NaN.
func (vm *VM) compare(op ast.BinaryOp, left, right Value, unsigned, unordered bool) (bool, *VMError) {
	if op == ast.BinEq || op == ast.BinNe {
		if left.Kind != VKFloat && right.Kind != VKFloat {
			eq, vmErr := vm.sameValue(left, right)
			if vmErr != nil {
				return false, vmErr
			}
			return eq == (op == ast.BinEq), nil
		}
	}
	var c int
	switch {
	case left.Kind == VKFloat || right.Kind == VKFloat:
		a, vmErr := vm.convert(left, vm.b.Double)
		if vmErr != nil {
			return false, vmErr
		}
		b, vmErr := vm.convert(right, vm.b.Double)
		if vmErr != nil {
			return false, vmErr
		}
		if math.IsNaN(a.Float) || math.IsNaN(b.Float) {
			return unordered || op == ast.BinNe, nil
		}
		c = cmp.Compare(a.Float, b.Float)
	case left.Kind == VKInt && right.Kind == VKInt:
		if unsigned || !vm.intShape(left.TypeID).signed {
			c = cmp.Compare(uint64(left.Int), uint64(right.Int))
		} else {
			c = cmp.Compare(left.Int, right.Int)
		}
	case left.Kind == VKString && right.Kind == VKString:
		c = cmp.Compare(left.Str, right.Str)
	case left.Kind == VKBool && right.Kind == VKBool:
		c = cmp.Compare(boolRank(left.Bool), boolRank(right.Bool))
	default:
		return false, vm.eb.typeMismatch("ordered operands", fmt.Sprintf("%s %s %s", left.Kind, op, right.Kind))
	}
	switch op {
	case ast.BinEq:
		return c == 0, nil
	case ast.BinNe:
		return c != 0, nil
	case ast.BinLt:
		return c < 0, nil
	case ast.BinLe:
		return c <= 0, nil
	case ast.BinGt:
		return c > 0, nil
	case ast.BinGe:
		return c >= 0, nil
	}
	return false, vm.eb.unimplemented("comparison " + op.String())
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// sameValue is the == of lowered code: strings and primitives compare by
// value, references by identity.
func (vm *VM) sameValue(a, b Value) (bool, *VMError) {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull(), nil
	}
	switch {
	case a.Kind == VKInt && b.Kind == VKInt:
		return a.Int == b.Int, nil
	case a.Kind == VKBool && b.Kind == VKBool:
		return a.Bool == b.Bool, nil
	case a.Kind == VKString && b.Kind == VKString:
		return a.Str == b.Str, nil
	case a.Kind == VKPtr && b.Kind == VKPtr:
		return sameLoc(a.Loc, b.Loc), nil
	case a.Kind == VKStruct && b.Kind == VKStruct:
		return vm.equalValues(a, b), nil
	case a.IsHeap() && b.IsHeap():
		return a.H == b.H, nil
	}
	return false, nil
}

// equalValues is Object.Equals: boxed values and structs compare by
// content, strings by value, other references by identity.
func (vm *VM) equalValues(a, b Value) bool {
	a, b = vm.unboxed(a), vm.unboxed(b)
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	switch {
	case a.Kind == VKFloat && b.Kind == VKFloat:
		return a.Float == b.Float || (math.IsNaN(a.Float) && math.IsNaN(b.Float))
	case a.Kind == VKStruct && b.Kind == VKStruct:
		oa, okA := vm.Heap.Get(a.H)
		ob, okB := vm.Heap.Get(b.H)
		if !okA || !okB || oa.TypeID != ob.TypeID || len(oa.Fields) != len(ob.Fields) {
			return false
		}
		for k, fa := range oa.Fields {
			fb, ok := ob.Fields[k]
			if !ok || !vm.equalValues(fa, fb) {
				return false
			}
		}
		return true
	}
	eq, vmErr := vm.sameValue(a, b)
	return vmErr == nil && eq
}

// hashValue is Object.GetHashCode, consistent with equalValues.
func (vm *VM) hashValue(v Value) int64 {
	v = vm.unboxed(v)
	switch v.Kind {
	case VKNull, VKInvalid:
		return 0
	case VKBool:
		return int64(boolRank(v.Bool))
	case VKInt:
		return int64(int32(v.Int ^ v.Int>>32))
	case VKFloat:
		bits := math.Float64bits(v.Float)
		return int64(int32(bits ^ bits>>32))
	case VKString:
		h := fnv.New32a()
		_, _ = h.Write([]byte(v.Str))
		return int64(int32(h.Sum32()))
	case VKStruct:
		obj, ok := vm.Heap.Get(v.H)
		if !ok {
			return 0
		}
		var h int64
		for _, f := range obj.Fields {
			h ^= vm.hashValue(f)
		}
		return h
	case VKPtr:
		return 0
	}
	return int64(int32(v.H))
}

func (vm *VM) unboxed(v Value) Value {
	if v.Kind != VKObject {
		return v
	}
	if obj, ok := vm.Heap.Get(v.H); ok && obj.Kind == OKBox {
		return obj.Boxed
	}
	return v
}

func sameLoc(a, b *Location) bool {
	if a == b {
		return true
	}
	if a.Kind != b.Kind || a.Index != b.Index {
		return false
	}
	switch a.Kind {
	case LocLocal:
		return a.Frame == b.Frame && a.Local == b.Local
	case LocStatic:
		return a.Owner == b.Owner && a.Field == b.Field
	case LocField:
		return a.H == b.H && a.Field == b.Field
	case LocElem:
		return a.H == b.H
	}
	return string(a.Str) == string(b.Str)
}
