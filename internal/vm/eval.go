package vm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// stringDataOffset is the byte offset of the first character of a pinned
// string, as reported by RuntimeHelpers.OffsetToStringData.
const stringDataOffset = 8

// evalOperand evaluates an operand to a value. Copies of structs are
// fresh instances.
func (vm *VM) evalOperand(frame *Frame, op *lir.Operand) (Value, *VMError) {
	switch op.Kind {
	case lir.OperandConst:
		return vm.evalConst(&op.Const, op.Type)
	case lir.OperandCopy:
		loc, vmErr := vm.resolvePlace(frame, &op.Place)
		if vmErr != nil {
			return Value{}, vmErr
		}
		v, vmErr := vm.load(loc)
		if vmErr != nil {
			return Value{}, vmErr
		}
		return vm.cloneValue(v), nil
	case lir.OperandAddrOf:
		loc, vmErr := vm.resolvePlace(frame, &op.Place)
		if vmErr != nil {
			return Value{}, vmErr
		}
		return MakePtr(loc, op.Type), nil
	default:
		return Value{}, vm.eb.unimplemented(fmt.Sprintf("operand kind %d", op.Kind))
	}
}

func (vm *VM) evalConst(c *lir.Const, ty types.TypeID) (Value, *VMError) {
	if c.Type != types.NoTypeID {
		ty = c.Type
	}
	switch c.Kind {
	case lir.ConstInt:
		return vm.wrapInt(c.IntValue, ty), nil
	case lir.ConstUint:
		return vm.wrapInt(int64(c.UintValue), ty), nil
	case lir.ConstFloat:
		return vm.makeFloat(c.FloatValue, ty), nil
	case lir.ConstBool:
		return MakeBool(c.BoolValue, ty), nil
	case lir.ConstChar:
		r := []rune(c.StringValue)
		if len(r) != 1 {
			return Value{}, vm.eb.typeMismatch("single character", strconv.Quote(c.StringValue))
		}
		return MakeInt(int64(r[0]), ty), nil
	case lir.ConstString:
		return MakeString(c.StringValue, ty), nil
	case lir.ConstNull:
		return MakeNull(ty), nil
	case lir.ConstDefault:
		return vm.defaultValue(ty), nil
	}
	return Value{}, vm.eb.unimplemented(fmt.Sprintf("constant kind %d", c.Kind))
}

func (vm *VM) evalOperands(frame *Frame, ops []lir.Operand) ([]Value, *VMError) {
	out := make([]Value, len(ops))
	for i := range ops {
		v, vmErr := vm.evalOperand(frame, &ops[i])
		if vmErr != nil {
			return nil, vmErr
		}
		out[i] = v
	}
	return out, nil
}

// evalRValue computes the value of an rvalue.
func (vm *VM) evalRValue(frame *Frame, rv *lir.RValue) (Value, *VMError) {
	switch rv.Kind {
	case lir.RValueUse:
		return vm.evalOperand(frame, &rv.Use)
	case lir.RValueUnary:
		v, vmErr := vm.evalOperand(frame, &rv.Unary.Operand)
		if vmErr != nil {
			return Value{}, vmErr
		}
		return vm.evalUnary(&rv.Unary, v)
	case lir.RValueBinary:
		left, vmErr := vm.evalOperand(frame, &rv.Binary.Left)
		if vmErr != nil {
			return Value{}, vmErr
		}
		right, vmErr := vm.evalOperand(frame, &rv.Binary.Right)
		if vmErr != nil {
			return Value{}, vmErr
		}
		return vm.evalBinary(&rv.Binary, left, right)
	case lir.RValueCast:
		v, vmErr := vm.evalOperand(frame, &rv.Cast.Value)
		if vmErr != nil {
			return Value{}, vmErr
		}
		return vm.cast(rv.Cast.Kind, v, rv.Cast.Target)
	case lir.RValueNewArray:
		n, vmErr := vm.evalOperand(frame, &rv.NewArray.Len)
		if vmErr != nil {
			return Value{}, vmErr
		}
		if n.Kind != VKInt {
			return Value{}, vm.eb.typeMismatch("int length", n.Kind.String())
		}
		if n.Int < 0 {
			return Value{}, vm.throwNew(vm.wk.IndexOutOfRange, fmt.Sprintf("negative array length %d", n.Int))
		}
		elems := make([]Value, n.Int)
		for i := range elems {
			elems[i] = vm.defaultValue(rv.NewArray.Elem)
		}
		return vm.NewArray(rv.NewArray.Elem, elems...), nil
	case lir.RValueArrayLit:
		elems, vmErr := vm.evalOperands(frame, rv.ArrayLit.Elems)
		if vmErr != nil {
			return Value{}, vmErr
		}
		return vm.NewArray(rv.ArrayLit.Elem, elems...), nil
	case lir.RValueLen:
		v, vmErr := vm.evalOperand(frame, &rv.Use)
		if vmErr != nil {
			return Value{}, vmErr
		}
		return vm.length(v)
	case lir.RValueIsInst:
		v, vmErr := vm.evalOperand(frame, &rv.TypeTest.Value)
		if vmErr != nil {
			return Value{}, vmErr
		}
		return MakeBool(vm.instanceOf(v, rv.TypeTest.Target), vm.b.Bool), nil
	case lir.RValueAsInst:
		v, vmErr := vm.evalOperand(frame, &rv.TypeTest.Value)
		if vmErr != nil {
			return Value{}, vmErr
		}
		if !vm.instanceOf(v, rv.TypeTest.Target) {
			return MakeNull(rv.TypeTest.Target), nil
		}
		return v, nil
	case lir.RValueHasValue:
		v, vmErr := vm.evalOperand(frame, &rv.Use)
		if vmErr != nil {
			return Value{}, vmErr
		}
		return MakeBool(!v.IsNull(), vm.b.Bool), nil
	case lir.RValueDelegate:
		return vm.makeDelegate(frame, &rv.Delegate)
	case lir.RValuePtrAdd:
		base, vmErr := vm.evalOperand(frame, &rv.Binary.Left)
		if vmErr != nil {
			return Value{}, vmErr
		}
		off, vmErr := vm.evalOperand(frame, &rv.Binary.Right)
		if vmErr != nil {
			return Value{}, vmErr
		}
		return vm.ptrAdd(base, off)
	}
	return Value{}, vm.eb.unimplemented(fmt.Sprintf("rvalue kind %d", rv.Kind))
}

func (vm *VM) length(v Value) (Value, *VMError) {
	switch v.Kind {
	case VKNull:
		return Value{}, vm.throwNew(vm.wk.NullReference, "length of null")
	case VKString:
		return vm.Int(int64(len([]rune(v.Str)))), nil
	case VKArray:
		obj, vmErr := vm.object(v)
		if vmErr != nil {
			return Value{}, vmErr
		}
		return vm.Int(int64(len(obj.Arr))), nil
	}
	return Value{}, vm.eb.typeMismatch("array or string", v.Kind.String())
}

func (vm *VM) makeDelegate(frame *Frame, d *lir.DelegateOp) (Value, *VMError) {
	del := Delegate{Owner: d.Owner, Method: d.Method, HasTarget: d.HasTarget}
	if d.HasTarget {
		target, vmErr := vm.evalOperand(frame, &d.Target)
		if vmErr != nil {
			return Value{}, vmErr
		}
		if target.IsNull() {
			return Value{}, vm.throwNew(vm.wk.NullReference, "delegate bound to null")
		}
		del.Target = target
	}
	h, obj := vm.Heap.alloc(OKDelegate, d.Type)
	obj.Del = del
	return makeHandle(VKDelegate, h, d.Type), nil
}

// ptrAdd offsets a pointer by a byte count. A pinned string used as the
// base yields a pointer into its character data.
func (vm *VM) ptrAdd(base, off Value) (Value, *VMError) {
	if off.Kind != VKInt {
		return Value{}, vm.eb.typeMismatch("int offset", off.Kind.String())
	}
	switch base.Kind {
	case VKString:
		idx, vmErr := vm.toIndex((off.Int - stringDataOffset) / 2)
		if vmErr != nil {
			return Value{}, vmErr
		}
		return MakePtr(&Location{Kind: LocString, Str: []rune(base.Str), Index: idx}, vm.Types.Intern(types.MakePointer(vm.b.Char))), nil
	case VKPtr:
		loc := *base.Loc
		var step int64
		switch loc.Kind {
		case LocString:
			step = off.Int / 2
		case LocElem:
			step = off.Int / vm.sizeOf(vm.Types.Elem(base.TypeID))
		default:
			if off.Int != 0 {
				return Value{}, vm.eb.typeMismatch("element pointer", loc.String())
			}
		}
		n, vmErr := vm.toIndex(step)
		if vmErr != nil {
			return Value{}, vmErr
		}
		loc.Index += n
		return MakePtr(&loc, base.TypeID), nil
	case VKNull:
		return Value{}, vm.throwNew(vm.wk.NullReference, "arithmetic on a null pointer")
	}
	return Value{}, vm.eb.typeMismatch("pointer", base.Kind.String())
}

// cast performs the conversions of lowered code.
func (vm *VM) cast(kind ast.CastKind, v Value, target types.TypeID) (Value, *VMError) {
	switch kind {
	case ast.CastConvert:
		if vm.Types.Kind(target) == types.KindNullable {
			target = vm.Types.Elem(target)
		}
		return vm.convert(v, target)
	case ast.CastBox:
		return vm.box(v, target), nil
	case ast.CastUnbox:
		return vm.unbox(v, target)
	case ast.CastRef:
		if v.IsNull() {
			return MakeNull(target), nil
		}
		if !vm.instanceOf(v, target) {
			return Value{}, vm.throwNew(vm.wk.InvalidCast, fmt.Sprintf("cannot cast %s to %s", vm.typeName(vm.dynType(v)), vm.typeName(target)))
		}
		return v, nil
	case ast.CastWrap:
		return v, nil
	case ast.CastUnwrap:
		if v.IsNull() {
			return Value{}, vm.throwNew(vm.wk.InvalidOperation, "nullable object must have a value")
		}
		return v, nil
	}
	return Value{}, vm.eb.unimplemented("cast " + kind.String())
}

func (vm *VM) box(v Value, target types.TypeID) Value {
	if v.IsNull() {
		return MakeNull(target)
	}
	if v.Kind == VKObject || v.Kind == VKArray || v.Kind == VKDelegate || v.Kind == VKString {
		return v
	}
	ty := v.TypeID
	if vm.Types.Kind(ty) == types.KindNullable {
		ty = vm.Types.Elem(ty)
	}
	h, obj := vm.Heap.alloc(OKBox, ty)
	obj.Boxed = vm.cloneValue(v)
	return makeHandle(VKObject, h, target)
}

func (vm *VM) unbox(v Value, target types.TypeID) (Value, *VMError) {
	nullable := vm.Types.Kind(target) == types.KindNullable
	if v.IsNull() {
		if nullable {
			return MakeNull(target), nil
		}
		return Value{}, vm.throwNew(vm.wk.NullReference, "unboxing null to "+vm.typeName(target))
	}
	want := target
	if nullable {
		want = vm.Types.Elem(target)
	}
	if v.Kind != VKObject {
		return vm.retag(v, want)
	}
	obj, vmErr := vm.object(v)
	if vmErr != nil {
		return Value{}, vmErr
	}
	if obj.Kind != OKBox {
		return Value{}, vm.throwNew(vm.wk.InvalidCast, fmt.Sprintf("cannot unbox %s to %s", vm.typeName(obj.TypeID), vm.typeName(want)))
	}
	return vm.retag(vm.cloneValue(obj.Boxed), want)
}

// retag checks an unboxed value against want. Numeric values of another
// width are converted.
func (vm *VM) retag(v Value, want types.TypeID) (Value, *VMError) {
	if v.TypeID == want || vm.Types.IsSubtype(v.TypeID, want) {
		return v, nil
	}
	if (v.Kind == VKInt || v.Kind == VKFloat) && vm.Types.IsNumeric(want) {
		return vm.convert(v, want)
	}
	if v.Kind == VKStruct && vm.dynType(v) == want {
		return v, nil
	}
	return Value{}, vm.throwNew(vm.wk.InvalidCast, fmt.Sprintf("cannot unbox %s to %s", vm.typeName(v.TypeID), vm.typeName(want)))
}

// instanceOf reports whether v is a non-null instance of target. Iterator
// state machines satisfy the sequence types through the members they
// implement.
func (vm *VM) instanceOf(v Value, target types.TypeID) bool {
	if v.IsNull() {
		return false
	}
	dyn := vm.dynType(v)
	if vm.Types.IsSubtype(dyn, target) {
		return true
	}
	switch vm.Types.Kind(target) {
	case types.KindObject:
		return true
	case types.KindString:
		return v.Kind == VKString
	case types.KindArray:
		return v.Kind == VKArray && vm.Types.IsSubtype(vm.Types.Elem(dyn), vm.Types.Elem(target))
	case types.KindEnumerable:
		return vm.findMethod(dyn, "GetEnumerator") != nil
	case types.KindEnumerator:
		return vm.findMethod(dyn, "MoveNext") != nil
	case types.KindDelegate:
		return v.Kind == VKDelegate
	case types.KindNullable:
		return vm.Types.IsSubtype(dyn, vm.Types.Elem(target))
	}
	return false
}

// format renders a value as Console.WriteLine prints it.
func (vm *VM) format(v Value) string {
	v = vm.unboxed(v)
	switch v.Kind {
	case VKInvalid, VKNull:
		return ""
	case VKString:
		return v.Str
	case VKBool:
		if v.Bool {
			return "True"
		}
		return "False"
	case VKInt:
		switch {
		case vm.Types.Kind(v.TypeID) == types.KindChar:
			return string(rune(v.Int))
		case !vm.intShape(v.TypeID).signed:
			return strconv.FormatUint(uint64(v.Int), 10)
		}
		return strconv.FormatInt(v.Int, 10)
	case VKFloat:
		bits := 64
		if vm.isSingle(v.TypeID) {
			bits = 32
		}
		return strconv.FormatFloat(v.Float, 'g', -1, bits)
	case VKArray:
		obj, ok := vm.Heap.Get(v.H)
		if !ok {
			return v.String()
		}
		parts := make([]string, len(obj.Arr))
		for i, e := range obj.Arr {
			parts[i] = vm.format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case VKPtr:
		return v.String()
	}
	obj, ok := vm.Heap.Get(v.H)
	if !ok {
		return v.String()
	}
	if obj.Kind == OKList {
		parts := make([]string, len(obj.Arr))
		for i, e := range obj.Arr {
			parts[i] = vm.format(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	if vm.Types.IsSubtype(obj.TypeID, vm.wk.Exception) {
		msg := obj.Fields[types.FieldMessage]
		return vm.typeName(obj.TypeID) + ": " + vm.format(msg)
	}
	return vm.typeName(obj.TypeID)
}
