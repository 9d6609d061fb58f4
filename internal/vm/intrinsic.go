package vm

import (
	"fmt"

	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// intrinsic handles the runtime helpers lowered code calls by name.
func (vm *VM) intrinsic(name string, args []Value) (Value, *VMError) {
	switch name {
	case lir.IntrinsicMonitorEnter:
		obj, vmErr := vm.guardArg(name, args, 0)
		if vmErr != nil {
			return Value{}, vmErr
		}
		obj.Monitor++
		return Value{}, nil

	case lir.IntrinsicMonitorExit:
		obj, vmErr := vm.guardArg(name, args, 0)
		if vmErr != nil {
			return Value{}, vmErr
		}
		if obj.Monitor == 0 {
			return Value{}, vm.throwNew(vm.wk.InvalidOperation, "monitor exit without a matching enter")
		}
		obj.Monitor--
		return Value{}, nil

	case lir.IntrinsicAcquireForReading, lir.IntrinsicAcquireForWriting:
		return vm.acquire(name, args)

	case lir.IntrinsicReleaseForReading:
		obj, vmErr := vm.guardArg(name, args, 0)
		if vmErr != nil {
			return Value{}, vmErr
		}
		if obj.Readers == 0 {
			return Value{}, vm.throwNew(vm.wk.InvalidOperation, "frame is not held for reading")
		}
		obj.Readers--
		return Value{}, nil

	case lir.IntrinsicReleaseForWriting:
		obj, vmErr := vm.guardArg(name, args, 0)
		if vmErr != nil {
			return Value{}, vmErr
		}
		if !obj.Writer {
			return Value{}, vm.throwNew(vm.wk.InvalidOperation, "frame is not held for writing")
		}
		obj.Writer = false
		return Value{}, nil

	case lir.IntrinsicFrameIsHeld:
		obj, vmErr := vm.guardArg(name, args, 0)
		if vmErr != nil {
			return Value{}, vmErr
		}
		return vm.Bool(obj.held()), nil

	case lir.IntrinsicStringIsInterned:
		if len(args) != 1 {
			return Value{}, vm.eb.typeMismatch("1 argument", fmt.Sprintf("%d", len(args)))
		}
		if args[0].Kind == VKString {
			vm.interned[args[0].Str] = struct{}{}
		}
		return args[0], nil

	case lir.IntrinsicOffsetToStringData:
		return vm.Int(stringDataOffset), nil

	case lir.IntrinsicMemberwiseClone, lir.IntrinsicArrayClone:
		if len(args) != 1 {
			return Value{}, vm.eb.typeMismatch("1 argument", fmt.Sprintf("%d", len(args)))
		}
		src := args[0]
		if src.IsNull() {
			return Value{}, vm.throwNew(vm.wk.NullReference, "clone of null")
		}
		obj, vmErr := vm.object(src)
		if vmErr != nil {
			return Value{}, vmErr
		}
		src.H = vm.Heap.adopt(obj.shallowCopy())
		return src, nil

	case lir.IntrinsicHash:
		if len(args) != 1 {
			return Value{}, vm.eb.typeMismatch("1 argument", fmt.Sprintf("%d", len(args)))
		}
		return vm.Int(vm.hashValue(args[0])), nil

	case lir.IntrinsicEquals:
		if len(args) != 2 {
			return Value{}, vm.eb.typeMismatch("2 arguments", fmt.Sprintf("%d", len(args)))
		}
		return vm.Bool(vm.equalValues(args[0], args[1])), nil

	case lir.IntrinsicPrint:
		return writeLine(vm, Value{}, args)
	}
	return Value{}, vm.eb.unsupportedIntrinsic(name)
}

// guardArg returns the heap object of args[i], throwing on null.
func (vm *VM) guardArg(name string, args []Value, i int) (*Object, *VMError) {
	if i >= len(args) {
		return nil, vm.eb.typeMismatch(fmt.Sprintf("%d arguments for %s", i+1, name), fmt.Sprintf("%d", len(args)))
	}
	if args[i].IsNull() {
		return nil, vm.throwNew(vm.wk.ArgumentNull, name+": argument is null")
	}
	return vm.object(args[i])
}

// acquire takes the ownership frame of args[0]. The optional condition
// delegate in args[1] must hold; nothing can change it while this thread
// waits, so a false condition fails the acquire.
func (vm *VM) acquire(name string, args []Value) (Value, *VMError) {
	obj, vmErr := vm.guardArg(name, args, 0)
	if vmErr != nil {
		return Value{}, vmErr
	}
	if obj.Writer || (name == lir.IntrinsicAcquireForWriting && obj.Readers > 0) {
		return Value{}, vm.throwNew(vm.wk.InvalidOperation, "frame is already held")
	}
	if len(args) > 1 && !args[1].IsNull() {
		ok, vmErr := vm.invokeDelegate(args[1], nil)
		if vmErr != nil {
			return Value{}, vmErr
		}
		if ok.Kind != VKBool || !ok.Bool {
			return Value{}, vm.throwNew(vm.wk.InvalidOperation, "acquire condition does not hold")
		}
	}
	if name == lir.IntrinsicAcquireForWriting {
		obj.Writer = true
	} else {
		obj.Readers++
	}
	return Value{}, nil
}

// nativeFunc implements a method of a runtime class. recv is invalid for
// static methods.
type nativeFunc func(vm *VM, recv Value, args []Value) (Value, *VMError)

var natives map[string]nativeFunc

func init() {
	natives = map[string]nativeFunc{
		"Exception..ctor":                   exceptionCtor,
		"ArgumentNullException..ctor":       argumentNullCtor,
		"ContractEvaluationException..ctor": exceptionCtor,
		"ArrayList..ctor":                   func(*VM, Value, []Value) (Value, *VMError) { return Value{}, nil },
		"ArrayList.Add":                     listAdd,
		"ArrayList.get_Count":               listCount,
		"ArrayList.get_Item":                listGet,
		"ArrayList.set_Item":                listSet,
		"ArrayList.Sort":                    listSort,
		"Hashtable..ctor":                   tableCtor,
		"Hashtable.get_Item":                tableGet,
		"Hashtable.set_Item":                tableSet,
		"Hashtable.ContainsKey":             tableContains,
		"Hashtable.get_Count":               tableCount,
		lir.IntrinsicPrint:                  writeLine,
	}
}

// lookupNative finds name on ty or the nearest base class implemented by
// the runtime.
func (vm *VM) lookupNative(ty types.TypeID, name string) nativeFunc {
	for cur, guard := ty, 0; cur != types.NoTypeID && guard < 64; guard++ {
		info, ok := vm.Types.ClassInfo(cur)
		if !ok {
			return nil
		}
		if fn, ok := natives[info.Name+"."+name]; ok {
			return fn
		}
		cur = info.Base
	}
	return nil
}

func exceptionCtor(vm *VM, recv Value, args []Value) (Value, *VMError) {
	obj, vmErr := vm.object(recv)
	if vmErr != nil {
		return Value{}, vmErr
	}
	if obj.Fields == nil {
		obj.Fields = make(map[string]Value)
	}
	obj.Fields[types.FieldMessage] = MakeNull(vm.b.String)
	if len(args) > 0 {
		obj.Fields[types.FieldMessage] = args[0]
	}
	obj.Fields[types.FieldInner] = MakeNull(vm.wk.Exception)
	if len(args) > 1 {
		obj.Fields[types.FieldInner] = args[1]
	}
	return Value{}, nil
}

func argumentNullCtor(vm *VM, recv Value, args []Value) (Value, *VMError) {
	if _, vmErr := exceptionCtor(vm, recv, args); vmErr != nil {
		return Value{}, vmErr
	}
	obj, _ := vm.object(recv)
	param := MakeNull(vm.b.String)
	if len(args) > 0 {
		param = args[0]
		obj.Fields[types.FieldMessage] = MakeString("value cannot be null: "+vm.format(param), vm.b.String)
	}
	obj.Fields[types.FieldParamName] = param
	return Value{}, nil
}

func writeLine(vm *VM, _ Value, args []Value) (Value, *VMError) {
	line := ""
	if len(args) > 0 {
		line = vm.format(args[0])
	}
	fmt.Fprintln(vm.Out, line)
	return Value{}, nil
}
