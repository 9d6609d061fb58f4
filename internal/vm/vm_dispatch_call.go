package vm

import (
	"fmt"

	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// invoke runs fn to completion in a new frame. For instance methods
// args[0] is the receiver.
func (vm *VM) invoke(fn *lir.Func, args []Value) (Value, *VMError) {
	if len(vm.Stack) >= vm.maxDepth {
		return Value{}, vm.eb.makeError(PanicStackOverflow, fmt.Sprintf("call depth exceeds %d in %s", vm.maxDepth, fn.Name))
	}
	if len(args) != fn.NumParams {
		return Value{}, vm.eb.typeMismatch(fmt.Sprintf("%d arguments for %s", fn.NumParams, fn.Name), fmt.Sprintf("%d", len(args)))
	}
	frame := vm.NewFrame(fn)
	for i, a := range args {
		frame.Locals[i].V = a
	}
	vm.Stack = append(vm.Stack, frame)
	defer func() { vm.Stack = vm.Stack[:len(vm.Stack)-1] }()
	return vm.run(frame)
}

// run executes frame until it returns or an exception escapes it.
func (vm *VM) run(frame *Frame) (Value, *VMError) {
	for {
		block := frame.CurrentBlock()
		if block == nil {
			return Value{}, vm.eb.makeError(PanicBadControl, fmt.Sprintf("%s: no block bb%d", frame.Func.Name, frame.BB))
		}
		if !frame.AtTerminator() {
			ins := &block.Instrs[frame.IP]
			if vm.Trace != nil {
				vm.Trace.TraceInstr(len(vm.Stack), frame.Func, frame.BB, frame.IP, ins)
			}
			if vmErr := vm.execInstr(frame, ins); vmErr != nil {
				if vmErr = vm.raise(frame, vmErr); vmErr != nil {
					return Value{}, vmErr
				}
				continue
			}
			frame.IP++
			continue
		}
		if vm.Trace != nil {
			vm.Trace.TraceTerm(len(vm.Stack), frame.Func, frame.BB, &block.Term)
		}
		ret, st, vmErr := vm.execTerminator(frame, &block.Term)
		switch {
		case st == termEscape:
			vm.Trace.TraceException(len(vm.Stack), frame.Func, vmErr)
			return Value{}, vmErr
		case vmErr != nil:
			if vmErr = vm.raise(frame, vmErr); vmErr != nil {
				return Value{}, vmErr
			}
		case st == termReturn:
			return ret, nil
		}
	}
}

func (vm *VM) execInstr(frame *Frame, ins *lir.Instr) *VMError {
	switch ins.Kind {
	case lir.InstrAssign:
		v, vmErr := vm.evalRValue(frame, &ins.Assign.Src)
		if vmErr != nil {
			return vmErr
		}
		return vm.storePlace(frame, &ins.Assign.Dst, v)
	case lir.InstrCall:
		return vm.execCall(frame, &ins.Call)
	case lir.InstrNew:
		args, vmErr := vm.evalOperands(frame, ins.New.Args)
		if vmErr != nil {
			return vmErr
		}
		obj, vmErr := vm.construct(ins.New.Class, args)
		if vmErr != nil {
			return vmErr
		}
		return vm.storePlace(frame, &ins.New.Dst, obj)
	case lir.InstrPopException:
		return vm.storePlace(frame, &ins.PopException.Dst, frame.handling)
	case lir.InstrAssume:
		v, vmErr := vm.evalOperand(frame, &ins.Assume.Cond)
		if vmErr != nil {
			return vmErr
		}
		if v.Kind != VKBool || !v.Bool {
			return vm.eb.makeError(PanicAssumption, fmt.Sprintf("%s: assumption %q does not hold", frame.Func.Name, ins.Assume.Text))
		}
		return nil
	case lir.InstrNop:
		return nil
	}
	return vm.eb.unimplemented(fmt.Sprintf("instruction kind %d", ins.Kind))
}

func (vm *VM) storePlace(frame *Frame, p *lir.Place, v Value) *VMError {
	loc, vmErr := vm.resolvePlace(frame, p)
	if vmErr != nil {
		return vmErr
	}
	return vm.store(loc, v)
}

func (vm *VM) execCall(frame *Frame, ci *lir.CallInstr) *VMError {
	var recv Value
	if ci.HasRecv {
		var vmErr *VMError
		if recv, vmErr = vm.evalOperand(frame, &ci.Recv); vmErr != nil {
			return vmErr
		}
	}
	args, vmErr := vm.evalOperands(frame, ci.Args)
	if vmErr != nil {
		return vmErr
	}
	var res Value
	callee := &ci.Callee
	switch callee.Kind {
	case lir.CalleeMethod:
		switch {
		case !ci.HasRecv:
			res, vmErr = vm.callStatic(callee.Owner, callee.Name, args)
		case recv.IsNull():
			vmErr = vm.throwNew(vm.wk.NullReference, fmt.Sprintf("call of %s on null", callee.Name))
		case callee.Virtual:
			res, vmErr = vm.callVirtual(recv, vm.dynType(recv), callee.Name, args)
		default:
			res, vmErr = vm.callVirtual(recv, callee.Owner, callee.Name, args)
		}
	case lir.CalleeIntrinsic:
		res, vmErr = vm.intrinsic(callee.Name, args)
	case lir.CalleeDelegate:
		var del Value
		if del, vmErr = vm.evalOperand(frame, &callee.Value); vmErr == nil {
			res, vmErr = vm.invokeDelegate(del, args)
		}
	default:
		vmErr = vm.eb.unimplemented(fmt.Sprintf("callee kind %d", callee.Kind))
	}
	if vmErr != nil {
		return vmErr
	}
	if ci.HasDst {
		return vm.storePlace(frame, &ci.Dst, res)
	}
	return nil
}

// findMethod resolves name on ty and its base classes among the lowered
// methods.
func (vm *VM) findMethod(ty types.TypeID, name string) *lir.Func {
	for cur, guard := ty, 0; cur != types.NoTypeID && guard < 64; guard++ {
		if fn := vm.M.Method(cur, name); fn != nil {
			return fn
		}
		info, ok := vm.Types.ClassInfo(cur)
		if !ok {
			break
		}
		cur = info.Base
	}
	return nil
}

func (vm *VM) callStatic(owner types.TypeID, name string, args []Value) (Value, *VMError) {
	if fn := vm.findMethod(owner, name); fn != nil {
		return vm.invoke(fn, args)
	}
	if native := vm.lookupNative(owner, name); native != nil {
		return native(vm, Value{}, args)
	}
	return Value{}, vm.eb.missingMethod(vm.typeName(owner), name)
}

// callVirtual calls name on recv starting the lookup at ty: the runtime
// type for virtual calls, the declaring type otherwise.
func (vm *VM) callVirtual(recv Value, ty types.TypeID, name string, args []Value) (Value, *VMError) {
	if recv.IsNull() {
		return Value{}, vm.throwNew(vm.wk.NullReference, fmt.Sprintf("call of %s on null", name))
	}
	if fn := vm.findMethod(ty, name); fn != nil {
		return vm.invoke(fn, append([]Value{recv}, args...))
	}
	if native := vm.lookupNative(vm.dynType(recv), name); native != nil {
		return native(vm, recv, args)
	}
	if native := vm.lookupNative(ty, name); native != nil {
		return native(vm, recv, args)
	}
	return Value{}, vm.eb.missingMethod(vm.typeName(vm.dynType(recv)), name)
}

func (vm *VM) invokeDelegate(del Value, args []Value) (Value, *VMError) {
	if del.IsNull() {
		return Value{}, vm.throwNew(vm.wk.NullReference, "invoke of a null delegate")
	}
	obj, vmErr := vm.object(del)
	if vmErr != nil {
		return Value{}, vmErr
	}
	if obj.Kind != OKDelegate {
		return Value{}, vm.eb.typeMismatch("delegate", vm.typeName(obj.TypeID))
	}
	d := obj.Del
	if d.HasTarget {
		return vm.callVirtual(d.Target, d.Owner, d.Method, args)
	}
	return vm.callStatic(d.Owner, d.Method, args)
}

// construct allocates class and runs its constructor, if any.
func (vm *VM) construct(class types.TypeID, args []Value) (Value, *VMError) {
	var v Value
	switch {
	case vm.Types.IsSubtype(class, vm.wk.ArrayList):
		h, _ := vm.Heap.alloc(OKList, class)
		v = makeHandle(VKObject, h, class)
	case vm.Types.IsSubtype(class, vm.wk.Hashtable):
		h, obj := vm.Heap.alloc(OKTable, class)
		obj.Table = newHashTable()
		v = makeHandle(VKObject, h, class)
	case vm.Types.Kind(class) == types.KindStruct:
		h, _ := vm.Heap.alloc(OKStruct, class)
		v = makeHandle(VKStruct, h, class)
	default:
		h, _ := vm.Heap.alloc(OKInstance, class)
		v = makeHandle(VKObject, h, class)
	}
	if fn := vm.M.Method(class, ".ctor"); fn != nil {
		_, vmErr := vm.invoke(fn, append([]Value{v}, args...))
		return v, vmErr
	}
	if native := vm.lookupNative(class, ".ctor"); native != nil {
		_, vmErr := native(vm, v, args)
		return v, vmErr
	}
	if len(args) != 0 {
		return Value{}, vm.eb.missingMethod(vm.typeName(class), ".ctor")
	}
	return v, nil
}
