// Package vm is a reference interpreter for lowered modules. It executes
// lir directly, including exception handler regions, so lowering can be
// checked by running the code it produces.
package vm

import (
	"fmt"
	"io"

	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// DefaultMaxDepth bounds the call stack.
const DefaultMaxDepth = 512

// Options configures VM execution.
type Options struct {
	// Out receives Console.WriteLine output; nil discards it.
	Out io.Writer
	// Trace enables execution tracing to the writer.
	Trace    io.Writer
	MaxDepth int
}

// VM is a direct lir interpreter.
type VM struct {
	M     *lir.Module
	Types *types.Interner
	Heap  *Heap
	Stack []*Frame
	Out   io.Writer
	Trace *Tracer

	statics  map[staticKey]Value
	interned map[string]struct{}
	wk       types.WellKnown
	b        types.Builtins
	eb       *errorBuilder
	maxDepth int
}

// New creates a VM for m. The interner must be the one m was lowered with.
func New(m *lir.Module, typesIn *types.Interner, opts Options) *VM {
	vm := &VM{
		M:        m,
		Types:    typesIn,
		Out:      opts.Out,
		statics:  make(map[staticKey]Value),
		interned: make(map[string]struct{}),
		wk:       typesIn.WellKnown(),
		b:        typesIn.Builtins(),
		maxDepth: opts.MaxDepth,
	}
	if vm.Out == nil {
		vm.Out = io.Discard
	}
	if vm.maxDepth <= 0 {
		vm.maxDepth = DefaultMaxDepth
	}
	vm.eb = &errorBuilder{vm: vm}
	vm.Heap = newHeap(vm)
	if opts.Trace != nil {
		vm.Trace = NewTracer(opts.Trace)
		vm.Trace.vm = vm
	}
	return vm
}

// Call runs the static method owner.name.
func (vm *VM) Call(owner types.TypeID, name string, args ...Value) (Value, *VMError) {
	fn := vm.M.Method(owner, name)
	if fn == nil {
		return Value{}, vm.eb.missingMethod(vm.typeName(owner), name)
	}
	if !fn.Static {
		return Value{}, vm.eb.typeMismatch("static method", "instance method "+name)
	}
	return vm.invoke(fn, args)
}

// Invoke calls the method name on recv, dispatching on its runtime type.
func (vm *VM) Invoke(recv Value, name string, args ...Value) (Value, *VMError) {
	return vm.callVirtual(recv, vm.dynType(recv), name, args)
}

// Construct allocates class and runs its constructor.
func (vm *VM) Construct(class types.TypeID, args ...Value) (Value, *VMError) {
	return vm.construct(class, args)
}

// Int wraps n as an int value.
func (vm *VM) Int(n int64) Value {
	return vm.wrapInt(n, vm.b.Int)
}

// Str wraps s as a string value.
func (vm *VM) Str(s string) Value {
	return MakeString(s, vm.b.String)
}

// Bool wraps b as a bool value.
func (vm *VM) Bool(b bool) Value {
	return MakeBool(b, vm.b.Bool)
}

// NewArray allocates an array of elem holding elems.
func (vm *VM) NewArray(elem types.TypeID, elems ...Value) Value {
	ty := vm.Types.Intern(types.MakeArray(elem))
	return makeHandle(VKArray, vm.Heap.AllocArray(ty, append([]Value(nil), elems...)), ty)
}

// Elements returns the elements of an array value.
func (vm *VM) Elements(v Value) ([]Value, *VMError) {
	if v.Kind != VKArray {
		return nil, vm.eb.typeMismatch("array", v.Kind.String())
	}
	obj, vmErr := vm.object(v)
	if vmErr != nil {
		return nil, vmErr
	}
	return append([]Value(nil), obj.Arr...), nil
}

// Field reads a field of an instance.
func (vm *VM) Field(v Value, name string) (Value, *VMError) {
	if v.IsNull() {
		return Value{}, vm.throwNew(vm.wk.NullReference, "field "+name+" of null")
	}
	return vm.loadThrough(&Location{Kind: LocField, H: v.H, Field: name})
}

// Drain enumerates seq through its enumerator protocol and disposes the
// enumerator afterwards. Arrays, strings and ArrayLists are read directly.
func (vm *VM) Drain(seq Value) ([]Value, *VMError) {
	if seq.IsNull() {
		return nil, vm.throwNew(vm.wk.NullReference, "enumeration of null")
	}
	switch seq.Kind {
	case VKArray:
		return vm.Elements(seq)
	case VKString:
		var out []Value
		for _, r := range seq.Str {
			out = append(out, MakeInt(int64(r), vm.b.Char))
		}
		return out, nil
	}
	if obj, vmErr := vm.object(seq); vmErr == nil && obj.Kind == OKList {
		return append([]Value(nil), obj.Arr...), nil
	}
	it := seq
	if vm.findMethod(vm.dynType(seq), "GetEnumerator") != nil {
		var vmErr *VMError
		if it, vmErr = vm.Invoke(seq, "GetEnumerator"); vmErr != nil {
			return nil, vmErr
		}
	}
	var out []Value
	for {
		more, vmErr := vm.Invoke(it, "MoveNext")
		if vmErr != nil {
			return out, vmErr
		}
		if !more.Bool {
			break
		}
		cur, vmErr := vm.Invoke(it, "get_Current")
		if vmErr != nil {
			return out, vmErr
		}
		out = append(out, cur)
	}
	if _, vmErr := vm.Invoke(it, "Dispose"); vmErr != nil {
		return out, vmErr
	}
	return out, nil
}

// Format renders v the way Console.WriteLine prints it.
func (vm *VM) Format(v Value) string {
	return vm.format(v)
}

func (vm *VM) typeName(id types.TypeID) string {
	if vm.Types == nil {
		return fmt.Sprintf("type#%d", id)
	}
	return vm.Types.TypeString(id)
}

// defaultValue is the zero value of ty. Struct locals get their own
// instance; fields are filled in on first read.
func (vm *VM) defaultValue(ty types.TypeID) Value {
	tt, ok := vm.Types.Lookup(ty)
	if !ok {
		return Value{TypeID: ty}
	}
	switch tt.Kind {
	case types.KindBool:
		return MakeBool(false, ty)
	case types.KindChar, types.KindInt, types.KindUint:
		return MakeInt(0, ty)
	case types.KindFloat:
		return MakeFloat(0, ty)
	case types.KindStruct:
		h, _ := vm.Heap.alloc(OKStruct, ty)
		return makeHandle(VKStruct, h, ty)
	case types.KindVoid, types.KindInvalid:
		return Value{TypeID: ty}
	default:
		return MakeNull(ty)
	}
}

// dynType is the runtime type of v: the class of a heap object, the
// boxed type of a box, or the static type otherwise.
func (vm *VM) dynType(v Value) types.TypeID {
	if v.IsHeap() {
		if obj, ok := vm.Heap.Get(v.H); ok {
			return obj.TypeID
		}
	}
	return v.TypeID
}

// newException allocates an exception of class carrying msg.
func (vm *VM) newException(class types.TypeID, msg string) Value {
	h, obj := vm.Heap.alloc(OKInstance, class)
	obj.Fields = map[string]Value{
		types.FieldMessage: MakeString(msg, vm.b.String),
		types.FieldInner:   MakeNull(vm.wk.Exception),
	}
	return makeHandle(VKObject, h, class)
}

// throwNew raises a runtime exception of class.
func (vm *VM) throwNew(class types.TypeID, msg string) *VMError {
	return vm.eb.thrown(vm.newException(class, msg))
}
