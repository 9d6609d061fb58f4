package vm

import (
	"fmt"

	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// Heap stores all runtime objects for the VM. Handles are monotonically
// increasing and never reused within a run; nothing is ever freed.
type Heap struct {
	next Handle
	objs map[Handle]*Object

	vm *VM
}

func newHeap(vm *VM) *Heap {
	return &Heap{next: 1, objs: make(map[Handle]*Object, 128), vm: vm}
}

func (h *Heap) alloc(kind ObjectKind, typeID types.TypeID) (Handle, *Object) {
	handle := h.next
	h.next++
	obj := &Object{Kind: kind, TypeID: typeID}
	h.objs[handle] = obj
	if h.vm != nil && h.vm.Trace != nil {
		h.vm.Trace.TraceHeapAlloc(kind, handle, obj)
	}
	return handle, obj
}

// Get returns the object behind handle.
func (h *Heap) Get(handle Handle) (*Object, bool) {
	obj, ok := h.objs[handle]
	return obj, ok
}

// Len reports the number of allocated objects.
func (h *Heap) Len() int {
	return len(h.objs)
}

// AllocArray allocates an array of typeID holding elems.
func (h *Heap) AllocArray(typeID types.TypeID, elems []Value) Handle {
	handle, obj := h.alloc(OKArray, typeID)
	obj.Arr = elems
	return handle
}

func (h *Heap) adopt(obj *Object) Handle {
	handle := h.next
	h.next++
	h.objs[handle] = obj
	if h.vm != nil && h.vm.Trace != nil {
		h.vm.Trace.TraceHeapAlloc(obj.Kind, handle, obj)
	}
	return handle
}

func (vm *VM) object(v Value) (*Object, *VMError) {
	if !v.IsHeap() {
		return nil, vm.eb.typeMismatch("object", v.Kind.String())
	}
	obj, ok := vm.Heap.Get(v.H)
	if !ok {
		return nil, vm.eb.makeError(PanicInvalidHandle, fmt.Sprintf("invalid handle %d", v.H))
	}
	return obj, nil
}

// cloneValue gives v value semantics: structs are copied field by field,
// everything else is returned as is.
func (vm *VM) cloneValue(v Value) Value {
	if v.Kind != VKStruct {
		return v
	}
	obj, ok := vm.Heap.Get(v.H)
	if !ok {
		return v
	}
	cp := &Object{Kind: OKStruct, TypeID: obj.TypeID, Fields: make(map[string]Value, len(obj.Fields))}
	for k, f := range obj.Fields {
		cp.Fields[k] = vm.cloneValue(f)
	}
	v.H = vm.Heap.adopt(cp)
	return v
}
