package vm

import (
	"fmt"
	"slices"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
)

// hashTable backs Hashtable. Entries keep insertion order; buckets map a
// key hash to entry indices. With a null comparer keys use Object.Equals
// and Object.GetHashCode semantics.
type hashTable struct {
	comparer Value
	entries  []tableEntry
	buckets  map[int64][]int
}

type tableEntry struct {
	key   Value
	value Value
}

func newHashTable() *hashTable {
	return &hashTable{buckets: make(map[int64][]int)}
}

func (t *hashTable) clone() *hashTable {
	out := &hashTable{
		comparer: t.comparer,
		entries:  slices.Clone(t.entries),
		buckets:  make(map[int64][]int, len(t.buckets)),
	}
	for h, idx := range t.buckets {
		out.buckets[h] = slices.Clone(idx)
	}
	return out
}

func (vm *VM) tableHash(t *hashTable, key Value) (int64, *VMError) {
	if t.comparer.IsNull() || t.comparer.Kind == VKInvalid {
		return vm.hashValue(key), nil
	}
	h, vmErr := vm.Invoke(t.comparer, "GetHashCode", key)
	if vmErr != nil {
		return 0, vmErr
	}
	return h.Int, nil
}

func (vm *VM) tableEqual(t *hashTable, a, b Value) (bool, *VMError) {
	if t.comparer.IsNull() || t.comparer.Kind == VKInvalid {
		return vm.equalValues(a, b), nil
	}
	eq, vmErr := vm.Invoke(t.comparer, "Equals", a, b)
	if vmErr != nil {
		return false, vmErr
	}
	return eq.Kind == VKBool && eq.Bool, nil
}

// find returns the entry index of key, or -1, and the key's hash.
func (vm *VM) tableFind(t *hashTable, key Value) (int, int64, *VMError) {
	if key.IsNull() {
		return -1, 0, vm.throwNew(vm.wk.ArgumentNull, "key")
	}
	h, vmErr := vm.tableHash(t, key)
	if vmErr != nil {
		return -1, 0, vmErr
	}
	for _, i := range t.buckets[h] {
		eq, vmErr := vm.tableEqual(t, t.entries[i].key, key)
		if vmErr != nil {
			return -1, h, vmErr
		}
		if eq {
			return i, h, nil
		}
	}
	return -1, h, nil
}

func (vm *VM) runtimeObject(recv Value, kind ObjectKind) (*Object, *VMError) {
	obj, vmErr := vm.object(recv)
	if vmErr != nil {
		return nil, vmErr
	}
	if obj.Kind != kind {
		return nil, vm.eb.typeMismatch(fmt.Sprintf("runtime collection kind %d", kind), vm.typeName(obj.TypeID))
	}
	return obj, nil
}

func arg(args []Value, i int) Value {
	if i < len(args) {
		return args[i]
	}
	return Value{}
}

func tableCtor(vm *VM, recv Value, args []Value) (Value, *VMError) {
	obj, vmErr := vm.runtimeObject(recv, OKTable)
	if vmErr != nil {
		return Value{}, vmErr
	}
	obj.Table.comparer = arg(args, 0)
	return Value{}, nil
}

func tableGet(vm *VM, recv Value, args []Value) (Value, *VMError) {
	obj, vmErr := vm.runtimeObject(recv, OKTable)
	if vmErr != nil {
		return Value{}, vmErr
	}
	i, _, vmErr := vm.tableFind(obj.Table, arg(args, 0))
	if vmErr != nil {
		return Value{}, vmErr
	}
	if i < 0 {
		return MakeNull(vm.b.Object), nil
	}
	return obj.Table.entries[i].value, nil
}

func tableSet(vm *VM, recv Value, args []Value) (Value, *VMError) {
	obj, vmErr := vm.runtimeObject(recv, OKTable)
	if vmErr != nil {
		return Value{}, vmErr
	}
	t := obj.Table
	key := arg(args, 0)
	i, h, vmErr := vm.tableFind(t, key)
	if vmErr != nil {
		return Value{}, vmErr
	}
	if i >= 0 {
		t.entries[i].value = arg(args, 1)
		return Value{}, nil
	}
	t.buckets[h] = append(t.buckets[h], len(t.entries))
	t.entries = append(t.entries, tableEntry{key: key, value: arg(args, 1)})
	return Value{}, nil
}

func tableContains(vm *VM, recv Value, args []Value) (Value, *VMError) {
	obj, vmErr := vm.runtimeObject(recv, OKTable)
	if vmErr != nil {
		return Value{}, vmErr
	}
	i, _, vmErr := vm.tableFind(obj.Table, arg(args, 0))
	if vmErr != nil {
		return Value{}, vmErr
	}
	return vm.Bool(i >= 0), nil
}

func tableCount(vm *VM, recv Value, _ []Value) (Value, *VMError) {
	obj, vmErr := vm.runtimeObject(recv, OKTable)
	if vmErr != nil {
		return Value{}, vmErr
	}
	return vm.Int(int64(len(obj.Table.entries))), nil
}

func listAdd(vm *VM, recv Value, args []Value) (Value, *VMError) {
	obj, vmErr := vm.runtimeObject(recv, OKList)
	if vmErr != nil {
		return Value{}, vmErr
	}
	obj.Arr = append(obj.Arr, arg(args, 0))
	return Value{}, nil
}

func listCount(vm *VM, recv Value, _ []Value) (Value, *VMError) {
	obj, vmErr := vm.runtimeObject(recv, OKList)
	if vmErr != nil {
		return Value{}, vmErr
	}
	return vm.Int(int64(len(obj.Arr))), nil
}

func (vm *VM) listIndex(obj *Object, idx Value) (int, *VMError) {
	if idx.Kind != VKInt {
		return 0, vm.eb.typeMismatch("int index", idx.Kind.String())
	}
	if idx.Int < 0 || idx.Int >= int64(len(obj.Arr)) {
		return 0, vm.throwNew(vm.wk.IndexOutOfRange, fmt.Sprintf("index %d out of range for count %d", idx.Int, len(obj.Arr)))
	}
	return vm.toIndex(idx.Int)
}

func listGet(vm *VM, recv Value, args []Value) (Value, *VMError) {
	obj, vmErr := vm.runtimeObject(recv, OKList)
	if vmErr != nil {
		return Value{}, vmErr
	}
	i, vmErr := vm.listIndex(obj, arg(args, 0))
	if vmErr != nil {
		return Value{}, vmErr
	}
	return obj.Arr[i], nil
}

func listSet(vm *VM, recv Value, args []Value) (Value, *VMError) {
	obj, vmErr := vm.runtimeObject(recv, OKList)
	if vmErr != nil {
		return Value{}, vmErr
	}
	i, vmErr := vm.listIndex(obj, arg(args, 0))
	if vmErr != nil {
		return Value{}, vmErr
	}
	obj.Arr[i] = arg(args, 1)
	return Value{}, nil
}

// listSort is a stable sort ordered by the comparer, or by the natural
// order of the unboxed elements when the comparer is null.
func listSort(vm *VM, recv Value, args []Value) (Value, *VMError) {
	obj, vmErr := vm.runtimeObject(recv, OKList)
	if vmErr != nil {
		return Value{}, vmErr
	}
	comparer := arg(args, 0)
	var failed *VMError
	slices.SortStableFunc(obj.Arr, func(a, b Value) int {
		if failed != nil {
			return 0
		}
		c, vmErr := vm.order(comparer, a, b)
		if vmErr != nil {
			failed = vmErr
		}
		return c
	})
	return Value{}, failed
}

func (vm *VM) order(comparer, a, b Value) (int, *VMError) {
	if comparer.IsNull() || comparer.Kind == VKInvalid {
		a, b = vm.unboxed(a), vm.unboxed(b)
		if a.IsNull() || b.IsNull() {
			return boolRank(!a.IsNull()) - boolRank(!b.IsNull()), nil
		}
		lt, vmErr := vm.compare(ast.BinLt, a, b, false, false)
		if vmErr != nil || lt {
			return -1, vmErr
		}
		gt, vmErr := vm.compare(ast.BinGt, a, b, false, false)
		if vmErr != nil || !gt {
			return 0, vmErr
		}
		return 1, nil
	}
	c, vmErr := vm.Invoke(comparer, "Compare", a, b)
	if vmErr != nil {
		return 0, vmErr
	}
	switch {
	case c.Int < 0:
		return -1, nil
	case c.Int > 0:
		return 1, nil
	}
	return 0, nil
}
