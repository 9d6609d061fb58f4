package vm

import (
	"fmt"
	"math"

	"fortio.org/safecast"

	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// LocKind identifies the storage a Location designates.
type LocKind uint8

const (
	LocLocal LocKind = iota
	LocStatic
	LocField
	LocElem
	// LocString is a character of a pinned string; it is read-only.
	LocString
)

// Location is an addressable storage slot. Pointers and resolved places
// are both Locations.
type Location struct {
	Kind  LocKind
	Frame *Frame
	Local lir.LocalID
	Owner types.TypeID
	H     Handle
	Field string
	Index int
	Str   []rune
}

func (l *Location) String() string {
	switch l.Kind {
	case LocLocal:
		return fmt.Sprintf("L%d", l.Local)
	case LocStatic:
		return fmt.Sprintf("static %s", l.Field)
	case LocField:
		return fmt.Sprintf("#%d.%s", l.H, l.Field)
	case LocElem:
		return fmt.Sprintf("#%d[%d]", l.H, l.Index)
	default:
		return fmt.Sprintf("str[%d]", l.Index)
	}
}

type staticKey struct {
	owner types.TypeID
	name  string
}

// resolvePlace walks the projections of p. Field and index projections
// look through pointers, so a value-type receiver passed by address is
// used like the value itself.
func (vm *VM) resolvePlace(frame *Frame, p *lir.Place) (*Location, *VMError) {
	var loc *Location
	switch p.Kind {
	case lir.PlaceLocal:
		if p.Local < 0 || int(p.Local) >= len(frame.Locals) {
			return nil, vm.eb.outOfBounds(int(p.Local), len(frame.Locals))
		}
		loc = &Location{Kind: LocLocal, Frame: frame, Local: p.Local}
	case lir.PlaceStatic:
		loc = &Location{Kind: LocStatic, Owner: p.Owner, Field: p.Field}
	default:
		return nil, vm.eb.unimplemented(fmt.Sprintf("place kind %d", p.Kind))
	}
	for i := range p.Proj {
		proj := &p.Proj[i]
		switch proj.Kind {
		case lir.PlaceProjField:
			v, vmErr := vm.loadThrough(loc)
			if vmErr != nil {
				return nil, vmErr
			}
			if v.IsNull() {
				return nil, vm.throwNew(vm.wk.NullReference, "field "+proj.Field+" of null")
			}
			if v.Kind != VKObject && v.Kind != VKStruct {
				return nil, vm.eb.typeMismatch("object", v.Kind.String())
			}
			obj, vmErr := vm.object(v)
			if vmErr != nil {
				return nil, vmErr
			}
			h := v.H
			if obj.Kind == OKBox && obj.Boxed.Kind == VKStruct {
				h = obj.Boxed.H
			}
			loc = &Location{Kind: LocField, H: h, Field: proj.Field}
		case lir.PlaceProjIndex:
			idx, vmErr := vm.evalOperand(frame, &proj.Index)
			if vmErr != nil {
				return nil, vmErr
			}
			v, vmErr := vm.loadThrough(loc)
			if vmErr != nil {
				return nil, vmErr
			}
			if loc, vmErr = vm.elementLoc(v, idx); vmErr != nil {
				return nil, vmErr
			}
		case lir.PlaceProjDeref:
			v, vmErr := vm.load(loc)
			if vmErr != nil {
				return nil, vmErr
			}
			if v.IsNull() {
				return nil, vm.throwNew(vm.wk.NullReference, "dereference of a null pointer")
			}
			if v.Kind != VKPtr {
				return nil, vm.eb.typeMismatch("pointer", v.Kind.String())
			}
			loc = v.Loc
		}
	}
	return loc, nil
}

func (vm *VM) elementLoc(v, idx Value) (*Location, *VMError) {
	if idx.Kind != VKInt {
		return nil, vm.eb.typeMismatch("int index", idx.Kind.String())
	}
	switch v.Kind {
	case VKNull:
		return nil, vm.throwNew(vm.wk.NullReference, "index into null")
	case VKArray:
		obj, vmErr := vm.object(v)
		if vmErr != nil {
			return nil, vmErr
		}
		if idx.Int < 0 || idx.Int >= int64(len(obj.Arr)) {
			return nil, vm.throwNew(vm.wk.IndexOutOfRange, fmt.Sprintf("index %d out of range for length %d", idx.Int, len(obj.Arr)))
		}
		i, vmErr := vm.toIndex(idx.Int)
		if vmErr != nil {
			return nil, vmErr
		}
		return &Location{Kind: LocElem, H: v.H, Index: i}, nil
	case VKString:
		rs := []rune(v.Str)
		if idx.Int < 0 || idx.Int >= int64(len(rs)) {
			return nil, vm.throwNew(vm.wk.IndexOutOfRange, fmt.Sprintf("index %d out of range for length %d", idx.Int, len(rs)))
		}
		i, vmErr := vm.toIndex(idx.Int)
		if vmErr != nil {
			return nil, vmErr
		}
		return &Location{Kind: LocString, Str: rs, Index: i}, nil
	default:
		return nil, vm.eb.typeMismatch("array", v.Kind.String())
	}
}

// toIndex narrows a 64-bit index or element offset to int.
func (vm *VM) toIndex(n int64) (int, *VMError) {
	i, err := safecast.Conv[int](n)
	if err != nil {
		return 0, vm.eb.outOfBounds(math.MaxInt, 0)
	}
	return i, nil
}

// loadThrough loads loc, following pointers to the value they address.
func (vm *VM) loadThrough(loc *Location) (Value, *VMError) {
	v, vmErr := vm.load(loc)
	for vmErr == nil && v.Kind == VKPtr {
		v, vmErr = vm.load(v.Loc)
	}
	return v, vmErr
}

func (vm *VM) load(loc *Location) (Value, *VMError) {
	switch loc.Kind {
	case LocLocal:
		return loc.Frame.Locals[loc.Local].V, nil
	case LocStatic:
		key := staticKey{owner: loc.Owner, name: loc.Field}
		if v, ok := vm.statics[key]; ok {
			return v, nil
		}
		f, _, ok := vm.Types.LookupField(loc.Owner, loc.Field)
		if !ok {
			return Value{}, vm.eb.makeError(PanicMissingMethod, fmt.Sprintf("no static field %s", loc.Field))
		}
		v := vm.defaultValue(f.Type)
		vm.statics[key] = v
		return v, nil
	case LocField:
		obj, ok := vm.Heap.Get(loc.H)
		if !ok {
			return Value{}, vm.eb.makeError(PanicInvalidHandle, fmt.Sprintf("invalid handle %d", loc.H))
		}
		if v, ok := obj.Fields[loc.Field]; ok {
			return v, nil
		}
		f, _, ok := vm.Types.LookupField(obj.TypeID, loc.Field)
		if !ok {
			return Value{}, vm.eb.makeError(PanicMissingMethod, fmt.Sprintf("%s has no field %s", vm.typeName(obj.TypeID), loc.Field))
		}
		v := vm.defaultValue(f.Type)
		if obj.Fields == nil {
			obj.Fields = make(map[string]Value)
		}
		obj.Fields[loc.Field] = v
		return v, nil
	case LocElem:
		obj, ok := vm.Heap.Get(loc.H)
		if !ok {
			return Value{}, vm.eb.makeError(PanicInvalidHandle, fmt.Sprintf("invalid handle %d", loc.H))
		}
		if loc.Index < 0 || loc.Index >= len(obj.Arr) {
			return Value{}, vm.eb.outOfBounds(loc.Index, len(obj.Arr))
		}
		return obj.Arr[loc.Index], nil
	case LocString:
		if loc.Index < 0 || loc.Index >= len(loc.Str) {
			return Value{}, vm.eb.outOfBounds(loc.Index, len(loc.Str))
		}
		return MakeInt(int64(loc.Str[loc.Index]), vm.b.Char), nil
	}
	return Value{}, vm.eb.unimplemented(fmt.Sprintf("location kind %d", loc.Kind))
}

func (vm *VM) store(loc *Location, v Value) *VMError {
	switch loc.Kind {
	case LocLocal:
		loc.Frame.Locals[loc.Local].V = v
		if vm.Trace != nil {
			vm.Trace.TraceWrite(loc.Frame, loc.Local, v)
		}
	case LocStatic:
		vm.statics[staticKey{owner: loc.Owner, name: loc.Field}] = v
	case LocField:
		obj, ok := vm.Heap.Get(loc.H)
		if !ok {
			return vm.eb.makeError(PanicInvalidHandle, fmt.Sprintf("invalid handle %d", loc.H))
		}
		if obj.Fields == nil {
			obj.Fields = make(map[string]Value)
		}
		obj.Fields[loc.Field] = v
	case LocElem:
		obj, ok := vm.Heap.Get(loc.H)
		if !ok {
			return vm.eb.makeError(PanicInvalidHandle, fmt.Sprintf("invalid handle %d", loc.H))
		}
		if loc.Index < 0 || loc.Index >= len(obj.Arr) {
			return vm.eb.outOfBounds(loc.Index, len(obj.Arr))
		}
		obj.Arr[loc.Index] = v
	case LocString:
		return vm.eb.typeMismatch("writable location", "string data")
	default:
		return vm.eb.unimplemented(fmt.Sprintf("location kind %d", loc.Kind))
	}
	return nil
}
