package types

import (
	"fmt"
	"sync"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for common primitive types.
type Builtins struct {
	Invalid TypeID
	Void    TypeID
	Bool    TypeID
	Char    TypeID
	Byte    TypeID
	Int     TypeID
	Long    TypeID
	Uint    TypeID
	Ulong   TypeID
	Single  TypeID
	Double  TypeID
	String  TypeID
	Object  TypeID
	Null    TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
// Nominal types (classes, structs, interfaces) get a fresh id on registration.
// All methods are safe for concurrent use; procedures lowered in parallel
// register their synthesized types through the same interner.
type Interner struct {
	mu        sync.RWMutex
	types     []Type
	index     map[typeKey]TypeID
	builtins  Builtins
	wellKnown WellKnown
	classes   []ClassInfo
	byName    map[string]TypeID
	delegates []DelegateInfo
	delIndex  map[string]TypeID
}

// NewInterner constructs an interner seeded with built-in primitives and the
// runtime types referenced by lowered code.
func NewInterner() *Interner {
	in := &Interner{
		index:    make(map[typeKey]TypeID, 64),
		byName:   make(map[string]TypeID, 32),
		delIndex: make(map[string]TypeID),
	}
	in.classes = append(in.classes, ClassInfo{}) // reserve 0 as invalid sentinel
	in.delegates = append(in.delegates, DelegateInfo{})
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Void = in.Intern(Type{Kind: KindVoid})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.Char = in.Intern(Type{Kind: KindChar})
	in.builtins.Byte = in.Intern(MakeUint(Width8))
	in.builtins.Int = in.Intern(MakeInt(Width32))
	in.builtins.Long = in.Intern(MakeInt(Width64))
	in.builtins.Uint = in.Intern(MakeUint(Width32))
	in.builtins.Ulong = in.Intern(MakeUint(Width64))
	in.builtins.Single = in.Intern(MakeFloat(Width32))
	in.builtins.Double = in.Intern(MakeFloat(Width64))
	in.builtins.String = in.Intern(Type{Kind: KindString})
	in.builtins.Object = in.Intern(Type{Kind: KindObject})
	in.builtins.Null = in.Intern(Type{Kind: KindNull})
	in.seedWellKnown()
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := typeKey(t)
	in.mu.RLock()
	id, ok := in.index[key]
	in.mu.RUnlock()
	if ok {
		return id
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to the storage without consulting the map.
// Callers hold the write lock (or own the interner exclusively).
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.index[typeKey(t)] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.lookupLocked(id)
}

func (in *Interner) lookupLocked(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// Kind is a shorthand for the kind of id, KindInvalid when unknown.
func (in *Interner) Kind(id TypeID) Kind {
	tt, ok := in.Lookup(id)
	if !ok {
		return KindInvalid
	}
	return tt.Kind
}

// Elem returns the element type of an array, pointer, byref, nullable or sequence type.
func (in *Interner) Elem(id TypeID) TypeID {
	tt, ok := in.Lookup(id)
	if !ok {
		return NoTypeID
	}
	switch tt.Kind {
	case KindArray, KindPointer, KindByRef, KindNullable, KindEnumerable, KindEnumerator:
		return tt.Elem
	default:
		return NoTypeID
	}
}

// Count reports how many type ids have been allocated.
func (in *Interner) Count() int {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return len(in.types)
}

type typeKey struct {
	Kind    Kind
	Elem    TypeID
	Width   Width
	Payload uint32
}
