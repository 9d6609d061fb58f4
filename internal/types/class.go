package types

import (
	"fmt"
	"slices"
	"strconv"

	"fortio.org/safecast"
)

// ClassFlags carries metadata bits for nominal types.
type ClassFlags uint8

const (
	ClassPublic ClassFlags = 1 << iota
	ClassSealed
	// ClassSynthesized marks types created during lowering (closure
	// environments, iterator state machines, query key and comparer types).
	ClassSynthesized
	// ClassHasFrame marks types whose instances carry an ownership frame
	// that public methods must be able to expose.
	ClassHasFrame
	// ClassRuntime marks types implemented natively by the runtime.
	ClassRuntime
	ClassDisposable
)

// Field describes a single field of a nominal type.
type Field struct {
	Name   string
	Type   TypeID
	Static bool
}

// Method describes the signature of a method declared on a nominal type.
type Method struct {
	Name    string
	Params  []TypeID
	Result  TypeID
	Static  bool
	Virtual bool
}

// ClassInfo stores metadata for a class, struct or interface.
type ClassInfo struct {
	Name       string
	Kind       Kind
	Base       TypeID
	Interfaces []TypeID
	Fields     []Field
	Methods    []Method
	Flags      ClassFlags
}

func (c *ClassInfo) clone() ClassInfo {
	out := *c
	out.Interfaces = slices.Clone(c.Interfaces)
	out.Fields = slices.Clone(c.Fields)
	out.Methods = make([]Method, len(c.Methods))
	for i, m := range c.Methods {
		m.Params = slices.Clone(m.Params)
		out.Methods[i] = m
	}
	return out
}

// RegisterClass allocates a nominal type slot and returns its TypeID.
// kind must be KindClass, KindStruct or KindInterface.
func (in *Interner) RegisterClass(name string, kind Kind, flags ClassFlags) TypeID {
	switch kind {
	case KindClass, KindStruct, KindInterface:
	default:
		panic(fmt.Errorf("types: cannot register %s %q as nominal", kind, name))
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.registerClassLocked(name, kind, flags)
}

func (in *Interner) registerClassLocked(name string, kind Kind, flags ClassFlags) TypeID {
	in.classes = append(in.classes, ClassInfo{Name: name, Kind: kind, Flags: flags})
	slot, err := safecast.Conv[uint32](len(in.classes) - 1)
	if err != nil {
		panic(fmt.Errorf("class info overflow: %w", err))
	}
	id := in.internRaw(Type{Kind: kind, Payload: slot})
	if _, exists := in.byName[name]; !exists {
		in.byName[name] = id
	}
	return id
}

// ClassByName finds a nominal type by its declared name.
func (in *Interner) ClassByName(name string) (TypeID, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	id, ok := in.byName[name]
	return id, ok
}

// RegisterUniqueClass registers a class under hint, or under hint with a
// numeric suffix when hint is taken, and returns the id and chosen name.
// Choosing and registering happen under one lock, so concurrent callers
// never receive the same name.
func (in *Interner) RegisterUniqueClass(hint string, kind Kind, flags ClassFlags) (TypeID, string) {
	switch kind {
	case KindClass, KindStruct, KindInterface:
	default:
		panic(fmt.Errorf("types: cannot register %s %q as nominal", kind, hint))
	}
	in.mu.Lock()
	defer in.mu.Unlock()
	name := in.uniqueNameLocked(hint)
	return in.registerClassLocked(name, kind, flags), name
}

// UniqueClassName returns hint when unused, otherwise hint with a numeric suffix.
func (in *Interner) UniqueClassName(hint string) string {
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.uniqueNameLocked(hint)
}

func (in *Interner) uniqueNameLocked(hint string) string {
	if _, taken := in.byName[hint]; !taken {
		return hint
	}
	for n := 1; ; n++ {
		candidate := hint + "_" + strconv.Itoa(n)
		if _, taken := in.byName[candidate]; !taken {
			return candidate
		}
	}
}

// ClassInfo returns a snapshot of the metadata for a nominal TypeID.
func (in *Interner) ClassInfo(id TypeID) (ClassInfo, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	info := in.classLocked(id)
	if info == nil {
		return ClassInfo{}, false
	}
	return info.clone(), true
}

func (in *Interner) classLocked(id TypeID) *ClassInfo {
	tt, ok := in.lookupLocked(id)
	if !ok {
		return nil
	}
	switch tt.Kind {
	case KindClass, KindStruct, KindInterface:
	default:
		return nil
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.classes) {
		return nil
	}
	return &in.classes[tt.Payload]
}

// SetBase records the base class of id.
func (in *Interner) SetBase(id, base TypeID) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if info := in.classLocked(id); info != nil {
		info.Base = base
	}
}

// AddInterface records that id implements iface.
func (in *Interner) AddInterface(id, iface TypeID) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if info := in.classLocked(id); info != nil && !slices.Contains(info.Interfaces, iface) {
		info.Interfaces = append(info.Interfaces, iface)
	}
}

// SetFlags ors flags into the class metadata.
func (in *Interner) SetFlags(id TypeID, flags ClassFlags) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if info := in.classLocked(id); info != nil {
		info.Flags |= flags
	}
}

// AddField appends a field to id. It reports false when a field with the
// same name already exists on the type itself.
func (in *Interner) AddField(id TypeID, f Field) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	info := in.classLocked(id)
	if info == nil {
		return false
	}
	for _, existing := range info.Fields {
		if existing.Name == f.Name {
			return false
		}
	}
	info.Fields = append(info.Fields, f)
	return true
}

// AddUniqueField appends an instance field named after hint, adding a numeric
// suffix on collision, and returns the chosen name. The field set only grows.
func (in *Interner) AddUniqueField(id TypeID, hint string, ty TypeID) string {
	in.mu.Lock()
	defer in.mu.Unlock()
	info := in.classLocked(id)
	if info == nil {
		panic(fmt.Errorf("types: AddUniqueField on non-nominal type %d", id))
	}
	name := hint
	for n := 1; hasField(info.Fields, name); n++ {
		name = hint + "_" + strconv.Itoa(n)
	}
	info.Fields = append(info.Fields, Field{Name: name, Type: ty})
	return name
}

func hasField(fields []Field, name string) bool {
	for _, f := range fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// AddMethod appends a method signature to id, replacing one with the same name.
func (in *Interner) AddMethod(id TypeID, m Method) {
	in.mu.Lock()
	defer in.mu.Unlock()
	info := in.classLocked(id)
	if info == nil {
		return
	}
	m.Params = slices.Clone(m.Params)
	for i := range info.Methods {
		if info.Methods[i].Name == m.Name {
			info.Methods[i] = m
			return
		}
	}
	info.Methods = append(info.Methods, m)
}

// LookupField resolves name on id or its base chain and returns the field and
// its declaring type.
func (in *Interner) LookupField(id TypeID, name string) (Field, TypeID, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()
	for cur, guard := id, 0; cur != NoTypeID && guard < 64; guard++ {
		info := in.classLocked(cur)
		if info == nil {
			break
		}
		for _, f := range info.Fields {
			if f.Name == name {
				return f, cur, true
			}
		}
		cur = info.Base
	}
	return Field{}, NoTypeID, false
}

// LookupMethod resolves name on id, its base chain and its interfaces.
// Sequence kinds expose their structural enumeration members.
func (in *Interner) LookupMethod(id TypeID, name string) (Method, TypeID, bool) {
	if m, ok := in.sequenceMethod(id, name); ok {
		return m, id, true
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.lookupMethodLocked(id, name, 0)
}

func (in *Interner) lookupMethodLocked(id TypeID, name string, depth int) (Method, TypeID, bool) {
	if depth > 64 {
		return Method{}, NoTypeID, false
	}
	info := in.classLocked(id)
	if info == nil {
		return Method{}, NoTypeID, false
	}
	for _, m := range info.Methods {
		if m.Name == name {
			m.Params = slices.Clone(m.Params)
			return m, id, true
		}
	}
	if info.Base != NoTypeID {
		if m, owner, ok := in.lookupMethodLocked(info.Base, name, depth+1); ok {
			return m, owner, true
		}
	}
	for _, iface := range info.Interfaces {
		if m, owner, ok := in.lookupMethodLocked(iface, name, depth+1); ok {
			return m, owner, true
		}
	}
	return Method{}, NoTypeID, false
}

func (in *Interner) sequenceMethod(id TypeID, name string) (Method, bool) {
	tt, ok := in.Lookup(id)
	if !ok {
		return Method{}, false
	}
	switch tt.Kind {
	case KindEnumerable:
		if name == "GetEnumerator" {
			return Method{Name: name, Result: in.Intern(MakeEnumerator(tt.Elem)), Virtual: true}, true
		}
	case KindEnumerator:
		switch name {
		case "MoveNext":
			return Method{Name: name, Result: in.builtins.Bool, Virtual: true}, true
		case "get_Current":
			return Method{Name: name, Result: tt.Elem, Virtual: true}, true
		case "Dispose", "Reset":
			return Method{Name: name, Result: in.builtins.Void, Virtual: true}, true
		}
	}
	return Method{}, false
}

// IsSubtype reports whether a value of type sub can be used where super is expected.
// Every reference type converts to object; null converts to any reference type.
func (in *Interner) IsSubtype(sub, super TypeID) bool {
	if sub == super {
		return true
	}
	if super == in.builtins.Object {
		return in.IsReference(sub) || in.IsValueType(sub)
	}
	if sub == in.builtins.Null {
		return in.IsReference(super) || in.Kind(super) == KindNullable
	}
	in.mu.RLock()
	defer in.mu.RUnlock()
	return in.derivesLocked(sub, super, 0)
}

func (in *Interner) derivesLocked(sub, super TypeID, depth int) bool {
	if sub == super {
		return true
	}
	if depth > 64 {
		return false
	}
	info := in.classLocked(sub)
	if info == nil {
		return false
	}
	if info.Base != NoTypeID && in.derivesLocked(info.Base, super, depth+1) {
		return true
	}
	for _, iface := range info.Interfaces {
		if in.derivesLocked(iface, super, depth+1) {
			return true
		}
	}
	return false
}
