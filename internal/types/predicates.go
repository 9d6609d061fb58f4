package types

// IsReference reports whether values of id are heap references that may be null.
func (in *Interner) IsReference(id TypeID) bool {
	switch in.Kind(id) {
	case KindString, KindObject, KindNull, KindArray, KindClass, KindInterface,
		KindDelegate, KindEnumerable, KindEnumerator:
		return true
	default:
		return false
	}
}

// IsValueType reports whether id is stored inline and copied by value.
func (in *Interner) IsValueType(id TypeID) bool {
	switch in.Kind(id) {
	case KindBool, KindChar, KindInt, KindUint, KindFloat, KindStruct, KindNullable, KindPointer:
		return true
	default:
		return false
	}
}

// IsNullable reports whether id is T? over a value type.
func (in *Interner) IsNullable(id TypeID) bool {
	return in.Kind(id) == KindNullable
}

// IsIntegral reports whether id is a signed or unsigned integer or char.
func (in *Interner) IsIntegral(id TypeID) bool {
	switch in.Kind(id) {
	case KindInt, KindUint, KindChar:
		return true
	default:
		return false
	}
}

// IsUnsigned reports whether comparisons on id use unsigned ordering.
func (in *Interner) IsUnsigned(id TypeID) bool {
	switch in.Kind(id) {
	case KindUint, KindChar:
		return true
	default:
		return false
	}
}

// IsFloat reports whether id is a floating-point type.
func (in *Interner) IsFloat(id TypeID) bool {
	return in.Kind(id) == KindFloat
}

// IsNumeric reports whether id supports arithmetic.
func (in *Interner) IsNumeric(id TypeID) bool {
	return in.IsIntegral(id) || in.IsFloat(id)
}

// IsSequence reports whether id is an enumerable or enumerator type.
func (in *Interner) IsSequence(id TypeID) bool {
	k := in.Kind(id)
	return k == KindEnumerable || k == KindEnumerator
}

// HasFrame reports whether instances of id carry an ownership frame.
func (in *Interner) HasFrame(id TypeID) bool {
	info, ok := in.ClassInfo(id)
	return ok && info.Flags&ClassHasFrame != 0
}

// IsDisposable reports whether id implements the dispose protocol.
func (in *Interner) IsDisposable(id TypeID) bool {
	if in.Kind(id) == KindEnumerator {
		return true
	}
	return in.IsSubtype(id, in.wellKnown.Disposable)
}
