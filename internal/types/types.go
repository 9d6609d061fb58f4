package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindBool
	KindChar
	KindInt
	KindUint
	KindFloat
	KindString
	KindObject
	KindNull
	KindArray
	KindPointer
	KindByRef
	KindNullable
	KindClass
	KindStruct
	KindInterface
	KindDelegate
	KindEnumerable
	KindEnumerator
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindNull:
		return "null"
	case KindArray:
		return "array"
	case KindPointer:
		return "pointer"
	case KindByRef:
		return "byref"
	case KindNullable:
		return "nullable"
	case KindClass:
		return "class"
	case KindStruct:
		return "struct"
	case KindInterface:
		return "interface"
	case KindDelegate:
		return "delegate"
	case KindEnumerable:
		return "enumerable"
	case KindEnumerator:
		return "enumerator"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers/floats.
type Width uint8

const (
	WidthAny Width = 0
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
)

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind    Kind
	Elem    TypeID // array/pointer/byref/nullable/enumerable element
	Width   Width  // for numeric primitives
	Payload uint32 // index into class or delegate tables
}

// Descriptor helpers ---------------------------------------------------------

// MakeInt describes a signed integer of the given width.
func MakeInt(width Width) Type {
	return Type{Kind: KindInt, Width: width}
}

// MakeUint describes an unsigned integer type.
func MakeUint(width Width) Type {
	return Type{Kind: KindUint, Width: width}
}

// MakeFloat describes a floating-point type.
func MakeFloat(width Width) Type {
	return Type{Kind: KindFloat, Width: width}
}

// MakeArray describes a zero-based single-dimension array T[].
func MakeArray(elem TypeID) Type {
	return Type{Kind: KindArray, Elem: elem}
}

// MakePointer describes an unmanaged pointer T*.
func MakePointer(elem TypeID) Type {
	return Type{Kind: KindPointer, Elem: elem}
}

// MakeByRef describes a managed reference to a storage location.
func MakeByRef(elem TypeID) Type {
	return Type{Kind: KindByRef, Elem: elem}
}

// MakeNullable describes T? over a value type.
func MakeNullable(elem TypeID) Type {
	return Type{Kind: KindNullable, Elem: elem}
}

// MakeEnumerable describes a generic sequence of elem.
func MakeEnumerable(elem TypeID) Type {
	return Type{Kind: KindEnumerable, Elem: elem}
}

// MakeEnumerator describes a cursor over a sequence of elem.
func MakeEnumerator(elem TypeID) Type {
	return Type{Kind: KindEnumerator, Elem: elem}
}
