package vm

import (
	"fmt"
	"strconv"

	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// ValueKind identifies the runtime representation of a Value.
type ValueKind uint8

const (
	// VKInvalid represents an invalid value.
	VKInvalid ValueKind = iota
	// VKNull is the null reference and the empty nullable.
	VKNull
	// VKBool represents a boolean value.
	VKBool
	// VKInt represents signed and unsigned integers and chars. TypeID
	// selects the width; unsigned values keep their bits in Int.
	VKInt
	// VKFloat represents single and double precision values.
	VKFloat
	// VKString represents an immutable string.
	VKString
	// VKObject is a class instance, a boxed value or a runtime collection.
	VKObject
	// VKStruct is a value-type instance; reading it copies the object.
	VKStruct
	// VKArray represents an array handle.
	VKArray
	// VKDelegate represents a bound method.
	VKDelegate
	// VKPtr is the address of a storage location.
	VKPtr
)

// String returns a human-readable name for the value kind.
func (k ValueKind) String() string {
	switch k {
	case VKInvalid:
		return "invalid"
	case VKNull:
		return "null"
	case VKBool:
		return "bool"
	case VKInt:
		return "int"
	case VKFloat:
		return "float"
	case VKString:
		return "string"
	case VKObject:
		return "object"
	case VKStruct:
		return "struct"
	case VKArray:
		return "array"
	case VKDelegate:
		return "delegate"
	case VKPtr:
		return "ptr"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// Value represents a runtime value in the VM.
type Value struct {
	TypeID types.TypeID // Static type from the lowered code
	Kind   ValueKind
	Int    int64
	Float  float64
	Bool   bool
	Str    string
	H      Handle    // For VKObject, VKStruct, VKArray and VKDelegate
	Loc    *Location // For VKPtr
}

// IsNull reports whether v is the null reference or an empty nullable.
func (v Value) IsNull() bool {
	return v.Kind == VKNull
}

// IsHeap reports whether the value refers to a heap object.
func (v Value) IsHeap() bool {
	switch v.Kind {
	case VKObject, VKStruct, VKArray, VKDelegate:
		return true
	default:
		return false
	}
}

// String returns a debug representation of the value.
func (v Value) String() string {
	switch v.Kind {
	case VKInvalid:
		return "<invalid>"
	case VKNull:
		return "null"
	case VKBool:
		return strconv.FormatBool(v.Bool)
	case VKInt:
		return strconv.FormatInt(v.Int, 10)
	case VKFloat:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case VKString:
		return strconv.Quote(v.Str)
	case VKPtr:
		return fmt.Sprintf("*%s", v.Loc)
	default:
		return fmt.Sprintf("%s#%d", v.Kind, v.H)
	}
}

// MakeInt creates an integer value of the given type.
func MakeInt(n int64, typeID types.TypeID) Value {
	return Value{TypeID: typeID, Kind: VKInt, Int: n}
}

// MakeBool creates a boolean value.
func MakeBool(b bool, typeID types.TypeID) Value {
	return Value{TypeID: typeID, Kind: VKBool, Bool: b}
}

// MakeFloat creates a floating-point value.
func MakeFloat(f float64, typeID types.TypeID) Value {
	return Value{TypeID: typeID, Kind: VKFloat, Float: f}
}

// MakeString creates a string value.
func MakeString(s string, typeID types.TypeID) Value {
	return Value{TypeID: typeID, Kind: VKString, Str: s}
}

// MakeNull creates a null value of the given static type.
func MakeNull(typeID types.TypeID) Value {
	return Value{TypeID: typeID, Kind: VKNull}
}

// MakePtr creates a pointer to loc.
func MakePtr(loc *Location, typeID types.TypeID) Value {
	return Value{TypeID: typeID, Kind: VKPtr, Loc: loc}
}

func makeHandle(kind ValueKind, h Handle, typeID types.TypeID) Value {
	return Value{TypeID: typeID, Kind: kind, H: h}
}
