package types

import (
	"fmt"
	"strings"
)

// TypeString renders id for dumps and diagnostics.
func (in *Interner) TypeString(id TypeID) string {
	return in.typeString(id, 0)
}

func (in *Interner) typeString(id TypeID, depth int) string {
	if depth > 32 {
		return "..."
	}
	tt, ok := in.Lookup(id)
	if !ok {
		return "<invalid>"
	}
	switch tt.Kind {
	case KindInt:
		switch tt.Width {
		case Width8:
			return "sbyte"
		case Width16:
			return "short"
		case Width64:
			return "long"
		default:
			return "int"
		}
	case KindUint:
		switch tt.Width {
		case Width8:
			return "byte"
		case Width16:
			return "ushort"
		case Width64:
			return "ulong"
		default:
			return "uint"
		}
	case KindFloat:
		if tt.Width == Width32 {
			return "float"
		}
		return "double"
	case KindArray:
		return in.typeString(tt.Elem, depth+1) + "[]"
	case KindPointer:
		return in.typeString(tt.Elem, depth+1) + "*"
	case KindByRef:
		return "ref " + in.typeString(tt.Elem, depth+1)
	case KindNullable:
		return in.typeString(tt.Elem, depth+1) + "?"
	case KindEnumerable:
		return "IEnumerable<" + in.typeString(tt.Elem, depth+1) + ">"
	case KindEnumerator:
		return "IEnumerator<" + in.typeString(tt.Elem, depth+1) + ">"
	case KindClass, KindStruct, KindInterface:
		if info, ok := in.ClassInfo(id); ok {
			return info.Name
		}
		return fmt.Sprintf("%s#%d", tt.Kind, id)
	case KindDelegate:
		info, ok := in.DelegateInfo(id)
		if !ok {
			return "delegate"
		}
		parts := make([]string, 0, len(info.Params))
		for _, p := range info.Params {
			parts = append(parts, in.typeString(p, depth+1))
		}
		return "delegate(" + strings.Join(parts, ", ") + ") " + in.typeString(info.Result, depth+1)
	default:
		return tt.Kind.String()
	}
}
