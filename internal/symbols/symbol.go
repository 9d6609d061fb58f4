package symbols

import (
	"fmt"

	"github.com/hesam/SketchSharp-sub001/internal/source"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// Kind classifies what a symbol names.
type Kind uint8

const (
	SymbolInvalid Kind = iota
	SymbolLocal
	SymbolParam
	SymbolLabel
	// SymbolTemp names compiler-introduced variables (query rows, snapshot copies).
	SymbolTemp
)

func (k Kind) String() string {
	switch k {
	case SymbolLocal:
		return "local"
	case SymbolParam:
		return "param"
	case SymbolLabel:
		return "label"
	case SymbolTemp:
		return "temp"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Symbol is a resolved name with its static type.
type Symbol struct {
	Name string
	Kind Kind
	Type types.TypeID
	Span source.Span
}
