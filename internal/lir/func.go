package lir

import (
	"github.com/hesam/SketchSharp-sub001/internal/source"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

type FuncKind uint8

const (
	FuncMethod FuncKind = iota
	FuncCtor
	// FuncLambda is a converted anonymous procedure.
	FuncLambda
	// FuncEnvCtor initializes a closure environment.
	FuncEnvCtor
	// FuncIterator is a member of an iterator state machine.
	FuncIterator
	// FuncInvariant is a synthesized object invariant check.
	FuncInvariant
	// FuncQuery is a procedure synthesized for a comprehension.
	FuncQuery
)

func (k FuncKind) String() string {
	switch k {
	case FuncMethod:
		return "method"
	case FuncCtor:
		return "ctor"
	case FuncLambda:
		return "lambda"
	case FuncEnvCtor:
		return "envctor"
	case FuncIterator:
		return "iterator"
	case FuncInvariant:
		return "invariant"
	case FuncQuery:
		return "query"
	default:
		return "func?"
	}
}

// Func is a lowered procedure. The first NumParams locals are the
// parameters; for instance procedures local 0 is the receiver.
type Func struct {
	Name        string
	Owner       types.TypeID
	Kind        FuncKind
	Static      bool
	Virtual     bool
	Synthesized bool
	Span        source.Span

	Result    types.TypeID
	NumParams int

	Locals   []Local
	Blocks   []Block
	Entry    BlockID
	Handlers []Handler
}

// HandlerKind distinguishes catch and finally regions.
type HandlerKind uint8

const (
	HandlerCatch HandlerKind = iota
	HandlerFinally
)

func (k HandlerKind) String() string {
	if k == HandlerFinally {
		return "finally"
	}
	return "catch"
}

// Handler protects the blocks [TryStart, TryEnd) with the handler blocks
// [HandlerStart, HandlerEnd). Bounds are positions in block layout order;
// an end may equal len(Blocks). Handlers are listed innermost first.
// Synthetic marks handlers that exist only to delimit contract code.
type Handler struct {
	Kind         HandlerKind
	TryStart     BlockID
	TryEnd       BlockID
	HandlerStart BlockID
	HandlerEnd   BlockID
	Filter       types.TypeID
	Synthetic    bool
}

// InTry reports whether b is protected by h.
func (h *Handler) InTry(b BlockID) bool {
	return b >= h.TryStart && b < h.TryEnd
}

// InHandler reports whether b belongs to the handler body of h.
func (h *Handler) InHandler(b BlockID) bool {
	return b >= h.HandlerStart && b < h.HandlerEnd
}

// ParamLocals returns the ids of the parameter locals.
func (f *Func) ParamLocals() []LocalID {
	out := make([]LocalID, 0, f.NumParams)
	for i := 0; i < f.NumParams && i < len(f.Locals); i++ {
		out = append(out, LocalID(i))
	}
	return out
}
