package vm

import (
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// Tracer outputs execution traces for debugging.
type Tracer struct {
	w  io.Writer
	vm *VM
}

// NewTracer creates a new tracer that writes to w.
func NewTracer(w io.Writer) *Tracer {
	return &Tracer{w: w}
}

// TraceInstr traces execution of an instruction.
// Format: [depth=N] <func> bb<id>:ip<ip> <instr> @ <span>
func (t *Tracer) TraceInstr(depth int, fn *lir.Func, bb lir.BlockID, ip int, instr *lir.Instr) {
	if t == nil || t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "[depth=%d] %s bb%d:ip%d %s @ %s\n",
		depth, fn.Name, bb, ip, lir.FormatInstr(t.types(), instr), formatSpan(fn.Span))
}

// TraceTerm traces execution of a terminator.
// Format: [depth=N] <func> bb<id>:term <terminator> @ <span>
func (t *Tracer) TraceTerm(depth int, fn *lir.Func, bb lir.BlockID, term *lir.Terminator) {
	if t == nil || t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "[depth=%d] %s bb%d:term %s @ %s\n",
		depth, fn.Name, bb, lir.FormatTerm(term), formatSpan(fn.Span))
}

// TraceWrite records a local variable modification.
func (t *Tracer) TraceWrite(frame *Frame, id lir.LocalID, v Value) {
	if t == nil || t.w == nil {
		return
	}
	name := ""
	if int(id) < len(frame.Locals) {
		name = frame.Locals[id].Name
	}
	fmt.Fprintf(t.w, "    write L%d(%s) = %s\n", id, name, t.formatValue(v))
}

// TraceHeapAlloc records an allocation.
func (t *Tracer) TraceHeapAlloc(kind ObjectKind, h Handle, obj *Object) {
	if t == nil || t.w == nil {
		return
	}
	switch kind {
	case OKArray:
		fmt.Fprintf(t.w, "[heap] alloc array#%d\n", h)
	case OKStruct:
		fmt.Fprintf(t.w, "[heap] alloc struct#%d\n", h)
	case OKBox:
		fmt.Fprintf(t.w, "[heap] alloc box#%d\n", h)
	default:
		fmt.Fprintf(t.w, "[heap] alloc %s#%d\n", t.className(obj), h)
	}
}

// TraceException records an exception leaving a frame.
func (t *Tracer) TraceException(depth int, fn *lir.Func, exc *VMError) {
	if t == nil || t.w == nil {
		return
	}
	fmt.Fprintf(t.w, "[depth=%d] %s unwind %s(%q)\n", depth, fn.Name, exc.ExceptionType, truncateRunes(exc.Message, 48))
}

func (t *Tracer) types() *types.Interner {
	if t.vm == nil {
		return nil
	}
	return t.vm.Types
}

func (t *Tracer) className(obj *Object) string {
	if t.vm == nil || obj == nil {
		return "handle"
	}
	return t.vm.typeName(obj.TypeID)
}

func (t *Tracer) formatValue(v Value) string {
	switch v.Kind {
	case VKString:
		return fmt.Sprintf("%q", truncateRunes(v.Str, 32))
	case VKArray:
		obj := t.lookup(v.H)
		if obj == nil {
			return fmt.Sprintf("array#%d(<invalid>)", v.H)
		}
		return fmt.Sprintf("array#%d(len=%d)", v.H, len(obj.Arr))
	case VKStruct, VKObject:
		obj := t.lookup(v.H)
		if obj == nil {
			return fmt.Sprintf("%s#%d(<invalid>)", v.Kind, v.H)
		}
		return fmt.Sprintf("%s#%d(%s)", v.Kind, v.H, t.className(obj))
	default:
		return v.String()
	}
}

func (t *Tracer) lookup(h Handle) *Object {
	if t == nil || t.vm == nil || t.vm.Heap == nil {
		return nil
	}
	obj, _ := t.vm.Heap.Get(h)
	return obj
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 || s == "" {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	out := make([]rune, 0, limit)
	for _, r := range s {
		out = append(out, r)
		if len(out) >= limit {
			break
		}
	}
	return string(out)
}
