package lir

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// DumpModule writes a human-readable representation of a lowered module.
func DumpModule(w io.Writer, m *Module, typesIn *types.Interner) error {
	if w == nil || m == nil {
		return nil
	}
	fmt.Fprintf(w, "module %s types=%d\n", m.Name, len(m.Types))
	for _, td := range m.Types {
		synth := ""
		if td.Synthesized {
			synth = " synthesized"
		}
		fmt.Fprintf(w, "\ntype %s%s:\n", td.Name, synth)
		if typesIn != nil {
			if info, ok := typesIn.ClassInfo(td.Type); ok {
				for _, f := range info.Fields {
					static := ""
					if f.Static {
						static = "static "
					}
					fmt.Fprintf(w, "  field %s%s: %s\n", static, f.Name, typeStr(typesIn, f.Type))
				}
			}
		}
		for _, fn := range td.Methods {
			if err := DumpFunc(w, fn, typesIn); err != nil {
				return err
			}
		}
	}
	return nil
}

// DumpFunc writes one lowered procedure.
func DumpFunc(w io.Writer, f *Func, typesIn *types.Interner) error {
	if w == nil || f == nil {
		return nil
	}
	fmt.Fprintf(w, "\nfn %s.%s [%s] -> %s:\n", typeStr(typesIn, f.Owner), f.Name, f.Kind, typeStr(typesIn, f.Result))
	fmt.Fprintf(w, "  locals:\n")
	for i := range f.Locals {
		l := f.Locals[i]
		name := l.Name
		if name == "" {
			name = "_"
		}
		if flags := formatLocalFlags(l.Flags); flags != "" {
			fmt.Fprintf(w, "    L%d: %s %s name=%s\n", i, typeStr(typesIn, l.Type), flags, name)
		} else {
			fmt.Fprintf(w, "    L%d: %s name=%s\n", i, typeStr(typesIn, l.Type), name)
		}
	}
	if len(f.Handlers) > 0 {
		fmt.Fprintf(w, "  handlers:\n")
		for i := range f.Handlers {
			fmt.Fprintf(w, "    H%d: %s\n", i, formatHandler(typesIn, &f.Handlers[i]))
		}
	}
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		fmt.Fprintf(w, "  bb%d:\n", bb.ID)
		for j := range bb.Instrs {
			fmt.Fprintf(w, "    %s\n", formatInstr(typesIn, &bb.Instrs[j]))
		}
		fmt.Fprintf(w, "    %s\n", formatTerm(&bb.Term))
	}
	return nil
}

func typeStr(typesIn *types.Interner, id types.TypeID) string {
	if typesIn == nil {
		return "#" + strconv.FormatUint(uint64(id), 10)
	}
	return typesIn.TypeString(id)
}

func formatLocalFlags(f LocalFlags) string {
	if f == 0 {
		return ""
	}
	var parts []string
	if f&LocalFlagThis != 0 {
		parts = append(parts, "this")
	}
	if f&LocalFlagParam != 0 {
		parts = append(parts, "param")
	}
	if f&LocalFlagTemp != 0 {
		parts = append(parts, "temp")
	}
	if f&LocalFlagResult != 0 {
		parts = append(parts, "result")
	}
	if f&LocalFlagPinned != 0 {
		parts = append(parts, "pinned")
	}
	return strings.Join(parts, ",")
}

func formatHandler(typesIn *types.Interner, h *Handler) string {
	var sb strings.Builder
	sb.WriteString(h.Kind.String())
	if h.Kind == HandlerCatch {
		sb.WriteByte(' ')
		sb.WriteString(typeStr(typesIn, h.Filter))
	}
	fmt.Fprintf(&sb, " try [bb%d, bb%d) handler [bb%d, bb%d)", h.TryStart, h.TryEnd, h.HandlerStart, h.HandlerEnd)
	if h.Synthetic {
		sb.WriteString(" synthetic")
	}
	return sb.String()
}

func formatPlace(p Place) string {
	var sb strings.Builder
	if p.Kind == PlaceStatic {
		fmt.Fprintf(&sb, "static(#%d).%s", p.Owner, p.Field)
	} else {
		fmt.Fprintf(&sb, "L%d", p.Local)
	}
	for _, proj := range p.Proj {
		switch proj.Kind {
		case PlaceProjField:
			sb.WriteByte('.')
			sb.WriteString(proj.Field)
		case PlaceProjIndex:
			sb.WriteByte('[')
			sb.WriteString(formatOperand(proj.Index))
			sb.WriteByte(']')
		case PlaceProjDeref:
			sb.WriteString(".*")
		}
	}
	return sb.String()
}

func formatConst(c Const) string {
	switch c.Kind {
	case ConstInt:
		return strconv.FormatInt(c.IntValue, 10)
	case ConstUint:
		return strconv.FormatUint(c.UintValue, 10) + "u"
	case ConstFloat:
		return strconv.FormatFloat(c.FloatValue, 'g', -1, 64)
	case ConstBool:
		return strconv.FormatBool(c.BoolValue)
	case ConstChar:
		r, _ := utf8.DecodeRuneInString(c.StringValue)
		return strconv.QuoteRune(r)
	case ConstString:
		return strconv.Quote(c.StringValue)
	case ConstNull:
		return "null"
	case ConstDefault:
		return "default"
	default:
		return "<const?>"
	}
}

func formatOperand(op Operand) string {
	switch op.Kind {
	case OperandConst:
		return formatConst(op.Const)
	case OperandCopy:
		return formatPlace(op.Place)
	case OperandAddrOf:
		return "&" + formatPlace(op.Place)
	default:
		return "<operand?>"
	}
}

func formatOperands(ops []Operand) string {
	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		parts = append(parts, formatOperand(op))
	}
	return strings.Join(parts, ", ")
}

func formatRValue(typesIn *types.Interner, rv *RValue) string {
	switch rv.Kind {
	case RValueUse:
		return formatOperand(rv.Use)
	case RValueUnary:
		return rv.Unary.Op.String() + formatOperand(rv.Unary.Operand)
	case RValueBinary:
		s := formatOperand(rv.Binary.Left) + " " + rv.Binary.Op.String() + " " + formatOperand(rv.Binary.Right)
		if rv.Binary.Unsigned {
			s += " [unsigned]"
		}
		return s
	case RValueCast:
		return fmt.Sprintf("%s(%s, %s)", rv.Cast.Kind, formatOperand(rv.Cast.Value), typeStr(typesIn, rv.Cast.Target))
	case RValueNewArray:
		return fmt.Sprintf("newarr %s[%s]", typeStr(typesIn, rv.NewArray.Elem), formatOperand(rv.NewArray.Len))
	case RValueArrayLit:
		return fmt.Sprintf("%s[]{%s}", typeStr(typesIn, rv.ArrayLit.Elem), formatOperands(rv.ArrayLit.Elems))
	case RValueLen:
		return "len(" + formatOperand(rv.Use) + ")"
	case RValueIsInst:
		return fmt.Sprintf("%s is %s", formatOperand(rv.TypeTest.Value), typeStr(typesIn, rv.TypeTest.Target))
	case RValueAsInst:
		return fmt.Sprintf("%s as %s", formatOperand(rv.TypeTest.Value), typeStr(typesIn, rv.TypeTest.Target))
	case RValueHasValue:
		return "hasvalue(" + formatOperand(rv.Use) + ")"
	case RValueDelegate:
		target := "static"
		if rv.Delegate.HasTarget {
			target = formatOperand(rv.Delegate.Target)
		}
		return fmt.Sprintf("delegate %s.%s on %s", typeStr(typesIn, rv.Delegate.Owner), rv.Delegate.Method, target)
	case RValuePtrAdd:
		return fmt.Sprintf("ptradd(%s, %s)", formatOperand(rv.Binary.Left), formatOperand(rv.Binary.Right))
	default:
		return "<rvalue?>"
	}
}

func formatCallee(typesIn *types.Interner, c *Callee) string {
	switch c.Kind {
	case CalleeIntrinsic:
		return "intrinsic " + c.Name
	case CalleeDelegate:
		return "invoke " + formatOperand(c.Value)
	default:
		s := typeStr(typesIn, c.Owner) + "." + c.Name
		if c.Virtual {
			s = "virtual " + s
		}
		return s
	}
}

func formatInstr(typesIn *types.Interner, ins *Instr) string {
	switch ins.Kind {
	case InstrAssign:
		return fmt.Sprintf("%s = %s", formatPlace(ins.Assign.Dst), formatRValue(typesIn, &ins.Assign.Src))
	case InstrCall:
		args := formatOperands(ins.Call.Args)
		if ins.Call.HasRecv {
			args = formatOperand(ins.Call.Recv) + "; " + args
		}
		s := fmt.Sprintf("call %s(%s)", formatCallee(typesIn, &ins.Call.Callee), args)
		if ins.Call.HasDst {
			s = formatPlace(ins.Call.Dst) + " = " + s
		}
		return s
	case InstrNew:
		return fmt.Sprintf("%s = new %s(%s)", formatPlace(ins.New.Dst), typeStr(typesIn, ins.New.Class), formatOperands(ins.New.Args))
	case InstrPopException:
		return formatPlace(ins.PopException.Dst) + " = pop_exception"
	case InstrAssume:
		return fmt.Sprintf("assume %s // %s", formatOperand(ins.Assume.Cond), ins.Assume.Text)
	case InstrNop:
		return "nop"
	default:
		return "<instr?>"
	}
}

func formatFlags(f BranchFlags) string {
	if f == 0 {
		return ""
	}
	var parts []string
	if f&BranchInverted != 0 {
		parts = append(parts, "inverted")
	}
	if f&BranchUnordered != 0 {
		parts = append(parts, "unordered")
	}
	if f&BranchUnsigned != 0 {
		parts = append(parts, "unsigned")
	}
	if f&BranchLeave != 0 {
		parts = append(parts, "leave")
	}
	return " [" + strings.Join(parts, ",") + "]"
}

func formatCond(c *Condition) string {
	switch c.Kind {
	case CondTrue:
		return formatOperand(c.Value)
	case CondFalse:
		return "!" + formatOperand(c.Value)
	default:
		return formatOperand(c.Left) + " " + c.Op.String() + " " + formatOperand(c.Right)
	}
}

func formatTerm(t *Terminator) string {
	switch t.Kind {
	case TermReturn:
		if t.Return.HasValue {
			return "return " + formatOperand(t.Return.Value)
		}
		return "return"
	case TermGoto:
		return fmt.Sprintf("goto bb%d%s", t.Goto.Target, formatFlags(t.Goto.Flags))
	case TermBranch:
		return fmt.Sprintf("branch %s%s -> bb%d else bb%d", formatCond(&t.Branch.Cond), formatFlags(t.Branch.Flags), t.Branch.Target, t.Branch.Else)
	case TermSwitch:
		parts := make([]string, 0, len(t.Switch.Targets))
		for _, target := range t.Switch.Targets {
			parts = append(parts, "bb"+strconv.Itoa(int(target)))
		}
		return fmt.Sprintf("switch %s [%s] default bb%d", formatOperand(t.Switch.Value), strings.Join(parts, ", "), t.Switch.Default)
	case TermThrow:
		return "throw " + formatOperand(t.Throw.Value)
	case TermRethrow:
		return "rethrow"
	case TermEndFinally:
		return "endfinally"
	case TermUnreachable:
		return "unreachable"
	default:
		return "<unterminated>"
	}
}

// FormatInstr renders a single instruction the way DumpFunc does.
func FormatInstr(typesIn *types.Interner, ins *Instr) string {
	return formatInstr(typesIn, ins)
}

// FormatTerm renders a terminator the way DumpFunc does.
func FormatTerm(t *Terminator) string {
	return formatTerm(t)
}
