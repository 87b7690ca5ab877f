package il

import (
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/you-not-fish/destack/internal/types"
)

// FprintModule writes a module in assembly form. The output parses back
// into an equivalent module.
func FprintModule(w io.Writer, m *Module) {
	fmt.Fprintf(w, ".format %q\n", m.Version)
	fmt.Fprintf(w, ".module %s\n", QuoteName(m.Name))
	for _, t := range m.Types {
		fmt.Fprintf(w, "\n.class ")
		if t.Synthetic() {
			fmt.Fprintf(w, "synthetic ")
		}
		if t.Kind() != types.Class {
			fmt.Fprintf(w, "%s ", t.Kind())
		}
		fmt.Fprintf(w, "%s", QuoteName(t.Name()))
		if t.Kind() == types.Enum {
			fmt.Fprintf(w, " : %s", FormatType(t.Underlying()))
		} else if t.Base() != nil {
			fmt.Fprintf(w, " extends %s", FormatType(t.Base()))
		}
		fmt.Fprintf(w, " {\n")
		for _, f := range t.Fields() {
			fmt.Fprintf(w, "  .field ")
			if f.Static() {
				fmt.Fprintf(w, "static ")
			}
			if f.Synthetic() {
				fmt.Fprintf(w, "synthetic ")
			}
			fmt.Fprintf(w, "%s %s", FormatType(f.Type()), QuoteName(f.Name()))
			if f.Data() != nil {
				fmt.Fprintf(w, " = bytes %q", hex.EncodeToString(f.Data()))
			}
			fmt.Fprintf(w, "\n")
		}
		for _, meth := range t.Methods() {
			fprintMethod(w, meth, m.BodyOf(meth), "  ")
		}
		fmt.Fprintf(w, "}\n")
	}
}

// Fprint writes one method body in assembly form.
//
// Format:
//
//	.method static int Max(int a, int b) {
//	  .maxstack 2
//	  IL_0000: ldarg a
//	  IL_0003: ldarg b
//	  IL_0006: bge IL_000f
//	  ...
//	}
func Fprint(w io.Writer, b *Body) {
	fprintMethod(w, b.Method, b, "")
}

func fprintMethod(w io.Writer, m *types.Method, b *Body, indent string) {
	fmt.Fprintf(w, "%s.method ", indent)
	if m.Static() {
		fmt.Fprintf(w, "static ")
	}
	if m.Virtual() {
		fmt.Fprintf(w, "virtual ")
	}
	if m.Synthetic() {
		fmt.Fprintf(w, "synthetic ")
	}
	fmt.Fprintf(w, "%s %s(", FormatType(m.Result()), QuoteName(m.Name()))
	for i, p := range m.Params() {
		if i > 0 {
			fmt.Fprintf(w, ", ")
		}
		fmt.Fprintf(w, "%s %s", FormatType(p.Type()), QuoteName(p.Name()))
	}
	if b == nil {
		fmt.Fprintf(w, ")\n")
		return
	}
	fmt.Fprintf(w, ") {\n")
	in := indent + "  "
	if b.MaxStack > 0 {
		fmt.Fprintf(w, "%s.maxstack %d\n", in, b.MaxStack)
	}
	if len(b.Locals) > 0 {
		parts := make([]string, len(b.Locals))
		for i, l := range b.Locals {
			parts[i] = FormatType(l.Type)
			if l.Name != "" {
				parts[i] += " " + QuoteName(l.Name)
			}
		}
		fmt.Fprintf(w, "%s.locals (%s)\n", in, strings.Join(parts, ", "))
	}
	for _, h := range b.Handlers {
		fmt.Fprintf(w, "%s.try %s to %s ", in, label(h.TryStart), label(h.TryEnd))
		switch h.Kind {
		case Catch:
			fmt.Fprintf(w, "catch %s ", FormatType(h.CatchType))
		case Filter:
			fmt.Fprintf(w, "filter %s ", label(h.FilterStart))
		default:
			fmt.Fprintf(w, "%s ", h.Kind)
		}
		fmt.Fprintf(w, "handler %s to %s\n", label(h.HandlerStart), label(h.HandlerEnd))
	}
	for _, s := range b.Scopes {
		names := make([]string, len(s.Locals))
		for i, l := range s.Locals {
			names[i] = localRef(l)
		}
		fmt.Fprintf(w, "%s.scope %s to %s (%s)\n", in, label(s.Start), label(s.End), strings.Join(names, ", "))
	}
	if b.Sync != nil {
		for _, p := range b.Sync.Points {
			fmt.Fprintf(w, "%s.sync %s %s\n", in, label(p.Offset), label(p.Continuation))
		}
	}
	var loc Loc
	for _, ins := range b.Instrs {
		if ins.Loc.IsKnown() && ins.Loc != loc {
			if ins.Loc.File != loc.File {
				fmt.Fprintf(w, "%s.file %q\n", in, ins.Loc.File)
			}
			fmt.Fprintf(w, "%s.line %d\n", in, ins.Loc.Line)
			loc = ins.Loc
		}
		fmt.Fprintf(w, "%s%s: %s\n", in, label(ins.Offset), formatOperand(ins, b))
	}
	if end := b.CodeSize(); b.hasLabel(end) {
		fmt.Fprintf(w, "%s%s:\n", in, label(end))
	}
	fmt.Fprintf(w, "%s}\n", indent)
}

// hasLabel reports whether something refers to the offset one past the
// last instruction.
func (b *Body) hasLabel(off int) bool {
	for _, h := range b.Handlers {
		if h.TryEnd == off || h.HandlerEnd == off {
			return true
		}
	}
	for _, s := range b.Scopes {
		if s.End == off {
			return true
		}
	}
	return false
}

func label(off int) string {
	return fmt.Sprintf("IL_%04x", off)
}

func localRef(l *Local) string {
	if l.Name != "" {
		return QuoteName(l.Name)
	}
	return strconv.Itoa(l.Index)
}

func formatOperand(ins *Instruction, b *Body) string {
	op := ins.Op.String()
	switch ins.Op.Info().Operand {
	case NoOperand:
		return op
	case IntOperand, LongOperand:
		return fmt.Sprintf("%s %d", op, ins.Operand)
	case FloatOperand:
		return fmt.Sprintf("%s %s", op, strconv.FormatFloat(float64(ins.Operand.(float32)), 'g', -1, 32))
	case DoubleOperand:
		return fmt.Sprintf("%s %s", op, strconv.FormatFloat(ins.Operand.(float64), 'g', -1, 64))
	case StringOperand:
		return fmt.Sprintf("%s %q", op, ins.Operand)
	case TypeOperand:
		return op + " " + FormatType(ins.Type())
	case FieldOperand:
		return op + " " + formatField(ins.Field())
	case MethodOperand:
		return op + " " + FormatMethod(ins.Method())
	case ArgOperand:
		if b != nil {
			if b.HasThis() && ins.Index() == 0 {
				return op + " this"
			}
			if p := b.Arg(ins.Index()); p != nil && p.Name() != "" {
				return op + " " + QuoteName(p.Name())
			}
		}
	case LocalOperand:
		if b != nil {
			if l := b.Local(ins.Index()); l != nil {
				return op + " " + localRef(l)
			}
		}
	case BranchOperand:
		return op + " " + label(ins.Target())
	case SwitchOperand:
		targets := ins.Targets()
		parts := make([]string, len(targets))
		for i, t := range targets {
			parts[i] = label(t)
		}
		return fmt.Sprintf("%s (%s)", op, strings.Join(parts, ", "))
	case TokenOperand:
		switch t := ins.Operand.(type) {
		case *types.Field:
			return op + " field " + formatField(t)
		case *types.Method:
			return op + " method " + FormatMethod(t)
		case types.Type:
			return op + " type " + FormatType(t)
		}
	}
	return fmt.Sprintf("%s %v", op, ins.Operand)
}

func formatField(f *types.Field) string {
	return fmt.Sprintf("%s %s::%s", FormatType(f.Type()), QuoteName(f.Owner().Name()), QuoteName(f.Name()))
}

// FormatMethod spells a method reference as it appears after call:
// "[instance] R Owner::Name(T1, T2)".
func FormatMethod(m *types.Method) string {
	var buf strings.Builder
	if !m.Static() {
		buf.WriteString("instance ")
	}
	buf.WriteString(FormatType(m.Result()))
	buf.WriteString(" ")
	if m.Owner() != nil {
		buf.WriteString(QuoteName(m.Owner().Name()))
		buf.WriteString("::")
	}
	buf.WriteString(QuoteName(m.Name()))
	buf.WriteString("(")
	for i, p := range m.Params() {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(FormatType(p.Type()))
	}
	buf.WriteString(")")
	return buf.String()
}

// FormatType spells a type in assembly syntax: by-refs are written T&.
func FormatType(t types.Type) string {
	switch t := t.(type) {
	case nil:
		return "void"
	case *types.Basic:
		return t.Name()
	case *types.Named:
		return QuoteName(t.Name())
	case *types.Array:
		return FormatType(t.Elem()) + "[" + strings.Repeat(",", t.Rank()-1) + "]"
	case *types.Pointer:
		return FormatType(t.Elem()) + "*"
	case *types.ByRef:
		return FormatType(t.Elem()) + "&"
	}
	return t.String()
}

// IsNameChar reports whether c may appear in an unquoted name.
func IsNameChar(c rune, first bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_', c == '.',
		c == '<', c == '>', c == '$', c == '@', c == '`':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}

// QuoteName returns name, double-quoted if it cannot be written bare.
func QuoteName(name string) string {
	if name == "" {
		return `""`
	}
	for i, c := range name {
		if !IsNameChar(c, i == 0) {
			return strconv.Quote(name)
		}
	}
	return name
}
