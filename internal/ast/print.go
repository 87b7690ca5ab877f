package ast

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/you-not-fish/destack/internal/types"
)

// Fprint writes n as C#-like source text to w. Statements are written one
// per line; an expression is written on a single line.
func Fprint(w io.Writer, n Node) {
	p := &printer{}
	switch n := n.(type) {
	case Expr:
		p.buf.WriteString(p.expr(n, precLowest))
		p.buf.WriteByte('\n')
	case Stmt:
		p.stmt(n)
	}
	io.WriteString(w, p.buf.String())
}

// String returns the text Fprint writes, without a trailing newline for
// expressions.
func String(n Node) string {
	if e, ok := n.(Expr); ok {
		return (&printer{}).expr(e, precLowest)
	}
	var b strings.Builder
	Fprint(&b, n)
	return b.String()
}

type printer struct {
	buf    strings.Builder
	indent int
}

func (p *printer) printf(format string, args ...interface{}) {
	fmt.Fprintf(&p.buf, "%s%s\n", strings.Repeat("  ", p.indent), fmt.Sprintf(format, args...))
}

// Operator precedence, lowest first.
const (
	precLowest = iota
	precAssign
	precCond
	precOrElse
	precAndAlso
	precOr
	precXor
	precAnd
	precEquality
	precRelational
	precShift
	precAdditive
	precMultiplicative
	precUnary
	precPrimary
)

func binaryPrec(op BinaryOp) int {
	switch op {
	case Mul, Div, Rem:
		return precMultiplicative
	case Add, Sub:
		return precAdditive
	case Shl, Shr:
		return precShift
	case Lt, Le, Gt, Ge:
		return precRelational
	case Eq, Ne:
		return precEquality
	case And:
		return precAnd
	case Xor:
		return precXor
	}
	return precOr
}

func exprPrec(e Expr) int {
	switch e := e.(type) {
	case *Binary:
		if e.Checked {
			return precPrimary
		}
		return binaryPrec(e.Op)
	case *Cond:
		switch logicalKind(e) {
		case And:
			return precAndAlso
		case Or:
			return precOrElse
		}
		return precCond
	case *Assign:
		return precAssign
	case *OpAssign:
		if e.Postfix {
			return precPrimary
		}
		return precAssign
	case *Unary, *Deref, *AddrOf:
		return precUnary
	case *Conv:
		if e.Checked {
			return precPrimary
		}
		return precUnary
	case *Cast:
		if e.Kind == IsInst {
			return precRelational
		}
		return precUnary
	case *Const:
		switch v := e.Value.(type) {
		case int64:
			if v < 0 || e.Type() != nil && types.IsEnum(e.Type()) {
				return precUnary
			}
		case float64:
			if v < 0 {
				return precUnary
			}
		}
	case *AnonymousDelegate:
		return precAssign
	}
	return precPrimary
}

// logicalKind returns And for a && b, Or for a || b, and Add otherwise.
func logicalKind(c *Cond) BinaryOp {
	if c.Type() != nil && !types.IsBoolean(c.Type()) {
		return Add
	}
	if v, ok := BoolValue(c.F); ok && !v {
		return And
	}
	if v, ok := BoolValue(c.T); ok && v {
		return Or
	}
	return Add
}

func (p *printer) expr(e Expr, min int) string {
	s := p.exprText(e)
	if exprPrec(e) < min {
		return "(" + s + ")"
	}
	return s
}

func (p *printer) list(list []Expr) string {
	parts := make([]string, len(list))
	for i, e := range list {
		parts[i] = p.expr(e, precAssign)
	}
	return strings.Join(parts, ", ")
}

func (p *printer) exprText(e Expr) string {
	switch e := e.(type) {
	case *Const:
		return ConstString(e)
	case *LocalRef:
		return e.Local.Name
	case *ParamRef:
		if e.Param.Name() == "" {
			return fmt.Sprintf("A_%d", e.Param.Index())
		}
		return e.Param.Name()
	case *ThisRef:
		return "this"
	case *FieldRef:
		if e.Instance == nil {
			return typeName(e.Field.Owner()) + "." + e.Field.Name()
		}
		return p.expr(e.Instance, precPrimary) + "." + e.Field.Name()
	case *ArrayIndex:
		return p.expr(e.Array, precPrimary) + "[" + p.list(e.Indices) + "]"
	case *Deref:
		return "*" + p.expr(e.X, precUnary)
	case *AddrOf:
		return "&" + p.expr(e.X, precUnary)
	case *Binary:
		prec := binaryPrec(e.Op)
		s := p.expr(e.X, prec) + " " + e.Op.String() + " " + p.expr(e.Y, prec+1)
		if e.Checked {
			return "checked(" + s + ")"
		}
		return s
	case *Unary:
		return e.Op.String() + p.expr(e.X, precUnary)
	case *Conv:
		s := "(" + typeString(e.To) + ")" + p.expr(e.X, precUnary)
		if e.Checked {
			return "checked(" + s + ")"
		}
		return s
	case *Cast:
		switch e.Kind {
		case IsInst:
			return p.expr(e.X, precRelational) + " as " + typeString(e.To)
		case Box:
			return "(object)" + p.expr(e.X, precUnary)
		case Unbox:
			return "ref (" + typeString(e.To) + ")" + p.expr(e.X, precUnary)
		}
		return "(" + typeString(e.To) + ")" + p.expr(e.X, precUnary)
	case *Call:
		recv := typeName(e.Method.Owner())
		if e.Recv != nil {
			recv = p.expr(e.Recv, precPrimary)
		}
		return recv + "." + e.Method.Name() + "(" + p.list(e.Args) + ")"
	case *NewObj:
		return "new " + typeName(e.Ctor.Owner()) + "(" + p.list(e.Args) + ")"
	case *NewArray:
		return p.newArray(e)
	case *ArrayLen:
		return p.expr(e.X, precPrimary) + ".Length"
	case *Cond:
		switch logicalKind(e) {
		case And:
			return p.expr(e.C, precAndAlso) + " && " + p.expr(e.T, precAndAlso+1)
		case Or:
			return p.expr(e.C, precOrElse) + " || " + p.expr(e.F, precOrElse+1)
		}
		return p.expr(e.C, precOrElse) + " ? " + p.expr(e.T, precCond) + " : " + p.expr(e.F, precCond)
	case *BlockExpr:
		var parts []string
		for _, s := range e.Stmts {
			parts = append(parts, strings.TrimSpace(p.inline(s))+";")
		}
		parts = append(parts, p.expr(e.Result, precLowest))
		return "{ " + strings.Join(parts, " ") + " }"
	case *Assign:
		return p.expr(e.Target, precUnary) + " = " + p.expr(e.Value, precAssign)
	case *OpAssign:
		if e.Postfix {
			op := "++"
			if e.Op == Sub {
				op = "--"
			}
			return p.expr(e.Target, precPrimary) + op
		}
		return p.expr(e.Target, precUnary) + " " + e.Op.String() + "= " + p.expr(e.Value, precAssign)
	case *PropertyRef:
		recv := ""
		switch {
		case e.Recv != nil:
			recv = p.expr(e.Recv, precPrimary)
		case e.Getter != nil:
			recv = typeName(e.Getter.Owner())
		case e.Setter != nil:
			recv = typeName(e.Setter.Owner())
		}
		if len(e.Args) > 0 {
			return recv + "[" + p.list(e.Args) + "]"
		}
		return recv + "." + e.Name()
	case *MethodPtr:
		if e.Recv != nil {
			return "&" + p.expr(e.Recv, precPrimary) + "." + e.Method.Name()
		}
		return "&" + typeName(e.Method.Owner()) + "." + e.Method.Name()
	case *AnonymousDelegate:
		return p.delegate(e)
	case *Token:
		switch v := e.Operand.(type) {
		case *types.Field:
			return "fieldof(" + typeName(v.Owner()) + "." + v.Name() + ")"
		case *types.Method:
			return "methodof(" + typeName(v.Owner()) + "." + v.Name() + ")"
		case types.Type:
			return "typeof(" + typeString(v) + ")"
		}
		return "token"
	case *SizeOf:
		return "sizeof(" + typeString(e.Of) + ")"
	case *DefaultValue:
		return "default(" + typeString(e.Of) + ")"
	case *PopValue:
		return "pop"
	case *DupValue:
		return "dup"
	}
	return fmt.Sprintf("<%T>", e)
}

func (p *printer) newArray(e *NewArray) string {
	// new int[n][] names the outer dimension first.
	elem, suffix := e.Elem, ""
	for {
		a, ok := elem.(*types.Array)
		if !ok {
			break
		}
		suffix += "[" + strings.Repeat(",", a.Rank()-1) + "]"
		elem = a.Elem()
	}
	s := "new " + typeString(elem)
	if e.Init != nil && allConstSizes(e.Sizes) {
		s += "[" + strings.Repeat(",", max(len(e.Sizes)-1, 0)) + "]" + suffix
		return s + " { " + p.list(e.Init) + " }"
	}
	s += "[" + p.list(e.Sizes) + "]" + suffix
	if e.Init != nil {
		s += " { " + p.list(e.Init) + " }"
	}
	return s
}

func allConstSizes(sizes []Expr) bool {
	for _, s := range sizes {
		if _, ok := s.(*Const); !ok {
			return false
		}
	}
	return len(sizes) == 1
}

func (p *printer) delegate(e *AnonymousDelegate) string {
	params := make([]string, len(e.Params))
	for i, v := range e.Params {
		params[i] = typeString(v.Type()) + " " + v.Name()
	}
	q := &printer{indent: p.indent}
	q.blockBody(e.Body)
	return "delegate (" + strings.Join(params, ", ") + ") {\n" + q.buf.String() +
		strings.Repeat("  ", p.indent) + "}"
}

// inline renders a statement without indentation or trailing semicolon,
// for the headers of using and for.
func (p *printer) inline(s Stmt) string {
	switch s := s.(type) {
	case *LocalDecl:
		if s.Init == nil {
			return typeString(s.Local.Type) + " " + s.Local.Name
		}
		return typeString(s.Local.Type) + " " + s.Local.Name + " = " + p.expr(s.Init, precAssign)
	case *ExprStmt:
		return p.expr(s.X, precLowest)
	case nil:
		return ""
	}
	q := &printer{}
	q.stmt(s)
	return strings.TrimSuffix(strings.TrimSpace(q.buf.String()), ";")
}

func (p *printer) blockBody(b *Block) {
	if b == nil {
		return
	}
	p.indent++
	for _, s := range b.Stmts {
		p.stmt(s)
	}
	p.indent--
}

func (p *printer) stmt(s Stmt) {
	switch s := s.(type) {
	case *Block:
		p.block(s)

	case *ExprStmt:
		p.printf("%s;", p.expr(s.X, precLowest))

	case *LocalDecl:
		p.printf("%s;", p.inline(s))

	case *If:
		p.printf("if (%s) {", p.expr(s.Cond, precLowest))
		p.blockBody(s.Then)
		for s.Else != nil {
			// Render else-if chains flat.
			if len(s.Else.Stmts) == 1 {
				if elif, ok := s.Else.Stmts[0].(*If); ok {
					p.printf("} else if (%s) {", p.expr(elif.Cond, precLowest))
					p.blockBody(elif.Then)
					s = elif
					continue
				}
			}
			p.printf("} else {")
			p.blockBody(s.Else)
			break
		}
		p.printf("}")

	case *Goto:
		p.printf("goto %s;", s.Label.Name)

	case *LabelStmt:
		p.indent--
		p.printf("%s:", s.Label.Name)
		p.indent++

	case *Switch:
		p.printf("switch (%s) {", p.expr(s.X, precLowest))
		for _, c := range s.Cases {
			if c.Default {
				p.printf("default:")
			} else {
				p.printf("case %d:", c.Value)
			}
			p.blockBody(c.Body)
		}
		p.printf("}")

	case *Try:
		p.printf("try {")
		p.blockBody(s.Body)
		for _, c := range s.Catches {
			p.catch(c)
		}
		if s.Finally != nil {
			p.printf("} finally {")
			p.blockBody(s.Finally)
		}
		if s.Fault != nil {
			p.printf("} fault {")
			p.blockBody(s.Fault)
		}
		p.printf("}")

	case *Lock:
		p.printf("lock (%s) {", p.expr(s.Guard, precLowest))
		p.blockBody(s.Body)
		p.printf("}")

	case *Using:
		p.printf("using (%s) {", p.inline(s.Acquire))
		p.blockBody(s.Body)
		p.printf("}")

	case *While:
		p.printf("while (%s) {", p.expr(s.Cond, precLowest))
		p.blockBody(s.Body)
		p.printf("}")

	case *DoWhile:
		p.printf("do {")
		p.blockBody(s.Body)
		p.printf("} while (%s);", p.expr(s.Cond, precLowest))

	case *For:
		cond := ""
		if s.Cond != nil {
			cond = p.expr(s.Cond, precLowest)
		}
		p.printf("for (%s; %s; %s) {", p.inline(s.Init), cond, p.inline(s.Post))
		p.blockBody(s.Body)
		p.printf("}")

	case *Break:
		p.printf("break;")

	case *Continue:
		p.printf("continue;")

	case *Return:
		if s.X == nil {
			p.printf("return;")
		} else {
			p.printf("return %s;", p.expr(s.X, precLowest))
		}

	case *Throw:
		if s.X == nil {
			p.printf("throw;")
		} else {
			p.printf("throw %s;", p.expr(s.X, precLowest))
		}

	case *Push:
		p.printf("push %s;", p.expr(s.X, precUnary))

	case *EndFinally:
		p.printf("endfinally;")

	case *EndFilter:
		p.printf("endfilter %s;", p.expr(s.X, precUnary))

	case *YieldReturn:
		p.printf("yield return %s;", p.expr(s.X, precLowest))

	case *YieldBreak:
		p.printf("yield break;")

	case *Empty:
		p.printf(";")

	default:
		p.printf("<%T>", s)
	}
}

func (p *printer) catch(c *Catch) {
	head := "catch"
	switch {
	case c.Var != nil:
		head += " (" + typeString(c.Var.Type) + " " + c.Var.Name + ")"
	case c.Type != nil:
		head += " (" + typeString(c.Type) + ")"
	}
	if c.Filter != nil && len(c.Filter.Stmts) > 0 {
		p.printf("} %s filter {", head)
		p.blockBody(c.Filter)
		head = "when"
		if c.FilterExpr != nil {
			head += " (" + p.expr(c.FilterExpr, precLowest) + ")"
		}
	} else if c.FilterExpr != nil {
		head += " when (" + p.expr(c.FilterExpr, precLowest) + ")"
	}
	p.printf("} %s {", head)
	p.blockBody(c.Body)
}

// block prints a nested block. Region blocks left by the structurer are
// tagged with their kind and range; leaf blocks that have not been
// translated yet list their seeds.
func (p *printer) block(b *Block) {
	switch {
	case b.Kind != PlainBlock:
		p.printf(".%s [IL_%04x, IL_%04x) {", b.Kind, b.Start, b.End)
	case b.LexicalScope:
		p.printf(".scope [IL_%04x, IL_%04x) {", b.Start, b.End)
	default:
		p.printf("{")
	}
	if len(b.Seeds) > 0 && len(b.Stmts) == 0 {
		seeds := make([]string, len(b.Seeds))
		for i, s := range b.Seeds {
			seeds[i] = fmt.Sprintf("IL_%04x", s)
		}
		p.indent++
		p.printf(".seeds %s", strings.Join(seeds, " "))
		p.indent--
	}
	p.blockBody(b)
	p.printf("}")
}

// ConstString formats a constant according to its type.
func ConstString(c *Const) string {
	t := c.Type()
	switch v := c.Value.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(v)
	case float64:
		if t != nil && types.IsKind(t, types.Float32) {
			return floatString(v, 32) + "f"
		}
		return floatString(v, 64)
	case int64:
		if t == nil {
			return strconv.FormatInt(v, 10)
		}
		switch {
		case types.IsEnum(t):
			return "(" + t.String() + ")" + strconv.FormatInt(v, 10)
		case types.IsBoolean(t):
			return strconv.FormatBool(v != 0)
		case types.IsKind(t, types.Char):
			return strconv.QuoteRune(rune(v))
		case types.IsKind(t, types.Int64):
			return strconv.FormatInt(v, 10) + "L"
		case types.IsKind(t, types.Uint32):
			return strconv.FormatUint(uint64(uint32(v)), 10) + "u"
		case types.IsKind(t, types.Uint64):
			return strconv.FormatUint(uint64(v), 10) + "UL"
		}
		return strconv.FormatInt(v, 10)
	}
	return fmt.Sprint(c.Value)
}

func floatString(v float64, bits int) string {
	switch {
	case math.IsNaN(v):
		return "double.NaN"
	case math.IsInf(v, 1):
		return "double.PositiveInfinity"
	case math.IsInf(v, -1):
		return "double.NegativeInfinity"
	}
	s := strconv.FormatFloat(v, 'g', -1, bits)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func typeString(t types.Type) string {
	if t == nil {
		return "var"
	}
	return t.String()
}

func typeName(n *types.Named) string {
	if n == nil {
		return "?"
	}
	return n.Name()
}
