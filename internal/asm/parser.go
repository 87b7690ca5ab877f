package asm

import (
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/you-not-fish/destack/internal/il"
	"github.com/you-not-fish/destack/internal/types"
)

// FormatConstraint is the range of .format versions this reader accepts.
const FormatConstraint = "^1.0"

// Error is a syntax or semantic error at a position.
type Error struct {
	Pos Pos
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// bailout unwinds the parser after the first error.
type bailout struct{}

// Parser reads one module.
type Parser struct {
	s   *Scanner
	err *Error

	mod     *il.Module
	methods map[string]*types.Method // interned by Owner::Name(T1, T2)
	fields  map[string]*types.Field  // interned by Owner::Name

	// per method
	body    *il.Body
	labels  map[string]int
	pending []string // labels waiting for the next instruction
	fixups  []fixup
	pc      int
	loc     il.Loc
}

// fixup is a forward label reference resolved when the body ends.
type fixup struct {
	pos   Pos
	label string
	set   func(off int)
}

// Parse reads a module from src.
func Parse(filename string, src io.Reader) (mod *il.Module, err error) {
	p := &Parser{
		methods: make(map[string]*types.Method),
		fields:  make(map[string]*types.Field),
	}
	p.s = NewScanner(filename, src, func(line, col uint32, msg string) {
		if p.err == nil {
			p.err = &Error{Pos: NewPos(filename, line, col), Msg: msg}
		}
	})
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			mod, err = nil, p.err
		}
	}()
	p.next()
	p.parseModule()
	if p.err != nil {
		return nil, p.err
	}
	return p.mod, nil
}

// ParseString reads a module from a string.
func ParseString(filename, src string) (*il.Module, error) {
	return Parse(filename, strings.NewReader(src))
}

func (p *Parser) next() {
	p.s.Next()
	if p.err != nil {
		panic(bailout{})
	}
}

func (p *Parser) errorf(format string, args ...any) {
	if p.err == nil {
		p.err = &Error{Pos: p.s.Pos(), Msg: fmt.Sprintf(format, args...)}
	}
	panic(bailout{})
}

func (p *Parser) got(tok Token) bool {
	if p.s.Token() == tok {
		p.next()
		return true
	}
	return false
}

func (p *Parser) want(tok Token) {
	if !p.got(tok) {
		p.errorf("expected %s, found %s", tok, p.describe())
	}
}

func (p *Parser) describe() string {
	switch p.s.Token() {
	case _Name, _Int, _Float:
		return strconv.Quote(p.s.Literal())
	case _String:
		return "string " + strconv.Quote(p.s.Literal())
	}
	return p.s.Token().String()
}

// isWord reports whether the current token is the bare name w.
func (p *Parser) isWord(w string) bool {
	return p.s.Token() == _Name && p.s.Literal() == w
}

func (p *Parser) gotWord(w string) bool {
	if p.isWord(w) {
		p.next()
		return true
	}
	return false
}

func (p *Parser) wantWord(w string) {
	if !p.gotWord(w) {
		p.errorf("expected %s, found %s", w, p.describe())
	}
}

// name accepts a bare or quoted name.
func (p *Parser) name() string {
	switch p.s.Token() {
	case _Name, _String:
		lit := p.s.Literal()
		p.next()
		return lit
	}
	p.errorf("expected name, found %s", p.describe())
	return ""
}

func (p *Parser) intLit() int64 {
	if p.s.Token() != _Int {
		p.errorf("expected integer, found %s", p.describe())
	}
	lit := p.s.Literal()
	v, err := strconv.ParseInt(lit, 0, 64)
	if err != nil {
		u, uerr := strconv.ParseUint(lit, 0, 64)
		if uerr != nil {
			p.errorf("invalid integer %s", lit)
		}
		v = int64(u)
	}
	p.next()
	return v
}

func (p *Parser) floatLit() float64 {
	switch p.s.Token() {
	case _Int, _Float:
	default:
		p.errorf("expected number, found %s", p.describe())
	}
	v, err := strconv.ParseFloat(p.s.Literal(), 64)
	if err != nil {
		p.errorf("invalid number %s", p.s.Literal())
	}
	p.next()
	return v
}

// parseModule parses:
//
//	.format "1.0"
//	.module Name
//	.class ...
func (p *Parser) parseModule() {
	p.wantWord(".format")
	if p.s.Token() != _String {
		p.errorf("expected format version string, found %s", p.describe())
	}
	version := p.s.Literal()
	if err := CheckFormat(version); err != nil {
		p.errorf("%v", err)
	}
	p.next()
	p.wantWord(".module")
	p.mod = il.NewModule(p.name())
	p.mod.Version = version

	for p.s.Token() != _EOF {
		if !p.isWord(".class") {
			p.errorf("expected .class, found %s", p.describe())
		}
		p.next()
		p.parseClass()
	}
}

// CheckFormat reports whether version satisfies FormatConstraint.
func CheckFormat(version string) error {
	c, err := semver.NewConstraint(FormatConstraint)
	if err != nil {
		return err
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("invalid format version %q: %w", version, err)
	}
	if !c.Check(v) {
		return fmt.Errorf("unsupported format version %s (want %s)", v, FormatConstraint)
	}
	return nil
}

var classKinds = map[string]types.NamedKind{
	"class":     types.Class,
	"valuetype": types.ValueType,
	"enum":      types.Enum,
	"interface": types.Interface,
	"delegate":  types.Delegate,
}

// parseClass parses a class declaration after .class.
func (p *Parser) parseClass() {
	kind := types.Class
	synthetic := false
	for p.s.Token() == _Name {
		lit := p.s.Literal()
		if k, ok := classKinds[lit]; ok {
			kind = k
		} else if lit == "synthetic" {
			synthetic = true
		} else if lit != "sealed" && lit != "abstract" {
			break
		}
		p.next()
	}
	t := p.namedType(p.name())
	if t.Declared() {
		p.errorf("type %s declared twice", t.Name())
	}
	t.SetKind(kind)
	t.SetSynthetic(synthetic)
	t.SetDeclared(true)
	p.mod.Types = append(p.mod.Types, t)

	switch {
	case p.gotWord("extends"):
		t.SetBase(p.parseType())
	case p.got(_Colon):
		b, ok := p.parseType().(*types.Basic)
		if !ok || !types.IsIntegral(b) {
			p.errorf("enum storage type must be integral")
		}
		t.SetEnumUnderlying(b)
	}

	p.want(_Lbrace)
	for !p.got(_Rbrace) {
		switch {
		case p.gotWord(".field"):
			p.parseField(t)
		case p.gotWord(".method"):
			p.parseMethod(t)
		default:
			p.errorf("expected .field or .method, found %s", p.describe())
		}
	}
}

// namedType returns the named type called name, creating a class
// reference if the module has not seen it yet.
func (p *Parser) namedType(name string) *types.Named {
	obj, _ := p.mod.Scope.LookupParent(name)
	if obj != nil {
		if n, ok := obj.Type().(*types.Named); ok {
			return n
		}
		p.errorf("%s is not a named type", name)
	}
	tn := types.NewTypeName(name, nil)
	p.mod.Scope.Insert(tn)
	return types.NewNamed(tn, types.Class)
}

// parseType parses:
//
//	[class|valuetype] Name { "[" {","} "]" | "*" | "&" }
func (p *Parser) parseType() types.Type {
	kind, hasKind := types.Class, false
	if p.isWord("valuetype") || p.isWord("class") {
		kind, hasKind = classKinds[p.s.Literal()], true
		p.next()
	}
	name := p.name()
	var t types.Type
	if b := types.LookupBasic(name); b != nil && !hasKind {
		t = b
	} else {
		n := p.namedType(name)
		if hasKind && !n.Declared() {
			n.SetKind(kind)
		}
		t = n
	}
	for {
		switch {
		case p.got(_Lbrack):
			rank := 1
			for p.got(_Comma) {
				rank++
			}
			p.want(_Rbrack)
			t = types.NewArray(t, rank)
		case p.got(_Star):
			t = types.NewPointer(t)
		case p.got(_Amp):
			t = types.NewByRef(t)
		default:
			return t
		}
	}
}

// parseField parses a field declaration after .field:
//
//	[static] [synthetic] Type name [= bytes "hex"]
func (p *Parser) parseField(owner *types.Named) {
	static, synthetic := false, false
	for {
		if p.gotWord("static") {
			static = true
		} else if p.gotWord("synthetic") {
			synthetic = true
		} else {
			break
		}
	}
	typ := p.parseType()
	name := p.name()
	f := p.field(owner, name, typ, static)
	f.SetSynthetic(synthetic)
	if p.got(_Assign) {
		p.wantWord("bytes")
		if p.s.Token() != _String {
			p.errorf("expected hex string, found %s", p.describe())
		}
		data, err := hex.DecodeString(strings.ReplaceAll(p.s.Literal(), " ", ""))
		if err != nil {
			p.errorf("invalid field data: %v", err)
		}
		f.SetData(data)
		p.next()
	}
}

func (p *Parser) field(owner *types.Named, name string, typ types.Type, static bool) *types.Field {
	key := owner.Name() + "::" + name
	if f := p.fields[key]; f != nil {
		return f
	}
	f := types.NewField(name, typ, static)
	owner.AddField(f)
	p.fields[key] = f
	return f
}

// method returns the interned method owner::name(params).
func (p *Parser) method(owner *types.Named, name string, params []*types.Var, result types.Type, static bool) *types.Method {
	key := owner.Name() + "::" + name + types.SignatureKey(params)
	if m := p.methods[key]; m != nil {
		return m
	}
	m := types.NewMethod(name, static)
	m.SetSignature(types.NewFunc(params, result))
	owner.AddMethod(m)
	p.methods[key] = m
	return m
}

// parseMethod parses a method declaration after .method:
//
//	[static] [virtual] [synthetic] Type name(Type a, ...) [{ body }]
func (p *Parser) parseMethod(owner *types.Named) {
	static, virtual, synthetic := false, false, false
	for {
		if p.gotWord("static") {
			static = true
		} else if p.gotWord("virtual") {
			virtual = true
		} else if p.gotWord("synthetic") {
			synthetic = true
		} else {
			break
		}
	}
	result := p.parseType()
	name := p.name()
	first := 0
	if !static {
		first = 1
	}
	var params []*types.Var
	p.want(_Lparen)
	for p.s.Token() != _Rparen {
		typ := p.parseType()
		pname := ""
		if p.s.Token() == _Name || p.s.Token() == _String {
			pname = p.name()
		}
		params = append(params, types.NewVar(pname, typ, first+len(params)))
		if !p.got(_Comma) {
			break
		}
	}
	p.want(_Rparen)

	m := p.method(owner, name, params, result, static)
	// A reference seen earlier may have interned the method with unnamed
	// parameters; the declaration provides the names.
	m.SetSignature(types.NewFunc(params, result))
	m.SetStatic(static)
	m.SetVirtual(virtual)
	m.SetSynthetic(synthetic)

	if p.s.Token() != _Lbrace {
		return
	}
	if p.mod.BodyOf(m) != nil {
		p.errorf("method %s has two bodies", m.FullName())
	}
	p.next()
	p.parseBody(m, params)
}

// parseBody parses directives, labels and instructions up to the closing
// brace.
func (p *Parser) parseBody(m *types.Method, params []*types.Var) {
	p.body = &il.Body{Method: m, Params: params}
	p.labels = make(map[string]int)
	p.pending = nil
	p.fixups = nil
	p.pc = 0
	p.loc = il.Loc{File: p.s.Pos().Filename()}

	for !p.got(_Rbrace) {
		if p.s.Token() != _Name {
			p.errorf("expected instruction, found %s", p.describe())
		}
		word := p.s.Literal()
		pos := p.s.Pos()
		p.next()
		if p.got(_Colon) {
			if _, dup := p.labels[word]; dup || contains(p.pending, word) {
				p.errorf("label %s defined twice", word)
			}
			p.pending = append(p.pending, word)
			continue
		}
		if strings.HasPrefix(word, ".") {
			p.parseDirective(word, pos)
			continue
		}
		p.parseInstruction(word, pos)
	}

	// Labels after the last instruction name the end of the code.
	for _, l := range p.pending {
		p.labels[l] = p.pc
	}
	for _, f := range p.fixups {
		off, ok := p.labels[f.label]
		if !ok {
			p.err = &Error{Pos: f.pos, Msg: "undefined label " + f.label}
			panic(bailout{})
		}
		f.set(off)
	}
	p.body.SortHandlers()
	p.mod.SetBody(p.body)
	p.body = nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// labelRef records a reference to a label, resolved when the body ends.
func (p *Parser) labelRef(set func(off int)) {
	pos := p.s.Pos()
	name := p.name()
	p.fixups = append(p.fixups, fixup{pos: pos, label: name, set: set})
}

func (p *Parser) parseDirective(word string, pos Pos) {
	b := p.body
	switch word {
	case ".maxstack":
		b.MaxStack = int(p.intLit())
	case ".locals":
		p.gotWord("init")
		p.want(_Lparen)
		for p.s.Token() != _Rparen {
			l := &il.Local{Index: len(b.Locals), Type: p.parseType()}
			if p.s.Token() == _Name || p.s.Token() == _String {
				l.Name = p.name()
			}
			b.Locals = append(b.Locals, l)
			if !p.got(_Comma) {
				break
			}
		}
		p.want(_Rparen)
	case ".try":
		h := &il.ExceptionHandler{}
		p.labelRef(func(off int) { h.TryStart = off })
		p.wantWord("to")
		p.labelRef(func(off int) { h.TryEnd = off })
		switch {
		case p.gotWord("catch"):
			h.Kind = il.Catch
			h.CatchType = p.parseType()
		case p.gotWord("filter"):
			h.Kind = il.Filter
			p.labelRef(func(off int) { h.FilterStart = off })
		case p.gotWord("finally"):
			h.Kind = il.Finally
		case p.gotWord("fault"):
			h.Kind = il.Fault
		default:
			p.errorf("expected handler kind, found %s", p.describe())
		}
		p.wantWord("handler")
		p.labelRef(func(off int) { h.HandlerStart = off })
		p.wantWord("to")
		p.labelRef(func(off int) { h.HandlerEnd = off })
		b.Handlers = append(b.Handlers, h)
	case ".scope":
		s := &il.Scope{}
		p.labelRef(func(off int) { s.Start = off })
		p.wantWord("to")
		p.labelRef(func(off int) { s.End = off })
		p.want(_Lparen)
		for p.s.Token() != _Rparen {
			s.Locals = append(s.Locals, b.Locals[p.localIndex()])
			if !p.got(_Comma) {
				break
			}
		}
		p.want(_Rparen)
		b.Scopes = append(b.Scopes, s)
	case ".sync":
		if b.Sync == nil {
			b.Sync = &il.SyncInfo{CatchHandler: -1}
		}
		i := len(b.Sync.Points)
		b.Sync.Points = append(b.Sync.Points, il.SyncPoint{})
		p.labelRef(func(off int) { b.Sync.Points[i].Offset = off })
		p.labelRef(func(off int) { b.Sync.Points[i].Continuation = off })
	case ".file":
		if p.s.Token() != _String {
			p.errorf("expected file name, found %s", p.describe())
		}
		p.loc.File = p.s.Literal()
		p.next()
	case ".line":
		p.loc.Line = int(p.intLit())
	default:
		p.err = &Error{Pos: pos, Msg: "unknown directive " + word}
		panic(bailout{})
	}
}

// localIndex parses a local reference: a name or an index.
func (p *Parser) localIndex() int {
	b := p.body
	if p.s.Token() == _Int {
		i := int(p.intLit())
		if i < 0 || i >= len(b.Locals) {
			p.errorf("local index %d out of range", i)
		}
		return i
	}
	name := p.name()
	for _, l := range b.Locals {
		if l.Name == name {
			return l.Index
		}
	}
	p.errorf("undefined local %s", name)
	return 0
}

// argIndex parses an argument reference: this, a name or a slot number.
func (p *Parser) argIndex() int {
	b := p.body
	if p.s.Token() == _Int {
		return int(p.intLit())
	}
	if p.gotWord("this") {
		if !b.HasThis() {
			p.errorf("this in a static method")
		}
		return 0
	}
	name := p.name()
	for _, v := range b.Params {
		if v.Name() == name {
			return v.Index()
		}
	}
	p.errorf("undefined argument %s", name)
	return 0
}

var typeSuffixes = map[string]types.BasicKind{
	"i1": types.Int8, "u1": types.Uint8,
	"i2": types.Int16, "u2": types.Uint16,
	"i4": types.Int32, "u4": types.Uint32,
	"i8": types.Int64, "u8": types.Uint64,
	"i": types.IntPtr, "u": types.UintPtr,
	"r4": types.Float32, "r8": types.Float64,
	"ref": types.Object,
}

// normalize maps the short and macro forms of an opcode to the general
// opcode, returning an implied operand for forms that carry one.
func normalize(word string) (op il.Op, operand any, implied bool) {
	word = strings.TrimSuffix(word, ".s")
	if op := il.Lookup(word); op != il.Invalid {
		return op, nil, false
	}
	base, suffix, ok := cutLast(word)
	if !ok {
		return il.Invalid, nil, false
	}
	switch base {
	case "ldarg", "ldloc", "stloc", "starg":
		if n, err := strconv.Atoi(suffix); err == nil {
			return il.Lookup(base), n, true
		}
	case "ldc.i4":
		if suffix == "m1" || suffix == "M1" {
			return il.LdcI4, int32(-1), true
		}
		if n, err := strconv.Atoi(suffix); err == nil && n >= 0 && n <= 8 {
			return il.LdcI4, int32(n), true
		}
	case "ldelem", "stelem":
		if suffix == "any" {
			return il.Lookup(base), nil, false
		}
	}
	if k, ok := typeSuffixes[suffix]; ok {
		switch base {
		case "conv", "conv.ovf", "ldind", "stind", "ldelem", "stelem":
			return il.Lookup(base), types.Typ[k], true
		}
	}
	// conv.ovf.i4.un
	if suffix == "un" {
		if b2, s2, ok := cutLast(base); ok && b2 == "conv.ovf" {
			if k, ok := typeSuffixes[s2]; ok {
				return il.ConvOvfUn, types.Typ[k], true
			}
		}
	}
	return il.Invalid, nil, false
}

func cutLast(s string) (string, string, bool) {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

// parseInstruction parses one instruction and its operand.
func (p *Parser) parseInstruction(word string, pos Pos) {
	op, operand, implied := normalize(word)
	if op == il.Invalid {
		p.err = &Error{Pos: pos, Msg: "unknown opcode " + word}
		panic(bailout{})
	}
	ins := &il.Instruction{Op: op, Operand: operand, Loc: p.loc}
	if !implied {
		p.parseOperand(ins)
	}
	ins.Offset = p.pc
	for _, l := range p.pending {
		p.labels[l] = p.pc
	}
	p.pending = p.pending[:0]
	p.pc += ins.Size()
	p.body.Instrs = append(p.body.Instrs, ins)
}

func (p *Parser) parseOperand(ins *il.Instruction) {
	switch ins.Op.Info().Operand {
	case il.NoOperand:
	case il.IntOperand:
		v := p.intLit()
		if v < math.MinInt32 || v > math.MaxUint32 {
			p.errorf("constant %d overflows int32", v)
		}
		ins.Operand = int32(v)
	case il.LongOperand:
		ins.Operand = p.intLit()
	case il.FloatOperand:
		ins.Operand = float32(p.floatLit())
	case il.DoubleOperand:
		ins.Operand = p.floatLit()
	case il.StringOperand:
		if p.s.Token() != _String {
			p.errorf("expected string, found %s", p.describe())
		}
		ins.Operand = p.s.Literal()
		p.next()
	case il.TypeOperand:
		ins.Operand = p.parseType()
	case il.FieldOperand:
		ins.Operand = p.parseFieldRef(ins.Op == il.Ldsfld || ins.Op == il.Stsfld || ins.Op == il.Ldsflda)
	case il.MethodOperand:
		ins.Operand = p.parseMethodRef()
	case il.ArgOperand:
		ins.Operand = p.argIndex()
	case il.LocalOperand:
		ins.Operand = p.localIndex()
	case il.BranchOperand:
		ins.Operand = 0
		p.labelRef(func(off int) { ins.Operand = off })
	case il.SwitchOperand:
		var targets []int
		p.want(_Lparen)
		for p.s.Token() != _Rparen {
			i := len(targets)
			targets = append(targets, 0)
			p.labelRef(func(off int) { targets[i] = off })
			if !p.got(_Comma) {
				break
			}
		}
		p.want(_Rparen)
		ins.Operand = targets
	case il.TokenOperand:
		switch {
		case p.gotWord("field"):
			ins.Operand = p.parseFieldRef(false)
		case p.gotWord("method"):
			ins.Operand = p.parseMethodRef()
		default:
			p.gotWord("type")
			ins.Operand = p.parseType()
		}
	}
}

// parseFieldRef parses "Type Owner::name".
func (p *Parser) parseFieldRef(static bool) *types.Field {
	typ := p.parseType()
	owner := p.namedType(p.name())
	p.want(_DColon)
	return p.field(owner, p.name(), typ, static)
}

// parseMethodRef parses "[instance] Type Owner::name(Type, ...)".
func (p *Parser) parseMethodRef() *types.Method {
	static := !p.gotWord("instance")
	result := p.parseType()
	owner := p.namedType(p.name())
	p.want(_DColon)
	name := p.name()
	first := 0
	if !static {
		first = 1
	}
	var params []*types.Var
	p.want(_Lparen)
	for p.s.Token() != _Rparen {
		params = append(params, types.NewVar("", p.parseType(), first+len(params)))
		if !p.got(_Comma) {
			break
		}
	}
	p.want(_Rparen)
	return p.method(owner, name, params, result, static)
}
