// Package ast defines the structured tree the decompiler reconstructs from
// a method body: statements, expressions, locals and labels.
package ast

import "github.com/you-not-fish/destack/internal/types"

// ----------------------------------------------------------------------------
// Interfaces
//
// There are 2 main classes of nodes: Expressions and Statements. All nodes
// implement the Node interface. Case and Catch are nodes that are neither.

// ID is the stable identity of a node, local or label within one method.
// Side tables (goto registry, use counters, last-use markers) are keyed by
// ID rather than by pointer.
type ID uint32

// Node is the interface implemented by all tree nodes.
type Node interface {
	ID() ID
	setID(ID)
	aNode() // marker method to restrict implementations to this package
}

// Expr is the interface for all expression nodes.
type Expr interface {
	Node
	Type() types.Type
	SetType(types.Type)
	aExpr()
}

// Stmt is the interface for all statement nodes.
type Stmt interface {
	Node
	aStmt()
}

// ----------------------------------------------------------------------------
// Base node types

type node struct {
	id ID
}

func (n *node) ID() ID      { return n.id }
func (n *node) setID(id ID) { n.id = id }
func (*node) aNode()        {}

// expr is embedded in all expression nodes.
type expr struct {
	node
	typ types.Type
}

func (e *expr) Type() types.Type     { return e.typ }
func (e *expr) SetType(t types.Type) { e.typ = t }
func (*expr) aExpr()                 {}

// stmt is embedded in all statement nodes.
type stmt struct{ node }

func (*stmt) aStmt() {}

// ----------------------------------------------------------------------------
// Variables and labels

// Local is a local variable of the decompiled method.
type Local struct {
	id        ID
	Name      string
	Type      types.Type
	Index     int  // slot in the local table, -1 for synthesized locals
	Synthetic bool // introduced by the decompiler
}

func (l *Local) ID() ID { return l.id }

func (l *Local) String() string { return l.Name }

// Label is a jump target.
type Label struct {
	id     ID
	Name   string
	Offset int // offset of the instruction it names, -1 if synthesized
}

func (l *Label) ID() ID { return l.id }

func (l *Label) String() string { return l.Name }

// ----------------------------------------------------------------------------
// Expressions

// Const is a constant. Value is int64 for integral, bool, char and enum
// types, float64 for floating-point types, string for strings and nil for
// the null reference.
type Const struct {
	expr
	Value any
}

// LocalRef reads or, as an assignment target, writes a local.
type LocalRef struct {
	expr
	Local *Local
}

// ParamRef reads or writes a declared parameter.
type ParamRef struct {
	expr
	Param *types.Var
}

// ThisRef is the this argument.
type ThisRef struct {
	expr
}

// FieldRef is Instance.Field, or Owner.Field for static fields.
type FieldRef struct {
	expr
	Instance Expr // nil for static fields
	Field    *types.Field
}

// ArrayIndex is Array[Indices...].
type ArrayIndex struct {
	expr
	Array   Expr
	Indices []Expr
}

// Deref is *X.
type Deref struct {
	expr
	X Expr
}

// AddrOf is &X.
type AddrOf struct {
	expr
	X Expr
}

// BinaryOp is the operator of a Binary.
type BinaryOp uint8

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Rem
	And
	Or
	Xor
	Shl
	Shr
	Eq
	Ne
	Lt
	Le
	Gt
	Ge
)

var binaryOpNames = [...]string{
	Add: "+",
	Sub: "-",
	Mul: "*",
	Div: "/",
	Rem: "%",
	And: "&",
	Or:  "|",
	Xor: "^",
	Shl: "<<",
	Shr: ">>",
	Eq:  "==",
	Ne:  "!=",
	Lt:  "<",
	Le:  "<=",
	Gt:  ">",
	Ge:  ">=",
}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return "?"
}

// IsComparison reports whether op yields a boolean.
func (op BinaryOp) IsComparison() bool {
	return op >= Eq
}

// Binary is X Op Y. Unsigned marks the .un instruction forms; Checked the
// overflow-checking forms.
type Binary struct {
	expr
	Op       BinaryOp
	X, Y     Expr
	Unsigned bool
	Checked  bool
}

// UnaryOp is the operator of a Unary.
type UnaryOp uint8

const (
	Neg        UnaryOp = iota // -x
	Complement                // ~x
	Not                       // !x
)

func (op UnaryOp) String() string {
	switch op {
	case Neg:
		return "-"
	case Complement:
		return "~"
	}
	return "!"
}

// Unary is Op X.
type Unary struct {
	expr
	Op UnaryOp
	X  Expr
}

// Conv is a numeric conversion (To)X.
type Conv struct {
	expr
	X        Expr
	To       types.Type
	Checked  bool
	Unsigned bool // source is treated as unsigned
}

// CastKind distinguishes the reference conversions.
type CastKind uint8

const (
	CastClass CastKind = iota // (T)x, throws on failure
	IsInst                    // x as T
	Box                       // (object)x
	Unbox                     // address of the boxed value
	UnboxAny                  // (T)x on a boxed value
)

// Cast is a reference conversion of X to To.
type Cast struct {
	expr
	Kind CastKind
	X    Expr
	To   types.Type
}

// Call is a method call. Recv is nil for static methods.
type Call struct {
	expr
	Method  *types.Method
	Recv    Expr
	Args    []Expr
	Virtual bool
}

// NewObj is an object construction.
type NewObj struct {
	expr
	Ctor *types.Method
	Args []Expr
}

// NewArray creates an array of Elem with the given dimension sizes. Init,
// when non-nil, lists the initial elements in row-major order.
type NewArray struct {
	expr
	Elem  types.Type
	Sizes []Expr
	Init  []Expr
}

// ArrayLen is X.Length.
type ArrayLen struct {
	expr
	X Expr
}

// Cond is C ? T : F. The short-circuit operators are Cond nodes:
// a && b is a ? b : false and a || b is a ? true : b.
type Cond struct {
	expr
	C, T, F Expr
}

// BlockExpr evaluates Stmts and then yields Result.
type BlockExpr struct {
	expr
	Stmts  []Stmt
	Result Expr
}

// Assign is Target = Value.
type Assign struct {
	expr
	Target Expr
	Value  Expr
}

// OpAssign is Target Op= Value. A Postfix OpAssign yields the value before
// the update (x++, x--).
type OpAssign struct {
	expr
	Op      BinaryOp
	Target  Expr
	Value   Expr
	Postfix bool
}

// PropertyRef is a property access synthesized from getter/setter calls.
type PropertyRef struct {
	expr
	Getter *types.Method
	Setter *types.Method
	Recv   Expr // nil for static properties
	Args   []Expr
}

// Name returns the property name derived from the accessor names.
func (p *PropertyRef) Name() string {
	m := p.Getter
	if m == nil {
		m = p.Setter
	}
	if m == nil {
		return "?"
	}
	name := m.Name()
	if len(name) > 4 && (name[:4] == "get_" || name[:4] == "set_") {
		return name[4:]
	}
	return name
}

// MethodPtr is the address of a method, as loaded by ldftn/ldvirtftn.
type MethodPtr struct {
	expr
	Method *types.Method
	Recv   Expr // ldvirtftn only
}

// AnonymousDelegate is a delegate literal reinstated from a closure method.
type AnonymousDelegate struct {
	expr
	Delegate types.Type
	Method   *types.Method
	Params   []*types.Var
	Body     *Block
}

// Token is a metadata token: a types.Type, *types.Field or *types.Method.
type Token struct {
	expr
	Operand any
}

// SizeOf is sizeof(Of).
type SizeOf struct {
	expr
	Of types.Type
}

// DefaultValue is default(Of).
type DefaultValue struct {
	expr
	Of types.Type
}

// PopValue stands for a value produced by an earlier push. Within one
// statement, pop placeholders consume the stack left to right from the
// deepest slot.
type PopValue struct {
	expr
}

// DupValue reads the top of the stack without consuming it.
type DupValue struct {
	expr
}

// ----------------------------------------------------------------------------
// Statements

// BlockKind tags the region a Block mirrors.
type BlockKind uint8

const (
	PlainBlock BlockKind = iota
	TryBlock
	HandlerBlock
	FilterBlock
)

var blockKindNames = [...]string{
	PlainBlock:   "plain",
	TryBlock:     "try",
	HandlerBlock: "handler",
	FilterBlock:  "filter",
}

func (k BlockKind) String() string {
	if int(k) < len(blockKindNames) {
		return blockKindNames[k]
	}
	return "?"
}

// Block is a statement list covering the offsets [Start, End). During
// structuring a leaf block lists the start offsets of its basic blocks in
// Seeds; a composite block holds nested blocks in Stmts.
type Block struct {
	stmt
	Start, End   int
	Kind         BlockKind
	LexicalScope bool
	Seeds        []int
	Stmts        []Stmt
}

// Contains reports whether [start, end) lies inside the block's range.
func (b *Block) Contains(start, end int) bool {
	return b.Start <= start && end <= b.End
}

// ExprStmt is an expression evaluated for its side effects.
type ExprStmt struct {
	stmt
	X Expr
}

// LocalDecl declares a local, optionally with an initializer.
type LocalDecl struct {
	stmt
	Local *Local
	Init  Expr
}

// If is if (Cond) Then else Else. Else may be nil.
type If struct {
	stmt
	Cond Expr
	Then *Block
	Else *Block
}

// Goto jumps to Label.
type Goto struct {
	stmt
	Label *Label
}

// LabelStmt defines Label at this point of the statement list.
type LabelStmt struct {
	stmt
	Label *Label
}

// Switch dispatches on X. Cases are ordered by table index; a case whose
// body is empty falls through to the next one.
type Switch struct {
	stmt
	X     Expr
	Cases []*Case
}

// Case is one arm of a Switch.
type Case struct {
	node
	Value   int64
	Default bool
	Body    *Block
}

// Try is try Body with catch, finally or fault handlers.
type Try struct {
	stmt
	Body    *Block
	Catches []*Catch
	Finally *Block
	Fault   *Block
}

// Catch is one catch clause. Filter, when present, is the statement list of
// the filter decision; FilterExpr its result.
type Catch struct {
	node
	Type       types.Type
	Var        *Local // nil when the exception is discarded
	Filter     *Block
	FilterExpr Expr
	Body       *Block
}

// Lock is lock (Guard) Body.
type Lock struct {
	stmt
	Guard Expr
	Body  *Block
}

// Using is using (Acquire) Body. Acquire is a LocalDecl or an ExprStmt
// holding an assignment.
type Using struct {
	stmt
	Acquire Stmt
	Body    *Block
}

// While is while (Cond) Body.
type While struct {
	stmt
	Cond Expr
	Body *Block
}

// DoWhile is do Body while (Cond).
type DoWhile struct {
	stmt
	Body *Block
	Cond Expr
}

// For is for (Init; Cond; Post) Body.
type For struct {
	stmt
	Init Stmt
	Cond Expr
	Post Stmt
	Body *Block
}

// Break leaves the innermost loop.
type Break struct {
	stmt
}

// Continue jumps to the next iteration of the innermost loop.
type Continue struct {
	stmt
}

// Return returns X, which is nil in void methods.
type Return struct {
	stmt
	X Expr
}

// Throw throws X; a nil X rethrows the current exception.
type Throw struct {
	stmt
	X Expr
}

// Push places X on the operand stack.
type Push struct {
	stmt
	X Expr
}

// EndFinally marks the exit of a finally or fault handler.
type EndFinally struct {
	stmt
}

// EndFilter ends a filter block with decision X.
type EndFilter struct {
	stmt
	X Expr
}

// YieldReturn is yield return X.
type YieldReturn struct {
	stmt
	X Expr
}

// YieldBreak is yield break.
type YieldBreak struct {
	stmt
}

// Empty is the empty statement.
type Empty struct {
	stmt
}
