package decomp

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/cfg"
	"github.com/you-not-fish/destack/internal/il"
	"github.com/you-not-fish/destack/internal/types"
)

// Translate fills the leaves of the block tree built by Structure with the
// statements of their basic blocks. Each basic block is simulated on its
// own: the operand stack starts with one pop placeholder per incoming
// slot, values stay on the simulated stack as expressions until a
// statement consumes them, and whatever is left when a statement is
// emitted is flushed as push statements first.
//
// After translation untagged leaves are spliced into their parents, local
// declarations are inserted and the side tables of ctx are counted.
func Translate(ctx *Context) error {
	if ctx.Root == nil {
		return ctx.Errorf(ErrBadNesting, "no block tree")
	}
	t := &translator{
		ctx:     ctx,
		a:       ctx.Arena,
		body:    ctx.Body,
		targets: make(map[int]bool),
	}
	for _, b := range ctx.Graph.Blocks {
		if !ctx.Graph.Reachable(b) {
			continue
		}
		for _, target := range b.Last().Targets() {
			t.targets[target] = true
		}
	}
	t.loops = ctx.Graph.Loops()

	if err := t.fill(ctx.Root); err != nil {
		return err
	}
	splice(ctx.Root)
	t.declare()
	ctx.Recount()
	t.markLastUses()
	return nil
}

// read is one ldloc, for the last-use analysis.
type read struct {
	ref    *ast.LocalRef
	offset int
}

type translator struct {
	ctx      *Context
	a        *ast.Arena
	body     *il.Body
	targets  map[int]bool
	loops    *roaring.Bitmap // blocks on a cycle
	reads    []read

	// Per basic block state.
	stack []ast.Expr   // simulated values, bottom first
	shape []types.Type // the real operand stack
	out   []ast.Stmt
}

func (t *translator) fill(b *ast.Block) error {
	if b.Seeds == nil {
		for _, s := range b.Stmts {
			if c, ok := s.(*ast.Block); ok {
				if err := t.fill(c); err != nil {
					return err
				}
			}
		}
		return nil
	}
	var stmts []ast.Stmt
	for _, seed := range b.Seeds {
		bb := t.ctx.Graph.BlockAt(seed)
		if bb == nil || !t.ctx.Graph.Reachable(bb) {
			continue
		}
		list, err := t.block(bb)
		if err != nil {
			return err
		}
		stmts = append(stmts, list...)
	}
	b.Seeds = nil
	b.Stmts = stmts
	return nil
}

// splice replaces untagged blocks by their statements.
func splice(b *ast.Block) {
	var out []ast.Stmt
	for _, s := range b.Stmts {
		c, ok := s.(*ast.Block)
		if !ok {
			out = append(out, s)
			continue
		}
		splice(c)
		if c.Kind == ast.PlainBlock && !c.LexicalScope {
			out = append(out, c.Stmts...)
			continue
		}
		out = append(out, c)
	}
	b.Stmts = out
}

// declare inserts a declaration for every local of the local table at the
// top of the scope block that declares it, or of the root.
func (t *translator) declare() {
	scopeOf := make(map[*il.Local]*il.Scope)
	for _, s := range t.body.Scopes {
		for _, l := range s.Locals {
			scopeOf[l] = s
		}
	}
	decls := make(map[*ast.Block][]ast.Stmt)
	root := t.ctx.Root
	for i, l := range t.body.Locals {
		home := root
		if s := scopeOf[l]; s != nil {
			if b := findScope(root, s.Start, s.End); b != nil {
				home = b
			}
		}
		decls[home] = append(decls[home], ast.New(t.a, &ast.LocalDecl{Local: t.ctx.Local(i)}))
	}
	for b, list := range decls {
		b.Stmts = append(list, b.Stmts...)
	}
}

func findScope(b *ast.Block, start, end int) *ast.Block {
	if b.LexicalScope && b.Start == start && b.End == end {
		return b
	}
	for _, s := range b.Stmts {
		if c, ok := s.(*ast.Block); ok && c.Start <= start && end <= c.End {
			if found := findScope(c, start, end); found != nil {
				return found
			}
		}
	}
	return nil
}

// markLastUses marks, for each local, the read with the highest offset
// when no cycle of the control-flow graph can execute it again.
func (t *translator) markLastUses() {
	live := make(map[*ast.LocalRef]bool)
	ast.Inspect(t.ctx.Root, func(n ast.Node) bool {
		if r, ok := n.(*ast.LocalRef); ok {
			live[r] = true
		}
		return true
	})
	last := make(map[*ast.Local]read)
	for _, r := range t.reads {
		if !live[r.ref] {
			continue
		}
		if prev, ok := last[r.ref.Local]; !ok || r.offset > prev.offset {
			last[r.ref.Local] = r
		}
	}
	for _, r := range last {
		if !t.inLoop(r.offset) {
			t.ctx.MarkLastUse(r.ref)
		}
	}
}

func (t *translator) inLoop(offset int) bool {
	b := t.ctx.Graph.BlockContaining(offset)
	return b != nil && t.loops.Contains(uint32(b.ID))
}

// ----------------------------------------------------------------------------
// Basic blocks

func (t *translator) block(b *cfg.Block) ([]ast.Stmt, error) {
	t.out = nil
	t.stack = t.stack[:0]
	t.shape = append(t.shape[:0], b.StackIn...)
	if t.targets[b.Start] {
		t.out = append(t.out, ast.New(t.a, &ast.LabelStmt{Label: t.ctx.Label(b.Start)}))
	}
	for _, ty := range b.StackIn {
		t.stack = append(t.stack, t.placeholder(ty))
	}

	for i := 0; i < len(b.Instrs); i++ {
		ins := b.Instrs[i]
		if n := ins.Pops(t.body.Returns()); n > len(t.shape) {
			return nil, t.ctx.Errorf(ErrStackUnderflow, "%s pops %d values from a stack of %d", ins, n, len(t.shape))
		}
		var next *il.Instruction
		if i+1 < len(b.Instrs) {
			next = b.Instrs[i+1]
		}
		fused, err := t.instr(ins, next)
		if err != nil {
			return nil, err
		}
		if t.shape, err = cfg.Effect(t.body, ins, t.shape); err != nil {
			return nil, err
		}
		if fused {
			if t.shape, err = cfg.Effect(t.body, next, t.shape); err != nil {
				return nil, err
			}
			i++
		}
	}
	t.flush()
	return t.out, nil
}

func (t *translator) placeholder(ty types.Type) ast.Expr {
	p := ast.New(t.a, &ast.PopValue{})
	p.SetType(ty)
	return p
}

func isPlaceholder(e ast.Expr) bool {
	switch e.(type) {
	case *ast.PopValue, *ast.DupValue:
		return true
	}
	return false
}

func (t *translator) push(e ast.Expr) {
	t.stack = append(t.stack, e)
}

// pop removes n values and returns them deepest first. Values the
// simulated stack no longer holds become placeholders typed by the real
// stack.
func (t *translator) pop(n int) []ast.Expr {
	args := make([]ast.Expr, n)
	have := n
	if have > len(t.stack) {
		have = len(t.stack)
	}
	missing := n - have
	for i := 0; i < missing; i++ {
		args[i] = t.placeholder(t.shape[len(t.shape)-n+i])
	}
	copy(args[missing:], t.stack[len(t.stack)-have:])
	t.stack = t.stack[:len(t.stack)-have]
	return args
}

func (t *translator) pop1() ast.Expr {
	return t.pop(1)[0]
}

// flush emits the simulated stack as push statements and empties it.
// Placeholders stand for values already on the real stack and are
// dropped.
func (t *translator) flush() {
	for _, e := range t.stack {
		if _, ok := e.(*ast.PopValue); ok {
			continue
		}
		t.out = append(t.out, ast.New(t.a, &ast.Push{X: e}))
	}
	t.stack = t.stack[:0]
}

func (t *translator) emit(s ast.Stmt) {
	t.flush()
	t.out = append(t.out, s)
}

func (t *translator) assign(target, value ast.Expr) {
	a := typed(ast.New(t.a, &ast.Assign{Target: target, Value: value}), target.Type())
	t.emit(ast.New(t.a, &ast.ExprStmt{X: a}))
}

func (t *translator) jump(offset int) *ast.Goto {
	return t.ctx.NewGoto(t.ctx.Label(offset))
}

func typed[E ast.Expr](e E, ty types.Type) E {
	e.SetType(ty)
	return e
}

func typesOf(args []ast.Expr) []types.Type {
	out := make([]types.Type, len(args))
	for i, e := range args {
		out[i] = e.Type()
	}
	return out
}

// ----------------------------------------------------------------------------
// Instructions

// instr translates ins. It reports whether next was consumed as well.
func (t *translator) instr(ins *il.Instruction, next *il.Instruction) (bool, error) {
	a := t.a
	switch ins.Op {
	case il.Nop:

	case il.Ldarg, il.Ldarga:
		arg, err := t.arg(ins)
		if err != nil {
			return false, err
		}
		if ins.Op == il.Ldarga {
			arg = t.addr(arg)
		}
		t.push(arg)

	case il.Starg:
		arg, err := t.arg(ins)
		if err != nil {
			return false, err
		}
		t.assign(arg, t.pop1())

	case il.Ldloc, il.Ldloca:
		ref, err := t.local(ins)
		if err != nil {
			return false, err
		}
		if ins.Op == il.Ldloca {
			t.push(t.addr(ref))
			break
		}
		t.reads = append(t.reads, read{ref, ins.Offset})
		t.push(ref)

	case il.Stloc:
		ref, err := t.local(ins)
		if err != nil {
			return false, err
		}
		t.assign(ref, t.pop1())

	case il.Ldnull:
		t.push(a.Null())
	case il.LdcI4:
		v, ok := ins.Operand.(int32)
		if !ok {
			return false, t.operandError(ins)
		}
		t.push(a.Int(int64(v), types.Typ[types.UntypedInt]))
	case il.LdcI8:
		v, ok := ins.Operand.(int64)
		if !ok {
			return false, t.operandError(ins)
		}
		t.push(a.Int(v, types.Typ[types.Int64]))
	case il.LdcR4:
		v, ok := ins.Operand.(float32)
		if !ok {
			return false, t.operandError(ins)
		}
		t.push(typed(ast.New(a, &ast.Const{Value: float64(v)}), types.Typ[types.Float32]))
	case il.LdcR8:
		v, ok := ins.Operand.(float64)
		if !ok {
			return false, t.operandError(ins)
		}
		t.push(typed(ast.New(a, &ast.Const{Value: v}), types.Typ[types.Float64]))
	case il.Ldstr:
		v, ok := ins.Operand.(string)
		if !ok {
			return false, t.operandError(ins)
		}
		t.push(typed(ast.New(a, &ast.Const{Value: v}), types.Typ[types.String]))

	case il.Dup:
		return t.dup(next)

	case il.Pop:
		v := t.pop1()
		switch {
		case isPlaceholder(v):
			t.emit(ast.New(a, &ast.ExprStmt{X: v}))
		case !ast.IsPure(v):
			t.emit(ast.New(a, &ast.ExprStmt{X: v}))
		}

	case il.Call, il.Callvirt:
		return false, t.call(ins)

	case il.Newobj:
		m := ins.Method()
		if m == nil {
			return false, t.operandError(ins)
		}
		args := t.pop(len(m.Params()))
		t.push(typed(ast.New(a, &ast.NewObj{Ctor: m, Args: args}), m.Owner()))

	case il.Ret:
		var x ast.Expr
		if t.body.Returns() {
			x = t.pop1()
		}
		t.emit(ast.New(a, &ast.Return{X: x}))

	case il.Br:
		t.emit(t.jump(ins.Target()))

	case il.Leave:
		for _, e := range t.stack {
			if !isPlaceholder(e) && !ast.IsPure(e) {
				t.out = append(t.out, ast.New(a, &ast.ExprStmt{X: e}))
			}
		}
		t.stack = t.stack[:0]
		t.emit(t.jump(ins.Target()))

	case il.Brtrue, il.Brfalse:
		c := ast.Truth(a, t.pop1())
		if ins.Op == il.Brfalse {
			c = ast.Invert(a, c)
		}
		t.branch(c, ins.Target())

	case il.Beq, il.BneUn, il.Bge, il.BgeUn, il.Bgt, il.BgtUn, il.Ble, il.BleUn, il.Blt, il.BltUn:
		args := t.pop(2)
		t.branch(t.compare(branchOps[ins.Op], isUnsignedForm(ins.Op), args[0], args[1]), ins.Target())

	case il.Switch:
		x := t.pop1()
		sw := ast.New(a, &ast.Switch{X: x})
		for i, target := range ins.Targets() {
			body := a.Block(0, 0, t.jump(target))
			sw.Cases = append(sw.Cases, ast.New(a, &ast.Case{Value: int64(i), Body: body}))
		}
		t.emit(sw)

	case il.Ldind, il.Ldobj:
		t.push(t.deref(t.pop1(), ins.Type()))

	case il.Stind, il.Stobj:
		args := t.pop(2)
		t.assign(t.deref(args[0], ins.Type()), args[1])

	case il.Add, il.AddOvf, il.AddOvfUn, il.Sub, il.SubOvf, il.SubOvfUn,
		il.Mul, il.MulOvf, il.MulOvfUn, il.Div, il.DivUn, il.Rem, il.RemUn,
		il.And, il.Or, il.Xor, il.Shl, il.Shr, il.ShrUn:
		args := t.pop(2)
		op := arith[ins.Op]
		b := ast.New(a, &ast.Binary{Op: op.op, X: args[0], Y: args[1], Unsigned: op.unsigned, Checked: op.checked})
		t.push(typed(b, cfg.ResultType(t.body, ins, typesOf(args))))

	case il.Neg, il.Not:
		x := t.pop1()
		op := ast.Neg
		if ins.Op == il.Not {
			op = ast.Complement
		}
		t.push(typed(ast.New(a, &ast.Unary{Op: op, X: x}), cfg.ResultType(t.body, ins, []types.Type{x.Type()})))

	case il.Conv, il.ConvOvf, il.ConvOvfUn, il.ConvRUn:
		to := ins.Type()
		if ins.Op == il.ConvRUn {
			to = types.Typ[types.Float64]
		}
		if to == nil {
			return false, t.operandError(ins)
		}
		c := ast.New(a, &ast.Conv{
			X:        t.pop1(),
			To:       to,
			Checked:  ins.Op == il.ConvOvf || ins.Op == il.ConvOvfUn,
			Unsigned: ins.Op == il.ConvOvfUn || ins.Op == il.ConvRUn,
		})
		t.push(typed(c, to))

	case il.Castclass, il.Isinst, il.Box, il.Unbox, il.UnboxAny:
		to := ins.Type()
		if to == nil {
			return false, t.operandError(ins)
		}
		c := ast.New(a, &ast.Cast{Kind: castKinds[ins.Op], X: t.pop1(), To: to})
		t.push(typed(c, cfg.ResultType(t.body, ins, nil)))

	case il.Ldfld, il.Ldflda, il.Ldsfld, il.Ldsflda:
		f := ins.Field()
		if f == nil {
			return false, t.operandError(ins)
		}
		var inst ast.Expr
		if ins.Op == il.Ldfld || ins.Op == il.Ldflda {
			inst = stripAddr(t.pop1())
		}
		var e ast.Expr = typed(ast.New(a, &ast.FieldRef{Instance: inst, Field: f}), f.Type())
		if ins.Op == il.Ldflda || ins.Op == il.Ldsflda {
			e = t.addr(e)
		}
		t.push(e)

	case il.Stfld, il.Stsfld:
		f := ins.Field()
		if f == nil {
			return false, t.operandError(ins)
		}
		var inst, v ast.Expr
		if ins.Op == il.Stfld {
			args := t.pop(2)
			inst, v = stripAddr(args[0]), args[1]
		} else {
			v = t.pop1()
		}
		t.assign(typed(ast.New(a, &ast.FieldRef{Instance: inst, Field: f}), f.Type()), v)

	case il.Initobj:
		ty := ins.Type()
		if ty == nil {
			return false, t.operandError(ins)
		}
		target := t.deref(t.pop1(), ty)
		t.assign(target, typed(ast.New(a, &ast.DefaultValue{Of: ty}), ty))

	case il.Sizeof:
		t.push(typed(ast.New(a, &ast.SizeOf{Of: ins.Type()}), types.Typ[types.Int32]))

	case il.Ldtoken:
		t.push(typed(ast.New(a, &ast.Token{Operand: ins.Operand}), types.Typ[types.Object]))

	case il.Ldftn, il.Ldvirtftn:
		m := ins.Method()
		if m == nil {
			return false, t.operandError(ins)
		}
		var recv ast.Expr
		if ins.Op == il.Ldvirtftn {
			recv = t.pop1()
		}
		t.push(typed(ast.New(a, &ast.MethodPtr{Method: m, Recv: recv}), types.Typ[types.IntPtr]))

	case il.Newarr:
		elem := ins.Type()
		if elem == nil {
			return false, t.operandError(ins)
		}
		n := t.pop1()
		t.push(typed(ast.New(a, &ast.NewArray{Elem: elem, Sizes: []ast.Expr{n}}), types.NewArray(elem, 1)))

	case il.Ldlen:
		t.push(typed(ast.New(a, &ast.ArrayLen{X: t.pop1()}), types.Typ[types.Int32]))

	case il.Ldelem, il.Ldelema:
		args := t.pop(2)
		var e ast.Expr = t.index(args[0], args[1:], ins.Type())
		if ins.Op == il.Ldelema {
			e = t.addr(e)
		}
		t.push(e)

	case il.Stelem:
		args := t.pop(3)
		t.assign(t.index(args[0], args[1:2], ins.Type()), args[2])

	case il.Ceq, il.Cgt, il.CgtUn, il.Clt, il.CltUn:
		args := t.pop(2)
		t.push(t.compare(compareOps[ins.Op], ins.Op == il.CgtUn || ins.Op == il.CltUn, args[0], args[1]))

	case il.Throw:
		t.emit(ast.New(a, &ast.Throw{X: t.pop1()}))
	case il.Rethrow:
		t.emit(ast.New(a, &ast.Throw{}))
	case il.Endfinally:
		t.emit(ast.New(a, &ast.EndFinally{}))
	case il.Endfilter:
		t.emit(ast.New(a, &ast.EndFilter{X: t.pop1()}))

	default:
		return false, t.ctx.Errorf(ErrOperand, "%s: unsupported instruction", ins)
	}
	return false, nil
}

func (t *translator) operandError(ins *il.Instruction) error {
	return t.ctx.Errorf(ErrOperand, "%s: missing or malformed operand", ins)
}

func (t *translator) arg(ins *il.Instruction) (ast.Expr, error) {
	slot := ins.Index()
	if t.body.HasThis() && slot == 0 {
		return typed(ast.New(t.a, &ast.ThisRef{}), t.body.ThisType()), nil
	}
	v := t.body.Arg(slot)
	if v == nil {
		return nil, t.ctx.Errorf(ErrOperand, "%s: no argument %d", ins, slot)
	}
	return typed(ast.New(t.a, &ast.ParamRef{Param: v}), v.Type()), nil
}

func (t *translator) local(ins *il.Instruction) (*ast.LocalRef, error) {
	l := t.ctx.Local(ins.Index())
	if l == nil {
		return nil, t.ctx.Errorf(ErrOperand, "%s: no local %d", ins, ins.Index())
	}
	return t.a.Ref(l), nil
}

func (t *translator) addr(x ast.Expr) ast.Expr {
	return typed(ast.New(t.a, &ast.AddrOf{X: x}), types.NewByRef(x.Type()))
}

// stripAddr turns &x used as an instance into x.
func stripAddr(e ast.Expr) ast.Expr {
	if a, ok := e.(*ast.AddrOf); ok {
		return a.X
	}
	return e
}

// deref returns the location addr points to: *addr, or x for &x.
func (t *translator) deref(addr ast.Expr, ty types.Type) ast.Expr {
	if a, ok := addr.(*ast.AddrOf); ok {
		return a.X
	}
	if ty == nil {
		ty = types.Elem(addr.Type())
	}
	return typed(ast.New(t.a, &ast.Deref{X: addr}), ty)
}

func (t *translator) index(arr ast.Expr, indices []ast.Expr, elem types.Type) ast.Expr {
	if elem == nil {
		elem = types.Elem(arr.Type())
	}
	return typed(ast.New(t.a, &ast.ArrayIndex{Array: arr, Indices: indices}), elem)
}

func (t *translator) branch(c ast.Expr, target int) {
	then := t.a.Block(0, 0, t.jump(target))
	t.emit(ast.New(t.a, &ast.If{Cond: c, Then: then}))
}

// dup duplicates the top of the stack. A value stored right away by the
// next instruction becomes an assignment expression left on the stack; a
// leaf is cloned. Anything else is pushed and duplicated explicitly.
func (t *translator) dup(next *il.Instruction) (bool, error) {
	x := t.pop1()
	switch {
	case !isPlaceholder(x) && next != nil && (next.Op == il.Stloc || next.Op == il.Starg):
		var target ast.Expr
		var err error
		if next.Op == il.Stloc {
			target, err = t.local(next)
		} else {
			target, err = t.arg(next)
		}
		if err != nil {
			return false, err
		}
		t.push(typed(ast.New(t.a, &ast.Assign{Target: target, Value: x}), target.Type()))
		return true, nil

	case ast.IsLeaf(x):
		t.push(x)
		t.push(ast.Clone(t.a, x))
		return false, nil
	}

	if !isPlaceholder(x) {
		t.push(x)
	}
	t.flush()
	t.out = append(t.out, ast.New(t.a, &ast.Push{X: typed(ast.New(t.a, &ast.DupValue{}), x.Type())}))
	return false, nil
}

func (t *translator) call(ins *il.Instruction) error {
	m := ins.Method()
	if m == nil {
		return t.operandError(ins)
	}
	args := t.pop(ins.Pops(false))
	var recv ast.Expr
	if !m.Static() {
		recv, args = stripAddr(args[0]), args[1:]
	}
	result := m.Result()

	// Multi-dimensional array accessors.
	if owner := m.Owner(); owner != nil && owner.Name() == types.ArrayType && recv != nil {
		switch m.Name() {
		case "Get":
			t.push(t.index(recv, args, result))
			return nil
		case "Address":
			t.push(t.addr(t.index(recv, args, types.Elem(result))))
			return nil
		case "Set":
			if len(args) > 0 {
				v := args[len(args)-1]
				t.assign(t.index(recv, args[:len(args)-1], v.Type()), v)
				return nil
			}
		}
	}

	c := ast.New(t.a, &ast.Call{Method: m, Recv: recv, Args: args, Virtual: ins.Op == il.Callvirt})
	if types.IsVoid(result) {
		t.emit(ast.New(t.a, &ast.ExprStmt{X: c}))
		return nil
	}
	t.push(typed(c, result))
	return nil
}

// compare builds x op y. The unsigned forms of the ordered comparisons
// are unordered comparisons on floats and are spelled as the negation of
// the opposite comparison.
func (t *translator) compare(op ast.BinaryOp, unsigned bool, x, y ast.Expr) ast.Expr {
	a := t.a
	boolType := types.Typ[types.Bool]
	if unsigned && op == ast.Gt && ast.IsNullConst(y) {
		return typed(ast.New(a, &ast.Binary{Op: ast.Ne, X: x, Y: y}), boolType)
	}
	floats := isFloatExpr(x) || isFloatExpr(y)
	if unsigned && floats && op != ast.Eq && op != ast.Ne {
		b := typed(ast.New(a, &ast.Binary{Op: opposite[op], X: x, Y: y}), boolType)
		return typed(ast.New(a, &ast.Unary{Op: ast.Not, X: b}), boolType)
	}
	b := ast.New(a, &ast.Binary{Op: op, X: x, Y: y, Unsigned: unsigned && !floats && op != ast.Eq && op != ast.Ne})
	return typed(b, boolType)
}

var opposite = map[ast.BinaryOp]ast.BinaryOp{
	ast.Lt: ast.Ge,
	ast.Le: ast.Gt,
	ast.Gt: ast.Le,
	ast.Ge: ast.Lt,
}

func isFloatExpr(e ast.Expr) bool {
	return e.Type() != nil && types.IsFloat(e.Type())
}

func isUnsignedForm(op il.Op) bool {
	switch op {
	case il.BgeUn, il.BgtUn, il.BleUn, il.BltUn:
		return true
	}
	return false
}

var branchOps = map[il.Op]ast.BinaryOp{
	il.Beq:   ast.Eq,
	il.BneUn: ast.Ne,
	il.Bge:   ast.Ge,
	il.BgeUn: ast.Ge,
	il.Bgt:   ast.Gt,
	il.BgtUn: ast.Gt,
	il.Ble:   ast.Le,
	il.BleUn: ast.Le,
	il.Blt:   ast.Lt,
	il.BltUn: ast.Lt,
}

var compareOps = map[il.Op]ast.BinaryOp{
	il.Ceq:   ast.Eq,
	il.Cgt:   ast.Gt,
	il.CgtUn: ast.Gt,
	il.Clt:   ast.Lt,
	il.CltUn: ast.Lt,
}

type arithOp struct {
	op       ast.BinaryOp
	unsigned bool
	checked  bool
}

var arith = map[il.Op]arithOp{
	il.Add:      {op: ast.Add},
	il.AddOvf:   {op: ast.Add, checked: true},
	il.AddOvfUn: {op: ast.Add, checked: true, unsigned: true},
	il.Sub:      {op: ast.Sub},
	il.SubOvf:   {op: ast.Sub, checked: true},
	il.SubOvfUn: {op: ast.Sub, checked: true, unsigned: true},
	il.Mul:      {op: ast.Mul},
	il.MulOvf:   {op: ast.Mul, checked: true},
	il.MulOvfUn: {op: ast.Mul, checked: true, unsigned: true},
	il.Div:      {op: ast.Div},
	il.DivUn:    {op: ast.Div, unsigned: true},
	il.Rem:      {op: ast.Rem},
	il.RemUn:    {op: ast.Rem, unsigned: true},
	il.And:      {op: ast.And},
	il.Or:       {op: ast.Or},
	il.Xor:      {op: ast.Xor},
	il.Shl:      {op: ast.Shl},
	il.Shr:      {op: ast.Shr},
	il.ShrUn:    {op: ast.Shr, unsigned: true},
}

var castKinds = map[il.Op]ast.CastKind{
	il.Castclass: ast.CastClass,
	il.Isinst:    ast.IsInst,
	il.Box:       ast.Box,
	il.Unbox:     ast.Unbox,
	il.UnboxAny:  ast.UnboxAny,
}
