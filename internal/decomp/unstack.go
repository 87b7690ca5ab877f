package decomp

import (
	"fmt"
	"sort"

	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/types"
)

// EliminateStack removes the push, pop and dup placeholders the passes
// could not fold away. A push directly consumed by the next statement is
// substituted into it when evaluation order allows. The rest becomes
// traffic through temporaries, one per stack depth and type class, named
// stack_<depth>_<class>.
func EliminateStack(ctx *Context) {
	if ctx.Root == nil {
		return
	}
	e := &eliminator{
		ctx:    ctx,
		a:      ctx.Arena,
		slots:  make(map[ast.Node]int),
		pushed: make(map[int][]*ast.Push),
		temps:  make(map[tempKey]*ast.Local),
		merged: make(map[int]bool),
	}
	ast.Inspect(ctx.Root, func(n ast.Node) bool {
		if b, ok := n.(*ast.Block); ok {
			b.Stmts = e.fold(b.Stmts)
		}
		return true
	})
	if !hasStackTraffic(ctx.Root) {
		return
	}
	e.list(ctx.Root.Stmts, 0)
	e.allocate()
	e.replace()
	ctx.Recount()
}

func hasStackTraffic(root ast.Node) bool {
	found := false
	ast.Inspect(root, func(n ast.Node) bool {
		switch n.(type) {
		case *ast.Push, *ast.PopValue, *ast.DupValue:
			found = true
		case *ast.AnonymousDelegate:
			return false
		}
		return !found
	})
	return found
}

type tempKey struct {
	slot  int
	class types.StackClass
}

type eliminator struct {
	ctx    *Context
	a      *ast.Arena
	slots  map[ast.Node]int // stack slot of each push, pop and dup
	pushed map[int][]*ast.Push
	temps  map[tempKey]*ast.Local
	merged map[int]bool // slots where booleans and 0/1 integers meet
	order  []*ast.Local
}

// ----------------------------------------------------------------------------
// Folding

func (e *eliminator) fold(stmts []ast.Stmt) []ast.Stmt {
	for i := 0; i+1 < len(stmts); {
		p, ok := stmts[i].(*ast.Push)
		if !ok || !e.foldInto(p.X, stmts[i+1]) {
			i++
			continue
		}
		stmts = append(stmts[:i], stmts[i+1:]...)
		if i > 0 {
			i--
		}
	}
	return stmts
}

// foldInto substitutes x for the last pop evaluated by the head of s.
func (e *eliminator) foldInto(x ast.Expr, s ast.Stmt) bool {
	if hasDup(x) {
		return false
	}
	h, set := Head(s)
	if h == nil || hasDup(h) {
		return false
	}
	var pops []*ast.PopValue
	cond := make(map[*ast.PopValue]bool)
	var visit func(n ast.Node, guarded bool) bool
	visit = func(n ast.Node, guarded bool) bool {
		switch n := n.(type) {
		case *ast.PopValue:
			pops = append(pops, n)
			cond[n] = guarded
		case *ast.Cond:
			ast.Inspect(n.C, func(m ast.Node) bool { return visit(m, guarded) })
			ast.Inspect(n.T, func(m ast.Node) bool { return visit(m, true) })
			ast.Inspect(n.F, func(m ast.Node) bool { return visit(m, true) })
			return false
		case *ast.AnonymousDelegate, *ast.BlockExpr:
			return false
		}
		return true
	}
	ast.Inspect(h, func(n ast.Node) bool { return visit(n, false) })
	if len(pops) == 0 {
		return false
	}
	target := pops[len(pops)-1]
	if cond[target] {
		return false
	}
	var prefix []ast.Expr
	if !evaluatedBefore(h, target, &prefix) {
		return false
	}
	for _, p := range prefix {
		if !reorderable(x, p) {
			return false
		}
	}
	set(ast.RewriteExpr(h, func(n ast.Expr) ast.Expr {
		if n == ast.Expr(target) {
			return x
		}
		return n
	}))
	return true
}

// Head returns the expression s evaluates first and unconditionally,
// together with a setter for it. Statements without one return nil.
func Head(s ast.Stmt) (ast.Expr, func(ast.Expr)) {
	switch s := s.(type) {
	case *ast.ExprStmt:
		return s.X, func(x ast.Expr) { s.X = x }
	case *ast.Push:
		return s.X, func(x ast.Expr) { s.X = x }
	case *ast.Return:
		return s.X, func(x ast.Expr) { s.X = x }
	case *ast.Throw:
		return s.X, func(x ast.Expr) { s.X = x }
	case *ast.EndFilter:
		return s.X, func(x ast.Expr) { s.X = x }
	case *ast.YieldReturn:
		return s.X, func(x ast.Expr) { s.X = x }
	case *ast.LocalDecl:
		return s.Init, func(x ast.Expr) { s.Init = x }
	case *ast.If:
		return s.Cond, func(x ast.Expr) { s.Cond = x }
	case *ast.Switch:
		return s.X, func(x ast.Expr) { s.X = x }
	case *ast.Lock:
		return s.Guard, func(x ast.Expr) { s.Guard = x }
	}
	return nil, nil
}

func hasDup(e ast.Expr) bool {
	found := false
	ast.Inspect(e, func(n ast.Node) bool {
		if _, ok := n.(*ast.DupValue); ok {
			found = true
		}
		return !found
	})
	return found
}

// operands returns the direct operands of e in evaluation order.
func operands(e ast.Expr) []ast.Expr {
	var out []ast.Expr
	ast.Inspect(e, func(n ast.Node) bool {
		if n == ast.Node(e) {
			return true
		}
		if x, ok := n.(ast.Expr); ok {
			out = append(out, x)
		}
		return false
	})
	return out
}

// evaluatedBefore reports whether target occurs in e and collects the
// operands completely evaluated ahead of it.
func evaluatedBefore(e, target ast.Expr, prefix *[]ast.Expr) bool {
	if e == target {
		return true
	}
	for _, op := range operands(e) {
		if evaluatedBefore(op, target, prefix) {
			return true
		}
		*prefix = append(*prefix, op)
	}
	return false
}

type effects struct {
	reads, writes, throws bool
}

func effectsOf(e ast.Expr) effects {
	var f effects
	ast.Inspect(e, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.LocalRef, *ast.ParamRef:
			f.reads = true
		case *ast.FieldRef:
			f.reads = true
			f.throws = f.throws || n.Instance != nil
		case *ast.ArrayIndex, *ast.Deref, *ast.ArrayLen:
			f.reads, f.throws = true, true
		case *ast.Call, *ast.NewObj, *ast.PropertyRef:
			f.reads, f.writes, f.throws = true, true, true
		case *ast.Assign, *ast.OpAssign, *ast.BlockExpr:
			f.writes = true
		case *ast.NewArray:
			f.throws = true
		case *ast.Binary:
			f.throws = f.throws || n.Checked || n.Op == ast.Div || n.Op == ast.Rem
		case *ast.Conv:
			f.throws = f.throws || n.Checked
		case *ast.Cast:
			f.throws = f.throws || n.Kind == ast.CastClass || n.Kind == ast.UnboxAny || n.Kind == ast.Unbox
		case *ast.AnonymousDelegate:
			return false
		}
		return true
	})
	return f
}

// reorderable reports whether x may be evaluated after p instead of
// before it.
func reorderable(x, p ast.Expr) bool {
	fx, fp := effectsOf(x), effectsOf(p)
	switch {
	case fx.writes && (fp.reads || fp.writes || fp.throws):
		return false
	case fx.throws && (fp.writes || fp.throws):
		return false
	case fp.writes && fx.reads:
		return false
	}
	return true
}

// ----------------------------------------------------------------------------
// Depth simulation

func (e *eliminator) list(stmts []ast.Stmt, d int) int {
	for _, s := range stmts {
		d = e.stmt(s, d)
	}
	return d
}

// entryDepth returns the incoming stack depth of the basic block at
// offset, or -1.
func (e *eliminator) entryDepth(offset int) int {
	if offset < 0 || e.ctx.Graph == nil {
		return -1
	}
	if b := e.ctx.Graph.BlockAt(offset); b != nil {
		return len(b.StackIn)
	}
	return -1
}

func (e *eliminator) stmt(s ast.Stmt, d int) int {
	switch s := s.(type) {
	case *ast.LabelStmt:
		if in := e.entryDepth(s.Label.Offset); in >= 0 {
			return in
		}
	case *ast.Block:
		if s.Kind == ast.PlainBlock {
			return e.list(s.Stmts, d)
		}
		in := e.entryDepth(s.Start)
		if in < 0 {
			in = 0
		}
		e.list(s.Stmts, in)
		return 0
	case *ast.Push:
		if dup, ok := s.X.(*ast.DupValue); ok {
			e.slots[dup] = d - 1
		} else {
			d = e.pops(s.X, d)
		}
		e.slots[s] = d
		e.pushed[d] = append(e.pushed[d], s)
		return d + 1
	case *ast.ExprStmt:
		return e.pops(s.X, d)
	case *ast.Return:
		return e.pops(s.X, d)
	case *ast.Throw:
		return e.pops(s.X, d)
	case *ast.EndFilter:
		return e.pops(s.X, d)
	case *ast.YieldReturn:
		return e.pops(s.X, d)
	case *ast.LocalDecl:
		return e.pops(s.Init, d)
	case *ast.If:
		d = e.pops(s.Cond, d)
		then := e.list(s.Then.Stmts, d)
		if s.Else == nil {
			if jumps(s.Then) {
				return d
			}
			return then
		}
		els := e.list(s.Else.Stmts, d)
		if jumps(s.Then) {
			return els
		}
		return then
	case *ast.Switch:
		d = e.pops(s.X, d)
		for _, c := range s.Cases {
			e.list(c.Body.Stmts, d)
		}
		return d
	case *ast.Try:
		e.list(s.Body.Stmts, 0)
		for _, c := range s.Catches {
			if c.Filter != nil {
				e.pops(c.FilterExpr, e.list(c.Filter.Stmts, 0))
			}
			e.list(c.Body.Stmts, 0)
		}
		if s.Finally != nil {
			e.list(s.Finally.Stmts, 0)
		}
		if s.Fault != nil {
			e.list(s.Fault.Stmts, 0)
		}
		return 0
	case *ast.Lock:
		d = e.pops(s.Guard, d)
		e.list(s.Body.Stmts, 0)
		return d
	case *ast.Using:
		d = e.stmt(s.Acquire, d)
		e.list(s.Body.Stmts, 0)
		return d
	case *ast.While:
		d = e.pops(s.Cond, d)
		e.list(s.Body.Stmts, d)
		return d
	case *ast.DoWhile:
		d = e.list(s.Body.Stmts, d)
		return e.pops(s.Cond, d)
	case *ast.For:
		if s.Init != nil {
			d = e.stmt(s.Init, d)
		}
		d = e.pops(s.Cond, d)
		d = e.list(s.Body.Stmts, d)
		if s.Post != nil {
			d = e.stmt(s.Post, d)
		}
		return d
	}
	return d
}

// pops assigns slots to the placeholders of x, deepest first, and returns
// the depth after x consumed them.
func (e *eliminator) pops(x ast.Expr, d int) int {
	if x == nil {
		return d
	}
	var pops []*ast.PopValue
	ast.Inspect(x, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.PopValue:
			pops = append(pops, n)
		case *ast.DupValue:
			e.slots[n] = d - 1
		case *ast.AnonymousDelegate:
			return false
		}
		return true
	})
	base := d - len(pops)
	if base < 0 {
		base = 0
	}
	for i, p := range pops {
		e.slots[p] = base + i
	}
	return base
}

func jumps(b *ast.Block) bool {
	if len(b.Stmts) == 0 {
		return false
	}
	switch b.Stmts[len(b.Stmts)-1].(type) {
	case *ast.Goto, *ast.Return, *ast.Throw, *ast.Break, *ast.Continue, *ast.YieldBreak:
		return true
	}
	return false
}

// ----------------------------------------------------------------------------
// Temporaries

func classOf(t types.Type) types.StackClass {
	if t == nil {
		return types.ClassRef
	}
	return types.ClassOf(types.DefaultType(t))
}

// allocate creates the temporaries the pushes write. A slot that sees
// booleans and nothing but 0/1 integer constants besides holds a boolean.
func (e *eliminator) allocate() {
	slots := make([]int, 0, len(e.pushed))
	for s := range e.pushed {
		slots = append(slots, s)
	}
	sort.Ints(slots)

	for _, slot := range slots {
		pushes := e.pushed[slot]
		hasBool, hasInt, boolish := false, false, true
		for _, p := range pushes {
			switch {
			case types.IsBoolean(p.X.Type()):
				hasBool = true
			case ast.IsConst(p.X, 0) || ast.IsConst(p.X, 1):
				hasInt = true
			default:
				boolish = false
			}
		}
		if hasBool && hasInt && boolish {
			e.merged[slot] = true
			for _, p := range pushes {
				if !types.IsBoolean(p.X.Type()) {
					v, _ := ast.BoolValue(p.X)
					p.X = e.a.Bool(v)
				}
			}
		}

		byClass := make(map[types.StackClass][]types.Type)
		var classes []types.StackClass
		for _, p := range pushes {
			c := classOf(p.X.Type())
			if _, ok := byClass[c]; !ok {
				classes = append(classes, c)
			}
			byClass[c] = append(byClass[c], p.X.Type())
		}
		sort.Slice(classes, func(i, j int) bool { return classes[i] < classes[j] })
		for _, c := range classes {
			e.newTemp(tempKey{slot, c}, unify(byClass[c]))
		}
	}
}

// unify returns the type of a temporary holding values of the given
// types.
func unify(ts []types.Type) types.Type {
	var t types.Type
	for _, u := range ts {
		if u == nil || types.IsNull(u) {
			continue
		}
		u = types.DefaultType(u)
		switch {
		case t == nil:
			t = u
		case !types.Identical(t, u):
			if types.IsReference(t) {
				return types.Typ[types.Object]
			}
			return t
		}
	}
	if t == nil {
		return types.Typ[types.Object]
	}
	return t
}

func (e *eliminator) newTemp(k tempKey, t types.Type) *ast.Local {
	l := e.ctx.NewTemp(fmt.Sprintf("stack_%d_%s", k.slot, k.class), t)
	e.temps[k] = l
	e.order = append(e.order, l)
	return l
}

// tempFor returns the temporary a read of type t at slot uses. Reads whose
// class no push at the slot produced fall back to the only temporary of
// the slot.
func (e *eliminator) tempFor(slot int, t types.Type) *ast.Local {
	c := classOf(t)
	if e.merged[slot] && (c == types.ClassBool || c == types.ClassI4) {
		c = types.ClassBool
	}
	if l := e.temps[tempKey{slot, c}]; l != nil {
		return l
	}
	var only *ast.Local
	n := 0
	for k, l := range e.temps {
		if k.slot == slot {
			only = l
			n++
		}
	}
	if n == 1 {
		return only
	}
	return e.newTemp(tempKey{slot, c}, unify([]types.Type{t}))
}

func (e *eliminator) replace() {
	ast.Inspect(e.ctx.Root, func(n ast.Node) bool {
		b, ok := n.(*ast.Block)
		if !ok {
			return true
		}
		out := b.Stmts[:0]
		for _, s := range b.Stmts {
			switch s := s.(type) {
			case *ast.ExprStmt:
				// A discarded stack value needs no statement.
				if _, ok := s.X.(*ast.PopValue); ok {
					continue
				}
			case *ast.Push:
				if slot, ok := e.slots[s]; ok {
					l := e.tempFor(slot, s.X.Type())
					as := ast.New(e.a, &ast.Assign{Target: e.a.Ref(l), Value: s.X})
					as.SetType(l.Type)
					out = append(out, ast.New(e.a, &ast.ExprStmt{X: as}))
					continue
				}
			}
			out = append(out, s)
		}
		b.Stmts = out
		return true
	})
	ast.Rewrite(e.ctx.Root, func(x ast.Expr) ast.Expr {
		switch x.(type) {
		case *ast.PopValue, *ast.DupValue:
			if slot, ok := e.slots[x]; ok {
				return e.a.Ref(e.tempFor(slot, x.Type()))
			}
		}
		return x
	})

	decls := make([]ast.Stmt, 0, len(e.order)+len(e.ctx.Root.Stmts))
	for _, l := range e.order {
		decls = append(decls, ast.New(e.a, &ast.LocalDecl{Local: l}))
	}
	e.ctx.Root.Stmts = append(decls, e.ctx.Root.Stmts...)
}
