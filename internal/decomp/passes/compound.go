package passes

import (
	"strings"

	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
	"github.com/you-not-fish/destack/internal/types"
)

// compoundRule rewrites read-modify-write sequences as compound
// assignments: x = x op y becomes x op= y, statement-level x += 1 becomes
// x++, and the getter/setter pairs of a property update become one
// property access.
func compoundRule(ctx *decomp.Context, b *ast.Block) bool {
	for i := 0; i+2 < len(b.Stmts); i++ {
		if viaDup(ctx, b, i) {
			return true
		}
	}

	changed := false
	for _, s := range b.Stmts {
		head, set := decomp.Head(s)
		if head == nil {
			continue
		}
		e := ast.RewriteExpr(head, func(e ast.Expr) ast.Expr {
			if r := opAssign(ctx, e); r != nil {
				changed = true
				return r
			}
			return e
		})
		if e != head {
			set(e)
		}
		if es, ok := s.(*ast.ExprStmt); ok {
			if r := setterUpdate(ctx, es.X); r != nil {
				es.X = r
				changed = true
			}
			if o, ok := es.X.(*ast.OpAssign); ok && !o.Postfix && (o.Op == ast.Add || o.Op == ast.Sub) && ast.IsConst(o.Value, 1) {
				o.Postfix = true
				changed = true
			}
		}
	}
	return changed
}

var updateOps = map[ast.BinaryOp]bool{
	ast.Add: true, ast.Sub: true, ast.Mul: true, ast.Div: true, ast.Rem: true,
	ast.And: true, ast.Or: true, ast.Xor: true, ast.Shl: true, ast.Shr: true,
}

// update matches X op Y, possibly converted back to t, and returns the
// binary operation.
func update(t types.Type, value ast.Expr) *ast.Binary {
	if c, ok := value.(*ast.Conv); ok && !c.Checked && t != nil && types.Identical(c.To, t) {
		value = c.X
	}
	bin, ok := value.(*ast.Binary)
	if !ok || bin.Checked || !updateOps[bin.Op] || ast.CountPops(bin.Y) != 0 {
		return nil
	}
	return bin
}

// opAssign turns T = T op Y into T op= Y.
func opAssign(ctx *decomp.Context, e ast.Expr) ast.Expr {
	as, ok := e.(*ast.Assign)
	if !ok || !ast.IsPure(as.Target) {
		return nil
	}
	switch as.Target.(type) {
	case *ast.LocalRef, *ast.ParamRef, *ast.FieldRef, *ast.ArrayIndex, *ast.Deref:
	default:
		return nil
	}
	bin := update(as.Target.Type(), as.Value)
	if bin == nil || !ast.Equal(bin.X, as.Target) {
		return nil
	}
	ctx.Discard(as)
	o := ast.New(ctx.Arena, &ast.OpAssign{Op: bin.Op, Target: as.Target, Value: bin.Y})
	o.SetType(as.Type())
	ctx.Adopt(o)
	return o
}

// viaDup matches the update of a field of a computed instance:
//
//	push X; push dup; pop.f = pop.f op Y;
//	push X; push dup; pop.set_P(pop.get_P() op Y);
func viaDup(ctx *decomp.Context, b *ast.Block, i int) bool {
	p, ok := b.Stmts[i].(*ast.Push)
	if !ok || ast.CountPops(p.X) != 0 || !isDupPush(b.Stmts[i+1]) {
		return false
	}
	es, ok := b.Stmts[i+2].(*ast.ExprStmt)
	if !ok {
		return false
	}
	var repl ast.Expr
	switch x := es.X.(type) {
	case *ast.Assign:
		f, ok := x.Target.(*ast.FieldRef)
		if !ok || !isPop(f.Instance) {
			return false
		}
		bin := update(f.Type(), x.Value)
		if bin == nil {
			return false
		}
		g, ok := bin.X.(*ast.FieldRef)
		if !ok || g.Field != f.Field || !isPop(g.Instance) {
			return false
		}
		f.Instance = p.X
		o := ast.New(ctx.Arena, &ast.OpAssign{Op: bin.Op, Target: f, Value: bin.Y})
		o.SetType(x.Type())
		repl = o
	case *ast.Call:
		if !isPop(x.Recv) {
			return false
		}
		prop, bin := property(ctx.Arena, x)
		if prop == nil || !isPop(prop.Recv) {
			return false
		}
		prop.Recv = p.X
		for _, arg := range x.Args[:len(x.Args)-1] {
			ctx.Discard(arg)
		}
		o := ast.New(ctx.Arena, &ast.OpAssign{Op: bin.Op, Target: prop, Value: bin.Y})
		o.SetType(prop.Type())
		repl = o
	default:
		return false
	}
	es.X = repl
	b.Stmts = splice(b.Stmts, i, i+2)
	return true
}

func isPop(e ast.Expr) bool {
	_, ok := e.(*ast.PopValue)
	return ok
}

// property matches the setter call set_P(args..., get_P(args...) op Y)
// and returns the property built from the getter side.
func property(a *ast.Arena, set *ast.Call) (*ast.PropertyRef, *ast.Binary) {
	if set.Method == nil || !strings.HasPrefix(set.Method.Name(), "set_") || len(set.Args) == 0 {
		return nil, nil
	}
	idx, value := set.Args[:len(set.Args)-1], set.Args[len(set.Args)-1]
	bin := update(value.Type(), value)
	if bin == nil {
		return nil, nil
	}
	get, ok := bin.X.(*ast.Call)
	if !ok || get.Method == nil || get.Method.Name() != "get_"+set.Method.Name()[4:] || len(get.Args) != len(idx) {
		return nil, nil
	}
	for k := range idx {
		if !ast.Equal(get.Args[k], idx[k]) || !ast.IsPure(idx[k]) {
			return nil, nil
		}
	}
	prop := ast.New(a, &ast.PropertyRef{Getter: get.Method, Setter: set.Method, Recv: get.Recv, Args: get.Args})
	prop.SetType(get.Type())
	return prop, bin
}

// setterUpdate turns R.set_P(R.get_P() op Y) into R.P op= Y.
func setterUpdate(ctx *decomp.Context, e ast.Expr) ast.Expr {
	set, ok := e.(*ast.Call)
	if !ok {
		return nil
	}
	prop, bin := property(ctx.Arena, set)
	if prop == nil {
		return nil
	}
	if set.Recv != nil || prop.Recv != nil {
		if set.Recv == nil || prop.Recv == nil || !ast.IsPure(set.Recv) || !ast.Equal(set.Recv, prop.Recv) {
			return nil
		}
	}
	ctx.Discard(set)
	o := ast.New(ctx.Arena, &ast.OpAssign{Op: bin.Op, Target: prop, Value: bin.Y})
	o.SetType(prop.Type())
	prop.Recv, prop.Args = set.Recv, set.Args[:len(set.Args)-1]
	ctx.Adopt(o)
	return o
}
