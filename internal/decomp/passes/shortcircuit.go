package passes

import (
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
	"github.com/you-not-fish/destack/internal/types"
)

// shortCircuitRule merges the conditional jumps of && and || and
// simplifies the conditional expressions the ternary rule builds out of
// boolean constants.
func shortCircuitRule(ctx *decomp.Context, b *ast.Block) bool {
	a := ctx.Arena
	for i := 0; i+1 < len(b.Stmts); i++ {
		f1, g1 := ifGoto(b.Stmts[i])
		f2, g2 := ifGoto(b.Stmts[i+1])
		if f1 == nil || f2 == nil || ast.CountPops(f2.Cond) != 0 {
			continue
		}
		// if (c1) goto L; if (c2) goto L;
		if g1.Label == g2.Label {
			f1.Cond = ast.OrElse(a, f1.Cond, f2.Cond)
			ctx.Discard(g2)
			b.Stmts = splice(b.Stmts, i+1, i+2)
			return true
		}
		// if (c1) goto L1; if (c2) goto L2; L1:
		if i+2 < len(b.Stmts) && labelOf(b.Stmts[i+2]) == g1.Label && ctx.Gotos(g1.Label) == 1 {
			f2.Cond = ast.AndAlso(a, ast.Invert(a, f1.Cond), f2.Cond)
			ctx.Discard(g1)
			b.Stmts = splice(b.Stmts, i, i+1)
			b.Stmts = splice(b.Stmts, i+1, i+2)
			return true
		}
	}

	changed := false
	for _, s := range b.Stmts {
		head, set := decomp.Head(s)
		if head == nil {
			continue
		}
		if e := ast.RewriteExpr(head, func(e ast.Expr) ast.Expr {
			if c, ok := e.(*ast.Cond); ok {
				if r := simplifyCond(a, c); r != nil {
					changed = true
					return r
				}
			}
			return e
		}); e != head {
			set(e)
		}
	}
	return changed
}

// simplifyCond rewrites a conditional with a boolean constant arm into
// logical form. It returns nil if c stays as it is.
func simplifyCond(a *ast.Arena, c *ast.Cond) ast.Expr {
	tv, tok := ast.BoolValue(c.T)
	fv, fok := ast.BoolValue(c.F)
	isBool := func(e ast.Expr) bool { return e.Type() != nil && types.IsBoolean(e.Type()) }

	switch {
	case tok && fok:
		if !isBool(c) && !isBool(c.T) && !isBool(c.F) {
			return nil
		}
		switch {
		case tv && !fv:
			return ast.Truth(a, c.C)
		case !tv && fv:
			return ast.Invert(a, c.C)
		}
		return nil

	// A 0/1 arm next to a boolean one is a boolean constant.
	case tok && !isBool(c.T) && isBool(c.F):
		return retyped(a, c, a.Bool(tv), c.F)
	case fok && !isBool(c.F) && isBool(c.T):
		return retyped(a, c, c.T, a.Bool(fv))

	// c ? false : b is !c && b; c ? b : true is !c || b.
	case tok && !tv && isBool(c.T) && isBool(c.F):
		return ast.AndAlso(a, ast.Invert(a, c.C), c.F)
	case fok && fv && isBool(c.F) && isBool(c.T):
		return ast.OrElse(a, ast.Invert(a, c.C), c.T)
	}
	return nil
}

func retyped(a *ast.Arena, c *ast.Cond, t, f ast.Expr) ast.Expr {
	n := ast.New(a, &ast.Cond{C: c.C, T: t, F: f})
	n.SetType(types.Typ[types.Bool])
	return n
}
