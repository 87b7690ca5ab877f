package passes

import (
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
	"github.com/you-not-fish/destack/internal/types"
)

// ternaryRule recognizes the two arms of a conditional expression:
//
//	if (c) goto L1; push F; goto L2; L1: push T; L2:
//
// becomes push (c ? T : F).
func ternaryRule(ctx *decomp.Context, b *ast.Block) bool {
	for i := 0; i+5 < len(b.Stmts); i++ {
		f, g1 := ifGoto(b.Stmts[i])
		if f == nil {
			continue
		}
		pf, ok := b.Stmts[i+1].(*ast.Push)
		if !ok {
			continue
		}
		g2, ok := b.Stmts[i+2].(*ast.Goto)
		if !ok || labelOf(b.Stmts[i+3]) != g1.Label || ctx.Gotos(g1.Label) != 1 {
			continue
		}
		pt, ok := b.Stmts[i+4].(*ast.Push)
		if !ok || labelOf(b.Stmts[i+5]) != g2.Label {
			continue
		}
		if ast.CountPops(pt.X) != 0 || ast.CountPops(pf.X) != 0 {
			continue
		}

		c := ast.New(ctx.Arena, &ast.Cond{C: f.Cond, T: pt.X, F: pf.X})
		c.SetType(condType(pt.X, pf.X))
		ctx.Discard(g1)
		ctx.Discard(g2)
		end := i + 5
		if ctx.Gotos(g2.Label) == 0 {
			end++
		}
		b.Stmts = splice(b.Stmts, i, end, ast.New(ctx.Arena, &ast.Push{X: c}))
		return true
	}
	return false
}

// condType is the type of a conditional expression choosing between x and
// y. Untyped constants take the type of the other arm.
func condType(x, y ast.Expr) types.Type {
	tx, ty := x.Type(), y.Type()
	switch {
	case tx == nil:
		return ty
	case ty == nil:
		return tx
	case types.IsUntyped(tx) && !types.IsUntyped(ty):
		return ty
	case types.IsBoolean(ty) && !types.IsBoolean(tx):
		if _, ok := ast.BoolValue(x); ok {
			return ty
		}
	}
	return tx
}
