package passes

import (
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
	"github.com/you-not-fish/destack/internal/il"
)

// ifThenRule turns a conditional jump over a run of statements into an if
// statement:
//
//	if (c) goto L; S; L:   =>   if (!c) { S } L:
func ifThenRule(ctx *decomp.Context, b *ast.Block) bool {
	for i, s := range b.Stmts {
		f, g := ifGoto(s)
		if f == nil {
			continue
		}
		li := findLabel(b.Stmts[i+1:], g.Label)
		if li <= 0 {
			continue
		}
		li += i + 1
		body := b.Stmts[i+1 : li]
		if !nestable(ctx, b, i, body) {
			continue
		}
		ctx.Discard(g)
		f.Cond = ast.Invert(ctx.Arena, f.Cond)
		f.Then.Stmts = append([]ast.Stmt(nil), body...)
		end := li
		if ctx.Gotos(g.Label) == 0 {
			end++
		}
		b.Stmts = splice(b.Stmts, i+1, end)
		return true
	}
	return false
}

// ifElseRule adds the else branch to an if whose then branch ends by
// jumping over the statements that follow it:
//
//	if (c) { S1; goto L; } S2; L:   =>   if (c) { S1 } else { S2 } L:
func ifElseRule(ctx *decomp.Context, b *ast.Block) bool {
	for i, s := range b.Stmts {
		f, ok := s.(*ast.If)
		if !ok || f.Else != nil || len(f.Then.Stmts) < 2 {
			continue
		}
		g, ok := f.Then.Stmts[len(f.Then.Stmts)-1].(*ast.Goto)
		if !ok {
			continue
		}
		li := findLabel(b.Stmts[i+1:], g.Label)
		if li <= 0 {
			continue
		}
		li += i + 1
		body := b.Stmts[i+1 : li]
		if !nestable(ctx, b, i, body) {
			continue
		}
		ctx.Discard(g)
		f.Then.Stmts = f.Then.Stmts[:len(f.Then.Stmts)-1]
		f.Else = ctx.Arena.Block(0, 0, append([]ast.Stmt(nil), body...)...)
		end := li
		if ctx.Gotos(g.Label) == 0 {
			end++
		}
		b.Stmts = splice(b.Stmts, i+1, end)
		return true
	}
	return false
}

// nestable reports whether the statements following b.Stmts[i] may move
// into a branch of it. Runs that jump back to a label at or before i stay
// in place for the loop rule.
func nestable(ctx *decomp.Context, b *ast.Block, i int, stmts []ast.Stmt) bool {
	if !movable(ctx, stmts) {
		return false
	}
	before := make(map[*ast.Label]bool)
	for _, s := range b.Stmts[:i+1] {
		if l := labelOf(s); l != nil {
			before[l] = true
		}
	}
	if len(before) == 0 || !ctx.Flags.Has(il.Loops) {
		return true
	}
	back := false
	for _, s := range stmts {
		ast.Inspect(s, func(n ast.Node) bool {
			if g, ok := n.(*ast.Goto); ok && before[g.Label] {
				back = true
			}
			return !back
		})
	}
	return !back
}
