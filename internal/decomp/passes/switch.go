package passes

import (
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
)

// switchRule completes the jump tables emitted for switch: the goto after
// the table becomes the default case, code only reached from one case is
// moved into it, and case bodies jumping past the switch break instead.
func switchRule(ctx *decomp.Context, b *ast.Block) bool {
	for i, s := range b.Stmts {
		sw, ok := s.(*ast.Switch)
		if !ok {
			continue
		}
		if absorbDefault(ctx, b, i, sw) || inlineCases(ctx, b, i, sw) || mergeCases(ctx, sw) {
			return true
		}
		if labels := following(b.Stmts, i+1); labels != nil {
			changed := false
			for _, c := range sw.Cases {
				if trimTail(ctx, c.Body, labels, true) {
					changed = true
				}
			}
			if changed {
				return true
			}
		}
	}
	return false
}

func absorbDefault(ctx *decomp.Context, b *ast.Block, i int, sw *ast.Switch) bool {
	if i+1 >= len(b.Stmts) || len(sw.Cases) == 0 {
		return false
	}
	g, ok := b.Stmts[i+1].(*ast.Goto)
	if !ok {
		return false
	}
	for _, c := range sw.Cases {
		if c.Default {
			return false
		}
	}
	if !endsInJump(sw.Cases[len(sw.Cases)-1].Body) {
		return false
	}
	body := ctx.Arena.Block(0, 0, g)
	sw.Cases = append(sw.Cases, ast.New(ctx.Arena, &ast.Case{Default: true, Body: body}))
	b.Stmts = splice(b.Stmts, i+1, i+2)
	return true
}

// caseTarget returns the label a case body consisting of a single goto
// jumps to.
func caseTarget(c *ast.Case) *ast.Goto {
	if c.Body == nil || len(c.Body.Stmts) != 1 {
		return nil
	}
	g, _ := c.Body.Stmts[0].(*ast.Goto)
	return g
}

// inlineCases moves the code at a label only one case jumps to into the
// case. The code must not be reachable by falling through from above and
// must itself end in a jump.
func inlineCases(ctx *decomp.Context, b *ast.Block, i int, sw *ast.Switch) bool {
	for _, c := range sw.Cases {
		g := caseTarget(c)
		if g == nil || ctx.Gotos(g.Label) != 1 {
			continue
		}
		li := findLabel(b.Stmts, g.Label)
		if li <= i+1 || !jumps(b.Stmts[li-1]) {
			continue
		}
		end := -1
		for k := li + 1; k < len(b.Stmts); k++ {
			if labelOf(b.Stmts[k]) != nil {
				break
			}
			if jumps(b.Stmts[k]) {
				end = k
				break
			}
		}
		if end < 0 || !movable(ctx, b.Stmts[li+1:end+1]) {
			continue
		}
		ctx.Discard(g)
		c.Body.Stmts = append([]ast.Stmt(nil), b.Stmts[li+1:end+1]...)
		b.Stmts = splice(b.Stmts, li, end+1)
		return true
	}
	return false
}

// mergeCases empties the body of a case that jumps where the next case
// jumps, so that it falls through to it.
func mergeCases(ctx *decomp.Context, sw *ast.Switch) bool {
	changed := false
	for k := 0; k+1 < len(sw.Cases); k++ {
		g, next := caseTarget(sw.Cases[k]), caseTarget(sw.Cases[k+1])
		if g != nil && next != nil && g.Label == next.Label {
			ctx.Discard(g)
			sw.Cases[k].Body.Stmts = nil
			changed = true
		}
	}
	return changed
}
