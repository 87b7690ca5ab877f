package passes

import (
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
)

// gotoNextRule removes jumps to the point control reaches anyway: a goto
// that is the last statement executed before one of the labels directly
// following it.
func gotoNextRule(ctx *decomp.Context, b *ast.Block) bool {
	changed := false
	for i := 0; i < len(b.Stmts); i++ {
		labels := following(b.Stmts, i+1)
		if len(labels) == 0 {
			continue
		}
		if g, ok := b.Stmts[i].(*ast.Goto); ok {
			if labels[g.Label] {
				ctx.Discard(g)
				b.Stmts = splice(b.Stmts, i, i+1)
				i--
				changed = true
			}
			continue
		}
		if trimStmt(ctx, b, i, labels, false) {
			changed = true
		}
	}

	// if (c) {} with a pure condition is left behind by the trimming.
	for i := 0; i < len(b.Stmts); i++ {
		f, ok := b.Stmts[i].(*ast.If)
		if ok && len(f.Then.Stmts) == 0 && (f.Else == nil || len(f.Else.Stmts) == 0) && ast.IsPure(f.Cond) {
			ctx.Discard(f)
			b.Stmts = splice(b.Stmts, i, i+1)
			i--
			changed = true
		}
	}
	return changed
}

// following returns the labels defined by the run of label statements
// starting at stmts[i].
func following(stmts []ast.Stmt, i int) map[*ast.Label]bool {
	var set map[*ast.Label]bool
	for ; i < len(stmts); i++ {
		l := labelOf(stmts[i])
		if l == nil {
			break
		}
		if set == nil {
			set = make(map[*ast.Label]bool)
		}
		set[l] = true
	}
	return set
}

// trimTail removes, or turns into break, a goto to one of labels that
// ends b. Labels at the end of b extend the set.
func trimTail(ctx *decomp.Context, b *ast.Block, labels map[*ast.Label]bool, asBreak bool) bool {
	if b == nil || b.Kind != ast.PlainBlock {
		return false
	}
	k := len(b.Stmts) - 1
	if k >= 0 && labelOf(b.Stmts[k]) != nil {
		ext := make(map[*ast.Label]bool, len(labels)+1)
		for l := range labels {
			ext[l] = true
		}
		for ; k >= 0 && labelOf(b.Stmts[k]) != nil; k-- {
			ext[labelOf(b.Stmts[k])] = true
		}
		labels = ext
	}
	if k < 0 {
		return false
	}
	return trimStmt(ctx, b, k, labels, asBreak)
}

func trimStmt(ctx *decomp.Context, b *ast.Block, k int, labels map[*ast.Label]bool, asBreak bool) bool {
	switch s := b.Stmts[k].(type) {
	case *ast.Goto:
		if !labels[s.Label] {
			return false
		}
		ctx.Discard(s)
		if asBreak {
			b.Stmts[k] = ast.New(ctx.Arena, &ast.Break{})
		} else {
			b.Stmts = splice(b.Stmts, k, k+1)
		}
		return true
	case *ast.Block:
		return trimTail(ctx, s, labels, asBreak)
	case *ast.If:
		then := trimTail(ctx, s.Then, labels, asBreak)
		return trimTail(ctx, s.Else, labels, asBreak) || then
	case *ast.Try:
		changed := trimTail(ctx, s.Body, labels, asBreak)
		for _, c := range s.Catches {
			if trimTail(ctx, c.Body, labels, asBreak) {
				changed = true
			}
		}
		return changed
	case *ast.Lock:
		return trimTail(ctx, s.Body, labels, asBreak)
	case *ast.Using:
		return trimTail(ctx, s.Body, labels, asBreak)
	}
	return false
}
