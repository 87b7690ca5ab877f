package passes

import (
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
)

// loopRule reconstructs loops from backward jumps:
//
//	goto C; B: S; C: if (c) goto B;   =>   while (c) { S }
//	B: S; if (c) goto B;              =>   do { S } while (c);
//	B: S; goto B;                     =>   while (true) { S }
//
// Closing jumps are tried in statement order so that inner loops are
// built first. Inside the body, jumps to the loop condition become
// continue and jumps to the labels right after the loop become break.
func loopRule(ctx *decomp.Context, b *ast.Block) bool {
	for j, s := range b.Stmts {
		var back *ast.Goto
		var cond ast.Expr
		if f, g := ifGoto(s); f != nil {
			back, cond = g, f.Cond
		} else if g, ok := s.(*ast.Goto); ok {
			back = g
		}
		if back == nil || cond != nil && ast.CountPops(cond) != 0 {
			continue
		}
		bi := findLabel(b.Stmts[:j], back.Label)
		if bi < 0 {
			continue
		}
		if buildLoop(ctx, b, bi, j, back, cond) {
			return true
		}
	}
	return false
}

func buildLoop(ctx *decomp.Context, b *ast.Block, bi, j int, back *ast.Goto, cond ast.Expr) bool {
	a := ctx.Arena
	top := back.Label
	brk := following(b.Stmts, j+1)

	// while: the loop is entered by a jump to the condition.
	if cond != nil && bi > 0 && j-1 > bi {
		entry, ok := b.Stmts[bi-1].(*ast.Goto)
		if ok && labelOf(b.Stmts[j-1]) == entry.Label {
			c := entry.Label
			body := b.Stmts[bi+1 : j-1]
			if ctx.Gotos(top) != 1 || !movable(ctx, body) {
				return false
			}
			ctx.Discard(entry)
			ctx.Discard(back)
			blk := a.Block(0, 0, append([]ast.Stmt(nil), body...)...)
			jumpsToLoop(ctx, blk, map[*ast.Label]bool{c: true}, brk)
			w := ast.New(a, &ast.While{Cond: cond, Body: blk})
			repl := entryLabels(ctx, a, w, c, top)
			b.Stmts = splice(b.Stmts, bi-1, j+1, repl...)
			forLoop(ctx, b, bi-1+len(repl)-1)
			return true
		}
	}

	body := b.Stmts[bi+1 : j]
	if !movable(ctx, body) {
		return false
	}
	if cond != nil {
		if jumpsTo(body, top) {
			return false
		}
		ctx.Discard(back)
		blk := a.Block(0, 0, append([]ast.Stmt(nil), body...)...)
		// Labels ending the body stand for the condition.
		cont := make(map[*ast.Label]bool)
		for k := len(blk.Stmts) - 1; k >= 0 && labelOf(blk.Stmts[k]) != nil; k-- {
			cont[labelOf(blk.Stmts[k])] = true
		}
		jumpsToLoop(ctx, blk, cont, brk)
		d := ast.New(a, &ast.DoWhile{Body: blk, Cond: cond})
		b.Stmts = splice(b.Stmts, bi, j+1, entryLabels(ctx, a, d, top)...)
		return true
	}

	ctx.Discard(back)
	blk := a.Block(0, 0, append([]ast.Stmt(nil), body...)...)
	jumpsToLoop(ctx, blk, map[*ast.Label]bool{top: true}, brk)
	w := ast.New(a, &ast.While{Cond: a.Bool(true), Body: blk})
	b.Stmts = splice(b.Stmts, bi, j+1, entryLabels(ctx, a, w, top)...)
	return true
}

// entryLabels returns loop preceded by those of labels that are still
// jumped to from outside of it.
func entryLabels(ctx *decomp.Context, a *ast.Arena, loop ast.Stmt, labels ...*ast.Label) []ast.Stmt {
	var out []ast.Stmt
	for _, l := range labels {
		if ctx.Gotos(l) > 0 {
			out = append(out, ast.New(a, &ast.LabelStmt{Label: l}))
		}
	}
	return append(out, loop)
}

// jumpsTo reports whether stmts contain a goto to l.
func jumpsTo(stmts []ast.Stmt, l *ast.Label) bool {
	found := false
	for _, s := range stmts {
		ast.Inspect(s, func(n ast.Node) bool {
			if g, ok := n.(*ast.Goto); ok && g.Label == l {
				found = true
			}
			return !found
		})
	}
	return found
}

// jumpsToLoop replaces the gotos of a loop body that continue or leave
// the loop.
func jumpsToLoop(ctx *decomp.Context, b *ast.Block, cont, brk map[*ast.Label]bool) {
	loopGotos(b, cont, brk, func(blk *ast.Block, i int, g *ast.Goto, isCont bool) {
		ctx.Discard(g)
		if isCont {
			blk.Stmts[i] = ast.New(ctx.Arena, &ast.Continue{})
		} else {
			blk.Stmts[i] = ast.New(ctx.Arena, &ast.Break{})
		}
	})
}

// loopGotos calls f for each goto of b to a label of cont or brk that
// binds to the loop b is the body of. Nested loops are skipped, and a
// switch binds break itself.
func loopGotos(b *ast.Block, cont, brk map[*ast.Label]bool, f func(*ast.Block, int, *ast.Goto, bool)) {
	if b == nil {
		return
	}
	for i, s := range b.Stmts {
		switch s := s.(type) {
		case *ast.Goto:
			switch {
			case cont[s.Label]:
				f(b, i, s, true)
			case brk[s.Label]:
				f(b, i, s, false)
			}
		case *ast.Switch:
			for _, c := range s.Cases {
				loopGotos(c.Body, cont, nil, f)
			}
		case *ast.While, *ast.DoWhile, *ast.For:
		case *ast.Try:
			loopGotos(s.Body, cont, brk, f)
			for _, c := range s.Catches {
				loopGotos(c.Body, cont, brk, f)
			}
		default:
			for _, c := range ast.Blocks(s) {
				loopGotos(c, cont, brk, f)
			}
		}
	}
}

// hasContinue reports whether b contains a continue of the loop it is the
// body of.
func hasContinue(b *ast.Block) bool {
	if b == nil {
		return false
	}
	for _, s := range b.Stmts {
		switch s := s.(type) {
		case *ast.Continue:
			return true
		case *ast.While, *ast.DoWhile, *ast.For:
		case *ast.Switch:
			for _, c := range s.Cases {
				if hasContinue(c.Body) {
					return true
				}
			}
		default:
			for _, c := range ast.Blocks(s) {
				if hasContinue(c) {
					return true
				}
			}
		}
	}
	return false
}

// forLoop turns the while loop at b.Stmts[wi] into a for loop when it is
// preceded by the initialization of the variable its last statement
// updates and its condition tests:
//
//	i = 0; while (i < n) { S; P: i++; }   =>   for (i = 0; i < n; i++) { S }
//
// Jumps to labels in front of the update become continue.
func forLoop(ctx *decomp.Context, b *ast.Block, wi int) {
	if wi < 1 || wi >= len(b.Stmts) {
		return
	}
	w, ok := b.Stmts[wi].(*ast.While)
	if !ok || len(w.Body.Stmts) == 0 || hasContinue(w.Body) {
		return
	}
	init := b.Stmts[wi-1]
	var v *ast.Local
	switch s := init.(type) {
	case *ast.LocalDecl:
		if s.Init != nil {
			v = s.Local
		}
	case *ast.ExprStmt:
		v, _ = localTarget(s)
	}
	if v == nil || !reads(w.Cond, v) {
		return
	}
	n := len(w.Body.Stmts)
	post, ok := w.Body.Stmts[n-1].(*ast.ExprStmt)
	if !ok || !updates(post.X, v) {
		return
	}
	k := n - 1
	cont := make(map[*ast.Label]bool)
	for ; k > 0 && labelOf(w.Body.Stmts[k-1]) != nil; k-- {
		cont[labelOf(w.Body.Stmts[k-1])] = true
	}
	body := ctx.Arena.Block(0, 0, w.Body.Stmts[:k]...)
	n = 0
	loopGotos(body, cont, nil, func(*ast.Block, int, *ast.Goto, bool) { n++ })
	for l := range cont {
		n -= ctx.Gotos(l)
	}
	if n != 0 {
		return
	}
	jumpsToLoop(ctx, body, cont, nil)
	f := ast.New(ctx.Arena, &ast.For{Init: init, Cond: w.Cond, Post: post, Body: body})
	b.Stmts = splice(b.Stmts, wi-1, wi+1, f)
}

// updates reports whether x assigns v.
func updates(x ast.Expr, v *ast.Local) bool {
	switch x := x.(type) {
	case *ast.Assign:
		return localRef(x.Target, v)
	case *ast.OpAssign:
		return localRef(x.Target, v)
	}
	return false
}
