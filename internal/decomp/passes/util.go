package passes

import (
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
)

// blocks lists root and every block nested in it, innermost first.
func blocks(root *ast.Block) []*ast.Block {
	var out []*ast.Block
	if root != nil {
		ast.ForEachBlock(root, func(b *ast.Block) { out = append(out, b) })
	}
	return out
}

// ifGoto matches if (c) { goto L; } without an else branch.
func ifGoto(s ast.Stmt) (*ast.If, *ast.Goto) {
	f, ok := s.(*ast.If)
	if !ok || f.Else != nil || f.Then == nil || len(f.Then.Stmts) != 1 {
		return nil, nil
	}
	g, ok := f.Then.Stmts[0].(*ast.Goto)
	if !ok {
		return nil, nil
	}
	return f, g
}

func labelOf(s ast.Stmt) *ast.Label {
	if l, ok := s.(*ast.LabelStmt); ok {
		return l.Label
	}
	return nil
}

// findLabel returns the index of the definition of l in stmts, or -1.
func findLabel(stmts []ast.Stmt, l *ast.Label) int {
	for i, s := range stmts {
		if labelOf(s) == l {
			return i
		}
	}
	return -1
}

// splice replaces stmts[i:j] by repl.
func splice(stmts []ast.Stmt, i, j int, repl ...ast.Stmt) []ast.Stmt {
	out := make([]ast.Stmt, 0, len(stmts)-(j-i)+len(repl))
	out = append(out, stmts[:i]...)
	out = append(out, repl...)
	return append(out, stmts[j:]...)
}

// jumps reports whether control never falls through s.
func jumps(s ast.Stmt) bool {
	switch s.(type) {
	case *ast.Goto, *ast.Return, *ast.Throw, *ast.Break, *ast.Continue, *ast.EndFinally, *ast.YieldBreak:
		return true
	}
	return false
}

func endsInJump(b *ast.Block) bool {
	return b != nil && len(b.Stmts) > 0 && jumps(b.Stmts[len(b.Stmts)-1])
}

// movable reports whether stmts may be moved into a nested block: they
// neither push nor pop operand stack values and every label they define is
// only reached from within them.
func movable(ctx *decomp.Context, stmts []ast.Stmt) bool {
	inside := make(map[*ast.Goto]bool)
	var labels []*ast.Label
	ok := true
	for _, s := range stmts {
		ast.Inspect(s, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.Push, *ast.PopValue, *ast.DupValue:
				ok = false
			case *ast.Goto:
				inside[n] = true
			case *ast.LabelStmt:
				labels = append(labels, n.Label)
			case *ast.AnonymousDelegate:
				return false
			}
			return ok
		})
	}
	if !ok {
		return false
	}
	for _, l := range labels {
		for _, g := range ctx.GotosTo(l) {
			if !inside[g] {
				return false
			}
		}
	}
	return true
}

// removeDecl deletes the declaration of l without initializer from the
// tree.
func removeDecl(ctx *decomp.Context, l *ast.Local) bool {
	removed := false
	ast.ForEachBlock(ctx.Root, func(b *ast.Block) {
		for i, s := range b.Stmts {
			if d, ok := s.(*ast.LocalDecl); ok && d.Local == l && d.Init == nil {
				b.Stmts = splice(b.Stmts, i, i+1)
				removed = true
				return
			}
		}
	})
	return removed
}

// localTarget returns the local s assigns in the form l = X.
func localTarget(s ast.Stmt) (*ast.Local, *ast.Assign) {
	es, ok := s.(*ast.ExprStmt)
	if !ok {
		return nil, nil
	}
	as, ok := es.X.(*ast.Assign)
	if !ok {
		return nil, nil
	}
	r, ok := as.Target.(*ast.LocalRef)
	if !ok {
		return nil, nil
	}
	return r.Local, as
}

// localRef reports whether e reads l.
func localRef(e ast.Expr, l *ast.Local) bool {
	r, ok := e.(*ast.LocalRef)
	return ok && r.Local == l
}

// reads reports whether n reads l anywhere.
func reads(n ast.Node, l *ast.Local) bool {
	found := false
	targets := make(map[*ast.LocalRef]bool)
	ast.Inspect(n, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Assign:
			if r, ok := n.Target.(*ast.LocalRef); ok {
				targets[r] = true
			}
		case *ast.LocalRef:
			if n.Local == l && !targets[n] {
				found = true
			}
		}
		return !found
	})
	return found
}

// callTo returns the call s evaluates for its side effects, or nil.
func callTo(s ast.Stmt) *ast.Call {
	es, ok := s.(*ast.ExprStmt)
	if !ok {
		return nil
	}
	c, _ := es.X.(*ast.Call)
	return c
}
