package passes

import (
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
	"github.com/you-not-fish/destack/internal/il"
)

// tryRule turns a protected region and its handler regions into a Try.
func tryRule(ctx *decomp.Context, b *ast.Block) bool {
	for i, s := range b.Stmts {
		body, ok := s.(*ast.Block)
		if !ok || body.Kind != ast.TryBlock {
			continue
		}
		var hs []*il.ExceptionHandler
		for _, h := range ctx.Body.Handlers {
			if h.TryStart == body.Start && h.TryEnd == body.End {
				hs = append(hs, h)
			}
		}
		if len(hs) == 0 {
			continue
		}
		// Locate every handler region first; the rule applies to all of
		// them or to none.
		used := make(map[*ast.Block]bool)
		handler := make(map[*il.ExceptionHandler]*ast.Block)
		filter := make(map[*il.ExceptionHandler]*ast.Block)
		found := true
		for _, h := range hs {
			handler[h] = region(b.Stmts[i+1:], ast.HandlerBlock, h.HandlerStart, h.HandlerEnd)
			if handler[h] == nil {
				found = false
				break
			}
			used[handler[h]] = true
			if h.Kind == il.Filter {
				filter[h] = region(b.Stmts[i+1:], ast.FilterBlock, h.FilterStart, h.HandlerStart)
				if filter[h] == nil {
					found = false
					break
				}
				used[filter[h]] = true
			}
		}
		if !found {
			continue
		}

		body.Kind = ast.PlainBlock
		t := ast.New(ctx.Arena, &ast.Try{Body: body})
		var decls []*ast.Local
		for _, h := range hs {
			hb := handler[h]
			hb.Kind = ast.PlainBlock
			switch h.Kind {
			case il.Catch, il.Filter:
				c := ast.New(ctx.Arena, &ast.Catch{Type: h.CatchType, Body: hb})
				v := exceptionVar(ctx, hb, nil)
				if fb := filter[h]; fb != nil {
					fb.Kind = ast.PlainBlock
					if fv := exceptionVar(ctx, fb, v); v == nil {
						v = fv
					}
					if n := len(fb.Stmts); n > 0 {
						if ef, ok := fb.Stmts[n-1].(*ast.EndFilter); ok {
							c.FilterExpr = ast.Truth(ctx.Arena, ef.X)
							fb.Stmts = fb.Stmts[:n-1]
						}
					}
					c.Filter = fb
				}
				if v != nil {
					c.Var = v
					ctx.AddAssigns(v, 1)
					if !v.Synthetic && ctx.Assigns(v) == 1 {
						decls = append(decls, v)
					}
				}
				t.Catches = append(t.Catches, c)
			case il.Finally:
				t.Finally = endFinally(ctx, hb)
			case il.Fault:
				t.Fault = endFinally(ctx, hb)
			}
		}

		var out []ast.Stmt
		for k, s := range b.Stmts {
			switch {
			case k == i:
				out = append(out, t)
			case k > i && used[blockOf(s)]:
			default:
				out = append(out, s)
			}
		}
		b.Stmts = out
		// The declarations may sit in b itself, so they go only once b
		// holds the Try.
		for _, v := range decls {
			removeDecl(ctx, v)
		}
		return true
	}
	return false
}

func blockOf(s ast.Stmt) *ast.Block {
	b, _ := s.(*ast.Block)
	return b
}

// region finds the region block of the given kind and range in stmts.
func region(stmts []ast.Stmt, kind ast.BlockKind, start, end int) *ast.Block {
	for _, s := range stmts {
		if b, ok := s.(*ast.Block); ok && b.Kind == kind && b.Start == start && b.End == end {
			return b
		}
	}
	return nil
}

// exceptionVar removes the exception from the operand stack at the start
// of a handler or filter block and returns the local that holds it
// instead, or nil when the block discards it. The consumer of the
// exception is found by simulating the stack depth over the leading
// statements; when that fails, the block starts by pushing the variable.
func exceptionVar(ctx *decomp.Context, b *ast.Block, want *ast.Local) *ast.Local {
	a := ctx.Arena
	depth := 1
	for i, s := range b.Stmts {
		if len(ast.Blocks(s)) > 0 || labelOf(s) != nil {
			break
		}
		var first *ast.PopValue
		pops, dup := 0, false
		ast.Inspect(s, func(n ast.Node) bool {
			switch n := n.(type) {
			case *ast.PopValue:
				if first == nil {
					first = n
				}
				pops++
			case *ast.DupValue:
				dup = true
			case *ast.AnonymousDelegate:
				return false
			}
			return true
		})
		if dup && depth-pops <= 1 {
			break
		}
		if pops < depth {
			depth -= pops
			if _, ok := s.(*ast.Push); ok {
				depth++
			}
			continue
		}

		// s consumes the exception with its first placeholder.
		if es, ok := s.(*ast.ExprStmt); ok && es.X == ast.Expr(first) {
			b.Stmts = splice(b.Stmts, i, i+1)
			return want
		}
		if l, as := localTarget(s); l != nil && as.Value == ast.Expr(first) && (want == nil || want == l) {
			b.Stmts = splice(b.Stmts, i, i+1)
			ctx.AddAssigns(l, -1)
			return l
		}
		v := want
		if v == nil {
			v = ctx.NewTemp("ex", first.Type())
		}
		replaceExpr(s, first, a.Ref(v))
		ctx.AddRefs(v, 1)
		return v
	}

	v := want
	if v == nil {
		v = ctx.NewTemp("ex", nil)
		if t := ctx.Graph.BlockAt(b.Start); t != nil && len(t.StackIn) == 1 {
			v.Type = t.StackIn[0]
		}
	}
	ref := a.Ref(v)
	b.Stmts = append([]ast.Stmt{ast.New(a, &ast.Push{X: ref})}, b.Stmts...)
	ctx.AddRefs(v, 1)
	return v
}

// replaceExpr substitutes by for the node old inside s.
func replaceExpr(s ast.Stmt, old, by ast.Expr) {
	ast.Rewrite(s, func(e ast.Expr) ast.Expr {
		if e == old {
			return by
		}
		return e
	})
}

// endFinally drops the endfinally closing a finally or fault block; the
// others become jumps to its end.
func endFinally(ctx *decomp.Context, b *ast.Block) *ast.Block {
	if n := len(b.Stmts); n > 0 {
		if _, ok := b.Stmts[n-1].(*ast.EndFinally); ok {
			b.Stmts = b.Stmts[:n-1]
		}
	}
	var end *ast.Label
	var visit func(*ast.Block)
	visit = func(blk *ast.Block) {
		for i, s := range blk.Stmts {
			switch s := s.(type) {
			case *ast.EndFinally:
				if end == nil {
					end = ctx.NewLabel()
				}
				blk.Stmts[i] = ctx.NewGoto(end)
			case *ast.Try:
				// endfinally of a nested handler belongs to it.
				visit(s.Body)
				for _, c := range s.Catches {
					visit(c.Body)
				}
			default:
				for _, c := range ast.Blocks(s) {
					if c.Kind == ast.PlainBlock {
						visit(c)
					}
				}
			}
		}
	}
	visit(b)
	if end != nil {
		b.Stmts = append(b.Stmts, ast.New(ctx.Arena, &ast.LabelStmt{Label: end}))
	}
	return b
}
