package passes

import (
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
)

// eachBlock applies f to the statement list of every block of the tree.
func eachBlock(ctx *decomp.Context, f func(b *ast.Block) bool) bool {
	changed := false
	for _, b := range blocks(ctx.Root) {
		if f(b) {
			changed = true
		}
	}
	return changed
}

// DeclUnify moves a declaration without initializer onto the first
// statement after it that is not a declaration, when that statement
// assigns the local from an expression not reading it. Locals assigned
// anywhere else keep their separate declaration.
func DeclUnify(ctx *decomp.Context) bool {
	return eachBlock(ctx, func(b *ast.Block) bool {
		changed := false
		for i := 0; i < len(b.Stmts); i++ {
			d, ok := b.Stmts[i].(*ast.LocalDecl)
			if !ok || d.Init != nil {
				continue
			}
			k := i + 1
			for k < len(b.Stmts) {
				if _, ok := b.Stmts[k].(*ast.LocalDecl); !ok {
					break
				}
				k++
			}
			if k == len(b.Stmts) {
				continue
			}
			l, as := localTarget(b.Stmts[k])
			if l != d.Local || reads(as.Value, l) || ctx.Assigns(l) != 1 {
				continue
			}
			d.Init = as.Value
			b.Stmts[k] = d
			b.Stmts = splice(b.Stmts, i, i+1)
			i--
			changed = true
		}
		return changed
	})
}

// SelfAssign removes assignments of a local to itself.
func SelfAssign(ctx *decomp.Context) bool {
	return eachBlock(ctx, func(b *ast.Block) bool {
		changed := false
		for i := 0; i < len(b.Stmts); i++ {
			if l, as := localTarget(b.Stmts[i]); l != nil && localRef(as.Value, l) {
				ctx.Discard(b.Stmts[i])
				b.Stmts = splice(b.Stmts, i, i+1)
				i--
				changed = true
			}
		}
		return changed
	})
}

// DeadLabels removes labels no goto targets.
func DeadLabels(ctx *decomp.Context) bool {
	return eachBlock(ctx, func(b *ast.Block) bool {
		changed := false
		for i := 0; i < len(b.Stmts); i++ {
			if l := labelOf(b.Stmts[i]); l != nil && ctx.Gotos(l) == 0 {
				b.Stmts = splice(b.Stmts, i, i+1)
				i--
				changed = true
			}
		}
		return changed
	})
}

// DeadLocals removes the declarations of locals that are never used.
func DeadLocals(ctx *decomp.Context) bool {
	return eachBlock(ctx, func(b *ast.Block) bool {
		changed := false
		for i := 0; i < len(b.Stmts); i++ {
			if d, ok := b.Stmts[i].(*ast.LocalDecl); ok && d.Init == nil && ctx.Unused(d.Local) {
				b.Stmts = splice(b.Stmts, i, i+1)
				i--
				changed = true
			}
		}
		return changed
	})
}

// Flatten splices nested blocks that carry no meaning of their own into
// their parent: untagged blocks, and scopes that declare nothing. Empty
// statements are dropped.
func Flatten(ctx *decomp.Context) bool {
	return eachBlock(ctx, func(b *ast.Block) bool {
		changed := false
		var out []ast.Stmt
		for _, s := range b.Stmts {
			switch s := s.(type) {
			case *ast.Empty:
				changed = true
				continue
			case *ast.Block:
				if s.Kind == ast.PlainBlock && (!s.LexicalScope || !declares(s)) {
					out = append(out, s.Stmts...)
					changed = true
					continue
				}
			}
			out = append(out, s)
		}
		b.Stmts = out
		return changed
	})
}

func declares(b *ast.Block) bool {
	for _, s := range b.Stmts {
		if _, ok := s.(*ast.LocalDecl); ok {
			return true
		}
	}
	return false
}
