package closure

import (
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
)

// hoist declares l at the start of the innermost block that contains
// every statement using it. Delegate bodies are not candidates: the
// variable outlives each call of the delegate.
func hoist(ctx *decomp.Context, l *ast.Local) {
	var common []*ast.Block
	seen := false
	visit(ctx.Root, []*ast.Block{ctx.Root}, l, func(path []*ast.Block) {
		if !seen {
			common = append(common, path...)
			seen = true
			return
		}
		n := 0
		for n < len(common) && n < len(path) && common[n] == path[n] {
			n++
		}
		common = common[:n]
	})
	if !seen || len(common) == 0 {
		return
	}
	b := common[len(common)-1]
	decl := ast.New(ctx.Arena, &ast.LocalDecl{Local: l})
	b.Stmts = append([]ast.Stmt{decl}, b.Stmts...)
}

// visit calls use with the block path of every statement of b that
// mentions l outside its nested blocks.
func visit(b *ast.Block, path []*ast.Block, l *ast.Local, use func([]*ast.Block)) {
	for _, s := range b.Stmts {
		if mentions(s, l) {
			use(path)
		}
		for _, c := range ast.Blocks(s) {
			visit(c, append(path[:len(path):len(path)], c), l, use)
		}
	}
}

func mentions(s ast.Stmt, l *ast.Local) bool {
	nested := make(map[*ast.Block]bool)
	for _, b := range ast.Blocks(s) {
		nested[b] = true
	}
	found := false
	ast.Inspect(s, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Block:
			return !nested[n] && !found
		case *ast.LocalRef:
			found = found || n.Local == l
		}
		return !found
	})
	return found
}
