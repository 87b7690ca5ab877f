package decomp

import (
	"fmt"
	"strings"

	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/il"
)

// region is an offset range the block tree must represent by one node.
type region struct {
	start, end int
	kind       ast.BlockKind
	scope      bool
}

func (r region) String() string {
	k := r.kind.String()
	if r.scope {
		k = "scope"
	}
	return fmt.Sprintf("%s [IL_%04x, IL_%04x)", k, r.start, r.end)
}

// regions lists the exception regions outer first, followed by the
// lexical scopes.
func regions(body *il.Body) []region {
	body.SortHandlers()
	var out []region
	for _, h := range body.Handlers {
		out = append(out, region{start: h.TryStart, end: h.TryEnd, kind: ast.TryBlock})
		if h.Kind == il.Filter {
			out = append(out, region{start: h.FilterStart, end: h.HandlerStart, kind: ast.FilterBlock})
		}
		out = append(out, region{start: h.HandlerStart, end: h.HandlerEnd, kind: ast.HandlerBlock})
	}
	for _, s := range body.Scopes {
		if s.Start < s.End {
			out = append(out, region{start: s.Start, end: s.End, scope: true})
		}
	}
	return out
}

// Structure builds the block tree of ctx.Body: one leaf per run of basic
// blocks, nested so that every exception region and lexical scope is
// exactly one node. The tree is stored in ctx.Root.
func Structure(ctx *Context) error {
	a := ctx.Arena
	root := a.Block(0, ctx.Body.CodeSize())
	for _, b := range ctx.Graph.Blocks {
		leaf := a.Block(b.Start, b.End)
		leaf.Seeds = []int{b.Start}
		root.Stmts = append(root.Stmts, leaf)
	}

	s := &structurer{ctx: ctx}
	for _, r := range regions(ctx.Body) {
		if err := s.insert(root, r); err != nil {
			return err
		}
	}
	root = s.finish(root)
	ctx.Root = root
	return nil
}

type structurer struct {
	ctx *Context
}

func isLeaf(b *ast.Block) bool {
	return b.Seeds != nil
}

func children(b *ast.Block) []*ast.Block {
	out := make([]*ast.Block, 0, len(b.Stmts))
	for _, s := range b.Stmts {
		if c, ok := s.(*ast.Block); ok {
			out = append(out, c)
		}
	}
	return out
}

// tag marks b as representing r.
func tag(b *ast.Block, r region) error {
	if r.scope {
		b.LexicalScope = true
		return nil
	}
	if b.Kind != ast.PlainBlock && b.Kind != r.kind {
		return fmt.Errorf("%w: %s and %s share a range", ErrBadNesting, b.Kind, r)
	}
	b.Kind = r.kind
	return nil
}

// insert makes r a node of the tree under parent.
func (s *structurer) insert(parent *ast.Block, r region) error {
	if parent.Start == r.start && parent.End == r.end {
		return tag(parent, r)
	}
	for _, c := range children(parent) {
		if c.Start == r.start && c.End == r.end {
			return tag(c, r)
		}
		if c.Contains(r.start, r.end) && !isLeaf(c) {
			return s.insert(c, r)
		}
	}
	if isLeaf(parent) {
		// A leaf is split along basic block boundaries only; regions
		// always start and end at block leaders.
		return s.ctx.Errorf(ErrBadNesting, "%s splits a basic block", r)
	}

	var before, within, after []ast.Stmt
	for _, st := range parent.Stmts {
		c := st.(*ast.Block)
		switch {
		case c.End <= r.start:
			before = append(before, c)
		case c.Start >= r.end:
			after = append(after, c)
		case c.Start >= r.start && c.End <= r.end:
			within = append(within, c)
		default:
			// c straddles a boundary of r.
			parts, err := s.split(c, r)
			if err != nil {
				return err
			}
			for _, p := range parts {
				switch {
				case p.End <= r.start:
					before = append(before, p)
				case p.Start >= r.end:
					after = append(after, p)
				default:
					within = append(within, p)
				}
			}
		}
	}
	n := s.ctx.Arena.Block(r.start, r.end, within...)
	if err := tag(n, r); err != nil {
		return err
	}
	stmts := append(before, n)
	parent.Stmts = append(stmts, after...)
	return nil
}

// split cuts c at the boundaries of r that fall strictly inside it. Only
// lexical scopes and untagged blocks may be cut; cutting an exception
// region means the input does not nest.
func (s *structurer) split(c *ast.Block, r region) ([]*ast.Block, error) {
	var cuts []int
	for _, at := range []int{r.start, r.end} {
		if c.Start < at && at < c.End {
			cuts = append(cuts, at)
		}
	}
	parts := []*ast.Block{c}
	for _, at := range cuts {
		last := parts[len(parts)-1]
		left, right, err := s.cut(last, at)
		if err != nil {
			return nil, err
		}
		parts = append(parts[:len(parts)-1], left, right)
	}
	return parts, nil
}

func (s *structurer) cut(b *ast.Block, at int) (*ast.Block, *ast.Block, error) {
	if b.Kind != ast.PlainBlock {
		return nil, nil, s.ctx.Errorf(ErrBadNesting, "%s region [IL_%04x, IL_%04x) straddles IL_%04x",
			b.Kind, b.Start, b.End, at)
	}
	a := s.ctx.Arena
	left := a.Block(b.Start, at)
	right := a.Block(at, b.End)
	left.LexicalScope, right.LexicalScope = b.LexicalScope, b.LexicalScope
	if isLeaf(b) {
		for _, seed := range b.Seeds {
			if seed < at {
				left.Seeds = append(left.Seeds, seed)
			} else {
				right.Seeds = append(right.Seeds, seed)
			}
		}
		if len(left.Seeds) == 0 || len(right.Seeds) == 0 {
			return nil, nil, s.ctx.Errorf(ErrBadNesting, "IL_%04x is not a block boundary", at)
		}
		return left, right, nil
	}
	for _, c := range children(b) {
		switch {
		case c.End <= at:
			left.Stmts = append(left.Stmts, c)
		case c.Start >= at:
			right.Stmts = append(right.Stmts, c)
		default:
			l, r, err := s.cut(c, at)
			if err != nil {
				return nil, nil, err
			}
			left.Stmts = append(left.Stmts, l)
			right.Stmts = append(right.Stmts, r)
		}
	}
	return left, right, nil
}

// finish merges adjacent untagged leaves into one leaf and collapses
// single-child composites.
func (s *structurer) finish(b *ast.Block) *ast.Block {
	if isLeaf(b) {
		return b
	}
	var out []ast.Stmt
	var run *ast.Block
	for _, c := range children(b) {
		c = s.finish(c)
		if isLeaf(c) && c.Kind == ast.PlainBlock && !c.LexicalScope {
			if run != nil {
				run.End = c.End
				run.Seeds = append(run.Seeds, c.Seeds...)
				continue
			}
			run = c
		} else {
			run = nil
		}
		out = append(out, c)
	}
	b.Stmts = out
	if len(out) != 1 {
		return b
	}
	c := out[0].(*ast.Block)
	if b.Kind != ast.PlainBlock && c.Kind != ast.PlainBlock {
		return b
	}
	// The only child covers b exactly.
	if c.Kind == ast.PlainBlock {
		c.Kind = b.Kind
	}
	c.LexicalScope = c.LexicalScope || b.LexicalScope
	c.Start, c.End = b.Start, b.End
	return c
}

// CheckStructure verifies the postcondition of Structure: children are
// ordered, disjoint and cover their parent, and every exception region and
// lexical scope of the body is represented by a node with its exact range.
func CheckStructure(root *ast.Block, body *il.Body) error {
	var errs []string
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	type key struct{ start, end int }
	kinds := make(map[key][]*ast.Block)
	var check func(b *ast.Block)
	check = func(b *ast.Block) {
		kinds[key{b.Start, b.End}] = append(kinds[key{b.Start, b.End}], b)
		if isLeaf(b) {
			return
		}
		pos := b.Start
		for _, c := range children(b) {
			if c.Start != pos {
				add("block [IL_%04x, IL_%04x): child starts at IL_%04x, want IL_%04x", b.Start, b.End, c.Start, pos)
			}
			pos = c.End
			check(c)
		}
		if pos != b.End {
			add("block [IL_%04x, IL_%04x): children end at IL_%04x", b.Start, b.End, pos)
		}
	}
	check(root)

	for _, r := range regions(body) {
		found := false
		for _, b := range kinds[key{r.start, r.end}] {
			if r.scope && b.LexicalScope || !r.scope && b.Kind == r.kind {
				found = true
			}
		}
		if !found {
			add("%s has no block", r)
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("block structure invalid:\n  %s", strings.Join(errs, "\n  "))
}
