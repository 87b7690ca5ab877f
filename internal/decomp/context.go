// Package decomp turns the instruction stream of one method body into a
// statement tree: it nests exception regions and lexical scopes, simulates
// the operand stack, infers types and finally removes the remaining stack
// traffic. The construct-recognition passes that run in between live in
// package passes.
package decomp

import (
	"errors"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/cfg"
	"github.com/you-not-fish/destack/internal/il"
	"github.com/you-not-fish/destack/internal/types"
)

// Errors that make a method body undecompilable.
var (
	ErrStackUnderflow = errors.New("operand stack underflow")
	ErrOperand        = errors.New("unexpected operand")
	ErrBadNesting     = errors.New("exception regions do not nest")
	ErrStack          = cfg.ErrStack
)

// Context holds all per-method state of one decompilation: the input, the
// tree, the arena its IDs come from and the side tables the passes keep
// consistent.
type Context struct {
	Body  *il.Body
	Graph *cfg.Graph
	Arena *ast.Arena
	Flags il.Flags
	Root  *ast.Block

	locals  []*ast.Local // by slot in the local table
	synth   []*ast.Local // decompiler temporaries, in creation order
	labels  map[int]*ast.Label
	gotos   map[ast.ID]map[*ast.Goto]struct{}
	refs    map[ast.ID]int
	assigns map[ast.ID]int
	lastUse *roaring.Bitmap
}

// NewContext prepares a context for body. g must be the CFG of body. A nil
// arena allocates a fresh one; nested bodies (delegate literals) share the
// arena of the method that contains them so that IDs stay unique.
func NewContext(body *il.Body, g *cfg.Graph, arena *ast.Arena, flags il.Flags) *Context {
	if arena == nil {
		arena = ast.NewArena()
	}
	ctx := &Context{
		Body:    body,
		Graph:   g,
		Arena:   arena,
		Flags:   flags,
		labels:  make(map[int]*ast.Label),
		gotos:   make(map[ast.ID]map[*ast.Goto]struct{}),
		refs:    make(map[ast.ID]int),
		assigns: make(map[ast.ID]int),
		lastUse: roaring.New(),
	}
	for _, l := range body.Locals {
		ctx.locals = append(ctx.locals, arena.NewLocal(l.Name, l.Type, l.Index))
	}
	return ctx
}

// Local returns the local in slot i of the local table, or nil.
func (ctx *Context) Local(i int) *ast.Local {
	if i < 0 || i >= len(ctx.locals) {
		return nil
	}
	return ctx.locals[i]
}

// Locals returns every local of the method: the local table followed by
// the temporaries.
func (ctx *Context) Locals() []*ast.Local {
	out := make([]*ast.Local, 0, len(ctx.locals)+len(ctx.synth))
	out = append(out, ctx.locals...)
	return append(out, ctx.synth...)
}

// NewTemp creates a synthesized local.
func (ctx *Context) NewTemp(name string, typ types.Type) *ast.Local {
	l := ctx.Arena.NewLocal(name, typ, -1)
	l.Synthetic = true
	ctx.synth = append(ctx.synth, l)
	return l
}

// Label returns the label of the instruction at offset, creating it on
// first use.
func (ctx *Context) Label(offset int) *ast.Label {
	if l := ctx.labels[offset]; l != nil {
		return l
	}
	l := ctx.Arena.NewLabel(offset)
	ctx.labels[offset] = l
	return l
}

// NewLabel creates a label that names no instruction.
func (ctx *Context) NewLabel() *ast.Label {
	return ctx.Arena.NewLabel(-1)
}

// ----------------------------------------------------------------------------
// Goto registry

// NewGoto creates a goto to l and registers it.
func (ctx *Context) NewGoto(l *ast.Label) *ast.Goto {
	g := ctx.Arena.Goto(l)
	ctx.register(g)
	return g
}

func (ctx *Context) register(g *ast.Goto) {
	set := ctx.gotos[g.Label.ID()]
	if set == nil {
		set = make(map[*ast.Goto]struct{})
		ctx.gotos[g.Label.ID()] = set
	}
	set[g] = struct{}{}
}

func (ctx *Context) unregister(g *ast.Goto) {
	delete(ctx.gotos[g.Label.ID()], g)
}

// Gotos returns the number of live gotos that target l.
func (ctx *Context) Gotos(l *ast.Label) int {
	return len(ctx.gotos[l.ID()])
}

// GotosTo returns the live gotos that target l, in ID order.
func (ctx *Context) GotosTo(l *ast.Label) []*ast.Goto {
	set := ctx.gotos[l.ID()]
	out := make([]*ast.Goto, 0, len(set))
	for g := range set {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Retarget points g at l, keeping the registry in step.
func (ctx *Context) Retarget(g *ast.Goto, l *ast.Label) {
	ctx.unregister(g)
	g.Label = l
	ctx.register(g)
}

// ----------------------------------------------------------------------------
// Local counters

// Refs returns the number of reads of l in the tree.
func (ctx *Context) Refs(l *ast.Local) int { return ctx.refs[l.ID()] }

// Assigns returns the number of writes to l in the tree.
func (ctx *Context) Assigns(l *ast.Local) int { return ctx.assigns[l.ID()] }

// Unused reports whether l is neither read nor written.
func (ctx *Context) Unused(l *ast.Local) bool {
	return ctx.Refs(l) == 0 && ctx.Assigns(l) == 0
}

// MarkLastUse records that ref is the final read of its local.
func (ctx *Context) MarkLastUse(ref *ast.LocalRef) {
	ctx.lastUse.Add(uint32(ref.ID()))
}

// IsLastUse reports whether ref was marked as the final read of its local.
func (ctx *Context) IsLastUse(ref *ast.LocalRef) bool {
	return ctx.lastUse.Contains(uint32(ref.ID()))
}

// NumLastUses returns the number of last-use markers.
func (ctx *Context) NumLastUses() int {
	return int(ctx.lastUse.GetCardinality())
}

// Discard removes the effects of n on the side tables. It must be called
// for every subtree a pass drops from the tree.
func (ctx *Context) Discard(n ast.Node) {
	ctx.account(n, -1)
}

// Adopt adds the effects of n to the side tables. It must be called for
// every subtree a pass adds to the tree that is not moved from elsewhere.
func (ctx *Context) Adopt(n ast.Node) {
	ctx.account(n, 1)
}

// Recount rebuilds the goto registry and the local counters from the tree.
func (ctx *Context) Recount() {
	ctx.gotos = make(map[ast.ID]map[*ast.Goto]struct{})
	ctx.refs = make(map[ast.ID]int)
	ctx.assigns = make(map[ast.ID]int)
	if ctx.Root != nil {
		ctx.account(ctx.Root, 1)
	}
}

// account applies the counting rules: a local that is the direct target
// of an assignment is written, not read; a compound assignment both reads
// and writes; taking the address counts as a read; declarations with an
// initializer and catch variables are writes.
func (ctx *Context) account(n ast.Node, delta int) {
	targets := make(map[*ast.LocalRef]bool)
	ast.Inspect(n, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Goto:
			if delta > 0 {
				ctx.register(n)
			} else {
				ctx.unregister(n)
			}
		case *ast.Assign:
			if r, ok := n.Target.(*ast.LocalRef); ok {
				targets[r] = true
				ctx.assigns[r.Local.ID()] += delta
			}
		case *ast.OpAssign:
			if r, ok := n.Target.(*ast.LocalRef); ok {
				ctx.assigns[r.Local.ID()] += delta
			}
		case *ast.LocalRef:
			if !targets[n] {
				ctx.refs[n.Local.ID()] += delta
			}
		case *ast.LocalDecl:
			if n.Init != nil {
				ctx.assigns[n.Local.ID()] += delta
			}
		case *ast.Catch:
			if n.Var != nil {
				ctx.assigns[n.Var.ID()] += delta
			}
		}
		return true
	})
}

// AddRefs adjusts the read counter of l by delta, for passes that change
// uses without moving nodes.
func (ctx *Context) AddRefs(l *ast.Local, delta int) { ctx.refs[l.ID()] += delta }

// AddAssigns adjusts the write counter of l by delta.
func (ctx *Context) AddAssigns(l *ast.Local, delta int) { ctx.assigns[l.ID()] += delta }

// Errorf reports a malformed body.
func (ctx *Context) Errorf(sentinel error, format string, args ...any) error {
	name := "?"
	if ctx.Body.Method != nil {
		name = ctx.Body.Method.FullName()
	}
	return fmt.Errorf("%s: %w: %s", name, sentinel, fmt.Sprintf(format, args...))
}
