package decomp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/you-not-fish/destack/internal/ast"
)

// Verify checks that the side tables of ctx agree with its tree: the goto
// registry holds exactly the gotos present in the tree, every label a goto
// targets is defined once, and the local counters match a recount.
// It returns an error describing all violations found, or nil if valid.
func Verify(ctx *Context) error {
	var errs []string

	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if ctx.Root == nil {
		add("no tree")
		return combineErrors(errs)
	}

	live := make(map[*ast.Goto]bool)
	defined := make(map[*ast.Label]int)
	ast.Inspect(ctx.Root, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Goto:
			if live[n] {
				add("goto %s (node %d) appears twice in the tree", n.Label, n.ID())
			}
			live[n] = true
		case *ast.LabelStmt:
			defined[n.Label]++
		}
		return true
	})

	var gotos []*ast.Goto
	for g := range live {
		gotos = append(gotos, g)
	}
	sort.Slice(gotos, func(i, j int) bool { return gotos[i].ID() < gotos[j].ID() })
	for _, g := range gotos {
		if _, ok := ctx.gotos[g.Label.ID()][g]; !ok {
			add("goto %s (node %d) is not registered", g.Label, g.ID())
		}
		if defined[g.Label] == 0 {
			add("goto %s (node %d) targets an undefined label", g.Label, g.ID())
		}
	}
	for id, set := range ctx.gotos {
		for g := range set {
			if !live[g] {
				add("registered goto %s (node %d) is not in the tree", g.Label, g.ID())
			}
			if g.Label.ID() != id {
				add("goto %s (node %d) is registered under label %d", g.Label, g.ID(), id)
			}
		}
	}
	for l, n := range defined {
		if n > 1 {
			add("label %s defined %d times", l, n)
		}
	}

	// Counters
	check := &Context{
		Root:    ctx.Root,
		gotos:   make(map[ast.ID]map[*ast.Goto]struct{}),
		refs:    make(map[ast.ID]int),
		assigns: make(map[ast.ID]int),
	}
	check.account(ctx.Root, 1)
	for _, l := range ctx.Locals() {
		if got, want := ctx.Refs(l), check.Refs(l); got != want {
			add("local %s: %d references recorded, %d in the tree", l, got, want)
		}
		if got, want := ctx.Assigns(l), check.Assigns(l); got != want {
			add("local %s: %d assignments recorded, %d in the tree", l, got, want)
		}
	}

	return combineErrors(errs)
}

// combineErrors creates an error from a list of error strings, or returns nil.
func combineErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("tree verification failed:\n  %s", strings.Join(errs, "\n  "))
}
