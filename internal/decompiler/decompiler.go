// Package decompiler runs the decompilation pipeline over method bodies:
//
//	cfg.Build -> Structure -> Translate -> InferTypes
//	-> construct rules (to a fixed point) -> InferTypes -> EliminateStack
//	-> closures and iterators -> cleanup passes
//
// Decompile handles one body; DecompileModule decompiles every body of a
// module in parallel.
package decompiler

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/cfg"
	"github.com/you-not-fish/destack/internal/closure"
	"github.com/you-not-fish/destack/internal/decomp"
	"github.com/you-not-fish/destack/internal/decomp/passes"
	"github.com/you-not-fish/destack/internal/il"
	"github.com/you-not-fish/destack/internal/types"
)

var log = commonlog.GetLogger("destack.decompiler")

// Options control one decompilation.
type Options struct {
	Flags  il.Flags
	Passes passes.Config
}

// DefaultOptions enables every reconstruction and no debugging aids.
func DefaultOptions() Options {
	return Options{Flags: il.DefaultFlags}
}

// Decompile reconstructs the statement tree of body. Closure and iterator
// bodies are looked up in mod. In read-only mode the result only forwards
// the input.
func Decompile(mod *il.Module, body *il.Body, opts Options) (*MethodBody, error) {
	out := &MethodBody{body: body, elided: &closure.Elided{}}
	if opts.Flags.Has(il.ReadOnly) {
		return out, nil
	}
	s := &session{
		mod:    mod,
		opts:   opts,
		active: map[*types.Method]bool{body.Method: true},
		elided: out.elided,
	}
	ctx, it, err := s.run(body, nil)
	if err != nil {
		return nil, err
	}
	out.ctx = ctx
	out.iter = it
	return out, nil
}

// session carries the state shared by a method and the closure bodies
// decompiled on its behalf.
type session struct {
	mod    *il.Module
	opts   Options
	active map[*types.Method]bool // bodies being decompiled, outermost first
	elided *closure.Elided
}

func methodName(body *il.Body) string {
	if body.Method != nil {
		return body.Method.FullName()
	}
	return "?"
}

// run decompiles body into a fresh context. A nil arena allocates one.
func (s *session) run(body *il.Body, arena *ast.Arena) (*decomp.Context, *closure.Iterator, error) {
	name := methodName(body)
	flags := s.opts.Flags
	log.Debugf("decompiling %s", name)

	g, err := cfg.Build(body)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	ctx := decomp.NewContext(body, g, arena, flags)
	if err := decomp.Structure(ctx); err != nil {
		return nil, nil, err
	}
	if err := decomp.Translate(ctx); err != nil {
		return nil, nil, err
	}
	decomp.InferTypes(ctx)
	if err := passes.Fixpoint(ctx, passes.Constructs(flags), s.opts.Passes); err != nil {
		return nil, nil, err
	}
	decomp.InferTypes(ctx)
	if flags.Has(il.StackElimination) {
		decomp.EliminateStack(ctx)
		// Folded pushes land in contexts typed against their placeholders.
		decomp.InferTypes(ctx)
	}

	if flags.Has(il.AnonymousDelegates) {
		el, err := closure.Reconstruct(ctx, s.load)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", name, err)
		}
		s.elided.Merge(el)
	}
	var it *closure.Iterator
	if flags.Has(il.Iterators) {
		var el *closure.Elided
		it, el, err = closure.ReconstructIterator(ctx, s.load)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: iterator: %w", name, err)
		}
		if it != nil {
			s.elided.Merge(el)
			if err := passes.Run(it.Ctx, passes.Cleanup(), s.opts.Passes); err != nil {
				return nil, nil, err
			}
		}
	}

	if err := passes.Run(ctx, passes.Cleanup(), s.opts.Passes); err != nil {
		return nil, nil, err
	}
	if s.opts.Passes.Verify {
		if err := decomp.Verify(ctx); err != nil {
			return nil, nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return ctx, it, nil
}

// load is the closure.Loader of the session: it decompiles the body of a
// closure method into arena.
func (s *session) load(m *types.Method, arena *ast.Arena) (*decomp.Context, error) {
	if s.active[m] {
		return nil, closure.ErrCycle
	}
	body := s.mod.BodyOf(m)
	if body == nil {
		return nil, fmt.Errorf("%s has no body", m.FullName())
	}
	s.active[m] = true
	defer delete(s.active, m)
	ctx, _, err := s.run(body, arena)
	return ctx, err
}
