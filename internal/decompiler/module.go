package decompiler

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/you-not-fish/destack/internal/closure"
	"github.com/you-not-fish/destack/internal/il"
	"github.com/you-not-fish/destack/internal/types"
)

// MethodResult is the outcome of decompiling one method of a module.
type MethodResult struct {
	Method *types.Method
	Body   *MethodBody // nil if Err is set
	Err    error
}

// ModuleOptions control DecompileModule.
type ModuleOptions struct {
	Options
	// Parallelism bounds the number of bodies decompiled at once.
	// Zero means runtime.GOMAXPROCS(0).
	Parallelism int
	// Filter, if set, selects the methods to decompile.
	Filter func(*types.Method) bool
}

// DecompileModule decompiles every method body of mod. A method that fails
// is reported in its result and does not stop the others. Cancelling ctx
// stops scheduling further methods; the results of the methods not
// started are left empty and ctx.Err() is returned.
func DecompileModule(ctx context.Context, mod *il.Module, opts ModuleOptions) ([]MethodResult, error) {
	var methods []*types.Method
	for _, m := range mod.Methods() {
		if opts.Filter == nil || opts.Filter(m) {
			methods = append(methods, m)
		}
	}
	// Closure bodies are read by every method that creates them; sort
	// the handler tables once, before any goroutine reads them.
	for _, m := range mod.Methods() {
		mod.BodyOf(m).SortHandlers()
	}

	n := opts.Parallelism
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	results := make([]MethodResult, len(methods))
	var g errgroup.Group
	g.SetLimit(n)
	for i, m := range methods {
		if ctx.Err() != nil {
			break
		}
		i, m := i, m
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			body, err := Decompile(mod, mod.BodyOf(m), opts.Options)
			if err != nil {
				log.Warningf("%s: %s", m.FullName(), err)
			}
			results[i] = MethodResult{Method: m, Body: body, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results, ctx.Err()
}

// Elided merges the elided members of every successful result.
func Elided(results []MethodResult) *closure.Elided {
	out := &closure.Elided{}
	for _, r := range results {
		if r.Body != nil {
			out.Merge(r.Body.Elided())
		}
	}
	return out
}
