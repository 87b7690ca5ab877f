// Package passes rewrites the statement tree of a method body into
// structured constructs. Construct rules run to a fixed point per block;
// cleanup passes run once over the whole tree.
package passes

import (
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
	"github.com/you-not-fish/destack/internal/il"
)

var log = commonlog.GetLogger("destack.passes")

// Pass describes a single rewriting pass over a whole tree. Fn reports
// whether it changed anything.
type Pass struct {
	Name string
	Fn   func(ctx *decomp.Context) bool
}

// Rule is a construct-recognition step over the statement list of one
// block. Fn reports whether it changed the block.
type Rule struct {
	Name string
	Fn   func(ctx *decomp.Context, b *ast.Block) bool
}

// Config controls pass execution behavior.
type Config struct {
	DumpBefore string    // dump the tree before this pass ("*" for all)
	DumpAfter  string    // dump the tree after this pass ("*" for all)
	Verify     bool      // verify the side tables before/after each pass
	DumpFunc   string    // restrict dumps to this method
	Out        io.Writer // dump destination; os.Stderr if nil
}

func (cfg Config) out() io.Writer {
	if cfg.Out != nil {
		return cfg.Out
	}
	return os.Stderr
}

// Run executes the given passes on ctx in order.
func Run(ctx *decomp.Context, passes []Pass, cfg Config) error {
	name := methodName(ctx)
	for _, p := range passes {
		if shouldDump(cfg.DumpBefore, p.Name) && matchFunc(cfg.DumpFunc, name) {
			dump(cfg.out(), "before", p.Name, name, ctx.Root)
		}

		if cfg.Verify {
			if err := decomp.Verify(ctx); err != nil {
				return fmt.Errorf("verify before %s: %w", p.Name, err)
			}
		}

		if p.Fn(ctx) {
			log.Debugf("%s: %s changed the tree", name, p.Name)
		}

		if cfg.Verify {
			if err := decomp.Verify(ctx); err != nil {
				return fmt.Errorf("verify after %s: %w", p.Name, err)
			}
		}

		if shouldDump(cfg.DumpAfter, p.Name) && matchFunc(cfg.DumpFunc, name) {
			dump(cfg.out(), "after", p.Name, name, ctx.Root)
		}
	}
	return nil
}

// maxRounds bounds Fixpoint. Every rule shrinks the tree or replaces a
// goto shape by a construct, so real bodies settle long before.
const maxRounds = 100000

// Fixpoint applies rules to the blocks of ctx.Root, innermost first. The
// rules run interleaved on one block until none of them changes it; after
// a change the walk restarts, and it ends when a whole walk changes
// nothing.
func Fixpoint(ctx *decomp.Context, rules []Rule, cfg Config) error {
	name := methodName(ctx)
	dumps := matchFunc(cfg.DumpFunc, name) && (cfg.DumpBefore != "" || cfg.DumpAfter != "")
	for round := 0; round < maxRounds; round++ {
		changed := false
		list := blocks(ctx.Root)
		for _, b := range list {
			if changed {
				break
			}
			for {
				local := false
				for _, r := range rules {
					var before string
					if dumps && shouldDump(cfg.DumpBefore, r.Name) {
						before = ast.String(ctx.Root)
					}
					if !r.Fn(ctx, b) {
						continue
					}
					local = true
					log.Debugf("%s: %s changed block %d", name, r.Name, b.ID())
					if before != "" {
						fmt.Fprintf(cfg.out(), "--- before %s (%s) ---\n%s\n", r.Name, name, before)
					}
					if cfg.Verify {
						if err := decomp.Verify(ctx); err != nil {
							return fmt.Errorf("verify after %s: %w", r.Name, err)
						}
					}
					if dumps && shouldDump(cfg.DumpAfter, r.Name) {
						dump(cfg.out(), "after", r.Name, name, ctx.Root)
					}
				}
				if !local {
					break
				}
				changed = true
			}
		}
		if !changed {
			return nil
		}
	}
	return fmt.Errorf("%s: construct rules did not settle after %d rounds", name, maxRounds)
}

// Constructs returns the construct rules in the order they are tried.
// Loop reconstruction is included only when flags enable it.
func Constructs(flags il.Flags) []Rule {
	rules := []Rule{
		{Name: "try", Fn: tryRule},
		{Name: "switch", Fn: switchRule},
		{Name: "gotonext", Fn: gotoNextRule},
		{Name: "ternary", Fn: ternaryRule},
		{Name: "shortcircuit", Fn: shortCircuitRule},
		{Name: "ifthen", Fn: ifThenRule},
		{Name: "ifelse", Fn: ifElseRule},
		{Name: "lock", Fn: lockRule},
		{Name: "using", Fn: usingRule},
		{Name: "arrayinit", Fn: arrayInitRule},
		{Name: "compound", Fn: compoundRule},
	}
	if flags.Has(il.Loops) {
		rules = append(rules, Rule{Name: "loops", Fn: loopRule})
	}
	return rules
}

// Cleanup returns the passes that run once after stack elimination.
func Cleanup() []Pass {
	return []Pass{
		{Name: "declunify", Fn: DeclUnify},
		{Name: "selfassign", Fn: SelfAssign},
		{Name: "deadlabels", Fn: DeadLabels},
		{Name: "deadlocals", Fn: DeadLocals},
		{Name: "flatten", Fn: Flatten},
	}
}

func methodName(ctx *decomp.Context) string {
	if ctx.Body != nil && ctx.Body.Method != nil {
		return ctx.Body.Method.FullName()
	}
	return "?"
}

func dump(w io.Writer, when, pass, name string, root *ast.Block) {
	fmt.Fprintf(w, "--- %s %s (%s) ---\n", when, pass, name)
	if root != nil {
		ast.Fprint(w, root)
	}
	fmt.Fprintln(w)
}

func shouldDump(pattern, name string) bool {
	return pattern == "*" || pattern == name
}

func matchFunc(filter, name string) bool {
	return filter == "" || filter == name
}
