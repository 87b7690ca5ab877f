package passes

import (
	"bytes"
	"strings"
	"testing"

	"github.com/you-not-fish/destack/internal/asm"
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/cfg"
	"github.com/you-not-fish/destack/internal/decomp"
	"github.com/you-not-fish/destack/internal/il"
)

// translate runs the front half of the pipeline over C::M of a class
// body snippet.
func translate(t *testing.T, method string) *decomp.Context {
	t.Helper()
	src := ".format \"1.0\"\n.module T\n.class C {\n" + method + "\n}\n"
	mod, err := asm.ParseString("t.il", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	body := mod.BodyOf(mod.LookupType("C").LookupMethod("M"))
	g, err := cfg.Build(body)
	if err != nil {
		t.Fatalf("cfg.Build: %v", err)
	}
	ctx := decomp.NewContext(body, g, nil, il.DefaultFlags)
	if err := decomp.Structure(ctx); err != nil {
		t.Fatalf("Structure: %v", err)
	}
	if err := decomp.Translate(ctx); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	decomp.InferTypes(ctx)
	return ctx
}

// construct additionally runs the construct rules, verifying the side
// tables after every change.
func construct(t *testing.T, method string) *decomp.Context {
	t.Helper()
	ctx := translate(t, method)
	if err := Fixpoint(ctx, Constructs(ctx.Flags), Config{Verify: true}); err != nil {
		t.Fatalf("Fixpoint: %v", err)
	}
	return ctx
}

// decompile runs construct and the cleanup passes.
func decompile(t *testing.T, method string) *decomp.Context {
	t.Helper()
	ctx := construct(t, method)
	decomp.EliminateStack(ctx)
	if err := Run(ctx, Cleanup(), Config{Verify: true}); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	return ctx
}

func contains(t *testing.T, ctx *decomp.Context, want ...string) {
	t.Helper()
	out := ast.String(ctx.Root)
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output lacks %q:\n%s", w, out)
		}
	}
}

func lacks(t *testing.T, ctx *decomp.Context, banned ...string) {
	t.Helper()
	out := ast.String(ctx.Root)
	for _, b := range banned {
		if strings.Contains(out, b) {
			t.Errorf("output holds %q:\n%s", b, out)
		}
	}
}

const empty = `.method static void M() {
  ret
}`

func TestRunEmpty(t *testing.T) {
	ctx := translate(t, empty)
	if err := Run(ctx, nil, Config{}); err != nil {
		t.Fatalf("Run with no passes: %v", err)
	}
}

func TestRunSinglePass(t *testing.T) {
	ctx := translate(t, empty)
	called := false
	passes := []Pass{
		{Name: "test", Fn: func(*decomp.Context) bool { called = true; return false }},
	}
	if err := Run(ctx, passes, Config{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !called {
		t.Error("pass was not called")
	}
}

func TestRunWithVerify(t *testing.T) {
	ctx := translate(t, empty)
	passes := []Pass{
		{Name: "noop", Fn: func(*decomp.Context) bool { return false }},
	}
	if err := Run(ctx, passes, Config{Verify: true}); err != nil {
		t.Fatalf("Run with verify: %v", err)
	}
}

func TestRunVerifyCatchesBrokenPass(t *testing.T) {
	ctx := translate(t, straight)
	passes := []Pass{
		{Name: "broken", Fn: func(ctx *decomp.Context) bool {
			ctx.AddRefs(ctx.Local(0), 1)
			return true
		}},
	}
	err := Run(ctx, passes, Config{Verify: true})
	if err == nil || !strings.Contains(err.Error(), "verify after broken") {
		t.Fatalf("Run = %v, want a verification failure after broken", err)
	}
}

func TestRunMultiplePasses(t *testing.T) {
	ctx := translate(t, empty)
	var order []string
	passes := []Pass{
		{Name: "first", Fn: func(*decomp.Context) bool { order = append(order, "first"); return false }},
		{Name: "second", Fn: func(*decomp.Context) bool { order = append(order, "second"); return false }},
	}
	if err := Run(ctx, passes, Config{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("pass order = %v, want [first second]", order)
	}
}

func TestRunDump(t *testing.T) {
	ctx := translate(t, empty)
	var buf bytes.Buffer
	passes := []Pass{{Name: "noop", Fn: func(*decomp.Context) bool { return false }}}
	if err := Run(ctx, passes, Config{DumpAfter: "*", Out: &buf}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(buf.String(), "--- after noop (C::M()) ---") {
		t.Errorf("dump = %q", buf.String())
	}

	buf.Reset()
	if err := Run(ctx, passes, Config{DumpAfter: "*", DumpFunc: "C::Other()", Out: &buf}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("dump for another method: %q", buf.String())
	}
}
