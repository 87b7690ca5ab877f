package decomp

import (
	"errors"
	"strings"
	"testing"

	"github.com/you-not-fish/destack/internal/asm"
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/cfg"
	"github.com/you-not-fish/destack/internal/il"
)

// parseBody parses the body of C::M from a class body snippet.
func parseBody(t *testing.T, method string) *il.Body {
	t.Helper()
	src := ".format \"1.0\"\n.module T\n.class C {\n" + method + "\n}\n"
	mod, err := asm.ParseString("t.il", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	m := mod.LookupType("C").LookupMethod("M")
	return mod.BodyOf(m)
}

func newContext(t *testing.T, method string) *Context {
	t.Helper()
	body := parseBody(t, method)
	g, err := cfg.Build(body)
	if err != nil {
		t.Fatalf("cfg.Build: %v", err)
	}
	return NewContext(body, g, nil, il.DefaultFlags)
}

// translate runs the structurer and the translator over method.
func translate(t *testing.T, method string) *Context {
	t.Helper()
	ctx := newContext(t, method)
	if err := Structure(ctx); err != nil {
		t.Fatalf("Structure: %v", err)
	}
	if err := Translate(ctx); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if err := Verify(ctx); err != nil {
		t.Fatalf("Verify after Translate: %v", err)
	}
	return ctx
}

const straight = `.method static int M(int a, int b) {
  .locals (int x)
  ldarg a
  ldarg b
  add
  stloc x
  ldloc x
  ret
}`

const ternary = `.method static int M(bool c) {
  .locals (int x)
  ldarg c
  brtrue L1
  ldc.i4.0
  br L2
L1:
  ldc.i4.1
L2:
  stloc x
  ldloc x
  ret
}`

// The operands of the add are produced in three different blocks.
const split = `.method static int M(bool c, int a) {
  ldarg a
  ldarg c
  brtrue L1
  ldc.i4.1
  br L2
L1:
  ldc.i4.2
L2:
  add
  ret
}`

const dupBranch = `.method static int M(int a) {
  ldarg a
  ldc.i4.1
  add
  dup
  brtrue L1
  pop
  ldc.i4.0
L1:
  ret
}`

const loop = `.method static void M(int n) {
  .locals (int i)
  ldc.i4.0
  stloc i
  br Cond
Body:
  ldloc i
  ldc.i4.1
  add
  stloc i
Cond:
  ldloc i
  ldarg n
  blt Body
  ret
}`

const tryCatch = `.method static void M() {
  .locals (int x)
  .try Start to End catch System.Exception handler Catch to Done
  .scope Start to Done (x)
Start:
  call void C::F()
  leave Done
End:
Catch:
  pop
  leave Done
Done:
  ret
}
.method static void F() {
  ret
}`

const overlapping = `.method static void M() {
  .try A to C catch System.Exception handler H1 to H2
  .try B to D catch System.Exception handler H2 to E
A:
  nop
B:
  nop
C:
  nop
  leave E
D:
H1:
  pop
  leave E
H2:
  pop
  leave E
E:
  ret
}`

func TestStructure(t *testing.T) {
	ctx := newContext(t, tryCatch)
	if err := Structure(ctx); err != nil {
		t.Fatalf("Structure: %v", err)
	}
	if err := CheckStructure(ctx.Root, ctx.Body); err != nil {
		t.Error(err)
	}
	out := ast.String(ctx.Root)
	for _, want := range []string{".try [", ".handler [", ".scope ["} {
		if !strings.Contains(out, want) {
			t.Errorf("tree lacks %q:\n%s", want, out)
		}
	}
}

func TestStructureCoversBody(t *testing.T) {
	for name, src := range map[string]string{"straight": straight, "ternary": ternary, "loop": loop} {
		t.Run(name, func(t *testing.T) {
			ctx := newContext(t, src)
			if err := Structure(ctx); err != nil {
				t.Fatalf("Structure: %v", err)
			}
			if ctx.Root.Start != 0 || ctx.Root.End != ctx.Body.CodeSize() {
				t.Errorf("root covers [%d, %d), want [0, %d)", ctx.Root.Start, ctx.Root.End, ctx.Body.CodeSize())
			}
			if err := CheckStructure(ctx.Root, ctx.Body); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestStructureBadNesting(t *testing.T) {
	ctx := newContext(t, overlapping)
	err := Structure(ctx)
	if !errors.Is(err, ErrBadNesting) {
		t.Fatalf("Structure error = %v, want ErrBadNesting", err)
	}
}

func TestTranslateStraightLine(t *testing.T) {
	ctx := translate(t, straight)
	want := "{\n  int x;\n  x = a + b;\n  return x;\n}\n"
	if got := ast.String(ctx.Root); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
	if ctx.NumLastUses() != 1 {
		t.Errorf("NumLastUses() = %d, want 1", ctx.NumLastUses())
	}
	x := ctx.Local(0)
	if ctx.Refs(x) != 1 || ctx.Assigns(x) != 1 {
		t.Errorf("x: refs %d assigns %d, want 1 and 1", ctx.Refs(x), ctx.Assigns(x))
	}
}

func TestTranslateDupStore(t *testing.T) {
	ctx := translate(t, `.method static int M(int a) {
  .locals (int x, int y)
  ldarg a
  dup
  stloc x
  stloc y
  ldloc y
  ret
}`)
	if out := ast.String(ctx.Root); !strings.Contains(out, "y = x = a;") {
		t.Errorf("dup store not fused:\n%s", out)
	}
}

func TestTranslateCrossBlock(t *testing.T) {
	ctx := translate(t, ternary)
	out := ast.String(ctx.Root)
	for _, want := range []string{"push 0;", "push 1;", "x = pop;", "return x;", "IL_"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q:\n%s", want, out)
		}
	}
}

func TestLastUseInLoop(t *testing.T) {
	ctx := translate(t, loop)
	if ctx.NumLastUses() != 0 {
		t.Errorf("NumLastUses() = %d, want 0 for reads inside a loop", ctx.NumLastUses())
	}
}

func countPops(n ast.Node) int {
	count := 0
	ast.Inspect(n, func(n ast.Node) bool {
		if _, ok := n.(*ast.PopValue); ok {
			count++
		}
		return true
	})
	return count
}

// Every translated block leaves the operand stack as deep as each
// successor expects it.
func TestStackBalance(t *testing.T) {
	for name, src := range map[string]string{
		"straight": straight, "ternary": ternary, "split": split, "dup": dupBranch, "loop": loop,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := newContext(t, src)
			tr := &translator{ctx: ctx, a: ctx.Arena, body: ctx.Body, targets: make(map[int]bool)}
			for _, b := range ctx.Graph.Blocks {
				if !ctx.Graph.Reachable(b) {
					continue
				}
				stmts, err := tr.block(b)
				if err != nil {
					t.Fatalf("%s: %v", b, err)
				}
				depth := len(b.StackIn)
				for _, s := range stmts {
					depth -= countPops(s)
					if _, ok := s.(*ast.Push); ok {
						depth++
					}
				}
				succs := b.NormalSuccs()
				if len(succs) == 0 && depth != 0 {
					t.Errorf("%s exits with depth %d, want 0", b, depth)
				}
				for _, s := range succs {
					if depth != len(s.StackIn) {
						t.Errorf("%s exits with depth %d, %s expects %d", b, depth, s, len(s.StackIn))
					}
				}
			}
		})
	}
}

func TestInferTypesIdempotent(t *testing.T) {
	ctx := translate(t, `.method static bool M(int a, bool c) {
  .locals (bool f)
  ldarg a
  ldc.i4.0
  cgt
  ldarg c
  and
  stloc f
  ldloc f
  brfalse L1
  ldc.i4.1
  ret
L1:
  ldc.i4.0
  ret
}`)
	InferTypes(ctx)
	first := ast.String(ctx.Root)
	for _, want := range []string{"return true;", "return false;", "if (!f)"} {
		if !strings.Contains(first, want) {
			t.Errorf("output lacks %q:\n%s", want, first)
		}
	}
	InferTypes(ctx)
	if second := ast.String(ctx.Root); second != first {
		t.Errorf("second run changed the tree:\n%s\nthen:\n%s", first, second)
	}
}

func TestEliminateStack(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want []string
	}{
		{
			name: "ternary",
			src:  ternary,
			want: []string{"int stack_0_i4;", "stack_0_i4 = 0;", "stack_0_i4 = 1;", "x = stack_0_i4;"},
		},
		{
			name: "split",
			src:  split,
			want: []string{"stack_0_i4 = a;", "stack_1_i4 = 1;", "stack_1_i4 = 2;", "return stack_0_i4 + stack_1_i4;"},
		},
		{
			name: "dup",
			src:  dupBranch,
			want: []string{"stack_0_i4 = a + 1;", "stack_1_i4 = stack_0_i4;", "if (stack_1_i4 != 0)", "return stack_0_i4;"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := translate(t, tt.src)
			InferTypes(ctx)
			EliminateStack(ctx)
			out := ast.String(ctx.Root)
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output lacks %q:\n%s", want, out)
				}
			}
			for _, banned := range []string{"push ", "pop", "dup"} {
				if strings.Contains(out, banned) {
					t.Errorf("output still holds %q:\n%s", banned, out)
				}
			}
			if err := Verify(ctx); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestEliminateStackFolds(t *testing.T) {
	ctx := translate(t, straight)
	a := ctx.Arena
	// push x; return pop + 1 folds to return x + 1.
	x := ctx.Local(0)
	p := ast.New(a, &ast.PopValue{})
	p.SetType(x.Type)
	sum := ast.New(a, &ast.Binary{Op: ast.Add, X: p, Y: a.Int(1, x.Type)})
	sum.SetType(x.Type)
	ctx.Root.Stmts = []ast.Stmt{
		ast.New(a, &ast.LocalDecl{Local: x}),
		ast.New(a, &ast.Push{X: a.Ref(x)}),
		ast.New(a, &ast.Return{X: sum}),
	}
	ctx.Recount()
	EliminateStack(ctx)
	want := "{\n  int x;\n  return x + 1;\n}\n"
	if got := ast.String(ctx.Root); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestVerifyReportsStaleCounters(t *testing.T) {
	ctx := translate(t, straight)
	ctx.AddRefs(ctx.Local(0), 1)
	err := Verify(ctx)
	if err == nil || !strings.Contains(err.Error(), "references recorded") {
		t.Errorf("Verify = %v, want a reference count mismatch", err)
	}
}

func TestTranslateMalformedConstant(t *testing.T) {
	tests := []struct {
		ins     string
		operand any
	}{
		{"ldc.i4 5", int64(5)},
		{"ldc.i8 5", int32(5)},
		{"ldc.r4 1.5", 1.5},
		{"ldc.r8 1.5", float32(1.5)},
		{`ldstr "s"`, 7},
	}
	for _, tt := range tests {
		t.Run(tt.ins, func(t *testing.T) {
			ctx := newContext(t, ".method static void M() {\n  "+tt.ins+"\n  pop\n  ret\n}")
			ctx.Body.Instrs[0].Operand = tt.operand
			if err := Structure(ctx); err != nil {
				t.Fatalf("Structure: %v", err)
			}
			if err := Translate(ctx); !errors.Is(err, ErrOperand) {
				t.Errorf("Translate = %v, want ErrOperand", err)
			}
		})
	}
}
