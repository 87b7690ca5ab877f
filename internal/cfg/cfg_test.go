package cfg

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/you-not-fish/destack/internal/asm"
	"github.com/you-not-fish/destack/internal/il"
	"github.com/you-not-fish/destack/internal/types"
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

func build(t *testing.T, method string) *Graph {
	t.Helper()
	g, err := Build(parseBody(t, method))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

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

func TestBuildBlocks(t *testing.T) {
	g := build(t, ternary)
	if len(g.Blocks) != 4 {
		var buf bytes.Buffer
		Fprint(&buf, g)
		t.Fatalf("got %d blocks, want 4:\n%s", len(g.Blocks), buf.String())
	}
	kinds := []BlockKind{BlockIf, BlockPlain, BlockPlain, BlockReturn}
	for i, b := range g.Blocks {
		if b.Kind != kinds[i] {
			t.Errorf("%s kind = %s, want %s", b, b.Kind, kinds[i])
		}
	}
	b0 := g.Blocks[0]
	if len(b0.Succs) != 2 || b0.Succs[0] != g.Blocks[2] || b0.Succs[1] != g.Blocks[1] {
		t.Errorf("b0 succs = %v, want [b2 b1]", b0.Succs)
	}
	if len(g.Blocks[3].Preds) != 2 {
		t.Errorf("join block has %d preds, want 2", len(g.Blocks[3].Preds))
	}
	if g.NumReachable() != 4 {
		t.Errorf("NumReachable() = %d, want 4", g.NumReachable())
	}
}

func TestStackIn(t *testing.T) {
	g := build(t, ternary)
	join := g.Blocks[3]
	if len(join.StackIn) != 1 || join.StackIn[0] != types.Typ[types.Int32] {
		t.Errorf("join StackIn = %v, want [int]", join.StackIn)
	}
	if len(g.Entry.StackIn) != 0 {
		t.Errorf("entry StackIn = %v, want empty", g.Entry.StackIn)
	}
}

func TestHandlerEntryStack(t *testing.T) {
	g := build(t, `.method static void M() {
  .try A to B catch System.Exception handler B to C
A:
  leave C
B:
  pop
  leave C
C:
  ret
}`)
	h := g.BlockAt(g.Body.Handlers[0].HandlerStart)
	if h == nil || h.Entry != EntryHandler {
		t.Fatalf("handler block = %v", h)
	}
	if len(h.StackIn) != 1 || h.StackIn[0].String() != types.ExceptionType {
		t.Errorf("handler StackIn = %v, want [System.Exception]", h.StackIn)
	}
	if g.Entry.NumExc != 1 || g.Entry.Succs[len(g.Entry.Succs)-1] != h {
		t.Errorf("try block should have an exceptional edge to the handler")
	}
	if !g.Reachable(h) {
		t.Error("handler should be reachable through its exceptional edge")
	}
}

func TestStackMismatch(t *testing.T) {
	_, err := Build(parseBody(t, `.method static void M(bool c) {
  ldarg c
  brtrue L1
  ldc.i4.0
L1:
  pop
  ret
}`))
	if !errors.Is(err, ErrStack) {
		t.Fatalf("Build error = %v, want ErrStack", err)
	}
}

func TestStackUnderflow(t *testing.T) {
	_, err := Build(parseBody(t, `.method static void M() {
  pop
  ret
}`))
	if !errors.Is(err, ErrStack) {
		t.Fatalf("Build error = %v, want ErrStack", err)
	}
}

func TestDominators(t *testing.T) {
	g := build(t, ternary)
	ComputeDom(g)
	b0, b1, b2, b3 := g.Blocks[0], g.Blocks[1], g.Blocks[2], g.Blocks[3]
	if b3.Idom != b0 {
		t.Errorf("idom(b3) = %v, want b0", b3.Idom)
	}
	if !Dominates(b0, b2) || Dominates(b1, b3) || Dominates(b2, b1) {
		t.Error("wrong dominance relation")
	}
	if len(b0.Dominees) != 3 {
		t.Errorf("b0 dominates %d blocks directly, want 3", len(b0.Dominees))
	}

	rpo := ReversePostOrder(g)
	if rpo[0] != b0 || rpo[len(rpo)-1] != b3 {
		t.Errorf("RPO = %v, want b0 first and b3 last", rpo)
	}
}

func TestLoopBackEdge(t *testing.T) {
	g := build(t, `.method static void M(int n) {
  br Cond
Body:
  ldarg n
  ldc.i4.1
  sub
  starg n
Cond:
  ldarg n
  ldc.i4.0
  bgt Body
  ret
}`)
	ComputeDom(g)
	cond := g.BlockAt(g.Blocks[2].Start)
	body := g.Blocks[1]
	if !Dominates(cond, body) {
		t.Error("loop condition should dominate the loop body")
	}
}

func TestLoops(t *testing.T) {
	tests := []struct {
		name   string
		method string
		want   []int
	}{
		{"acyclic", ternary, nil},
		{"while", `.method static void M(int n) {
  br Cond
Body:
  ldarg n
  ldc.i4.1
  sub
  starg n
Cond:
  ldarg n
  ldc.i4.0
  bgt Body
  ret
}`, []int{1, 2}},
		// The body sits after the exit, so the exit lies between the
		// ends of a retreating edge without being on the cycle.
		{"body after exit", `.method static int M(int n) {
  .locals (int x)
  ldc.i4.0
  stloc x
Head:
  ldarg n
  brfalse Exit
  br Far
Latch:
  ldarg n
  ldc.i4.1
  sub
  starg n
  br Head
Exit:
  ldc.i4.0
  ret
Far:
  ldloc x
  ldc.i4.1
  add
  stloc x
  br Latch
}`, []int{1, 2, 3, 5}},
		{"irreducible", `.method static void M(int n) {
  ldarg n
  brtrue B
A:
  nop
B:
  ldarg n
  brtrue A
  ret
}`, []int{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build(t, tt.method)
			loops := g.Loops()
			var got []int
			for _, id := range loops.ToArray() {
				got = append(got, int(id))
			}
			if !equalInts(got, tt.want) {
				t.Errorf("Loops() = %v, want %v", got, tt.want)
			}
		})
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestBlockQueries(t *testing.T) {
	g := build(t, ternary)
	b1 := g.Blocks[1]
	if got := g.BlockContaining(b1.Start + 1); got != b1 {
		t.Errorf("BlockContaining(%d) = %v, want %s", b1.Start+1, got, b1)
	}
	if got := g.BlocksIn(b1.Start, g.Blocks[3].Start); len(got) != 2 {
		t.Errorf("BlocksIn = %v, want 2 blocks", got)
	}
}

func TestFprint(t *testing.T) {
	g := build(t, ternary)
	var buf bytes.Buffer
	Fprint(&buf, g)
	out := buf.String()
	for _, want := range []string{"b0 [IL_0000, IL_0008) if stack() -> b2 b1", "stack(int)", "ret"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
