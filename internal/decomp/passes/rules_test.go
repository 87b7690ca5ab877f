package passes

import (
	"strings"
	"testing"

	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
	"github.com/you-not-fish/destack/internal/il"
)

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

func TestTernary(t *testing.T) {
	ctx := construct(t, ternary)
	contains(t, ctx, "push (c ? 1 : 0);", "x = pop;")
	lacks(t, ctx, "goto")

	ctx = decompile(t, ternary)
	contains(t, ctx, "x = c ? 1 : 0;")
}

func TestShortCircuit(t *testing.T) {
	ctx := decompile(t, `.method static int M(int a, int b) {
  ldarg a
  brtrue Yes
  ldarg b
  brtrue Yes
  ldc.i4.0
  ret
Yes:
  ldc.i4.1
  ret
}`)
	contains(t, ctx, "if (a == 0 && b == 0) {", "return 0;", "return 1;")
	lacks(t, ctx, "goto")
}

func TestIfElse(t *testing.T) {
	ctx := decompile(t, `.method static void M(bool c) {
  ldarg c
  brfalse Else
  call void C::F()
  br Done
Else:
  call void C::G()
Done:
  ret
}
.method static void F() {
  ret
}
.method static void G() {
  ret
}`)
	contains(t, ctx, "if (c) {", "} else {", "C.F();", "C.G();")
	lacks(t, ctx, "goto", "!c")
}

func TestSwitchMerge(t *testing.T) {
	ctx := construct(t, `.method static void M(int x) {
  ldarg x
  switch (A, A, B)
  ret
A:
  call void C::F()
  ret
B:
  ret
}
.method static void F() {
  ret
}`)
	var sw *ast.Switch
	for _, s := range ctx.Root.Stmts {
		if s, ok := s.(*ast.Switch); ok {
			sw = s
		}
	}
	if sw == nil {
		t.Fatalf("no switch:\n%s", ast.String(ctx.Root))
	}
	if len(sw.Cases) != 3 {
		t.Fatalf("got %d cases, want 3", len(sw.Cases))
	}
	if n := len(sw.Cases[0].Body.Stmts); n != 0 {
		t.Errorf("case 0 has %d statements, want it to fall through", n)
	}
	for _, c := range sw.Cases[1:] {
		if n := len(c.Body.Stmts); n == 0 {
			t.Errorf("case %d is empty", c.Value)
		}
	}
	contains(t, ctx, "C.F();")
	lacks(t, ctx, "goto")
}

const tryCatch = `.method static void M() {
  .locals (System.Exception e)
  .try Start to End catch System.Exception handler Catch to Done
Start:
  call void C::F()
  leave Done
End:
Catch:
  stloc e
  ldloc e
  throw
Done:
  ret
}
.method static void F() {
  ret
}`

func TestTryCatch(t *testing.T) {
	ctx := decompile(t, tryCatch)
	contains(t, ctx, "try {", "} catch (System.Exception e) {", "throw e;")
	lacks(t, ctx, "System.Exception e;", "pop", "goto")
}

func TestTryCatchMovesBody(t *testing.T) {
	ctx := construct(t, tryCatch)
	out := ast.String(ctx.Root)
	if n := strings.Count(out, "C.F();"); n != 1 {
		t.Errorf("try body printed %d times, want once:\n%s", n, out)
	}
	tries := 0
	for _, s := range ctx.Root.Stmts {
		if _, ok := s.(*ast.Try); ok {
			tries++
		}
	}
	if tries != 1 {
		t.Errorf("got %d try statements at the root, want 1:\n%s", tries, out)
	}
	lacks(t, ctx, "System.Exception e;")
	if err := decomp.Verify(ctx); err != nil {
		t.Error(err)
	}
}

func TestTryDiscardedException(t *testing.T) {
	ctx := decompile(t, `.method static void M() {
  .try Start to End catch System.Exception handler Catch to Done
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
}`)
	contains(t, ctx, "} catch (System.Exception) {")
	lacks(t, ctx, "pop", "ex", "goto")
}

func TestTryFinally(t *testing.T) {
	ctx := decompile(t, `.method static void M() {
  .try Start to End finally handler Fin to Done
Start:
  call void C::F()
  leave Done
End:
Fin:
  call void C::F()
  endfinally
Done:
  ret
}
.method static void F() {
  ret
}`)
	contains(t, ctx, "try {", "} finally {")
	lacks(t, ctx, "endfinally", "goto")
}

const locked = `.field object gate
.method void M() {
  .locals init (bool taken, object monitor)
  .try Start to End finally handler Fin to Done
  ldc.i4.0
  stloc taken
Start:
  ldarg this
  ldfld object C::gate
  dup
  stloc monitor
  ldloca taken
  call void System.Threading.Monitor::Enter(object, bool&)
  call void C::F()
  leave Done
End:
Fin:
  ldloc taken
  brfalse Skip
  ldloc monitor
  call void System.Threading.Monitor::Exit(object)
Skip:
  endfinally
Done:
  ret
}
.method static void F() {
  ret
}`

func TestLock(t *testing.T) {
	ctx := construct(t, locked)
	contains(t, ctx, "lock (this.gate) {", "C.F();")
	lacks(t, ctx, "Monitor", "taken", "monitor")
	for i := 0; i < 2; i++ {
		if l := ctx.Local(i); !ctx.Unused(l) {
			t.Errorf("%s: refs %d assigns %d, want unused", l, ctx.Refs(l), ctx.Assigns(l))
		}
	}
}

func TestLockOldForm(t *testing.T) {
	ctx := construct(t, `.field object gate
.method void M() {
  .locals (object monitor)
  .try Start to End finally handler Fin to Done
  ldarg this
  ldfld object C::gate
  dup
  stloc monitor
  call void System.Threading.Monitor::Enter(object)
Start:
  call void C::F()
  leave Done
End:
Fin:
  ldloc monitor
  call void System.Threading.Monitor::Exit(object)
  endfinally
Done:
  ret
}
.method static void F() {
  ret
}`)
	contains(t, ctx, "lock (this.gate) {")
	lacks(t, ctx, "Monitor", "monitor")
}

func TestUsing(t *testing.T) {
	ctx := decompile(t, `.method static void M() {
  .locals (System.IDisposable r)
  .try Start to End finally handler Fin to Done
  call System.IDisposable C::Open()
  stloc r
Start:
  call void C::F()
  leave Done
End:
Fin:
  ldloc r
  brfalse Skip
  ldloc r
  callvirt instance void System.IDisposable::Dispose()
Skip:
  endfinally
Done:
  ret
}
.method static System.IDisposable Open() {
  ldnull
  ret
}
.method static void F() {
  ret
}`)
	contains(t, ctx, "using (r = C.Open()) {", "C.F();")
	lacks(t, ctx, "Dispose", "finally")
}

func TestArrayInitFromBlob(t *testing.T) {
	ctx := decompile(t, `.field static synthetic int[] data = bytes "01000000 02000000 03000000"
.method static int[] M() {
  ldc.i4.3
  newarr int
  dup
  ldtoken field int[] C::data
  call void System.Runtime.CompilerServices.RuntimeHelpers::InitializeArray(System.Array, System.RuntimeFieldHandle)
  ret
}`)
	contains(t, ctx, "return new int[] { 1, 2, 3 };")
	lacks(t, ctx, "InitializeArray", "stack_")
}

func TestArrayInitFromStores(t *testing.T) {
	ctx := decompile(t, `.method static int[] M(int a) {
  ldc.i4.3
  newarr int
  dup
  ldc.i4.0
  ldarg a
  stelem.i4
  dup
  ldc.i4.2
  ldc.i4.7
  stelem.i4
  ret
}`)
	contains(t, ctx, "return new int[] { a, 0, 7 };")
}

func TestCompound(t *testing.T) {
	ctx := decompile(t, `.field int count
.method void M(int n) {
  ldarg n
  ldc.i4.1
  add
  starg n
  ldarg this
  ldarg this
  ldfld int C::count
  ldarg n
  mul
  stfld int C::count
  ret
}`)
	contains(t, ctx, "n++;", "this.count *= n;")
}

func TestWhileToFor(t *testing.T) {
	ctx := decompile(t, `.method static void M(int n) {
  .locals (int i)
  ldc.i4.0
  stloc i
  br Cond
Body:
  call void C::F()
  ldloc i
  ldc.i4.1
  add
  stloc i
Cond:
  ldloc i
  ldarg n
  blt Body
  ret
}
.method static void F() {
  ret
}`)
	contains(t, ctx, "for (i = 0; i < n; i++) {", "C.F();")
	lacks(t, ctx, "goto", "while")
}

func TestDoWhile(t *testing.T) {
	ctx := decompile(t, `.method static int M(int n) {
  .locals (int s)
Top:
  ldloc s
  ldarg n
  add
  stloc s
  ldarg n
  ldc.i4.1
  sub
  starg n
  ldarg n
  brtrue Top
  ldloc s
  ret
}`)
	contains(t, ctx, "do {", "s += n;", "n--;", "} while (n != 0);")
	lacks(t, ctx, "goto", "Top")
}

func TestLoopBreak(t *testing.T) {
	ctx := decompile(t, `.method static void M(int n) {
Top:
  ldarg n
  brfalse Out
  call void C::F()
  br Top
Out:
  ret
}
.method static void F() {
  ret
}`)
	contains(t, ctx, "while (true) {", "break;")
	lacks(t, ctx, "goto")
}

func TestLoopsDisabled(t *testing.T) {
	ctx := translate(t, `.method static void M(int n) {
Top:
  call void C::F()
  ldarg n
  brtrue Top
  ret
}
.method static void F() {
  ret
}`)
	ctx.Flags &^= il.Loops
	if err := Fixpoint(ctx, Constructs(ctx.Flags), Config{Verify: true}); err != nil {
		t.Fatal(err)
	}
	contains(t, ctx, "goto")
	lacks(t, ctx, "do {")
}

func TestDeclUnify(t *testing.T) {
	ctx := construct(t, straight)
	before := len(ctx.Root.Stmts)
	decomp.EliminateStack(ctx)
	if !DeclUnify(ctx) {
		t.Fatal("DeclUnify changed nothing")
	}
	if got := len(ctx.Root.Stmts); got != before-1 {
		t.Errorf("got %d statements, want %d", got, before-1)
	}
	contains(t, ctx, "int x = a + b;")
	if err := decomp.Verify(ctx); err != nil {
		t.Error(err)
	}
}

func TestDeclUnifyReassigned(t *testing.T) {
	ctx := construct(t, `.method static int M(int a) {
  .locals (int x)
  ldarg a
  stloc x
  ldarg a
  ldc.i4.1
  add
  stloc x
  ldloc x
  ret
}`)
	decomp.EliminateStack(ctx)
	if DeclUnify(ctx) {
		t.Error("DeclUnify folded a local assigned twice")
	}
	contains(t, ctx, "int x;", "x = a;", "x = a + 1;", "return x;")
	lacks(t, ctx, "int x = ")
}

func TestFixpointIdempotent(t *testing.T) {
	for name, src := range map[string]string{
		"ternary": ternary, "try": tryCatch, "lock": locked, "straight": straight,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := construct(t, src)
			first := ast.String(ctx.Root)
			if err := Fixpoint(ctx, Constructs(ctx.Flags), Config{Verify: true}); err != nil {
				t.Fatal(err)
			}
			if second := ast.String(ctx.Root); second != first {
				t.Errorf("second run changed the tree:\n%s\nthen:\n%s", first, second)
			}
		})
	}
}
