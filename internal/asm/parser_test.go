package asm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/you-not-fish/destack/internal/il"
	"github.com/you-not-fish/destack/internal/types"
)

const sample = `.format "1.0"
.module Sample

.class enum Color : byte {
}

.class Program {
  .field static synthetic int[] data = bytes "01000000 02000000"
  .field object gate

  .method static int Max(int a, int b) {
    .maxstack 2
    ldarg a
    ldarg.1
    bge.s Big
    ldarg b
    ret
  Big:
    ldarg a
    ret
  }

  .method void Locked() {
    .locals init (bool taken, object monitor)
    .try Start to End finally handler Fin to Done
    .scope Start to Done (taken)
    ldc.i4.0
    stloc.0
  Start:
    .line 7
    ldarg.0
    ldfld object Program::gate
    dup
    stloc monitor
    ldloca.s taken
    call void System.Threading.Monitor::Enter(object, bool&)
    call instance void Program::Helper()
    leave.s Done
  End:
  Fin:
    ldloc.0
    brfalse.s Skip
    ldloc.1
    call void System.Threading.Monitor::Exit(object)
  Skip:
    endfinally
  Done:
    ret
  }

  .method void Helper() {
    ldarg this
    ldc.i4 3
    switch (A, B, A)
    ret
  A:
    ret
  B:
    ret
  }
}
`

func mustParse(t *testing.T, src string) *il.Module {
	t.Helper()
	mod, err := ParseString("sample.il", src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return mod
}

func method(t *testing.T, mod *il.Module, typ, name string) *il.Body {
	t.Helper()
	n := mod.LookupType(typ)
	if n == nil {
		t.Fatalf("type %s not found", typ)
	}
	m := n.LookupMethod(name)
	if m == nil {
		t.Fatalf("method %s::%s not found", typ, name)
	}
	b := mod.BodyOf(m)
	if b == nil {
		t.Fatalf("method %s::%s has no body", typ, name)
	}
	return b
}

func TestParseModule(t *testing.T) {
	mod := mustParse(t, sample)
	if mod.Name != "Sample" || mod.Version != "1.0" {
		t.Errorf("module = %s %s, want Sample 1.0", mod.Name, mod.Version)
	}
	if len(mod.Types) != 2 {
		t.Fatalf("got %d declared types, want 2", len(mod.Types))
	}
	color := mod.LookupType("Color")
	if color.Kind() != types.Enum || color.Underlying() != types.Typ[types.Uint8] {
		t.Errorf("Color = %s of %s, want enum of byte", color.Kind(), color.Underlying())
	}
	prog := mod.LookupType("Program")
	data := prog.LookupField("data")
	if data == nil || !data.Static() || !data.Synthetic() {
		t.Fatalf("field data = %+v, want static synthetic", data)
	}
	if !bytes.Equal(data.Data(), []byte{1, 0, 0, 0, 2, 0, 0, 0}) {
		t.Errorf("data blob = %x", data.Data())
	}
	if got := len(mod.Methods()); got != 3 {
		t.Errorf("Methods() has %d entries, want 3", got)
	}
}

func TestParseOffsetsAndBranches(t *testing.T) {
	mod := mustParse(t, sample)
	b := method(t, mod, "Program", "Max")

	// ldarg(3) ldarg(3) bge(5) ldarg(3) ret(1) | Big: ldarg ret
	wantOffsets := []int{0, 3, 6, 11, 14, 15, 18}
	if len(b.Instrs) != len(wantOffsets) {
		t.Fatalf("got %d instructions, want %d", len(b.Instrs), len(wantOffsets))
	}
	for i, ins := range b.Instrs {
		if ins.Offset != wantOffsets[i] {
			t.Errorf("instr %d (%s) at %d, want %d", i, ins.Op, ins.Offset, wantOffsets[i])
		}
	}
	if bge := b.Instrs[2]; bge.Op != il.Bge || bge.Target() != 15 {
		t.Errorf("bge.s = %s -> %d, want bge -> 15", bge.Op, bge.Target())
	}
	if ld := b.Instrs[1]; ld.Op != il.Ldarg || ld.Index() != 1 {
		t.Errorf("ldarg.1 = %s %d", ld.Op, ld.Index())
	}
	if b.CodeSize() != 19 {
		t.Errorf("CodeSize() = %d, want 19", b.CodeSize())
	}
}

func TestParseHandlersAndScopes(t *testing.T) {
	mod := mustParse(t, sample)
	b := method(t, mod, "Program", "Locked")

	if len(b.Handlers) != 1 {
		t.Fatalf("got %d handlers, want 1", len(b.Handlers))
	}
	h := b.Handlers[0]
	start := b.Instrs[2].Offset // ldarg.0 after ldc.i4.0; stloc.0
	if h.Kind != il.Finally || h.TryStart != start {
		t.Errorf("handler = %s at %d, want finally at %d", h.Kind, h.TryStart, start)
	}
	if h.TryEnd != h.HandlerStart {
		t.Errorf("try end %d != handler start %d", h.TryEnd, h.HandlerStart)
	}
	if ret := b.InstrAt(h.HandlerEnd); ret == nil || ret.Op != il.Ret {
		t.Errorf("handler end %d is not the ret", h.HandlerEnd)
	}
	if len(b.Scopes) != 1 || b.Scopes[0].Locals[0].Name != "taken" {
		t.Errorf("scopes = %+v", b.Scopes)
	}
	if ld := b.Instrs[2]; ld.Loc.Line != 7 {
		t.Errorf("ldarg.0 line = %d, want 7", ld.Loc.Line)
	}

	enter := b.Instrs[7].Method()
	if !types.IsMethod(enter, types.MonitorType, types.Enter, 2) || !enter.Static() {
		t.Errorf("Enter = %v", enter)
	}
	if _, ok := enter.Params()[1].Type().(*types.ByRef); !ok {
		t.Errorf("Enter second parameter = %s, want by-ref", enter.Params()[1].Type())
	}
	helper := b.Instrs[8].Method()
	if helper.Static() || mod.BodyOf(helper) == nil {
		t.Errorf("forward reference to Helper did not bind to its declaration")
	}
}

func TestParseSwitch(t *testing.T) {
	mod := mustParse(t, sample)
	b := method(t, mod, "Program", "Helper")
	sw := b.Instrs[2]
	if sw.Op != il.Switch {
		t.Fatalf("instr 2 = %s, want switch", sw.Op)
	}
	targets := sw.Targets()
	if len(targets) != 3 || targets[0] != targets[2] || targets[0] == targets[1] {
		t.Errorf("switch targets = %v, want [A B A]", targets)
	}
	if b.Instrs[0].Index() != 0 {
		t.Errorf("ldarg this = %d, want 0", b.Instrs[0].Index())
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		word    string
		op      il.Op
		operand any
	}{
		{"ldc.i4.m1", il.LdcI4, int32(-1)},
		{"ldc.i4.8", il.LdcI4, int32(8)},
		{"ldloc.3", il.Ldloc, 3},
		{"conv.u1", il.Conv, types.Typ[types.Uint8]},
		{"conv.ovf.i4.un", il.ConvOvfUn, types.Typ[types.Int32]},
		{"ldelem.ref", il.Ldelem, types.Typ[types.Object]},
		{"stind.r8", il.Stind, types.Typ[types.Float64]},
		{"brtrue.s", il.Brtrue, nil},
		{"unbox.any", il.UnboxAny, nil},
		{"bogus.op", il.Invalid, nil},
	}
	for _, tt := range tests {
		op, operand, _ := normalize(tt.word)
		if op != tt.op || operand != tt.operand {
			t.Errorf("normalize(%q) = %s %v, want %s %v", tt.word, op, operand, tt.op, tt.operand)
		}
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"bad version", `.format "2.0" .module M`, "unsupported format version"},
		{"not semver", `.format "abc" .module M`, "invalid format version"},
		{"unknown opcode", `.format "1.0" .module M .class C { .method void F() { frob } }`, "unknown opcode frob"},
		{"undefined label", `.format "1.0" .module M .class C { .method void F() { br Nowhere } }`, "undefined label Nowhere"},
		{"bad local", `.format "1.0" .module M .class C { .method void F() { ldloc x } }`, "undefined local x"},
		{"duplicate label", `.format "1.0" .module M .class C { .method void F() { L: nop L: ret } }`, "defined twice"},
		{"missing module", `.format "1.0"`, "expected .module"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString("bad.il", tt.src)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not contain %q", err, tt.want)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	mod := mustParse(t, sample)
	var first bytes.Buffer
	il.FprintModule(&first, mod)

	again, err := ParseString("printed.il", first.String())
	if err != nil {
		t.Fatalf("printed module does not parse: %v\n%s", err, first.String())
	}
	var second bytes.Buffer
	il.FprintModule(&second, again)
	if first.String() != second.String() {
		t.Errorf("round trip differs:\n--- first\n%s\n--- second\n%s", first.String(), second.String())
	}

	b := method(t, again, "Program", "Locked")
	orig := method(t, mod, "Program", "Locked")
	if b.CodeSize() != orig.CodeSize() || len(b.Handlers) != len(orig.Handlers) {
		t.Errorf("reparsed body differs: size %d/%d, handlers %d/%d",
			b.CodeSize(), orig.CodeSize(), len(b.Handlers), len(orig.Handlers))
	}
}
