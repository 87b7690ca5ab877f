package il

import (
	"testing"

	"github.com/you-not-fish/destack/internal/types"
)

func TestOpTable(t *testing.T) {
	seen := make(map[string]Op)
	for op := Op(1); op < opCount; op++ {
		name := op.String()
		if name == "" {
			t.Errorf("op %d has no name", op)
			continue
		}
		if prev, ok := seen[name]; ok {
			t.Errorf("ops %d and %d share the name %q", prev, op, name)
		}
		seen[name] = op
		if got := Lookup(name); got != op {
			t.Errorf("Lookup(%q) = %v, want %v", name, got, op)
		}
	}
	if Lookup("ldc.i4.s") != Invalid {
		t.Error("short forms are folded by the reader and should not be in the table")
	}
}

func TestOpFlow(t *testing.T) {
	tests := []struct {
		op            Op
		branch        bool
		unconditional bool
	}{
		{Br, true, true},
		{Brtrue, true, false},
		{Switch, true, false},
		{Leave, true, true},
		{Ret, false, true},
		{Throw, false, true},
		{Endfinally, false, true},
		{Add, false, false},
		{Call, false, false},
	}
	for _, tt := range tests {
		if got := tt.op.IsBranch(); got != tt.branch {
			t.Errorf("%s.IsBranch() = %v, want %v", tt.op, got, tt.branch)
		}
		if got := tt.op.Unconditional(); got != tt.unconditional {
			t.Errorf("%s.Unconditional() = %v, want %v", tt.op, got, tt.unconditional)
		}
	}
}

func TestCallStackEffect(t *testing.T) {
	owner := types.NewNamed(types.NewTypeName("C", nil), types.Class)
	params := []*types.Var{
		types.NewVar("a", types.Typ[types.Int32], 1),
		types.NewVar("b", types.Typ[types.Int32], 2),
	}
	inst := types.NewMethod("M", false)
	inst.SetSignature(types.NewFunc(params, types.Typ[types.Int32]))
	owner.AddMethod(inst)
	static := types.NewMethod("S", true)
	static.SetSignature(types.NewFunc(params, nil))
	owner.AddMethod(static)
	ctor := types.NewMethod(".ctor", false)
	ctor.SetSignature(types.NewFunc(params, nil))
	owner.AddMethod(ctor)

	tests := []struct {
		ins        *Instruction
		pops, push int
	}{
		{&Instruction{Op: Callvirt, Operand: inst}, 3, 1},
		{&Instruction{Op: Call, Operand: static}, 2, 0},
		{&Instruction{Op: Newobj, Operand: ctor}, 2, 1},
		{&Instruction{Op: Stelem, Operand: types.Typ[types.Int32]}, 3, 0},
		{&Instruction{Op: Dup}, 1, 2},
	}
	for _, tt := range tests {
		if got := tt.ins.Pops(false); got != tt.pops {
			t.Errorf("%s: Pops() = %d, want %d", tt.ins, got, tt.pops)
		}
		if got := tt.ins.Pushes(); got != tt.push {
			t.Errorf("%s: Pushes() = %d, want %d", tt.ins, got, tt.push)
		}
	}

	ret := &Instruction{Op: Ret}
	if ret.Pops(true) != 1 || ret.Pops(false) != 0 {
		t.Errorf("ret pops = %d/%d, want 1/0", ret.Pops(true), ret.Pops(false))
	}
}

func TestOpSize(t *testing.T) {
	tests := []struct {
		op      Op
		operand any
		want    int
	}{
		{Nop, nil, 1},
		{Ldloc, 3, 3},
		{LdcI4, int32(7), 5},
		{LdcI8, int64(7), 9},
		{Br, 12, 5},
		{Switch, []int{1, 2, 3}, 17},
	}
	for _, tt := range tests {
		if got := OpSize(tt.op, tt.operand); got != tt.want {
			t.Errorf("OpSize(%s) = %d, want %d", tt.op, got, tt.want)
		}
	}
}

func TestFlags(t *testing.T) {
	f := Loops | StackElimination
	if !f.Has(Loops) || f.Has(ReadOnly) {
		t.Errorf("Has on %s is wrong", f)
	}
	if got := f.String(); got != "loops|unstack" {
		t.Errorf("String() = %q, want %q", got, "loops|unstack")
	}
	if got := Flags(0).String(); got != "none" {
		t.Errorf("String() = %q, want none", got)
	}
}

func TestSortHandlers(t *testing.T) {
	b := &Body{Handlers: []*ExceptionHandler{
		{TryStart: 4, TryEnd: 10},
		{TryStart: 0, TryEnd: 20},
		{TryStart: 4, TryEnd: 30},
	}}
	b.SortHandlers()
	want := [][2]int{{0, 20}, {4, 30}, {4, 10}}
	for i, h := range b.Handlers {
		if h.TryStart != want[i][0] || h.TryEnd != want[i][1] {
			t.Errorf("handler %d = [%d,%d), want [%d,%d)", i, h.TryStart, h.TryEnd, want[i][0], want[i][1])
		}
	}
}

func TestQuoteName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Main", "Main"},
		{"System.Console", "System.Console"},
		{"<>c__DisplayClass1", "<>c__DisplayClass1"},
		{".ctor", ".ctor"},
		{"has space", `"has space"`},
		{"1abc", `"1abc"`},
	}
	for _, tt := range tests {
		if got := QuoteName(tt.in); got != tt.want {
			t.Errorf("QuoteName(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
