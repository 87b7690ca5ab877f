package ast

import (
	"strings"
	"testing"

	"github.com/you-not-fish/destack/internal/types"
)

var (
	tInt  = types.Typ[types.Int32]
	tBool = types.Typ[types.Bool]
)

type fixture struct {
	a    *Arena
	x, y *Local
	o    *Local
	c    *types.Var
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	a := NewArena()
	return &fixture{
		a: a,
		x: a.NewLocal("x", tInt, 0),
		y: a.NewLocal("y", tInt, 1),
		o: a.NewLocal("o", types.Typ[types.Object], 2),
		c: types.NewVar("c", tBool, 0),
	}
}

func (f *fixture) param() Expr {
	p := New(f.a, &ParamRef{Param: f.c})
	p.SetType(tBool)
	return p
}

func (f *fixture) bin(op BinaryOp, x, y Expr) Expr {
	b := New(f.a, &Binary{Op: op, X: x, Y: y})
	if op.IsComparison() {
		b.SetType(tBool)
	} else {
		b.SetType(tInt)
	}
	return b
}

func (f *fixture) cond(c, x, y Expr) Expr {
	e := New(f.a, &Cond{C: c, T: x, F: y})
	e.SetType(x.Type())
	return e
}

func TestPrintExpr(t *testing.T) {
	f := newFixture(t)
	a := f.a
	x, y := func() Expr { return a.Ref(f.x) }, func() Expr { return a.Ref(f.y) }

	str := New(a, &Const{Value: "hi"})
	str.SetType(types.Typ[types.String])
	ch := a.Int('a', types.Typ[types.Char])
	dbl := New(a, &Const{Value: 1.0})
	dbl.SetType(types.Typ[types.Float64])
	flt := New(a, &Const{Value: 2.5})
	flt.SetType(types.Typ[types.Float32])

	tests := []struct {
		e    Expr
		want string
	}{
		{f.bin(Add, x(), a.Int(1, tInt)), "x + 1"},
		{f.bin(Mul, f.bin(Add, x(), y()), a.Int(2, tInt)), "(x + y) * 2"},
		{f.bin(Sub, x(), f.bin(Sub, y(), a.Int(1, tInt))), "x - (y - 1)"},
		{f.bin(Sub, f.bin(Sub, x(), y()), a.Int(1, tInt)), "x - y - 1"},
		{f.cond(f.param(), a.Int(1, tInt), a.Int(0, tInt)), "c ? 1 : 0"},
		{AndAlso(a, f.param(), f.bin(Lt, x(), y())), "c && x < y"},
		{OrElse(a, f.param(), AndAlso(a, f.param(), f.param())), "c || c && c"},
		{AndAlso(a, OrElse(a, f.param(), f.param()), f.param()), "(c || c) && c"},
		{a.Bool(true), "true"},
		{a.Int(5, types.Typ[types.Int64]), "5L"},
		{a.Int(-1, types.Typ[types.Uint32]), "4294967295u"},
		{ch, "'a'"},
		{a.Null(), "null"},
		{str, `"hi"`},
		{dbl, "1.0"},
		{flt, "2.5f"},
		{New(a, &Assign{Target: x(), Value: f.bin(Add, x(), a.Int(1, tInt))}), "x = x + 1"},
		{New(a, &OpAssign{Op: Add, Target: x(), Value: a.Int(1, tInt), Postfix: true}), "x++"},
		{New(a, &OpAssign{Op: Mul, Target: x(), Value: y()}), "x *= y"},
		{New(a, &Unary{Op: Neg, X: f.bin(Add, x(), y())}), "-(x + y)"},
		{New(a, &Conv{X: x(), To: types.Typ[types.Int64]}), "(long)x"},
		{New(a, &Conv{X: x(), To: types.Typ[types.Uint8], Checked: true}), "checked((byte)x)"},
		{New(a, &Cast{Kind: IsInst, X: a.Ref(f.o), To: types.Typ[types.String]}), "o as string"},
		{New(a, &ArrayLen{X: a.Ref(f.o)}), "o.Length"},
		{New(a, &DefaultValue{Of: tInt}), "default(int)"},
		{New(a, &PopValue{}), "pop"},
	}
	for _, tt := range tests {
		if got := String(tt.e); got != tt.want {
			t.Errorf("String = %q, want %q", got, tt.want)
		}
	}
}

func TestPrintStmt(t *testing.T) {
	f := newFixture(t)
	a := f.a
	lbl := a.NewLabel(0x10)
	body := a.Block(0, 0x20,
		New(a, &LocalDecl{Local: f.x, Init: a.Int(1, tInt)}),
		New(a, &If{Cond: f.param(), Then: a.Block(0, 0, New(a, &Return{X: a.Ref(f.x)}))}),
		New(a, &LabelStmt{Label: lbl}),
		New(a, &Push{X: f.cond(f.param(), a.Int(1, tInt), a.Int(0, tInt))}),
		a.Goto(lbl),
	)

	want := `{
  int x = 1;
  if (c) {
    return x;
  }
IL_0010:
  push (c ? 1 : 0);
  goto IL_0010;
}
`
	if got := String(body); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrintTry(t *testing.T) {
	f := newFixture(t)
	a := f.a
	exc := types.NewNamed(types.NewTypeName("System.Exception", nil), types.Class)
	e := a.NewLocal("e", exc, -1)
	try := New(a, &Try{
		Body: a.Block(0, 0, New(a, &ExprStmt{X: New(a, &Assign{Target: a.Ref(f.x), Value: a.Int(1, tInt)})})),
		Catches: []*Catch{
			New(a, &Catch{Type: exc, Var: e, Body: a.Block(0, 0, New(a, &Throw{}))}),
		},
		Finally: a.Block(0, 0),
	})
	want := `try {
  x = 1;
} catch (System.Exception e) {
  throw;
} finally {
}
`
	if got := String(try); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrintDelegate(t *testing.T) {
	f := newFixture(t)
	a := f.a
	fn := types.NewNamed(types.NewTypeName("F", nil), types.Delegate)
	l := a.NewLocal("f", fn, 3)
	d := New(a, &AnonymousDelegate{
		Delegate: fn,
		Params:   []*types.Var{f.c},
		Body:     a.Block(0, 0, New(a, &Return{X: f.param()})),
	})
	d.SetType(fn)

	tests := []struct {
		s    Stmt
		want string
	}{
		{New(a, &LocalDecl{Local: l, Init: d}), "F f = delegate (bool c) {"},
		{New(a, &ExprStmt{X: New(a, &Assign{Target: a.Ref(l), Value: d})}), "f = delegate (bool c) {"},
		{New(a, &Return{X: d}), "return delegate (bool c) {"},
	}
	for _, tt := range tests {
		got := String(tt.s)
		if !strings.HasPrefix(got, tt.want) || strings.Contains(got, "(delegate") {
			t.Errorf("got:\n%s\nwant it to start with %q", got, tt.want)
		}
		if !strings.Contains(got, "return c;") {
			t.Errorf("delegate body missing:\n%s", got)
		}
	}
}

func TestPrintSwitch(t *testing.T) {
	f := newFixture(t)
	a := f.a
	l1, l2 := a.NewLabel(0x20), a.NewLabel(0x30)
	sw := New(a, &Switch{X: a.Ref(f.x), Cases: []*Case{
		New(a, &Case{Value: 0, Body: a.Block(0, 0)}),
		New(a, &Case{Value: 1, Body: a.Block(0, 0, a.Goto(l1))}),
		New(a, &Case{Value: 2, Body: a.Block(0, 0, a.Goto(l2))}),
	}})
	want := `switch (x) {
case 0:
case 1:
  goto IL_0020;
case 2:
  goto IL_0030;
}
`
	if got := String(sw); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestInvert(t *testing.T) {
	f := newFixture(t)
	a := f.a
	lt := f.bin(Lt, a.Ref(f.x), a.Ref(f.y))
	not := New(a, &Unary{Op: Not, X: f.param()})
	not.SetType(tBool)

	fx := New(a, &LocalRef{Local: f.x})
	fx.SetType(types.Typ[types.Float64])
	flt := f.bin(Lt, fx, a.Ref(f.x))

	tests := []struct {
		e    Expr
		want string
	}{
		{lt, "x >= y"},
		{f.bin(Eq, a.Ref(f.x), a.Ref(f.y)), "x != y"},
		{not, "c"},
		{f.param(), "!c"},
		{a.Ref(f.x), "x == 0"},
		{a.Ref(f.o), "o == null"},
		{flt, "!(x < x)"},
		{a.Bool(false), "true"},
		{AndAlso(a, f.param(), f.param()), "c ? !c : true"},
	}
	for _, tt := range tests {
		if got := String(Invert(a, tt.e)); got != tt.want {
			t.Errorf("Invert(%s) = %q, want %q", String(tt.e), got, tt.want)
		}
	}
	if Invert(a, not) != not.X {
		t.Errorf("Invert(!c) should return the operand itself")
	}
}

func TestTruth(t *testing.T) {
	f := newFixture(t)
	a := f.a
	if got := String(Truth(a, a.Ref(f.x))); got != "x != 0" {
		t.Errorf("Truth(x) = %q", got)
	}
	if got := String(Truth(a, a.Ref(f.o))); got != "o != null" {
		t.Errorf("Truth(o) = %q", got)
	}
	p := f.param()
	if Truth(a, p) != p {
		t.Errorf("Truth of a boolean should be the identity")
	}
}

func TestEqualClone(t *testing.T) {
	f := newFixture(t)
	a := f.a
	e := f.bin(Add, a.Ref(f.x), New(a, &Call{Method: types.NewMethod("M", true), Args: []Expr{a.Ref(f.y)}}))
	c := Clone(a, e)
	if !Equal(e, c) {
		t.Fatalf("clone is not equal to the original")
	}
	if c.ID() == e.ID() || c.ID() == 0 {
		t.Errorf("clone ID = %d, original %d", c.ID(), e.ID())
	}
	if c.(*Binary).X.(*LocalRef).Local != f.x {
		t.Errorf("clone does not share the local")
	}
	if Equal(e, f.bin(Add, a.Ref(f.y), a.Ref(f.x))) {
		t.Errorf("different expressions compare equal")
	}
	if Equal(a.Int(1, tInt), a.Int(1, types.Typ[types.Int64])) {
		t.Errorf("constants of different types compare equal")
	}
}

func TestWalkAndRewrite(t *testing.T) {
	f := newFixture(t)
	a := f.a
	body := a.Block(0, 0,
		New(a, &ExprStmt{X: New(a, &Assign{Target: a.Ref(f.x), Value: f.bin(Add, a.Ref(f.x), a.Ref(f.y))})}),
		New(a, &If{Cond: f.param(), Then: a.Block(0, 0, New(a, &Return{X: a.Ref(f.x)}))}),
	)

	refs := 0
	Inspect(body, func(n Node) bool {
		if r, ok := n.(*LocalRef); ok && r.Local == f.x {
			refs++
		}
		return true
	})
	if refs != 3 {
		t.Errorf("found %d references to x, want 3", refs)
	}

	Rewrite(body, func(e Expr) Expr {
		if r, ok := e.(*LocalRef); ok && r.Local == f.y {
			return a.Int(0, tInt)
		}
		return e
	})
	want := `{
  x = x + 0;
  if (c) {
    return x;
  }
}
`
	if got := String(body); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestForEachBlock(t *testing.T) {
	a := NewArena()
	inner := a.Block(1, 2)
	mid := a.Block(1, 3, inner)
	root := a.Block(0, 4, mid, New(a, &If{Cond: a.Bool(true), Then: a.Block(3, 4)}))
	var order []*Block
	ForEachBlock(root, func(b *Block) { order = append(order, b) })
	if len(order) != 4 || order[0] != inner || order[1] != mid || order[3] != root {
		t.Errorf("unexpected visiting order")
	}
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	a := f.a
	body := a.Block(0, 0, New(a, &Return{X: a.Ref(f.x)}))

	var js strings.Builder
	if err := FprintJSON(&js, body); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"kind": "Return"`, `"text": "x"`, `"type": "int"`} {
		if !strings.Contains(js.String(), want) {
			t.Errorf("JSON output missing %s:\n%s", want, js.String())
		}
	}

	var ym strings.Builder
	if err := FprintYAML(&ym, body); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(ym.String(), "kind: Return") {
		t.Errorf("YAML output missing Return:\n%s", ym.String())
	}
}
