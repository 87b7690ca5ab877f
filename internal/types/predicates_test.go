package types

import "testing"

func TestIdentical(t *testing.T) {
	tests := []struct {
		name string
		a, b Type
		want bool
	}{
		{"same basic", Typ[Int32], Typ[Int32], true},
		{"diff basic", Typ[Int32], Typ[Uint32], false},
		{"same array", NewArray(Typ[Int32], 1), NewArray(Typ[Int32], 1), true},
		{"diff array rank", NewArray(Typ[Int32], 1), NewArray(Typ[Int32], 2), false},
		{"diff array elem", NewArray(Typ[Int32], 1), NewArray(Typ[Int64], 1), false},
		{"same ptr", NewPointer(Typ[Int32]), NewPointer(Typ[Int32]), true},
		{"diff ptr", NewPointer(Typ[Int32]), NewPointer(Typ[Int8]), false},
		{"same byref", NewByRef(Typ[Int32]), NewByRef(Typ[Int32]), true},
		{"ptr vs byref", NewPointer(Typ[Int32]), NewByRef(Typ[Int32]), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Identical(tt.a, tt.b)
			if got != tt.want {
				t.Errorf("Identical(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestIdenticalNamed(t *testing.T) {
	a := NewNamed(NewTypeName("A", nil), Class)
	a2 := NewNamed(NewTypeName("A", nil), Class)

	if !Identical(a, a) {
		t.Error("a named type should be identical to itself")
	}
	if Identical(a, a2) {
		t.Error("distinct named types with the same name should not be identical")
	}
}

func TestPredicates(t *testing.T) {
	color := NewNamed(NewTypeName("Color", nil), Enum)
	color.SetEnumUnderlying(Typ[Uint8])
	point := NewNamed(NewTypeName("Point", nil), ValueType)
	handler := NewNamed(NewTypeName("Handler", nil), Delegate)

	tests := []struct {
		name string
		got  bool
		want bool
	}{
		{"int integral", IsIntegral(Typ[Int32]), true},
		{"char integral", IsIntegral(Typ[Char]), true},
		{"enum integral", IsIntegral(color), true},
		{"enum unsigned", IsUnsigned(color), true},
		{"enum not byte", IsKind(color, Uint8), false},
		{"double float", IsFloat(Typ[Float64]), true},
		{"string reference", IsReference(Typ[String]), true},
		{"array reference", IsReference(NewArray(Typ[Int32], 1)), true},
		{"delegate reference", IsReference(handler), true},
		{"valuetype not reference", IsReference(point), false},
		{"valuetype", IsValueType(point), true},
		{"null untyped", IsUntyped(Typ[UntypedNull]), true},
		{"null", IsNull(Typ[UntypedNull]), true},
		{"delegate", IsDelegate(handler), true},
		{"byref pointer-like", IsPointerLike(NewByRef(Typ[Int32])), true},
		{"void", IsVoid(Typ[Void]), true},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestAssignableTo(t *testing.T) {
	base := NewNamed(NewTypeName("Base", nil), Class)
	derived := NewNamed(NewTypeName("Derived", nil), Class)
	derived.SetBase(base)

	tests := []struct {
		name string
		v, t Type
		want bool
	}{
		{"null to class", Typ[UntypedNull], base, true},
		{"null to int", Typ[UntypedNull], Typ[Int32], false},
		{"derived to base", derived, base, true},
		{"base to derived", base, derived, false},
		{"class to object", derived, Typ[Object], true},
		{"int to object", Typ[Int32], Typ[Object], false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AssignableTo(tt.v, tt.t); got != tt.want {
				t.Errorf("AssignableTo(%s, %s) = %v, want %v", tt.v, tt.t, got, tt.want)
			}
		})
	}
}

func TestDefaultType(t *testing.T) {
	if got := DefaultType(Typ[UntypedInt]); got != Typ[Int32] {
		t.Errorf("DefaultType(untyped int) = %s, want int", got)
	}
	if got := DefaultType(Typ[UntypedNull]); got != Typ[Object] {
		t.Errorf("DefaultType(null) = %s, want object", got)
	}
	if got := DefaultType(Typ[Int64]); got != Typ[Int64] {
		t.Errorf("DefaultType(long) = %s, want long", got)
	}
}

func TestTypeStrings(t *testing.T) {
	tests := []struct {
		typ  Type
		want string
	}{
		{Typ[Int32], "int"},
		{NewArray(Typ[Int32], 1), "int[]"},
		{NewArray(Typ[String], 2), "string[,]"},
		{NewPointer(Typ[Uint8]), "byte*"},
		{NewByRef(Typ[Bool]), "ref bool"},
		{NewFunc([]*Var{NewVar("a", Typ[Int32], 0)}, nil), "void(int)"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
