package types

import "testing"

func TestArithResult(t *testing.T) {
	color := NewNamed(NewTypeName("Color", nil), Enum)
	ptr := NewPointer(Typ[Uint8])
	obj := NewNamed(NewTypeName("Obj", nil), Class)

	tests := []struct {
		name string
		x, y Type
		want Type
	}{
		{"bool bool", Typ[Bool], Typ[Bool], Typ[Bool]},
		{"const const", Typ[UntypedInt], Typ[UntypedInt], Typ[UntypedInt]},
		{"int const", Typ[Int32], Typ[UntypedInt], Typ[Int32]},
		{"const byte", Typ[UntypedInt], Typ[Uint8], Typ[Uint32]},
		{"const long widens", Typ[UntypedInt], Typ[Int64], Typ[Int64]},
		{"ulong const widens", Typ[Uint64], Typ[UntypedInt], Typ[Uint64]},
		{"sbyte short", Typ[Int8], Typ[Int16], Typ[Int32]},
		{"byte ushort", Typ[Uint8], Typ[Uint16], Typ[Uint32]},
		{"byte int", Typ[Uint8], Typ[Int32], Typ[Int32]},
		{"uint uint", Typ[Uint32], Typ[Uint32], Typ[Uint32]},
		{"int long", Typ[Int32], Typ[Int64], Typ[Int64]},
		{"uint ulong", Typ[Uint32], Typ[Uint64], Typ[Uint64]},
		{"int ulong", Typ[Int32], Typ[Uint64], Typ[Int64]},
		{"float double", Typ[Float32], Typ[Float64], Typ[Float64]},
		{"int float", Typ[Int32], Typ[Float32], Typ[Float32]},
		{"nint int", Typ[IntPtr], Typ[Int32], Typ[IntPtr]},
		{"pointer int", ptr, Typ[Int32], ptr},
		{"int pointer", Typ[Int32], ptr, ptr},
		{"same enum", color, color, color},
		{"enum int", color, Typ[Int32], Typ[Int32]},
		{"fallback left", obj, Typ[Int32], obj},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ArithResult(tt.x, tt.y)
			if !Identical(got, tt.want) {
				t.Errorf("ArithResult(%s, %s) = %s, want %s", tt.x, tt.y, got, tt.want)
			}
		})
	}
}

func TestPromote(t *testing.T) {
	tests := []struct {
		in, want Type
	}{
		{Typ[Int8], Typ[Int32]},
		{Typ[Int16], Typ[Int32]},
		{Typ[Uint8], Typ[Uint32]},
		{Typ[Char], Typ[Uint32]},
		{Typ[Int64], Typ[Int64]},
		{Typ[Float32], Typ[Float32]},
	}
	for _, tt := range tests {
		if got := Promote(tt.in); got != tt.want {
			t.Errorf("Promote(%s) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestClassOf(t *testing.T) {
	point := NewNamed(NewTypeName("Point", nil), ValueType)
	tests := []struct {
		in   Type
		want StackClass
	}{
		{Typ[Bool], ClassBool},
		{Typ[UntypedInt], ClassConst},
		{Typ[UntypedNull], ClassRef},
		{Typ[String], ClassRef},
		{NewByRef(Typ[Int32]), ClassPtr},
		{point, ClassValue},
		{nil, ClassInvalid},
	}
	for _, tt := range tests {
		if got := ClassOf(tt.in); got != tt.want {
			t.Errorf("ClassOf(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestShiftAndStackType(t *testing.T) {
	if got := ShiftResult(Typ[Uint16]); got != Typ[Uint32] {
		t.Errorf("ShiftResult(ushort) = %s, want uint", got)
	}
	if got := ShiftResult(Typ[Int64]); got != Typ[Int64] {
		t.Errorf("ShiftResult(long) = %s, want long", got)
	}
	if got := StackType(Typ[Bool]); got != Typ[Int32] {
		t.Errorf("StackType(bool) = %s, want int", got)
	}
	if got := StackType(Typ[Float32]); got != Typ[Float32] {
		t.Errorf("StackType(float) = %s, want float", got)
	}
}

func TestSizeof(t *testing.T) {
	tests := []struct {
		in   Type
		want int64
	}{
		{Typ[Bool], 1},
		{Typ[Char], 2},
		{Typ[Int32], 4},
		{Typ[Float64], 8},
		{Typ[IntPtr], PtrSize},
		{Typ[String], 0},
	}
	for _, tt := range tests {
		if got := Sizeof(tt.in); got != tt.want {
			t.Errorf("Sizeof(%s) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
