package types

// StackClass is the numeric type class of a value on the evaluation stack.
// Binary operators are typed by a table indexed by the classes of both
// operands.
type StackClass int

const (
	ClassInvalid StackClass = iota
	ClassBool
	ClassChar
	ClassI1
	ClassU1
	ClassI2
	ClassU2
	ClassI4
	ClassU4
	ClassI8
	ClassU8
	ClassI   // native int
	ClassU   // native unsigned int
	ClassR4
	ClassR8
	ClassPtr // unmanaged pointer or by-ref
	ClassRef // object reference
	ClassValue
	ClassConst // untyped small integer constant
)

var classNames = [...]string{
	ClassInvalid: "invalid",
	ClassBool:    "bool",
	ClassChar:    "char",
	ClassI1:      "i1",
	ClassU1:      "u1",
	ClassI2:      "i2",
	ClassU2:      "u2",
	ClassI4:      "i4",
	ClassU4:      "u4",
	ClassI8:      "i8",
	ClassU8:      "u8",
	ClassI:       "i",
	ClassU:       "u",
	ClassR4:      "r4",
	ClassR8:      "r8",
	ClassPtr:     "ptr",
	ClassRef:     "ref",
	ClassValue:   "value",
	ClassConst:   "const",
}

func (c StackClass) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return "?"
}

var basicClass = [...]StackClass{
	Bool:        ClassBool,
	Char:        ClassChar,
	Int8:        ClassI1,
	Uint8:       ClassU1,
	Int16:       ClassI2,
	Uint16:      ClassU2,
	Int32:       ClassI4,
	Uint32:      ClassU4,
	Int64:       ClassI8,
	Uint64:      ClassU8,
	IntPtr:      ClassI,
	UintPtr:     ClassU,
	Float32:     ClassR4,
	Float64:     ClassR8,
	String:      ClassRef,
	Object:      ClassRef,
	UntypedInt:  ClassConst,
	UntypedNull: ClassRef,
}

// ClassOf returns the type class of t. Enums have the class of their
// storage type.
func ClassOf(t Type) StackClass {
	if t == nil {
		return ClassInvalid
	}
	switch t := t.Underlying().(type) {
	case *Basic:
		if int(t.kind) < len(basicClass) {
			return basicClass[t.kind]
		}
	case *Pointer, *ByRef:
		return ClassPtr
	case *Array:
		return ClassRef
	case *Named:
		if t.kind == ValueType {
			return ClassValue
		}
		return ClassRef
	}
	return ClassInvalid
}

// Promote applies the integral promotions: small signed integers widen
// to int, small unsigned integers and char to uint. Other types are
// returned unchanged, except enums, which promote as their storage type.
func Promote(t Type) Type {
	switch ClassOf(t) {
	case ClassI1, ClassI2:
		return Typ[Int32]
	case ClassU1, ClassU2, ClassChar:
		return Typ[Uint32]
	}
	if IsEnum(t) {
		return Promote(t.Underlying())
	}
	return t
}

func unsignedClass(c StackClass) bool {
	switch c {
	case ClassU1, ClassU2, ClassU4, ClassU8, ClassU, ClassChar:
		return true
	}
	return false
}

// ArithResult returns the type of x op y for the arithmetic and bitwise
// operators.
//
// Rows of the table, first match wins:
//
//	bool op bool           bool
//	const op const         untyped int
//	enum op same enum      that enum
//	const op T             promoted T (a 64-bit T widens the constant)
//	r8 on either side      double
//	r4 on either side      float
//	pointer on either side that pointer
//	native int             nint, or nuint if both sides are unsigned
//	64-bit on either side  long, or ulong if both sides are unsigned
//	32-bit or narrower     int, or uint if both sides are unsigned
//
// Combinations the table does not cover keep the type of the left operand.
func ArithResult(x, y Type) Type {
	if x == nil {
		return y
	}
	if y == nil {
		return x
	}
	cx, cy := ClassOf(x), ClassOf(y)
	switch {
	case cx == ClassBool && cy == ClassBool:
		return Typ[Bool]
	case cx == ClassConst && cy == ClassConst:
		return Typ[UntypedInt]
	case IsEnum(x) && Identical(x, y):
		return x
	case cx == ClassConst:
		return constResult(y, x)
	case cy == ClassConst:
		return constResult(x, y)
	}

	px, py := Promote(x), Promote(y)
	cx, cy = ClassOf(px), ClassOf(py)
	bothUnsigned := unsignedClass(cx) && unsignedClass(cy)
	switch {
	case cx == ClassR8 || cy == ClassR8:
		return Typ[Float64]
	case cx == ClassR4 || cy == ClassR4:
		return Typ[Float32]
	case cx == ClassPtr:
		return x
	case cy == ClassPtr:
		return y
	case cx == ClassI || cx == ClassU || cy == ClassI || cy == ClassU:
		if !integralClass(cx) || !integralClass(cy) {
			return x
		}
		if bothUnsigned {
			return Typ[UintPtr]
		}
		return Typ[IntPtr]
	case cx == ClassI8 || cx == ClassU8 || cy == ClassI8 || cy == ClassU8:
		if !integralClass(cx) || !integralClass(cy) {
			return x
		}
		if bothUnsigned {
			return Typ[Uint64]
		}
		return Typ[Int64]
	case integralClass(cx) && integralClass(cy):
		if bothUnsigned {
			return Typ[Uint32]
		}
		return Typ[Int32]
	}
	return x
}

// constResult types "t op const": the constant takes the promoted type of
// the other operand. Non-numeric partners fall back to t itself.
func constResult(t, c Type) Type {
	p := Promote(t)
	switch ClassOf(p) {
	case ClassBool:
		// bool op 0/1 is still integral on the stack.
		return Typ[Int32]
	case ClassI4, ClassU4, ClassI8, ClassU8, ClassI, ClassU, ClassR4, ClassR8, ClassPtr:
		return p
	}
	return t
}

func integralClass(c StackClass) bool {
	switch c {
	case ClassBool, ClassChar, ClassI1, ClassU1, ClassI2, ClassU2, ClassI4, ClassU4,
		ClassI8, ClassU8, ClassI, ClassU:
		return true
	}
	return false
}

// ShiftResult returns the type of x << n and x >> n: the promoted left
// operand.
func ShiftResult(x Type) Type {
	if ClassOf(x) == ClassConst {
		return x
	}
	return Promote(x)
}

// StackType returns the type a value of type t has once loaded on the
// evaluation stack. Small integers and bool are widened to int; every
// other type is unchanged.
func StackType(t Type) Type {
	switch ClassOf(t) {
	case ClassBool, ClassChar, ClassI1, ClassU1, ClassI2, ClassU2:
		return Typ[Int32]
	}
	if IsEnum(t) {
		return StackType(t.Underlying())
	}
	return t
}
