package types

// Identical reports whether x and y are identical types.
func Identical(x, y Type) bool {
	if x == y {
		return true
	}
	if x == nil || y == nil {
		return false
	}
	return identical(x, y)
}

func identical(x, y Type) bool {
	// Named types are interned per module: distinct pointers are distinct
	// types even if they share a name.
	xn, xNamed := x.(*Named)
	yn, yNamed := y.(*Named)
	if xNamed || yNamed {
		return xNamed && yNamed && xn.obj == yn.obj
	}

	switch x := x.(type) {
	case *Basic:
		if y, ok := y.(*Basic); ok {
			return x.kind == y.kind
		}
	case *Array:
		if y, ok := y.(*Array); ok {
			return x.rank == y.rank && Identical(x.elem, y.elem)
		}
	case *Pointer:
		if y, ok := y.(*Pointer); ok {
			return Identical(x.base, y.base)
		}
	case *ByRef:
		if y, ok := y.(*ByRef); ok {
			return Identical(x.base, y.base)
		}
	case *Func:
		if y, ok := y.(*Func); ok {
			return identicalFuncs(x, y)
		}
	}
	return false
}

func identicalFuncs(x, y *Func) bool {
	if len(x.params) != len(y.params) {
		return false
	}
	for i := range x.params {
		if !Identical(x.params[i].Type(), y.params[i].Type()) {
			return false
		}
	}
	return Identical(x.result, y.result)
}

func basic(T Type) (*Basic, bool) {
	if T == nil {
		return nil, false
	}
	b, ok := T.Underlying().(*Basic)
	return b, ok
}

// IsKind reports whether T is the basic type of kind k. Enums are not
// considered to be their storage type.
func IsKind(T Type, k BasicKind) bool {
	b, ok := T.(*Basic)
	return ok && b.kind == k
}

// IsBoolean reports whether T is bool.
func IsBoolean(T Type) bool {
	return IsKind(T, Bool)
}

// IsVoid reports whether T is void or missing.
func IsVoid(T Type) bool {
	return T == nil || IsKind(T, Void)
}

// IsIntegral reports whether T is an integer type, char, an enum or an
// untyped integer constant.
func IsIntegral(T Type) bool {
	b, ok := basic(T)
	return ok && b.info&infoInteger != 0
}

// IsUnsigned reports whether T is an unsigned integer type or char.
func IsUnsigned(T Type) bool {
	b, ok := basic(T)
	return ok && b.info&infoUnsigned != 0
}

// IsFloat reports whether T is float or double.
func IsFloat(T Type) bool {
	b, ok := basic(T)
	return ok && b.info&infoFloat != 0
}

// IsNumeric reports whether T is an integral or floating point type.
func IsNumeric(T Type) bool {
	b, ok := basic(T)
	return ok && b.info&infoNumeric != 0
}

// IsUntyped reports whether T is an untyped constant type.
func IsUntyped(T Type) bool {
	b, ok := T.(*Basic)
	return ok && b.info&infoUntyped != 0
}

// IsNull reports whether T is the type of ldnull.
func IsNull(T Type) bool {
	return IsKind(T, UntypedNull)
}

// IsEnum reports whether T is an enum.
func IsEnum(T Type) bool {
	n, ok := T.(*Named)
	return ok && n.kind == Enum
}

// IsDelegate reports whether T is a delegate type.
func IsDelegate(T Type) bool {
	n, ok := T.(*Named)
	return ok && n.kind == Delegate
}

// IsReference reports whether values of T are object references.
func IsReference(T Type) bool {
	switch t := T.(type) {
	case *Basic:
		return t.info&infoReference != 0
	case *Array:
		return true
	case *Named:
		return t.kind == Class || t.kind == Interface || t.kind == Delegate
	}
	return false
}

// IsValueType reports whether T is a user value type (not a primitive or enum).
func IsValueType(T Type) bool {
	n, ok := T.(*Named)
	return ok && n.kind == ValueType
}

// IsPointerLike reports whether T is a pointer or by-ref.
func IsPointerLike(T Type) bool {
	switch T.(type) {
	case *Pointer, *ByRef:
		return true
	}
	return false
}

// Elem returns the element type of an array, pointer or by-ref, or nil.
func Elem(T Type) Type {
	switch t := T.(type) {
	case *Array:
		return t.elem
	case *Pointer:
		return t.base
	case *ByRef:
		return t.base
	}
	return nil
}

// DefaultType returns the default type for an untyped type.
// For typed types, returns the type itself.
func DefaultType(T Type) Type {
	b, ok := T.(*Basic)
	if !ok {
		return T
	}
	switch b.kind {
	case UntypedInt:
		return Typ[Int32]
	case UntypedNull:
		return Typ[Object]
	}
	return T
}

// IsSubclass reports whether sub derives from (or is) super.
func IsSubclass(sub, super Type) bool {
	for t := sub; t != nil; {
		if Identical(t, super) {
			return true
		}
		n, ok := t.(*Named)
		if !ok {
			return false
		}
		t = n.base
	}
	return false
}

// AssignableTo reports whether a value of type V can be stored in a
// location of type T without a conversion the decompiler must spell out.
func AssignableTo(V, T Type) bool {
	if Identical(V, T) {
		return true
	}
	if IsNull(V) {
		return IsReference(T) || IsPointerLike(T)
	}
	if IsKind(T, Object) {
		return IsReference(V)
	}
	if IsReference(V) && IsReference(T) {
		return IsSubclass(V, T) || IsKind(V, String) && IsKind(T, String)
	}
	return false
}
