package types

// BasicKind describes the kind of basic type.
type BasicKind int

const (
	Invalid BasicKind = iota // invalid type

	Void
	Bool
	Char
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	IntPtr
	UintPtr
	Float32
	Float64
	String
	Object

	// UntypedInt is the type of an ldc.i4 constant before it meets a
	// context that fixes it (bool, char, an enum, a narrower integer).
	UntypedInt
	// UntypedNull is the type of ldnull.
	UntypedNull
)

// BasicInfo describes properties of a basic type.
type BasicInfo int

const (
	infoBoolean BasicInfo = 1 << iota
	infoInteger
	infoUnsigned
	infoFloat
	infoString
	infoReference
	infoUntyped
	infoNumeric = infoInteger | infoFloat
)

// Basic represents a primitive type of the virtual machine.
type Basic struct {
	typ
	kind BasicKind
	info BasicInfo
	name string
}

// Kind returns the kind of the basic type.
func (b *Basic) Kind() BasicKind {
	return b.kind
}

// Info returns information about the basic type.
func (b *Basic) Info() BasicInfo {
	return b.info
}

// Name returns the name of the basic type.
func (b *Basic) Name() string {
	return b.name
}

// Underlying implements Type.
func (b *Basic) Underlying() Type {
	return b
}

// String implements Type.
func (b *Basic) String() string {
	return b.name
}

// Typ holds the predeclared basic types, indexed by BasicKind.
// Typ[Invalid] is nil, representing an invalid type.
var Typ = []*Basic{
	Invalid:     nil,
	Void:        {kind: Void, name: "void"},
	Bool:        {kind: Bool, info: infoBoolean, name: "bool"},
	Char:        {kind: Char, info: infoInteger | infoUnsigned, name: "char"},
	Int8:        {kind: Int8, info: infoInteger, name: "sbyte"},
	Uint8:       {kind: Uint8, info: infoInteger | infoUnsigned, name: "byte"},
	Int16:       {kind: Int16, info: infoInteger, name: "short"},
	Uint16:      {kind: Uint16, info: infoInteger | infoUnsigned, name: "ushort"},
	Int32:       {kind: Int32, info: infoInteger, name: "int"},
	Uint32:      {kind: Uint32, info: infoInteger | infoUnsigned, name: "uint"},
	Int64:       {kind: Int64, info: infoInteger, name: "long"},
	Uint64:      {kind: Uint64, info: infoInteger | infoUnsigned, name: "ulong"},
	IntPtr:      {kind: IntPtr, info: infoInteger, name: "nint"},
	UintPtr:     {kind: UintPtr, info: infoInteger | infoUnsigned, name: "nuint"},
	Float32:     {kind: Float32, info: infoFloat, name: "float"},
	Float64:     {kind: Float64, info: infoFloat, name: "double"},
	String:      {kind: String, info: infoString | infoReference, name: "string"},
	Object:      {kind: Object, info: infoReference, name: "object"},
	UntypedInt:  {kind: UntypedInt, info: infoInteger | infoUntyped, name: "untyped int"},
	UntypedNull: {kind: UntypedNull, info: infoReference | infoUntyped, name: "null"},
}
