package types

// PtrSize is the size of native integers and pointers in bytes.
const PtrSize = 8

// Sizeof returns the size of a primitive value of type T in bytes, as
// laid out in an array initializer blob. It returns 0 for types that
// cannot appear in such a blob.
func Sizeof(T Type) int64 {
	b, ok := basic(T)
	if !ok {
		return 0
	}
	switch b.kind {
	case Bool, Int8, Uint8:
		return 1
	case Char, Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	case IntPtr, UintPtr:
		return PtrSize
	}
	return 0
}
