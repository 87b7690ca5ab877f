package types

import "strings"

// Array represents an array type T[] or, for rank > 1, T[,...].
type Array struct {
	typ
	rank int
	elem Type
}

// NewArray creates a new array type with the given element type and rank.
func NewArray(elem Type, rank int) *Array {
	if rank < 1 {
		rank = 1
	}
	return &Array{rank: rank, elem: elem}
}

// Rank returns the number of dimensions.
func (a *Array) Rank() int {
	return a.rank
}

// Elem returns the array element type.
func (a *Array) Elem() Type {
	return a.elem
}

// Underlying implements Type.
func (a *Array) Underlying() Type {
	return a
}

// String implements Type.
func (a *Array) String() string {
	return a.elem.String() + "[" + strings.Repeat(",", a.rank-1) + "]"
}

// Pointer represents an unmanaged pointer type T*.
type Pointer struct {
	typ
	base Type
}

// NewPointer creates a new pointer type.
func NewPointer(base Type) *Pointer {
	return &Pointer{base: base}
}

// Elem returns the base type that the pointer points to.
func (p *Pointer) Elem() Type {
	return p.base
}

// Underlying implements Type.
func (p *Pointer) Underlying() Type {
	return p
}

// String implements Type.
func (p *Pointer) String() string {
	return p.base.String() + "*"
}

// ByRef represents a managed reference T&, the type of ldloca, ldflda and
// ref parameters.
type ByRef struct {
	typ
	base Type
}

// NewByRef creates a new by-ref type.
func NewByRef(base Type) *ByRef {
	return &ByRef{base: base}
}

// Elem returns the referenced type.
func (r *ByRef) Elem() Type {
	return r.base
}

// Underlying implements Type.
func (r *ByRef) Underlying() Type {
	return r
}

// String implements Type.
func (r *ByRef) String() string {
	return "ref " + r.base.String()
}

// Func represents a method signature.
type Func struct {
	typ
	params []*Var
	result Type // Typ[Void] for methods without a result
}

// NewFunc creates a new signature. A nil result means void.
func NewFunc(params []*Var, result Type) *Func {
	if result == nil {
		result = Typ[Void]
	}
	return &Func{params: params, result: result}
}

// Params returns the parameter list.
func (f *Func) Params() []*Var {
	return f.params
}

// NumParams returns the number of parameters.
func (f *Func) NumParams() int {
	return len(f.params)
}

// Param returns the parameter at index i.
func (f *Func) Param(i int) *Var {
	return f.params[i]
}

// Result returns the result type.
func (f *Func) Result() Type {
	return f.result
}

// Underlying implements Type.
func (f *Func) Underlying() Type {
	return f
}

// String implements Type.
func (f *Func) String() string {
	var buf strings.Builder
	buf.WriteString(f.result.String())
	buf.WriteString("(")
	for i, p := range f.params {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(p.Type().String())
	}
	buf.WriteString(")")
	return buf.String()
}
