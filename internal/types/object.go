package types

import "strings"

// Entity is a declared name: a type name, parameter, field or method.
type Entity interface {
	Name() string   // object name
	Type() Type     // object type
	Parent() *Scope // enclosing scope

	setParent(*Scope) // internal: set parent scope
	anEntity()        // marker method to restrict implementations
}

// object is the base struct for all objects.
type object struct {
	name   string
	typ    Type
	parent *Scope
}

func (o *object) Name() string       { return o.name }
func (o *object) Type() Type         { return o.typ }
func (o *object) Parent() *Scope     { return o.parent }
func (o *object) setParent(s *Scope) { o.parent = s }
func (*object) anEntity()            {}

// Var represents a method parameter.
type Var struct {
	object
	index int // position in the argument list, counting this
}

// NewVar creates a new parameter object.
func NewVar(name string, typ Type, index int) *Var {
	return &Var{object: object{name: name, typ: typ}, index: index}
}

// Index returns the argument slot of the parameter.
func (v *Var) Index() int {
	return v.index
}

// SetType sets the parameter's type.
func (v *Var) SetType(typ Type) {
	v.typ = typ
}

// TypeName represents a declared type name.
type TypeName struct {
	object
}

// NewTypeName creates a new type name object.
func NewTypeName(name string, typ Type) *TypeName {
	return &TypeName{object: object{name: name, typ: typ}}
}

// SetType sets the type associated with the type name.
func (t *TypeName) SetType(typ Type) {
	t.typ = typ
}

// Field represents a field of a named type.
type Field struct {
	object
	owner     *Named
	static    bool
	synthetic bool
	data      []byte // initial value blob (RVA data) used by array initializers
}

// NewField creates a new field object.
func NewField(name string, typ Type, static bool) *Field {
	return &Field{object: object{name: name, typ: typ}, static: static}
}

// Owner returns the declaring type.
func (f *Field) Owner() *Named { return f.owner }

// Static reports whether the field is static.
func (f *Field) Static() bool { return f.static }

// Synthetic reports whether the field was generated by a compiler.
func (f *Field) Synthetic() bool { return f.synthetic }

// SetSynthetic marks the field as compiler generated.
func (f *Field) SetSynthetic(v bool) { f.synthetic = v }

// Data returns the initial value blob, or nil.
func (f *Field) Data() []byte { return f.data }

// SetData sets the initial value blob.
func (f *Field) SetData(b []byte) { f.data = b }

// SetType sets the field type.
func (f *Field) SetType(t Type) { f.typ = t }

// FullName returns Owner::Name.
func (f *Field) FullName() string {
	if f.owner == nil {
		return f.name
	}
	return f.owner.Name() + "::" + f.name
}

// Method represents a method of a named type.
type Method struct {
	object
	owner     *Named
	sig       *Func
	static    bool
	virtual   bool
	synthetic bool
}

// NewMethod creates a new method object.
// The signature should be set later using SetSignature.
func NewMethod(name string, static bool) *Method {
	return &Method{object: object{name: name}, static: static}
}

// Owner returns the declaring type.
func (m *Method) Owner() *Named { return m.owner }

// Signature returns the method signature.
func (m *Method) Signature() *Func {
	return m.sig
}

// SetSignature sets the method signature.
func (m *Method) SetSignature(sig *Func) {
	m.sig = sig
	m.typ = sig
}

// Static reports whether the method has no this argument.
func (m *Method) Static() bool { return m.static }

// SetStatic sets whether the method has a this argument.
func (m *Method) SetStatic(v bool) { m.static = v }

// Virtual reports whether the method is virtual.
func (m *Method) Virtual() bool { return m.virtual }

// SetVirtual marks the method virtual.
func (m *Method) SetVirtual(v bool) { m.virtual = v }

// Synthetic reports whether the method was generated by a compiler.
func (m *Method) Synthetic() bool { return m.synthetic }

// SetSynthetic marks the method as compiler generated.
func (m *Method) SetSynthetic(v bool) { m.synthetic = v }

// IsCtor reports whether the method is an instance constructor.
func (m *Method) IsCtor() bool { return m.name == ".ctor" }

// Result returns the result type of the method.
func (m *Method) Result() Type {
	if m.sig == nil {
		return Typ[Void]
	}
	return m.sig.result
}

// Params returns the declared parameters, not counting this.
func (m *Method) Params() []*Var {
	if m.sig == nil {
		return nil
	}
	return m.sig.params
}

// FullName returns Owner::Name(T1, T2), the key methods are interned by.
func (m *Method) FullName() string {
	var buf strings.Builder
	if m.owner != nil {
		buf.WriteString(m.owner.Name())
		buf.WriteString("::")
	}
	buf.WriteString(m.name)
	buf.WriteString(SignatureKey(m.Params()))
	return buf.String()
}

// SignatureKey spells a parameter list as "(T1, T2)".
func SignatureKey(params []*Var) string {
	var buf strings.Builder
	buf.WriteString("(")
	for i, p := range params {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(p.Type().String())
	}
	buf.WriteString(")")
	return buf.String()
}
