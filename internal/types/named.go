package types

// NamedKind classifies a named type.
type NamedKind int

const (
	Class NamedKind = iota
	ValueType
	Enum
	Interface
	Delegate
)

var namedKindNames = [...]string{
	Class:     "class",
	ValueType: "valuetype",
	Enum:      "enum",
	Interface: "interface",
	Delegate:  "delegate",
}

func (k NamedKind) String() string {
	if int(k) < len(namedKindNames) {
		return namedKindNames[k]
	}
	return "?"
}

// Named represents a class, value type, enum, interface or delegate.
type Named struct {
	typ
	obj        *TypeName
	kind       NamedKind
	base       Type    // base class, nil for System.Object itself and interfaces
	underlying *Basic  // storage type of an enum
	fields     []*Field
	methods    []*Method
	synthetic  bool // compiler generated
	declared   bool // has a body in the module, as opposed to a reference
}

// NewNamed creates a new named type and binds obj to it.
func NewNamed(obj *TypeName, kind NamedKind) *Named {
	n := &Named{obj: obj, kind: kind}
	if kind == Enum {
		n.underlying = Typ[Int32]
	}
	if obj != nil {
		obj.typ = n
	}
	return n
}

// Obj returns the type name object.
func (n *Named) Obj() *TypeName {
	return n.obj
}

// Name returns the fully qualified name.
func (n *Named) Name() string {
	if n.obj != nil {
		return n.obj.Name()
	}
	return "unnamed"
}

// Kind returns the kind of the named type.
func (n *Named) Kind() NamedKind {
	return n.kind
}

// SetKind changes the kind. References seen before their declaration
// default to Class; the declaration fixes the kind.
func (n *Named) SetKind(k NamedKind) {
	n.kind = k
	if k == Enum && n.underlying == nil {
		n.underlying = Typ[Int32]
	}
}

// Base returns the base type, or nil.
func (n *Named) Base() Type { return n.base }

// SetBase sets the base type.
func (n *Named) SetBase(t Type) { n.base = t }

// SetEnumUnderlying sets the storage type of an enum.
func (n *Named) SetEnumUnderlying(b *Basic) { n.underlying = b }

// Synthetic reports whether the type was generated by a compiler.
func (n *Named) Synthetic() bool { return n.synthetic }

// SetSynthetic marks the type as compiler generated.
func (n *Named) SetSynthetic(v bool) { n.synthetic = v }

// Declared reports whether the module declares the type.
func (n *Named) Declared() bool { return n.declared }

// SetDeclared marks the type as declared by the module.
func (n *Named) SetDeclared(v bool) { n.declared = v }

// Underlying implements Type.
func (n *Named) Underlying() Type {
	if n.kind == Enum && n.underlying != nil {
		return n.underlying
	}
	return n
}

// String implements Type.
func (n *Named) String() string {
	return n.Name()
}

// Fields returns the fields in declaration order.
func (n *Named) Fields() []*Field {
	return n.fields
}

// AddField adds a field to the type.
func (n *Named) AddField(f *Field) {
	f.owner = n
	n.fields = append(n.fields, f)
}

// LookupField looks up a field by name.
// Returns nil if not found.
func (n *Named) LookupField(name string) *Field {
	for _, f := range n.fields {
		if f.Name() == name {
			return f
		}
	}
	return nil
}

// Methods returns all methods.
func (n *Named) Methods() []*Method {
	return n.methods
}

// AddMethod adds a method to this named type.
func (n *Named) AddMethod(m *Method) {
	m.owner = n
	n.methods = append(n.methods, m)
}

// LookupMethod looks up a method by name.
// Returns the first overload, or nil if not found.
func (n *Named) LookupMethod(name string) *Method {
	for _, m := range n.methods {
		if m.Name() == name {
			return m
		}
	}
	return nil
}
