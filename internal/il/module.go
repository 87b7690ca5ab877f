package il

import "github.com/you-not-fish/destack/internal/types"

// Module is a set of named types and the bodies of their methods.
type Module struct {
	Name    string
	Version string // format version the module was written in
	Scope   *types.Scope
	Types   []*types.Named // declared types in declaration order
	bodies  map[*types.Method]*Body
}

// NewModule creates an empty module with a fresh type scope.
func NewModule(name string) *Module {
	return &Module{
		Name:   name,
		Scope:  types.NewModuleScope(name),
		bodies: make(map[*types.Method]*Body),
	}
}

// SetBody attaches a body to its method.
func (m *Module) SetBody(b *Body) {
	m.bodies[b.Method] = b
}

// BodyOf returns the body of a method, or nil for methods without one.
func (m *Module) BodyOf(meth *types.Method) *Body {
	return m.bodies[meth]
}

// Methods returns every method with a body, in type and declaration order.
func (m *Module) Methods() []*types.Method {
	var out []*types.Method
	for _, t := range m.Types {
		for _, meth := range t.Methods() {
			if m.bodies[meth] != nil {
				out = append(out, meth)
			}
		}
	}
	return out
}

// LookupType returns the named type with the given name, or nil.
func (m *Module) LookupType(name string) *types.Named {
	obj, _ := m.Scope.LookupParent(name)
	if obj == nil {
		return nil
	}
	n, _ := obj.Type().(*types.Named)
	return n
}
