package types

import "sort"

// Scope is a name table. The Universe holds the primitive types; each
// module has a scope of its own named types whose parent is the Universe.
//
// Scopes keep no list of their children, so module scopes can be created
// concurrently.
type Scope struct {
	parent *Scope
	elems  map[string]Entity
	label  string // "universe", "module Sample"
}

// NewScope creates an empty scope below parent.
func NewScope(parent *Scope, label string) *Scope {
	return &Scope{parent: parent, elems: make(map[string]Entity), label: label}
}

// Parent returns the enclosing scope, or nil for the Universe.
func (s *Scope) Parent() *Scope { return s.parent }

// Label returns the label the scope was created with.
func (s *Scope) Label() string { return s.label }

// Lookup returns the object named name in s itself, or nil.
func (s *Scope) Lookup(name string) Entity {
	return s.elems[name]
}

// LookupParent looks name up in s and then in its enclosing scopes. It
// returns the object and the scope holding it, or nil, nil.
func (s *Scope) LookupParent(name string) (Entity, *Scope) {
	for ; s != nil; s = s.parent {
		if obj := s.elems[name]; obj != nil {
			return obj, s
		}
	}
	return nil, nil
}

// Insert adds obj to s. If the name is taken it returns the object already
// there and leaves s unchanged.
func (s *Scope) Insert(obj Entity) Entity {
	if prev := s.elems[obj.Name()]; prev != nil {
		return prev
	}
	s.elems[obj.Name()] = obj
	obj.setParent(s)
	return nil
}

// Names returns the names declared in s, sorted.
func (s *Scope) Names() []string {
	names := make([]string, 0, len(s.elems))
	for name := range s.elems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
