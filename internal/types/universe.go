package types

// Universe is the root scope containing the primitive types.
var Universe *Scope

// Well-known types and members recognized by the decompiler passes.
const (
	MonitorType        = "System.Threading.Monitor"
	DisposableType     = "System.IDisposable"
	RuntimeHelpersType = "System.Runtime.CompilerServices.RuntimeHelpers"
	ExceptionType      = "System.Exception"
	ArrayType          = "System.Array"
	FieldHandleType    = "System.RuntimeFieldHandle"
	DelegateType       = "System.Delegate"

	InitializeArray = "InitializeArray"
	Dispose         = "Dispose"
	Enter           = "Enter"
	Exit            = "Exit"
)

func init() {
	Universe = NewScope(nil, "universe")
	for _, b := range Typ {
		if b == nil || b.info&infoUntyped != 0 {
			continue
		}
		Universe.Insert(NewTypeName(b.name, b))
	}
}

// LookupBasic returns the basic type spelled name ("int", "object"...),
// or nil.
func LookupBasic(name string) *Basic {
	if obj := Universe.Lookup(name); obj != nil {
		if b, ok := obj.Type().(*Basic); ok {
			return b
		}
	}
	return nil
}

// NewModuleScope returns a fresh scope for the named types of one module.
// Each module gets its own well-known types so that nothing is shared
// between modules decompiled concurrently.
func NewModuleScope(name string) *Scope {
	s := NewScope(Universe, "module "+name)
	for _, wk := range []struct {
		name string
		kind NamedKind
	}{
		{ExceptionType, Class},
		{ArrayType, Class},
		{DelegateType, Class},
		{DisposableType, Interface},
		{MonitorType, Class},
		{RuntimeHelpersType, Class},
		{FieldHandleType, ValueType},
	} {
		NewNamed(declare(s, wk.name), wk.kind)
	}
	disp := s.Lookup(DisposableType).Type().(*Named)
	m := NewMethod(Dispose, false)
	m.SetSignature(NewFunc(nil, nil))
	m.SetVirtual(true)
	disp.AddMethod(m)
	return s
}

func declare(s *Scope, name string) *TypeName {
	obj := NewTypeName(name, nil)
	s.Insert(obj)
	return obj
}

// IsMethod reports whether m is owner::name with n declared parameters.
func IsMethod(m *Method, owner, name string, n int) bool {
	return m != nil && m.owner != nil && m.owner.Name() == owner &&
		m.name == name && len(m.Params()) == n
}
