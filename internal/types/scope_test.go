package types

import "testing"

func TestUniverse(t *testing.T) {
	for _, name := range []string{"int", "bool", "object", "string", "double", "nint"} {
		if LookupBasic(name) == nil {
			t.Errorf("LookupBasic(%q) = nil", name)
		}
	}
	if LookupBasic("untyped int") != nil {
		t.Error("untyped types should not be in the universe")
	}
}

func TestModuleScope(t *testing.T) {
	s1 := NewModuleScope("a")
	s2 := NewModuleScope("b")

	obj, scope := s1.LookupParent("int")
	if obj == nil || scope != Universe {
		t.Fatalf("LookupParent(int) = %v, %v; want universe object", obj, scope)
	}

	d1 := s1.Lookup(DisposableType)
	d2 := s2.Lookup(DisposableType)
	if d1 == nil || d2 == nil {
		t.Fatal("module scope is missing System.IDisposable")
	}
	if d1 == d2 {
		t.Error("module scopes should not share well-known types")
	}
	n := d1.Type().(*Named)
	if n.Kind() != Interface {
		t.Errorf("IDisposable kind = %s, want interface", n.Kind())
	}
	if !IsMethod(n.LookupMethod(Dispose), DisposableType, Dispose, 0) {
		t.Error("IDisposable::Dispose() not recognized")
	}
}

func TestScopeInsert(t *testing.T) {
	s := NewScope(nil, "test")
	a := NewTypeName("A", nil)
	if prev := s.Insert(a); prev != nil {
		t.Fatalf("Insert returned %v, want nil", prev)
	}
	if prev := s.Insert(NewTypeName("A", nil)); prev != a {
		t.Errorf("duplicate Insert returned %v, want the first object", prev)
	}
	if a.Parent() != s {
		t.Error("Insert should set the parent scope")
	}
	s.Insert(NewTypeName("B", nil))
	if got := s.Names(); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Errorf("Names() = %v, want [A B]", got)
	}
}

func TestMethodFullName(t *testing.T) {
	owner := NewNamed(NewTypeName("System.Threading.Monitor", nil), Class)
	m := NewMethod(Enter, true)
	m.SetSignature(NewFunc([]*Var{
		NewVar("obj", Typ[Object], 0),
		NewVar("taken", NewByRef(Typ[Bool]), 1),
	}, nil))
	owner.AddMethod(m)

	want := "System.Threading.Monitor::Enter(object, ref bool)"
	if got := m.FullName(); got != want {
		t.Errorf("FullName() = %q, want %q", got, want)
	}
	if !IsMethod(m, MonitorType, Enter, 2) {
		t.Error("IsMethod should recognize Monitor.Enter")
	}
}
