package cache

import (
	"os"
	"testing"

	"github.com/you-not-fish/destack/internal/asm"
	"github.com/you-not-fish/destack/internal/il"
)

func parse(t *testing.T, src string) *il.Module {
	t.Helper()
	mod, err := asm.ParseString("t.il", ".format \"1.0\"\n.module T\n"+src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return mod
}

func body(t *testing.T, mod *il.Module, typ, name string) *il.Body {
	t.Helper()
	m := mod.LookupType(typ).LookupMethod(name)
	if m == nil {
		t.Fatalf("no method %s::%s", typ, name)
	}
	return mod.BodyOf(m)
}

const withClosure = `.class synthetic <>c {
  .method int <M>b__0(int k) {
    ldarg k
    ret
  }
}
.class C {
  .method static int M(int a) {
    ldarg a
    ret
  }
}`

func TestKeyOf(t *testing.T) {
	mod := parse(t, withClosure)
	k := KeyOf(mod, body(t, mod, "C", "M"), "loops|text")
	if again := KeyOf(parse(t, withClosure), body(t, mod, "C", "M"), "loops|text"); again != k {
		t.Error("key is not deterministic")
	}
	if KeyOf(mod, body(t, mod, "C", "M"), "text") == k {
		t.Error("key ignores the variant")
	}

	changed := parse(t, `.class synthetic <>c {
  .method int <M>b__0(int k) {
    ldc.i4.0
    ret
  }
}
.class C {
  .method static int M(int a) {
    ldarg a
    ret
  }
}`)
	if KeyOf(changed, body(t, changed, "C", "M"), "loops|text") == k {
		t.Error("key ignores the synthetic bodies of the module")
	}
	if len(k.String()) != 64 {
		t.Errorf("String() = %q, want 64 hex digits", k.String())
	}
}

func TestGetPut(t *testing.T) {
	c, err := Open(t.TempDir(), "1.2.3")
	if err != nil {
		t.Fatal(err)
	}
	mod := parse(t, withClosure)
	k := KeyOf(mod, body(t, mod, "C", "M"), "text")

	if _, ok := c.Get(k); ok {
		t.Fatal("hit in an empty cache")
	}
	want := &Entry{Method: "C::M(int)", Variant: "text", Text: "return a;\n", Elided: []string{"<>c::<M>b__0(int)"}}
	if err := c.Put(k, want); err != nil {
		t.Fatal(err)
	}
	got, ok := c.Get(k)
	if !ok {
		t.Fatal("miss after Put")
	}
	if got.Version != "1.2.3" || got.Text != want.Text || got.Method != want.Method ||
		len(got.Elided) != 1 || got.Elided[0] != want.Elided[0] {
		t.Errorf("Get = %+v", got)
	}
}

func TestVersionCompatibility(t *testing.T) {
	dir := t.TempDir()
	old, err := Open(dir, "1.2.0")
	if err != nil {
		t.Fatal(err)
	}
	var k Key
	k[0] = 1
	if err := old.Put(k, &Entry{Method: "C::M()", Text: "x"}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		version string
		hit     bool
	}{
		{"1.2.0", true},
		{"1.2.7", true},
		{"1.3.0", false},
		{"2.2.0", false},
	}
	for _, tt := range tests {
		c, err := Open(dir, tt.version)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := c.Get(k); ok != tt.hit {
			t.Errorf("%s: hit = %v, want %v", tt.version, ok, tt.hit)
		}
	}
}

func TestCorruptEntry(t *testing.T) {
	c, err := Open(t.TempDir(), "1.0.0")
	if err != nil {
		t.Fatal(err)
	}
	var k Key
	if err := c.Put(k, &Entry{Text: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.path(k), []byte{0xff, 0x00}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get(k); ok {
		t.Error("corrupt entry was a hit")
	}
}

func TestOpenBadVersion(t *testing.T) {
	if _, err := Open(t.TempDir(), "not-a-version"); err == nil {
		t.Error("Open accepted an invalid version")
	}
}
