package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/you-not-fish/destack/internal/il"
)

func write(t *testing.T, dir, text string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	if got := c.Flags(); got != il.DefaultFlags {
		t.Errorf("Flags() = %v, want %v", got, il.DefaultFlags)
	}
	opts := c.Options()
	if opts.Parallelism != 0 || opts.Passes.Verify {
		t.Errorf("Options() = %+v", opts)
	}
}

func TestLoad(t *testing.T) {
	path := write(t, t.TempDir(), `
[decompile]
loops = false
read-only = true

[passes]
verify = true
dump-after = "*"
dump-func = "C::M()"

[run]
parallelism = 3
cache-dir = "/tmp/destack"
verbosity = 2
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := il.AnonymousDelegates | il.Iterators | il.StackElimination | il.ReadOnly
	if got := c.Flags(); got != want {
		t.Errorf("Flags() = %v, want %v", got, want)
	}
	opts := c.Options()
	if !opts.Passes.Verify || opts.Passes.DumpAfter != "*" || opts.Passes.DumpFunc != "C::M()" {
		t.Errorf("pass options = %+v", opts.Passes)
	}
	if opts.Parallelism != 3 || c.Run.CacheDir != "/tmp/destack" || c.Run.Verbosity != 2 {
		t.Errorf("run = %+v", c.Run)
	}
	if !filepath.IsAbs(c.Path) {
		t.Errorf("Path = %q, want an absolute path", c.Path)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name, text, want string
	}{
		{"syntax", "[decompile\n", "parse error"},
		{"unknown key", "[decompile]\nfoo = true\n", "unknown key decompile.foo"},
		{"type", "[run]\nparallelism = \"four\"\n", "parse error"},
		{"negative", "[run]\nparallelism = -1\n", "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(write(t, t.TempDir(), tt.text))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load = %v, want an error containing %q", err, tt.want)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	write(t, root, "[run]\nparallelism = 5\n")
	sub := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	c, err := FindAndLoad(sub)
	if err != nil {
		t.Fatalf("FindAndLoad: %v", err)
	}
	if c.Run.Parallelism != 5 {
		t.Errorf("parallelism = %d, want 5 from the parent directory", c.Run.Parallelism)
	}
}
