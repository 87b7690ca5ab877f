package e2e

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/you-not-fish/destack/internal/asm"
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decompiler"
	"github.com/you-not-fish/destack/internal/il"
)

// TestE2E decompiles every .il file in testdata/ and checks the printed
// trees against the .want file next to it. Each line of a .want file is
//
//	+text   the output must contain text
//	-text   the output must not contain text
//	!Name   decompiling method Name must fail
//
// Blank lines and lines starting with # are ignored.
func TestE2E(t *testing.T) {
	testFiles, err := filepath.Glob("testdata/*.il")
	if err != nil {
		t.Fatal(err)
	}
	if len(testFiles) == 0 {
		t.Fatal("no .il test files found in testdata/")
	}

	for _, testFile := range testFiles {
		name := strings.TrimSuffix(filepath.Base(testFile), ".il")
		t.Run(name, func(t *testing.T) {
			runE2ETest(t, testFile)
		})
	}
}

type want struct {
	contains []string
	lacks    []string
	failing  map[string]bool
}

func readWant(t *testing.T, filename string) *want {
	t.Helper()
	f, err := os.Open(filename)
	if err != nil {
		t.Fatalf("reading want file: %v", err)
	}
	defer f.Close()

	w := &want{failing: make(map[string]bool)}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t")
		if line == "" || line[0] == '#' {
			continue
		}
		switch line[0] {
		case '+':
			w.contains = append(w.contains, line[1:])
		case '-':
			w.lacks = append(w.lacks, line[1:])
		case '!':
			w.failing[line[1:]] = true
		default:
			t.Fatalf("%s: bad line %q", filename, line)
		}
	}
	if err := sc.Err(); err != nil {
		t.Fatal(err)
	}
	return w
}

// runE2ETest runs a single end-to-end test.
func runE2ETest(t *testing.T, ilFile string) {
	t.Helper()

	w := readWant(t, strings.TrimSuffix(ilFile, ".il")+".want")

	f, err := os.Open(ilFile)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	mod, err := asm.Parse(ilFile, f)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	opts := decompiler.ModuleOptions{Options: decompiler.DefaultOptions()}
	opts.Passes.Verify = true
	results, err := decompiler.DecompileModule(context.Background(), mod, opts)
	if err != nil {
		t.Fatal(err)
	}

	elided := make(map[string]bool)
	for _, m := range decompiler.Elided(results).Methods {
		elided[m.FullName()] = true
	}
	for _, typ := range decompiler.Elided(results).Types {
		for _, m := range typ.Methods() {
			elided[m.FullName()] = true
		}
	}

	var out strings.Builder
	for _, r := range results {
		if w.failing[r.Method.Name()] {
			if r.Err == nil {
				t.Errorf("%s: decompiled, want an error", r.Method.FullName())
			}
			continue
		}
		if elided[r.Method.FullName()] {
			continue
		}
		if r.Err != nil {
			t.Errorf("%s: %v", r.Method.FullName(), r.Err)
			continue
		}
		out.WriteString("// " + il.FormatMethod(r.Method) + "\n")
		ast.Fprint(&out, r.Body.Block())
		if it := r.Body.Iterator(); it != nil {
			out.WriteString("// iterator " + r.Body.IteratorClass().Name() + "\n")
			ast.Fprint(&out, it)
		}
	}

	got := out.String()
	for _, s := range w.contains {
		if !strings.Contains(got, s) {
			t.Errorf("output lacks %q", s)
		}
	}
	for _, s := range w.lacks {
		if strings.Contains(got, s) {
			t.Errorf("output contains %q", s)
		}
	}
	if t.Failed() {
		t.Logf("output:\n%s", got)
	}
}
