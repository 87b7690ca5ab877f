// Package main implements the destack command: it reads an assembly file
// and prints the statement trees of its method bodies.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"

	"github.com/fsnotify/fsnotify"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"gopkg.in/yaml.v3"

	"github.com/you-not-fish/destack/internal/asm"
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/cache"
	"github.com/you-not-fish/destack/internal/cfg"
	"github.com/you-not-fish/destack/internal/config"
	"github.com/you-not-fish/destack/internal/decomp"
	"github.com/you-not-fish/destack/internal/decompiler"
	"github.com/you-not-fish/destack/internal/il"
	"github.com/you-not-fish/destack/internal/types"
)

// Command line flags
var (
	emitIL      = flag.Bool("emit-il", false, "Output the disassembly")
	emitCFG     = flag.Bool("emit-cfg", false, "Output basic blocks")
	emitBlocks  = flag.Bool("emit-blocks", false, "Output the structured block tree before any pass")
	treeFormat  = flag.String("tree-format", "text", "Tree output format (text, json or yaml)")
	methodName  = flag.String("method", "", "Only process this method (name or Owner::name(T, ...))")
	configFile  = flag.String("config", "", "Configuration file (default: nearest "+config.FileName+")")
	noLoops     = flag.Bool("no-loops", false, "Do not reconstruct loops")
	noDelegates = flag.Bool("no-delegates", false, "Do not reinstate anonymous delegates")
	noIterators = flag.Bool("no-iterators", false, "Do not reconstruct iterators")
	noUnstack   = flag.Bool("no-unstack", false, "Keep stack temporaries")
	readOnly    = flag.Bool("read-only", false, "Do not decompile; print the input bodies")
	verify      = flag.Bool("verify", false, "Verify the tree after each pass")
	dumpBefore  = flag.String("dump-before", "", "Dump the tree before pass (name or \"*\")")
	dumpAfter   = flag.String("dump-after", "", "Dump the tree after pass (name or \"*\")")
	parallelism = flag.Int("j", 0, "Number of bodies decompiled at once (default: GOMAXPROCS)")
	cacheDir    = flag.String("cache", "", "Result cache directory")
	watch       = flag.Bool("watch", false, "Decompile again whenever the input changes")
	verbose     = flag.Bool("v", false, "Verbose logging")
	version     = flag.Bool("version", false, "Print version")
)

// Version information
const Version = "0.3.0-dev"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "destack %s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: destack [options] <file.il>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *version {
		fmt.Printf("destack version %s\n", Version)
		fmt.Printf("go version %s\n", runtime.Version())
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "error: no input file")
		fmt.Fprintln(os.Stderr, "usage: destack [options] <file.il>")
		os.Exit(1)
	}

	filename := args[0]

	conf, err := settings(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	commonlog.Configure(conf.Run.Verbosity, nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	run := func() int {
		switch {
		case *emitIL:
			return runEmitIL(filename)
		case *emitCFG:
			return runEmitCFG(filename)
		case *emitBlocks:
			return runEmitBlocks(filename, conf)
		default:
			return runDecompile(ctx, filename, conf)
		}
	}

	if *watch {
		os.Exit(runWatch(ctx, filename, run))
	}
	os.Exit(run())
}

// settings loads the configuration for filename and applies the command
// line flags over it.
func settings(filename string) (*config.Config, error) {
	var (
		conf *config.Config
		err  error
	)
	if *configFile != "" {
		conf, err = config.Load(*configFile)
	} else {
		conf, err = config.FindAndLoad(filepath.Dir(filename))
	}
	if err != nil {
		return nil, err
	}

	d := &conf.Decompile
	if *noLoops {
		d.Loops = false
	}
	if *noDelegates {
		d.AnonymousDelegates = false
	}
	if *noIterators {
		d.Iterators = false
	}
	if *noUnstack {
		d.StackElimination = false
	}
	if *readOnly {
		d.ReadOnly = true
	}

	p := &conf.Passes
	if *verify {
		p.Verify = true
	}
	if *dumpBefore != "" {
		p.DumpBefore = *dumpBefore
	}
	if *dumpAfter != "" {
		p.DumpAfter = *dumpAfter
	}

	if *parallelism > 0 {
		conf.Run.Parallelism = *parallelism
	}
	if *cacheDir != "" {
		conf.Run.CacheDir = *cacheDir
	}
	if *verbose && conf.Run.Verbosity < 2 {
		conf.Run.Verbosity = 2
	}

	switch *treeFormat {
	case "text", "json", "yaml":
	default:
		return nil, fmt.Errorf("unknown tree format %q", *treeFormat)
	}
	return conf, nil
}

// parseFile reads and assembles filename, reporting errors on stderr.
func parseFile(filename string) (*il.Module, bool) {
	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return nil, false
	}
	defer f.Close()

	mod, err := asm.Parse(filename, f)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, false
	}
	return mod, true
}

// selected reports whether m passes the -method filter.
func selected(m *types.Method) bool {
	return *methodName == "" || m.Name() == *methodName || m.FullName() == *methodName
}

// runEmitIL assembles the input file and prints its disassembly.
func runEmitIL(filename string) int {
	mod, ok := parseFile(filename)
	if !ok {
		return 1
	}
	if *methodName == "" {
		il.FprintModule(os.Stdout, mod)
		return 0
	}
	for _, m := range mod.Methods() {
		if selected(m) {
			il.Fprint(os.Stdout, mod.BodyOf(m))
		}
	}
	return 0
}

// runEmitCFG prints the basic blocks of every method body.
func runEmitCFG(filename string) int {
	mod, ok := parseFile(filename)
	if !ok {
		return 1
	}

	code := 0
	first := true
	for _, m := range mod.Methods() {
		if !selected(m) {
			continue
		}
		g, err := cfg.Build(mod.BodyOf(m))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", m.FullName(), err)
			code = 1
			continue
		}
		if !first {
			fmt.Println()
		}
		first = false
		fmt.Printf("// %s\n", il.FormatMethod(m))
		cfg.Fprint(os.Stdout, g)
	}
	return code
}

// runEmitBlocks prints the block tree the structurer builds, before
// translation and the construct passes.
func runEmitBlocks(filename string, conf *config.Config) int {
	mod, ok := parseFile(filename)
	if !ok {
		return 1
	}

	code := 0
	var docs []*document
	for _, m := range mod.Methods() {
		if !selected(m) {
			continue
		}
		body := mod.BodyOf(m)
		g, err := cfg.Build(body)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", m.FullName(), err)
			code = 1
			continue
		}
		ctx := decomp.NewContext(body, g, nil, conf.Flags())
		if err := decomp.Structure(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", m.FullName(), err)
			code = 1
			continue
		}
		docs = append(docs, &document{method: m, block: ctx.Root})
	}
	for i, doc := range docs {
		out, err := doc.render(*treeFormat)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		if i > 0 && *treeFormat == "text" {
			fmt.Println()
		}
		os.Stdout.Write(out)
	}
	return code
}

// runDecompile decompiles the input file and prints the tree of every
// method that no other method made redundant.
func runDecompile(ctx context.Context, filename string, conf *config.Config) int {
	mod, ok := parseFile(filename)
	if !ok {
		return 1
	}

	opts := conf.Options()
	if opts.Passes.DumpBefore != "" || opts.Passes.DumpAfter != "" {
		opts.Parallelism = 1
	}

	var c *cache.Cache
	if conf.Run.CacheDir != "" {
		var err error
		if c, err = cache.Open(conf.Run.CacheDir, Version); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
	}
	variant := fmt.Sprintf("%s/%s", opts.Flags, *treeFormat)

	// Cached methods are not decompiled again.
	hits := make(map[*types.Method]*cache.Entry)
	keys := make(map[*types.Method]cache.Key)
	opts.Filter = func(m *types.Method) bool {
		if !selected(m) {
			return false
		}
		if c == nil {
			return true
		}
		k := cache.KeyOf(mod, mod.BodyOf(m), variant)
		keys[m] = k
		if e, ok := c.Get(k); ok {
			hits[m] = e
			return false
		}
		return true
	}

	results, err := decompiler.DecompileModule(ctx, mod, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	entries := make(map[*types.Method]*cache.Entry, len(results)+len(hits))
	for m, e := range hits {
		entries[m] = e
	}
	for _, r := range results {
		e := &cache.Entry{Method: r.Method.FullName(), Variant: variant}
		if r.Err != nil {
			e.Failed = r.Err.Error()
		} else {
			doc := &document{method: r.Method, body: r.Body}
			out, err := doc.render(*treeFormat)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				return 1
			}
			e.Text = string(out)
			e.Elided = elidedNames(r.Body)
		}
		entries[r.Method] = e
		if c != nil {
			if err := c.Put(keys[r.Method], e); err != nil {
				fmt.Fprintf(os.Stderr, "warning: %v\n", err)
			}
		}
	}

	elided := make(map[string]bool)
	for _, e := range entries {
		for _, name := range e.Elided {
			elided[name] = true
		}
	}

	code := 0
	first := true
	for _, m := range mod.Methods() {
		e := entries[m]
		if e == nil || (elided[m.FullName()] && *methodName == "") {
			continue
		}
		if e.Failed != "" {
			fmt.Fprintf(os.Stderr, "error: %s\n", e.Failed)
			code = 1
			continue
		}
		if !first && *treeFormat == "text" {
			fmt.Println()
		}
		first = false
		io.WriteString(os.Stdout, e.Text)
	}
	return code
}

// elidedNames lists the full names of the methods body made redundant,
// including the methods of its elided types.
func elidedNames(body *decompiler.MethodBody) []string {
	el := body.Elided()
	if el == nil {
		return nil
	}
	var names []string
	seen := make(map[string]bool)
	add := func(m *types.Method) {
		if n := m.FullName(); !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, t := range el.Types {
		for _, m := range t.Methods() {
			add(m)
		}
	}
	for _, m := range el.Methods {
		add(m)
	}
	return names
}

// document is the printed form of one method.
type document struct {
	method *types.Method
	block  *ast.Block             // set by -emit-blocks
	body   *decompiler.MethodBody // set by decompilation
}

func (d *document) tree() *ast.Block {
	if d.body != nil {
		return d.body.Block()
	}
	return d.block
}

func (d *document) render(format string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "json", "yaml":
		v := map[string]interface{}{
			"method": il.FormatMethod(d.method),
		}
		if b := d.tree(); b != nil {
			v["body"] = ast.ToMap(b)
		} else {
			var src bytes.Buffer
			d.fprintInput(&src)
			v["il"] = src.String()
		}
		if d.body != nil && d.body.Iterator() != nil {
			v["iterator"] = map[string]interface{}{
				"class": d.body.IteratorClass().Name(),
				"body":  ast.ToMap(d.body.Iterator()),
			}
		}
		if format == "json" {
			enc := json.NewEncoder(&buf)
			enc.SetIndent("", "  ")
			if err := enc.Encode(v); err != nil {
				return nil, err
			}
			break
		}
		buf.WriteString("---\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}

	default:
		b := d.tree()
		if b == nil {
			d.fprintInput(&buf)
			break
		}
		fmt.Fprintf(&buf, "// %s\n", il.FormatMethod(d.method))
		ast.Fprint(&buf, b)
		if d.body != nil && d.body.Iterator() != nil {
			fmt.Fprintf(&buf, "// iterator %s\n", d.body.IteratorClass().Name())
			ast.Fprint(&buf, d.body.Iterator())
		}
	}
	return buf.Bytes(), nil
}

// fprintInput writes the undecompiled body, as in read-only mode.
func (d *document) fprintInput(w io.Writer) {
	if d.body != nil {
		il.Fprint(w, d.body.Input())
	}
}

// runWatch calls run, then calls it again every time filename changes,
// until ctx is cancelled. It returns the exit code of the last run.
func runWatch(ctx context.Context, filename string, run func() int) int {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer w.Close()

	// Editors often replace the file; watch its directory.
	abs, err := filepath.Abs(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	code := run()
	for {
		select {
		case <-ctx.Done():
			return code
		case ev, ok := <-w.Events:
			if !ok {
				return code
			}
			if filepath.Clean(ev.Name) != abs || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			fmt.Fprintf(os.Stderr, "--- %s changed ---\n", filename)
			code = run()
		case err, ok := <-w.Errors:
			if !ok {
				return code
			}
			fmt.Fprintf(os.Stderr, "watch: %v\n", err)
		}
	}
}
