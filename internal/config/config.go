// Package config handles destack.toml configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/you-not-fish/destack/internal/decomp/passes"
	"github.com/you-not-fish/destack/internal/decompiler"
	"github.com/you-not-fish/destack/internal/il"
)

// FileName is the name FindAndLoad looks for.
const FileName = "destack.toml"

// Config is a destack.toml configuration.
type Config struct {
	Decompile Decompile `toml:"decompile"`
	Passes    Passes    `toml:"passes"`
	Run       Run       `toml:"run"`

	// Path is the file the configuration was loaded from (set at load time).
	Path string `toml:"-"`
}

// Decompile selects the reconstructions.
type Decompile struct {
	Loops              bool `toml:"loops"`
	AnonymousDelegates bool `toml:"anonymous-delegates"`
	Iterators          bool `toml:"iterators"`
	StackElimination   bool `toml:"stack-elimination"`
	ReadOnly           bool `toml:"read-only"`
}

// Passes configures the debugging aids of the pass driver.
type Passes struct {
	Verify     bool   `toml:"verify"`
	DumpBefore string `toml:"dump-before"`
	DumpAfter  string `toml:"dump-after"`
	DumpFunc   string `toml:"dump-func"`
}

// Run configures the command line driver.
type Run struct {
	Parallelism int    `toml:"parallelism"`
	CacheDir    string `toml:"cache-dir"`
	Verbosity   int    `toml:"verbosity"`
}

// Default returns the configuration used when no file is given: every
// reconstruction on, no dumps, one worker per CPU.
func Default() *Config {
	return &Config{
		Decompile: Decompile{
			Loops:              true,
			AnonymousDelegates: true,
			Iterators:          true,
			StackElimination:   true,
		},
	}
}

// Load parses the configuration file at path. Keys the file omits keep
// their default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}
	if c.Run.Parallelism < 0 {
		return nil, fmt.Errorf("%s: run.parallelism must not be negative", path)
	}

	c.Path, err = filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", path, err)
	}
	return c, nil
}

// FindAndLoad walks up from startDir to find a destack.toml file and
// loads it. It returns the default configuration if there is none.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return Default(), nil
		}
		dir = parent
	}
}

// Flags returns the decompilation flags the configuration selects.
func (c *Config) Flags() il.Flags {
	var f il.Flags
	for _, x := range []struct {
		on   bool
		flag il.Flags
	}{
		{c.Decompile.Loops, il.Loops},
		{c.Decompile.AnonymousDelegates, il.AnonymousDelegates},
		{c.Decompile.Iterators, il.Iterators},
		{c.Decompile.StackElimination, il.StackElimination},
		{c.Decompile.ReadOnly, il.ReadOnly},
	} {
		if x.on {
			f |= x.flag
		}
	}
	return f
}

// Options returns the module decompilation options of the configuration.
func (c *Config) Options() decompiler.ModuleOptions {
	return decompiler.ModuleOptions{
		Options: decompiler.Options{
			Flags: c.Flags(),
			Passes: passes.Config{
				Verify:     c.Passes.Verify,
				DumpBefore: c.Passes.DumpBefore,
				DumpAfter:  c.Passes.DumpAfter,
				DumpFunc:   c.Passes.DumpFunc,
			},
		},
		Parallelism: c.Run.Parallelism,
	}
}
