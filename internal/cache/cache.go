// Package cache stores rendered method bodies on disk, keyed by the content
// of the input they were decompiled from.
//
// A key is the BLAKE3 digest of a method's disassembly, the disassembly of
// every synthetic member of its module (closure and iterator bodies feed
// into the output of the methods that create them) and a variant string
// naming the flags and output format. Entries are CBOR encoded and record
// the version of the tool that wrote them; entries written by a release
// with a different major or minor version are ignored.
package cache

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"
	"github.com/zeebo/blake3"

	"github.com/you-not-fish/destack/internal/il"
	"github.com/you-not-fish/destack/internal/types"
)

var log = commonlog.GetLogger("destack.cache")

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cache: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Key identifies a cache entry.
type Key [32]byte

func (k Key) String() string { return hex.EncodeToString(k[:]) }

// KeyOf returns the key of body, a method of mod, rendered in variant.
func KeyOf(mod *il.Module, body *il.Body, variant string) Key {
	h := blake3.New()
	fmt.Fprintf(h, "destack\x00%s\x00", variant)
	il.Fprint(h, body)
	for _, t := range mod.Types {
		writeSynthetic(h, mod, t)
	}
	var k Key
	copy(k[:], h.Sum(nil))
	return k
}

func writeSynthetic(w io.Writer, mod *il.Module, t *types.Named) {
	if t.Synthetic() {
		fmt.Fprintf(w, "\x00type %s %s\n", t.Name(), t.Kind())
		for _, f := range t.Fields() {
			fmt.Fprintf(w, "field %s %s %x\n", f.Name(), il.FormatType(f.Type()), f.Data())
		}
	} else {
		for _, f := range t.Fields() {
			if f.Synthetic() {
				fmt.Fprintf(w, "field %s::%s %s %x\n", t.Name(), f.Name(), il.FormatType(f.Type()), f.Data())
			}
		}
	}
	for _, m := range t.Methods() {
		if !t.Synthetic() && !m.Synthetic() {
			continue
		}
		if b := mod.BodyOf(m); b != nil {
			il.Fprint(w, b)
		} else {
			fmt.Fprintf(w, "%s\n", il.FormatMethod(m))
		}
	}
}

// Entry is a cached rendering of one method.
type Entry struct {
	Version string   `cbor:"version"`
	Method  string   `cbor:"method"`
	Variant string   `cbor:"variant"`
	Text    string   `cbor:"text"`
	Elided  []string `cbor:"elided,omitempty"` // full names of the methods the body made redundant
	Failed  string   `cbor:"failed,omitempty"`  // decompilation error, if any
}

// Cache is a directory of entries.
type Cache struct {
	dir     string
	version *semver.Version
}

// Open opens the cache in dir, creating it if needed. version is the
// version of the running tool.
func Open(dir, version string) (*Cache, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("invalid tool version %q: %w", version, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create cache directory: %w", err)
	}
	return &Cache{dir: dir, version: v}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) path(k Key) string {
	s := k.String()
	return filepath.Join(c.dir, s[:2], s[2:]+".cbor")
}

// Get returns the entry stored under k. Unreadable, corrupt and
// incompatible entries are misses.
func (c *Cache) Get(k Key) (*Entry, bool) {
	data, err := os.ReadFile(c.path(k))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warningf("%s: %s", k, err)
		}
		return nil, false
	}
	var e Entry
	if err := cbor.Unmarshal(data, &e); err != nil {
		log.Warningf("%s: corrupt entry: %s", k, err)
		return nil, false
	}
	if !c.Compatible(e.Version) {
		log.Debugf("%s: written by %s, ignoring", k, e.Version)
		return nil, false
	}
	log.Debugf("hit %s for %s", k, e.Method)
	return &e, true
}

// Compatible reports whether entries written by version can be used.
func (c *Cache) Compatible(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return v.Major() == c.version.Major() && v.Minor() == c.version.Minor()
}

// Put stores e under k, replacing any previous entry. The entry's version
// is set to the tool version.
func (c *Cache) Put(k Key, e *Entry) error {
	e.Version = c.version.String()
	data, err := encMode.Marshal(e)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", k, err)
	}

	path := c.path(k)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("cache: write %s: %w", k, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("cache: write %s: %w", k, err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("cache: %w", err)
	}
	log.Debugf("stored %s for %s", k, e.Method)
	return nil
}
