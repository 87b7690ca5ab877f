package il

import "strings"

// Flags select optional decompilation features.
type Flags uint8

const (
	Loops              Flags = 1 << iota // reconstruct while/do/for loops
	AnonymousDelegates                   // reinstate lambdas from closure classes
	Iterators                            // reconstruct yield from iterator classes
	StackElimination                     // replace push/pop with temporaries
	ReadOnly                             // skip decompilation, expose the input as is
)

// DefaultFlags enables every reconstruction.
const DefaultFlags = Loops | AnonymousDelegates | Iterators | StackElimination

var flagNames = []struct {
	f    Flags
	name string
}{
	{Loops, "loops"},
	{AnonymousDelegates, "delegates"},
	{Iterators, "iterators"},
	{StackElimination, "unstack"},
	{ReadOnly, "read-only"},
}

// Has reports whether all of f2 are set.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

func (f Flags) String() string {
	var names []string
	for _, n := range flagNames {
		if f.Has(n.f) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
