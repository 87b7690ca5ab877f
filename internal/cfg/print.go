package cfg

import (
	"fmt"
	"io"
	"strings"

	"github.com/you-not-fish/destack/internal/il"
)

// Fprint writes the basic blocks of g to w.
//
// Format:
//
//	b0 [IL_0000, IL_0006) if stack() -> b2 b1
//	  IL_0000: ldarg a
//	  ...
func Fprint(w io.Writer, g *Graph) {
	for _, b := range g.Blocks {
		stack := make([]string, len(b.StackIn))
		for i, t := range b.StackIn {
			stack[i] = il.FormatType(t)
		}
		fmt.Fprintf(w, "%s [IL_%04x, IL_%04x) %s stack(%s)", b, b.Start, b.End, b.Kind, strings.Join(stack, ", "))
		switch b.Entry {
		case EntryHandler:
			fmt.Fprintf(w, " handler")
		case EntryFilter:
			fmt.Fprintf(w, " filter")
		}
		if !g.Reachable(b) {
			fmt.Fprintf(w, " unreachable")
		}
		if len(b.Succs) > 0 {
			fmt.Fprintf(w, " ->")
			for i, s := range b.Succs {
				mark := ""
				if i >= len(b.Succs)-b.NumExc {
					mark = "!"
				}
				fmt.Fprintf(w, " %s%s", mark, s)
			}
		}
		fmt.Fprintf(w, "\n")
		for _, ins := range b.Instrs {
			fmt.Fprintf(w, "  %s\n", ins)
		}
	}
}
