// Package cfg builds the control-flow graph of an IL method body: basic
// blocks, successor edges and the operand-stack shape on entry to each
// block.
package cfg

import (
	"fmt"

	"github.com/you-not-fish/destack/internal/il"
	"github.com/you-not-fish/destack/internal/types"
)

// BlockKind describes how a basic block terminates.
type BlockKind int

const (
	BlockPlain  BlockKind = iota // falls through or jumps to Succs[0]
	BlockIf                      // conditional: Succs[0] taken, Succs[1] fall through
	BlockSwitch                  // jump table, then fall through
	BlockReturn
	BlockThrow
	BlockLeave      // exits a protected region to Succs[0]
	BlockEndHandler // endfinally or endfilter
)

var blockKindNames = [...]string{
	BlockPlain:      "plain",
	BlockIf:         "if",
	BlockSwitch:     "switch",
	BlockReturn:     "ret",
	BlockThrow:      "throw",
	BlockLeave:      "leave",
	BlockEndHandler: "endhandler",
}

// String returns the string representation of the block kind.
func (k BlockKind) String() string {
	if int(k) < len(blockKindNames) {
		return blockKindNames[k]
	}
	return "unknown"
}

// EntryKind tells why a block starts a region.
type EntryKind int

const (
	EntryNone    EntryKind = iota
	EntryMethod            // first block of the body
	EntryHandler           // first block of a catch/finally/fault handler
	EntryFilter            // first block of a filter decision
)

// Block is a basic block: a maximal run of instructions with a single
// entry and no internal branches.
type Block struct {
	ID    int
	Kind  BlockKind
	Entry EntryKind

	// Start and End delimit the block: [Start, End) in byte offsets.
	Start, End int

	Instrs []*il.Instruction

	// Succs lists the normal successors followed by exceptional ones
	// (handler entries of regions this block starts).
	Succs []*Block
	Preds []*Block

	// NumExc is the number of exceptional successors at the end of Succs.
	NumExc int

	// StackIn is the operand stack on entry, bottom first. It is nil for
	// blocks unreachable by normal or exceptional flow.
	StackIn []types.Type

	// Dominance tree fields, populated by ComputeDom.
	Idom     *Block
	Dominees []*Block
}

// String returns a short string representation (e.g., "b3").
func (b *Block) String() string {
	return fmt.Sprintf("b%d", b.ID)
}

// Last returns the terminating instruction.
func (b *Block) Last() *il.Instruction {
	return b.Instrs[len(b.Instrs)-1]
}

// NormalSuccs returns the successors reached by ordinary control flow.
func (b *Block) NormalSuccs() []*Block {
	return b.Succs[:len(b.Succs)-b.NumExc]
}

// FallsThrough reports whether control can run off the end of b into the
// next block in offset order.
func (b *Block) FallsThrough() bool {
	return !b.Last().Op.Unconditional()
}

func (b *Block) addSucc(succ *Block) {
	b.Succs = append(b.Succs, succ)
	succ.Preds = append(succ.Preds, b)
}
