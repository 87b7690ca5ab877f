package cfg

import (
	"errors"
	"fmt"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/you-not-fish/destack/internal/il"
	"github.com/you-not-fish/destack/internal/types"
)

// ErrStack reports operand stacks that do not agree: an underflow, or two
// paths reaching a block with different depths.
var ErrStack = errors.New("inconsistent operand stack")

// Graph is the control-flow graph of one method body. It is immutable
// once built.
type Graph struct {
	Body   *il.Body
	Blocks []*Block // in offset order
	Entry  *Block

	byStart   map[int]*Block
	reachable *roaring.Bitmap
}

// Build splits body into basic blocks, links them, computes the stack
// shape on entry to every block and the dominator tree.
func Build(body *il.Body) (*Graph, error) {
	g := &Graph{Body: body, byStart: make(map[int]*Block)}
	if len(body.Instrs) == 0 {
		return g, nil
	}

	leaders := g.leaders()
	var cur *Block
	for _, ins := range body.Instrs {
		if cur == nil || leaders[ins.Offset] {
			cur = &Block{ID: len(g.Blocks), Start: ins.Offset}
			g.Blocks = append(g.Blocks, cur)
			g.byStart[ins.Offset] = cur
		}
		cur.Instrs = append(cur.Instrs, ins)
		cur.End = ins.Next()
	}
	g.Entry = g.Blocks[0]
	g.Entry.Entry = EntryMethod

	if err := g.link(); err != nil {
		return nil, err
	}
	g.markReachable()
	if err := g.computeStacks(); err != nil {
		return nil, err
	}
	ComputeDom(g)
	return g, nil
}

// leaders returns the offsets that start a basic block.
func (g *Graph) leaders() map[int]bool {
	body := g.Body
	leaders := map[int]bool{0: true}
	for _, ins := range body.Instrs {
		for _, t := range ins.Targets() {
			leaders[t] = true
		}
		if ins.Op.EndsBlock() {
			leaders[ins.Next()] = true
		}
	}
	for _, h := range body.Handlers {
		for _, off := range []int{h.TryStart, h.TryEnd, h.HandlerStart, h.HandlerEnd} {
			leaders[off] = true
		}
		if h.Kind == il.Filter {
			leaders[h.FilterStart] = true
		}
	}
	for _, s := range body.Scopes {
		leaders[s.Start] = true
		leaders[s.End] = true
	}
	return leaders
}

func (g *Graph) link() error {
	for i, b := range g.Blocks {
		last := b.Last()
		switch last.Op.Flow() {
		case il.FlowCond:
			b.Kind = BlockIf
		case il.FlowSwitch:
			b.Kind = BlockSwitch
		case il.FlowReturn:
			b.Kind = BlockReturn
		case il.FlowThrow:
			b.Kind = BlockThrow
		case il.FlowLeave:
			b.Kind = BlockLeave
		case il.FlowEndHandler:
			b.Kind = BlockEndHandler
		}
		for _, t := range last.Targets() {
			succ := g.byStart[t]
			if succ == nil {
				return fmt.Errorf("%s: branch target IL_%04x is not an instruction", last, t)
			}
			b.addSucc(succ)
		}
		if b.FallsThrough() {
			if i+1 >= len(g.Blocks) {
				return fmt.Errorf("%s: control falls off the end of the method", last)
			}
			b.addSucc(g.Blocks[i+1])
		}
	}
	for _, h := range g.Body.Handlers {
		try := g.byStart[h.TryStart]
		handler := g.byStart[h.HandlerStart]
		if try == nil || handler == nil {
			return fmt.Errorf("handler [IL_%04x, IL_%04x) does not start at an instruction", h.TryStart, h.TryEnd)
		}
		entries := []*Block{handler}
		if h.Kind == il.Filter {
			filter := g.byStart[h.FilterStart]
			if filter == nil {
				return fmt.Errorf("filter IL_%04x does not start at an instruction", h.FilterStart)
			}
			filter.Entry = EntryFilter
			entries = append(entries, filter)
		}
		handler.Entry = EntryHandler
		for _, e := range entries {
			try.addSucc(e)
			try.NumExc++
		}
	}
	return nil
}

func (g *Graph) markReachable() {
	g.reachable = roaring.New()
	work := []*Block{g.Entry}
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		if g.reachable.CheckedAdd(uint32(b.ID)) {
			work = append(work, b.Succs...)
		}
	}
}

// Reachable reports whether b can execute.
func (g *Graph) Reachable(b *Block) bool {
	return g.reachable.Contains(uint32(b.ID))
}

// NumReachable returns the number of reachable blocks.
func (g *Graph) NumReachable() int {
	return int(g.reachable.GetCardinality())
}

// BlockAt returns the block starting at offset, or nil.
func (g *Graph) BlockAt(offset int) *Block {
	return g.byStart[offset]
}

// BlockContaining returns the block whose range contains offset, or nil.
func (g *Graph) BlockContaining(offset int) *Block {
	i := sort.Search(len(g.Blocks), func(i int) bool { return g.Blocks[i].End > offset })
	if i < len(g.Blocks) && g.Blocks[i].Start <= offset {
		return g.Blocks[i]
	}
	return nil
}

// BlocksIn returns the blocks lying in [start, end), in offset order.
func (g *Graph) BlocksIn(start, end int) []*Block {
	i := sort.Search(len(g.Blocks), func(i int) bool { return g.Blocks[i].Start >= start })
	j := sort.Search(len(g.Blocks), func(i int) bool { return g.Blocks[i].Start >= end })
	return g.Blocks[i:j]
}

// entryStack returns the stack a handler or filter block starts with.
func (g *Graph) entryStack(b *Block) []types.Type {
	for _, h := range g.Body.Handlers {
		switch {
		case h.Kind == il.Filter && (b.Start == h.FilterStart || b.Start == h.HandlerStart):
			return []types.Type{exceptionType(h)}
		case h.Kind == il.Catch && b.Start == h.HandlerStart:
			return []types.Type{exceptionType(h)}
		case b.Start == h.HandlerStart:
			return []types.Type{}
		}
	}
	return []types.Type{}
}

func exceptionType(h *il.ExceptionHandler) types.Type {
	if h.CatchType != nil {
		return h.CatchType
	}
	return types.Typ[types.Object]
}

// computeStacks propagates stack shapes along normal edges from the
// method entry and every handler entry.
func (g *Graph) computeStacks() error {
	var work []*Block
	for _, b := range g.Blocks {
		if b.Entry != EntryNone {
			b.StackIn = g.entryStack(b)
			work = append(work, b)
		}
	}
	for len(work) > 0 {
		b := work[0]
		work = work[1:]
		out, err := g.simulate(b)
		if err != nil {
			return err
		}
		if b.Kind == BlockLeave {
			out = []types.Type{}
		}
		for _, s := range b.NormalSuccs() {
			if s.StackIn == nil {
				s.StackIn = out
				work = append(work, s)
				continue
			}
			if len(s.StackIn) != len(out) {
				return fmt.Errorf("%w: %s enters %s with depth %d, expected %d",
					ErrStack, b, s, len(out), len(s.StackIn))
			}
		}
	}
	return nil
}

// simulate runs the stack effects of b's instructions over its entry
// stack and returns the exit stack.
func (g *Graph) simulate(b *Block) ([]types.Type, error) {
	stack := append([]types.Type(nil), b.StackIn...)
	for _, ins := range b.Instrs {
		var err error
		stack, err = Effect(g.Body, ins, stack)
		if err != nil {
			return nil, err
		}
	}
	return stack, nil
}
