package cfg

import "github.com/RoaringBitmap/roaring/v2"

// ReversePostOrder returns the blocks of g in reverse post-order,
// starting from g.Entry. Unreachable blocks are excluded.
func ReversePostOrder(g *Graph) []*Block {
	if g.Entry == nil {
		return nil
	}
	visited := make([]bool, len(g.Blocks))
	var order []*Block

	var dfs func(b *Block)
	dfs = func(b *Block) {
		if visited[b.ID] {
			return
		}
		visited[b.ID] = true
		for _, s := range b.Succs {
			dfs(s)
		}
		order = append(order, b)
	}
	dfs(g.Entry)

	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// ComputeDom computes the immediate dominator tree for g using
// Cooper, Harvey, and Kennedy's "A Simple, Fast Dominance Algorithm".
// It populates Block.Idom and Block.Dominees for all reachable blocks.
// Exceptional edges count, so a handler entry is dominated by the block
// that starts its try region.
func ComputeDom(g *Graph) {
	rpo := ReversePostOrder(g)
	if len(rpo) == 0 {
		return
	}

	rpoNum := make([]int, len(g.Blocks))
	for i, b := range rpo {
		rpoNum[b.ID] = i
	}

	intersect := func(b1, b2 *Block) *Block {
		for b1 != b2 {
			for rpoNum[b1.ID] > rpoNum[b2.ID] {
				b1 = b1.Idom
			}
			for rpoNum[b2.ID] > rpoNum[b1.ID] {
				b2 = b2.Idom
			}
		}
		return b1
	}

	// Entry dominates itself (sentinel).
	entry := rpo[0]
	entry.Idom = entry

	for _, b := range g.Blocks {
		if b != entry {
			b.Idom = nil
		}
		b.Dominees = nil
	}

	changed := true
	for changed {
		changed = false
		for _, b := range rpo[1:] {
			var newIdom *Block
			for _, p := range b.Preds {
				if p.Idom != nil {
					newIdom = p
					break
				}
			}
			if newIdom == nil {
				continue
			}
			for _, p := range b.Preds {
				if p == newIdom {
					continue
				}
				if p.Idom != nil {
					newIdom = intersect(p, newIdom)
				}
			}
			if b.Idom != newIdom {
				b.Idom = newIdom
				changed = true
			}
		}
	}

	entry.Idom = nil

	for _, b := range rpo {
		if b.Idom != nil {
			b.Idom.Dominees = append(b.Idom.Dominees, b)
		}
	}
}

// Dominates reports whether a dominates b. ComputeDom must have been
// called first.
func Dominates(a, b *Block) bool {
	for ; b != nil; b = b.Idom {
		if a == b {
			return true
		}
	}
	return false
}

// Loops returns the IDs of the reachable blocks that lie on a cycle.
//
// An edge p->h where h dominates p is a back edge; it contributes the
// natural loop of h, which is h and every block reaching p without
// passing through h. Cycles left once the back edges are removed are
// irreducible; their blocks are found as the strongly connected
// components of the remaining graph.
func (g *Graph) Loops() *roaring.Bitmap {
	loops := roaring.New()
	for _, p := range g.Blocks {
		if !g.Reachable(p) {
			continue
		}
		for _, h := range p.Succs {
			if Dominates(h, p) {
				g.naturalLoop(loops, h, p)
			}
		}
	}
	g.irreducible(loops)
	return loops
}

func (g *Graph) naturalLoop(loops *roaring.Bitmap, h, latch *Block) {
	body := roaring.New()
	body.Add(uint32(h.ID))
	work := []*Block{latch}
	for len(work) > 0 {
		b := work[len(work)-1]
		work = work[:len(work)-1]
		if !g.Reachable(b) || !body.CheckedAdd(uint32(b.ID)) {
			continue
		}
		work = append(work, b.Preds...)
	}
	loops.Or(body)
}

// irreducible adds the blocks of every cycle without a back edge to
// loops, using Tarjan's algorithm on the graph minus its back edges.
func (g *Graph) irreducible(loops *roaring.Bitmap) {
	index := make([]int, len(g.Blocks)) // 0: not visited yet
	low := make([]int, len(g.Blocks))
	onStack := make([]bool, len(g.Blocks))
	var stack []*Block
	next := 1

	var connect func(b *Block)
	connect = func(b *Block) {
		index[b.ID], low[b.ID] = next, next
		next++
		stack = append(stack, b)
		onStack[b.ID] = true
		for _, s := range b.Succs {
			if Dominates(s, b) {
				continue
			}
			if index[s.ID] == 0 {
				connect(s)
				low[b.ID] = min(low[b.ID], low[s.ID])
			} else if onStack[s.ID] {
				low[b.ID] = min(low[b.ID], index[s.ID])
			}
		}
		if low[b.ID] != index[b.ID] {
			return
		}
		var comp []*Block
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top.ID] = false
			comp = append(comp, top)
			if top == b {
				break
			}
		}
		if len(comp) > 1 {
			for _, c := range comp {
				loops.Add(uint32(c.ID))
			}
		}
	}
	if g.Entry != nil {
		connect(g.Entry)
	}
}
