package passes

import (
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
	"github.com/you-not-fish/destack/internal/types"
)

// lockRule recognizes the two Monitor patterns compilers emit for lock:
//
//	monitor = G; taken = false;
//	try { Monitor.Enter(monitor, &taken); S } finally { if (taken) Monitor.Exit(monitor); }
//
// where the assignment of monitor may also be the first argument of Enter,
// and the older
//
//	Monitor.Enter(monitor = G);
//	try { S } finally { Monitor.Exit(monitor); }
func lockRule(ctx *decomp.Context, b *ast.Block) bool {
	for i, s := range b.Stmts {
		t, ok := s.(*ast.Try)
		if !ok || t.Finally == nil || len(t.Catches) > 0 || t.Fault != nil {
			continue
		}
		if m := matchLock(ctx, b, i, t); m != nil {
			m.apply(ctx, b, i, t)
			return true
		}
	}
	return false
}

type lockMatch struct {
	guard   ast.Expr
	monitor *ast.Local
	taken   *ast.Local  // nil for the single-argument form
	enter   ast.Stmt    // statement calling Enter
	store   ast.Stmt    // separate monitor = G, or nil
	holder  *ast.Assign // assignment whose value is the guard
	inBody  bool        // enter is the first statement of the try body
}

func enterCall(s ast.Stmt, n int) *ast.Call {
	c := callTo(s)
	if c == nil || !types.IsMethod(c.Method, types.MonitorType, types.Enter, n) || len(c.Args) != n {
		return nil
	}
	return c
}

func matchLock(ctx *decomp.Context, b *ast.Block, i int, t *ast.Try) *lockMatch {
	m := &lockMatch{}
	var enter *ast.Call
	if len(t.Body.Stmts) > 0 {
		if enter = enterCall(t.Body.Stmts[0], 2); enter != nil {
			m.enter, m.inBody = t.Body.Stmts[0], true
			addr, ok := enter.Args[1].(*ast.AddrOf)
			if !ok {
				return nil
			}
			r, ok := addr.X.(*ast.LocalRef)
			if !ok {
				return nil
			}
			m.taken = r.Local
		}
	}
	if enter == nil && i > 0 {
		if enter = enterCall(b.Stmts[i-1], 1); enter != nil {
			m.enter = b.Stmts[i-1]
		}
	}
	if enter == nil {
		return nil
	}

	switch x := enter.Args[0].(type) {
	case *ast.Assign:
		r, ok := x.Target.(*ast.LocalRef)
		if !ok {
			return nil
		}
		m.monitor, m.guard, m.holder = r.Local, x.Value, x
	case *ast.LocalRef:
		m.monitor = x.Local
		// The store precedes the try, possibly followed by taken = false.
		j := i - 1
		if !m.inBody {
			j--
		}
		for ; j >= 0 && j >= i-3; j-- {
			l, as := localTarget(b.Stmts[j])
			if l == m.monitor {
				m.store, m.guard, m.holder = b.Stmts[j], as.Value, as
				break
			}
			if l == nil || l != m.taken {
				return nil
			}
		}
		if m.store == nil {
			return nil
		}
	default:
		return nil
	}
	if ast.CountPops(m.guard) != 0 {
		return nil
	}

	// The finally block releases the monitor.
	fin := t.Finally.Stmts
	if len(fin) != 1 {
		return nil
	}
	exit := fin[0]
	if m.taken != nil {
		f, ok := exit.(*ast.If)
		if !ok || f.Else != nil || len(f.Then.Stmts) != 1 {
			return nil
		}
		cond, ok := f.Cond.(*ast.LocalRef)
		if !ok || cond.Local != m.taken {
			return nil
		}
		if ctx.Refs(m.taken) != 2 && !ctx.IsLastUse(cond) {
			return nil
		}
		exit = f.Then.Stmts[0]
	}
	c := callTo(exit)
	if c == nil || !types.IsMethod(c.Method, types.MonitorType, types.Exit, 1) || !localRef(c.Args[0], m.monitor) {
		return nil
	}
	if ctx.Assigns(m.monitor) != 1 || ctx.Refs(m.monitor) != monitorReads(m) {
		return nil
	}
	return m
}

// monitorReads is the number of reads of the monitor local the pattern
// itself contains.
func monitorReads(m *lockMatch) int {
	if m.store != nil {
		return 2
	}
	return 1
}

func (m *lockMatch) apply(ctx *decomp.Context, b *ast.Block, i int, t *ast.Try) {
	// The guard moves into the lock statement; everything else of the
	// pattern is dropped.
	m.holder.Value = nil
	ctx.Discard(m.enter)
	if m.store != nil {
		ctx.Discard(m.store)
	}
	ctx.Discard(t.Finally)

	body := t.Body
	if m.inBody {
		body.Stmts = body.Stmts[1:]
	}
	lock := ast.New(ctx.Arena, &ast.Lock{Guard: m.guard, Body: body})

	var out []ast.Stmt
	for k, s := range b.Stmts {
		switch {
		case k == i:
			out = append(out, lock)
		case s == m.enter || s == m.store:
		default:
			out = append(out, s)
		}
	}
	b.Stmts = out

	if m.taken != nil {
		dropStores(ctx, m.taken)
	}
	for _, l := range []*ast.Local{m.monitor, m.taken} {
		if l != nil && ctx.Unused(l) {
			removeDecl(ctx, l)
		}
	}
}

// dropStores removes the assignments of side-effect free values to l once
// nothing reads it.
func dropStores(ctx *decomp.Context, l *ast.Local) {
	if ctx.Refs(l) != 0 {
		return
	}
	ast.ForEachBlock(ctx.Root, func(b *ast.Block) {
		var out []ast.Stmt
		for _, s := range b.Stmts {
			if t, as := localTarget(s); t == l && ast.IsPure(as.Value) {
				ctx.Discard(s)
				continue
			}
			out = append(out, s)
		}
		b.Stmts = out
	})
}
