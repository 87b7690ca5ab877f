package passes

import (
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
	"github.com/you-not-fish/destack/internal/types"
)

// usingRule turns an acquisition followed by a try whose finally block
// disposes the acquired local into a using statement.
func usingRule(ctx *decomp.Context, b *ast.Block) bool {
	for i := 1; i < len(b.Stmts); i++ {
		t, ok := b.Stmts[i].(*ast.Try)
		if !ok || t.Finally == nil || len(t.Catches) > 0 || t.Fault != nil {
			continue
		}
		acq := b.Stmts[i-1]
		var l *ast.Local
		switch s := acq.(type) {
		case *ast.LocalDecl:
			if s.Init != nil && ast.CountPops(s.Init) == 0 {
				l = s.Local
			}
		case *ast.ExprStmt:
			if v, as := localTarget(s); v != nil && ast.CountPops(as.Value) == 0 {
				l = v
			}
		}
		if l == nil || ctx.Assigns(l) != 1 {
			continue
		}
		tmp, ok := disposes(t.Finally.Stmts, l)
		if !ok {
			continue
		}
		ctx.Discard(t.Finally)
		u := ast.New(ctx.Arena, &ast.Using{Acquire: acq, Body: t.Body})
		b.Stmts = splice(b.Stmts, i-1, i+1, u)
		if tmp != nil && ctx.Unused(tmp) {
			removeDecl(ctx, tmp)
		}
		return true
	}
	return false
}

// disposes matches the finally blocks that dispose l:
//
//	l.Dispose();
//	if (l != null) l.Dispose();
//	t = l as IDisposable; if (t != null) t.Dispose();
//
// For the last form it returns t.
func disposes(stmts []ast.Stmt, l *ast.Local) (*ast.Local, bool) {
	switch len(stmts) {
	case 1:
		if disposeCall(stmts[0], l) {
			return nil, true
		}
		return nil, nullChecked(stmts[0], l)
	case 2:
		t, as := localTarget(stmts[0])
		if t == nil {
			return nil, false
		}
		c, ok := as.Value.(*ast.Cast)
		if !ok || c.Kind != ast.IsInst || !localRef(c.X, l) {
			return nil, false
		}
		return t, nullChecked(stmts[1], t)
	}
	return nil, false
}

func nullChecked(s ast.Stmt, l *ast.Local) bool {
	f, ok := s.(*ast.If)
	if !ok || f.Else != nil || len(f.Then.Stmts) != 1 {
		return false
	}
	cmp, ok := f.Cond.(*ast.Binary)
	if !ok || cmp.Op != ast.Ne || !localRef(cmp.X, l) || !ast.IsNullConst(cmp.Y) {
		return false
	}
	return disposeCall(f.Then.Stmts[0], l)
}

func disposeCall(s ast.Stmt, l *ast.Local) bool {
	c := callTo(s)
	if c == nil || !localRef(c.Recv, l) || len(c.Args) != 0 {
		return false
	}
	return types.IsMethod(c.Method, types.DisposableType, types.Dispose, 0) ||
		c.Method != nil && c.Method.Name() == types.Dispose && len(c.Method.Params()) == 0
}
