package ast

// Rewrite replaces every expression in the tree rooted at n by f applied to
// it, bottom-up: f sees an expression after its operands were rewritten.
// Returning the argument unchanged keeps the node. Statements are updated
// in place.
func Rewrite(n Node, f func(Expr) Expr) {
	r := rewriter(f)
	switch n := n.(type) {
	case Expr:
		r.expr(n)
	case Stmt:
		r.stmt(n)
	case *Case:
		r.block(n.Body)
	case *Catch:
		r.catch(n)
	}
}

// RewriteExpr is Rewrite for an expression root; it returns the
// replacement of e itself.
func RewriteExpr(e Expr, f func(Expr) Expr) Expr {
	return rewriter(f).expr(e)
}

type rewriter func(Expr) Expr

func (f rewriter) expr(e Expr) Expr {
	if e == nil {
		return nil
	}
	switch e := e.(type) {
	case *FieldRef:
		e.Instance = f.expr(e.Instance)
	case *ArrayIndex:
		e.Array = f.expr(e.Array)
		f.list(e.Indices)
	case *Deref:
		e.X = f.expr(e.X)
	case *AddrOf:
		e.X = f.expr(e.X)
	case *Binary:
		e.X = f.expr(e.X)
		e.Y = f.expr(e.Y)
	case *Unary:
		e.X = f.expr(e.X)
	case *Conv:
		e.X = f.expr(e.X)
	case *Cast:
		e.X = f.expr(e.X)
	case *Call:
		e.Recv = f.expr(e.Recv)
		f.list(e.Args)
	case *NewObj:
		f.list(e.Args)
	case *NewArray:
		f.list(e.Sizes)
		f.list(e.Init)
	case *ArrayLen:
		e.X = f.expr(e.X)
	case *Cond:
		e.C = f.expr(e.C)
		e.T = f.expr(e.T)
		e.F = f.expr(e.F)
	case *BlockExpr:
		for _, s := range e.Stmts {
			f.stmt(s)
		}
		e.Result = f.expr(e.Result)
	case *Assign:
		e.Target = f.expr(e.Target)
		e.Value = f.expr(e.Value)
	case *OpAssign:
		e.Target = f.expr(e.Target)
		e.Value = f.expr(e.Value)
	case *PropertyRef:
		e.Recv = f.expr(e.Recv)
		f.list(e.Args)
	case *MethodPtr:
		e.Recv = f.expr(e.Recv)
	case *AnonymousDelegate:
		f.block(e.Body)
	}
	return f(e)
}

func (f rewriter) list(list []Expr) {
	for i, e := range list {
		list[i] = f.expr(e)
	}
}

func (f rewriter) block(b *Block) {
	if b == nil {
		return
	}
	for _, s := range b.Stmts {
		f.stmt(s)
	}
}

func (f rewriter) catch(c *Catch) {
	f.block(c.Filter)
	c.FilterExpr = f.expr(c.FilterExpr)
	f.block(c.Body)
}

func (f rewriter) stmt(s Stmt) {
	switch s := s.(type) {
	case *Block:
		f.block(s)
	case *ExprStmt:
		s.X = f.expr(s.X)
	case *LocalDecl:
		s.Init = f.expr(s.Init)
	case *If:
		s.Cond = f.expr(s.Cond)
		f.block(s.Then)
		f.block(s.Else)
	case *Switch:
		s.X = f.expr(s.X)
		for _, c := range s.Cases {
			f.block(c.Body)
		}
	case *Try:
		f.block(s.Body)
		for _, c := range s.Catches {
			f.catch(c)
		}
		f.block(s.Finally)
		f.block(s.Fault)
	case *Lock:
		s.Guard = f.expr(s.Guard)
		f.block(s.Body)
	case *Using:
		f.stmt(s.Acquire)
		f.block(s.Body)
	case *While:
		s.Cond = f.expr(s.Cond)
		f.block(s.Body)
	case *DoWhile:
		f.block(s.Body)
		s.Cond = f.expr(s.Cond)
	case *For:
		if s.Init != nil {
			f.stmt(s.Init)
		}
		s.Cond = f.expr(s.Cond)
		if s.Post != nil {
			f.stmt(s.Post)
		}
		f.block(s.Body)
	case *Return:
		s.X = f.expr(s.X)
	case *Throw:
		s.X = f.expr(s.X)
	case *Push:
		s.X = f.expr(s.X)
	case *EndFilter:
		s.X = f.expr(s.X)
	case *YieldReturn:
		s.X = f.expr(s.X)
	}
}
