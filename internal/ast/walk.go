package ast

// Visitor is called for each node during Walk.
// If it returns false, the children of the node are not visited.
type Visitor func(node Node) bool

// Walk traverses a tree in depth-first order.
// If visitor returns false, children are not visited.
func Walk(node Node, v Visitor) {
	if isNil(node) || !v(node) {
		return
	}

	switch n := node.(type) {
	// Expressions
	case *Const, *LocalRef, *ParamRef, *ThisRef, *Token, *SizeOf,
		*DefaultValue, *PopValue, *DupValue:
		// leaves

	case *FieldRef:
		walkExpr(n.Instance, v)

	case *ArrayIndex:
		Walk(n.Array, v)
		walkExprs(n.Indices, v)

	case *Deref:
		Walk(n.X, v)

	case *AddrOf:
		Walk(n.X, v)

	case *Binary:
		Walk(n.X, v)
		Walk(n.Y, v)

	case *Unary:
		Walk(n.X, v)

	case *Conv:
		Walk(n.X, v)

	case *Cast:
		Walk(n.X, v)

	case *Call:
		walkExpr(n.Recv, v)
		walkExprs(n.Args, v)

	case *NewObj:
		walkExprs(n.Args, v)

	case *NewArray:
		walkExprs(n.Sizes, v)
		walkExprs(n.Init, v)

	case *ArrayLen:
		Walk(n.X, v)

	case *Cond:
		Walk(n.C, v)
		Walk(n.T, v)
		Walk(n.F, v)

	case *BlockExpr:
		walkStmts(n.Stmts, v)
		walkExpr(n.Result, v)

	case *Assign:
		Walk(n.Target, v)
		Walk(n.Value, v)

	case *OpAssign:
		Walk(n.Target, v)
		walkExpr(n.Value, v)

	case *PropertyRef:
		walkExpr(n.Recv, v)
		walkExprs(n.Args, v)

	case *MethodPtr:
		walkExpr(n.Recv, v)

	case *AnonymousDelegate:
		walkBlock(n.Body, v)

	// Statements
	case *Block:
		walkStmts(n.Stmts, v)

	case *ExprStmt:
		Walk(n.X, v)

	case *LocalDecl:
		walkExpr(n.Init, v)

	case *If:
		Walk(n.Cond, v)
		walkBlock(n.Then, v)
		walkBlock(n.Else, v)

	case *Switch:
		Walk(n.X, v)
		for _, c := range n.Cases {
			Walk(c, v)
		}

	case *Case:
		walkBlock(n.Body, v)

	case *Try:
		walkBlock(n.Body, v)
		for _, c := range n.Catches {
			Walk(c, v)
		}
		walkBlock(n.Finally, v)
		walkBlock(n.Fault, v)

	case *Catch:
		walkBlock(n.Filter, v)
		walkExpr(n.FilterExpr, v)
		walkBlock(n.Body, v)

	case *Lock:
		Walk(n.Guard, v)
		walkBlock(n.Body, v)

	case *Using:
		Walk(n.Acquire, v)
		walkBlock(n.Body, v)

	case *While:
		Walk(n.Cond, v)
		walkBlock(n.Body, v)

	case *DoWhile:
		walkBlock(n.Body, v)
		Walk(n.Cond, v)

	case *For:
		walkStmt(n.Init, v)
		walkExpr(n.Cond, v)
		walkStmt(n.Post, v)
		walkBlock(n.Body, v)

	case *Return:
		walkExpr(n.X, v)

	case *Throw:
		walkExpr(n.X, v)

	case *Push:
		Walk(n.X, v)

	case *EndFilter:
		Walk(n.X, v)

	case *YieldReturn:
		Walk(n.X, v)

	case *Goto, *LabelStmt, *Break, *Continue, *EndFinally, *YieldBreak, *Empty:
		// leaves
	}
}

func walkExpr(e Expr, v Visitor) {
	if e != nil {
		Walk(e, v)
	}
}

func walkStmt(s Stmt, v Visitor) {
	if s != nil {
		Walk(s, v)
	}
}

func walkBlock(b *Block, v Visitor) {
	if b != nil {
		Walk(b, v)
	}
}

func walkExprs(list []Expr, v Visitor) {
	for _, e := range list {
		Walk(e, v)
	}
}

func walkStmts(list []Stmt, v Visitor) {
	for _, s := range list {
		Walk(s, v)
	}
}

// isNil reports whether node is nil, including a nil *Block stored in the
// interface.
func isNil(node Node) bool {
	if node == nil {
		return true
	}
	b, ok := node.(*Block)
	return ok && b == nil
}

// Inspect traverses a tree in depth-first order, calling f for each node.
// It is a convenience wrapper around Walk.
func Inspect(node Node, f func(Node) bool) {
	Walk(node, f)
}

// Blocks returns the blocks nested directly in s, in source order.
func Blocks(s Stmt) []*Block {
	var out []*Block
	add := func(b *Block) {
		if b != nil {
			out = append(out, b)
		}
	}
	switch s := s.(type) {
	case *Block:
		add(s)
	case *If:
		add(s.Then)
		add(s.Else)
	case *Switch:
		for _, c := range s.Cases {
			add(c.Body)
		}
	case *Try:
		add(s.Body)
		for _, c := range s.Catches {
			add(c.Filter)
			add(c.Body)
		}
		add(s.Finally)
		add(s.Fault)
	case *Lock:
		add(s.Body)
	case *Using:
		add(s.Body)
	case *While:
		add(s.Body)
	case *DoWhile:
		add(s.Body)
	case *For:
		add(s.Body)
	}
	return out
}

// ForEachBlock calls f for b and every block nested in it, innermost
// first. Blocks inside expressions (delegate bodies) are not visited.
func ForEachBlock(b *Block, f func(*Block)) {
	for _, s := range b.Stmts {
		for _, c := range Blocks(s) {
			ForEachBlock(c, f)
		}
	}
	f(b)
}
