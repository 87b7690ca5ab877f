package ast

import "github.com/you-not-fish/destack/internal/types"

// Equal reports whether two expressions are structurally identical: the
// same shape, operators, constants, members and variables. Node IDs are
// not compared. Statement-carrying expressions never compare equal.
func Equal(x, y Expr) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	switch x := x.(type) {
	case *Const:
		y, ok := y.(*Const)
		return ok && x.Value == y.Value && sameType(x.Type(), y.Type())
	case *LocalRef:
		y, ok := y.(*LocalRef)
		return ok && x.Local == y.Local
	case *ParamRef:
		y, ok := y.(*ParamRef)
		return ok && x.Param == y.Param
	case *ThisRef:
		_, ok := y.(*ThisRef)
		return ok
	case *FieldRef:
		y, ok := y.(*FieldRef)
		return ok && x.Field == y.Field && Equal(x.Instance, y.Instance)
	case *ArrayIndex:
		y, ok := y.(*ArrayIndex)
		return ok && Equal(x.Array, y.Array) && equalList(x.Indices, y.Indices)
	case *Deref:
		y, ok := y.(*Deref)
		return ok && Equal(x.X, y.X)
	case *AddrOf:
		y, ok := y.(*AddrOf)
		return ok && Equal(x.X, y.X)
	case *Binary:
		y, ok := y.(*Binary)
		return ok && x.Op == y.Op && x.Unsigned == y.Unsigned && x.Checked == y.Checked &&
			Equal(x.X, y.X) && Equal(x.Y, y.Y)
	case *Unary:
		y, ok := y.(*Unary)
		return ok && x.Op == y.Op && Equal(x.X, y.X)
	case *Conv:
		y, ok := y.(*Conv)
		return ok && x.Checked == y.Checked && x.Unsigned == y.Unsigned &&
			sameType(x.To, y.To) && Equal(x.X, y.X)
	case *Cast:
		y, ok := y.(*Cast)
		return ok && x.Kind == y.Kind && sameType(x.To, y.To) && Equal(x.X, y.X)
	case *Call:
		y, ok := y.(*Call)
		return ok && x.Method == y.Method && x.Virtual == y.Virtual &&
			Equal(x.Recv, y.Recv) && equalList(x.Args, y.Args)
	case *NewObj:
		y, ok := y.(*NewObj)
		return ok && x.Ctor == y.Ctor && equalList(x.Args, y.Args)
	case *NewArray:
		y, ok := y.(*NewArray)
		return ok && sameType(x.Elem, y.Elem) && equalList(x.Sizes, y.Sizes) &&
			equalList(x.Init, y.Init)
	case *ArrayLen:
		y, ok := y.(*ArrayLen)
		return ok && Equal(x.X, y.X)
	case *Cond:
		y, ok := y.(*Cond)
		return ok && Equal(x.C, y.C) && Equal(x.T, y.T) && Equal(x.F, y.F)
	case *Assign:
		y, ok := y.(*Assign)
		return ok && Equal(x.Target, y.Target) && Equal(x.Value, y.Value)
	case *OpAssign:
		y, ok := y.(*OpAssign)
		return ok && x.Op == y.Op && x.Postfix == y.Postfix &&
			Equal(x.Target, y.Target) && Equal(x.Value, y.Value)
	case *PropertyRef:
		y, ok := y.(*PropertyRef)
		return ok && x.Getter == y.Getter && x.Setter == y.Setter &&
			Equal(x.Recv, y.Recv) && equalList(x.Args, y.Args)
	case *MethodPtr:
		y, ok := y.(*MethodPtr)
		return ok && x.Method == y.Method && Equal(x.Recv, y.Recv)
	case *Token:
		y, ok := y.(*Token)
		return ok && x.Operand == y.Operand
	case *SizeOf:
		y, ok := y.(*SizeOf)
		return ok && sameType(x.Of, y.Of)
	case *DefaultValue:
		y, ok := y.(*DefaultValue)
		return ok && sameType(x.Of, y.Of)
	}
	return false
}

func equalList(x, y []Expr) bool {
	if len(x) != len(y) {
		return false
	}
	for i := range x {
		if !Equal(x[i], y[i]) {
			return false
		}
	}
	return true
}

func sameType(x, y types.Type) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	return types.Identical(x, y)
}

// Clone returns a deep copy of e with fresh IDs from a. Locals, labels and
// members are shared with the original.
func Clone(a *Arena, e Expr) Expr {
	return cloner{a}.expr(e)
}

// CloneStmt is Clone for statements.
func CloneStmt(a *Arena, s Stmt) Stmt {
	return cloner{a}.stmt(s)
}

type cloner struct {
	a *Arena
}

func (c cloner) expr(e Expr) Expr {
	if e == nil {
		return nil
	}
	var out Expr
	switch e := e.(type) {
	case *Const:
		out = &Const{Value: e.Value}
	case *LocalRef:
		out = &LocalRef{Local: e.Local}
	case *ParamRef:
		out = &ParamRef{Param: e.Param}
	case *ThisRef:
		out = &ThisRef{}
	case *FieldRef:
		out = &FieldRef{Instance: c.expr(e.Instance), Field: e.Field}
	case *ArrayIndex:
		out = &ArrayIndex{Array: c.expr(e.Array), Indices: c.list(e.Indices)}
	case *Deref:
		out = &Deref{X: c.expr(e.X)}
	case *AddrOf:
		out = &AddrOf{X: c.expr(e.X)}
	case *Binary:
		out = &Binary{Op: e.Op, X: c.expr(e.X), Y: c.expr(e.Y), Unsigned: e.Unsigned, Checked: e.Checked}
	case *Unary:
		out = &Unary{Op: e.Op, X: c.expr(e.X)}
	case *Conv:
		out = &Conv{X: c.expr(e.X), To: e.To, Checked: e.Checked, Unsigned: e.Unsigned}
	case *Cast:
		out = &Cast{Kind: e.Kind, X: c.expr(e.X), To: e.To}
	case *Call:
		out = &Call{Method: e.Method, Recv: c.expr(e.Recv), Args: c.list(e.Args), Virtual: e.Virtual}
	case *NewObj:
		out = &NewObj{Ctor: e.Ctor, Args: c.list(e.Args)}
	case *NewArray:
		out = &NewArray{Elem: e.Elem, Sizes: c.list(e.Sizes), Init: c.list(e.Init)}
	case *ArrayLen:
		out = &ArrayLen{X: c.expr(e.X)}
	case *Cond:
		out = &Cond{C: c.expr(e.C), T: c.expr(e.T), F: c.expr(e.F)}
	case *BlockExpr:
		b := &BlockExpr{Result: c.expr(e.Result)}
		for _, s := range e.Stmts {
			b.Stmts = append(b.Stmts, c.stmt(s))
		}
		out = b
	case *Assign:
		out = &Assign{Target: c.expr(e.Target), Value: c.expr(e.Value)}
	case *OpAssign:
		out = &OpAssign{Op: e.Op, Target: c.expr(e.Target), Value: c.expr(e.Value), Postfix: e.Postfix}
	case *PropertyRef:
		out = &PropertyRef{Getter: e.Getter, Setter: e.Setter, Recv: c.expr(e.Recv), Args: c.list(e.Args)}
	case *MethodPtr:
		out = &MethodPtr{Method: e.Method, Recv: c.expr(e.Recv)}
	case *AnonymousDelegate:
		out = &AnonymousDelegate{Delegate: e.Delegate, Method: e.Method, Params: e.Params, Body: c.block(e.Body)}
	case *Token:
		out = &Token{Operand: e.Operand}
	case *SizeOf:
		out = &SizeOf{Of: e.Of}
	case *DefaultValue:
		out = &DefaultValue{Of: e.Of}
	case *PopValue:
		out = &PopValue{}
	case *DupValue:
		out = &DupValue{}
	default:
		panic("ast.Clone: unexpected expression")
	}
	out = New(c.a, out)
	out.SetType(e.Type())
	return out
}

func (c cloner) list(list []Expr) []Expr {
	if list == nil {
		return nil
	}
	out := make([]Expr, len(list))
	for i, e := range list {
		out[i] = c.expr(e)
	}
	return out
}

func (c cloner) block(b *Block) *Block {
	if b == nil {
		return nil
	}
	out := New(c.a, &Block{Start: b.Start, End: b.End, Kind: b.Kind, LexicalScope: b.LexicalScope})
	out.Seeds = append([]int(nil), b.Seeds...)
	for _, s := range b.Stmts {
		out.Stmts = append(out.Stmts, c.stmt(s))
	}
	return out
}

func (c cloner) stmt(s Stmt) Stmt {
	if s == nil {
		return nil
	}
	switch s := s.(type) {
	case *Block:
		return c.block(s)
	case *ExprStmt:
		return New(c.a, &ExprStmt{X: c.expr(s.X)})
	case *LocalDecl:
		return New(c.a, &LocalDecl{Local: s.Local, Init: c.expr(s.Init)})
	case *If:
		return New(c.a, &If{Cond: c.expr(s.Cond), Then: c.block(s.Then), Else: c.block(s.Else)})
	case *Goto:
		return New(c.a, &Goto{Label: s.Label})
	case *LabelStmt:
		return New(c.a, &LabelStmt{Label: s.Label})
	case *Switch:
		sw := New(c.a, &Switch{X: c.expr(s.X)})
		for _, cs := range s.Cases {
			sw.Cases = append(sw.Cases, New(c.a, &Case{Value: cs.Value, Default: cs.Default, Body: c.block(cs.Body)}))
		}
		return sw
	case *Try:
		t := New(c.a, &Try{Body: c.block(s.Body), Finally: c.block(s.Finally), Fault: c.block(s.Fault)})
		for _, h := range s.Catches {
			t.Catches = append(t.Catches, New(c.a, &Catch{
				Type:       h.Type,
				Var:        h.Var,
				Filter:     c.block(h.Filter),
				FilterExpr: c.expr(h.FilterExpr),
				Body:       c.block(h.Body),
			}))
		}
		return t
	case *Lock:
		return New(c.a, &Lock{Guard: c.expr(s.Guard), Body: c.block(s.Body)})
	case *Using:
		return New(c.a, &Using{Acquire: c.stmt(s.Acquire), Body: c.block(s.Body)})
	case *While:
		return New(c.a, &While{Cond: c.expr(s.Cond), Body: c.block(s.Body)})
	case *DoWhile:
		return New(c.a, &DoWhile{Body: c.block(s.Body), Cond: c.expr(s.Cond)})
	case *For:
		return New(c.a, &For{Init: c.stmt(s.Init), Cond: c.expr(s.Cond), Post: c.stmt(s.Post), Body: c.block(s.Body)})
	case *Break:
		return New(c.a, &Break{})
	case *Continue:
		return New(c.a, &Continue{})
	case *Return:
		return New(c.a, &Return{X: c.expr(s.X)})
	case *Throw:
		return New(c.a, &Throw{X: c.expr(s.X)})
	case *Push:
		return New(c.a, &Push{X: c.expr(s.X)})
	case *EndFinally:
		return New(c.a, &EndFinally{})
	case *EndFilter:
		return New(c.a, &EndFilter{X: c.expr(s.X)})
	case *YieldReturn:
		return New(c.a, &YieldReturn{X: c.expr(s.X)})
	case *YieldBreak:
		return New(c.a, &YieldBreak{})
	case *Empty:
		return New(c.a, &Empty{})
	}
	panic("ast.Clone: unexpected statement")
}
