package closure

import (
	"strings"

	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
	"github.com/you-not-fish/destack/internal/types"
)

// Field names the compiler gives the state machine of an iterator.
const (
	currentField = "<>2__current"
	stateField   = "<>1__state"
	thisField    = "<>4__this"
	paramPrefix  = "<>3__"
)

// Iterator is the body of an iterator method recovered from its state
// machine class.
type Iterator struct {
	Class    *types.Named
	MoveNext *types.Method
	Ctx      *decomp.Context // Ctx.Root holds the yield statements
}

// IsIteratorClass reports whether t is the state machine class of an
// iterator method.
func IsIteratorClass(t *types.Named) bool {
	return isClosureClass(t) && t.LookupMethod("MoveNext") != nil && t.LookupField(currentField) != nil
}

// iteratorClass returns the state machine the kickoff method creates.
func iteratorClass(root *ast.Block) *types.Named {
	var cls *types.Named
	ast.Inspect(root, func(n ast.Node) bool {
		if nw, ok := n.(*ast.NewObj); ok && nw.Ctor != nil && IsIteratorClass(nw.Ctor.Owner()) {
			cls = nw.Ctor.Owner()
		}
		return cls == nil
	})
	return cls
}

// ReconstructIterator recognizes a kickoff method that creates an
// iterator state machine and returns its MoveNext body rewritten in
// terms of yield statements, or nil if ctx is not an iterator method.
// The resulting tree keeps the dispatch of resumed states it cannot
// remove.
func ReconstructIterator(ctx *decomp.Context, load Loader) (*Iterator, *Elided, error) {
	cls := iteratorClass(ctx.Root)
	if cls == nil {
		return nil, nil, nil
	}
	mv := cls.LookupMethod("MoveNext")
	inner, err := load(mv, ctx.Arena)
	if err != nil {
		return nil, nil, err
	}
	it := &iterator{
		ctx:   inner,
		a:     inner.Arena,
		cls:   cls,
		state: cls.LookupField(stateField),
		cur:   cls.LookupField(currentField),
		maps:  make(map[*types.Field]ast.Expr),
	}
	it.kickoff(ctx.Root)
	it.substitute()
	it.removeDispatch()
	it.yields(inner.Root)
	if n := len(inner.Root.Stmts); n > 0 {
		if _, ok := inner.Root.Stmts[n-1].(*ast.YieldBreak); ok {
			inner.Root.Stmts = inner.Root.Stmts[:n-1]
		}
	}
	for _, l := range it.minted {
		hoist(inner, l)
	}
	inner.Recount()

	el := &Elided{}
	el.addType(cls)
	return &Iterator{Class: cls, MoveNext: mv, Ctx: inner}, el, nil
}

type iterator struct {
	ctx        *decomp.Context
	a          *ast.Arena
	cls        *types.Named
	state, cur *types.Field
	maps       map[*types.Field]ast.Expr
	minted     []*ast.Local
}

// kickoff reads the captures of this and of parameters from the writes
// the kickoff method makes to the new state machine.
func (it *iterator) kickoff(root *ast.Block) {
	ast.Inspect(root, func(n ast.Node) bool {
		as, ok := n.(*ast.Assign)
		if !ok {
			return true
		}
		f, ok := as.Target.(*ast.FieldRef)
		if !ok || f.Field == nil || f.Field.Owner() != it.cls {
			return true
		}
		switch v := as.Value.(type) {
		case *ast.ThisRef, *ast.ParamRef:
			it.maps[f.Field] = v
			// GetEnumerator copies <>3__n into n; MoveNext reads n.
			if name := f.Field.Name(); strings.HasPrefix(name, paramPrefix) {
				if g := it.cls.LookupField(name[len(paramPrefix):]); g != nil {
					it.maps[g] = v
				}
			}
		}
		return true
	})
}

func (it *iterator) isSelf(e ast.Expr) bool {
	_, ok := e.(*ast.ThisRef)
	return ok
}

// substitute rewrites accesses to the state machine's fields other than
// the state and current value.
func (it *iterator) substitute() {
	ast.Rewrite(it.ctx.Root, func(e ast.Expr) ast.Expr {
		f, ok := e.(*ast.FieldRef)
		if !ok || f.Field == nil || f.Field.Owner() != it.cls || !it.isSelf(f.Instance) {
			return e
		}
		if f.Field == it.state || f.Field == it.cur {
			return e
		}
		if v := it.maps[f.Field]; v != nil {
			return ast.Clone(it.a, v)
		}
		if f.Field.Name() == thisField {
			return e
		}
		l := it.ctx.NewTemp(localName(f.Field.Name()), f.Field.Type())
		l.Synthetic = false
		r := it.a.Ref(l)
		it.maps[f.Field] = r
		it.minted = append(it.minted, l)
		return ast.Clone(it.a, r)
	})
}

func (it *iterator) isField(e ast.Expr, f *types.Field) bool {
	r, ok := e.(*ast.FieldRef)
	return ok && f != nil && r.Field == f && it.isSelf(r.Instance)
}

// stateStore reports whether s stores a constant into the state field.
func (it *iterator) stateStore(s ast.Stmt) bool {
	es, ok := s.(*ast.ExprStmt)
	if !ok {
		return false
	}
	as, ok := es.X.(*ast.Assign)
	if !ok || !it.isField(as.Target, it.state) {
		return false
	}
	_, ok = as.Value.(*ast.Const)
	return ok
}

// removeDispatch drops the switch over the state that resumes execution
// after a yield, together with the jump that follows it. Each resumption
// label is then reached by falling through from its yield.
func (it *iterator) removeDispatch() {
	stmts := it.ctx.Root.Stmts
	i := 0
	for i < len(stmts) {
		if _, ok := stmts[i].(*ast.LocalDecl); !ok {
			break
		}
		i++
	}
	if i >= len(stmts) {
		return
	}
	start := i
	sw, ok := stmts[i].(*ast.Switch)
	if !ok {
		return
	}
	x := sw.X
	if r, ok := x.(*ast.LocalRef); ok && i > 0 {
		// num = this.<>1__state; switch (num)
		es, ok := stmts[i-1].(*ast.ExprStmt)
		if !ok {
			return
		}
		as, ok := es.X.(*ast.Assign)
		if !ok || !ast.Equal(as.Target, r) {
			return
		}
		x = as.Value
		start = i - 1
	}
	if !it.isField(x, it.state) {
		return
	}
	for _, c := range sw.Cases {
		if len(c.Body.Stmts) > 1 {
			return
		}
		if len(c.Body.Stmts) == 1 {
			if _, ok := c.Body.Stmts[0].(*ast.Goto); !ok {
				return
			}
		}
	}
	end := i + 1
	if end < len(stmts) {
		switch s := stmts[end].(type) {
		case *ast.Return:
			if v, ok := ast.BoolValue(s.X); ok && !v {
				end++
			}
		case *ast.Goto:
			end++
		}
	}
	it.ctx.Root.Stmts = append(stmts[:start:start], stmts[end:]...)
}

// yields rewrites
//
//	this.<>2__current = x; this.<>1__state = n; return true;
//
// to yield return x, return false to yield break, and drops the other
// constant stores to the state.
func (it *iterator) yields(b *ast.Block) {
	var out []ast.Stmt
	stmts := b.Stmts
	for i := 0; i < len(stmts); i++ {
		s := stmts[i]
		if x, n := it.yieldAt(stmts, i); n > 0 {
			out = append(out, ast.New(it.a, &ast.YieldReturn{X: x}))
			i += n - 1
			continue
		}
		if it.stateStore(s) {
			continue
		}
		if r, ok := s.(*ast.Return); ok {
			if v, ok := ast.BoolValue(r.X); ok && !v {
				out = append(out, ast.New(it.a, &ast.YieldBreak{}))
				continue
			}
		}
		for _, c := range ast.Blocks(s) {
			it.yields(c)
		}
		out = append(out, s)
	}
	b.Stmts = out
}

func (it *iterator) yieldAt(stmts []ast.Stmt, i int) (ast.Expr, int) {
	es, ok := stmts[i].(*ast.ExprStmt)
	if !ok {
		return nil, 0
	}
	as, ok := es.X.(*ast.Assign)
	if !ok || !it.isField(as.Target, it.cur) {
		return nil, 0
	}
	j := i + 1
	if j < len(stmts) && it.stateStore(stmts[j]) {
		j++
	}
	if j >= len(stmts) {
		return nil, 0
	}
	r, ok := stmts[j].(*ast.Return)
	if !ok {
		return nil, 0
	}
	if v, ok := ast.BoolValue(r.X); !ok || !v {
		return nil, 0
	}
	return as.Value, j - i + 1
}
