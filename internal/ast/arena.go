package ast

import (
	"fmt"

	"github.com/you-not-fish/destack/internal/types"
)

// Arena allocates the IDs of one method's nodes, locals and labels. IDs
// start at 1; 0 marks a node that was never allocated.
type Arena struct {
	next ID
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// New assigns a fresh ID to n and returns it.
func New[N Node](a *Arena, n N) N {
	a.next++
	n.setID(a.next)
	return n
}

// Len returns the number of IDs allocated so far.
func (a *Arena) Len() int {
	return int(a.next)
}

// NewLocal allocates a local. An empty name is replaced by V_<index>.
func (a *Arena) NewLocal(name string, typ types.Type, index int) *Local {
	a.next++
	if name == "" {
		name = fmt.Sprintf("V_%d", index)
	}
	return &Local{id: a.next, Name: name, Type: typ, Index: index}
}

// NewLabel allocates a label for the instruction at offset, or a
// synthesized label if offset is negative.
func (a *Arena) NewLabel(offset int) *Label {
	a.next++
	name := fmt.Sprintf("IL_%04x", offset)
	if offset < 0 {
		name = fmt.Sprintf("L_%d", a.next)
	}
	return &Label{id: a.next, Name: name, Offset: offset}
}

// Helpers for the nodes the passes build most often.

// Int returns an integer constant of type t.
func (a *Arena) Int(v int64, t types.Type) *Const {
	c := New(a, &Const{Value: v})
	c.SetType(t)
	return c
}

// Bool returns a boolean constant.
func (a *Arena) Bool(v bool) *Const {
	var i int64
	if v {
		i = 1
	}
	return a.Int(i, types.Typ[types.Bool])
}

// Null returns the null constant.
func (a *Arena) Null() *Const {
	c := New(a, &Const{})
	c.SetType(types.Typ[types.UntypedNull])
	return c
}

// Ref returns a read of l.
func (a *Arena) Ref(l *Local) *LocalRef {
	r := New(a, &LocalRef{Local: l})
	r.SetType(l.Type)
	return r
}

// Goto returns a goto to l.
func (a *Arena) Goto(l *Label) *Goto {
	return New(a, &Goto{Label: l})
}

// Block returns an untagged block over [start, end) holding stmts.
func (a *Arena) Block(start, end int, stmts ...Stmt) *Block {
	return New(a, &Block{Start: start, End: end, Stmts: stmts})
}

// IsConst reports whether e is an integral constant equal to v.
func IsConst(e Expr, v int64) bool {
	c, ok := e.(*Const)
	if !ok {
		return false
	}
	i, ok := c.Value.(int64)
	return ok && i == v
}

// IsNullConst reports whether e is the null constant.
func IsNullConst(e Expr) bool {
	c, ok := e.(*Const)
	return ok && c.Value == nil
}

// BoolValue reports the value of e as a 0/1 or boolean constant.
func BoolValue(e Expr) (value, ok bool) {
	switch {
	case IsConst(e, 0):
		return false, true
	case IsConst(e, 1):
		return true, true
	}
	return false, false
}
