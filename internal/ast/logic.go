package ast

import "github.com/you-not-fish/destack/internal/types"

var inverse = [...]BinaryOp{
	Eq: Ne,
	Ne: Eq,
	Lt: Ge,
	Le: Gt,
	Gt: Le,
	Ge: Lt,
}

// Truth returns e as a condition: integers compare against zero and
// references against null. Boolean expressions are returned unchanged.
func Truth(a *Arena, e Expr) Expr {
	t := e.Type()
	switch {
	case t == nil || types.IsBoolean(t):
		return e
	case types.IsReference(t) || types.IsNull(t) || types.IsPointerLike(t):
		return compare(a, Ne, e, a.Null())
	case types.IsNumeric(t) || types.IsEnum(t) || types.IsUntyped(t):
		return compare(a, Ne, e, a.Int(0, e.Type()))
	}
	return e
}

// Invert returns the logical negation of the condition e. Comparisons are
// flipped, negations removed and short-circuit forms rewritten by De
// Morgan's laws; anything else is wrapped in !.
func Invert(a *Arena, e Expr) Expr {
	switch x := e.(type) {
	case *Unary:
		if x.Op == Not {
			return x.X
		}
	case *Const:
		if v, ok := BoolValue(x); ok && (x.Type() == nil || types.IsBoolean(x.Type())) {
			return a.Bool(!v)
		}
	case *Binary:
		if !x.Op.IsComparison() {
			break
		}
		// Ordered comparisons of floats are not the negation of the
		// opposite comparison when an operand is NaN.
		if x.Op != Eq && x.Op != Ne && (isFloat(x.X) || isFloat(x.Y)) {
			break
		}
		b := New(a, &Binary{Op: inverse[x.Op], X: x.X, Y: x.Y, Unsigned: x.Unsigned})
		b.SetType(types.Typ[types.Bool])
		return b
	case *Cond:
		if IsLogical(x) {
			c := New(a, &Cond{C: x.C, T: Invert(a, x.T), F: Invert(a, x.F)})
			c.SetType(types.Typ[types.Bool])
			return c
		}
	}
	if t := e.Type(); t != nil && !types.IsBoolean(t) {
		if c := Truth(a, e); c != e {
			return Invert(a, c)
		}
	}
	u := New(a, &Unary{Op: Not, X: e})
	u.SetType(types.Typ[types.Bool])
	return u
}

func compare(a *Arena, op BinaryOp, x, y Expr) *Binary {
	b := New(a, &Binary{Op: op, X: x, Y: y})
	b.SetType(types.Typ[types.Bool])
	return b
}

func isFloat(e Expr) bool {
	return e.Type() != nil && types.IsFloat(e.Type())
}

// IsLogical reports whether c is a short-circuit form: one of its branches
// is a boolean constant.
func IsLogical(c *Cond) bool {
	_, t := BoolValue(c.T)
	_, f := BoolValue(c.F)
	return (t || f) && (c.Type() == nil || types.IsBoolean(c.Type()))
}

// AndAlso returns x && y.
func AndAlso(a *Arena, x, y Expr) *Cond {
	c := New(a, &Cond{C: x, T: y, F: a.Bool(false)})
	c.SetType(types.Typ[types.Bool])
	return c
}

// OrElse returns x || y.
func OrElse(a *Arena, x, y Expr) *Cond {
	c := New(a, &Cond{C: x, T: a.Bool(true), F: y})
	c.SetType(types.Typ[types.Bool])
	return c
}

// IsPure reports whether evaluating e has no side effects and does not
// touch the operand stack, so it may be duplicated, reordered or dropped.
func IsPure(e Expr) bool {
	pure := true
	Inspect(e, func(n Node) bool {
		switch n := n.(type) {
		case *Call, *NewObj, *NewArray, *Assign, *OpAssign, *PropertyRef,
			*PopValue, *DupValue, *BlockExpr, *AnonymousDelegate:
			pure = false
		case *Binary:
			if n.Checked || n.Op == Div || n.Op == Rem {
				pure = false
			}
		case *Cast:
			if n.Kind == CastClass || n.Kind == UnboxAny {
				pure = false
			}
		}
		return pure
	})
	return pure
}

// IsLeaf reports whether e is a constant or a variable read.
func IsLeaf(e Expr) bool {
	switch e.(type) {
	case *Const, *LocalRef, *ParamRef, *ThisRef:
		return true
	}
	return false
}

// CountPops returns the number of stack placeholders in n.
func CountPops(n Node) int {
	count := 0
	Inspect(n, func(n Node) bool {
		switch n.(type) {
		case *PopValue, *DupValue:
			count++
		case *AnonymousDelegate:
			return false
		}
		return true
	})
	return count
}
