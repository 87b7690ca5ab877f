package decomp

import (
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/types"
)

// InferTypes types every expression of ctx.Root bottom-up and inserts
// the coercions the contexts of the expressions require: conditions
// become booleans, assigned and returned values and call arguments take
// the declared type. Untyped integer constants are retyped in place.
//
// InferTypes may be run any number of times; a second run over its own
// output changes nothing.
func InferTypes(ctx *Context) {
	ti := &typer{a: ctx.Arena, this: ctx.Body.ThisType()}
	var result types.Type
	if ctx.Body.Method != nil {
		result = ctx.Body.Method.Result()
	}
	ti.block(ctx.Root, result)
}

type typer struct {
	a    *ast.Arena
	this types.Type
}

func (ti *typer) block(b *ast.Block, result types.Type) {
	ast.Rewrite(b, ti.expr)
	ti.stmts(b, result)
}

// stmts applies the statement contexts. Delegate bodies are typed against
// the result of their own method.
func (ti *typer) stmts(root ast.Node, result types.Type) {
	ast.Inspect(root, func(n ast.Node) bool {
		switch s := n.(type) {
		case *ast.AnonymousDelegate:
			var r types.Type
			if s.Method != nil {
				r = s.Method.Result()
			}
			if s.Body != nil {
				ti.stmts(s.Body, r)
			}
			return false
		case *ast.If:
			s.Cond = ti.cond(s.Cond)
		case *ast.While:
			s.Cond = ti.cond(s.Cond)
		case *ast.DoWhile:
			s.Cond = ti.cond(s.Cond)
		case *ast.For:
			if s.Cond != nil {
				s.Cond = ti.cond(s.Cond)
			}
		case *ast.Catch:
			if s.FilterExpr != nil {
				s.FilterExpr = ti.cond(s.FilterExpr)
			}
		case *ast.Return:
			if s.X != nil && !types.IsVoid(result) {
				s.X = ti.coerce(s.X, result)
			}
		case *ast.LocalDecl:
			if s.Init != nil {
				s.Init = ti.coerce(s.Init, s.Local.Type)
			}
		}
		return true
	})
}

// cond coerces e to a boolean condition.
func (ti *typer) cond(e ast.Expr) ast.Expr {
	return ti.coerce(e, types.Typ[types.Bool])
}

// expr types one expression whose operands are already typed.
func (ti *typer) expr(e ast.Expr) ast.Expr {
	switch e := e.(type) {
	case *ast.LocalRef:
		e.SetType(e.Local.Type)
	case *ast.ParamRef:
		e.SetType(e.Param.Type())
	case *ast.ThisRef:
		if ti.this != nil {
			e.SetType(ti.this)
		}
	case *ast.FieldRef:
		e.SetType(e.Field.Type())
	case *ast.ArrayIndex:
		if elem := types.Elem(e.Array.Type()); elem != nil {
			if _, ok := e.Array.Type().(*types.Array); ok {
				e.SetType(elem)
			}
		}
	case *ast.Deref:
		if elem := types.Elem(e.X.Type()); elem != nil && e.Type() == nil {
			e.SetType(elem)
		}
	case *ast.AddrOf:
		if e.X.Type() != nil {
			e.SetType(types.NewByRef(e.X.Type()))
		}
	case *ast.Binary:
		ti.binary(e)
		if x := ti.boolCompare(e); x != nil {
			return x
		}
	case *ast.Unary:
		if e.Op == ast.Not {
			e.X = ti.cond(e.X)
			e.SetType(types.Typ[types.Bool])
		} else if !types.IsUntyped(e.X.Type()) {
			e.SetType(types.Promote(e.X.Type()))
		} else {
			e.SetType(e.X.Type())
		}
	case *ast.Conv:
		if c, ok := e.X.(*ast.Const); ok && !e.Checked && !e.Unsigned && isIntConst(c) && types.IsUntyped(c.Type()) {
			if folded := ti.retype(c, e.To); folded != nil {
				return folded
			}
		}
		e.SetType(e.To)
	case *ast.Cast:
		switch e.Kind {
		case ast.Box:
			e.SetType(types.Typ[types.Object])
		case ast.Unbox:
			e.SetType(types.NewByRef(e.To))
		default:
			e.SetType(e.To)
		}
	case *ast.Call:
		ti.args(e.Args, e.Method.Params())
		e.SetType(e.Method.Result())
	case *ast.NewObj:
		ti.args(e.Args, e.Ctor.Params())
		e.SetType(e.Ctor.Owner())
	case *ast.NewArray:
		for i, s := range e.Sizes {
			e.Sizes[i] = ti.coerce(s, types.Typ[types.Int32])
		}
		for i, v := range e.Init {
			e.Init[i] = ti.coerce(v, e.Elem)
		}
		e.SetType(types.NewArray(e.Elem, len(e.Sizes)))
	case *ast.ArrayLen:
		e.SetType(types.Typ[types.Int32])
	case *ast.Cond:
		return ti.conditional(e)
	case *ast.BlockExpr:
		if e.Result != nil {
			e.SetType(e.Result.Type())
		}
	case *ast.Assign:
		if t := e.Target.Type(); t != nil {
			e.Value = ti.coerce(e.Value, t)
			e.SetType(t)
		}
	case *ast.OpAssign:
		if t := e.Target.Type(); t != nil {
			if c, ok := e.Value.(*ast.Const); ok && types.IsUntyped(c.Type()) && !types.IsPointerLike(t) {
				e.Value = ti.coerce(c, t)
			}
			e.SetType(t)
		}
	case *ast.PropertyRef:
		switch {
		case e.Getter != nil:
			e.SetType(e.Getter.Result())
		case e.Setter != nil && len(e.Setter.Params()) > 0:
			ps := e.Setter.Params()
			e.SetType(ps[len(ps)-1].Type())
		}
	case *ast.MethodPtr:
		e.SetType(types.Typ[types.IntPtr])
	case *ast.AnonymousDelegate:
		e.SetType(e.Delegate)
	case *ast.SizeOf:
		e.SetType(types.Typ[types.Int32])
	case *ast.DefaultValue:
		e.SetType(e.Of)
	}
	return e
}

func (ti *typer) args(args []ast.Expr, params []*types.Var) {
	for i, arg := range args {
		if i < len(params) {
			args[i] = ti.coerce(arg, params[i].Type())
		}
	}
}

func (ti *typer) binary(e *ast.Binary) {
	x, y := e.X.Type(), e.Y.Type()
	if e.Op.IsComparison() {
		// A constant compared with a typed operand takes its type.
		switch {
		case isUntypedConst(e.Y) && !isUntypedConst(e.X) && wantsRetype(x):
			e.Y = ti.coerce(e.Y, x)
		case isUntypedConst(e.X) && !isUntypedConst(e.Y) && wantsRetype(y):
			e.X = ti.coerce(e.X, y)
		}
		e.SetType(types.Typ[types.Bool])
		return
	}
	if e.Op == ast.Shl || e.Op == ast.Shr {
		e.SetType(types.ShiftResult(x))
		return
	}
	switch e.Op {
	case ast.And, ast.Or, ast.Xor:
		// A flag combined with 0 or 1 stays a boolean.
		switch {
		case types.IsBoolean(x) && isBoolConst(e.Y):
			e.Y = ti.coerce(e.Y, x)
		case types.IsBoolean(y) && isBoolConst(e.X):
			e.X = ti.coerce(e.X, y)
		}
	}
	switch {
	case isUntypedConst(e.Y) && !isUntypedConst(e.X) && wantsRetype(x) && !types.IsBoolean(x):
		e.Y = ti.coerce(e.Y, x)
	case isUntypedConst(e.X) && !isUntypedConst(e.Y) && wantsRetype(y) && !types.IsBoolean(y):
		e.X = ti.coerce(e.X, y)
	}
	e.SetType(types.ArithResult(e.X.Type(), e.Y.Type()))
}

// boolCompare folds the comparison of a boolean with 0 or 1 to the
// boolean or its negation, or returns nil.
func (ti *typer) boolCompare(e *ast.Binary) ast.Expr {
	if e.Op != ast.Eq && e.Op != ast.Ne {
		return nil
	}
	x, y := e.X, e.Y
	if _, ok := x.(*ast.Const); ok {
		x, y = y, x
	}
	if !types.IsBoolean(x.Type()) {
		return nil
	}
	c, ok := y.(*ast.Const)
	if !ok {
		return nil
	}
	v, ok := ast.BoolValue(c)
	if !ok {
		return nil
	}
	if v == (e.Op == ast.Eq) {
		return x
	}
	return ast.Invert(ti.a, x)
}

// wantsRetype reports whether an untyped constant next to an operand of
// type t should take t: plain integers keep their constants untyped.
func wantsRetype(t types.Type) bool {
	if t == nil || types.IsUntyped(t) {
		return false
	}
	return types.IsBoolean(t) || types.IsEnum(t) || types.IsKind(t, types.Char) ||
		types.IsFloat(t) || types.IsReference(t) || types.IsPointerLike(t)
}

func (ti *typer) conditional(e *ast.Cond) ast.Expr {
	e.C = ti.cond(e.C)
	t, f := e.T.Type(), e.F.Type()
	switch {
	case types.IsBoolean(t) && isBoolConst(e.F):
		e.F = ti.coerce(e.F, t)
	case types.IsBoolean(f) && isBoolConst(e.T):
		e.T = ti.coerce(e.T, f)
	case isUntypedConst(e.F) && !types.IsUntyped(t) && t != nil:
		e.F = ti.coerce(e.F, t)
	case isUntypedConst(e.T) && !types.IsUntyped(f) && f != nil:
		e.T = ti.coerce(e.T, f)
	}
	switch t, f = e.T.Type(), e.F.Type(); {
	case types.Identical(t, f):
		e.SetType(t)
	case types.IsNull(t):
		e.SetType(f)
	case types.IsNull(f):
		e.SetType(t)
	case types.IsUntyped(f):
		e.SetType(t)
	case types.IsUntyped(t):
		e.SetType(f)
	default:
		e.SetType(types.ArithResult(t, f))
	}
	return ti.simplify(e)
}

// simplify folds c ? true : false to c and c ? false : true to !c.
func (ti *typer) simplify(e *ast.Cond) ast.Expr {
	if !types.IsBoolean(e.Type()) {
		return e
	}
	t, tok := ast.BoolValue(e.T)
	f, fok := ast.BoolValue(e.F)
	switch {
	case tok && fok && t && !f:
		return e.C
	case tok && fok && !t && f:
		return ast.Invert(ti.a, e.C)
	}
	return e
}

// ----------------------------------------------------------------------------
// Coercion

// coerce converts e to type to, the type of the context e is used in.
func (ti *typer) coerce(e ast.Expr, to types.Type) ast.Expr {
	from := e.Type()
	if to == nil || types.IsVoid(to) || from == nil || types.Identical(from, to) {
		return e
	}

	if c, ok := e.(*ast.Const); ok {
		if r := ti.retype(c, to); r != nil {
			return r
		}
		return e
	}

	switch {
	case types.IsBoolean(to):
		switch e := e.(type) {
		case *ast.Cond:
			e.T = ti.coerce(e.T, to)
			e.F = ti.coerce(e.F, to)
			e.SetType(to)
			return ti.simplify(e)
		}
		if types.IsIntegral(from) || types.IsReference(from) || types.IsPointerLike(from) {
			return ast.Truth(ti.a, e)
		}
		return e

	case types.IsBoolean(from):
		if types.IsIntegral(to) {
			c := ast.New(ti.a, &ast.Cond{C: e, T: ti.a.Int(1, to), F: ti.a.Int(0, to)})
			c.SetType(to)
			return c
		}
		return e
	}

	if types.IsUntyped(from) {
		switch e := e.(type) {
		case *ast.Cond:
			e.T = ti.coerce(e.T, to)
			e.F = ti.coerce(e.F, to)
		case *ast.Binary:
			if !e.Op.IsComparison() {
				e.X = ti.coerce(e.X, to)
				if e.Op != ast.Shl && e.Op != ast.Shr {
					e.Y = ti.coerce(e.Y, to)
				}
			}
		case *ast.Unary:
			e.X = ti.coerce(e.X, to)
		}
		e.SetType(to)
		return e
	}

	if narrowing(from, to) {
		c := ast.New(ti.a, &ast.Conv{X: e, To: to})
		c.SetType(to)
		return c
	}
	return e
}

// narrowing reports whether storing a value of type from in a location of
// type to needs an explicit conversion.
func narrowing(from, to types.Type) bool {
	fromNum := types.IsNumeric(from) || types.IsEnum(from)
	toNum := types.IsNumeric(to) || types.IsEnum(to)
	if !fromNum || !toNum {
		return false
	}
	if types.IsEnum(from) || types.IsEnum(to) || types.IsKind(to, types.Char) {
		return true
	}
	switch {
	case types.IsFloat(to):
		return types.IsFloat(from) && types.Sizeof(from) > types.Sizeof(to)
	case types.IsFloat(from):
		return true
	}
	fs, ts := types.Sizeof(from), types.Sizeof(to)
	if types.IsUnsigned(from) == types.IsUnsigned(to) {
		return ts < fs
	}
	// Mixed signedness widens only from unsigned to a larger signed type.
	return !(types.IsUnsigned(from) && ts > fs)
}

// retype returns the constant c converted to type to, or nil if the
// constant cannot take that type.
func (ti *typer) retype(c *ast.Const, to types.Type) ast.Expr {
	a := ti.a
	switch v := c.Value.(type) {
	case int64:
		if !types.IsIntegral(c.Type()) && !types.IsBoolean(c.Type()) {
			return nil
		}
		switch {
		case types.IsBoolean(to):
			return a.Bool(v != 0)
		case types.IsIntegral(to):
			return a.Int(truncate(v, to), to)
		case types.IsFloat(to):
			f := ast.New(a, &ast.Const{Value: float64(v)})
			f.SetType(to)
			return f
		case v == 0 && (types.IsReference(to) || types.IsPointerLike(to)):
			return a.Null()
		}
	case nil:
		if types.IsReference(to) || types.IsPointerLike(to) {
			return c
		}
	}
	return nil
}

// truncate wraps v to the width and signedness of t.
func truncate(v int64, t types.Type) int64 {
	if types.IsUntyped(t) {
		return v
	}
	switch types.Sizeof(t) {
	case 1:
		if types.IsUnsigned(t) {
			return int64(uint8(v))
		}
		return int64(int8(v))
	case 2:
		if types.IsUnsigned(t) {
			return int64(uint16(v))
		}
		return int64(int16(v))
	case 4:
		if types.IsUnsigned(t) {
			return int64(uint32(v))
		}
		return int64(int32(v))
	}
	return v
}

func isIntConst(c *ast.Const) bool {
	_, ok := c.Value.(int64)
	return ok
}

func isUntypedConst(e ast.Expr) bool {
	c, ok := e.(*ast.Const)
	return ok && types.IsKind(c.Type(), types.UntypedInt)
}

// isBoolConst reports whether e is an untyped or integer 0 or 1.
func isBoolConst(e ast.Expr) bool {
	c, ok := e.(*ast.Const)
	if !ok || !types.IsIntegral(c.Type()) {
		return false
	}
	_, ok = ast.BoolValue(c)
	return ok
}
