package passes

import (
	"encoding/binary"
	"math"

	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
	"github.com/you-not-fish/destack/internal/types"
)

// maxInit bounds the arrays whose elements are listed in an initializer.
const maxInit = 1 << 16

// arrayInitRule folds the element stores that follow the creation of a
// one-dimensional array into an initializer. Compilers emit either a
// RuntimeHelpers.InitializeArray call copying a static data blob or one
// store per non-default element on a duplicate of the new array.
func arrayInitRule(ctx *decomp.Context, b *ast.Block) bool {
	for i := 0; i+2 < len(b.Stmts); i++ {
		p, ok := b.Stmts[i].(*ast.Push)
		if !ok {
			continue
		}
		arr, ok := p.X.(*ast.NewArray)
		if !ok || arr.Init != nil || len(arr.Sizes) != 1 {
			continue
		}
		n, ok := constLen(arr.Sizes[0])
		if !ok {
			continue
		}
		if initFromBlob(ctx, b, i, arr, n) || initFromStores(ctx, b, i, arr, n) {
			return true
		}
	}
	return false
}

func constLen(e ast.Expr) (int, bool) {
	c, ok := e.(*ast.Const)
	if !ok {
		return 0, false
	}
	v, ok := c.Value.(int64)
	if !ok || v <= 0 || v > maxInit {
		return 0, false
	}
	return int(v), true
}

func isDupPush(s ast.Stmt) bool {
	p, ok := s.(*ast.Push)
	if !ok {
		return false
	}
	_, ok = p.X.(*ast.DupValue)
	return ok
}

// push new T[n]; push dup; RuntimeHelpers.InitializeArray(pop, fieldof(data));
func initFromBlob(ctx *decomp.Context, b *ast.Block, i int, arr *ast.NewArray, n int) bool {
	if !isDupPush(b.Stmts[i+1]) {
		return false
	}
	c := callTo(b.Stmts[i+2])
	if c == nil || !types.IsMethod(c.Method, types.RuntimeHelpersType, types.InitializeArray, 2) || len(c.Args) != 2 {
		return false
	}
	if _, ok := c.Args[0].(*ast.PopValue); !ok {
		return false
	}
	tok, ok := c.Args[1].(*ast.Token)
	if !ok {
		return false
	}
	f, ok := tok.Operand.(*types.Field)
	if !ok {
		return false
	}
	init := decodeElems(ctx.Arena, arr.Elem, f.Data(), n)
	if init == nil {
		return false
	}
	arr.Init = init
	b.Stmts = splice(b.Stmts, i+1, i+3)
	return true
}

// decodeElems reads n little-endian elements of type elem from data.
func decodeElems(a *ast.Arena, elem types.Type, data []byte, n int) []ast.Expr {
	var size int
	switch types.ClassOf(elem) {
	case types.ClassBool, types.ClassI1, types.ClassU1:
		size = 1
	case types.ClassChar, types.ClassI2, types.ClassU2:
		size = 2
	case types.ClassI4, types.ClassU4, types.ClassR4:
		size = 4
	case types.ClassI8, types.ClassU8, types.ClassR8:
		size = 8
	default:
		return nil
	}
	if len(data) < n*size {
		return nil
	}
	out := make([]ast.Expr, n)
	for k := range out {
		d := data[k*size:]
		var v any
		switch types.ClassOf(elem) {
		case types.ClassBool, types.ClassU1:
			v = int64(d[0])
		case types.ClassI1:
			v = int64(int8(d[0]))
		case types.ClassChar, types.ClassU2:
			v = int64(binary.LittleEndian.Uint16(d))
		case types.ClassI2:
			v = int64(int16(binary.LittleEndian.Uint16(d)))
		case types.ClassU4:
			v = int64(binary.LittleEndian.Uint32(d))
		case types.ClassI4:
			v = int64(int32(binary.LittleEndian.Uint32(d)))
		case types.ClassI8, types.ClassU8:
			v = int64(binary.LittleEndian.Uint64(d))
		case types.ClassR4:
			v = float64(math.Float32frombits(binary.LittleEndian.Uint32(d)))
		case types.ClassR8:
			v = math.Float64frombits(binary.LittleEndian.Uint64(d))
		}
		c := ast.New(a, &ast.Const{Value: v})
		c.SetType(elem)
		out[k] = c
	}
	return out
}

// push new T[n]; (push dup; pop[k] = v;)...
func initFromStores(ctx *decomp.Context, b *ast.Block, i int, arr *ast.NewArray, n int) bool {
	vals := make(map[int]ast.Expr)
	next, end := 0, i+1
	for end+1 < len(b.Stmts) && isDupPush(b.Stmts[end]) {
		as := storeOf(b.Stmts[end+1])
		if as == nil {
			break
		}
		idx := as.Target.(*ast.ArrayIndex)
		k, ok := constIndex(idx.Indices[0])
		if !ok || k < next || k >= n || ast.CountPops(as.Value) != 0 {
			break
		}
		vals[k] = as.Value
		next = k + 1
		end += 2
	}
	if len(vals) == 0 {
		return false
	}
	init := make([]ast.Expr, n)
	for k := range init {
		if v, ok := vals[k]; ok {
			init[k] = v
			continue
		}
		init[k] = zero(ctx.Arena, arr.Elem)
	}
	arr.Init = init
	b.Stmts = splice(b.Stmts, i+1, end)
	return true
}

// storeOf matches pop[k] = v.
func storeOf(s ast.Stmt) *ast.Assign {
	es, ok := s.(*ast.ExprStmt)
	if !ok {
		return nil
	}
	as, ok := es.X.(*ast.Assign)
	if !ok {
		return nil
	}
	idx, ok := as.Target.(*ast.ArrayIndex)
	if !ok || len(idx.Indices) != 1 {
		return nil
	}
	if _, ok := idx.Array.(*ast.PopValue); !ok {
		return nil
	}
	return as
}

func constIndex(e ast.Expr) (int, bool) {
	c, ok := e.(*ast.Const)
	if !ok {
		return 0, false
	}
	v, ok := c.Value.(int64)
	return int(v), ok
}

// zero returns the default value of t.
func zero(a *ast.Arena, t types.Type) ast.Expr {
	switch {
	case types.IsFloat(t):
		c := ast.New(a, &ast.Const{Value: 0.0})
		c.SetType(t)
		return c
	case types.IsIntegral(t) || types.IsBoolean(t) || types.IsEnum(t):
		return a.Int(0, t)
	case types.IsReference(t):
		return a.Null()
	}
	d := ast.New(a, &ast.DefaultValue{Of: t})
	d.SetType(t)
	return d
}
