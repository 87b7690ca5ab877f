package cfg

import (
	"fmt"

	"github.com/you-not-fish/destack/internal/il"
	"github.com/you-not-fish/destack/internal/types"
)

// Effect applies the stack effect of ins to stack and returns the new
// stack. The slice is modified in place.
func Effect(body *il.Body, ins *il.Instruction, stack []types.Type) ([]types.Type, error) {
	n := ins.Pops(body.Returns())
	if n > len(stack) {
		return nil, fmt.Errorf("%w: %s pops %d values from a stack of %d", ErrStack, ins, n, len(stack))
	}
	args := stack[len(stack)-n:]
	stack = stack[:len(stack)-n]
	if ins.Op == il.Dup {
		return append(stack, args[0], args[0]), nil
	}
	if ins.Pushes() == 0 {
		return stack, nil
	}
	return append(stack, ResultType(body, ins, args)), nil
}

// ResultType returns the type of the value ins pushes, given the types of
// the values it pops.
func ResultType(body *il.Body, ins *il.Instruction, args []types.Type) types.Type {
	arg := func(i int) types.Type {
		if i < len(args) {
			return args[i]
		}
		return nil
	}
	switch ins.Op {
	case il.Ldarg, il.Ldarga:
		t := body.ThisType()
		if v := body.Arg(ins.Index()); v != nil {
			t = v.Type()
		}
		if ins.Op == il.Ldarga {
			return types.NewByRef(t)
		}
		return t
	case il.Ldloc, il.Ldloca:
		l := body.Local(ins.Index())
		if l == nil {
			return types.Typ[types.Invalid]
		}
		if ins.Op == il.Ldloca {
			return types.NewByRef(l.Type)
		}
		return l.Type
	case il.Ldnull:
		return types.Typ[types.Object]
	case il.LdcI4:
		return types.Typ[types.Int32]
	case il.LdcI8:
		return types.Typ[types.Int64]
	case il.LdcR4:
		return types.Typ[types.Float32]
	case il.LdcR8, il.ConvRUn:
		return types.Typ[types.Float64]
	case il.Ldstr:
		return types.Typ[types.String]
	case il.Call, il.Callvirt:
		return ins.Method().Result()
	case il.Newobj:
		return ins.Method().Owner()
	case il.Ldind, il.Ldobj, il.Ldelem, il.Conv, il.ConvOvf, il.ConvOvfUn,
		il.Castclass, il.Isinst, il.UnboxAny:
		return ins.Type()
	case il.Ldelema, il.Unbox:
		return types.NewByRef(ins.Type())
	case il.Box:
		return types.Typ[types.Object]
	case il.Ldfld, il.Ldsfld:
		return ins.Field().Type()
	case il.Ldflda, il.Ldsflda:
		return types.NewByRef(ins.Field().Type())
	case il.Newarr:
		return types.NewArray(ins.Type(), 1)
	case il.Ldlen, il.Sizeof:
		return types.Typ[types.Int32]
	case il.Ldftn, il.Ldvirtftn:
		return types.Typ[types.IntPtr]
	case il.Ldtoken:
		return types.Typ[types.Object]
	case il.Ceq, il.Cgt, il.CgtUn, il.Clt, il.CltUn:
		return types.Typ[types.Bool]
	case il.Shl, il.Shr, il.ShrUn:
		return types.ShiftResult(arg(0))
	case il.Neg, il.Not:
		return types.Promote(arg(0))
	}
	if ins.Op.Info().Pop == 2 && ins.Op.Info().Push == 1 {
		return types.DefaultType(types.ArithResult(arg(0), arg(1)))
	}
	return types.Typ[types.Invalid]
}
