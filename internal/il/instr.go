package il

import (
	"fmt"

	"github.com/you-not-fish/destack/internal/types"
)

// Loc is a source location attached to an instruction by debug info.
type Loc struct {
	File string
	Line int
}

// IsKnown reports whether the location carries a line.
func (l Loc) IsKnown() bool { return l.Line > 0 }

func (l Loc) String() string {
	if !l.IsKnown() {
		return "?"
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Instruction is one decoded instruction. Instructions are immutable once
// the reader has produced them.
//
// The dynamic type of Operand follows Op.Info().Operand:
//
//	IntOperand     int32
//	LongOperand    int64
//	FloatOperand   float32
//	DoubleOperand  float64
//	StringOperand  string
//	TypeOperand    types.Type
//	FieldOperand   *types.Field
//	MethodOperand  *types.Method
//	ArgOperand     int
//	LocalOperand   int
//	BranchOperand  int
//	SwitchOperand  []int
//	TokenOperand   types.Type, *types.Field or *types.Method
type Instruction struct {
	Offset  int
	Op      Op
	Operand any
	Loc     Loc
}

// Size returns the encoded size of the instruction in bytes.
func (ins *Instruction) Size() int {
	return OpSize(ins.Op, ins.Operand)
}

// OpSize returns the encoded size of op with the given operand: one byte
// of opcode followed by the operand.
func OpSize(op Op, operand any) int {
	switch op.Info().Operand {
	case NoOperand:
		return 1
	case ArgOperand, LocalOperand:
		return 3
	case LongOperand, DoubleOperand:
		return 9
	case SwitchOperand:
		targets, _ := operand.([]int)
		return 5 + 4*len(targets)
	}
	return 5
}

// Next returns the offset of the instruction that follows.
func (ins *Instruction) Next() int {
	return ins.Offset + ins.Size()
}

// Target returns the branch target offset.
func (ins *Instruction) Target() int {
	t, _ := ins.Operand.(int)
	return t
}

// Targets returns every branch target of the instruction, in table order
// for switch.
func (ins *Instruction) Targets() []int {
	switch ins.Op.Info().Operand {
	case BranchOperand:
		return []int{ins.Target()}
	case SwitchOperand:
		t, _ := ins.Operand.([]int)
		return t
	}
	return nil
}

// Index returns the argument or local index operand.
func (ins *Instruction) Index() int {
	i, _ := ins.Operand.(int)
	return i
}

// Method returns the method operand, or nil.
func (ins *Instruction) Method() *types.Method {
	m, _ := ins.Operand.(*types.Method)
	return m
}

// Field returns the field operand, or nil.
func (ins *Instruction) Field() *types.Field {
	f, _ := ins.Operand.(*types.Field)
	return f
}

// Type returns the type operand, or nil.
func (ins *Instruction) Type() types.Type {
	t, _ := ins.Operand.(types.Type)
	return t
}

// Pops returns the number of stack values the instruction consumes.
// returns reports whether the enclosing method has a result, for ret.
func (ins *Instruction) Pops(returns bool) int {
	info := ins.Op.Info()
	if info.Pop != VarStack {
		return info.Pop
	}
	switch ins.Op {
	case Ret:
		if returns {
			return 1
		}
		return 0
	case Newobj:
		return len(ins.Method().Params())
	}
	m := ins.Method()
	n := len(m.Params())
	if !m.Static() {
		n++
	}
	return n
}

// Pushes returns the number of stack values the instruction produces.
func (ins *Instruction) Pushes() int {
	info := ins.Op.Info()
	if info.Push != VarStack {
		return info.Push
	}
	if types.IsVoid(ins.Method().Result()) {
		return 0
	}
	return 1
}

func (ins *Instruction) String() string {
	return fmt.Sprintf("IL_%04x: %s", ins.Offset, formatOperand(ins, nil))
}
