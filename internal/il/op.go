// Package il defines the input of the decompiler: the instruction stream,
// exception-handler table, locals and lexical scopes of a method body, as
// produced by a reader of the binary format.
package il

// Op is an instruction opcode. Short and macro forms (ldc.i4.0, br.s,
// ldarg.1) are folded into their general opcode by the reader.
type Op uint8

const (
	Invalid Op = iota

	Nop

	// Arguments and locals
	Ldarg
	Ldarga
	Starg
	Ldloc
	Ldloca
	Stloc

	// Constants
	Ldnull
	LdcI4
	LdcI8
	LdcR4
	LdcR8
	Ldstr

	// Stack
	Dup
	Pop

	// Calls
	Call
	Callvirt
	Newobj
	Ret

	// Branches
	Br
	Brfalse
	Brtrue
	Beq
	BneUn
	Bge
	BgeUn
	Bgt
	BgtUn
	Ble
	BleUn
	Blt
	BltUn
	Switch

	// Indirect access; operand is the element type
	Ldind
	Stind
	Ldobj
	Stobj

	// Arithmetic
	Add
	AddOvf
	AddOvfUn
	Sub
	SubOvf
	SubOvfUn
	Mul
	MulOvf
	MulOvfUn
	Div
	DivUn
	Rem
	RemUn
	And
	Or
	Xor
	Shl
	Shr
	ShrUn
	Neg
	Not

	// Conversions; operand is the target type
	Conv
	ConvOvf
	ConvOvfUn
	ConvRUn

	// Object model
	Castclass
	Isinst
	Box
	Unbox
	UnboxAny
	Ldfld
	Ldflda
	Stfld
	Ldsfld
	Ldsflda
	Stsfld
	Initobj
	Sizeof
	Ldtoken
	Ldftn
	Ldvirtftn

	// Arrays; element operand for ldelem/ldelema/stelem
	Newarr
	Ldlen
	Ldelem
	Ldelema
	Stelem

	// Comparisons
	Ceq
	Cgt
	CgtUn
	Clt
	CltUn

	// Exceptions
	Throw
	Rethrow
	Leave
	Endfinally
	Endfilter

	opCount // sentinel; must be last
)

// OperandKind describes the operand an opcode carries.
type OperandKind uint8

const (
	NoOperand     OperandKind = iota
	IntOperand                // int32
	LongOperand               // int64
	FloatOperand              // float32
	DoubleOperand             // float64
	StringOperand             // string
	TypeOperand               // types.Type
	FieldOperand              // *types.Field
	MethodOperand             // *types.Method
	ArgOperand                // int, argument slot (0 is this for instance methods)
	LocalOperand              // int, local index
	BranchOperand             // int, target offset
	SwitchOperand             // []int, target offsets
	TokenOperand              // types.Type, *types.Field or *types.Method
)

// Flow describes how an instruction transfers control.
type Flow uint8

const (
	FlowNext   Flow = iota // falls through
	FlowBranch             // unconditional jump
	FlowCond               // conditional jump or fall through
	FlowSwitch             // jump table or fall through
	FlowReturn
	FlowThrow
	FlowLeave      // exits a protected region
	FlowEndHandler // endfinally, endfilter
)

// VarStack marks a pop or push count that depends on the operand.
const VarStack = -1

// OpInfo holds metadata about an opcode.
type OpInfo struct {
	Name    string      // assembly spelling
	Operand OperandKind // operand carried by the instruction
	Pop     int         // values consumed, or VarStack
	Push    int         // values produced, or VarStack
	Flow    Flow
}

// opInfoTable maps each Op to its OpInfo.
// Index by Op value.
var opInfoTable = [opCount]OpInfo{
	Invalid: {Name: "invalid"},
	Nop:     {Name: "nop"},

	Ldarg:  {Name: "ldarg", Operand: ArgOperand, Push: 1},
	Ldarga: {Name: "ldarga", Operand: ArgOperand, Push: 1},
	Starg:  {Name: "starg", Operand: ArgOperand, Pop: 1},
	Ldloc:  {Name: "ldloc", Operand: LocalOperand, Push: 1},
	Ldloca: {Name: "ldloca", Operand: LocalOperand, Push: 1},
	Stloc:  {Name: "stloc", Operand: LocalOperand, Pop: 1},

	Ldnull: {Name: "ldnull", Push: 1},
	LdcI4:  {Name: "ldc.i4", Operand: IntOperand, Push: 1},
	LdcI8:  {Name: "ldc.i8", Operand: LongOperand, Push: 1},
	LdcR4:  {Name: "ldc.r4", Operand: FloatOperand, Push: 1},
	LdcR8:  {Name: "ldc.r8", Operand: DoubleOperand, Push: 1},
	Ldstr:  {Name: "ldstr", Operand: StringOperand, Push: 1},

	Dup: {Name: "dup", Pop: 1, Push: 2},
	Pop: {Name: "pop", Pop: 1},

	Call:     {Name: "call", Operand: MethodOperand, Pop: VarStack, Push: VarStack},
	Callvirt: {Name: "callvirt", Operand: MethodOperand, Pop: VarStack, Push: VarStack},
	Newobj:   {Name: "newobj", Operand: MethodOperand, Pop: VarStack, Push: 1},
	Ret:      {Name: "ret", Pop: VarStack, Flow: FlowReturn},

	Br:      {Name: "br", Operand: BranchOperand, Flow: FlowBranch},
	Brfalse: {Name: "brfalse", Operand: BranchOperand, Pop: 1, Flow: FlowCond},
	Brtrue:  {Name: "brtrue", Operand: BranchOperand, Pop: 1, Flow: FlowCond},
	Beq:     {Name: "beq", Operand: BranchOperand, Pop: 2, Flow: FlowCond},
	BneUn:   {Name: "bne.un", Operand: BranchOperand, Pop: 2, Flow: FlowCond},
	Bge:     {Name: "bge", Operand: BranchOperand, Pop: 2, Flow: FlowCond},
	BgeUn:   {Name: "bge.un", Operand: BranchOperand, Pop: 2, Flow: FlowCond},
	Bgt:     {Name: "bgt", Operand: BranchOperand, Pop: 2, Flow: FlowCond},
	BgtUn:   {Name: "bgt.un", Operand: BranchOperand, Pop: 2, Flow: FlowCond},
	Ble:     {Name: "ble", Operand: BranchOperand, Pop: 2, Flow: FlowCond},
	BleUn:   {Name: "ble.un", Operand: BranchOperand, Pop: 2, Flow: FlowCond},
	Blt:     {Name: "blt", Operand: BranchOperand, Pop: 2, Flow: FlowCond},
	BltUn:   {Name: "blt.un", Operand: BranchOperand, Pop: 2, Flow: FlowCond},
	Switch:  {Name: "switch", Operand: SwitchOperand, Pop: 1, Flow: FlowSwitch},

	Ldind: {Name: "ldind", Operand: TypeOperand, Pop: 1, Push: 1},
	Stind: {Name: "stind", Operand: TypeOperand, Pop: 2},
	Ldobj: {Name: "ldobj", Operand: TypeOperand, Pop: 1, Push: 1},
	Stobj: {Name: "stobj", Operand: TypeOperand, Pop: 2},

	Add:      {Name: "add", Pop: 2, Push: 1},
	AddOvf:   {Name: "add.ovf", Pop: 2, Push: 1},
	AddOvfUn: {Name: "add.ovf.un", Pop: 2, Push: 1},
	Sub:      {Name: "sub", Pop: 2, Push: 1},
	SubOvf:   {Name: "sub.ovf", Pop: 2, Push: 1},
	SubOvfUn: {Name: "sub.ovf.un", Pop: 2, Push: 1},
	Mul:      {Name: "mul", Pop: 2, Push: 1},
	MulOvf:   {Name: "mul.ovf", Pop: 2, Push: 1},
	MulOvfUn: {Name: "mul.ovf.un", Pop: 2, Push: 1},
	Div:      {Name: "div", Pop: 2, Push: 1},
	DivUn:    {Name: "div.un", Pop: 2, Push: 1},
	Rem:      {Name: "rem", Pop: 2, Push: 1},
	RemUn:    {Name: "rem.un", Pop: 2, Push: 1},
	And:      {Name: "and", Pop: 2, Push: 1},
	Or:       {Name: "or", Pop: 2, Push: 1},
	Xor:      {Name: "xor", Pop: 2, Push: 1},
	Shl:      {Name: "shl", Pop: 2, Push: 1},
	Shr:      {Name: "shr", Pop: 2, Push: 1},
	ShrUn:    {Name: "shr.un", Pop: 2, Push: 1},
	Neg:      {Name: "neg", Pop: 1, Push: 1},
	Not:      {Name: "not", Pop: 1, Push: 1},

	Conv:      {Name: "conv", Operand: TypeOperand, Pop: 1, Push: 1},
	ConvOvf:   {Name: "conv.ovf", Operand: TypeOperand, Pop: 1, Push: 1},
	ConvOvfUn: {Name: "conv.ovf.un", Operand: TypeOperand, Pop: 1, Push: 1},
	ConvRUn:   {Name: "conv.r.un", Pop: 1, Push: 1},

	Castclass: {Name: "castclass", Operand: TypeOperand, Pop: 1, Push: 1},
	Isinst:    {Name: "isinst", Operand: TypeOperand, Pop: 1, Push: 1},
	Box:       {Name: "box", Operand: TypeOperand, Pop: 1, Push: 1},
	Unbox:     {Name: "unbox", Operand: TypeOperand, Pop: 1, Push: 1},
	UnboxAny:  {Name: "unbox.any", Operand: TypeOperand, Pop: 1, Push: 1},
	Ldfld:     {Name: "ldfld", Operand: FieldOperand, Pop: 1, Push: 1},
	Ldflda:    {Name: "ldflda", Operand: FieldOperand, Pop: 1, Push: 1},
	Stfld:     {Name: "stfld", Operand: FieldOperand, Pop: 2},
	Ldsfld:    {Name: "ldsfld", Operand: FieldOperand, Push: 1},
	Ldsflda:   {Name: "ldsflda", Operand: FieldOperand, Push: 1},
	Stsfld:    {Name: "stsfld", Operand: FieldOperand, Pop: 1},
	Initobj:   {Name: "initobj", Operand: TypeOperand, Pop: 1},
	Sizeof:    {Name: "sizeof", Operand: TypeOperand, Push: 1},
	Ldtoken:   {Name: "ldtoken", Operand: TokenOperand, Push: 1},
	Ldftn:     {Name: "ldftn", Operand: MethodOperand, Push: 1},
	Ldvirtftn: {Name: "ldvirtftn", Operand: MethodOperand, Pop: 1, Push: 1},

	Newarr:  {Name: "newarr", Operand: TypeOperand, Pop: 1, Push: 1},
	Ldlen:   {Name: "ldlen", Pop: 1, Push: 1},
	Ldelem:  {Name: "ldelem", Operand: TypeOperand, Pop: 2, Push: 1},
	Ldelema: {Name: "ldelema", Operand: TypeOperand, Pop: 2, Push: 1},
	Stelem:  {Name: "stelem", Operand: TypeOperand, Pop: 3},

	Ceq:   {Name: "ceq", Pop: 2, Push: 1},
	Cgt:   {Name: "cgt", Pop: 2, Push: 1},
	CgtUn: {Name: "cgt.un", Pop: 2, Push: 1},
	Clt:   {Name: "clt", Pop: 2, Push: 1},
	CltUn: {Name: "clt.un", Pop: 2, Push: 1},

	Throw:      {Name: "throw", Pop: 1, Flow: FlowThrow},
	Rethrow:    {Name: "rethrow", Flow: FlowThrow},
	Leave:      {Name: "leave", Operand: BranchOperand, Flow: FlowLeave},
	Endfinally: {Name: "endfinally", Flow: FlowEndHandler},
	Endfilter:  {Name: "endfilter", Pop: 1, Flow: FlowEndHandler},
}

// String returns the assembly spelling of the op.
func (o Op) String() string {
	if int(o) < len(opInfoTable) {
		return opInfoTable[o].Name
	}
	return "unknown"
}

// Info returns the OpInfo for this op.
func (o Op) Info() OpInfo {
	if int(o) < len(opInfoTable) {
		return opInfoTable[o]
	}
	return OpInfo{Name: "unknown"}
}

// Flow returns the control transfer kind of the op.
func (o Op) Flow() Flow {
	return o.Info().Flow
}

// IsBranch reports whether the op has one or more branch targets.
func (o Op) IsBranch() bool {
	switch o.Info().Operand {
	case BranchOperand, SwitchOperand:
		return true
	}
	return false
}

// EndsBlock reports whether no instruction can follow o in the same
// basic block.
func (o Op) EndsBlock() bool {
	return o.Flow() != FlowNext
}

// Unconditional reports whether control never falls through o.
func (o Op) Unconditional() bool {
	switch o.Flow() {
	case FlowBranch, FlowReturn, FlowThrow, FlowLeave, FlowEndHandler:
		return true
	}
	return false
}

var opByName map[string]Op

func init() {
	opByName = make(map[string]Op, opCount)
	for op := Op(1); op < opCount; op++ {
		opByName[opInfoTable[op].Name] = op
	}
}

// Lookup returns the opcode spelled name, or Invalid.
func Lookup(name string) Op {
	return opByName[name]
}
