package il

import (
	"sort"

	"github.com/you-not-fish/destack/internal/types"
)

// HandlerKind is the kind of an exception handler.
type HandlerKind uint8

const (
	Catch HandlerKind = iota
	Filter
	Finally
	Fault
)

var handlerKindNames = [...]string{
	Catch:   "catch",
	Filter:  "filter",
	Finally: "finally",
	Fault:   "fault",
}

func (k HandlerKind) String() string {
	if int(k) < len(handlerKindNames) {
		return handlerKindNames[k]
	}
	return "?"
}

// ExceptionHandler is one entry of the exception-handler table. Ranges are
// half open: [TryStart, TryEnd).
type ExceptionHandler struct {
	Kind         HandlerKind
	TryStart     int
	TryEnd       int
	HandlerStart int
	HandlerEnd   int
	FilterStart  int        // Filter only: start of the filter decision block
	CatchType    types.Type // Catch only
}

// Local is an entry of the local-variable table.
type Local struct {
	Index int
	Type  types.Type
	Name  string // debug name, may be empty
}

// Scope is a lexical scope from debug info: the locals it declares are
// visible in [Start, End).
type Scope struct {
	Start  int
	End    int
	Locals []*Local
}

// SyncPoint maps a suspension point of an async state machine to the
// offset execution resumes at.
type SyncPoint struct {
	Offset       int
	Continuation int
}

// SyncInfo is the synchronization information of an async MoveNext body.
type SyncInfo struct {
	CatchHandler int // offset of the generated catch handler, -1 if none
	Points       []SyncPoint
}

// Body is a method body: the unit of decompilation.
type Body struct {
	Method   *types.Method
	Params   []*types.Var // declared parameters, not counting this
	Instrs   []*Instruction
	Handlers []*ExceptionHandler
	Locals   []*Local
	MaxStack int
	Scopes   []*Scope
	Sync     *SyncInfo
}

// CodeSize returns the size of the instruction stream in bytes.
func (b *Body) CodeSize() int {
	if len(b.Instrs) == 0 {
		return 0
	}
	return b.Instrs[len(b.Instrs)-1].Next()
}

// HasThis reports whether argument 0 is the this reference.
func (b *Body) HasThis() bool {
	return b.Method != nil && !b.Method.Static()
}

// Returns reports whether the method has a result.
func (b *Body) Returns() bool {
	return b.Method != nil && !types.IsVoid(b.Method.Result())
}

// Arg resolves an argument slot. It returns nil for the this slot.
func (b *Body) Arg(slot int) *types.Var {
	if b.HasThis() {
		slot--
	}
	if slot < 0 || slot >= len(b.Params) {
		return nil
	}
	return b.Params[slot]
}

// ThisType returns the type of the this argument, or nil for static methods.
func (b *Body) ThisType() types.Type {
	if !b.HasThis() {
		return nil
	}
	owner := b.Method.Owner()
	if owner != nil && owner.Kind() == types.ValueType {
		return types.NewByRef(owner)
	}
	return owner
}

// Local returns the local with the given index, or nil.
func (b *Body) Local(i int) *Local {
	if i < 0 || i >= len(b.Locals) {
		return nil
	}
	return b.Locals[i]
}

// InstrAt returns the instruction at offset, or nil.
func (b *Body) InstrAt(offset int) *Instruction {
	i := sort.Search(len(b.Instrs), func(i int) bool { return b.Instrs[i].Offset >= offset })
	if i < len(b.Instrs) && b.Instrs[i].Offset == offset {
		return b.Instrs[i]
	}
	return nil
}

// SortHandlers orders the handler table outer regions first: by try start
// ascending, then try end descending.
func (b *Body) SortHandlers() {
	sort.SliceStable(b.Handlers, func(i, j int) bool {
		x, y := b.Handlers[i], b.Handlers[j]
		if x.TryStart != y.TryStart {
			return x.TryStart < y.TryStart
		}
		return x.TryEnd > y.TryEnd
	})
}

// The accessors below let an undecompiled body stand in wherever a
// decompiled one is expected.

// Instructions returns the instruction stream.
func (b *Body) Instructions() []*Instruction { return b.Instrs }

// ExceptionHandlers returns the exception-handler table.
func (b *Body) ExceptionHandlers() []*ExceptionHandler { return b.Handlers }

// LocalTable returns the local-variable table.
func (b *Body) LocalTable() []*Local { return b.Locals }

// LexicalScopes returns the debug scopes, outermost first.
func (b *Body) LexicalScopes() []*Scope { return b.Scopes }

// SyncInfo returns the synchronization information, or nil.
func (b *Body) SyncInfo() *SyncInfo { return b.Sync }

// ScopeProvider supplies the debug information of a method body: local
// names and lexical scopes. A Body provides what its assembly file
// declares.
type ScopeProvider interface {
	LocalTable() []*Local
	LexicalScopes() []*Scope
}

var _ ScopeProvider = (*Body)(nil)
