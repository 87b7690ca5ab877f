package decompiler

import (
	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/closure"
	"github.com/you-not-fish/destack/internal/decomp"
	"github.com/you-not-fish/destack/internal/il"
	"github.com/you-not-fish/destack/internal/types"
)

// Body is what decompiled and undecompiled method bodies have in common.
// Both *il.Body and *MethodBody implement it.
type Body interface {
	il.ScopeProvider
	Instructions() []*il.Instruction
	ExceptionHandlers() []*il.ExceptionHandler
	SyncInfo() *il.SyncInfo
}

var (
	_ Body = (*il.Body)(nil)
	_ Body = (*MethodBody)(nil)
)

// MethodBody is a decompiled method body.
type MethodBody struct {
	body   *il.Body
	ctx    *decomp.Context // nil in read-only mode
	iter   *closure.Iterator
	elided *closure.Elided
}

// Method returns the decompiled method.
func (b *MethodBody) Method() *types.Method { return b.body.Method }

// Input returns the body the tree was decompiled from.
func (b *MethodBody) Input() *il.Body { return b.body }

// Block returns the statement tree, or nil in read-only mode.
func (b *MethodBody) Block() *ast.Block {
	if b.ctx == nil {
		return nil
	}
	return b.ctx.Root
}

// Context returns the decompilation context holding the tree and its side
// tables, or nil in read-only mode.
func (b *MethodBody) Context() *decomp.Context { return b.ctx }

// Locals returns the locals of the tree: the local table followed by the
// temporaries the decompiler introduced.
func (b *MethodBody) Locals() []*ast.Local {
	if b.ctx == nil {
		return nil
	}
	return b.ctx.Locals()
}

// Iterator returns the yield-based body recovered from the iterator class
// the method instantiates, or nil.
func (b *MethodBody) Iterator() *ast.Block {
	if b.iter == nil {
		return nil
	}
	return b.iter.Ctx.Root
}

// IteratorClass returns the state machine class behind Iterator, or nil.
func (b *MethodBody) IteratorClass() *types.Named {
	if b.iter == nil {
		return nil
	}
	return b.iter.Class
}

// Elided returns the synthetic types and members the method's closures
// and iterator made redundant.
func (b *MethodBody) Elided() *closure.Elided { return b.elided }

func (b *MethodBody) Instructions() []*il.Instruction          { return b.body.Instructions() }
func (b *MethodBody) ExceptionHandlers() []*il.ExceptionHandler { return b.body.ExceptionHandlers() }
func (b *MethodBody) LocalTable() []*il.Local                   { return b.body.LocalTable() }
func (b *MethodBody) LexicalScopes() []*il.Scope                { return b.body.LexicalScopes() }
func (b *MethodBody) SyncInfo() *il.SyncInfo                    { return b.body.SyncInfo() }
