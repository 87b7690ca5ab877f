// Package closure reinstates delegate literals and iterator bodies from
// the compiler-generated classes that implement them.
//
// A lambda that captures variables is compiled to a synthetic class (a
// display class) whose fields hold the captured variables, plus a method
// on that class holding the lambda body. The capturing method allocates
// the class, copies the captured values into its fields and creates a
// delegate over the method:
//
//	d = new <>c__DisplayClass0();
//	d.<>4__this = this;
//	d.n = n;
//	d.sum = 0;
//	f = new Func(d, &<>c__DisplayClass0.<M>b__0);
//
// Reconstruct maps each field back to what it captured (this, a
// parameter or a fresh local), replaces every field access by that
// expression, replaces the delegate creation by the decompiled lambda body
// and records the synthetic members that are no longer referenced.
package closure

import (
	"errors"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/you-not-fish/destack/internal/ast"
	"github.com/you-not-fish/destack/internal/decomp"
	"github.com/you-not-fish/destack/internal/types"
)

var log = commonlog.GetLogger("destack.closure")

// ErrCycle is returned by a Loader asked for a body that is already being
// decompiled further up the call chain. Reconstruct leaves such delegate
// creations in place.
var ErrCycle = errors.New("delegate body refers to itself")

// Loader decompiles the body of m into a tree that shares arena with the
// method being reconstructed.
type Loader func(m *types.Method, arena *ast.Arena) (*decomp.Context, error)

// Elided lists the synthetic members a rendering of the surrounding
// declarations should omit.
type Elided struct {
	Types   []*types.Named
	Methods []*types.Method
	Fields  []*types.Field
}

// Empty reports whether e lists nothing.
func (e *Elided) Empty() bool {
	return e == nil || len(e.Types)+len(e.Methods)+len(e.Fields) == 0
}

func (e *Elided) addType(t *types.Named) {
	for _, x := range e.Types {
		if x == t {
			return
		}
	}
	e.Types = append(e.Types, t)
	for _, m := range t.Methods() {
		e.addMethod(m)
	}
	for _, f := range t.Fields() {
		e.addField(f)
	}
}

func (e *Elided) addField(f *types.Field) {
	for _, x := range e.Fields {
		if x == f {
			return
		}
	}
	e.Fields = append(e.Fields, f)
}

func (e *Elided) addMethod(m *types.Method) {
	for _, x := range e.Methods {
		if x == m {
			return
		}
	}
	e.Methods = append(e.Methods, m)
}

// Merge appends the members of o not yet in e.
func (e *Elided) Merge(o *Elided) {
	if o == nil {
		return
	}
	for _, t := range o.Types {
		e.addType(t)
	}
	for _, m := range o.Methods {
		e.addMethod(m)
	}
	for _, f := range o.Fields {
		e.addField(f)
	}
}

// capture is what a closure field stands for.
type capture struct {
	expr  ast.Expr   // replacement for every access
	local *ast.Local // set when a local was minted for the field
}

type reconstructor struct {
	ctx      *decomp.Context
	a        *ast.Arena
	load     Loader
	closures map[*types.Named]bool
	order    []*types.Named
	kept     map[*types.Named]bool // closures with a delegate left in place
	captures map[*types.Field]*capture
	minted   []*ast.Local
	elided   *Elided
}

// Reconstruct rewrites the delegate creations of ctx.Root whose target
// is a compiler-generated method into delegate literals, and the accesses
// to their display classes into the variables they captured. It returns
// the synthetic members that became unreferenced.
func Reconstruct(ctx *decomp.Context, load Loader) (*Elided, error) {
	r := &reconstructor{
		ctx:      ctx,
		a:        ctx.Arena,
		load:     load,
		closures: make(map[*types.Named]bool),
		kept:     make(map[*types.Named]bool),
		captures: make(map[*types.Field]*capture),
		elided:   &Elided{},
	}
	r.findClosures()
	if len(r.closures) == 0 && !r.hasSyntheticTargets() {
		return r.elided, nil
	}
	if err := r.reinstate(); err != nil {
		return nil, err
	}
	r.mapBlock(ctx.Root)
	r.substitute(ctx.Root)
	ctx.Recount()
	r.removeAllocations(ctx.Root)
	for _, l := range r.minted {
		hoist(ctx, l)
	}
	ctx.Recount()
	for _, t := range r.order {
		if r.isClosure(t) {
			r.elided.addType(t)
		}
	}
	return r.elided, nil
}

// delegateTarget returns the method a delegate creation binds, or nil if
// e is not one.
func delegateTarget(e ast.Expr) (*ast.NewObj, *types.Method) {
	n, ok := e.(*ast.NewObj)
	if !ok || n.Ctor == nil || len(n.Args) != 2 {
		return nil, nil
	}
	if owner := n.Ctor.Owner(); owner == nil || owner.Kind() != types.Delegate {
		return nil, nil
	}
	p, ok := n.Args[1].(*ast.MethodPtr)
	if !ok || p.Method == nil || p.Recv != nil {
		return nil, nil
	}
	return n, p.Method
}

func isClosureClass(t *types.Named) bool {
	return t != nil && t.Synthetic() && t.Kind() == types.Class
}

// own reports whether t is the class of the method being reconstructed.
// Its fields belong to an enclosing method and are mapped there.
func (r *reconstructor) own(t *types.Named) bool {
	m := r.ctx.Body.Method
	return m != nil && m.Owner() == t
}

// findClosures marks the owners of delegate targets as closures, then
// every synthetic class held in a field of a closure.
func (r *reconstructor) findClosures() {
	var work []*types.Named
	ast.Inspect(r.ctx.Root, func(n ast.Node) bool {
		e, ok := n.(ast.Expr)
		if !ok {
			return true
		}
		if _, m := delegateTarget(e); m != nil && isClosureClass(m.Owner()) && !r.closures[m.Owner()] {
			r.closures[m.Owner()] = true
			r.order = append(r.order, m.Owner())
			work = append(work, m.Owner())
		}
		return true
	})
	for len(work) > 0 {
		t := work[len(work)-1]
		work = work[:len(work)-1]
		for _, f := range t.Fields() {
			ft, _ := f.Type().(*types.Named)
			if isClosureClass(ft) && !r.closures[ft] {
				r.closures[ft] = true
				r.order = append(r.order, ft)
				work = append(work, ft)
			}
		}
	}
}

// hasSyntheticTargets reports whether a delegate binds a compiler
// generated method declared on an ordinary class.
func (r *reconstructor) hasSyntheticTargets() bool {
	found := false
	ast.Inspect(r.ctx.Root, func(n ast.Node) bool {
		if e, ok := n.(ast.Expr); ok {
			if _, m := delegateTarget(e); m != nil && m.Synthetic() {
				found = true
			}
		}
		return !found
	})
	return found
}

func (r *reconstructor) isClosure(t types.Type) bool {
	n, ok := t.(*types.Named)
	return ok && r.closures[n] && !r.kept[n] && !r.own(n)
}

// reinstate replaces delegate creations over closure methods by delegate
// literals holding the decompiled method bodies.
func (r *reconstructor) reinstate() error {
	var err error
	ast.Rewrite(r.ctx.Root, func(e ast.Expr) ast.Expr {
		if err != nil {
			return e
		}
		n, m := delegateTarget(e)
		if m == nil || !(r.closures[m.Owner()] || m.Synthetic()) {
			return e
		}
		inner, lerr := r.load(m, r.a)
		if errors.Is(lerr, ErrCycle) {
			log.Debugf("%s: leaving recursive delegate over %s", r.name(), m.FullName())
			r.kept[m.Owner()] = true
			return e
		}
		if lerr != nil {
			err = lerr
			return e
		}
		d := ast.New(r.a, &ast.AnonymousDelegate{
			Delegate: n.Ctor.Owner(),
			Method:   m,
			Params:   m.Params(),
			Body:     inner.Root,
		})
		d.SetType(n.Ctor.Owner())
		r.elided.addMethod(m)
		return d
	})
	return err
}

func (r *reconstructor) name() string {
	if m := r.ctx.Body.Method; m != nil {
		return m.FullName()
	}
	return "?"
}

// closureField returns the field of a closure class e accesses.
func (r *reconstructor) closureField(e ast.Expr) *ast.FieldRef {
	f, ok := e.(*ast.FieldRef)
	if !ok || f.Instance == nil || f.Field == nil || !r.isClosure(f.Field.Owner()) {
		return nil
	}
	return f
}

// mapBlock decides what each closure field captures from its first
// write, in statement order. Writes of this, of the parameter the field
// is named after, or of another closure are dropped; any other first
// write becomes a write of a fresh local.
func (r *reconstructor) mapBlock(b *ast.Block) {
	out := b.Stmts[:0]
	for _, s := range b.Stmts {
		if r.mapWrite(s) {
			continue
		}
		out = append(out, s)
		for _, c := range ast.Blocks(s) {
			r.mapBlock(c)
		}
		for _, d := range delegates(s) {
			r.mapBlock(d.Body)
		}
	}
	b.Stmts = out
}

// delegates returns the delegate literals in the expressions of s,
// outside its nested blocks.
func delegates(s ast.Stmt) []*ast.AnonymousDelegate {
	nested := make(map[*ast.Block]bool)
	for _, b := range ast.Blocks(s) {
		nested[b] = true
	}
	var out []*ast.AnonymousDelegate
	ast.Inspect(s, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Block:
			return !nested[n]
		case *ast.AnonymousDelegate:
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

// mapWrite records the capture of a first write and reports whether s
// is to be dropped.
func (r *reconstructor) mapWrite(s ast.Stmt) bool {
	es, ok := s.(*ast.ExprStmt)
	if !ok {
		return false
	}
	as, ok := es.X.(*ast.Assign)
	if !ok {
		return false
	}
	f := r.closureField(as.Target)
	if f == nil || r.captures[f.Field] != nil {
		return false
	}
	switch v := as.Value.(type) {
	case *ast.ThisRef:
		r.captures[f.Field] = &capture{expr: v}
		return true
	case *ast.ParamRef:
		if v.Param.Name() == f.Field.Name() {
			r.captures[f.Field] = &capture{expr: v}
			return true
		}
	case *ast.LocalRef:
		if r.isClosure(v.Local.Type) {
			r.captures[f.Field] = &capture{expr: v}
			return true
		}
	case *ast.FieldRef:
		if r.isClosure(v.Type()) {
			r.captures[f.Field] = &capture{expr: v}
			return true
		}
	}
	c := r.mint(f.Field)
	as.Target = r.a.Ref(c.local)
	return false
}

// mint creates the local standing for a captured local variable.
func (r *reconstructor) mint(f *types.Field) *capture {
	l := r.ctx.NewTemp(r.freeName(localName(f.Name())), f.Type())
	l.Synthetic = false
	c := &capture{expr: r.a.Ref(l), local: l}
	r.captures[f] = c
	r.minted = append(r.minted, l)
	return c
}

// localName recovers the source name of a hoisted variable: <i>5__1 is i.
func localName(field string) string {
	if strings.HasPrefix(field, "<") {
		if i := strings.IndexByte(field, '>'); i > 1 {
			return field[1:i]
		}
		return "captured"
	}
	return field
}

func (r *reconstructor) freeName(name string) string {
	taken := make(map[string]bool)
	for _, l := range r.ctx.Locals() {
		taken[l.Name] = true
	}
	if body := r.ctx.Body; body != nil {
		for _, p := range body.Params {
			taken[p.Name()] = true
		}
	}
	if !taken[name] {
		return name
	}
	for i := 1; ; i++ {
		n := name + "_" + strconv.Itoa(i)
		if !taken[n] {
			return n
		}
	}
}

// substitute replaces every closure field access by its capture. A field
// first written inside a delegate body gets its local on first sight.
func (r *reconstructor) substitute(root *ast.Block) {
	ast.Rewrite(root, func(e ast.Expr) ast.Expr {
		f := r.closureField(e)
		if f == nil {
			return e
		}
		c := r.captures[f.Field]
		if c == nil {
			c = r.mint(f.Field)
		}
		return ast.Clone(r.a, c.expr)
	})
}

// removeAllocations drops the statements that create or declare closure
// locals once nothing reads them.
func (r *reconstructor) removeAllocations(b *ast.Block) {
	out := b.Stmts[:0]
	for _, s := range b.Stmts {
		if l := r.allocation(s); l != nil && r.ctx.Refs(l) == 0 {
			r.ctx.Discard(s)
			continue
		}
		out = append(out, s)
		for _, c := range ast.Blocks(s) {
			r.removeAllocations(c)
		}
		for _, d := range delegates(s) {
			r.removeAllocations(d.Body)
		}
	}
	b.Stmts = out
}

// allocation returns the closure local s declares or initializes.
func (r *reconstructor) allocation(s ast.Stmt) *ast.Local {
	switch s := s.(type) {
	case *ast.LocalDecl:
		if r.isClosure(s.Local.Type) && (s.Init == nil || r.isAlloc(s.Init)) {
			return s.Local
		}
	case *ast.ExprStmt:
		as, ok := s.X.(*ast.Assign)
		if !ok {
			return nil
		}
		t, ok := as.Target.(*ast.LocalRef)
		if ok && r.isClosure(t.Local.Type) && (r.isAlloc(as.Value) || ast.IsPure(as.Value)) {
			return t.Local
		}
	}
	return nil
}

func (r *reconstructor) isAlloc(e ast.Expr) bool {
	n, ok := e.(*ast.NewObj)
	return ok && n.Ctor != nil && r.isClosure(n.Ctor.Owner()) && len(n.Args) == 0
}
