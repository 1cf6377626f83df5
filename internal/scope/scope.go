// Package scope builds the lexical scope tree of a source unit and resolves
// every identifier use to the binding it refers to.
package scope

import (
	"errors"
	"fmt"
	"sort"

	"github.com/whit3rabbit/jsmixer/internal/jsast"
)

// Kind is the kind of lexical region a Scope covers.
type Kind uint8

const (
	KindProgram Kind = iota
	KindFunction
	KindBlock
	KindCatch
	KindClass
	KindSwitch
	KindWith
)

func (k Kind) String() string {
	switch k {
	case KindProgram:
		return "program"
	case KindFunction:
		return "function"
	case KindBlock:
		return "block"
	case KindCatch:
		return "catch"
	case KindClass:
		return "class"
	case KindSwitch:
		return "switch"
	case KindWith:
		return "with"
	}
	return fmt.Sprintf("scope(%d)", uint8(k))
}

// StopsHoisting reports whether var and function declarations stop here.
func (k Kind) StopsHoisting() bool {
	return k == KindProgram || k == KindFunction
}

// DeclKind says how a binding was declared.
type DeclKind uint8

const (
	DeclVar DeclKind = iota
	DeclLet
	DeclConst
	DeclFunction
	DeclParam
	DeclCatchParam
	DeclClass
	DeclFunctionName // own name of a named function expression
	DeclClassName    // own name of a named class expression
)

func (d DeclKind) String() string {
	switch d {
	case DeclVar:
		return "var"
	case DeclLet:
		return "let"
	case DeclConst:
		return "const"
	case DeclFunction:
		return "function"
	case DeclParam:
		return "param"
	case DeclCatchParam:
		return "catch-param"
	case DeclClass:
		return "class"
	case DeclFunctionName:
		return "function-name"
	case DeclClassName:
		return "class-name"
	}
	return fmt.Sprintf("decl(%d)", uint8(d))
}

// Hoisted reports whether bindings of this kind live in the nearest function
// or program scope.
func (d DeclKind) Hoisted() bool {
	return d == DeclVar || d == DeclFunction
}

// Reasons a binding keeps its original name.
const (
	ExcludedGlobal        = "program-scope var or function"
	ExcludedGlobalLexical = "program-scope let, const or class"
	ExcludedShared        = "shared with another script of the document"
	ExcludedReserved      = "reserved name"
	ExcludedEval          = "scope contains direct eval"
	ExcludedWith          = "observable through with"
	ExcludedOpaque        = "used inside an unrecognized construct"
	ExcludedEscaped       = "spelled with unicode escapes"
	ExcludedConflict      = "hoisting conflicts with a nested binding"
)

// Binding is one declared name in one scope. Nodes are referenced by handle.
type Binding struct {
	Name  string
	Kind  DeclKind
	Scope *Scope

	// Decl is the first declaring identifier; Decls lists all of them when
	// the name is declared more than once in the same scope.
	Decl  jsast.NodeID
	Decls []jsast.NodeID
	Refs  []jsast.NodeID

	// Replacement is set once by the renamer.
	Replacement string

	// Excluded is the first reason this binding must keep its name.
	Excluded string
}

// Exclude marks b as not renameable. The first reason wins.
func (b *Binding) Exclude(reason string) {
	if b.Excluded == "" {
		b.Excluded = reason
	}
}

// Sites returns every declaring and referencing node of b.
func (b *Binding) Sites() []jsast.NodeID {
	out := make([]jsast.NodeID, 0, len(b.Decls)+len(b.Refs))
	out = append(out, b.Decls...)
	return append(out, b.Refs...)
}

// Scope is one lexical region.
type Scope struct {
	ID       int
	Kind     Kind
	Node     jsast.NodeID
	Parent   *Scope
	Children []*Scope

	// Bindings are kept in declaration discovery order.
	Bindings []*Binding
	byName   map[string]*Binding

	// ContainsDirectEval is set on the scope of an eval(...) call and all of
	// its ancestors; names visible there can be looked up at run time.
	ContainsDirectEval bool
}

func newScope(id int, kind Kind, node jsast.NodeID, parent *Scope) *Scope {
	s := &Scope{
		ID:     id,
		Kind:   kind,
		Node:   node,
		Parent: parent,
		byName: make(map[string]*Binding),
	}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	return s
}

// Lookup returns the binding declared directly in s.
func (s *Scope) Lookup(name string) *Binding {
	return s.byName[name]
}

// Resolve walks outward from s and returns the innermost binding named name.
// crossedWith is true when a with statement sits between s and that binding.
func (s *Scope) Resolve(name string) (b *Binding, crossedWith bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if b := cur.byName[name]; b != nil {
			return b, crossedWith
		}
		if cur.Kind == KindWith {
			crossedWith = true
		}
	}
	return nil, crossedWith
}

// VarScope returns the nearest enclosing function or program scope.
func (s *Scope) VarScope() *Scope {
	cur := s
	for !cur.Kind.StopsHoisting() && cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

func (s *Scope) declare(name string, kind DeclKind, id jsast.NodeID) *Binding {
	if b := s.byName[name]; b != nil {
		b.Decls = append(b.Decls, id)
		return b
	}
	b := &Binding{
		Name:  name,
		Kind:  kind,
		Scope: s,
		Decl:  id,
		Decls: []jsast.NodeID{id},
	}
	s.byName[name] = b
	s.Bindings = append(s.Bindings, b)
	return b
}

// Phase is the analysis state of a Tree. It only moves forward.
type Phase uint8

const (
	PhaseUnanalyzed Phase = iota
	PhaseScopesBuilt
	PhaseReferencesResolved
	PhaseRenamed
)

func (p Phase) String() string {
	switch p {
	case PhaseUnanalyzed:
		return "unanalyzed"
	case PhaseScopesBuilt:
		return "scopes-built"
	case PhaseReferencesResolved:
		return "references-resolved"
	case PhaseRenamed:
		return "renamed"
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// ErrPhase is returned when a pass runs out of order.
var ErrPhase = errors.New("scope tree is in the wrong phase")

// Tree is the scope tree and binding table of one source unit.
type Tree struct {
	Arena  *jsast.Arena
	Root   *Scope
	Scopes []*Scope // creation order, Root first
	Phase  Phase

	// bindingOf maps declaring and resolved reference nodes to their binding.
	bindingOf []*Binding
	// unresolved counts references that matched no binding, by name.
	unresolved map[string]int

	refs   []reference
	hoists []hoist
}

type reference struct {
	id     jsast.NodeID // NoNode for words found in opaque regions
	name   string
	scope  *Scope
	opaque bool

	// inParams lists the functions whose parameter list holds this use.
	// Body declarations of those functions are not visible to it.
	inParams []*Scope
}

func (r *reference) sees(s *Scope, b *Binding) bool {
	if b.Kind == DeclParam || b.Kind == DeclFunctionName {
		return true
	}
	for _, p := range r.inParams {
		if p == s {
			return false
		}
	}
	return true
}

type hoist struct {
	binding *Binding
	from    *Scope
	site    jsast.NodeID
}

// Advance moves the tree from one phase to the next.
func (t *Tree) Advance(from, to Phase) error {
	if t.Phase != from || to != from+1 {
		return fmt.Errorf("%w: at %s, cannot move from %s to %s", ErrPhase, t.Phase, from, to)
	}
	t.Phase = to
	return nil
}

// BindingOf returns the binding a declaring or resolved reference node belongs
// to, or nil.
func (t *Tree) BindingOf(id jsast.NodeID) *Binding {
	if !id.Valid() || int(id) >= len(t.bindingOf) {
		return nil
	}
	return t.bindingOf[id]
}

// Unresolved returns the names of references that matched no binding, sorted.
func (t *Tree) Unresolved() []string {
	out := make([]string, 0, len(t.unresolved))
	for name := range t.unresolved {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// IsUnresolved reports whether name was used without a visible declaration.
func (t *Tree) IsUnresolved(name string) bool {
	_, ok := t.unresolved[name]
	return ok
}

// Bindings returns every binding, scopes in pre-order and bindings in
// declaration order.
func (t *Tree) Bindings() []*Binding {
	var out []*Binding
	t.Walk(func(s *Scope) bool {
		out = append(out, s.Bindings...)
		return true
	})
	return out
}

// Walk visits the scopes depth-first from the root, parents before children.
// Returning false from fn skips the subtree.
func (t *Tree) Walk(fn func(s *Scope) bool) {
	if t.Root == nil {
		return
	}
	stack := []*Scope{t.Root}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(s) {
			continue
		}
		for i := len(s.Children) - 1; i >= 0; i-- {
			stack = append(stack, s.Children[i])
		}
	}
}
