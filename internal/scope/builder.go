package scope

import (
	"go.uber.org/zap"

	"github.com/whit3rabbit/jsmixer/internal/jsast"
	"github.com/whit3rabbit/jsmixer/internal/logging"
)

// DefaultMaxPatternDepth bounds destructuring nesting when no limit is given.
const DefaultMaxPatternDepth = 512

// Options tune the builder.
type Options struct {
	MaxPatternDepth int
	Logger          *zap.Logger
}

type builder struct {
	arena    *jsast.Arena
	tree     *Tree
	cur      *Scope
	params   []*Scope // functions whose parameter list is being walked
	maxDepth int
	log      *zap.Logger
}

// Build walks the arena once and returns the scope tree with every
// declaration placed in its scope. References are collected but not yet
// resolved; call Tree.Resolve next.
func Build(arena *jsast.Arena, opts Options) (*Tree, error) {
	b := &builder{
		arena:    arena,
		maxDepth: opts.MaxPatternDepth,
		log:      logging.OrNop(opts.Logger),
	}
	if b.maxDepth <= 0 {
		b.maxDepth = DefaultMaxPatternDepth
	}
	b.tree = &Tree{
		Arena:      arena,
		bindingOf:  make([]*Binding, arena.Len()),
		unresolved: make(map[string]int),
	}
	b.cur = b.push(KindProgram, arena.Root)
	b.tree.Root = b.cur

	if arena.Root.Valid() {
		for _, id := range arena.Node(arena.Root).List {
			if err := b.visit(id); err != nil {
				return nil, err
			}
		}
	}
	if err := b.tree.Advance(PhaseUnanalyzed, PhaseScopesBuilt); err != nil {
		return nil, err
	}
	b.log.Debug("scope tree built",
		zap.String("file", arena.Filename),
		zap.Int("scopes", len(b.tree.Scopes)),
		zap.Int("references", len(b.tree.refs)))
	return b.tree, nil
}

func (b *builder) push(kind Kind, node jsast.NodeID) *Scope {
	s := newScope(len(b.tree.Scopes), kind, node, b.cur)
	b.tree.Scopes = append(b.tree.Scopes, s)
	b.cur = s
	return s
}

func (b *builder) pop() {
	b.cur = b.cur.Parent
}

func (b *builder) visitAll(ids []jsast.NodeID) error {
	for _, id := range ids {
		if err := b.visit(id); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) visit(id jsast.NodeID) error {
	if !id.Valid() {
		return nil
	}
	n := b.arena.Node(id)
	switch n.Kind {
	case jsast.KindProgram:
		return b.visitAll(n.List)

	case jsast.KindFunction:
		return b.function(id, n)

	case jsast.KindClass:
		return b.class(id, n)

	case jsast.KindBlock:
		b.push(KindBlock, id)
		defer b.pop()
		return b.visitAll(n.List)

	case jsast.KindCatch:
		b.push(KindCatch, id)
		defer b.pop()
		if err := b.declarePattern(n.Left, DeclCatchParam, 0); err != nil {
			return err
		}
		return b.visitAll(n.List)

	case jsast.KindSwitch:
		if err := b.visit(n.Left); err != nil {
			return err
		}
		b.push(KindSwitch, id)
		defer b.pop()
		return b.visitAll(n.List)

	case jsast.KindFor:
		b.push(KindBlock, id)
		defer b.pop()
		for _, c := range [...]jsast.NodeID{n.Left, n.Right, n.Extra, n.Body} {
			if err := b.visit(c); err != nil {
				return err
			}
		}
		return nil

	case jsast.KindVarDecl:
		kind := declKindOf(n.Decl)
		for _, d := range n.List {
			if err := b.declarator(d, kind); err != nil {
				return err
			}
		}
		return nil

	case jsast.KindDeclarator:
		return b.declarator(id, DeclVar)

	case jsast.KindIdentifier:
		switch n.Role {
		case jsast.RoleReference:
			b.reference(id, n.Name)
		case jsast.RoleBinding:
			// Declarations are reached through their owner; a stray one is
			// kept as a use so it never drifts from its binding.
			b.reference(id, n.Name)
		}
		return nil

	case jsast.KindArrayPattern, jsast.KindObjectPattern:
		return b.assignPattern(id, 0)

	case jsast.KindProperty:
		if err := b.visit(n.Left); err != nil {
			return err
		}
		return b.visit(n.Right)

	case jsast.KindRest:
		return b.visit(n.Left)

	case jsast.KindDefault:
		if err := b.visit(n.Left); err != nil {
			return err
		}
		return b.visit(n.Right)

	case jsast.KindMember:
		if err := b.visit(n.Left); err != nil {
			return err
		}
		if n.Flags.Has(jsast.FlagComputed) {
			return b.visit(n.Right)
		}
		return nil

	case jsast.KindObject:
		return b.visitAll(n.List)

	case jsast.KindCall:
		if callee := n.Left; callee.Valid() {
			c := b.arena.Node(callee)
			if c.Kind == jsast.KindIdentifier && c.Role == jsast.RoleReference && c.Name == "eval" {
				b.markDirectEval()
			}
		}
		if err := b.visit(n.Left); err != nil {
			return err
		}
		return b.visitAll(n.List)

	case jsast.KindWith:
		if err := b.visit(n.Left); err != nil {
			return err
		}
		b.push(KindWith, id)
		defer b.pop()
		return b.visit(n.Body)

	case jsast.KindLabel:
		return b.visit(n.Body)

	case jsast.KindExpr:
		return b.visitAll(n.List)

	case jsast.KindOpaque:
		b.opaque(id)
		return nil

	default:
		b.log.Debug("unknown node kind treated as opaque",
			zap.String("kind", n.Kind.String()),
			zap.String("at", b.arena.Position(id)))
		b.opaqueSubtree(id)
		return nil
	}
}

func (b *builder) declarator(id jsast.NodeID, kind DeclKind) error {
	d := b.arena.Node(id)
	if d.Kind != jsast.KindDeclarator {
		return b.visit(id)
	}
	if err := b.declarePattern(d.Left, kind, 0); err != nil {
		return err
	}
	return b.visit(d.Right)
}

func (b *builder) function(id jsast.NodeID, n *jsast.Node) error {
	if n.Flags.Has(jsast.FlagDeclaration) && n.Left.Valid() {
		b.declare(n.Left, DeclFunction)
	}
	b.push(KindFunction, id)
	defer b.pop()

	if !n.Flags.Has(jsast.FlagDeclaration) && !n.Flags.Has(jsast.FlagMethod) && n.Left.Valid() {
		b.declare(n.Left, DeclFunctionName)
	}
	b.params = append(b.params, b.cur)
	for _, p := range n.List {
		if err := b.declarePattern(p, DeclParam, 0); err != nil {
			return err
		}
	}
	b.params = b.params[:len(b.params)-1]
	if !n.Body.Valid() {
		return nil
	}
	body := b.arena.Node(n.Body)
	if n.Flags.Has(jsast.FlagExpressionBody) || body.Kind != jsast.KindBlock {
		return b.visit(n.Body)
	}
	// The body's top-level declarations share the parameters' scope.
	return b.visitAll(body.List)
}

func (b *builder) class(id jsast.NodeID, n *jsast.Node) error {
	declaration := n.Flags.Has(jsast.FlagDeclaration)
	if declaration && n.Left.Valid() {
		b.declare(n.Left, DeclClass)
	}
	if err := b.visit(n.Right); err != nil {
		return err
	}
	b.push(KindClass, id)
	defer b.pop()
	if !declaration && n.Left.Valid() {
		b.declare(n.Left, DeclClassName)
	}
	return b.visitAll(n.List)
}

// declare inserts the identifier id as a binding of the right scope: hoisted
// kinds go to the nearest function or program scope, everything else to the
// current scope.
func (b *builder) declare(id jsast.NodeID, kind DeclKind) *Binding {
	n := b.arena.Node(id)
	target := b.cur
	if kind.Hoisted() {
		target = b.cur.VarScope()
	}
	binding := target.declare(n.Name, kind, id)
	b.tree.bindingOf[id] = binding
	if target != b.cur {
		b.tree.hoists = append(b.tree.hoists, hoist{binding: binding, from: b.cur, site: id})
	}
	return binding
}

func (b *builder) reference(id jsast.NodeID, name string) {
	ref := reference{id: id, name: name, scope: b.cur}
	if len(b.params) > 0 {
		ref.inParams = append([]*Scope(nil), b.params...)
	}
	b.tree.refs = append(b.tree.refs, ref)
}

func (b *builder) markDirectEval() {
	for s := b.cur; s != nil && !s.ContainsDirectEval; s = s.Parent {
		s.ContainsDirectEval = true
	}
}

// opaque records the words of an unlowered region as uses from the current
// scope. Whatever they resolve to keeps its name.
func (b *builder) opaque(id jsast.NodeID) {
	for _, w := range b.arena.OpaqueNames(id) {
		b.tree.refs = append(b.tree.refs, reference{id: jsast.NoNode, name: w, scope: b.cur, opaque: true})
	}
}

// opaqueSubtree pins every name inside id, including nested opaque regions.
func (b *builder) opaqueSubtree(id jsast.NodeID) {
	b.arena.Walk(id, func(cur jsast.NodeID, n *jsast.Node) bool {
		switch n.Kind {
		case jsast.KindIdentifier:
			if n.Role == jsast.RoleReference || n.Role == jsast.RoleBinding {
				b.tree.refs = append(b.tree.refs, reference{id: jsast.NoNode, name: n.Name, scope: b.cur, opaque: true})
			}
		case jsast.KindOpaque:
			b.opaque(cur)
		}
		return true
	})
}

func declKindOf(d jsast.DeclKind) DeclKind {
	switch d {
	case jsast.DeclLet:
		return DeclLet
	case jsast.DeclConst:
		return DeclConst
	}
	return DeclVar
}
