package scope

import (
	"github.com/whit3rabbit/jsmixer/internal/jsast"
)

// Resolve binds every recorded reference to the innermost visible binding of
// its name. It runs after the whole tree is built, so uses that precede a
// hoisted declaration resolve like any other. References without a binding
// are recorded as unresolved and left alone.
//
// Resolve also marks bindings whose names can be observed in ways the
// renamer cannot follow: uses through with, words in opaque regions,
// escaped spellings, and var or function declarations hoisted past a
// same-named binding of an inner scope.
func (t *Tree) Resolve() error {
	if err := t.Advance(PhaseScopesBuilt, PhaseReferencesResolved); err != nil {
		return err
	}

	for i := range t.refs {
		ref := &t.refs[i]
		b, crossedWith := ref.resolve()
		if b == nil {
			t.unresolved[ref.name]++
			continue
		}
		if crossedWith {
			b.Exclude(ExcludedWith)
		}
		if ref.opaque {
			b.Exclude(ExcludedOpaque)
			continue
		}
		b.Refs = append(b.Refs, ref.id)
		t.bindingOf[ref.id] = b
	}
	t.refs = nil

	for _, h := range t.hoists {
		for s := h.from; s != nil && s != h.binding.Scope; s = s.Parent {
			if s.Kind == KindWith {
				h.binding.Exclude(ExcludedWith)
			}
			if inner := s.Lookup(h.binding.Name); inner != nil && inner != h.binding {
				h.binding.Exclude(ExcludedConflict)
				inner.Exclude(ExcludedConflict)
			}
		}
	}
	t.hoists = nil

	for _, b := range t.Bindings() {
		for _, site := range b.Sites() {
			if t.Arena.Node(site).Flags.Has(jsast.FlagEscaped) {
				b.Exclude(ExcludedEscaped)
				break
			}
		}
	}
	return nil
}

func (r *reference) resolve() (*Binding, bool) {
	crossedWith := false
	for cur := r.scope; cur != nil; cur = cur.Parent {
		if b := cur.byName[r.name]; b != nil && r.sees(cur, b) {
			return b, crossedWith
		}
		if cur.Kind == KindWith {
			crossedWith = true
		}
	}
	return nil, crossedWith
}

// Analyze builds the scope tree of arena and resolves its references.
func Analyze(arena *jsast.Arena, opts Options) (*Tree, error) {
	t, err := Build(arena, opts)
	if err != nil {
		return nil, err
	}
	if err := t.Resolve(); err != nil {
		return nil, err
	}
	return t, nil
}
