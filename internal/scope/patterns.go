package scope

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/whit3rabbit/jsmixer/internal/jsast"
)

// ErrPatternTooDeep is returned when destructuring nests deeper than the
// configured limit.
var ErrPatternTooDeep = errors.New("destructuring pattern nested too deeply")

// PatternDepthError reports where the depth limit was hit.
type PatternDepthError struct {
	Position string
	Limit    int
}

func (e *PatternDepthError) Error() string {
	return fmt.Sprintf("%s: destructuring pattern nested deeper than max_pattern_depth (%d)", e.Position, e.Limit)
}

func (e *PatternDepthError) Unwrap() error { return ErrPatternTooDeep }

func (b *builder) checkDepth(id jsast.NodeID, depth int) error {
	if depth > b.maxDepth {
		return &PatternDepthError{Position: b.arena.Position(id), Limit: b.maxDepth}
	}
	return nil
}

// declarePattern declares every leaf identifier of a binding target.
// Rest and default wrappers are transparent, holes are skipped, non-shorthand
// object keys are never bindings, and default values are ordinary
// expressions of the scope the pattern appears in.
func (b *builder) declarePattern(id jsast.NodeID, kind DeclKind, depth int) error {
	if !id.Valid() {
		return nil
	}
	n := b.arena.Node(id)
	switch n.Kind {
	case jsast.KindIdentifier:
		b.declare(id, kind)
		return nil

	case jsast.KindArrayPattern, jsast.KindObjectPattern:
		if err := b.checkDepth(id, depth+1); err != nil {
			return err
		}
		for _, el := range n.List {
			if !el.Valid() {
				continue
			}
			if err := b.declarePattern(el, kind, depth+1); err != nil {
				return err
			}
		}
		return nil

	case jsast.KindProperty:
		if n.Flags.Has(jsast.FlagComputed) {
			if err := b.visit(n.Left); err != nil {
				return err
			}
		}
		return b.declarePattern(n.Right, kind, depth)

	case jsast.KindRest:
		return b.declarePattern(n.Left, kind, depth)

	case jsast.KindDefault:
		if err := b.declarePattern(n.Left, kind, depth); err != nil {
			return err
		}
		return b.visit(n.Right)

	default:
		b.log.Debug("unrecognized binding target left unrenamed",
			zap.String("kind", n.Kind.String()),
			zap.String("at", b.arena.Position(id)))
		b.opaqueSubtree(id)
		return nil
	}
}

// assignPattern walks an assignment target such as [a, b] = [b, a]. Its
// identifier leaves are references and member leaves are expressions.
func (b *builder) assignPattern(id jsast.NodeID, depth int) error {
	if !id.Valid() {
		return nil
	}
	n := b.arena.Node(id)
	switch n.Kind {
	case jsast.KindIdentifier:
		b.reference(id, n.Name)
		return nil

	case jsast.KindArrayPattern, jsast.KindObjectPattern:
		if err := b.checkDepth(id, depth+1); err != nil {
			return err
		}
		for _, el := range n.List {
			if err := b.assignPattern(el, depth+1); err != nil {
				return err
			}
		}
		return nil

	case jsast.KindProperty:
		if n.Flags.Has(jsast.FlagComputed) {
			if err := b.visit(n.Left); err != nil {
				return err
			}
		}
		return b.assignPattern(n.Right, depth)

	case jsast.KindRest:
		return b.assignPattern(n.Left, depth)

	case jsast.KindDefault:
		if err := b.assignPattern(n.Left, depth); err != nil {
			return err
		}
		return b.visit(n.Right)

	default:
		return b.visit(id)
	}
}
