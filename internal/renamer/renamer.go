// Package renamer assigns fresh names to the bindings of a resolved scope
// tree and rewrites every declaring and referencing identifier in place.
package renamer

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/whit3rabbit/jsmixer/internal/config"
	"github.com/whit3rabbit/jsmixer/internal/jsast"
	"github.com/whit3rabbit/jsmixer/internal/logging"
	"github.com/whit3rabbit/jsmixer/internal/scope"
	"github.com/whit3rabbit/jsmixer/internal/scrambler"
)

// ErrConfiguration is wrapped by every fatal renaming error: the configured
// limits or name constraints cannot be satisfied for the unit.
var ErrConfiguration = errors.New("renaming configuration cannot be satisfied")

// Context carries the state of renaming one source unit, or every classic
// script of one HTML document: those share a global scope, so they share
// the used-name set and the name generator. A Context must not be used from
// several goroutines.
type Context struct {
	scrambler            *scrambler.Scrambler
	reserved             *config.NameMatcher
	renameGlobals        bool
	renameGlobalLexicals bool
	maxPatternDepth      int
	used                 map[string]struct{}
	shared               map[string]struct{}
	logger               *zap.Logger
}

// NewContext prepares a renaming context from cfg.
func NewContext(cfg *config.Config, logger *zap.Logger) (*Context, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	sc, err := scrambler.NewScrambler(cfg)
	if err != nil {
		return nil, err
	}
	reserved, err := config.CompileNameMatcher(cfg.ReservedNames)
	if err != nil {
		return nil, err
	}
	return &Context{
		scrambler:            sc,
		reserved:             reserved,
		renameGlobals:        cfg.RenameGlobals,
		renameGlobalLexicals: cfg.RenamesGlobalLexicals(),
		maxPatternDepth:      cfg.MaxPatternDepth,
		used:                 make(map[string]struct{}),
		shared:               make(map[string]struct{}),
		logger:               logging.OrNop(logger).Named("renamer"),
	}, nil
}

// Analyze builds and resolves the scope tree of arena.
func (c *Context) Analyze(arena *jsast.Arena) (*scope.Tree, error) {
	tree, err := scope.Analyze(arena, scope.Options{
		MaxPatternDepth: c.maxPatternDepth,
		Logger:          c.logger,
	})
	if err != nil {
		if errors.Is(err, scope.ErrPatternTooDeep) {
			return nil, fmt.Errorf("%w: %w", ErrConfiguration, err)
		}
		return nil, err
	}
	return tree, nil
}

// Run analyzes arena and renames it.
func (c *Context) Run(arena *jsast.Arena) (*RenameMap, error) {
	tree, err := c.Analyze(arena)
	if err != nil {
		return nil, err
	}
	return c.Rename(tree)
}

// Reserve adds names that no generated name may take. Rename reserves the
// names of its own unit; callers renaming several units reserve all of them
// first.
func (c *Context) Reserve(names map[string]struct{}) {
	for name := range names {
		c.used[name] = struct{}{}
	}
}

// Share keeps program-level bindings named names, which other units
// declare or use through the global object.
func (c *Context) Share(names ...string) {
	for _, name := range names {
		c.shared[name] = struct{}{}
	}
}

// Rename gives every renameable binding of tree a fresh name. Scopes are
// visited from the root down and bindings in declaration order, so the
// result is deterministic for a given source and configuration.
//
// A generated name never equals a name spelled anywhere in the unit nor
// another generated name, so no renamed binding can capture or shadow a
// reference it did not capture before.
func (c *Context) Rename(tree *scope.Tree) (*RenameMap, error) {
	if tree.Phase != scope.PhaseReferencesResolved {
		return nil, fmt.Errorf("%w: rename needs %s, tree is %s", scope.ErrPhase, scope.PhaseReferencesResolved, tree.Phase)
	}
	arena := tree.Arena
	c.Reserve(arena.Names())

	m := NewRenameMap(arena.Filename)
	var renameErr error
	tree.Walk(func(s *scope.Scope) bool {
		for _, b := range s.Bindings {
			c.exclude(b)
			pos := arena.Node(b.Decl).Pos
			if b.Excluded != "" {
				m.Kept = append(m.Kept, Exclusion{Name: b.Name, Reason: b.Excluded, Pos: pos})
				continue
			}
			entry, err := c.renameBinding(arena, b)
			if err != nil {
				renameErr = err
				return false
			}
			m.add(entry)
		}
		return true
	})
	if renameErr != nil {
		return nil, renameErr
	}

	if err := tree.Advance(scope.PhaseReferencesResolved, scope.PhaseRenamed); err != nil {
		return nil, err
	}
	m.Unresolved = tree.Unresolved()
	c.logger.Debug("renamed unit",
		zap.String("file", arena.Filename),
		zap.Int("renamed", m.Len()),
		zap.Int("kept", len(m.Kept)),
		zap.Int("unresolved", len(m.Unresolved)))
	return m, nil
}

func (c *Context) exclude(b *scope.Binding) {
	if b.Scope.Kind == scope.KindProgram {
		switch {
		case b.Kind.Hoisted() && !c.renameGlobals:
			b.Exclude(scope.ExcludedGlobal)
		case !b.Kind.Hoisted() && !c.renameGlobalLexicals:
			b.Exclude(scope.ExcludedGlobalLexical)
		}
		if _, ok := c.shared[b.Name]; ok {
			b.Exclude(scope.ExcludedShared)
		}
	}
	if scrambler.IsReserved(b.Name) {
		b.Exclude(scope.ExcludedReserved)
	}
	if _, hit := c.reserved.Match(b.Name); hit {
		b.Exclude(scope.ExcludedReserved)
	}
	if b.Scope.ContainsDirectEval {
		b.Exclude(scope.ExcludedEval)
	}
}

func (c *Context) renameBinding(arena *jsast.Arena, b *scope.Binding) (Entry, error) {
	pos := arena.Node(b.Decl).Pos
	key := fmt.Sprintf("%s:%s@%d", arena.Filename, b.Name, pos)
	name, err := c.scrambler.Scramble(key, b.Name, c.taken)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %s: %w", ErrConfiguration, arena.Position(b.Decl), err)
	}
	c.used[name] = struct{}{}
	b.Replacement = name

	for _, site := range b.Sites() {
		arena.Node(site).Name = name
	}

	line, col := arena.LineCol(pos)
	c.logger.Debug("renamed binding",
		zap.String("original", b.Name),
		zap.String("replacement", name),
		zap.String("kind", b.Kind.String()),
		zap.Int("sites", len(b.Decls)+len(b.Refs)))
	return Entry{
		Original:    b.Name,
		Replacement: name,
		Kind:        b.Kind.String(),
		Scope:       b.Scope.Kind.String(),
		Pos:         pos,
		Line:        line,
		Column:      col,
		Decl:        b.Decl,
	}, nil
}

func (c *Context) taken(name string) bool {
	_, ok := c.used[name]
	return ok
}
