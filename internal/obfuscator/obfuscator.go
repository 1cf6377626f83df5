// Package obfuscator runs the renaming pipeline over source units and holds
// the settings shared by every unit of a run.
package obfuscator

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/whit3rabbit/jsmixer/internal/config"
	"github.com/whit3rabbit/jsmixer/internal/jsast"
	"github.com/whit3rabbit/jsmixer/internal/logging"
	"github.com/whit3rabbit/jsmixer/internal/renamer"
)

// ObfuscationContext holds what is shared across files of one run. Renaming
// state is never stored here; every file gets a fresh renamer.Context, so
// one ObfuscationContext may serve parallel workers.
type ObfuscationContext struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewObfuscationContext validates cfg and creates a context. A nil logger is
// built from cfg.
func NewObfuscationContext(cfg *config.Config, logger *zap.Logger) (*ObfuscationContext, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		var err error
		if logger, err = logging.New(cfg); err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	return &ObfuscationContext{Config: cfg, Logger: logger}, nil
}

// Stats summarizes the renaming of one unit.
type Stats struct {
	Bindings   int `json:"bindings" yaml:"bindings"`
	Renamed    int `json:"renamed" yaml:"renamed"`
	Kept       int `json:"kept" yaml:"kept"`
	Unresolved int `json:"unresolved" yaml:"unresolved"`
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Bindings += other.Bindings
	s.Renamed += other.Renamed
	s.Kept += other.Kept
	s.Unresolved += other.Unresolved
}

// Result is the output of one source unit. HTML files yield one rename map
// per inline script.
type Result struct {
	Code       string
	RenameMaps []*renamer.RenameMap
	Stats      Stats
}

// RenameMap returns the first rename map, or nil when the unit had no script.
func (r *Result) RenameMap() *renamer.RenameMap {
	if len(r.RenameMaps) == 0 {
		return nil
	}
	return r.RenameMaps[0]
}

// ProcessSource parses, renames and re-emits one JavaScript source unit.
// name is used in diagnostics and in the rename map.
func ProcessSource(name, src string, octx *ObfuscationContext) (*Result, error) {
	logger := octx.Logger.With(zap.String("unit", name))

	arena, err := jsast.Parse(name, src)
	if err != nil {
		return nil, err
	}

	rctx, err := renamer.NewContext(octx.Config, logger)
	if err != nil {
		return nil, err
	}
	m, err := rctx.Run(arena)
	if err != nil {
		return nil, err
	}
	return unitResult(arena, m, logger), nil
}

func unitResult(arena *jsast.Arena, m *renamer.RenameMap, logger *zap.Logger) *Result {
	code := Emit(arena)
	stats := Stats{
		Bindings:   m.Len() + len(m.Kept),
		Renamed:    m.Len(),
		Kept:       len(m.Kept),
		Unresolved: len(m.Unresolved),
	}
	logger.Debug("processed source unit",
		zap.Int("renamed", stats.Renamed),
		zap.Int("kept", stats.Kept))
	return &Result{Code: code, RenameMaps: []*renamer.RenameMap{m}, Stats: stats}
}

// ProcessFile reads and obfuscates one file. JavaScript files are one unit;
// each inline classic script of an HTML file is a unit of its own, renamed
// together with the other scripts of the page.
func ProcessFile(filePath string, octx *ObfuscationContext) (*Result, error) {
	src, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading file %s: %w", filePath, err)
	}
	if octx.Config.IsHTMLFile(filePath) {
		return ProcessHTML(filePath, src, octx)
	}
	return ProcessSource(filePath, string(src), octx)
}
