// Package api provides the public API for using the JavaScript obfuscator as a library.
//
// The obfuscator renames local bindings (variables, parameters, functions,
// classes, catch parameters and destructured names) to generated identifiers
// while keeping every reference consistent with its declaration.
//
// Basic usage example:
//
//	obf, err := api.NewObfuscator(api.Options{ConfigPath: "config.yaml"})
//	if err != nil {
//	    log.Fatalf("Failed to create obfuscator: %v", err)
//	}
//
//	result, err := obf.ObfuscateCode("function greet(name) { return 'hi ' + name; }")
//	if err != nil {
//	    log.Fatalf("Failed to obfuscate code: %v", err)
//	}
//
//	fmt.Println(result) // function greet(_0x0000) { return 'hi ' + _0x0000; }
package api

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/whit3rabbit/jsmixer/internal/config"
	"github.com/whit3rabbit/jsmixer/internal/obfuscator"
	"github.com/whit3rabbit/jsmixer/internal/renamer"
)

// PrintInfo prints formatted information to stdout, respecting the Testing flag.
// This function forwards to the internal config.PrintInfo function.
func PrintInfo(format string, args ...interface{}) {
	config.PrintInfo(format, args...)
}

// Obfuscator is the main obfuscation engine. It is safe for concurrent use;
// every source unit is renamed with its own state.
type Obfuscator struct {
	// Context holds the configuration and logger shared by all units
	Context *obfuscator.ObfuscationContext
	// Config holds the configuration settings for obfuscation
	Config *config.Config

	mu    sync.RWMutex
	maps  []*renamer.RenameMap // rename maps of the most recent run
	stats obfuscator.Stats
}

// Options represents configuration options for creating a new Obfuscator instance.
type Options struct {
	// ConfigPath is the path to a YAML configuration file.
	// If empty, config.yaml is used when present, defaults otherwise.
	ConfigPath string

	// Silent suppresses informational messages during obfuscation
	Silent bool

	// ConfigOverrides sets configuration keys (as spelled in the YAML file)
	// with precedence over the file and the environment.
	ConfigOverrides map[string]interface{}

	// Logger replaces the logger built from the configuration.
	Logger *zap.Logger
}

// NewObfuscator creates a new Obfuscator instance using the provided options.
//
// Returns an error if the configuration cannot be loaded or is invalid.
func NewObfuscator(options Options) (*Obfuscator, error) {
	cfg, err := config.LoadConfigWithOverrides(options.ConfigPath, options.ConfigOverrides)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if options.Silent {
		cfg.Silent = true
	}
	return NewObfuscatorFromConfig(cfg, options.Logger)
}

// NewObfuscatorFromConfig creates an Obfuscator from an already built
// configuration. A nil logger is derived from cfg.
func NewObfuscatorFromConfig(cfg *config.Config, logger *zap.Logger) (*Obfuscator, error) {
	ctx, err := obfuscator.NewObfuscationContext(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create obfuscation context: %w", err)
	}
	return &Obfuscator{
		Context: ctx,
		Config:  ctx.Config,
	}, nil
}

// ObfuscateCode obfuscates a string of JavaScript code and returns the result.
func (o *Obfuscator) ObfuscateCode(code string) (string, error) {
	res, err := obfuscator.ProcessSource("<input>", code, o.Context)
	if err != nil {
		return "", fmt.Errorf("failed to obfuscate code: %w", err)
	}
	o.startRun()
	o.record(res)
	return res.Code, nil
}

// ObfuscateFile obfuscates a JavaScript or HTML file and returns the obfuscated content.
func (o *Obfuscator) ObfuscateFile(filePath string) (string, error) {
	res, err := obfuscator.ProcessFile(filePath, o.Context)
	if err != nil {
		return "", fmt.Errorf("failed to obfuscate file %s: %w", filePath, err)
	}
	o.startRun()
	o.record(res)
	return res.Code, nil
}

// ObfuscateFileToFile obfuscates a file and writes the result to another file.
func (o *Obfuscator) ObfuscateFileToFile(inputPath, outputPath string) error {
	code, err := o.ObfuscateFile(inputPath)
	if err != nil {
		return err
	}
	if err := writeFile(outputPath, []byte(code)); err != nil {
		return err
	}
	return o.saveRunMaps(filepath.Base(inputPath))
}

// RenameMaps returns the rename maps produced by the most recent run.
func (o *Obfuscator) RenameMaps() []*renamer.RenameMap {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]*renamer.RenameMap(nil), o.maps...)
}

// Stats returns the totals of the most recent run.
func (o *Obfuscator) Stats() obfuscator.Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.stats
}

// SaveRenameMap writes the rename maps of the most recent run to path. When
// the run produced several maps, each one gets its index before the
// extension (app.json, app.2.json, ...).
func (o *Obfuscator) SaveRenameMap(path string) error {
	maps := o.RenameMaps()
	if len(maps) == 0 {
		return fmt.Errorf("no rename map to save: nothing was obfuscated")
	}
	return saveMaps(maps, path)
}

func saveMaps(maps []*renamer.RenameMap, path string) error {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i, m := range maps {
		target := path
		if i > 0 {
			target = fmt.Sprintf("%s.%d%s", base, i+1, ext)
		}
		if err := m.Save(target); err != nil {
			return err
		}
	}
	return nil
}

// LookupObfuscatedName returns every replacement given to bindings named
// name during the most recent run, in source order.
func (o *Obfuscator) LookupObfuscatedName(name string) ([]string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var out []string
	for _, m := range o.maps {
		for _, e := range m.LookupName(name) {
			out = append(out, e.Replacement)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("name not found in rename maps: %s", name)
	}
	return out, nil
}

// LookupOriginalName returns the original name of a generated identifier
// from the most recent run.
func (o *Obfuscator) LookupOriginalName(replacement string) (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, m := range o.maps {
		if e, ok := m.Original(replacement); ok {
			return e.Original, nil
		}
	}
	return "", fmt.Errorf("name not found in rename maps: %s", replacement)
}

func (o *Obfuscator) startRun() {
	o.mu.Lock()
	o.maps = nil
	o.stats = obfuscator.Stats{}
	o.mu.Unlock()
}

func (o *Obfuscator) record(res *obfuscator.Result) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.maps = append(o.maps, res.RenameMaps...)
	o.stats.Add(res.Stats)
}

// saveRunMaps writes the current maps under rename_map_dir, if configured.
func (o *Obfuscator) saveRunMaps(name string) error {
	if o.Config.RenameMapDir == "" {
		return nil
	}
	return o.SaveRenameMap(filepath.Join(o.Config.RenameMapDir, name+".map.json"))
}

// sortMaps orders the maps of a parallel run by source name.
func (o *Obfuscator) sortMaps() {
	o.mu.Lock()
	defer o.mu.Unlock()
	sort.SliceStable(o.maps, func(i, j int) bool { return o.maps[i].Source < o.maps[j].Source })
}

func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write to output file %s: %w", path, err)
	}
	return nil
}
