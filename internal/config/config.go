// Package config loads and validates the obfuscator settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Identifier name generator modes.
const (
	GeneratorHexadecimal = "hexadecimal"
	GeneratorMangled     = "mangled"
	GeneratorDictionary  = "dictionary"
)

const (
	// DefaultConfigFile is read when no explicit path is given. Its absence is not an error.
	DefaultConfigFile = "config.yaml"

	// EnvPrefix prefixes every environment variable override (JSMIXER_RENAME_GLOBALS, ...).
	EnvPrefix = "JSMIXER"

	defaultMaxRegenAttempts = 10000
	defaultMaxPatternDepth  = 512
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration settings for the obfuscator.
// Struct tags control how Viper maps config file keys and environment variables.
type Config struct {
	// Input/Output settings
	SourceDirectory string `mapstructure:"source_directory" yaml:"source_directory,omitempty"`
	TargetDirectory string `mapstructure:"target_directory" yaml:"target_directory,omitempty"`

	// General behavior
	Silent       bool `mapstructure:"silent" yaml:"silent"`                 // Suppress informational messages
	DebugMode    bool `mapstructure:"debug_mode" yaml:"debug_mode"`         // Enable verbose debug logging
	AbortOnError bool `mapstructure:"abort_on_error" yaml:"abort_on_error"` // Stop a directory run on the first failing file
	Workers      int  `mapstructure:"workers" yaml:"workers"`               // Parallel source units in dir mode, 0 means GOMAXPROCS

	// Renaming
	RenameGlobals            bool     `mapstructure:"rename_globals" yaml:"rename_globals"`
	RenameGlobalLexicals     *bool    `mapstructure:"rename_global_lexicals" yaml:"rename_global_lexicals,omitempty"` // Unset follows rename_globals
	IdentifierNamesGenerator string   `mapstructure:"identifier_names_generator" yaml:"identifier_names_generator"`
	IdentifiersPrefix        string   `mapstructure:"identifiers_prefix" yaml:"identifiers_prefix"`
	IdentifiersDictionary    []string `mapstructure:"identifiers_dictionary" yaml:"identifiers_dictionary"`
	ReservedNames            []string `mapstructure:"reserved_names" yaml:"reserved_names"` // ECMAScript regular expressions
	Seed                     int      `mapstructure:"seed" yaml:"seed"`
	MaxRegenAttempts         int      `mapstructure:"max_regen_attempts" yaml:"max_regen_attempts"`
	MaxPatternDepth          int      `mapstructure:"max_pattern_depth" yaml:"max_pattern_depth"`

	// File Handling
	JSExtensions   []string `mapstructure:"js_extensions" yaml:"js_extensions"`
	HTMLExtensions []string `mapstructure:"html_extensions" yaml:"html_extensions"`
	SkipPaths      []string `mapstructure:"skip" yaml:"skip"` // Globs never copied to the target
	KeepPaths      []string `mapstructure:"keep" yaml:"keep"` // Globs copied without obfuscating
	RenameMapDir   string   `mapstructure:"rename_map_dir" yaml:"rename_map_dir,omitempty"`
}

// Default values for the configuration, keyed like the mapstructure tags so
// Viper can bind environment variables for every key.
var defaults = map[string]interface{}{
	"source_directory":           "",
	"target_directory":           "",
	"silent":                     false,
	"debug_mode":                 false,
	"abort_on_error":             true,
	"workers":                    0,
	"rename_globals":             false,
	"rename_global_lexicals":     nil,
	"identifier_names_generator": GeneratorHexadecimal,
	"identifiers_prefix":         "",
	"identifiers_dictionary":     []string{},
	"reserved_names":             []string{},
	"seed":                       0,
	"max_regen_attempts":         defaultMaxRegenAttempts,
	"max_pattern_depth":          defaultMaxPatternDepth,
	"js_extensions":              []string{"js", "mjs", "cjs"},
	"html_extensions":            []string{"html", "htm"},
	"skip":                       []string{"node_modules/*", "*.git*", "*.min.js"},
	"keep":                       []string{},
	"rename_map_dir":             "",
}

var (
	// Testing controls whether output is suppressed for testing purposes
	Testing bool
)

// PrintInfo prints user-facing progress output unless Testing is set.
func PrintInfo(format string, args ...interface{}) {
	if !Testing {
		fmt.Printf(format, args...)
	}
}

// DefaultConfig returns a configuration with default settings.
func DefaultConfig() *Config {
	return &Config{
		AbortOnError:             true,
		IdentifierNamesGenerator: GeneratorHexadecimal,
		IdentifiersDictionary:    []string{},
		ReservedNames:            []string{},
		MaxRegenAttempts:         defaultMaxRegenAttempts,
		MaxPatternDepth:          defaultMaxPatternDepth,
		JSExtensions:             []string{"js", "mjs", "cjs"},
		HTMLExtensions:           []string{"html", "htm"},
		SkipPaths:                []string{"node_modules/*", "*.git*", "*.min.js"},
		KeepPaths:                []string{},
	}
}

// LoadConfig reads configuration from file and environment variables and
// returns a validated Config. Command-line flags are applied by the caller.
func LoadConfig(configPath string) (*Config, error) {
	return LoadConfigWithOverrides(configPath, nil)
}

// LoadConfigWithOverrides is LoadConfig with explicit values, keyed like the
// config file, that take precedence over the file and the environment.
func LoadConfigWithOverrides(configPath string, overrides map[string]interface{}) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if configPath == "" {
		configPath = DefaultConfigFile
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if filepath.Ext(configPath) == "" {
			v.SetConfigType("yaml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
		}
	} else if os.IsNotExist(err) {
		if configPath != DefaultConfigFile {
			return nil, fmt.Errorf("specified config file not found: %s", configPath)
		}
	} else {
		return nil, fmt.Errorf("error checking config file %s: %w", configPath, err)
	}

	for key, value := range overrides {
		if _, known := defaults[key]; !known {
			return nil, fmt.Errorf("%w: unknown configuration key %q", ErrInvalidConfig, key)
		}
		v.Set(key, value)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.TargetDirectory != "" {
		cfg.TargetDirectory = filepath.Clean(cfg.TargetDirectory)
	}
	return cfg, nil
}

// SaveConfig saves the default configuration to a file.
func SaveConfig(configPath string) error {
	yamlData, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("error marshalling default config: %w", err)
	}
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating directory for config file %s: %w", configPath, err)
	}
	if err := os.WriteFile(configPath, yamlData, 0644); err != nil {
		return fmt.Errorf("error writing config file %s: %w", configPath, err)
	}
	PrintInfo("Info: Saved default configuration to %s\n", configPath)
	return nil
}

// Validate normalises the configuration in place and reports the first
// inconsistency found.
func (c *Config) Validate() error {
	c.IdentifierNamesGenerator = strings.ToLower(strings.TrimSpace(c.IdentifierNamesGenerator))
	switch c.IdentifierNamesGenerator {
	case "":
		c.IdentifierNamesGenerator = GeneratorHexadecimal
	case GeneratorHexadecimal, GeneratorMangled:
	case GeneratorDictionary:
		if len(c.IdentifiersDictionary) == 0 {
			return fmt.Errorf("%w: identifier_names_generator %q requires a non-empty identifiers_dictionary",
				ErrInvalidConfig, GeneratorDictionary)
		}
		for _, word := range c.IdentifiersDictionary {
			if !IsIdentifierName(c.IdentifiersPrefix + word) {
				return fmt.Errorf("%w: dictionary word %q is not a valid identifier", ErrInvalidConfig, word)
			}
		}
	default:
		return fmt.Errorf("%w: unknown identifier_names_generator %q", ErrInvalidConfig, c.IdentifierNamesGenerator)
	}

	if c.IdentifiersPrefix != "" && !IsIdentifierName(c.IdentifiersPrefix) {
		return fmt.Errorf("%w: identifiers_prefix %q is not a valid identifier start", ErrInvalidConfig, c.IdentifiersPrefix)
	}
	if _, err := CompileNameMatcher(c.ReservedNames); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be >= 0, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.MaxRegenAttempts <= 0 {
		c.MaxRegenAttempts = defaultMaxRegenAttempts
	}
	if c.MaxPatternDepth <= 0 {
		c.MaxPatternDepth = defaultMaxPatternDepth
	}
	return nil
}

// RenamesGlobalLexicals reports whether program-level let, const and class
// bindings are renamed.
func (c *Config) RenamesGlobalLexicals() bool {
	if c.RenameGlobalLexicals != nil {
		return *c.RenameGlobalLexicals
	}
	return c.RenameGlobals
}

// IsJSFile reports whether a file name carries one of the configured JavaScript extensions.
func (c *Config) IsJSFile(name string) bool {
	return hasExtension(name, c.JSExtensions)
}

// IsHTMLFile reports whether inline scripts of the file should be processed.
func (c *Config) IsHTMLFile(name string) bool {
	return hasExtension(name, c.HTMLExtensions)
}

func hasExtension(name string, exts []string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return false
	}
	for _, e := range exts {
		if strings.TrimPrefix(strings.ToLower(e), ".") == ext {
			return true
		}
	}
	return false
}

// IsIdentifierName reports whether s is a plain ASCII JavaScript identifier.
// Generated names and prefixes are restricted to this subset.
func IsIdentifierName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '_' || ch == '$':
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z':
		case ch >= '0' && ch <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
