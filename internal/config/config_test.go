package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/jsmixer/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	// Run from an empty directory so no stray config.yaml is picked up.
	t.Chdir(t.TempDir())

	cfg, err := config.LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, config.GeneratorHexadecimal, cfg.IdentifierNamesGenerator)
	assert.True(t, cfg.AbortOnError)
	assert.False(t, cfg.RenameGlobals)
	assert.Equal(t, 10000, cfg.MaxRegenAttempts)
	assert.Equal(t, 512, cfg.MaxPatternDepth)
	assert.Equal(t, []string{"js", "mjs", "cjs"}, cfg.JSExtensions)
	assert.Equal(t, []string{"html", "htm"}, cfg.HTMLExtensions)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
rename_globals: true
identifier_names_generator: Mangled
identifiers_prefix: app
reserved_names:
  - "^keep"
seed: 42
max_pattern_depth: 16
`)
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, cfg.RenameGlobals)
	assert.Equal(t, config.GeneratorMangled, cfg.IdentifierNamesGenerator, "generator mode is normalised to lower case")
	assert.Equal(t, "app", cfg.IdentifiersPrefix)
	assert.Equal(t, []string{"^keep"}, cfg.ReservedNames)
	assert.Equal(t, 42, cfg.Seed)
	assert.Equal(t, 16, cfg.MaxPatternDepth)
	assert.True(t, cfg.AbortOnError, "unset keys keep their defaults")
}

func TestLoadConfigEnvironmentOverride(t *testing.T) {
	path := writeConfig(t, "rename_globals: false\n")
	t.Setenv("JSMIXER_RENAME_GLOBALS", "true")
	t.Setenv("JSMIXER_SEED", "7")

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.RenameGlobals)
	assert.Equal(t, 7, cfg.Seed)
}

func TestRenameGlobalLexicalsFollowsRenameGlobals(t *testing.T) {
	cfg, err := config.LoadConfig(writeConfig(t, "rename_globals: false\n"))
	require.NoError(t, err)
	assert.Nil(t, cfg.RenameGlobalLexicals)
	assert.False(t, cfg.RenamesGlobalLexicals())

	cfg, err = config.LoadConfig(writeConfig(t, "rename_globals: true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.RenamesGlobalLexicals(), "unset key follows rename_globals")

	cfg, err = config.LoadConfig(writeConfig(t, "rename_globals: true\nrename_global_lexicals: false\n"))
	require.NoError(t, err)
	require.NotNil(t, cfg.RenameGlobalLexicals)
	assert.True(t, cfg.RenameGlobals)
	assert.False(t, cfg.RenamesGlobalLexicals())

	t.Setenv("JSMIXER_RENAME_GLOBAL_LEXICALS", "true")
	cfg, err = config.LoadConfig(writeConfig(t, "rename_globals: false\n"))
	require.NoError(t, err)
	assert.True(t, cfg.RenamesGlobalLexicals())

	cfg, err = config.LoadConfigWithOverrides(writeConfig(t, "seed: 1\n"), map[string]interface{}{"rename_global_lexicals": false})
	require.NoError(t, err)
	assert.False(t, cfg.RenamesGlobalLexicals(), "overrides beat the environment")
}

func TestLoadConfigWithOverrides(t *testing.T) {
	path := writeConfig(t, "identifiers_prefix: file\nseed: 3\n")
	t.Setenv("JSMIXER_SEED", "7")

	cfg, err := config.LoadConfigWithOverrides(path, map[string]interface{}{
		"seed":                       11,
		"identifier_names_generator": "mangled",
	})
	require.NoError(t, err)
	assert.Equal(t, 11, cfg.Seed, "overrides beat the environment")
	assert.Equal(t, config.GeneratorMangled, cfg.IdentifierNamesGenerator)
	assert.Equal(t, "file", cfg.IdentifiersPrefix)

	_, err = config.LoadConfigWithOverrides(path, map[string]interface{}{"scramble_mode": "x"})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown generator", "identifier_names_generator: rot13\n"},
		{"dictionary without words", "identifier_names_generator: dictionary\n"},
		{"bad dictionary word", "identifier_names_generator: dictionary\nidentifiers_dictionary: [\"1abc\"]\n"},
		{"bad prefix", "identifiers_prefix: \"9x\"\n"},
		{"bad reserved pattern", "reserved_names: [\"(unclosed\"]\n"},
		{"negative workers", "workers: -2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.ErrorIs(t, err, config.ErrInvalidConfig)
		})
	}
}

func TestValidateFillsLimits(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxRegenAttempts = 0
	cfg.MaxPatternDepth = -1
	cfg.IdentifierNamesGenerator = ""
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10000, cfg.MaxRegenAttempts)
	assert.Equal(t, 512, cfg.MaxPatternDepth)
	assert.Equal(t, config.GeneratorHexadecimal, cfg.IdentifierNamesGenerator)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	config.Testing = true
	defer func() { config.Testing = false }()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, config.SaveConfig(path))

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().SkipPaths, cfg.SkipPaths)
}

func TestFileKinds(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.True(t, cfg.IsJSFile("a/b/app.js"))
	assert.True(t, cfg.IsJSFile("lib.MJS"))
	assert.False(t, cfg.IsJSFile("style.css"))
	assert.False(t, cfg.IsJSFile("Makefile"))
	assert.True(t, cfg.IsHTMLFile("index.html"))
	assert.False(t, cfg.IsHTMLFile("index.js"))
}

func TestNameMatcher(t *testing.T) {
	m, err := config.CompileNameMatcher([]string{"^jQuery$", "^_internal"})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	pattern, ok := m.Match("jQuery")
	assert.True(t, ok)
	assert.Equal(t, "^jQuery$", pattern)

	_, ok = m.Match("_internalState")
	assert.True(t, ok)

	_, ok = m.Match("jQueryUI")
	assert.False(t, ok)

	var none *config.NameMatcher
	_, ok = none.Match("anything")
	assert.False(t, ok)
}

func TestIsIdentifierName(t *testing.T) {
	for _, s := range []string{"a", "_0x1f2e", "$el", "camelCase9"} {
		assert.True(t, config.IsIdentifierName(s), s)
	}
	for _, s := range []string{"", "9a", "a-b", "héllo"} {
		assert.False(t, config.IsIdentifierName(s), s)
	}
}
