package api

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/whit3rabbit/jsmixer/internal/config"
	"github.com/whit3rabbit/jsmixer/internal/renamer"
)

var hexName = regexp.MustCompile(`_0x[a-f0-9]{4,6}`)

func quiet(t *testing.T) {
	t.Helper()
	original := config.Testing
	config.Testing = true
	t.Cleanup(func() { config.Testing = original })
}

func newTestObfuscator(t *testing.T, overrides map[string]interface{}) *Obfuscator {
	t.Helper()
	quiet(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("silent: true\n"), 0644))
	obf, err := NewObfuscator(Options{
		ConfigPath:      path,
		Silent:          true,
		ConfigOverrides: overrides,
		Logger:          zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	return obf
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestNewObfuscator(t *testing.T) {
	quiet(t)
	configContent := `
silent: true
rename_globals: true
identifier_names_generator: mangled
reserved_names:
  - "^keep"
`
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	obf, err := NewObfuscator(Options{ConfigPath: configPath, Silent: true})
	require.NoError(t, err)
	require.NotNil(t, obf.Context)
	assert.True(t, obf.Config.RenameGlobals)
	assert.Equal(t, config.GeneratorMangled, obf.Config.IdentifierNamesGenerator)
	assert.Equal(t, []string{"^keep"}, obf.Config.ReservedNames)

	_, err = NewObfuscator(Options{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)

	_, err = NewObfuscator(Options{
		ConfigPath:      configPath,
		ConfigOverrides: map[string]interface{}{"identifier_names_generator": "rot13"},
	})
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestObfuscateCode(t *testing.T) {
	obf := newTestObfuscator(t, nil)

	result, err := obf.ObfuscateCode("function f(){ var abc = 'abc'; console.log(abc); }")
	require.NoError(t, err)

	names := hexName.FindAllString(result, -1)
	require.Len(t, names, 2)
	assert.Equal(t, names[0], names[1])

	replacements, err := obf.LookupObfuscatedName("abc")
	require.NoError(t, err)
	assert.Equal(t, []string{names[0]}, replacements)

	original, err := obf.LookupOriginalName(names[0])
	require.NoError(t, err)
	assert.Equal(t, "abc", original)

	_, err = obf.LookupObfuscatedName("f")
	assert.Error(t, err, "program functions are kept")
	_, err = obf.LookupOriginalName("_0xffffff")
	assert.Error(t, err)

	assert.Equal(t, 1, obf.Stats().Renamed)

	_, err = obf.ObfuscateCode("var = ;")
	assert.Error(t, err)
}

func TestObfuscateCodeRenameGlobals(t *testing.T) {
	obf := newTestObfuscator(t, map[string]interface{}{"rename_globals": true})
	result, err := obf.ObfuscateCode("var test = 0xa; console.log(test);")
	require.NoError(t, err)
	assert.NotContains(t, result, "test")
	assert.Contains(t, result, "console.log(")
}

func TestObfuscateFileToFile(t *testing.T) {
	dir := t.TempDir()
	mapDir := filepath.Join(dir, "maps")
	obf := newTestObfuscator(t, map[string]interface{}{"rename_map_dir": mapDir})

	input := filepath.Join(dir, "in.js")
	require.NoError(t, os.WriteFile(input, []byte("function add(a, b) { return a + b; }\n"), 0644))
	output := filepath.Join(dir, "out", "in.js")

	require.NoError(t, obf.ObfuscateFileToFile(input, output))
	code := readFile(t, output)
	assert.True(t, strings.HasPrefix(code, "function add(_0x"))
	assert.Len(t, hexName.FindAllString(code, -1), 4)

	m, err := renamer.LoadRenameMap(filepath.Join(mapDir, "in.js.map.json"))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, input, m.Source)

	saved := filepath.Join(dir, "last.yaml")
	require.NoError(t, obf.SaveRenameMap(saved))
	m, err = renamer.LoadRenameMap(saved)
	require.NoError(t, err)
	assert.Equal(t, "a", m.Entries[0].Original)

	err = obf.ObfuscateFileToFile(filepath.Join(dir, "missing.js"), output)
	assert.Error(t, err)
}

func TestSaveRenameMapWithoutRun(t *testing.T) {
	obf := newTestObfuscator(t, nil)
	assert.Error(t, obf.SaveRenameMap(filepath.Join(t.TempDir(), "m.json")))
}

func TestObfuscateDirectory(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	writeTree(t, src, map[string]string{
		"app.js":                    "function main(input) { var total = 0; for (var i = 0; i < input.length; i++) { total += input[i]; } return total; }\n",
		"lib/util.js":               "(function () { const twice = (n) => n * 2; console.log(twice(2)); })();\n",
		"page.html":                 "<p>hi</p><script>(function (who) { alert(who); })('x');</script>\n",
		"readme.txt":                "function notCode(x) { return x; }\n",
		"vendor.min.js":             "!function(a){}(1);\n",
		"node_modules/dep/index.js": "module.exports = function (z) { return z; };\n",
		"keep/raw.js":               "function raw(x) { return x; }\n(function (y) { return y; })();\n",
	})

	obf := newTestObfuscator(t, map[string]interface{}{
		"keep":    []string{"keep/*"},
		"workers": 2,
	})
	report, err := obf.ObfuscateDirectory(src, out)
	require.NoError(t, err)

	assert.Equal(t, []string{"app.js", "lib/util.js", "page.html"}, report.Obfuscated)
	assert.Equal(t, []string{"keep/raw.js", "readme.txt"}, report.Copied)
	assert.Contains(t, report.Skipped, "vendor.min.js")
	assert.Contains(t, report.Skipped, "node_modules")
	assert.Empty(t, report.Failed)
	assert.Equal(t, 6, report.Stats.Renamed)

	app := readFile(t, filepath.Join(out, "app.js"))
	assert.True(t, strings.HasPrefix(app, "function main(_0x"))
	assert.NotContains(t, app, "total")

	assert.Equal(t, "function notCode(x) { return x; }\n", readFile(t, filepath.Join(out, "readme.txt")))
	assert.Equal(t, "function raw(x) { return x; }\n(function (y) { return y; })();\n", readFile(t, filepath.Join(out, "keep", "raw.js")))
	assert.NoFileExists(t, filepath.Join(out, "vendor.min.js"))
	assert.NoDirExists(t, filepath.Join(out, "node_modules"))
	assert.Contains(t, readFile(t, filepath.Join(out, "page.html")), "<p>hi</p><script>(function (_0x")

	maps := obf.RenameMaps()
	require.Len(t, maps, 3)
	assert.True(t, strings.HasSuffix(maps[0].Source, "app.js"))
}

func TestObfuscateDirectoryIsDeterministic(t *testing.T) {
	src := t.TempDir()
	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		files[name+".js"] = "(function (" + name + "1, " + name + "2) { let s = " + name + "1 + " + name + "2; return s; })(1, 2);\n"
	}
	writeTree(t, src, files)

	serial := filepath.Join(t.TempDir(), "serial")
	parallel := filepath.Join(t.TempDir(), "parallel")
	_, err := newTestObfuscator(t, map[string]interface{}{"workers": 1}).ObfuscateDirectory(src, serial)
	require.NoError(t, err)
	_, err = newTestObfuscator(t, map[string]interface{}{"workers": 4}).ObfuscateDirectory(src, parallel)
	require.NoError(t, err)

	for name := range files {
		assert.Equal(t, readFile(t, filepath.Join(serial, name)), readFile(t, filepath.Join(parallel, name)), name)
	}
}

func TestObfuscateDirectoryErrors(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"good.js":   "(function (x) { return x; })(1);\n",
		"broken.js": "function ( {\n",
	})

	t.Run("AbortOnError", func(t *testing.T) {
		obf := newTestObfuscator(t, map[string]interface{}{"abort_on_error": true})
		_, err := obf.ObfuscateDirectory(src, filepath.Join(t.TempDir(), "out"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broken.js")
	})

	t.Run("Continue", func(t *testing.T) {
		obf := newTestObfuscator(t, map[string]interface{}{"abort_on_error": false})
		out := filepath.Join(t.TempDir(), "out")
		report, err := obf.ObfuscateDirectory(src, out)
		require.NoError(t, err)
		require.Len(t, report.Failed, 1)
		assert.Equal(t, "broken.js", report.Failed[0].Path)
		assert.Equal(t, []string{"good.js"}, report.Obfuscated)
		assert.FileExists(t, filepath.Join(out, "good.js"))
	})

	t.Run("NotADirectory", func(t *testing.T) {
		obf := newTestObfuscator(t, nil)
		_, err := obf.ObfuscateDirectory(filepath.Join(src, "good.js"), t.TempDir())
		assert.Error(t, err)
	})
}

func TestObfuscateDirectoryRenameMaps(t *testing.T) {
	src := t.TempDir()
	mapDir := filepath.Join(t.TempDir(), "maps")
	writeTree(t, src, map[string]string{
		"sub/one.js": "(function (p) { return p; })(1);\n",
		"two.html":   "<script>(function (q) { return q; })(1);</script><script>(function (r) { return r; })(2);</script>",
	})

	obf := newTestObfuscator(t, map[string]interface{}{"rename_map_dir": mapDir})
	_, err := obf.ObfuscateDirectory(src, filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(mapDir, "sub", "one.js.map.json"))
	assert.FileExists(t, filepath.Join(mapDir, "two.html.map.json"))
	assert.FileExists(t, filepath.Join(mapDir, "two.html.map.2.json"))
}

// TestSymlinkHandling checks that links are recreated rather than followed.
func TestSymlinkHandling(t *testing.T) {
	// Skip on Windows as symlinks require admin privileges
	if runtime.GOOS == "windows" {
		t.Skip("Skipping symlink tests on Windows")
	}

	src := t.TempDir()
	writeTree(t, src, map[string]string{"subdir/test.js": "(function (v) { return v; })(1);\n"})
	require.NoError(t, os.Symlink(filepath.Join(src, "subdir"), filepath.Join(src, "symlink-dir")))
	require.NoError(t, os.Symlink("subdir/test.js", filepath.Join(src, "symlink-file.js")))

	out := filepath.Join(t.TempDir(), "out")
	report, err := newTestObfuscator(t, nil).ObfuscateDirectory(src, out)
	require.NoError(t, err)
	assert.Equal(t, []string{"subdir/test.js"}, report.Obfuscated)

	info, err := os.Lstat(filepath.Join(out, "symlink-dir"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeSymlink)

	target, err := os.Readlink(filepath.Join(out, "symlink-file.js"))
	require.NoError(t, err)
	assert.Equal(t, "subdir/test.js", target)
}

func TestMatchAny(t *testing.T) {
	patterns := []string{"node_modules/*", "*.min.js", "build/*.js"}
	tests := []struct {
		rel   string
		isDir bool
		want  bool
	}{
		{"node_modules", true, true},
		{"node_modules/x.js", false, true},
		{"lib/jquery.min.js", false, true},
		{"build/out.js", false, true},
		{"build/sub/out.js", false, false},
		{"src/app.js", false, false},
		{"node_modules_extra", true, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchAny(patterns, tt.rel, tt.isDir), tt.rel)
	}
}
