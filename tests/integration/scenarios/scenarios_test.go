package integration_test

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whit3rabbit/jsmixer/internal/config"
	jsrunner "github.com/whit3rabbit/jsmixer/tests/internal"
)

var hexName = regexp.MustCompile(`_0x[a-f0-9]{4,7}`)

func TestProgramVarIsNotRenamedByDefault(t *testing.T) {
	runner := jsrunner.NewJSRunner(t)
	src := "var test = 0xa; console.log(test);"

	res := runner.RequireEquivalent("scenario1.js", src, config.DefaultConfig())
	assert.Equal(t, src, res.Code)

	out, err := runner.Run("scenario1.js", res.Code)
	require.NoError(t, err)
	assert.Equal(t, "10\n", out)
}

func TestFunctionLocalGetsOneName(t *testing.T) {
	runner := jsrunner.NewJSRunner(t)
	src := "function f(){ var abc = 'abc'; console.log(abc); }"

	res := runner.RequireEquivalent("scenario2.js", src, config.DefaultConfig())
	names := hexName.FindAllString(res.Code, -1)
	require.Len(t, names, 2)
	assert.Equal(t, names[0], names[1])
	assert.Equal(t, "function f(){ var "+names[0]+" = 'abc'; console.log("+names[0]+"); }", res.Code)

	out, err := runner.Run("scenario2.js", res.Code+"\nf();")
	require.NoError(t, err)
	assert.Equal(t, "abc\n", out)
}

func TestNestedParameterGetsItsOwnName(t *testing.T) {
	runner := jsrunner.NewJSRunner(t)
	src := `function outer(a) {
  console.log(a);
  var a = 2;
  function inner(a) { return a * 10; }
  return inner(a) + a;
}
console.log(outer(1));`

	res := runner.RequireEquivalent("scenario3.js", src, config.DefaultConfig())
	m := res.RenameMap()
	require.NotNil(t, m)

	entries := m.LookupName("a")
	require.Len(t, entries, 2, "the outer parameter and var are one binding")
	outerName, innerName := entries[0].Replacement, entries[1].Replacement
	assert.NotEqual(t, outerName, innerName)

	inner := m.LookupName("inner")
	require.Len(t, inner, 1)

	want := strings.NewReplacer("OUTER", outerName, "INNER", innerName, "FN", inner[0].Replacement).Replace(
		`function outer(OUTER) {
  console.log(OUTER);
  var OUTER = 2;
  function FN(INNER) { return INNER * 10; }
  return FN(OUTER) + OUTER;
}
console.log(outer(1));`)
	assert.Equal(t, want, res.Code)
}

func TestArrayPatternLeavesKeepOrder(t *testing.T) {
	runner := jsrunner.NewJSRunner(t)
	src := "var [a, b] = [0x1, 0x2]; console.log(a, b);"

	cfg := config.DefaultConfig()
	cfg.RenameGlobals = true
	res := runner.RequireEquivalent("scenario4.js", src, cfg)

	m := res.RenameMap()
	require.NotNil(t, m)
	require.Equal(t, 2, m.Len())
	first, second := m.Entries[0], m.Entries[1]
	assert.Equal(t, "a", first.Original)
	assert.Equal(t, "b", second.Original)
	assert.NotEqual(t, first.Replacement, second.Replacement)

	want := "var [" + first.Replacement + ", " + second.Replacement + "] = [0x1, 0x2]; console.log(" +
		first.Replacement + ", " + second.Replacement + ");"
	assert.Equal(t, want, res.Code)

	out, err := runner.Run("scenario4.js", res.Code)
	require.NoError(t, err)
	assert.Equal(t, "1 2\n", out)
}

func TestArrayPatternInsideFunctionByDefault(t *testing.T) {
	runner := jsrunner.NewJSRunner(t)
	src := "(function () { var [a, b] = [0x1, 0x2]; console.log(a, b); })();"

	res := runner.RequireEquivalent("scenario4b.js", src, config.DefaultConfig())
	assert.Len(t, hexName.FindAllString(res.Code, -1), 4)
	assert.Equal(t, 2, res.Stats.Renamed)
}
