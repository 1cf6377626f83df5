// Package internal holds helpers shared by the integration tests.
package internal

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/net/html"

	"github.com/whit3rabbit/jsmixer/internal/config"
	"github.com/whit3rabbit/jsmixer/internal/obfuscator"
)

// JSRunner runs JavaScript in an embedded engine so integration tests can
// compare the behavior of a program before and after renaming.
type JSRunner struct {
	T *testing.T
}

// NewJSRunner creates a new runner for integration tests
func NewJSRunner(t *testing.T) *JSRunner {
	return &JSRunner{T: t}
}

// Run executes src in a fresh runtime and returns what it printed through
// console.log, one line per call.
func (r *JSRunner) Run(name, src string) (string, error) {
	r.T.Helper()
	var out strings.Builder
	_, err := newRuntime(&out).RunScript(name, src)
	return out.String(), err
}

// RunPage executes the inline scripts of an HTML page in document order in
// one runtime, the way a browser shares one global scope between them. Only
// script tags without attributes are run.
func (r *JSRunner) RunPage(name, page string) (string, error) {
	r.T.Helper()
	var out strings.Builder
	vm := newRuntime(&out)
	for i, src := range pageScripts(page) {
		if _, err := vm.RunScript(fmt.Sprintf("%s#script%d", name, i+1), src); err != nil {
			return out.String(), err
		}
	}
	return out.String(), nil
}

func newRuntime(out *strings.Builder) *goja.Runtime {
	vm := goja.New()

	console := vm.NewObject()
	_ = console.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		out.WriteString(strings.Join(parts, " "))
		out.WriteByte('\n')
		return goja.Undefined()
	})
	_ = vm.Set("console", console)
	return vm
}

func pageScripts(page string) []string {
	z := html.NewTokenizer(strings.NewReader(page))
	var scripts []string
	inScript := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return scripts
		case html.StartTagToken:
			tag, hasAttr := z.TagName()
			inScript = string(tag) == "script" && !hasAttr
		case html.TextToken:
			if inScript {
				scripts = append(scripts, string(z.Text()))
			}
		default:
			inScript = false
		}
	}
}

// Obfuscate renames src with cfg.
func (r *JSRunner) Obfuscate(name, src string, cfg *config.Config) (*obfuscator.Result, error) {
	r.T.Helper()
	octx, err := obfuscator.NewObfuscationContext(cfg, zaptest.NewLogger(r.T))
	if err != nil {
		return nil, err
	}
	return obfuscator.ProcessSource(name, src, octx)
}

// RequireEquivalentPage obfuscates an HTML page, runs the scripts of both
// versions and fails the test unless they print the same output.
func (r *JSRunner) RequireEquivalentPage(name, page string, cfg *config.Config) *obfuscator.Result {
	r.T.Helper()

	want, err := r.RunPage(name, page)
	require.NoError(r.T, err, "original page must run")

	octx, err := obfuscator.NewObfuscationContext(cfg, zaptest.NewLogger(r.T))
	require.NoError(r.T, err)
	res, err := obfuscator.ProcessHTML(name, []byte(page), octx)
	require.NoError(r.T, err, "obfuscation failed")

	got, err := r.RunPage(name, res.Code)
	require.NoError(r.T, err, "obfuscated page must run:\n%s", res.Code)
	require.Equal(r.T, want, got, "output changed after renaming:\n%s", res.Code)
	return res
}

// RequireEquivalent obfuscates src, runs both versions and fails the test
// unless they print the same output. It returns the obfuscation result.
func (r *JSRunner) RequireEquivalent(name, src string, cfg *config.Config) *obfuscator.Result {
	r.T.Helper()

	want, err := r.Run(name, src)
	require.NoError(r.T, err, "original program must run")

	res, err := r.Obfuscate(name, src, cfg)
	require.NoError(r.T, err, "obfuscation failed")

	got, err := r.Run(name, res.Code)
	require.NoError(r.T, err, "obfuscated program must run:\n%s", res.Code)
	require.Equal(r.T, want, got, "output changed after renaming:\n%s", res.Code)
	return res
}
