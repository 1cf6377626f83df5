package obfuscator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/whit3rabbit/jsmixer/internal/jsast"
	"github.com/whit3rabbit/jsmixer/internal/renamer"
	"github.com/whit3rabbit/jsmixer/internal/scope"
)

// scriptTypes lists the type attribute values of classic scripts. Module
// scripts and data blocks are copied unchanged.
var scriptTypes = map[string]bool{
	"":                         true,
	"text/javascript":          true,
	"application/javascript":   true,
	"application/x-javascript": true,
	"text/ecmascript":          true,
	"application/ecmascript":   true,
}

// segment is a run of document bytes. Script bodies carry their unit name.
type segment struct {
	raw  []byte
	unit string
	tree *scope.Tree
}

// ProcessHTML renames the inline scripts of an HTML document. Every script
// body is a unit named name#scriptN; all other bytes, markup included, are
// copied as read.
//
// Classic scripts of one page run in one global scope. They are renamed by
// one renamer.Context that reserves every name spelled in any of them, and
// a program-level binding keeps its name when another script of the page
// declares it too or uses it without declaring it.
func ProcessHTML(name string, src []byte, octx *ObfuscationContext) (*Result, error) {
	segments, err := splitScripts(name, src)
	if err != nil {
		return nil, err
	}

	rctx, err := renamer.NewContext(octx.Config, octx.Logger.With(zap.String("document", name)))
	if err != nil {
		return nil, err
	}
	var trees []*scope.Tree
	for i := range segments {
		seg := &segments[i]
		if seg.unit == "" {
			continue
		}
		arena, err := jsast.Parse(seg.unit, string(seg.raw))
		if err != nil {
			return nil, err
		}
		if seg.tree, err = rctx.Analyze(arena); err != nil {
			return nil, err
		}
		rctx.Reserve(arena.Names())
		trees = append(trees, seg.tree)
	}
	rctx.Share(documentGlobals(trees)...)

	var out strings.Builder
	out.Grow(len(src))
	result := &Result{}
	for _, seg := range segments {
		if seg.tree == nil {
			out.Write(seg.raw)
			continue
		}
		m, err := rctx.Rename(seg.tree)
		if err != nil {
			return nil, err
		}
		res := unitResult(seg.tree.Arena, m, octx.Logger.With(zap.String("unit", seg.unit)))
		out.WriteString(res.Code)
		result.RenameMaps = append(result.RenameMaps, m)
		result.Stats.Add(res.Stats)
	}

	octx.Logger.Debug("processed html document",
		zap.String("file", name),
		zap.Int("scripts", len(trees)))
	result.Code = out.String()
	return result, nil
}

// splitScripts cuts src into markup and the bodies of non-blank classic
// scripts.
func splitScripts(name string, src []byte) ([]segment, error) {
	z := html.NewTokenizer(bytes.NewReader(src))
	var (
		segments []segment
		inScript bool
		scripts  int
	)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if errors.Is(z.Err(), io.EOF) {
				return segments, nil
			}
			return nil, fmt.Errorf("failed to tokenize %s: %w", name, z.Err())
		}
		// TagName lower-cases the buffer in place, so copy first.
		raw := append([]byte(nil), z.Raw()...)

		switch tt {
		case html.StartTagToken:
			tag, hasAttr := z.TagName()
			inScript = false
			if string(tag) == "script" {
				inScript = isClassicScript(z, hasAttr)
			}
			segments = append(segments, segment{raw: raw})
		case html.TextToken:
			if !inScript || len(bytes.TrimSpace(raw)) == 0 {
				segments = append(segments, segment{raw: raw})
				continue
			}
			scripts++
			segments = append(segments, segment{raw: raw, unit: fmt.Sprintf("%s#script%d", name, scripts)})
		default:
			inScript = false
			segments = append(segments, segment{raw: raw})
		}
	}
}

// documentGlobals returns the program-level names that cross script
// boundaries: names a script uses without declaring them, and names
// declared at the top level of more than one script.
func documentGlobals(trees []*scope.Tree) []string {
	declared := make(map[string]int)
	shared := make(map[string]struct{})
	for _, tree := range trees {
		for _, name := range tree.Unresolved() {
			shared[name] = struct{}{}
		}
		for _, b := range tree.Root.Bindings {
			declared[b.Name]++
		}
	}
	for name, n := range declared {
		if n > 1 {
			shared[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(shared))
	for name := range shared {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// isClassicScript reads the attributes of the current script tag. Scripts
// with a src attribute still count: their inline text is ignored by browsers
// and is normally empty.
func isClassicScript(z *html.Tokenizer, hasAttr bool) bool {
	kind := ""
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		if string(key) == "type" {
			kind = strings.ToLower(strings.TrimSpace(string(val)))
		}
	}
	return scriptTypes[kind]
}
