package obfuscator

import (
	"sort"
	"strings"

	"github.com/whit3rabbit/jsmixer/internal/jsast"
)

// Emit writes the source of arena with every renamed identifier replaced.
// Everything else, comments and whitespace included, is copied unchanged.
// Shorthand properties are expanded so the key keeps its original name.
func Emit(arena *jsast.Arena) string {
	var edits []jsast.NodeID
	for _, id := range arena.Identifiers() {
		if arena.Node(id).Renamed() {
			edits = append(edits, id)
		}
	}
	if len(edits) == 0 {
		return arena.Source
	}
	sort.Slice(edits, func(i, j int) bool {
		return arena.Node(edits[i]).Pos < arena.Node(edits[j]).Pos
	})

	src := arena.Source
	var sb strings.Builder
	sb.Grow(len(src) + len(edits)*8)
	last := 0
	for _, id := range edits {
		n := arena.Node(id)
		end := n.End
		if end <= n.Pos {
			end = n.Pos + len(n.Orig)
		}
		if n.Pos < last || end > len(src) {
			continue
		}
		sb.WriteString(src[last:n.Pos])
		if n.Flags.Has(jsast.FlagShorthand) {
			sb.WriteString(n.Orig)
			sb.WriteString(": ")
		}
		sb.WriteString(n.Name)
		last = end
	}
	sb.WriteString(src[last:])
	return sb.String()
}
