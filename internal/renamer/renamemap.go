package renamer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/iancoleman/orderedmap"
	"gopkg.in/yaml.v3"

	"github.com/whit3rabbit/jsmixer/internal/jsast"
)

// renameMapVersion tags serialized rename maps.
const renameMapVersion = "jsmixer-renamemap-v1"

// Entry records one renamed binding.
type Entry struct {
	Original    string       `yaml:"original"`
	Replacement string       `yaml:"replacement"`
	Kind        string       `yaml:"kind,omitempty"`
	Scope       string       `yaml:"scope,omitempty"`
	Pos         int          `yaml:"pos"`
	Line        int          `yaml:"line,omitempty"`
	Column      int          `yaml:"column,omitempty"`
	Decl        jsast.NodeID `yaml:"-"`
}

// Key identifies the binding by original name and declaration offset.
func (e Entry) Key() string {
	return e.Original + "@" + strconv.Itoa(e.Pos)
}

// Exclusion records a binding that kept its name and why.
type Exclusion struct {
	Name   string `yaml:"name"`
	Reason string `yaml:"reason"`
	Pos    int    `yaml:"pos"`
}

// Key identifies the kept binding like Entry.Key.
func (x Exclusion) Key() string {
	return x.Name + "@" + strconv.Itoa(x.Pos)
}

// RenameMap is the read-only result of renaming one unit: original name plus
// declaration identity mapped to the replacement.
type RenameMap struct {
	Source  string      `yaml:"source"`
	Entries []Entry     `yaml:"bindings"`
	Kept    []Exclusion `yaml:"kept,omitempty"`

	// Unresolved lists the free names the unit uses, sorted.
	Unresolved []string `yaml:"unresolved,omitempty"`

	byDecl        map[jsast.NodeID]int
	byName        map[string][]int
	byReplacement map[string]int
}

// NewRenameMap returns an empty map for the named source unit.
func NewRenameMap(source string) *RenameMap {
	m := &RenameMap{Source: source}
	m.reindex()
	return m
}

func (m *RenameMap) reindex() {
	m.byDecl = make(map[jsast.NodeID]int, len(m.Entries))
	m.byName = make(map[string][]int, len(m.Entries))
	m.byReplacement = make(map[string]int, len(m.Entries))
	for i, e := range m.Entries {
		m.index(i, e)
	}
}

func (m *RenameMap) index(i int, e Entry) {
	if e.Decl.Valid() {
		m.byDecl[e.Decl] = i
	}
	m.byName[e.Original] = append(m.byName[e.Original], i)
	m.byReplacement[e.Replacement] = i
}

func (m *RenameMap) add(e Entry) {
	m.Entries = append(m.Entries, e)
	m.index(len(m.Entries)-1, e)
}

// Len returns the number of renamed bindings.
func (m *RenameMap) Len() int { return len(m.Entries) }

// Lookup returns the replacement of the binding declared at decl. The
// original name must match as well.
func (m *RenameMap) Lookup(original string, decl jsast.NodeID) (string, bool) {
	i, ok := m.byDecl[decl]
	if !ok || m.Entries[i].Original != original {
		return "", false
	}
	return m.Entries[i].Replacement, true
}

// LookupName returns every entry whose original name is original, in
// renaming order.
func (m *RenameMap) LookupName(original string) []Entry {
	idx := m.byName[original]
	out := make([]Entry, 0, len(idx))
	for _, i := range idx {
		out = append(out, m.Entries[i])
	}
	return out
}

// Original returns the entry that produced replacement.
func (m *RenameMap) Original(replacement string) (Entry, bool) {
	i, ok := m.byReplacement[replacement]
	if !ok {
		return Entry{}, false
	}
	return m.Entries[i], true
}

// MarshalJSON writes the map with bindings in renaming order.
func (m *RenameMap) MarshalJSON() ([]byte, error) {
	bindings := orderedmap.New()
	for _, e := range m.Entries {
		bindings.Set(e.Key(), e.Replacement)
	}
	kept := orderedmap.New()
	for _, x := range m.Kept {
		kept.Set(x.Key(), x.Reason)
	}

	doc := orderedmap.New()
	doc.Set("version", renameMapVersion)
	doc.Set("source", m.Source)
	doc.Set("bindings", bindings)
	doc.Set("kept", kept)
	unresolved := m.Unresolved
	if unresolved == nil {
		unresolved = []string{}
	}
	doc.Set("unresolved", unresolved)
	return doc.MarshalJSON()
}

// UnmarshalJSON reads a map written by MarshalJSON. Declaration node handles
// are not part of the format.
func (m *RenameMap) UnmarshalJSON(data []byte) error {
	doc := orderedmap.New()
	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("failed to decode rename map: %w", err)
	}
	if v, _ := doc.Get("version"); v != renameMapVersion {
		return fmt.Errorf("incompatible rename map version: file has '%v', expected '%s'", v, renameMapVersion)
	}
	source, _ := doc.Get("source")
	m.Source, _ = source.(string)
	m.Entries = nil
	m.Kept = nil

	bindings, err := nestedMap(doc, "bindings")
	if err != nil {
		return err
	}
	for _, key := range bindings.Keys() {
		name, pos, err := splitKey(key)
		if err != nil {
			return err
		}
		v, _ := bindings.Get(key)
		replacement, ok := v.(string)
		if !ok {
			return fmt.Errorf("rename map binding %q: replacement is not a string", key)
		}
		m.Entries = append(m.Entries, Entry{Original: name, Replacement: replacement, Pos: pos, Decl: jsast.NoNode})
	}

	kept, err := nestedMap(doc, "kept")
	if err != nil {
		return err
	}
	for _, key := range kept.Keys() {
		name, pos, err := splitKey(key)
		if err != nil {
			return err
		}
		v, _ := kept.Get(key)
		reason, _ := v.(string)
		m.Kept = append(m.Kept, Exclusion{Name: name, Reason: reason, Pos: pos})
	}

	m.Unresolved = nil
	if v, ok := doc.Get("unresolved"); ok {
		list, _ := v.([]interface{})
		for _, item := range list {
			if name, ok := item.(string); ok {
				m.Unresolved = append(m.Unresolved, name)
			}
		}
	}
	m.reindex()
	return nil
}

func nestedMap(doc *orderedmap.OrderedMap, key string) (*orderedmap.OrderedMap, error) {
	v, ok := doc.Get(key)
	if !ok || v == nil {
		return orderedmap.New(), nil
	}
	switch v := v.(type) {
	case orderedmap.OrderedMap:
		return &v, nil
	case *orderedmap.OrderedMap:
		return v, nil
	case map[string]interface{}:
		out := orderedmap.New()
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out.Set(k, v[k])
		}
		return out, nil
	}
	return nil, fmt.Errorf("rename map field %q is not an object", key)
}

func splitKey(key string) (string, int, error) {
	at := strings.LastIndexByte(key, '@')
	if at <= 0 {
		return "", 0, fmt.Errorf("malformed rename map key %q", key)
	}
	pos, err := strconv.Atoi(key[at+1:])
	if err != nil {
		return "", 0, fmt.Errorf("malformed rename map key %q: %w", key, err)
	}
	return key[:at], pos, nil
}

type yamlRenameMap struct {
	Version    string      `yaml:"version"`
	Source     string      `yaml:"source"`
	Entries    []Entry     `yaml:"bindings"`
	Kept       []Exclusion `yaml:"kept,omitempty"`
	Unresolved []string    `yaml:"unresolved,omitempty"`
}

// MarshalYAML writes the full entries, including kinds and positions.
func (m *RenameMap) MarshalYAML() (interface{}, error) {
	return yamlRenameMap{
		Version:    renameMapVersion,
		Source:     m.Source,
		Entries:    m.Entries,
		Kept:       m.Kept,
		Unresolved: m.Unresolved,
	}, nil
}

// UnmarshalYAML reads a map written by MarshalYAML.
func (m *RenameMap) UnmarshalYAML(value *yaml.Node) error {
	var doc yamlRenameMap
	if err := value.Decode(&doc); err != nil {
		return err
	}
	if doc.Version != renameMapVersion {
		return fmt.Errorf("incompatible rename map version: file has '%s', expected '%s'", doc.Version, renameMapVersion)
	}
	m.Source = doc.Source
	m.Entries = doc.Entries
	m.Kept = doc.Kept
	m.Unresolved = doc.Unresolved
	for i := range m.Entries {
		m.Entries[i].Decl = jsast.NoNode
	}
	m.reindex()
	return nil
}

// Save writes the map to path, as YAML for .yaml/.yml and JSON otherwise.
func (m *RenameMap) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(m)
	} else {
		data, err = json.MarshalIndent(m, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode rename map: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for rename map %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write rename map to file %s: %w", path, err)
	}
	return nil
}

// LoadRenameMap reads a map saved by Save.
func LoadRenameMap(path string) (*RenameMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rename map file %s: %w", path, err)
	}
	m := NewRenameMap("")
	if isYAML(path) {
		err = yaml.Unmarshal(data, m)
	} else {
		err = json.Unmarshal(data, m)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode rename map from file %s: %w", path, err)
	}
	return m, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
