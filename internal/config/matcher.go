package config

import (
	"fmt"

	"github.com/dlclark/regexp2"
)

// NameMatcher tests identifier names against the reserved_names patterns.
// Patterns use ECMAScript syntax and are unanchored, so "^foo$" must be
// written explicitly to reserve exactly "foo".
type NameMatcher struct {
	patterns []*regexp2.Regexp
}

// CompileNameMatcher compiles every pattern. An empty list yields a matcher
// that never matches.
func CompileNameMatcher(patterns []string) (*NameMatcher, error) {
	m := &NameMatcher{}
	for _, p := range patterns {
		re, err := regexp2.Compile(p, regexp2.ECMAScript)
		if err != nil {
			return nil, fmt.Errorf("reserved name pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, re)
	}
	return m, nil
}

// Match returns the first pattern matching name.
func (m *NameMatcher) Match(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, re := range m.patterns {
		// A match error only comes from a timeout, which is unset here.
		if ok, err := re.MatchString(name); err == nil && ok {
			return re.String(), true
		}
	}
	return "", false
}

// Len returns the number of compiled patterns.
func (m *NameMatcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.patterns)
}
