// Package scrambler generates the replacement identifiers used by the renamer.
package scrambler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/whit3rabbit/jsmixer/internal/config"
)

const (
	// Characters for mangled names
	firstCharsMangled = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	allCharsMangled   = firstCharsMangled + "0123456789"

	// Hexadecimal names mix the counter into a 24-bit space; the multiplier
	// is odd so the mix is a bijection.
	hexSpace      = 1 << 24
	hexMultiplier = 0x9E3779
)

// ErrNamespaceExhausted is wrapped by every ExhaustedError.
var ErrNamespaceExhausted = errors.New("identifier namespace exhausted")

// ExhaustedError reports that no acceptable name could be produced. It is the
// only fatal condition of renaming and names the constraint that kept
// rejecting candidates.
type ExhaustedError struct {
	Original   string
	Attempts   int
	Constraint string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("cannot generate a replacement for %q after %d attempts: %s", e.Original, e.Attempts, e.Constraint)
}

func (e *ExhaustedError) Unwrap() error { return ErrNamespaceExhausted }

// Scrambler hands out replacement names for one source unit.
type Scrambler struct {
	mode        string
	prefix      string
	seed        uint32
	dictionary  []string
	reserved    *config.NameMatcher
	maxAttempts int

	scrambleMap  map[string]string // binding key -> generated name
	rScrambleMap map[string]string // generated name -> original name
	counter      uint64

	mu sync.RWMutex
}

// NewScrambler creates a scrambler from the renaming settings of cfg.
func NewScrambler(cfg *config.Config) (*Scrambler, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	reserved, err := config.CompileNameMatcher(cfg.ReservedNames)
	if err != nil {
		return nil, err
	}
	s := &Scrambler{
		mode:         cfg.IdentifierNamesGenerator,
		prefix:       cfg.IdentifiersPrefix,
		seed:         uint32(cfg.Seed) % hexSpace,
		dictionary:   cfg.IdentifiersDictionary,
		reserved:     reserved,
		maxAttempts:  cfg.MaxRegenAttempts,
		scrambleMap:  make(map[string]string),
		rScrambleMap: make(map[string]string),
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = 10000
	}
	switch s.mode {
	case "":
		s.mode = config.GeneratorHexadecimal
	case config.GeneratorHexadecimal, config.GeneratorMangled:
	case config.GeneratorDictionary:
		if len(s.dictionary) == 0 {
			return nil, fmt.Errorf("%w: empty identifiers_dictionary", config.ErrInvalidConfig)
		}
	default:
		return nil, fmt.Errorf("%w: unknown identifier_names_generator %q", config.ErrInvalidConfig, s.mode)
	}
	return s, nil
}

// Scramble returns the replacement for the binding identified by key. The
// same key always yields the same name. taken lets the caller reject names
// that are visible or already spelled in the unit.
func (s *Scrambler) Scramble(key, original string, taken func(string) bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name, exists := s.scrambleMap[key]; exists {
		return name, nil
	}

	constraint := "no candidate produced"
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		candidate, ok := s.generate(s.counter)
		if !ok {
			return "", &ExhaustedError{
				Original:   original,
				Attempts:   attempt,
				Constraint: fmt.Sprintf("identifiers_dictionary exhausted (%d words)", len(s.dictionary)),
			}
		}
		s.counter++

		if IsReserved(candidate) {
			constraint = fmt.Sprintf("%q is a reserved word", candidate)
			continue
		}
		if pattern, hit := s.reserved.Match(candidate); hit {
			constraint = fmt.Sprintf("%q matches reserved_names pattern %q", candidate, pattern)
			continue
		}
		if _, exists := s.rScrambleMap[candidate]; exists {
			constraint = fmt.Sprintf("%q was already generated", candidate)
			continue
		}
		if taken != nil && taken(candidate) {
			constraint = fmt.Sprintf("%q is already in use", candidate)
			continue
		}

		s.scrambleMap[key] = candidate
		s.rScrambleMap[candidate] = original
		return candidate, nil
	}
	return "", &ExhaustedError{Original: original, Attempts: s.maxAttempts, Constraint: constraint}
}

// Len returns the number of names handed out.
func (s *Scrambler) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scrambleMap)
}

// generate returns the n-th candidate of the configured mode. ok is false when
// the mode has a finite namespace and n is past its end.
func (s *Scrambler) generate(n uint64) (string, bool) {
	var body string
	switch s.mode {
	case config.GeneratorMangled:
		body = mangledName(n)
	case config.GeneratorDictionary:
		word, ok := dictionaryName(s.dictionary, n)
		if !ok {
			return "", false
		}
		body = word
	default:
		body = hexName(n, s.seed)
	}
	return s.prefix + body, true
}

// hexName yields _0x followed by four to six lowercase hex digits while the
// counter fits the 24-bit space, then seven-digit names.
func hexName(n uint64, seed uint32) string {
	if n >= hexSpace {
		return fmt.Sprintf("_0x%07x", n)
	}
	mixed := (n*hexMultiplier + uint64(seed)) % hexSpace
	return fmt.Sprintf("_0x%04x", mixed)
}

// mangledName enumerates a, b, ..., Z, aa, ab, ... in shortlex order.
func mangledName(n uint64) string {
	first := uint64(len(firstCharsMangled))
	all := uint64(len(allCharsMangled))
	if n < first {
		return firstCharsMangled[n : n+1]
	}
	n -= first
	size, length := first*all, 2
	for n >= size {
		n -= size
		size *= all
		length++
	}
	buf := make([]byte, length)
	for i := length - 1; i > 0; i-- {
		buf[i] = allCharsMangled[n%all]
		n /= all
	}
	buf[0] = firstCharsMangled[n]
	return string(buf)
}

// dictionaryName yields every word, then every word with the case of its
// first letter flipped.
func dictionaryName(words []string, n uint64) (string, bool) {
	count := uint64(len(words))
	switch {
	case n < count:
		return words[n], true
	case n < 2*count:
		return flipFirst(words[n-count]), true
	}
	return "", false
}

func flipFirst(word string) string {
	if word == "" {
		return word
	}
	b := []byte(word)
	switch c := b[0]; {
	case c >= 'a' && c <= 'z':
		b[0] = c - ('a' - 'A')
	case c >= 'A' && c <= 'Z':
		b[0] = c + ('a' - 'A')
	}
	return string(b)
}
