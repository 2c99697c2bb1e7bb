package language

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// EditDistance measures how far apart two strings are.
type EditDistance func(a, b string) int

// Substitution replaces tokens matching From with To.
type Substitution struct {
	From string `yaml:"from" validate:"required"`
	To   string `yaml:"to" validate:"required"`
}

// SubstitutionMap rewrites tokens with fuzzy matching and capitalization inference.
//
// Substitutions are tried in insertion order and the first match wins, so when several
// keys are within reach of a token the earliest declared one is used.
type SubstitutionMap struct {
	substitutions []Substitution
	maxDistance   int
	caseSensitive bool
	distance      EditDistance
}

type Option func(*SubstitutionMap)

// WithMaxDistance sets the highest accepted edit distance. Zero means exact matching.
func WithMaxDistance(d int) Option {
	return func(m *SubstitutionMap) {
		if d >= 0 {
			m.maxDistance = d
		}
	}
}

func WithCaseSensitivity(sensitive bool) Option {
	return func(m *SubstitutionMap) { m.caseSensitive = sensitive }
}

// WithEditDistance replaces the default Levenshtein distance.
func WithEditDistance(fn EditDistance) Option {
	return func(m *SubstitutionMap) {
		if fn != nil {
			m.distance = fn
		}
	}
}

func NewSubstitutionMap(substitutions []Substitution, opts ...Option) *SubstitutionMap {
	m := &SubstitutionMap{
		substitutions: append([]Substitution(nil), substitutions...),
		distance:      Levenshtein,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Match reports whether token matches key. A single character on either side only
// matches exactly, fuzzy matching a lone letter is meaningless.
func (m *SubstitutionMap) Match(key, token string) bool {
	if utf8.RuneCountInString(key) == 1 || utf8.RuneCountInString(token) == 1 {
		if m.caseSensitive {
			return key == token
		}
		return strings.EqualFold(key, token)
	}

	key, token = norm.NFD.String(key), norm.NFD.String(token)
	if !m.caseSensitive {
		key, token = strings.ToLower(key), strings.ToLower(token)
	}
	return m.distance(key, token) <= m.maxDistance
}

// Lookup returns the replacement for token, capitalized like token.
func (m *SubstitutionMap) Lookup(token string) (string, bool) {
	for _, s := range m.substitutions {
		if m.Match(s.From, token) {
			return FuzzyCaps(s.To, token), true
		}
	}
	return "", false
}

// Translate substitutes every token and concatenates the result. Whitespace and
// punctuation are tokens of their own so no separator is inserted.
func (m *SubstitutionMap) Translate(tokens []string) string {
	var sb strings.Builder
	for _, token := range tokens {
		if replacement, ok := m.Lookup(token); ok {
			token = replacement
		}
		sb.WriteString(token)
	}
	return sb.String()
}

func (m *SubstitutionMap) Len() int {
	return len(m.substitutions)
}
