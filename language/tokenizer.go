// Package language provides the fuzzy substitution engine used by text rewriting spells:
// a tokenizer, an edit-distance based substitution map and capitalization inference.
package language

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
)

// whitespace runs, word runs, then runs of anything else
const genericPattern = `\s+|[\p{L}\p{N}_]+|[^\s\p{L}\p{N}_]+`

// Tokenizer splits text into maximal runs of whitespace, word characters and other symbols.
// Stop phrases are matched before the generic runs so that idioms such as "I'm" survive as
// a single token. Concatenating the tokens always gives back the input.
type Tokenizer struct {
	stopPhrases   []string
	caseSensitive bool
	sensitive     *regexp.Regexp
	insensitive   *regexp.Regexp
}

// NewTokenizer builds a tokenizer. Stop phrase matching is case-insensitive unless
// caseSensitive is set. A case-insensitive tokenizer keeps one spelling per phrase.
func NewTokenizer(stopPhrases []string, caseSensitive bool) *Tokenizer {
	phrases := lo.Filter(stopPhrases, func(p string, _ int) bool { return p != "" })
	if caseSensitive {
		phrases = lo.Uniq(phrases)
	} else {
		// first spelling wins among phrases equal under case folding
		phrases = lo.UniqBy(phrases, strings.ToLower)
	}
	// Longest phrases first, the alternation is leftmost-first.
	sort.SliceStable(phrases, func(i, j int) bool {
		if len(phrases[i]) != len(phrases[j]) {
			return len(phrases[i]) > len(phrases[j])
		}
		return phrases[i] < phrases[j]
	})

	pattern := genericPattern
	if len(phrases) > 0 {
		anchored := lo.Map(phrases, func(p string, _ int) string { return anchor(p) })
		pattern = strings.Join(anchored, "|") + "|" + genericPattern
	}

	return &Tokenizer{
		stopPhrases:   phrases,
		caseSensitive: caseSensitive,
		sensitive:     regexp.MustCompile(pattern),
		insensitive:   regexp.MustCompile("(?i)" + pattern),
	}
}

// anchor quotes a stop phrase and pins it to word boundaries on the sides where it starts
// or ends with a word character.
func anchor(phrase string) string {
	quoted := regexp.QuoteMeta(phrase)
	first, _ := utf8.DecodeRuneInString(phrase)
	last, _ := utf8.DecodeLastRuneInString(phrase)
	if isWordRune(first) {
		quoted = `\b` + quoted
	}
	if isWordRune(last) {
		quoted += `\b`
	}
	return quoted
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Tokenize splits phrase with the tokenizer's own case policy.
func (t *Tokenizer) Tokenize(phrase string) []string {
	return t.TokenizeCase(phrase, t.caseSensitive)
}

// TokenizeCase splits phrase, overriding the case policy for this call only.
func (t *Tokenizer) TokenizeCase(phrase string, caseSensitive bool) []string {
	if phrase == "" {
		return nil
	}
	if caseSensitive {
		return t.sensitive.FindAllString(phrase, -1)
	}
	return t.insensitive.FindAllString(phrase, -1)
}

func (t *Tokenizer) StopPhrases() []string {
	return append([]string(nil), t.stopPhrases...)
}
