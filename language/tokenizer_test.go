package language

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTokenizer_Tokenize(t *testing.T) {
	tokenizer := NewTokenizer(nil, false)

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Words punctuation and spaces",
			input:    "Hello, world!",
			expected: []string{"Hello", ",", " ", "world", "!"},
		},
		{
			name:     "Runs of whitespace stay together",
			input:    "a  \tb",
			expected: []string{"a", "  \t", "b"},
		},
		{
			name:     "Apostrophe splits words without stop phrases",
			input:    "I'm here",
			expected: []string{"I", "'", "m", " ", "here"},
		},
		{
			name:     "Unicode letters are word characters",
			input:    "un été...",
			expected: []string{"un", " ", "été", "..."},
		},
		{
			name:     "Empty input",
			input:    "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			tokens := tokenizer.Tokenize(tt.input)
			req.Equal(tt.expected, tokens)
			// Then concatenating the tokens gives back the input
			req.Equal(tt.input, strings.Join(tokens, ""))
		})
	}
}

func TestTokenizer_StopPhrases(t *testing.T) {
	req := require.New(t)
	tokenizer := NewTokenizer([]string{"I'm", "i'm", ""}, false)

	// Given a phrase containing a stop phrase
	tokens := tokenizer.Tokenize("Hey, I'm a guy")

	// Then the stop phrase is kept whole
	req.Equal([]string{"Hey", ",", " ", "I'm", " ", "a", " ", "guy"}, tokens)

	// And matching is case-insensitive by default
	req.Equal([]string{"I'M", " ", "ok"}, tokenizer.Tokenize("I'M ok"))

	// And duplicates under case folding and empty phrases are ignored
	req.Equal([]string{"I'm"}, tokenizer.StopPhrases())
}

func TestTokenizer_CaseSensitiveKeepsSpellings(t *testing.T) {
	req := require.New(t)
	tokenizer := NewTokenizer([]string{"I'm", "i'm", "I'm"}, true)

	req.Equal([]string{"I'm", "i'm"}, tokenizer.StopPhrases())
	req.Equal([]string{"i'm", " ", "ok"}, tokenizer.Tokenize("i'm ok"))
}

func TestTokenizer_StopPhraseWordBoundary(t *testing.T) {
	req := require.New(t)
	tokenizer := NewTokenizer([]string{"I'm"}, false)

	// When the stop phrase is glued to a longer word
	tokens := tokenizer.Tokenize("I'mnot")

	// Then it is not treated as a stop phrase
	req.Equal([]string{"I", "'", "mnot"}, tokens)
}

func TestTokenizer_CaseSensitiveOverride(t *testing.T) {
	req := require.New(t)
	tokenizer := NewTokenizer([]string{"I'm"}, false)

	req.Equal([]string{"i'm"}, tokenizer.TokenizeCase("i'm", false))
	req.Equal([]string{"i", "'", "m"}, tokenizer.TokenizeCase("i'm", true))
}
