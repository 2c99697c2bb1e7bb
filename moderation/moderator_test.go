package moderation

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// TestModerator_Censor
// The dictionary uses specific words to avoid partial collisions (e.g., "he" inside "The")
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	dictionary := []string{"snapchat", "kik", "telegram"}
	mod, err := NewModerator(dictionary, replacementChar, log)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "add me on snapchat please",
			expected: "add me on ******** please",
			words:    []string{"snapchat"},
		},
		{
			name:     "Multiple occurrences",
			input:    "kik? kik!",
			expected: "***? ***!",
			words:    []string{"kik", "kik"},
		},
		{
			name:     "Leet speak and internal punctuation",
			input:    "my t.3.l.3.g.r.4.m is open",
			expected: "my *************** is open",
			words:    []string{"telegram"},
		},
		{
			name:     "Uppercase and noise",
			input:    "S-N-A-P-C-H-A-T me",
			expected: "*************** me",
			words:    []string{"snapchat"},
		},
		{
			name:     "Accents are preserved",
			input:    "un été sur kik",
			expected: "un été sur ***",
			words:    []string{"kik"},
		},
		{
			name:     "Nothing to censor",
			input:    "hi, how are you",
			expected: "hi, how are you",
			words:    nil,
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, words := mod.Censor(tt.input)
			req.Equal(tt.expected, content, "test=%s,", tt.name)
			req.Equal(tt.words, words, "expected=%s,words=%s", tt.expected, words)
		})
	}
}

func TestModerator_CornerCases(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	// Given real noise and not leet speak associated
	dictionary := []string{"...", ",,,", "", "kik"}

	mod, err := NewModerator(dictionary, replacementChar, log)
	req.NoError(err)

	// Then the sentence is censored
	content, words := mod.Censor("my kik is safe")
	req.Equal("my *** is safe", content)
	req.Equal([]string{"kik"}, words)

	// Then real noise is uncensored
	content, words = mod.Censor("Hello ...")
	req.Equal("Hello ...", content)
	req.Nil(words)
}

func TestModerator_EmptyDictionary(t *testing.T) {
	req := require.New(t)

	// Given a dictionary with nothing to match
	mod, err := NewModerator([]string{"", "?."}, replacementChar, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)

	// Then everything passes through
	content, words := mod.Censor("anything goes")
	req.Equal("anything goes", content)
	req.Nil(words)
}
