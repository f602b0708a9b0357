package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// The dictionary uses specific words to avoid partial collisions (e.g., "he" inside "The")
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	dictionary := []string{"badger", "snake", "mushroom"}
	mod, err := NewModerator(dictionary, replacementChar)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Simple word and space preservation",
			input:    "The badger is here",
			expected: "The ****** is here",
			words:    []string{"badger"},
		},
		{
			name:     "Multiple occurrences",
			input:    "badger badger",
			expected: "****** ******",
			words:    []string{"badger", "badger"},
		},
		{
			name:     "Leet speak and internal punctuation",
			input:    "Look at B.4.d.g.3r now",
			expected: "Look at ********** now",
			words:    []string{"badger"},
		},
		{
			name:     "Uppercase",
			input:    "SNAKE in the grass",
			expected: "***** in the grass",
			words:    []string{"snake"},
		},
		{
			name:     "Word adjacent to trailing punctuation",
			input:    "I love badger.",
			expected: "I love ******.",
			words:    []string{"badger"},
		},
		{
			name:     "Nothing to censor",
			input:    "Direct chat is amazing",
			expected: "Direct chat is amazing",
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
			req.Equal(tt.expected, content)
			req.Equal(tt.words, words)
		})
	}
}

func TestModerator_Noise_Only_Dictionary(t *testing.T) {
	req := require.New(t)

	// Given a dictionary without any usable word
	mod, err := NewModerator([]string{"...", ",,,", ""}, replacementChar)
	req.NoError(err)

	// Then nothing is ever censored
	content, words := mod.Censor("Hello ...")
	req.Equal("Hello ...", content)
	req.Nil(words)
}

func TestModerator_Nil_Is_Passthrough(t *testing.T) {
	req := require.New(t)
	var mod *Moderator
	content, words := mod.Censor("badger")
	req.Equal("badger", content)
	req.Nil(words)
}
