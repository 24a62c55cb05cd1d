// Package tokenizer provides token counting for prompt/context sizing.
package tokenizer

import (
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts model tokens in text.
type Tokenizer interface {
	CountTokens(text string) int
}

// Tiktoken counts tokens using the BPE encoding of a given model.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// NewTiktoken resolves the encoding for a model name, falling back to
// resolving it as an encoding name.
func NewTiktoken(name string) (*Tiktoken, error) {
	enc, err := tiktoken.EncodingForModel(name)
	if err != nil {
		enc, err = tiktoken.GetEncoding(name)
		if err != nil {
			return nil, err
		}
	}
	return &Tiktoken{enc: enc}, nil
}

// CountTokens returns the number of tokens in text.
func (t *Tiktoken) CountTokens(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// Heuristic approximates token counts without an encoding table: words and
// punctuation for Latin text, one token per CJK rune.
type Heuristic struct{}

// NewHeuristic creates a heuristic tokenizer.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// CountTokens approximates the token count of text.
func (h *Heuristic) CountTokens(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			inWord = false
		case unicode.Is(unicode.Han, r):
			inWord = false
			count++
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if !inWord {
				count++
				inWord = true
			}
		default:
			inWord = false
			count++
		}
	}
	return count
}

// Default returns the tiktoken counter for the given model when available,
// otherwise the heuristic counter.
func Default(model string) Tokenizer {
	if tk, err := NewTiktoken(model); err == nil {
		return tk
	}
	return NewHeuristic()
}
