// Package hf adapts a Hugging Face tokenizer.json to tokencheck.Encoder.
package hf

import (
	"fmt"

	"github.com/daulet/tokenizers"

	"github.com/hannes/kiji-autolabel/pii/tokencheck"
)

// Tokenizer wraps a loaded Hugging Face tokenizer.
type Tokenizer struct {
	tk *tokenizers.Tokenizer
}

// Load reads a tokenizer.json file.
func Load(path string) (*Tokenizer, error) {
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}
	return &Tokenizer{tk: tk}, nil
}

// Encode returns the byte offsets of every token of text, without special
// tokens.
func (t *Tokenizer) Encode(text string) ([]tokencheck.Token, error) {
	encoding := t.tk.EncodeWithOptions(text, false, tokenizers.WithReturnOffsets())

	tokens := make([]tokencheck.Token, 0, len(encoding.Offsets))
	for _, offset := range encoding.Offsets {
		start, end := safeUintToInt(offset[0]), safeUintToInt(offset[1])
		if end <= start || end > len(text) {
			continue
		}
		tokens = append(tokens, tokencheck.Token{Start: start, End: end})
	}
	return tokens, nil
}

// Close releases the native tokenizer.
func (t *Tokenizer) Close() error {
	return t.tk.Close()
}

func safeUintToInt(u uint) int {
	const maxInt = int(^uint(0) >> 1)
	if u > uint(maxInt) {
		return maxInt
	}
	return int(u)
}
