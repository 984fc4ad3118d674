// Package tokencheck measures how well entity spans line up with the token
// boundaries of a subword tokenizer. A span that starts or ends inside a
// token cannot be labeled exactly at token level.
package tokencheck

import (
	"context"
	"fmt"

	"github.com/hannes/kiji-autolabel/pii/align"
	"github.com/hannes/kiji-autolabel/pii/dataset"
)

// Token is a half-open byte range of the encoded text.
type Token struct {
	Start int
	End   int
}

// Encoder splits text into tokens.
type Encoder interface {
	Encode(text string) ([]Token, error)
}

// Misalignment is one span that cuts through a token.
type Misalignment struct {
	Example int        `json:"example"`
	Span    align.Span `json:"span"`
	Text    string     `json:"text"`
	Start   bool       `json:"start"` // start falls inside a token
	End     bool       `json:"end"`   // end falls inside a token
}

// Report summarizes a boundary check.
type Report struct {
	Examples      int            `json:"examples"`
	Entities      int            `json:"entities"`
	Misaligned    int            `json:"misaligned"`
	ByLabel       map[string]int `json:"by_label"`
	Misalignments []Misalignment `json:"misalignments,omitempty"`
}

// Rate returns the share of entities that cut through a token.
func (r Report) Rate() float64 {
	if r.Entities == 0 {
		return 0
	}
	return float64(r.Misaligned) / float64(r.Entities)
}

// Merge adds other's counts to r.
func (r *Report) Merge(other Report) {
	r.Examples += other.Examples
	r.Entities += other.Entities
	r.Misaligned += other.Misaligned
	if r.ByLabel == nil {
		r.ByLabel = map[string]int{}
	}
	for label, n := range other.ByLabel {
		r.ByLabel[label] += n
	}
	r.Misalignments = append(r.Misalignments, other.Misalignments...)
}

// Check encodes one example and reports spans whose start or end falls
// strictly inside a token.
func Check(ex dataset.Example, enc Encoder) (Report, error) {
	report := Report{Examples: 1, Entities: len(ex.Entities), ByLabel: map[string]int{}}
	if len(ex.Entities) == 0 {
		return report, nil
	}

	tokens, err := enc.Encode(ex.Text)
	if err != nil {
		return Report{}, fmt.Errorf("failed to encode text: %w", err)
	}
	for _, span := range ex.Entities {
		start, end := align.ByteOffsets(ex.Text, span)
		m := Misalignment{
			Span:  span,
			Text:  ex.Text[start:end],
			Start: insideToken(tokens, start),
			End:   insideToken(tokens, end),
		}
		if m.Start || m.End {
			report.Misaligned++
			report.ByLabel[span.Label]++
			report.Misalignments = append(report.Misalignments, m)
		}
	}
	return report, nil
}

// CheckAll checks every example. Misalignments carry the example index.
func CheckAll(ctx context.Context, examples []dataset.Example, enc Encoder) (Report, error) {
	total := Report{ByLabel: map[string]int{}}
	for i, ex := range examples {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		report, err := Check(ex, enc)
		if err != nil {
			return Report{}, fmt.Errorf("example %d: %w", i, err)
		}
		for j := range report.Misalignments {
			report.Misalignments[j].Example = i
		}
		total.Merge(report)
	}
	return total, nil
}

// insideToken reports whether offset lies strictly between the start and end
// of some token.
func insideToken(tokens []Token, offset int) bool {
	for _, tok := range tokens {
		if tok.Start < offset && offset < tok.End {
			return true
		}
	}
	return false
}
