package pii

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"unicode/utf8"
)

// RegexDetector implements Detector using regular expressions
type RegexDetector struct {
	patterns map[string]*regexp.Regexp
}

func NewRegexDetector(patterns map[string]string) (*RegexDetector, error) {
	regexMap := make(map[string]*regexp.Regexp, len(patterns))
	for label, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern for %s: %w", label, err)
		}
		regexMap[label] = re
	}

	return &RegexDetector{
		patterns: regexMap,
	}, nil
}

// GetName returns the name of this detector
func (r *RegexDetector) GetName() string {
	return DetectorNameRegex
}

// Detect processes the input and returns detected entities ordered by position
func (r *RegexDetector) Detect(ctx context.Context, input DetectorInput) (DetectorOutput, error) {
	var entities []Entity

	for label, pattern := range r.patterns {
		if err := ctx.Err(); err != nil {
			return DetectorOutput{}, err
		}
		for _, match := range pattern.FindAllStringIndex(input.Text, -1) {
			startPos := utf8.RuneCountInString(input.Text[:match[0]])
			matchedText := input.Text[match[0]:match[1]]
			entities = append(entities, Entity{
				Text:       matchedText,
				Label:      label,
				StartPos:   startPos,
				EndPos:     startPos + utf8.RuneCountInString(matchedText),
				Confidence: 1.0,
			})
		}
	}

	sort.Slice(entities, func(i, j int) bool {
		if entities[i].StartPos != entities[j].StartPos {
			return entities[i].StartPos < entities[j].StartPos
		}
		if entities[i].EndPos != entities[j].EndPos {
			return entities[i].EndPos > entities[j].EndPos
		}
		return entities[i].Label < entities[j].Label
	})

	return DetectorOutput{
		Text:     input.Text,
		Entities: entities,
	}, nil
}

// Close implements the Detector interface
func (r *RegexDetector) Close() error {
	// Regex detector doesn't need cleanup
	return nil
}
