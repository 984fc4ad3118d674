package pii

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/hannes/kiji-autolabel/pii/align"
	"github.com/hannes/kiji-autolabel/pii/dataset"
)

// Finding reasons.
const (
	ReasonFormat   = "format"   // span text does not have the label's shape
	ReasonChecksum = "checksum" // shape is right but the check digit is wrong
	ReasonPadding  = "padding"  // span starts or ends with whitespace
	ReasonBounds   = "bounds"   // span lies outside the text
)

// Finding is one entity that failed validation.
type Finding struct {
	Example int        `json:"example"` // index into the checked batch
	Span    align.Span `json:"span"`
	Text    string     `json:"text"`
	Reason  string     `json:"reason"`
}

// Report summarizes a validation pass over a batch of examples.
type Report struct {
	Examples int            `json:"examples"`
	Entities int            `json:"entities"`
	Flagged  map[string]int `json:"flagged"` // label -> findings
	Findings []Finding      `json:"findings"`

	// Pattern hits in the text that no entity covers, by detected label.
	Unlabeled        int            `json:"unlabeled"`
	UnlabeledByLabel map[string]int `json:"unlabeled_by_label"`
}

// Validator checks entity spans against the expected surface form of their
// label. It never changes examples.
type Validator struct {
	formats   map[string]*regexp.Regexp
	checksums map[string]func(string) bool
	detector  Detector
}

// NewValidator compiles the format and search patterns.
func NewValidator(formats, patterns map[string]string) (*Validator, error) {
	v := &Validator{
		formats: make(map[string]*regexp.Regexp, len(formats)),
		checksums: map[string]func(string) bool{
			"pesel":              validPESEL,
			"credit-card-number": validLuhn,
		},
	}
	for label, pattern := range formats {
		re, err := regexp.Compile(`^(?:` + pattern + `)$`)
		if err != nil {
			return nil, fmt.Errorf("invalid format for %s: %w", label, err)
		}
		v.formats[label] = re
	}

	detector, err := NewDetector(DetectorNameRegex, map[string]interface{}{"patterns": patterns})
	if err != nil {
		return nil, err
	}
	v.detector = detector
	return v, nil
}

// Close releases the underlying detector.
func (v *Validator) Close() error {
	return CloseDetector(v.detector)
}

// DefaultValidator returns a validator over FormatPatterns and PIIPatterns.
func DefaultValidator() *Validator {
	v, err := NewValidator(FormatPatterns, PIIPatterns)
	if err != nil {
		panic(err)
	}
	return v
}

// Check returns the findings for one example. Labels without a known format
// are only checked for bounds and padding.
func (v *Validator) Check(ex dataset.Example) []Finding {
	var findings []Finding
	length := len([]rune(ex.Text))
	for _, span := range ex.Entities {
		if span.Start < 0 || span.End > length || span.End <= span.Start {
			findings = append(findings, Finding{Span: span, Reason: ReasonBounds})
			continue
		}
		text := align.Text(ex.Text, span)
		if reason := v.checkValue(span.Label, text); reason != "" {
			findings = append(findings, Finding{Span: span, Text: text, Reason: reason})
		}
	}
	return findings
}

func (v *Validator) checkValue(label, text string) string {
	first, _ := firstRune(text)
	last, _ := lastRune(text)
	if unicode.IsSpace(first) || unicode.IsSpace(last) {
		return ReasonPadding
	}
	format, ok := v.formats[label]
	if !ok {
		return ""
	}
	if !format.MatchString(text) {
		return ReasonFormat
	}
	if checksum, ok := v.checksums[label]; ok && !checksum(digitsOnly(text)) {
		return ReasonChecksum
	}
	return ""
}

// CheckAll validates a batch of examples.
func (v *Validator) CheckAll(examples []dataset.Example) Report {
	report := Report{Examples: len(examples), Flagged: map[string]int{}, UnlabeledByLabel: map[string]int{}}
	for i, ex := range examples {
		report.Entities += len(ex.Entities)
		for _, f := range v.Check(ex) {
			f.Example = i
			report.Findings = append(report.Findings, f)
			report.Flagged[f.Span.Label]++
		}
		for _, hit := range v.Unlabeled(ex) {
			report.Unlabeled++
			report.UnlabeledByLabel[hit.Label]++
		}
	}
	return report
}

// Unlabeled returns the pattern matches in ex.Text that overlap none of its
// entities: likely values the template did not mark.
func (v *Validator) Unlabeled(ex dataset.Example) []Entity {
	var out []Entity
	for _, hit := range v.Detect(ex.Text) {
		covered := false
		for _, span := range ex.Entities {
			if hit.StartPos < span.End && span.Start < hit.EndPos {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, hit)
		}
	}
	return out
}

// Detect returns pattern matches in text ordered by position.
func (v *Validator) Detect(text string) []Entity {
	out, err := v.detector.Detect(context.Background(), DetectorInput{Text: text})
	if err != nil {
		return nil
	}
	return out.Entities
}

// FlaggedLabels returns labels with findings, most flagged first.
func (r Report) FlaggedLabels() []string {
	labels := make([]string, 0, len(r.Flagged))
	for label := range r.Flagged {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if r.Flagged[labels[i]] != r.Flagged[labels[j]] {
			return r.Flagged[labels[i]] > r.Flagged[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return labels
}

func validPESEL(digits string) bool {
	if len(digits) != 11 {
		return false
	}
	weights := []int{1, 3, 7, 9, 1, 3, 7, 9, 1, 3}
	sum := 0
	for i, w := range weights {
		sum += int(digits[i]-'0') * w
	}
	return (10-sum%10)%10 == int(digits[10]-'0')
}

func validLuhn(digits string) bool {
	if len(digits) < 2 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

func firstRune(s string) (rune, bool) {
	for _, r := range s {
		return r, true
	}
	return 0, false
}

func lastRune(s string) (rune, bool) {
	runes := []rune(s)
	if len(runes) == 0 {
		return 0, false
	}
	return runes[len(runes)-1], true
}
