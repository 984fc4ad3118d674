package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/hannes/kiji-autolabel/pii/align"
)

// Source tags written to Example.Meta["source"].
const (
	SourceAuto      = "auto"
	SourceSynthetic = "synthetic"
)

// Example is one training record: a rendered line and its entity spans.
type Example struct {
	Text     string         `json:"text"`
	Entities []align.Span   `json:"entities"`
	Meta     map[string]any `json:"meta,omitempty"`

	// malformed counts entities that could not be decoded.
	malformed int
}

// NewExample builds an example tagged with source.
func NewExample(text string, entities []align.Span, source string) Example {
	return Example{
		Text:     text,
		Entities: entities,
		Meta:     map[string]any{"source": source},
	}
}

// Source returns the source tag from Meta, or "" when unset.
func (e Example) Source() string {
	if s, ok := e.Meta["source"].(string); ok {
		return s
	}
	return ""
}

// UnmarshalJSON accepts entities either as {"start","end","label"} objects or
// as [start, end, label] arrays. Entities without offsets, or arrays shorter
// than three elements, are skipped.
func (e *Example) UnmarshalJSON(data []byte) error {
	var raw struct {
		Text     string            `json:"text"`
		Entities []json.RawMessage `json:"entities"`
		Meta     map[string]any    `json:"meta"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	e.Text = raw.Text
	e.Meta = raw.Meta
	e.Entities = make([]align.Span, 0, len(raw.Entities))
	e.malformed = 0
	for _, msg := range raw.Entities {
		span, ok := decodeEntity(msg)
		if !ok {
			e.malformed++
			continue
		}
		e.Entities = append(e.Entities, span)
	}
	return nil
}

func decodeEntity(msg json.RawMessage) (align.Span, bool) {
	var obj struct {
		Start *float64 `json:"start"`
		End   *float64 `json:"end"`
		Label *string  `json:"label"`
	}
	if err := json.Unmarshal(msg, &obj); err == nil {
		if obj.Start == nil || obj.End == nil || obj.Label == nil {
			return align.Span{}, false
		}
		return spanOf(*obj.Start, *obj.End, *obj.Label)
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(msg, &arr); err != nil || len(arr) < 3 {
		return align.Span{}, false
	}
	var start, end *float64
	var label *string
	if json.Unmarshal(arr[0], &start) != nil || json.Unmarshal(arr[1], &end) != nil || json.Unmarshal(arr[2], &label) != nil {
		return align.Span{}, false
	}
	if start == nil || end == nil || label == nil {
		return align.Span{}, false
	}
	return spanOf(*start, *end, *label)
}

func spanOf(start, end float64, label string) (align.Span, bool) {
	if math.IsNaN(start) || math.IsNaN(end) || start != math.Trunc(start) || end != math.Trunc(end) {
		return align.Span{}, false
	}
	return align.Span{Start: int(start), End: int(end), Label: label}, true
}

// LabelCount is one row of a label frequency report.
type LabelCount struct {
	Label string
	Count int
}

// LabelStats maps a label to the number of spans carrying it.
type LabelStats map[string]int

// CountLabels tallies entity labels across examples.
func CountLabels(examples []Example) LabelStats {
	stats := make(LabelStats)
	for _, ex := range examples {
		for _, ent := range ex.Entities {
			stats[ent.Label]++
		}
	}
	return stats
}

// Sorted returns the counts ordered by frequency, most common first; ties are
// ordered by label.
func (s LabelStats) Sorted() []LabelCount {
	out := make([]LabelCount, 0, len(s))
	for label, count := range s {
		out = append(out, LabelCount{Label: label, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Total returns the number of spans counted.
func (s LabelStats) Total() int {
	total := 0
	for _, c := range s {
		total += c
	}
	return total
}

// String renders the report the way the CLI prints it.
func (s LabelStats) String() string {
	out := ""
	for _, lc := range s.Sorted() {
		out += fmt.Sprintf("  %s: %d\n", lc.Label, lc.Count)
	}
	return out
}
