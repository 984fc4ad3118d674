// Package align recovers entity spans in a rendered line from the template it was
// rendered from.
//
// A template interleaves literal text with bracketed placeholders such as
// "Call [phone] now.". The rendered line has each placeholder replaced by a value
// and may have its prose re-typeset. Literal runs act as synchronization points:
// the value of a placeholder is everything between the last confirmed position in
// the rendered line and the next occurrence of the literal run that follows the
// placeholder in the template.
//
// After a value is cut, the template scan resumes right after the closing
// bracket while the rendered scan resumes after the matched literal run, so the
// run is walked a second time against the remaining rendered text. Unless it
// occurs there again the rendered line is exhausted and later placeholders on
// the line produce no spans.
//
// Alignment is a best-effort heuristic. Malformed input never produces an error;
// the scan stops and returns the spans found so far.
package align

const (
	// OpenBracket starts a placeholder in a template line.
	OpenBracket = '['
	// CloseBracket ends a placeholder in a template line.
	CloseBracket = ']'
)

// Span is a half-open range of code point offsets into a rendered line.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
}

// Canonicalizer resolves a raw placeholder label. Returning false drops the
// placeholder: its value is still consumed but no span is emitted.
type Canonicalizer interface {
	Canonicalize(raw string) (string, bool)
}

// Diagnostics counts how often each recovery path fired during alignment.
type Diagnostics struct {
	Placeholders        int `json:"placeholders"`
	Anchored            int `json:"anchored"`
	AnchorMisses        int `json:"anchor_misses"`
	TailFills           int `json:"tail_fills"`
	DroppedPlaceholders int `json:"dropped_placeholders"`
	ResyncSkips         int `json:"resync_skips"`
	Malformed           int `json:"malformed"`
	Exhausted           int `json:"exhausted"`
}

// Add accumulates other into d.
func (d *Diagnostics) Add(other Diagnostics) {
	d.Placeholders += other.Placeholders
	d.Anchored += other.Anchored
	d.AnchorMisses += other.AnchorMisses
	d.TailFills += other.TailFills
	d.DroppedPlaceholders += other.DroppedPlaceholders
	d.ResyncSkips += other.ResyncSkips
	d.Malformed += other.Malformed
	d.Exhausted += other.Exhausted
}

// Result is the output of one alignment call.
type Result struct {
	Spans       []Span      `json:"entities"`
	Diagnostics Diagnostics `json:"diagnostics"`
}

// gapOutcome says how the end of a placeholder's value was determined.
type gapOutcome int

const (
	gapAnchored   gapOutcome = iota // the following literal run was found
	gapAnchorMiss                   // the literal run never occurs; value runs to line end
	gapTail                         // no literal run follows; value runs to line end
)

// Align returns the entity spans of rendered, in left-to-right order, for the
// placeholders of template.
func Align(template, rendered string, canon Canonicalizer) []Span {
	return AlignWithDiagnostics(template, rendered, canon).Spans
}

// AlignWithDiagnostics is Align plus counters of the recovery paths taken.
func AlignWithDiagnostics(template, rendered string, canon Canonicalizer) Result {
	tpl := []rune(template)
	out := newRuneText(rendered)
	n := out.len()

	var diag Diagnostics
	var spans []Span
	i, j := 0, 0

	for i < len(tpl) {
		if tpl[i] != OpenBracket {
			if j < n && tpl[i] == out.runes[j] {
				i++
				j++
				continue
			}
			// Drift: skip a rendered rune and retry the same template rune.
			j++
			if j > n {
				diag.Exhausted++
				break
			}
			diag.ResyncSkips++
			continue
		}

		closeAt := indexRune(tpl, i+1, CloseBracket)
		if closeAt < 0 {
			diag.Malformed++
			break
		}
		diag.Placeholders++

		label, keep := canonicalize(canon, string(tpl[i+1:closeAt]))
		if !keep {
			diag.DroppedPlaceholders++
		}

		anchorEnd := indexRune(tpl, closeAt+1, OpenBracket)
		if anchorEnd < 0 {
			anchorEnd = len(tpl)
		}

		gapEnd, next, outcome := locateGap(out, j, string(tpl[closeAt+1:anchorEnd]))
		if keep {
			spans = append(spans, Span{Start: j, End: gapEnd, Label: label})
		}
		j = next
		i = closeAt + 1

		switch outcome {
		case gapAnchored:
			diag.Anchored++
		case gapAnchorMiss:
			diag.AnchorMisses++
		case gapTail:
			diag.TailFills++
		}
	}

	return Result{Spans: Dedupe(spans), Diagnostics: diag}
}

// locateGap finds where the value starting at rendered rune j ends. It returns
// the end of the value, the position to resume scanning the rendered line from,
// and how the end was found.
func locateGap(out runeText, j int, anchor string) (gapEnd, next int, outcome gapOutcome) {
	n := out.len()
	if anchor == "" {
		return n, n, gapTail
	}
	re, err := CompileAnchor(anchor)
	if err != nil {
		return n, n, gapAnchorMiss
	}
	start, end, ok := out.find(re, j)
	if !ok {
		return n, n, gapAnchorMiss
	}
	return start, end, gapAnchored
}

func canonicalize(canon Canonicalizer, raw string) (string, bool) {
	if canon == nil {
		return raw, raw != ""
	}
	return canon.Canonicalize(raw)
}

func indexRune(rs []rune, from int, target rune) int {
	for k := from; k < len(rs); k++ {
		if rs[k] == target {
			return k
		}
	}
	return -1
}

// Dedupe drops empty or inverted spans and repeated (start, end, label)
// triples, keeping the first occurrence.
func Dedupe(spans []Span) []Span {
	out := make([]Span, 0, len(spans))
	seen := make(map[Span]struct{}, len(spans))
	for _, s := range spans {
		if s.End <= s.Start {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
