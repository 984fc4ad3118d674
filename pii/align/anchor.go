package align

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// whitespaceRun matches one or more whitespace characters in rendered text,
// including the Unicode space separators that re-typeset prose tends to carry
// (no-break space, thin space).
const whitespaceRun = `[\s\v\p{Z}\x{85}]+`

// CompileAnchor turns a literal run from a template into a pattern that matches
// the same text with any run of whitespace standing in for any other run of
// whitespace. Everything else is matched literally.
func CompileAnchor(anchor string) (*regexp.Regexp, error) {
	var pattern, literal strings.Builder
	flush := func() {
		if literal.Len() > 0 {
			pattern.WriteString(regexp.QuoteMeta(literal.String()))
			literal.Reset()
		}
	}

	inSpace := false
	for _, r := range anchor {
		if unicode.IsSpace(r) {
			if !inSpace {
				flush()
				pattern.WriteString(whitespaceRun)
				inSpace = true
			}
			continue
		}
		inSpace = false
		literal.WriteRune(r)
	}
	flush()

	return regexp.Compile(pattern.String())
}

// runeText indexes a string by code point while keeping the byte offsets needed
// to run regular expressions over its suffixes.
type runeText struct {
	s       string
	runes   []rune
	offsets []int // byte offset of each rune, plus len(s) as a sentinel
}

func newRuneText(s string) runeText {
	rt := runeText{s: s, runes: make([]rune, 0, len(s)), offsets: make([]int, 0, len(s)+1)}
	for b, r := range s {
		rt.runes = append(rt.runes, r)
		rt.offsets = append(rt.offsets, b)
	}
	rt.offsets = append(rt.offsets, len(s))
	return rt
}

func (rt runeText) len() int {
	return len(rt.runes)
}

// find searches for re in the suffix starting at rune index from and returns the
// match as absolute rune offsets.
func (rt runeText) find(re *regexp.Regexp, from int) (start, end int, ok bool) {
	if from > rt.len() {
		return 0, 0, false
	}
	base := rt.offsets[from]
	loc := re.FindStringIndex(rt.s[base:])
	if loc == nil {
		return 0, 0, false
	}
	return rt.runeIndex(base + loc[0]), rt.runeIndex(base + loc[1]), true
}

func (rt runeText) runeIndex(byteOffset int) int {
	return sort.SearchInts(rt.offsets, byteOffset)
}

// Text returns the substring of rendered covered by span, interpreting the span
// as code point offsets. Out-of-range spans are clamped.
func Text(rendered string, span Span) string {
	start, end := ByteOffsets(rendered, span)
	return rendered[start:end]
}

// ByteOffsets converts the code point offsets of span into byte offsets into
// rendered. Out-of-range offsets are clamped to the string bounds.
func ByteOffsets(rendered string, span Span) (int, int) {
	start, end := -1, -1
	idx := 0
	for b := range rendered {
		if idx == span.Start {
			start = b
		}
		if idx == span.End {
			end = b
			break
		}
		idx++
	}
	if start < 0 {
		start = len(rendered)
	}
	if end < 0 {
		end = len(rendered)
	}
	if span.Start <= 0 {
		start = 0
	}
	if end < start {
		end = start
	}
	return start, end
}
