// Package labels normalizes raw placeholder labels to the canonical entity names
// used in the training data.
package labels

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DefaultAliases maps historical and alternate spellings, already normalized to
// lower-case dash form, to their canonical label.
var DefaultAliases = map[string]string{
	"bank-account":       "bank-account",
	"document-number":    "document-number",
	"id-number":          "document-number",
	"school-name":        "school-name",
	"job-title":          "job-title",
	"political":          "political-view",
	"sexual-orientation": "sexual-orientation",
	"credit-card":        "credit-card-number",
	"date-of-birth":      "date-of-birth",
	"name-1":             "name",
	"surname-1":          "surname",
}

// DefaultDrop lists labels that are too noisy to keep in the corpus.
var DefaultDrop = []string{
	"model",
	"time",
	"subject",
	"genre",
	"programming-language",
	"version",
	"healthcare-professional",
}

// Canonical lists the canonical label set the corpus is scored against.
var Canonical = []string{
	"phone", "email", "pesel", "address", "city", "name", "surname",
	"bank-account", "document-number", "company", "school-name", "job-title",
	"relative", "health", "religion", "political-view", "sex", "ethnicity",
	"sexual-orientation", "secret", "username", "credit-card-number", "date",
	"date-of-birth",
}

// Canonicalizer resolves raw labels. The zero value passes every non-empty label
// through after normalization.
type Canonicalizer struct {
	aliases map[string]string
	drop    map[string]struct{}
}

// New builds a canonicalizer from an alias table and a drop list. Both are
// copied; alias keys and drop entries are normalized first so callers may use
// any separator style.
func New(aliases map[string]string, drop []string) *Canonicalizer {
	c := &Canonicalizer{
		aliases: make(map[string]string, len(aliases)),
		drop:    make(map[string]struct{}, len(drop)),
	}
	for from, to := range aliases {
		c.aliases[Normalize(from)] = Normalize(to)
	}
	for _, label := range drop {
		c.drop[Normalize(label)] = struct{}{}
	}
	return c
}

// Default returns a canonicalizer over DefaultAliases and DefaultDrop.
func Default() *Canonicalizer {
	return New(DefaultAliases, DefaultDrop)
}

// WithOverrides returns a new canonicalizer whose tables extend c's. Entries in
// aliases replace existing ones with the same key.
func (c *Canonicalizer) WithOverrides(aliases map[string]string, drop []string) *Canonicalizer {
	mergedAliases := make(map[string]string, len(c.aliases)+len(aliases))
	for k, v := range c.aliases {
		mergedAliases[k] = v
	}
	for k, v := range aliases {
		mergedAliases[k] = v
	}
	mergedDrop := make([]string, 0, len(c.drop)+len(drop))
	for k := range c.drop {
		mergedDrop = append(mergedDrop, k)
	}
	mergedDrop = append(mergedDrop, drop...)
	return New(mergedAliases, mergedDrop)
}

// Canonicalize returns the canonical label for raw. The boolean is false when
// the label is empty or on the drop list.
func (c *Canonicalizer) Canonicalize(raw string) (string, bool) {
	key := Normalize(raw)
	if key == "" {
		return "", false
	}
	if c != nil {
		if alias, ok := c.aliases[key]; ok {
			key = alias
		}
		if _, dropped := c.drop[key]; dropped {
			return "", false
		}
	}
	return key, true
}

// DropList returns the sorted drop list.
func (c *Canonicalizer) DropList() []string {
	out := make([]string, 0, len(c.drop))
	for k := range c.drop {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Normalize lower-cases raw, strips surrounding brackets and whitespace, and
// folds every run of separators (space, underscore, dash, slash) into a single
// dash. Compatibility forms such as full-width letters are folded first.
func Normalize(raw string) string {
	s := strings.TrimSpace(norm.NFKC.String(raw))
	s = strings.Trim(s, "[]")
	s = strings.ToLower(strings.TrimSpace(s))

	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		if isSeparator(r) {
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('-')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	return b.String()
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '_', '-', '/':
		return true
	}
	return false
}
