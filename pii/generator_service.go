package pii

import (
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/hannes/kiji-autolabel/pii/align"
	"github.com/hannes/kiji-autolabel/pii/dataset"
	piiGenerators "github.com/hannes/kiji-autolabel/pii/generators"
)

// GeneratorService renders templates with fake entity values. It is not safe
// for concurrent use.
type GeneratorService struct {
	rng        *rand.Rand
	generators map[string]func(*rand.Rand, string) string
}

// NewGeneratorService creates a new generator service
func NewGeneratorService() *GeneratorService {
	return NewGeneratorServiceWithSeed(time.Now().UnixNano())
}

// NewGeneratorServiceWithSeed creates a generator with a fixed seed for deterministic output (testing)
func NewGeneratorServiceWithSeed(seed int64) *GeneratorService {
	// #nosec G404 - Using math/rand for deterministic PII generation, not security-critical
	return &GeneratorService{
		rng:        rand.New(rand.NewSource(seed)),
		generators: defaultGenerators(),
	}
}

func defaultGenerators() map[string]func(*rand.Rand, string) string {
	return map[string]func(*rand.Rand, string) string{
		"name":               piiGenerators.FirstNameGenerator,
		"surname":            piiGenerators.SurnameGenerator,
		"city":               piiGenerators.CityGenerator,
		"address":            piiGenerators.AddressGenerator,
		"email":              piiGenerators.EmailGenerator,
		"phone":              piiGenerators.PhoneGenerator,
		"pesel":              piiGenerators.PeselGenerator,
		"bank-account":       piiGenerators.BankAccountGenerator,
		"credit-card-number": piiGenerators.CreditCardGenerator,
		"document-number":    piiGenerators.DocumentNumberGenerator,
		"date":               piiGenerators.DateGenerator,
		"date-of-birth":      piiGenerators.DateOfBirthGenerator,
		"username":           piiGenerators.UsernameGenerator,
		"secret":             piiGenerators.SecretGenerator,
		"company":            piiGenerators.CompanyGenerator,
		"school-name":        piiGenerators.SchoolNameGenerator,
		"job-title":          piiGenerators.JobTitleGenerator,
		"relative":           piiGenerators.RelativeGenerator,
		"health":             piiGenerators.HealthGenerator,
		"religion":           piiGenerators.ReligionGenerator,
		"political-view":     piiGenerators.PoliticalViewGenerator,
		"sex":                piiGenerators.SexGenerator,
		"ethnicity":          piiGenerators.EthnicityGenerator,
		"sexual-orientation": piiGenerators.SexualOrientationGenerator,
	}
}

// GenerateReplacement generates a replacement for the given canonical label and original text
func (s *GeneratorService) GenerateReplacement(label, originalText string) string {
	if generator, exists := s.generators[label]; exists {
		return generator(s.rng, originalText)
	}
	return piiGenerators.GenericGenerator(s.rng, originalText)
}

// HasGenerator reports whether label has a dedicated generator.
func (s *GeneratorService) HasGenerator(label string) bool {
	_, ok := s.generators[label]
	return ok
}

// Render replaces every placeholder of template with a generated value for its
// canonical label and records the gold span of each value. Placeholders whose
// label is dropped get a generic value and no span. An unterminated
// placeholder is copied literally. The boolean is false when the render
// produced no spans.
func (s *GeneratorService) Render(template string, canon align.Canonicalizer) (dataset.Example, bool) {
	var out strings.Builder
	var spans []align.Span
	pos := 0 // rune offset into out

	rest := template
	for {
		open := strings.IndexRune(rest, align.OpenBracket)
		if open < 0 {
			break
		}
		closeRel := strings.IndexRune(rest[open+1:], align.CloseBracket)
		if closeRel < 0 {
			break
		}
		closeAt := open + 1 + closeRel

		literal := rest[:open]
		out.WriteString(literal)
		pos += len([]rune(literal))

		raw := rest[open+1 : closeAt]
		label, ok := canonicalLabel(raw, canon)
		var value string
		if ok {
			value = s.GenerateReplacement(label, "")
		} else {
			value = piiGenerators.GenericGenerator(s.rng, raw)
		}
		out.WriteString(value)
		n := len([]rune(value))
		if ok && n > 0 {
			spans = append(spans, align.Span{Start: pos, End: pos + n, Label: label})
		}
		pos += n
		rest = rest[closeAt+1:]
	}
	out.WriteString(rest)

	if len(spans) == 0 {
		return dataset.Example{}, false
	}
	return dataset.NewExample(out.String(), spans, dataset.SourceSynthetic), true
}

func canonicalLabel(raw string, canon align.Canonicalizer) (string, bool) {
	if canon == nil {
		label := strings.TrimSpace(raw)
		return label, label != ""
	}
	return canon.Canonicalize(raw)
}

// Resample returns a copy of ex whose entity values are replaced with freshly
// generated ones, with every offset shifted to the new text. Entities that
// overlap an earlier entity are dropped.
func (s *GeneratorService) Resample(ex dataset.Example) dataset.Example {
	entities := make([]align.Span, len(ex.Entities))
	copy(entities, ex.Entities)
	sort.SliceStable(entities, func(i, j int) bool { return entities[i].Start < entities[j].Start })

	runes := []rune(ex.Text)
	var out strings.Builder
	var spans []align.Span
	cursor, pos := 0, 0

	for _, ent := range entities {
		if ent.Start < cursor || ent.End > len(runes) || ent.End <= ent.Start {
			continue
		}
		between := string(runes[cursor:ent.Start])
		out.WriteString(between)
		pos += ent.Start - cursor

		value := s.GenerateReplacement(ent.Label, string(runes[ent.Start:ent.End]))
		n := len([]rune(value))
		out.WriteString(value)
		spans = append(spans, align.Span{Start: pos, End: pos + n, Label: ent.Label})
		pos += n
		cursor = ent.End
	}
	out.WriteString(string(runes[cursor:]))

	resampled := dataset.Example{Text: out.String(), Entities: spans}
	if len(ex.Meta) > 0 {
		resampled.Meta = make(map[string]any, len(ex.Meta)+1)
		for k, v := range ex.Meta {
			resampled.Meta[k] = v
		}
	} else {
		resampled.Meta = map[string]any{"source": dataset.SourceSynthetic}
	}
	resampled.Meta["resampled"] = true
	return resampled
}
