package pii

import (
	"context"
	"testing"
)

func newTestDetector(t *testing.T, patterns map[string]string) *RegexDetector {
	t.Helper()
	detector, err := NewRegexDetector(patterns)
	if err != nil {
		t.Fatalf("NewRegexDetector failed: %v", err)
	}
	return detector
}

func TestRegexDetector_GetName(t *testing.T) {
	detector := newTestDetector(t, map[string]string{"pesel": `\b\d{11}\b`})
	if detector.GetName() != "regex_detector" {
		t.Errorf("Expected name 'regex_detector', got '%s'", detector.GetName())
	}
}

func TestRegexDetector_InvalidPattern(t *testing.T) {
	if _, err := NewRegexDetector(map[string]string{"bad": `(`}); err == nil {
		t.Error("Expected error for invalid pattern")
	}
}

func TestRegexDetector_Detect_NoMatches(t *testing.T) {
	detector := newTestDetector(t, map[string]string{"pesel": `\b\d{11}\b`})
	input := DetectorInput{Text: "Ten tekst nie zawiera numeru PESEL."}

	output, err := detector.Detect(context.Background(), input)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if len(output.Entities) != 0 {
		t.Errorf("Expected 0 entities, got %d", len(output.Entities))
	}
	if output.Text != input.Text {
		t.Errorf("Expected text to remain unchanged, got '%s'", output.Text)
	}
}

func TestRegexDetector_Detect_RuneOffsets(t *testing.T) {
	detector := newTestDetector(t, map[string]string{"pesel": `\b\d{11}\b`})
	input := DetectorInput{Text: "Mój PESEL to 44051401359, żona: 02070803628."}

	output, err := detector.Detect(context.Background(), input)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(output.Entities) != 2 {
		t.Fatalf("Expected 2 entities, got %d", len(output.Entities))
	}

	entity1 := output.Entities[0]
	if entity1.Text != "44051401359" {
		t.Errorf("Expected first entity text '44051401359', got '%s'", entity1.Text)
	}
	if entity1.StartPos != 13 || entity1.EndPos != 24 {
		t.Errorf("Expected positions 13-24, got %d-%d", entity1.StartPos, entity1.EndPos)
	}
	if entity1.Confidence != 1.0 {
		t.Errorf("Expected confidence 1.0, got %f", entity1.Confidence)
	}

	entity2 := output.Entities[1]
	if entity2.StartPos != 32 || entity2.EndPos != 43 {
		t.Errorf("Expected positions 32-43, got %d-%d", entity2.StartPos, entity2.EndPos)
	}
}

func TestRegexDetector_Detect_DefaultPatterns(t *testing.T) {
	detector := newTestDetector(t, PIIPatterns)
	input := DetectorInput{Text: "Pisz na jan.nowak@example.com lub dzwoń +48 600 100 200, urodzony 12 marca 1990."}

	output, err := detector.Detect(context.Background(), input)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	labels := make(map[string]string)
	for _, entity := range output.Entities {
		labels[entity.Label] = entity.Text
	}

	expected := map[string]string{
		"email": "jan.nowak@example.com",
		"phone": "+48 600 100 200",
		"date":  "12 marca 1990",
	}
	for label, text := range expected {
		if labels[label] != text {
			t.Errorf("Expected %s %q, got %q", label, text, labels[label])
		}
	}

	for i := 1; i < len(output.Entities); i++ {
		if output.Entities[i].StartPos < output.Entities[i-1].StartPos {
			t.Errorf("Entities not ordered by position: %+v", output.Entities)
		}
	}
}

func TestRegexDetector_Detect_CanceledContext(t *testing.T) {
	detector := newTestDetector(t, PIIPatterns)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := detector.Detect(ctx, DetectorInput{Text: "x"}); err == nil {
		t.Error("Expected error for canceled context")
	}
}

func TestNewDetector(t *testing.T) {
	detector, err := NewDetector(DetectorNameRegex, map[string]interface{}{})
	if err != nil {
		t.Fatalf("NewDetector failed: %v", err)
	}
	defer CloseDetector(detector)

	if detector.GetName() != DetectorNameRegex {
		t.Errorf("Expected regex detector, got %s", detector.GetName())
	}

	if _, err := NewDetector("missing", nil); err == nil {
		t.Error("Expected error for unknown detector")
	}
}
