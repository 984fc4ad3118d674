//go:build integration

package hf

import (
	"os"
	"testing"

	"github.com/hannes/kiji-autolabel/pii/align"
	"github.com/hannes/kiji-autolabel/pii/dataset"
	"github.com/hannes/kiji-autolabel/pii/tokencheck"
)

var testTokenizerPath = getEnvOrDefault("TOKENIZER_PATH", "../../../model/tokenizer.json")

func getEnvOrDefault(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func loadTestTokenizer(t *testing.T) *Tokenizer {
	t.Helper()
	if _, err := os.Stat(testTokenizerPath); os.IsNotExist(err) {
		t.Skipf("Skipping: tokenizer file not found at %s", testTokenizerPath)
	}
	tk, err := Load(testTokenizerPath)
	if err != nil {
		t.Fatalf("Failed to load tokenizer: %v", err)
	}
	t.Cleanup(func() { _ = tk.Close() })
	return tk
}

func TestEncodeOffsetsWithinText(t *testing.T) {
	tk := loadTestTokenizer(t)
	text := "Nazywam się Łukasz Wróbel, PESEL 44051401359."

	tokens, err := tk.Encode(text)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(tokens) == 0 {
		t.Fatal("Expected tokens")
	}
	for _, tok := range tokens {
		if tok.Start < 0 || tok.End > len(text) || tok.End <= tok.Start {
			t.Errorf("Invalid token offsets %+v", tok)
		}
	}
}

func TestCheckWithRealTokenizer(t *testing.T) {
	tk := loadTestTokenizer(t)
	ex := dataset.NewExample("Mieszkam w Krakowie.", []align.Span{{Start: 11, End: 19, Label: "city"}}, dataset.SourceAuto)

	report, err := tokencheck.Check(ex, tk)
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if report.Entities != 1 {
		t.Errorf("Expected 1 entity, got %d", report.Entities)
	}
}
