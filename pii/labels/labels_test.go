package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	canon := Default()

	testCases := []struct {
		name     string
		raw      string
		expected string
		keep     bool
	}{
		{name: "plain", raw: "phone", expected: "phone", keep: true},
		{name: "upper case and spaces", raw: "  PHONE ", expected: "phone", keep: true},
		{name: "underscore separator", raw: "bank_account", expected: "bank-account", keep: true},
		{name: "double underscore", raw: "school__name", expected: "school-name", keep: true},
		{name: "slash separator", raw: "job/title", expected: "job-title", keep: true},
		{name: "space separator", raw: "date of birth", expected: "date-of-birth", keep: true},
		{name: "alias id number", raw: "id_number", expected: "document-number", keep: true},
		{name: "alias credit card", raw: "credit-card", expected: "credit-card-number", keep: true},
		{name: "alias political", raw: "political", expected: "political-view", keep: true},
		{name: "alias numbered name", raw: "name-1", expected: "name", keep: true},
		{name: "alias numbered surname", raw: "surname_1", expected: "surname", keep: true},
		{name: "brackets stripped", raw: "[email]", expected: "email", keep: true},
		{name: "unknown passes through", raw: "Favourite_Color", expected: "favourite-color", keep: true},
		{name: "dropped model", raw: "model", keep: false},
		{name: "dropped after normalization", raw: "Programming_Language", keep: false},
		{name: "dropped healthcare professional", raw: "healthcare professional", keep: false},
		{name: "empty", raw: "", keep: false},
		{name: "only separators", raw: " _-/ ", keep: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := canon.Canonicalize(tc.raw)
			assert.Equal(t, tc.keep, ok)
			if tc.keep {
				assert.Equal(t, tc.expected, got)
			}
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	canon := Default()
	inputs := append([]string{"id_number", "credit_card", "Name-1", "political"}, Canonical...)
	for _, raw := range inputs {
		first, ok := canon.Canonicalize(raw)
		if !ok {
			t.Fatalf("expected %q to be kept", raw)
		}
		second, ok := canon.Canonicalize(first)
		assert.True(t, ok, "canonical label %q must be kept", first)
		assert.Equal(t, first, second, "canonicalizing %q twice", raw)
	}
}

func TestCanonicalSetIsStable(t *testing.T) {
	canon := Default()
	for _, label := range Canonical {
		got, ok := canon.Canonicalize(label)
		assert.True(t, ok)
		assert.Equal(t, label, got)
	}
}

func TestWithOverrides(t *testing.T) {
	base := Default()
	canon := base.WithOverrides(map[string]string{"tel": "phone"}, []string{"Sex"})

	got, ok := canon.Canonicalize("TEL")
	assert.True(t, ok)
	assert.Equal(t, "phone", got)

	_, ok = canon.Canonicalize("sex")
	assert.False(t, ok)

	// the base canonicalizer is untouched
	_, ok = base.Canonicalize("sex")
	assert.True(t, ok)
	got, _ = base.Canonicalize("tel")
	assert.Equal(t, "tel", got)
}

func TestNilCanonicalizerNormalizes(t *testing.T) {
	var canon *Canonicalizer
	got, ok := canon.Canonicalize("Bank_Account")
	assert.True(t, ok)
	assert.Equal(t, "bank-account", got)
}

func TestDropList(t *testing.T) {
	assert.Equal(t, []string{
		"genre", "healthcare-professional", "model", "programming-language",
		"subject", "time", "version",
	}, Default().DropList())
}

func TestNormalizeFoldsCompatibilityForms(t *testing.T) {
	assert.Equal(t, "email", Normalize("\uff25\uff2d\uff21\uff29\uff2c"))
	assert.Equal(t, "miasto", Normalize("miasto\u00a0"))
	assert.Equal(t, "ulica-nr", Normalize("ulica\u00a0nr"))
}
