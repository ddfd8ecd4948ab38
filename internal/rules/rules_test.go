package rules

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTables(t *testing.T) {
	rs := Default()

	require.NotEmpty(t, rs.Version)
	require.Len(t, rs.Intents, 7)
	assert.Equal(t, "greeting", rs.Intents[0].Intent)
	assert.Equal(t, "comparison", rs.Intents[6].Intent)

	assert.Equal(t, 35, rs.Scoring.IntentBase["purchase_intent"])
	assert.Equal(t, 3, rs.Scoring.IntentBase["general"])
	assert.Equal(t, 12, rs.Scoring.Urgency.Points)
	assert.Equal(t, -8, rs.Scoring.Sentiment["negative"])
	assert.Equal(t, 5, rs.Scoring.ProductPoints)
	assert.Equal(t, 20, rs.Scoring.Contact.Points)
	assert.Contains(t, rs.Orders.Confirm, "yes")
	assert.Contains(t, rs.Orders.Cancel, "no")
	assert.Contains(t, rs.Scoring.Signals[1].Keywords, "what's the price")
}

func TestContainsPhrase(t *testing.T) {
	cases := []struct {
		text   string
		phrase string
		want   bool
	}{
		{"hi there", "hi", true},
		{"is this available", "hi", false},
		{"i'd like to book", "ok", false},
		{"ok go", "ok", true},
		{"no, cancel", "no", true},
		{"i know it", "no", false},
		{"yes!", "yes", true},
		{"please go ahead.", "go ahead", true},
		{"go aheadish", "go ahead", false},
		{"ahead go ahead", "go ahead", true},
		{"", "yes", false},
		{"anything", "", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ContainsPhrase(tc.text, tc.phrase), "%q in %q", tc.phrase, tc.text)
	}
}

func TestMatchPhrasesKeepsTableOrder(t *testing.T) {
	got := MatchPhrases("need it today, urgent please", []string{"urgent", "asap", "today"})
	assert.Equal(t, []string{"urgent", "today"}, got)
	assert.True(t, AnyPhrase("can you rush", []string{"asap", "rush"}))
	assert.False(t, AnyPhrase("brush", []string{"rush"}))
}

func TestCountSubstringsIsNotDeduplicated(t *testing.T) {
	assert.Equal(t, 3, CountSubstrings("cheap discount promo", []string{"cheap", "discount", "promo", "sale"}))
	assert.Equal(t, 1, CountSubstrings("brush", []string{"rush"}))
}

func TestParseNormalizesKeywords(t *testing.T) {
	doc := []byte(`
version: test
intents:
  - intent: greeting
    keywords: ["  HELLO "]
scoring:
  intent_base: {general: 1}
orders:
  order_intents: [purchase_intent]
  confirm: [YES]
  cancel: [No]
`)
	rs, err := Parse(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, rs.Intents[0].Keywords)
	assert.Equal(t, []string{"yes"}, rs.Orders.Confirm)
	assert.Equal(t, []string{"no"}, rs.Orders.Cancel)
}

func TestParseRejectsIncompleteTables(t *testing.T) {
	_, err := Parse([]byte("version: broken\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRules))

	_, err = Parse([]byte("intents: [\n"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	rs, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Version, rs.Version)

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, defaultRulesYAML, 0o600))
	rs, err = Load(path)
	require.NoError(t, err)
	assert.Len(t, rs.Intents, 7)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
