// Package rules holds the versioned keyword tables that drive rule-based analysis,
// lead scoring and order keyword detection. Tables ship embedded and can be
// replaced at startup with a YAML file of the same shape.
package rules

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

var (
	// ErrInvalidRules wraps validation failures for a rule document.
	ErrInvalidRules = errors.New("rules: invalid rule set")
)

// IntentRule maps an intent to the phrases that select it.
type IntentRule struct {
	Intent   string   `yaml:"intent"`
	Keywords []string `yaml:"keywords"`
}

// SignalCategory groups buying-signal keywords under a category name.
type SignalCategory struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// Weighted is a keyword table where each match adds Points.
type Weighted struct {
	Name     string   `yaml:"name"`
	Points   int      `yaml:"points"`
	Keywords []string `yaml:"keywords"`
}

// SentimentWords lists the positive and negative vocabulary.
type SentimentWords struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
}

// ContextPoints are the engagement bonuses applied from conversation history.
type ContextPoints struct {
	EngagedAfter           int `yaml:"engaged_after"`
	EngagedPoints          int `yaml:"engaged_points"`
	VeryEngagedAfter       int `yaml:"very_engaged_after"`
	VeryEngagedPoints      int `yaml:"very_engaged_points"`
	PreviousPurchasePoints int `yaml:"previous_purchase_points"`
}

// Scoring is the additive lead-score table.
type Scoring struct {
	IntentBase     map[string]int `yaml:"intent_base"`
	Signals        []Weighted     `yaml:"signals"`
	Urgency        Weighted       `yaml:"urgency"`
	DecisionStages []Weighted     `yaml:"decision_stages"`
	Sentiment      map[string]int `yaml:"sentiment"`
	Context        ContextPoints  `yaml:"context"`
	ProductPoints  int            `yaml:"product_points"`
	Qualification  Weighted       `yaml:"qualification"`
	Contact        Weighted       `yaml:"contact"`
	OrderKeywords  Weighted       `yaml:"order_keywords"`
}

// OrderRules drive order-intent detection and confirmation handling.
type OrderRules struct {
	OrderIntents  []string `yaml:"order_intents"`
	StrongSignals []string `yaml:"strong_signals"`
	Confirm       []string `yaml:"confirm"`
	Cancel        []string `yaml:"cancel"`
}

// RuleSet is one version of every keyword table.
type RuleSet struct {
	Version       string           `yaml:"version"`
	Intents       []IntentRule     `yaml:"intents"`
	Sentiment     SentimentWords   `yaml:"sentiment"`
	Urgency       []string         `yaml:"urgency"`
	BuyingSignals []SignalCategory `yaml:"buying_signals"`
	Specificity   []string         `yaml:"specificity"`
	Scoring       Scoring          `yaml:"scoring"`
	Orders        OrderRules       `yaml:"orders"`
}

// Default returns the embedded rule set. It panics if the embedded document is
// malformed, which can only happen through a broken build.
func Default() *RuleSet {
	rs, err := Parse(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("rules: embedded defaults invalid: %v", err))
	}
	return rs
}

// Load reads a rule set from a YAML file. An empty path returns the defaults.
func Load(path string) (*RuleSet, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rules: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML rule document. Keywords are lower-cased.
func Parse(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("rules: parse: %w", err)
	}
	rs.normalize()
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Validate checks the tables the analyzer and scorer cannot work without.
func (rs *RuleSet) Validate() error {
	var problems []error
	if len(rs.Intents) == 0 {
		problems = append(problems, errors.New("intents table is empty"))
	}
	for i, rule := range rs.Intents {
		if rule.Intent == "" || len(rule.Keywords) == 0 {
			problems = append(problems, fmt.Errorf("intent rule %d is incomplete", i))
		}
	}
	if len(rs.Scoring.IntentBase) == 0 {
		problems = append(problems, errors.New("scoring.intent_base is empty"))
	}
	if rs.Scoring.ProductPoints < 0 {
		problems = append(problems, errors.New("scoring.product_points cannot be negative"))
	}
	for _, w := range rs.Scoring.Signals {
		if w.Points < 0 {
			problems = append(problems, fmt.Errorf("signal table %q has negative points", w.Name))
		}
	}
	if len(rs.Orders.Confirm) == 0 || len(rs.Orders.Cancel) == 0 {
		problems = append(problems, errors.New("orders.confirm and orders.cancel are required"))
	}
	if len(rs.Orders.OrderIntents) == 0 {
		problems = append(problems, errors.New("orders.order_intents is empty"))
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidRules, errors.Join(problems...))
}

func (rs *RuleSet) normalize() {
	for i := range rs.Intents {
		rs.Intents[i].Keywords = lowerAll(rs.Intents[i].Keywords)
	}
	rs.Sentiment.Positive = lowerAll(rs.Sentiment.Positive)
	rs.Sentiment.Negative = lowerAll(rs.Sentiment.Negative)
	rs.Urgency = lowerAll(rs.Urgency)
	for i := range rs.BuyingSignals {
		rs.BuyingSignals[i].Keywords = lowerAll(rs.BuyingSignals[i].Keywords)
	}
	rs.Specificity = lowerAll(rs.Specificity)

	s := &rs.Scoring
	for i := range s.Signals {
		s.Signals[i].Keywords = lowerAll(s.Signals[i].Keywords)
	}
	s.Urgency.Keywords = lowerAll(s.Urgency.Keywords)
	for i := range s.DecisionStages {
		s.DecisionStages[i].Keywords = lowerAll(s.DecisionStages[i].Keywords)
	}
	s.Qualification.Keywords = lowerAll(s.Qualification.Keywords)
	s.Contact.Keywords = lowerAll(s.Contact.Keywords)
	s.OrderKeywords.Keywords = lowerAll(s.OrderKeywords.Keywords)

	rs.Orders.StrongSignals = lowerAll(rs.Orders.StrongSignals)
	rs.Orders.Confirm = lowerAll(rs.Orders.Confirm)
	rs.Orders.Cancel = lowerAll(rs.Orders.Cancel)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// CountSubstrings returns how many keywords occur anywhere in lower (already lower-cased).
func CountSubstrings(lower string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			n++
		}
	}
	return n
}

// ContainsPhrase reports whether phrase occurs in lower as whole words, so "hi"
// does not match "this" and "ok" does not match "book".
func ContainsPhrase(lower, phrase string) bool {
	if phrase == "" {
		return false
	}
	start := 0
	for {
		idx := strings.Index(lower[start:], phrase)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(phrase)
		if boundaryBefore(lower, idx) && boundaryAfter(lower, end) {
			return true
		}
		start = idx + 1
		if start >= len(lower) {
			return false
		}
	}
}

// MatchPhrases returns the phrases found in lower as whole words, in table order.
func MatchPhrases(lower string, phrases []string) []string {
	var out []string
	for _, p := range phrases {
		if ContainsPhrase(lower, p) {
			out = append(out, p)
		}
	}
	return out
}

// AnyPhrase reports whether any phrase occurs in lower as whole words.
func AnyPhrase(lower string, phrases []string) bool {
	for _, p := range phrases {
		if ContainsPhrase(lower, p) {
			return true
		}
	}
	return false
}

func boundaryBefore(s string, idx int) bool {
	if idx == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:idx])
	return !isWordRune(r)
}

func boundaryAfter(s string, end int) bool {
	if end >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[end:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
