// Package triage implements the rule-based chat classifier.
//
// Each incoming message is matched against an ordered pattern table; the first
// rule that matches (and yields a valid ticker) wins, producing a deterministic
// decision for the fast regexp path. Anything else degrades to the LLM path
// with low confidence. Classification is pure: no I/O after construction, no
// hidden state, identical output for identical input.
package triage

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/doeshing/risklens/internal/domain"
	"github.com/doeshing/risklens/internal/ports"
)

// Engine implements the Triage port over a compiled rule table.
type Engine struct {
	rules   []compiledRule
	version int
}

// NewEngine loads the rule table from disk (or built-in defaults when the
// file is missing) and compiles it.
func NewEngine(path string) (*Engine, error) {
	rules, err := loadRules(path)
	if err != nil {
		return nil, err
	}

	var compiled []compiledRule
	for _, rule := range rules.Rules {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledRule{re: re, rule: rule})
	}

	return &Engine{rules: compiled, version: rules.Version}, nil
}

// Version reports the loaded rule-table version.
func (e *Engine) Version() int {
	return e.version
}

// Analyze classifies one message. It never fails: malformed or ambiguous
// input degrades to the LLM path.
func (e *Engine) Analyze(text string) domain.TriageDecision {
	normalized := normalize(text)
	if normalized == "" || len(normalized) > domain.MaxMessageLength {
		return llmFallback()
	}

	for _, candidate := range e.rules {
		match, ok := matchRule(candidate, normalized)
		if !ok {
			continue
		}
		return domain.TriageDecision{
			ProcessingType: domain.ProcessingRegexp,
			Confidence:     confidenceFor(candidate.rule.Tier),
			Match:          match,
			Rule:           candidate.rule.Name,
		}
	}

	return llmFallback()
}

// normalize trims and collapses whitespace. Case is preserved so ticker
// captures can be validated as written.
func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func llmFallback() domain.TriageDecision {
	return domain.TriageDecision{
		ProcessingType: domain.ProcessingLLM,
		Confidence:     domain.ConfidenceFallback,
	}
}

func confidenceFor(tier string) float64 {
	if tier == TierCollective {
		return domain.ConfidenceCollective
	}
	return domain.ConfidenceExact
}

// matchRule applies one rule and extracts the structured match. A rule whose
// symbol capture fails ticker validation is treated as a non-match so later
// rules (and finally the LLM fallback) get their turn.
func matchRule(candidate compiledRule, text string) (*domain.TriageMatch, bool) {
	groups := candidate.re.FindStringSubmatch(text)
	if groups == nil {
		return nil, false
	}

	match := &domain.TriageMatch{Action: domain.TriageAction(candidate.rule.Action)}

	for i, name := range candidate.re.SubexpNames() {
		if i == 0 || i >= len(groups) || groups[i] == "" {
			continue
		}
		switch name {
		case "symbol":
			match.Symbol = groups[i]
		case "qty":
			match.Quantity, _ = strconv.ParseFloat(groups[i], 64)
		case "price":
			match.Price, _ = strconv.ParseFloat(groups[i], 64)
		}
	}

	if match.Action == domain.ActionShowAll {
		match.Symbol = domain.SymbolAll
		return match, true
	}

	if !ValidTicker(match.Symbol) {
		return nil, false
	}
	return match, true
}

var _ ports.Triage = (*Engine)(nil)
