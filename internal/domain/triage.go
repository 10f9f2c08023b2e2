// Package domain defines core business entities and value objects for RiskLens.
//
// This file contains the triage decision model. Triage classifies each incoming
// chat message into the cheapest sufficient processing path before any I/O
// happens: a deterministic pattern match against the portfolio, or a full
// provider call. Decisions are created per message, immutable, and never
// persisted.
package domain

// TriageAction is the closed set of verbs the pattern path can execute.
type TriageAction string

const (
	ActionShow    TriageAction = "show"
	ActionShowAll TriageAction = "show_all"
	ActionAdd     TriageAction = "add"
	ActionRemove  TriageAction = "remove"
)

// SymbolAll is the sentinel symbol meaning "every holding in the portfolio".
const SymbolAll = "ALL"

// TriageMatch is the structured extraction from a pattern-matched message.
// Quantity and Price are only populated for add/remove actions.
type TriageMatch struct {
	Symbol   string
	Action   TriageAction
	Quantity float64
	Price    float64
}

// TriageDecision is the outcome of classifying one message.
//
// Invariant: ProcessingType == ProcessingRegexp implies Match is non-nil and
// Match.Symbol is non-empty. Symbol == SymbolAll only for collective
// show/list constructs with no specific ticker mentioned.
type TriageDecision struct {
	ProcessingType ProcessingType
	Confidence     float64
	Match          *TriageMatch
	Rule           string
}

// Confidence tiers reported by the triage engine. The value is a deterministic
// function of which pattern tier matched, not a model score.
const (
	ConfidenceExact      = 0.95
	ConfidenceCollective = 0.85
	ConfidenceFallback   = 0.2
)
