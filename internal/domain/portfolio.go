package domain

import "time"

// SessionRef scopes portfolio storage to one user account or guest session.
type SessionRef struct {
	ID    string
	Guest bool
}

// Position is one holding in a session's portfolio.
// AvgPrice is the cost basis, averaged across repeated adds.
type Position struct {
	Symbol    string    `json:"symbol"`
	Quantity  float64   `json:"quantity"`
	AvgPrice  float64   `json:"avg_price"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CostBasis returns quantity times average price.
func (p Position) CostBasis() float64 {
	return p.Quantity * p.AvgPrice
}

// PortfolioSummary aggregates a session's holdings for display.
type PortfolioSummary struct {
	Positions []Position
	TotalCost float64
}

// Summarize builds a PortfolioSummary from raw positions.
func Summarize(positions []Position) PortfolioSummary {
	summary := PortfolioSummary{Positions: positions}
	for _, pos := range positions {
		summary.TotalCost += pos.CostBasis()
	}
	return summary
}
