package ai

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/doeshing/risklens/internal/domain"
)

// FormatPortfolio renders holdings as a compact plain-text table suitable for
// prompt context and terminal output. Empty portfolios render as "".
func FormatPortfolio(summary domain.PortfolioSummary) string {
	if len(summary.Positions) == 0 {
		return ""
	}
	var lines []string
	for _, pos := range summary.Positions {
		lines = append(lines, fmt.Sprintf("- %s: %s shares @ $%s (cost basis $%s)",
			pos.Symbol,
			humanize.CommafWithDigits(pos.Quantity, 2),
			humanize.CommafWithDigits(pos.AvgPrice, 2),
			humanize.CommafWithDigits(pos.CostBasis(), 2),
		))
	}
	lines = append(lines, fmt.Sprintf("Total cost basis: $%s", humanize.CommafWithDigits(summary.TotalCost, 2)))
	return strings.Join(lines, "\n")
}

// FormatAnalysis renders backend risk metrics for prompt context. A nil
// analysis renders as "".
func FormatAnalysis(analysis *domain.RiskAnalysis) string {
	if analysis == nil {
		return ""
	}
	return strings.Join([]string{
		fmt.Sprintf("- Total value: $%s", humanize.CommafWithDigits(analysis.TotalValue, 2)),
		fmt.Sprintf("- Daily VaR (95%%): $%s", humanize.CommafWithDigits(analysis.DailyVaR, 2)),
		fmt.Sprintf("- Annualized volatility: %.1f%%", analysis.AnnualizedVol*100),
		fmt.Sprintf("- Sharpe ratio: %.2f", analysis.SharpeRatio),
		fmt.Sprintf("- Beta: %.2f", analysis.Beta),
		fmt.Sprintf("- Risk level: %s", analysis.RiskLevel),
	}, "\n")
}
