package services

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/doeshing/risklens/internal/domain"
)

func formatPositions(summary domain.PortfolioSummary) string {
	var lines []string
	for _, pos := range summary.Positions {
		lines = append(lines, fmt.Sprintf("- %s: %s shares @ $%s (cost basis $%s)",
			pos.Symbol, trimFloat(pos.Quantity), money(pos.AvgPrice), money(pos.CostBasis())))
	}
	lines = append(lines, fmt.Sprintf("Total cost basis: $%s", money(summary.TotalCost)))
	return strings.Join(lines, "\n")
}

func money(v float64) string {
	return humanize.CommafWithDigits(v, 2)
}

func trimFloat(v float64) string {
	return humanize.CommafWithDigits(v, 4)
}
