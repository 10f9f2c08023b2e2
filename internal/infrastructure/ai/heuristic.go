package ai

import (
	"context"
	"strings"

	"github.com/doeshing/risklens/internal/domain"
	"github.com/doeshing/risklens/internal/ports"
)

// heuristicProvider answers locally when no API key is configured. It cannot
// reason, but it can describe the portfolio data it was handed so the chat
// loop stays usable offline.
type heuristicProvider struct {
	model domain.ModelDefinition
}

func newHeuristicProvider(model domain.ModelDefinition) ports.Provider {
	return &heuristicProvider{model: model}
}

func (p *heuristicProvider) Name() string {
	return "heuristic"
}

func (p *heuristicProvider) Model() domain.ModelDefinition {
	return p.model
}

func (p *heuristicProvider) Generate(_ context.Context, req ports.ProviderRequest) (ports.ProviderResponse, error) {
	return ports.ProviderResponse{
		Reply:    heuristicReply(req),
		Provider: "heuristic",
	}, nil
}

func heuristicReply(req ports.ProviderRequest) string {
	var b strings.Builder
	b.WriteString("No AI provider is configured, so here is what I can tell you from local data.\n")
	if portfolio := FormatPortfolio(req.Portfolio); portfolio != "" {
		b.WriteString("\nYour portfolio:\n")
		b.WriteString(portfolio)
		b.WriteString("\n")
	} else {
		b.WriteString("\nYour portfolio is empty. Try \"add 10 AAPL at 150\".\n")
	}
	if analysis := FormatAnalysis(req.Analysis); analysis != "" {
		b.WriteString("\nRisk analysis:\n")
		b.WriteString(analysis)
		b.WriteString("\n")
	}
	b.WriteString("\nSet an API key (see `risklens config path`) to enable full answers.")
	return b.String()
}
