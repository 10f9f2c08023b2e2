package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/doeshing/risklens/internal/domain"
)

// RenderResult prints a chat result in a friendly, ASCII-only format.
func RenderResult(result domain.ProcessingResult) {
	fmt.Println(result.Content)

	var notes []string
	if result.FromCache {
		notes = append(notes, "cached")
	}
	if result.Provider != "" {
		notes = append(notes, result.Provider)
	}
	notes = append(notes, fmt.Sprintf("%dms", result.ExecutionTimeMS))
	fmt.Printf("\n[%s via %s]\n", strings.Join(notes, ", "), result.ProcessingType)
}

// RenderPositions prints holdings as a table.
func RenderPositions(summary domain.PortfolioSummary) {
	if len(summary.Positions) == 0 {
		fmt.Println("Your portfolio is empty.")
		return
	}
	fmt.Printf("%-8s %12s %12s %14s\n", "SYMBOL", "SHARES", "AVG COST", "COST BASIS")
	for _, pos := range summary.Positions {
		fmt.Printf("%-8s %12s %12s %14s\n",
			pos.Symbol,
			humanize.CommafWithDigits(pos.Quantity, 4),
			"$"+humanize.CommafWithDigits(pos.AvgPrice, 2),
			"$"+humanize.CommafWithDigits(pos.CostBasis(), 2),
		)
	}
	fmt.Printf("\nTotal cost basis: $%s\n", humanize.CommafWithDigits(summary.TotalCost, 2))
}

// RenderTranscript prints past chat exchanges, newest first.
func RenderTranscript(records []domain.ChatRecord) {
	if len(records) == 0 {
		fmt.Println("No chat history recorded yet.")
		return
	}
	for _, rec := range records {
		status := "ok"
		if !rec.Success {
			status = "failed"
		}
		fmt.Printf("[%s] (%s, %s) you: %s\n", rec.Timestamp.Format("2006-01-02 15:04"), rec.ProcessingType, status, rec.Message)
		reply := rec.Reply
		if len(reply) > 200 {
			reply = reply[:200] + "..."
		}
		fmt.Printf("  risklens: %s\n", strings.ReplaceAll(reply, "\n", "\n            "))
	}
}

// RenderConfig prints the effective configuration without secrets.
func RenderConfig(cfg domain.Config) {
	fmt.Printf("Default model:    %s\n", cfg.Preferences.DefaultModel)
	if len(cfg.Preferences.FallbackModels) > 0 {
		fmt.Printf("Fallback models:  %s\n", strings.Join(cfg.Preferences.FallbackModels, ", "))
	}
	fmt.Printf("Timeout:          %ds\n", cfg.Preferences.TimeoutSeconds)
	fmt.Printf("Cache replies:    %v\n", cfg.Preferences.CacheReplies)
	fmt.Printf("Triage enabled:   %v\n", cfg.Triage.Enabled)
	fmt.Printf("Analysis backend: %s (enrich: %v)\n", cfg.Analysis.BaseURL, cfg.Analysis.Enrich)
	fmt.Printf("Database:         %s\n", cfg.Storage.DatabasePath)
	fmt.Println("\nModels:")
	for _, model := range cfg.Models {
		key := "no key required"
		if model.AuthEnvVar != "" {
			key = "key from " + model.AuthEnvVar
		}
		fmt.Printf("  - %s (%s, %s)\n", model.Name, model.ModelID, key)
	}
}

// RenderReport prints doctor checks.
func RenderReport(report domain.HealthReport) {
	for _, check := range report.Checks {
		marker := "[ok]  "
		switch check.Status {
		case domain.HealthWarn:
			marker = "[warn]"
		case domain.HealthError:
			marker = "[fail]"
		}
		fmt.Printf("%s %-22s %s\n", marker, check.Name, check.Details)
	}
	if report.Healthy() {
		fmt.Println("\nEverything looks good.")
	} else {
		fmt.Println("\nSome checks failed; see above.")
	}
}
