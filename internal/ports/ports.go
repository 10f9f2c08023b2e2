// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the application core and external
// adapters (infrastructure). Following the Ports and Adapters (Hexagonal) pattern,
// these interfaces allow the application to remain independent of specific
// implementations like databases, HTTP clients, or CLI frameworks.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., Provider, PortfolioStore)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"

	"github.com/doeshing/risklens/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.risklens/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// Triage classifies a raw chat message into the cheapest sufficient
// processing path. Implementations must be pure: no I/O, no hidden state,
// identical output for identical input.
type Triage interface {
	Analyze(text string) domain.TriageDecision
}

// PortfolioStore owns per-session holdings. Every operation is scoped
// strictly to the given session ref; cross-session reads are impossible by
// construction.
type PortfolioStore interface {
	Positions(ctx context.Context, ref domain.SessionRef) ([]domain.Position, error)
	Position(ctx context.Context, ref domain.SessionRef, symbol string) (domain.Position, error)
	Add(ctx context.Context, ref domain.SessionRef, symbol string, quantity, price float64) (domain.Position, error)
	Remove(ctx context.Context, ref domain.SessionRef, symbol string, quantity float64) error
}

// ProviderFactory builds AI provider instances based on model definitions.
type ProviderFactory interface {
	ForModel(domain.ModelDefinition) (Provider, error)
}

// Provider defines the chat-completion capability for the LLM path.
// Each provider implementation wraps a specific AI service API.
type Provider interface {
	Name() string
	Model() domain.ModelDefinition
	Generate(context.Context, ProviderRequest) (ProviderResponse, error)
}

// ProviderRequest contains all data needed to generate an assistant reply.
type ProviderRequest struct {
	Prompt    string
	Portfolio domain.PortfolioSummary
	Analysis  *domain.RiskAnalysis
	Model     domain.ModelDefinition
	Debug     bool
}

// ProviderResponse contains the assistant reply text.
type ProviderResponse struct {
	Reply    string
	Provider string
}

// AnalysisClient talks to the external portfolio-analysis backend.
type AnalysisClient interface {
	Analyze(ctx context.Context, assets []domain.AnalysisAsset) (domain.RiskAnalysis, error)
	Health(ctx context.Context) error
}

// ChatLogStore persists processed chat exchanges. Logging is best-effort;
// callers swallow failures.
type ChatLogStore interface {
	Save(record domain.ChatRecord) error
	Records(sessionID string, limit int, search string) ([]domain.ChatRecord, error)
	Clear(sessionID string) error
}

// ReplyCache stores provider replies keyed by a content hash.
type ReplyCache interface {
	Get(key string) (domain.CacheEntry, bool, error)
	Set(entry domain.CacheEntry) error
	Clear() error
}

// GuestRegistry tracks ephemeral guest sessions.
type GuestRegistry interface {
	Create() string
	Touch(id string) bool
	Active() int
}

// Limiter is the injected, session-scoped message budget.
type Limiter interface {
	Allow(sessionID string) bool
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
