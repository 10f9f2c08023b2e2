package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/doeshing/risklens/internal/domain"
	"github.com/doeshing/risklens/internal/pkg/logger"
	"github.com/doeshing/risklens/internal/ports"
)

func baseConfig() domain.Config {
	return domain.Config{
		Preferences: domain.Preferences{DefaultModel: "stub", TimeoutSeconds: 5},
		Models:      []domain.ModelDefinition{{Name: "stub", ModelID: "stub", Endpoint: "http://stub"}},
		Triage:      domain.TriageSettings{Enabled: true},
	}
}

func userSession() domain.SessionContext {
	return domain.SessionContext{UserID: "user-1"}
}

func newService(cfg domain.Config, triage ports.Triage, store *stubPortfolio) *ChatService {
	return &ChatService{
		ConfigProvider:  stubConfigProvider{cfg: cfg},
		Triage:          triage,
		Portfolio:       store,
		ProviderFactory: stubProviderFactory{provider: &stubProvider{reply: "provider reply"}},
		Logger:          logger.New(false),
	}
}

func TestProcessShowAllPattern(t *testing.T) {
	store := newStubPortfolio()
	store.add("user-1", "AAPL", 10, 150)
	svc := newService(baseConfig(), stubTriage{decision: showAllDecision()}, store)

	result, err := svc.Process(domain.ChatRequest{
		Context: context.Background(),
		Text:    "show my positions",
		Session: userSession(),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Success || result.ProcessingType != domain.ProcessingRegexp {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !strings.Contains(result.Content, "AAPL") {
		t.Errorf("reply should list holdings: %q", result.Content)
	}
	if result.ExecutionTimeMS < 0 {
		t.Error("execution time not stamped")
	}
}

func TestProcessShowUnknownSymbolFailsSafely(t *testing.T) {
	store := newStubPortfolio()
	svc := newService(baseConfig(), stubTriage{decision: showDecision("TSLA")}, store)

	result, err := svc.Process(domain.ChatRequest{
		Context: context.Background(),
		Text:    "what is my TSLA position",
		Session: userSession(),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(result.Content, "TSLA") {
		t.Errorf("reply should name the symbol: %q", result.Content)
	}
	if strings.Contains(result.Content, "sql") || strings.Contains(result.Content, "error") {
		t.Errorf("raw error text leaked: %q", result.Content)
	}
}

func TestProcessAddPattern(t *testing.T) {
	store := newStubPortfolio()
	svc := newService(baseConfig(), stubTriage{decision: addDecision("AAPL", 100, 150)}, store)

	result, err := svc.Process(domain.ChatRequest{
		Context: context.Background(),
		Text:    "add 100 AAPL at 150",
		Session: userSession(),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success: %+v", result)
	}
	if !strings.Contains(result.Content, "100") || !strings.Contains(result.Content, "AAPL") {
		t.Errorf("reply should confirm the add: %q", result.Content)
	}
	if pos, _ := store.Position(context.Background(), domain.SessionRef{ID: "user-1"}, "AAPL"); pos.Quantity != 100 {
		t.Errorf("store not updated: %+v", pos)
	}
}

func TestProcessRemoveInsufficientShares(t *testing.T) {
	store := newStubPortfolio()
	store.add("user-1", "AAPL", 5, 150)
	svc := newService(baseConfig(), stubTriage{decision: removeDecision("AAPL", 50)}, store)

	result, err := svc.Process(domain.ChatRequest{
		Context: context.Background(),
		Text:    "sell 50 AAPL",
		Session: userSession(),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(result.Content, "that many shares") {
		t.Errorf("unexpected message: %q", result.Content)
	}
}

func TestProcessLLMPath(t *testing.T) {
	store := newStubPortfolio()
	store.add("user-1", "AAPL", 10, 150)
	provider := &stubProvider{reply: "Apple looks fine."}
	svc := newService(baseConfig(), stubTriage{decision: llmDecision()}, store)
	svc.ProviderFactory = stubProviderFactory{provider: provider}

	result, err := svc.Process(domain.ChatRequest{
		Context: context.Background(),
		Text:    "should I buy more tech",
		Session: userSession(),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Success || result.ProcessingType != domain.ProcessingLLM {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.Content != "Apple looks fine." {
		t.Errorf("reply not relayed: %q", result.Content)
	}
	if provider.lastRequest().Portfolio.TotalCost != 1500 {
		t.Errorf("portfolio context not passed: %+v", provider.lastRequest().Portfolio)
	}
}

func TestProcessLLMFailureIsNormalized(t *testing.T) {
	store := newStubPortfolio()
	svc := newService(baseConfig(), stubTriage{decision: llmDecision()}, store)
	svc.ProviderFactory = stubProviderFactory{provider: &stubProvider{err: domain.ErrBackendFailure}}

	result, err := svc.Process(domain.ChatRequest{
		Context: context.Background(),
		Text:    "should I buy more tech",
		Session: userSession(),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(result.Content, "trouble reaching") {
		t.Errorf("unexpected message: %q", result.Content)
	}
}

func TestProcessCancelledContext(t *testing.T) {
	svc := newService(baseConfig(), stubTriage{decision: llmDecision()}, newStubPortfolio())
	svc.ProviderFactory = stubProviderFactory{provider: blockingProvider{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := svc.Process(domain.ChatRequest{
		Context: ctx,
		Text:    "should I buy more tech",
		Session: userSession(),
	})
	if !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if result.Success {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(result.Content, "cancelled") {
		t.Errorf("unexpected message: %q", result.Content)
	}
}

func TestProcessTimesOut(t *testing.T) {
	cfg := baseConfig()
	cfg.Preferences.TimeoutSeconds = 1

	svc := newService(cfg, stubTriage{decision: llmDecision()}, newStubPortfolio())
	svc.ProviderFactory = stubProviderFactory{provider: blockingProvider{}}

	result, err := svc.Process(domain.ChatRequest{
		Context: context.Background(),
		Text:    "should I buy more tech",
		Session: userSession(),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Success {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(result.Content, "took too long") {
		t.Errorf("unexpected message: %q", result.Content)
	}
}

func TestProcessFallbackModelWins(t *testing.T) {
	cfg := baseConfig()
	cfg.Preferences.FallbackModels = []string{"backup"}
	cfg.Models = append(cfg.Models, domain.ModelDefinition{Name: "backup", ModelID: "backup", Endpoint: "http://backup"})

	factory := &selectiveFactory{
		providers: map[string]ports.Provider{
			"stub":   &stubProvider{err: domain.ErrBackendFailure},
			"backup": &stubProvider{reply: "from backup"},
		},
	}
	store := newStubPortfolio()
	svc := newService(cfg, stubTriage{decision: llmDecision()}, store)
	svc.ProviderFactory = factory

	result, err := svc.Process(domain.ChatRequest{
		Context: context.Background(),
		Text:    "anything",
		Session: userSession(),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Success || result.Content != "from backup" {
		t.Fatalf("fallback should win: %+v", result)
	}
	if result.Provider != "backup" {
		t.Errorf("provider name = %q", result.Provider)
	}
}

func TestProcessUsesCache(t *testing.T) {
	store := newStubPortfolio()
	cfg := baseConfig()
	cfg.Preferences.CacheReplies = true
	provider := &stubProvider{reply: "fresh answer"}
	cache := &stubCache{entries: map[string]domain.CacheEntry{}}
	svc := newService(cfg, stubTriage{decision: llmDecision()}, store)
	svc.ProviderFactory = stubProviderFactory{provider: provider}
	svc.Cache = cache

	req := domain.ChatRequest{Context: context.Background(), Text: "same question", Session: userSession()}
	first, err := svc.Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if first.FromCache {
		t.Fatal("first call must not come from cache")
	}
	second, err := svc.Process(req)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !second.FromCache || second.Content != "fresh answer" {
		t.Fatalf("second call should hit cache: %+v", second)
	}
	if provider.calls() != 1 {
		t.Errorf("provider called %d times, want 1", provider.calls())
	}
}

func TestProcessCacheMissesWhenPortfolioChanges(t *testing.T) {
	store := newStubPortfolio()
	cfg := baseConfig()
	cfg.Preferences.CacheReplies = true
	provider := &stubProvider{reply: "answer"}
	svc := newService(cfg, stubTriage{decision: llmDecision()}, store)
	svc.ProviderFactory = stubProviderFactory{provider: provider}
	svc.Cache = &stubCache{entries: map[string]domain.CacheEntry{}}

	req := domain.ChatRequest{Context: context.Background(), Text: "how am I doing", Session: userSession()}
	if _, err := svc.Process(req); err != nil {
		t.Fatalf("Process: %v", err)
	}
	store.add("user-1", "NVDA", 3, 500)
	if _, err := svc.Process(req); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if provider.calls() != 2 {
		t.Errorf("changed portfolio must bypass cache, provider called %d times", provider.calls())
	}
}

func TestProcessEnrichesRiskQuestions(t *testing.T) {
	store := newStubPortfolio()
	store.add("user-1", "AAPL", 10, 150)
	cfg := baseConfig()
	cfg.Analysis.Enrich = true
	provider := &stubProvider{reply: "risk answer"}
	analysis := &stubAnalysis{result: domain.RiskAnalysis{RiskLevel: "High", TotalValue: 1500}}
	svc := newService(cfg, stubTriage{decision: llmDecision()}, store)
	svc.ProviderFactory = stubProviderFactory{provider: provider}
	svc.Analysis = analysis

	if _, err := svc.Process(domain.ChatRequest{
		Context: context.Background(),
		Text:    "how risky is my portfolio",
		Session: userSession(),
	}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if provider.lastRequest().Analysis == nil || provider.lastRequest().Analysis.RiskLevel != "High" {
		t.Errorf("risk metrics not passed to provider: %+v", provider.lastRequest().Analysis)
	}

	if _, err := svc.Process(domain.ChatRequest{
		Context: context.Background(),
		Text:    "tell me a joke",
		Session: userSession(),
	}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if provider.lastRequest().Analysis != nil {
		t.Error("non-risk question should not be enriched")
	}
}

func TestProcessAnalysisFailureDegradesGracefully(t *testing.T) {
	store := newStubPortfolio()
	store.add("user-1", "AAPL", 10, 150)
	cfg := baseConfig()
	cfg.Analysis.Enrich = true
	provider := &stubProvider{reply: "still answered"}
	svc := newService(cfg, stubTriage{decision: llmDecision()}, store)
	svc.ProviderFactory = stubProviderFactory{provider: provider}
	svc.Analysis = &stubAnalysis{err: domain.ErrBackendFailure}

	result, err := svc.Process(domain.ChatRequest{
		Context: context.Background(),
		Text:    "how risky is my portfolio",
		Session: userSession(),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !result.Success || result.Content != "still answered" {
		t.Fatalf("analysis failure must not fail the chat: %+v", result)
	}
}

func TestProcessRejectsInvalidSession(t *testing.T) {
	svc := newService(baseConfig(), stubTriage{decision: llmDecision()}, newStubPortfolio())
	if _, err := svc.Process(domain.ChatRequest{Context: context.Background(), Text: "hi"}); err == nil {
		t.Fatal("expected error for missing session identity")
	}
	if _, err := svc.Process(domain.ChatRequest{
		Context: context.Background(),
		Text:    "hi",
		Session: domain.SessionContext{UserID: "u", GuestID: "g"},
	}); err == nil {
		t.Fatal("expected error for double session identity")
	}
}

func TestProcessEmptyMessage(t *testing.T) {
	svc := newService(baseConfig(), stubTriage{decision: llmDecision()}, newStubPortfolio())
	result, err := svc.Process(domain.ChatRequest{
		Context: context.Background(),
		Text:    "   ",
		Session: userSession(),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Success {
		t.Fatal("blank message should fail")
	}
}

func TestProcessRateLimited(t *testing.T) {
	svc := newService(baseConfig(), stubTriage{decision: llmDecision()}, newStubPortfolio())
	svc.Limiter = stubLimiter{allow: false}
	result, err := svc.Process(domain.ChatRequest{
		Context: context.Background(),
		Text:    "hello",
		Session: userSession(),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Success || !strings.Contains(result.Content, "too quickly") {
		t.Fatalf("expected rate-limit message: %+v", result)
	}
}

func TestProcessLogsExchange(t *testing.T) {
	store := newStubPortfolio()
	log := &stubChatLog{}
	svc := newService(baseConfig(), stubTriage{decision: showAllDecision()}, store)
	svc.ChatLog = log

	if _, err := svc.Process(domain.ChatRequest{
		Context: context.Background(),
		Text:    "show my positions",
		Session: domain.SessionContext{GuestID: "g-1", Guest: true},
	}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(log.records) != 1 {
		t.Fatalf("expected 1 transcript record, got %d", len(log.records))
	}
	rec := log.records[0]
	if rec.SessionID != "g-1" || !rec.Guest || rec.ProcessingType != domain.ProcessingRegexp {
		t.Errorf("record fields wrong: %+v", rec)
	}
}

// ----------------------------------------------------------------------------
// decisions

func showAllDecision() domain.TriageDecision {
	return domain.TriageDecision{
		ProcessingType: domain.ProcessingRegexp,
		Confidence:     domain.ConfidenceCollective,
		Match:          &domain.TriageMatch{Symbol: domain.SymbolAll, Action: domain.ActionShowAll},
	}
}

func showDecision(symbol string) domain.TriageDecision {
	return domain.TriageDecision{
		ProcessingType: domain.ProcessingRegexp,
		Confidence:     domain.ConfidenceExact,
		Match:          &domain.TriageMatch{Symbol: symbol, Action: domain.ActionShow},
	}
}

func addDecision(symbol string, qty, price float64) domain.TriageDecision {
	return domain.TriageDecision{
		ProcessingType: domain.ProcessingRegexp,
		Confidence:     domain.ConfidenceExact,
		Match:          &domain.TriageMatch{Symbol: symbol, Action: domain.ActionAdd, Quantity: qty, Price: price},
	}
}

func removeDecision(symbol string, qty float64) domain.TriageDecision {
	return domain.TriageDecision{
		ProcessingType: domain.ProcessingRegexp,
		Confidence:     domain.ConfidenceExact,
		Match:          &domain.TriageMatch{Symbol: symbol, Action: domain.ActionRemove, Quantity: qty},
	}
}

func llmDecision() domain.TriageDecision {
	return domain.TriageDecision{ProcessingType: domain.ProcessingLLM, Confidence: domain.ConfidenceFallback}
}

// ----------------------------------------------------------------------------
// stubs

type stubConfigProvider struct {
	cfg domain.Config
	err error
}

func (s stubConfigProvider) Load(context.Context) (domain.Config, error) {
	return s.cfg, s.err
}

type stubTriage struct {
	decision domain.TriageDecision
}

func (s stubTriage) Analyze(string) domain.TriageDecision {
	return s.decision
}

type stubPortfolio struct {
	mu       sync.Mutex
	holdings map[string]map[string]domain.Position
}

func newStubPortfolio() *stubPortfolio {
	return &stubPortfolio{holdings: map[string]map[string]domain.Position{}}
}

func (s *stubPortfolio) add(session, symbol string, qty, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holdings[session] == nil {
		s.holdings[session] = map[string]domain.Position{}
	}
	s.holdings[session][symbol] = domain.Position{Symbol: symbol, Quantity: qty, AvgPrice: price}
}

func (s *stubPortfolio) Positions(_ context.Context, ref domain.SessionRef) ([]domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Position
	for _, pos := range s.holdings[ref.ID] {
		out = append(out, pos)
	}
	return out, nil
}

func (s *stubPortfolio) Position(_ context.Context, ref domain.SessionRef, symbol string) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.holdings[ref.ID][symbol]
	if !ok {
		return domain.Position{}, domain.ErrPositionNotFound
	}
	return pos, nil
}

func (s *stubPortfolio) Add(_ context.Context, ref domain.SessionRef, symbol string, qty, price float64) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holdings[ref.ID] == nil {
		s.holdings[ref.ID] = map[string]domain.Position{}
	}
	existing := s.holdings[ref.ID][symbol]
	total := existing.Quantity + qty
	avg := price
	if existing.Quantity > 0 {
		avg = (existing.Quantity*existing.AvgPrice + qty*price) / total
	}
	pos := domain.Position{Symbol: symbol, Quantity: total, AvgPrice: avg}
	s.holdings[ref.ID][symbol] = pos
	return pos, nil
}

func (s *stubPortfolio) Remove(_ context.Context, ref domain.SessionRef, symbol string, qty float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.holdings[ref.ID][symbol]
	if !ok {
		return domain.ErrPositionNotFound
	}
	if qty > pos.Quantity {
		return domain.ErrInsufficientShares
	}
	if qty == 0 || qty == pos.Quantity {
		delete(s.holdings[ref.ID], symbol)
		return nil
	}
	pos.Quantity -= qty
	s.holdings[ref.ID][symbol] = pos
	return nil
}

type stubProviderFactory struct {
	provider ports.Provider
	err      error
}

func (s stubProviderFactory) ForModel(domain.ModelDefinition) (ports.Provider, error) {
	return s.provider, s.err
}

type selectiveFactory struct {
	providers map[string]ports.Provider
}

func (s *selectiveFactory) ForModel(model domain.ModelDefinition) (ports.Provider, error) {
	provider, ok := s.providers[model.Name]
	if !ok {
		return nil, errors.New("unknown model")
	}
	return provider, nil
}

type stubProvider struct {
	mu    sync.Mutex
	reply string
	err   error
	last  ports.ProviderRequest
	count int
}

func (s *stubProvider) Name() string                  { return "stub" }
func (s *stubProvider) Model() domain.ModelDefinition { return domain.ModelDefinition{} }
func (s *stubProvider) Generate(_ context.Context, req ports.ProviderRequest) (ports.ProviderResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = req
	s.count++
	if s.err != nil {
		return ports.ProviderResponse{}, s.err
	}
	return ports.ProviderResponse{Reply: s.reply, Provider: "stub"}, nil
}

// blockingProvider never replies on its own; it waits for the caller's
// context to end and reports that error.
type blockingProvider struct{}

func (blockingProvider) Name() string                  { return "blocking" }
func (blockingProvider) Model() domain.ModelDefinition { return domain.ModelDefinition{} }
func (blockingProvider) Generate(ctx context.Context, _ ports.ProviderRequest) (ports.ProviderResponse, error) {
	<-ctx.Done()
	return ports.ProviderResponse{}, ctx.Err()
}

func (s *stubProvider) lastRequest() ports.ProviderRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *stubProvider) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

type stubAnalysis struct {
	result domain.RiskAnalysis
	err    error
}

func (s *stubAnalysis) Analyze(context.Context, []domain.AnalysisAsset) (domain.RiskAnalysis, error) {
	if s.err != nil {
		return domain.RiskAnalysis{}, s.err
	}
	return s.result, nil
}

func (s *stubAnalysis) Health(context.Context) error { return s.err }

type stubCache struct {
	mu      sync.Mutex
	entries map[string]domain.CacheEntry
}

func (s *stubCache) Get(key string) (domain.CacheEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	return entry, ok, nil
}

func (s *stubCache) Set(entry domain.CacheEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Key] = entry
	return nil
}

func (s *stubCache) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = map[string]domain.CacheEntry{}
	return nil
}

type stubChatLog struct {
	mu      sync.Mutex
	records []domain.ChatRecord
}

func (s *stubChatLog) Save(record domain.ChatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *stubChatLog) Records(string, int, string) ([]domain.ChatRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records, nil
}

func (s *stubChatLog) Clear(string) error { return nil }

type stubLimiter struct {
	allow bool
}

func (s stubLimiter) Allow(string) bool { return s.allow }
