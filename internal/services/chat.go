package services

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/risklens/internal/domain"
	"github.com/doeshing/risklens/internal/ports"
)

// ChatService orchestrates one chat message end-to-end: triage, the pattern
// or provider path, and result normalization. It is the only place failures
// are translated into user-facing text.
type ChatService struct {
	ConfigProvider  ports.ConfigProvider
	Triage          ports.Triage
	Portfolio       ports.PortfolioStore
	ProviderFactory ports.ProviderFactory
	Analysis        ports.AnalysisClient
	Cache           ports.ReplyCache
	ChatLog         ports.ChatLogStore
	Limiter         ports.Limiter
	Logger          ports.Logger
}

// Process handles a single chat message.
//
// The returned result always carries ExecutionTimeMS and never raw error
// text in Content. The error return is reserved for caller bugs (invalid
// session) and explicit cancellation; everything else is folded into a
// {Success:false} result.
func (s *ChatService) Process(req domain.ChatRequest) (domain.ProcessingResult, error) {
	start := time.Now()

	if s.ConfigProvider == nil || s.Triage == nil || s.Portfolio == nil ||
		s.ProviderFactory == nil || s.Logger == nil {
		return domain.ProcessingResult{}, errors.New("services.ChatService dependencies not satisfied")
	}

	if err := req.Session.Validate(); err != nil {
		return domain.ProcessingResult{}, err
	}
	ref := req.Session.Ref()

	text := strings.TrimSpace(req.Text)
	if text == "" {
		return finish(start, failure(domain.ProcessingLLM, "Please enter a message.")), nil
	}
	if len(text) > domain.MaxMessageLength {
		return finish(start, failure(domain.ProcessingLLM, "That message is too long. Please shorten it.")), nil
	}

	if s.Limiter != nil && !s.Limiter.Allow(ref.ID) {
		s.Logger.Warn("session rate limited", map[string]interface{}{"session": ref.ID})
		return finish(start, failure(domain.ProcessingLLM, "You're sending messages too quickly. Give it a moment and try again.")), nil
	}

	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		return domain.ProcessingResult{}, fmt.Errorf("load config: %w", err)
	}

	timeout := time.Duration(cfg.Preferences.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = domain.DefaultProcessTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	decision := domain.TriageDecision{ProcessingType: domain.ProcessingLLM, Confidence: domain.ConfidenceFallback}
	if cfg.Triage.Enabled {
		decision = s.Triage.Analyze(text)
	}

	var result domain.ProcessingResult
	if decision.ProcessingType == domain.ProcessingRegexp {
		result = s.runPattern(ctx, ref, decision)
	} else {
		result = s.runProvider(ctx, cfg, ref, text, req.Debug)
	}

	result = finish(start, result)

	if errors.Is(ctx.Err(), context.Canceled) {
		return result, domain.ErrCancelled
	}

	s.logExchange(ref, text, result)
	return result, nil
}

// runPattern executes a triage-matched portfolio action without any provider
// call. Replies are deterministic.
func (s *ChatService) runPattern(ctx context.Context, ref domain.SessionRef, decision domain.TriageDecision) domain.ProcessingResult {
	match := decision.Match
	if match == nil {
		return failure(domain.ProcessingRegexp, "I couldn't work out which holding you meant.")
	}

	switch match.Action {
	case domain.ActionShowAll:
		positions, err := s.Portfolio.Positions(ctx, ref)
		if err != nil {
			return s.normalize(domain.ProcessingRegexp, err)
		}
		if len(positions) == 0 {
			return success(domain.ProcessingRegexp, "Your portfolio is empty. Try \"add 10 AAPL at 150\" to get started.")
		}
		return success(domain.ProcessingRegexp, "Here's your portfolio:\n"+formatPositions(domain.Summarize(positions)))

	case domain.ActionShow:
		pos, err := s.Portfolio.Position(ctx, ref, match.Symbol)
		if err != nil {
			if errors.Is(err, domain.ErrPositionNotFound) {
				return failure(domain.ProcessingRegexp, fmt.Sprintf("You don't have a position in %s.", match.Symbol))
			}
			return s.normalize(domain.ProcessingRegexp, err)
		}
		return success(domain.ProcessingRegexp, fmt.Sprintf("You hold %s shares of %s at an average cost of $%s (cost basis $%s).",
			trimFloat(pos.Quantity), pos.Symbol, money(pos.AvgPrice), money(pos.CostBasis())))

	case domain.ActionAdd:
		pos, err := s.Portfolio.Add(ctx, ref, match.Symbol, match.Quantity, match.Price)
		if err != nil {
			return s.normalize(domain.ProcessingRegexp, err)
		}
		return success(domain.ProcessingRegexp, fmt.Sprintf("Added %s shares of %s at $%s. You now hold %s shares at an average cost of $%s.",
			trimFloat(match.Quantity), pos.Symbol, money(match.Price), trimFloat(pos.Quantity), money(pos.AvgPrice)))

	case domain.ActionRemove:
		if err := s.Portfolio.Remove(ctx, ref, match.Symbol, match.Quantity); err != nil {
			if errors.Is(err, domain.ErrPositionNotFound) {
				return failure(domain.ProcessingRegexp, fmt.Sprintf("You don't have a position in %s.", match.Symbol))
			}
			return s.normalize(domain.ProcessingRegexp, err)
		}
		remaining, err := s.Portfolio.Position(ctx, ref, match.Symbol)
		if err != nil {
			if errors.Is(err, domain.ErrPositionNotFound) {
				return success(domain.ProcessingRegexp, fmt.Sprintf("Removed your entire %s position.", match.Symbol))
			}
			return s.normalize(domain.ProcessingRegexp, err)
		}
		return success(domain.ProcessingRegexp, fmt.Sprintf("Removed %s shares of %s. You still hold %s shares.",
			trimFloat(match.Quantity), match.Symbol, trimFloat(remaining.Quantity)))

	default:
		return failure(domain.ProcessingRegexp, "I couldn't work out what you wanted to do with that holding.")
	}
}

// runProvider renders the message plus portfolio context into the configured
// provider chain and relays the reply.
func (s *ChatService) runProvider(ctx context.Context, cfg domain.Config, ref domain.SessionRef, text string, debug bool) domain.ProcessingResult {
	positions, err := s.Portfolio.Positions(ctx, ref)
	if err != nil {
		return s.normalize(domain.ProcessingLLM, err)
	}
	summary := domain.Summarize(positions)

	key := cacheKey(text, summary)
	if cfg.Preferences.CacheReplies && s.Cache != nil {
		if entry, ok, err := s.Cache.Get(key); err == nil && ok {
			result := success(domain.ProcessingLLM, entry.Reply)
			result.Provider = entry.Model
			result.FromCache = true
			return result
		}
	}

	analysis := s.enrich(ctx, cfg, text, positions)

	modelDef, err := pickModel(cfg, "")
	if err != nil {
		return s.normalize(domain.ProcessingLLM, err)
	}

	resp, modelUsed, err := s.generateReply(ctx, cfg, modelDef, ports.ProviderRequest{
		Prompt:    text,
		Portfolio: summary,
		Analysis:  analysis,
		Debug:     debug,
	})
	if err != nil {
		return s.normalize(domain.ProcessingLLM, err)
	}

	if cfg.Preferences.CacheReplies && s.Cache != nil {
		entry := domain.CacheEntry{Key: key, Reply: resp.Reply, Model: modelUsed, CreatedAt: time.Now()}
		if err := s.Cache.Set(entry); err != nil {
			s.Logger.Warn("reply cache write failed", map[string]interface{}{"error": err.Error()})
		}
	}

	result := success(domain.ProcessingLLM, resp.Reply)
	result.Provider = modelUsed
	return result
}

// enrich asks the analysis backend for risk metrics when the message is
// about risk or performance. Best-effort: any failure logs and degrades to
// an unenriched prompt.
func (s *ChatService) enrich(ctx context.Context, cfg domain.Config, text string, positions []domain.Position) *domain.RiskAnalysis {
	if !cfg.Analysis.Enrich || s.Analysis == nil || len(positions) == 0 || !mentionsRisk(text) {
		return nil
	}

	assets := make([]domain.AnalysisAsset, 0, len(positions))
	for _, pos := range positions {
		price := pos.AvgPrice
		assets = append(assets, domain.AnalysisAsset{Symbol: pos.Symbol, Shares: pos.Quantity, AvgPrice: &price})
	}

	timeout := time.Duration(cfg.Analysis.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = domain.DefaultAnalysisTimeout
	}
	analysisCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	analysis, err := s.Analysis.Analyze(analysisCtx, assets)
	if err != nil {
		s.Logger.Warn("analysis enrichment failed", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return &analysis
}

var riskKeywords = []string{"risk", "volatil", "var", "sharpe", "beta", "perform", "diversif", "exposure", "drawdown"}

func mentionsRisk(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range riskKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// generateReply races the primary model against configured fallbacks and
// returns the first success. Remaining calls are cancelled.
func (s *ChatService) generateReply(ctx context.Context, cfg domain.Config, primary domain.ModelDefinition, req ports.ProviderRequest) (ports.ProviderResponse, string, error) {
	candidates := buildCandidateModels(cfg, primary)
	if len(candidates) == 0 {
		return ports.ProviderResponse{}, "", fmt.Errorf("%w: no providers available", domain.ErrBackendFailure)
	}

	type result struct {
		resp      ports.ProviderResponse
		modelName string
		err       error
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	results := make(chan result, len(candidates))
	var wg sync.WaitGroup

	for _, model := range candidates {
		wg.Add(1)
		go func(model domain.ModelDefinition) {
			defer wg.Done()
			resp, err := s.generateWithModel(ctx, model, req)
			results <- result{resp: resp, modelName: model.Name, err: err}
		}(model)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	errs := make([]error, 0, len(candidates))
	var winner *result
	for res := range results {
		if res.err == nil && winner == nil {
			r := res
			winner = &r
			cancel()
			continue
		}
		if res.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.modelName, res.err))
		}
	}

	if winner != nil {
		return winner.resp, winner.modelName, nil
	}
	if err := ctx.Err(); err != nil {
		return ports.ProviderResponse{}, "", err
	}
	if len(errs) == 0 {
		return ports.ProviderResponse{}, "", fmt.Errorf("%w: no provider succeeded", domain.ErrBackendFailure)
	}
	return ports.ProviderResponse{}, "", errors.Join(errs...)
}

func (s *ChatService) generateWithModel(ctx context.Context, model domain.ModelDefinition, req ports.ProviderRequest) (ports.ProviderResponse, error) {
	provider, err := s.ProviderFactory.ForModel(model)
	if err != nil {
		return ports.ProviderResponse{}, fmt.Errorf("provider init: %w", err)
	}

	s.Logger.Info("calling provider", map[string]interface{}{
		"provider": provider.Name(),
		"model":    model.ModelID,
	})

	req.Model = model
	resp, err := provider.Generate(ctx, req)
	if err != nil {
		return ports.ProviderResponse{}, fmt.Errorf("provider generate: %w", err)
	}
	return resp, nil
}

func pickModel(cfg domain.Config, override string) (domain.ModelDefinition, error) {
	name := override
	if name == "" {
		name = cfg.Preferences.DefaultModel
	}
	if name == "" && len(cfg.Models) > 0 {
		return cfg.Models[0], nil
	}
	if model, ok := findModel(cfg, name); ok {
		return model, nil
	}
	return domain.ModelDefinition{}, fmt.Errorf("model %s not configured", name)
}

func findModel(cfg domain.Config, name string) (domain.ModelDefinition, bool) {
	for _, model := range cfg.Models {
		if model.Name == name {
			return model, true
		}
	}
	return domain.ModelDefinition{}, false
}

func buildCandidateModels(cfg domain.Config, primary domain.ModelDefinition) []domain.ModelDefinition {
	candidates := make([]domain.ModelDefinition, 0, 1+len(cfg.Preferences.FallbackModels))
	candidates = append(candidates, primary)
	seen := map[string]bool{primary.Name: true}
	for _, name := range cfg.Preferences.FallbackModels {
		if seen[name] {
			continue
		}
		if model, ok := findModel(cfg, name); ok {
			candidates = append(candidates, model)
			seen[name] = true
		}
	}
	return candidates
}

// normalize converts an internal error into a user-safe failure result.
// Raw error text never reaches Content.
func (s *ChatService) normalize(kind domain.ProcessingType, err error) domain.ProcessingResult {
	switch {
	case errors.Is(err, domain.ErrPositionNotFound):
		return failure(kind, "You don't have a position in that symbol.")
	case errors.Is(err, domain.ErrInsufficientShares):
		return failure(kind, "You don't hold that many shares.")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, domain.ErrTimedOut):
		return failure(kind, "That took too long to process. Please try again.")
	case errors.Is(err, context.Canceled), errors.Is(err, domain.ErrCancelled):
		return failure(kind, "Request cancelled.")
	case errors.Is(err, domain.ErrStoreFailure):
		s.Logger.Error("portfolio store failure", err, nil)
		return failure(kind, "I couldn't access your portfolio just now. Please try again.")
	case errors.Is(err, domain.ErrBackendFailure):
		s.Logger.Error("backend failure", err, nil)
		return failure(kind, "I'm having trouble reaching the assistant right now. Please try again shortly.")
	default:
		s.Logger.Error("chat processing failure", err, nil)
		return failure(kind, "Something went wrong while processing that. Please try again.")
	}
}

// logExchange records the exchange best-effort. Transcript failures never
// affect the result.
func (s *ChatService) logExchange(ref domain.SessionRef, text string, result domain.ProcessingResult) {
	if s.ChatLog == nil {
		return
	}
	err := s.ChatLog.Save(domain.ChatRecord{
		Timestamp:       time.Now(),
		SessionID:       ref.ID,
		Guest:           ref.Guest,
		Message:         text,
		Reply:           result.Content,
		ProcessingType:  result.ProcessingType,
		Success:         result.Success,
		ExecutionTimeMS: result.ExecutionTimeMS,
	})
	if err != nil {
		s.Logger.Warn("transcript write failed", map[string]interface{}{"error": err.Error()})
	}
}

// cacheKey derives a reply-cache key from the message and the portfolio it
// was answered against. The same question over a changed portfolio misses.
func cacheKey(text string, summary domain.PortfolioSummary) string {
	h := sha256.New()
	h.Write([]byte(strings.ToLower(strings.Join(strings.Fields(text), " "))))
	var buf [8]byte
	for _, pos := range summary.Positions {
		h.Write([]byte(pos.Symbol))
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(pos.Quantity))
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(pos.AvgPrice))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))[:32]
}

func success(kind domain.ProcessingType, content string) domain.ProcessingResult {
	return domain.ProcessingResult{Success: true, Content: content, ProcessingType: kind}
}

func failure(kind domain.ProcessingType, content string) domain.ProcessingResult {
	return domain.ProcessingResult{Success: false, Content: content, ProcessingType: kind}
}

func finish(start time.Time, result domain.ProcessingResult) domain.ProcessingResult {
	result.ExecutionTimeMS = time.Since(start).Milliseconds()
	return result
}

// Compile-time interface compliance check
var _ domain.ChatService = (*ChatService)(nil)
