// Package analysis talks to the external portfolio-analysis backend over
// HTTP. The backend computes risk metrics (VaR, volatility, Sharpe ratio,
// beta) from live market data; this client only ships holdings over and
// decodes the result.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/doeshing/risklens/internal/domain"
	"github.com/doeshing/risklens/internal/ports"
)

// Client calls the analysis backend's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client for the backend at baseURL. A zero timeout
// falls back to the default analysis timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = domain.DefaultAnalysisTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type analyzeRequest struct {
	Assets []domain.AnalysisAsset `json:"assets"`
}

// Analyze posts the holdings and returns the backend's risk metrics.
// Failures are wrapped in ErrBackendFailure so callers can degrade
// gracefully instead of surfacing transport noise to the user.
func (c *Client) Analyze(ctx context.Context, assets []domain.AnalysisAsset) (domain.RiskAnalysis, error) {
	if len(assets) == 0 {
		return domain.RiskAnalysis{}, fmt.Errorf("%w: no assets to analyze", domain.ErrBackendFailure)
	}

	body, err := json.Marshal(analyzeRequest{Assets: assets})
	if err != nil {
		return domain.RiskAnalysis{}, fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/portfolio/analyze", bytes.NewReader(body))
	if err != nil {
		return domain.RiskAnalysis{}, fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
	}
	req.Header.Set("content-type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RiskAnalysis{}, fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return domain.RiskAnalysis{}, fmt.Errorf("%w: analysis backend returned %s", domain.ErrBackendFailure, resp.Status)
	}

	var result domain.RiskAnalysis
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.RiskAnalysis{}, fmt.Errorf("%w: decoding response: %v", domain.ErrBackendFailure, err)
	}
	return result, nil
}

// Health probes the backend's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: health check returned %s", domain.ErrBackendFailure, resp.Status)
	}
	return nil
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

var _ ports.AnalysisClient = (*Client)(nil)
