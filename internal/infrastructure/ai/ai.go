// Package ai turns configured model definitions into chat providers.
//
// There is one generic HTTP provider; everything provider-specific (auth
// header shape, system-prompt placement, content wrapping, where the reply
// lives in the response JSON) is driven by the model's APIFormat, so adding a
// provider is a config change, not code. Models whose credentials are absent
// degrade to an offline heuristic provider.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/doeshing/risklens/internal/domain"
	"github.com/doeshing/risklens/internal/ports"
)

// Factory builds providers for model definitions, sharing one HTTP client.
type Factory struct {
	httpClient *http.Client
}

func NewFactory() *Factory {
	return &Factory{
		httpClient: &http.Client{Timeout: domain.DefaultHTTPClientTimeout},
	}
}

// ForModel returns a provider for the model. A model whose auth environment
// variable is declared but unset gets the offline heuristic provider so the
// chat loop keeps answering without credentials.
func (f *Factory) ForModel(model domain.ModelDefinition) (ports.Provider, error) {
	if model.Endpoint == "" {
		return nil, fmt.Errorf("model %q has no endpoint", model.Name)
	}
	if model.AuthEnvVar != "" && os.Getenv(model.AuthEnvVar) == "" {
		return newHeuristicProvider(model), nil
	}
	return newHTTPProvider(model, f.httpClient), nil
}

var _ ports.ProviderFactory = (*Factory)(nil)

// httpProvider speaks the configured wire format against one endpoint.
type httpProvider struct {
	model      domain.ModelDefinition
	httpClient *http.Client
}

func newHTTPProvider(model domain.ModelDefinition, client *http.Client) *httpProvider {
	return &httpProvider{model: model, httpClient: client}
}

func (p *httpProvider) Name() string                  { return "http" }
func (p *httpProvider) Model() domain.ModelDefinition { return p.model }

func (p *httpProvider) Generate(ctx context.Context, req ports.ProviderRequest) (ports.ProviderResponse, error) {
	messages, err := renderPromptMessages(p.model, req)
	if err != nil {
		return ports.ProviderResponse{}, fmt.Errorf("render prompt: %w", err)
	}

	body, err := p.encodeRequest(messages)
	if err != nil {
		return ports.ProviderResponse{}, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.model.Endpoint, bytes.NewReader(body))
	if err != nil {
		return ports.ProviderResponse{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if err := p.authenticate(httpReq); err != nil {
		return ports.ProviderResponse{}, err
	}
	for key, value := range p.model.APIFormat.ExtraHeaders {
		httpReq.Header.Set(key, value)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return ports.ProviderResponse{}, fmt.Errorf("%w: %v", domain.ErrBackendFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return ports.ProviderResponse{}, fmt.Errorf("%w: HTTP %d from %s", domain.ErrBackendFailure, resp.StatusCode, p.model.Name)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return ports.ProviderResponse{}, fmt.Errorf("read response: %w", err)
	}

	reply, err := p.decodeReply(raw)
	if err != nil {
		return ports.ProviderResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return ports.ProviderResponse{Reply: reply, Provider: p.model.Name}, nil
}

// encodeRequest builds the JSON body in the model's wire format.
func (p *httpProvider) encodeRequest(messages []domain.PromptMessage) ([]byte, error) {
	format := p.model.APIFormat
	payload := map[string]interface{}{"model": p.model.ModelID}
	if p.model.MaxTokens > 0 {
		payload["max_tokens"] = p.model.MaxTokens
	}

	var system []string
	wire := make([]map[string]interface{}, 0, len(messages))
	for _, msg := range messages {
		if format.SystemSeparate() && strings.EqualFold(msg.Role, "system") {
			system = append(system, msg.Content)
			continue
		}
		entry := map[string]interface{}{"role": strings.ToLower(msg.Role)}
		if format.WrapsContent() {
			entry["content"] = []map[string]string{{"type": "text", "text": msg.Content}}
		} else {
			entry["content"] = msg.Content
		}
		wire = append(wire, entry)
	}

	if prompt := strings.TrimSpace(strings.Join(system, "\n")); prompt != "" {
		payload["system"] = prompt
	}
	payload["messages"] = wire
	return json.Marshal(payload)
}

func (p *httpProvider) authenticate(req *http.Request) error {
	if p.model.AuthEnvVar == "" {
		return nil
	}
	apiKey := os.Getenv(p.model.AuthEnvVar)
	if apiKey == "" {
		return fmt.Errorf("missing API key: set %s", p.model.AuthEnvVar)
	}

	name, prefix := p.model.APIFormat.AuthHeader()
	req.Header.Set(name, prefix+apiKey)

	if p.model.OrgEnvVar != "" {
		if orgID := os.Getenv(p.model.OrgEnvVar); orgID != "" {
			req.Header.Set("OpenAI-Organization", orgID)
		}
	}
	return nil
}

// decodeReply pulls the assistant text out of the response using the
// configured JSON path.
func (p *httpProvider) decodeReply(raw []byte) (string, error) {
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", err
	}
	path := p.model.APIFormat.ReplyPath()
	reply, err := extractJSONPath(body, path)
	if err != nil {
		return "", fmt.Errorf("path %q: %w", path, err)
	}
	return strings.TrimSpace(reply), nil
}

// extractJSONPath walks a dotted path with optional array indices, e.g.
// "choices[0].message.content" or "content[0].text", and returns the string
// at its end.
func extractJSONPath(data map[string]interface{}, path string) (string, error) {
	var node interface{} = data
	for _, segment := range strings.Split(path, ".") {
		field := segment
		var indices []int
		for {
			open := strings.IndexByte(field, '[')
			if open < 0 {
				break
			}
			closing := strings.IndexByte(field[open:], ']')
			if closing < 0 {
				return "", fmt.Errorf("malformed segment %q", segment)
			}
			idx, err := strconv.Atoi(field[open+1 : open+closing])
			if err != nil {
				return "", fmt.Errorf("malformed index in %q", segment)
			}
			indices = append(indices, idx)
			field = field[:open] + field[open+closing+1:]
		}

		if field != "" {
			obj, ok := node.(map[string]interface{})
			if !ok {
				return "", fmt.Errorf("%q is not an object", field)
			}
			node, ok = obj[field]
			if !ok {
				return "", fmt.Errorf("field %q not found", field)
			}
		}
		for _, idx := range indices {
			arr, ok := node.([]interface{})
			if !ok {
				return "", fmt.Errorf("%q is not an array", field)
			}
			if idx < 0 || idx >= len(arr) {
				return "", fmt.Errorf("index %d out of range for %q (len %d)", idx, field, len(arr))
			}
			node = arr[idx]
		}
	}

	reply, ok := node.(string)
	if !ok {
		return "", fmt.Errorf("value at path is %T, not string", node)
	}
	return reply, nil
}

// renderPromptMessages expands the model's prompt templates with portfolio
// data and guarantees a user message. Models without a custom prompt get the
// default financial-assistant messages.
//
// Template variables: {{.Prompt}} (message plus portfolio snippet),
// {{.Message}}, {{.Portfolio}}, {{.Analysis}}, {{.Date}}.
func renderPromptMessages(model domain.ModelDefinition, req ports.ProviderRequest) ([]domain.PromptMessage, error) {
	data := buildTemplateData(req)
	messages := model.Prompt
	if len(messages) == 0 {
		messages = defaultTemplateMessages()
	}

	rendered := make([]domain.PromptMessage, 0, len(messages))
	hasUser := false
	for _, msg := range messages {
		content, err := executeTemplate(msg.Content, data)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(msg.Role, "user") {
			hasUser = true
		}
		rendered = append(rendered, domain.PromptMessage{
			Role:    msg.Role,
			Content: strings.TrimSpace(content),
		})
	}

	if !hasUser {
		rendered = append(rendered, domain.PromptMessage{Role: "user", Content: data.Prompt})
	}
	return rendered, nil
}

type templateData struct {
	Prompt    string
	Message   string
	Portfolio string
	Analysis  string
	Date      string
}

func buildTemplateData(req ports.ProviderRequest) templateData {
	portfolio := FormatPortfolio(req.Portfolio)
	analysis := FormatAnalysis(req.Analysis)

	message := strings.TrimSpace(req.Prompt)
	prompt := message
	if portfolio != "" {
		prompt += "\n\nCurrent portfolio:\n" + portfolio
	}
	if analysis != "" {
		prompt += "\n\nRisk analysis:\n" + analysis
	}

	return templateData{
		Prompt:    prompt,
		Message:   message,
		Portfolio: portfolio,
		Analysis:  analysis,
		Date:      time.Now().Format("2006-01-02"),
	}
}

func executeTemplate(raw string, data templateData) (string, error) {
	tmpl, err := template.New("prompt").Parse(raw)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func defaultTemplateMessages() []domain.PromptMessage {
	return []domain.PromptMessage{
		{
			Role: "system",
			Content: `You are RiskLens, a careful financial assistant.
Answer questions about the user's portfolio using the data provided.
Be concise. Never invent holdings or prices that are not in the data.
Today is {{.Date}}.
{{if .Portfolio}}Portfolio:
{{.Portfolio}}{{end}}
{{if .Analysis}}Risk analysis:
{{.Analysis}}{{end}}`,
		},
		{
			Role:    "user",
			Content: "{{.Message}}",
		},
	}
}
