package providers

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const probePrompt = "Reply with the single word OK."

type ProbeRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"apiKey"`
	Model    string `json:"model"`
}

type ProbeResult struct {
	Success   bool   `json:"success"`
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	LatencyMS int64  `json:"latency_ms"`
	Reply     string `json:"reply,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewProviderWithKey builds one of the five supported providers with an explicit key.
func NewProviderWithKey(name, apiKey, model string) (LLMProvider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai":
		return newChatProvider(openAISpec, "", apiKey, model), nil
	case "openrouter":
		return newChatProvider(openRouterSpec, "", apiKey, model), nil
	case "deepseek":
		return newChatProvider(deepSeekSpec, "", apiKey, model), nil
	case "groq":
		return newChatProvider(groqSpec, "", apiKey, model), nil
	case "anthropic":
		return newAnthropicProvider("", apiKey, model), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, name)
	}
}

// Probe sends a tiny prompt and reports latency. A provider failure is reported in
// the result, not as an error; only an unknown provider name returns an error.
func Probe(ctx context.Context, req ProbeRequest) (ProbeResult, error) {
	p, err := NewProviderWithKey(req.Provider, req.APIKey, req.Model)
	if err != nil {
		return ProbeResult{}, err
	}
	return probe(ctx, strings.ToLower(strings.TrimSpace(req.Provider)), p), nil
}

func probe(ctx context.Context, name string, p LLMProvider) ProbeResult {
	start := time.Now()
	resp, info, err := p.Generate(ctx, GenerateRequest{
		Operation: "connection_test",
		Prompt:    probePrompt,
		MaxTokens: 10,
	})
	out := ProbeResult{
		Provider:  name,
		Model:     info.Model,
		LatencyMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		out.Error = err.Error()
		return out
	}
	out.Success = true
	out.Reply = strings.TrimSpace(resp.Text)
	return out
}

// Probe tests a provider. Without an explicit key the configured provider of that
// name is used.
func (m *Manager) Probe(ctx context.Context, req ProbeRequest) (ProbeResult, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		if p, ref, ok := m.FindLLMProviderByName(req.Provider); ok {
			return probe(ctx, strings.ToLower(ref.Name), p), nil
		}
	}
	return Probe(ctx, req)
}
