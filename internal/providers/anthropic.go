package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion  = "2023-06-01"
)

// AnthropicProvider calls the Messages API.
type AnthropicProvider struct {
	endpoint string
	keyName  string
	apiKey   string
	model    string
	client   *http.Client
}

func NewAnthropicProvider(keyName string) *AnthropicProvider {
	return newAnthropicProvider(keyName, resolveKey("anthropic", keyName), resolveModel("anthropic"))
}

func newAnthropicProvider(keyName, apiKey, model string) *AnthropicProvider {
	if strings.TrimSpace(model) == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &AnthropicProvider{
		endpoint: anthropicEndpoint,
		keyName:  keyName,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

func (a *AnthropicProvider) HasKey() bool {
	return a.apiKey != ""
}

func (a *AnthropicProvider) info() ProviderInfo {
	return ProviderInfo{Name: "anthropic", Model: a.model, Key: a.keyName}
}

func (a *AnthropicProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	if a.apiKey == "" {
		return GenerateResponse{}, a.info(), fmt.Errorf("anthropic key missing for alias %q", a.keyName)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	body := map[string]any{
		"model":      a.model,
		"max_tokens": maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": userMessage(req)},
		},
	}
	if req.System != "" {
		body["system"] = req.System
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	payload, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return GenerateResponse{}, a.info(), fmt.Errorf("build anthropic request: %w", err)
	}
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, a.info(), fmt.Errorf("anthropic generate request failed: %w", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return GenerateResponse{}, a.info(), fmt.Errorf("anthropic generate error %d: %s", resp.StatusCode, string(raw))
	}
	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return GenerateResponse{}, a.info(), fmt.Errorf("decode anthropic response: %w", err)
	}
	var sb strings.Builder
	for _, c := range parsed.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	if sb.Len() == 0 {
		return GenerateResponse{}, a.info(), fmt.Errorf("anthropic returned empty content")
	}
	return GenerateResponse{Text: sb.String()}, a.info(), nil
}
