package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type chatSpec struct {
	name         string
	endpoint     string
	defaultModel string
	headers      map[string]string
}

var openAISpec = chatSpec{
	name:         "openai",
	endpoint:     "https://api.openai.com/v1/chat/completions",
	defaultModel: "gpt-4o-mini",
}

// ChatProvider talks to any OpenAI-compatible chat completions endpoint.
type ChatProvider struct {
	spec     chatSpec
	endpoint string
	keyName  string
	apiKey   string
	model    string
	client   *http.Client
}

func newChatProvider(spec chatSpec, keyName, apiKey, model string) *ChatProvider {
	if strings.TrimSpace(model) == "" {
		model = spec.defaultModel
	}
	return &ChatProvider{
		spec:     spec,
		endpoint: spec.endpoint,
		keyName:  keyName,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

func NewOpenAIProvider(keyName string) *ChatProvider {
	return newChatProvider(openAISpec, keyName, resolveKey(openAISpec.name, keyName), resolveModel(openAISpec.name))
}

func (c *ChatProvider) HasKey() bool {
	return c.apiKey != ""
}

func (c *ChatProvider) info() ProviderInfo {
	return ProviderInfo{Name: c.spec.name, Model: c.model, Key: c.keyName}
}

func (c *ChatProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	if c.apiKey == "" {
		return GenerateResponse{}, c.info(), fmt.Errorf("%s key missing for alias %q", c.spec.name, c.keyName)
	}
	messages := make([]map[string]string, 0, 2)
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": userMessage(req)})
	body := map[string]any{
		"model":    c.model,
		"messages": messages,
	}
	if req.Temperature > 0 {
		body["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		body["max_tokens"] = req.MaxTokens
	}
	payload, _ := json.Marshal(body)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return GenerateResponse{}, c.info(), fmt.Errorf("build %s request: %w", c.spec.name, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.spec.headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return GenerateResponse{}, c.info(), fmt.Errorf("%s generate request failed: %w", c.spec.name, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return GenerateResponse{}, c.info(), fmt.Errorf("%s generate error %d: %s", c.spec.name, resp.StatusCode, string(raw))
	}
	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return GenerateResponse{}, c.info(), fmt.Errorf("decode %s response: %w", c.spec.name, err)
	}
	if len(parsed.Choices) == 0 {
		return GenerateResponse{}, c.info(), fmt.Errorf("%s returned empty choices", c.spec.name)
	}
	return GenerateResponse{Text: parsed.Choices[0].Message.Content}, c.info(), nil
}

// resolveKey prefers IARA_<PROVIDER>_KEY_<ALIAS> and falls back to <PROVIDER>_API_KEY.
func resolveKey(provider, alias string) string {
	p := strings.ToUpper(provider)
	if alias != "" {
		if v := os.Getenv("IARA_" + p + "_KEY_" + strings.ToUpper(alias)); v != "" {
			return v
		}
	}
	return os.Getenv(p + "_API_KEY")
}

func resolveModel(provider string) string {
	return strings.TrimSpace(os.Getenv("IARA_" + strings.ToUpper(provider) + "_MODEL"))
}
