package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"iara/internal/config"
)

func TestParseAnalysisStructuredReply(t *testing.T) {
	reply := "Here you go:\n{\"summary\":\"S\",\"analysis\":\"A\",\"recommendations\":[\"r1\",\"r2\"]}\nThanks"
	got := ParseAnalysis(reply)
	require.Equal(t, "S", got.Summary)
	require.Equal(t, "A", got.Analysis)
	require.Equal(t, []string{"r1", "r2"}, got.Recommendations)
}

func TestParseAnalysisProseReply(t *testing.T) {
	reply := strings.Repeat("é", 620)
	got := ParseAnalysis(reply)
	require.Equal(t, strings.Repeat("é", 500)+"...", got.Summary)
	require.Equal(t, reply, got.Analysis)
	require.Len(t, got.Recommendations, 3)

	short := ParseAnalysis("no json here")
	require.Equal(t, "no json here...", short.Summary)
}

func TestParseAnalysisUndecodableSpanFallsBack(t *testing.T) {
	got := ParseAnalysis("prefix {not json} suffix")
	require.Equal(t, "prefix {not json} suffix", got.Analysis)
	require.Len(t, got.Recommendations, 3)
}

func TestSyntheticAnalysisIsDeterministic(t *testing.T) {
	files := []FileContext{
		{Name: "nda.pdf", Type: "application/pdf"},
		{Name: "draft.docx", Content: MarkerDOC + " draft.docx (2048 bytes)"},
		{Name: "photo.png", Type: "image/png"},
	}
	a := SyntheticAnalysis(files)
	b := SyntheticAnalysis(files)
	require.Equal(t, a, b)
	require.Len(t, a.Recommendations, 10)
	require.Contains(t, a.Summary, "3 document(s): 1 PDF, 1 Word, 1 image and 0 other")

	res, err := SyntheticStrategy{}.Analyze(context.Background(), AnalysisRequest{Files: files})
	require.NoError(t, err)
	require.Equal(t, MockModel, res.Model)
	require.Equal(t, ConfidenceSynthetic, res.Confidence)
	require.True(t, res.Synthetic)
}

func TestChatProviderSendsOpenAICompatibleRequest(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"summary\":\"ok\",\"analysis\":\"fine\",\"recommendations\":[]}"}}]}`))
	}))
	defer srv.Close()

	p := newChatProvider(deepSeekSpec, "", "test-key", "")
	p.endpoint = srv.URL
	resp, info, err := p.Generate(context.Background(), GenerateRequest{System: "sys", Prompt: "hello", Temperature: 0.3, MaxTokens: 4000})
	require.NoError(t, err)
	require.Equal(t, "deepseek", info.Name)
	require.Equal(t, "deepseek-chat", info.Model)
	require.Contains(t, resp.Text, "summary")
	require.Equal(t, 0.3, got["temperature"])
	require.Equal(t, float64(4000), got["max_tokens"])
	require.Len(t, got["messages"], 2)
}

func TestChatProviderNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("overloaded"))
	}))
	defer srv.Close()

	p := newChatProvider(openAISpec, "", "k", "")
	p.endpoint = srv.URL
	_, _, err := p.Generate(context.Background(), GenerateRequest{Prompt: "x"})
	require.Error(t, err)
	require.Equal(t, ErrorTransient, ClassifyError(err))
}

func TestAnthropicProviderHeadersAndContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "anth-key", r.Header.Get("x-api-key"))
		require.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "sys", body["system"])
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"hello "},{"type":"text","text":"world"}]}`))
	}))
	defer srv.Close()

	p := newAnthropicProvider("", "anth-key", "")
	p.endpoint = srv.URL
	resp, info, err := p.Generate(context.Background(), GenerateRequest{System: "sys", Prompt: "hi"})
	require.NoError(t, err)
	require.Equal(t, "hello world", resp.Text)
	require.Equal(t, "anthropic", info.Name)
}

type stubProvider struct {
	text  string
	err   error
	calls int
}

func (s *stubProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	s.calls++
	if s.err != nil {
		return GenerateResponse{}, ProviderInfo{Name: "stub"}, s.err
	}
	return GenerateResponse{Text: s.text}, ProviderInfo{Name: "stub", Model: "stub-1"}, nil
}

func TestAnalyzerFallsThroughInOrder(t *testing.T) {
	first := &stubProvider{err: errors.New("stub generate error 500: boom")}
	second := &stubProvider{text: `{"summary":"from second","analysis":"a","recommendations":["x"]}`}
	a := NewAnalyzer(
		ProviderStrategy{Ref: ProviderRef{Name: "first"}, Provider: first},
		ProviderStrategy{Ref: ProviderRef{Name: "second"}, Provider: second},
		SyntheticStrategy{},
	)
	res, err := a.Analyze(context.Background(), AnalysisRequest{Prompt: "p"})
	require.NoError(t, err)
	require.Equal(t, "from second", res.Result.Summary)
	require.Equal(t, "stub-1", res.Model)
	require.Equal(t, ConfidenceProvider, res.Confidence)
	require.Equal(t, 1, first.calls)
	require.Equal(t, 1, second.calls)
}

func TestAnalyzerAllFailWithoutSynthetic(t *testing.T) {
	a := NewAnalyzer(ProviderStrategy{Ref: ProviderRef{Name: "only"}, Provider: &stubProvider{err: errors.New("bad request")}})
	_, err := a.Analyze(context.Background(), AnalysisRequest{Prompt: "p"})
	require.ErrorIs(t, err, ErrAllProvidersFailed)

	_, err = NewAnalyzer().Analyze(context.Background(), AnalysisRequest{})
	require.ErrorIs(t, err, ErrAllProvidersFailed)
}

func TestManagerSkipsProvidersWithoutKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "g-key")
	m, err := NewManager(config.Config{AIProviders: "openai|anthropic|groq", AISyntheticFallback: true, AITemperature: 0.3, AIMaxTokens: 4000})
	require.NoError(t, err)
	require.Equal(t, 1, m.LLMCount())
	require.Len(t, m.Skipped(), 2)
	require.Equal(t, []string{"groq", "mock"}, m.Analyzer().Strategies())

	_, err = NewManager(config.Config{AIProviders: "nope"})
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestManagerWithNoKeysUsesMock(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	m, err := NewManager(config.Config{AIProviders: "openai|anthropic", AISyntheticFallback: true})
	require.NoError(t, err)
	res, err := m.Analyzer().Analyze(context.Background(), AnalysisRequest{Prompt: "p"})
	require.NoError(t, err)
	require.Equal(t, MockModel, res.Model)
}

func TestProbe(t *testing.T) {
	_, err := Probe(context.Background(), ProbeRequest{Provider: "unknown"})
	require.ErrorIs(t, err, ErrUnsupported)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, float64(10), body["max_tokens"])
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" OK "}}]}`))
	}))
	defer srv.Close()
	p := newChatProvider(groqSpec, "", "k", "")
	p.endpoint = srv.URL
	res := probe(context.Background(), "groq", p)
	require.True(t, res.Success)
	require.Equal(t, "OK", res.Reply)

	missing := probe(context.Background(), "groq", newChatProvider(groqSpec, "", "", ""))
	require.False(t, missing.Success)
	require.NotEmpty(t, missing.Error)
}
