package providers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"iara/internal/config"
)

// Strategy is one step of the analysis chain: it either produces an Analysis or fails.
type Strategy interface {
	Name() string
	Analyze(ctx context.Context, req AnalysisRequest) (Analysis, error)
}

// ProviderStrategy asks an LLM provider for a JSON report and parses the reply.
type ProviderStrategy struct {
	Ref         ProviderRef
	Provider    LLMProvider
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

func (s ProviderStrategy) Name() string {
	if s.Ref.Raw != "" {
		return s.Ref.Raw
	}
	return s.Ref.Name
}

func (s ProviderStrategy) Analyze(ctx context.Context, req AnalysisRequest) (Analysis, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	system := strings.TrimSpace(req.Instructions)
	if system == "" {
		system = DefaultInstructions
	}
	gen := GenerateRequest{
		Operation:   "case_analysis",
		System:      system,
		Prompt:      req.Prompt,
		Context:     fileContext(req.Files),
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
	}
	resp, info, err := s.Provider.Generate(ctx, gen)
	if err != nil {
		return Analysis{}, err
	}
	return Analysis{
		Result:     ParseAnalysis(resp.Text),
		Provider:   info.Name,
		Model:      info.Model,
		Raw:        resp.Text,
		Confidence: ConfidenceProvider,
	}, nil
}

func fileContext(files []FileContext) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		head := fmt.Sprintf("Document: %s (%s)", f.Name, f.Type)
		if strings.TrimSpace(f.Content) == "" {
			out = append(out, head)
			continue
		}
		out = append(out, head+"\n"+f.Content)
	}
	return out
}

// Analyzer runs strategies in order and returns the first success.
type Analyzer struct {
	strategies []Strategy
}

func NewAnalyzer(strategies ...Strategy) *Analyzer {
	return &Analyzer{strategies: strategies}
}

func (a *Analyzer) Strategies() []string {
	out := make([]string, 0, len(a.strategies))
	for _, s := range a.strategies {
		out = append(out, s.Name())
	}
	return out
}

func (a *Analyzer) Analyze(ctx context.Context, req AnalysisRequest) (Analysis, error) {
	var errs []error
	for _, s := range a.strategies {
		res, err := s.Analyze(ctx, req)
		if err == nil {
			return res, nil
		}
		log.Printf("ai provider=%s failed class=%s err=%v", s.Name(), ClassifyError(err), err)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return Analysis{}, fmt.Errorf("%w: no providers configured", ErrAllProvidersFailed)
	}
	return Analysis{}, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

type NamedLLMProvider struct {
	Ref      ProviderRef
	Provider LLMProvider
}

type Manager struct {
	llmProviders []NamedLLMProvider
	skipped      []ProviderRef
	synthetic    bool
	temperature  float64
	maxTokens    int
	timeout      time.Duration
}

// NewManager builds the provider chain from cfg.AIProviders. Providers without a
// configured key are skipped so the chain only holds callable entries.
func NewManager(cfg config.Config) (*Manager, error) {
	m := &Manager{
		synthetic:   cfg.AISyntheticFallback,
		temperature: cfg.AITemperature,
		maxTokens:   cfg.AIMaxTokens,
		timeout:     cfg.AITimeout,
	}
	for _, ref := range ParseProviderList(cfg.AIProviders) {
		if strings.EqualFold(ref.Name, MockProviderName) {
			m.synthetic = true
			continue
		}
		p, err := buildProvider(ref)
		if err != nil {
			return nil, err
		}
		if k, ok := p.(keyed); ok && !k.HasKey() {
			m.skipped = append(m.skipped, ref)
			continue
		}
		m.llmProviders = append(m.llmProviders, NamedLLMProvider{Ref: ref, Provider: p})
	}
	return m, nil
}

func (m *Manager) LLMCount() int {
	return len(m.llmProviders)
}

func (m *Manager) ProviderRefs() []ProviderRef {
	out := make([]ProviderRef, 0, len(m.llmProviders))
	for i := range m.llmProviders {
		out = append(out, m.llmProviders[i].Ref)
	}
	return out
}

func (m *Manager) Skipped() []ProviderRef {
	return m.skipped
}

// Analyzer returns the ordered chain, ending with the synthetic report when enabled.
func (m *Manager) Analyzer() *Analyzer {
	strategies := make([]Strategy, 0, len(m.llmProviders)+1)
	for _, p := range m.llmProviders {
		strategies = append(strategies, ProviderStrategy{
			Ref:         p.Ref,
			Provider:    p.Provider,
			Temperature: m.temperature,
			MaxTokens:   m.maxTokens,
			Timeout:     m.timeout,
		})
	}
	if m.synthetic {
		strategies = append(strategies, SyntheticStrategy{})
	}
	return NewAnalyzer(strategies...)
}

func (m *Manager) FindLLMProviderByName(name string) (LLMProvider, ProviderRef, bool) {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" {
		return nil, ProviderRef{}, false
	}
	for i := range m.llmProviders {
		if strings.ToLower(m.llmProviders[i].Ref.Name) == target {
			return m.llmProviders[i].Provider, m.llmProviders[i].Ref, true
		}
	}
	return nil, ProviderRef{}, false
}

func buildProvider(ref ProviderRef) (LLMProvider, error) {
	switch strings.ToLower(ref.Name) {
	case "openai":
		return NewOpenAIProvider(ref.KeyAlias), nil
	case "anthropic":
		return NewAnthropicProvider(ref.KeyAlias), nil
	case "openrouter":
		return NewOpenRouterProvider(ref.KeyAlias), nil
	case "deepseek":
		return NewDeepSeekProvider(ref.KeyAlias), nil
	case "groq":
		return NewGroqProvider(ref.KeyAlias), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ref.Name)
	}
}
