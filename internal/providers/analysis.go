package providers

import (
	"encoding/json"
	"regexp"
)

const (
	ConfidenceProvider  = 0.85
	ConfidenceSynthetic = 0.60

	summaryLimit = 500
)

// DefaultInstructions is sent as the system prompt when neither the caller nor the
// ai.default_prompt setting supplies one.
const DefaultInstructions = `You are a legal document analysis assistant. Review the case and its documents and reply with a single JSON object of the form {"summary": string, "analysis": string, "recommendations": [string]}. Do not include any text outside the JSON object.`

// FileContext describes one document handed to the analysis. Content may be empty
// when only metadata is known.
type FileContext struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

type AnalysisRequest struct {
	Instructions string        `json:"instructions,omitempty"`
	Prompt       string        `json:"prompt"`
	Files        []FileContext `json:"files,omitempty"`
}

type AnalysisResult struct {
	Summary         string   `json:"summary"`
	Analysis        string   `json:"analysis"`
	Recommendations []string `json:"recommendations"`
}

// Analysis is a result plus where it came from.
type Analysis struct {
	Result     AnalysisResult `json:"result"`
	Provider   string         `json:"provider"`
	Model      string         `json:"model"`
	Raw        string         `json:"raw,omitempty"`
	Confidence float64        `json:"confidence"`
	Synthetic  bool           `json:"synthetic"`
}

var jsonSpan = regexp.MustCompile(`(?s)\{.*\}`)

var genericRecommendations = []string{
	"Have a qualified legal professional review the full analysis before acting on it.",
	"Confirm that every referenced document is complete, signed and current.",
	"Record the deadlines and follow-up actions identified in this analysis.",
}

// ParseAnalysis extracts the first greedy {...} span of a model reply and decodes it.
// Replies without a decodable object are kept as prose.
func ParseAnalysis(reply string) AnalysisResult {
	if span := jsonSpan.FindString(reply); span != "" {
		var out AnalysisResult
		if err := json.Unmarshal([]byte(span), &out); err == nil {
			if out.Recommendations == nil {
				out.Recommendations = []string{}
			}
			return out
		}
	}
	return AnalysisResult{
		Summary:         truncateRunes(reply, summaryLimit) + "...",
		Analysis:        reply,
		Recommendations: append([]string(nil), genericRecommendations...),
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
