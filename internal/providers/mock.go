package providers

import (
	"context"
	"fmt"
	"strings"
)

const (
	MockProviderName = "mock"
	MockModel        = "mock-ai"
)

// Type markers lead extraction placeholders and are what the synthetic report counts.
const (
	MarkerPDF   = "[PDF]"
	MarkerDOC   = "[DOC]"
	MarkerImage = "[IMAGE]"
)

var syntheticRecommendations = []string{
	"Engage a licensed attorney to validate these preliminary observations.",
	"Collect and index every document related to the case in one place.",
	"Build a timeline of the key events, dates and deadlines.",
	"Identify all parties and their obligations under each document.",
	"Check limitation periods and contractual notice requirements.",
	"Flag ambiguous clauses for clarification or renegotiation.",
	"Preserve original copies and correspondence as potential evidence.",
	"Estimate the financial exposure associated with each identified risk.",
	"Consider alternative dispute resolution before litigation.",
	"Re-run the analysis once an AI provider is configured for a detailed review.",
}

type fileCounts struct {
	pdf, doc, image, other int
}

func countFiles(files []FileContext) fileCounts {
	var c fileCounts
	for _, f := range files {
		content := strings.TrimSpace(f.Content)
		typ := strings.ToLower(f.Type)
		switch {
		case strings.HasPrefix(content, MarkerPDF), strings.Contains(typ, "pdf"):
			c.pdf++
		case strings.HasPrefix(content, MarkerDOC), strings.Contains(typ, "word"), strings.Contains(typ, "msword"):
			c.doc++
		case strings.HasPrefix(content, MarkerImage), strings.HasPrefix(typ, "image/"):
			c.image++
		default:
			c.other++
		}
	}
	return c
}

// SyntheticAnalysis builds the deterministic report used when no provider answers.
// Identical file markers always produce an identical result.
func SyntheticAnalysis(files []FileContext) AnalysisResult {
	c := countFiles(files)
	total := len(files)

	summary := fmt.Sprintf("Preliminary automated review of %d document(s): %d PDF, %d Word, %d image and %d other file(s). "+
		"No AI provider was available, so this report is based on document metadata only.", total, c.pdf, c.doc, c.image, c.other)

	var b strings.Builder
	b.WriteString("Document inventory\n")
	fmt.Fprintf(&b, "The case contains %d document(s). ", total)
	if c.pdf > 0 {
		fmt.Fprintf(&b, "%d PDF document(s) were identified and typically hold contracts, filings or correspondence. ", c.pdf)
	}
	if c.doc > 0 {
		fmt.Fprintf(&b, "%d Word document(s) were identified and may contain drafts that are still under negotiation. ", c.doc)
	}
	if c.image > 0 {
		fmt.Fprintf(&b, "%d image(s) were identified and may serve as photographic or scanned evidence. ", c.image)
	}
	if c.other > 0 {
		fmt.Fprintf(&b, "%d other file(s) were identified. ", c.other)
	}
	if total == 0 {
		b.WriteString("No supporting documents were attached, so the review relies on the case description alone. ")
	}
	b.WriteString("\n\nPreliminary assessment\n")
	b.WriteString("The submitted material should be reviewed for the parties involved, their obligations, relevant dates and any clauses that limit liability or impose penalties. ")
	b.WriteString("Where documents are scanned images, their text must be verified manually.")
	b.WriteString("\n\nNext steps\n")
	b.WriteString("A full review requires an AI provider or a legal professional. The recommendations below outline a standard intake checklist.")

	return AnalysisResult{
		Summary:         summary,
		Analysis:        b.String(),
		Recommendations: append([]string(nil), syntheticRecommendations...),
	}
}

// SyntheticStrategy always succeeds and terminates every provider chain.
type SyntheticStrategy struct{}

func (SyntheticStrategy) Name() string { return MockProviderName }

func (SyntheticStrategy) Analyze(_ context.Context, req AnalysisRequest) (Analysis, error) {
	return Analysis{
		Result:     SyntheticAnalysis(req.Files),
		Provider:   MockProviderName,
		Model:      MockModel,
		Confidence: ConfidenceSynthetic,
		Synthetic:  true,
	}, nil
}
