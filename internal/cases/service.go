package cases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"iara/internal/models"
	"iara/internal/providers"
	"iara/internal/storage"
)

// Analyzer produces a case analysis; providers.Analyzer is the production implementation.
type Analyzer interface {
	Analyze(ctx context.Context, req providers.AnalysisRequest) (providers.Analysis, error)
}

type objectRemover interface {
	Remove(ctx context.Context, key string) error
}

type Options struct {
	MaxAttachmentBytes int64
	Objects            objectRemover
	Now                func() time.Time
}

type Service struct {
	cases    *storage.CaseRepo
	settings *storage.SettingsRepo
	analyzer Analyzer
	objects  objectRemover
	maxBytes int64
	now      func() time.Time
}

func NewService(db *storage.DB, analyzer Analyzer, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		cases:    storage.NewCaseRepo(db),
		settings: storage.NewSettingsRepo(db),
		analyzer: analyzer,
		objects:  opts.Objects,
		maxBytes: opts.MaxAttachmentBytes,
		now:      now,
	}
}

// ProcessResult is what a completed processing call returns to the caller.
type ProcessResult struct {
	CaseID           string                   `json:"case_id"`
	Status           models.CaseStatus        `json:"status"`
	ResponseID       string                   `json:"response_id"`
	Response         providers.AnalysisResult `json:"response"`
	ModelUsed        string                   `json:"model_used"`
	ProcessingTimeMS int64                    `json:"processing_time"`
	Confidence       float64                  `json:"confidence"`
}

// CreateCase validates the input and stores a pending case owned by p together with
// its attachments. Nothing is written when validation fails.
func (s *Service) CreateCase(ctx context.Context, p models.Principal, in CreateCaseInput) (models.CaseDetail, error) {
	if p.UserID == "" {
		return models.CaseDetail{}, fmt.Errorf("%w: missing owner", ErrForbidden)
	}
	if err := in.Validate(s.maxBytes); err != nil {
		return models.CaseDetail{}, err
	}
	now := s.now()
	c := models.Case{
		ID:          uuid.NewString(),
		OwnerID:     p.UserID,
		Title:       in.Title,
		Description: in.Description,
		Status:      models.CaseStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	atts := make([]models.Attachment, 0, len(in.Attachments))
	for _, a := range in.Attachments {
		atts = append(atts, models.Attachment{
			ID:          uuid.NewString(),
			CaseID:      c.ID,
			Filename:    a.Filename,
			URL:         a.URL,
			StorageKey:  a.StorageKey,
			ContentType: a.ContentType,
			FileSize:    a.FileSize,
			CreatedAt:   now,
		})
	}
	if err := s.cases.CreateCase(ctx, c, atts); err != nil {
		return models.CaseDetail{}, err
	}
	log.Printf("case created case_id=%s owner=%s attachments=%d", c.ID, c.OwnerID, len(atts))
	return models.CaseDetail{Case: c, Attachments: atts, Responses: []models.AIResponse{}}, nil
}

// load returns the case if p may see it. Other owners get ErrNotFound.
func (s *Service) load(ctx context.Context, p models.Principal, caseID string) (models.Case, error) {
	if strings.TrimSpace(caseID) == "" {
		return models.Case{}, validationf("caseId is required")
	}
	c, err := s.cases.GetCase(ctx, caseID)
	if err != nil {
		return models.Case{}, fromStore(err)
	}
	if c.OwnerID != p.UserID && !p.IsAdmin() {
		return models.Case{}, fmt.Errorf("%w: case %s", ErrNotFound, caseID)
	}
	return c, nil
}

func (s *Service) GetCase(ctx context.Context, p models.Principal, caseID string) (models.CaseDetail, error) {
	c, err := s.load(ctx, p, caseID)
	if err != nil {
		return models.CaseDetail{}, err
	}
	atts, err := s.cases.ListAttachments(ctx, c.ID)
	if err != nil {
		return models.CaseDetail{}, err
	}
	resps, err := s.cases.ListResponses(ctx, c.ID)
	if err != nil {
		return models.CaseDetail{}, err
	}
	return models.CaseDetail{Case: c, Attachments: atts, Responses: resps}, nil
}

// ListCases lists the caller's own cases, newest first.
func (s *Service) ListCases(ctx context.Context, p models.Principal) ([]models.CaseSummary, error) {
	if p.UserID == "" {
		return []models.CaseSummary{}, nil
	}
	return s.cases.ListCaseSummaries(ctx, p.UserID)
}

// ListAllCases is the administrative view across every owner.
func (s *Service) ListAllCases(ctx context.Context, p models.Principal) ([]models.CaseSummary, error) {
	if !p.IsAdmin() {
		return nil, fmt.Errorf("%w: admin role required", ErrForbidden)
	}
	return s.cases.ListCaseSummaries(ctx, "")
}

// DeleteCase hard-deletes the case. Stored objects are removed best effort.
func (s *Service) DeleteCase(ctx context.Context, p models.Principal, caseID string) error {
	if _, err := s.load(ctx, p, caseID); err != nil {
		return err
	}
	keys, err := s.cases.DeleteCase(ctx, caseID)
	if err != nil {
		return fromStore(err)
	}
	if s.objects != nil {
		for _, k := range keys {
			if err := s.objects.Remove(ctx, k); err != nil {
				log.Printf("case delete object cleanup failed case_id=%s key=%s err=%v", caseID, k, err)
			}
		}
	}
	log.Printf("case deleted case_id=%s by=%s", caseID, p.UserID)
	return nil
}

// Claim moves the case from pending to processing. Only one caller can win.
func (s *Service) Claim(ctx context.Context, p models.Principal, caseID string) (models.Case, error) {
	c, err := s.load(ctx, p, caseID)
	if err != nil {
		return models.Case{}, err
	}
	now := s.now()
	if err := s.cases.ClaimForProcessing(ctx, c.ID, now); err != nil {
		return models.Case{}, fromStore(err)
	}
	c.Status = models.CaseStatusProcessing
	c.UpdatedAt = now
	return c, nil
}

// Analyze runs the analysis chain for a claimed case. Only attachment metadata is
// sent; instructions fall back to the ai.default_prompt setting.
func (s *Service) Analyze(ctx context.Context, c models.Case, instructions string) (providers.Analysis, error) {
	atts, err := s.cases.ListAttachments(ctx, c.ID)
	if err != nil {
		return providers.Analysis{}, err
	}
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		instructions = s.defaultPrompt(ctx)
	}
	files := make([]providers.FileContext, 0, len(atts))
	for _, a := range atts {
		files = append(files, providers.FileContext{Name: a.Filename, Type: a.ContentType})
	}
	res, err := s.analyzer.Analyze(ctx, providers.AnalysisRequest{
		Instructions: instructions,
		Prompt:       BuildPrompt(c, atts),
		Files:        files,
	})
	if err != nil {
		return providers.Analysis{}, fmt.Errorf("%w: %v", ErrUpstreamProvider, err)
	}
	return res, nil
}

func (s *Service) defaultPrompt(ctx context.Context) string {
	v, err := s.settings.Get(ctx, storage.SettingDefaultPrompt)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Printf("read default prompt failed err=%v", err)
		}
		return ""
	}
	return v
}

// Complete records the response and one completed log row, and finishes the case.
func (s *Service) Complete(ctx context.Context, c models.Case, userID string, a providers.Analysis, elapsed time.Duration) (ProcessResult, error) {
	text, err := json.Marshal(a.Result)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("encode analysis: %w", err)
	}
	raw := a.Raw
	if raw == "" {
		raw = string(text)
	}
	now := s.now()
	ms := elapsed.Milliseconds()
	resp := models.AIResponse{
		ID:               uuid.NewString(),
		CaseID:           c.ID,
		ResponseText:     string(text),
		ModelUsed:        a.Model,
		ProcessingTimeMS: ms,
		Confidence:       a.Confidence,
		CreatedAt:        now,
	}
	entry := models.ProcessingLog{
		ID:               uuid.NewString(),
		CaseID:           c.ID,
		UserID:           userID,
		Status:           models.LogStatusCompleted,
		AIResponse:       raw,
		ModelUsed:        a.Model,
		ProcessingTimeMS: ms,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.cases.CompleteProcessing(ctx, resp, entry); err != nil {
		return ProcessResult{}, fromStore(err)
	}
	log.Printf("case processed case_id=%s model=%s provider=%s elapsed_ms=%d", c.ID, a.Model, a.Provider, ms)
	return ProcessResult{
		CaseID:           c.ID,
		Status:           models.CaseStatusCompleted,
		ResponseID:       resp.ID,
		Response:         a.Result,
		ModelUsed:        a.Model,
		ProcessingTimeMS: ms,
		Confidence:       a.Confidence,
	}, nil
}

// Fail marks the case failed and records why.
func (s *Service) Fail(ctx context.Context, c models.Case, userID string, cause error, elapsed time.Duration) error {
	now := s.now()
	msg := "processing failed"
	if cause != nil {
		msg = cause.Error()
	}
	code := string(providers.ClassifyError(cause))
	if code == "" {
		code = string(providers.ErrorPermanent)
	}
	entry := models.ProcessingLog{
		ID:               uuid.NewString(),
		CaseID:           c.ID,
		UserID:           userID,
		Status:           models.LogStatusFailed,
		ErrorCode:        code,
		ErrorMessage:     msg,
		ProcessingTimeMS: elapsed.Milliseconds(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.cases.FailProcessing(ctx, entry); err != nil {
		return fromStore(err)
	}
	log.Printf("case failed case_id=%s code=%s err=%s", c.ID, code, msg)
	return nil
}

// ProcessCase claims, analyses and finishes the case in one call. No retry is
// attempted; an analysis failure leaves the case failed and is returned.
func (s *Service) ProcessCase(ctx context.Context, p models.Principal, caseID, instructions string) (ProcessResult, error) {
	c, err := s.Claim(ctx, p, caseID)
	if err != nil {
		return ProcessResult{}, err
	}
	start := time.Now()
	a, err := s.Analyze(ctx, c, instructions)
	if err != nil {
		// the claim already happened, so the failure must still be recorded
		if ferr := s.Fail(context.WithoutCancel(ctx), c, p.UserID, err, time.Since(start)); ferr != nil {
			return ProcessResult{}, errors.Join(err, ferr)
		}
		return ProcessResult{}, err
	}
	res, err := s.Complete(ctx, c, p.UserID, a, time.Since(start))
	if err != nil {
		if ferr := s.Fail(context.WithoutCancel(ctx), c, p.UserID, err, time.Since(start)); ferr != nil {
			log.Printf("case fail after complete error case_id=%s err=%v", c.ID, ferr)
		}
		return ProcessResult{}, err
	}
	return res, nil
}

// BuildPrompt embeds the title, description and attachment metadata. Attachment
// contents are never fetched here.
func BuildPrompt(c models.Case, atts []models.Attachment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Case title: %s\n\n", c.Title)
	fmt.Fprintf(&b, "Case description:\n%s\n\n", c.Description)
	fmt.Fprintf(&b, "Attachments (%d):\n", len(atts))
	if len(atts) == 0 {
		b.WriteString("none\n")
	}
	for i, a := range atts {
		fmt.Fprintf(&b, "%d. %s (%s, %d bytes)\n", i+1, a.Filename, a.ContentType, a.FileSize)
	}
	b.WriteString("\nProvide a summary, a detailed legal analysis and a list of concrete recommendations.")
	return b.String()
}
