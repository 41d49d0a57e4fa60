package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"iara/internal/approvals"
	"iara/internal/auth"
	"iara/internal/cases"
	"iara/internal/config"
	"iara/internal/extract"
	"iara/internal/models"
	"iara/internal/objects"
	"iara/internal/providers"
	"iara/internal/storage"
)

const maxJSONBody = 1 << 20

// CaseProcessor runs one processing attempt. cases.Service does it inline and
// workflows.Runner does it through Temporal.
type CaseProcessor interface {
	ProcessCase(ctx context.Context, p models.Principal, caseID, instructions string) (cases.ProcessResult, error)
}

type analyzer interface {
	Analyze(ctx context.Context, req providers.AnalysisRequest) (providers.Analysis, error)
}

type prober interface {
	Probe(ctx context.Context, req providers.ProbeRequest) (providers.ProbeResult, error)
}

type Deps struct {
	Config    config.Config
	DB        *storage.DB
	Cases     *cases.Service
	Processor CaseProcessor
	Approvals *approvals.Service
	Analyzer  analyzer
	Prober    prober
	Auth      *auth.Verifier
	Objects   objects.Store
	Extractor *extract.Extractor
}

type Server struct {
	cfg       config.Config
	db        *storage.DB
	cases     *cases.Service
	processor CaseProcessor
	approvals *approvals.Service
	analyzer  analyzer
	prober    prober
	auth      *auth.Verifier
	objects   objects.Store
	extractor *extract.Extractor
	logs      *storage.ProcessingLogRepo
	settings  *storage.SettingsRepo
}

func NewServer(d Deps) *Server {
	s := &Server{
		cfg:       d.Config,
		db:        d.DB,
		cases:     d.Cases,
		processor: d.Processor,
		approvals: d.Approvals,
		analyzer:  d.Analyzer,
		prober:    d.Prober,
		auth:      d.Auth,
		objects:   d.Objects,
		extractor: d.Extractor,
		logs:      storage.NewProcessingLogRepo(d.DB),
		settings:  storage.NewSettingsRepo(d.DB),
	}
	if s.processor == nil {
		s.processor = d.Cases
	}
	if s.extractor == nil {
		s.extractor = extract.New(d.Config.MaxExtractBytes)
	}
	return s
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)

	mux.HandleFunc("/create-case", s.handleCreateCase)
	mux.HandleFunc("/process-case", s.handleProcessCase)
	mux.HandleFunc("/get-cases", s.handleGetCases)
	mux.HandleFunc("/cases/", s.handleCaseScoped)
	mux.HandleFunc("/upload", s.handleUpload)

	mux.HandleFunc("/request-approval", s.handleRequestApproval)
	mux.HandleFunc("/approve-user", s.handleApproveUser)

	mux.HandleFunc("/ai-analysis", s.handleAIAnalysis)
	mux.HandleFunc("/test-ai-connection", s.handleTestAIConnection)
	mux.HandleFunc("/file-processing", s.handleFileProcessing)

	mux.HandleFunc("/admin/users", s.handleAdminUsers)
	mux.HandleFunc("/admin/users/role", s.handleAdminUserRole)
	mux.HandleFunc("/admin/approvals", s.handleAdminApprovals)
	mux.HandleFunc("/admin/cases", s.handleAdminCases)
	mux.HandleFunc("/admin/logs", s.handleAdminLogs)
	mux.HandleFunc("/admin/settings", s.handleAdminSettings)
	return withRequestLog(withRecover(withCORS(mux)))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeErr(w, http.StatusServiceUnavailable, fmt.Errorf("database ping: %w", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// principal authenticates the request and writes the failure itself.
func (s *Server) principal(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, err := s.auth.FromRequest(r)
	if err != nil {
		writeFail(w, err)
		return models.Principal{}, false
	}
	return p, true
}

func (s *Server) admin(w http.ResponseWriter, r *http.Request) (models.Principal, bool) {
	p, ok := s.principal(w, r)
	if !ok {
		return p, false
	}
	if !p.IsAdmin() {
		writeFail(w, fmt.Errorf("%w: admin role required", cases.ErrForbidden))
		return p, false
	}
	return p, true
}

func allowMethod(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	writeFail(w, fmt.Errorf("%w: %s", errMethodNotAllowed, r.Method))
	return false
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(v); err != nil {
		return badRequest("invalid json: %v", err)
	}
	return nil
}
