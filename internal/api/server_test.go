package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"iara/internal/approvals"
	"iara/internal/auth"
	"iara/internal/cases"
	"iara/internal/config"
	"iara/internal/models"
	"iara/internal/notify"
	"iara/internal/objects"
	"iara/internal/providers"
	"iara/internal/storage"
)

type memStore struct {
	objects map[string][]byte
}

func (m *memStore) Put(ctx context.Context, filename, contentType string, r io.Reader, size int64) (objects.Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return objects.Object{}, err
	}
	key := objects.NewKey(filename, time.Now())
	m.objects[key] = data
	return objects.Object{Key: key, URL: "https://files.example.com/" + key, Filename: filename, ContentType: contentType, Size: int64(len(data))}, nil
}

func (m *memStore) Remove(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://files.example.com/" + key + "?signed=1", nil
}

type stubProber struct{}

func (stubProber) Probe(ctx context.Context, req providers.ProbeRequest) (providers.ProbeResult, error) {
	if req.Provider != "openai" {
		return providers.ProbeResult{}, fmt.Errorf("%w: %s", providers.ErrUnsupported, req.Provider)
	}
	return providers.ProbeResult{Success: true, Provider: "openai", Model: "gpt-4o-mini", Reply: "OK"}, nil
}

type testEnv struct {
	db      *storage.DB
	handler http.Handler
	store   *memStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := storage.NewDB(ctx, "sqlite://"+filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.EnsureSchema(ctx))

	cfg := config.Config{MaxAttachmentBytes: 1 << 20, MaxExtractBytes: 1 << 16}
	store := &memStore{objects: map[string][]byte{}}
	analyzer := providers.NewAnalyzer(providers.SyntheticStrategy{})
	srv := NewServer(Deps{
		Config:    cfg,
		DB:        db,
		Cases:     cases.NewService(db, analyzer, cases.Options{MaxAttachmentBytes: cfg.MaxAttachmentBytes, Objects: store}),
		Approvals: approvals.NewService(db, approvals.Options{Notifier: notify.LogNotifier{}}),
		Analyzer:  analyzer,
		Prober:    stubProber{},
		Auth:      auth.NewVerifier("test-secret", true, storage.NewProfileRepo(db)),
		Objects:   store,
	})

	require.NoError(t, storage.NewProfileRepo(db).Upsert(ctx, models.Profile{
		UserID: "admin-1", Email: "admin@example.com", Role: models.RoleAdmin, CreatedAt: time.Now().UTC(),
	}))
	return &testEnv{db: db, handler: srv.Routes(), store: store}
}

func (e *testEnv) do(t *testing.T, method, path, user string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(auth.DevBypassHeader, user)
	}
	return e.serve(t, req)
}

func (e *testEnv) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func multipartRequest(t *testing.T, path, user, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(auth.DevBypassHeader, user)
	return req
}

func errorCode(t *testing.T, out map[string]any) string {
	t.Helper()
	require.Equal(t, false, out["success"])
	e, ok := out["error"].(map[string]any)
	require.True(t, ok, "error payload missing: %v", out)
	return e["code"].(string)
}

func createCase(t *testing.T, e *testEnv, user string) string {
	t.Helper()
	rec, out := e.do(t, http.MethodPost, "/create-case", user, map[string]any{
		"title":       "Contract review",
		"description": "Please review attached NDA for risky clauses",
		"attachments": []map[string]any{{
			"filename": "nda.pdf", "file_url": "https://files.example.com/nda.pdf",
			"content_type": "application/pdf", "file_size": 120000,
		}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := out["case"].(map[string]any)
	require.Equal(t, "pending", c["status"])
	return c["id"].(string)
}

func TestCreateProcessAndReadCase(t *testing.T) {
	e := newTestEnv(t)
	id := createCase(t, e, "user-1")

	rec, out := e.do(t, http.MethodPost, "/process-case", "user-1", map[string]any{"caseId": id})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, true, out["success"])
	require.Equal(t, providers.MockModel, out["model_used"])
	require.Equal(t, "completed", out["status"])
	require.InDelta(t, providers.ConfidenceSynthetic, out["confidence"], 1e-9)
	resp := out["response"].(map[string]any)
	require.Len(t, resp["recommendations"], 10)

	rec, out = e.do(t, http.MethodGet, "/get-cases?caseId="+id, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	c := out["case"].(map[string]any)
	require.Equal(t, "completed", c["status"])
	require.Len(t, c["attachments"], 1)
	require.Len(t, c["ai_responses"], 1)

	rec, out = e.do(t, http.MethodGet, "/get-cases", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := out["cases"].([]any)
	require.Len(t, list, 1)
	require.EqualValues(t, 1, list[0].(map[string]any)["response_count"])

	rec, out = e.do(t, http.MethodPost, "/process-case", "user-1", map[string]any{"caseId": id})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "IARA-API-4009", errorCode(t, out))
}

func TestCreateCaseValidation(t *testing.T) {
	e := newTestEnv(t)

	rec, out := e.do(t, http.MethodPost, "/create-case", "user-1", map[string]any{"title": "ab", "description": "long enough text"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "IARA-API-4001", errorCode(t, out))
	require.Contains(t, out["error"].(map[string]any)["message"], "title")

	rec, out = e.do(t, http.MethodPost, "/create-case", "user-1", map[string]any{
		"title": "Contract review", "description": "Please review attached NDA",
		"attachments": []map[string]any{{"filename": "a.exe", "file_url": "u", "content_type": "application/x-msdownload", "file_size": 10}},
	})
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	require.Equal(t, "IARA-API-4015", errorCode(t, out))

	rec, out = e.do(t, http.MethodPost, "/create-case", "user-1", map[string]any{
		"title": "Contract review", "description": "Please review attached NDA",
		"attachments": []map[string]any{{"filename": "a.pdf", "file_url": "u", "content_type": "application/pdf", "file_size": 2 << 20}},
	})
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Equal(t, "IARA-API-4013", errorCode(t, out))

	rec, out = e.do(t, http.MethodGet, "/get-cases", "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, out["cases"])
}

func TestCreateCaseAcceptsURLField(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/create-case", strings.NewReader(`{
		"title": "Contract review",
		"description": "Please review attached NDA for risky clauses",
		"attachments": [{"filename": "nda.pdf", "content_type": "application/pdf", "file_size": 120000, "url": "https://store/abc.pdf"}]
	}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.DevBypassHeader, "user-1")
	rec, out := e.serve(t, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := out["case"].(map[string]any)
	require.Equal(t, "pending", c["status"])
	atts := c["attachments"].([]any)
	require.Len(t, atts, 1)
	require.Equal(t, "https://store/abc.pdf", atts[0].(map[string]any)["file_url"])

	rec, out = e.do(t, http.MethodPost, "/process-case", "user-1", map[string]any{"caseId": c["id"]})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, providers.MockModel, out["model_used"])
	require.Equal(t, "completed", out["status"])
}

func TestAuthenticationAndScoping(t *testing.T) {
	e := newTestEnv(t)

	rec, out := e.do(t, http.MethodGet, "/get-cases", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "IARA-AUTH-4011", errorCode(t, out))

	id := createCase(t, e, "user-1")
	rec, _ = e.do(t, http.MethodGet, "/get-cases?caseId="+id, "user-2", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = e.do(t, http.MethodGet, "/get-cases?caseId="+id, "admin-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = e.do(t, http.MethodDelete, "/cases/"+id, "user-2", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = e.do(t, http.MethodDelete, "/cases/"+id, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = e.do(t, http.MethodGet, "/cases/"+id, "user-1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = e.do(t, http.MethodGet, "/create-case", "user-1", nil)
	require.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUploadThenCreate(t *testing.T) {
	e := newTestEnv(t)

	rec, out := e.serve(t, multipartRequest(t, "/upload", "user-1", "notes.txt", "text/plain; charset=utf-8", []byte("case notes")))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	file := out["file"].(map[string]any)
	require.Equal(t, "text/plain", file["content_type"])
	require.EqualValues(t, 10, file["file_size"])
	key := file["storage_key"].(string)
	require.Contains(t, e.store.objects, key)

	rec, out = e.do(t, http.MethodPost, "/create-case", "user-1", map[string]any{
		"title": "Lease dispute", "description": "Landlord withheld the deposit",
		"attachments": []any{file},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := out["case"].(map[string]any)["id"].(string)

	rec, out = e.do(t, http.MethodGet, "/cases/"+id, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	atts := out["case"].(map[string]any)["attachments"].([]any)
	require.Len(t, atts, 1)
	require.Equal(t, "https://files.example.com/"+key+"?signed=1", atts[0].(map[string]any)["signed_url"])

	rec, _ = e.do(t, http.MethodDelete, "/cases/"+id, "user-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, e.store.objects, key)

	rec, out = e.serve(t, multipartRequest(t, "/upload", "user-1", "tool.exe", "application/x-msdownload", []byte("MZ")))
	require.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	require.Equal(t, "IARA-API-4015", errorCode(t, out))
}

func TestFileProcessing(t *testing.T) {
	e := newTestEnv(t)

	rec, out := e.serve(t, multipartRequest(t, "/file-processing", "user-1", "notes.txt", "text/plain", []byte("hello  world")))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "text", out["kind"])
	require.Equal(t, false, out["placeholder"])

	rec, out = e.serve(t, multipartRequest(t, "/file-processing", "user-1", "scan.png", "image/png", []byte{0x89, 'P', 'N', 'G'}))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, out["placeholder"])
	require.Contains(t, out["text"], providers.MarkerImage)

	rec, out = e.serve(t, multipartRequest(t, "/file-processing", "user-1", "big.txt", "text/plain", bytes.Repeat([]byte("a"), 1<<17)))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Equal(t, "IARA-API-4013", errorCode(t, out))
}

func TestAIAnalysisAndProbe(t *testing.T) {
	e := newTestEnv(t)

	rec, out := e.do(t, http.MethodPost, "/ai-analysis", "user-1", map[string]any{
		"prompt": "Summarise the dispute",
		"files":  []map[string]any{{"name": "a.pdf", "type": "application/pdf", "content": providers.MarkerPDF + " a.pdf"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, providers.MockModel, out["model_used"])
	require.Equal(t, true, out["synthetic"])

	rec, _ = e.do(t, http.MethodPost, "/ai-analysis", "user-1", map[string]any{"prompt": " "})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = e.do(t, http.MethodPost, "/test-ai-connection", "user-1", map[string]any{"provider": "openai"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, out = e.do(t, http.MethodPost, "/test-ai-connection", "admin-1", map[string]any{"provider": "openai", "apiKey": "k"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, true, out["success"])

	rec, _ = e.do(t, http.MethodPost, "/test-ai-connection", "admin-1", map[string]any{"provider": "palm"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApprovalFlow(t *testing.T) {
	e := newTestEnv(t)

	rec, out := e.do(t, http.MethodPost, "/request-approval", "user-1", map[string]any{"full_name": "Ada", "email": "ada@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, true, out["created"])

	rec, out = e.do(t, http.MethodPost, "/request-approval", "user-1", map[string]any{"full_name": "Ada"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, false, out["created"])

	// chunked request without a body
	req := httptest.NewRequest(http.MethodPost, "/request-approval", http.NoBody)
	req.ContentLength = -1
	req.Header.Set(auth.DevBypassHeader, "user-2")
	rec, out = e.serve(t, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, true, out["created"])

	rec, _ = e.do(t, http.MethodPost, "/approve-user", "user-1", map[string]any{"userId": "user-1", "action": "approve"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, out = e.do(t, http.MethodGet, "/admin/approvals?status=pending", "admin-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, out["approvals"], 1)

	rec, out = e.do(t, http.MethodGet, "/approve-user?userId=user-1&action=approve", "admin-1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "approved", out["approval"].(map[string]any)["status"])

	rec, out = e.do(t, http.MethodPost, "/approve-user", "admin-1", map[string]any{"userId": "user-1", "action": "reject"})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "IARA-API-4009", errorCode(t, out))

	rec, _ = e.do(t, http.MethodPost, "/approve-user", "admin-1", map[string]any{"userId": "nobody", "action": "approve"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminSurface(t *testing.T) {
	e := newTestEnv(t)
	id := createCase(t, e, "user-1")
	rec, _ := e.do(t, http.MethodPost, "/process-case", "user-1", map[string]any{"caseId": id})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = e.do(t, http.MethodGet, "/admin/logs", "user-1", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec, out := e.do(t, http.MethodGet, "/admin/logs?caseId="+id, "admin-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	logs := out["logs"].([]any)
	require.Len(t, logs, 1)
	require.Equal(t, "completed", logs[0].(map[string]any)["status"])

	rec, _ = e.do(t, http.MethodGet, "/admin/logs?limit=x", "admin-1", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out = e.do(t, http.MethodGet, "/admin/cases", "admin-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, out["cases"], 1)

	rec, _ = e.do(t, http.MethodPut, "/admin/settings", "admin-1", map[string]any{"key": storage.SettingDefaultPrompt, "value": "Focus on liability."})
	require.Equal(t, http.StatusOK, rec.Code)
	rec, out = e.do(t, http.MethodGet, "/admin/settings", "admin-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, out["settings"], 1)

	rec, _ = e.do(t, http.MethodPost, "/admin/users/role", "admin-1", map[string]any{"userId": "admin-1", "role": "owner"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec, out = e.do(t, http.MethodGet, "/admin/users", "admin-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, out["users"], 1)
}

func TestMiddleware(t *testing.T) {
	e := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/create-case", nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Len(t, rec.Header().Get(requestIDHeader), 26)

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "req-1")
	rec = httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "req-1", rec.Header().Get(requestIDHeader))

	h := withRecover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "IARA-API-5000")
}
