package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"iara/internal/cases"
	"iara/internal/models"
)

func (s *Server) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var in cases.CreateCaseInput
	if err := decodeJSON(r, &in); err != nil {
		writeFail(w, err)
		return
	}
	detail, err := s.cases.CreateCase(r.Context(), p, in)
	if err != nil {
		writeFail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "case": detail})
}

func (s *Server) handleProcessCase(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	var req struct {
		CaseID string `json:"caseId"`
		Prompt string `json:"prompt"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFail(w, err)
		return
	}
	req.CaseID = strings.TrimSpace(req.CaseID)
	if req.CaseID == "" {
		writeFail(w, badRequest("caseId is required"))
		return
	}
	res, err := s.processor.ProcessCase(r.Context(), p, req.CaseID, req.Prompt)
	if err != nil {
		writeFail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		cases.ProcessResult
	}{true, res})
}

func (s *Server) handleGetCases(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	if id := strings.TrimSpace(r.URL.Query().Get("caseId")); id != "" {
		detail, err := s.cases.GetCase(r.Context(), p, id)
		if err != nil {
			writeFail(w, err)
			return
		}
		s.signAttachments(r.Context(), &detail)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "case": detail})
		return
	}
	list, err := s.cases.ListCases(r.Context(), p)
	if err != nil {
		writeFail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "cases": list})
}

// handleCaseScoped serves /cases/{id}.
func (s *Server) handleCaseScoped(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/cases/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	p, ok := s.principal(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		detail, err := s.cases.GetCase(r.Context(), p, id)
		if err != nil {
			writeFail(w, err)
			return
		}
		s.signAttachments(r.Context(), &detail)
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "case": detail})
	case http.MethodDelete:
		if err := s.cases.DeleteCase(r.Context(), p, id); err != nil {
			writeFail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "case_id": id})
	default:
		writeFail(w, fmt.Errorf("%w: %s", errMethodNotAllowed, r.Method))
	}
}

// signAttachments adds a short-lived download URL to attachments kept in the
// object store. Failures leave the plain URL in place.
func (s *Server) signAttachments(ctx context.Context, d *models.CaseDetail) {
	if s.objects == nil {
		return
	}
	ttl := s.cfg.SignedURLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	for i := range d.Attachments {
		a := &d.Attachments[i]
		if a.StorageKey == "" {
			continue
		}
		u, err := s.objects.PresignGet(ctx, a.StorageKey, ttl)
		if err != nil {
			log.Printf("presign failed case_id=%s key=%s err=%v", d.ID, a.StorageKey, err)
			continue
		}
		a.SignedURL = u
	}
}

// handleUpload stores one multipart file and returns the attachment descriptor the
// client passes to /create-case.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if _, ok := s.principal(w, r); !ok {
		return
	}
	if s.objects == nil {
		writeFail(w, fmt.Errorf("%w: attachment store", errUnavailable))
		return
	}
	limit := s.cfg.MaxAttachmentBytes
	if limit <= 0 {
		limit = cases.DefaultMaxAttachmentBytes
	}
	file, fh, err := formFile(w, r, limit)
	if err != nil {
		writeFail(w, err)
		return
	}
	defer file.Close()

	ct := cases.NormalizeContentType(fh.Header.Get("Content-Type"))
	if !cases.AllowedContentType(ct) {
		writeFail(w, fmt.Errorf("%w: %s (%s)", cases.ErrUnsupportedMedia, fh.Filename, ct))
		return
	}
	if fh.Size > limit {
		writeFail(w, fmt.Errorf("%w: %s is %d bytes, limit %d", cases.ErrPayloadTooLarge, fh.Filename, fh.Size, limit))
		return
	}
	obj, err := s.objects.Put(r.Context(), fh.Filename, ct, file, fh.Size)
	if err != nil {
		writeFail(w, err)
		return
	}
	log.Printf("attachment stored key=%s size=%d content_type=%s", obj.Key, obj.Size, ct)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"file": cases.AttachmentInput{
			Filename:    fh.Filename,
			URL:         obj.URL,
			StorageKey:  obj.Key,
			ContentType: ct,
			FileSize:    fh.Size,
		},
	})
}

// readUpload reads the "file" field fully, refusing anything above limit bytes.
func readUpload(w http.ResponseWriter, r *http.Request, limit int64) (string, string, []byte, error) {
	file, fh, err := formFile(w, r, limit)
	if err != nil {
		return "", "", nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return "", "", nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return "", "", nil, fmt.Errorf("%w: %s exceeds %d bytes", cases.ErrPayloadTooLarge, fh.Filename, limit)
	}
	return fh.Filename, fh.Header.Get("Content-Type"), data, nil
}

func formFile(w http.ResponseWriter, r *http.Request, limit int64) (multipart.File, *multipart.FileHeader, error) {
	// headroom for the multipart envelope
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, nil, fmt.Errorf("%w: upload exceeds %d bytes", cases.ErrPayloadTooLarge, limit)
		}
		return nil, nil, badRequest("invalid multipart form: %v", err)
	}
	file, fh, err := r.FormFile("file")
	if err != nil {
		return nil, nil, badRequest("no file provided")
	}
	return file, fh, nil
}
