package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"iara/internal/cases"
	"iara/internal/extract"
	"iara/internal/providers"
)

func (s *Server) handleAIAnalysis(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if _, ok := s.principal(w, r); !ok {
		return
	}
	var req struct {
		Prompt       string                  `json:"prompt"`
		Instructions string                  `json:"instructions"`
		Files        []providers.FileContext `json:"files"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeFail(w, err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeFail(w, badRequest("prompt is required"))
		return
	}
	a, err := s.analyzer.Analyze(r.Context(), providers.AnalysisRequest{
		Instructions: req.Instructions,
		Prompt:       req.Prompt,
		Files:        req.Files,
	})
	if err != nil {
		writeFail(w, fmt.Errorf("%w: %v", cases.ErrUpstreamProvider, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"response":   a.Result,
		"model_used": a.Model,
		"provider":   a.Provider,
		"confidence": a.Confidence,
		"synthetic":  a.Synthetic,
	})
}

func (s *Server) handleTestAIConnection(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if _, ok := s.admin(w, r); !ok {
		return
	}
	var req providers.ProbeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFail(w, err)
		return
	}
	if strings.TrimSpace(req.Provider) == "" {
		writeFail(w, badRequest("provider is required"))
		return
	}
	res, err := s.prober.Probe(r.Context(), req)
	if err != nil {
		if errors.Is(err, providers.ErrUnsupported) {
			writeFail(w, badRequest("unsupported provider %q", req.Provider))
			return
		}
		writeFail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFileProcessing(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if _, ok := s.principal(w, r); !ok {
		return
	}
	name, ct, data, err := readUpload(w, r, s.extractor.MaxBytes)
	if err != nil {
		writeFail(w, err)
		return
	}
	res, err := s.extractor.Extract(name, ct, data)
	if err != nil {
		writeFail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		extract.Result
	}{true, res})
}
