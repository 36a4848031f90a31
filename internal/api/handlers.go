package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/arcalabs/arca/internal/extract"
	"github.com/arcalabs/arca/internal/pipeline"
	"github.com/arcalabs/arca/internal/policy"
)

// tenantHeader carries the caller's tenant identity on every API route.
const tenantHeader = "X-User-ID"

type uploadResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type searchMatch struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

type searchResponse struct {
	Matches []searchMatch `json:"matches"`
	Count   int           `json:"count"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Ready != nil {
		if err := s.cfg.Ready(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			writeError(w, s.logger, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleUploadPolicy indexes an uploaded policy file into the caller's
// private corpus.
func (s *Server) handleUploadPolicy(w http.ResponseWriter, r *http.Request) {
	tenantID := r.Header.Get(tenantHeader)
	if tenantID == "" {
		writeError(w, s.logger, http.StatusBadRequest, "missing X-User-ID header")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, s.logger, uploadStatus(err), "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, s.logger, uploadStatus(err), "failed to read upload")
		return
	}

	text, err := extract.Text(data, header.Filename)
	if err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "failed to read file: "+err.Error())
		return
	}

	if err := s.cfg.Store.Add(r.Context(), text, header.Filename, tenantID); err != nil {
		if errors.Is(err, policy.ErrEmptyDocument) {
			writeError(w, s.logger, http.StatusBadRequest, "document contains no text")
			return
		}
		s.logger.Error("policy indexing failed", "tenant", tenantID, "file", header.Filename, "error", err)
		writeError(w, s.logger, http.StatusInternalServerError, "failed to index document")
		return
	}

	writeJSON(w, s.logger, http.StatusOK, uploadResponse{
		Status:  "success",
		Message: "indexed " + header.Filename + " for user " + tenantID,
	})
}

// handleAnalyze runs the compliance pipeline on regulation text supplied
// either inline or as an uploaded file.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	tenantID := r.Header.Get(tenantHeader)
	if tenantID == "" {
		writeError(w, s.logger, http.StatusBadRequest, "missing X-User-ID header")
		return
	}

	text := strings.TrimSpace(r.FormValue("regulation_text"))
	if file, header, err := r.FormFile("regulation_file"); err == nil {
		defer file.Close()
		data, readErr := io.ReadAll(file)
		if readErr != nil {
			writeError(w, s.logger, uploadStatus(readErr), "failed to read upload")
			return
		}
		extracted, extractErr := extract.Text(data, header.Filename)
		if extractErr != nil {
			writeError(w, s.logger, http.StatusBadRequest, "failed to read file: "+extractErr.Error())
			return
		}
		text = strings.TrimSpace(extracted)
	}

	if text == "" {
		writeError(w, s.logger, http.StatusBadRequest, "no input provided")
		return
	}

	report, err := s.cfg.Analyzer.Run(r.Context(), text, tenantID, r.FormValue("date_of_law"))
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrEmptyRegulation):
			writeError(w, s.logger, http.StatusBadRequest, "no input provided")
		case errors.Is(err, pipeline.ErrNoPolicies):
			writeError(w, s.logger, http.StatusUnprocessableEntity, "no relevant policies found for this tenant")
		default:
			s.logger.Error("analysis failed", "tenant", tenantID, "error", err)
			writeError(w, s.logger, http.StatusInternalServerError, "analysis failed")
		}
		return
	}

	writeJSON(w, s.logger, http.StatusOK, report)
}

// handleSearch exposes direct corpus retrieval for debugging and UI
// autocomplete.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	tenantID := r.Header.Get(tenantHeader)
	if tenantID == "" {
		writeError(w, s.logger, http.StatusBadRequest, "missing X-User-ID header")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, s.logger, http.StatusBadRequest, "query parameter q is required")
		return
	}

	topK := s.cfg.SearchTopK
	if raw := r.URL.Query().Get("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, s.logger, http.StatusBadRequest, "top_k must be a positive integer")
			return
		}
		topK = n
	}

	matches, err := s.cfg.Store.Search(r.Context(), query, tenantID, topK)
	if err != nil {
		s.logger.Error("search failed", "tenant", tenantID, "error", err)
		writeError(w, s.logger, http.StatusInternalServerError, "search failed")
		return
	}

	resp := searchResponse{Matches: make([]searchMatch, 0, len(matches)), Count: len(matches)}
	for _, m := range matches {
		resp.Matches = append(resp.Matches, searchMatch{ID: m.ID, Content: m.Content})
	}
	writeJSON(w, s.logger, http.StatusOK, resp)
}

// uploadStatus maps body-read failures: the MaxBytesReader cap surfaces as
// 413, anything else as 400.
func uploadStatus(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
