package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/ziadkadry99/diagrag/internal/diagnosis"
)

// maxSymptomsBytes bounds a request body.
const maxSymptomsBytes = 64 << 10

type diagnoseRequest struct {
	Symptoms  string   `json:"symptoms"`
	Model     string   `json:"model,omitempty"`
	Allowlist []string `json:"allowlist,omitempty"`
}

type diagnoseResponse struct {
	SessionID  string                    `json:"session_id"`
	Diagnosis  string                    `json:"diagnosis"`
	Outcome    diagnosis.Outcome         `json:"outcome"`
	Rejections int                       `json:"rejections"`
	Attempts   []diagnosis.AttemptRecord `json:"attempts"`
}

func newDiagnoseResponse(res *diagnosis.Result) diagnoseResponse {
	attempts := res.Attempts
	if attempts == nil {
		attempts = []diagnosis.AttemptRecord{}
	}
	return diagnoseResponse{
		SessionID:  res.SessionID,
		Diagnosis:  res.Diagnosis,
		Outcome:    res.Outcome,
		Rejections: res.Rejections,
		Attempts:   attempts,
	}
}

func (s *Server) handleDiagnose(w http.ResponseWriter, r *http.Request) {
	var req diagnoseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSymptomsBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Symptoms = strings.TrimSpace(req.Symptoms)
	if req.Symptoms == "" {
		writeError(w, http.StatusBadRequest, "symptoms is required")
		return
	}

	res := s.runner.Run(r.Context(), req.Symptoms, diagnosis.SessionOptions{
		Model:     req.Model,
		Allowlist: req.Allowlist,
	})
	if requestExpired(r) {
		log.Printf("server: session %s outlived its request: %v", res.SessionID, r.Context().Err())
		return
	}

	if r.URL.Query().Get("format") == "html" {
		html, err := RenderMarkdown(res.Diagnosis)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("X-Session-ID", res.SessionID)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(html))
		return
	}

	writeJSON(w, http.StatusOK, newDiagnoseResponse(res))
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := diagnosis.DefaultTopK
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	candidates, err := s.searcher.Candidates(r.Context(), q, limit)
	if requestExpired(r) {
		return
	}
	if err != nil && !errors.Is(err, diagnosis.ErrNoCandidates) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if candidates == nil {
		candidates = []diagnosis.Candidate{}
	}
	writeJSON(w, http.StatusOK, candidates)
}

// requestExpired reports whether the request context has ended. The timeout
// middleware then owns the response and the handler must not write.
func requestExpired(r *http.Request) bool {
	return r.Context().Err() != nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
