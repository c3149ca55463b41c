package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/diagrag/internal/diagnosis"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsRequest is the incoming WebSocket message format.
type wsRequest struct {
	Type    string `json:"type"` // "diagnose" or "search"
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// wsResponse is the outgoing WebSocket message format.
type wsResponse struct {
	Type       string                `json:"type"` // "status", "result", "candidates" or "error"
	SessionID  string                `json:"session_id,omitempty"`
	Content    string                `json:"content,omitempty"`
	Outcome    diagnosis.Outcome     `json:"outcome,omitempty"`
	Rejections int                   `json:"rejections,omitempty"`
	Candidates []diagnosis.Candidate `json:"candidates,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("server: websocket read: %v", err)
			}
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			s.send(conn, wsResponse{Type: "error", Content: "invalid message format"})
			continue
		}

		req.Content = strings.TrimSpace(req.Content)
		if req.Content == "" {
			s.send(conn, wsResponse{Type: "error", Content: "content is required"})
			continue
		}

		switch req.Type {
		case "diagnose":
			s.wsDiagnose(conn, r, req)
		case "search":
			s.wsSearch(conn, r, req)
		default:
			s.send(conn, wsResponse{Type: "error", Content: "unknown message type: " + req.Type})
		}
	}
}

func (s *Server) wsDiagnose(conn *websocket.Conn, r *http.Request, req wsRequest) {
	s.send(conn, wsResponse{Type: "status", Content: "diagnosing"})

	res := s.runner.Run(r.Context(), req.Content, diagnosis.SessionOptions{Model: req.Model})
	s.send(conn, wsResponse{
		Type:       "result",
		SessionID:  res.SessionID,
		Content:    res.Diagnosis,
		Outcome:    res.Outcome,
		Rejections: res.Rejections,
	})
}

func (s *Server) wsSearch(conn *websocket.Conn, r *http.Request, req wsRequest) {
	if s.searcher == nil {
		s.send(conn, wsResponse{Type: "error", Content: "search is not available"})
		return
	}
	candidates, err := s.searcher.Candidates(r.Context(), req.Content, diagnosis.DefaultTopK)
	if err != nil && !errors.Is(err, diagnosis.ErrNoCandidates) {
		s.send(conn, wsResponse{Type: "error", Content: "search failed: " + err.Error()})
		return
	}
	s.send(conn, wsResponse{Type: "candidates", Candidates: candidates})
}

func (s *Server) send(conn *websocket.Conn, resp wsResponse) {
	if err := conn.WriteJSON(resp); err != nil {
		log.Printf("server: websocket write: %v", err)
	}
}
