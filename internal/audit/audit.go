// Package audit keeps a persistent trail of diagnostic sessions: one row per
// session and one per draft attempt.
package audit

import (
	"errors"
	"time"

	"github.com/ziadkadry99/diagrag/internal/diagnosis"
)

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// Session is the summary row of a recorded session.
type Session struct {
	ID         string            `json:"id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Symptoms   string            `json:"symptoms"`
	Model      string            `json:"model"`
	Outcome    diagnosis.Outcome `json:"outcome"`
	Rejections int               `json:"rejections"`
	Diagnosis  string            `json:"diagnosis"`
}

// Duration is the wall time of the session.
func (s Session) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
