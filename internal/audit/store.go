package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/diagrag/internal/db"
	"github.com/ziadkadry99/diagrag/internal/diagnosis"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Store persists diagnostic sessions. It implements diagnosis.Recorder.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

var _ diagnosis.Recorder = (*Store)(nil)

// Record inserts a finished session and its attempts.
func (s *Store) Record(ctx context.Context, res *diagnosis.Result) error {
	if res.SessionID == "" {
		res.SessionID = uuid.New().String()
	}

	var candidates []diagnosis.Candidate
	var enriched diagnosis.GraphData
	if res.Bundle != nil {
		candidates, enriched = res.Bundle.VectorResults, res.Bundle.GraphData
	}
	candJSON, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("marshalling candidates: %w", err)
	}
	enrichedJSON, err := json.Marshal(enriched)
	if err != nil {
		return fmt.Errorf("marshalling graph data: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO diagnostic_sessions (
			id, started_at, finished_at, symptoms, model, outcome,
			rejections, diagnosis, candidates, enriched
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.SessionID,
		res.StartedAt.UTC().Format(timeLayout),
		res.FinishedAt.UTC().Format(timeLayout),
		res.Query,
		res.Model,
		string(res.Outcome),
		res.Rejections,
		res.Diagnosis,
		string(candJSON),
		string(enrichedJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	for _, a := range res.Attempts {
		var feedback, errText sql.NullString
		if a.Feedback != nil {
			b, err := json.Marshal(a.Feedback)
			if err != nil {
				return fmt.Errorf("marshalling feedback: %w", err)
			}
			feedback = sql.NullString{String: string(b), Valid: true}
		}
		if a.Err != "" {
			errText = sql.NullString{String: a.Err, Valid: true}
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO diagnostic_attempts (id, session_id, attempt_index, verdict, draft, feedback, error)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), res.SessionID, a.Index, string(a.Verdict), a.Draft, feedback, errText)
		if err != nil {
			return fmt.Errorf("inserting attempt %d: %w", a.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing session: %w", err)
	}
	return nil
}

// Get returns a recorded session with its bundle and attempts.
func (s *Store) Get(ctx context.Context, id string) (*diagnosis.Result, error) {
	var (
		started, finished, outcome string
		candJSON, enrichedJSON     string
		res                        diagnosis.Result
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, symptoms, model, outcome,
			   rejections, diagnosis, candidates, enriched
		FROM diagnostic_sessions WHERE id = ?`, id).Scan(
		&res.SessionID, &started, &finished, &res.Query, &res.Model, &outcome,
		&res.Rejections, &res.Diagnosis, &candJSON, &enrichedJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session %s: %w", id, err)
	}
	res.Outcome = diagnosis.Outcome(outcome)
	res.StartedAt = parseTime(started)
	res.FinishedAt = parseTime(finished)

	bundle := &diagnosis.Bundle{}
	if err := json.Unmarshal([]byte(candJSON), &bundle.VectorResults); err != nil {
		return nil, fmt.Errorf("decoding candidates of %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(enrichedJSON), &bundle.GraphData); err != nil {
		return nil, fmt.Errorf("decoding graph data of %s: %w", id, err)
	}
	res.Bundle = bundle

	res.Attempts, err = s.attempts(ctx, id)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Store) attempts(ctx context.Context, sessionID string) ([]diagnosis.AttemptRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT attempt_index, verdict, draft, feedback, error
		FROM diagnostic_attempts WHERE session_id = ? ORDER BY attempt_index`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying attempts of %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []diagnosis.AttemptRecord
	for rows.Next() {
		var (
			a               diagnosis.AttemptRecord
			verdict         string
			feedback, errSt sql.NullString
		)
		if err := rows.Scan(&a.Index, &verdict, &a.Draft, &feedback, &errSt); err != nil {
			return nil, err
		}
		a.Verdict = diagnosis.AttemptVerdict(verdict)
		if feedback.Valid {
			var sg diagnosis.Suggestions
			if err := json.Unmarshal([]byte(feedback.String), &sg); err == nil {
				a.Feedback = &sg
			}
		}
		a.Err = errSt.String
		out = append(out, a)
	}
	return out, rows.Err()
}

// QueryFilter controls which sessions are returned by Query.
type QueryFilter struct {
	Outcome diagnosis.Outcome
	Model   string
	Since   *time.Time
	Until   *time.Time
	Limit   int
	Offset  int
}

// Query returns session summaries matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Session, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.Outcome != "" {
		clauses = append(clauses, "outcome = ?")
		args = append(args, string(filter.Outcome))
	}
	if filter.Model != "" {
		clauses = append(clauses, "model = ?")
		args = append(args, filter.Model)
	}
	if filter.Since != nil {
		clauses = append(clauses, "started_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	if filter.Until != nil {
		clauses = append(clauses, "started_at <= ?")
		args = append(args, filter.Until.UTC().Format(timeLayout))
	}

	query := "SELECT id, started_at, finished_at, symptoms, model, outcome, rejections, diagnosis FROM diagnostic_sessions"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			sess                       Session
			started, finished, outcome string
		)
		if err := rows.Scan(&sess.ID, &started, &finished, &sess.Symptoms, &sess.Model,
			&outcome, &sess.Rejections, &sess.Diagnosis); err != nil {
			return nil, err
		}
		sess.StartedAt, sess.FinishedAt = parseTime(started), parseTime(finished)
		sess.Outcome = diagnosis.Outcome(outcome)
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// DeleteBefore removes sessions started before the given time, together with
// their attempts. Returns the number of deleted sessions.
func (s *Store) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM diagnostic_sessions WHERE started_at < ?",
		before.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting old sessions: %w", err)
	}
	return res.RowsAffected()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
