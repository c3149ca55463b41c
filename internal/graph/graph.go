// Package graph stores the disease knowledge graph (causes, treating
// departments and complications) and renders per-disease fact blocks.
package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/ziadkadry99/diagrag/internal/db"
	"github.com/ziadkadry99/diagrag/internal/factblock"
)

// ErrNotFound is returned when a disease is not in the graph.
var ErrNotFound = errors.New("disease not found")

// Disease is a graph node with its outgoing relations.
type Disease struct {
	Name          string
	Cause         string
	Departments   []string
	Complications []string
}

// Store provides graph operations backed by SQLite.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Upsert inserts or replaces a disease and all of its relations.
func (s *Store) Upsert(ctx context.Context, d Disease) error {
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return fmt.Errorf("disease name is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO diseases (name, cause) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET cause = excluded.cause, updated_at = datetime('now')`,
		name, d.Cause)
	if err != nil {
		return fmt.Errorf("upserting disease %s: %w", name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM disease_departments WHERE disease = ?`, name); err != nil {
		return fmt.Errorf("clearing departments of %s: %w", name, err)
	}
	for i, dept := range dedupe(d.Departments) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO disease_departments (disease, department, position) VALUES (?, ?, ?)`,
			name, dept, i); err != nil {
			return fmt.Errorf("inserting department %s of %s: %w", dept, name, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM disease_complications WHERE disease = ?`, name); err != nil {
		return fmt.Errorf("clearing complications of %s: %w", name, err)
	}
	for i, comp := range dedupe(d.Complications) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO disease_complications (disease, complication, position) VALUES (?, ?, ?)`,
			name, comp, i); err != nil {
			return fmt.Errorf("inserting complication %s of %s: %w", comp, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing disease %s: %w", name, err)
	}
	return nil
}

// Get returns a disease and its relations.
func (s *Store) Get(ctx context.Context, name string) (*Disease, error) {
	d := &Disease{Name: name}
	err := s.db.QueryRowContext(ctx, `SELECT cause FROM diseases WHERE name = ?`, name).Scan(&d.Cause)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying disease %s: %w", name, err)
	}

	d.Departments, err = s.related(ctx,
		`SELECT department FROM disease_departments WHERE disease = ? ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("querying departments of %s: %w", name, err)
	}
	d.Complications, err = s.related(ctx,
		`SELECT complication FROM disease_complications WHERE disease = ? ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("querying complications of %s: %w", name, err)
	}
	return d, nil
}

// Lookup returns the fact block for a disease, or "" when the disease is
// unknown. Departments and complications are space-joined.
func (s *Store) Lookup(ctx context.Context, name string) (string, error) {
	d, err := s.Get(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return FormatDisease(*d), nil
}

// Count returns the number of diseases in the graph.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM diseases`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting diseases: %w", err)
	}
	return n, nil
}

func (s *Store) related(ctx context.Context, query, name string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// FormatDisease renders a graph node as a fact block.
func FormatDisease(d Disease) string {
	return factblock.Format(factblock.Record{
		DiseaseName:   d.Name,
		Cause:         d.Cause,
		Department:    strings.Join(d.Departments, " "),
		Complications: strings.Join(d.Complications, " "),
	})
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
