package diagnosis

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/diagrag/internal/llm"
)

// Recorder persists finished sessions.
type Recorder interface {
	Record(ctx context.Context, res *Result) error
}

// Options configures an Engine.
type Options struct {
	Retriever *Retriever
	Models    *llm.Registry
	// ReviewModel names the registry model used for expert review. Empty
	// means the session's drafting model.
	ReviewModel string
	TopK        int
	MaxRetries  int
	// Allowlist is used when a session does not supply its own.
	Allowlist AllowlistSource
	Recorder  Recorder
}

// SessionOptions are per-call settings.
type SessionOptions struct {
	// Model names the registry model for analysis, simplification and
	// drafting. Empty selects the registry default.
	Model string
	// Allowlist restricts the diseases the diagnosis may name. Empty or nil
	// falls back to the engine's configured source.
	Allowlist []string
}

// Engine runs diagnostic sessions. It holds no per-session state and may be
// used from multiple goroutines.
type Engine struct {
	opts Options
}

// NewEngine creates an Engine.
func NewEngine(opts Options) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = MaxRetries
	}
	return &Engine{opts: opts}
}

// RunSession runs a session and returns its final text.
func (e *Engine) RunSession(ctx context.Context, symptoms string, so SessionOptions) string {
	return e.Run(ctx, symptoms, so).Diagnosis
}

// Run runs one complete session. It never returns nil and never panics.
func (e *Engine) Run(ctx context.Context, symptoms string, so SessionOptions) (res *Result) {
	res = &Result{
		SessionID: uuid.New().String(),
		Query:     symptoms,
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("session %s: recovered from panic: %v", res.SessionID, r)
			res.Diagnosis = fmt.Sprintf("诊断流程出错: %v", r)
			res.Outcome = OutcomeFatal
		}
		res.FinishedAt = time.Now().UTC()
		e.record(res)
	}()

	draftModel, reviewModel, err := e.models(so.Model)
	if err != nil {
		log.Printf("session %s: %v", res.SessionID, err)
		res.Diagnosis = "模型不可用: " + err.Error()
		res.Outcome = OutcomeFatal
		return res
	}
	res.Model = draftModel.Name

	allowlist := so.Allowlist
	if len(allowlist) == 0 && e.opts.Allowlist != nil {
		names, err := e.opts.Allowlist.Diseases()
		if err != nil {
			log.Printf("session %s: disease list unavailable, continuing without it: %v", res.SessionID, err)
		}
		allowlist = names
	}

	log.Printf("session %s: retrieving candidates", res.SessionID)
	bundle, retrievalErr := e.opts.Retriever.InitialDiagnosis(ctx, symptoms, draftModel, e.opts.TopK)
	res.Bundle = bundle

	c := &Controller{
		Drafter:    Doctor{Model: draftModel, Allowlist: allowlist},
		Reviewer:   Expert{Model: reviewModel, Allowlist: allowlist},
		MaxRetries: e.opts.MaxRetries,
	}
	c.run(ctx, symptoms, bundle, retrievalErr, res)
	log.Printf("session %s: finished %s after %d attempts", res.SessionID, res.Outcome, len(res.Attempts))
	return res
}

func (e *Engine) models(name string) (draft, review llm.Model, err error) {
	if e.opts.Models == nil {
		return llm.Model{}, llm.Model{}, fmt.Errorf("no models configured")
	}
	draft, err = e.opts.Models.Get(name)
	if err != nil {
		return llm.Model{}, llm.Model{}, err
	}
	review = draft
	if e.opts.ReviewModel != "" {
		review, err = e.opts.Models.Get(e.opts.ReviewModel)
		if err != nil {
			return llm.Model{}, llm.Model{}, fmt.Errorf("review model: %w", err)
		}
	}
	return draft, review, nil
}

func (e *Engine) record(res *Result) {
	if e.opts.Recorder == nil {
		return
	}
	// The caller's context may already be cancelled; the audit write still
	// has to happen.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.opts.Recorder.Record(ctx, res); err != nil {
		log.Printf("session %s: recording audit trail failed: %v", res.SessionID, err)
	}
}
