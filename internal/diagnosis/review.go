package diagnosis

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ziadkadry99/diagrag/internal/llm"
	"github.com/ziadkadry99/diagrag/internal/tagtext"
)

const (
	reviewTag      = "expert_review"
	suggestionsTag = "diagnostic_suggestions"

	reviewTemperature = 0.5
)

// Review is the reviewer's verdict on a draft. Suggestions is only set on
// rejection and may be nil when the reviewer gave none.
type Review struct {
	Accepted    bool
	Suggestions *Suggestions
}

// Reviewer judges a draft diagnosis.
type Reviewer interface {
	Review(ctx context.Context, symptoms string, b *Bundle, draft string) (Review, error)
}

// Expert reviews drafts with a generation model.
type Expert struct {
	Model     llm.Model
	Allowlist []string
}

// Review asks the model to accept or reject the draft. Unparseable answers
// count as acceptance; provider errors are returned.
func (e Expert) Review(ctx context.Context, symptoms string, b *Bundle, draft string) (Review, error) {
	prompt := buildReviewPrompt(symptoms, b, renderAllowlist(e.Allowlist), draft)
	content, err := llm.Generate(ctx, e.Model, reviewSystemPrompt, prompt, reviewTemperature, 0)
	if err != nil {
		return Review{}, fmt.Errorf("reviewing diagnosis: %w", err)
	}
	return interpretReview(content), nil
}

// interpretReview maps the <expert_review> section to a verdict: "1"
// accepts, otherwise "0" rejects, anything else accepts.
func interpretReview(content string) Review {
	verdict, ok := tagtext.Extract(content, reviewTag)
	if !ok {
		return Review{Accepted: true}
	}
	if strings.Contains(verdict, "1") {
		return Review{Accepted: true}
	}
	if !strings.Contains(verdict, "0") {
		return Review{Accepted: true}
	}

	var s Suggestions
	if err := tagtext.Decode(content, suggestionsTag, &s); err != nil {
		log.Printf("review: no usable suggestions: %v", err)
		return Review{}
	}
	if len(s.RecommendedDiseases) == 0 && strings.TrimSpace(s.Reason) == "" {
		return Review{}
	}
	return Review{Suggestions: &s}
}
