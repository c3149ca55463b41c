package diagnosis

import (
	"context"
	"fmt"

	"github.com/ziadkadry99/diagrag/internal/llm"
)

// Drafter produces a draft diagnosis, optionally guided by reviewer feedback.
type Drafter interface {
	Draft(ctx context.Context, symptoms string, b *Bundle, feedback *Suggestions) (string, error)
}

// Doctor drafts diagnoses with a generation model.
type Doctor struct {
	Model     llm.Model
	Allowlist []string
}

// Draft returns the raw completion text of the draft prompt.
func (d Doctor) Draft(ctx context.Context, symptoms string, b *Bundle, feedback *Suggestions) (string, error) {
	prompt := buildDoctorPrompt(symptoms, b, renderAllowlist(d.Allowlist), feedback)
	text, err := llm.Generate(ctx, d.Model, doctorSystemPrompt, prompt, 0, 0)
	if err != nil {
		return "", fmt.Errorf("drafting diagnosis: %w", err)
	}
	return text, nil
}
