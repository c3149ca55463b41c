package diagnosis

import (
	"context"
	"log"
	"strings"

	"github.com/ziadkadry99/diagrag/internal/factblock"
	"github.com/ziadkadry99/diagrag/internal/llm"
	"github.com/ziadkadry99/diagrag/internal/tagtext"
)

const simplifiedCauseTag = "simplified_cause"

const (
	simplifyTemperature = 0.1
	simplifyMaxTokens   = 200
)

// Simplifier compresses the cause section of a graph fact block.
type Simplifier struct {
	Model llm.Model
}

// Simplify returns the fact block rebuilt around a shortened cause, or ""
// when the block has no cause or nothing usable could be extracted.
func (s Simplifier) Simplify(ctx context.Context, name, raw string) string {
	rec := factblock.Parse(raw)
	if !rec.Enrichable() {
		log.Printf("simplify: %s has no cause, skipping", name)
		return ""
	}

	cause := s.simplifyCause(ctx, name, rec.Cause)
	if cause == "" {
		log.Printf("simplify: could not simplify cause of %s, skipping", name)
		return ""
	}

	return factblock.Format(factblock.Record{
		DiseaseName:   name,
		Cause:         cause,
		Department:    rec.Department,
		Complications: rec.Complications,
	})
}

func (s Simplifier) simplifyCause(ctx context.Context, name, cause string) string {
	content, err := llm.Generate(ctx, s.Model, "", buildSimplifyPrompt(name, cause), simplifyTemperature, simplifyMaxTokens)
	if err != nil {
		log.Printf("simplify: rewriting cause of %s failed: %v", name, err)
		return truncateRunes(strings.TrimSpace(cause), SimplifiedCauseFallbackRunes)
	}
	return extractSimplifiedCause(content)
}

// extractSimplifiedCause reads the tagged answer, falling back to the first
// line that is neither a heading nor a bullet.
func extractSimplifiedCause(content string) string {
	if v, ok := tagtext.Extract(content, simplifiedCauseTag); ok {
		return v
	}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		return truncateRunes(line, SimplifiedCauseFallbackRunes)
	}
	return ""
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
