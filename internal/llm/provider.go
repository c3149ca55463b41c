package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}

// Generate sends a single system+user exchange to the model and returns the
// completion text. An empty completion is reported as an error.
func Generate(ctx context.Context, m Model, system, user string, temperature float64, maxTokens int) (string, error) {
	if m.Provider == nil {
		return "", fmt.Errorf("model %q has no provider", m.Name)
	}

	var messages []Message
	if system != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: system})
	}
	messages = append(messages, Message{Role: RoleUser, Content: user})

	resp, err := m.Provider.Complete(ctx, CompletionRequest{
		Model:       m.ModelID,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", fmt.Errorf("model %q returned an empty completion", m.Name)
	}

	log.Printf("llm: %s: %d input / %d output tokens", m.Name, resp.InputTokens, resp.OutputTokens)
	if resp.FinishReason == finishLength {
		// Tagged sections may be missing from a truncated answer.
		log.Printf("llm: %s: completion truncated at %d tokens", m.Name, maxTokens)
	}
	return resp.Content, nil
}
