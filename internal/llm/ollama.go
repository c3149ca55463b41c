package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// ollamaTimeout bounds one chat call. Local reasoning models are slow on
// long diagnostic prompts.
const ollamaTimeout = 5 * time.Minute

// thinkBlock matches the reasoning trace that local reasoning models
// (deepseek-r1, qwq) emit before their answer.
var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// OllamaProvider implements Provider using the Ollama chat API.
type OllamaProvider struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(baseURL string, model string) *OllamaProvider {
	return &OllamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: ollamaTimeout},
	}
}

func (p *OllamaProvider) Name() string {
	return "ollama"
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Temperature is always sent: 0 is a meaningful setting and Ollama's own
// default is not.
type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Message         ollamaMessage `json:"message"`
	Model           string        `json:"model"`
	DoneReason      string        `json:"done_reason"`
	PromptEvalCount int           `json:"prompt_eval_count"`
	EvalCount       int           `json:"eval_count"`
	Error           string        `json:"error,omitempty"`
}

func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	in := ollamaChatRequest{
		Model:    p.model,
		Messages: make([]ollamaMessage, 0, len(req.Messages)),
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}
	if req.Model != "" {
		in.Model = req.Model
	}
	for _, msg := range req.Messages {
		in.Messages = append(in.Messages, ollamaMessage{Role: string(msg.Role), Content: msg.Content})
	}

	var out ollamaChatResponse
	if err := p.post(ctx, "/api/chat", in, &out); err != nil {
		return nil, err
	}

	return &CompletionResponse{
		Content:      stripThinking(out.Message.Content),
		InputTokens:  out.PromptEvalCount,
		OutputTokens: out.EvalCount,
		Model:        out.Model,
		FinishReason: out.DoneReason,
	}, nil
}

func (p *OllamaProvider) post(ctx context.Context, path string, in any, out *ollamaChatResponse) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshalling ollama request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating ollama request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading ollama response: %w", err)
	}

	decodeErr := json.Unmarshal(raw, out)
	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && out.Error != "" {
			return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, out.Error)
		}
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if decodeErr != nil {
		return fmt.Errorf("decoding ollama response: %w", decodeErr)
	}
	return nil
}

// stripThinking drops reasoning traces so tag extraction only sees the answer.
func stripThinking(s string) string {
	if !strings.Contains(s, "<think>") {
		return s
	}
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}
