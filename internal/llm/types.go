package llm

// Role is the sender of a chat message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one chat message.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest is a single chat completion call. Model overrides the
// provider's configured model when set; MaxTokens 0 means provider default.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// CompletionResponse is the completion text plus the usage Generate logs.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	// FinishReason is "length" when MaxTokens cut the answer short.
	FinishReason string
}

// finishLength is the finish reason both backends report for truncation.
const finishLength = "length"
