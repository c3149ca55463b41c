// Package diagnosis runs the diagnostic session: retrieval of candidate
// diseases, graph enrichment, draft diagnosis and the expert review loop.
package diagnosis

import (
	"encoding/json"
	"errors"
	"time"
)

// NoResultsMessage is returned when vector search finds no candidates.
const NoResultsMessage = "未找到相关疾病信息，请咨询专业医生。"

const (
	// MaxRetries is the default number of reviewed draft attempts.
	MaxRetries = 3
	// RerankTopK is the number of candidates kept after reranking.
	RerankTopK = 5
	// DefaultTopK is the vector search size used by a session.
	DefaultTopK = 5
	// SimplifiedCauseFallbackRunes bounds the local cause extraction used
	// when the rewrite model does not return a tagged answer.
	SimplifiedCauseFallbackRunes = 50
)

// ErrNoCandidates is returned by retrieval when vector search finds nothing.
var ErrNoCandidates = errors.New(NoResultsMessage)

// Candidate is a disease returned by vector search.
type Candidate struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Symptoms        []string `json:"symptoms"`
	SimilarityScore float64  `json:"similarity_score"`
	RelevanceScore  *float64 `json:"relevance_score,omitempty"`
}

// GraphData maps disease names to their enriched fact blocks, keeping the
// order in which diseases were added.
type GraphData struct {
	names  []string
	blocks map[string]string
}

// Set adds or replaces the block for name. Replacing keeps the original
// position.
func (g *GraphData) Set(name, block string) {
	if g.blocks == nil {
		g.blocks = make(map[string]string)
	}
	if _, ok := g.blocks[name]; !ok {
		g.names = append(g.names, name)
	}
	g.blocks[name] = block
}

// Get returns the block for name.
func (g GraphData) Get(name string) (string, bool) {
	b, ok := g.blocks[name]
	return b, ok
}

// Names returns disease names in insertion order.
func (g GraphData) Names() []string {
	return append([]string(nil), g.names...)
}

// Len returns the number of enriched diseases.
func (g GraphData) Len() int {
	return len(g.names)
}

// Blocks returns the fact blocks in insertion order.
func (g GraphData) Blocks() []string {
	out := make([]string, 0, len(g.names))
	for _, n := range g.names {
		out = append(out, g.blocks[n])
	}
	return out
}

type graphEntry struct {
	Name  string `json:"name"`
	Block string `json:"block"`
}

// MarshalJSON encodes the mapping as an ordered list of {name, block}.
func (g GraphData) MarshalJSON() ([]byte, error) {
	entries := make([]graphEntry, 0, len(g.names))
	for _, n := range g.names {
		entries = append(entries, graphEntry{Name: n, Block: g.blocks[n]})
	}
	return json.Marshal(entries)
}

// UnmarshalJSON decodes the ordered list form written by MarshalJSON.
func (g *GraphData) UnmarshalJSON(data []byte) error {
	var entries []graphEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*g = GraphData{}
	for _, e := range entries {
		g.Set(e.Name, e.Block)
	}
	return nil
}

// Bundle is the retrieval output shared by every attempt of a session.
type Bundle struct {
	VectorResults []Candidate `json:"vector_results"`
	GraphData     GraphData   `json:"graph_data"`
}

// Analysis is the draft analysis of the reranked candidates.
type Analysis struct {
	NeedMoreInfo bool     `json:"need_more_info"`
	Diseases     []string `json:"diseases"`
}

// Suggestions is the reviewer feedback carried into the next draft.
type Suggestions struct {
	RecommendedDiseases []string `json:"recommended_diseases"`
	Reason              string   `json:"reason"`
}

// placeholderSuggestions is used when a rejection carries no parseable
// suggestions.
func placeholderSuggestions() *Suggestions {
	return &Suggestions{
		RecommendedDiseases: []string{"建议重新评估症状"},
		Reason:              "现有诊断不够准确，需要重新分析",
	}
}

// Outcome is the terminal state of a session.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeFatal     Outcome = "fatal"
)

// AttemptVerdict describes how a single draft attempt ended.
type AttemptVerdict string

const (
	VerdictAccepted AttemptVerdict = "accepted"
	VerdictRejected AttemptVerdict = "rejected"
	VerdictFailed   AttemptVerdict = "failed"
	VerdictFinal    AttemptVerdict = "final"
)

// AttemptRecord is the audit entry for one draft attempt. The unreviewed
// draft produced after exhaustion is recorded with VerdictFinal.
type AttemptRecord struct {
	Index    int            `json:"index"`
	Verdict  AttemptVerdict `json:"verdict"`
	Draft    string         `json:"draft,omitempty"`
	Feedback *Suggestions   `json:"feedback,omitempty"`
	Err      string         `json:"error,omitempty"`
}

// Result is the full record of one session.
type Result struct {
	SessionID  string          `json:"session_id"`
	Query      string          `json:"query"`
	Model      string          `json:"model"`
	Diagnosis  string          `json:"diagnosis"`
	Outcome    Outcome         `json:"outcome"`
	Rejections int             `json:"rejections"`
	Attempts   []AttemptRecord `json:"attempts"`
	Bundle     *Bundle         `json:"bundle,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}
