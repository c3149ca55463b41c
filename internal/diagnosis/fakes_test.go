package diagnosis

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ziadkadry99/diagrag/internal/llm"
	"github.com/ziadkadry99/diagrag/internal/rerank"
	"github.com/ziadkadry99/diagrag/internal/vectordb"
)

type stage string

const (
	stageAnalysis stage = "analysis"
	stageSimplify stage = "simplify"
	stageDoctor   stage = "doctor"
	stageReview   stage = "review"
)

type reply struct {
	content string
	err     error
}

// fakeLLM routes requests by prompt shape and replays scripted replies per
// stage. The last reply of a stage repeats once the script runs out.
type fakeLLM struct {
	mu      sync.Mutex
	replies map[stage][]reply
	calls   map[stage][]llm.CompletionRequest
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		replies: make(map[stage][]reply),
		calls:   make(map[stage][]llm.CompletionRequest),
	}
}

func (f *fakeLLM) on(st stage, replies ...reply) *fakeLLM {
	f.replies[st] = append(f.replies[st], replies...)
	return f
}

func (f *fakeLLM) count(st stage) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls[st])
}

func (f *fakeLLM) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += len(c)
	}
	return n
}

func (f *fakeLLM) userPrompt(st stage, i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.calls[st][i].Messages
	return msgs[len(msgs)-1].Content
}

func stageOf(req llm.CompletionRequest) stage {
	if len(req.Messages) == 1 {
		return stageSimplify
	}
	switch req.Messages[0].Content {
	case doctorSystemPrompt:
		return stageDoctor
	case reviewSystemPrompt:
		return stageReview
	}
	return stageAnalysis
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := stageOf(req)
	idx := len(f.calls[st])
	f.calls[st] = append(f.calls[st], req)

	script := f.replies[st]
	if len(script) == 0 {
		return nil, fmt.Errorf("no reply scripted for %s", st)
	}
	if idx >= len(script) {
		idx = len(script) - 1
	}
	r := script[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &llm.CompletionResponse{Content: r.content, Model: req.Model}, nil
}

func (f *fakeLLM) Name() string { return "fake" }

type fakeEmbedder struct {
	err   error
	calls int
}

func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (e *fakeEmbedder) Dimensions() int { return 3 }
func (e *fakeEmbedder) Name() string    { return "fake-embedder" }

type fakeIndex struct {
	hits  []vectordb.Hit
	err   error
	calls int
	topK  int
}

func (x *fakeIndex) HybridSearch(ctx context.Context, query []float32, topK int, w vectordb.Weights) ([]vectordb.Hit, error) {
	x.calls++
	x.topK = topK
	if x.err != nil {
		return nil, x.err
	}
	if len(x.hits) > topK {
		return x.hits[:topK], nil
	}
	return x.hits, nil
}

// fakeReranker scores documents in the given index order; nil order keeps
// the input order.
type fakeReranker struct {
	order []int
	err   error
	calls int
	docs  []string
}

func (r *fakeReranker) Rerank(ctx context.Context, query string, documents []string) ([]rerank.Result, error) {
	r.calls++
	r.docs = documents
	if r.err != nil {
		return nil, r.err
	}
	order := r.order
	if order == nil {
		for i := range documents {
			order = append(order, i)
		}
	}
	out := make([]rerank.Result, 0, len(order))
	for rank, idx := range order {
		out = append(out, rerank.Result{Index: idx, RelevanceScore: 1 - float64(rank)*0.1})
	}
	return out, nil
}

type fakeGraph struct {
	blocks   map[string]string
	errFor   map[string]error
	panicFor string
	calls    []string
}

func (g *fakeGraph) Lookup(ctx context.Context, name string) (string, error) {
	g.calls = append(g.calls, name)
	if name == g.panicFor {
		panic("graph driver exploded")
	}
	if err := g.errFor[name]; err != nil {
		return "", err
	}
	return g.blocks[name], nil
}

type fakeRecorder struct {
	results []*Result
	err     error
}

func (r *fakeRecorder) Record(ctx context.Context, res *Result) error {
	r.results = append(r.results, res)
	return r.err
}

var errBoom = errors.New("boom")

func makeHits(n int) []vectordb.Hit {
	hits := make([]vectordb.Hit, n)
	for i := range hits {
		hits[i] = vectordb.Hit{
			Disease: vectordb.Disease{
				ID:          fmt.Sprintf("oid-%d", i+1),
				Name:        fmt.Sprintf("疾病%d", i+1),
				Description: fmt.Sprintf("描述%d", i+1),
				Symptoms:    []string{"咳嗽", "发热"},
			},
			Similarity: 0.9 - float64(i)*0.05,
		}
	}
	return hits
}

const (
	analysisNoInfo = `<diagnose>{"need_more_info": false, "diseases": []}</diagnose>`
	reviewAccept   = `<expert_review>1</expert_review>`
	reviewReject   = `<expert_review>0</expert_review>
<diagnostic_suggestions>{"recommended_diseases": ["肺炎"], "reason": "症状更符合肺炎"}</diagnostic_suggestions>`
)

type harness struct {
	llm      *fakeLLM
	embedder *fakeEmbedder
	index    *fakeIndex
	reranker *fakeReranker
	graph    *fakeGraph
	recorder *fakeRecorder
	engine   *Engine
}

func newHarness(hits []vectordb.Hit, f *fakeLLM) *harness {
	h := &harness{
		llm:      f,
		embedder: &fakeEmbedder{},
		index:    &fakeIndex{hits: hits},
		reranker: &fakeReranker{},
		graph:    &fakeGraph{blocks: map[string]string{}},
		recorder: &fakeRecorder{},
	}
	reg := llm.NewRegistry("test")
	reg.Register("test", f, "test-model")
	h.engine = NewEngine(Options{
		Retriever: &Retriever{
			Embedder: h.embedder,
			Index:    h.index,
			Reranker: h.reranker,
			Graph:    h.graph,
		},
		Models:   reg,
		Recorder: h.recorder,
	})
	return h
}
