package diagnosis

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ziadkadry99/diagrag/internal/embeddings"
	"github.com/ziadkadry99/diagrag/internal/llm"
	"github.com/ziadkadry99/diagrag/internal/rerank"
	"github.com/ziadkadry99/diagrag/internal/vectordb"
)

// VectorSearcher runs the weighted symptom/description search.
type VectorSearcher interface {
	HybridSearch(ctx context.Context, query []float32, topK int, w vectordb.Weights) ([]vectordb.Hit, error)
}

// Reranker scores documents against a query.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]rerank.Result, error)
}

// GraphLookup returns the fact block for a disease, or "" when unknown.
type GraphLookup interface {
	Lookup(ctx context.Context, name string) (string, error)
}

// Retriever gathers the candidate diseases and graph facts for a query.
type Retriever struct {
	Embedder embeddings.Embedder
	Index    VectorSearcher
	Reranker Reranker // optional
	Graph    GraphLookup
	Weights  vectordb.Weights
	// RerankTopK defaults to RerankTopK when zero.
	RerankTopK int
}

// Candidates embeds the query, runs hybrid search and reranks the hits.
// Embedding and search failures are logged and reported as ErrNoCandidates.
func (r *Retriever) Candidates(ctx context.Context, query string, topK int) ([]Candidate, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	hits := r.search(ctx, query, topK)
	if len(hits) == 0 {
		return nil, ErrNoCandidates
	}

	candidates := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, Candidate{
			ID:              h.Disease.ID,
			Name:            h.Disease.Name,
			Description:     h.Disease.Description,
			Symptoms:        h.Disease.Symptoms,
			SimilarityScore: h.Similarity,
		})
	}
	return r.rerank(ctx, query, candidates), nil
}

// InitialDiagnosis builds the retrieval bundle for a session. A returned
// error is terminal for the session and its message is user-facing.
func (r *Retriever) InitialDiagnosis(ctx context.Context, query string, m llm.Model, topK int) (bundle *Bundle, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("retrieval: recovered from panic: %v", rec)
			bundle, err = nil, fmt.Errorf("获取初始诊断数据出错: %v", rec)
		}
	}()

	candidates, err := r.Candidates(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	log.Printf("retrieval: %d candidates after rerank", len(candidates))

	analysis, err := analyze(ctx, m, query, candidates)
	if err != nil {
		log.Printf("retrieval: analysis failed: %v", err)
		return nil, err
	}

	bundle = &Bundle{VectorResults: candidates}
	if !analysis.NeedMoreInfo || len(analysis.Diseases) == 0 {
		return bundle, nil
	}

	simplifier := Simplifier{Model: m}
	for _, name := range analysis.Diseases {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		raw, err := r.Graph.Lookup(ctx, name)
		if err != nil {
			log.Printf("retrieval: graph lookup for %s failed: %v", name, err)
			continue
		}
		if raw == "" {
			log.Printf("retrieval: no graph facts for %s", name)
			continue
		}
		if block := simplifier.Simplify(ctx, name, raw); block != "" {
			bundle.GraphData.Set(name, block)
		}
	}
	log.Printf("retrieval: enriched %d of %d requested diseases", bundle.GraphData.Len(), len(analysis.Diseases))
	return bundle, nil
}

func (r *Retriever) search(ctx context.Context, query string, topK int) []vectordb.Hit {
	vec, err := embeddings.EmbedOne(ctx, r.Embedder, query)
	if err != nil {
		log.Printf("retrieval: embedding query failed: %v", err)
		return nil
	}
	w := r.Weights
	if w.Symptom == 0 && w.Description == 0 {
		w = vectordb.DefaultWeights
	}
	hits, err := r.Index.HybridSearch(ctx, vec, topK, w)
	if err != nil {
		log.Printf("retrieval: hybrid search failed: %v", err)
		return nil
	}
	return hits
}

// rerank reorders candidates by relevance and keeps the top RerankTopK. Any
// reranker failure leaves the input untouched.
func (r *Retriever) rerank(ctx context.Context, query string, candidates []Candidate) []Candidate {
	if r.Reranker == nil {
		return candidates
	}
	limit := r.RerankTopK
	if limit <= 0 {
		limit = RerankTopK
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = rerankDocument(c)
	}

	results, err := r.Reranker.Rerank(ctx, query, docs)
	if err != nil {
		log.Printf("retrieval: rerank failed, using vector order: %v", err)
		return candidates
	}
	if len(results) == 0 {
		log.Printf("retrieval: rerank returned no results, using vector order")
		return candidates
	}

	out := make([]Candidate, 0, len(results))
	seen := make(map[int]bool, len(results))
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(candidates) || seen[res.Index] {
			continue
		}
		seen[res.Index] = true
		c := candidates[res.Index]
		score := res.RelevanceScore
		c.RelevanceScore = &score
		out = append(out, c)
		if len(out) == limit {
			break
		}
	}
	if len(out) == 0 {
		return candidates
	}
	return out
}

func rerankDocument(c Candidate) string {
	return fmt.Sprintf("症状：%s 描述：%s", strings.Join(c.Symptoms, ","), c.Description)
}
