package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubEmbedder struct {
	vecs [][]float32
	err  error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return s.vecs, s.err
}
func (s *stubEmbedder) Dimensions() int { return 2 }
func (s *stubEmbedder) Name() string    { return "stub" }

func TestEmbedOne(t *testing.T) {
	vec, err := EmbedOne(context.Background(), &stubEmbedder{vecs: [][]float32{{1, 0}}}, "x")
	if err != nil {
		t.Fatalf("EmbedOne: %v", err)
	}
	if len(vec) != 2 || vec[0] != 1 {
		t.Errorf("vec = %v", vec)
	}

	if _, err := EmbedOne(context.Background(), &stubEmbedder{}, "x"); err == nil {
		t.Error("expected error for empty result")
	}
	if _, err := EmbedOne(context.Background(), &stubEmbedder{err: errors.New("down")}, "x"); err == nil {
		t.Error("expected error passthrough")
	}
}

func TestChromemFunc(t *testing.T) {
	fn := ToChromemFunc(&stubEmbedder{vecs: [][]float32{{0, 1}}})
	vec, err := fn(context.Background(), "x")
	if err != nil {
		t.Fatalf("chromem func: %v", err)
	}
	if vec[1] != 1 {
		t.Errorf("vec = %v", vec)
	}
}

func TestOpenAIEmbedderDimensions(t *testing.T) {
	if d := NewOpenAIEmbedder("k", ModelTextEmbedding3Large, "", 0).Dimensions(); d != 3072 {
		t.Errorf("large dims = %d", d)
	}
	if d := NewOpenAIEmbedder("k", "Qwen/Qwen3-Embedding-8B", "https://api.siliconflow.cn/v1", 4096).Dimensions(); d != 4096 {
		t.Errorf("override dims = %d", d)
	}
}

func TestOllamaEmbedder(t *testing.T) {
	var batches []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaEmbedRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "bge-m3" {
			t.Errorf("model = %q", req.Model)
		}
		batches = append(batches, len(req.Input))
		out := ollamaEmbedResponse{}
		for range req.Input {
			out.Embeddings = append(out.Embeddings, []float32{0.5, 0.5, 0})
		}
		json.NewEncoder(w).Encode(out)
	}))
	defer srv.Close()

	texts := make([]string, ollamaBatchSize+3)
	for i := range texts {
		texts[i] = "咳嗽"
	}

	e := NewOllamaEmbedder("bge-m3", 3, srv.URL)
	vecs, err := e.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vecs) != len(texts) || len(vecs[0]) != 3 {
		t.Errorf("got %d vectors of %d dims", len(vecs), len(vecs[0]))
	}
	if len(batches) != 2 || batches[0] != ollamaBatchSize || batches[1] != 3 {
		t.Errorf("batches = %v", batches)
	}
	if e.Name() != "ollama/bge-m3" {
		t.Errorf("Name = %q", e.Name())
	}
}

func TestOllamaEmbedderRejectsMismatchedResponses(t *testing.T) {
	tests := []struct {
		name string
		resp ollamaEmbedResponse
	}{
		{"too few vectors", ollamaEmbedResponse{Embeddings: [][]float32{{1, 0, 0}}}},
		{"wrong dimensions", ollamaEmbedResponse{Embeddings: [][]float32{{1, 0}, {0, 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tt.resp)
			}))
			defer srv.Close()

			if _, err := NewOllamaEmbedder("bge-m3", 3, srv.URL).Embed(context.Background(), []string{"a", "b"}); err == nil {
				t.Error("expected error")
			}
		})
	}
}
