package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/diagrag/internal/embeddings"
)

const (
	symptomCollection     = "disease_symptoms"
	descriptionCollection = "disease_descriptions"
	indexFile             = "diseases.gob.gz"
)

// ChromemIndex implements Index using two chromem-go collections.
type ChromemIndex struct {
	db           *chromem.DB
	symptoms     *chromem.Collection
	descriptions *chromem.Collection
	embedFunc    chromem.EmbeddingFunc
}

// NewChromemIndex creates a new in-memory ChromemIndex.
func NewChromemIndex(embedder embeddings.Embedder) (*ChromemIndex, error) {
	idx := &ChromemIndex{
		db:        chromem.NewDB(),
		embedFunc: embeddings.ToChromemFunc(embedder),
	}
	if err := idx.bindCollections(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (x *ChromemIndex) bindCollections() error {
	sym, err := x.db.GetOrCreateCollection(symptomCollection, nil, x.embedFunc)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", symptomCollection, err)
	}
	desc, err := x.db.GetOrCreateCollection(descriptionCollection, nil, x.embedFunc)
	if err != nil {
		return fmt.Errorf("create collection %s: %w", descriptionCollection, err)
	}
	x.symptoms, x.descriptions = sym, desc
	return nil
}

func (x *ChromemIndex) AddDisease(ctx context.Context, d Disease, symptomVec, descVec []float32) error {
	if d.ID == "" {
		return fmt.Errorf("disease %q has no id", d.Name)
	}
	md, err := metadataFor(d)
	if err != nil {
		return err
	}

	if len(d.Symptoms) > 0 && len(symptomVec) > 0 {
		err := x.symptoms.AddDocument(ctx, chromem.Document{
			ID:        d.ID,
			Content:   d.SymptomText(),
			Embedding: symptomVec,
			Metadata:  md,
		})
		if err != nil {
			return fmt.Errorf("add %s to symptom collection: %w", d.ID, err)
		}
	}

	err = x.descriptions.AddDocument(ctx, chromem.Document{
		ID:        d.ID,
		Content:   d.DescriptionText(),
		Embedding: descVec,
		Metadata:  md,
	})
	if err != nil {
		return fmt.Errorf("add %s to description collection: %w", d.ID, err)
	}
	return nil
}

// HybridSearch queries each collection for 2*topK neighbours, maps cosine
// similarity into [0,1] and sums the weighted scores per disease. A disease
// missing from one sub-search contributes nothing for that field.
func (x *ChromemIndex) HybridSearch(ctx context.Context, query []float32, topK int, w Weights) ([]Hit, error) {
	if topK <= 0 {
		topK = 5
	}

	type fused struct {
		hit   Hit
		order int
	}
	scores := make(map[string]*fused)
	seen := 0

	sub := func(col *chromem.Collection, weight float64) error {
		limit := 2 * topK
		if count := col.Count(); limit > count {
			limit = count
		}
		if limit == 0 || weight == 0 {
			return nil
		}
		results, err := col.QueryEmbedding(ctx, query, limit, nil, nil)
		if err != nil {
			return fmt.Errorf("chromem query %s: %w", col.Name, err)
		}
		for _, r := range results {
			f, ok := scores[r.ID]
			if !ok {
				f = &fused{hit: Hit{Disease: diseaseFrom(r.ID, r.Metadata)}, order: seen}
				scores[r.ID] = f
				seen++
			}
			f.hit.Similarity += weight * (1 + float64(r.Similarity)) / 2
		}
		return nil
	}

	if err := sub(x.symptoms, w.Symptom); err != nil {
		return nil, err
	}
	if err := sub(x.descriptions, w.Description); err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return nil, nil
	}

	all := make([]*fused, 0, len(scores))
	for _, f := range scores {
		all = append(all, f)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].hit.Similarity != all[j].hit.Similarity {
			return all[i].hit.Similarity > all[j].hit.Similarity
		}
		return all[i].order < all[j].order
	})
	if len(all) > topK {
		all = all[:topK]
	}

	hits := make([]Hit, len(all))
	for i, f := range all {
		hits[i] = f.hit
	}
	return hits, nil
}

func (x *ChromemIndex) Persist(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	return x.db.ExportToFile(filepath.Join(dir, indexFile), true, "")
}

func (x *ChromemIndex) Load(ctx context.Context, dir string) error {
	if err := x.db.ImportFromFile(filepath.Join(dir, indexFile), ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection references after import.
	return x.bindCollections()
}

func (x *ChromemIndex) Count() int {
	return x.descriptions.Count()
}

func metadataFor(d Disease) (map[string]string, error) {
	symptoms, err := json.Marshal(d.Symptoms)
	if err != nil {
		return nil, fmt.Errorf("marshalling symptoms of %s: %w", d.ID, err)
	}
	return map[string]string{
		"name":    d.Name,
		"desc":    d.Description,
		"symptom": string(symptoms),
	}, nil
}

func diseaseFrom(id string, m map[string]string) Disease {
	var symptoms []string
	if raw := m["symptom"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &symptoms); err != nil {
			symptoms = []string{raw}
		}
	}
	return Disease{
		ID:          id,
		Name:        m["name"],
		Description: m["desc"],
		Symptoms:    symptoms,
	}
}
