package vectordb

import "context"

// Index stores diseases under two embeddings (symptoms and description)
// and answers weighted hybrid queries over both.
type Index interface {
	// AddDisease adds or replaces a disease. symptomVec may be nil when the
	// disease has no symptom list.
	AddDisease(ctx context.Context, d Disease, symptomVec, descVec []float32) error

	// HybridSearch returns up to topK diseases ranked by the weighted
	// combination of symptom and description similarity to query.
	HybridSearch(ctx context.Context, query []float32, topK int, w Weights) ([]Hit, error)

	// Persist saves the index to the given directory.
	Persist(ctx context.Context, dir string) error

	// Load restores the index from the given directory.
	Load(ctx context.Context, dir string) error

	// Count returns the number of indexed diseases.
	Count() int
}
