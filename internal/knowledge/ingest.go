package knowledge

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/ziadkadry99/diagrag/internal/embeddings"
	"github.com/ziadkadry99/diagrag/internal/graph"
	"github.com/ziadkadry99/diagrag/internal/progress"
	"github.com/ziadkadry99/diagrag/internal/vectordb"
)

// DefaultBatchSize is the number of records embedded per request.
const DefaultBatchSize = 20

// GraphWriter stores graph nodes.
type GraphWriter interface {
	Upsert(ctx context.Context, d graph.Disease) error
}

// Ingester writes records into the vector index and the graph.
type Ingester struct {
	Embedder  embeddings.Embedder
	Index     vectordb.Index
	Graph     GraphWriter
	Reporter  progress.Reporter
	BatchSize int
}

// Stats summarises an ingestion run.
type Stats struct {
	Files    int
	Records  int
	Indexed  int
	Graphed  int
	Skipped  int
	FailedID []string
}

// IngestFiles reads every file and ingests its records.
func (in *Ingester) IngestFiles(ctx context.Context, files []string) (Stats, error) {
	var all []Record
	stats := Stats{Files: len(files)}
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return stats, fmt.Errorf("opening %s: %w", path, err)
		}
		records, skipped, err := ReadRecords(f)
		f.Close()
		if err != nil {
			return stats, fmt.Errorf("reading %s: %w", path, err)
		}
		all = append(all, records...)
		stats.Skipped += skipped
	}

	s, err := in.Ingest(ctx, all)
	s.Files, s.Skipped = stats.Files, s.Skipped+stats.Skipped
	return s, err
}

// Ingest embeds and stores records in batches. Records whose embedding fails
// are reported in Stats.FailedID and still written to the graph.
func (in *Ingester) Ingest(ctx context.Context, records []Record) (Stats, error) {
	stats := Stats{Records: len(records)}
	reporter := in.Reporter
	if reporter == nil {
		reporter = progress.NopReporter{}
	}
	batch := in.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	reporter.Start(len(records))
	defer reporter.Finish()

	for start := 0; start < len(records); start += batch {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := min(start+batch, len(records))
		chunk := records[start:end]

		failed := in.indexBatch(ctx, chunk, &stats)
		stats.FailedID = append(stats.FailedID, failed...)

		for i, rec := range chunk {
			if in.Graph != nil {
				if err := in.Graph.Upsert(ctx, rec.GraphNode()); err != nil {
					log.Printf("knowledge: graph upsert for %s failed: %v", rec.Name, err)
				} else {
					stats.Graphed++
				}
			}
			reporter.Update(start+i+1, rec.Name)
		}
	}
	return stats, nil
}

func (in *Ingester) indexBatch(ctx context.Context, chunk []Record, stats *Stats) []string {
	diseases := make([]vectordb.Disease, len(chunk))
	descTexts := make([]string, len(chunk))
	var symTexts []string
	var symOwners []int
	for i, rec := range chunk {
		d := rec.Disease()
		diseases[i] = d
		descTexts[i] = d.DescriptionText()
		if len(d.Symptoms) > 0 {
			symTexts = append(symTexts, d.SymptomText())
			symOwners = append(symOwners, i)
		}
	}

	descVecs, err := in.Embedder.Embed(ctx, descTexts)
	if err != nil || len(descVecs) != len(chunk) {
		log.Printf("knowledge: embedding %d descriptions failed: %v", len(chunk), err)
		var ids []string
		for _, d := range diseases {
			ids = append(ids, d.ID)
		}
		return ids
	}

	symVecs := make([][]float32, len(chunk))
	if len(symTexts) > 0 {
		vecs, err := in.Embedder.Embed(ctx, symTexts)
		if err != nil || len(vecs) != len(symTexts) {
			log.Printf("knowledge: embedding %d symptom lists failed, indexing descriptions only: %v", len(symTexts), err)
		} else {
			for j, owner := range symOwners {
				symVecs[owner] = vecs[j]
			}
		}
	}

	var failed []string
	for i, d := range diseases {
		if err := in.Index.AddDisease(ctx, d, symVecs[i], descVecs[i]); err != nil {
			log.Printf("knowledge: indexing %s failed: %v", d.Name, err)
			failed = append(failed, d.ID)
			continue
		}
		stats.Indexed++
		if len(d.Symptoms) > 0 && symVecs[i] == nil {
			failed = append(failed, d.ID)
		}
	}
	return failed
}
