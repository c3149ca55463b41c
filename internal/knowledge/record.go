// Package knowledge loads the disease knowledge base from JSONL dumps into
// the vector index and the disease graph.
package knowledge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/ziadkadry99/diagrag/internal/graph"
	"github.com/ziadkadry99/diagrag/internal/vectordb"
)

// Record is one line of a knowledge-base dump.
type Record struct {
	ID struct {
		OID string `json:"$oid"`
	} `json:"_id"`
	Name          string   `json:"name"`
	Description   string   `json:"desc"`
	Symptoms      []string `json:"symptom"`
	Cause         string   `json:"cause"`
	Departments   []string `json:"cure_department"`
	Complications []string `json:"acompany"`
}

// Disease converts the record into an index entry.
func (r Record) Disease() vectordb.Disease {
	return vectordb.Disease{
		ID:          r.ID.OID,
		Name:        strings.TrimSpace(r.Name),
		Description: strings.TrimSpace(r.Description),
		Symptoms:    r.Symptoms,
	}
}

// GraphNode converts the record into a graph node.
func (r Record) GraphNode() graph.Disease {
	return graph.Disease{
		Name:          strings.TrimSpace(r.Name),
		Cause:         strings.TrimSpace(r.Cause),
		Departments:   r.Departments,
		Complications: r.Complications,
	}
}

// maxLineSize bounds a single JSONL record.
const maxLineSize = 4 << 20

// ReadRecords decodes a JSONL stream. Malformed lines and records without
// an id or name are skipped and counted.
func ReadRecords(r io.Reader) (records []Record, skipped int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			log.Printf("knowledge: skipping malformed line %d: %v", line, err)
			skipped++
			continue
		}
		if rec.ID.OID == "" || strings.TrimSpace(rec.Name) == "" {
			log.Printf("knowledge: skipping line %d without id or name", line)
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return records, skipped, fmt.Errorf("reading records: %w", err)
	}
	return records, skipped, nil
}
