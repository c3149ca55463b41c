package vectordb

import (
	"fmt"
	"strings"
)

// FormatHits renders search hits as human-readable text.
func FormatHits(hits []Hit) string {
	if len(hits) == 0 {
		return "No results found."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d result(s):\n\n", len(hits)))

	for i, h := range hits {
		sb.WriteString(fmt.Sprintf("--- Result %d (similarity: %.4f) ---\n", i+1, h.Similarity))
		sb.WriteString(fmt.Sprintf("Disease: %s\n", h.Disease.Name))
		if len(h.Disease.Symptoms) > 0 {
			sb.WriteString(fmt.Sprintf("Symptoms: %s\n", strings.Join(h.Disease.Symptoms, ", ")))
		}
		if h.Disease.Description != "" {
			sb.WriteString("\n")
			sb.WriteString(h.Disease.Description)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
