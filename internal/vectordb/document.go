package vectordb

import "strings"

// Disease is one knowledge-base entry as stored in the index.
type Disease struct {
	ID          string
	Name        string
	Description string
	Symptoms    []string
}

// SymptomText is the text embedded into the symptom collection.
func (d Disease) SymptomText() string {
	return strings.Join(d.Symptoms, " ")
}

// DescriptionText is the text embedded into the description collection.
// Diseases without a description fall back to their name so that every
// disease is present in that collection.
func (d Disease) DescriptionText() string {
	if strings.TrimSpace(d.Description) == "" {
		return d.Name
	}
	return d.Description
}

// Hit pairs a disease with its fused hybrid-search score.
type Hit struct {
	Disease    Disease
	Similarity float64
}

// Weights controls how symptom and description similarity are combined.
type Weights struct {
	Symptom     float64
	Description float64
}

// DefaultWeights favours symptom similarity.
var DefaultWeights = Weights{Symptom: 0.6, Description: 0.4}
