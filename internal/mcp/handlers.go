package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ziadkadry99/diagrag/internal/diagnosis"
)

// handleDiagnose runs a diagnostic session.
func (s *Server) handleDiagnose(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	symptoms, err := request.RequireString("symptoms")
	if err != nil || strings.TrimSpace(symptoms) == "" {
		return mcp.NewToolResultError("missing required parameter: symptoms"), nil
	}

	res := s.runner.Run(ctx, strings.TrimSpace(symptoms), diagnosis.SessionOptions{
		Model: request.GetString("model", ""),
	})
	if res.Outcome == diagnosis.OutcomeFatal {
		return mcp.NewToolResultError(res.Diagnosis), nil
	}

	return mcp.NewToolResultText(formatResult(res)), nil
}

// handleSearchDiseases returns reranked candidates for a symptom query.
func (s *Server) handleSearchDiseases(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", diagnosis.DefaultTopK)
	if limit <= 0 {
		limit = diagnosis.DefaultTopK
	}

	candidates, err := s.searcher.Candidates(ctx, query, limit)
	if errors.Is(err, diagnosis.ErrNoCandidates) || (err == nil && len(candidates) == 0) {
		return mcp.NewToolResultText("No matching diseases found. The knowledge base may not be ingested yet. Run `diagrag ingest` first."), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return mcp.NewToolResultText(formatCandidates(candidates)), nil
}

// handleGetDisease returns the graph fact block for one disease.
func (s *Server) handleGetDisease(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: name"), nil
	}

	block, err := s.graph.Lookup(ctx, strings.TrimSpace(name))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("lookup failed: %v", err)), nil
	}
	if block == "" {
		return mcp.NewToolResultError(fmt.Sprintf("No graph facts found for %q.", name)), nil
	}

	return mcp.NewToolResultText(block), nil
}

func formatResult(res *diagnosis.Result) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Session: %s\n", res.SessionID))
	sb.WriteString(fmt.Sprintf("Outcome: %s (rejections: %d)\n\n", res.Outcome, res.Rejections))
	sb.WriteString(res.Diagnosis)
	sb.WriteString("\n")
	return sb.String()
}

// formatCandidates converts candidates into a text format for agent consumption.
func formatCandidates(candidates []diagnosis.Candidate) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d disease(s):\n", len(candidates)))

	for i, c := range candidates {
		sb.WriteString(fmt.Sprintf("\n--- %d. %s ---\n", i+1, c.Name))
		if c.Description != "" {
			sb.WriteString(fmt.Sprintf("Description: %s\n", c.Description))
		}
		if len(c.Symptoms) > 0 {
			sb.WriteString(fmt.Sprintf("Symptoms: %s\n", strings.Join(c.Symptoms, ", ")))
		}
		sb.WriteString(fmt.Sprintf("Similarity: %.1f%%\n", c.SimilarityScore*100))
		if c.RelevanceScore != nil {
			sb.WriteString(fmt.Sprintf("Relevance: %.3f\n", *c.RelevanceScore))
		}
	}

	return sb.String()
}
