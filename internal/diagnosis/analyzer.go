package diagnosis

import (
	"context"
	"errors"
	"fmt"

	"github.com/ziadkadry99/diagrag/internal/llm"
	"github.com/ziadkadry99/diagrag/internal/tagtext"
)

const analysisTag = "diagnose"

var (
	errAnalysisFormat = errors.New("未找到有效的诊断结果格式")
	errAnalysisJSON   = errors.New("JSON格式解析失败")
)

// analyze asks the model whether the candidates need graph enrichment and
// for which diseases. Every failure is returned as an error whose message
// is shown to the user verbatim.
func analyze(ctx context.Context, m llm.Model, query string, candidates []Candidate) (Analysis, error) {
	content, err := llm.Generate(ctx, m, buildAnalysisSystemPrompt(candidates), query, 0, 0)
	if err != nil {
		return Analysis{}, fmt.Errorf("分析失败: %w", err)
	}
	return parseAnalysis(content)
}

func parseAnalysis(content string) (Analysis, error) {
	var a Analysis
	if err := tagtext.Decode(content, analysisTag, &a); err != nil {
		if errors.Is(err, tagtext.ErrNotFound) {
			return Analysis{}, errAnalysisFormat
		}
		return Analysis{}, errAnalysisJSON
	}
	return a, nil
}
