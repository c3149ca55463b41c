package diagnosis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestZeroHitsReturnsNoResultsMessage(t *testing.T) {
	h := newHarness(nil, newFakeLLM())

	got := h.engine.RunSession(context.Background(), "头痛", SessionOptions{})
	if got != NoResultsMessage {
		t.Fatalf("got %q, want %q", got, NoResultsMessage)
	}
	if h.reranker.calls != 0 {
		t.Errorf("reranker called %d times", h.reranker.calls)
	}
	if len(h.graph.calls) != 0 {
		t.Errorf("graph called %d times", len(h.graph.calls))
	}
	if n := h.llm.total(); n != 0 {
		t.Errorf("generation called %d times", n)
	}
}

func TestSearchErrorsCountAsZeroHits(t *testing.T) {
	h := newHarness(makeHits(3), newFakeLLM())
	h.index.err = errBoom

	if got := h.engine.RunSession(context.Background(), "头痛", SessionOptions{}); got != NoResultsMessage {
		t.Errorf("search error: got %q", got)
	}

	h = newHarness(makeHits(3), newFakeLLM())
	h.embedder.err = errBoom
	if got := h.engine.RunSession(context.Background(), "头痛", SessionOptions{}); got != NoResultsMessage {
		t.Errorf("embedding error: got %q", got)
	}
	if h.index.calls != 0 {
		t.Errorf("index searched after embedding failure")
	}
}

func TestPersistentCoughScenarioAcceptsFirstDraft(t *testing.T) {
	f := newFakeLLM().
		on(stageAnalysis, reply{content: analysisNoInfo}).
		on(stageDoctor, reply{content: "诊断：急性支气管炎"}).
		on(stageReview, reply{content: reviewAccept})
	h := newHarness(makeHits(5), f)

	res := h.engine.Run(context.Background(), "persistent cough and fever", SessionOptions{})

	if res.Diagnosis != "诊断：急性支气管炎" {
		t.Errorf("Diagnosis = %q", res.Diagnosis)
	}
	if res.Outcome != OutcomeAccepted || res.Rejections != 0 {
		t.Errorf("Outcome = %s, Rejections = %d", res.Outcome, res.Rejections)
	}
	if len(res.Bundle.VectorResults) != 5 {
		t.Errorf("VectorResults = %d, want 5", len(res.Bundle.VectorResults))
	}
	if res.Bundle.GraphData.Len() != 0 {
		t.Errorf("GraphData should be empty, got %v", res.Bundle.GraphData.Names())
	}
	if len(h.graph.calls) != 0 || f.count(stageSimplify) != 0 {
		t.Errorf("enrichment ran without need_more_info")
	}
	for i, c := range res.Bundle.VectorResults {
		if c.RelevanceScore == nil {
			t.Errorf("candidate %d has no relevance score", i)
		}
	}
	if f.count(stageDoctor) != 1 || f.count(stageReview) != 1 {
		t.Errorf("doctor=%d review=%d, want 1/1", f.count(stageDoctor), f.count(stageReview))
	}
}

func TestAlwaysRejectExhaustsRetries(t *testing.T) {
	f := newFakeLLM().
		on(stageAnalysis, reply{content: analysisNoInfo}).
		on(stageDoctor,
			reply{content: "草稿1"}, reply{content: "草稿2"},
			reply{content: "草稿3"}, reply{content: "最终草稿"}).
		on(stageReview, reply{content: reviewReject})
	h := newHarness(makeHits(5), f)

	res := h.engine.Run(context.Background(), "咳嗽", SessionOptions{})

	if got := f.count(stageDoctor); got != 4 {
		t.Errorf("doctor calls = %d, want 4", got)
	}
	if got := f.count(stageReview); got != 3 {
		t.Errorf("review calls = %d, want 3", got)
	}
	if res.Diagnosis != "最终草稿" {
		t.Errorf("Diagnosis = %q, want final unreviewed draft", res.Diagnosis)
	}
	if res.Outcome != OutcomeExhausted || res.Rejections != 3 {
		t.Errorf("Outcome = %s, Rejections = %d", res.Outcome, res.Rejections)
	}

	var verdicts []AttemptVerdict
	for _, a := range res.Attempts {
		verdicts = append(verdicts, a.Verdict)
	}
	want := []AttemptVerdict{VerdictRejected, VerdictRejected, VerdictRejected, VerdictFinal}
	if diff := cmp.Diff(want, verdicts); diff != "" {
		t.Errorf("verdicts mismatch (-want +got):\n%s", diff)
	}

	if !strings.Contains(f.userPrompt(stageDoctor, 3), "症状更符合肺炎") {
		t.Error("final draft did not receive the last feedback")
	}
}

func TestAmbiguousReviewAccepts(t *testing.T) {
	for _, review := range []string{
		"<expert_review>不确定</expert_review>",
		"没有任何标签的回答",
	} {
		f := newFakeLLM().
			on(stageAnalysis, reply{content: analysisNoInfo}).
			on(stageDoctor, reply{content: "原始草稿\n保持不变"}).
			on(stageReview, reply{content: review})
		h := newHarness(makeHits(2), f)

		got := h.engine.RunSession(context.Background(), "咳嗽", SessionOptions{})
		if got != "原始草稿\n保持不变" {
			t.Errorf("review %q: got %q", review, got)
		}
		if f.count(stageDoctor) != 1 {
			t.Errorf("review %q: doctor calls = %d", review, f.count(stageDoctor))
		}
	}
}

func TestRejectionFeedbackCarriedForward(t *testing.T) {
	f := newFakeLLM().
		on(stageAnalysis, reply{content: analysisNoInfo}).
		on(stageDoctor, reply{content: "草稿1"}, reply{content: "草稿2"}, reply{content: "草稿3"}).
		on(stageReview,
			reply{content: reviewReject},
			reply{content: "<expert_review>0</expert_review>"},
			reply{content: reviewAccept})
	h := newHarness(makeHits(3), f)

	res := h.engine.Run(context.Background(), "咳嗽", SessionOptions{})

	if res.Diagnosis != "草稿3" || res.Rejections != 2 {
		t.Fatalf("Diagnosis = %q, Rejections = %d", res.Diagnosis, res.Rejections)
	}
	if strings.Contains(f.userPrompt(stageDoctor, 0), "上轮专家建议") {
		t.Error("first draft should have no feedback")
	}
	if !strings.Contains(f.userPrompt(stageDoctor, 1), "肺炎") {
		t.Error("second draft missing reviewer suggestions")
	}
	if !strings.Contains(f.userPrompt(stageDoctor, 2), "现有诊断不够准确，需要重新分析") {
		t.Error("third draft missing placeholder feedback")
	}
}

func TestDraftErrorsAreSkippedAttempts(t *testing.T) {
	f := newFakeLLM().
		on(stageAnalysis, reply{content: analysisNoInfo}).
		on(stageDoctor, reply{err: errBoom}, reply{err: errBoom}, reply{err: errBoom}, reply{content: "最终草稿"})
	h := newHarness(makeHits(2), f)

	res := h.engine.Run(context.Background(), "咳嗽", SessionOptions{})

	if res.Diagnosis != "最终草稿" || res.Outcome != OutcomeExhausted {
		t.Errorf("Diagnosis = %q, Outcome = %s", res.Diagnosis, res.Outcome)
	}
	if res.Rejections != 0 {
		t.Errorf("Rejections = %d, want 0", res.Rejections)
	}
	if f.count(stageReview) != 0 {
		t.Errorf("review called for failed drafts")
	}
	if res.Attempts[0].Verdict != VerdictFailed || res.Attempts[0].Err == "" {
		t.Errorf("attempt 0 = %+v", res.Attempts[0])
	}
}

func TestReviewErrorIsSkippedAttempt(t *testing.T) {
	f := newFakeLLM().
		on(stageAnalysis, reply{content: analysisNoInfo}).
		on(stageDoctor, reply{content: "草稿1"}, reply{content: "草稿2"}).
		on(stageReview, reply{err: errBoom}, reply{content: reviewAccept})
	h := newHarness(makeHits(2), f)

	res := h.engine.Run(context.Background(), "咳嗽", SessionOptions{})
	if res.Diagnosis != "草稿2" || res.Rejections != 0 {
		t.Errorf("Diagnosis = %q, Rejections = %d", res.Diagnosis, res.Rejections)
	}
}

func TestFinalDraftFailure(t *testing.T) {
	f := newFakeLLM().
		on(stageAnalysis, reply{content: analysisNoInfo}).
		on(stageDoctor, reply{err: errBoom})
	h := newHarness(makeHits(2), f)

	got := h.engine.RunSession(context.Background(), "咳嗽", SessionOptions{})
	if !strings.HasPrefix(got, "doctor模块最终诊断失败: ") {
		t.Errorf("got %q", got)
	}
	if f.count(stageDoctor) != 4 {
		t.Errorf("doctor calls = %d, want 4", f.count(stageDoctor))
	}
}

func TestAnalysisFailuresAreTerminal(t *testing.T) {
	tests := []struct {
		name  string
		reply reply
		want  string
	}{
		{"missing tag", reply{content: "我认为是感冒"}, "未找到有效的诊断结果格式"},
		{"bad json", reply{content: "<diagnose>{need_more_info: yes}</diagnose>"}, "JSON格式解析失败"},
		{"provider error", reply{err: errBoom}, "分析失败: "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeLLM().on(stageAnalysis, tt.reply)
			h := newHarness(makeHits(2), f)

			res := h.engine.Run(context.Background(), "咳嗽", SessionOptions{})
			if !strings.HasPrefix(res.Diagnosis, tt.want) {
				t.Errorf("Diagnosis = %q, want prefix %q", res.Diagnosis, tt.want)
			}
			if res.Outcome != OutcomeFatal {
				t.Errorf("Outcome = %s", res.Outcome)
			}
			if f.count(stageDoctor) != 0 {
				t.Error("drafting ran after analysis failure")
			}
		})
	}
}

func TestEnrichmentKeepsVectorResults(t *testing.T) {
	f := newFakeLLM().
		on(stageAnalysis, reply{content: `<diagnose>{"need_more_info": true, "diseases": ["疾病2", "疾病1", "疾病3", "不存在"]}</diagnose>`}).
		on(stageSimplify, reply{content: "<simplified_cause>病毒感染</simplified_cause>"}).
		on(stageDoctor, reply{content: "草稿"}).
		on(stageReview, reply{content: reviewAccept})
	h := newHarness(makeHits(5), f)
	h.graph.blocks = map[string]string{
		"疾病1": "疾病名称：疾病1\n\n疾病病因：呼吸道合胞病毒\n等多种病毒感染\n\n治疗科室：内科 呼吸内科",
		"疾病2": "疾病名称：疾病2\n\n疾病病因：细菌感染\n\n并发症：脓胸",
		"疾病3": "疾病名称：疾病3\n\n治疗科室：内科",
	}

	res := h.engine.Run(context.Background(), "咳嗽", SessionOptions{})

	if len(res.Bundle.VectorResults) != 5 {
		t.Errorf("VectorResults = %d, want 5", len(res.Bundle.VectorResults))
	}
	if diff := cmp.Diff([]string{"疾病2", "疾病1", "疾病3", "不存在"}, h.graph.calls); diff != "" {
		t.Errorf("graph lookups (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"疾病2", "疾病1"}, res.Bundle.GraphData.Names()); diff != "" {
		t.Errorf("enriched diseases (-want +got):\n%s", diff)
	}
	if f.count(stageSimplify) != 2 {
		t.Errorf("simplify calls = %d, want 2", f.count(stageSimplify))
	}

	block, _ := res.Bundle.GraphData.Get("疾病1")
	want := "疾病名称：疾病1\n\n疾病病因：病毒感染\n\n治疗科室：内科 呼吸内科"
	if block != want {
		t.Errorf("block =\n%q\nwant\n%q", block, want)
	}
	if !strings.Contains(f.userPrompt(stageSimplify, 1), "呼吸道合胞病毒等多种病毒感染") {
		t.Error("continuation line not joined into the cause sent for rewriting")
	}
	if !strings.Contains(f.userPrompt(stageDoctor, 0), "疾病病因：病毒感染") {
		t.Error("draft prompt missing graph data")
	}
}

func TestGraphLookupErrorSkipsDisease(t *testing.T) {
	f := newFakeLLM().
		on(stageAnalysis, reply{content: `<diagnose>{"need_more_info": true, "diseases": ["疾病1", "疾病2"]}</diagnose>`}).
		on(stageSimplify, reply{content: "<simplified_cause>细菌感染</simplified_cause>"}).
		on(stageDoctor, reply{content: "草稿"}).
		on(stageReview, reply{content: reviewAccept})
	h := newHarness(makeHits(2), f)
	h.graph.blocks = map[string]string{"疾病2": "疾病名称：疾病2\n疾病病因：细菌"}
	h.graph.errFor = map[string]error{"疾病1": errBoom}

	res := h.engine.Run(context.Background(), "咳嗽", SessionOptions{})
	if diff := cmp.Diff([]string{"疾病2"}, res.Bundle.GraphData.Names()); diff != "" {
		t.Errorf("enriched diseases (-want +got):\n%s", diff)
	}
}

func TestRetrievalPanicBecomesFailure(t *testing.T) {
	f := newFakeLLM().
		on(stageAnalysis, reply{content: `<diagnose>{"need_more_info": true, "diseases": ["疾病1"]}</diagnose>`})
	h := newHarness(makeHits(2), f)
	h.graph.panicFor = "疾病1"

	res := h.engine.Run(context.Background(), "咳嗽", SessionOptions{})
	if !strings.HasPrefix(res.Diagnosis, "获取初始诊断数据出错: ") {
		t.Errorf("Diagnosis = %q", res.Diagnosis)
	}
	if res.Outcome != OutcomeFatal {
		t.Errorf("Outcome = %s", res.Outcome)
	}
}

func TestRerankReordersAndTruncates(t *testing.T) {
	f := newFakeLLM().
		on(stageAnalysis, reply{content: analysisNoInfo}).
		on(stageDoctor, reply{content: "草稿"}).
		on(stageReview, reply{content: reviewAccept})
	h := newHarness(makeHits(8), f)
	h.engine = NewEngine(Options{
		Retriever: h.engine.opts.Retriever,
		Models:    h.engine.opts.Models,
		TopK:      8,
	})
	h.reranker.order = []int{7, 6, 5, 4, 3, 2, 1, 0}

	res := h.engine.Run(context.Background(), "咳嗽", SessionOptions{})

	var names []string
	for _, c := range res.Bundle.VectorResults {
		names = append(names, c.Name)
	}
	want := []string{"疾病8", "疾病7", "疾病6", "疾病5", "疾病4"}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Errorf("reranked names (-want +got):\n%s", diff)
	}
	if h.reranker.docs[0] != "症状：咳嗽,发热 描述：描述1" {
		t.Errorf("rerank document = %q", h.reranker.docs[0])
	}
}

func TestRerankSkipsRepeatedIndices(t *testing.T) {
	f := newFakeLLM().
		on(stageAnalysis, reply{content: analysisNoInfo}).
		on(stageDoctor, reply{content: "草稿"}).
		on(stageReview, reply{content: reviewAccept})
	h := newHarness(makeHits(2), f)
	h.reranker.order = []int{0, 0, 1}

	res := h.engine.Run(context.Background(), "咳嗽", SessionOptions{})

	var names []string
	for _, c := range res.Bundle.VectorResults {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"疾病1", "疾病2"}, names); diff != "" {
		t.Errorf("reranked names (-want +got):\n%s", diff)
	}
	if got := *res.Bundle.VectorResults[0].RelevanceScore; got != 1 {
		t.Errorf("first occurrence score = %v, want 1", got)
	}
}

func TestRerankFailurePassesThroughUntruncated(t *testing.T) {
	f := newFakeLLM().
		on(stageAnalysis, reply{content: analysisNoInfo}).
		on(stageDoctor, reply{content: "草稿"}).
		on(stageReview, reply{content: reviewAccept})
	h := newHarness(makeHits(8), f)
	h.engine = NewEngine(Options{
		Retriever: h.engine.opts.Retriever,
		Models:    h.engine.opts.Models,
		TopK:      8,
	})
	h.reranker.err = errBoom

	res := h.engine.Run(context.Background(), "咳嗽", SessionOptions{})
	if len(res.Bundle.VectorResults) != 8 {
		t.Errorf("VectorResults = %d, want 8", len(res.Bundle.VectorResults))
	}
	if res.Bundle.VectorResults[0].Name != "疾病1" || res.Bundle.VectorResults[0].RelevanceScore != nil {
		t.Errorf("original order not kept: %+v", res.Bundle.VectorResults[0])
	}
}

func TestUnknownModelIsFatal(t *testing.T) {
	h := newHarness(makeHits(2), newFakeLLM())

	res := h.engine.Run(context.Background(), "咳嗽", SessionOptions{Model: "missing"})
	if res.Outcome != OutcomeFatal || !strings.HasPrefix(res.Diagnosis, "模型不可用: ") {
		t.Errorf("Outcome = %s, Diagnosis = %q", res.Outcome, res.Diagnosis)
	}
	if h.index.calls != 0 {
		t.Error("retrieval ran with unknown model")
	}
}

func TestSessionIsRecorded(t *testing.T) {
	f := newFakeLLM().
		on(stageAnalysis, reply{content: analysisNoInfo}).
		on(stageDoctor, reply{content: "草稿"}).
		on(stageReview, reply{content: reviewAccept})
	h := newHarness(makeHits(2), f)
	h.recorder.err = errors.New("disk full")

	res := h.engine.Run(context.Background(), "咳嗽", SessionOptions{})

	if len(h.recorder.results) != 1 || h.recorder.results[0] != res {
		t.Fatalf("recorded %d results", len(h.recorder.results))
	}
	if res.SessionID == "" || res.Model != "test" {
		t.Errorf("SessionID = %q, Model = %q", res.SessionID, res.Model)
	}
	if res.FinishedAt.Before(res.StartedAt) {
		t.Error("FinishedAt before StartedAt")
	}
}

func TestAllowlistInPrompts(t *testing.T) {
	f := newFakeLLM().
		on(stageAnalysis, reply{content: analysisNoInfo}).
		on(stageDoctor, reply{content: "草稿"}).
		on(stageReview, reply{content: reviewAccept})
	h := newHarness(makeHits(2), f)

	h.engine.RunSession(context.Background(), "咳嗽", SessionOptions{Allowlist: []string{"肺炎", "感冒"}})

	const want = "可选疾病列表：肺炎, 感冒"
	if !strings.Contains(f.userPrompt(stageDoctor, 0), want) {
		t.Error("draft prompt missing allowlist")
	}
	if !strings.Contains(f.userPrompt(stageReview, 0), want) {
		t.Error("review prompt missing allowlist")
	}
}

func TestEngineAllowlistSource(t *testing.T) {
	f := newFakeLLM().
		on(stageAnalysis, reply{content: analysisNoInfo}).
		on(stageDoctor, reply{content: "草稿"}).
		on(stageReview, reply{content: reviewAccept})
	h := newHarness(makeHits(2), f)
	h.engine.opts.Allowlist = StaticAllowlist{"胃炎"}

	h.engine.RunSession(context.Background(), "胃痛", SessionOptions{})
	if !strings.Contains(f.userPrompt(stageReview, 0), "可选疾病列表：胃炎") {
		t.Error("review prompt missing engine allowlist")
	}
}

func TestEmptySessionAllowlistUsesEngineSource(t *testing.T) {
	f := newFakeLLM().
		on(stageAnalysis, reply{content: analysisNoInfo}).
		on(stageDoctor, reply{content: "草稿"}).
		on(stageReview, reply{content: reviewAccept})
	h := newHarness(makeHits(2), f)
	h.engine.opts.Allowlist = StaticAllowlist{"胃炎"}

	h.engine.RunSession(context.Background(), "胃痛", SessionOptions{Allowlist: []string{}})
	if !strings.Contains(f.userPrompt(stageReview, 0), "可选疾病列表：胃炎") {
		t.Error("empty session allowlist should fall back to the engine source")
	}
}

func TestReviewModelSelection(t *testing.T) {
	draft := newFakeLLM().
		on(stageAnalysis, reply{content: analysisNoInfo}).
		on(stageDoctor, reply{content: "草稿"})
	reviewer := newFakeLLM().on(stageReview, reply{content: reviewAccept})

	h := newHarness(makeHits(2), draft)
	h.engine.opts.Models.Register("expert", reviewer, "expert-model")
	h.engine.opts.ReviewModel = "expert"

	if got := h.engine.RunSession(context.Background(), "咳嗽", SessionOptions{}); got != "草稿" {
		t.Fatalf("got %q", got)
	}
	if draft.count(stageReview) != 0 || reviewer.count(stageReview) != 1 {
		t.Errorf("review routed to wrong model: draft=%d expert=%d",
			draft.count(stageReview), reviewer.count(stageReview))
	}
}
