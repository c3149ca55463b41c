package diagnosis

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ziadkadry99/diagrag/internal/llm"
)

func TestInterpretReview(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Review
	}{
		{"accept", "<expert_review>1</expert_review>", Review{Accepted: true}},
		{"accept wins over reject", "<expert_review>1 或 0</expert_review>", Review{Accepted: true}},
		{"missing tag", "诊断正确", Review{Accepted: true}},
		{"ambiguous", "<expert_review>需要进一步检查</expert_review>", Review{Accepted: true}},
		{"reject without suggestions", "<expert_review> 0 </expert_review>", Review{}},
		{"reject with empty suggestions", "<expert_review>0</expert_review><diagnostic_suggestions>{}</diagnostic_suggestions>", Review{}},
		{"reject with blank suggestions", "<expert_review>0</expert_review><diagnostic_suggestions>{\"recommended_diseases\": [], \"reason\": \" \"}</diagnostic_suggestions>", Review{}},
		{"reject with invalid suggestions", "<expert_review>0</expert_review><diagnostic_suggestions>{bad}</diagnostic_suggestions>", Review{}},
		{
			"reject with suggestions",
			"分析……\n<expert_review>0</expert_review>\n<diagnostic_suggestions>\n{\"recommended_diseases\": [\"肺炎\", \"支气管炎\"], \"reason\": \"发热伴咳痰\"}\n</diagnostic_suggestions>",
			Review{Suggestions: &Suggestions{RecommendedDiseases: []string{"肺炎", "支气管炎"}, Reason: "发热伴咳痰"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, interpretReview(tt.content)); diff != "" {
				t.Errorf("interpretReview (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseAnalysis(t *testing.T) {
	got, err := parseAnalysis("思考过程\n<diagnose>\n{\"need_more_info\": true, \"diseases\": [\"肺炎\"]}\n</diagnose>")
	if err != nil {
		t.Fatalf("parseAnalysis: %v", err)
	}
	if diff := cmp.Diff(Analysis{NeedMoreInfo: true, Diseases: []string{"肺炎"}}, got); diff != "" {
		t.Errorf("parseAnalysis (-want +got):\n%s", diff)
	}

	if _, err := parseAnalysis("no tag"); err != errAnalysisFormat {
		t.Errorf("missing tag error = %v", err)
	}
	if _, err := parseAnalysis("<diagnose>not json</diagnose>"); err != errAnalysisJSON {
		t.Errorf("bad json error = %v", err)
	}
}

func TestExtractSimplifiedCause(t *testing.T) {
	long := strings.Repeat("病", 60)
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"tagged", "<simplified_cause>\n 病毒感染 \n</simplified_cause>", "病毒感染"},
		{"skips headings and bullets", "# 结果\n- 要点\n\n细菌感染所致", "细菌感染所致"},
		{"truncates fallback to runes", long, strings.Repeat("病", SimplifiedCauseFallbackRunes)},
		{"nothing usable", "# 标题\n- 列表", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractSimplifiedCause(tt.content); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func testModel(f *fakeLLM) llm.Model {
	return llm.Model{Name: "test", Provider: f, ModelID: "test-model"}
}

func TestSimplify(t *testing.T) {
	f := newFakeLLM().on(stageSimplify, reply{content: "<simplified_cause>病毒感染</simplified_cause>"})
	s := Simplifier{Model: testModel(f)}

	got := s.Simplify(context.Background(), "感冒", "疾病名称：感冒\n疾病病因：鼻病毒、冠状病毒等\n并发症：鼻窦炎 中耳炎")
	want := "疾病名称：感冒\n\n疾病病因：病毒感染\n\n并发症：鼻窦炎 中耳炎"
	if got != want {
		t.Errorf("Simplify =\n%q\nwant\n%q", got, want)
	}

	req := f.calls[stageSimplify][0]
	if req.Temperature != simplifyTemperature || req.MaxTokens != simplifyMaxTokens {
		t.Errorf("request temperature=%v max_tokens=%d", req.Temperature, req.MaxTokens)
	}
}

func TestSimplifyWithoutCause(t *testing.T) {
	f := newFakeLLM()
	s := Simplifier{Model: testModel(f)}
	if got := s.Simplify(context.Background(), "X", "疾病名称：X\n治疗科室：内科"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
	if f.total() != 0 {
		t.Error("model called for block without cause")
	}
}

func TestSimplifyProviderErrorFallsBackToRawCause(t *testing.T) {
	cause := strings.Repeat("因", 80)
	f := newFakeLLM().on(stageSimplify, reply{err: errBoom})
	s := Simplifier{Model: testModel(f)}

	got := s.Simplify(context.Background(), "X", "疾病名称：X\n疾病病因："+cause)
	want := "疾病名称：X\n\n疾病病因：" + strings.Repeat("因", SimplifiedCauseFallbackRunes)
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestSimplifyUnusableAnswerSkips(t *testing.T) {
	f := newFakeLLM().on(stageSimplify, reply{content: "# 无法简化"})
	s := Simplifier{Model: testModel(f)}
	if got := s.Simplify(context.Background(), "X", "疾病病因：原因"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestDoctorDraftIncludesContext(t *testing.T) {
	f := newFakeLLM().on(stageDoctor, reply{content: "诊断"})
	d := Doctor{Model: testModel(f)}
	score := 0.8
	b := &Bundle{VectorResults: []Candidate{{
		Name: "肺炎", Description: "肺部感染", Symptoms: []string{"咳嗽", "发热"},
		SimilarityScore: 0.91234, RelevanceScore: &score,
	}}}
	b.GraphData.Set("肺炎", "疾病名称：肺炎\n\n疾病病因：细菌感染")

	if _, err := d.Draft(context.Background(), "咳嗽三天", b, &Suggestions{RecommendedDiseases: []string{"支气管炎"}, Reason: "无高热"}); err != nil {
		t.Fatalf("Draft: %v", err)
	}

	prompt := f.userPrompt(stageDoctor, 0)
	for _, want := range []string{
		"咳嗽三天",
		"1. 肺炎\n   描述：肺部感染\n   症状：咳嗽,发热\n   相似度：0.912\n",
		"疾病病因：细菌感染",
		"上轮专家建议",
		"支气管炎",
		"无高热",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("draft prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, "可选疾病列表") {
		t.Error("draft prompt has allowlist without one configured")
	}
}

func TestExpertReviewRequest(t *testing.T) {
	f := newFakeLLM().on(stageReview, reply{content: reviewReject})
	e := Expert{Model: testModel(f)}

	r, err := e.Review(context.Background(), "咳嗽", &Bundle{}, "草稿")
	if err != nil {
		t.Fatalf("Review: %v", err)
	}
	if r.Accepted || r.Suggestions == nil || r.Suggestions.RecommendedDiseases[0] != "肺炎" {
		t.Errorf("Review = %+v", r)
	}
	req := f.calls[stageReview][0]
	if req.Temperature != reviewTemperature {
		t.Errorf("temperature = %v", req.Temperature)
	}
	if !strings.Contains(req.Messages[1].Content, "草稿") {
		t.Error("review prompt missing draft")
	}

	f = newFakeLLM().on(stageReview, reply{err: errBoom})
	if _, err := (Expert{Model: testModel(f)}).Review(context.Background(), "咳嗽", &Bundle{}, "草稿"); err == nil {
		t.Error("expected error from failing reviewer")
	}
}

func TestParseAllowlist(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{"json", `["肺炎", "感冒"]`, []string{"肺炎", "感冒"}},
		{"python literal", `['肺炎', '感冒', ]`, []string{"肺炎", "感冒"}},
		{"lines", "肺炎\n\n 感冒 \n", []string{"肺炎", "感冒"}},
		{"empty", "  \n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ParseAllowlist(tt.content)); diff != "" {
				t.Errorf("ParseAllowlist (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFileAllowlist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diseases.txt")
	if err := os.WriteFile(path, []byte("肺炎\n胃炎\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	names, err := FileAllowlist{Path: path}.Diseases()
	if err != nil {
		t.Fatalf("Diseases: %v", err)
	}
	if got := renderAllowlist(names); got != "可选疾病列表：肺炎, 胃炎" {
		t.Errorf("renderAllowlist = %q", got)
	}

	if _, err := (FileAllowlist{Path: filepath.Join(t.TempDir(), "missing")}).Diseases(); err == nil {
		t.Error("expected error for missing file")
	}
	if renderAllowlist(nil) != "" {
		t.Error("empty allowlist should render empty")
	}
}
