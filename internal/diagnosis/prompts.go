package diagnosis

import (
	"fmt"
	"strings"
)

const analysisSystemTemplate = `你是一名经验丰富的临床医生。下面是根据患者症状从疾病知识库中检索出的候选疾病：

%s
请根据患者描述判断：仅凭以上候选信息能否做出诊断，还是需要查询部分候选疾病的病因、治疗科室和并发症等补充信息。

请严格按以下格式输出，不要输出其他内容：
<diagnose>{"need_more_info": true或false, "diseases": ["需要补充信息的疾病名称"]}</diagnose>

"diseases" 中的名称必须来自候选疾病列表；当 need_more_info 为 false 时返回空列表。`

const simplifyPromptTemplate = `请将以下疾病的病因概括为一句简短的临床表述，不超过50个字，只保留最主要的致病因素。

疾病名称：%s
原始病因：%s

请按以下格式输出：
<simplified_cause>简化后的病因</simplified_cause>`

const doctorSystemPrompt = `你是一名经验丰富的全科医生，需要根据患者症状和检索到的医学知识给出初步诊断。`

const doctorPromptTemplate = `患者症状：
%s

候选疾病：
%s
疾病知识图谱信息：
%s
%s%s
请给出最可能的诊断，说明诊断依据、建议就诊科室以及需要注意的并发症。`

const reviewSystemPrompt = `你是一位资深医疗专家，需要进行推理分析诊断是否正确。`

const reviewPromptTemplate = `请评估以下诊断是否与患者症状和检索到的医学知识相符。

患者症状：
%s

候选疾病：
%s
疾病知识图谱信息：
%s
%s
医生诊断：
%s

如果诊断正确，输出 <expert_review>1</expert_review>。
如果诊断有误，输出 <expert_review>0</expert_review>，并给出建议：
<diagnostic_suggestions>{"recommended_diseases": ["建议考虑的疾病"], "reason": "驳回理由"}</diagnostic_suggestions>`

// formatCandidates renders the numbered candidate list used by the analysis,
// draft and review prompts.
func formatCandidates(candidates []Candidate) string {
	var b strings.Builder
	for i, c := range candidates {
		fmt.Fprintf(&b, "%d. %s\n   描述：%s\n   症状：%s\n   相似度：%.3f\n\n",
			i+1, c.Name, c.Description, strings.Join(c.Symptoms, ","), c.SimilarityScore)
	}
	return b.String()
}

// formatGraphData concatenates the enriched blocks in discovery order.
func formatGraphData(g GraphData) string {
	var b strings.Builder
	for _, block := range g.Blocks() {
		b.WriteString(block)
		b.WriteString("\n\n")
	}
	return b.String()
}

func formatFeedback(s *Suggestions) string {
	if s == nil {
		return ""
	}
	return fmt.Sprintf("上轮专家建议：\n建议考虑的疾病：%s\n理由：%s\n",
		strings.Join(s.RecommendedDiseases, "、"), s.Reason)
}

func buildAnalysisSystemPrompt(candidates []Candidate) string {
	return fmt.Sprintf(analysisSystemTemplate, formatCandidates(candidates))
}

func buildSimplifyPrompt(name, cause string) string {
	return fmt.Sprintf(simplifyPromptTemplate, name, cause)
}

func buildDoctorPrompt(symptoms string, b *Bundle, allowlist string, feedback *Suggestions) string {
	if allowlist != "" {
		allowlist += "\n"
	}
	return fmt.Sprintf(doctorPromptTemplate,
		symptoms, formatCandidates(b.VectorResults), formatGraphData(b.GraphData),
		allowlist, formatFeedback(feedback))
}

func buildReviewPrompt(symptoms string, b *Bundle, allowlist, draft string) string {
	return fmt.Sprintf(reviewPromptTemplate,
		symptoms, formatCandidates(b.VectorResults), formatGraphData(b.GraphData),
		allowlist, draft)
}
