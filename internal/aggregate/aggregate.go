// Package aggregate folds per-step tool output into a final answer.
package aggregate

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/finagent-ai/finagent"
)

// dataTools bucket their output under 数据信息 in the aggregation prompt.
var dataTools = map[string]bool{
	"query_reimbursement_summary": true,
	"query_reimbursement_status":  true,
	"query_reimbursement_records": true,
	"query_employee_info":         true,
}

// ResultAggregator writes the final answer with one LLM call over the
// bucketed tool output. It never fails: an LLM error degrades to a
// truncated concatenation of the raw output.
type ResultAggregator struct {
	llm finagent.LLM
}

// NewResultAggregator creates an aggregator over the given model.
func NewResultAggregator(llm finagent.LLM) *ResultAggregator {
	return &ResultAggregator{llm: llm}
}

var _ finagent.Aggregator = (*ResultAggregator)(nil)

// Aggregate produces the final natural-language answer.
func (a *ResultAggregator) Aggregate(ctx context.Context, question string, steps []finagent.ExecutionStep, intent finagent.Intent) string {
	policyText, dataText, otherText := bucketResults(steps)
	prompt := buildPrompt(question, policyText, dataText, otherText)

	answer, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		log.Printf("结果整合失败: %v", err)
		return fallbackAnswer(policyText, dataText)
	}
	return strings.TrimSpace(answer)
}

// bucketResults splits successful step output into policy, data, and other
// text blocks. Email results carry a tag so the delivery status stays
// visible in the final answer.
func bucketResults(steps []finagent.ExecutionStep) (policyText, dataText, otherText string) {
	var policy, data, other []string
	for _, step := range steps {
		if step.Status != finagent.StepStatusSuccess || step.Result == nil {
			continue
		}
		message := step.Result.Message
		switch {
		case step.ToolName == "rag_search":
			policy = append(policy, message)
		case dataTools[step.ToolName]:
			data = append(data, message)
		case step.ToolName == "send_email":
			other = append(other, "[邮件发送] "+message)
		default:
			other = append(other, message)
		}
	}

	policyText = joinOr(policy, "(no policy info)")
	dataText = joinOr(data, "(no data info)")
	otherText = joinOr(other, "(none)")
	return policyText, dataText, otherText
}

func buildPrompt(question, policyText, dataText, otherText string) string {
	return fmt.Sprintf(`你是一个专业的财务助手。请基于以下信息回答用户问题。

用户问题：%s

制度/规则信息：
%s

数据信息：
%s

其他信息：
%s

要求：
1. 用中文回答，语言专业、友好
2. 如果用户需要发送邮件，请使用 send_email 工具实际发送（不要只生成内容）
3. 如果用户只需要生成邮件内容（不发送），请生成完整的内容
4. 明确引用信息来源（如"根据《差旅费报销制度》..."）
5. 如果信息不足，请说明并建议下一步操作
6. 如果用户询问是否符合条件，请基于规则和数据给出明确判断

回答：
`, question, policyText, dataText, otherText)
}

// fallbackAnswer is the degraded answer used when the LLM call fails.
func fallbackAnswer(policyText, dataText string) string {
	return fmt.Sprintf("已获取以下信息：\n\n制度信息：%s...\n\n数据信息：%s...\n\n请根据以上信息继续处理。",
		truncateRunes(policyText, 200), truncateRunes(dataText, 200))
}

func joinOr(parts []string, fallback string) string {
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, "\n\n")
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
