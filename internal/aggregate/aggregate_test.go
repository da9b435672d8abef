package aggregate

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/finagent-ai/finagent"
)

func successStep(toolName, message string) finagent.ExecutionStep {
	return finagent.ExecutionStep{
		ToolName: toolName,
		Status:   finagent.StepStatusSuccess,
		Result:   &finagent.ToolResult{Success: true, Message: message},
	}
}

func TestAggregate_BucketsPromptSections(t *testing.T) {
	var prompt string
	llm := finagent.LLMFunc(func(ctx context.Context, p string) (string, error) {
		prompt = p
		return "根据《差旅费报销制度》，标准为每天500元。", nil
	})
	a := NewResultAggregator(llm)

	steps := []finagent.ExecutionStep{
		successStep("rag_search", "检索到以下制度信息：差旅费每天500元"),
		successStep("query_employee_info", "找到 1 条员工记录"),
		successStep("send_email", "✅ 邮件发送成功！"),
		{ToolName: "query_reimbursement_status", Status: finagent.StepStatusFailed, Error: "数据不存在"},
	}

	answer := a.Aggregate(context.Background(), "差旅费标准是多少？", steps, finagent.DefaultIntent())
	if answer != "根据《差旅费报销制度》，标准为每天500元。" {
		t.Errorf("answer = %q", answer)
	}

	if !strings.Contains(prompt, "用户问题：差旅费标准是多少？") {
		t.Errorf("prompt missing question: %q", prompt)
	}
	if !strings.Contains(prompt, "检索到以下制度信息") {
		t.Errorf("policy bucket missing: %q", prompt)
	}
	if !strings.Contains(prompt, "找到 1 条员工记录") {
		t.Errorf("data bucket missing: %q", prompt)
	}
	if !strings.Contains(prompt, "[邮件发送] ✅ 邮件发送成功！") {
		t.Errorf("email tag missing: %q", prompt)
	}
	if strings.Contains(prompt, "数据不存在") {
		t.Errorf("failed step leaked into prompt: %q", prompt)
	}
}

func TestAggregate_EmptyBucketsUsePlaceholders(t *testing.T) {
	var prompt string
	llm := finagent.LLMFunc(func(ctx context.Context, p string) (string, error) {
		prompt = p
		return "无可用信息。", nil
	})
	a := NewResultAggregator(llm)

	a.Aggregate(context.Background(), "问题", nil, finagent.DefaultIntent())
	if !strings.Contains(prompt, "(no policy info)") ||
		!strings.Contains(prompt, "(no data info)") ||
		!strings.Contains(prompt, "(none)") {
		t.Errorf("placeholders missing: %q", prompt)
	}
}

func TestAggregate_LLMFailureFallsBack(t *testing.T) {
	llm := finagent.LLMFunc(func(ctx context.Context, p string) (string, error) {
		return "", errors.New("rate limited")
	})
	a := NewResultAggregator(llm)

	steps := []finagent.ExecutionStep{
		successStep("rag_search", "差旅费每天500元"),
		successStep("query_employee_info", "工号：E001"),
	}

	answer := a.Aggregate(context.Background(), "差旅费标准", steps, finagent.DefaultIntent())
	if !strings.Contains(answer, "已获取以下信息：") ||
		!strings.Contains(answer, "制度信息：差旅费每天500元...") ||
		!strings.Contains(answer, "数据信息：工号：E001...") {
		t.Errorf("fallback = %q", answer)
	}
}

func TestAggregate_FallbackTruncatesLongText(t *testing.T) {
	llm := finagent.LLMFunc(func(ctx context.Context, p string) (string, error) {
		return "", errors.New("timeout")
	})
	a := NewResultAggregator(llm)

	long := strings.Repeat("规", 300)
	answer := a.Aggregate(context.Background(), "问题",
		[]finagent.ExecutionStep{successStep("rag_search", long)}, finagent.DefaultIntent())

	if strings.Contains(answer, strings.Repeat("规", 201)) {
		t.Errorf("policy text not truncated to 200 runes")
	}
}
