// Package planner implements the LLM-backed pipeline stages that precede
// execution: intent classification, plan generation, and plan validation.
package planner

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/finagent-ai/finagent"
	"github.com/finagent-ai/finagent/internal/llm"
)

// IntentClassifier asks the LLM to classify a question into an Intent.
// Classification never fails: any LLM or parse error falls back to the
// default intent.
type IntentClassifier struct {
	llm      finagent.LLM
	registry *finagent.Registry
	user     finagent.UserContext
}

// NewIntentClassifier creates an intent classifier.
func NewIntentClassifier(llmClient finagent.LLM, registry *finagent.Registry, user finagent.UserContext) *IntentClassifier {
	return &IntentClassifier{llm: llmClient, registry: registry, user: user}
}

var _ finagent.Classifier = (*IntentClassifier)(nil)

// Classify determines the intent behind a question.
func (c *IntentClassifier) Classify(ctx context.Context, question string) finagent.Intent {
	processed := c.substitutePronouns(question)

	prompt := c.buildPrompt(processed)
	response, err := c.llm.Complete(ctx, prompt)
	if err != nil {
		log.Printf("intent classification failed: %v", err)
		return finagent.DefaultIntent()
	}

	var intent finagent.Intent
	if err := llm.UnmarshalObject(response, &intent); err != nil {
		log.Printf("intent parse failed: %v", err)
		return finagent.DefaultIntent()
	}
	if intent.Entities == nil {
		intent.Entities = map[string]string{}
	}
	return intent
}

// substitutePronouns replaces first-person references with the configured
// user's name so the model classifies against a concrete identity.
func (c *IntentClassifier) substitutePronouns(question string) string {
	if c.user.IsZero() || c.user.Name == "" {
		return question
	}
	if !strings.Contains(question, "我") {
		return question
	}
	processed := strings.ReplaceAll(question, "我的", c.user.Name+"的")
	processed = strings.ReplaceAll(processed, "我", c.user.Name)
	return processed
}

func (c *IntentClassifier) buildPrompt(question string) string {
	var b strings.Builder
	b.WriteString("你是一个智能财务助手，需要分析用户输入，识别任务类型和所需步骤。\n\n")
	b.WriteString("可用工具：\n")
	b.WriteString(toolSummaries(c.registry))

	if !c.user.IsZero() {
		fmt.Fprintf(&b, "\n用户上下文：\n- 当前用户姓名: %s\n- 当前用户工号: %s\n- 当前用户部门: %s\n\n",
			orUnknown(c.user.Name), orUnknown(c.user.EmployeeID), orUnknown(c.user.Department))
		b.WriteString("注意：如果用户输入中包含\"我\"、\"我的\"，请自动替换为当前用户信息。\n")
	}

	fmt.Fprintf(&b, "\n用户输入：%s\n\n", question)
	b.WriteString(`请分析用户意图，返回 JSON 格式：
{
    "intent_type": "complex_task|simple_query|content_generation",
    "requires_policy": true/false,
    "requires_data": true/false,
    "requires_generation": true/false,
    "entities": {
        "employee_name": "员工姓名（如果有，注意'我'应替换为当前用户）",
        "employee_id": "员工工号（如果有）",
        "date_range": "日期范围（如果有，如'3月份'应转换为具体日期）",
        "recipient": "收件人（如果有）",
        "topic": "主题/话题"
    },
    "estimated_steps": 数字
}

特别注意：
- "我"、"我的" → 需要替换为当前用户信息
- "3月份" → 转换为 start_date="2024-03-01", end_date="2024-03-31"
- "财务部" → 需要查询部门下的员工列表

只返回 JSON，不要其他文字。
`)
	return b.String()
}

// toolSummaries renders one line per tool with its description truncated.
func toolSummaries(registry *finagent.Registry) string {
	var b strings.Builder
	for _, name := range registry.List() {
		tool, err := registry.Get(name)
		if err != nil {
			continue
		}
		desc, _ := tool.Schema()["description"].(string)
		if runes := []rune(desc); len(runes) > 100 {
			desc = string(runes[:100]) + "..."
		}
		fmt.Fprintf(&b, "- %s: %s\n", name, desc)
	}
	return b.String()
}

// toolCatalog renders the numbered tool list with priorities for the
// planning prompt.
func toolCatalog(registry *finagent.Registry) string {
	var b strings.Builder
	for idx, name := range registry.List() {
		tool, err := registry.Get(name)
		if err != nil {
			continue
		}
		desc, _ := tool.Schema()["description"].(string)
		fmt.Fprintf(&b, "%d. %s (优先级:%d): %s\n", idx+1, name, registry.Priority(name), desc)
	}
	return b.String()
}

// dependencyHints renders the static dependency relations for the planning
// prompt, in stable order.
func dependencyHints(registry *finagent.Registry) string {
	var lines []string
	for _, name := range registry.List() {
		deps := registry.Dependencies(name)
		if len(deps) == 0 {
			continue
		}
		sorted := append([]string(nil), deps...)
		sort.Strings(sorted)
		lines = append(lines, fmt.Sprintf("- %s 依赖 %s", name, strings.Join(sorted, ", ")))
	}
	return strings.Join(lines, "\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "未知"
	}
	return s
}
