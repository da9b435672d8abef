package planner

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/finagent-ai/finagent"
	"github.com/finagent-ai/finagent/internal/llm"
)

// PlanGenerator asks the LLM to produce an ordered tool-call plan. Plans for
// identical (question, tool catalog) pairs are cached; generation never
// fails, degrading to a single knowledge-base search step.
type PlanGenerator struct {
	llm      finagent.LLM
	registry *finagent.Registry
	cache    finagent.Cache
}

// PlanGeneratorOption configures a PlanGenerator.
type PlanGeneratorOption func(*PlanGenerator)

// WithCache enables plan caching.
func WithCache(cache finagent.Cache) PlanGeneratorOption {
	return func(p *PlanGenerator) {
		p.cache = cache
	}
}

// NewPlanGenerator creates a plan generator.
func NewPlanGenerator(llmClient finagent.LLM, registry *finagent.Registry, options ...PlanGeneratorOption) *PlanGenerator {
	p := &PlanGenerator{llm: llmClient, registry: registry}
	for _, option := range options {
		option(p)
	}
	return p
}

var _ finagent.Planner = (*PlanGenerator)(nil)

// GeneratePlan produces an ordered plan for the question.
func (p *PlanGenerator) GeneratePlan(ctx context.Context, question string, intent finagent.Intent) finagent.Plan {
	cacheKey := p.generateCacheKey(question)

	if p.cache != nil {
		if cached, found := p.cache.Get(ctx, cacheKey); found {
			if plan, ok := cached.(finagent.Plan); ok {
				return clonePlan(plan)
			}
		}
	}

	prompt := p.buildPrompt(question, intent)
	response, err := p.llm.Complete(ctx, prompt)
	if err != nil {
		log.Printf("plan generation failed: %v", err)
		return fallbackPlan(question)
	}

	var plan finagent.Plan
	if err := llm.UnmarshalObject(response, &plan); err != nil {
		log.Printf("plan parse failed: %v", err)
		return fallbackPlan(question)
	}
	if len(plan.Steps) == 0 {
		log.Printf("plan generation returned no steps")
		return fallbackPlan(question)
	}

	if p.cache != nil {
		p.cache.Set(ctx, cacheKey, clonePlan(plan))
	}
	return plan
}

// fallbackPlan is the degraded plan used whenever generation cannot be
// parsed: a single knowledge-base search with the raw question.
func fallbackPlan(question string) finagent.Plan {
	return finagent.Plan{
		Steps: []finagent.PlanStep{
			{
				StepID:    1,
				ToolName:  "rag_search",
				Arguments: map[string]any{"query": question},
				Reason:    "查询相关制度",
			},
		},
	}
}

// clonePlan deep-copies a plan so cache entries are never aliased by later
// validation and execution mutations.
func clonePlan(plan finagent.Plan) finagent.Plan {
	out := finagent.Plan{Steps: make([]finagent.PlanStep, len(plan.Steps))}
	for i, step := range plan.Steps {
		args := make(map[string]any, len(step.Arguments))
		for k, v := range step.Arguments {
			args[k] = v
		}
		out.Steps[i] = finagent.PlanStep{
			StepID:    step.StepID,
			ToolName:  step.ToolName,
			Arguments: args,
			Reason:    step.Reason,
		}
	}
	return out
}

func (p *PlanGenerator) buildPrompt(question string, intent finagent.Intent) string {
	intentJSON, err := json.Marshal(intent)
	if err != nil {
		intentJSON = []byte("{}")
	}

	var b strings.Builder
	b.WriteString("基于用户意图，生成详细的执行计划。\n\n")
	fmt.Fprintf(&b, "用户输入：%s\n", question)
	fmt.Fprintf(&b, "用户意图：%s\n\n", intentJSON)
	b.WriteString("可用工具：\n")
	b.WriteString(toolCatalog(p.registry))
	b.WriteString("\n工具依赖关系：\n")
	b.WriteString(dependencyHints(p.registry))
	b.WriteString(`

请生成执行计划，返回 JSON 格式：
{
    "steps": [
        {
            "step_id": 1,
            "tool_name": "工具名称",
            "arguments": {"参数名": "参数值"},
            "reason": "为什么需要这一步"
        }
    ]
}

规则：
1. 如果用户提供姓名但工具需要 employee_id，必须先调用 query_employee_info
2. 如果需要查询制度，调用 rag_search
3. 如果需要查询数据，调用相应的查询工具
4. 如果需要发送邮件，调用 send_email
5. 考虑工具依赖关系，确保依赖的工具先执行

只返回 JSON，不要其他文字。
`)
	return b.String()
}

// generateCacheKey creates a stable key over the question and the tool
// catalog, so a catalog change invalidates cached plans.
func (p *PlanGenerator) generateCacheKey(question string) string {
	cacheable := struct {
		Query      string                    `json:"query"`
		ToolSchema map[string]map[string]any `json:"tool_schema"`
	}{
		Query:      question,
		ToolSchema: p.registry.Schemas(),
	}

	inputBytes, err := json.Marshal(cacheable)
	if err != nil {
		log.Printf("failed to marshal planner input for cache key: %v", err)
		return "planner:" + question
	}

	hasher := sha1.New()
	hasher.Write(inputBytes)
	return "planner:" + hex.EncodeToString(hasher.Sum(nil))
}
