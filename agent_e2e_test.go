package finagent_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/finagent-ai/finagent"
	"github.com/finagent-ai/finagent/internal/aggregate"
	"github.com/finagent-ai/finagent/internal/api"
	"github.com/finagent-ai/finagent/internal/executor"
	"github.com/finagent-ai/finagent/internal/extract"
	"github.com/finagent-ai/finagent/internal/mail"
	"github.com/finagent-ai/finagent/internal/planner"
	"github.com/finagent-ai/finagent/internal/store"
	"github.com/finagent-ai/finagent/internal/tools"
)

// policyRetriever serves a fixed set of knowledge-base chunks.
type policyRetriever struct {
	sources []finagent.RetrievedSource
}

func (r policyRetriever) Retrieve(ctx context.Context, query string, topK int) ([]finagent.RetrievedSource, error) {
	return r.sources, nil
}

func (r policyRetriever) Ready() bool { return true }

// script answers the three pipeline prompts deterministically: a fixed
// intent, a plan chosen by the question found in the planning prompt, and a
// fixed final answer. The aggregation prompt is captured for assertions.
type script struct {
	intent          string
	plans           map[string]string
	answer          string
	aggregatePrompt string
}

func (s *script) llm() finagent.LLMFunc {
	return func(ctx context.Context, prompt string) (string, error) {
		switch {
		case strings.Contains(prompt, "请分析用户意图"):
			return s.intent, nil
		case strings.Contains(prompt, "生成详细的执行计划"):
			for question, plan := range s.plans {
				if strings.Contains(prompt, question) {
					return plan, nil
				}
			}
			return `{"steps": []}`, nil
		default:
			s.aggregatePrompt = prompt
			return s.answer, nil
		}
	}
}

func newScenarioAgent(t *testing.T, sc *script, retriever finagent.Retriever, st store.Store) *finagent.Agent {
	t.Helper()

	sender := mail.SenderFunc(func(ctx context.Context, msg mail.Message) error {
		return nil
	})
	registry, err := finagent.NewRegistry(
		tools.Catalog(retriever, st, api.NewLocalClient(st), sender),
		finagent.WithDependencies(tools.DefaultDependencies()),
		finagent.WithPriorities(tools.DefaultPriorities()),
	)
	if err != nil {
		t.Fatal(err)
	}

	llm := sc.llm()
	user := finagent.UserContext{}
	validator := extract.NewValidator(extract.NewExtractor())

	cfg := finagent.DefaultConfig()
	cfg.EnableEventBus = false

	agent, err := finagent.New(
		finagent.WithConfig(cfg),
		finagent.WithRegistry(registry),
		finagent.WithClassifier(planner.NewIntentClassifier(llm, registry, user)),
		finagent.WithPlanner(planner.NewPlanGenerator(llm, registry)),
		finagent.WithValidator(planner.NewPlanValidator(registry)),
		finagent.WithExecutor(executor.NewSequentialExecutor(registry, validator,
			executor.WithRetryDelay(time.Millisecond),
		)),
		finagent.WithAggregator(aggregate.NewResultAggregator(llm)),
	)
	if err != nil {
		t.Fatal(err)
	}
	return agent
}

func stepByTool(steps []finagent.ExecutionStep, toolName string) *finagent.ExecutionStep {
	for i := range steps {
		if steps[i].ToolName == toolName {
			return &steps[i]
		}
	}
	return nil
}

func TestRun_PolicyQuestion(t *testing.T) {
	question := "差旅费报销的标准是什么？"
	sc := &script{
		intent: `{"intent_type": "simple_query", "requires_policy": true, "estimated_steps": 1}`,
		plans: map[string]string{
			question: `{"steps": [{"step_id": 1, "tool_name": "rag_search", "arguments": {"query": "差旅费报销标准"}, "reason": "查询制度"}]}`,
		},
		answer: "根据《差旅费管理办法》，差旅费每天限额500元。",
	}
	retriever := policyRetriever{sources: []finagent.RetrievedSource{
		{
			Text:     "差旅费每天限额500元，超出部分需部门经理审批。",
			Score:    0.92,
			Metadata: map[string]string{"file_name": "差旅费管理办法.md"},
		},
	}}

	agent := newScenarioAgent(t, sc, retriever, store.NewSeededMemoryStore())
	defer agent.Close()

	result, err := agent.Run(context.Background(), question)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if result.Answer != "根据《差旅费管理办法》，差旅费每天限额500元。" {
		t.Errorf("answer = %q", result.Answer)
	}
	if len(result.Steps) != 1 || result.Steps[0].Status != finagent.StepStatusSuccess {
		t.Fatalf("steps = %+v", result.Steps)
	}
	if !strings.Contains(result.Steps[0].Result.Message, "【差旅费管理办法.md】") {
		t.Errorf("rag message = %q", result.Steps[0].Result.Message)
	}
	if len(result.Sources) != 1 || result.Sources[0].Type != "policy" {
		t.Errorf("sources = %+v", result.Sources)
	}
	if !strings.Contains(sc.aggregatePrompt, "检索到以下制度信息") {
		t.Errorf("aggregation prompt missing policy text: %q", sc.aggregatePrompt)
	}
}

func TestRun_SummaryWithLookup(t *testing.T) {
	question := "帮我查一下张三3月份的报销总金额"
	sc := &script{
		intent: `{"intent_type": "complex_task", "requires_data": true, "entities": {"employee_name": "张三"}, "estimated_steps": 2}`,
		plans: map[string]string{
			question: `{"steps": [
				{"step_id": 1, "tool_name": "query_employee_info", "arguments": {"name": "张三"}, "reason": "解析工号"},
				{"step_id": 2, "tool_name": "query_reimbursement_summary", "arguments": {"employee_id": "", "start_date": "2025-03-01", "end_date": "2025-03-31"}, "reason": "统计报销"}
			]}`,
		},
		answer: "张三 3 月份的报销总金额为 1630.5 元。",
	}

	agent := newScenarioAgent(t, sc, policyRetriever{}, store.NewSeededMemoryStore())
	defer agent.Close()

	result, err := agent.Run(context.Background(), question)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	lookup := stepByTool(result.Steps, "query_employee_info")
	if lookup == nil || lookup.Status != finagent.StepStatusSuccess {
		t.Fatalf("lookup step = %+v", lookup)
	}

	// The summary step had an empty employee_id; the run context filled it
	// from the lookup result.
	summary := stepByTool(result.Steps, "query_reimbursement_summary")
	if summary == nil || summary.Status != finagent.StepStatusSuccess {
		t.Fatalf("summary step = %+v", summary)
	}
	if !strings.Contains(summary.Result.Message, "员工 E001 (张三)") {
		t.Errorf("summary message = %q", summary.Result.Message)
	}
	if !strings.Contains(summary.Result.Message, "总金额：1630.5 元") {
		t.Errorf("summary message = %q", summary.Result.Message)
	}
	if !strings.Contains(sc.aggregatePrompt, "总金额：1630.5 元") {
		t.Errorf("aggregation prompt missing summary data: %q", sc.aggregatePrompt)
	}
	if result.Answer != "张三 3 月份的报销总金额为 1630.5 元。" {
		t.Errorf("answer = %q", result.Answer)
	}
}

func TestRun_DuplicateWorkOrderBlocked(t *testing.T) {
	first := "帮李四创建一个报销系统异常的工单"
	second := "再给李四提一个报销系统异常的工单"
	sc := &script{
		intent: `{"intent_type": "complex_task", "requires_data": true, "estimated_steps": 2}`,
		plans: map[string]string{
			first: `{"steps": [
				{"step_id": 1, "tool_name": "query_employee_info", "arguments": {"name": "李四"}, "reason": "解析工号"},
				{"step_id": 2, "tool_name": "create_work_order", "arguments": {"title": "报销系统异常", "assignee_id": "E002", "priority": "high"}, "reason": "创建工单"}
			]}`,
			second: `{"steps": [
				{"step_id": 1, "tool_name": "query_employee_info", "arguments": {"name": "李四"}, "reason": "解析工号"},
				{"step_id": 2, "tool_name": "create_work_order", "arguments": {"title": "报销系统异常", "assignee_id": "E002"}, "reason": "创建工单"}
			]}`,
		},
		answer: "工单处理完成。",
	}

	st := store.NewSeededMemoryStore()
	agent := newScenarioAgent(t, sc, policyRetriever{}, st)
	defer agent.Close()

	result, err := agent.Run(context.Background(), first)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	created := stepByTool(result.Steps, "create_work_order")
	if created == nil || created.Status != finagent.StepStatusSuccess {
		t.Fatalf("create step = %+v", created)
	}
	if !strings.Contains(created.Result.Message, "✅ 工单创建成功！") {
		t.Errorf("create message = %q", created.Result.Message)
	}

	result, err = agent.Run(context.Background(), second)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	blocked := stepByTool(result.Steps, "create_work_order")
	if blocked == nil || blocked.Status != finagent.StepStatusSuccess {
		t.Fatalf("blocked step = %+v", blocked)
	}
	if !strings.Contains(blocked.Result.Message, "系统已阻止重复创建") {
		t.Errorf("blocked message = %q", blocked.Result.Message)
	}
	if blocked.Result.Data["blocked_duplicate"] != true {
		t.Errorf("blocked data = %v", blocked.Result.Data)
	}
}

func TestRun_UnknownEmployeeFailsFast(t *testing.T) {
	question := "查一下王大锤的报销记录"
	sc := &script{
		intent: `{"intent_type": "complex_task", "requires_data": true, "estimated_steps": 2}`,
		plans: map[string]string{
			question: `{"steps": [
				{"step_id": 1, "tool_name": "query_employee_info", "arguments": {"name": "王大锤"}, "reason": "解析工号"},
				{"step_id": 2, "tool_name": "query_reimbursement_records", "arguments": {"employee_id": ""}, "reason": "查询记录"}
			]}`,
		},
		answer: "未找到该员工的信息。",
	}

	agent := newScenarioAgent(t, sc, policyRetriever{}, store.NewSeededMemoryStore())
	defer agent.Close()

	result, err := agent.Run(context.Background(), question)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	lookup := stepByTool(result.Steps, "query_employee_info")
	if lookup == nil || lookup.Status != finagent.StepStatusFailed {
		t.Fatalf("lookup step = %+v", lookup)
	}
	// Not-found failures stop after one attempt and carry a suggestion.
	if lookup.Attempts != 1 {
		t.Errorf("attempts = %d", lookup.Attempts)
	}
	if lookup.Suggestion != "请检查员工姓名或工号是否正确" {
		t.Errorf("suggestion = %q", lookup.Suggestion)
	}
	// The run still ends with an answer.
	if result.Answer == "" {
		t.Error("answer is empty")
	}
}
