package finagent

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubClassifier struct{}

func (stubClassifier) Classify(ctx context.Context, question string) Intent {
	return DefaultIntent()
}

type stubPlanner struct {
	plan Plan
}

func (s stubPlanner) GeneratePlan(ctx context.Context, question string, intent Intent) Plan {
	return s.plan
}

type stubValidator struct{}

func (stubValidator) ValidatePlan(plan Plan, intent Intent) (Plan, []string) {
	return plan, nil
}

type stubExecutor struct {
	steps []ExecutionStep
}

func (s stubExecutor) ExecutePlan(ctx context.Context, plan Plan, intent Intent) ([]ExecutionStep, ExecutionContext) {
	return s.steps, ExecutionContext{"employee_id": "E001"}
}

type stubAggregator struct {
	answer string
}

func (s stubAggregator) Aggregate(ctx context.Context, question string, steps []ExecutionStep, intent Intent) string {
	return s.answer
}

func newStubAgent(t *testing.T) *Agent {
	t.Helper()
	registry, err := NewRegistry(fakeTools("rag_search"))
	if err != nil {
		t.Fatal(err)
	}

	steps := []ExecutionStep{
		{
			StepID:   1,
			ToolName: "rag_search",
			Status:   StepStatusSuccess,
			Result:   &ToolResult{Success: true, Message: "差旅费每天限额500元"},
		},
	}

	cfg := DefaultConfig()
	cfg.EnableEventBus = false

	agent, err := New(
		WithConfig(cfg),
		WithRegistry(registry),
		WithClassifier(stubClassifier{}),
		WithPlanner(stubPlanner{plan: Plan{Steps: []PlanStep{{StepID: 1, ToolName: "rag_search"}}}}),
		WithValidator(stubValidator{}),
		WithExecutor(stubExecutor{steps: steps}),
		WithAggregator(stubAggregator{answer: "根据制度，每天限额500元。"}),
	)
	if err != nil {
		t.Fatal(err)
	}
	return agent
}

func TestProcessContext_PushPopState(t *testing.T) {
	pc := NewProcessContext("问题", UserContext{})
	if pc.CurrentState != StateInit {
		t.Fatalf("initial state = %s", pc.CurrentState)
	}

	pc.PushState(StateIntent)
	pc.PushState(StatePlanning)
	if pc.CurrentState != StatePlanning {
		t.Errorf("state = %s", pc.CurrentState)
	}

	if !pc.PopState() || pc.CurrentState != StateIntent {
		t.Errorf("after pop: state = %s", pc.CurrentState)
	}
	if !pc.PopState() || pc.CurrentState != StateInit {
		t.Errorf("after second pop: state = %s", pc.CurrentState)
	}
	if pc.PopState() {
		t.Error("pop on empty stack should return false")
	}
}

func TestProcessContext_TerminalStates(t *testing.T) {
	pc := NewProcessContext("问题", UserContext{})
	if pc.IsTerminal() {
		t.Error("init state should not be terminal")
	}

	pc.SetError(errors.New("boom"), "planning")
	if !pc.IsTerminal() || pc.CurrentState != StateError || pc.ErrorStage != "planning" {
		t.Errorf("after SetError: %+v", pc)
	}

	pc2 := NewProcessContext("问题", UserContext{})
	pc2.Complete()
	if !pc2.IsTerminal() || pc2.EndTime.IsZero() {
		t.Error("Complete did not terminate the run")
	}
}

func TestStateMachine_MissingTransition(t *testing.T) {
	sm := NewStateMachine(nil)
	pc := NewProcessContext("问题", UserContext{})

	_, err := sm.Execute(context.Background(), pc)
	if err == nil || !strings.Contains(err.Error(), "no transition defined") {
		t.Errorf("err = %v", err)
	}
	if pc.CurrentState != StateError {
		t.Errorf("state = %s", pc.CurrentState)
	}
}

func TestAgent_Run_Success(t *testing.T) {
	agent := newStubAgent(t)
	defer agent.Close()

	result, err := agent.Run(context.Background(), "差旅费报销的标准是什么？")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Answer != "根据制度，每天限额500元。" {
		t.Errorf("answer = %q", result.Answer)
	}
	if len(result.Steps) != 1 || result.Steps[0].Status != StepStatusSuccess {
		t.Errorf("steps = %+v", result.Steps)
	}
	if len(result.Sources) != 1 || result.Sources[0].Type != "policy" {
		t.Errorf("sources = %+v", result.Sources)
	}
	if !strings.Contains(result.Sources[0].Content, "差旅费") {
		t.Errorf("source content = %q", result.Sources[0].Content)
	}
}

func TestAgent_Run_Cancelled(t *testing.T) {
	agent := newStubAgent(t)
	defer agent.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agent.Run(ctx, "问题")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}

func TestNew_RequiresAllStages(t *testing.T) {
	registry, err := NewRegistry(fakeTools("rag_search"))
	if err != nil {
		t.Fatal(err)
	}

	_, err = New(WithRegistry(registry))
	if err == nil || codeOf(err) != ErrCodeConfiguration {
		t.Errorf("err = %v", err)
	}
}

func TestSourceTruncation(t *testing.T) {
	long := strings.Repeat("规", 300)
	steps := []ExecutionStep{
		{
			ToolName: "rag_search",
			Status:   StepStatusSuccess,
			Result:   &ToolResult{Success: true, Message: long},
		},
		{
			ToolName: "query_employee_info",
			Status:   StepStatusSuccess,
			Result:   &ToolResult{Success: true, Message: "工号：E001"},
		},
		{
			ToolName: "rag_search",
			Status:   StepStatusFailed,
			Error:    "数据不存在",
		},
	}

	sources := collectSources(steps)
	if len(sources) != 1 {
		t.Fatalf("sources = %+v", sources)
	}
	if got := len([]rune(sources[0].Content)); got != 200 {
		t.Errorf("source length = %d runes", got)
	}
}
