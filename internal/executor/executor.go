// Package executor runs validated plans step by step, with argument repair,
// retry, and context propagation between steps.
package executor

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/finagent-ai/finagent"
	"github.com/finagent-ai/finagent/internal/eventbus"
	"github.com/finagent-ai/finagent/internal/extract"
)

// suggestions maps tool names to the advice attached to not-found failures.
var suggestions = map[string]string{
	"query_employee_info":         "请检查员工姓名或工号是否正确",
	"query_reimbursement_summary": "请确认员工工号和日期范围是否正确",
	"rag_search":                  "知识库可能没有相关信息，请尝试其他关键词",
}

const defaultSuggestion = "请检查输入参数是否正确"

// SequentialExecutor executes plan steps strictly in order. Later steps may
// depend on run context written by earlier ones, so there is no parallelism
// across steps.
type SequentialExecutor struct {
	registry  *finagent.Registry
	validator *extract.Validator
	eventBus  eventbus.EventBus

	maxSteps    int
	maxRetries  int
	retryDelay  time.Duration
	toolTimeout time.Duration
}

// ExecutorOption configures a SequentialExecutor.
type ExecutorOption func(*SequentialExecutor)

// WithMaxSteps caps the number of plan steps executed per run.
func WithMaxSteps(maxSteps int) ExecutorOption {
	return func(e *SequentialExecutor) {
		e.maxSteps = maxSteps
	}
}

// WithMaxRetries sets the number of additional attempts beyond the first.
func WithMaxRetries(maxRetries int) ExecutorOption {
	return func(e *SequentialExecutor) {
		e.maxRetries = maxRetries
	}
}

// WithRetryDelay sets the pause between retry attempts.
func WithRetryDelay(delay time.Duration) ExecutorOption {
	return func(e *SequentialExecutor) {
		e.retryDelay = delay
	}
}

// WithToolTimeout sets the per-tool-call timeout.
func WithToolTimeout(timeout time.Duration) ExecutorOption {
	return func(e *SequentialExecutor) {
		e.toolTimeout = timeout
	}
}

// WithEventBus enables step lifecycle events.
func WithEventBus(eventBus eventbus.EventBus) ExecutorOption {
	return func(e *SequentialExecutor) {
		e.eventBus = eventBus
	}
}

// NewSequentialExecutor creates an executor over the tool catalog.
func NewSequentialExecutor(registry *finagent.Registry, validator *extract.Validator, options ...ExecutorOption) *SequentialExecutor {
	e := &SequentialExecutor{
		registry:    registry,
		validator:   validator,
		maxSteps:    8,
		maxRetries:  2,
		retryDelay:  500 * time.Millisecond,
		toolTimeout: 10 * time.Second,
	}
	for _, option := range options {
		option(e)
	}
	return e
}

var _ finagent.Executor = (*SequentialExecutor)(nil)

// ExecutePlan runs the plan's steps in order and returns the per-step
// outcomes plus the accumulated run context. Step failures never abort the
// run: downstream steps relying on missing context fail on their own terms.
func (e *SequentialExecutor) ExecutePlan(ctx context.Context, plan finagent.Plan, intent finagent.Intent) ([]finagent.ExecutionStep, finagent.ExecutionContext) {
	execCtx := make(finagent.ExecutionContext)
	stepResults := make(map[string]map[string]any)
	var steps []finagent.ExecutionStep

	planned := plan.Steps
	if len(planned) > e.maxSteps {
		log.Printf("plan has %d steps, truncating to %d", len(planned), e.maxSteps)
		planned = planned[:e.maxSteps]
	}

	for _, step := range planned {
		if ctx.Err() != nil {
			break
		}

		e.publish(ctx, eventbus.EventStepStarted, step.ToolName, map[string]interface{}{
			"step_id": step.StepID,
		})

		outcome := e.executeStepWithRetry(ctx, step, execCtx, stepResults)
		steps = append(steps, outcome)

		if outcome.Status == finagent.StepStatusSuccess {
			if outcome.Result != nil && outcome.Result.Data != nil {
				stepResults[fmt.Sprintf("step%d", step.StepID)] = outcome.Result.Data
			}
			e.publish(ctx, eventbus.EventStepSuccess, step.ToolName, map[string]interface{}{
				"step_id":  step.StepID,
				"attempts": outcome.Attempts,
			})
		} else {
			e.publish(ctx, eventbus.EventStepFailure, step.ToolName, map[string]interface{}{
				"step_id": step.StepID,
				"error":   outcome.Error,
			})
			// The employee lookup feeds identity into later steps; its
			// failure is worth calling out even though the run continues.
			if step.ToolName == "query_employee_info" {
				log.Printf("关键步骤失败: %s", step.ToolName)
			}
		}
	}

	return steps, execCtx
}

// executeStepWithRetry runs one step with the retry taxonomy:
//   - parameter-shaped errors get a context-based argument patch and retry
//   - not-found errors stop immediately with a canned suggestion
//   - other errors retry up to the budget
func (e *SequentialExecutor) executeStepWithRetry(ctx context.Context, step finagent.PlanStep, execCtx finagent.ExecutionContext, stepResults map[string]map[string]any) finagent.ExecutionStep {
	outcome := finagent.ExecutionStep{
		StepID:    step.StepID,
		ToolName:  step.ToolName,
		Arguments: step.Arguments,
		Status:    finagent.StepStatusRunning,
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		result, err := e.executeStep(ctx, step, execCtx, stepResults)
		if err == nil {
			outcome.Status = finagent.StepStatusSuccess
			outcome.Result = result
			outcome.Attempts = attempt + 1
			return outcome
		}
		lastErr = err

		if finagent.IsParameterShaped(err) {
			if attempt < e.maxRetries {
				step = e.fixParameters(step, execCtx)
				continue
			}
		} else if finagent.IsNotFoundShaped(err) {
			outcome.Status = finagent.StepStatusFailed
			outcome.Error = err.Error()
			outcome.Suggestion = suggestionFor(step.ToolName)
			outcome.Attempts = attempt + 1
			return outcome
		} else if attempt < e.maxRetries {
			log.Printf("步骤 %d 失败，重试中... (%d/%d): %v", step.StepID, attempt+1, e.maxRetries, err)
			e.publish(ctx, eventbus.EventStepRetry, step.ToolName, map[string]interface{}{
				"step_id": step.StepID,
				"attempt": attempt + 1,
			})
			select {
			case <-ctx.Done():
			case <-time.After(e.retryDelay):
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	outcome.Status = finagent.StepStatusFailed
	if lastErr != nil {
		outcome.Error = lastErr.Error()
	}
	outcome.Attempts = e.maxRetries + 1
	return outcome
}

// executeStep performs one tool call attempt: repair arguments, resolve step
// references, normalize identifiers, validate, invoke with timeout, then
// propagate identity into the run context.
func (e *SequentialExecutor) executeStep(ctx context.Context, step finagent.PlanStep, execCtx finagent.ExecutionContext, stepResults map[string]map[string]any) (*finagent.ToolResult, error) {
	tool, err := e.registry.Get(step.ToolName)
	if err != nil {
		return nil, err
	}

	args := step.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if e.validator != nil {
		args = e.validator.ValidateAndFix(step.ToolName, args, execCtx)
	}
	args = ResolveArguments(args, stepResults)

	if _, exists := args["employee_id"]; exists {
		args["employee_id"] = normalizeIdentifier(args["employee_id"], execCtx.Get("employee_id"))
	}
	if _, exists := args["assignee_id"]; exists {
		args["assignee_id"] = normalizeIdentifier(args["assignee_id"], execCtx.Get("employee_id"))
	}

	// Record the looked-up name before the call so even a failed lookup
	// leaves a trace of who was asked about.
	if step.ToolName == "query_employee_info" {
		if name, ok := args["name"].(string); ok && name != "" {
			execCtx.Set("employee_name", name)
		}
	}

	if err := tool.Validate(args); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.toolTimeout)
	defer cancel()

	result, err := tool.Execute(callCtx, args)
	if err != nil {
		return nil, err
	}

	// Identity flows to later steps through the run context.
	if step.ToolName == "query_employee_info" && result != nil && result.Data != nil {
		if id, ok := result.Data["employee_id"].(string); ok {
			execCtx.Set("employee_id", id)
		}
		if name, ok := result.Data["employee_name"].(string); ok {
			execCtx.Set("employee_name", name)
		}
	}

	return result, nil
}

// fixParameters patches empty identifier arguments from the run context
// before a parameter-error retry.
func (e *SequentialExecutor) fixParameters(step finagent.PlanStep, execCtx finagent.ExecutionContext) finagent.PlanStep {
	args := make(map[string]any, len(step.Arguments))
	for k, v := range step.Arguments {
		args[k] = v
	}

	if isEmptyArg(args, "employee_id") && execCtx.Has("employee_id") {
		args["employee_id"] = execCtx.Get("employee_id")
	}
	if isEmptyArg(args, "assignee_id") && execCtx.Has("employee_id") {
		args["assignee_id"] = execCtx.Get("employee_id")
	}

	step.Arguments = args
	return step
}

// isEmptyArg reports whether key is present but empty.
func isEmptyArg(args map[string]any, key string) bool {
	val, exists := args[key]
	if !exists {
		return false
	}
	if val == nil {
		return true
	}
	s, ok := val.(string)
	return ok && s == ""
}

// normalizeIdentifier decides between a plan-provided identifier and the
// run-context one: placeholder text defers to context, real IDs are
// uppercased, anything else passes through.
func normalizeIdentifier(value any, contextID string) any {
	if contextID == "" {
		return value
	}
	if value == nil {
		return contextID
	}
	s, ok := value.(string)
	if !ok {
		return value
	}
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return contextID
	}
	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "employee_id") || strings.Contains(trimmed, "工号") {
		return contextID
	}
	if looksLikeEmployeeID(trimmed) {
		return strings.ToUpper(trimmed)
	}
	return value
}

func looksLikeEmployeeID(s string) bool {
	if len(s) < 2 {
		return false
	}
	if s[0] != 'E' && s[0] != 'e' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func suggestionFor(toolName string) string {
	if s, exists := suggestions[toolName]; exists {
		return s
	}
	return defaultSuggestion
}

func (e *SequentialExecutor) publish(ctx context.Context, eventType eventbus.EventType, toolName string, metadata map[string]interface{}) {
	if e.eventBus == nil {
		return
	}
	e.eventBus.Publish(ctx, eventbus.NewEvent(eventType, toolName, "SequentialExecutor", metadata))
}
