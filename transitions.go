package finagent

import (
	"context"
	"log"
	"time"

	"github.com/finagent-ai/finagent/internal/eventbus"
)

// Components holds references to the pipeline stages needed by the state
// machine transitions.
type Components struct {
	Classifier Classifier
	Planner    Planner
	Validator  Validator
	Executor   Executor
	Aggregator Aggregator
	Registry   *Registry
	Config     Config
}

// CreateRunStateMachine builds a complete state machine for the question
// pipeline: intent, planning, validation, execution, aggregation.
func CreateRunStateMachine(components Components, eventBus eventbus.EventBus) *StateMachine {
	sm := NewStateMachine(eventBus)

	sm.RegisterTransition(StateInit, createInitTransition(components))
	sm.RegisterTransition(StateIntent, createIntentTransition(components))
	sm.RegisterTransition(StatePlanning, createPlanningTransition(components))
	sm.RegisterTransition(StateValidation, createValidationTransition(components))
	sm.RegisterTransition(StateExecution, createExecutionTransition(components))
	sm.RegisterTransition(StateAggregation, createAggregationTransition(components))
	sm.RegisterTransition(StateError, createErrorTransition(components))
	sm.RegisterTransition(StateComplete, createCompleteTransition(components))
	sm.RegisterTransition(StateCancelled, createCancelledTransition(components))

	return sm
}

// createInitTransition handles the initialization state.
func createInitTransition(components Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, pCtx *ProcessContext) (ProcessState, error) {
		if eb != nil {
			startEvent := eventbus.NewEvent(
				eventbus.EventRunStarted,
				pCtx.Question,
				"StateMachine.Init",
				map[string]interface{}{
					"timestamp": time.Now().Format(time.RFC3339),
				},
			)
			eb.Publish(ctx, startEvent)
		}

		// Seed the run context with the configured user identity so that
		// first-person questions resolve without a lookup step.
		if !pCtx.User.IsZero() {
			pCtx.ExecContext.Set("user_name", pCtx.User.Name)
			pCtx.ExecContext.Set("user_employee_id", pCtx.User.EmployeeID)
		}

		return StateIntent, nil
	}
}

// createIntentTransition handles the intent classification state.
// Classification never fails: the classifier degrades to a default intent.
func createIntentTransition(components Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, pCtx *ProcessContext) (ProcessState, error) {
		intent := components.Classifier.Classify(ctx, pCtx.Question)
		pCtx.Intent = intent

		if eb != nil {
			intentEvent := eventbus.NewEvent(
				eventbus.EventIntentClassified,
				intent,
				"StateMachine.Intent",
				map[string]interface{}{
					"intent_type":     string(intent.Type),
					"estimated_steps": intent.EstimatedSteps,
				},
			)
			eb.Publish(ctx, intentEvent)
		}

		return StatePlanning, nil
	}
}

// createPlanningTransition handles the plan generation state.
// Planning never fails: the planner degrades to a single-step search plan.
func createPlanningTransition(components Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, pCtx *ProcessContext) (ProcessState, error) {
		if eb != nil {
			planStartEvent := eventbus.NewEvent(
				eventbus.EventPlanGenerationStarted,
				pCtx.Question,
				"StateMachine.Planning",
				nil,
			)
			eb.Publish(ctx, planStartEvent)
		}

		plan := components.Planner.GeneratePlan(ctx, pCtx.Question, pCtx.Intent)
		pCtx.Plan = plan

		if eb != nil {
			planSuccessEvent := eventbus.NewEvent(
				eventbus.EventPlanGenerationSuccess,
				plan,
				"StateMachine.Planning",
				map[string]interface{}{
					"step_count": len(plan.Steps),
				},
			)
			eb.Publish(ctx, planSuccessEvent)
		}

		return StateValidation, nil
	}
}

// createValidationTransition handles the plan validation and repair state.
func createValidationTransition(components Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, pCtx *ProcessContext) (ProcessState, error) {
		validated, issues := components.Validator.ValidatePlan(pCtx.Plan, pCtx.Intent)
		pCtx.Plan = validated
		pCtx.ValidationIssues = issues

		for _, issue := range issues {
			log.Printf("plan validation: %s", issue)
		}

		if eb != nil {
			validatedEvent := eventbus.NewEvent(
				eventbus.EventPlanValidated,
				validated,
				"StateMachine.Validation",
				map[string]interface{}{
					"step_count":  len(validated.Steps),
					"issue_count": len(issues),
				},
			)
			eb.Publish(ctx, validatedEvent)
		}

		return StateExecution, nil
	}
}

// createExecutionTransition handles the sequential tool execution state.
// Step failures are recorded on the step; the run always moves on to
// aggregation so the user gets a best-effort answer.
func createExecutionTransition(components Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, pCtx *ProcessContext) (ProcessState, error) {
		if eb != nil {
			execStartEvent := eventbus.NewEvent(
				eventbus.EventExecutionStarted,
				pCtx.Plan,
				"StateMachine.Execution",
				map[string]interface{}{
					"step_count": len(pCtx.Plan.Steps),
				},
			)
			eb.Publish(ctx, execStartEvent)
		}

		steps, execContext := components.Executor.ExecutePlan(ctx, pCtx.Plan, pCtx.Intent)
		pCtx.Steps = steps
		for k, v := range execContext {
			pCtx.ExecContext.Set(k, v)
		}
		pCtx.Sources = collectSources(steps)

		if err := ctx.Err(); err != nil {
			return StateCancelled, err
		}

		if eb != nil {
			succeeded := 0
			for _, step := range steps {
				if step.Status == StepStatusSuccess {
					succeeded++
				}
			}
			execDoneEvent := eventbus.NewEvent(
				eventbus.EventExecutionFinished,
				steps,
				"StateMachine.Execution",
				map[string]interface{}{
					"step_count":    len(steps),
					"success_count": succeeded,
				},
			)
			eb.Publish(ctx, execDoneEvent)
		}

		return StateAggregation, nil
	}
}

// createAggregationTransition handles the final answer aggregation state.
// Aggregation never fails: the aggregator degrades to a raw-output summary.
func createAggregationTransition(components Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, pCtx *ProcessContext) (ProcessState, error) {
		if eb != nil {
			aggStartEvent := eventbus.NewEvent(
				eventbus.EventAggregationStarted,
				pCtx.Question,
				"StateMachine.Aggregation",
				map[string]interface{}{
					"step_count": len(pCtx.Steps),
				},
			)
			eb.Publish(ctx, aggStartEvent)
		}

		answer := components.Aggregator.Aggregate(ctx, pCtx.Question, pCtx.Steps, pCtx.Intent)
		pCtx.SetAnswer(answer)

		if eb != nil {
			runSuccessEvent := eventbus.NewEvent(
				eventbus.EventRunSuccess,
				pCtx.Question,
				"StateMachine.Aggregation",
				map[string]interface{}{
					"answer_length": len(answer),
					"duration_ms":   pCtx.GetTotalDuration().Milliseconds(),
				},
			)
			eb.Publish(ctx, runSuccessEvent)
		}

		return StateComplete, nil
	}
}

// createErrorTransition handles error states. A run that reached an error
// state still produces an answer: the recorded error is rendered as an
// apologetic message and the run completes normally.
func createErrorTransition(_ Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, pCtx *ProcessContext) (ProcessState, error) {
		stage, lastErr := pCtx.Failure()
		if eb != nil && lastErr != nil {
			failEvent := eventbus.NewEvent(
				eventbus.EventRunFailure,
				pCtx.Question,
				"StateMachine.Error",
				map[string]interface{}{
					"error": lastErr.Error(),
					"stage": stage,
				},
			)
			eb.Publish(ctx, failEvent)
		}

		if pCtx.Answer() == "" {
			answer := "抱歉，处理您的问题时出现异常，请稍后重试。"
			if lastErr != nil {
				answer += "（" + lastErr.Error() + "）"
			}
			pCtx.SetAnswer(answer)
		}

		pCtx.Complete()
		return StateComplete, nil
	}
}

// createCompleteTransition handles the complete state.
func createCompleteTransition(_ Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, pCtx *ProcessContext) (ProcessState, error) {
		pCtx.Complete()
		return StateComplete, nil
	}
}

// createCancelledTransition handles the cancelled state. Terminal: the
// cancellation error is already in pCtx.LastError.
func createCancelledTransition(_ Components) StateTransition {
	return func(ctx context.Context, eb eventbus.EventBus, pCtx *ProcessContext) (ProcessState, error) {
		_, lastErr := pCtx.Failure()
		return StateCancelled, lastErr
	}
}

// collectSources derives answer citations from successful knowledge-base
// lookups.
func collectSources(steps []ExecutionStep) []Source {
	var sources []Source
	for _, step := range steps {
		if step.Status != StepStatusSuccess || step.Result == nil || step.ToolName != "rag_search" {
			continue
		}
		content := step.Result.Message
		if runes := []rune(content); len(runes) > 200 {
			content = string(runes[:200])
		}
		sources = append(sources, Source{Type: "policy", Content: content})
	}
	return sources
}
