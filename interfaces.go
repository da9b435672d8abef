package finagent

import "context"

// LLM is a chat-completion endpoint invoked with a single prompt string.
// Implementations must honor ctx cancellation and deadlines.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LLMFunc adapts a plain function to the LLM interface. Tests inject
// scripted completion functions through it.
type LLMFunc func(ctx context.Context, prompt string) (string, error)

// Complete implements the LLM interface.
func (f LLMFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Classifier determines the intent behind a user question. Implementations
// must never fail: a parse failure falls back to DefaultIntent.
type Classifier interface {
	Classify(ctx context.Context, question string) Intent
}

// Planner generates an ordered tool-call plan for a classified question.
// Implementations must never fail: a parse failure falls back to a
// single-step knowledge-base search plan.
type Planner interface {
	GeneratePlan(ctx context.Context, question string, intent Intent) Plan
}

// Validator repairs a proposed plan against the tool dependency graph:
// unknown tools and duplicates are dropped, missing dependency steps are
// synthesized, and the result is renumbered. Issues are advisory.
type Validator interface {
	ValidatePlan(plan Plan, intent Intent) (Plan, []string)
}

// Executor runs a validated plan step by step, returning the per-step
// outcomes and the run context accumulated along the way. Step failures
// degrade to failure records; they never surface as an error.
type Executor interface {
	ExecutePlan(ctx context.Context, plan Plan, intent Intent) ([]ExecutionStep, ExecutionContext)
}

// Aggregator folds all step outcomes into a final natural-language answer.
// Implementations must never fail: an LLM failure falls back to a
// truncated concatenation of the raw tool output.
type Aggregator interface {
	Aggregate(ctx context.Context, question string, steps []ExecutionStep, intent Intent) string
}

// Tool is an executable action that can appear in a plan.
type Tool interface {
	// Execute performs the tool's action with validated arguments.
	Execute(ctx context.Context, args map[string]any) (*ToolResult, error)

	// Schema describes the tool for planner prompts. Standard keys:
	// "description", "parameters", "category".
	Schema() map[string]any

	// Validate checks whether args are acceptable before execution.
	Validate(args map[string]any) error

	// Name returns the tool's unique name.
	Name() string

	// Category returns one of the Category* constants.
	Category() string
}

// Retriever fetches ranked knowledge-base chunks for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]RetrievedSource, error)
	Ready() bool
}

// Cache stores generated plans and other derived values.
type Cache interface {
	Get(ctx context.Context, key string) (any, bool)
	Set(ctx context.Context, key string, value any)
}
