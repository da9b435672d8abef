// Package finagent provides the core runtime for a finance question
// answering agent: intent classification, multi-step tool planning,
// sequential execution with retry, and answer aggregation.
package finagent

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/finagent-ai/finagent/internal/eventbus"
	"github.com/google/uuid"
)

// Agent is the main entry point into the finagent runtime. It encapsulates
// all pipeline stages required for answering a finance question.
type Agent struct {
	// Pipeline stages
	classifier Classifier
	planner    Planner
	validator  Validator
	executor   Executor
	aggregator Aggregator

	// Tool catalog
	registry *Registry

	// Infrastructure
	eventBus eventbus.EventBus
	config   Config
	user     UserContext

	// Async processing
	asyncRuns      map[string]*ProcessContext
	asyncRunsMutex sync.RWMutex
}

// Config holds the configuration options for the Agent runtime.
type Config struct {
	// Maximum number of plan steps executed per run
	MaxSteps int

	// Retry configuration for failed tool calls
	MaxRetries int
	RetryDelay time.Duration

	// Per-tool-call timeout
	ToolTimeout time.Duration

	// Event bus configuration
	EnableEventBus      bool
	EventBusBufferSize  int
	EventBusWorkerCount int
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSteps:            8,
		MaxRetries:          2,
		RetryDelay:          time.Millisecond * 500,
		ToolTimeout:         time.Second * 10,
		EnableEventBus:      true,
		EventBusBufferSize:  100,
		EventBusWorkerCount: 5,
	}
}

// Option is a function that configures an Agent instance.
type Option func(*Agent)

// WithConfig sets the runtime configuration.
func WithConfig(config Config) Option {
	return func(a *Agent) {
		a.config = config
	}
}

// WithClassifier sets the intent classification stage.
func WithClassifier(classifier Classifier) Option {
	return func(a *Agent) {
		a.classifier = classifier
	}
}

// WithPlanner sets the plan generation stage.
func WithPlanner(planner Planner) Option {
	return func(a *Agent) {
		a.planner = planner
	}
}

// WithValidator sets the plan validation stage.
func WithValidator(validator Validator) Option {
	return func(a *Agent) {
		a.validator = validator
	}
}

// WithExecutor sets the plan execution stage.
func WithExecutor(executor Executor) Option {
	return func(a *Agent) {
		a.executor = executor
	}
}

// WithAggregator sets the answer aggregation stage.
func WithAggregator(aggregator Aggregator) Option {
	return func(a *Agent) {
		a.aggregator = aggregator
	}
}

// WithRegistry sets the tool catalog.
func WithRegistry(registry *Registry) Option {
	return func(a *Agent) {
		a.registry = registry
	}
}

// WithEventBus sets a custom event bus.
func WithEventBus(eventBus eventbus.EventBus) Option {
	return func(a *Agent) {
		a.eventBus = eventBus
	}
}

// WithUserContext sets the identity of the requesting user, used to resolve
// first-person questions.
func WithUserContext(user UserContext) Option {
	return func(a *Agent) {
		a.user = user
	}
}

// New creates a new Agent instance with the provided options.
func New(options ...Option) (*Agent, error) {
	a := &Agent{
		config:    DefaultConfig(),
		asyncRuns: make(map[string]*ProcessContext),
	}

	for _, option := range options {
		option(a)
	}

	// Validate required stages
	if a.classifier == nil {
		return nil, NewConfigurationError("classifier is required", nil)
	}
	if a.planner == nil {
		return nil, NewConfigurationError("planner is required", nil)
	}
	if a.validator == nil {
		return nil, NewConfigurationError("validator is required", nil)
	}
	if a.executor == nil {
		return nil, NewConfigurationError("executor is required", nil)
	}
	if a.aggregator == nil {
		return nil, NewConfigurationError("aggregator is required", nil)
	}
	if a.registry == nil {
		return nil, NewConfigurationError("tool registry is required", nil)
	}

	if a.config.EnableEventBus && a.eventBus == nil {
		a.eventBus = eventbus.NewChannelEventBus(
			eventbus.WithBufferSize(a.config.EventBusBufferSize),
			eventbus.WithWorkerCount(a.config.EventBusWorkerCount),
		)
		log.Printf("Initialized default channel-based event bus")
	}

	return a, nil
}

// Registry exposes the agent's tool catalog.
func (a *Agent) Registry() *Registry {
	return a.registry
}

// Close releases runtime resources.
func (a *Agent) Close() error {
	if a.eventBus != nil {
		return a.eventBus.Close()
	}
	return nil
}

// Run handles an end-to-end question through the pipeline state machine and
// returns the best-effort result. The answer is always populated: stage
// failures degrade instead of aborting. A non-nil error means cancellation.
func (a *Agent) Run(ctx context.Context, question string) (RunResult, error) {
	stateMachine := a.createStateMachine()
	processContext := NewProcessContext(question, a.user)

	_, err := stateMachine.Execute(ctx, processContext)
	return processContext.Result(), err
}

// createStateMachine builds a state machine with all transitions for the
// question pipeline.
func (a *Agent) createStateMachine() *StateMachine {
	var eventBus eventbus.EventBus
	if a.config.EnableEventBus {
		eventBus = a.eventBus
	}

	components := Components{
		Classifier: a.classifier,
		Planner:    a.planner,
		Validator:  a.validator,
		Executor:   a.executor,
		Aggregator: a.aggregator,
		Registry:   a.registry,
		Config:     a.config,
	}

	return CreateRunStateMachine(components, eventBus)
}

// RunAsync starts an asynchronous question run. It returns a unique run ID
// that can be used to check the status, fetch the result, or cancel.
func (a *Agent) RunAsync(ctx context.Context, question string) (string, error) {
	runID := uuid.New().String()

	stateMachine := a.createStateMachine()
	processContext := NewProcessContext(question, a.user)

	// Async runs outlive the caller's context; cancellation happens through
	// the stored cancel function.
	asyncCtx, cancel := context.WithCancel(context.Background())
	processContext.StateData["cancel"] = cancel

	a.asyncRunsMutex.Lock()
	a.asyncRuns[runID] = processContext
	a.asyncRunsMutex.Unlock()

	if a.config.EnableEventBus && a.eventBus != nil {
		startEvent := eventbus.NewEvent(
			eventbus.EventAsyncRunStarted,
			question,
			"Agent.RunAsync",
			map[string]interface{}{
				"timestamp": time.Now().Format(time.RFC3339),
				"run_id":    runID,
			},
		)
		a.eventBus.Publish(ctx, startEvent)
	}

	go func() {
		defer cancel()

		answer, err := stateMachine.Execute(asyncCtx, processContext)

		a.asyncRunsMutex.Lock()
		if pCtx, exists := a.asyncRuns[runID]; exists {
			pCtx.SetAnswer(answer)
			if err != nil && !pCtx.IsTerminal() {
				pCtx.SetError(err, string(pCtx.State()))
			} else if !pCtx.IsTerminal() {
				pCtx.Complete()
			}
		}
		a.asyncRunsMutex.Unlock()

		if a.config.EnableEventBus && a.eventBus != nil {
			eventType := eventbus.EventAsyncRunSuccess
			metadata := map[string]interface{}{
				"run_id":      runID,
				"duration_ms": processContext.GetTotalDuration().Milliseconds(),
			}
			if err != nil {
				eventType = eventbus.EventAsyncRunFailure
				metadata["error"] = err.Error()
				stage, _ := processContext.Failure()
				metadata["error_stage"] = stage
			}
			completionEvent := eventbus.NewEvent(eventType, question, "Agent.RunAsync", metadata)
			// Background context: the caller's context may be done by now.
			a.eventBus.Publish(context.Background(), completionEvent)
		}
	}()

	return runID, nil
}
