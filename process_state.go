package finagent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/finagent-ai/finagent/internal/eventbus"
)

// ProcessState represents the current state of a question run.
type ProcessState string

const (
	// StateInit is the initial state of the run
	StateInit ProcessState = "init"
	// StateIntent represents the intent classification phase
	StateIntent ProcessState = "intent"
	// StatePlanning represents the plan generation phase
	StatePlanning ProcessState = "planning"
	// StateValidation represents the plan validation and repair phase
	StateValidation ProcessState = "validation"
	// StateExecution represents the sequential tool execution phase
	StateExecution ProcessState = "execution"
	// StateAggregation represents the answer aggregation phase
	StateAggregation ProcessState = "aggregation"
	// StateError represents an error state
	StateError ProcessState = "error"
	// StateComplete represents the completed state
	StateComplete ProcessState = "complete"
	// StateCancelled represents the cancelled state
	StateCancelled ProcessState = "cancelled"
	// StateUnknown is used when the status of an async run cannot be determined.
	StateUnknown ProcessState = "unknown"
)

// ProcessContext carries all data for a single run through the state
// machine. The run goroutine owns the intermediate results; the fields an
// async status poller reads (CurrentState, FinalAnswer, LastError,
// ErrorStage, EndTime, StateStartTimes) are guarded by mu and must only be
// touched through the locked methods below.
type ProcessContext struct {
	// Input parameters
	Question string
	User     UserContext

	// Intermediate results
	Intent           Intent
	Plan             Plan
	ValidationIssues []string
	Steps            []ExecutionStep
	ExecContext      ExecutionContext
	Sources          []Source
	FinalAnswer      string

	// Error handling
	LastError  error
	ErrorStage string

	// State management
	CurrentState ProcessState
	StateStack   []ProcessState
	StateData    map[string]interface{}

	// Timestamp tracking
	StartTime       time.Time
	EndTime         time.Time
	StateStartTimes map[ProcessState]time.Time

	mu sync.RWMutex
}

// NewProcessContext creates a new process context for the given question.
func NewProcessContext(question string, user UserContext) *ProcessContext {
	return &ProcessContext{
		Question:        question,
		User:            user,
		ExecContext:     make(ExecutionContext),
		CurrentState:    StateInit,
		StateStack:      []ProcessState{},
		StateData:       make(map[string]interface{}),
		StartTime:       time.Now(),
		StateStartTimes: make(map[ProcessState]time.Time),
	}
}

// PushState pushes the current state onto the stack and sets a new current state.
func (pc *ProcessContext) PushState(state ProcessState) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.StateStack = append(pc.StateStack, pc.CurrentState)
	pc.CurrentState = state
	pc.StateStartTimes[state] = time.Now()
}

// PopState pops the top state from the stack and sets it as the current state.
// Returns false if the stack is empty.
func (pc *ProcessContext) PopState() bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if len(pc.StateStack) == 0 {
		return false
	}
	lastIdx := len(pc.StateStack) - 1
	pc.CurrentState = pc.StateStack[lastIdx]
	pc.StateStack = pc.StateStack[:lastIdx]
	pc.StateStartTimes[pc.CurrentState] = time.Now()
	return true
}

// State returns the current pipeline state.
func (pc *ProcessContext) State() ProcessState {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.CurrentState
}

// advance moves the run to the next non-terminal state.
func (pc *ProcessContext) advance(state ProcessState) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.CurrentState = state
	pc.StateStartTimes[state] = time.Now()
}

// IsTerminal checks if the current state is a terminal state (Complete, Error, Cancelled).
func (pc *ProcessContext) IsTerminal() bool {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.isTerminalLocked()
}

func (pc *ProcessContext) isTerminalLocked() bool {
	return pc.CurrentState == StateComplete || pc.CurrentState == StateError || pc.CurrentState == StateCancelled
}

// SetError sets the last error and error stage, transitioning to StateError.
func (pc *ProcessContext) SetError(err error, stage string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.LastError = err
	pc.ErrorStage = stage
	pc.CurrentState = StateError
	pc.StateStartTimes[StateError] = time.Now()
}

// SetCancelled sets the state to Cancelled and records the cancellation error.
func (pc *ProcessContext) SetCancelled(err error, stage string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.LastError = err
	pc.ErrorStage = stage
	pc.CurrentState = StateCancelled
	pc.StateStartTimes[StateCancelled] = time.Now()
}

// Failure returns the stage and error recorded by SetError or SetCancelled.
func (pc *ProcessContext) Failure() (string, error) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.ErrorStage, pc.LastError
}

// SetAnswer records the final answer.
func (pc *ProcessContext) SetAnswer(answer string) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.FinalAnswer = answer
}

// Answer returns the final answer recorded so far.
func (pc *ProcessContext) Answer() string {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.FinalAnswer
}

// Complete marks the run as complete and sets the end time. Calling it on an
// already completed run is a no-op.
func (pc *ProcessContext) Complete() {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if !pc.EndTime.IsZero() {
		return
	}
	pc.CurrentState = StateComplete
	pc.EndTime = time.Now()
	pc.StateStartTimes[StateComplete] = pc.EndTime
}

// Result assembles the terminal RunResult from the accumulated context.
func (pc *ProcessContext) Result() RunResult {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return RunResult{
		Answer:  pc.FinalAnswer,
		Steps:   pc.Steps,
		Sources: pc.Sources,
		Intent:  pc.Intent,
	}
}

// GetTotalDuration returns the total duration of the run so far.
func (pc *ProcessContext) GetTotalDuration() time.Duration {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	if pc.CurrentState == StateComplete {
		return pc.EndTime.Sub(pc.StartTime)
	}
	return time.Since(pc.StartTime)
}

// LastStateChange returns when the current state was entered.
func (pc *ProcessContext) LastStateChange() time.Time {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	if ts, ok := pc.StateStartTimes[pc.CurrentState]; ok {
		return ts
	}
	return pc.StartTime
}

// StateTransition defines a transition function for the state machine.
type StateTransition func(ctx context.Context, eventBus eventbus.EventBus, pCtx *ProcessContext) (ProcessState, error)

// StateMachine drives a run through the intent, planning, validation,
// execution and aggregation phases.
type StateMachine struct {
	transitions map[ProcessState]StateTransition
	eventBus    eventbus.EventBus
}

// NewStateMachine creates a new state machine with the provided event bus.
func NewStateMachine(eventBus eventbus.EventBus) *StateMachine {
	return &StateMachine{
		transitions: make(map[ProcessState]StateTransition),
		eventBus:    eventBus,
	}
}

// RegisterTransition registers a state transition function.
func (sm *StateMachine) RegisterTransition(state ProcessState, transition StateTransition) {
	sm.transitions[state] = transition
}

// Execute runs the state machine until a terminal state is reached. The
// returned answer is always best-effort: transition functions degrade
// failures into the context instead of returning errors, so a non-nil error
// here means cancellation or a missing transition, nothing less.
func (sm *StateMachine) Execute(ctx context.Context, pCtx *ProcessContext) (string, error) {
	for !pCtx.IsTerminal() {
		state := pCtx.State()

		// Check for context cancellation before executing the next state
		select {
		case <-ctx.Done():
			err := ctx.Err()
			pCtx.SetCancelled(err, string(state))
			return "", err
		default:
		}

		transition, exists := sm.transitions[state]
		if !exists {
			err := fmt.Errorf("no transition defined for state: %s", state)
			pCtx.SetError(err, string(state))
			return "", err
		}

		nextState, err := transition(ctx, sm.eventBus, pCtx)
		if err != nil {
			if err == context.Canceled || err == context.DeadlineExceeded {
				pCtx.SetCancelled(err, string(state))
			} else if !pCtx.IsTerminal() {
				pCtx.SetError(err, string(state))
			}
			continue
		}

		if !pCtx.IsTerminal() {
			pCtx.advance(nextState)
		}
	}

	_, err := pCtx.Failure()
	return pCtx.Answer(), err
}
