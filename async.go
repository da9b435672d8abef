package finagent

import (
	"context"
	"fmt"
	"time"

	"github.com/finagent-ai/finagent/internal/eventbus"
)

// AsyncRunStatus represents the status information for an async run.
type AsyncRunStatus struct {
	RunID        string        `json:"run_id"`
	Question     string        `json:"question"`
	CurrentState ProcessState  `json:"current_state"`
	StartTime    time.Time     `json:"start_time"`
	Duration     time.Duration `json:"duration"`
	IsComplete   bool          `json:"is_complete"`
	HasError     bool          `json:"has_error"`
	ErrorMessage string        `json:"error_message,omitempty"`
	ErrorStage   string        `json:"error_stage,omitempty"`
}

// GetAsyncStatus retrieves the current status of an async run.
func (a *Agent) GetAsyncStatus(runID string) (*AsyncRunStatus, error) {
	a.asyncRunsMutex.RLock()
	defer a.asyncRunsMutex.RUnlock()

	pCtx, exists := a.asyncRuns[runID]
	if !exists {
		return nil, fmt.Errorf("run with ID '%s' not found", runID)
	}

	state := pCtx.State()
	status := &AsyncRunStatus{
		RunID:        runID,
		Question:     pCtx.Question,
		CurrentState: state,
		StartTime:    pCtx.StartTime,
		Duration:     pCtx.GetTotalDuration(),
		IsComplete:   state == StateComplete,
		HasError:     state == StateError,
	}

	if stage, lastErr := pCtx.Failure(); lastErr != nil {
		status.ErrorMessage = lastErr.Error()
		status.ErrorStage = stage
	}

	return status, nil
}

// GetAsyncResult retrieves the result of a completed async run. Returns an
// error if the run is still in progress or was cancelled.
func (a *Agent) GetAsyncResult(runID string) (RunResult, error) {
	a.asyncRunsMutex.RLock()
	defer a.asyncRunsMutex.RUnlock()

	pCtx, exists := a.asyncRuns[runID]
	if !exists {
		return RunResult{}, fmt.Errorf("run with ID '%s' not found", runID)
	}

	if state := pCtx.State(); state != StateComplete {
		stage, lastErr := pCtx.Failure()
		if state == StateCancelled {
			return RunResult{}, fmt.Errorf("run was cancelled during stage '%s': %w", stage, lastErr)
		}
		if state == StateError {
			return RunResult{}, fmt.Errorf("run failed during stage '%s': %w", stage, lastErr)
		}
		return RunResult{}, fmt.Errorf("run is still in progress (current state: %s)", state)
	}

	return pCtx.Result(), nil
}

// CancelAsyncRun cancels an ongoing async run. Returns true if the run was
// cancelled, false if it had already finished.
func (a *Agent) CancelAsyncRun(runID string) (bool, error) {
	a.asyncRunsMutex.Lock()
	defer a.asyncRunsMutex.Unlock()

	pCtx, exists := a.asyncRuns[runID]
	if !exists {
		return false, fmt.Errorf("run with ID '%s' not found", runID)
	}

	if pCtx.IsTerminal() {
		return false, nil
	}

	cancelFn, ok := pCtx.StateData["cancel"].(context.CancelFunc)
	if !ok {
		return false, fmt.Errorf("cannot cancel run: cancel function not found")
	}
	cancelFn()

	pCtx.SetCancelled(fmt.Errorf("run cancelled by user"), string(pCtx.State()))

	if a.config.EnableEventBus && a.eventBus != nil {
		cancelEvent := eventbus.NewEvent(
			eventbus.EventAsyncRunCancelled,
			pCtx.Question,
			"Agent.CancelAsyncRun",
			map[string]interface{}{
				"run_id":      runID,
				"duration_ms": pCtx.GetTotalDuration().Milliseconds(),
			},
		)
		a.eventBus.Publish(context.Background(), cancelEvent)
	}

	return true, nil
}

// ListAsyncRuns returns all async run IDs and their current states.
func (a *Agent) ListAsyncRuns() map[string]string {
	a.asyncRunsMutex.RLock()
	defer a.asyncRunsMutex.RUnlock()

	result := make(map[string]string)
	for id, pCtx := range a.asyncRuns {
		result[id] = string(pCtx.State())
	}
	return result
}

// CleanupCompletedRuns removes terminal runs older than the given duration
// to keep the async map from growing without bound.
func (a *Agent) CleanupCompletedRuns(olderThan time.Duration) int {
	a.asyncRunsMutex.Lock()
	defer a.asyncRunsMutex.Unlock()

	now := time.Now()
	count := 0
	for id, pCtx := range a.asyncRuns {
		if pCtx.IsTerminal() && now.Sub(pCtx.LastStateChange()) > olderThan {
			delete(a.asyncRuns, id)
			count++
		}
	}
	return count
}
