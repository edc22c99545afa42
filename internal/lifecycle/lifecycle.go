// Package lifecycle implements the confirmation-call state machine: a task
// moves from pending through calling into a terminal state, driven by
// asynchronous provider callbacks, with a bounded retry count.
package lifecycle

import (
	"time"

	"github.com/acme/task-confirm-caller/internal/domain"
)

// Action is the decision for a task in one processing cycle.
type Action int

const (
	// ActionSkip leaves the task alone until the retry delay has elapsed.
	ActionSkip Action = iota
	// ActionPlaceCall places a confirmation call now.
	ActionPlaceCall
	// ActionMarkUnavailable moves the task to its terminal unavailable state.
	ActionMarkUnavailable
)

func (a Action) String() string {
	switch a {
	case ActionPlaceCall:
		return "place_call"
	case ActionMarkUnavailable:
		return "mark_unavailable"
	default:
		return "skip"
	}
}

// Evaluate decides what to do with a task right now. It is a pure decision;
// placing the call, stamping the call time, and registering the pending call
// are side effects performed by the caller.
//
// A task at or past the attempt ceiling is never called again.
func Evaluate(task domain.Task, now time.Time, policy domain.ConfirmationPolicy) Action {
	if task.RetryCount >= policy.MaxAttempts {
		return ActionMarkUnavailable
	}
	if task.LastCallTime != nil && now.Sub(*task.LastCallTime) < policy.RetryDelay {
		return ActionSkip
	}
	return ActionPlaceCall
}

// Transition is the result of applying a call outcome to a task.
type Transition struct {
	Status     domain.TaskStatus
	RetryCount int
	Terminal   bool
	// RetryIn is non-zero when a retry should be scheduled that far in
	// the future.
	RetryIn time.Duration
}

// ApplyOutcome computes the state transition for a completed call. Confirmed
// and declined are terminal per call; retryable outcomes increment the retry
// count and either exhaust the task or schedule a re-evaluation.
func ApplyOutcome(task domain.Task, outcome domain.Outcome, policy domain.ConfirmationPolicy) Transition {
	switch outcome {
	case domain.OutcomeConfirmed:
		return Transition{Status: domain.StatusConfirmed, RetryCount: task.RetryCount, Terminal: true}
	case domain.OutcomeDeclined:
		return Transition{Status: domain.StatusCustomerUnavailable, RetryCount: task.RetryCount, Terminal: true}
	}

	next := task.RetryCount + 1
	if next >= policy.MaxAttempts {
		return Transition{Status: domain.StatusCustomerUnavailable, RetryCount: next, Terminal: true}
	}
	return Transition{
		Status:     domain.StatusPendingConfirmation,
		RetryCount: next,
		RetryIn:    policy.RetryDelay,
	}
}
