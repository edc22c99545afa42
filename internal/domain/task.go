package domain

import "time"

// OperationMode selects the voice script played to the callee.
type OperationMode string

const (
	ModePickup   OperationMode = "pickup"
	ModeDelivery OperationMode = "delivery"
)

// ParseOperationMode normalizes a board field value into an OperationMode.
func ParseOperationMode(raw string) (OperationMode, bool) {
	switch OperationMode(raw) {
	case ModePickup:
		return ModePickup, true
	case ModeDelivery:
		return ModeDelivery, true
	default:
		return "", false
	}
}

// Outcome is the terminal classification of one completed call attempt.
type Outcome string

const (
	OutcomeConfirmed Outcome = "confirmed"
	OutcomeDeclined  Outcome = "declined"
	OutcomeNoAnswer  Outcome = "no_answer"
	OutcomeBusy      Outcome = "busy"
	OutcomeFailed    Outcome = "failed"
)

// Retryable reports whether the outcome allows another call attempt.
func (o Outcome) Retryable() bool {
	switch o {
	case OutcomeNoAnswer, OutcomeBusy, OutcomeFailed:
		return true
	default:
		return false
	}
}

// TaskStatus enumerates board statuses the service writes back.
type TaskStatus string

const (
	StatusPendingConfirmation TaskStatus = "pending_confirmation"
	StatusConfirmed           TaskStatus = "confirmed"
	StatusCustomerUnavailable TaskStatus = "customer_unavailable"
)

// Task is a snapshot of one confirmation work item from the board.
type Task struct {
	ID           string
	Name         string
	Phone        string
	Mode         OperationMode
	RetryCount   int
	LastCallTime *time.Time
	LastOutcome  *Outcome
	ExtraFields  map[string]any
}

// PendingCall correlates an in-flight call with the task it was placed for.
type PendingCall struct {
	CallSID  string
	Task     Task
	PlacedAt time.Time
}

// ConfirmationPolicy bounds the retry behavior for confirmation calls.
type ConfirmationPolicy struct {
	MaxAttempts int
	RetryDelay  time.Duration
}
