package board

import (
	"context"
	"time"

	"github.com/acme/task-confirm-caller/internal/domain"
)

// FieldKey names a logical task field. Implementations translate keys to
// their provider-specific field identifiers.
type FieldKey string

const (
	FieldPhoneNumber   FieldKey = "phone_number"
	FieldOperationMode FieldKey = "operation_mode"
	FieldRetryCount    FieldKey = "retry_count"
	FieldLastCallTime  FieldKey = "last_call_time"
	FieldCallOutcome   FieldKey = "call_outcome"
	FieldCallSID       FieldKey = "call_sid"
)

// Board is the task-board capability the lifecycle consumes. The board is
// the source of truth for durable task state; the core re-reads it rather
// than caching snapshots across cycles.
type Board interface {
	// ListOpenTasks returns the open confirmation candidates for the
	// configured project. Tasks with missing phone numbers or unparsable
	// operation modes are excluded, not failed.
	ListOpenTasks(ctx context.Context) ([]domain.Task, error)
	// GetTask fetches a single task; completed or deleted tasks report
	// ErrNotFound.
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	UpdateFields(ctx context.Context, id string, fields map[FieldKey]any) error
	UpdateStatus(ctx context.Context, id string, status domain.TaskStatus) error
	AppendNote(ctx context.Context, id string, text string) error
	// IncrementRetryCount bumps the retry counter on the board and returns
	// the new value.
	IncrementRetryCount(ctx context.Context, id string) (int, error)
}

// FormatTime renders timestamps the way board field values expect them.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
