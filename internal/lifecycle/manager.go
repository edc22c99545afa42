package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/task-confirm-caller/internal/board"
	"github.com/acme/task-confirm-caller/internal/domain"
	"github.com/acme/task-confirm-caller/internal/events"
	"github.com/acme/task-confirm-caller/internal/registry"
	"github.com/acme/task-confirm-caller/internal/telephony"
	apperrors "github.com/acme/task-confirm-caller/pkg/errors"
	"github.com/acme/task-confirm-caller/pkg/logger"
)

// RetryScheduler arranges a future re-evaluation of a task.
type RetryScheduler interface {
	Schedule(taskID string, after time.Duration)
}

// Manager performs the side effects around the pure state machine: placing
// calls, tracking them in the registry, and writing outcomes back to the
// board. All dependencies are injected; the manager holds no globals.
type Manager struct {
	board     board.Board
	provider  telephony.Provider
	registry  registry.PendingCallRegistry
	publisher events.OutcomePublisher
	retries   RetryScheduler
	policy    domain.ConfirmationPolicy
	logger    *logger.Logger
}

// NewManager builds the lifecycle manager.
func NewManager(
	b board.Board,
	provider telephony.Provider,
	reg registry.PendingCallRegistry,
	publisher events.OutcomePublisher,
	policy domain.ConfirmationPolicy,
	lg *logger.Logger,
) *Manager {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Manager{
		board:     b,
		provider:  provider,
		registry:  reg,
		publisher: publisher,
		policy:    policy,
		logger:    lg.Named("lifecycle"),
	}
}

// SetRetryScheduler wires the scheduler after construction; the scheduler
// itself needs the manager, so the dependency is closed here.
func (m *Manager) SetRetryScheduler(r RetryScheduler) {
	m.retries = r
}

// Policy exposes the active confirmation policy.
func (m *Manager) Policy() domain.ConfirmationPolicy {
	return m.policy
}

// ProcessCycle runs one discovery pass over the board's open tasks. Each
// task is isolated: a failure on one is logged and never blocks the rest.
func (m *Manager) ProcessCycle(ctx context.Context) error {
	tasks, err := m.board.ListOpenTasks(ctx)
	if err != nil {
		return fmt.Errorf("lifecycle: list open tasks: %w", err)
	}
	m.logger.Info("processing confirmation tasks", zap.Int("count", len(tasks)))

	for _, task := range tasks {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := m.ProcessTask(ctx, task); err != nil {
			m.logger.Error("process task failed",
				zap.String("task_id", task.ID), zap.Error(err))
		}
	}
	return nil
}

// ProcessTask evaluates one task and performs the resulting action.
func (m *Manager) ProcessTask(ctx context.Context, task domain.Task) error {
	action := Evaluate(task, time.Now().UTC(), m.policy)
	m.logger.Debug("evaluated task",
		zap.String("task_id", task.ID),
		zap.String("action", action.String()),
		zap.Int("retry_count", task.RetryCount))

	switch action {
	case ActionSkip:
		return nil
	case ActionMarkUnavailable:
		m.logger.Info("task exhausted retry attempts", zap.String("task_id", task.ID))
		if err := m.board.UpdateStatus(ctx, task.ID, domain.StatusCustomerUnavailable); err != nil {
			return fmt.Errorf("lifecycle: mark unavailable: %w", err)
		}
		return nil
	}

	return m.placeCall(ctx, task)
}

func (m *Manager) placeCall(ctx context.Context, task domain.Task) error {
	callSID, err := m.provider.PlaceCall(ctx, telephony.CallRequest{
		TaskID: task.ID,
		To:     task.Phone,
		Mode:   task.Mode,
	})
	if err != nil {
		// Transient provider failure: the task is picked up again on the
		// next poll, not re-attempted in a loop.
		return fmt.Errorf("lifecycle: place call: %w", err)
	}

	if err := m.registry.Register(ctx, callSID, task); err != nil {
		m.logger.Error("register pending call",
			zap.String("call_sid", callSID), zap.String("task_id", task.ID), zap.Error(err))
	}

	now := time.Now().UTC()
	if err := m.board.UpdateFields(ctx, task.ID, map[board.FieldKey]any{
		board.FieldLastCallTime: board.FormatTime(now),
		board.FieldCallSID:      callSID,
	}); err != nil {
		m.logger.Error("record call placement on board",
			zap.String("task_id", task.ID), zap.Error(err))
	}

	m.logger.Info("placed confirmation call",
		zap.String("call_sid", callSID),
		zap.String("task_id", task.ID),
		zap.String("mode", string(task.Mode)))
	return nil
}

// HandleCallCompletion applies a terminal callback correlated by call SID.
// The registry removal is the idempotency gate: a second terminal callback
// for the same SID resolves to nothing and is acknowledged without effect.
func (m *Manager) HandleCallCompletion(ctx context.Context, callSID string, outcome domain.Outcome, transcript string) error {
	pc, err := m.registry.Complete(ctx, callSID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			m.logger.Warn("no pending call for sid", zap.String("call_sid", callSID))
			return nil
		}
		return fmt.Errorf("lifecycle: complete call %s: %w", callSID, err)
	}
	return m.finalize(ctx, pc, outcome, transcript)
}

// HandleTaskCompletion applies a terminal callback correlated by task ID,
// used by the mid-call completion path which carries the task rather than
// the call SID.
func (m *Manager) HandleTaskCompletion(ctx context.Context, taskID string, outcome domain.Outcome, transcript string) error {
	pc, err := m.registry.CompleteByTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			m.logger.Warn("no pending call for task", zap.String("task_id", taskID))
			return nil
		}
		return fmt.Errorf("lifecycle: complete task %s: %w", taskID, err)
	}
	return m.finalize(ctx, pc, outcome, transcript)
}

func (m *Manager) finalize(ctx context.Context, pc *domain.PendingCall, outcome domain.Outcome, transcript string) error {
	task := pc.Task
	transition := ApplyOutcome(task, outcome, m.policy)

	m.logger.Info("applying call outcome",
		zap.String("task_id", task.ID),
		zap.String("call_sid", pc.CallSID),
		zap.String("outcome", string(outcome)),
		zap.String("status", string(transition.Status)),
		zap.Bool("terminal", transition.Terminal))

	if err := m.board.UpdateFields(ctx, task.ID, map[board.FieldKey]any{
		board.FieldCallOutcome: string(outcome),
	}); err != nil {
		m.logger.Error("record outcome on board", zap.String("task_id", task.ID), zap.Error(err))
	}

	if transcript != "" {
		note := fmt.Sprintf("Call transcript (call SID %s):\n\n%s", pc.CallSID, transcript)
		if err := m.board.AppendNote(ctx, task.ID, note); err != nil {
			m.logger.Error("attach transcript", zap.String("task_id", task.ID), zap.Error(err))
		}
	}

	if outcome.Retryable() {
		// The board owns the retry counter; increment there rather than
		// trusting the snapshot taken at placement time.
		newCount, err := m.board.IncrementRetryCount(ctx, task.ID)
		if err != nil {
			return fmt.Errorf("lifecycle: increment retry count: %w", err)
		}
		if newCount >= m.policy.MaxAttempts {
			transition = Transition{Status: domain.StatusCustomerUnavailable, RetryCount: newCount, Terminal: true}
		} else {
			transition = Transition{Status: domain.StatusPendingConfirmation, RetryCount: newCount, RetryIn: m.policy.RetryDelay}
		}
	}

	if transition.Terminal {
		if err := m.board.UpdateStatus(ctx, task.ID, transition.Status); err != nil {
			return fmt.Errorf("lifecycle: update status: %w", err)
		}
	} else if transition.RetryIn > 0 && m.retries != nil {
		m.retries.Schedule(task.ID, transition.RetryIn)
		m.logger.Info("scheduled retry",
			zap.String("task_id", task.ID),
			zap.Duration("after", transition.RetryIn),
			zap.Int("retry_count", transition.RetryCount))
	}

	event := events.OutcomeEvent{
		EventID:    uuid.New(),
		TaskID:     task.ID,
		CallSID:    pc.CallSID,
		Outcome:    outcome,
		RetryCount: transition.RetryCount,
		Terminal:   transition.Terminal,
		OccurredAt: time.Now().UTC(),
	}
	if err := m.publisher.PublishOutcome(ctx, event); err != nil {
		m.logger.Error("publish outcome event", zap.String("task_id", task.ID), zap.Error(err))
	}

	return nil
}

// RetryTask re-evaluates a task when its retry comes due. The board is
// re-read first; a task that was deleted or already reached a terminal
// state is a no-op, not an error.
func (m *Manager) RetryTask(ctx context.Context, taskID string) error {
	task, err := m.board.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			m.logger.Debug("retry fired for absent task", zap.String("task_id", taskID))
			return nil
		}
		return fmt.Errorf("lifecycle: fetch task for retry: %w", err)
	}
	return m.ProcessTask(ctx, *task)
}

// Candidates lists the current confirmation candidates from the board.
func (m *Manager) Candidates(ctx context.Context) ([]domain.Task, error) {
	return m.board.ListOpenTasks(ctx)
}

// PendingCount reports the number of in-flight calls.
func (m *Manager) PendingCount(ctx context.Context) (int, error) {
	return m.registry.Count(ctx)
}

// TaskForScript fetches the task a voice-script request refers to.
func (m *Manager) TaskForScript(ctx context.Context, taskID string) (*domain.Task, error) {
	return m.board.GetTask(ctx, taskID)
}
