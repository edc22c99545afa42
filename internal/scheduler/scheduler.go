// Package scheduler drives the confirmation lifecycle from two trigger
// sources sharing one loop: a fixed-interval discovery poll over the board
// and one-shot delayed retries for individual tasks.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/acme/task-confirm-caller/pkg/logger"
)

// Lifecycle is the evaluation entry point both trigger sources feed.
type Lifecycle interface {
	ProcessCycle(ctx context.Context) error
	RetryTask(ctx context.Context, taskID string) error
}

// Scheduler re-invokes the lifecycle for discovered and retried tasks.
// Retry entries are deduplicated by task ID: scheduling a task that already
// has a pending retry replaces the earlier entry.
type Scheduler struct {
	manager      Lifecycle
	logger       *logger.Logger
	pollInterval time.Duration
	tickInterval time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
}

// New constructs a scheduler around the lifecycle manager.
func New(manager Lifecycle, pollInterval, tickInterval time.Duration, lg *logger.Logger) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Minute
	}
	if tickInterval <= 0 {
		tickInterval = time.Minute
	}
	return &Scheduler{
		manager:      manager,
		logger:       lg.Named("scheduler"),
		pollInterval: pollInterval,
		tickInterval: tickInterval,
		pending:      make(map[string]time.Time),
	}
}

// Schedule arranges a re-evaluation of the task not earlier than after.
func (s *Scheduler) Schedule(taskID string, after time.Duration) {
	due := time.Now().UTC().Add(after)

	s.mu.Lock()
	s.pending[taskID] = due
	s.mu.Unlock()

	s.logger.Debug("retry armed", zap.String("task_id", taskID), zap.Time("due", due))
}

// PendingRetries returns the number of armed retry entries.
func (s *Scheduler) PendingRetries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Run executes the scheduling loop until the context is cancelled. The
// first discovery cycle runs immediately; retries fire on the minute-level
// tick. Failures are logged and never stop the loop.
func (s *Scheduler) Run(ctx context.Context) error {
	poll := time.NewTicker(s.pollInterval)
	defer poll.Stop()
	tick := time.NewTicker(s.tickInterval)
	defer tick.Stop()

	s.runDiscovery(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
			s.runDiscovery(ctx)
		case <-tick.C:
			s.fireDueRetries(ctx)
		}
	}
}

func (s *Scheduler) runDiscovery(ctx context.Context) {
	tracer := otel.Tracer("confirm.scheduler")
	sctx, span := tracer.Start(ctx, "scheduler.discovery")
	defer span.End()

	if err := s.manager.ProcessCycle(sctx); err != nil && ctx.Err() == nil {
		span.RecordError(err)
		s.logger.Error("discovery cycle failed", zap.Error(err))
	}
}

func (s *Scheduler) fireDueRetries(ctx context.Context) {
	now := time.Now().UTC()

	s.mu.Lock()
	var due []string
	for taskID, at := range s.pending {
		if !at.After(now) {
			due = append(due, taskID)
		}
	}
	for _, taskID := range due {
		delete(s.pending, taskID)
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}

	tracer := otel.Tracer("confirm.scheduler")
	sctx, span := tracer.Start(ctx, "scheduler.retries")
	span.SetAttributes(attribute.Int("retries.due", len(due)))
	defer span.End()

	for _, taskID := range due {
		if ctx.Err() != nil {
			return
		}
		if err := s.manager.RetryTask(sctx, taskID); err != nil {
			span.RecordError(err)
			s.logger.Error("retry failed", zap.String("task_id", taskID), zap.Error(err))
		}
	}
}
