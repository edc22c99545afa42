package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/task-confirm-caller/pkg/logger"
)

type recordingLifecycle struct {
	mu      sync.Mutex
	cycles  int
	retried []string
}

func (r *recordingLifecycle) ProcessCycle(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles++
	return nil
}

func (r *recordingLifecycle) RetryTask(_ context.Context, taskID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retried = append(r.retried, taskID)
	return nil
}

func (r *recordingLifecycle) retriedTasks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.retried...)
}

func newTestScheduler(t *testing.T, lc Lifecycle) *Scheduler {
	t.Helper()
	lg, err := logger.New("test")
	require.NoError(t, err)
	return New(lc, time.Hour, time.Hour, lg)
}

func TestScheduleDeduplicatesByTask(t *testing.T) {
	s := newTestScheduler(t, &recordingLifecycle{})

	s.Schedule("t1", time.Hour)
	s.Schedule("t1", time.Minute)
	s.Schedule("t2", time.Minute)

	assert.Equal(t, 2, s.PendingRetries(), "re-scheduling replaces the prior entry")
}

func TestFireDueRetries(t *testing.T) {
	lc := &recordingLifecycle{}
	s := newTestScheduler(t, lc)

	s.Schedule("due-now", -time.Second)
	s.Schedule("due-later", time.Hour)

	s.fireDueRetries(context.Background())

	assert.Equal(t, []string{"due-now"}, lc.retriedTasks())
	assert.Equal(t, 1, s.PendingRetries(), "future entry stays armed")

	// The fired entry is consumed; a second tick does nothing.
	s.fireDueRetries(context.Background())
	assert.Len(t, lc.retriedTasks(), 1)
}

func TestRunStartsWithDiscovery(t *testing.T) {
	lc := &recordingLifecycle{}
	s := newTestScheduler(t, lc)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		lc.mu.Lock()
		defer lc.mu.Unlock()
		return lc.cycles >= 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
