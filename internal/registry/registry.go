package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/acme/task-confirm-caller/internal/domain"
	apperrors "github.com/acme/task-confirm-caller/pkg/errors"
)

// PendingCallRegistry tracks in-flight calls awaiting their terminal callback.
//
// Register and Complete are invoked concurrently from the scheduler and the
// webhook surface; Complete must be atomic so that at most one completion
// per call SID ever succeeds.
type PendingCallRegistry interface {
	Register(ctx context.Context, callSID string, task domain.Task) error
	Resolve(ctx context.Context, callSID string) (*domain.PendingCall, error)
	Complete(ctx context.Context, callSID string) (*domain.PendingCall, error)
	CompleteByTask(ctx context.Context, taskID string) (*domain.PendingCall, error)
	Count(ctx context.Context) (int, error)
}

// Memory is the in-process registry. Entries do not survive a restart; a
// callback arriving for a call placed before the restart resolves to
// ErrNotFound and is dropped as a correlation failure.
type Memory struct {
	mu         sync.Mutex
	byCall     map[string]domain.PendingCall
	callByTask map[string]string
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		byCall:     make(map[string]domain.PendingCall),
		callByTask: make(map[string]string),
	}
}

// Register inserts the call→task association.
func (m *Memory) Register(_ context.Context, callSID string, task domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byCall[callSID]; ok {
		return fmt.Errorf("registry: call %s: %w", callSID, apperrors.ErrDuplicateCall)
	}

	m.byCall[callSID] = domain.PendingCall{
		CallSID:  callSID,
		Task:     task,
		PlacedAt: time.Now().UTC(),
	}
	m.callByTask[task.ID] = callSID
	return nil
}

// Resolve looks up a pending call without removing it.
func (m *Memory) Resolve(_ context.Context, callSID string) (*domain.PendingCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pc, ok := m.byCall[callSID]
	if !ok {
		return nil, fmt.Errorf("registry: call %s: %w", callSID, apperrors.ErrNotFound)
	}
	return &pc, nil
}

// Complete removes and returns the pending call. The second completion of
// the same SID returns ErrNotFound.
func (m *Memory) Complete(_ context.Context, callSID string) (*domain.PendingCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completeLocked(callSID)
}

// CompleteByTask removes and returns the pending call placed for the task,
// for callbacks that correlate by task rather than call SID.
func (m *Memory) CompleteByTask(_ context.Context, taskID string) (*domain.PendingCall, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	callSID, ok := m.callByTask[taskID]
	if !ok {
		return nil, fmt.Errorf("registry: task %s: %w", taskID, apperrors.ErrNotFound)
	}
	return m.completeLocked(callSID)
}

func (m *Memory) completeLocked(callSID string) (*domain.PendingCall, error) {
	pc, ok := m.byCall[callSID]
	if !ok {
		return nil, fmt.Errorf("registry: call %s: %w", callSID, apperrors.ErrNotFound)
	}
	delete(m.byCall, callSID)
	if m.callByTask[pc.Task.ID] == callSID {
		delete(m.callByTask, pc.Task.ID)
	}
	return &pc, nil
}

// Count returns the number of in-flight calls.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byCall), nil
}
