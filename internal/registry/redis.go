package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/acme/task-confirm-caller/internal/domain"
	apperrors "github.com/acme/task-confirm-caller/pkg/errors"
)

// Redis keeps pending-call records in Redis so in-flight correlation
// survives a process restart. Entries expire after the configured TTL in
// case a terminal callback never arrives.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis creates a Redis-backed registry.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Redis{client: client, ttl: ttl}
}

var registerScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
redis.call('SET', KEYS[2], ARGV[3], 'PX', ARGV[2])
return 1
`)

var completeScript = redis.NewScript(`
local value = redis.call('GET', KEYS[1])
if not value then
  return false
end
redis.call('DEL', KEYS[1])
return value
`)

// Register inserts the call→task association.
func (r *Redis) Register(ctx context.Context, callSID string, task domain.Task) error {
	pc := domain.PendingCall{CallSID: callSID, Task: task, PlacedAt: time.Now().UTC()}
	value, err := json.Marshal(pc)
	if err != nil {
		return fmt.Errorf("registry: marshal pending call: %w", err)
	}

	keys := []string{r.callKey(callSID), r.taskKey(task.ID)}
	ok, err := registerScript.Run(ctx, r.client, keys, value, r.ttl.Milliseconds(), callSID).Int()
	if err != nil {
		return fmt.Errorf("registry: register call %s: %w", callSID, err)
	}
	if ok == 0 {
		return fmt.Errorf("registry: call %s: %w", callSID, apperrors.ErrDuplicateCall)
	}
	return nil
}

// Resolve looks up a pending call without removing it.
func (r *Redis) Resolve(ctx context.Context, callSID string) (*domain.PendingCall, error) {
	value, err := r.client.Get(ctx, r.callKey(callSID)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("registry: call %s: %w", callSID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: resolve call %s: %w", callSID, err)
	}
	return decodePendingCall(value)
}

// Complete atomically removes and returns the pending call.
func (r *Redis) Complete(ctx context.Context, callSID string) (*domain.PendingCall, error) {
	pc, err := r.complete(ctx, r.callKey(callSID))
	if err != nil {
		return nil, fmt.Errorf("registry: call %s: %w", callSID, err)
	}
	return pc, nil
}

// CompleteByTask removes and returns the pending call placed for the task.
func (r *Redis) CompleteByTask(ctx context.Context, taskID string) (*domain.PendingCall, error) {
	callSID, err := r.client.Get(ctx, r.taskKey(taskID)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("registry: task %s: %w", taskID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("registry: resolve task %s: %w", taskID, err)
	}

	pc, err := r.complete(ctx, r.callKey(callSID))
	if err != nil {
		return nil, fmt.Errorf("registry: task %s: %w", taskID, err)
	}
	return pc, nil
}

func (r *Redis) complete(ctx context.Context, callKey string) (*domain.PendingCall, error) {
	// A Lua false reply surfaces as redis.Nil.
	value, err := completeScript.Run(ctx, r.client, []string{callKey}).Result()
	if err == redis.Nil {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	raw, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected script result %T", value)
	}

	pc, err := decodePendingCall([]byte(raw))
	if err != nil {
		return nil, err
	}
	// The task index key is derived from the stored record, so remove it
	// after decoding rather than inside the script.
	_ = r.client.Del(ctx, r.taskKey(pc.Task.ID)).Err()
	return pc, nil
}

// Count returns the number of in-flight calls.
func (r *Redis) Count(ctx context.Context) (int, error) {
	var count int
	iter := r.client.Scan(ctx, 0, r.callKey("*"), 0).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("registry: count: %w", err)
	}
	return count, nil
}

func (r *Redis) callKey(callSID string) string {
	return "confirm:pending:call:" + callSID
}

func (r *Redis) taskKey(taskID string) string {
	return "confirm:pending:task:" + taskID
}

func decodePendingCall(value []byte) (*domain.PendingCall, error) {
	pc := new(domain.PendingCall)
	if err := json.Unmarshal(value, pc); err != nil {
		return nil, fmt.Errorf("registry: decode pending call: %w", err)
	}
	return pc, nil
}
