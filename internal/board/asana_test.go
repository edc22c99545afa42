package board

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/task-confirm-caller/internal/config"
	"github.com/acme/task-confirm-caller/internal/domain"
	apperrors "github.com/acme/task-confirm-caller/pkg/errors"
	"github.com/acme/task-confirm-caller/pkg/logger"
)

func testBoardConfig(baseURL string) config.BoardConfig {
	return config.BoardConfig{
		BaseURL:        baseURL,
		AccessToken:    "token",
		ProjectID:      "proj1",
		RequestTimeout: 2 * time.Second,
		Fields: config.FieldIDs{
			PhoneNumber:   "f_phone",
			OperationMode: "f_mode",
			RetryCount:    "f_retry",
			LastCallTime:  "f_last_call",
			CallOutcome:   "f_outcome",
			CallSID:       "f_sid",
		},
		Statuses: config.StatusIDs{
			PendingConfirmation: "s_pending",
			Confirmed:           "s_confirmed",
			CustomerUnavailable: "s_unavailable",
		},
	}
}

func textField(gid, name, value string) map[string]any {
	return map[string]any{"gid": gid, "name": name, "text_value": value}
}

func numberField(gid, name string, value float64) map[string]any {
	return map[string]any{"gid": gid, "name": name, "number_value": value}
}

func enumField(gid, name, value string) map[string]any {
	return map[string]any{"gid": gid, "name": name, "enum_value": map[string]any{"name": value}}
}

func newTestBoard(t *testing.T, handler http.HandlerFunc) *AsanaBoard {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	lg, err := logger.New("test")
	require.NoError(t, err)
	return NewAsanaBoard(testBoardConfig(srv.URL), lg)
}

func TestListOpenTasksFiltersInvalid(t *testing.T) {
	b := newTestBoard(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "proj1", r.URL.Query().Get("project"))

		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{
			{
				"gid": "t1", "name": "Order 1",
				"custom_fields": []map[string]any{
					textField("f_phone", "Phone Number", "+15550001111"),
					enumField("f_mode", "Operation Mode", "pickup"),
					numberField("f_retry", "Retry Count", 2),
					textField("f_last_call", "Last Call Time", "2026-08-28T10:00:00Z"),
				},
			},
			{
				// missing phone: skipped
				"gid": "t2", "name": "Order 2",
				"custom_fields": []map[string]any{
					enumField("f_mode", "Operation Mode", "delivery"),
				},
			},
			{
				// invalid mode: skipped
				"gid": "t3", "name": "Order 3",
				"custom_fields": []map[string]any{
					textField("f_phone", "Phone Number", "+15550003333"),
					enumField("f_mode", "Operation Mode", "teleport"),
				},
			},
			{
				// completed: skipped
				"gid": "t4", "name": "Order 4", "completed": true,
				"custom_fields": []map[string]any{
					textField("f_phone", "Phone Number", "+15550004444"),
					enumField("f_mode", "Operation Mode", "pickup"),
				},
			},
		}})
	})

	tasks, err := b.ListOpenTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	task := tasks[0]
	assert.Equal(t, "t1", task.ID)
	assert.Equal(t, domain.ModePickup, task.Mode)
	assert.Equal(t, 2, task.RetryCount)
	require.NotNil(t, task.LastCallTime)
	assert.Equal(t, 2026, task.LastCallTime.Year())
}

func TestGetTaskCompletedIsNotFound(t *testing.T) {
	b := newTestBoard(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"gid": "t1", "completed": true,
			"custom_fields": []map[string]any{},
		}})
	})

	_, err := b.GetTask(context.Background(), "t1")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIncrementRetryCount(t *testing.T) {
	var updated map[string]any
	b := newTestBoard(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
				"gid": "t1",
				"custom_fields": []map[string]any{
					numberField("f_retry", "Retry Count", 1),
				},
			}})
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&updated))
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
		}
	})

	next, err := b.IncrementRetryCount(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, next)

	data := updated["data"].(map[string]any)
	fields := data["custom_fields"].(map[string]any)
	assert.EqualValues(t, 2, fields["f_retry"])
}

func TestUpdateStatusMovesSection(t *testing.T) {
	var path string
	b := newTestBoard(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	})

	require.NoError(t, b.UpdateStatus(context.Background(), "t1", domain.StatusCustomerUnavailable))
	assert.Equal(t, "/sections/s_unavailable/addTask", path)
}

func TestDoRetriesTransientFailures(t *testing.T) {
	attempts := 0
	b := newTestBoard(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	})

	_, err := b.ListOpenTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoPermanentClientError(t *testing.T) {
	attempts := 0
	b := newTestBoard(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := b.ListOpenTasks(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "4xx is not retried")
}
