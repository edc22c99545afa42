package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/task-confirm-caller/internal/board"
	"github.com/acme/task-confirm-caller/internal/domain"
	"github.com/acme/task-confirm-caller/internal/lifecycle"
	"github.com/acme/task-confirm-caller/internal/registry"
	"github.com/acme/task-confirm-caller/internal/telephony"
	apperrors "github.com/acme/task-confirm-caller/pkg/errors"
	"github.com/acme/task-confirm-caller/pkg/logger"
)

type stubBoard struct {
	mu       sync.Mutex
	tasks    map[string]*domain.Task
	statuses map[string]domain.TaskStatus
}

func newStubBoard(tasks ...domain.Task) *stubBoard {
	sb := &stubBoard{
		tasks:    make(map[string]*domain.Task),
		statuses: make(map[string]domain.TaskStatus),
	}
	for i := range tasks {
		t := tasks[i]
		sb.tasks[t.ID] = &t
	}
	return sb
}

func (s *stubBoard) ListOpenTasks(context.Context) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	return out, nil
}

func (s *stubBoard) GetTask(_ context.Context, id string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	snapshot := *t
	return &snapshot, nil
}

func (s *stubBoard) UpdateFields(context.Context, string, map[board.FieldKey]any) error {
	return nil
}

func (s *stubBoard) UpdateStatus(_ context.Context, id string, status domain.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[id] = status
	return nil
}

func (s *stubBoard) AppendNote(context.Context, string, string) error { return nil }

func (s *stubBoard) IncrementRetryCount(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return 0, apperrors.ErrNotFound
	}
	t.RetryCount++
	return t.RetryCount, nil
}

type stubProvider struct{}

func (stubProvider) PlaceCall(_ context.Context, req telephony.CallRequest) (string, error) {
	return "CA-" + req.TaskID, nil
}

func newTestApp(t *testing.T, sb *stubBoard) (*fiber.App, *lifecycle.Manager) {
	t.Helper()
	lg, err := logger.New("test")
	require.NoError(t, err)

	policy := domain.ConfirmationPolicy{MaxAttempts: 3, RetryDelay: time.Hour}
	mgr := lifecycle.NewManager(sb, stubProvider{}, registry.NewMemory(), nil, policy, lg)

	hs := NewHandlerSet(mgr, lg)
	app := fiber.New(fiber.Config{ErrorHandler: hs.ErrorHandler})
	hs.Register(app)
	return app, mgr
}

func postForm(t *testing.T, app *fiber.App, path string, form url.Values) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func TestVoiceScriptEndpoint(t *testing.T) {
	sb := newStubBoard(domain.Task{ID: "t1", Phone: "+15550001111", Mode: domain.ModeDelivery})
	app, _ := newTestApp(t, sb)

	resp := postForm(t, app, "/webhooks/voice?task_id=t1", url.Values{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/xml")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "confirm your delivery request")
}

func TestVoiceScriptMissingTaskID(t *testing.T) {
	app, _ := newTestApp(t, newStubBoard())
	resp := postForm(t, app, "/webhooks/voice", url.Values{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestVoiceScriptUnknownTask(t *testing.T) {
	app, _ := newTestApp(t, newStubBoard())
	resp := postForm(t, app, "/webhooks/voice?task_id=ghost", url.Values{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGatherEndpointDigits(t *testing.T) {
	sb := newStubBoard(domain.Task{ID: "t1", Phone: "+15550001111", Mode: domain.ModePickup})
	app, _ := newTestApp(t, sb)

	resp := postForm(t, app, "/webhooks/gather?task_id=t1", url.Values{"Digits": {"2"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "choice=declined")
	assert.Contains(t, string(body), "has been cancelled")
}

func TestCompleteEndpointAppliesOutcome(t *testing.T) {
	sb := newStubBoard(domain.Task{ID: "t1", Phone: "+15550001111", Mode: domain.ModePickup})
	app, mgr := newTestApp(t, sb)

	require.NoError(t, mgr.ProcessCycle(context.Background()))

	resp := postForm(t, app, "/webhooks/complete?task_id=t1&choice=confirmed", url.Values{})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sb.mu.Lock()
	defer sb.mu.Unlock()
	assert.Equal(t, domain.StatusConfirmed, sb.statuses["t1"])
}

func TestStatusCallback(t *testing.T) {
	sb := newStubBoard(domain.Task{ID: "t1", Phone: "+15550001111", Mode: domain.ModePickup})
	app, mgr := newTestApp(t, sb)

	require.NoError(t, mgr.ProcessCycle(context.Background()))

	form := url.Values{
		"CallSid":      {"CA-t1"},
		"CallStatus":   {"completed"},
		"CallDuration": {"45"},
	}
	resp := postForm(t, app, "/webhooks/status", form)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	sb.mu.Lock()
	defer sb.mu.Unlock()
	assert.Equal(t, domain.StatusConfirmed, sb.statuses["t1"])
}

func TestStatusCallbackUnknownSidAcknowledged(t *testing.T) {
	app, _ := newTestApp(t, newStubBoard())

	form := url.Values{"CallSid": {"CA-ghost"}, "CallStatus": {"failed"}}
	resp := postForm(t, app, "/webhooks/status", form)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "correlation failures are acked")
}

func TestStatusCallbackMissingSid(t *testing.T) {
	app, _ := newTestApp(t, newStubBoard())
	resp := postForm(t, app, "/webhooks/status", url.Values{"CallStatus": {"failed"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndTasksEndpoints(t *testing.T) {
	sb := newStubBoard(domain.Task{ID: "t1", Phone: "+15550001111", Mode: domain.ModePickup})
	app, _ := newTestApp(t, sb)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/tasks", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"task_id":"t1"`)
}
