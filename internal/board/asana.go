package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/acme/task-confirm-caller/internal/config"
	"github.com/acme/task-confirm-caller/internal/domain"
	apperrors "github.com/acme/task-confirm-caller/pkg/errors"
	"github.com/acme/task-confirm-caller/pkg/logger"
)

const taskOptFields = "gid,name,completed,custom_fields.gid,custom_fields.name,custom_fields.text_value,custom_fields.number_value,custom_fields.enum_value.name"

// AsanaBoard talks to an Asana-compatible REST API. Transient failures
// (network, 429, 5xx) are retried with bounded exponential backoff;
// permanent API errors surface immediately.
type AsanaBoard struct {
	cfg    config.BoardConfig
	client *http.Client
	logger *logger.Logger
}

// NewAsanaBoard constructs the board client.
func NewAsanaBoard(cfg config.BoardConfig, lg *logger.Logger) *AsanaBoard {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AsanaBoard{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: lg.Named("board"),
	}
}

type taskPayload struct {
	GID          string         `json:"gid"`
	Name         string         `json:"name"`
	Completed    bool           `json:"completed"`
	CustomFields []fieldPayload `json:"custom_fields"`
}

type fieldPayload struct {
	GID         string   `json:"gid"`
	Name        string   `json:"name"`
	TextValue   *string  `json:"text_value"`
	NumberValue *float64 `json:"number_value"`
	EnumValue   *struct {
		Name string `json:"name"`
	} `json:"enum_value"`
}

// ListOpenTasks returns confirmation candidates from the configured project.
// Completed tasks and tasks with missing phone numbers or unparsable
// operation modes are skipped with a warning.
func (b *AsanaBoard) ListOpenTasks(ctx context.Context) ([]domain.Task, error) {
	query := url.Values{}
	query.Set("project", b.cfg.ProjectID)
	query.Set("opt_fields", taskOptFields)

	var result struct {
		Data []taskPayload `json:"data"`
	}
	if err := b.do(ctx, http.MethodGet, "/tasks?"+query.Encode(), nil, &result); err != nil {
		return nil, fmt.Errorf("board: list tasks: %w", err)
	}

	tasks := make([]domain.Task, 0, len(result.Data))
	for _, payload := range result.Data {
		if payload.Completed {
			continue
		}
		task, ok := b.toTask(payload)
		if !ok {
			continue
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// GetTask fetches one task; completed tasks report ErrNotFound so a retry
// firing after the board closed the task becomes a no-op.
func (b *AsanaBoard) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	var result struct {
		Data taskPayload `json:"data"`
	}
	if err := b.do(ctx, http.MethodGet, "/tasks/"+id+"?opt_fields="+taskOptFields, nil, &result); err != nil {
		return nil, fmt.Errorf("board: get task %s: %w", id, err)
	}
	if result.Data.Completed {
		return nil, fmt.Errorf("board: task %s is completed: %w", id, apperrors.ErrNotFound)
	}

	task, ok := b.toTask(result.Data)
	if !ok {
		return nil, fmt.Errorf("board: task %s: %w", id, apperrors.ErrValidation)
	}
	return &task, nil
}

// UpdateFields writes task custom fields, mapping logical keys to the
// configured field identifiers. Keys without a configured identifier are
// skipped.
func (b *AsanaBoard) UpdateFields(ctx context.Context, id string, fields map[FieldKey]any) error {
	updates := make(map[string]any, len(fields))
	for key, value := range fields {
		gid := b.fieldGID(key)
		if gid == "" {
			b.logger.Warn("no field id configured", zap.String("field", string(key)))
			continue
		}
		updates[gid] = value
	}
	if len(updates) == 0 {
		return nil
	}

	body := map[string]any{"data": map[string]any{"custom_fields": updates}}
	if err := b.do(ctx, http.MethodPut, "/tasks/"+id, body, nil); err != nil {
		return fmt.Errorf("board: update task %s fields: %w", id, err)
	}
	return nil
}

// UpdateStatus moves the task into the section configured for the status.
func (b *AsanaBoard) UpdateStatus(ctx context.Context, id string, status domain.TaskStatus) error {
	section := b.sectionGID(status)
	if section == "" {
		return fmt.Errorf("board: no section configured for status %q: %w", status, apperrors.ErrValidation)
	}

	body := map[string]any{"data": map[string]any{"task": id}}
	if err := b.do(ctx, http.MethodPost, "/sections/"+section+"/addTask", body, nil); err != nil {
		return fmt.Errorf("board: move task %s to %s: %w", id, status, err)
	}
	b.logger.Info("updated task status", zap.String("task_id", id), zap.String("status", string(status)))
	return nil
}

// AppendNote attaches a comment to the task.
func (b *AsanaBoard) AppendNote(ctx context.Context, id string, text string) error {
	body := map[string]any{"data": map[string]any{"text": text}}
	if err := b.do(ctx, http.MethodPost, "/tasks/"+id+"/stories", body, nil); err != nil {
		return fmt.Errorf("board: append note to task %s: %w", id, err)
	}
	return nil
}

// IncrementRetryCount re-reads the counter from the board and writes the
// incremented value back, returning the new count.
func (b *AsanaBoard) IncrementRetryCount(ctx context.Context, id string) (int, error) {
	var result struct {
		Data taskPayload `json:"data"`
	}
	if err := b.do(ctx, http.MethodGet, "/tasks/"+id+"?opt_fields="+taskOptFields, nil, &result); err != nil {
		return 0, fmt.Errorf("board: read retry count for %s: %w", id, err)
	}

	current := 0
	for _, field := range result.Data.CustomFields {
		if field.GID == b.cfg.Fields.RetryCount && field.NumberValue != nil {
			current = int(*field.NumberValue)
			break
		}
	}

	next := current + 1
	if err := b.UpdateFields(ctx, id, map[FieldKey]any{FieldRetryCount: next}); err != nil {
		return 0, err
	}
	return next, nil
}

func (b *AsanaBoard) toTask(payload taskPayload) (domain.Task, bool) {
	var (
		phone        string
		rawMode      string
		retryCount   int
		lastCallTime *time.Time
		lastOutcome  *domain.Outcome
	)
	extra := make(map[string]any)

	for _, field := range payload.CustomFields {
		switch field.GID {
		case b.cfg.Fields.PhoneNumber:
			phone = stringValue(field)
		case b.cfg.Fields.OperationMode:
			rawMode = stringValue(field)
		case b.cfg.Fields.RetryCount:
			if field.NumberValue != nil {
				retryCount = int(*field.NumberValue)
			}
		case b.cfg.Fields.LastCallTime:
			if raw := stringValue(field); raw != "" {
				if t, err := time.Parse(time.RFC3339, raw); err == nil {
					utc := t.UTC()
					lastCallTime = &utc
				}
			}
		case b.cfg.Fields.CallOutcome:
			if raw := stringValue(field); raw != "" {
				outcome := domain.Outcome(raw)
				lastOutcome = &outcome
			}
		default:
			extra[field.Name] = stringValue(field)
		}
	}

	if phone == "" {
		b.logger.Warn("task missing phone number", zap.String("task_id", payload.GID))
		return domain.Task{}, false
	}
	mode, ok := domain.ParseOperationMode(rawMode)
	if !ok {
		b.logger.Warn("task has invalid operation mode",
			zap.String("task_id", payload.GID), zap.String("mode", rawMode))
		return domain.Task{}, false
	}

	return domain.Task{
		ID:           payload.GID,
		Name:         payload.Name,
		Phone:        phone,
		Mode:         mode,
		RetryCount:   retryCount,
		LastCallTime: lastCallTime,
		LastOutcome:  lastOutcome,
		ExtraFields:  extra,
	}, true
}

func stringValue(field fieldPayload) string {
	if field.TextValue != nil && *field.TextValue != "" {
		return *field.TextValue
	}
	if field.EnumValue != nil {
		return field.EnumValue.Name
	}
	if field.NumberValue != nil {
		return strconv.FormatFloat(*field.NumberValue, 'f', -1, 64)
	}
	return ""
}

func (b *AsanaBoard) fieldGID(key FieldKey) string {
	switch key {
	case FieldPhoneNumber:
		return b.cfg.Fields.PhoneNumber
	case FieldOperationMode:
		return b.cfg.Fields.OperationMode
	case FieldRetryCount:
		return b.cfg.Fields.RetryCount
	case FieldLastCallTime:
		return b.cfg.Fields.LastCallTime
	case FieldCallOutcome:
		return b.cfg.Fields.CallOutcome
	case FieldCallSID:
		return b.cfg.Fields.CallSID
	default:
		return ""
	}
}

func (b *AsanaBoard) sectionGID(status domain.TaskStatus) string {
	switch status {
	case domain.StatusPendingConfirmation:
		return b.cfg.Statuses.PendingConfirmation
	case domain.StatusConfirmed:
		return b.cfg.Statuses.Confirmed
	case domain.StatusCustomerUnavailable:
		return b.cfg.Statuses.CustomerUnavailable
	default:
		return ""
	}
}

// do performs one API request with retries on transient failures.
func (b *AsanaBoard) do(ctx context.Context, method, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	operation := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, b.cfg.BaseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+b.cfg.AccessToken)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := b.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(apperrors.ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return fmt.Errorf("status %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, data))
		}

		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(operation, policy)
}
