package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/acme/task-confirm-caller/internal/config"
	"github.com/acme/task-confirm-caller/pkg/logger"
)

// TwilioProvider places calls through the Twilio REST API. The voice
// script and terminal status are delivered back through the webhook
// endpoints registered on each call.
type TwilioProvider struct {
	cfg             config.TelephonyConfig
	callbackBaseURL string
	client          *http.Client
	logger          *logger.Logger
}

// NewTwilioProvider constructs the provider. callbackBaseURL is the public
// base under which the webhook routes are reachable.
func NewTwilioProvider(cfg config.TelephonyConfig, callbackBaseURL string, lg *logger.Logger) *TwilioProvider {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TwilioProvider{
		cfg:             cfg,
		callbackBaseURL: strings.TrimRight(callbackBaseURL, "/"),
		client:          &http.Client{Timeout: timeout},
		logger:          lg.Named("twilio"),
	}
}

// PlaceCall creates an outbound call and returns the provider call SID.
func (p *TwilioProvider) PlaceCall(ctx context.Context, req CallRequest) (string, error) {
	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", p.cfg.FromNumber)
	form.Set("Url", fmt.Sprintf("%s/webhooks/voice?task_id=%s", p.callbackBaseURL, url.QueryEscape(req.TaskID)))
	form.Set("StatusCallback", p.callbackBaseURL+"/webhooks/status")
	form.Set("StatusCallbackEvent", "completed")
	form.Set("StatusCallbackMethod", "POST")
	if p.cfg.RecordCalls {
		form.Set("Record", "true")
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json", p.cfg.BaseURL, p.cfg.AccountSID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("telephony: build request: %w", err)
	}
	httpReq.SetBasicAuth(p.cfg.AccountSID, p.cfg.AuthToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("telephony: place call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("telephony: place call: status %d: %s", resp.StatusCode, data)
	}

	var result struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("telephony: decode call response: %w", err)
	}
	if result.SID == "" {
		return "", fmt.Errorf("telephony: provider returned no call sid")
	}

	p.logger.Info("call placed",
		zap.String("call_sid", result.SID),
		zap.String("to", req.To),
		zap.String("task_id", req.TaskID))
	return result.SID, nil
}
