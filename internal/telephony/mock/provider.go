package mock

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acme/task-confirm-caller/internal/telephony"
	"github.com/acme/task-confirm-caller/pkg/logger"
)

// Provider simulates call placement for local development. Every call
// "succeeds" at placement; outcomes are driven by posting to the webhook
// endpoints by hand.
type Provider struct {
	logger *logger.Logger
}

// NewProvider constructs a mock provider.
func NewProvider(lg *logger.Logger) *Provider {
	return &Provider{logger: lg.Named("mock-telephony")}
}

// PlaceCall returns a synthetic call SID without dialing anything.
func (p *Provider) PlaceCall(ctx context.Context, req telephony.CallRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	sid := "CA" + uuid.NewString()
	p.logger.Info("simulated call",
		zap.String("call_sid", sid),
		zap.String("to", req.To),
		zap.String("task_id", req.TaskID),
		zap.String("mode", string(req.Mode)))
	return sid, nil
}
