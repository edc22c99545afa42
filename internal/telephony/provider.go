package telephony

import (
	"context"

	"github.com/acme/task-confirm-caller/internal/domain"
)

// CallRequest describes one outbound confirmation call.
type CallRequest struct {
	TaskID string
	To     string
	Mode   domain.OperationMode
}

// Provider abstracts the telephony integration. PlaceCall returns the
// provider-assigned call SID; delivery of the voice script and of terminal
// status happens asynchronously through the webhook surface.
type Provider interface {
	PlaceCall(ctx context.Context, req CallRequest) (string, error)
}
