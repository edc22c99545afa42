package telephony

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/task-confirm-caller/internal/classify"
	"github.com/acme/task-confirm-caller/internal/domain"
)

func TestConfirmationScriptPickup(t *testing.T) {
	doc, err := ConfirmationScript(domain.ModePickup, "/webhooks/gather?task_id=t1")
	require.NoError(t, err)

	body := string(doc)
	assert.Contains(t, body, "<Response>")
	assert.Contains(t, body, "confirm your pickup request")
	assert.Contains(t, body, `action="/webhooks/gather?task_id=t1"`)
	assert.Contains(t, body, `input="speech dtmf"`)
	assert.Contains(t, body, "pressing 1")
	assert.Contains(t, body, "press 3")
}

func TestConfirmationScriptDelivery(t *testing.T) {
	doc, err := ConfirmationScript(domain.ModeDelivery, "/webhooks/gather?task_id=t1")
	require.NoError(t, err)
	assert.Contains(t, string(doc), "confirm your delivery request")
}

func TestGatherReplyScript(t *testing.T) {
	cases := []struct {
		choice classify.GatherChoice
		phrase string
	}{
		{classify.ChoiceConfirmed, "Thank you for confirming"},
		{classify.ChoiceDeclined, "has been cancelled"},
		{classify.ChoiceReschedule, "arrange a new time"},
		{classify.ChoiceNone, "We didn't understand your response"},
	}

	for _, tc := range cases {
		t.Run(string(tc.choice), func(t *testing.T) {
			doc, err := GatherReplyScript(tc.choice, "/webhooks/complete?task_id=t1&outcome=confirmed")
			require.NoError(t, err)

			body := string(doc)
			assert.Contains(t, body, tc.phrase)
			assert.Contains(t, body, "<Redirect")
			assert.Contains(t, body, "/webhooks/complete")
		})
	}
}
