package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/acme/task-confirm-caller/internal/domain"
)

func TestFromCallStatus(t *testing.T) {
	cases := []struct {
		name     string
		status   string
		duration int
		want     domain.Outcome
	}{
		{"completed with duration", "completed", 45, domain.OutcomeConfirmed},
		{"completed zero duration", "completed", 0, domain.OutcomeNoAnswer},
		{"busy", "busy", 0, domain.OutcomeBusy},
		{"no answer", "no-answer", 0, domain.OutcomeNoAnswer},
		{"failed", "failed", 0, domain.OutcomeFailed},
		{"canceled falls back", "canceled", 0, domain.OutcomeNoAnswer},
		{"garbage falls back", "some-new-status", 12, domain.OutcomeNoAnswer},
		{"empty falls back", "", 0, domain.OutcomeNoAnswer},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FromCallStatus(tc.status, tc.duration))
		})
	}
}

func TestFromGatherSpeech(t *testing.T) {
	cases := []struct {
		speech string
		want   GatherChoice
	}{
		{"yes", ChoiceConfirmed},
		{"Yes please", ChoiceConfirmed},
		{"I confirm", ChoiceConfirmed},
		{"no", ChoiceDeclined},
		{"No thanks", ChoiceDeclined},
		{"I decline", ChoiceDeclined},
		{"I need to reschedule", ChoiceReschedule},
		{"mumble", ChoiceNone},
	}

	for _, tc := range cases {
		t.Run(tc.speech, func(t *testing.T) {
			assert.Equal(t, tc.want, FromGather(tc.speech, ""))
		})
	}
}

func TestFromGatherDigits(t *testing.T) {
	assert.Equal(t, ChoiceConfirmed, FromGather("", "1"))
	assert.Equal(t, ChoiceDeclined, FromGather("", "2"))
	assert.Equal(t, ChoiceReschedule, FromGather("", "3"))
	assert.Equal(t, ChoiceNone, FromGather("", "9"))
	assert.Equal(t, ChoiceNone, FromGather("", ""))
}

func TestFromGatherSpeechTakesPrecedence(t *testing.T) {
	// Unrecognized speech does not fall through to digits.
	assert.Equal(t, ChoiceNone, FromGather("mumble", "1"))
	assert.Equal(t, ChoiceDeclined, FromGather("no", "1"))
}

func TestChoiceOutcome(t *testing.T) {
	assert.Equal(t, domain.OutcomeConfirmed, ChoiceConfirmed.Outcome())
	assert.Equal(t, domain.OutcomeDeclined, ChoiceDeclined.Outcome())
	assert.Equal(t, domain.OutcomeDeclined, ChoiceReschedule.Outcome())
	assert.Equal(t, domain.OutcomeNoAnswer, ChoiceNone.Outcome())
}

func TestOutcomeRetryable(t *testing.T) {
	assert.False(t, domain.OutcomeConfirmed.Retryable())
	assert.False(t, domain.OutcomeDeclined.Retryable())
	assert.True(t, domain.OutcomeNoAnswer.Retryable())
	assert.True(t, domain.OutcomeBusy.Retryable())
	assert.True(t, domain.OutcomeFailed.Retryable())
}
