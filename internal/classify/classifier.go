package classify

import (
	"strings"

	"github.com/acme/task-confirm-caller/internal/domain"
)

// GatherChoice is the callee's selection during an interactive call.
// Reschedule is kept distinct here so the spoken reply can differ, even
// though it maps to the declined outcome downstream.
type GatherChoice string

const (
	ChoiceConfirmed  GatherChoice = "confirmed"
	ChoiceDeclined   GatherChoice = "declined"
	ChoiceReschedule GatherChoice = "reschedule"
	ChoiceNone       GatherChoice = ""
)

// FromCallStatus maps a provider status callback to an outcome.
// Unrecognized statuses classify as no_answer so an ambiguous signal is
// retried rather than silently confirmed or declined.
func FromCallStatus(status string, durationSeconds int) domain.Outcome {
	switch status {
	case "completed":
		if durationSeconds > 0 {
			return domain.OutcomeConfirmed
		}
		return domain.OutcomeNoAnswer
	case "busy":
		return domain.OutcomeBusy
	case "no-answer":
		return domain.OutcomeNoAnswer
	case "failed":
		return domain.OutcomeFailed
	default:
		return domain.OutcomeNoAnswer
	}
}

// FromGather maps callee speech or keypad digits to a gather choice.
// When speech is present it takes precedence and digits are ignored, even
// if the speech is unrecognizable.
func FromGather(speech, digits string) GatherChoice {
	if speech != "" {
		lower := strings.ToLower(speech)
		switch {
		case strings.Contains(lower, "yes"), strings.Contains(lower, "confirm"):
			return ChoiceConfirmed
		case strings.Contains(lower, "no"), strings.Contains(lower, "decline"):
			return ChoiceDeclined
		case strings.Contains(lower, "reschedule"):
			return ChoiceReschedule
		default:
			return ChoiceNone
		}
	}

	switch digits {
	case "1":
		return ChoiceConfirmed
	case "2":
		return ChoiceDeclined
	case "3":
		return ChoiceReschedule
	}

	return ChoiceNone
}

// Outcome converts a gather choice to its terminal outcome. Reschedule is
// treated as declined; no recognizable input classifies as no_answer.
func (c GatherChoice) Outcome() domain.Outcome {
	switch c {
	case ChoiceConfirmed:
		return domain.OutcomeConfirmed
	case ChoiceDeclined, ChoiceReschedule:
		return domain.OutcomeDeclined
	default:
		return domain.OutcomeNoAnswer
	}
}
