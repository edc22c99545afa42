package telephony

import (
	"encoding/xml"
	"fmt"

	"github.com/acme/task-confirm-caller/internal/classify"
	"github.com/acme/task-confirm-caller/internal/domain"
)

// Voice-script documents returned to the provider, TwiML-shaped.

type voiceResponse struct {
	XMLName  xml.Name      `xml:"Response"`
	Pause    *pauseVerb    `xml:"Pause,omitempty"`
	Gather   *gatherVerb   `xml:"Gather,omitempty"`
	Say      []sayVerb     `xml:"Say,omitempty"`
	Redirect *redirectVerb `xml:"Redirect,omitempty"`
	Hangup   *struct{}     `xml:"Hangup,omitempty"`
}

type pauseVerb struct {
	Length int `xml:"length,attr"`
}

type gatherVerb struct {
	Input         string  `xml:"input,attr"`
	Timeout       int     `xml:"timeout,attr"`
	SpeechTimeout string  `xml:"speechTimeout,attr"`
	Action        string  `xml:"action,attr"`
	Method        string  `xml:"method,attr"`
	Say           sayVerb `xml:"Say"`
}

type sayVerb struct {
	Voice    string `xml:"voice,attr"`
	Language string `xml:"language,attr"`
	Text     string `xml:",chardata"`
}

type redirectVerb struct {
	Method string `xml:"method,attr"`
	URL    string `xml:",chardata"`
}

const (
	scriptVoice    = "alice"
	scriptLanguage = "en-US"
)

func speak(text string) sayVerb {
	return sayVerb{Voice: scriptVoice, Language: scriptLanguage, Text: text}
}

// ConfirmationScript builds the initial voice script for a call. The
// operation mode only changes the wording; gathered input is posted to
// gatherAction.
func ConfirmationScript(mode domain.OperationMode, gatherAction string) ([]byte, error) {
	kind := "pickup"
	if mode == domain.ModeDelivery {
		kind = "delivery"
	}

	prompt := fmt.Sprintf(
		"Hello, this is a call to confirm your %s request. "+
			"Please confirm by saying 'yes' or pressing 1. "+
			"To decline, say 'no' or press 2. "+
			"If you need to reschedule, say 'reschedule' or press 3.", kind)

	doc := voiceResponse{
		Pause: &pauseVerb{Length: 1},
		Gather: &gatherVerb{
			Input:         "speech dtmf",
			Timeout:       10,
			SpeechTimeout: "auto",
			Action:        gatherAction,
			Method:        "POST",
			Say:           speak(prompt),
		},
		Say: []sayVerb{speak(
			"We didn't receive your response. Please call back or contact customer service.",
		)},
	}
	return marshalScript(doc)
}

// GatherReplyScript builds the follow-up script spoken after the callee's
// choice, then redirects to completeAction so the outcome is applied.
func GatherReplyScript(choice classify.GatherChoice, completeAction string) ([]byte, error) {
	var text string
	switch choice {
	case classify.ChoiceConfirmed:
		text = "Thank you for confirming. Your request has been confirmed. " +
			"You will receive a confirmation email shortly. Goodbye!"
	case classify.ChoiceDeclined:
		text = "We understand you need to decline. Your request has been cancelled. " +
			"If you change your mind, please contact customer service. Goodbye!"
	case classify.ChoiceReschedule:
		text = "We understand you need to reschedule. Please contact customer service " +
			"to arrange a new time. Thank you for your patience. Goodbye!"
	default:
		text = "We didn't understand your response. Please contact customer service " +
			"for assistance. Goodbye!"
	}

	doc := voiceResponse{
		Say:      []sayVerb{speak(text)},
		Redirect: &redirectVerb{Method: "POST", URL: completeAction},
	}
	return marshalScript(doc)
}

func marshalScript(doc voiceResponse) ([]byte, error) {
	body, err := xml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("telephony: marshal script: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
