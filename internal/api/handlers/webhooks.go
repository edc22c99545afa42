package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/acme/task-confirm-caller/internal/classify"
	"github.com/acme/task-confirm-caller/internal/telephony"
)

// voiceScript answers the provider's initial webhook with the confirmation
// script for the task the call was placed for.
func (h *HandlerSet) voiceScript(ctx *fiber.Ctx) error {
	taskID := ctx.Query("task_id")
	if taskID == "" {
		return fiber.NewError(http.StatusBadRequest, "missing task_id")
	}

	task, err := h.manager.TaskForScript(ctx.Context(), taskID)
	if err != nil {
		return translateError(err)
	}

	action := "/webhooks/gather?task_id=" + url.QueryEscape(taskID)
	doc, err := telephony.ConfirmationScript(task.Mode, action)
	if err != nil {
		return err
	}

	h.logger.Info("served voice script", zap.String("task_id", taskID))
	return sendXML(ctx, doc)
}

// gather interprets the callee's speech or keypad input and answers with
// the follow-up script, which redirects to the completion endpoint.
func (h *HandlerSet) gather(ctx *fiber.Ctx) error {
	taskID := ctx.Query("task_id")
	if taskID == "" {
		return fiber.NewError(http.StatusBadRequest, "missing task_id")
	}

	speech := ctx.FormValue("SpeechResult")
	digits := ctx.FormValue("Digits")
	choice := classify.FromGather(speech, digits)

	h.logger.Info("gather input",
		zap.String("task_id", taskID),
		zap.String("speech", speech),
		zap.String("digits", digits),
		zap.String("choice", string(choice)))

	action := fmt.Sprintf("/webhooks/complete?task_id=%s&choice=%s",
		url.QueryEscape(taskID), url.QueryEscape(string(choice)))
	doc, err := telephony.GatherReplyScript(choice, action)
	if err != nil {
		return err
	}
	return sendXML(ctx, doc)
}

// complete applies a mid-call completion for a task. Unknown tasks are
// acknowledged anyway so the provider stops redelivering.
func (h *HandlerSet) complete(ctx *fiber.Ctx) error {
	taskID := ctx.Query("task_id")
	if taskID == "" {
		return fiber.NewError(http.StatusBadRequest, "missing task_id")
	}

	choice := classify.GatherChoice(ctx.Query("choice"))
	outcome := choice.Outcome()
	transcript := ctx.FormValue("SpeechResult")

	if err := h.manager.HandleTaskCompletion(ctx.Context(), taskID, outcome, transcript); err != nil {
		return translateError(err)
	}
	return ctx.SendString("OK")
}

// statusCallback applies the provider's terminal status callback for a call.
func (h *HandlerSet) statusCallback(ctx *fiber.Ctx) error {
	callSID := ctx.FormValue("CallSid")
	if callSID == "" {
		return fiber.NewError(http.StatusBadRequest, "missing CallSid")
	}

	status := ctx.FormValue("CallStatus")
	duration := 0
	if raw := ctx.FormValue("CallDuration"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			duration = parsed
		}
	}

	outcome := classify.FromCallStatus(status, duration)
	h.logger.Info("status callback",
		zap.String("call_sid", callSID),
		zap.String("call_status", status),
		zap.Int("duration", duration),
		zap.String("outcome", string(outcome)))

	if err := h.manager.HandleCallCompletion(ctx.Context(), callSID, outcome, ""); err != nil {
		return translateError(err)
	}
	return ctx.SendString("OK")
}

func (h *HandlerSet) listTasks(ctx *fiber.Ctx) error {
	tasks, err := h.manager.Candidates(ctx.Context())
	if err != nil {
		return translateError(err)
	}

	type taskResponse struct {
		TaskID     string `json:"task_id"`
		Phone      string `json:"phone"`
		Mode       string `json:"operation_mode"`
		RetryCount int    `json:"retry_count"`
	}

	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskResponse{
			TaskID:     t.ID,
			Phone:      t.Phone,
			Mode:       string(t.Mode),
			RetryCount: t.RetryCount,
		})
	}
	return ctx.JSON(fiber.Map{"tasks": out})
}

func (h *HandlerSet) processTasks(ctx *fiber.Ctx) error {
	if err := h.manager.ProcessCycle(ctx.Context()); err != nil {
		return translateError(err)
	}
	return ctx.JSON(fiber.Map{"message": "task processing completed"})
}

func sendXML(ctx *fiber.Ctx, doc []byte) error {
	ctx.Set(fiber.HeaderContentType, "text/xml")
	return ctx.Send(doc)
}
