package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"memberflow/shared/models"
)

func (h *Handler) newTransfer(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	userID := cb.From.ID
	isAdmin := userID == h.opts.AdminID

	active, err := h.deps.Toggle.IsActive(ctx)
	if err != nil {
		h.logger.Error("failed to load settings", zap.Error(err))
	}
	if !active && !isAdmin {
		h.answer(cb, maintenanceMessage, true)
		return
	}

	if h.opts.RequiredChannel != "" && !h.subscribed(userID) {
		h.answer(cb, fmt.Sprintf(forceSubscribeMessage, "@"+models.NormalizeGroup(h.opts.RequiredChannel)), true)
		return
	}

	if !isAdmin {
		mine, err := h.contributed(ctx, userID)
		if err != nil {
			h.logger.Error("failed to load accounts", zap.Error(err))
			h.answer(cb, storageErrorMessage, true)
			return
		}
		if len(mine) == 0 {
			h.answer(cb, requireAccountMessage, true)
			return
		}
	}

	h.answer(cb, "", false)
	h.deps.Onboarding.Cancel(userID)
	h.states.Set(userID, IntakeState{Step: AwaitingSource})
	h.edit(cb.Message, askSourceMessage, nil)
}

func (h *Handler) subscribed(userID int64) bool {
	member, err := h.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: "@" + models.NormalizeGroup(h.opts.RequiredChannel),
			UserID:             userID,
		},
	})
	if err != nil {
		h.logger.Debug("subscription check failed", zap.Int64("requester_id", userID), zap.Error(err))
		return false
	}
	return !member.HasLeft() && !member.WasKicked()
}

func (h *Handler) handleIntake(ctx context.Context, msg *tgbotapi.Message, state IntakeState) {
	userID := msg.From.ID
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	switch state.Step {
	case AwaitingSource:
		h.states.Set(userID, IntakeState{Step: AwaitingTarget, SourceGroup: text})
		h.sendMessage(msg.Chat.ID, askTargetMessage)

	case AwaitingTarget:
		h.states.Clear(userID)
		admin, err := h.botIsAdmin(text)
		if err != nil {
			h.logger.Info("target group not accessible", zap.String("target", text), zap.Error(err))
			h.sendMessage(msg.Chat.ID, noAccessMessage)
			return
		}
		if !admin {
			h.sendMessage(msg.Chat.ID, notAdminMessage)
			return
		}

		job := models.NewJob(userID, state.SourceGroup, text)
		position, err := h.deps.Queue.Push(ctx, job)
		if err != nil {
			h.logger.Error("failed to queue job", zap.String("job_id", job.ID), zap.Error(err))
			h.sendMessage(msg.Chat.ID, queueFailedMessage)
			return
		}
		h.logger.Info("job queued",
			zap.String("job_id", job.ID),
			zap.Int64("requester_id", userID),
			zap.Int("position", position))

		reply := fmt.Sprintf(jobQueuedMessage, position)
		if h.deps.Scheduler != nil && h.deps.Scheduler.Busy() {
			reply += "\n" + jobWaitingMessage
		}
		h.sendMessage(msg.Chat.ID, reply)
	}
}

func (h *Handler) botIsAdmin(group string) (bool, error) {
	admins, err := h.bot.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{SuperGroupUsername: "@" + models.NormalizeGroup(group)},
	})
	if err != nil {
		return false, err
	}
	for _, admin := range admins {
		if admin.User != nil && admin.User.ID == h.opts.BotID {
			return true, nil
		}
	}
	return false, nil
}
