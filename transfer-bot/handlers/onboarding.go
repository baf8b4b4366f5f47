package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"memberflow/shared/onboarding"
)

func (h *Handler) startOnboarding(cb *tgbotapi.CallbackQuery) {
	h.states.Clear(cb.From.ID)
	reply := h.deps.Onboarding.Start(cb.From.ID)
	h.edit(cb.Message, addAccountIntro+reply.Text, nil)
}

func (h *Handler) handleOnboarding(ctx context.Context, msg *tgbotapi.Message) {
	// login codes and passwords do not stay in the chat history
	switch h.deps.Onboarding.Phase(msg.From.ID).(type) {
	case onboarding.AwaitingCode, onboarding.AwaitingPassword:
		defer h.deleteMessage(msg)
	}

	reply := h.deps.Onboarding.Handle(ctx, msg.From.ID, msg.Text)
	if reply.Outcome == onboarding.NoSession {
		h.sendMessage(msg.Chat.ID, useMenuMessage)
		return
	}
	h.sendMessage(msg.Chat.ID, reply.Text)
}
