package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// setActive flips the service toggle. Commands from anyone but the admin are ignored.
func (h *Handler) setActive(ctx context.Context, msg *tgbotapi.Message, active bool) {
	if msg.From.ID != h.opts.AdminID {
		return
	}
	if err := h.deps.Toggle.SetActive(ctx, active); err != nil {
		h.logger.Error("failed to save settings", zap.Error(err))
		h.sendMessage(msg.Chat.ID, storageErrorMessage)
		return
	}
	h.logger.Info("service toggled", zap.Bool("active", active))
	if active {
		h.sendMessage(msg.Chat.ID, botOnMessage)
	} else {
		h.sendMessage(msg.Chat.ID, botOffMessage)
	}
}
