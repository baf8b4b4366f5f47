package handlers

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

func (h *Handler) send(c tgbotapi.Chattable) (tgbotapi.Message, bool) {
	msg, err := h.bot.Send(c)
	if err != nil {
		h.logger.Warn("error sending message", zap.Error(err))
		return msg, false
	}
	return msg, true
}

func (h *Handler) sendMessage(chatID int64, text string) {
	h.send(tgbotapi.NewMessage(chatID, text))
}

func (h *Handler) edit(msg *tgbotapi.Message, text string, markup *tgbotapi.InlineKeyboardMarkup) {
	if markup != nil {
		h.send(tgbotapi.NewEditMessageTextAndMarkup(msg.Chat.ID, msg.MessageID, text, *markup))
		return
	}
	h.send(tgbotapi.NewEditMessageText(msg.Chat.ID, msg.MessageID, text))
}

func (h *Handler) answer(cb *tgbotapi.CallbackQuery, text string, alert bool) {
	cfg := tgbotapi.NewCallback(cb.ID, text)
	if alert {
		cfg = tgbotapi.NewCallbackWithAlert(cb.ID, text)
	}
	if _, err := h.bot.Request(cfg); err != nil {
		h.logger.Debug("error answering callback", zap.Error(err))
	}
}

func (h *Handler) deleteMessage(msg *tgbotapi.Message) {
	if _, err := h.bot.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
		h.logger.Debug("error deleting message", zap.Error(err))
	}
}
