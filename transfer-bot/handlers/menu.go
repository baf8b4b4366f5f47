package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"memberflow/shared/health"
	"memberflow/shared/models"
)

func mainMenuKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("How to get API ID/hash", cbGuide),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Add account", cbAddAccount),
			tgbotapi.NewInlineKeyboardButtonData("My accounts", cbMyAccounts),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("New transfer", cbNewTransfer),
		),
	)
	return &kb
}

func guideKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("Open my.telegram.org", "https://my.telegram.org/"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Got it, add the account", cbAddAccount),
		),
	)
	return &kb
}

func backKeyboard() *tgbotapi.InlineKeyboardMarkup {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Back", cbMenu),
		),
	)
	return &kb
}

func (h *Handler) sendMainMenu(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, welcomeMessage)
	msg.ReplyMarkup = mainMenuKeyboard()
	h.send(msg)
}

func (h *Handler) contributed(ctx context.Context, userID int64) ([]models.Account, error) {
	all, err := h.deps.Accounts.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	var mine []models.Account
	for _, acc := range all {
		if acc.ContributorID == userID {
			mine = append(mine, acc)
		}
	}
	return mine, nil
}

func (h *Handler) myAccounts(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	mine, err := h.contributed(ctx, cb.From.ID)
	if err != nil {
		h.logger.Error("failed to load accounts", zap.Error(err))
		h.answer(cb, storageErrorMessage, true)
		return
	}
	if len(mine) == 0 {
		h.answer(cb, noAccountsMessage, true)
		return
	}
	h.answer(cb, "", false)
	h.edit(cb.Message, checkingAccounts, nil)

	results := h.deps.Checker.CheckAll(ctx, mine, h.opts.CheckConcurrency)

	var b strings.Builder
	fmt.Fprintf(&b, "Your accounts (%d):\n\n", len(results))
	for _, r := range results {
		fmt.Fprintf(&b, "%s API ID %d: %s\n", statusIcon(r.Status), r.Account.APIID, r.Status)
	}
	h.edit(cb.Message, b.String(), backKeyboard())
}

func statusIcon(s health.Status) string {
	switch s {
	case health.StatusActive:
		return "✅"
	case health.StatusNeedsLogin:
		return "⚠️"
	default:
		return "❌"
	}
}
