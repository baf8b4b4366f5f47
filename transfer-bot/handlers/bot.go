// Package handlers is the Bot API front end: the menu, transfer intake, the
// account onboarding conversation, admin commands and job notifications.
package handlers

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"memberflow/shared/health"
	"memberflow/shared/onboarding"
	"memberflow/shared/storage"
)

// BotAPI is the part of *tgbotapi.BotAPI the handlers use.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetChatAdministrators(config tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error)
}

// Scheduler reports whether a transfer is executing.
type Scheduler interface {
	Busy() bool
}

type Deps struct {
	Accounts   storage.Accounts
	Queue      storage.Queue
	Toggle     storage.Toggle
	Onboarding *onboarding.Machine
	Checker    *health.Checker
	Scheduler  Scheduler
}

type Options struct {
	BotID           int64
	AdminID         int64
	RequiredChannel string
	// CheckConcurrency bounds the live checks of the "my accounts" view.
	CheckConcurrency int
}

type Handler struct {
	bot    BotAPI
	deps   Deps
	opts   Options
	states *States
	logger *zap.Logger
	lanes  *lanes
}

func New(bot BotAPI, deps Deps, opts Options, logger *zap.Logger) *Handler {
	return &Handler{
		bot:    bot,
		deps:   deps,
		opts:   opts,
		states: NewStates(),
		logger: logger.Named("handlers"),
		lanes:  newLanes(),
	}
}

// Dispatch handles update in the background. Updates from one sender are
// handled one at a time in arrival order.
func (h *Handler) Dispatch(ctx context.Context, update tgbotapi.Update) {
	var sender int64
	if from := update.SentFrom(); from != nil {
		sender = from.ID
	}
	h.lanes.Go(sender, func() { h.HandleUpdate(ctx, update) })
}

// Wait blocks until every dispatched update is handled.
func (h *Handler) Wait() {
	h.lanes.Wait()
}

func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		h.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return
	}
	userID := msg.From.ID

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			h.states.Clear(userID)
			h.deps.Onboarding.Cancel(userID)
			h.sendMainMenu(msg.Chat.ID)
			return
		case "cancel":
			h.states.Clear(userID)
			h.deps.Onboarding.Cancel(userID)
			h.sendMessage(msg.Chat.ID, cancelledMessage)
			return
		case "bot_on":
			h.setActive(ctx, msg, true)
			return
		case "bot_off":
			h.setActive(ctx, msg, false)
			return
		}
	}

	if state, ok := h.states.Get(userID); ok {
		h.handleIntake(ctx, msg, state)
		return
	}
	if h.deps.Onboarding.Active(userID) {
		h.handleOnboarding(ctx, msg)
		return
	}
	h.sendMessage(msg.Chat.ID, useMenuMessage)
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil {
		h.answer(cb, "", false)
		return
	}
	switch cb.Data {
	case cbMenu:
		h.answer(cb, "", false)
		h.edit(cb.Message, welcomeMessage, mainMenuKeyboard())
	case cbGuide:
		h.answer(cb, "", false)
		h.edit(cb.Message, apiGuideMessage, guideKeyboard())
	case cbAddAccount:
		h.answer(cb, "", false)
		h.startOnboarding(cb)
	case cbMyAccounts:
		h.myAccounts(ctx, cb)
	case cbNewTransfer:
		h.newTransfer(ctx, cb)
	default:
		h.answer(cb, "", false)
	}
}
