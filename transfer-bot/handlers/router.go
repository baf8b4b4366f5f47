package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

var allowedUpdates = []string{tgbotapi.UpdateTypeMessage, tgbotapi.UpdateTypeCallbackQuery}

// Poll receives updates with long polling until ctx is done.
func (h *Handler) Poll(ctx context.Context, bot *tgbotapi.BotAPI) error {
	// getUpdates is refused while a webhook is registered.
	if _, err := bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		h.logger.Warn("failed to delete webhook", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = allowedUpdates

	updates := bot.GetUpdatesChan(u)
	h.logger.Info("receiving updates with long polling", zap.String("bot", bot.Self.UserName))
	defer h.Wait()

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			h.Dispatch(ctx, update)
		}
	}
}

type WebhookOptions struct {
	URL        string
	ListenAddr string
	Secret     string
}

// Webhook registers url/webhook/<secret> with Telegram and serves it until
// ctx is done.
func (h *Handler) Webhook(ctx context.Context, bot *tgbotapi.BotAPI, opts WebhookOptions) error {
	path := "/webhook/" + opts.Secret

	wh, err := tgbotapi.NewWebhook(opts.URL + path)
	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}
	wh.AllowedUpdates = allowedUpdates
	if _, err := bot.Request(wh); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		update, err := bot.HandleUpdate(r)
		if err != nil {
			h.logger.Warn("error handling update", zap.Error(err))
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		h.Dispatch(ctx, *update)
	})

	srv := &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	h.logger.Info("starting webhook server", zap.String("addr", opts.ListenAddr))
	defer h.Wait()
	return ServeHTTP(ctx, srv)
}

// ServeHTTP runs srv until ctx is done, then shuts it down gracefully.
func ServeHTTP(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}
