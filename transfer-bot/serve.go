package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"memberflow/shared/health"
	"memberflow/shared/onboarding"
	"memberflow/shared/transfer"
	"memberflow/transfer-bot/config"
	"memberflow/transfer-bot/handlers"
)

const expiryInterval = time.Minute

func serveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot, the transfer scheduler and the health monitor",
		Args:  cobra.NoArgs,
		RunE:  serveRun,
	}
}

func serveRun(cmd *cobra.Command, _ []string) error {
	cfg := config.FromContext(cmd.Context())
	if err := cfg.ValidateBot(); err != nil {
		return err
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return err
	}
	bot.Debug = globalFlags.debug
	logger.Info("authorized bot", zap.String("bot", bot.Self.UserName))

	notifier := handlers.NewNotifier(bot, logger)
	scheduler := transfer.NewScheduler(a.queue, a.accounts, a.engine(), notifier,
		transfer.SchedulerConfig{
			PollInterval: cfg.Transfer.PollInterval,
			JobTarget:    cfg.Transfer.JobTarget,
		}, logger)

	checker := health.NewChecker(a.connector, a.proxies, logger)
	monitor := health.NewMonitor(checker, a.accounts, notifier, cfg.Health.Interval, a.metrics, logger)

	machine := onboarding.NewMachine(a.connector, a.proxies, a.accounts, cfg.Onboarding.IdleTimeout, logger)
	defer machine.Close()

	h := handlers.New(bot, handlers.Deps{
		Accounts:   a.accounts,
		Queue:      a.queue,
		Toggle:     a.toggle,
		Onboarding: machine,
		Checker:    checker,
		Scheduler:  scheduler,
	}, handlers.Options{
		BotID:            bot.Self.ID,
		AdminID:          cfg.Bot.AdminID,
		RequiredChannel:  cfg.Bot.RequiredChannel,
		CheckConcurrency: cfg.Health.Concurrency,
	}, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scheduler.Run(ctx) })
	g.Go(func() error { return monitor.Run(ctx) })
	g.Go(func() error { return machine.RunExpiry(ctx, expiryInterval) })
	g.Go(func() error {
		if cfg.Webhook.URL != "" {
			return h.Webhook(ctx, bot, handlers.WebhookOptions{
				URL:        cfg.Webhook.URL,
				ListenAddr: cfg.Webhook.ListenAddr,
				Secret:     cfg.Webhook.Secret,
			})
		}
		return h.Poll(ctx, bot)
	})
	if addr := cfg.Metrics.ListenAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		logger.Info("serving metrics", zap.String("addr", addr))
		g.Go(func() error { return handlers.ServeHTTP(ctx, srv) })
	}

	err = g.Wait()
	logger.Info("shutting down")
	return err
}
