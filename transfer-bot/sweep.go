package main

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"memberflow/shared/health"
	"memberflow/transfer-bot/config"
	"memberflow/transfer-bot/handlers"
)

func sweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Check every stored account once and remove the invalid ones",
		Args:  cobra.NoArgs,
		RunE:  sweepRun,
	}
}

func sweepRun(cmd *cobra.Command, _ []string) error {
	cfg := config.FromContext(cmd.Context())
	logger, err := newLogger()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// Owners are only told about removals when a bot is configured.
	var owners health.OwnerNotifier
	if cfg.Bot.Token != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
		if err != nil {
			return err
		}
		owners = handlers.NewNotifier(bot, logger)
	}

	checker := health.NewChecker(a.connector, a.proxies, logger)
	monitor := health.NewMonitor(checker, a.accounts, owners, cfg.Health.Interval, a.metrics, logger)
	removed, err := monitor.Sweep(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "removed %d account(s)\n", len(removed))
	for _, acc := range removed {
		fmt.Fprintf(out, "  api_id=%d contributor=%d\n", acc.APIID, acc.ContributorID)
	}
	return nil
}
