package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"memberflow/shared/models"
	"memberflow/shared/transfer"
	"memberflow/transfer-bot/config"
)

func transferCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <source> <target> <max>",
		Short: "Run one transfer from the terminal using every stored account",
		Args:  cobra.ExactArgs(3),
		RunE:  transferRun,
	}
}

func transferRun(cmd *cobra.Command, args []string) error {
	target, err := strconv.Atoi(args[2])
	if err != nil || target <= 0 {
		return fmt.Errorf("max must be a positive number, got %q", args[2])
	}
	cfg := config.FromContext(cmd.Context())
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

	accounts, err := a.accounts.LoadAll(ctx)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return errors.New(transfer.ReasonNoAccounts)
	}

	notifier := transfer.NewConsoleNotifier(cmd.OutOrStdout())
	run := &transfer.Run{
		Job:      models.NewJob(0, args[0], args[1]),
		Target:   target,
		Notifier: notifier,
	}
	notifier.Started(ctx, run.Job)
	// Accounts are used in stored order here; the scheduler shuffles.
	a.engine().RunPool(ctx, run, accounts)
	notifier.Finished(ctx, run.Job, run.Added)
	return ctx.Err()
}
