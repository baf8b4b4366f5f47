package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"memberflow/shared/onboarding"
	"memberflow/transfer-bot/config"
)

// terminalRequester keys the single onboarding session of the terminal.
const terminalRequester = 0

func sessionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Log accounts in from the terminal and add them to the pool",
		Args:  cobra.NoArgs,
		RunE:  sessionRun,
	}
}

func sessionRun(cmd *cobra.Command, _ []string) error {
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

	machine := onboarding.NewMachine(a.connector, a.proxies, a.accounts,
		cfg.Onboarding.IdleTimeout, logger, onboarding.WithSelfContributor())
	defer machine.Close()

	in := bufio.NewScanner(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	for {
		reply := machine.Start(terminalRequester)
		for !reply.Done() {
			fmt.Fprintln(out, reply.Text)
			line, ok := readLine(in)
			if !ok {
				return in.Err()
			}
			reply = machine.Handle(ctx, terminalRequester, line)
		}
		fmt.Fprintln(out, reply.Text)
		if reply.Outcome == onboarding.Saved && reply.Account != nil {
			fmt.Fprintf(out, "Session for API ID %d:\n%s\n", reply.Account.APIID, reply.Account.Session)
		}

		if !confirm(out, in, "Add another account? (y/n)") {
			return nil
		}
	}
}

func readLine(in *bufio.Scanner) (string, bool) {
	if !in.Scan() {
		return "", false
	}
	return strings.TrimSpace(in.Text()), true
}

func confirm(out io.Writer, in *bufio.Scanner, prompt string) bool {
	fmt.Fprintln(out, prompt)
	line, ok := readLine(in)
	if !ok {
		return false
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true
	}
	return false
}
