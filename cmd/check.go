package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"court-notifier/notify"
	"court-notifier/types"
)

func newCheckCmd() *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one availability check and print the report",
		Long: "Runs a single check over all active booking requests. Without --print new windows are\n" +
			"also sent to Telegram, exactly like one tick of `watch`.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			var report types.Report
			if printOnly {
				requests, err := a.pg.ActiveRequests(ctx)
				if err != nil {
					return err
				}
				report = a.checker(nil).Evaluate(ctx, requests)
			} else {
				bot, err := tgbotapi.NewBotAPI(a.cfg.TelegramToken)
				if err != nil {
					return fmt.Errorf("telegram: %w", err)
				}
				if report, err = a.checker(notify.NewTelegram(bot)).RunOnce(ctx); err != nil {
					return err
				}
			}

			fmt.Fprint(cmd.OutOrStdout(), notify.FormatReport(report))
			return nil
		},
	}

	cmd.Flags().BoolVar(&printOnly, "print", false, "only print the report, send nothing")
	return cmd
}
