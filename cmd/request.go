package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"court-notifier/handlers"
)

func newRequestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "request",
		Short: "Inspect and manage booking requests",
	}
	cmd.AddCommand(newRequestAddCmd())
	cmd.AddCommand(newRequestListCmd())
	cmd.AddCommand(newRequestResendCmd())
	return cmd
}

func newRequestAddCmd() *cobra.Command {
	var chatID int64

	c := &cobra.Command{
		Use:   "add <date> <from> <to> <minutes> <quantity> [surfaces] [roof]",
		Short: "Create a booking request for a chat",
		Args:  cobra.MinimumNArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := handlers.ParseAddArgs(strings.Join(args, " "))
			if err != nil {
				return err
			}
			req.ChatID = chatID

			ctx := context.Background()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.pg.CreateRequest(ctx, &req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created request #%d: %s\n", req.ID, req)
			return nil
		},
	}

	c.Flags().Int64Var(&chatID, "chat", 0, "Telegram chat id to notify")
	_ = c.MarkFlagRequired("chat")
	return c
}

func newRequestListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active booking requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			reqs, err := a.pg.ActiveRequests(ctx)
			if err != nil {
				return err
			}
			for _, r := range reqs {
				fmt.Fprintf(cmd.OutOrStdout(), "#%d chat=%d %s\n", r.ID, r.ChatID, r)
			}
			return nil
		},
	}
}

// resend forgets what was already sent so the next check reports every window again.
func newRequestResendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend <id>",
		Short: "Forget the notification history of a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("request id: %w", err)
			}

			ctx := context.Background()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.redis.ResetNotified(ctx, id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "request #%d will be reported in full on the next check\n", id)
			return nil
		},
	}
}
