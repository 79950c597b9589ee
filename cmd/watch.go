package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"court-notifier/handlers"
	"court-notifier/logger"
	"court-notifier/notify"
)

func newWatchCmd() *cobra.Command {
	var (
		migrateUp bool
		keepAlive time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the Telegram bot and the periodic availability checker",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := openApp(ctx, migrateUp)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.TelegramToken == "" {
				return errors.New("TELEGRAM_BOT_TOKEN not set")
			}
			bot, err := tgbotapi.NewBotAPI(a.cfg.TelegramToken)
			if err != nil {
				return fmt.Errorf("telegram: %w", err)
			}
			a.log.Info().Str("account", bot.Self.UserName).Msg("🤖 Authorized on account")

			go serveMetrics(ctx, a.cfg.MetricsAddr)

			a.log.Info().Dur("every", keepAlive).Msg("🍪 Starting cookie keepalive service...")
			go a.kluby.KeepAlive(ctx, keepAlive)

			chk := a.checker(notify.NewTelegram(bot))
			go chk.Start(ctx)

			h := handlers.New(bot, a.pg, chk, logger.With("handlers"))

			u := tgbotapi.NewUpdate(0)
			u.Timeout = 60
			updates := bot.GetUpdatesChan(u)
			a.log.Info().Msg("✅ Bot is running...")

			for {
				select {
				case <-ctx.Done():
					bot.StopReceivingUpdates()
					a.log.Info().Msg("🛑 Shutting down")
					return nil
				case update := <-updates:
					if update.Message != nil {
						go h.HandleMessage(ctx, update.Message)
					}
				}
			}
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().DurationVar(&keepAlive, "keepalive", 10*time.Minute, "how often to ping kluby.org to keep the session cookies alive")
	return cmd
}

func serveMetrics(ctx context.Context, addr string) {
	log := logger.With("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("📈 Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("⚠️ Metrics server failed")
	}
}
