package notify

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"court-notifier/types"
)

// Bot is the part of tgbotapi.BotAPI used for sending.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Telegram struct {
	bot Bot
}

func NewTelegram(bot Bot) *Telegram {
	return &Telegram{bot: bot}
}

// Send posts one Markdown message.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}
	return nil
}

// Format renders one report entry.
func Format(entry types.ReportEntry) string {
	var b strings.Builder
	header := escape(entry.Request.String())
	if entry.Request.ID != 0 {
		header = fmt.Sprintf("#%d %s", entry.Request.ID, header)
	}

	switch entry.Status {
	case types.StatusInvalid:
		fmt.Fprintf(&b, "⚠️ %s\nInvalid request: %s\n", header, escape(errText(entry.Err)))
	case types.StatusNoSlots:
		fmt.Fprintf(&b, "🔍 %s\nNo slots found.\n", header)
	default:
		fmt.Fprintf(&b, "🎾 %s\n", header)
		for _, club := range entry.Result.Clubs {
			fmt.Fprintf(&b, "\n*%s*\n", escape(club.Club.DisplayName()))
			for _, w := range club.Windows {
				names := make([]string, len(w.Courts))
				for i, c := range w.Courts {
					names[i] = escape(c.DisplayName())
				}
				fmt.Fprintf(&b, "%s: %s\n", w.Window, strings.Join(names, ", "))
			}
		}
	}
	return b.String()
}

// FormatReport renders every entry, separated by blank lines.
func FormatReport(report types.Report) string {
	if len(report.Entries) == 0 {
		return "No active booking requests.\n"
	}
	parts := make([]string, len(report.Entries))
	for i, e := range report.Entries {
		parts[i] = Format(e)
	}
	return strings.Join(parts, "\n")
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
