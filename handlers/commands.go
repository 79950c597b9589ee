package handlers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"court-notifier/storage"
	"court-notifier/types"
)

type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Requests is the part of the request store the bot commands need.
type Requests interface {
	RequestsByChat(ctx context.Context, chatID int64) ([]types.BookingRequest, error)
	CreateRequest(ctx context.Context, r *types.BookingRequest) error
	DeactivateRequest(ctx context.Context, chatID, id int64) error
}

type Checker interface {
	CheckChatNow(ctx context.Context, chatID int64) error
}

type Handler struct {
	bot      Bot
	requests Requests
	checker  Checker
	log      zerolog.Logger
}

func New(bot Bot, requests Requests, checker Checker, log zerolog.Logger) *Handler {
	return &Handler{bot: bot, requests: requests, checker: checker, log: log}
}

const usageAdd = "Usage: /add <date> <from> <to> <minutes> <quantity> [surfaces] [roof]\n" +
	"Example: /add 2024-07-20 18:00 21:00 60 2 clay outdoor\n" +
	"surfaces: clay, hard, clay hard or any\n" +
	"roof: indoor, outdoor or any"

// HandleMessage routes one incoming message by command.
func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.Chat == nil {
		return
	}
	switch msg.Command() {
	case "start", "help":
		h.HandleStart(msg)
	case "requests":
		h.HandleRequests(ctx, msg)
	case "add":
		h.HandleAdd(ctx, msg)
	case "cancel":
		h.HandleCancel(ctx, msg)
	case "check":
		h.HandleCheck(ctx, msg)
	default:
		h.reply(msg.Chat.ID, "Unknown command. Try /start")
	}
}

func (h *Handler) HandleStart(msg *tgbotapi.Message) {
	text := "👋 Hi! I watch kluby.org for free tennis courts in Warsaw.\n\n" +
		"Commands:\n" +
		"/add - create a booking request\n" +
		"/requests - show my active requests\n" +
		"/cancel <id> - cancel a request\n" +
		"/check - check all my requests right now\n\n" +
		usageAdd
	h.reply(msg.Chat.ID, text)
}

func (h *Handler) HandleRequests(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	reqs, err := h.requests.RequestsByChat(ctx, chatID)
	if err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("⚠️ Failed to load requests")
		h.reply(chatID, "⚠️ Failed to load your requests.")
		return
	}
	if len(reqs) == 0 {
		h.reply(chatID, "You have no active booking requests.\n\nUse /add to create one.")
		return
	}

	var b strings.Builder
	b.WriteString("📬 Your requests:\n\n")
	for _, r := range reqs {
		fmt.Fprintf(&b, "#%d %s\n", r.ID, r)
	}
	h.reply(chatID, b.String())
}

func (h *Handler) HandleAdd(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	req, err := ParseAddArgs(msg.CommandArguments())
	if err != nil {
		h.reply(chatID, fmt.Sprintf("⚠️ %v\n\n%s", err, usageAdd))
		return
	}
	req.ChatID = chatID

	if err := h.requests.CreateRequest(ctx, &req); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("⚠️ Failed to save request")
		h.reply(chatID, "⚠️ Failed to save the request.")
		return
	}
	h.log.Info().Int64("chat", chatID).Int64("request", req.ID).Str("request_text", req.String()).Msg("✅ Request created")
	h.reply(chatID, fmt.Sprintf("✅ Request #%d saved: %s\n\nI'll message you when matching courts show up.", req.ID, req))
}

func (h *Handler) HandleCancel(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(msg.CommandArguments()), "#"), 10, 64)
	if err != nil {
		h.reply(chatID, "Usage: /cancel <id>\n\nUse /requests to see the ids.")
		return
	}

	err = h.requests.DeactivateRequest(ctx, chatID, id)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		h.reply(chatID, fmt.Sprintf("You have no active request #%d.", id))
	case err != nil:
		h.log.Error().Err(err).Int64("chat", chatID).Int64("request", id).Msg("⚠️ Failed to cancel request")
		h.reply(chatID, "⚠️ Failed to cancel the request.")
	default:
		h.reply(chatID, fmt.Sprintf("✅ Request #%d cancelled.", id))
	}
}

func (h *Handler) HandleCheck(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if h.checker == nil {
		h.reply(chatID, "⚠️ Checking is temporarily unavailable.")
		return
	}
	h.reply(chatID, "🔍 Checking your requests...")
	if err := h.checker.CheckChatNow(ctx, chatID); err != nil {
		h.log.Error().Err(err).Int64("chat", chatID).Msg("⚠️ Check failed")
		h.reply(chatID, "⚠️ Check failed, try again later.")
	}
}

func (h *Handler) reply(chatID int64, text string) {
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.log.Warn().Err(err).Int64("chat", chatID).Msg("⚠️ Failed to send reply")
	}
}

// ParseAddArgs reads "<date> <from> <to> <minutes> <quantity> [surfaces] [roof]"
// and returns a validated request.
func ParseAddArgs(args string) (types.BookingRequest, error) {
	var req types.BookingRequest
	fields := strings.Fields(args)
	if len(fields) < 5 {
		return req, fmt.Errorf("%w: expected at least 5 arguments, got %d", types.ErrInvalidBookingRequest, len(fields))
	}

	var err error
	req.Date = fields[0]
	if req.From, err = types.ParseClock(fields[1]); err != nil {
		return req, fmt.Errorf("%w: from: %v", types.ErrInvalidBookingRequest, err)
	}
	if req.To, err = types.ParseClock(fields[2]); err != nil {
		return req, fmt.Errorf("%w: to: %v", types.ErrInvalidBookingRequest, err)
	}
	minutes, err := strconv.Atoi(fields[3])
	if err != nil {
		return req, fmt.Errorf("%w: minutes %q is not a number", types.ErrInvalidBookingRequest, fields[3])
	}
	req.Duration = types.Clock(minutes)
	if req.Quantity, err = strconv.Atoi(fields[4]); err != nil {
		return req, fmt.Errorf("%w: quantity %q is not a number", types.ErrInvalidBookingRequest, fields[4])
	}

	// Repeated filter tokens add up: "clay hard" is the same as "clay,hard".
	for _, f := range fields[5:] {
		switch strings.ToLower(f) {
		case "any":
		case "indoor", "roofed":
			req.Roofed = addRoof(req.Roofed, true)
		case "outdoor", "open":
			req.Roofed = addRoof(req.Roofed, false)
		default:
			surfaces, err := parseSurfaces(f)
			if err != nil {
				return req, err
			}
			for _, sf := range surfaces {
				if !slices.Contains(req.Surfaces, sf) {
					req.Surfaces = append(req.Surfaces, sf)
				}
			}
		}
	}

	return req, req.Validate()
}

func addRoof(roofed []bool, v bool) []bool {
	if slices.Contains(roofed, v) {
		return roofed
	}
	return append(roofed, v)
}

func parseSurfaces(s string) ([]types.Surface, error) {
	var out []types.Surface
	for _, part := range strings.Split(s, ",") {
		sf, err := types.ParseSurface(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", types.ErrInvalidBookingRequest, err)
		}
		out = append(out, sf)
	}
	return out, nil
}
