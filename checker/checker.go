package checker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"court-notifier/metrics"
	"court-notifier/notify"
	"court-notifier/parser"
	"court-notifier/slots"
	"court-notifier/types"
)

type Fetcher interface {
	FetchSchedule(ctx context.Context, club, date string, page int) (*parser.Schedule, error)
}

type Requests interface {
	ActiveRequests(ctx context.Context) ([]types.BookingRequest, error)
	RequestsByChat(ctx context.Context, chatID int64) ([]types.BookingRequest, error)
	DeactivatePast(ctx context.Context, today time.Time) (int64, error)
}

type Courts interface {
	ListCourts(ctx context.Context, club string) ([]types.CourtRef, error)
}

// Clubs provides catalog names of clubs.
type Clubs interface {
	ListClubs(ctx context.Context) ([]types.ClubRef, error)
}

// State remembers which windows were already sent.
type State interface {
	Notified(ctx context.Context, requestID int64) (map[string]bool, error)
	MarkNotified(ctx context.Context, requestID int64, fingerprints []string) error
}

type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

type Deps struct {
	Fetcher  Fetcher
	Requests Requests
	Courts   Courts
	Clubs    Clubs // optional; page titles are used when nil
	State    State
	Sender   Sender
}

type Options struct {
	Clubs         []string
	Timeslots     []types.Clock
	Pages         int
	DayInterval   time.Duration
	NightInterval time.Duration
	Location      *time.Location
	Now           func() time.Time
}

// Windows starting more than pastGrace ago are not offered any more.
const pastGrace = 5 * time.Minute

type Checker struct {
	deps       Deps
	opts       Options
	normalizer *slots.Normalizer
	log        zerolog.Logger
}

func New(deps Deps, opts Options, log zerolog.Logger) *Checker {
	if opts.Pages < 1 {
		opts.Pages = 1
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Checker{
		deps:       deps,
		opts:       opts,
		normalizer: slots.NewNormalizer(opts.Timeslots),
		log:        log,
	}
}

// Start runs a check right away and then keeps checking until ctx is done:
// every DayInterval, or every NightInterval between 01:00 and 08:00.
func (c *Checker) Start(ctx context.Context) {
	c.log.Info().Msg("🔍 Checker service started")

	for {
		if _, err := c.RunOnce(ctx); err != nil && ctx.Err() == nil {
			c.log.Error().Err(err).Msg("⚠️ Availability check failed")
		}

		wait := c.nextInterval(c.opts.Now())
		c.log.Info().Dur("next_in", wait).Msg("⏰ Next check scheduled")
		select {
		case <-ctx.Done():
			c.log.Info().Msg("🛑 Checker service stopped")
			return
		case <-time.After(wait):
		}
	}
}

func (c *Checker) nextInterval(now time.Time) time.Duration {
	hour := now.In(c.opts.Location).Hour()
	if hour >= 1 && hour < 8 {
		return c.opts.NightInterval
	}
	return c.opts.DayInterval
}

// RunOnce checks every active request and sends only windows that were not
// sent before.
func (c *Checker) RunOnce(ctx context.Context) (types.Report, error) {
	started := time.Now()
	c.log.Info().Msg("🔍 Running availability check...")

	today := c.opts.Now().In(c.opts.Location)
	if n, err := c.deps.Requests.DeactivatePast(ctx, today); err != nil {
		c.log.Warn().Err(err).Msg("⚠️ Failed to deactivate past requests")
	} else if n > 0 {
		c.log.Info().Int64("count", n).Msg("🗓 Deactivated past requests")
	}

	requests, err := c.deps.Requests.ActiveRequests(ctx)
	if err != nil {
		metrics.RecordRun("error", time.Since(started).Seconds())
		return types.Report{}, fmt.Errorf("load active requests: %w", err)
	}
	metrics.ActiveRequests.Set(float64(len(requests)))
	c.log.Info().Int("requests", len(requests)).Msg("📋 Found active requests")

	report := c.evaluate(ctx, requests)
	for _, entry := range report.Entries {
		c.notify(ctx, entry, true)
	}

	metrics.RecordRun("ok", time.Since(started).Seconds())
	return report, nil
}

// CheckChatNow sends the full current picture for one chat, already-sent
// windows included.
func (c *Checker) CheckChatNow(ctx context.Context, chatID int64) error {
	requests, err := c.deps.Requests.RequestsByChat(ctx, chatID)
	if err != nil {
		return fmt.Errorf("load requests of chat %d: %w", chatID, err)
	}
	if len(requests) == 0 {
		return c.deps.Sender.Send(ctx, chatID, "You have no active booking requests. Use /add to create one.")
	}

	report := c.evaluate(ctx, requests)
	for _, entry := range report.Entries {
		c.notify(ctx, entry, false)
	}
	return nil
}

// Evaluate fetches what the requests need and matches them, without sending.
func (c *Checker) Evaluate(ctx context.Context, requests []types.BookingRequest) types.Report {
	return c.evaluate(ctx, requests)
}

func (c *Checker) evaluate(ctx context.Context, requests []types.BookingRequest) types.Report {
	records := c.collect(ctx, requestDates(requests))

	report, dropped := slots.Pipeline(c.normalizer, records, requests)
	for _, err := range dropped {
		metrics.RecordDropped("invalid_timeslot")
		c.log.Warn().Err(err).Msg("⚠️ Dropped availability record")
	}
	now := c.opts.Now()
	for i, e := range report.Entries {
		if e.Status != types.StatusMatched {
			continue
		}
		e.Result = DropPast(e.Request.Date, e.Result, now, c.opts.Location)
		if e.Result.Empty() {
			e.Status = types.StatusNoSlots
		}
		report.Entries[i] = e
	}
	for _, e := range report.Entries {
		metrics.RecordRequest(string(e.Status))
	}
	return report
}

// requestDates lists the distinct dates of well-formed requests.
func requestDates(requests []types.BookingRequest) []string {
	seen := make(map[string]bool)
	var dates []string
	for _, r := range requests {
		if _, err := time.Parse(time.DateOnly, r.Date); err != nil || seen[r.Date] {
			continue
		}
		seen[r.Date] = true
		dates = append(dates, r.Date)
	}
	sort.Strings(dates)
	return dates
}

// collect scrapes every configured club for the given dates and resolves
// courts against the catalog.
func (c *Checker) collect(ctx context.Context, dates []string) []types.AvailabilityRecord {
	var records []types.AvailabilityRecord
	if len(dates) == 0 {
		return records
	}

	names := c.clubNames(ctx)
	for _, club := range c.opts.Clubs {
		courts, err := c.deps.Courts.ListCourts(ctx, club)
		if err != nil {
			c.log.Warn().Err(err).Str("club", club).Msg("⚠️ Failed to load courts, showing them as unknown")
		}
		byID := make(map[string]types.CourtRef, len(courts))
		for _, ct := range courts {
			byID[ct.ID] = ct
		}

		ref := types.ClubRef{Slug: club, Name: names[club]}
		var raw []parser.RawSlot
		for _, date := range dates {
			for page := 0; page < c.opts.Pages; page++ {
				if ctx.Err() != nil {
					return records
				}
				sched, err := c.deps.Fetcher.FetchSchedule(ctx, club, date, page)
				switch {
				case errors.Is(err, parser.ErrForbidden):
					metrics.RecordPage(club, "forbidden")
					c.log.Warn().Str("club", club).Str("date", date).Int("page", page).Msg("🚫 Access forbidden")
					continue
				case errors.Is(err, parser.ErrLoginRequired):
					metrics.RecordPage(club, "login_required")
					c.log.Warn().Str("club", club).Msg("⚠️ This club requires login - skipping")
					continue
				case err != nil:
					metrics.RecordPage(club, "error")
					c.log.Warn().Err(err).Str("club", club).Str("date", date).Int("page", page).Msg("⚠️ Error checking schedule")
					continue
				}
				metrics.RecordPage(club, "ok")
				if ref.Name == "" {
					ref.Name = sched.ClubName
				}
				raw = append(raw, sched.Slots...)
			}
		}

		unknown := make(map[string]bool)
		for _, s := range raw {
			ts, err := types.ParseClock(s.Timeslot)
			if err != nil {
				metrics.RecordDropped("bad_time")
				c.log.Warn().Err(err).Str("club", club).Msg("⚠️ Unreadable timeslot")
				continue
			}
			court, ok := byID[s.CourtID]
			if !ok {
				court = types.UnknownCourtRef(s.CourtID)
				if !unknown[s.CourtID] {
					unknown[s.CourtID] = true
					c.log.Warn().Err(types.ErrUnknownCourt).Str("club", club).Str("court", s.CourtID).Msg("⚠️ Court missing from catalog")
				}
			}
			records = append(records, types.AvailabilityRecord{Club: ref, Date: s.Date, Timeslot: ts, Court: court})
		}
		c.log.Info().Str("club", club).Int("records", len(raw)).Msg("🎾 Collected availability")
	}
	return records
}

// clubNames maps slugs to catalog names. Failures only cost the nicer names.
func (c *Checker) clubNames(ctx context.Context) map[string]string {
	names := make(map[string]string)
	if c.deps.Clubs == nil {
		return names
	}
	clubs, err := c.deps.Clubs.ListClubs(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("⚠️ Failed to load club names, using page titles")
		return names
	}
	for _, cl := range clubs {
		names[cl.Slug] = cl.Name
	}
	return names
}

// DropPast removes windows of date that started more than pastGrace before now.
func DropPast(date string, res types.MatchResult, now time.Time, loc *time.Location) types.MatchResult {
	day, err := time.ParseInLocation(time.DateOnly, date, loc)
	if err != nil {
		return res
	}
	cutoff := now.Add(-pastGrace)

	var out types.MatchResult
	for _, club := range res.Clubs {
		kept := types.ClubMatch{Club: club.Club}
		for _, w := range club.Windows {
			start := time.Date(day.Year(), day.Month(), day.Day(), 0, int(w.Window.Start), 0, 0, loc)
			if start.After(cutoff) {
				kept.Windows = append(kept.Windows, w)
			}
		}
		if len(kept.Windows) > 0 {
			out.Clubs = append(out.Clubs, kept)
		}
	}
	return out
}

func (c *Checker) notify(ctx context.Context, entry types.ReportEntry, onlyNew bool) {
	req := entry.Request
	if req.ChatID == 0 {
		return
	}

	var fingerprints []string
	switch entry.Status {
	case types.StatusNoSlots:
		if onlyNew {
			return
		}
	case types.StatusInvalid:
		fingerprints = []string{"invalid"}
		if onlyNew && c.seen(ctx, req.ID)["invalid"] {
			return
		}
	case types.StatusMatched:
		if onlyNew {
			entry.Result, fingerprints = FilterNew(entry.Result, c.seen(ctx, req.ID))
			if entry.Result.Empty() {
				return
			}
		} else {
			_, fingerprints = FilterNew(entry.Result, nil)
		}
	}

	if err := c.deps.Sender.Send(ctx, req.ChatID, notify.Format(entry)); err != nil {
		metrics.RecordNotification("failed")
		c.log.Error().Err(err).Int64("request", req.ID).Msg("⚠️ Failed to send notification")
		return
	}
	metrics.RecordNotification("sent")
	c.log.Info().Int64("chat", req.ChatID).Int64("request", req.ID).Str("status", string(entry.Status)).Msg("✅ Notification sent")

	if req.ID != 0 && len(fingerprints) > 0 {
		if err := c.deps.State.MarkNotified(ctx, req.ID, fingerprints); err != nil {
			c.log.Warn().Err(err).Int64("request", req.ID).Msg("⚠️ Failed to save notification state")
		}
	}
}

func (c *Checker) seen(ctx context.Context, requestID int64) map[string]bool {
	if requestID == 0 {
		return nil
	}
	seen, err := c.deps.State.Notified(ctx, requestID)
	if err != nil {
		c.log.Warn().Err(err).Int64("request", requestID).Msg("⚠️ Failed to load notification state")
		return nil
	}
	return seen
}

// Fingerprint identifies one window offered by an exact set of courts.
func Fingerprint(club string, m types.CourtMatch) string {
	ids := make([]string, len(m.Courts))
	for i, ct := range m.Courts {
		ids[i] = ct.ID
	}
	return club + "|" + m.Window.String() + "|" + strings.Join(ids, ",")
}

// FilterNew keeps the windows whose fingerprint is not in seen and returns
// their fingerprints.
func FilterNew(res types.MatchResult, seen map[string]bool) (types.MatchResult, []string) {
	var (
		out types.MatchResult
		fps []string
	)
	for _, club := range res.Clubs {
		fresh := types.ClubMatch{Club: club.Club}
		for _, w := range club.Windows {
			fp := Fingerprint(club.Club.Slug, w)
			if seen[fp] {
				continue
			}
			fresh.Windows = append(fresh.Windows, w)
			fps = append(fps, fp)
		}
		if len(fresh.Windows) > 0 {
			out.Clubs = append(out.Clubs, fresh)
		}
	}
	return out, fps
}
