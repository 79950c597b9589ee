package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://kluby.org"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.36"
)

var (
	ErrForbidden     = errors.New("kluby.org: access forbidden")
	ErrLoginRequired = errors.New("kluby.org: schedule visible only after login")
)

// RawSlot is one "Rezerwuj" cell of a schedule page.
type RawSlot struct {
	Club     string
	Date     string
	Page     int
	Timeslot string // HH:MM
	CourtID  string
}

// Schedule is a parsed grafik page.
type Schedule struct {
	ClubName string
	Slots    []RawSlot
}

type Options struct {
	BaseURL   string
	Cookie    string // kluby_org
	Autolog   string // kluby_autolog
	RPS       float64
	Timeout   time.Duration
	MaxJitter time.Duration
	Timeslots []string // keep only these rows; empty keeps all
}

// Client fetches schedule pages, one request at a time per limiter token.
type Client struct {
	http      *http.Client
	baseURL   string
	limiter   *rate.Limiter
	jitter    time.Duration
	timeslots map[string]bool
	log       zerolog.Logger
}

func New(opts Options, log zerolog.Logger) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.RPS <= 0 {
		opts.RPS = 3
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	var cookies []*http.Cookie
	if opts.Cookie != "" {
		cookies = append(cookies, &http.Cookie{Name: "kluby_org", Value: opts.Cookie, Path: "/"})
	}
	if opts.Autolog != "" {
		cookies = append(cookies,
			&http.Cookie{Name: "kluby_autolog", Value: opts.Autolog, Path: "/"},
			&http.Cookie{Name: "kluby_remember", Value: "1", Path: "/"},
		)
	}
	if len(cookies) > 0 {
		jar.SetCookies(u, cookies)
		log.Info().Msg("🍪 Using authenticated client with cookies")
	}

	c := &Client{
		http:    &http.Client{Jar: jar, Timeout: opts.Timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), 1),
		jitter:  opts.MaxJitter,
		log:     log,
	}
	if len(opts.Timeslots) > 0 {
		c.timeslots = make(map[string]bool, len(opts.Timeslots))
		for _, ts := range opts.Timeslots {
			c.timeslots[normalizeTime(ts)] = true
		}
	}
	return c, nil
}

// ScheduleURL builds the grafik page address for one club, date and page.
func (c *Client) ScheduleURL(club, date string, page int) string {
	return fmt.Sprintf("%s/%s/grafik?data_grafiku=%s&dyscyplina=1&strona=%d", c.baseURL, url.PathEscape(club), url.QueryEscape(date), page)
}

// FetchSchedule downloads and parses one page. Rows outside the configured
// timeslots are dropped.
func (c *Client) FetchSchedule(ctx context.Context, club, date string, page int) (*Schedule, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	scheduleURL := c.ScheduleURL(club, date, page)
	c.log.Debug().Str("url", scheduleURL).Msg("→ Fetching schedule page")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, scheduleURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrForbidden, scheduleURL)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("kluby.org: %s returned %d", scheduleURL, resp.StatusCode)
	}

	sched, err := ParseSchedule(resp.Body, club, date, page)
	if err != nil {
		return nil, err
	}
	if c.timeslots != nil {
		kept := sched.Slots[:0]
		for _, s := range sched.Slots {
			if c.timeslots[s.Timeslot] {
				kept = append(kept, s)
			}
		}
		sched.Slots = kept
	}

	c.log.Debug().
		Str("club", club).Str("date", date).Int("page", page).
		Int("slots", len(sched.Slots)).
		Msg("→ Parsed schedule page")
	return sched, nil
}

// KeepAlive pings the home page so session cookies stay valid.
func (c *Client) KeepAlive(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
		if err != nil {
			continue
		}
		req.Header.Set("User-Agent", userAgent)
		resp, err := c.http.Do(req)
		if err != nil {
			c.log.Warn().Err(err).Msg("⚠️ Cookie ping failed")
			continue
		}
		resp.Body.Close()
		c.log.Debug().Int("status", resp.StatusCode).Msg("✅ Cookie ping successful")
	}
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if c.jitter <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(rand.Int63n(int64(c.jitter)))):
		return nil
	}
}

// ParseSchedule reads every row whose first cell is a time and collects the
// courts with a "Rezerwuj" link in that row.
func ParseSchedule(r io.Reader, club, date string, page int) (*Schedule, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	bodyStr := string(body)
	if strings.Contains(bodyStr, "widoczny po zalogowaniu") ||
		strings.Contains(bodyStr, "Musisz się zalogować") {
		return nil, ErrLoginRequired
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(bodyStr))
	if err != nil {
		return nil, err
	}

	sched := &Schedule{ClubName: clubName(doc)}
	seen := make(map[string]bool)

	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		slotTime := strings.TrimSpace(cells.First().Text())
		if !strings.Contains(slotTime, ":") {
			return
		}
		slotTime = normalizeTime(slotTime)

		cells.Slice(1, goquery.ToEnd).Each(func(_ int, td *goquery.Selection) {
			if strings.Contains(strings.ToLower(td.Text()), "zarezerwowane") {
				return
			}
			link := td.Find("a").First()
			if link.Length() == 0 || !strings.Contains(strings.ToLower(link.Text()), "rezerwuj") {
				return
			}
			href, ok := link.Attr("href")
			if !ok {
				return
			}
			courtID := courtFromHref(href)
			if courtID == "" || seen[slotTime+"|"+courtID] {
				return
			}
			seen[slotTime+"|"+courtID] = true
			sched.Slots = append(sched.Slots, RawSlot{
				Club:     club,
				Date:     date,
				Page:     page,
				Timeslot: slotTime,
				CourtID:  courtID,
			})
		})
	})

	return sched, nil
}

// courtFromHref takes the second-to-last path segment:
// "/mera/rezerwacja/3/1800" -> "3".
func courtFromHref(href string) string {
	parts := strings.Split(href, "/")
	if len(parts) < 2 {
		return ""
	}
	return strings.TrimSpace(parts[len(parts)-2])
}

// clubName is read from "Nazwa Klubu - Rezerwacje ONLINE | Kluby.org".
func clubName(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if name, _, ok := strings.Cut(title, " - "); ok {
		return strings.TrimSpace(name)
	}
	return ""
}

// normalizeTime pads "8:00" to "08:00".
func normalizeTime(t string) string {
	hour, minute, ok := strings.Cut(strings.TrimSpace(t), ":")
	if !ok {
		return t
	}
	if len(hour) == 1 {
		hour = "0" + hour
	}
	if len(minute) == 1 {
		minute = "0" + minute
	}
	return hour + ":" + minute
}
