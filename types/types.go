package types

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Step is the size of one reservable timeslot on kluby.org.
const Step Clock = 30

var (
	ErrInvalidTimeslot       = errors.New("invalid timeslot")
	ErrInvalidBookingRequest = errors.New("invalid booking request")
	ErrUnknownCourt          = errors.New("unknown court")
)

// Clock is a time of day in minutes since midnight.
type Clock int

// ParseClock accepts "18:00" as well as "8:00".
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("parse clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("parse clock %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("parse clock %q: bad minute", s)
	}
	c := Clock(h*60 + m)
	if c > 24*60 {
		return 0, fmt.Errorf("parse clock %q: past midnight", s)
	}
	return c, nil
}

// MustClock is ParseClock for literals.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// OnGrid reports whether c starts a whole timeslot.
func (c Clock) OnGrid() bool {
	return c >= 0 && c%Step == 0
}

// Surface of a court.
type Surface string

const (
	SurfaceClay    Surface = "clay"
	SurfaceHard    Surface = "hard"
	SurfaceUnknown Surface = ""
)

func ParseSurface(s string) (Surface, error) {
	switch Surface(strings.ToLower(strings.TrimSpace(s))) {
	case SurfaceClay:
		return SurfaceClay, nil
	case SurfaceHard:
		return SurfaceHard, nil
	}
	return SurfaceUnknown, fmt.Errorf("unknown surface %q", s)
}

// ClubRef identifies a club on kluby.org, e.g. {"mera", "Mera Tennis Club"}.
type ClubRef struct {
	Slug string
	Name string
}

func (c ClubRef) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Slug
}

// CourtRef is a court resolved against the catalog.
type CourtRef struct {
	ID            string // court id from the booking link
	Surface       Surface
	Roofed        bool
	DisplayNumber int
	Known         bool
}

// UnknownCourtRef is the fallback used when the catalog has no row for id.
func UnknownCourtRef(id string) CourtRef {
	return CourtRef{ID: id}
}

func (c CourtRef) DisplayName() string {
	if !c.Known {
		return fmt.Sprintf("unknown court (%s)", c.ID)
	}
	return fmt.Sprintf("Court %d", c.DisplayNumber)
}

// Less orders courts by display number, unknown courts last.
func (c CourtRef) Less(o CourtRef) bool {
	if c.Known != o.Known {
		return c.Known
	}
	if c.DisplayNumber != o.DisplayNumber {
		return c.DisplayNumber < o.DisplayNumber
	}
	return c.ID < o.ID
}

// SortCourts sorts in display order.
func SortCourts(courts []CourtRef) {
	sort.Slice(courts, func(i, j int) bool { return courts[i].Less(courts[j]) })
}

// AvailabilityRecord is one free court at one timeslot.
type AvailabilityRecord struct {
	Club     ClubRef
	Date     string // YYYY-MM-DD
	Timeslot Clock
	Court    CourtRef
}

// MergedInterval is a maximal run of free timeslots, [Start, End).
type MergedInterval struct {
	Club  ClubRef
	Date  string
	Court CourtRef
	Start Clock
	End   Clock
}

// Window is an exact [Start, End) candidate.
type Window struct {
	Start Clock
	End   Clock
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}

// BookingRequest is what a user wants to play.
type BookingRequest struct {
	ID       int64
	ChatID   int64
	Date     string
	From     Clock
	To       Clock
	Duration Clock // minutes
	Quantity int
	Surfaces []Surface
	Roofed   []bool
}

// Validate checks the invariants the matcher relies on.
func (r BookingRequest) Validate() error {
	if _, err := time.Parse(time.DateOnly, r.Date); err != nil {
		return fmt.Errorf("%w: bad date %q", ErrInvalidBookingRequest, r.Date)
	}
	if r.From >= r.To {
		return fmt.Errorf("%w: window %s-%s is empty", ErrInvalidBookingRequest, r.From, r.To)
	}
	if r.Duration <= 0 || r.Duration%Step != 0 {
		return fmt.Errorf("%w: duration %dm is not a positive multiple of %dm", ErrInvalidBookingRequest, int(r.Duration), int(Step))
	}
	if r.Quantity < 1 {
		return fmt.Errorf("%w: quantity %d < 1", ErrInvalidBookingRequest, r.Quantity)
	}
	return nil
}

// Accepts applies the surface and roof filters. An empty filter, or one
// listing every value, lets everything through.
func (r BookingRequest) Accepts(c CourtRef) bool {
	if !surfaceFilterOpen(r.Surfaces) && !containsSurface(r.Surfaces, c.Surface) {
		return false
	}
	if !roofFilterOpen(r.Roofed) {
		if !c.Known {
			return false
		}
		if !containsBool(r.Roofed, c.Roofed) {
			return false
		}
	}
	return true
}

func (r BookingRequest) String() string {
	s := fmt.Sprintf("%s %s-%s, %dm x%d", r.Date, r.From, r.To, int(r.Duration), r.Quantity)
	if !surfaceFilterOpen(r.Surfaces) {
		names := make([]string, len(r.Surfaces))
		for i, sf := range r.Surfaces {
			names[i] = string(sf)
		}
		s += ", " + strings.Join(names, "/")
	}
	if !roofFilterOpen(r.Roofed) {
		if r.Roofed[0] {
			s += ", indoor"
		} else {
			s += ", outdoor"
		}
	}
	return s
}

func surfaceFilterOpen(f []Surface) bool {
	return len(f) == 0 || (containsSurface(f, SurfaceClay) && containsSurface(f, SurfaceHard))
}

func roofFilterOpen(f []bool) bool {
	return len(f) == 0 || (containsBool(f, true) && containsBool(f, false))
}

func containsSurface(f []Surface, s Surface) bool {
	for _, v := range f {
		if v == s {
			return true
		}
	}
	return false
}

func containsBool(f []bool, b bool) bool {
	for _, v := range f {
		if v == b {
			return true
		}
	}
	return false
}

// CourtMatch is one exact window with the courts offering it.
type CourtMatch struct {
	Window Window
	Courts []CourtRef
}

// ClubMatch groups windows of one club.
type ClubMatch struct {
	Club    ClubRef
	Windows []CourtMatch
}

// MatchResult holds the qualifying windows for one request, in display order.
type MatchResult struct {
	Clubs []ClubMatch
}

func (m MatchResult) Empty() bool {
	return len(m.Clubs) == 0
}

// EntryStatus is the outcome of one request in a report.
type EntryStatus string

const (
	StatusMatched EntryStatus = "matched"
	StatusNoSlots EntryStatus = "no_slots"
	StatusInvalid EntryStatus = "invalid"
)

// ReportEntry is the result for one booking request.
type ReportEntry struct {
	Request BookingRequest
	Status  EntryStatus
	Result  MatchResult
	Err     error
}

// Report is the ordered batch result.
type Report struct {
	Entries []ReportEntry
}
