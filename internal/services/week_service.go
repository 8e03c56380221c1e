package services

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date form used throughout the game sheets.
const DateLayout = "02/01/2006"

// WeekStore abstracts persistence operations required by WeekService.
type WeekStore interface {
	ListWeekSchedule() ([]WeekEntry, error)
}

// WeekService maps calendar dates onto game week numbers using the
// configured table of week start dates.
type WeekService struct {
	store WeekStore
	now   func() time.Time
	loc   *time.Location
}

func NewWeekService(store WeekStore, loc *time.Location) *WeekService {
	if loc == nil {
		loc = time.UTC
	}
	return &WeekService{
		store: store,
		now:   time.Now,
		loc:   loc,
	}
}

// Resolve returns the week number covering the given DD/MM/YYYY date. An
// empty date means today in the service's timezone. Dates covered by no
// week span resolve to an invalid error naming the valid calendar range.
func (s *WeekService) Resolve(dateStr string) (int, error) {
	if dateStr == "" {
		dateStr = s.now().In(s.loc).Format(DateLayout)
	} else if _, err := time.Parse(DateLayout, dateStr); err != nil {
		return 0, NewInvalidError(fmt.Sprintf("invalid date %q, expected DD/MM/YYYY", dateStr))
	}

	entries, err := s.store.ListWeekSchedule()
	if err != nil {
		return 0, err
	}
	byDate, err := buildWeekDateMap(entries)
	if err != nil {
		return 0, err
	}

	week, ok := byDate[dateStr]
	if !ok {
		return 0, NewInvalidError(fmt.Sprintf(
			"the date %s is outside the game calendar (valid range: %s)", dateStr, scheduleRange(entries)))
	}
	return week, nil
}

// Current resolves today's week number.
func (s *WeekService) Current() (int, error) {
	return s.Resolve("")
}

// buildWeekDateMap expands each schedule entry into its 7-day span. Spans
// are written in table order, so if a misconfigured schedule overlaps, the
// later entry wins for the shared dates.
func buildWeekDateMap(entries []WeekEntry) (map[string]int, error) {
	byDate := make(map[string]int, len(entries)*7)
	for _, e := range entries {
		start, err := time.Parse(DateLayout, e.StartDate)
		if err != nil {
			return nil, NewInvalidError(fmt.Sprintf("week %d has invalid start date %q", e.Week, e.StartDate))
		}
		for d := 0; d < 7; d++ {
			byDate[start.AddDate(0, 0, d).Format(DateLayout)] = e.Week
		}
	}
	return byDate, nil
}

func scheduleRange(entries []WeekEntry) string {
	if len(entries) == 0 {
		return "no weeks configured"
	}
	first := entries[0].StartDate
	last := entries[len(entries)-1].StartDate
	if lastStart, err := time.Parse(DateLayout, last); err == nil {
		last = lastStart.AddDate(0, 0, 6).Format(DateLayout)
	}
	return first + " to " + last
}
