package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/shahid-2020/candlesheet/internal/clock"
)

type day struct {
	year  int
	month time.Month
	day   int
}

func dayOf(t time.Time) day {
	t = t.In(clock.IST)
	return day{year: t.Year(), month: t.Month(), day: t.Day()}
}

// Calendar answers whether a date is an exchange holiday. The holiday list is
// fixed at construction and has to be refreshed by hand every year.
type Calendar struct {
	holidays map[day]struct{}
	years    map[int]struct{}
}

func New(holidays []time.Time) *Calendar {
	c := &Calendar{
		holidays: make(map[day]struct{}, len(holidays)),
		years:    make(map[int]struct{}),
	}
	for _, h := range holidays {
		d := dayOf(h)
		c.holidays[d] = struct{}{}
		c.years[d.year] = struct{}{}
	}
	return c
}

// IsHoliday reports whether t falls on a listed holiday, judged by its IST
// calendar date.
func (c *Calendar) IsHoliday(t time.Time) bool {
	if c == nil {
		return false
	}
	_, ok := c.holidays[dayOf(t)]
	return ok
}

// Covers reports whether any holiday is listed for year.
func (c *Calendar) Covers(year int) bool {
	if c == nil {
		return false
	}
	_, ok := c.years[year]
	return ok
}

func (c *Calendar) Len() int {
	if c == nil {
		return 0
	}
	return len(c.holidays)
}

// IsWeekend reports whether t is a Saturday or Sunday in IST.
func IsWeekend(t time.Time) bool {
	switch t.In(clock.IST).Weekday() {
	case time.Saturday, time.Sunday:
		return true
	default:
		return false
	}
}

// ParseDates parses YYYY-MM-DD strings into IST midnights.
func ParseDates(values []string) ([]time.Time, error) {
	out := make([]time.Time, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		t, err := time.ParseInLocation(time.DateOnly, v, clock.IST)
		if err != nil {
			return nil, fmt.Errorf("invalid holiday %q: %w", v, err)
		}
		out = append(out, t)
	}
	return out, nil
}
