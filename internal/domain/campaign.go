package domain

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"
)

var ErrInvalidCampaign = errors.New("invalid campaign")

// Campaign is a fixed window of daily promotional slots. Day 1 is Start's
// calendar date in Location.
type Campaign struct {
	Start    time.Time
	Days     int
	Location *time.Location
}

// NewCampaign parses a YYYY-MM-DD start date in the named time zone.
func NewCampaign(start string, days int, timezone string) (Campaign, error) {
	if days <= 0 {
		return Campaign{}, fmt.Errorf("%w: days must be positive", ErrInvalidCampaign)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Campaign{}, fmt.Errorf("%w: timezone %q: %v", ErrInvalidCampaign, timezone, err)
	}
	date, err := time.ParseInLocation("2006-01-02", start, loc)
	if err != nil {
		return Campaign{}, fmt.Errorf("%w: start %q: %v", ErrInvalidCampaign, start, err)
	}
	return Campaign{Start: date, Days: days, Location: loc}, nil
}

// Year is the campaign year claims are recorded under.
func (c Campaign) Year() int32 {
	return int32(c.Start.Year())
}

// ValidDay reports whether day is a slot of the campaign.
func (c Campaign) ValidDay(day int) bool {
	return day >= 1 && day <= c.Days
}

// DayOn returns the slot open at t, if any.
func (c Campaign) DayOn(t time.Time) (int, bool) {
	local := t.In(c.Location)
	sy, sm, sd := c.Start.Date()
	ly, lm, ld := local.Date()
	start := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	today := time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC)
	if today.Before(start) {
		return 0, false
	}
	day := int(today.Sub(start)/(24*time.Hour)) + 1
	if !c.ValidDay(day) {
		return 0, false
	}
	return day, true
}

// EndOfDay is the last second of t's calendar day in the campaign zone.
func (c Campaign) EndOfDay(t time.Time) time.Time {
	y, m, d := t.In(c.Location).Date()
	return time.Date(y, m, d, 23, 59, 59, 0, c.Location)
}
