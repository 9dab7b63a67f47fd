package entities

import (
	"fmt"
	"time"
)

// DayHours is one weekday's open interval in the resource's local timezone,
// expressed as "HH:MM" wall-clock strings.
type DayHours struct {
	Weekday time.Weekday `json:"weekday" db:"weekday"`
	Open    string       `json:"open" db:"open_time"`
	Close   string       `json:"close" db:"close_time"`
}

// Resource is a bookable actor (a seller) scoped to a tenant.
// Its working-hours profile bounds slot generation.
type Resource struct {
	ID           string     `json:"id" db:"id"`
	TenantID     string     `json:"tenant_id" db:"tenant_id"`
	Name         string     `json:"name" db:"name"`
	Timezone     string     `json:"timezone" db:"timezone"`
	WorkingHours []DayHours `json:"working_hours"`
	CalendarID   string     `json:"calendar_id" db:"calendar_id"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Location resolves the resource's IANA timezone
func (r *Resource) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", r.Timezone, err)
	}
	return loc, nil
}

// HoursOn returns the working interval for the calendar day containing
// the given instant, as absolute UTC instants. Daylight-saving shifts are
// handled by resolving the wall-clock times in the resource's timezone.
// An empty slice means the resource does not work that day.
func (r *Resource) HoursOn(day time.Time, loc *time.Location) ([]Interval, error) {
	local := day.In(loc)
	var intervals []Interval
	for _, dh := range r.WorkingHours {
		if dh.Weekday != local.Weekday() {
			continue
		}
		open, err := atWallClock(local, dh.Open, loc)
		if err != nil {
			return nil, err
		}
		close_, err := atWallClock(local, dh.Close, loc)
		if err != nil {
			return nil, err
		}
		if !close_.After(open) {
			continue
		}
		intervals = append(intervals, NewInterval(open, close_))
	}
	return intervals, nil
}

// atWallClock anchors an "HH:MM" wall-clock string to the date of ref in loc
func atWallClock(ref time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &hour, &minute); err != nil {
		return time.Time{}, fmt.Errorf("invalid wall-clock time %q: %w", hhmm, err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid wall-clock time %q", hhmm)
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, loc), nil
}
