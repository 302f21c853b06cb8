package listing

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const todayMarker = "dzisiaj"

// PublishedAt is the time-of-day label an index page prints next to a listing.
// Anything not marked as today is treated as the previous day.
type PublishedAt struct {
	Hour        int
	Minute      int
	PreviousDay bool
	Valid       bool
}

// ParsePublishedAt reads labels such as "dzisiaj 10:15" or "wczoraj 22:00".
// A bare "HH:MM" is taken as today.
func ParsePublishedAt(text string) (PublishedAt, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return PublishedAt{}, fmt.Errorf("empty published time")
	}

	clock := fields[len(fields)-1]
	hourText, minuteText, ok := strings.Cut(clock, ":")
	if !ok {
		return PublishedAt{}, fmt.Errorf("invalid published time %q", text)
	}

	hour, err := strconv.Atoi(hourText)
	if err != nil || hour < 0 || hour > 23 {
		return PublishedAt{}, fmt.Errorf("invalid hour in published time %q", text)
	}
	minute, err := strconv.Atoi(minuteText)
	if err != nil || minute < 0 || minute > 59 {
		return PublishedAt{}, fmt.Errorf("invalid minute in published time %q", text)
	}

	previousDay := false
	if len(fields) > 1 {
		previousDay = !strings.EqualFold(fields[0], todayMarker)
	}

	return PublishedAt{Hour: hour, Minute: minute, PreviousDay: previousDay, Valid: true}, nil
}

// PublishedAtFromTime converts an absolute timestamp relative to now.
func PublishedAtFromTime(t, now time.Time) PublishedAt {
	t = t.In(now.Location())
	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()

	return PublishedAt{
		Hour:        t.Hour(),
		Minute:      t.Minute(),
		PreviousDay: ty != ny || tm != nm || td != nd,
		Valid:       true,
	}
}

// AddMinutes shifts the clock, wrapping around midnight.
func (p PublishedAt) AddMinutes(n int) PublishedAt {
	total := ((p.Hour*60+p.Minute+n)%(24*60) + 24*60) % (24 * 60)
	p.Hour = total / 60
	p.Minute = total % 60
	return p
}

func (p PublishedAt) String() string {
	if !p.Valid {
		return "unknown"
	}
	return fmt.Sprintf("%02d:%02d", p.Hour, p.Minute)
}
