package commute

import (
	"sync"
	"time"
)

// DepartureTime is the next occurrence of a weekday and clock time. Commute
// lookups depart at that moment so results do not depend on when a listing
// happened to be polled.
type DepartureTime struct {
	mu   sync.Mutex
	next time.Time
	now  func() time.Time
}

// NewDepartureTime picks the nearest matching weekday after today; a
// departure on today's weekday moves to next week.
func NewDepartureTime(weekday time.Weekday, hour, minute int, now func() time.Time) *DepartureTime {
	if now == nil {
		now = time.Now
	}

	today := now()
	days := int(weekday) - int(today.Weekday())
	if days <= 0 {
		days += 7
	}

	y, m, d := today.Date()
	next := time.Date(y, m, d+days, hour, minute, 0, 0, today.Location())

	return &DepartureTime{next: next, now: now}
}

// Next rolls forward by whole weeks once the departure has passed.
func (d *DepartureTime) Next() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for !d.next.After(now) {
		d.next = d.next.AddDate(0, 0, 7)
	}
	return d.next
}
