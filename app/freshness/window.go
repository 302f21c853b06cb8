package freshness

import (
	"time"

	"github.com/Fiszcz/OLX-flats-notificator/app/listing"
)

var (
	_ Tracker = (*Window)(nil)
	_ Primer  = (*Window)(nil)
)

// Window is the time-cursor model: a listing is new when its published time
// is later than the cursor, or equal to it with a title not yet recorded at
// that time.
//
// Published labels only carry a clock and a today/yesterday flag, so each
// poll resolves them against the calendar day the poll started on. A
// listing posted at 00:30 therefore sorts after one from 23:50 the day
// before, and the cursor keeps moving forward across midnight.
//
// Listings reported new but not marked seen before the next Advance hold the
// cursor back, so an interrupted poll reports them again.
type Window struct {
	now    func() time.Time
	day    time.Time
	primed bool
	cursor time.Time

	// records at or after the cursor, keyed by time and title
	seen    map[string]time.Time
	pending map[string]time.Time
}

func NewWindow() *Window {
	return newWindow(time.Now)
}

// NewWindowAt starts the cursor at the given time of the current day.
func NewWindowAt(at listing.PublishedAt, now func() time.Time) *Window {
	w := newWindow(now)
	w.Advance()
	w.cursor = w.resolve(at)
	w.primed = true
	return w
}

func newWindow(now func() time.Time) *Window {
	if now == nil {
		now = time.Now
	}
	return &Window{
		now:     now,
		seen:    make(map[string]time.Time),
		pending: make(map[string]time.Time),
	}
}

func (w *Window) Primed() bool {
	return w.primed
}

// PrimeFrom starts the cursor one minute after the newest record so that
// nothing already on the page is reported.
func (w *Window) PrimeFrom(records []listing.Record) {
	if w.day.IsZero() {
		w.Advance()
	}

	var newest time.Time
	for _, r := range records {
		if !r.PublishedAt.Valid {
			continue
		}
		if t := w.resolve(r.PublishedAt); t.After(newest) {
			newest = t
		}
	}
	if newest.IsZero() {
		return
	}

	w.cursor = newest.Add(time.Minute)
	w.primed = true
}

// Advance commits the previous poll. The cursor moves to the newest record
// marked seen, or back to the oldest record that was reported but never
// marked.
func (w *Window) Advance() {
	next := w.cursor
	for _, t := range w.seen {
		if t.After(next) {
			next = t
		}
	}
	for _, t := range w.pending {
		if t.Before(next) {
			next = t
		}
	}

	for key, t := range w.seen {
		if t.Before(next) {
			delete(w.seen, key)
		}
	}
	clear(w.pending)

	w.cursor = next
	now := w.now()
	y, m, d := now.Date()
	w.day = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

func (w *Window) IsNew(rec listing.Record) bool {
	t, key, ok := w.locate(rec)
	if !ok {
		return false
	}
	if _, seen := w.seen[key]; seen {
		return false
	}
	w.pending[key] = t
	return true
}

func (w *Window) MarkSeen(rec listing.Record) {
	t, key, ok := w.locate(rec)
	if !ok {
		return
	}
	w.seen[key] = t
	delete(w.pending, key)
}

// locate reports false for records the window can never report: unprimed,
// missing data, or older than the cursor.
func (w *Window) locate(rec listing.Record) (time.Time, string, bool) {
	if !w.primed || !rec.PublishedAt.Valid || rec.Title == "" {
		return time.Time{}, "", false
	}
	t := w.resolve(rec.PublishedAt)
	if t.Before(w.cursor) {
		return time.Time{}, "", false
	}
	return t, t.Format("2006-01-02T15:04") + "|" + rec.Title, true
}

func (w *Window) resolve(at listing.PublishedAt) time.Time {
	day := w.day
	if at.PreviousDay {
		day = day.AddDate(0, 0, -1)
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, at.Hour, at.Minute, 0, 0, day.Location())
}
