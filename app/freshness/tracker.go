package freshness

import (
	"github.com/Fiszcz/OLX-flats-notificator/app/listing"
)

// Tracker decides whether a polled listing has been reported before.
// Implementations are single-writer: one intake cycle at a time.
type Tracker interface {
	// Advance marks the start of a new poll.
	Advance()
	IsNew(rec listing.Record) bool
	// MarkSeen is called once a record needs no more work: right after
	// IsNew for records that are not new, after processing for new ones
	// (including those whose processing failed). New records never marked
	// are reported again by the next poll.
	MarkSeen(rec listing.Record)
}

// Primer is implemented by trackers that need a starting point taken from
// the first page they ever see.
type Primer interface {
	Primed() bool
	PrimeFrom(records []listing.Record)
}

const (
	ModeSet    = "set"
	ModeWindow = "window"
)
