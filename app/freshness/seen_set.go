package freshness

import (
	"fmt"
	"log/slog"

	"github.com/Fiszcz/OLX-flats-notificator/app/listing"
)

var _ Tracker = (*SeenSet)(nil)

// SeenStore persists seen ids for one subscription.
type SeenStore interface {
	LoadSeen(subscription string) ([]string, error)
	SaveSeen(subscription, id string) error
}

// SeenSet reports a listing as new until its id has been recorded once.
type SeenSet struct {
	subscription string
	ids          map[string]struct{}
	store        SeenStore
}

func NewSeenSet() *SeenSet {
	return &SeenSet{ids: make(map[string]struct{})}
}

// NewPersistentSeenSet restores previously seen ids and writes new ones through.
func NewPersistentSeenSet(subscription string, store SeenStore) (*SeenSet, error) {
	ids, err := store.LoadSeen(subscription)
	if err != nil {
		return nil, fmt.Errorf("failed to load seen listings: %w", err)
	}

	s := &SeenSet{
		subscription: subscription,
		ids:          make(map[string]struct{}, len(ids)),
		store:        store,
	}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}

	slog.Debug("Seen listings restored", "subscription", subscription, "count", len(ids))

	return s, nil
}

func (s *SeenSet) Advance() {}

func (s *SeenSet) IsNew(rec listing.Record) bool {
	return s.IsNewID(rec.ID)
}

func (s *SeenSet) MarkSeen(rec listing.Record) {
	s.RecordSeen(rec.ID)
}

func (s *SeenSet) IsNewID(id string) bool {
	if id == "" {
		return false
	}
	_, seen := s.ids[id]
	return !seen
}

func (s *SeenSet) RecordSeen(id string) {
	if id == "" {
		return
	}
	if _, seen := s.ids[id]; seen {
		return
	}
	s.ids[id] = struct{}{}

	if s.store != nil {
		if err := s.store.SaveSeen(s.subscription, id); err != nil {
			slog.Warn("Failed to persist seen listing", "subscription", s.subscription, "id", id, "error", err)
		}
	}
}

func (s *SeenSet) Len() int {
	return len(s.ids)
}
