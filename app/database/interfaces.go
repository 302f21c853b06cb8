package database

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

type SubscriptionRepository interface {
	GetSubscription(name string) (*Subscription, error)
	GetSubscriptionCount() (int, error)

	UpsertSubscription(name, url string) error
	UpdatePollTimes(name string, polledAt, nextPollAt time.Time) error
}

type SeenRepository interface {
	LoadSeen(subscription string) ([]string, error)
	SaveSeen(subscription, listingID string) error
}

type ListingRepository interface {
	UpsertListing(listing Listing) error
	GetListings(subscription string, limit int) ([]Listing, error)
	GetListingStats(subscription string) (ListingStats, error)
}

type OutboxRepository interface {
	EnqueueMessage(msg OutboxMessage) (int64, error)
	GetPendingMessages(limit int) ([]OutboxMessage, error)
	MarkMessageSent(id int64) error
}
