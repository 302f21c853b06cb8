package database

import (
	"time"
)

type Subscription struct {
	Name         string // derived from the configuration filename
	URL          string
	LastPolledAt *time.Time
	NextPollAt   *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Listing is a classified listing as it was seen by one subscription.
type Listing struct {
	ID                int64
	Subscription      string
	ListingID         string // canonical listing URL
	Title             string
	PublishedAt       string // "HH:MM" label from the index page
	Location          string
	RentCents         int64
	PriceCents        *int64
	IsPerfectLocation bool
	IsWorse           bool
	Reasons           []string
	Notified          bool
	CreatedAt         time.Time
}

type ListingStats struct {
	Total    int
	Worse    int
	Notified int
}

type OutboxMessage struct {
	ID           int64
	Subscription string
	BatchTitle   string
	Worse        bool
	Subject      string
	HTML         string
	Attachments  []string
	ListingIDs   []string
	CreatedAt    time.Time
	SentAt       *time.Time
}
