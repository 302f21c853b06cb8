package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var _ SubscriptionRepository = (*subscriptionRepository)(nil)

type subscriptionRepository struct {
	db *DB
}

func NewSubscriptionRepository(db *DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// UpsertSubscription registers a subscription or refreshes its URL. Poll
// times survive a URL change.
func (r *subscriptionRepository) UpsertSubscription(name, url string) error {
	_, err := r.db.Exec(r.db.Rebind(`
		INSERT INTO subscriptions (name, url)
		VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET
			url = excluded.url,
			updated_at = CURRENT_TIMESTAMP
	`), name, url)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

// GetSubscription returns nil without an error for an unknown name.
func (r *subscriptionRepository) GetSubscription(name string) (*Subscription, error) {
	var (
		s          Subscription
		lastPolled sql.NullTime
		nextPoll   sql.NullTime
	)

	err := r.db.QueryRow(r.db.Rebind(`
		SELECT name, url, last_polled_at, next_poll_at, created_at, updated_at
		FROM subscriptions
		WHERE name = ?
	`), name).Scan(&s.Name, &s.URL, &lastPolled, &nextPoll, &s.CreatedAt, &s.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	if lastPolled.Valid {
		s.LastPolledAt = &lastPolled.Time
	}
	if nextPoll.Valid {
		s.NextPollAt = &nextPoll.Time
	}

	return &s, nil
}

func (r *subscriptionRepository) UpdatePollTimes(name string, polledAt, nextPollAt time.Time) error {
	res, err := r.db.Exec(r.db.Rebind(`
		UPDATE subscriptions
		SET last_polled_at = ?, next_poll_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE name = ?
	`), polledAt.UTC(), nextPollAt.UTC(), name)
	if err != nil {
		return fmt.Errorf("failed to update poll times: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("subscription %q: %w", name, ErrNotFound)
	}

	return nil
}

func (r *subscriptionRepository) GetSubscriptionCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM subscriptions").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get subscription count: %w", err)
	}
	return count, nil
}
