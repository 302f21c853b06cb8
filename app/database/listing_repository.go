package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

var _ ListingRepository = (*listingRepository)(nil)

type listingRepository struct {
	db *DB
}

func NewListingRepository(db *DB) ListingRepository {
	return &listingRepository{db: db}
}

// UpsertListing keeps one row per listing and subscription. A later
// classification overwrites the earlier one but never clears notified.
func (r *listingRepository) UpsertListing(l Listing) error {
	reasons, err := encodeStrings(l.Reasons)
	if err != nil {
		return fmt.Errorf("failed to encode reasons: %w", err)
	}

	var price sql.NullInt64
	if l.PriceCents != nil {
		price = sql.NullInt64{Int64: *l.PriceCents, Valid: true}
	}

	_, err = r.db.Exec(r.db.Rebind(`
		INSERT INTO listings (
			subscription, listing_id, title, published_at, location,
			rent_cents, price_cents, is_perfect_location, is_worse, reasons, notified
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (subscription, listing_id) DO UPDATE SET
			title = excluded.title,
			published_at = excluded.published_at,
			location = excluded.location,
			rent_cents = excluded.rent_cents,
			price_cents = excluded.price_cents,
			is_perfect_location = excluded.is_perfect_location,
			is_worse = excluded.is_worse,
			reasons = excluded.reasons,
			notified = listings.notified OR excluded.notified
	`), l.Subscription, l.ListingID, l.Title, l.PublishedAt, l.Location,
		l.RentCents, price, l.IsPerfectLocation, l.IsWorse, reasons, l.Notified)
	if err != nil {
		return fmt.Errorf("failed to upsert listing: %w", err)
	}

	return nil
}

// GetListings returns the newest listings first.
func (r *listingRepository) GetListings(subscription string, limit int) ([]Listing, error) {
	rows, err := r.db.Query(r.db.Rebind(`
		SELECT id, subscription, listing_id, title, published_at, location,
		       rent_cents, price_cents, is_perfect_location, is_worse, reasons, notified, created_at
		FROM listings
		WHERE subscription = ?
		ORDER BY id DESC
		LIMIT ?
	`), subscription, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get listings: %w", err)
	}
	defer rows.Close()

	var listings []Listing
	for rows.Next() {
		var (
			l       Listing
			price   sql.NullInt64
			reasons string
		)
		err := rows.Scan(&l.ID, &l.Subscription, &l.ListingID, &l.Title, &l.PublishedAt, &l.Location,
			&l.RentCents, &price, &l.IsPerfectLocation, &l.IsWorse, &reasons, &l.Notified, &l.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan listing row: %w", err)
		}
		if price.Valid {
			l.PriceCents = &price.Int64
		}
		if l.Reasons, err = decodeStrings(reasons); err != nil {
			return nil, fmt.Errorf("failed to decode reasons: %w", err)
		}
		listings = append(listings, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listing rows: %w", err)
	}

	return listings, nil
}

func (r *listingRepository) GetListingStats(subscription string) (ListingStats, error) {
	var stats ListingStats
	err := r.db.QueryRow(r.db.Rebind(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN is_worse THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN notified THEN 1 ELSE 0 END), 0)
		FROM listings
		WHERE subscription = ?
	`), subscription).Scan(&stats.Total, &stats.Worse, &stats.Notified)
	if err != nil {
		return ListingStats{}, fmt.Errorf("failed to get listing stats: %w", err)
	}
	return stats, nil
}

func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeStrings(data string) ([]string, error) {
	if data == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(data), &values); err != nil {
		return nil, err
	}
	return values, nil
}
