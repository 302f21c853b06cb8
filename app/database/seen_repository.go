package database

import (
	"fmt"
)

var _ SeenRepository = (*seenRepository)(nil)

type seenRepository struct {
	db *DB
}

func NewSeenRepository(db *DB) SeenRepository {
	return &seenRepository{db: db}
}

func (r *seenRepository) LoadSeen(subscription string) ([]string, error) {
	rows, err := r.db.Query(r.db.Rebind(`
		SELECT listing_id FROM seen_listings WHERE subscription = ? ORDER BY seen_at
	`), subscription)
	if err != nil {
		return nil, fmt.Errorf("failed to load seen listings: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan seen listing: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating seen listings: %w", err)
	}

	return ids, nil
}

func (r *seenRepository) SaveSeen(subscription, listingID string) error {
	_, err := r.db.Exec(r.db.Rebind(`
		INSERT INTO seen_listings (subscription, listing_id)
		VALUES (?, ?)
		ON CONFLICT (subscription, listing_id) DO NOTHING
	`), subscription, listingID)
	if err != nil {
		return fmt.Errorf("failed to save seen listing: %w", err)
	}
	return nil
}
