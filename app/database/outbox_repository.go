package database

import (
	"database/sql"
	"fmt"
)

var _ OutboxRepository = (*outboxRepository)(nil)

type outboxRepository struct {
	db *DB
}

func NewOutboxRepository(db *DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) EnqueueMessage(msg OutboxMessage) (int64, error) {
	attachments, err := encodeStrings(msg.Attachments)
	if err != nil {
		return 0, fmt.Errorf("failed to encode attachments: %w", err)
	}
	listingIDs, err := encodeStrings(msg.ListingIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to encode listing ids: %w", err)
	}

	var id int64
	err = r.db.QueryRow(r.db.Rebind(`
		INSERT INTO outbox (subscription, batch_title, worse, subject, html, attachments, listing_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), msg.Subscription, msg.BatchTitle, msg.Worse, msg.Subject, msg.HTML, attachments, listingIDs).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue message: %w", err)
	}

	return id, nil
}

// GetPendingMessages returns unsent messages, oldest first.
func (r *outboxRepository) GetPendingMessages(limit int) ([]OutboxMessage, error) {
	rows, err := r.db.Query(r.db.Rebind(`
		SELECT id, subscription, batch_title, worse, subject, html, attachments, listing_ids, created_at, sent_at
		FROM outbox
		WHERE sent_at IS NULL
		ORDER BY id
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending messages: %w", err)
	}
	defer rows.Close()

	var messages []OutboxMessage
	for rows.Next() {
		var (
			m           OutboxMessage
			attachments string
			listingIDs  string
			sentAt      sql.NullTime
		)
		err := rows.Scan(&m.ID, &m.Subscription, &m.BatchTitle, &m.Worse, &m.Subject, &m.HTML,
			&attachments, &listingIDs, &m.CreatedAt, &sentAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox row: %w", err)
		}
		if m.Attachments, err = decodeStrings(attachments); err != nil {
			return nil, fmt.Errorf("failed to decode attachments: %w", err)
		}
		if m.ListingIDs, err = decodeStrings(listingIDs); err != nil {
			return nil, fmt.Errorf("failed to decode listing ids: %w", err)
		}
		if sentAt.Valid {
			m.SentAt = &sentAt.Time
		}
		messages = append(messages, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox rows: %w", err)
	}

	return messages, nil
}

func (r *outboxRepository) MarkMessageSent(id int64) error {
	res, err := r.db.Exec(r.db.Rebind(`
		UPDATE outbox SET sent_at = CURRENT_TIMESTAMP WHERE id = ? AND sent_at IS NULL
	`), id)
	if err != nil {
		return fmt.Errorf("failed to mark message sent: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("pending message %d: %w", id, ErrNotFound)
	}

	return nil
}
