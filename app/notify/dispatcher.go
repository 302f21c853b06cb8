package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Fiszcz/OLX-flats-notificator/app/database"
)

// Dispatcher hands batches to whatever delivers them. A failed dispatch is
// not retried by the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, subscription string, batches []Batch) error
}

var (
	_ Dispatcher = (*LogDispatcher)(nil)
	_ Dispatcher = (*OutboxDispatcher)(nil)
	_ Dispatcher = MultiDispatcher(nil)
)

type LogDispatcher struct{}

func NewLogDispatcher() *LogDispatcher {
	return &LogDispatcher{}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, subscription string, batches []Batch) error {
	for _, b := range batches {
		subjects := make([]string, 0, len(b.Messages))
		for _, m := range b.Messages {
			subjects = append(subjects, m.Subject)
		}
		slog.Info("Notification batch",
			"subscription", subscription,
			"title", b.Title,
			"worse", b.Worse,
			"messages", len(b.Messages),
			"subjects", subjects)
	}
	return nil
}

// OutboxDispatcher stores messages for an external mailer to pick up.
type OutboxDispatcher struct {
	outboxRepo database.OutboxRepository
}

func NewOutboxDispatcher(outboxRepo database.OutboxRepository) *OutboxDispatcher {
	return &OutboxDispatcher{outboxRepo: outboxRepo}
}

func (d *OutboxDispatcher) Dispatch(ctx context.Context, subscription string, batches []Batch) error {
	for _, b := range batches {
		for _, m := range b.Messages {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			attachments := make([]string, 0, len(m.Attachments))
			for _, a := range m.Attachments {
				attachments = append(attachments, a.Path)
			}

			_, err := d.outboxRepo.EnqueueMessage(database.OutboxMessage{
				Subscription: subscription,
				BatchTitle:   b.Title,
				Worse:        b.Worse,
				Subject:      m.Subject,
				HTML:         m.HTML,
				Attachments:  attachments,
				ListingIDs:   m.ListingIDs,
			})
			if err != nil {
				return fmt.Errorf("failed to enqueue message %q: %w", m.Subject, err)
			}
		}
	}
	return nil
}

// MultiDispatcher sends to every dispatcher and joins their errors.
type MultiDispatcher []Dispatcher

func (md MultiDispatcher) Dispatch(ctx context.Context, subscription string, batches []Batch) error {
	var errs []error
	for _, d := range md {
		if err := d.Dispatch(ctx, subscription, batches); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
