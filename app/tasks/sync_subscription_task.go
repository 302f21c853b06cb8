package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Fiszcz/OLX-flats-notificator/app/database"
	"github.com/Fiszcz/OLX-flats-notificator/app/subscription"
)

// SyncSubscriptionTask registers a subscription config in the database so its
// poll times can be tracked.
type SyncSubscriptionTask struct {
	Task
	Config  *subscription.Config
	subRepo database.SubscriptionRepository
}

func NewSyncSubscriptionTask(config *subscription.Config, subRepo database.SubscriptionRepository) *SyncSubscriptionTask {
	return &SyncSubscriptionTask{
		Task:    NewTask(TaskTypeSyncSubscription, config.Name),
		Config:  config,
		subRepo: subRepo,
	}
}

func (t *SyncSubscriptionTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := t.subRepo.UpsertSubscription(t.Config.Name, t.Config.URL); err != nil {
		slog.Error("Task failed", "type", "SyncSubscription", "subscription", t.Subscription, "error", err)
		return fmt.Errorf("failed to sync subscription to database: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncSubscription",
		"subscription", t.Subscription,
		"duration", t.GetDuration())

	return nil
}
