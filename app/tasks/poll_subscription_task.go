package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Fiszcz/OLX-flats-notificator/app/database"
	"github.com/Fiszcz/OLX-flats-notificator/app/intake"
	"github.com/Fiszcz/OLX-flats-notificator/app/subscription"
)

type PollSubscriptionTask struct {
	Task
	Config  *subscription.Config
	poller  Poller
	subRepo database.SubscriptionRepository
}

func NewPollSubscriptionTask(config *subscription.Config, poller Poller, subRepo database.SubscriptionRepository) *PollSubscriptionTask {
	return &PollSubscriptionTask{
		Task:    NewTask(TaskTypePollSubscription, config.Name),
		Config:  config,
		poller:  poller,
		subRepo: subRepo,
	}
}

func (t *PollSubscriptionTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.Config.Settings.Enabled {
		slog.Debug("Subscription disabled, skipping", "subscription", t.Subscription)
		return nil
	}

	report, err := t.poller.RunCycle(ctx)
	if errors.Is(err, intake.ErrCycleInProgress) {
		slog.Debug("Previous cycle still running, skipping", "subscription", t.Subscription)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to poll subscription: %w", err)
	}

	// the cycle already ran, so a bookkeeping failure must not trigger a retry
	if err := t.updatePollTimes(); err != nil {
		slog.Warn("Failed to update poll times", "subscription", t.Subscription, "error", err)
	}

	slog.Info("Task completed",
		"type", "PollSubscription",
		"subscription", t.Subscription,
		"duration", t.GetDuration(),
		"pages", report.Pages,
		"total", report.Polled,
		"new", report.New,
		"skipped", report.DetailFailures,
		"worse", report.Worse,
		"batches", report.Batches,
		"unprocessed", report.Unprocessed,
		"dispatch_failed", report.DispatchErr != nil)

	return nil
}

func (t *PollSubscriptionTask) updatePollTimes() error {
	now := time.Now().UTC()
	next := now.Add(t.Config.CheckInterval())

	err := t.subRepo.UpdatePollTimes(t.Subscription, now, next)
	if errors.Is(err, database.ErrNotFound) {
		if err := t.subRepo.UpsertSubscription(t.Config.Name, t.Config.URL); err != nil {
			return err
		}
		err = t.subRepo.UpdatePollTimes(t.Subscription, now, next)
	}
	return err
}
