package tasks

import (
	"context"

	"github.com/Fiszcz/OLX-flats-notificator/app/intake"
)

// TaskSchedulerInterface defines the task scheduling operations used by the
// main application and the API.
// Example usage:
//
//	scheduler := NewScheduler(configCache, subRepo, lookup, interval, workers)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueuePoll("mokotow")
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
	EnqueuePoll(subscription string) error
}

// Poller runs one intake cycle for a subscription.
type Poller interface {
	RunCycle(ctx context.Context) (intake.CycleReport, error)
}

// PollerLookup resolves the poller of a subscription.
type PollerLookup func(subscription string) (Poller, bool)
