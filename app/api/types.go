package api

import (
	"context"

	"github.com/Fiszcz/OLX-flats-notificator/app/database"
	"github.com/Fiszcz/OLX-flats-notificator/app/subscription"
	"github.com/Fiszcz/OLX-flats-notificator/app/tasks"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// HealthChecker reports the state of an optional backing service.
type HealthChecker interface {
	Health(ctx context.Context) map[string]interface{}
}

type Handler struct {
	configCache *subscription.ConfigCache
	subRepo     database.SubscriptionRepository
	listingRepo database.ListingRepository
	outboxRepo  database.OutboxRepository
	scheduler   tasks.TaskSchedulerInterface
	cache       HealthChecker // nil when no cache is configured
}
