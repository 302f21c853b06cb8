package api

import (
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Fiszcz/OLX-flats-notificator/app/database"
	"github.com/Fiszcz/OLX-flats-notificator/app/subscription"
	"github.com/Fiszcz/OLX-flats-notificator/app/tasks"
)

func NewHandler(configCache *subscription.ConfigCache, subRepo database.SubscriptionRepository,
	listingRepo database.ListingRepository, outboxRepo database.OutboxRepository,
	scheduler tasks.TaskSchedulerInterface, cache HealthChecker) *Handler {
	return &Handler{
		configCache: configCache,
		subRepo:     subRepo,
		listingRepo: listingRepo,
		outboxRepo:  outboxRepo,
		scheduler:   scheduler,
		cache:       cache,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]interface{}{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if subscriptionCount, err := h.subRepo.GetSubscriptionCount(); err == nil {
		health["subscriptions"] = subscriptionCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	if h.cache != nil {
		health["cache"] = h.cache.Health(c.Request.Context())
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListSubscriptions(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	sort.Strings(names)

	subscriptions := make([]map[string]interface{}, 0, len(configs))

	for _, name := range names {
		config := configs[name]
		info := map[string]interface{}{
			"name":           config.Name,
			"url":            config.URL,
			"enabled":        config.Settings.Enabled,
			"check_interval": config.CheckInterval().String(),
			"tracking":       config.Settings.Tracking,
			"destinations":   len(config.Transport.Destinations),
		}

		if sub, err := h.subRepo.GetSubscription(name); err == nil && sub != nil {
			info["last_polled_at"] = sub.LastPolledAt
			info["next_poll_at"] = sub.NextPollAt
		}

		if stats, err := h.listingRepo.GetListingStats(name); err == nil {
			info["listings"] = stats.Total
		}

		subscriptions = append(subscriptions, info)
	}

	c.JSON(http.StatusOK, map[string]interface{}{
		"subscriptions": subscriptions,
		"total":         len(subscriptions),
	})
}

func (h *Handler) APIGetSubscriptionListings(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing subscription name parameter"})
		return
	}

	if _, err := h.configCache.GetConfig(name); err != nil {
		slog.Error("Subscription configuration not found", "subscription", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription configuration not found"})
		return
	}

	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	listings, err := h.listingRepo.GetListings(name, limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_listings", "subscription", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	stats, err := h.listingRepo.GetListingStats(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_listing_stats", "subscription", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]map[string]interface{}, 0, len(listings))
	for _, l := range listings {
		item := map[string]interface{}{
			"listing_id":          l.ListingID,
			"title":               l.Title,
			"published_at":        l.PublishedAt,
			"location":            l.Location,
			"rent":                l.RentCents,
			"is_perfect_location": l.IsPerfectLocation,
			"is_worse":            l.IsWorse,
			"reasons":             l.Reasons,
			"notified":            l.Notified,
			"created_at":          l.CreatedAt,
		}
		if l.PriceCents != nil {
			item["price"] = *l.PriceCents
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{
		"subscription": name,
		"listings":     items,
		"stats": gin.H{
			"total":    stats.Total,
			"worse":    stats.Worse,
			"notified": stats.Notified,
		},
	})
}

func (h *Handler) APIPollSubscription(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing subscription name parameter"})
		return
	}

	config, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Subscription configuration not found", "subscription", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription configuration not found"})
		return
	}

	if !config.Settings.Enabled {
		c.JSON(http.StatusConflict, gin.H{"error": "Subscription is disabled"})
		return
	}

	if err := h.scheduler.EnqueuePoll(name); err != nil {
		slog.Error("Error enqueueing poll task", "subscription", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue poll task",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Poll enqueued",
		"subscription": gin.H{
			"name": name,
			"url":  config.URL,
		},
	})
}

func (h *Handler) APIListOutbox(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}

	messages, err := h.outboxRepo.GetPendingMessages(limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_pending_messages", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	items := make([]gin.H, 0, len(messages))
	for _, m := range messages {
		items = append(items, gin.H{
			"id":           m.ID,
			"subscription": m.Subscription,
			"batch_title":  m.BatchTitle,
			"worse":        m.Worse,
			"subject":      m.Subject,
			"html":         m.HTML,
			"attachments":  m.Attachments,
			"listing_ids":  m.ListingIDs,
			"created_at":   m.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": items,
		"total":    len(items),
	})
}

func (h *Handler) APIAckOutboxMessage(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message id"})
		return
	}

	if err := h.outboxRepo.MarkMessageSent(id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Message not found or already sent"})
			return
		}
		slog.Error("Database error", "operation", "mark_message_sent", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
		return 0, false
	}
	return min(limit, maxListLimit), true
}
