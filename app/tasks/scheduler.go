package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Fiszcz/OLX-flats-notificator/app/database"
	"github.com/Fiszcz/OLX-flats-notificator/app/subscription"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	taskQueueSize = 300
	taskTimeout   = 5 * time.Minute
	maxRetryDelay = 30 * time.Second
)

type Scheduler struct {
	configCache *subscription.ConfigCache
	subRepo     database.SubscriptionRepository
	pollers     PollerLookup
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	// subscriptions with a poll task queued or running
	pendingMu sync.Mutex
	pending   map[string]bool
}

func NewScheduler(configCache *subscription.ConfigCache, subRepo database.SubscriptionRepository,
	pollers PollerLookup, interval time.Duration, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if workerCount < 1 {
		workerCount = 1
	}

	return &Scheduler{
		configCache: configCache,
		subRepo:     subRepo,
		pollers:     pollers,
		interval:    interval,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, taskQueueSize),
		pending:     make(map[string]bool),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

// Stop cancels running tasks and waits for the workers. The queue is left
// open so pending retries never send on a closed channel.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

// EnqueuePoll queues an immediate poll of one subscription, ignoring its
// next poll time. A poll that is already queued or running is not doubled.
func (s *Scheduler) EnqueuePoll(name string) error {
	config, err := s.configCache.GetConfig(name)
	if err != nil {
		return err
	}
	if !config.Settings.Enabled {
		return fmt.Errorf("subscription '%s' is disabled", name)
	}
	return s.enqueuePoll(config)
}

func (s *Scheduler) enqueuePoll(config *subscription.Config) error {
	poller, ok := s.pollers(config.Name)
	if !ok {
		return fmt.Errorf("no poller registered for subscription '%s'", config.Name)
	}

	s.pendingMu.Lock()
	if s.pending[config.Name] {
		s.pendingMu.Unlock()
		slog.Debug("Poll already pending", "subscription", config.Name)
		return nil
	}
	s.pending[config.Name] = true
	s.pendingMu.Unlock()

	if err := s.EnqueueTask(NewPollSubscriptionTask(config, poller, s.subRepo)); err != nil {
		s.clearPending(config.Name)
		return err
	}
	return nil
}

func (s *Scheduler) clearPending(name string) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	delete(s.pending, name)
}

func (s *Scheduler) enqueueStartupTasks() {
	configs := s.configCache.GetConfigs()
	if len(configs) == 0 {
		slog.Debug("No subscription configurations found")
		return
	}

	slog.Debug("Processing subscription configurations", "count", len(configs))

	for _, config := range configs {
		syncTask := NewSyncSubscriptionTask(config, s.subRepo)
		if err := s.EnqueueTask(syncTask); err != nil {
			slog.Warn("Failed to enqueue SyncSubscriptionTask", "subscription", config.Name, "error", err)
			continue
		}

		if !config.Settings.Enabled {
			slog.Debug("Subscription disabled, skipping PollSubscriptionTask", "subscription", config.Name)
			continue
		}

		if err := s.enqueuePoll(config); err != nil {
			slog.Warn("Failed to enqueue PollSubscriptionTask", "subscription", config.Name, "error", err)
		}
	}
}

func (s *Scheduler) enqueueTasks() {
	configs := s.configCache.GetEnabledConfigs()
	if len(configs) == 0 {
		slog.Debug("No enabled subscription configurations found")
		return
	}

	for _, config := range configs {
		sub, err := s.subRepo.GetSubscription(config.Name)
		if err != nil {
			slog.Warn("Failed to get subscription from database, skipping", "subscription", config.Name, "error", err)
			continue
		}
		if sub == nil {
			slog.Warn("Subscription not found in database, skipping", "subscription", config.Name)
			continue
		}

		now := time.Now().UTC()
		if sub.NextPollAt != nil && sub.NextPollAt.After(now) {
			slog.Debug("Subscription not due for polling yet", "subscription", config.Name, "next_poll_at", sub.NextPollAt)
			continue
		}

		if err := s.enqueuePoll(config); err != nil {
			slog.Warn("Failed to enqueue PollSubscriptionTask", "subscription", config.Name, "error", err)
		}
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil || !task.CanRetry() {
		if task.GetType() == TaskTypePollSubscription {
			s.clearPending(task.GetSubscription())
		}
	}

	if err != nil {
		slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

		if task.CanRetry() {
			task.IncrementRetryCount()
			retryDelay := time.Duration(1<<uint(task.GetRetryCount()-1)) * time.Second
			if retryDelay > maxRetryDelay {
				retryDelay = maxRetryDelay
			}

			slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subscription", task.GetSubscription(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

			go func() {
				select {
				case <-time.After(retryDelay):
				case <-s.ctx.Done():
					slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
					return
				}
				if retryErr := s.EnqueueTask(task); retryErr != nil {
					slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
					if task.GetType() == TaskTypePollSubscription {
						s.clearPending(task.GetSubscription())
					}
				}
			}()
		} else {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
	}
}
