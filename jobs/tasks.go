package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/sentimentplus/gateway/internal/sentiment"
	"github.com/sentimentplus/gateway/internal/users"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStatsWarmup primes the sentiment stats cache.
	TaskStatsWarmup = "stats:warmup"
	// TaskUsersCounterSync reconciles per-user review counters with the
	// backend's tallies.
	TaskUsersCounterSync = "users:counter_sync"
)

// NewStatsWarmupTask constructs a stats warmup task.
func NewStatsWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskStatsWarmup, nil)
}

// NewCounterSyncTask constructs a counter reconciliation task.
func NewCounterSyncTask() *asynq.Task {
	return asynq.NewTask(TaskUsersCounterSync, nil)
}

// StatsWarmupJob populates the stats cache ahead of dashboard traffic.
type StatsWarmupJob struct {
	cache  *sentiment.Cache
	client *sentiment.Client
	logger *slog.Logger
}

// NewStatsWarmupJob wires dependencies for the warmup handler.
func NewStatsWarmupJob(cache *sentiment.Cache, client *sentiment.Client, logger *slog.Logger) *StatsWarmupJob {
	return &StatsWarmupJob{cache: cache, client: client, logger: logger}
}

// Handle processes stats warmup tasks.
func (j *StatsWarmupJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil {
		return errors.New("stats warmup: handler not configured")
	}
	j.logger.Info("starting stats warmup")
	if _, err := j.cache.FetchStats(ctx, j.client.Stats); err != nil {
		j.logger.Error("stats warmup", slog.Any("error", err))
		return err
	}
	j.logger.Info("stats warmup complete")
	return nil
}

// CounterSyncJob reconciles review_count and correction_count from the
// backend. The backend owns the review corpus, so the gateway's counters
// are a denormalized copy refreshed by this job.
type CounterSyncJob struct {
	repo   users.Repository
	client *sentiment.Client
	logger *slog.Logger
}

// NewCounterSyncJob wires dependencies for the counter sync handler.
func NewCounterSyncJob(repo users.Repository, client *sentiment.Client, logger *slog.Logger) *CounterSyncJob {
	return &CounterSyncJob{repo: repo, client: client, logger: logger}
}

// Handle processes counter sync tasks. A failure on one user aborts the
// run so the task retries as a whole.
func (j *CounterSyncJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil {
		return errors.New("counter sync: handler not configured")
	}

	records, err := j.repo.List(ctx)
	if err != nil {
		j.logger.Error("counter sync: list users", slog.Any("error", err))
		return err
	}

	var synced atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range records {
		u := records[i]
		g.Go(func() error {
			reviews, err := j.client.Reviews(ctx, sentiment.ReviewsQuery{UserEmail: u.Email})
			if err != nil {
				j.logger.Error("counter sync: fetch reviews", slog.String("email", u.Email), slog.Any("error", err))
				return err
			}
			corrections := countCorrections(reviews.Reviews)
			if reviews.Count == u.ReviewCount && corrections == u.CorrectionCount {
				return nil
			}
			if err := j.repo.SetCounters(ctx, u.Email, reviews.Count, corrections); err != nil {
				j.logger.Error("counter sync: update counters", slog.String("email", u.Email), slog.Any("error", err))
				return err
			}
			synced.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	j.logger.Info("counter sync complete", slog.Int("users", len(records)), slog.Int64("synced", synced.Load()))
	return nil
}

// countCorrections tallies reviews the user has corrected after inference.
func countCorrections(reviews []json.RawMessage) int {
	count := 0
	for _, raw := range reviews {
		var row struct {
			Corrected bool `json:"corrected"`
		}
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		if row.Corrected {
			count++
		}
	}
	return count
}
