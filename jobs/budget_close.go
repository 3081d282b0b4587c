package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-assets/internal/budget"
	jobmetrics "github.com/odyssey-erp/odyssey-assets/internal/jobs"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

// PeriodCloser closes expired budget periods.
type PeriodCloser interface {
	CloseExpiredPeriods(ctx context.Context, today time.Time) (budget.CloseResult, error)
}

// BudgetCloseJob runs the period auto-close sweep under a cluster-wide lock.
type BudgetCloseJob struct {
	Closer  PeriodCloser
	Locker  *redislock.Client
	LockTTL time.Duration
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewBudgetCloseJob constructs the job handler.
func NewBudgetCloseJob(closer PeriodCloser, locker *redislock.Client, lockTTL time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *BudgetCloseJob {
	return &BudgetCloseJob{Closer: closer, Locker: locker, LockTTL: lockTTL, Logger: logger, Metrics: metrics}
}

// Handle executes one sweep. A run that finds the lock taken is a no-op.
func (j *BudgetCloseJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Closer == nil || j.Locker == nil {
		return errors.New("budget close: dependencies not configured")
	}
	today, err := parseClosePayload(task.Payload())
	if err != nil {
		j.log().Error("decode payload", slog.Any("error", err))
		return fmt.Errorf("budget close: %v: %w", err, asynq.SkipRetry)
	}

	lock, err := j.Locker.Obtain(ctx, shared.JobLockKey(TaskBudgetCloseExpired), j.lockTTL(), nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		j.log().Info("sweep already running elsewhere")
		return nil
	}
	if err != nil {
		return fmt.Errorf("budget close: obtain lock: %w", err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			j.log().Warn("release lock", slog.Any("error", err))
		}
	}()

	tracker := j.metrics().Track(TaskBudgetCloseExpired)
	start := time.Now()
	result, err := j.Closer.CloseExpiredPeriods(ctx, today)
	if err != nil {
		j.log().Error("close expired periods", slog.Any("error", err))
		return tracker.End(err)
	}
	for id, cause := range result.Failed {
		j.log().Error("close period", slog.String("period_id", id.String()), slog.Any("error", cause))
	}
	j.metrics().AddPeriodClosures(len(result.Closed), len(result.Failed))
	j.log().Info("budget close sweep finished",
		slog.Int("closed", len(result.Closed)),
		slog.Int("failed", len(result.Failed)),
		slog.Duration("duration", time.Since(start)))
	return tracker.End(nil)
}

func parseClosePayload(raw []byte) (time.Time, error) {
	if len(raw) == 0 {
		return time.Time{}, nil
	}
	var payload BudgetClosePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return time.Time{}, err
	}
	if payload.Today == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, payload.Today)
}

func (j *BudgetCloseJob) lockTTL() time.Duration {
	if j.LockTTL > 0 {
		return j.LockTTL
	}
	return 2 * time.Minute
}

func (j *BudgetCloseJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *BudgetCloseJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("task", TaskBudgetCloseExpired))
	}
	return slog.Default().With(slog.String("task", TaskBudgetCloseExpired))
}
