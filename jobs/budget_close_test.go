package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-assets/internal/budget"
	jobmetrics "github.com/odyssey-erp/odyssey-assets/internal/jobs"
	"github.com/odyssey-erp/odyssey-assets/internal/shared"
)

type stubCloser struct {
	mu     sync.Mutex
	calls  []time.Time
	result budget.CloseResult
	err    error
}

func (s *stubCloser) CloseExpiredPeriods(_ context.Context, today time.Time) (budget.CloseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, today)
	return s.result, s.err
}

func newLocker(t *testing.T) (*redislock.Client, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redislock.New(client), client
}

func TestBudgetCloseJobRunsSweep(t *testing.T) {
	locker, client := newLocker(t)
	closer := &stubCloser{result: budget.CloseResult{Closed: []uuid.UUID{uuid.New(), uuid.New()}}}
	job := NewBudgetCloseJob(closer, locker, time.Minute, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	task, err := NewBudgetCloseTask(&day)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	require.Len(t, closer.calls, 1)
	require.True(t, closer.calls[0].Equal(day))

	exists, err := client.Exists(context.Background(), shared.JobLockKey(TaskBudgetCloseExpired)).Result()
	require.NoError(t, err)
	require.Zero(t, exists, "lock released after the sweep")
}

func TestBudgetCloseJobDefaultsToToday(t *testing.T) {
	locker, _ := newLocker(t)
	closer := &stubCloser{}
	job := NewBudgetCloseJob(closer, locker, time.Minute, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	task, err := NewBudgetCloseTask(nil)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, closer.calls, 1)
	require.True(t, closer.calls[0].IsZero())
}

func TestBudgetCloseJobSkipsWhenLockHeld(t *testing.T) {
	locker, _ := newLocker(t)
	ctx := context.Background()
	held, err := locker.Obtain(ctx, shared.JobLockKey(TaskBudgetCloseExpired), time.Minute, nil)
	require.NoError(t, err)
	defer func() { _ = held.Release(ctx) }()

	closer := &stubCloser{}
	job := NewBudgetCloseJob(closer, locker, time.Minute, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewBudgetCloseTask(nil)
	require.NoError(t, err)

	require.NoError(t, job.Handle(ctx, task))
	require.Empty(t, closer.calls)
}

func TestBudgetCloseJobErrors(t *testing.T) {
	locker, _ := newLocker(t)
	closer := &stubCloser{err: errors.New("db down")}
	job := NewBudgetCloseJob(closer, locker, time.Minute, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	err := job.Handle(context.Background(), asynq.NewTask(TaskBudgetCloseExpired, []byte(`{"today":"07/01/2025"}`)))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, closer.calls)

	task, _ := NewBudgetCloseTask(nil)
	err = job.Handle(context.Background(), task)
	require.EqualError(t, err, "db down")

	var empty *BudgetCloseJob
	require.Error(t, empty.Handle(context.Background(), task))
}

func TestNewTaskByName(t *testing.T) {
	task, err := NewTaskByName(TaskBudgetCloseExpired, "2025-06-30")
	require.NoError(t, err)
	require.Equal(t, TaskBudgetCloseExpired, task.Type())
	require.JSONEq(t, `{"today":"2025-06-30"}`, string(task.Payload()))

	_, err = NewTaskByName(TaskBudgetCloseExpired, "tomorrow")
	require.Error(t, err)
	_, err = NewTaskByName("mail:send", "")
	require.Error(t, err)
}
