package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PerkFox/app/models"
	"github.com/ManuelReschke/PerkFox/internal/pkg/env"
)

const isolatedJobQueueTestRedisDB = 14

// newIsolatedRedisClient connects to a dedicated Redis DB and skips the test
// when no Redis is reachable.
func newIsolatedRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379"))
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		Password:    env.GetEnv("CACHE_PASSWORD", ""),
		DB:          isolatedJobQueueTestRedisDB,
		DialTimeout: 300 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Skipping Redis-dependent test: no reachable Redis endpoint at %s (%v)", addr, err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func TestQueueProcessesRegisteredJob(t *testing.T) {
	ctx := context.Background()
	client := newIsolatedRedisClient(t)
	q := NewQueue(client, 1)

	var got *LogoMirrorJobPayload
	q.Register(JobTypeLogoMirror, func(_ context.Context, job *Job) error {
		p, err := LogoMirrorJobPayloadFromMap(job.Payload)
		got = p
		return err
	})

	job, err := q.EnqueueJob(ctx, JobTypeLogoMirror, LogoMirrorJobPayload{DealID: 3, FilePath: "/tmp/a.png"}.ToMap())
	require.NoError(t, err)

	size, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)

	processed, err := q.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, processed)

	require.NotNil(t, got)
	assert.EqualValues(t, 3, got.DealID)
	assert.Equal(t, "/tmp/a.png", got.FilePath)

	// completed jobs are removed
	_, err = q.GetJob(ctx, job.ID)
	assert.ErrorIs(t, err, redis.Nil)

	stats, err := q.GetJobStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats[JobStatusCompleted])

	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, processing)
}

func TestQueueRunOnceOnEmptyQueue(t *testing.T) {
	q := NewQueue(newIsolatedRedisClient(t), 1)

	processed, err := q.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	ctx := context.Background()
	client := newIsolatedRedisClient(t)
	q := NewQueue(client, 1)
	q.retryDelay = 10 * time.Millisecond

	var attempts int32
	q.Register(JobTypeClaimMail, func(context.Context, *Job) error {
		if atomic.AddInt32(&attempts, 1) < 2 {
			return errors.New("smtp down")
		}
		return nil
	})

	job, err := q.EnqueueJob(ctx, JobTypeClaimMail, ClaimMailJobPayload{UserID: 1, DealID: 2, ClaimUUID: "c"}.ToMap())
	require.NoError(t, err)

	_, err = q.RunOnce(ctx)
	require.NoError(t, err)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusRetrying, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)

	// the retry is pushed back after retryDelay
	processed, err := q.RunOnce(ctx)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.EqualValues(t, 2, atomic.LoadInt32(&attempts))
}

func TestQueueUnknownJobTypeFailsPermanently(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(newIsolatedRedisClient(t), 1)

	job, err := q.EnqueueJob(ctx, JobType("unknown"), nil)
	require.NoError(t, err)

	// zero retries left
	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	stored.MaxRetries = 0
	q.updateJob(ctx, stored)

	_, err = q.RunOnce(ctx)
	require.NoError(t, err)

	stored, err = q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, stored.Status)
	assert.Contains(t, stored.ErrorMsg, "unknown job type")
}

func TestQueueRecoversStuckJobs(t *testing.T) {
	ctx := context.Background()
	client := newIsolatedRedisClient(t)
	q := NewQueue(client, 1)

	job, err := q.EnqueueJob(ctx, JobTypeClaimMail, nil)
	require.NoError(t, err)

	// simulate a worker that crashed mid-job
	_, err = client.BRPopLPush(ctx, JobQueueKey, JobProcessingKey, time.Second).Result()
	require.NoError(t, err)
	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	stored.MarkAsProcessing()
	q.updateJob(ctx, stored)

	require.NoError(t, q.recoverStuck(ctx, time.Minute, time.Now().Add(time.Hour)))

	size, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)
	processing, err := q.GetProcessingSize(ctx)
	require.NoError(t, err)
	assert.Zero(t, processing)
}

func TestClaimMailDispatcherEnqueues(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(newIsolatedRedisClient(t), 1)
	d := NewClaimMailDispatcher(q)

	err := d.NotifyClaim(ctx, 5, &models.Deal{ID: 8}, &models.Claim{UUID: "abc"})
	require.NoError(t, err)

	size, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, size)
}
