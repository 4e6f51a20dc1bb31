package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func succeed(_ context.Context, job *TranslationJob) (Outcome, error) {
	return Outcome{OutputFile: job.Payload.SubtitleFile + ".out"}, nil
}

func TestQueue_Enqueue_DeduplicatesSameKey(t *testing.T) {
	q := NewQueue(2, nil)

	payload := JobPayload{SubtitleFile: "/subs/ep1.srt", TargetLanguage: "nl"}
	jobA, createdA := q.Enqueue(EnqueueRequest{
		Source:    "manual",
		DedupeKey: payload.DedupeKey(),
		Payload:   payload,
	})
	jobB, createdB := q.Enqueue(EnqueueRequest{
		Source:    "cron",
		DedupeKey: payload.DedupeKey(),
		Payload:   payload,
	})

	require.True(t, createdA)
	require.False(t, createdB)
	require.NotNil(t, jobA)
	require.NotNil(t, jobB)
	assert.Equal(t, jobA.ID, jobB.ID)
	assert.Equal(t, "/subs/ep1.srt|nl", jobA.DedupeKey)
}

func TestQueue_Enqueue_AllowsRetryAfterFailure(t *testing.T) {
	q := NewQueue(1, nil)

	var attempts int
	q.Start(func(ctx context.Context, job *TranslationJob) (Outcome, error) {
		attempts++
		if attempts == 1 {
			return Outcome{}, assert.AnError
		}
		return succeed(ctx, job)
	})
	defer q.Stop()

	first, created := q.Enqueue(EnqueueRequest{
		Source:    "manual",
		DedupeKey: "retry-key",
	})
	require.True(t, created)
	require.NotNil(t, first)

	require.Eventually(t, func() bool {
		got, ok := q.Get(first.ID)
		return ok && got != nil && got.Status == StatusFailed
	}, time.Second, 10*time.Millisecond)

	failed, _ := q.Get(first.ID)
	assert.Equal(t, assert.AnError.Error(), failed.Error)

	second, created := q.Enqueue(EnqueueRequest{
		Source:    "manual",
		DedupeKey: "retry-key",
	})
	require.True(t, created)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)

	require.Eventually(t, func() bool {
		got, ok := q.Get(second.ID)
		return ok && got != nil && got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_Enqueue_AllowsRetryAfterSuccess(t *testing.T) {
	q := NewQueue(1, nil)
	q.Start(succeed)
	defer q.Stop()

	first, created := q.Enqueue(EnqueueRequest{
		Source:    "manual",
		DedupeKey: "done-key",
	})
	require.True(t, created)
	require.NotNil(t, first)

	require.Eventually(t, func() bool {
		got, ok := q.Get(first.ID)
		return ok && got != nil && got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)

	second, created := q.Enqueue(EnqueueRequest{
		Source:    "manual",
		DedupeKey: "done-key",
	})
	require.True(t, created)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestQueue_ListIsOrdered(t *testing.T) {
	q := NewQueue(1, nil)
	for _, key := range []string{"a", "b", "c"} {
		q.Enqueue(EnqueueRequest{Source: "manual", DedupeKey: key})
	}

	list := q.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"job-1", "job-2", "job-3"}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.Equal(t, 3, q.Counts()[StatusPending])
}

func TestQueue_SkippedOutcome(t *testing.T) {
	q := NewQueue(1, nil)
	q.Start(func(_ context.Context, _ *TranslationJob) (Outcome, error) {
		return Outcome{Skipped: true}, nil
	})
	defer q.Stop()

	job, _ := q.Enqueue(EnqueueRequest{Source: "watch", DedupeKey: "already-dutch"})

	require.Eventually(t, func() bool {
		got, ok := q.Get(job.ID)
		return ok && got.Status == StatusSkipped
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_StopInterruptsRunningJob(t *testing.T) {
	store := newMemoryStore()
	q := NewQueue(1, store)

	started := make(chan struct{})
	q.Start(func(ctx context.Context, _ *TranslationJob) (Outcome, error) {
		close(started)
		<-ctx.Done()
		return Outcome{}, ctx.Err()
	})

	job, _ := q.Enqueue(EnqueueRequest{Source: "manual", DedupeKey: "long"})
	<-started
	q.Stop()

	got, ok := q.Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, StatusPending, got.Status)
	assert.Equal(t, StatusPending, store.get(job.ID).Status)
}

func TestQueue_Retry(t *testing.T) {
	q := NewQueue(1, nil)

	var attempts int
	q.Start(func(ctx context.Context, job *TranslationJob) (Outcome, error) {
		attempts++
		if attempts == 1 {
			return Outcome{}, assert.AnError
		}
		return succeed(ctx, job)
	})
	defer q.Stop()

	job, _ := q.Enqueue(EnqueueRequest{Source: "manual", DedupeKey: "k"})
	require.Eventually(t, func() bool {
		got, _ := q.Get(job.ID)
		return got.Status == StatusFailed
	}, time.Second, 10*time.Millisecond)

	retried, err := q.Retry(job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, retried.ID)
	assert.Empty(t, retried.Error)

	require.Eventually(t, func() bool {
		got, _ := q.Get(job.ID)
		return got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)
	assert.Len(t, q.List(), 1)

	_, err = q.Retry("job-404")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestQueue_RetryRefusesActiveJobs(t *testing.T) {
	q := NewQueue(1, nil)

	job, _ := q.Enqueue(EnqueueRequest{Source: "manual", DedupeKey: "k"})
	_, err := q.Retry(job.ID)
	assert.ErrorIs(t, err, ErrJobActive)
}

func TestQueue_RetryRefusesWhenKeyTaken(t *testing.T) {
	q := NewQueue(1, nil)
	q.Start(func(context.Context, *TranslationJob) (Outcome, error) {
		return Outcome{}, assert.AnError
	})

	first, _ := q.Enqueue(EnqueueRequest{Source: "manual", DedupeKey: "k"})
	require.Eventually(t, func() bool {
		got, _ := q.Get(first.ID)
		return got.Status == StatusFailed
	}, time.Second, 10*time.Millisecond)
	q.Stop()

	// a new job for the same key now owns it
	second, created := q.Enqueue(EnqueueRequest{Source: "cron", DedupeKey: "k"})
	require.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)

	_, err := q.Retry(first.ID)
	assert.ErrorIs(t, err, ErrJobActive)
}

func TestQueue_ChangedIsClosedOnStateChange(t *testing.T) {
	q := NewQueue(1, nil)
	changed := q.Changed()

	select {
	case <-changed:
		t.Fatal("closed before any change")
	default:
	}

	q.Enqueue(EnqueueRequest{Source: "manual", DedupeKey: "k"})

	select {
	case <-changed:
	case <-time.After(time.Second):
		t.Fatal("not closed after enqueue")
	}
	assert.NotEqual(t, changed, q.Changed())
}

func TestQueue_PrunesOldestFinishedJobs(t *testing.T) {
	q := NewQueue(1, nil)
	q.maxJobs = 2
	q.Start(succeed)
	defer q.Stop()

	var ids []string
	for _, key := range []string{"a", "b", "c"} {
		job, _ := q.Enqueue(EnqueueRequest{Source: "manual", DedupeKey: key})
		ids = append(ids, job.ID)
		require.Eventually(t, func() bool {
			got, ok := q.Get(job.ID)
			return ok && got.Status == StatusSuccess
		}, time.Second, 10*time.Millisecond)
	}

	_, ok := q.Get(ids[0])
	assert.False(t, ok)
	assert.Len(t, q.List(), 2)
}
