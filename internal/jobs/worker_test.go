package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_Worker_TransitionsStatus(t *testing.T) {
	q := NewQueue(1, nil)

	release := make(chan struct{})
	q.Start(func(_ context.Context, _ *TranslationJob) (Outcome, error) {
		<-release
		return Outcome{OutputFile: "/subs/ep1.nl.srt", FailedUnits: 2}, nil
	})
	defer q.Stop()

	job, _ := q.Enqueue(EnqueueRequest{
		Source:    "manual",
		DedupeKey: "k1",
	})

	require.Eventually(t, func() bool {
		got, ok := q.Get(job.ID)
		return ok && got.Status == StatusRunning
	}, time.Second, 10*time.Millisecond)
	close(release)

	require.Eventually(t, func() bool {
		got, ok := q.Get(job.ID)
		if !ok || got == nil {
			return false
		}
		return got.Status == StatusSuccess
	}, time.Second, 10*time.Millisecond)

	got, _ := q.Get(job.ID)
	assert.Equal(t, "/subs/ep1.nl.srt", got.OutputFile)
	assert.Equal(t, 2, got.FailedUnits)
}
