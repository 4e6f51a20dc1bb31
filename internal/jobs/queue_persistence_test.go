package jobs

import (
	"context"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is a Store kept in a map.
type memoryStore struct {
	mu   sync.Mutex
	jobs map[string]*TranslationJob
}

func newMemoryStore(saved ...*TranslationJob) *memoryStore {
	m := &memoryStore{jobs: make(map[string]*TranslationJob)}
	for _, job := range saved {
		m.jobs[job.ID] = job
	}
	return m
}

func (m *memoryStore) LoadJobs(context.Context) ([]*TranslationJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*TranslationJob
	for _, id := range slices.Sorted(maps.Keys(m.jobs)) {
		out = append(out, cloneJob(m.jobs[id]))
	}
	return out, nil
}

func (m *memoryStore) UpsertJob(_ context.Context, job *TranslationJob) error {
	m.mu.Lock()
	m.jobs[job.ID] = cloneJob(job)
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) DeleteJob(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.jobs, id)
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) get(id string) *TranslationJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneJob(m.jobs[id])
}

func savedJob(id string, file string, status Status) *TranslationJob {
	now := time.Now()
	payload := JobPayload{SubtitleFile: file, TargetLanguage: "nl"}
	return &TranslationJob{
		ID:        id,
		Source:    "cron",
		DedupeKey: payload.DedupeKey(),
		Payload:   payload,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func waitForStatus(t *testing.T, q *Queue, id string, want Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		got, ok := q.Get(id)
		return ok && got.Status == want
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_RestoresJobsFromStore(t *testing.T) {
	store := newMemoryStore(
		savedJob("job-1", "/subs/ep1.srt", StatusPending),
		savedJob("job-2", "/subs/ep2.srt", StatusRunning),
		savedJob("job-7", "/subs/ep3.srt", StatusFailed),
	)

	q := NewQueue(1, store)

	job2, ok := q.Get("job-2")
	require.True(t, ok)
	assert.Equal(t, StatusPending, job2.Status, "interrupted job is pending again")
	assert.Equal(t, StatusPending, store.get("job-2").Status)
	assert.Len(t, q.List(), 3)

	// active restored jobs still deduplicate, finished ones do not
	_, created := q.Enqueue(EnqueueRequest{Source: "watch", DedupeKey: "/subs/ep1.srt|nl"})
	assert.False(t, created)

	q.Start(succeed)
	defer q.Stop()

	waitForStatus(t, q, "job-1", StatusSuccess)
	waitForStatus(t, q, "job-2", StatusSuccess)
	assert.Equal(t, "/subs/ep2.srt.out", store.get("job-2").OutputFile)

	next, created := q.Enqueue(EnqueueRequest{Source: "manual", DedupeKey: "/subs/ep3.srt|nl"})
	require.True(t, created)
	assert.Equal(t, "job-8", next.ID, "ids continue after the highest restored id")
}

func TestQueue_PersistsEveryTransition(t *testing.T) {
	store := newMemoryStore()
	q := NewQueue(1, store)

	release := make(chan struct{})
	q.Start(func(context.Context, *TranslationJob) (Outcome, error) {
		<-release
		return Outcome{OutputFile: "/subs/ep1.nl.srt"}, nil
	})
	defer q.Stop()

	job, _ := q.Enqueue(EnqueueRequest{Source: "manual", DedupeKey: "k"})
	require.NotNil(t, store.get(job.ID))

	require.Eventually(t, func() bool {
		return store.get(job.ID).Status == StatusRunning
	}, time.Second, 10*time.Millisecond)
	close(release)

	require.Eventually(t, func() bool {
		saved := store.get(job.ID)
		return saved.Status == StatusSuccess && saved.OutputFile == "/subs/ep1.nl.srt"
	}, time.Second, 10*time.Millisecond)
}

func TestQueue_PruneDeletesFromStore(t *testing.T) {
	store := newMemoryStore()
	q := NewQueue(1, store)
	q.maxJobs = 1
	q.Start(succeed)
	defer q.Stop()

	first, _ := q.Enqueue(EnqueueRequest{Source: "manual", DedupeKey: "a"})
	waitForStatus(t, q, first.ID, StatusSuccess)
	second, _ := q.Enqueue(EnqueueRequest{Source: "manual", DedupeKey: "b"})
	waitForStatus(t, q, second.ID, StatusSuccess)

	require.Eventually(t, func() bool {
		return store.get(first.ID) == nil
	}, time.Second, 10*time.Millisecond)
	assert.NotNil(t, store.get(second.ID))
}
