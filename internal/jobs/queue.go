// Package jobs runs subtitle translation jobs on a fixed pool of workers.
// Jobs asking for the same file and language share one entry while it is
// pending or running, and job state survives restarts through a Store.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dimkroon/translate-subs/pkg/log"
)

// DefaultMaxJobs bounds how many jobs are kept; the oldest finished ones
// are dropped first.
const DefaultMaxJobs = 1000

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobActive   = errors.New("job is pending or running")
)

// Executor runs one job. The context is cancelled when the queue stops.
type Executor func(ctx context.Context, job *TranslationJob) (Outcome, error)

type Queue struct {
	workerCount int
	maxJobs     int
	store       Store

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	jobs      map[string]*TranslationJob
	dedupe    map[string]string
	idCounter uint64
	started   bool
	changed   chan struct{}

	pending  chan string
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewQueue(workerCount int, store Store) *Queue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		workerCount: max(workerCount, 1),
		maxJobs:     DefaultMaxJobs,
		store:       store,
		ctx:         ctx,
		cancel:      cancel,
		jobs:        make(map[string]*TranslationJob),
		dedupe:      make(map[string]string),
		changed:     make(chan struct{}),
		pending:     make(chan string, 1024),
	}
	q.hydrateFromStore(ctx)
	return q
}

// Enqueue adds a pending job unless an active job has the same dedupe key,
// in which case that job is returned with created false.
func (q *Queue) Enqueue(req EnqueueRequest) (*TranslationJob, bool) {
	q.mu.Lock()
	if id, ok := q.dedupe[req.DedupeKey]; ok {
		if existing, exists := q.jobs[id]; exists && existing.Active() {
			snapshot := cloneJob(existing)
			q.mu.Unlock()
			return snapshot, false
		}
		delete(q.dedupe, req.DedupeKey)
	}

	q.idCounter++
	now := time.Now()
	job := &TranslationJob{
		ID:        fmt.Sprintf("job-%d", q.idCounter),
		Source:    req.Source,
		DedupeKey: req.DedupeKey,
		Payload:   req.Payload,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.jobs[job.ID] = job
	if req.DedupeKey != "" {
		q.dedupe[req.DedupeKey] = job.ID
	}
	pruned := q.pruneLocked()
	snapshot, started := q.commitLocked(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	q.deleteJobsFromStore(pruned)
	if started {
		q.schedule(job.ID)
	}
	return snapshot, true
}

// Retry puts a failed or skipped job back in the queue. It fails with
// ErrJobActive when the job, or another job for the same file and
// language, is still pending or running.
func (q *Queue) Retry(id string) (*TranslationJob, error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return nil, ErrJobNotFound
	}
	if job.Active() {
		q.mu.Unlock()
		return nil, ErrJobActive
	}
	if other, taken := q.dedupe[job.DedupeKey]; taken && job.DedupeKey != "" && other != id {
		q.mu.Unlock()
		return nil, ErrJobActive
	}

	job.Status = StatusPending
	job.OutputFile = ""
	job.FailedUnits = 0
	job.Error = ""
	job.UpdatedAt = time.Now()
	if job.DedupeKey != "" {
		q.dedupe[job.DedupeKey] = id
	}
	snapshot, started := q.commitLocked(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	if started {
		q.schedule(id)
	}
	return snapshot, nil
}

func (q *Queue) Get(id string) (*TranslationJob, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	job, ok := q.jobs[id]
	return cloneJob(job), ok
}

// List returns all jobs, oldest first.
func (q *Queue) List() []*TranslationJob {
	q.mu.RLock()
	ret := make([]*TranslationJob, 0, len(q.jobs))
	for _, job := range q.jobs {
		ret = append(ret, cloneJob(job))
	}
	q.mu.RUnlock()

	slices.SortFunc(ret, func(a, b *TranslationJob) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareUint(jobNumber(a.ID), jobNumber(b.ID))
	})
	return ret
}

// Counts returns the number of jobs per status.
func (q *Queue) Counts() map[Status]int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ret := make(map[Status]int)
	for _, job := range q.jobs {
		ret[job.Status]++
	}
	return ret
}

// Changed returns a channel that is closed on the next job state change.
func (q *Queue) Changed() <-chan struct{} {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.changed
}

// Start launches the workers and schedules every pending job, oldest first.
func (q *Queue) Start(exec Executor) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	var pending []*TranslationJob
	for _, job := range q.jobs {
		if job.Status == StatusPending {
			pending = append(pending, job)
		}
	}
	slices.SortFunc(pending, func(a, b *TranslationJob) int {
		return compareUint(jobNumber(a.ID), jobNumber(b.ID))
	})
	q.mu.Unlock()

	for _, job := range pending {
		q.schedule(job.ID)
	}
	for range q.workerCount {
		q.wg.Add(1)
		go q.worker(exec)
	}
}

// Stop abandons running jobs and waits for the workers to exit. An
// abandoned job goes back to pending so the next start picks it up.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.cancel()
		q.wg.Wait()
	})
}

func (q *Queue) worker(exec Executor) {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case id := <-q.pending:
			job, ok := q.markRunning(id)
			if !ok {
				continue
			}

			outcome, err := exec(q.ctx, job)
			switch {
			case err != nil && q.ctx.Err() != nil:
				q.markInterrupted(id)
			case err != nil:
				log.Warn("Job %s failed: %v", id, err)
				q.markFinished(id, StatusFailed, outcome, err)
			case outcome.Skipped:
				q.markFinished(id, StatusSkipped, outcome, nil)
			default:
				q.markFinished(id, StatusSuccess, outcome, nil)
			}
		}
	}
}

func (q *Queue) schedule(id string) {
	select {
	case q.pending <- id:
	default:
		go func() {
			select {
			case q.pending <- id:
			case <-q.ctx.Done():
			}
		}()
	}
}

func (q *Queue) markRunning(id string) (*TranslationJob, bool) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok || job.Status != StatusPending {
		q.mu.Unlock()
		return nil, false
	}
	job.Status = StatusRunning
	job.UpdatedAt = time.Now()
	snapshot, _ := q.commitLocked(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	return snapshot, true
}

func (q *Queue) markFinished(id string, status Status, outcome Outcome, err error) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	job.Status = status
	job.OutputFile = outcome.OutputFile
	job.FailedUnits = outcome.FailedUnits
	job.Error = ""
	if err != nil {
		job.Error = err.Error()
	}
	job.UpdatedAt = time.Now()
	if q.dedupe[job.DedupeKey] == id {
		delete(q.dedupe, job.DedupeKey)
	}
	pruned := q.pruneLocked()
	snapshot, _ := q.commitLocked(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
	q.deleteJobsFromStore(pruned)
}

func (q *Queue) markInterrupted(id string) {
	q.mu.Lock()
	job, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return
	}
	job.Status = StatusPending
	job.UpdatedAt = time.Now()
	snapshot, _ := q.commitLocked(job)
	q.mu.Unlock()

	q.persistJob(snapshot)
}

// commitLocked wakes Changed listeners and returns a copy of job to persist.
func (q *Queue) commitLocked(job *TranslationJob) (*TranslationJob, bool) {
	close(q.changed)
	q.changed = make(chan struct{})
	return cloneJob(job), q.started
}

// pruneLocked drops the oldest finished jobs above maxJobs and returns
// their ids.
func (q *Queue) pruneLocked() []string {
	excess := len(q.jobs) - q.maxJobs
	if q.maxJobs <= 0 || excess <= 0 {
		return nil
	}

	var finished []*TranslationJob
	for _, job := range q.jobs {
		if !job.Active() {
			finished = append(finished, job)
		}
	}
	slices.SortFunc(finished, func(a, b *TranslationJob) int {
		return a.UpdatedAt.Compare(b.UpdatedAt)
	})

	pruned := make([]string, 0, excess)
	for _, job := range finished[:min(excess, len(finished))] {
		delete(q.jobs, job.ID)
		pruned = append(pruned, job.ID)
	}
	return pruned
}

func (q *Queue) deleteJobsFromStore(ids []string) {
	if q.store == nil {
		return
	}
	for _, id := range ids {
		if err := q.store.DeleteJob(context.Background(), id); err != nil {
			log.Error("Failed to delete pruned job %s from store: %v", id, err)
		}
	}
}

// hydrateFromStore restores saved jobs. A job that was running when the
// process died is pending again.
func (q *Queue) hydrateFromStore(ctx context.Context) {
	if q.store == nil {
		return
	}
	loaded, err := q.store.LoadJobs(ctx)
	if err != nil {
		log.Error("Failed to load jobs from store: %v", err)
		return
	}

	var requeued []*TranslationJob
	q.mu.Lock()
	for _, saved := range loaded {
		if saved == nil || saved.ID == "" {
			continue
		}
		job := cloneJob(saved)
		if job.Status == StatusRunning {
			job.Status = StatusPending
			job.UpdatedAt = time.Now()
			requeued = append(requeued, cloneJob(job))
		}
		q.jobs[job.ID] = job
		if job.Active() && job.DedupeKey != "" {
			q.dedupe[job.DedupeKey] = job.ID
		}
		q.idCounter = max(q.idCounter, jobNumber(job.ID))
	}
	q.mu.Unlock()

	if len(loaded) > 0 {
		log.Info("Restored %d jobs, %d interrupted", len(loaded), len(requeued))
	}
	for _, job := range requeued {
		q.persistJob(job)
	}
}

// jobNumber parses the counter out of a "job-N" id, 0 for other ids.
func jobNumber(jobID string) uint64 {
	n, err := strconv.ParseUint(strings.TrimPrefix(jobID, "job-"), 10, 64)
	if err != nil || !strings.HasPrefix(jobID, "job-") {
		return 0
	}
	return n
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (q *Queue) persistJob(job *TranslationJob) {
	if q.store == nil || job == nil {
		return
	}
	if err := q.store.UpsertJob(context.Background(), job); err != nil {
		log.Error("Failed to persist job %s: %v", job.ID, err)
	}
}

func cloneJob(job *TranslationJob) *TranslationJob {
	if job == nil {
		return nil
	}
	tmp := *job
	return &tmp
}
