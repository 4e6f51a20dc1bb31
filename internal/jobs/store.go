package jobs

import "context"

// Store keeps job state across restarts. The queue calls it outside its
// lock, once per state change, and ignores its errors beyond logging them.
type Store interface {
	LoadJobs(ctx context.Context) ([]*TranslationJob, error)
	UpsertJob(ctx context.Context, job *TranslationJob) error
	DeleteJob(ctx context.Context, jobID string) error
}
