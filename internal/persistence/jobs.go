package persistence

import (
	"context"
	"errors"

	"github.com/dimkroon/translate-subs/internal/jobs"
)

const jobColumns = `id, source, dedupe_key, subtitle_file, target_language, status,
	output_file, failed_units, error, created_at, updated_at`

// LoadJobs returns every stored job, oldest first.
func (s *SQLiteStore) LoadJobs(ctx context.Context) ([]*jobs.TranslationJob, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*jobs.TranslationJob
	for rows.Next() {
		job := &jobs.TranslationJob{}
		var status string
		err := rows.Scan(
			&job.ID, &job.Source, &job.DedupeKey,
			&job.Payload.SubtitleFile, &job.Payload.TargetLanguage,
			&status, &job.OutputFile, &job.FailedUnits, &job.Error,
			&job.CreatedAt, &job.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		job.Status = jobs.Status(status)
		out = append(out, job)
	}
	return out, rows.Err()
}

// UpsertJob inserts job or overwrites everything but its creation time.
func (s *SQLiteStore) UpsertJob(ctx context.Context, job *jobs.TranslationJob) error {
	if job == nil {
		return errors.New("job is nil")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			dedupe_key = excluded.dedupe_key,
			subtitle_file = excluded.subtitle_file,
			target_language = excluded.target_language,
			status = excluded.status,
			output_file = excluded.output_file,
			failed_units = excluded.failed_units,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		job.ID, job.Source, job.DedupeKey,
		job.Payload.SubtitleFile, job.Payload.TargetLanguage,
		string(job.Status), job.OutputFile, job.FailedUnits, job.Error,
		job.CreatedAt.UTC(), job.UpdatedAt.UTC(),
	)
	return err
}

func (s *SQLiteStore) DeleteJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, jobID)
	return err
}
