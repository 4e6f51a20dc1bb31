package jobs

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Payload   JobPayload
}

type JobPayload struct {
	SubtitleFile   string `json:"subtitle_file"`
	TargetLanguage string `json:"target_language"`
}

// DedupeKey identifies the work a payload asks for.
func (p JobPayload) DedupeKey() string {
	return p.SubtitleFile + "|" + p.TargetLanguage
}

// Outcome is what an executor reports for a finished job.
type Outcome struct {
	OutputFile  string
	FailedUnits int
	Skipped     bool
}

type TranslationJob struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	DedupeKey   string     `json:"dedupe_key"`
	Payload     JobPayload `json:"payload"`
	Status      Status     `json:"status"`
	OutputFile  string     `json:"output_file,omitempty"`
	FailedUnits int        `json:"failed_units"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Active reports whether the job is still waiting or running.
func (j *TranslationJob) Active() bool {
	return j.Status == StatusPending || j.Status == StatusRunning
}
