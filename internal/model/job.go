package model

import "time"

// JobState tracks an ingestion batch. Terminal states are final.
type JobState string

const (
	JobPending    JobState = "pending"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// JobError is one itemized per-document failure within a job.
type JobError struct {
	Document string `json:"document"` // title or id, whichever is known
	Stage    string `json:"stage"`
	Message  string `json:"message"`
}

// IngestionJob tracks a batch of documents through the pipeline. Failed jobs
// retain partial results and the itemized error list.
type IngestionJob struct {
	ID         string     `json:"id"`
	SourceID   string     `json:"source_id"`
	State      JobState   `json:"state"`
	Total      int        `json:"total"`
	Processed  int        `json:"processed"`
	Failed     int        `json:"failed"`
	Duplicates int        `json:"duplicates"`
	Errors     []JobError `json:"errors,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
