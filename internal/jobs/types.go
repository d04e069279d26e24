// Package jobs defines job types and payloads for async processing
package jobs

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// JobType represents the type of async job
type JobType string

const (
	JobTypeClone     JobType = "clone_project"
	JobTypeMutation  JobType = "run_mutation"
	JobTypeAggregate JobType = "aggregate_batch"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusRetrying  JobStatus = "retrying"
	StatusCancelled JobStatus = "cancelled"
)

// Job represents an async job in the system
type Job struct {
	ID           uuid.UUID        `json:"id" db:"id"`
	Type         JobType          `json:"type" db:"type"`
	Status       JobStatus        `json:"status" db:"status"`
	Priority     int              `json:"priority" db:"priority"`
	BatchID      *uuid.UUID       `json:"batch_id,omitempty" db:"batch_id"`
	ResultID     *uuid.UUID       `json:"result_id,omitempty" db:"result_id"`
	ParentJobID  *uuid.UUID       `json:"parent_job_id,omitempty" db:"parent_job_id"`
	Payload      json.RawMessage  `json:"payload" db:"payload"`
	Result       *json.RawMessage `json:"result,omitempty" db:"result"`
	ErrorMessage *string          `json:"error_message,omitempty" db:"error_message"`
	ErrorDetails *json.RawMessage `json:"error_details,omitempty" db:"error_details"`
	RetryCount   int              `json:"retry_count" db:"retry_count"`
	MaxRetries   int              `json:"max_retries" db:"max_retries"`
	CreatedAt    time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at" db:"updated_at"`
	StartedAt    *time.Time       `json:"started_at,omitempty" db:"started_at"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty" db:"completed_at"`
	LockedUntil  *time.Time       `json:"locked_until,omitempty" db:"locked_until"`
	WorkerID     *string          `json:"worker_id,omitempty" db:"worker_id"`
}

// ClonePayload is the payload for clone jobs
type ClonePayload struct {
	BatchID     uuid.UUID `json:"batch_id"`
	ProjectName string    `json:"project_name"`
	ProjectPath string    `json:"project_path,omitempty"`
	GitURL      string    `json:"git_url,omitempty"`
	Workdir     string    `json:"workdir"`
	SkipPackage bool      `json:"skip_package,omitempty"`
	// Run options (propagated through chain)
	Engine string `json:"engine"`
	Subset string `json:"subset"`
	Steps  bool   `json:"steps,omitempty"`
}

// MutationPayload is the payload for mutation run jobs
type MutationPayload struct {
	BatchID     uuid.UUID `json:"batch_id"`
	ProjectName string    `json:"project_name"`
	CloneDir    string    `json:"clone_dir"`
	Source      string    `json:"source,omitempty"`
	Engine      string    `json:"engine"`
	Subset      string    `json:"subset"`
	Steps       bool      `json:"steps,omitempty"`
}

// AggregatePayload is the payload for aggregation jobs
type AggregatePayload struct {
	BatchID      uuid.UUID `json:"batch_id"`
	ReportsRoot  string    `json:"reports_root"`
	OutputDir    string    `json:"output_dir"`
	MetadataPath string    `json:"metadata_path,omitempty"`
}

// CloneResult is the result of a clone job
type CloneResult struct {
	CloneDir  string `json:"clone_dir"`
	FileCount int    `json:"file_count"`
	Injected  bool   `json:"injected"`
}

// MutationRunResult is the result of a mutation run job
type MutationRunResult struct {
	Mutants     int     `json:"mutants"`
	Killed      int     `json:"killed"`
	Survived    int     `json:"survived"`
	Score       float64 `json:"score"`
	RunningTime float64 `json:"running_time"`
	ReportPath  string  `json:"report_path,omitempty"`
}

// AggregateResult is the result of an aggregation job
type AggregateResult struct {
	Projects     int     `json:"projects"`
	Succeeded    int     `json:"succeeded"`
	TotalMutants int     `json:"total_mutants"`
	MeanScore    float64 `json:"mean_score"`
	OutputDir    string  `json:"output_dir"`
}

// NewJob creates a new job with defaults
func NewJob(jobType JobType, payload interface{}) (*Job, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		Status:     StatusPending,
		Priority:   0,
		Payload:    payloadBytes,
		RetryCount: 0,
		MaxRetries: 3,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}, nil
}

// SetPayload marshals and sets the payload
func (j *Job) SetPayload(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	j.Payload = data
	return nil
}

// GetPayload unmarshals the payload into the provided struct
func (j *Job) GetPayload(v interface{}) error {
	return json.Unmarshal(j.Payload, v)
}

// SetResult marshals and sets the result
func (j *Job) SetResult(result interface{}) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	raw := json.RawMessage(data)
	j.Result = &raw
	return nil
}

// GetResult unmarshals the result into the provided struct
func (j *Job) GetResult(v interface{}) error {
	if j.Result == nil {
		return nil
	}
	return json.Unmarshal(*j.Result, v)
}

// CanRetry returns true if the job can be retried
func (j *Job) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// JobMessage is the message sent via NATS for job notifications
type JobMessage struct {
	JobID    uuid.UUID `json:"job_id"`
	Type     JobType   `json:"type"`
	Priority int       `json:"priority"`
}

// Encode serializes the job message to JSON
func (m *JobMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeJobMessage deserializes a job message from JSON
func DecodeJobMessage(data []byte) (*JobMessage, error) {
	var m JobMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
