// Package jobs provides pipeline orchestration for batch mutation runs
package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mutbatch/mutbatch/internal/queue"
	"github.com/mutbatch/mutbatch/internal/tasks"
)

// Pipeline orchestrates the clone, run and aggregate job chain
type Pipeline struct {
	repo  *Repository
	queue *queue.Client
}

// NewPipeline creates a new pipeline manager
func NewPipeline(repo *Repository, queue *queue.Client) *Pipeline {
	return &Pipeline{
		repo:  repo,
		queue: queue,
	}
}

// BatchOptions configures the jobs enqueued for a batch
type BatchOptions struct {
	Engine      string // Mutation engine, pit or mujava
	Subset      string // Operator subset name
	Steps       bool   // Run operators one at a time
	Workdir     string // Where clones are materialized
	SkipPackage bool   // Leave sources in their original package
}

// StartClone starts the pipeline for one project
func (p *Pipeline) StartClone(ctx context.Context, payload ClonePayload) (*Job, error) {
	job, err := NewJob(JobTypeClone, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	job.BatchID = &payload.BatchID

	if err := p.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	if err := p.publishJob(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to publish job")
		// Job is in DB, worker can poll for it
	}

	log.Info().
		Str("job_id", job.ID.String()).
		Str("project", payload.ProjectName).
		Msg("started clone pipeline")

	return job, nil
}

// EnqueueBatch creates one clone job per task. Subsequent run jobs are
// chained by the workers as each clone completes.
func (p *Pipeline) EnqueueBatch(ctx context.Context, batchID uuid.UUID, list []tasks.Task, opts BatchOptions) ([]*Job, error) {
	created := make([]*Job, 0, len(list))

	for _, t := range list {
		name := t.Name()
		if name == "" {
			log.Warn().Str("gitUrl", t.GitURL).Msg("skipping task with no project name")
			continue
		}

		payload := ClonePayload{
			BatchID:     batchID,
			ProjectName: name,
			ProjectPath: t.ProjectPath,
			GitURL:      t.GitURL,
			Workdir:     opts.Workdir,
			SkipPackage: opts.SkipPackage,
			Engine:      opts.Engine,
			Subset:      opts.Subset,
			Steps:       opts.Steps,
		}

		job, err := p.StartClone(ctx, payload)
		if err != nil {
			return created, fmt.Errorf("failed to enqueue %s: %w", name, err)
		}
		created = append(created, job)
	}

	log.Info().
		Str("batch_id", batchID.String()).
		Int("jobs", len(created)).
		Msg("enqueued batch")

	return created, nil
}

// ChainJob creates a child job linked to a parent
func (p *Pipeline) ChainJob(ctx context.Context, parentID uuid.UUID, jobType JobType, payload interface{}) (*Job, error) {
	job, err := NewJob(jobType, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	job.ParentJobID = &parentID

	// Inherit batch_id from parent if not set
	parent, err := p.repo.GetByID(ctx, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get parent job: %w", err)
	}
	if parent != nil && parent.BatchID != nil {
		job.BatchID = parent.BatchID
	}
	if parent != nil && parent.ResultID != nil {
		job.ResultID = parent.ResultID
	}

	if err := p.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	if err := p.publishJob(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to publish job")
	}

	log.Debug().
		Str("job_id", job.ID.String()).
		Str("parent_id", parentID.String()).
		Str("type", string(jobType)).
		Msg("created chained job")

	return job, nil
}

// CreateMutationJob creates a run job after a clone completes
func (p *Pipeline) CreateMutationJob(ctx context.Context, parentID uuid.UUID, payload MutationPayload) (*Job, error) {
	job, err := p.ChainJob(ctx, parentID, JobTypeMutation, payload)
	if err != nil {
		return nil, err
	}
	job.BatchID = &payload.BatchID

	return job, nil
}

// CreateAggregateJob creates an aggregation job for a finished batch.
// Aggregation is not chained off a single project: it is enqueued once,
// when every run job has completed.
func (p *Pipeline) CreateAggregateJob(ctx context.Context, payload AggregatePayload) (*Job, error) {
	job, err := NewJob(JobTypeAggregate, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	job.BatchID = &payload.BatchID

	if err := p.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	if err := p.publishJob(ctx, job); err != nil {
		log.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to publish job")
	}

	log.Info().
		Str("job_id", job.ID.String()).
		Str("batch_id", payload.BatchID.String()).
		Msg("created aggregate job")

	return job, nil
}

// publishJob publishes a job notification to NATS
func (p *Pipeline) publishJob(ctx context.Context, job *Job) error {
	if p.queue == nil {
		return nil // NATS not configured, workers will poll DB
	}

	msg := &JobMessage{
		JobID:    job.ID,
		Type:     job.Type,
		Priority: job.Priority,
	}

	data, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	subject := queue.SubjectForJobType(string(job.Type))
	if subject == "" {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}

	_, err = p.queue.Publish(ctx, subject, data)
	return err
}

// GetJobStatus returns the current status of a job and its children
func (p *Pipeline) GetJobStatus(ctx context.Context, jobID uuid.UUID) (*JobStatusReport, error) {
	job, err := p.repo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fmt.Errorf("job not found")
	}

	children, err := p.repo.GetChildJobs(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &JobStatusReport{
		Job:      job,
		Children: children,
	}, nil
}

// JobStatusReport contains a job and its child jobs
type JobStatusReport struct {
	Job      *Job   `json:"job"`
	Children []*Job `json:"children,omitempty"`
}

// RetryFailedJobs requeues all jobs in retrying status
func (p *Pipeline) RetryFailedJobs(ctx context.Context) (int, error) {
	jobs, err := p.repo.ListByStatus(ctx, StatusRetrying, 100)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, job := range jobs {
		if err := p.repo.Retry(ctx, job.ID); err != nil {
			log.Warn().Err(err).Str("job_id", job.ID.String()).Msg("failed to retry job")
			continue
		}

		// Republish to NATS
		job.Status = StatusPending
		if err := p.publishJob(ctx, job); err != nil {
			log.Warn().Err(err).Str("job_id", job.ID.String()).Msg("failed to republish job")
		}

		count++
	}

	return count, nil
}
