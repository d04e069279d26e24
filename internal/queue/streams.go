// Package queue provides stream configuration for batch job processing
package queue

import (
	"context"
	"time"
)

// Stream names
const (
	StreamJobs = "MUTBATCH_JOBS"
)

// Subject patterns for job routing
const (
	// SubjectJobsAll matches all job subjects
	SubjectJobsAll = "jobs.>"

	// Job type subjects
	SubjectJobClone     = "jobs.clone"
	SubjectJobMutation  = "jobs.mutation"
	SubjectJobAggregate = "jobs.aggregate"
)

// Consumer names
const (
	ConsumerClone     = "clone-worker"
	ConsumerMutation  = "mutation-worker"
	ConsumerAggregate = "aggregate-worker"
)

// DefaultStreamConfig returns the default stream configuration for jobs
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name:        StreamJobs,
		Subjects:    []string{SubjectJobsAll},
		MaxMsgs:     100000,
		MaxBytes:    1024 * 1024 * 500, // 500MB
		MaxAge:      7 * 24 * time.Hour,
		Replicas:    1,
		Description: "mutbatch job processing stream",
	}
}

// SetupStreams creates all required streams and consumers
func (c *Client) SetupStreams(ctx context.Context) error {
	// Create main jobs stream
	_, err := c.CreateStream(ctx, DefaultStreamConfig())
	if err != nil {
		return err
	}

	// Create consumers for each worker type
	consumers := []struct {
		name    string
		subject string
	}{
		{ConsumerClone, SubjectJobClone},
		{ConsumerMutation, SubjectJobMutation},
		{ConsumerAggregate, SubjectJobAggregate},
	}

	for _, cons := range consumers {
		if _, err := c.CreateConsumer(ctx, StreamJobs, cons.name, cons.subject); err != nil {
			return err
		}
	}

	return nil
}

// SubjectForJobType returns the NATS subject for a job type
func SubjectForJobType(jobType string) string {
	switch jobType {
	case "clone_project":
		return SubjectJobClone
	case "run_mutation":
		return SubjectJobMutation
	case "aggregate_batch":
		return SubjectJobAggregate
	default:
		return ""
	}
}

// ConsumerForJobType returns the consumer name for a job type
func ConsumerForJobType(jobType string) string {
	switch jobType {
	case "clone_project":
		return ConsumerClone
	case "run_mutation":
		return ConsumerMutation
	case "aggregate_batch":
		return ConsumerAggregate
	default:
		return ""
	}
}
