// Package integration provides worker system tests
package integration

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/mutbatch/mutbatch/internal/config"
	"github.com/mutbatch/mutbatch/internal/jobs"
	"github.com/mutbatch/mutbatch/internal/worker"
)

// TestWorkerPipelineFlow tests the clone -> mutate -> aggregate job chain
// without a database
func TestWorkerPipelineFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	batchID := uuid.New()

	// Stage 1: clone job
	clonePayload := jobs.ClonePayload{
		BatchID:     batchID,
		ProjectName: "alice",
		ProjectPath: "/submissions/alice",
		Workdir:     "/tmp/clones",
		Engine:      "pit",
		Subset:      "deletion",
	}
	cloneJob, err := jobs.NewJob(jobs.JobTypeClone, clonePayload)
	if err != nil {
		t.Fatalf("Failed to create clone job: %v", err)
	}
	cloneJob.BatchID = &batchID
	if cloneJob.Type != jobs.JobTypeClone {
		t.Errorf("Job type = %s, want clone_project", cloneJob.Type)
	}
	if cloneJob.Status != jobs.StatusPending {
		t.Errorf("Job status = %s, want pending", cloneJob.Status)
	}

	// Stage 2: mutation job (chained from the clone)
	mutationPayload := jobs.MutationPayload{
		BatchID:     batchID,
		ProjectName: "alice",
		CloneDir:    "/tmp/clones/alice",
		Source:      "/submissions/alice",
		Engine:      "pit",
		Subset:      "deletion",
	}
	mutationJob, err := jobs.NewJob(jobs.JobTypeMutation, mutationPayload)
	if err != nil {
		t.Fatalf("Failed to create mutation job: %v", err)
	}
	mutationJob.ParentJobID = &cloneJob.ID
	mutationJob.BatchID = &batchID

	// Stage 3: aggregation over the whole batch
	aggregatePayload := jobs.AggregatePayload{
		BatchID:     batchID,
		ReportsRoot: "/tmp/clones",
		OutputDir:   "/tmp/output",
	}
	aggregateJob, err := jobs.NewJob(jobs.JobTypeAggregate, aggregatePayload)
	if err != nil {
		t.Fatalf("Failed to create aggregate job: %v", err)
	}
	aggregateJob.BatchID = &batchID

	// Verify chain integrity
	allJobs := []*jobs.Job{cloneJob, mutationJob, aggregateJob}
	expectedTypes := []jobs.JobType{
		jobs.JobTypeClone,
		jobs.JobTypeMutation,
		jobs.JobTypeAggregate,
	}
	for i, job := range allJobs {
		if job.Type != expectedTypes[i] {
			t.Errorf("Job[%d] type = %s, want %s", i, job.Type, expectedTypes[i])
		}
		if job.BatchID == nil || *job.BatchID != batchID {
			t.Errorf("Job[%d] not tagged with batch", i)
		}
	}
	if mutationJob.ParentJobID == nil || *mutationJob.ParentJobID != cloneJob.ID {
		t.Error("mutation job not chained to clone job")
	}
}

// TestJobPayloadRoundtrip tests serialization of each payload type through
// the job envelope
func TestJobPayloadRoundtrip(t *testing.T) {
	batchID := uuid.New()

	t.Run("clone", func(t *testing.T) {
		payload := jobs.ClonePayload{
			BatchID:     batchID,
			ProjectName: "bob",
			GitURL:      "https://github.com/course/bob.git",
			Workdir:     "/data/clones",
			SkipPackage: true,
			Engine:      "mujava",
			Subset:      "all",
		}
		job, err := jobs.NewJob(jobs.JobTypeClone, payload)
		if err != nil {
			t.Fatalf("NewJob: %v", err)
		}

		var decoded jobs.ClonePayload
		if err := json.Unmarshal(job.Payload, &decoded); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if decoded.GitURL != payload.GitURL || decoded.Engine != "mujava" || !decoded.SkipPackage {
			t.Errorf("decoded payload mismatch: %+v", decoded)
		}
	})

	t.Run("mutation", func(t *testing.T) {
		payload := jobs.MutationPayload{
			BatchID:     batchID,
			ProjectName: "bob",
			CloneDir:    "/data/clones/bob",
			Engine:      "pit",
			Subset:      "sufficient",
			Steps:       true,
		}
		job, err := jobs.NewJob(jobs.JobTypeMutation, payload)
		if err != nil {
			t.Fatalf("NewJob: %v", err)
		}

		var decoded jobs.MutationPayload
		if err := json.Unmarshal(job.Payload, &decoded); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if decoded.Subset != "sufficient" || !decoded.Steps {
			t.Errorf("decoded payload mismatch: %+v", decoded)
		}
	})

	t.Run("aggregate", func(t *testing.T) {
		payload := jobs.AggregatePayload{
			BatchID:      batchID,
			ReportsRoot:  "/data/clones",
			OutputDir:    "/data/output",
			MetadataPath: "/data/meta.csv",
		}
		job, err := jobs.NewJob(jobs.JobTypeAggregate, payload)
		if err != nil {
			t.Fatalf("NewJob: %v", err)
		}

		var decoded jobs.AggregatePayload
		if err := json.Unmarshal(job.Payload, &decoded); err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		if decoded.MetadataPath != payload.MetadataPath {
			t.Errorf("decoded payload mismatch: %+v", decoded)
		}
	})
}

// TestWorkerPool_NoInfrastructure verifies pools construct in limited mode,
// with neither database nor queue attached
func TestWorkerPool_NoInfrastructure(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	for _, workerType := range []string{"all", "clone", "mutation", "aggregate"} {
		t.Run(workerType, func(t *testing.T) {
			pool, err := worker.NewPool(worker.PoolConfig{
				Config:     &config.Config{},
				WorkerType: workerType,
			})
			if err != nil {
				t.Fatalf("NewPool(%s): %v", workerType, err)
			}
			if pool == nil {
				t.Fatal("pool is nil")
			}
			if pool.Repository() != nil {
				t.Error("expected nil repository without database")
			}
		})
	}
}
