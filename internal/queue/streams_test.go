package queue

import (
	"testing"
	"time"
)

// ============================================================================
// Stream and subject constants
// ============================================================================

func TestStreamConstants(t *testing.T) {
	if StreamJobs != "MUTBATCH_JOBS" {
		t.Errorf("StreamJobs = %s, want MUTBATCH_JOBS", StreamJobs)
	}
	if SubjectJobsAll != "jobs.>" {
		t.Errorf("SubjectJobsAll = %s, want jobs.>", SubjectJobsAll)
	}
	if SubjectJobClone != "jobs.clone" {
		t.Errorf("SubjectJobClone = %s, want jobs.clone", SubjectJobClone)
	}
	if SubjectJobMutation != "jobs.mutation" {
		t.Errorf("SubjectJobMutation = %s, want jobs.mutation", SubjectJobMutation)
	}
	if SubjectJobAggregate != "jobs.aggregate" {
		t.Errorf("SubjectJobAggregate = %s, want jobs.aggregate", SubjectJobAggregate)
	}
	if ConsumerClone != "clone-worker" {
		t.Errorf("ConsumerClone = %s, want clone-worker", ConsumerClone)
	}
	if ConsumerMutation != "mutation-worker" {
		t.Errorf("ConsumerMutation = %s, want mutation-worker", ConsumerMutation)
	}
	if ConsumerAggregate != "aggregate-worker" {
		t.Errorf("ConsumerAggregate = %s, want aggregate-worker", ConsumerAggregate)
	}
}

// ============================================================================
// SubjectForJobType
// ============================================================================

func TestSubjectForJobType(t *testing.T) {
	tests := []struct {
		jobType string
		want    string
	}{
		{"clone_project", SubjectJobClone},
		{"run_mutation", SubjectJobMutation},
		{"aggregate_batch", SubjectJobAggregate},
		{"unknown_type", ""},
	}

	for _, tt := range tests {
		t.Run(tt.jobType, func(t *testing.T) {
			if got := SubjectForJobType(tt.jobType); got != tt.want {
				t.Errorf("SubjectForJobType(%s) = %s, want %s", tt.jobType, got, tt.want)
			}
		})
	}
}

func TestSubjectForJobType_EmptyString(t *testing.T) {
	if got := SubjectForJobType(""); got != "" {
		t.Errorf("SubjectForJobType(\"\") = %s, want empty", got)
	}
}

func TestSubjectForJobType_MixedCase(t *testing.T) {
	// Job types are case-sensitive
	if got := SubjectForJobType("Clone_Project"); got != "" {
		t.Errorf("SubjectForJobType(Clone_Project) = %s, want empty", got)
	}
}

func TestSubjectForJobType_WithSpaces(t *testing.T) {
	if got := SubjectForJobType(" clone_project "); got != "" {
		t.Errorf("SubjectForJobType with spaces = %s, want empty", got)
	}
}

func TestSubjectForJobType_PartialMatch(t *testing.T) {
	if got := SubjectForJobType("clone"); got != "" {
		t.Errorf("SubjectForJobType(clone) = %s, want empty", got)
	}
	if got := SubjectForJobType("mutation"); got != "" {
		t.Errorf("SubjectForJobType(mutation) = %s, want empty", got)
	}
}

// ============================================================================
// ConsumerForJobType
// ============================================================================

func TestConsumerForJobType(t *testing.T) {
	tests := []struct {
		jobType string
		want    string
	}{
		{"clone_project", ConsumerClone},
		{"run_mutation", ConsumerMutation},
		{"aggregate_batch", ConsumerAggregate},
		{"unknown_type", ""},
	}

	for _, tt := range tests {
		t.Run(tt.jobType, func(t *testing.T) {
			if got := ConsumerForJobType(tt.jobType); got != tt.want {
				t.Errorf("ConsumerForJobType(%s) = %s, want %s", tt.jobType, got, tt.want)
			}
		})
	}
}

func TestConsumerForJobType_EmptyString(t *testing.T) {
	if got := ConsumerForJobType(""); got != "" {
		t.Errorf("ConsumerForJobType(\"\") = %s, want empty", got)
	}
}

func TestConsumerForJobType_MixedCase(t *testing.T) {
	if got := ConsumerForJobType("RUN_MUTATION"); got != "" {
		t.Errorf("ConsumerForJobType(RUN_MUTATION) = %s, want empty", got)
	}
}

func TestConsumerForJobType_WithSpaces(t *testing.T) {
	if got := ConsumerForJobType("run_mutation "); got != "" {
		t.Errorf("ConsumerForJobType with trailing space = %s, want empty", got)
	}
}

func TestConsumerForJobType_SimilarName(t *testing.T) {
	// Near-miss names must not map to a consumer
	if got := ConsumerForJobType("run_mutations"); got != "" {
		t.Errorf("ConsumerForJobType(run_mutations) = %s, want empty", got)
	}
}

// ============================================================================
// DefaultStreamConfig
// ============================================================================

func TestDefaultStreamConfig_Description(t *testing.T) {
	cfg := DefaultStreamConfig()

	if cfg.Description != "mutbatch job processing stream" {
		t.Errorf("Description = %s, want 'mutbatch job processing stream'", cfg.Description)
	}
}

func TestDefaultStreamConfig_MaxBytes(t *testing.T) {
	cfg := DefaultStreamConfig()

	// 500MB
	want := int64(500 * 1024 * 1024)
	if cfg.MaxBytes != want {
		t.Errorf("MaxBytes = %d, want %d", cfg.MaxBytes, want)
	}
}

func TestDefaultStreamConfig_MaxAge(t *testing.T) {
	cfg := DefaultStreamConfig()

	if cfg.MaxAge != 7*24*time.Hour {
		t.Errorf("MaxAge = %v, want 168h", cfg.MaxAge)
	}
}
