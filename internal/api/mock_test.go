package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mutbatch/mutbatch/internal/jobs"
)

// MockJobRepository is an in-memory implementation for handler tests
type MockJobRepository struct {
	jobs      map[uuid.UUID]*jobs.Job
	createErr error
	getErr    error
	listErr   error
}

// Compile-time check that MockJobRepository implements JobRepository
var _ JobRepository = (*MockJobRepository)(nil)

func NewMockJobRepository() *MockJobRepository {
	return &MockJobRepository{
		jobs: make(map[uuid.UUID]*jobs.Job),
	}
}

func (m *MockJobRepository) Create(ctx context.Context, job *jobs.Job) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *MockJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	job, ok := m.jobs[id]
	if !ok {
		return nil, nil
	}
	return job, nil
}

func (m *MockJobRepository) ListRecent(ctx context.Context, limit int) ([]*jobs.Job, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*jobs.Job
	for _, j := range m.jobs {
		result = append(result, j)
		if len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (m *MockJobRepository) ListByStatus(ctx context.Context, status jobs.JobStatus, limit int) ([]*jobs.Job, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*jobs.Job
	for _, j := range m.jobs {
		if j.Status == status {
			result = append(result, j)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (m *MockJobRepository) ListPendingByType(ctx context.Context, jobType jobs.JobType, limit int) ([]*jobs.Job, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*jobs.Job
	for _, j := range m.jobs {
		if j.Type == jobType && j.Status == jobs.StatusPending {
			result = append(result, j)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (m *MockJobRepository) ListByBatch(ctx context.Context, batchID uuid.UUID, limit int) ([]*jobs.Job, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*jobs.Job
	for _, j := range m.jobs {
		if j.BatchID != nil && *j.BatchID == batchID {
			result = append(result, j)
			if len(result) >= limit {
				break
			}
		}
	}
	return result, nil
}

func (m *MockJobRepository) GetChildJobs(ctx context.Context, parentID uuid.UUID) ([]*jobs.Job, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var result []*jobs.Job
	for _, j := range m.jobs {
		if j.ParentJobID != nil && *j.ParentJobID == parentID {
			result = append(result, j)
		}
	}
	return result, nil
}

func (m *MockJobRepository) Cancel(ctx context.Context, jobID uuid.UUID) error {
	job, ok := m.jobs[jobID]
	if !ok {
		return nil
	}
	job.Status = jobs.StatusCancelled
	return nil
}

func (m *MockJobRepository) Retry(ctx context.Context, jobID uuid.UUID) error {
	job, ok := m.jobs[jobID]
	if !ok {
		return nil
	}
	job.Status = jobs.StatusPending
	job.RetryCount++
	return nil
}

// AddJob adds a test job to the mock repository
func (m *MockJobRepository) AddJob(job *jobs.Job) {
	m.jobs[job.ID] = job
}

// setupMockServer creates a test server with a mock job repository
func setupMockServer(mockRepo *MockJobRepository) *Server {
	server, _ := NewServer(nil, nil, mockRepo, nil)
	return server
}

func TestMockListJobs_Empty(t *testing.T) {
	server := setupMockServer(NewMockJobRepository())

	req := httptest.NewRequest("GET", "/api/v1/jobs/", nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("listJobs returned status %d, want %d", rr.Code, http.StatusOK)
	}

	var resp []*JobResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(resp) != 0 {
		t.Errorf("expected empty list, got %d items", len(resp))
	}
}

func TestMockListJobs_ByBatch(t *testing.T) {
	mockRepo := NewMockJobRepository()
	server := setupMockServer(mockRepo)

	batchID := uuid.New()
	otherBatchID := uuid.New()

	mockRepo.AddJob(&jobs.Job{
		ID:        uuid.New(),
		Type:      jobs.JobTypeClone,
		Status:    jobs.StatusPending,
		BatchID:   &batchID,
		CreatedAt: time.Now(),
	})
	mockRepo.AddJob(&jobs.Job{
		ID:        uuid.New(),
		Type:      jobs.JobTypeMutation,
		Status:    jobs.StatusPending,
		BatchID:   &otherBatchID,
		CreatedAt: time.Now(),
	})

	req := httptest.NewRequest("GET", "/api/v1/jobs/?batch="+batchID.String(), nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("listJobs returned status %d, want %d", rr.Code, http.StatusOK)
	}

	var resp []*JobResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("expected 1 job for batch, got %d", len(resp))
	}
	if resp[0].Type != string(jobs.JobTypeClone) {
		t.Errorf("Type = %s, want %s", resp[0].Type, jobs.JobTypeClone)
	}
}

func TestMockListJobs_ByStatus(t *testing.T) {
	mockRepo := NewMockJobRepository()
	server := setupMockServer(mockRepo)

	mockRepo.AddJob(&jobs.Job{
		ID:        uuid.New(),
		Type:      jobs.JobTypeMutation,
		Status:    jobs.StatusFailed,
		CreatedAt: time.Now(),
	})
	mockRepo.AddJob(&jobs.Job{
		ID:        uuid.New(),
		Type:      jobs.JobTypeMutation,
		Status:    jobs.StatusCompleted,
		CreatedAt: time.Now(),
	})

	req := httptest.NewRequest("GET", "/api/v1/jobs/?status=failed", nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("listJobs returned status %d, want %d", rr.Code, http.StatusOK)
	}

	var resp []*JobResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(resp) != 1 {
		t.Fatalf("expected 1 failed job, got %d", len(resp))
	}
	if resp[0].Status != "failed" {
		t.Errorf("Status = %s, want failed", resp[0].Status)
	}
}

func TestMockListJobs_InvalidBatchID(t *testing.T) {
	server := setupMockServer(NewMockJobRepository())

	req := httptest.NewRequest("GET", "/api/v1/jobs/?batch=not-a-uuid", nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("listJobs returned status %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestMockGetJob_WithChildren(t *testing.T) {
	mockRepo := NewMockJobRepository()
	server := setupMockServer(mockRepo)

	parentID := uuid.New()
	mockRepo.AddJob(&jobs.Job{
		ID:        parentID,
		Type:      jobs.JobTypeClone,
		Status:    jobs.StatusCompleted,
		CreatedAt: time.Now(),
	})
	mockRepo.AddJob(&jobs.Job{
		ID:          uuid.New(),
		Type:        jobs.JobTypeMutation,
		Status:      jobs.StatusRunning,
		ParentJobID: &parentID,
		CreatedAt:   time.Now(),
	})

	req := httptest.NewRequest("GET", "/api/v1/jobs/"+parentID.String(), nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("getJob returned status %d, want %d", rr.Code, http.StatusOK)
	}

	var resp JobStatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if resp.Job == nil || resp.Job.ID != parentID {
		t.Error("parent job missing from response")
	}
	if len(resp.Children) != 1 {
		t.Errorf("expected 1 child job, got %d", len(resp.Children))
	}
}

func TestMockGetJob_NotFound(t *testing.T) {
	server := setupMockServer(NewMockJobRepository())

	req := httptest.NewRequest("GET", "/api/v1/jobs/"+uuid.New().String(), nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("getJob returned status %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestMockCancelJob_Success(t *testing.T) {
	mockRepo := NewMockJobRepository()
	server := setupMockServer(mockRepo)

	jobID := uuid.New()
	mockRepo.AddJob(&jobs.Job{
		ID:        jobID,
		Type:      jobs.JobTypeMutation,
		Status:    jobs.StatusPending,
		CreatedAt: time.Now(),
	})

	req := httptest.NewRequest("POST", "/api/v1/jobs/"+jobID.String()+"/cancel", nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("cancelJob returned status %d, want %d", rr.Code, http.StatusOK)
	}
	if mockRepo.jobs[jobID].Status != jobs.StatusCancelled {
		t.Errorf("job status = %s, want cancelled", mockRepo.jobs[jobID].Status)
	}
}

func TestMockRetryJob_Success(t *testing.T) {
	mockRepo := NewMockJobRepository()
	server := setupMockServer(mockRepo)

	jobID := uuid.New()
	mockRepo.AddJob(&jobs.Job{
		ID:        jobID,
		Type:      jobs.JobTypeMutation,
		Status:    jobs.StatusFailed,
		CreatedAt: time.Now(),
	})

	req := httptest.NewRequest("POST", "/api/v1/jobs/"+jobID.String()+"/retry", nil)
	rr := httptest.NewRecorder()

	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("retryJob returned status %d, want %d", rr.Code, http.StatusOK)
	}

	var resp JobResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if resp.Status != "pending" {
		t.Errorf("Status = %s, want pending", resp.Status)
	}
	if resp.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", resp.RetryCount)
	}
}
