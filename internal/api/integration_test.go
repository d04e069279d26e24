//go:build integration
// +build integration

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mutbatch/mutbatch/internal/config"
	"github.com/mutbatch/mutbatch/internal/db"
	"github.com/mutbatch/mutbatch/internal/testutil"
)

// setupIntegrationServer spins up a server backed by the test database.
// Skips when Postgres is not reachable.
func setupIntegrationServer(t *testing.T) (*Server, *db.Store, func()) {
	t.Helper()

	testDB := testutil.RequireDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	database, err := db.New(ctx, testutil.GetTestDBURL())
	if err != nil {
		testDB.Close()
		t.Skipf("skipping: could not connect store: %v", err)
	}

	store := db.NewStore(database)
	server, err := NewServer(&config.Config{}, store, nil, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	cleanup := func() {
		testDB.Cleanup(t)
		database.Close()
		testDB.Close()
	}
	return server, store, cleanup
}

func TestIntegrationBatchLifecycle(t *testing.T) {
	server, store, cleanup := setupIntegrationServer(t)
	defer cleanup()

	ctx := context.Background()
	batch := &db.Batch{
		Engine:        "pit",
		Subset:        "deletion",
		Config:        []byte(`{}`),
		TotalProjects: 3,
	}
	if err := store.CreateBatch(ctx, batch); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	// List includes the new batch
	req := httptest.NewRequest("GET", "/api/v1/batches/", nil)
	rr := httptest.NewRecorder()
	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("listBatches returned %d", rr.Code)
	}
	var batches []*db.Batch
	if err := json.Unmarshal(rr.Body.Bytes(), &batches); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(batches) == 0 {
		t.Fatal("expected at least one batch")
	}

	// Get by ID
	req = httptest.NewRequest("GET", "/api/v1/batches/"+batch.ID.String(), nil)
	rr = httptest.NewRecorder()
	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("getBatch returned %d", rr.Code)
	}
	var detail BatchDetailResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &detail); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if detail.Batch == nil || detail.Batch.ID != batch.ID {
		t.Error("batch detail mismatch")
	}
	if detail.Batch.Engine != "pit" || detail.Batch.Subset != "deletion" {
		t.Errorf("engine/subset = %s/%s", detail.Batch.Engine, detail.Batch.Subset)
	}

	// Delete, then it is gone
	req = httptest.NewRequest("DELETE", "/api/v1/batches/"+batch.ID.String(), nil)
	rr = httptest.NewRecorder()
	server.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("deleteBatch returned %d", rr.Code)
	}

	req = httptest.NewRequest("GET", "/api/v1/batches/"+batch.ID.String(), nil)
	rr = httptest.NewRecorder()
	server.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("getBatch after delete returned %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestIntegrationBatchResults(t *testing.T) {
	server, store, cleanup := setupIntegrationServer(t)
	defer cleanup()

	ctx := context.Background()
	batch := &db.Batch{
		Engine:        "mujava",
		Subset:        "all",
		Config:        []byte(`{}`),
		TotalProjects: 1,
	}
	if err := store.CreateBatch(ctx, batch); err != nil {
		t.Fatalf("CreateBatch: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/v1/batches/"+batch.ID.String()+"/results", nil)
	rr := httptest.NewRecorder()
	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("listBatchResults returned %d", rr.Code)
	}
	var results []*db.ProjectResult
	if err := json.Unmarshal(rr.Body.Bytes(), &results); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results yet, got %d", len(results))
	}
}

func TestIntegrationReadyCheck(t *testing.T) {
	server, _, cleanup := setupIntegrationServer(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/ready", nil)
	rr := httptest.NewRecorder()
	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("readyCheck returned %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestIntegrationUnknownResult(t *testing.T) {
	server, _, cleanup := setupIntegrationServer(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/api/v1/results/"+uuid.New().String()+"/mutants", nil)
	rr := httptest.NewRecorder()
	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("listResultMutants returned %d", rr.Code)
	}
	var mutants []*db.Mutant
	if err := json.Unmarshal(rr.Body.Bytes(), &mutants); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(mutants) != 0 {
		t.Errorf("expected no mutants, got %d", len(mutants))
	}
}

func TestIntegrationSubmissions(t *testing.T) {
	server, store, cleanup := setupIntegrationServer(t)
	defer cleanup()

	ctx := context.Background()
	meta := json.RawMessage(`{"score": 91.5, "statements_nontest": 250}`)
	if _, err := store.UpsertSubmission(ctx, "alice", meta); err != nil {
		t.Fatalf("UpsertSubmission: %v", err)
	}

	// Roster includes the upserted row
	req := httptest.NewRequest("GET", "/api/v1/submissions/", nil)
	rr := httptest.NewRecorder()
	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("listSubmissions returned %d", rr.Code)
	}
	var subs []db.Submission
	if err := json.Unmarshal(rr.Body.Bytes(), &subs); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(subs) != 1 || subs[0].UserName != "alice" {
		t.Fatalf("subs = %+v, want one row for alice", subs)
	}

	// Fetch by user name
	req = httptest.NewRequest("GET", "/api/v1/submissions/alice", nil)
	rr = httptest.NewRecorder()
	server.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("getSubmission returned %d", rr.Code)
	}
	var sub db.Submission
	if err := json.Unmarshal(rr.Body.Bytes(), &sub); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if sub.UserName != "alice" {
		t.Errorf("UserName = %s, want alice", sub.UserName)
	}

	// Upserting again updates in place, no duplicate row
	if _, err := store.UpsertSubmission(ctx, "alice", json.RawMessage(`{"score": 95}`)); err != nil {
		t.Fatalf("UpsertSubmission update: %v", err)
	}
	again, err := store.ListSubmissions(ctx)
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(again) != 1 {
		t.Errorf("expected one row after re-upsert, got %d", len(again))
	}

	req = httptest.NewRequest("GET", "/api/v1/submissions/nobody", nil)
	rr = httptest.NewRecorder()
	server.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown user returned %d, want %d", rr.Code, http.StatusNotFound)
	}
}
