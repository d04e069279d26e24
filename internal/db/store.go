package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides database operations
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new store
func NewStore(db *DB) *Store {
	return &Store{pool: db.Pool()}
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Batch represents one batch run over a set of submissions
type Batch struct {
	ID            uuid.UUID       `json:"id"`
	WorkspaceID   *string         `json:"workspace_id,omitempty"`
	Engine        string          `json:"engine"`
	Subset        string          `json:"subset"`
	Status        string          `json:"status"`
	Config        json.RawMessage `json:"config"`
	TotalProjects int             `json:"total_projects"`
	Completed     int             `json:"completed"`
	Failed        int             `json:"failed"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ProjectResult represents one project's outcome within a batch
type ProjectResult struct {
	ID          uuid.UUID        `json:"id"`
	BatchID     uuid.UUID        `json:"batch_id"`
	ProjectName string           `json:"project_name"`
	Source      *string          `json:"source,omitempty"`
	Success     bool             `json:"success"`
	Mutants     int              `json:"mutants"`
	Killed      int              `json:"killed"`
	Survived    int              `json:"survived"`
	Score       float64          `json:"score"`
	RunningTime *float64         `json:"running_time,omitempty"`
	Error       *string          `json:"error,omitempty"`
	ReportPath  *string          `json:"report_path,omitempty"`
	Steps       *json.RawMessage `json:"steps,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Mutant represents one generated mutant, mirroring the mutants CSV columns
type Mutant struct {
	ID          uuid.UUID `json:"id"`
	ResultID    uuid.UUID `json:"result_id"`
	UserName    string    `json:"user_name"`
	FileName    string    `json:"file_name"`
	ClassName   string    `json:"class_name"`
	Mutator     string    `json:"mutator"`
	Method      string    `json:"method"`
	LineNumber  int       `json:"line_number"`
	Status      string    `json:"status"`
	KillingTest *string   `json:"killing_test,omitempty"`
}

// BatchStats aggregates one batch's project results
type BatchStats struct {
	Projects  int     `json:"projects"`
	Succeeded int     `json:"succeeded"`
	Failed    int     `json:"failed"`
	Mutants   int     `json:"mutants"`
	Killed    int     `json:"killed"`
	MeanScore float64 `json:"mean_score"`
}

// CreateBatch creates a new batch
func (s *Store) CreateBatch(ctx context.Context, b *Batch) error {
	// Only generate a new UUID if one isn't already set
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.Status == "" {
		b.Status = "pending"
	}
	b.CreatedAt = time.Now()

	if b.Config == nil {
		b.Config = json.RawMessage(`{}`)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO batches (id, workspace_id, engine, subset, status, config, total_projects, completed, failed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, b.ID, b.WorkspaceID, b.Engine, b.Subset, b.Status, b.Config, b.TotalProjects, b.Completed, b.Failed, b.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}

	return nil
}

// GetBatch gets a batch by ID
func (s *Store) GetBatch(ctx context.Context, id uuid.UUID) (*Batch, error) {
	b := &Batch{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, workspace_id, engine, subset, status, config, total_projects, completed, failed,
		       started_at, completed_at, created_at
		FROM batches WHERE id = $1
	`, id).Scan(&b.ID, &b.WorkspaceID, &b.Engine, &b.Subset, &b.Status, &b.Config,
		&b.TotalProjects, &b.Completed, &b.Failed, &b.StartedAt, &b.CompletedAt, &b.CreatedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	return b, nil
}

// GetBatchByWorkspace gets the batch created for a workspace
func (s *Store) GetBatchByWorkspace(ctx context.Context, workspaceID string) (*Batch, error) {
	b := &Batch{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, workspace_id, engine, subset, status, config, total_projects, completed, failed,
		       started_at, completed_at, created_at
		FROM batches WHERE workspace_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, workspaceID).Scan(&b.ID, &b.WorkspaceID, &b.Engine, &b.Subset, &b.Status, &b.Config,
		&b.TotalProjects, &b.Completed, &b.Failed, &b.StartedAt, &b.CompletedAt, &b.CreatedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	return b, nil
}

// ListBatches lists all batches
func (s *Store) ListBatches(ctx context.Context, limit, offset int) ([]Batch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, workspace_id, engine, subset, status, config, total_projects, completed, failed,
		       started_at, completed_at, created_at
		FROM batches
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	batches := make([]Batch, 0)
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.WorkspaceID, &b.Engine, &b.Subset, &b.Status, &b.Config,
			&b.TotalProjects, &b.Completed, &b.Failed, &b.StartedAt, &b.CompletedAt, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		batches = append(batches, b)
	}

	return batches, nil
}

// UpdateBatchStatus updates a batch's status
func (s *Store) UpdateBatchStatus(ctx context.Context, id uuid.UUID, status string) error {
	now := time.Now()
	var startedAt, completedAt *time.Time

	if status == "running" {
		startedAt = &now
	}
	if status == "completed" || status == "failed" {
		completedAt = &now
	}

	_, err := s.pool.Exec(ctx, `
		UPDATE batches
		SET status = $2,
		    started_at = COALESCE($3, started_at),
		    completed_at = COALESCE($4, completed_at)
		WHERE id = $1
	`, id, status, startedAt, completedAt)

	return err
}

// UpdateBatchCounts updates a batch's progress counters
func (s *Store) UpdateBatchCounts(ctx context.Context, id uuid.UUID, completed, failed int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE batches SET completed = $2, failed = $3
		WHERE id = $1
	`, id, completed, failed)
	return err
}

// CreateProjectResult creates a new project result
func (s *Store) CreateProjectResult(ctx context.Context, r *ProjectResult) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = time.Now()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO project_results (id, batch_id, project_name, source, success, mutants, killed,
		                             survived, score, running_time, error, report_path, steps, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, r.ID, r.BatchID, r.ProjectName, r.Source, r.Success, r.Mutants, r.Killed,
		r.Survived, r.Score, r.RunningTime, r.Error, r.ReportPath, r.Steps, r.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create project result: %w", err)
	}

	return nil
}

// GetProjectResult gets one project's result within a batch
func (s *Store) GetProjectResult(ctx context.Context, batchID uuid.UUID, projectName string) (*ProjectResult, error) {
	r := &ProjectResult{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, batch_id, project_name, source, success, mutants, killed, survived, score,
		       running_time, error, report_path, steps, created_at
		FROM project_results
		WHERE batch_id = $1 AND project_name = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, batchID, projectName).Scan(&r.ID, &r.BatchID, &r.ProjectName, &r.Source, &r.Success,
		&r.Mutants, &r.Killed, &r.Survived, &r.Score, &r.RunningTime, &r.Error,
		&r.ReportPath, &r.Steps, &r.CreatedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project result: %w", err)
	}

	return r, nil
}

// ListResultsByBatch lists all project results for a batch
func (s *Store) ListResultsByBatch(ctx context.Context, batchID uuid.UUID) ([]ProjectResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, batch_id, project_name, source, success, mutants, killed, survived, score,
		       running_time, error, report_path, steps, created_at
		FROM project_results
		WHERE batch_id = $1
		ORDER BY project_name
	`, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project results: %w", err)
	}
	defer rows.Close()

	results := make([]ProjectResult, 0)
	for rows.Next() {
		var r ProjectResult
		if err := rows.Scan(&r.ID, &r.BatchID, &r.ProjectName, &r.Source, &r.Success,
			&r.Mutants, &r.Killed, &r.Survived, &r.Score, &r.RunningTime, &r.Error,
			&r.ReportPath, &r.Steps, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project result: %w", err)
		}
		results = append(results, r)
	}

	return results, nil
}

// CreateMutants inserts one result's mutants. Batches arrive in the
// thousands per project, so failures name the offending row.
func (s *Store) CreateMutants(ctx context.Context, resultID uuid.UUID, mutants []Mutant) error {
	for i := range mutants {
		m := &mutants[i]
		if m.ID == uuid.Nil {
			m.ID = uuid.New()
		}
		m.ResultID = resultID

		_, err := s.pool.Exec(ctx, `
			INSERT INTO mutants (id, result_id, user_name, file_name, class_name, mutator, method,
			                     line_number, status, killing_test)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, m.ID, m.ResultID, m.UserName, m.FileName, m.ClassName, m.Mutator, m.Method,
			m.LineNumber, m.Status, m.KillingTest)

		if err != nil {
			return fmt.Errorf("failed to create mutant %s:%d: %w", m.ClassName, m.LineNumber, err)
		}
	}

	return nil
}

// ListMutantsByResult lists all mutants recorded for a project result
func (s *Store) ListMutantsByResult(ctx context.Context, resultID uuid.UUID) ([]Mutant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, result_id, user_name, file_name, class_name, mutator, method, line_number, status, killing_test
		FROM mutants
		WHERE result_id = $1
		ORDER BY class_name, line_number
	`, resultID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mutants: %w", err)
	}
	defer rows.Close()

	mutants := make([]Mutant, 0)
	for rows.Next() {
		var m Mutant
		if err := rows.Scan(&m.ID, &m.ResultID, &m.UserName, &m.FileName, &m.ClassName,
			&m.Mutator, &m.Method, &m.LineNumber, &m.Status, &m.KillingTest); err != nil {
			return nil, fmt.Errorf("failed to scan mutant: %w", err)
		}
		mutants = append(mutants, m)
	}

	return mutants, nil
}

// GetBatchStats aggregates a batch's project results
func (s *Store) GetBatchStats(ctx context.Context, batchID uuid.UUID) (*BatchStats, error) {
	stats := &BatchStats{}
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE success),
		       COUNT(*) FILTER (WHERE NOT success),
		       COALESCE(SUM(mutants), 0),
		       COALESCE(SUM(killed), 0),
		       COALESCE(AVG(score) FILTER (WHERE success), 0)
		FROM project_results
		WHERE batch_id = $1
	`, batchID).Scan(&stats.Projects, &stats.Succeeded, &stats.Failed,
		&stats.Mutants, &stats.Killed, &stats.MeanScore)

	if err != nil {
		return nil, fmt.Errorf("failed to get batch stats: %w", err)
	}

	return stats, nil
}

// DeleteBatch deletes a batch and all related data (cascading)
func (s *Store) DeleteBatch(ctx context.Context, id uuid.UUID) error {
	// The database schema has ON DELETE CASCADE, so this will delete related results and mutants
	result, err := s.pool.Exec(ctx, `DELETE FROM batches WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete batch: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("batch not found")
	}

	return nil
}
