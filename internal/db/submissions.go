package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Submission represents one student's submission metadata. Metadata holds
// the free-form columns of the submission info sheet keyed by header name.
type Submission struct {
	ID        uuid.UUID       `json:"id"`
	UserName  string          `json:"user_name"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CreateSubmission creates a new submission record
func (s *Store) CreateSubmission(ctx context.Context, sub *Submission) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	sub.CreatedAt = time.Now()
	sub.UpdatedAt = time.Now()

	if sub.Metadata == nil {
		sub.Metadata = json.RawMessage(`{}`)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO submissions (id, user_name, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, sub.ID, sub.UserName, sub.Metadata, sub.CreatedAt, sub.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}

	return nil
}

// GetSubmissionByName retrieves a submission by user name
func (s *Store) GetSubmissionByName(ctx context.Context, userName string) (*Submission, error) {
	sub := &Submission{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_name, metadata, created_at, updated_at
		FROM submissions
		WHERE user_name = $1
	`, userName).Scan(&sub.ID, &sub.UserName, &sub.Metadata, &sub.CreatedAt, &sub.UpdatedAt)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}

	return sub, nil
}

// UpsertSubmission creates or refreshes a submission's metadata
func (s *Store) UpsertSubmission(ctx context.Context, userName string, metadata json.RawMessage) (*Submission, error) {
	if metadata == nil {
		metadata = json.RawMessage(`{}`)
	}

	// Try to find an existing record
	existing, err := s.GetSubmissionByName(ctx, userName)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		_, err := s.pool.Exec(ctx, `
			UPDATE submissions
			SET metadata = $2, updated_at = $3
			WHERE id = $1
		`, existing.ID, metadata, time.Now())
		if err != nil {
			return nil, fmt.Errorf("failed to update submission: %w", err)
		}

		return s.GetSubmissionByName(ctx, userName)
	}

	sub := &Submission{
		UserName: userName,
		Metadata: metadata,
	}

	if err := s.CreateSubmission(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

// ListSubmissions lists all submissions ordered by user name
func (s *Store) ListSubmissions(ctx context.Context) ([]Submission, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_name, metadata, created_at, updated_at
		FROM submissions
		ORDER BY user_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	subs := make([]Submission, 0)
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.ID, &sub.UserName, &sub.Metadata, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}

	return subs, nil
}
