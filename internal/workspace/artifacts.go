package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ArtifactManager stores batch artifacts next to workspace.json
type ArtifactManager struct {
	ws          *Workspace
	artifactDir string
}

// NewArtifactManager creates an artifact manager for a workspace
func NewArtifactManager(ws *Workspace) *ArtifactManager {
	return &ArtifactManager{
		ws:          ws,
		artifactDir: filepath.Join(ws.Path(), "artifacts"),
	}
}

// Init creates the artifacts directory
func (a *ArtifactManager) Init() error {
	return os.MkdirAll(a.artifactDir, 0755)
}

// BatchPlan records what the batch is about to do
type BatchPlan struct {
	Version   string        `json:"version"`
	Workspace string        `json:"workspace_id"`
	Engine    string        `json:"engine"`
	Subset    string        `json:"subset"`
	CreatedAt time.Time     `json:"created_at"`
	Total     int           `json:"total_projects"`
	Projects  []PlanProject `json:"projects"`
}

// PlanProject is one batch entry in the plan
type PlanProject struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// GeneratePlan creates the batch plan artifact
func (a *ArtifactManager) GeneratePlan() (*BatchPlan, error) {
	plan := &BatchPlan{
		Version:   "1.0",
		Workspace: a.ws.ID,
		Engine:    a.ws.Engine,
		Subset:    a.ws.Subset,
		CreatedAt: time.Now(),
		Projects:  make([]PlanProject, 0),
	}

	for _, p := range a.ws.Projects() {
		plan.Projects = append(plan.Projects, PlanProject{
			Name:   p.Name,
			Source: p.Source,
		})
	}
	plan.Total = len(plan.Projects)

	if err := a.saveArtifact("batch-plan.json", plan); err != nil {
		return nil, err
	}

	return plan, nil
}

// BatchReport is the final summary artifact of one batch
type BatchReport struct {
	Version     string          `json:"version"`
	Workspace   string          `json:"workspace_id"`
	Engine      string          `json:"engine"`
	Subset      string          `json:"subset"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	Duration    string          `json:"duration"`
	Results     BatchResults    `json:"results"`
	Projects    []ProjectResult `json:"projects"`
	Artifacts   []string        `json:"artifacts"`
}

// BatchResults tallies the project outcomes
type BatchResults struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// ProjectResult is one project's outcome in the report
type ProjectResult struct {
	Name        string  `json:"name"`
	Status      Status  `json:"status"`
	RunningTime float64 `json:"running_time,omitempty"`
	Error       string  `json:"error,omitempty"`
}

// GenerateSummary creates the final summary artifact
func (a *ArtifactManager) GenerateSummary(startTime time.Time) (*BatchReport, error) {
	report := &BatchReport{
		Version:     "1.0",
		Workspace:   a.ws.ID,
		Engine:      a.ws.Engine,
		Subset:      a.ws.Subset,
		StartedAt:   startTime,
		CompletedAt: time.Now(),
		Duration:    time.Since(startTime).Round(time.Second).String(),
		Projects:    make([]ProjectResult, 0),
	}

	for _, p := range a.ws.Projects() {
		report.Results.Total++
		switch p.Status {
		case StatusDone:
			report.Results.Completed++
		case StatusFailed:
			report.Results.Failed++
		default:
			report.Results.Pending++
		}

		report.Projects = append(report.Projects, ProjectResult{
			Name:        p.Name,
			Status:      p.Status,
			RunningTime: p.RunningTime,
			Error:       p.Error,
		})
	}

	report.Artifacts = a.ListArtifacts()

	if err := a.saveArtifact("batch-summary.json", report); err != nil {
		return nil, err
	}

	return report, nil
}

// ListArtifacts returns all artifact files
func (a *ArtifactManager) ListArtifacts() []string {
	artifacts := []string{}

	entries, err := os.ReadDir(a.artifactDir)
	if err != nil {
		return artifacts
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			artifacts = append(artifacts, entry.Name())
		}
	}

	return artifacts
}

// LoadArtifact loads an artifact by name
func (a *ArtifactManager) LoadArtifact(name string, v interface{}) error {
	path := filepath.Join(a.artifactDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// saveArtifact saves an artifact to disk
func (a *ArtifactManager) saveArtifact(name string, v interface{}) error {
	if err := a.Init(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	path := filepath.Join(a.artifactDir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	return nil
}
