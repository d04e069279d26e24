// Package workspace tracks batch state on disk and fans the
// clone-and-mutate work out over a bounded worker group.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mutbatch/mutbatch/internal/tasks"
)

// Workspace is one batch working environment, persisted as workspace.json
type Workspace struct {
	ID        string    `json:"id"`
	Engine    string    `json:"engine"`
	Subset    string    `json:"subset"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// State tracking
	State *BatchState `json:"state"`

	// Internal
	path string // Workspace root directory
	mu   sync.RWMutex
}

// BatchState tracks the batch progress
type BatchState struct {
	Phase     Phase                    `json:"phase"`
	Total     int                      `json:"total"`
	Cloned    int                      `json:"cloned"`
	Completed int                      `json:"completed"`
	Failed    int                      `json:"failed"`
	Projects  map[string]*ProjectState `json:"projects"` // project name -> state
	StartedAt *time.Time               `json:"started_at,omitempty"`
}

// Phase represents the current phase of the batch
type Phase string

const (
	PhaseInit      Phase = "init"
	PhaseCloning   Phase = "cloning"
	PhaseRunning   Phase = "running"
	PhasePaused    Phase = "paused"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// ProjectState tracks a single submission through the batch
type ProjectState struct {
	Name        string     `json:"name"`
	Source      string     `json:"source"` // original path or git URL
	Status      Status     `json:"status"`
	CloneDir    string     `json:"clone_dir,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	RunningTime float64    `json:"running_time,omitempty"`
}

// Status represents the status of a project
type Status string

const (
	StatusPending Status = "pending"
	StatusCloning Status = "cloning"
	StatusCloned  Status = "cloned"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// WorkspaceConfig holds configuration for workspace operations
type WorkspaceConfig struct {
	BaseDir string // Base directory for all workspaces
}

// DefaultConfig returns default workspace configuration
func DefaultConfig() *WorkspaceConfig {
	homeDir, _ := os.UserHomeDir()
	return &WorkspaceConfig{
		BaseDir: filepath.Join(homeDir, ".mutbatch", "workspaces"),
	}
}

// New creates a new workspace
func New(engine, subset string, cfg *WorkspaceConfig) (*Workspace, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	id := uuid.New().String()[:8]
	wsPath := filepath.Join(cfg.BaseDir, id)

	if err := os.MkdirAll(wsPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}

	ws := &Workspace{
		ID:        id,
		Engine:    engine,
		Subset:    subset,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		State: &BatchState{
			Phase:    PhaseInit,
			Projects: make(map[string]*ProjectState),
		},
		path: wsPath,
	}

	if err := ws.Save(); err != nil {
		return nil, err
	}

	return ws, nil
}

// Load loads an existing workspace
func Load(wsPath string) (*Workspace, error) {
	statePath := filepath.Join(wsPath, "workspace.json")

	data, err := os.ReadFile(statePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace state: %w", err)
	}

	var ws Workspace
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("failed to parse workspace state: %w", err)
	}

	ws.path = wsPath
	return &ws, nil
}

// LoadByID loads a workspace by ID
func LoadByID(id string, cfg *WorkspaceConfig) (*Workspace, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return Load(filepath.Join(cfg.BaseDir, id))
}

// Save persists workspace state to disk
func (ws *Workspace) Save() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	ws.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(ws, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workspace: %w", err)
	}

	statePath := filepath.Join(ws.path, "workspace.json")
	if err := os.WriteFile(statePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write workspace state: %w", err)
	}

	return nil
}

// Path returns the workspace root directory
func (ws *Workspace) Path() string {
	return ws.path
}

// SetPhase updates the workspace phase
func (ws *Workspace) SetPhase(phase Phase) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	ws.State.Phase = phase
}

// Start marks the batch start time
func (ws *Workspace) Start() {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	now := time.Now()
	ws.State.StartedAt = &now
}

// AddProjects registers the batch tasks. Tasks already tracked keep their
// state, so a reloaded workspace resumes instead of restarting.
func (ws *Workspace) AddProjects(list []tasks.Task) {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	for _, task := range list {
		name := task.Name()
		if name == "" {
			continue
		}
		if _, ok := ws.State.Projects[name]; ok {
			continue
		}

		source := task.ProjectPath
		if source == "" {
			source = task.GitURL
		}

		ws.State.Projects[name] = &ProjectState{
			Name:   name,
			Source: source,
			Status: StatusPending,
		}
		ws.State.Total++
	}
}

// Project returns the state of one project, or nil if unknown
func (ws *Workspace) Project(name string) *ProjectState {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.State.Projects[name]
}

// MarkCloning moves a project into the cloning state
func (ws *Workspace) MarkCloning(name string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if p, ok := ws.State.Projects[name]; ok {
		p.Status = StatusCloning
	}
}

// MarkCloned records a finished clone
func (ws *Workspace) MarkCloned(name, cloneDir string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if p, ok := ws.State.Projects[name]; ok {
		p.Status = StatusCloned
		p.CloneDir = cloneDir
		ws.State.Cloned++
	}
}

// MarkRunning moves a project into the running state
func (ws *Workspace) MarkRunning(name string) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if p, ok := ws.State.Projects[name]; ok {
		p.Status = StatusRunning
		now := time.Now()
		p.StartedAt = &now
	}
}

// MarkDone records a successful mutation run
func (ws *Workspace) MarkDone(name string, runningTime float64) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if p, ok := ws.State.Projects[name]; ok {
		p.Status = StatusDone
		p.RunningTime = runningTime
		now := time.Now()
		p.FinishedAt = &now
		ws.State.Completed++
	}
}

// MarkFailed records a failed project
func (ws *Workspace) MarkFailed(name string, err error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if p, ok := ws.State.Projects[name]; ok {
		p.Status = StatusFailed
		if err != nil {
			p.Error = err.Error()
		}
		now := time.Now()
		p.FinishedAt = &now
		ws.State.Failed++
	}
}

// Pending returns the projects that still need work, sorted by name
func (ws *Workspace) Pending() []*ProjectState {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	var pending []*ProjectState
	for _, p := range ws.State.Projects {
		switch p.Status {
		case StatusDone, StatusFailed:
			continue
		}
		pending = append(pending, p)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Name < pending[j].Name })
	return pending
}

// Projects returns a snapshot of every tracked project, sorted by name.
func (ws *Workspace) Projects() []*ProjectState {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	projects := make([]*ProjectState, 0, len(ws.State.Projects))
	for _, p := range ws.State.Projects {
		projects = append(projects, p)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects
}

// Counts returns how many projects have finished, either way, and the
// batch total.
func (ws *Workspace) Counts() (done, total int) {
	ws.mu.RLock()
	defer ws.mu.RUnlock()
	return ws.State.Completed + ws.State.Failed, ws.State.Total
}

// Progress returns current progress as a percentage
func (ws *Workspace) Progress() float64 {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	if ws.State.Total == 0 {
		return 0
	}

	done := ws.State.Completed + ws.State.Failed
	return float64(done) / float64(ws.State.Total) * 100
}

// Summary returns a summary of the workspace state
func (ws *Workspace) Summary() map[string]interface{} {
	progress := ws.Progress()

	ws.mu.RLock()
	defer ws.mu.RUnlock()

	return map[string]interface{}{
		"id":        ws.ID,
		"engine":    ws.Engine,
		"subset":    ws.Subset,
		"phase":     ws.State.Phase,
		"total":     ws.State.Total,
		"cloned":    ws.State.Cloned,
		"completed": ws.State.Completed,
		"failed":    ws.State.Failed,
		"pending":   ws.State.Total - ws.State.Completed - ws.State.Failed,
		"progress":  fmt.Sprintf("%.1f%%", progress),
	}
}

// ListWorkspaces returns all workspaces
func ListWorkspaces(cfg *WorkspaceConfig) ([]*Workspace, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	entries, err := os.ReadDir(cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Workspace{}, nil
		}
		return nil, err
	}

	workspaces := make([]*Workspace, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			ws, err := Load(filepath.Join(cfg.BaseDir, entry.Name()))
			if err == nil {
				workspaces = append(workspaces, ws)
			}
		}
	}

	return workspaces, nil
}
