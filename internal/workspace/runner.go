package workspace

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/mutbatch/mutbatch/internal/clone"
	"github.com/mutbatch/mutbatch/internal/config"
	"github.com/mutbatch/mutbatch/internal/tasks"
)

// RunFunc executes one mutation engine run over a prepared clone. It
// returns the run's wall time in seconds; a non-nil error marks the
// project failed without stopping the batch.
type RunFunc func(ctx context.Context, cl *clone.Clone) (float64, error)

// Runner fans the batch out over a bounded worker group: each task is
// cloned and then handed to the engine run function.
type Runner struct {
	ws        *Workspace
	cfg       *config.BatchConfig
	cloner    *clone.Cloner
	run       RunFunc
	artifacts *ArtifactManager

	// Callbacks for progress reporting
	OnProgress func(done, total int, project *ProjectState)
	OnComplete func(project *ProjectState)
	OnError    func(project *ProjectState, err error)
}

// NewRunner creates a batch runner
func NewRunner(ws *Workspace, cfg *config.BatchConfig, cloner *clone.Cloner, run RunFunc) *Runner {
	return &Runner{
		ws:        ws,
		cfg:       cfg,
		cloner:    cloner,
		run:       run,
		artifacts: NewArtifactManager(ws),
	}
}

// BatchSummary is the final tally of one run
type BatchSummary struct {
	Total     int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
}

// Run clones and mutates every task. Projects already done in a resumed
// workspace are skipped; individual failures are recorded, never fatal.
func (r *Runner) Run(ctx context.Context, list []tasks.Task) (*BatchSummary, error) {
	return r.execute(ctx, list, false)
}

// CloneAll prepares a clone for every task without running the engine
func (r *Runner) CloneAll(ctx context.Context, list []tasks.Task) (*BatchSummary, error) {
	return r.execute(ctx, list, true)
}

func (r *Runner) execute(ctx context.Context, list []tasks.Task, cloneOnly bool) (*BatchSummary, error) {
	r.ws.AddProjects(list)
	if cloneOnly {
		r.ws.SetPhase(PhaseCloning)
	} else {
		r.ws.SetPhase(PhaseRunning)
	}
	r.ws.Start()
	if err := r.ws.Save(); err != nil {
		return nil, err
	}
	if _, err := r.artifacts.GeneratePlan(); err != nil {
		log.Warn().Err(err).Msg("failed to write batch plan")
	}

	start := time.Now()
	summary := &BatchSummary{}
	var mu sync.Mutex

	var g errgroup.Group
	limit := r.cfg.Run.Parallelism
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)

	for _, task := range list {
		task := task
		st := r.ws.Project(task.Name())
		if st == nil || st.Status == StatusDone {
			continue
		}
		if cloneOnly && st.Status == StatusCloned {
			continue
		}

		mu.Lock()
		summary.Total++
		mu.Unlock()

		g.Go(func() error {
			done, ok := r.runOne(ctx, task, cloneOnly)
			if !done {
				return nil
			}
			mu.Lock()
			if ok {
				summary.Succeeded++
			} else {
				summary.Failed++
			}
			mu.Unlock()
			return nil
		})
	}

	// Task errors are captured per project, so Wait never fails
	_ = g.Wait()
	summary.Elapsed = time.Since(start)

	if ctx.Err() != nil {
		r.ws.SetPhase(PhasePaused)
		if err := r.ws.Save(); err != nil {
			log.Warn().Err(err).Msg("failed to save workspace state")
		}
		return summary, ctx.Err()
	}

	if summary.Total > 0 && summary.Succeeded == 0 {
		r.ws.SetPhase(PhaseFailed)
	} else {
		r.ws.SetPhase(PhaseCompleted)
	}
	if err := r.ws.Save(); err != nil {
		return summary, err
	}
	if _, err := r.artifacts.GenerateSummary(start); err != nil {
		log.Warn().Err(err).Msg("failed to write batch summary")
	}

	log.Info().
		Str("workspace", r.ws.ID).
		Int("total", summary.Total).
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Dur("elapsed", summary.Elapsed).
		Msg("batch complete")

	return summary, nil
}

// runOne takes one task through clone and run. It reports whether the
// project reached a terminal state and whether it succeeded; a project
// interrupted by cancellation stays pending for a resume.
func (r *Runner) runOne(ctx context.Context, task tasks.Task, cloneOnly bool) (done, ok bool) {
	if ctx.Err() != nil {
		return false, false
	}

	name := task.Name()

	cl, err := r.prepareClone(ctx, task)
	if err != nil {
		log.Warn().Err(err).Str("project", name).Msg("clone failed")
		r.ws.MarkFailed(name, err)
		r.report(name, err)
		return true, false
	}

	if cloneOnly {
		r.report(name, nil)
		return true, true
	}

	r.ws.MarkRunning(name)

	runningTime, err := r.run(ctx, cl)
	if err != nil {
		r.ws.MarkFailed(name, err)
		r.report(name, err)
		return true, false
	}

	r.ws.MarkDone(name, runningTime)
	r.report(name, nil)
	return true, true
}

// prepareClone reuses the workspace's existing clone when there is one,
// otherwise it clones fresh.
func (r *Runner) prepareClone(ctx context.Context, task tasks.Task) (*clone.Clone, error) {
	name := task.Name()

	if st := r.ws.Project(name); st != nil && st.Status == StatusCloned && st.CloneDir != "" {
		if _, err := os.Stat(st.CloneDir); err == nil {
			return &clone.Clone{Name: st.Name, Dir: st.CloneDir, Source: st.Source}, nil
		}
	}

	r.ws.MarkCloning(name)
	cl, err := r.cloner.Clone(ctx, task)
	if err != nil {
		return nil, err
	}

	r.ws.MarkCloned(name, cl.Dir)
	if err := r.ws.Save(); err != nil {
		log.Warn().Err(err).Msg("failed to save workspace state")
	}
	return cl, nil
}

// report fires callbacks and persists state after a transition
func (r *Runner) report(name string, err error) {
	st := r.ws.Project(name)

	if err != nil {
		if r.OnError != nil {
			r.OnError(st, err)
		}
	} else if r.OnComplete != nil {
		r.OnComplete(st)
	}

	if r.OnProgress != nil {
		done, total := r.ws.Counts()
		r.OnProgress(done, total, st)
	}

	if err := r.ws.Save(); err != nil {
		log.Warn().Err(err).Msg("failed to save workspace state")
	}
}
