package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mutbatch/mutbatch/internal/clone"
	"github.com/mutbatch/mutbatch/internal/config"
	"github.com/mutbatch/mutbatch/internal/pit"
	"github.com/mutbatch/mutbatch/internal/tasks"
	"github.com/mutbatch/mutbatch/internal/workspace"
)

func runCmd() *cobra.Command {
	var (
		taskFile    string
		workdir     string
		subset      string
		operators   []string
		steps       bool
		parallelism int
		timeout     int
		resume      string
		gitToken    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Clone every task and run PIT over it",
		Long: `Runs the full PIT batch: each task is cloned into the workdir, compiled
and mutated via ANT, and its result is appended to pit-<subset>.ndjson.
Settings come from .mutbatch.yaml in the current directory, overridden by
flags. Ctrl+C pauses the batch; rerun with --resume <workspace-id> to
continue where it stopped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := tasks.ReadFile(taskFile)
			if err != nil {
				return err
			}

			batchCfg, err := config.LoadBatchConfig(".")
			if err != nil {
				return fmt.Errorf("failed to load batch config: %w", err)
			}
			overrides := &config.BatchConfig{
				Engine: "pit",
				Operators: config.OperatorConfig{
					Subset: subset,
					Custom: operators,
					Steps:  steps,
				},
				Run: config.RunConfig{
					Parallelism:    parallelism,
					TimeoutSeconds: timeout,
				},
			}
			batchCfg.Merge(overrides)

			runner := pit.NewRunner(batchCfg)
			if _, err := runner.Operators(); err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			if !runner.IsAvailable(ctx) {
				return fmt.Errorf("%s not found; set ant.bin in .mutbatch.yaml or ANT_BIN", batchCfg.Ant.Bin)
			}

			ws, err := openWorkspace(resume, "pit", batchCfg.Operators.Subset)
			if err != nil {
				return err
			}

			cloner := clone.NewCloner(workdir)
			cloner.Token = gitToken

			results := newResultWriter(filepath.Join(workdir, pit.ResultsFileName(batchCfg.Operators.Subset)))
			defer results.Close()

			run := func(ctx context.Context, cl *clone.Clone) (float64, error) {
				res := runner.Run(ctx, cl)
				if err := results.Append(func(w io.Writer) error {
					return pit.AppendResult(w, res)
				}); err != nil {
					log.Warn().Err(err).Str("project", cl.Name).Msg("failed to record result")
				}
				if !res.Success {
					return res.RunningTime, fmt.Errorf("%s", res.Error)
				}
				return res.RunningTime, nil
			}

			batchRunner := workspace.NewRunner(ws, batchCfg, cloner, run)
			batchRunner.OnProgress = func(done, total int, p *workspace.ProjectState) {
				fmt.Printf("\r[%d/%d] %s    ", done, total, p.Name)
			}
			batchRunner.OnError = func(p *workspace.ProjectState, err error) {
				fmt.Printf("\r✗ %s: %s\n", p.Name, truncate(err.Error(), 100))
			}

			fmt.Printf("Running PIT (%s) over %d projects, parallelism %d\n",
				batchCfg.Operators.Subset, len(list), batchCfg.Run.Parallelism)
			fmt.Println("Press Ctrl+C to pause")

			summary, err := batchRunner.Run(ctx, list)
			if err != nil {
				if ctx.Err() != nil {
					fmt.Println("\nBatch paused. Resume with:")
					fmt.Printf("  mutbatch run --resume %s --tasks %s\n", ws.ID, taskFile)
					return nil
				}
				return err
			}

			fmt.Println("\n" + strings.Repeat("=", 50))
			fmt.Printf("Batch complete in %s\n", summary.Elapsed.Round(time.Second))
			fmt.Printf("  Succeeded: %d\n", summary.Succeeded)
			fmt.Printf("  Failed:    %d\n", summary.Failed)
			fmt.Printf("  Results:   %s\n", filepath.Join(workdir, pit.ResultsFileName(batchCfg.Operators.Subset)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&taskFile, "tasks", "t", "tasks.ndjson", "NDJSON task file")
	cmd.Flags().StringVarP(&workdir, "workdir", "w", "workdir", "Directory clones are created under")
	cmd.Flags().StringVarP(&subset, "subset", "s", "", "Operator subset (deletion, default, sufficient, all)")
	cmd.Flags().StringSliceVar(&operators, "operators", nil, "Explicit operator list (overrides --subset)")
	cmd.Flags().BoolVar(&steps, "steps", false, "Run one operator at a time")
	cmd.Flags().IntVarP(&parallelism, "parallelism", "p", 0, "Concurrent projects")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "Per-project timeout in seconds")
	cmd.Flags().StringVar(&resume, "resume", "", "Resume a paused batch by workspace ID")
	cmd.Flags().StringVar(&gitToken, "token", os.Getenv("GIT_TOKEN"), "Token for private git sources")

	return cmd
}

// openWorkspace loads a paused workspace or creates a fresh one
func openWorkspace(resume, engine, subset string) (*workspace.Workspace, error) {
	if resume != "" {
		ws, err := workspace.LoadByID(resume, nil)
		if err != nil {
			return nil, fmt.Errorf("workspace not found: %w", err)
		}
		return ws, nil
	}
	ws, err := workspace.New(engine, subset, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return ws, nil
}

// resultWriter serializes NDJSON appends from concurrent batch workers
type resultWriter struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func newResultWriter(path string) *resultWriter {
	return &resultWriter{path: path}
}

func (w *resultWriter) Append(write func(io.Writer) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
			return err
		}
		f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		w.f = f
	}
	return write(w.f)
}

func (w *resultWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}
