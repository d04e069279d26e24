package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mutbatch/mutbatch/internal/clone"
	"github.com/mutbatch/mutbatch/internal/config"
	"github.com/mutbatch/mutbatch/internal/mujava"
	"github.com/mutbatch/mutbatch/internal/tasks"
	"github.com/mutbatch/mutbatch/internal/workspace"
)

func mujavaCmd() *cobra.Command {
	var (
		taskFile    string
		workdir     string
		operators   []string
		maxMutants  int
		parallelism int
		timeout     int
		resume      string
	)

	cmd := &cobra.Command{
		Use:   "mujava",
		Short: "Clone every task and run muJava over it",
		Long: `Runs the muJava batch: each task is cloned without package injection,
compiled via ANT, staged into a muJava session, and its generated mutants
are executed one by one (capped per project). Results are appended to
mujava.ndjson in the workdir.`,
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
				Engine: "mujava",
				Operators: config.OperatorConfig{
					Custom: operators,
				},
				Run: config.RunConfig{
					Parallelism:    parallelism,
					TimeoutSeconds: timeout,
					MaxMutants:     maxMutants,
				},
			}
			batchCfg.Merge(overrides)

			runner := mujava.NewRunner(batchCfg)
			if _, err := runner.Operators(); err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			if !runner.IsAvailable(ctx) {
				return fmt.Errorf("muJava needs both %s and a JVM on PATH", batchCfg.Ant.Bin)
			}

			ws, err := openWorkspace(resume, "mujava", "")
			if err != nil {
				return err
			}

			// muJava builds its own session layout and must see the
			// submission's original package structure.
			cloner := clone.NewCloner(workdir)
			cloner.SkipPackage = true

			results := newResultWriter(filepath.Join(workdir, mujava.ResultsFile))
			defer results.Close()

			run := func(ctx context.Context, cl *clone.Clone) (float64, error) {
				res := runner.Run(ctx, cl)
				if err := results.Append(func(w io.Writer) error {
					return mujava.AppendResult(w, res)
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

			fmt.Printf("Running muJava over %d projects, parallelism %d, max %d mutants each\n",
				len(list), batchCfg.Run.Parallelism, batchCfg.Run.MaxMutants)
			fmt.Println("Press Ctrl+C to pause")

			summary, err := batchRunner.Run(ctx, list)
			if err != nil {
				if ctx.Err() != nil {
					fmt.Println("\nBatch paused. Resume with:")
					fmt.Printf("  mutbatch mujava --resume %s --tasks %s\n", ws.ID, taskFile)
					return nil
				}
				return err
			}

			fmt.Println("\n" + strings.Repeat("=", 50))
			fmt.Printf("Batch complete in %s\n", summary.Elapsed.Round(time.Second))
			fmt.Printf("  Succeeded: %d\n", summary.Succeeded)
			fmt.Printf("  Failed:    %d\n", summary.Failed)
			fmt.Printf("  Results:   %s\n", filepath.Join(workdir, mujava.ResultsFile))
			return nil
		},
	}

	cmd.Flags().StringVarP(&taskFile, "tasks", "t", "tasks.ndjson", "NDJSON task file")
	cmd.Flags().StringVarP(&workdir, "workdir", "w", "workdir", "Directory clones are created under")
	cmd.Flags().StringSliceVar(&operators, "operators", nil, "muJava operator flags (default: all)")
	cmd.Flags().IntVar(&maxMutants, "max-mutants", 0, "Max mutants executed per project")
	cmd.Flags().IntVarP(&parallelism, "parallelism", "p", 0, "Concurrent projects")
	cmd.Flags().IntVar(&timeout, "timeout", 0, "Per-step timeout in seconds")
	cmd.Flags().StringVar(&resume, "resume", "", "Resume a paused batch by workspace ID")

	return cmd
}
