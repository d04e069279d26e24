package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mutbatch/mutbatch/internal/clone"
	"github.com/mutbatch/mutbatch/internal/config"
	"github.com/mutbatch/mutbatch/internal/tasks"
	"github.com/mutbatch/mutbatch/internal/workspace"
)

func cloneCmd() *cobra.Command {
	var (
		taskFile    string
		workdir     string
		parallelism int
		skipPackage bool
		gitToken    string
	)

	cmd := &cobra.Command{
		Use:   "clone",
		Short: "Clone every task into an isolated workspace",
		Long: `Copies (or git-fetches) every project in the task file into the workdir,
strips non-ASCII bytes from its sources and moves them into the injected
package. Run this separately when the same clones feed several engine runs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := tasks.ReadFile(taskFile)
			if err != nil {
				return err
			}

			batchCfg := config.DefaultBatchConfig()
			if parallelism > 0 {
				batchCfg.Run.Parallelism = parallelism
			}

			ws, err := workspace.New("", "", nil)
			if err != nil {
				return fmt.Errorf("failed to create workspace: %w", err)
			}

			cloner := clone.NewCloner(workdir)
			cloner.Token = gitToken
			cloner.SkipPackage = skipPackage

			runner := workspace.NewRunner(ws, batchCfg, cloner, nil)
			runner.OnProgress = func(done, total int, p *workspace.ProjectState) {
				fmt.Printf("\r[%d/%d] %s    ", done, total, p.Name)
			}

			ctx, cancel := signalContext()
			defer cancel()

			summary, err := runner.CloneAll(ctx, list)
			if err != nil {
				return err
			}

			fmt.Printf("\nCloned %d projects (%d failed) into %s\n",
				summary.Succeeded, summary.Failed, workdir)
			fmt.Printf("Workspace: %s\n", ws.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&taskFile, "tasks", "t", "tasks.ndjson", "NDJSON task file")
	cmd.Flags().StringVarP(&workdir, "workdir", "w", "workdir", "Directory clones are created under")
	cmd.Flags().IntVarP(&parallelism, "parallelism", "p", 4, "Concurrent clones")
	cmd.Flags().BoolVar(&skipPackage, "skip-package", false, "Leave sources in their original package (muJava)")
	cmd.Flags().StringVar(&gitToken, "token", os.Getenv("GIT_TOKEN"), "Token for private git sources")

	return cmd
}

// signalContext returns a context cancelled by SIGINT/SIGTERM, so a batch
// can be paused and resumed later.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\n\nPausing... (progress saved)")
		cancel()
	}()

	return ctx, cancel
}
