package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mutbatch/mutbatch/internal/tasks"
	"github.com/mutbatch/mutbatch/internal/workspace"
)

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Build and inspect NDJSON task files",
	}

	cmd.AddCommand(tasksWriteCmd())
	cmd.AddCommand(tasksCheckCmd())

	return cmd
}

func tasksWriteCmd() *cobra.Command {
	var (
		output      string
		sample      int
		seed        int64
		fromResults string
	)

	cmd := &cobra.Command{
		Use:   "write <projects-dir>",
		Short: "Write a task file from a directory of submissions",
		Long: `Writes one NDJSON task line per immediate subdirectory of the given
directory. With --sample, a seeded uniform random sample is taken so a pilot
batch is reproducible. With --from-results, only projects whose previous run
succeeded are kept.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var list []tasks.Task
			var err error

			switch {
			case fromResults != "":
				list, err = tasks.FromResults(fromResults)
			case len(args) == 1:
				list, err = tasks.FromDir(args[0], sample, seed)
			default:
				return fmt.Errorf("either a projects directory or --from-results is required")
			}
			if err != nil {
				return err
			}

			if err := tasks.WriteFile(output, list); err != nil {
				return err
			}

			fmt.Printf("Wrote %d tasks to %s\n", len(list), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "tasks.ndjson", "Task file to write")
	cmd.Flags().IntVar(&sample, "sample", 0, "Take a random sample of this size (0=all)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Sample seed")
	cmd.Flags().StringVar(&fromResults, "from-results", "", "Keep successful projects from a result NDJSON file")

	return cmd
}

func tasksCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <task-file>",
		Short: "Preflight-check every task before a batch run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := tasks.ReadFile(args[0])
			if err != nil {
				return err
			}

			checks := workspace.CheckTasks(list)
			for _, c := range checks {
				status := "✓"
				if !c.OK {
					status = "✗"
				}
				fmt.Printf("%s %s\n", status, c.Name)
				for _, p := range c.Problems {
					fmt.Printf("    %s\n", p)
				}
			}

			summary := workspace.Summarize(checks)
			fmt.Println()
			fmt.Printf("Checked %d tasks: %d ok, %d with problems\n",
				summary.Total, summary.OK, len(summary.Broken))

			if len(summary.Broken) > 0 {
				log.Warn().Strs("broken", summary.Broken).Msg("some tasks will fail to run")
			}
			return nil
		},
	}

	return cmd
}
