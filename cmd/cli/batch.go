package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mutbatch/mutbatch/internal/workspace"
)

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "batch",
		Aliases: []string{"ws"},
		Short:   "Inspect batch workspaces",
	}

	cmd.AddCommand(batchListCmd())
	cmd.AddCommand(batchStatusCmd())
	cmd.AddCommand(batchArtifactsCmd())

	return cmd
}

func batchListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all batch workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspaces, err := workspace.ListWorkspaces(nil)
			if err != nil {
				return err
			}

			if len(workspaces) == 0 {
				fmt.Println("No batches found.")
				fmt.Println("Start one with: mutbatch run --tasks tasks.ndjson")
				return nil
			}

			fmt.Printf("%-10s %-8s %-12s %-12s %s\n", "ID", "ENGINE", "SUBSET", "PHASE", "PROGRESS")
			fmt.Println("--------------------------------------------------------")

			for _, ws := range workspaces {
				done, total := ws.Counts()
				subset := ws.Subset
				if subset == "" {
					subset = "-"
				}
				fmt.Printf("%-10s %-8s %-12s %-12s %d/%d\n",
					ws.ID,
					ws.Engine,
					truncate(subset, 10),
					ws.State.Phase,
					done, total,
				)
			}

			return nil
		},
	}
}

func batchStatusCmd() *cobra.Command {
	var listProjects bool

	cmd := &cobra.Command{
		Use:   "status <batch-id>",
		Short: "Show one batch's progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.LoadByID(args[0], nil)
			if err != nil {
				return fmt.Errorf("batch not found: %w", err)
			}

			summary := ws.Summary()

			fmt.Printf("Batch: %s\n", ws.ID)
			fmt.Printf("Engine: %s\n", ws.Engine)
			if ws.Subset != "" {
				fmt.Printf("Subset: %s\n", ws.Subset)
			}
			fmt.Printf("\n")
			fmt.Printf("Phase: %s\n", summary["phase"])
			fmt.Printf("Progress: %s\n", summary["progress"])
			fmt.Printf("\n")
			fmt.Printf("  Projects:   %d\n", summary["total"])
			fmt.Printf("  Cloned:     %d\n", summary["cloned"])
			fmt.Printf("  Completed:  %d\n", summary["completed"])
			fmt.Printf("  Failed:     %d\n", summary["failed"])
			fmt.Printf("  Pending:    %d\n", summary["pending"])

			if listProjects {
				fmt.Println("\nProjects:")
				for _, p := range ws.Projects() {
					switch p.Status {
					case workspace.StatusDone:
						fmt.Printf("  ✓ %-30s %s\n", p.Name, formatSeconds(p.RunningTime))
					case workspace.StatusFailed:
						fmt.Printf("  ✗ %-30s %s\n", p.Name, truncate(p.Error, 80))
					default:
						fmt.Printf("    %-30s %s\n", p.Name, p.Status)
					}
				}
				return nil
			}

			failed := 0
			for _, p := range ws.Projects() {
				if p.Status == workspace.StatusFailed {
					if failed == 0 {
						fmt.Println("\nFailed projects:")
					}
					failed++
					fmt.Printf("  ✗ %s: %s\n", p.Name, truncate(p.Error, 100))
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&listProjects, "projects", false, "List every project with its status")

	return cmd
}

func batchArtifactsCmd() *cobra.Command {
	var show string

	cmd := &cobra.Command{
		Use:   "artifacts <batch-id>",
		Short: "List or print a batch's artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.LoadByID(args[0], nil)
			if err != nil {
				return fmt.Errorf("batch not found: %w", err)
			}

			artifacts := workspace.NewArtifactManager(ws)

			if show != "" {
				var v interface{}
				if err := artifacts.LoadArtifact(show, &v); err != nil {
					return fmt.Errorf("failed to load artifact: %w", err)
				}
				data, err := json.MarshalIndent(v, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			names := artifacts.ListArtifacts()
			if len(names) == 0 {
				fmt.Println("No artifacts yet.")
				return nil
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&show, "show", "", "Print one artifact instead of listing")

	return cmd
}
