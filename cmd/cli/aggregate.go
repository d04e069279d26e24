package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/mutbatch/mutbatch/internal/aggregate"
	"github.com/mutbatch/mutbatch/internal/javasrc"
)

func aggregateCmd() *cobra.Command {
	var (
		reportsDir string
		outputDir  string
		metadata   string
		resultsDir string
		measure    bool
		concat     bool
	)

	cmd := &cobra.Command{
		Use:   "aggregate <reports-root>",
		Short: "Fold per-project mutation reports into batch tables",
		Long: `Scans the reports root for projects with usable mutation results and
writes the batch tables the analysis layer consumes: per-project coverage,
the combined mutant table, per-operator statistics and the wide subset
table, plus a results.json summary.

Efficiency measures need a size per project. With --metadata, sizes come
from a grading export CSV (statements.nontest column); with --measure they
are counted from the sources with tree-sitter instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]

			projects, err := aggregate.Scan(root, reportsDir)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				return fmt.Errorf("no projects with usable results under %s", root)
			}
			fmt.Printf("Found %d projects with results\n", len(projects))

			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return fmt.Errorf("failed to create output dir: %w", err)
			}

			// Per-project coverage table
			coverage := aggregate.Coverage(projects)
			if err := writeTable(outputDir, "coverage.csv", func(w io.Writer) error {
				return aggregate.WriteCoverage(w, coverage)
			}); err != nil {
				return err
			}

			var subs aggregate.Submissions
			switch {
			case metadata != "":
				subs, err = aggregate.ReadSubmissions(metadata)
				if err != nil {
					return err
				}
				fmt.Printf("Loaded metadata for %d submissions\n", len(subs))
			case measure:
				subs = measureSubmissions(cmd.Context(), root, projects)
				fmt.Printf("Measured %d submissions from source\n", len(subs))
			}

			mutants, err := aggregate.ConcatMutants(projects)
			if err != nil {
				return err
			}

			if concat {
				if err := writeTable(outputDir, "mutants.csv", func(w io.Writer) error {
					return aggregate.WriteMutants(w, mutants)
				}); err != nil {
					return err
				}
			}

			stats := aggregate.PerMutator(mutants, subs)
			if err := writeTable(outputDir, "mutators.csv", func(w io.Writer) error {
				return aggregate.WriteMutatorStats(w, stats)
			}); err != nil {
				return err
			}

			subsetRows := aggregate.SubsetTable(stats, subs)
			if resultsDir != "" {
				if err := aggregate.JoinRunningTimes(subsetRows, resultsDir); err != nil {
					log.Warn().Err(err).Msg("failed to join running times")
				}
			}
			if err := writeTable(outputDir, "subsets.csv", func(w io.Writer) error {
				return aggregate.WriteSubsetTable(w, subsetRows)
			}); err != nil {
				return err
			}

			// Machine-readable batch summary next to the tables
			report := aggregate.NewReport(root, coverage)
			summary, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal summary: %w", err)
			}
			if err := os.WriteFile(filepath.Join(outputDir, "results.json"), summary, 0644); err != nil {
				return fmt.Errorf("failed to write summary: %w", err)
			}

			fmt.Printf("\nWrote batch tables to %s\n", outputDir)
			fmt.Printf("  Projects:     %d\n", len(coverage))
			fmt.Printf("  Mutants:      %d\n", report.TotalMutants)
			fmt.Printf("  Killed:       %d\n", report.TotalKilled)
			fmt.Printf("  Mean score:   %.3f\n", report.MeanCoverage)
			return nil
		},
	}

	cmd.Flags().StringVar(&reportsDir, "reports-dir", "pitReports", "Report directory name inside each project")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "aggregated", "Directory the tables are written to")
	cmd.Flags().StringVarP(&metadata, "metadata", "m", "", "Grading export CSV for the size join")
	cmd.Flags().StringVar(&resultsDir, "results", "", "Directory holding pit-<subset>.ndjson files for the running-time join")
	cmd.Flags().BoolVar(&measure, "measure", false, "Measure project sizes from source instead of --metadata")
	cmd.Flags().BoolVar(&concat, "mutants", true, "Write the combined per-mutant table")

	return cmd
}

// measureSubmissions counts statements per project with tree-sitter when no
// grading export is available. Failures leave a project without metadata,
// which zeroes its normalized measures downstream.
func measureSubmissions(ctx context.Context, root string, projects []aggregate.Project) aggregate.Submissions {
	analyzer := javasrc.NewAnalyzer()
	subs := make(aggregate.Submissions, len(projects))

	for _, p := range projects {
		stats, err := analyzer.AnalyzeProject(ctx, filepath.Join(root, p.UserName))
		if err != nil {
			log.Warn().Err(err).Str("project", p.UserName).Msg("failed to measure sources")
			continue
		}
		subs[p.UserName] = aggregate.Submission{
			UserName:          p.UserName,
			Statements:        stats.Statements,
			StatementsTest:    stats.StatementsTest,
			StatementsNontest: stats.StatementsNontest,
			MethodsTest:       stats.MethodsTest,
			MethodsNontest:    stats.MethodsNontest,
		}
	}
	return subs
}

// writeTable writes one CSV into dir through the given writer function
func writeTable(dir, name string, write func(io.Writer) error) error {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return f.Close()
}
