package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mutbatch/mutbatch/internal/aggregate"
)

func reportCmd() *cobra.Command {
	var (
		reportsDir string
		outputDir  string
		format     string
	)

	cmd := &cobra.Command{
		Use:   "report <reports-root>",
		Short: "Render a human-readable batch report",
		Long: `Scans the reports root the way aggregate does and renders the batch
summary as HTML, JSON or text with per-project score quality buckets.`,
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

			report := aggregate.NewReport(root, aggregate.Coverage(projects))

			reporter := aggregate.NewReporter(outputDir)
			path, err := reporter.GenerateReport(report, aggregate.ReportFormat(format))
			if err != nil {
				return err
			}

			fmt.Printf("Report written: %s\n", path)
			fmt.Printf("  Projects:   %d\n", len(report.Projects))
			fmt.Printf("  Mean score: %.3f\n", report.MeanCoverage)
			return nil
		},
	}

	cmd.Flags().StringVar(&reportsDir, "reports-dir", "pitReports", "Report directory name inside each project")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "reports", "Directory the report is written to")
	cmd.Flags().StringVarP(&format, "format", "f", "html", "Report format (html, json, text)")

	return cmd
}
