// Package integration exercises the batch pipeline end to end on the
// filesystem: task files, cloning, result collection and aggregation.
// The mutation engine itself is faked, so no ANT or JVM is needed.
package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mutbatch/mutbatch/internal/aggregate"
	"github.com/mutbatch/mutbatch/internal/clone"
	"github.com/mutbatch/mutbatch/internal/config"
	"github.com/mutbatch/mutbatch/internal/pit"
	"github.com/mutbatch/mutbatch/internal/tasks"
	"github.com/mutbatch/mutbatch/internal/workspace"
)

// writeSubmission creates a minimal Java submission under root
func writeSubmission(t *testing.T, root, name string) {
	t.Helper()

	srcDir := filepath.Join(root, name, "src")
	if err := os.MkdirAll(srcDir, 0755); err != nil {
		t.Fatal(err)
	}

	java := "public class IntList {\n    int size() { return 0; }\n}\n"
	if err := os.WriteFile(filepath.Join(srcDir, "IntList.java"), []byte(java), 0644); err != nil {
		t.Fatal(err)
	}
	test := "import org.junit.Test;\n\npublic class IntListTest {\n}\n"
	if err := os.WriteFile(filepath.Join(srcDir, "IntListTest.java"), []byte(test), 0644); err != nil {
		t.Fatal(err)
	}
}

// fakeEngineReport writes the report layout a finished PIT run leaves
// behind: mutations.csv plus the per-package HTML tree.
func fakeEngineReport(cloneDir, reportsDir string, rows []string) error {
	reports := filepath.Join(cloneDir, reportsDir)
	if err := os.MkdirAll(filepath.Join(reports, clone.InjectedPackage), 0755); err != nil {
		return err
	}
	csv := strings.Join(rows, "\n") + "\n"
	return os.WriteFile(filepath.Join(reports, "mutations.csv"), []byte(csv), 0644)
}

func TestBatchWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	root := t.TempDir()
	workdir := filepath.Join(t.TempDir(), "clones")

	for _, name := range []string{"alice", "bob", "carol"} {
		writeSubmission(t, root, name)
	}

	// Task file round trip
	list, err := tasks.FromDir(root, 0, 0)
	if err != nil {
		t.Fatalf("FromDir: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(list))
	}

	taskFile := filepath.Join(t.TempDir(), "tasks.ndjson")
	if err := tasks.WriteFile(taskFile, list); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	list, err = tasks.ReadFile(taskFile)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 tasks after round trip, got %d", len(list))
	}

	// Preflight finds nothing wrong
	summary := workspace.Summarize(workspace.CheckTasks(list))
	if len(summary.Broken) != 0 {
		t.Fatalf("preflight found broken tasks: %v", summary.Broken)
	}

	// Run the batch with a fake engine that writes PIT-shaped reports.
	// One project at a time keeps the shared result file appends ordered.
	cfg := config.DefaultBatchConfig()
	cfg.Run.Parallelism = 1
	ws, err := workspace.New("pit", "deletion", &workspace.WorkspaceConfig{BaseDir: t.TempDir()})
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}

	cloner := clone.NewCloner(workdir)
	resultsPath := filepath.Join(workdir, pit.ResultsFileName("deletion"))

	runner := workspace.NewRunner(ws, cfg, cloner, func(ctx context.Context, cl *clone.Clone) (float64, error) {
		err := fakeEngineReport(cl.Dir, cfg.Ant.ReportsDir, []string{
			"IntList.java,com.example.IntList,RemoveMethod,size,2,KILLED,IntListTest",
			"IntList.java,com.example.IntList,AOR,size,2,SURVIVED,none",
		})
		if err != nil {
			return 0, err
		}

		f, err := os.OpenFile(resultsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return 0, err
		}
		defer f.Close()

		res := &pit.Result{
			Success:     true,
			ProjectPath: cl.Source,
			RunningTime: 1.5,
			Coverage:    &pit.Summary{Mutants: 2, Killed: 1, Survived: 1, MutationCovered: 0.5},
		}
		return res.RunningTime, pit.AppendResult(f, res)
	})

	batchSummary, err := runner.Run(ctx, list)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if batchSummary.Failed != 0 {
		t.Fatalf("expected no failed projects, got %d", batchSummary.Failed)
	}

	// The result file holds one line per project
	results, err := pit.ReadResults(resultsPath)
	if err != nil {
		t.Fatalf("ReadResults: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for _, res := range results {
		if !res.Success || res.Coverage == nil || res.Coverage.Mutants != 2 {
			t.Errorf("unexpected result %+v", res)
		}
	}

	// Aggregation sees every project as valid
	projects, err := aggregate.Scan(workdir, cfg.Ant.ReportsDir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(projects) != 3 {
		t.Fatalf("expected 3 scanned projects, got %d", len(projects))
	}

	coverage := aggregate.Coverage(projects)
	if len(coverage) != 3 {
		t.Fatalf("expected 3 coverage rows, got %d", len(coverage))
	}
	for _, row := range coverage {
		if row.Coverage.Mutants != 2 || row.Coverage.Killed != 1 {
			t.Errorf("coverage for %s = %+v", row.UserName, row.Coverage)
		}
	}

	var buf bytes.Buffer
	if err := aggregate.WriteCoverage(&buf, coverage); err != nil {
		t.Fatalf("WriteCoverage: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d lines", len(lines))
	}

	// Mutant table and per-mutator measures
	mutantRows, err := aggregate.ConcatMutants(projects)
	if err != nil {
		t.Fatalf("ConcatMutants: %v", err)
	}
	if len(mutantRows) != 6 {
		t.Fatalf("expected 6 mutant rows, got %d", len(mutantRows))
	}

	stats := aggregate.PerMutator(mutantRows, nil)
	if len(stats) == 0 {
		t.Fatal("expected per-mutator stats")
	}

	// JSON report lands in the output directory
	report := aggregate.NewReport(workdir, coverage)
	reporter := aggregate.NewReporter(t.TempDir())
	path, err := reporter.GenerateReport(report, aggregate.FormatJSON)
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("report file missing: %v", err)
	}
}

func TestBatchWorkflow_InvalidProjectExcluded(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	workdir := t.TempDir()
	reportsDir := "pitReports"

	// valid: CSV plus package report dir
	err := fakeEngineReport(filepath.Join(workdir, "alice"), reportsDir, []string{
		"IntList.java,com.example.IntList,RemoveMethod,size,2,KILLED,IntListTest",
	})
	if err != nil {
		t.Fatal(err)
	}

	// broken: CSV written but the engine died before the report tree
	brokenReports := filepath.Join(workdir, "bob", reportsDir)
	if err := os.MkdirAll(brokenReports, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(brokenReports, "mutations.csv"), []byte("x\n"), 0644); err != nil {
		t.Fatal(err)
	}

	projects, err := aggregate.Scan(workdir, reportsDir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(projects) != 1 || projects[0].UserName != "alice" {
		t.Fatalf("expected only alice, got %+v", projects)
	}
}

func TestBatchWorkflow_Resume(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	root := t.TempDir()
	for _, name := range []string{"dave", "erin"} {
		writeSubmission(t, root, name)
	}
	list, err := tasks.FromDir(root, 0, 0)
	if err != nil {
		t.Fatalf("FromDir: %v", err)
	}

	base := t.TempDir()
	ws, err := workspace.New("pit", "deletion", &workspace.WorkspaceConfig{BaseDir: base})
	if err != nil {
		t.Fatalf("workspace.New: %v", err)
	}

	cloner := clone.NewCloner(filepath.Join(t.TempDir(), "clones"))
	runner := workspace.NewRunner(ws, config.DefaultBatchConfig(), cloner, func(ctx context.Context, cl *clone.Clone) (float64, error) {
		return 0.1, nil
	})
	if _, err := runner.Run(ctx, list); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Reload the workspace by ID, the way a resumed run does
	reloaded, err := workspace.LoadByID(ws.ID, &workspace.WorkspaceConfig{BaseDir: base})
	if err != nil {
		t.Fatalf("LoadByID: %v", err)
	}
	done, total := reloaded.Counts()
	if done != 2 || total != 2 {
		t.Errorf("counts = %d/%d, want 2/2", done, total)
	}
}
