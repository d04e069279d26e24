package aggregate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mutbatch/mutbatch/internal/pit"
)

func reportRows() []ProjectCoverage {
	return []ProjectCoverage{
		{UserName: "alice", Coverage: pit.Summary{Mutants: 4, Killed: 2, Survived: 2, MutationCovered: 0.5}},
		{UserName: "bob", Coverage: pit.Summary{Mutants: 8, Killed: 6, Survived: 2, MutationCovered: 0.75}},
	}
}

func TestNewReport(t *testing.T) {
	report := NewReport("/data/batch", reportRows())

	if report.Root != "/data/batch" {
		t.Errorf("Root = %s, want /data/batch", report.Root)
	}
	if report.TotalMutants != 12 {
		t.Errorf("TotalMutants = %d, want 12", report.TotalMutants)
	}
	if report.TotalKilled != 8 {
		t.Errorf("TotalKilled = %d, want 8", report.TotalKilled)
	}
	if report.MeanCoverage != 0.625 {
		t.Errorf("MeanCoverage = %f, want 0.625", report.MeanCoverage)
	}
	if report.GeneratedAt.IsZero() {
		t.Error("GeneratedAt should be set")
	}
}

func TestNewReport_Empty(t *testing.T) {
	report := NewReport("/data/batch", nil)

	if report.TotalMutants != 0 || report.MeanCoverage != 0 {
		t.Errorf("empty report = %+v, want zero totals", report)
	}
}

func TestGenerateReport_JSON(t *testing.T) {
	reporter := NewReporter(t.TempDir())
	report := NewReport("/data/batch", reportRows())

	path, err := reporter.GenerateReport(report, FormatJSON)
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}
	if !strings.HasSuffix(path, ".json") {
		t.Errorf("path = %s, want .json", path)
	}
	if !strings.HasPrefix(filepath.Base(path), "batch-report-") {
		t.Errorf("path = %s, want batch-report- prefix", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	var got Report
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if got.TotalMutants != 12 || len(got.Projects) != 2 {
		t.Errorf("report = %+v, want 12 mutants over 2 projects", got)
	}
}

func TestGenerateReport_HTML(t *testing.T) {
	reporter := NewReporter(t.TempDir())
	report := NewReport("/data/batch", reportRows())

	path, err := reporter.GenerateReport(report, FormatHTML)
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}
	if !strings.HasSuffix(path, ".html") {
		t.Errorf("path = %s, want .html", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	html := string(data)

	for _, want := range []string{
		"Batch Mutation Report",
		"alice",
		"62.5%",
		"quality-acceptable",
		"quality-good",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML report missing %q", want)
		}
	}
}

func TestGenerateReport_Text(t *testing.T) {
	reporter := NewReporter(t.TempDir())
	report := NewReport("/data/batch", reportRows())

	path, err := reporter.GenerateReport(report, FormatText)
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read report: %v", err)
	}
	text := string(data)

	if !strings.Contains(text, "BATCH MUTATION REPORT") {
		t.Error("text report missing banner")
	}
	if !strings.Contains(text, "Total Mutants:  12") {
		t.Error("text report missing mutant total")
	}
	if !strings.Contains(text, "75.0% (good)") {
		t.Error("text report missing bob's score line")
	}
}

func TestGenerateReport_UnsupportedFormat(t *testing.T) {
	reporter := NewReporter(t.TempDir())
	report := NewReport("/data/batch", reportRows())

	if _, err := reporter.GenerateReport(report, ReportFormat("yaml")); err == nil {
		t.Fatal("GenerateReport() should reject unknown formats")
	}
}
