package aggregate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"
)

// ReportFormat represents the output format for batch reports
type ReportFormat string

const (
	FormatHTML ReportFormat = "html"
	FormatJSON ReportFormat = "json"
	FormatText ReportFormat = "text"
)

// Report is the batch-level aggregate over every scanned project.
type Report struct {
	GeneratedAt  time.Time         `json:"generatedAt"`
	Root         string            `json:"root"`
	Projects     []ProjectCoverage `json:"projects"`
	TotalMutants int               `json:"totalMutants"`
	TotalKilled  int               `json:"totalKilled"`
	MeanCoverage float64           `json:"meanCoverage"`
}

// NewReport builds a report from the coverage table
func NewReport(root string, rows []ProjectCoverage) *Report {
	r := &Report{
		GeneratedAt: time.Now(),
		Root:        root,
		Projects:    rows,
	}

	var coverageSum float64
	for _, row := range rows {
		r.TotalMutants += row.Coverage.Mutants
		r.TotalKilled += row.Coverage.Killed
		coverageSum += row.Coverage.MutationCovered
	}
	if len(rows) > 0 {
		r.MeanCoverage = coverageSum / float64(len(rows))
	}
	return r
}

// Reporter renders batch reports to files
type Reporter struct {
	outputDir string
}

// NewReporter creates a report generator writing into outputDir
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// GenerateReport creates a report in the specified format and returns the
// written file's path
func (r *Reporter) GenerateReport(report *Report, format ReportFormat) (string, error) {
	switch format {
	case FormatHTML:
		return r.generateHTMLReport(report)
	case FormatJSON:
		return r.generateJSONReport(report)
	case FormatText:
		return r.generateTextReport(report)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func (r *Reporter) generateHTMLReport(report *Report) (string, error) {
	type projectRow struct {
		UserName     string
		Mutants      int
		Killed       int
		Survived     int
		Score        string
		Quality      string
		QualityClass string
	}

	data := struct {
		Title        string
		GeneratedAt  string
		Root         string
		ProjectCount int
		TotalMutants int
		TotalKilled  int
		MeanCoverage string
		Projects     []projectRow
	}{
		Title:        "Batch Mutation Report",
		GeneratedAt:  report.GeneratedAt.Format("2006-01-02 15:04:05"),
		Root:         report.Root,
		ProjectCount: len(report.Projects),
		TotalMutants: report.TotalMutants,
		TotalKilled:  report.TotalKilled,
		MeanCoverage: fmt.Sprintf("%.1f%%", report.MeanCoverage*100),
	}
	for _, p := range report.Projects {
		data.Projects = append(data.Projects, projectRow{
			UserName:     p.UserName,
			Mutants:      p.Coverage.Mutants,
			Killed:       p.Coverage.Killed,
			Survived:     p.Coverage.Survived,
			Score:        fmt.Sprintf("%.1f%%", p.Coverage.MutationCovered*100),
			Quality:      p.Coverage.Quality(),
			QualityClass: qualityClass(p.Coverage.Quality()),
		})
	}

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return r.writeReport("html", buf.Bytes())
}

func (r *Reporter) generateJSONReport(report *Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	return r.writeReport("json", data)
}

func (r *Reporter) generateTextReport(report *Report) (string, error) {
	var buf bytes.Buffer

	buf.WriteString("================================================================================\n")
	buf.WriteString("                         BATCH MUTATION REPORT\n")
	buf.WriteString("================================================================================\n\n")

	buf.WriteString(fmt.Sprintf("Reports Root: %s\n", report.Root))
	buf.WriteString(fmt.Sprintf("Generated:    %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))

	buf.WriteString("SUMMARY\n")
	buf.WriteString("-------\n")
	buf.WriteString(fmt.Sprintf("  Projects:       %d\n", len(report.Projects)))
	buf.WriteString(fmt.Sprintf("  Total Mutants:  %d\n", report.TotalMutants))
	buf.WriteString(fmt.Sprintf("  Total Killed:   %d\n", report.TotalKilled))
	buf.WriteString(fmt.Sprintf("  Mean Coverage:  %.1f%%\n\n", report.MeanCoverage*100))

	if len(report.Projects) > 0 {
		buf.WriteString("PROJECTS\n")
		buf.WriteString("--------\n\n")

		for _, p := range report.Projects {
			buf.WriteString(fmt.Sprintf("%s\n", p.UserName))
			buf.WriteString(fmt.Sprintf("    Mutants:  %d\n", p.Coverage.Mutants))
			buf.WriteString(fmt.Sprintf("    Killed:   %d\n", p.Coverage.Killed))
			buf.WriteString(fmt.Sprintf("    Score:    %.1f%% (%s)\n", p.Coverage.MutationCovered*100, p.Coverage.Quality()))
			buf.WriteString("\n")
		}
	}

	buf.WriteString("================================================================================\n")

	return r.writeReport("txt", buf.Bytes())
}

func (r *Reporter) writeReport(ext string, data []byte) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := fmt.Sprintf("batch-report-%s.%s", time.Now().Format("20060102-150405"), ext)
	outputPath := filepath.Join(r.outputDir, filename)

	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return outputPath, nil
}

// qualityClass returns the CSS class for quality level
func qualityClass(quality string) string {
	switch quality {
	case "good":
		return "quality-good"
	case "acceptable":
		return "quality-acceptable"
	default:
		return "quality-poor"
	}
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        * {
            box-sizing: border-box;
            margin: 0;
            padding: 0;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, sans-serif;
            line-height: 1.6;
            color: #333;
            background: #f5f5f5;
            padding: 20px;
        }
        .container {
            max-width: 1200px;
            margin: 0 auto;
        }
        .header {
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            color: white;
            padding: 30px;
            border-radius: 10px;
            margin-bottom: 20px;
        }
        .header h1 {
            font-size: 2em;
            margin-bottom: 10px;
        }
        .header .subtitle {
            opacity: 0.9;
        }
        .card {
            background: white;
            border-radius: 10px;
            padding: 20px;
            margin-bottom: 20px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
        }
        .card h2 {
            color: #667eea;
            margin-bottom: 15px;
            padding-bottom: 10px;
            border-bottom: 2px solid #f0f0f0;
        }
        .stats-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(150px, 1fr));
            gap: 15px;
        }
        .stat-box {
            background: #f8f9fa;
            padding: 20px;
            border-radius: 8px;
            text-align: center;
        }
        .stat-value {
            font-size: 2em;
            font-weight: bold;
            color: #333;
        }
        .stat-label {
            color: #666;
            font-size: 0.9em;
            margin-top: 5px;
        }
        .project-table {
            width: 100%;
            border-collapse: collapse;
        }
        .project-table th,
        .project-table td {
            padding: 10px 12px;
            text-align: left;
            border-bottom: 1px solid #e0e0e0;
        }
        .project-table th {
            background: #f8f9fa;
            color: #666;
            font-size: 0.9em;
            text-transform: uppercase;
        }
        .quality-badge {
            display: inline-block;
            padding: 3px 10px;
            border-radius: 12px;
            color: white;
            font-size: 0.85em;
            font-weight: 600;
        }
        .quality-good { background: linear-gradient(135deg, #11998e 0%, #38ef7d 100%); }
        .quality-acceptable { background: linear-gradient(135deg, #f093fb 0%, #f5576c 100%); }
        .quality-poor { background: linear-gradient(135deg, #eb3349 0%, #f45c43 100%); }
        .no-projects {
            text-align: center;
            padding: 40px;
            color: #666;
        }
        .footer {
            text-align: center;
            color: #666;
            padding: 20px;
            font-size: 0.9em;
        }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.Title}}</h1>
            <div class="subtitle">Generated on {{.GeneratedAt}} from {{.Root}}</div>
        </div>

        <div class="card">
            <h2>Statistics</h2>
            <div class="stats-grid">
                <div class="stat-box">
                    <div class="stat-value">{{.ProjectCount}}</div>
                    <div class="stat-label">Projects</div>
                </div>
                <div class="stat-box">
                    <div class="stat-value">{{.TotalMutants}}</div>
                    <div class="stat-label">Total Mutants</div>
                </div>
                <div class="stat-box">
                    <div class="stat-value" style="color: #38ef7d;">{{.TotalKilled}}</div>
                    <div class="stat-label">Killed</div>
                </div>
                <div class="stat-box">
                    <div class="stat-value">{{.MeanCoverage}}</div>
                    <div class="stat-label">Mean Coverage</div>
                </div>
            </div>
        </div>

        <div class="card">
            <h2>Projects</h2>
            {{if .Projects}}
            <table class="project-table">
                <thead>
                    <tr>
                        <th>Project</th>
                        <th>Mutants</th>
                        <th>Killed</th>
                        <th>Survived</th>
                        <th>Score</th>
                        <th>Quality</th>
                    </tr>
                </thead>
                <tbody>
                    {{range .Projects}}
                    <tr>
                        <td>{{.UserName}}</td>
                        <td>{{.Mutants}}</td>
                        <td>{{.Killed}}</td>
                        <td>{{.Survived}}</td>
                        <td>{{.Score}}</td>
                        <td><span class="quality-badge {{.QualityClass}}">{{.Quality}}</span></td>
                    </tr>
                    {{end}}
                </tbody>
            </table>
            {{else}}
            <div class="no-projects">
                <p>No projects with mutation results</p>
            </div>
            {{end}}
        </div>

        <div class="footer">
            Generated by mutbatch
        </div>
    </div>
</body>
</html>`
