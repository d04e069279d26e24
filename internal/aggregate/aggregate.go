// Package aggregate folds per-project mutation reports into batch-level
// tables: project coverage summaries, a combined mutant table, and
// per-operator statistics normalized by submission size.
package aggregate

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mutbatch/mutbatch/internal/clone"
	"github.com/mutbatch/mutbatch/internal/pit"
)

// Project is one tested project discovered under the reports root.
type Project struct {
	UserName     string
	MutationsCSV string
}

// ProjectCoverage is one project's coverage summary row.
type ProjectCoverage struct {
	UserName string      `json:"userName"`
	Coverage pit.Summary `json:"coverage"`
}

// Scan finds projects with usable mutation results under root. A project
// counts only when the engine finished: the CSV exists and the report tree
// for the injected package was written.
func Scan(root, reportsDir string) ([]Project, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read reports root: %w", err)
	}

	var projects []Project
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		reports := filepath.Join(root, entry.Name(), reportsDir)
		csvPath := filepath.Join(reports, "mutations.csv")
		htmlDir := filepath.Join(reports, clone.InjectedPackage)

		csvInfo, err := os.Stat(csvPath)
		if err != nil || csvInfo.IsDir() {
			continue
		}
		htmlInfo, err := os.Stat(htmlDir)
		if err != nil || !htmlInfo.IsDir() {
			continue
		}

		projects = append(projects, Project{UserName: entry.Name(), MutationsCSV: csvPath})
	}

	sort.Slice(projects, func(i, j int) bool { return projects[i].UserName < projects[j].UserName })
	return projects, nil
}

// Coverage summarizes each project's mutations. Projects whose CSV cannot
// be parsed or holds no mutants are dropped with a warning; an all-NaN row
// helps nobody downstream.
func Coverage(projects []Project) []ProjectCoverage {
	rows := make([]ProjectCoverage, 0, len(projects))
	for _, p := range projects {
		mutants, err := pit.ParseMutationsCSV(p.MutationsCSV)
		if err != nil {
			log.Warn().Str("userName", p.UserName).Err(err).Msg("skipping unreadable report")
			continue
		}
		if len(mutants) == 0 {
			log.Warn().Str("userName", p.UserName).Msg("skipping empty report")
			continue
		}
		rows = append(rows, ProjectCoverage{UserName: p.UserName, Coverage: pit.Summarize(mutants)})
	}
	return rows
}

// WriteCoverage writes the coverage table as CSV
func WriteCoverage(w io.Writer, rows []ProjectCoverage) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"userName", "mutants", "survived", "killed", "mutationCovered"}); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.UserName,
			strconv.Itoa(row.Coverage.Mutants),
			strconv.Itoa(row.Coverage.Survived),
			strconv.Itoa(row.Coverage.Killed),
			formatFloat(row.Coverage.MutationCovered),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
