package aggregate

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/mutbatch/mutbatch/internal/pit"
)

// MutatorStats is one project's data for one operator family. Killed
// counts every status except SURVIVED. MPL and Eff stay zero when the
// project has no submission metadata.
type MutatorStats struct {
	UserName string  `json:"userName"`
	Mutator  string  `json:"mutator"`
	Num      int     `json:"num"`
	Killed   int     `json:"killed"`
	Cov      float64 `json:"cov"`
	Surv     float64 `json:"surv"`
	MPL      float64 `json:"mpl"`
	Eff      float64 `json:"eff"`
}

// PerMutator groups the combined mutant table by project and cleaned
// operator name.
func PerMutator(rows []MutantRow, subs Submissions) []MutatorStats {
	type key struct{ user, mutator string }
	counts := make(map[key]*MutatorStats)

	for _, row := range rows {
		k := key{row.UserName, CleanMutatorName(row.Mutant.Mutator)}
		st := counts[k]
		if st == nil {
			st = &MutatorStats{UserName: k.user, Mutator: k.mutator}
			counts[k] = st
		}
		st.Num++
		if row.Mutant.Status != pit.StatusSurvived {
			st.Killed++
		}
	}

	stats := make([]MutatorStats, 0, len(counts))
	for _, st := range counts {
		survived := st.Num - st.Killed
		st.Cov = float64(st.Killed) / float64(st.Num)
		st.Surv = float64(survived) / float64(st.Num)
		if loc := subs.Loc(st.UserName); loc > 0 {
			st.MPL = float64(st.Num) / float64(loc)
			st.Eff = st.Surv / st.MPL
		}
		stats = append(stats, *st)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].UserName != stats[j].UserName {
			return stats[i].UserName < stats[j].UserName
		}
		return stats[i].Mutator < stats[j].Mutator
	})
	return stats
}

// WriteMutatorStats writes the per-operator table as CSV
func WriteMutatorStats(w io.Writer, stats []MutatorStats) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"userName", "mutator", "num", "killed", "cov", "surv", "mpl", "eff"}); err != nil {
		return err
	}
	for _, st := range stats {
		record := []string{
			st.UserName,
			st.Mutator,
			strconv.Itoa(st.Num),
			strconv.Itoa(st.Killed),
			formatFloat(st.Cov),
			formatFloat(st.Surv),
			formatFloat(st.MPL),
			formatFloat(st.Eff),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Subset definitions over cleaned operator names; full means no filter.
// These differ from the engine-side subsets because the engine names fold
// during cleaning.
var subsetOperators = map[string][]string{
	"deletion": {
		"RemoveConditional", "VoidMethodCall", "NonVoidMethodCall", "ConstructorCall",
		"BooleanTrueReturnVals", "BooleanFalseReturnVals", "PrimitiveReturns", "EmptyObjectReturnVals",
	},
	"default":    {"ConditionalsBoundary", "Increments", "Math", "NegateConditionals", "ReturnVals", "VoidMethodCall"},
	"sufficient": {"ABS", "ROR", "AOD", "UOI"},
	"full":       nil,
	"subset1":    {"RemoveConditional", "BooleanTrueReturnVals", "ConstructorCall"},
}

// subsetOrder fixes the column order of the wide table.
var subsetOrder = []string{"deletion", "default", "sufficient", "full", "subset1"}

// SubsetMeasures is one project's aggregate over one operator subset.
type SubsetMeasures struct {
	Num  int     `json:"num"`
	Cov  float64 `json:"cov"`
	Surv float64 `json:"surv"`
	Eff  float64 `json:"eff"`
	MPL  float64 `json:"mpl"`
}

// SubsetRow is one project's measures across every subset, plus running
// times joined from per-subset batch result files.
type SubsetRow struct {
	UserName     string                    `json:"userName"`
	Measures     map[string]SubsetMeasures `json:"measures"`
	RunningTimes map[string]float64        `json:"runningTimes,omitempty"`
}

// SubsetTable folds per-operator stats into one wide row per project.
func SubsetTable(stats []MutatorStats, subs Submissions) []SubsetRow {
	byUser := make(map[string][]MutatorStats)
	var users []string
	for _, st := range stats {
		if _, ok := byUser[st.UserName]; !ok {
			users = append(users, st.UserName)
		}
		byUser[st.UserName] = append(byUser[st.UserName], st)
	}
	sort.Strings(users)

	rows := make([]SubsetRow, 0, len(users))
	for _, user := range users {
		row := SubsetRow{
			UserName:     user,
			Measures:     make(map[string]SubsetMeasures, len(subsetOrder)),
			RunningTimes: make(map[string]float64),
		}
		for _, subset := range subsetOrder {
			row.Measures[subset] = measureSubset(byUser[user], subsetOperators[subset], subs.Loc(user))
		}
		rows = append(rows, row)
	}
	return rows
}

// measureSubset aggregates the stats rows whose operator is in the subset;
// a nil subset takes every row.
func measureSubset(stats []MutatorStats, subset []string, loc int) SubsetMeasures {
	included := func(mutator string) bool {
		if subset == nil {
			return true
		}
		for _, s := range subset {
			if s == mutator {
				return true
			}
		}
		return false
	}

	var m SubsetMeasures
	killed := 0
	for _, st := range stats {
		if !included(st.Mutator) {
			continue
		}
		m.Num += st.Num
		killed += st.Killed
	}
	if m.Num == 0 {
		return m
	}

	m.Cov = float64(killed) / float64(m.Num)
	m.Surv = 1 - m.Cov
	if loc > 0 {
		m.MPL = float64(m.Num) / float64(loc)
		m.Eff = m.Surv / m.MPL
	}
	return m
}

// JoinRunningTimes reads every pit-<subset>.ndjson under dir and attaches
// each project's runningTime to its row. Projects are matched by the last
// path segment of projectPath.
func JoinRunningTimes(rows []SubsetRow, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read results dir: %w", err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "pit-") || !strings.HasSuffix(name, ".ndjson") {
			continue
		}
		subset := strings.TrimSuffix(strings.TrimPrefix(name, "pit-"), ".ndjson")

		results, err := pit.ReadResults(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}

		times := make(map[string]float64, len(results))
		for _, r := range results {
			times[filepath.Base(r.ProjectPath)] = r.RunningTime
		}

		for i := range rows {
			if t, ok := times[rows[i].UserName]; ok {
				rows[i].RunningTimes[subset] = t
			}
		}
	}
	return nil
}

// WriteSubsetTable writes the wide table as CSV. Measure columns come in
// subset order; running time columns follow for every subset that has one.
func WriteSubsetTable(w io.Writer, rows []SubsetRow) error {
	timed := make(map[string]bool)
	for _, row := range rows {
		for subset := range row.RunningTimes {
			timed[subset] = true
		}
	}
	var timeCols []string
	for _, subset := range subsetOrder {
		if timed[subset] {
			timeCols = append(timeCols, subset)
			delete(timed, subset)
		}
	}
	var extra []string
	for subset := range timed {
		extra = append(extra, subset)
	}
	sort.Strings(extra)
	timeCols = append(timeCols, extra...)

	header := []string{"userName"}
	for _, subset := range subsetOrder {
		header = append(header,
			subset+"_num", subset+"_cov", subset+"_surv", subset+"_eff", subset+"_mpl")
	}
	for _, subset := range timeCols {
		header = append(header, subset+"_runningtime")
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{row.UserName}
		for _, subset := range subsetOrder {
			m := row.Measures[subset]
			record = append(record,
				strconv.Itoa(m.Num),
				formatFloat(m.Cov),
				formatFloat(m.Surv),
				formatFloat(m.Eff),
				formatFloat(m.MPL),
			)
		}
		for _, subset := range timeCols {
			if t, ok := row.RunningTimes[subset]; ok {
				record = append(record, formatFloat(t))
			} else {
				record = append(record, "")
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
