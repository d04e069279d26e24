package pit

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ParseMutationsCSV reads PIT's headerless per-mutant CSV: fileName,
// className, mutator, method, lineNumber, status, killingTest.
func ParseMutationsCSV(path string) ([]Mutant, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open mutations csv: %w", err)
	}
	defer f.Close()

	return parseMutations(f)
}

func parseMutations(r io.Reader) ([]Mutant, error) {
	reader := csv.NewReader(r)
	// Killing test names may themselves contain commas
	reader.FieldsPerRecord = -1

	var mutants []Mutant
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read mutations csv: %w", err)
		}
		line++

		if len(record) < 6 {
			return nil, fmt.Errorf("mutation record %d has %d fields, want at least 6", line, len(record))
		}

		lineNumber, err := strconv.Atoi(strings.TrimSpace(record[4]))
		if err != nil {
			return nil, fmt.Errorf("mutation record %d has bad line number %q", line, record[4])
		}

		m := Mutant{
			FileName:   record[0],
			ClassName:  record[1],
			Mutator:    record[2],
			Method:     record[3],
			LineNumber: lineNumber,
			Status:     strings.TrimSpace(record[5]),
		}
		if len(record) > 6 {
			m.KillingTest = strings.Join(record[6:], ",")
			if m.KillingTest == "none" {
				m.KillingTest = ""
			}
		}
		mutants = append(mutants, m)
	}

	return mutants, nil
}

// Summarize folds mutants into a run summary. Zero mutants yields zero
// coverage, not NaN.
func Summarize(mutants []Mutant) Summary {
	s := Summary{Mutants: len(mutants)}
	for _, m := range mutants {
		if m.Killed() {
			s.Killed++
		}
	}
	s.Survived = s.Mutants - s.Killed
	if s.Mutants > 0 {
		s.MutationCovered = float64(s.Killed) / float64(s.Mutants)
	}
	return s
}

// Result is the per-project record of a batch run, one NDJSON line per
// project. In steps mode the per-operator summaries and running times are
// flattened into top-level keys (`<op>` and `<op>_runningTime`) so the
// downstream analysis can address them by column.
type Result struct {
	Success     bool     `json:"success"`
	ProjectPath string   `json:"projectPath"`
	RunningTime float64  `json:"runningTime"`
	Coverage    *Summary `json:"coverage,omitempty"`

	// Steps mode only
	StepCoverage map[string]Summary `json:"-"`
	StepTimes    map[string]float64 `json:"-"`

	// Error carries the failure reason for success=false records
	Error string `json:"error,omitempty"`
}

const runningTimeSuffix = "_runningTime"

// MarshalJSON flattens step results into top-level keys
func (r Result) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"success":     r.Success,
		"projectPath": r.ProjectPath,
		"runningTime": r.RunningTime,
	}
	if r.Coverage != nil {
		out["coverage"] = *r.Coverage
	}
	if r.Error != "" {
		out["error"] = r.Error
	}
	for op, cov := range r.StepCoverage {
		out[op] = cov
	}
	for op, t := range r.StepTimes {
		out[op+runningTimeSuffix] = t
	}
	return json.Marshal(out)
}

// UnmarshalJSON lifts flattened step keys back into the maps
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	take := func(key string, v interface{}) error {
		msg, ok := raw[key]
		if !ok {
			return nil
		}
		delete(raw, key)
		return json.Unmarshal(msg, v)
	}

	if err := take("success", &r.Success); err != nil {
		return err
	}
	if err := take("projectPath", &r.ProjectPath); err != nil {
		return err
	}
	if err := take("runningTime", &r.RunningTime); err != nil {
		return err
	}
	if err := take("error", &r.Error); err != nil {
		return err
	}
	if msg, ok := raw["coverage"]; ok {
		delete(raw, "coverage")
		var cov Summary
		if err := json.Unmarshal(msg, &cov); err != nil {
			return err
		}
		r.Coverage = &cov
	}

	for key, msg := range raw {
		if strings.HasSuffix(key, runningTimeSuffix) {
			var t float64
			if err := json.Unmarshal(msg, &t); err != nil {
				return err
			}
			if r.StepTimes == nil {
				r.StepTimes = make(map[string]float64)
			}
			r.StepTimes[strings.TrimSuffix(key, runningTimeSuffix)] = t
			continue
		}

		var cov Summary
		if err := json.Unmarshal(msg, &cov); err != nil {
			// Unknown scalar keys from older runs are skipped
			continue
		}
		if r.StepCoverage == nil {
			r.StepCoverage = make(map[string]Summary)
		}
		r.StepCoverage[key] = cov
	}

	return nil
}

// ResultsFileName names the batch result file for an operator subset
func ResultsFileName(subset string) string {
	return fmt.Sprintf("pit-%s.ndjson", subset)
}

// AppendResult writes one result line
func AppendResult(w io.Writer, r *Result) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}

// ReadResults reads a batch result NDJSON file
func ReadResults(path string) ([]Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	defer f.Close()

	var out []Result
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var r Result
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			return nil, fmt.Errorf("invalid result on line %d: %w", lineNo, err)
		}
		out = append(out, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}

	return out, nil
}
