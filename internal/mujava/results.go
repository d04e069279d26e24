package mujava

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// ResultsFile is the NDJSON file muJava batch results are appended to.
const ResultsFile = "mujava.ndjson"

// Result is one project's muJava outcome, written as one NDJSON line.
// GenTime covers mutant generation only; RunningTime covers the whole run.
type Result struct {
	Success     bool    `json:"success"`
	ProjectPath string  `json:"projectPath"`
	RunningTime float64 `json:"runningTime"`
	GenTime     float64 `json:"genTime"`
	Mutants     int     `json:"mutants"`
	Executed    int     `json:"executed"`
	Killed      int     `json:"killed"`
	Error       string  `json:"error,omitempty"`
}

// AppendResult writes one result as an NDJSON line
func AppendResult(w io.Writer, r *Result) error {
	return json.NewEncoder(w).Encode(r)
}

// ReadResults loads every result line from an NDJSON file
func ReadResults(path string) ([]Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	defer f.Close()

	var results []Result
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if text == "" {
			continue
		}
		var r Result
		if err := json.Unmarshal([]byte(text), &r); err != nil {
			return nil, fmt.Errorf("invalid result on line %d: %w", line, err)
		}
		results = append(results, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}
	return results, nil
}
