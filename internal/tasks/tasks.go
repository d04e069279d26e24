// Package tasks reads and writes NDJSON task files listing the projects a
// batch should run over.
package tasks

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
)

// Task identifies one project to test
type Task struct {
	ProjectPath string `json:"projectPath"`
	GitURL      string `json:"gitUrl,omitempty"`
}

// Name returns the project name used for clone and report directories
func (t Task) Name() string {
	p := strings.TrimRight(t.ProjectPath, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// ReadFile reads an NDJSON task file, one task per line
func ReadFile(path string) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open task file: %w", err)
	}
	defer f.Close()

	var out []Task
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var t Task
		if err := json.Unmarshal([]byte(line), &t); err != nil {
			return nil, fmt.Errorf("invalid task on line %d: %w", lineNo, err)
		}
		if t.ProjectPath == "" && t.GitURL == "" {
			return nil, fmt.Errorf("task on line %d has no projectPath", lineNo)
		}
		out = append(out, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}

	return out, nil
}

// WriteFile writes tasks as NDJSON, one task per line
func WriteFile(path string, list []Task) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create task file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, t := range list {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("failed to write task: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush task file: %w", err)
	}

	return nil
}

// FromDir builds tasks from the immediate subdirectories of root. When
// sample > 0 a uniform random sample of that size is taken, seeded for
// reproducibility. A sample larger than the population returns everything.
func FromDir(root string, sample int, seed int64) ([]Task, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read project dir: %w", err)
	}

	var list []Task
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		list = append(list, Task{ProjectPath: root + "/" + e.Name()})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ProjectPath < list[j].ProjectPath })

	if sample <= 0 || sample >= len(list) {
		return list, nil
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(list), func(i, j int) { list[i], list[j] = list[j], list[i] })
	list = list[:sample]
	sort.Slice(list, func(i, j int) bool { return list[i].ProjectPath < list[j].ProjectPath })

	return list, nil
}

// FromResults builds tasks from a previous batch result file, keeping only
// projects whose run succeeded. Used to re-run a batch with a different
// operator subset over the projects that built cleanly.
func FromResults(path string) ([]Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	defer f.Close()

	var out []Task
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var rec struct {
			Success     bool   `json:"success"`
			ProjectPath string `json:"projectPath"`
		}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("invalid result on line %d: %w", lineNo, err)
		}
		if rec.Success && rec.ProjectPath != "" {
			out = append(out, Task{ProjectPath: rec.ProjectPath})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}

	return out, nil
}
