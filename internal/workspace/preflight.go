package workspace

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mutbatch/mutbatch/internal/tasks"
)

// TaskCheck is the preflight result for one task
type TaskCheck struct {
	Name     string   `json:"name"`
	Source   string   `json:"source"`
	OK       bool     `json:"ok"`
	Problems []string `json:"problems,omitempty"`
}

// PreflightSummary tallies preflight results across a batch
type PreflightSummary struct {
	Total  int      `json:"total"`
	OK     int      `json:"ok"`
	Broken []string `json:"broken,omitempty"`
}

// CheckTasks runs preflight checks over every task. These are shape
// checks only; nothing is cloned or compiled.
func CheckTasks(list []tasks.Task) []TaskCheck {
	checks := make([]TaskCheck, 0, len(list))
	for _, t := range list {
		checks = append(checks, CheckTask(t))
	}
	return checks
}

// CheckTask inspects one task's submission layout. Git sources are only
// checked for a usable name; the remote itself is verified at clone time.
func CheckTask(task tasks.Task) TaskCheck {
	check := TaskCheck{Name: task.Name(), Source: task.ProjectPath}
	if check.Source == "" {
		check.Source = task.GitURL
	}

	if check.Name == "" {
		check.Problems = append(check.Problems, "task has no project name")
		return check
	}
	if task.GitURL != "" {
		check.OK = true
		return check
	}

	info, err := os.Stat(task.ProjectPath)
	if err != nil {
		check.Problems = append(check.Problems, fmt.Sprintf("project path not readable: %v", err))
		return check
	}
	if !info.IsDir() {
		check.Problems = append(check.Problems, "project path is not a directory")
		return check
	}

	srcDir := filepath.Join(task.ProjectPath, "src")
	if info, err := os.Stat(srcDir); err != nil || !info.IsDir() {
		check.Problems = append(check.Problems, "no src directory")
		return check
	}

	var sources, testClasses int
	filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(d.Name(), ".java") {
			return nil
		}
		sources++
		if strings.HasSuffix(d.Name(), "Test.java") {
			testClasses++
		}
		return nil
	})

	if sources == 0 {
		check.Problems = append(check.Problems, "no Java sources under src")
	} else if testClasses == 0 {
		// Both engines need a test suite to run mutants against
		check.Problems = append(check.Problems, "no test classes under src")
	}

	check.OK = len(check.Problems) == 0
	return check
}

// Summarize tallies a set of preflight checks
func Summarize(checks []TaskCheck) PreflightSummary {
	s := PreflightSummary{Total: len(checks)}
	for _, c := range checks {
		if c.OK {
			s.OK++
			continue
		}
		s.Broken = append(s.Broken, c.Name)
	}
	return s
}
