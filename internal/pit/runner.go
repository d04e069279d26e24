package pit

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mutbatch/mutbatch/internal/clone"
	"github.com/mutbatch/mutbatch/internal/config"
)

// Runner shells out to ANT to compile a clone and run PIT over it
type Runner struct {
	cfg *config.BatchConfig
}

// NewRunner creates a runner from a batch config
func NewRunner(cfg *config.BatchConfig) *Runner {
	return &Runner{cfg: cfg}
}

// Name returns the engine name
func (r *Runner) Name() string {
	return "pit"
}

// IsAvailable checks if the build tool is installed
func (r *Runner) IsAvailable(ctx context.Context) bool {
	cmd := exec.CommandContext(ctx, r.cfg.Ant.Bin, "-version")
	err := cmd.Run()
	return err == nil
}

// ReportsDir returns the PIT report directory inside a clone
func (r *Runner) ReportsDir(cl *clone.Clone) string {
	return filepath.Join(cl.Dir, r.cfg.Ant.ReportsDir)
}

// Operators resolves the configured operator selection
func (r *Runner) Operators() ([]string, error) {
	if len(r.cfg.Operators.Custom) > 0 {
		return ParseOperators(strings.Join(r.cfg.Operators.Custom, ","))
	}
	return ParseOperators(r.cfg.Operators.Subset)
}

// Run executes the configured operators over one clone. A failed or
// timed-out build yields a success=false result, never an error: one bad
// submission must not stop the batch.
func (r *Runner) Run(ctx context.Context, cl *clone.Clone) *Result {
	result := &Result{ProjectPath: cl.Source}

	ops, err := r.Operators()
	if err != nil {
		result.Error = err.Error()
		return result
	}

	if r.cfg.Operators.Steps {
		r.runSteps(ctx, cl, ops, result)
	} else {
		r.runSingle(ctx, cl, ops, result)
	}

	log.Info().
		Str("project", cl.Name).
		Bool("success", result.Success).
		Float64("runningTime", result.RunningTime).
		Msg("mutation run complete")

	return result
}

func (r *Runner) runSingle(ctx context.Context, cl *clone.Clone, ops []string, result *Result) {
	start := time.Now()
	reportsDir := r.ReportsDir(cl)

	if err := r.runAnt(ctx, cl, ops, reportsDir); err != nil {
		result.RunningTime = time.Since(start).Seconds()
		result.Error = err.Error()
		return
	}

	mutants, err := ParseMutationsCSV(filepath.Join(reportsDir, "mutations.csv"))
	if err != nil {
		result.RunningTime = time.Since(start).Seconds()
		result.Error = err.Error()
		return
	}

	summary := Summarize(mutants)
	result.Success = true
	result.RunningTime = time.Since(start).Seconds()
	result.Coverage = &summary
}

func (r *Runner) runSteps(ctx context.Context, cl *clone.Clone, ops []string, result *Result) {
	result.Success = true
	result.StepCoverage = make(map[string]Summary, len(ops))
	result.StepTimes = make(map[string]float64, len(ops))

	for _, op := range ops {
		start := time.Now()
		reportsDir := filepath.Join(r.ReportsDir(cl), op)

		err := r.runAnt(ctx, cl, []string{op}, reportsDir)
		elapsed := time.Since(start).Seconds()
		result.StepTimes[op] = elapsed
		result.RunningTime += elapsed

		if err != nil {
			log.Warn().Str("project", cl.Name).Str("operator", op).Err(err).Msg("operator step failed")
			result.Success = false
			result.StepCoverage[op] = Summary{}
			continue
		}

		mutants, err := ParseMutationsCSV(filepath.Join(reportsDir, "mutations.csv"))
		if err != nil {
			log.Warn().Str("project", cl.Name).Str("operator", op).Err(err).Msg("missing step report")
			result.Success = false
			result.StepCoverage[op] = Summary{}
			continue
		}

		result.StepCoverage[op] = Summarize(mutants)
	}
}

// runAnt invokes the build with the PIT target for the given operators
func (r *Runner) runAnt(ctx context.Context, cl *clone.Clone, ops []string, reportsDir string) error {
	timeout := time.Duration(r.cfg.Run.TimeoutSeconds) * time.Second
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	classes := r.cfg.TargetClasses
	tests := r.cfg.TargetTests
	if len(classes) == 0 {
		var err error
		classes, tests, err = Targets(cl.Dir)
		if err != nil {
			return fmt.Errorf("failed to derive targets: %w", err)
		}
	}
	if len(classes) == 0 {
		return fmt.Errorf("clone has no mutation targets")
	}

	// Test classes are the harness, never mutation targets
	excluded, err := ExcludedClasses(cl.Dir, append(append([]string{}, r.cfg.Exclude...), "*Test"))
	if err != nil {
		return fmt.Errorf("failed to derive exclusions: %w", err)
	}

	target := AntTarget(ops)
	args := []string{
		"-f", r.cfg.Ant.BuildFile,
		"-Dbasedir=" + cl.Dir,
		"-Dresource_dir=" + r.cfg.Ant.LibDir,
		"-Dtarget_classes=" + strings.Join(classes, ","),
		"-Dtarget_tests=" + strings.Join(tests, ","),
		"-Dmutators=" + strings.Join(ops, ","),
		"-Dpit_reports=" + reportsDir,
	}
	if len(excluded) > 0 {
		args = append(args, "-DexcludedClasses="+strings.Join(excluded, ","))
	}
	args = append(args, target)

	log.Debug().
		Str("binary", r.cfg.Ant.Bin).
		Strs("args", args).
		Str("project", cl.Name).
		Msg("running ant")

	cmd := exec.CommandContext(ctx, r.cfg.Ant.Bin, args...)
	cmd.Dir = cl.Dir

	output, err := cmd.CombinedOutput()

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("ant %s timed out", target)
	}
	if err != nil {
		return fmt.Errorf("ant %s failed: %v\nOutput: %s", target, err, tailOutput(output))
	}

	return nil
}

// tailOutput keeps the tail of a build log; ant failures print the cause
// last and full logs can run to megabytes.
func tailOutput(output []byte) string {
	const keep = 2048
	s := strings.TrimSpace(string(output))
	if len(s) <= keep {
		return s
	}
	return "..." + s[len(s)-keep:]
}
