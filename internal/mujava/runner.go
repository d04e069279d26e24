// Package mujava shells out to the muJava CLI to generate traditional
// mutants over a cloned submission and execute its test suite against them.
package mujava

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mutbatch/mutbatch/internal/clone"
	"github.com/mutbatch/mutbatch/internal/config"
)

// toolConfigFile is read by every mujava.cli entry point to locate the
// session root.
const toolConfigFile = "mujavaCLI.config"

// sessionJars are staged under the lib directory by the build harness and
// make up the muJava classpath.
var sessionJars = []string{"mujava.jar", "openjava.jar", "commons-io.jar", "junit.jar", "student.jar"}

// knownOperators are the genmutes flags this runner accepts: the
// traditional mutation operators plus the all shorthand.
var knownOperators = map[string]bool{
	"aorb": true, "aors": true, "aodu": true, "aods": true,
	"aoiu": true, "aois": true, "ror": true, "cor": true,
	"cod": true, "coi": true, "sor": true, "lor": true,
	"loi": true, "lod": true, "asrs": true, "sdl": true,
	"vdl": true, "odl": true, "cdl": true, "all": true,
}

// Runner drives muJava against one clone at a time
type Runner struct {
	cfg *config.BatchConfig

	// JavaBin and JavaHome locate the JVM used for mutant generation.
	// JavaHome contributes the JDK tools jar to the classpath.
	JavaBin  string
	JavaHome string
}

// NewRunner creates a runner from a batch config
func NewRunner(cfg *config.BatchConfig) *Runner {
	return &Runner{
		cfg:      cfg,
		JavaBin:  "java",
		JavaHome: os.Getenv("JAVA_HOME"),
	}
}

// Name returns the engine name
func (r *Runner) Name() string {
	return "mujava"
}

// IsAvailable checks that both the build tool and a JVM are installed
func (r *Runner) IsAvailable(ctx context.Context) bool {
	if exec.CommandContext(ctx, r.cfg.Ant.Bin, "-version").Run() != nil {
		return false
	}
	return exec.CommandContext(ctx, r.JavaBin, "-version").Run() == nil
}

// Operators resolves the configured selection to genmutes flags. muJava
// has no notion of the PIT subsets: deletion maps to statement deletion
// and all hands selection to the tool itself.
func (r *Runner) Operators() ([]string, error) {
	if len(r.cfg.Operators.Custom) > 0 {
		ops := make([]string, 0, len(r.cfg.Operators.Custom))
		for _, op := range r.cfg.Operators.Custom {
			op = strings.ToLower(strings.TrimSpace(op))
			if !knownOperators[op] {
				return nil, fmt.Errorf("unknown muJava operator: %s", op)
			}
			ops = append(ops, op)
		}
		return ops, nil
	}

	switch r.cfg.Operators.Subset {
	case "", "deletion":
		return []string{"sdl"}, nil
	case "all", "full":
		return []string{"all"}, nil
	default:
		return nil, fmt.Errorf("muJava supports only the deletion and all subsets, got %s", r.cfg.Operators.Subset)
	}
}

// Run compiles the clone, generates mutants and executes the suite against
// each one. A failed build or generation yields a success=false result,
// never an error: one bad submission must not stop the batch.
func (r *Runner) Run(ctx context.Context, cl *clone.Clone) *Result {
	result := &Result{ProjectPath: cl.Source}
	start := time.Now()

	err := r.run(ctx, cl, result)
	result.RunningTime = time.Since(start).Seconds()
	if err != nil {
		result.Error = err.Error()
	} else {
		result.Success = true
	}

	log.Info().
		Str("project", cl.Name).
		Bool("success", result.Success).
		Int("mutants", result.Mutants).
		Int("killed", result.Killed).
		Float64("runningTime", result.RunningTime).
		Msg("mutation run complete")

	return result
}

func (r *Runner) run(ctx context.Context, cl *clone.Clone, result *Result) error {
	ops, err := r.Operators()
	if err != nil {
		return err
	}

	if err := writeToolConfig(cl.Dir); err != nil {
		return fmt.Errorf("failed to write tool config: %w", err)
	}

	if err := r.compile(ctx, cl); err != nil {
		return err
	}

	if err := setupSession(cl.Dir); err != nil {
		return fmt.Errorf("failed to set up session: %w", err)
	}

	genStart := time.Now()
	if err := r.genMutes(ctx, cl, ops); err != nil {
		return err
	}
	result.GenTime = time.Since(genStart).Seconds()

	mutants, err := findMutants(filepath.Join(cl.Dir, sessionName, "result"))
	if err != nil {
		return fmt.Errorf("failed to enumerate mutants: %w", err)
	}
	result.Mutants = len(mutants)

	limit := r.cfg.Run.MaxMutants
	if limit <= 0 || limit > len(mutants) {
		limit = len(mutants)
	}

	for _, m := range mutants[:limit] {
		killed, err := r.runMutant(ctx, cl, m)
		if err != nil {
			return err
		}
		result.Executed++
		if killed {
			result.Killed++
		}
	}

	return nil
}

// writeToolConfig points the muJava CLI at the clone; the tool resolves
// every session path relative to MuJava_HOME.
func writeToolConfig(cloneDir string) error {
	content := "MuJava_HOME=" + filepath.Clean(cloneDir)
	return os.WriteFile(filepath.Join(cloneDir, toolConfigFile), []byte(content), 0644)
}

// compile builds the clone's sources and tests with the stock build targets
func (r *Runner) compile(ctx context.Context, cl *clone.Clone) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	args := []string{
		"-f", r.cfg.Ant.BuildFile,
		"-Dresource_dir=" + r.cfg.Ant.LibDir,
		"-Dbasedir=" + cl.Dir,
		"clean", "compile",
	}

	log.Debug().Str("binary", r.cfg.Ant.Bin).Strs("args", args).Str("project", cl.Name).Msg("compiling clone")

	cmd := exec.CommandContext(ctx, r.cfg.Ant.Bin, args...)
	cmd.Dir = cl.Dir
	output, err := cmd.CombinedOutput()

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("ant compile timed out")
	}
	if err != nil {
		return fmt.Errorf("ant compile failed: %v\nOutput: %s", err, tailOutput(output))
	}
	return nil
}

// genMutes invokes mujava.cli.genmutes over the session
func (r *Runner) genMutes(ctx context.Context, cl *clone.Clone, ops []string) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	args := []string{"-cp", r.classpath()}
	args = append(args, "mujava.cli.genmutes")
	for _, op := range ops {
		args = append(args, "-"+op)
	}
	args = append(args, sessionName)

	log.Debug().Str("binary", r.JavaBin).Strs("args", args).Str("project", cl.Name).Msg("generating mutants")

	cmd := exec.CommandContext(ctx, r.JavaBin, args...)
	cmd.Dir = cl.Dir
	output, err := cmd.CombinedOutput()

	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("genmutes timed out")
	}
	if err != nil {
		return fmt.Errorf("genmutes failed: %v\nOutput: %s", err, tailOutput(output))
	}
	return nil
}

// runMutant executes the suite against one mutant via the build's run
// target. A test failure means the suite killed the mutant.
func (r *Runner) runMutant(ctx context.Context, cl *clone.Clone, m Mutant) (bool, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	args := []string{
		"-f", r.cfg.Ant.BuildFile,
		"-Dbasedir=" + cl.Dir,
		"-Dresource_dir=" + r.cfg.Ant.LibDir,
		"-Dmutant_class=" + m.Class,
		"-Dmutant_dir=" + m.Dir,
		"run",
	}

	cmd := exec.CommandContext(ctx, r.cfg.Ant.Bin, args...)
	cmd.Dir = cl.Dir
	output, err := cmd.CombinedOutput()

	if ctx.Err() == context.DeadlineExceeded {
		// A hung suite counts as a kill, same as PIT's TIMED_OUT
		return true, nil
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return true, nil
		}
		return false, fmt.Errorf("ant run failed: %v\nOutput: %s", err, tailOutput(output))
	}
	return false, nil
}

func (r *Runner) classpath() string {
	parts := make([]string, 0, len(sessionJars)+1)
	for _, jar := range sessionJars {
		parts = append(parts, filepath.Join(r.cfg.Ant.LibDir, jar))
	}
	if r.JavaHome != "" {
		parts = append(parts, filepath.Join(r.JavaHome, "lib", "tools.jar"))
	}
	return strings.Join(parts, string(os.PathListSeparator))
}

func (r *Runner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(r.cfg.Run.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// tailOutput keeps the tail of a build log; failures print the cause last
// and full logs can run to megabytes.
func tailOutput(output []byte) string {
	const keep = 2048
	s := strings.TrimSpace(string(output))
	if len(s) <= keep {
		return s
	}
	return "..." + s[len(s)-keep:]
}
