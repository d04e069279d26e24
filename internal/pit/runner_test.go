package pit

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/mutbatch/mutbatch/internal/clone"
	"github.com/mutbatch/mutbatch/internal/config"
)

// fakeAnt writes a stub build script that records its arguments and emits a
// two-mutant report into the -Dpit_reports directory.
func fakeAnt(t *testing.T) (bin, argsFile string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub build script requires sh")
	}

	dir := t.TempDir()
	bin = filepath.Join(dir, "ant")
	argsFile = filepath.Join(dir, "args.txt")

	script := `#!/bin/sh
echo "$@" >> "` + argsFile + `"
reports=""
mutators=""
for arg in "$@"; do
  case "$arg" in
    -Dpit_reports=*) reports="${arg#-Dpit_reports=}" ;;
    -Dmutators=*) mutators="${arg#-Dmutators=}" ;;
  esac
done
if [ -z "$reports" ]; then
  exit 0
fi
mkdir -p "$reports"
first="${mutators%%,*}"
cat > "$reports/mutations.csv" <<EOF
A.java,com.example.A,${first}Mutator,run,3,KILLED,com.example.ATest.test(com.example.ATest)
A.java,com.example.A,${first}Mutator,run,4,SURVIVED,none
EOF
`
	if err := os.WriteFile(bin, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write stub ant: %v", err)
	}
	return bin, argsFile
}

func failingAnt(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub build script requires sh")
	}

	bin := filepath.Join(t.TempDir(), "ant")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\necho 'BUILD FAILED'\nexit 1\n"), 0755); err != nil {
		t.Fatalf("failed to write stub ant: %v", err)
	}
	return bin
}

func testClone(t *testing.T) *clone.Clone {
	t.Helper()
	dir := t.TempDir()
	writeTree(t, dir, []string{
		"src/com/example/A.java",
		"src/com/example/ATest.java",
	})
	return &clone.Clone{Name: "alice", Dir: dir, Source: "/data/alice"}
}

func testBatchConfig(bin string) *config.BatchConfig {
	cfg := config.DefaultBatchConfig()
	cfg.Ant.Bin = bin
	cfg.Run.TimeoutSeconds = 30
	return cfg
}

func TestRunner_Name(t *testing.T) {
	r := NewRunner(config.DefaultBatchConfig())
	if r.Name() != "pit" {
		t.Errorf("Name() = %s, want pit", r.Name())
	}
}

func TestRunner_IsAvailable(t *testing.T) {
	bin, _ := fakeAnt(t)

	r := NewRunner(testBatchConfig(bin))
	if !r.IsAvailable(context.Background()) {
		t.Error("IsAvailable() should be true for the stub build script")
	}

	r = NewRunner(testBatchConfig("/nonexistent/ant"))
	if r.IsAvailable(context.Background()) {
		t.Error("IsAvailable() should be false for a missing binary")
	}
}

func TestRunner_Run(t *testing.T) {
	bin, argsFile := fakeAnt(t)
	cl := testClone(t)

	r := NewRunner(testBatchConfig(bin))
	result := r.Run(context.Background(), cl)

	if !result.Success {
		t.Fatalf("Run() success = false, error = %s", result.Error)
	}
	if result.ProjectPath != "/data/alice" {
		t.Errorf("ProjectPath = %s, want /data/alice", result.ProjectPath)
	}
	if result.Coverage == nil {
		t.Fatal("Coverage should be set")
	}
	if result.Coverage.Mutants != 2 || result.Coverage.Killed != 1 {
		t.Errorf("Coverage = %+v, want 2 mutants 1 killed", result.Coverage)
	}
	if result.Coverage.MutationCovered != 0.5 {
		t.Errorf("MutationCovered = %f, want 0.5", result.Coverage.MutationCovered)
	}
	if result.RunningTime <= 0 {
		t.Errorf("RunningTime = %f, want > 0", result.RunningTime)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("stub ant recorded no args: %v", err)
	}
	argStr := string(args)
	if !strings.Contains(argStr, "-Dbasedir="+cl.Dir) {
		t.Error("ant args should carry -Dbasedir")
	}
	if !strings.Contains(argStr, "-Dtarget_classes=com.example.*") {
		t.Errorf("ant args should carry derived target classes, got %s", argStr)
	}
	if !strings.Contains(argStr, "-Dtarget_tests=com.example.*Test*") {
		t.Errorf("ant args should carry derived target tests, got %s", argStr)
	}
	if !strings.Contains(argStr, "-DexcludedClasses=com.example.ATest") {
		t.Errorf("ant args should exclude the test class, got %s", argStr)
	}
	// deletion subset uses the stock engine target
	if !strings.Contains(argStr, " pit\n") && !strings.HasSuffix(strings.TrimSpace(argStr), " pit") {
		t.Errorf("ant args should end with the pit target, got %s", argStr)
	}
}

func TestRunner_Run_ExtensionTarget(t *testing.T) {
	bin, argsFile := fakeAnt(t)
	cl := testClone(t)

	cfg := testBatchConfig(bin)
	cfg.Operators.Subset = "sufficient"

	r := NewRunner(cfg)
	result := r.Run(context.Background(), cl)

	if !result.Success {
		t.Fatalf("Run() success = false, error = %s", result.Error)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("stub ant recorded no args: %v", err)
	}
	if !strings.Contains(string(args), "pitPlus") {
		t.Errorf("sufficient subset should use the pitPlus target, got %s", string(args))
	}
}

func TestRunner_Run_Steps(t *testing.T) {
	bin, _ := fakeAnt(t)
	cl := testClone(t)

	cfg := testBatchConfig(bin)
	cfg.Operators.Subset = "sufficient"
	cfg.Operators.Steps = true

	r := NewRunner(cfg)
	result := r.Run(context.Background(), cl)

	if !result.Success {
		t.Fatalf("Run() success = false, error = %s", result.Error)
	}
	if result.Coverage != nil {
		t.Error("steps mode should not set the single-shot coverage")
	}
	if len(result.StepCoverage) != 4 {
		t.Fatalf("len(StepCoverage) = %d, want 4", len(result.StepCoverage))
	}
	for _, op := range mustSubset(t, "sufficient") {
		cov, ok := result.StepCoverage[op]
		if !ok {
			t.Errorf("StepCoverage missing %s", op)
			continue
		}
		if cov.Mutants != 2 {
			t.Errorf("StepCoverage[%s].Mutants = %d, want 2", op, cov.Mutants)
		}
		if _, ok := result.StepTimes[op]; !ok {
			t.Errorf("StepTimes missing %s", op)
		}
	}

	// Each operator reports under its own directory
	if _, err := os.Stat(filepath.Join(r.ReportsDir(cl), "ROR", "mutations.csv")); err != nil {
		t.Errorf("per-operator report missing: %v", err)
	}
}

func TestRunner_Run_BuildFailure(t *testing.T) {
	bin := failingAnt(t)
	cl := testClone(t)

	r := NewRunner(testBatchConfig(bin))
	result := r.Run(context.Background(), cl)

	if result.Success {
		t.Fatal("Run() should fail when the build fails")
	}
	if !strings.Contains(result.Error, "ant pit failed") {
		t.Errorf("Error = %s, want ant failure", result.Error)
	}
	if !strings.Contains(result.Error, "BUILD FAILED") {
		t.Errorf("Error = %s, want build output embedded", result.Error)
	}
}

func TestRunner_Run_NoTargets(t *testing.T) {
	bin, _ := fakeAnt(t)

	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0755); err != nil {
		t.Fatalf("failed to create src: %v", err)
	}
	cl := &clone.Clone{Name: "empty", Dir: dir, Source: "/data/empty"}

	r := NewRunner(testBatchConfig(bin))
	result := r.Run(context.Background(), cl)

	if result.Success {
		t.Fatal("Run() should fail for a clone with no sources")
	}
	if !strings.Contains(result.Error, "no mutation targets") {
		t.Errorf("Error = %s, want no mutation targets", result.Error)
	}
}

func TestRunner_Run_TargetOverride(t *testing.T) {
	bin, argsFile := fakeAnt(t)
	cl := testClone(t)

	cfg := testBatchConfig(bin)
	cfg.TargetClasses = []string{"com.example.IntList"}
	cfg.TargetTests = []string{"com.example.IntListTest"}

	r := NewRunner(cfg)
	result := r.Run(context.Background(), cl)

	if !result.Success {
		t.Fatalf("Run() success = false, error = %s", result.Error)
	}

	args, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("stub ant recorded no args: %v", err)
	}
	if !strings.Contains(string(args), "-Dtarget_classes=com.example.IntList") {
		t.Errorf("override should replace derived targets, got %s", string(args))
	}
}

func TestTailOutput(t *testing.T) {
	short := "BUILD FAILED"
	if got := tailOutput([]byte(short)); got != short {
		t.Errorf("tailOutput(short) = %q, want unchanged", got)
	}

	long := strings.Repeat("x", 5000) + "END"
	got := tailOutput([]byte(long))
	if !strings.HasSuffix(got, "END") {
		t.Error("tailOutput should keep the end of the log")
	}
	if !strings.HasPrefix(got, "...") {
		t.Error("tailOutput should mark truncation")
	}
	if len(got) > 2100 {
		t.Errorf("len = %d, want trimmed", len(got))
	}
}
