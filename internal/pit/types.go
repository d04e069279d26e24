// Package pit drives the PIT mutation engine over cloned submissions via
// ANT and parses the per-mutant CSV it produces.
package pit

// Mutant is one row of PIT's mutations.csv
type Mutant struct {
	// FileName is the source file the mutation was applied to
	FileName string `json:"file_name"`

	// ClassName is the fully qualified mutated class
	ClassName string `json:"class_name"`

	// Mutator is the fully qualified mutation operator class
	Mutator string `json:"mutator"`

	// Method is the mutated method name
	Method string `json:"method"`

	// LineNumber is the mutated line
	LineNumber int `json:"line_number"`

	// Status is the PIT detection status
	Status string `json:"status"`

	// KillingTest names the test that killed the mutant, if any
	KillingTest string `json:"killing_test,omitempty"`
}

// PIT detection statuses
const (
	StatusKilled      = "KILLED"
	StatusTimedOut    = "TIMED_OUT"
	StatusSurvived    = "SURVIVED"
	StatusNoCoverage  = "NO_COVERAGE"
	StatusRunError    = "RUN_ERROR"
	StatusNonViable   = "NON_VIABLE"
	StatusMemoryError = "MEMORY_ERROR"
)

// Killed reports whether the test suite detected the mutant. TIMED_OUT
// counts as a detection: the mutant sent the suite into a loop it would
// otherwise finish.
func (m Mutant) Killed() bool {
	return m.Status == StatusKilled || m.Status == StatusTimedOut
}

// Summary aggregates the mutants of one run
type Summary struct {
	// Mutants is the total number generated
	Mutants int `json:"mutants"`

	// Killed is the number detected by the test suite
	Killed int `json:"killed"`

	// Survived is the number that went undetected
	Survived int `json:"survived"`

	// MutationCovered is the mutation score (killed / mutants)
	MutationCovered float64 `json:"mutationCovered"`
}

// QualityThreshold constants for scoring a submission's test suite
const (
	ThresholdGood       = 0.70 // >= 70% is good
	ThresholdAcceptable = 0.50 // 50-70% is acceptable
	// < 50% is poor
)

// Quality returns the quality assessment based on the mutation score
func (s Summary) Quality() string {
	if s.MutationCovered >= ThresholdGood {
		return "good"
	}
	if s.MutationCovered >= ThresholdAcceptable {
		return "acceptable"
	}
	return "poor"
}

// HasMutants returns true if any mutants were generated
func (s Summary) HasMutants() bool {
	return s.Mutants > 0
}
