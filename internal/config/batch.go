package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BatchConfig represents a .mutbatch.yaml file controlling a batch run
type BatchConfig struct {
	Version string `yaml:"version" json:"version"`

	// Mutation engine: pit or mujava
	Engine string `yaml:"engine,omitempty" json:"engine,omitempty"`

	// Build tool settings
	Ant AntConfig `yaml:"ant" json:"ant"`

	// Operator selection
	Operators OperatorConfig `yaml:"operators" json:"operators"`

	// Batch execution settings
	Run RunConfig `yaml:"run,omitempty" json:"run,omitempty"`

	// Class-name patterns excluded from mutation targets
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`

	// Explicit target overrides; empty means derive from the source tree
	TargetClasses []string `yaml:"target_classes,omitempty" json:"target_classes,omitempty"`
	TargetTests   []string `yaml:"target_tests,omitempty" json:"target_tests,omitempty"`

	// Submission metadata CSV for the aggregator join
	Metadata string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// AntConfig holds build tool settings
type AntConfig struct {
	// Path to the ant binary
	Bin string `yaml:"bin,omitempty" json:"bin,omitempty"`

	// Build file passed with -f
	BuildFile string `yaml:"build_file,omitempty" json:"build_file,omitempty"`

	// Directory holding the test harness jars, passed as -Dresource_dir
	LibDir string `yaml:"lib_dir,omitempty" json:"lib_dir,omitempty"`

	// Report directory name created inside each clone
	ReportsDir string `yaml:"reports_dir,omitempty" json:"reports_dir,omitempty"`
}

// OperatorConfig holds mutation operator selection
type OperatorConfig struct {
	// Named subset: deletion, default, sufficient, all
	Subset string `yaml:"subset,omitempty" json:"subset,omitempty"`

	// Explicit operator list; overrides Subset when set
	Custom []string `yaml:"custom,omitempty" json:"custom,omitempty"`

	// Run one operator at a time, reporting each separately
	Steps bool `yaml:"steps,omitempty" json:"steps,omitempty"`
}

// RunConfig holds batch execution settings
type RunConfig struct {
	// Concurrent projects
	Parallelism int `yaml:"parallelism,omitempty" json:"parallelism,omitempty"`

	// Per-project timeout in seconds
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`

	// Max mutants executed per project (muJava)
	MaxMutants int `yaml:"max_mutants,omitempty" json:"max_mutants,omitempty"`
}

// DefaultBatchConfig returns sensible defaults
func DefaultBatchConfig() *BatchConfig {
	return &BatchConfig{
		Version: "1.0",
		Engine:  "pit",
		Ant: AntConfig{
			Bin:        "ant",
			BuildFile:  "build.xml",
			LibDir:     "lib",
			ReportsDir: "pitReports",
		},
		Operators: OperatorConfig{
			Subset: "deletion",
		},
		Run: RunConfig{
			Parallelism:    1,
			TimeoutSeconds: 600,
			MaxMutants:     10,
		},
		Exclude: []string{"*GUI*", "*Window*"},
	}
}

// LoadBatchConfig loads a .mutbatch.yaml from the given directory
func LoadBatchConfig(dir string) (*BatchConfig, error) {
	configPath := filepath.Join(dir, ".mutbatch.yaml")

	// Check if config exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Also try .mutbatch.yml
		configPath = filepath.Join(dir, ".mutbatch.yml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return DefaultBatchConfig(), nil
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := DefaultBatchConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// SaveBatchConfig saves the config to .mutbatch.yaml
func SaveBatchConfig(dir string, cfg *BatchConfig) error {
	configPath := filepath.Join(dir, ".mutbatch.yaml")

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0644)
}

// Merge applies overrides from another config (e.g., CLI flags)
func (c *BatchConfig) Merge(other *BatchConfig) {
	if other == nil {
		return
	}

	if other.Engine != "" {
		c.Engine = other.Engine
	}

	if other.Ant.Bin != "" {
		c.Ant.Bin = other.Ant.Bin
	}

	if other.Ant.BuildFile != "" {
		c.Ant.BuildFile = other.Ant.BuildFile
	}

	if other.Ant.LibDir != "" {
		c.Ant.LibDir = other.Ant.LibDir
	}

	if other.Ant.ReportsDir != "" {
		c.Ant.ReportsDir = other.Ant.ReportsDir
	}

	if other.Operators.Subset != "" {
		c.Operators.Subset = other.Operators.Subset
	}

	if len(other.Operators.Custom) > 0 {
		c.Operators.Custom = other.Operators.Custom
	}

	if other.Operators.Steps {
		c.Operators.Steps = true
	}

	if other.Run.Parallelism != 0 {
		c.Run.Parallelism = other.Run.Parallelism
	}

	if other.Run.TimeoutSeconds != 0 {
		c.Run.TimeoutSeconds = other.Run.TimeoutSeconds
	}

	if other.Run.MaxMutants != 0 {
		c.Run.MaxMutants = other.Run.MaxMutants
	}

	if len(other.Exclude) > 0 {
		c.Exclude = other.Exclude
	}

	if len(other.TargetClasses) > 0 {
		c.TargetClasses = other.TargetClasses
	}

	if len(other.TargetTests) > 0 {
		c.TargetTests = other.TargetTests
	}

	if other.Metadata != "" {
		c.Metadata = other.Metadata
	}
}
