package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mutbatch/mutbatch/internal/aggregate"
	"github.com/mutbatch/mutbatch/internal/clone"
	"github.com/mutbatch/mutbatch/internal/config"
	"github.com/mutbatch/mutbatch/internal/db"
	"github.com/mutbatch/mutbatch/internal/jobs"
	"github.com/mutbatch/mutbatch/internal/mujava"
	"github.com/mutbatch/mutbatch/internal/pit"
	"github.com/mutbatch/mutbatch/internal/tasks"
)

// CloneWorker prepares isolated project workspaces
type CloneWorker struct {
	*BaseWorker
	store *db.Store
}

func NewCloneWorker(base *BaseWorker, store *db.Store) *CloneWorker {
	w := &CloneWorker{BaseWorker: base, store: store}
	base.handler = w.handleJob
	return w
}

func (w *CloneWorker) Name() string { return "clone" }

func (w *CloneWorker) handleJob(ctx context.Context, job *jobs.Job) error {
	var payload jobs.ClonePayload
	if err := job.GetPayload(&payload); err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	log.Info().
		Str("project", payload.ProjectName).
		Str("workdir", payload.Workdir).
		Msg("cloning project")

	cloner := clone.NewCloner(payload.Workdir)
	cloner.SkipPackage = payload.SkipPackage

	task := tasks.Task{ProjectPath: payload.ProjectPath, GitURL: payload.GitURL}
	cl, err := cloner.Clone(ctx, task)
	if err != nil {
		w.recordFailure(ctx, job, payload, err)
		return fmt.Errorf("clone failed: %w", err)
	}

	result := jobs.CloneResult{
		CloneDir:  cl.Dir,
		FileCount: countSources(cl.Dir),
		Injected:  !payload.SkipPackage,
	}

	if err := w.Repository().Complete(ctx, job.ID, result); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	// Chain to the mutation run
	if w.Pipeline() != nil {
		_, err := w.Pipeline().CreateMutationJob(ctx, job.ID, jobs.MutationPayload{
			BatchID:     payload.BatchID,
			ProjectName: payload.ProjectName,
			CloneDir:    cl.Dir,
			Source:      cl.Source,
			Engine:      payload.Engine,
			Subset:      payload.Subset,
			Steps:       payload.Steps,
		})
		if err != nil {
			log.Warn().Err(err).Msg("failed to create mutation job")
		}
	}

	return nil
}

// recordFailure stores a failed project result once the job is out of
// retries. The batch only finishes when every project has a result row, so
// a permanently broken submission must still produce one.
func (w *CloneWorker) recordFailure(ctx context.Context, job *jobs.Job, payload jobs.ClonePayload, cloneErr error) {
	if w.store == nil || job.BatchID == nil || job.CanRetry() {
		return
	}

	msg := cloneErr.Error()
	pr := &db.ProjectResult{
		BatchID:     *job.BatchID,
		ProjectName: payload.ProjectName,
		Success:     false,
		Error:       &msg,
	}
	if payload.ProjectPath != "" {
		pr.Source = &payload.ProjectPath
	} else if payload.GitURL != "" {
		pr.Source = &payload.GitURL
	}

	if err := w.store.CreateProjectResult(ctx, pr); err != nil {
		log.Warn().Err(err).Str("project", payload.ProjectName).Msg("failed to record clone failure")
		return
	}

	updateBatchProgress(ctx, w.store, w.Pipeline(), *job.BatchID, payload.Workdir)
}

// countSources counts java files under a clone
func countSources(dir string) int {
	count := 0
	filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".java") {
			count++
		}
		return nil
	})
	return count
}

// MutationWorker runs a mutation engine over one prepared clone
type MutationWorker struct {
	*BaseWorker
	store *db.Store
	cfg   *config.Config
}

func NewMutationWorker(base *BaseWorker, store *db.Store, cfg *config.Config) *MutationWorker {
	w := &MutationWorker{
		BaseWorker: base,
		store:      store,
		cfg:        cfg,
	}
	base.handler = w.handleJob
	// Mutation runs regularly outlive the default lock
	base.SetLockTime(30 * time.Minute)
	return w
}

func (w *MutationWorker) Name() string { return "mutation" }

func (w *MutationWorker) handleJob(ctx context.Context, job *jobs.Job) error {
	var payload jobs.MutationPayload
	if err := job.GetPayload(&payload); err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	log.Info().
		Str("project", payload.ProjectName).
		Str("engine", payload.Engine).
		Str("clone_dir", payload.CloneDir).
		Msg("running mutation testing")

	if _, err := os.Stat(payload.CloneDir); os.IsNotExist(err) {
		return fmt.Errorf("clone directory not found: %s", payload.CloneDir)
	}

	batchCfg := w.batchConfig(ctx, job, payload)
	cl := &clone.Clone{Name: payload.ProjectName, Dir: payload.CloneDir, Source: payload.Source}
	workdir := filepath.Dir(payload.CloneDir)

	var (
		result jobs.MutationRunResult
		pr     *db.ProjectResult
	)

	if batchCfg.Engine == "mujava" {
		result, pr = w.runMuJava(ctx, cl, batchCfg, workdir)
	} else {
		result, pr = w.runPIT(ctx, cl, batchCfg, workdir)
	}

	log.Info().
		Str("project", payload.ProjectName).
		Int("mutants", result.Mutants).
		Int("killed", result.Killed).
		Float64("score", result.Score).
		Msg("mutation run finished")

	if w.store != nil && job.BatchID != nil {
		pr.BatchID = *job.BatchID
		pr.ProjectName = payload.ProjectName
		if payload.Source != "" {
			pr.Source = &payload.Source
		}
		if err := w.store.CreateProjectResult(ctx, pr); err != nil {
			log.Warn().Err(err).Str("project", payload.ProjectName).Msg("failed to store project result")
		} else {
			w.storeMutants(ctx, pr, batchCfg, cl)
			updateBatchProgress(ctx, w.store, w.Pipeline(), *job.BatchID, workdir)
		}
	}

	if err := w.Repository().Complete(ctx, job.ID, result); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	return nil
}

func (w *MutationWorker) runPIT(ctx context.Context, cl *clone.Clone, batchCfg *config.BatchConfig, workdir string) (jobs.MutationRunResult, *db.ProjectResult) {
	runner := pit.NewRunner(batchCfg)
	res := runner.Run(ctx, cl)

	appendResultLine(filepath.Join(workdir, pit.ResultsFileName(batchCfg.Operators.Subset)), func(out io.Writer) error {
		return pit.AppendResult(out, res)
	})

	summary := runSummary(res)
	result := jobs.MutationRunResult{
		Mutants:     summary.Mutants,
		Killed:      summary.Killed,
		Survived:    summary.Survived,
		Score:       summary.MutationCovered,
		RunningTime: res.RunningTime,
		ReportPath:  runner.ReportsDir(cl),
	}

	pr := &db.ProjectResult{
		Success:     res.Success,
		Mutants:     summary.Mutants,
		Killed:      summary.Killed,
		Survived:    summary.Survived,
		Score:       summary.MutationCovered,
		RunningTime: &res.RunningTime,
		ReportPath:  &result.ReportPath,
	}
	if res.Error != "" {
		pr.Error = &res.Error
	}
	if len(res.StepCoverage) > 0 {
		// The flattened per-operator record, as written to the results file
		if raw, err := json.Marshal(res); err == nil {
			steps := json.RawMessage(raw)
			pr.Steps = &steps
		}
	}

	return result, pr
}

func (w *MutationWorker) runMuJava(ctx context.Context, cl *clone.Clone, batchCfg *config.BatchConfig, workdir string) (jobs.MutationRunResult, *db.ProjectResult) {
	runner := mujava.NewRunner(batchCfg)
	res := runner.Run(ctx, cl)

	appendResultLine(filepath.Join(workdir, mujava.ResultsFile), func(out io.Writer) error {
		return mujava.AppendResult(out, res)
	})

	score := 0.0
	if res.Executed > 0 {
		score = float64(res.Killed) / float64(res.Executed)
	}

	result := jobs.MutationRunResult{
		Mutants:     res.Mutants,
		Killed:      res.Killed,
		Survived:    res.Executed - res.Killed,
		Score:       score,
		RunningTime: res.RunningTime,
	}

	pr := &db.ProjectResult{
		Success:     res.Success,
		Mutants:     res.Mutants,
		Killed:      res.Killed,
		Survived:    res.Executed - res.Killed,
		Score:       score,
		RunningTime: &res.RunningTime,
	}
	if res.Error != "" {
		pr.Error = &res.Error
	}

	return result, pr
}

// storeMutants persists the per-mutant rows of a successful PIT run
func (w *MutationWorker) storeMutants(ctx context.Context, pr *db.ProjectResult, batchCfg *config.BatchConfig, cl *clone.Clone) {
	if !pr.Success || batchCfg.Engine == "mujava" {
		return
	}

	csvPath := filepath.Join(cl.Dir, batchCfg.Ant.ReportsDir, "mutations.csv")
	mutants, err := pit.ParseMutationsCSV(csvPath)
	if err != nil {
		log.Warn().Err(err).Str("project", cl.Name).Msg("failed to parse mutations for storage")
		return
	}

	rows := make([]db.Mutant, 0, len(mutants))
	for _, m := range mutants {
		row := db.Mutant{
			UserName:   cl.Name,
			FileName:   m.FileName,
			ClassName:  m.ClassName,
			Mutator:    m.Mutator,
			Method:     m.Method,
			LineNumber: m.LineNumber,
			Status:     m.Status,
		}
		if m.KillingTest != "" {
			kt := m.KillingTest
			row.KillingTest = &kt
		}
		rows = append(rows, row)
	}

	if err := w.store.CreateMutants(ctx, pr.ID, rows); err != nil {
		log.Warn().Err(err).Str("project", cl.Name).Msg("failed to store mutants")
	}
}

// batchConfig reconstructs the run configuration. The config posted with
// the batch sits on the batch row; workers without a database fall back to
// defaults plus the payload fields.
func (w *MutationWorker) batchConfig(ctx context.Context, job *jobs.Job, payload jobs.MutationPayload) *config.BatchConfig {
	cfg := config.DefaultBatchConfig()

	if w.store != nil && job.BatchID != nil {
		batch, err := w.store.GetBatch(ctx, *job.BatchID)
		if err != nil {
			log.Warn().Err(err).Msg("failed to load batch config")
		} else if batch != nil && len(batch.Config) > 0 {
			var stored config.BatchConfig
			if err := json.Unmarshal(batch.Config, &stored); err != nil {
				log.Warn().Err(err).Msg("failed to parse stored batch config")
			} else {
				cfg.Merge(&stored)
			}
		}
	}

	if payload.Engine != "" {
		cfg.Engine = payload.Engine
	}
	if payload.Subset != "" {
		cfg.Operators.Subset = payload.Subset
	}
	if payload.Steps {
		cfg.Operators.Steps = true
	}
	if w.cfg != nil && w.cfg.AntBin != "" {
		cfg.Ant.Bin = w.cfg.AntBin
	}

	return cfg
}

// runSummary folds a run into a single summary. Steps mode reports one
// summary per operator over distinct mutants, so their sum is the run total.
func runSummary(res *pit.Result) pit.Summary {
	if res.Coverage != nil {
		return *res.Coverage
	}

	var sum pit.Summary
	for _, s := range res.StepCoverage {
		sum.Mutants += s.Mutants
		sum.Killed += s.Killed
		sum.Survived += s.Survived
	}
	if sum.Mutants > 0 {
		sum.MutationCovered = float64(sum.Killed) / float64(sum.Mutants)
	}
	return sum
}

// appendResultLine appends one NDJSON line next to the clones so the
// filesystem output of a distributed batch matches a CLI run.
func appendResultLine(path string, write func(io.Writer) error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to open results file")
		return
	}
	defer f.Close()

	if err := write(f); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to append result")
	}
}

// updateBatchProgress refreshes the batch counters and enqueues the
// aggregation once every project has a result row. Two runners finishing at
// the same moment can both enqueue it; the fold is idempotent, so the
// second pass only rewrites the same tables.
func updateBatchProgress(ctx context.Context, store *db.Store, pipeline *jobs.Pipeline, batchID uuid.UUID, workdir string) {
	stats, err := store.GetBatchStats(ctx, batchID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load batch stats")
		return
	}

	failed := stats.Projects - stats.Succeeded
	if err := store.UpdateBatchCounts(ctx, batchID, stats.Succeeded, failed); err != nil {
		log.Warn().Err(err).Msg("failed to update batch counts")
	}

	batch, err := store.GetBatch(ctx, batchID)
	if err != nil || batch == nil {
		log.Warn().Err(err).Msg("failed to load batch")
		return
	}

	if batch.TotalProjects == 0 || stats.Projects < batch.TotalProjects {
		return
	}

	if pipeline == nil {
		return
	}

	payload := jobs.AggregatePayload{
		BatchID:     batchID,
		ReportsRoot: workdir,
		OutputDir:   filepath.Join(workdir, "aggregate"),
	}

	var stored config.BatchConfig
	if len(batch.Config) > 0 {
		if err := json.Unmarshal(batch.Config, &stored); err == nil {
			payload.MetadataPath = stored.Metadata
		}
	}

	if _, err := pipeline.CreateAggregateJob(ctx, payload); err != nil {
		log.Warn().Err(err).Msg("failed to create aggregate job")
	}
}

// AggregateWorker folds every project's reports into the batch tables
type AggregateWorker struct {
	*BaseWorker
	store *db.Store
	cfg   *config.Config
}

func NewAggregateWorker(base *BaseWorker, store *db.Store, cfg *config.Config) *AggregateWorker {
	w := &AggregateWorker{
		BaseWorker: base,
		store:      store,
		cfg:        cfg,
	}
	base.handler = w.handleJob
	return w
}

func (w *AggregateWorker) Name() string { return "aggregate" }

func (w *AggregateWorker) handleJob(ctx context.Context, job *jobs.Job) error {
	var payload jobs.AggregatePayload
	if err := job.GetPayload(&payload); err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	log.Info().
		Str("root", payload.ReportsRoot).
		Str("output", payload.OutputDir).
		Msg("aggregating batch")

	reportsDir := w.reportsDirName(ctx, job)

	projects, err := aggregate.Scan(payload.ReportsRoot, reportsDir)
	if err != nil {
		return fmt.Errorf("failed to scan reports: %w", err)
	}

	if err := os.MkdirAll(payload.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	rows := aggregate.Coverage(projects)
	if err := writeTable(payload.OutputDir, "coverage.csv", func(out io.Writer) error {
		return aggregate.WriteCoverage(out, rows)
	}); err != nil {
		return err
	}

	mutants, err := aggregate.ConcatMutants(projects)
	if err != nil {
		return fmt.Errorf("failed to concatenate mutants: %w", err)
	}
	if err := writeTable(payload.OutputDir, "mutants.csv", func(out io.Writer) error {
		return aggregate.WriteMutants(out, mutants)
	}); err != nil {
		return err
	}

	var subs aggregate.Submissions
	if payload.MetadataPath != "" {
		subs, err = aggregate.ReadSubmissions(payload.MetadataPath)
		if err != nil {
			log.Warn().Err(err).Str("path", payload.MetadataPath).Msg("failed to read submission metadata")
			subs = nil
		}
	}
	if w.store != nil && len(subs) > 0 {
		w.storeSubmissions(ctx, subs)
	}

	stats := aggregate.PerMutator(mutants, subs)
	if err := writeTable(payload.OutputDir, "mutator_stats.csv", func(out io.Writer) error {
		return aggregate.WriteMutatorStats(out, stats)
	}); err != nil {
		return err
	}

	subsetRows := aggregate.SubsetTable(stats, subs)
	if err := aggregate.JoinRunningTimes(subsetRows, payload.ReportsRoot); err != nil {
		log.Warn().Err(err).Msg("failed to join running times")
	}
	if err := writeTable(payload.OutputDir, "subsets.csv", func(out io.Writer) error {
		return aggregate.WriteSubsetTable(out, subsetRows)
	}); err != nil {
		return err
	}

	report := aggregate.NewReport(payload.ReportsRoot, rows)
	reporter := aggregate.NewReporter(payload.OutputDir)
	for _, format := range []aggregate.ReportFormat{aggregate.FormatJSON, aggregate.FormatHTML} {
		if _, err := reporter.GenerateReport(report, format); err != nil {
			log.Warn().Err(err).Str("format", string(format)).Msg("failed to generate report")
		}
	}

	result := jobs.AggregateResult{
		Projects:     len(projects),
		Succeeded:    len(rows),
		TotalMutants: report.TotalMutants,
		MeanScore:    report.MeanCoverage,
		OutputDir:    payload.OutputDir,
	}

	if w.store != nil && job.BatchID != nil {
		if err := w.store.UpdateBatchStatus(ctx, *job.BatchID, "completed"); err != nil {
			log.Warn().Err(err).Msg("failed to mark batch completed")
		}
	}

	if err := w.Repository().Complete(ctx, job.ID, result); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	return nil
}

// storeSubmissions upserts one submissions row per metadata entry so the
// API can serve the roster after the batch completes.
func (w *AggregateWorker) storeSubmissions(ctx context.Context, subs aggregate.Submissions) {
	for name, sub := range subs {
		if _, err := w.store.UpsertSubmission(ctx, name, submissionMetadata(sub)); err != nil {
			log.Warn().Err(err).Str("user", name).Msg("failed to store submission")
		}
	}
}

// submissionMetadata encodes one metadata row for the submissions table.
func submissionMetadata(sub aggregate.Submission) json.RawMessage {
	raw, err := json.Marshal(map[string]any{
		"score":              sub.Score,
		"statements":         sub.Statements,
		"statements_test":    sub.StatementsTest,
		"statements_nontest": sub.StatementsNontest,
		"methods_test":       sub.MethodsTest,
		"methods_nontest":    sub.MethodsNontest,
	})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return raw
}

// reportsDirName resolves the per-clone report directory for the scan,
// honoring a batch config stored with the batch row.
func (w *AggregateWorker) reportsDirName(ctx context.Context, job *jobs.Job) string {
	name := config.DefaultBatchConfig().Ant.ReportsDir

	if w.store == nil || job.BatchID == nil {
		return name
	}

	batch, err := w.store.GetBatch(ctx, *job.BatchID)
	if err != nil || batch == nil || len(batch.Config) == 0 {
		return name
	}

	var stored config.BatchConfig
	if err := json.Unmarshal(batch.Config, &stored); err != nil {
		return name
	}
	if stored.Ant.ReportsDir != "" {
		name = stored.Ant.ReportsDir
	}

	return name
}

// writeTable creates one output CSV
func writeTable(dir, name string, write func(io.Writer) error) error {
	path := filepath.Join(dir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	defer f.Close()

	if err := write(f); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	log.Debug().Str("path", path).Msg("wrote aggregate table")
	return nil
}
