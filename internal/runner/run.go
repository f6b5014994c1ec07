package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"passfuse/internal/config"
	"passfuse/internal/generator"
	"passfuse/internal/identity"
	"passfuse/internal/logging"
	"passfuse/internal/output"
	"passfuse/internal/pipeline"
	"passfuse/internal/services"
	"passfuse/internal/store"
)

// LockFileName guards an output directory against concurrent runs.
const LockFileName = ".passfuse.lock"

// ErrLocked reports that another run holds the output directory.
var ErrLocked = errors.New("output directory is locked by another run")

// Options configures one run.
type Options struct {
	TargetsPath string
	// OutputDir overrides the configured output directory.
	OutputDir string
	Answers   bool
	// LogLevel overrides the configured level when set.
	LogLevel string
	// Console receives log output; nil means stderr.
	Console io.Writer
}

// Report describes a finished run.
type Report struct {
	RunID          string           `json:"run_id"`
	OutputDir      string           `json:"output_dir"`
	TSVPath        string           `json:"tsv_path"`
	AnswersPath    string           `json:"answers_path,omitempty"`
	SkippedAnswers int              `json:"skipped_answers"`
	Summary        pipeline.Summary `json:"summary"`
	Duration       time.Duration    `json:"duration_ns"`
}

// Run executes the pipeline over every identity of the targets file, writing
// the artifacts and the run store. The run is recorded as failed in the store
// when the pipeline stops early.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) (Report, error) {
	if cfg == nil {
		return Report{}, fmt.Errorf("config is required")
	}
	if strings.TrimSpace(opts.TargetsPath) == "" {
		return Report{}, services.Wrap(services.ErrValidation, "run", "targets", "targets file is required", nil)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	outDir := cfg.Paths.OutputDir
	if strings.TrimSpace(opts.OutputDir) != "" {
		expanded, err := config.ExpandPath(opts.OutputDir)
		if err != nil {
			return Report{}, fmt.Errorf("resolve output directory: %w", err)
		}
		outDir = expanded
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return Report{}, fmt.Errorf("create output directory: %w", err)
	}

	records, err := readTargets(opts.TargetsPath)
	if err != nil {
		return Report{}, err
	}

	lock := flock.New(filepath.Join(outDir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return Report{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return Report{}, fmt.Errorf("%w: %s", ErrLocked, outDir)
	}
	defer func() { _ = lock.Unlock() }()

	runID := uuid.NewString()
	ctx := services.WithRunID(signalCtx, runID)

	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:    level,
		Format:   cfg.Logging.Format,
		Console:  opts.Console,
		FilePath: filepath.Join(cfg.Paths.LogDir, logging.LogFileName),
	})
	if err != nil {
		return Report{}, fmt.Errorf("init logger: %w", err)
	}
	logger = logging.WithContext(ctx, logger)

	adapters, err := generator.Build(cfg, logger)
	if err != nil {
		return Report{}, err
	}
	pipelineOpts := pipeline.OptionsFromConfig(cfg)
	pipelineOpts.Metrics = pipeline.NewMetrics()
	orchestrator, err := pipeline.New(adapters, pipelineOpts, logger)
	if err != nil {
		return Report{}, err
	}

	st, err := store.Open(cfg)
	if err != nil {
		logger.Error("open run store", logging.Error(err))
		return Report{}, err
	}
	defer st.Close()

	names := make([]string, len(adapters))
	for i, a := range adapters {
		names[i] = a.Name()
	}
	if err := st.BeginRun(ctx, store.Run{
		ID:         runID,
		Targets:    opts.TargetsPath,
		OutputDir:  outDir,
		Budget:     cfg.Budget.K,
		Generators: names,
	}); err != nil {
		return Report{}, err
	}

	report := Report{
		RunID:     runID,
		OutputDir: outDir,
		TSVPath:   filepath.Join(outDir, output.TSVFileName),
	}
	if opts.Answers {
		report.AnswersPath = filepath.Join(outDir, output.AnswersFileName)
	}

	logger.Info("run starting",
		logging.Int("identities", len(records)),
		logging.Int("generators", len(adapters)),
		logging.Int("budget", cfg.Budget.K),
		logging.String("output_dir", outDir),
	)
	started := time.Now()
	summary, runErr := execute(ctx, orchestrator, records, st, runID, outDir, opts.Answers, &report)
	report.Summary = summary
	report.Duration = time.Since(started)

	if err := st.FinishRun(context.WithoutCancel(ctx), runID, summary, runErr); err != nil {
		logger.Warn("failed to finalize run record", logging.Error(err))
	}
	if path := strings.TrimSpace(cfg.Metrics.Textfile); path != "" {
		if err := pipelineOpts.Metrics.WriteTextfile(path); err != nil {
			logging.WarnWithContext(logger, "metrics textfile not written", "metrics_write_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldImpact, "run metrics unavailable to node exporter"),
			)
		}
	}
	return report, runErr
}

func execute(ctx context.Context, orchestrator *pipeline.Orchestrator, records []identity.Record, st *store.Store, runID, outDir string, answers bool, report *Report) (pipeline.Summary, error) {
	artifacts, err := output.Create(outDir, answers)
	if err != nil {
		return pipeline.Summary{}, err
	}
	summary, runErr := orchestrator.Run(ctx, records, pipeline.Tee(artifacts, st.Sink(runID)))
	closeErr := artifacts.Close()
	report.SkippedAnswers = artifacts.SkippedAnswers()
	return summary, errors.Join(runErr, closeErr)
}

func readTargets(path string) ([]identity.Record, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve targets path: %w", err)
	}
	file, err := os.Open(expanded)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "run", "targets", "open targets file", err)
	}
	defer file.Close()
	return identity.ReadTargets(file)
}
