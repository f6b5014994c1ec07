package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"passfuse/internal/candidate"
	"passfuse/internal/config"
	"passfuse/internal/fusion"
	"passfuse/internal/generator"
	"passfuse/internal/identity"
	"passfuse/internal/logging"
	"passfuse/internal/selector"
	"passfuse/internal/services"
	"passfuse/internal/strength"
)

// scoreCacheSize bounds the shared strength memo.
const scoreCacheSize = 1 << 20

// Options configures an Orchestrator.
type Options struct {
	Workers  int
	Fusion   fusion.Options
	Selector selector.Options
	// Scorer rates candidate strength; nil selects strength.Entropy.
	Scorer  strength.Scorer
	Metrics *Metrics
}

// OptionsFromConfig maps configuration onto orchestrator options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workers: cfg.Pipeline.Workers,
		Fusion: fusion.Options{
			Budget:       cfg.Budget.K,
			Overfetch:    cfg.Budget.Overfetch,
			MinWindow:    cfg.Budget.MinWindow,
			BatchSize:    cfg.Budget.BatchSize,
			MaxPerSource: cfg.Budget.MaxPerSource,
			MaxEntries:   cfg.Budget.MaxEntries,
		},
		Selector: selector.Options{
			Budget:     cfg.Budget.K,
			Fairness:   cfg.Budget.Fairness,
			Bounds:     strength.Bounds{Min: cfg.Strength.Min, Max: cfg.Strength.Max},
			Priorities: cfg.Priorities(),
			Exclude: selector.Exclusion{
				ASCIIOnly: cfg.Strength.ASCIIOnly,
				Patterns:  cfg.Strength.ExcludePatterns,
			},
		},
	}
}

// Orchestrator runs identities through the configured generators.
type Orchestrator struct {
	adapters []*generator.Adapter
	workers  int
	engine   *fusion.Engine
	selector *selector.Selector
	metrics  *Metrics
	logger   *slog.Logger
}

// New validates the adapter set and options. Every failure wraps
// services.ErrConfiguration.
func New(adapters []*generator.Adapter, opts Options, logger *slog.Logger) (*Orchestrator, error) {
	if len(adapters) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "no generators configured", nil)
	}
	priorities := make(map[string]float64, len(adapters))
	for _, a := range adapters {
		if a == nil {
			return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new", "nil generator adapter", nil)
		}
		if _, dup := priorities[a.Name()]; dup {
			return nil, services.Wrap(services.ErrConfiguration, "pipeline", "new",
				fmt.Sprintf("duplicate generator name %q", a.Name()), nil)
		}
		priorities[a.Name()] = a.Priority()
	}

	scorer := opts.Scorer
	if scorer == nil {
		scorer = strength.Entropy{}
	}
	memo := strength.NewMemo(scorer, scoreCacheSize)
	selOpts := opts.Selector
	if selOpts.Budget == 0 {
		selOpts.Budget = opts.Fusion.Budget
	}
	if selOpts.Priorities == nil {
		selOpts.Priorities = priorities
	}
	sel, err := selector.New(selOpts, memo)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "selector", "", err)
	}

	// Fusion counts toward its target only what the selector will keep.
	fusionOpts := opts.Fusion
	fusionOpts.Scorer = memo
	fusionOpts.Bounds = selOpts.Bounds
	engine, err := fusion.New(fusionOpts)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "fusion", "", err)
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Orchestrator{
		adapters: adapters,
		workers:  workers,
		engine:   engine,
		selector: sel,
		metrics:  opts.Metrics,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
	}, nil
}

// Run processes records and delivers one Result per record to sink, in input
// order. It returns early only on sink errors or context cancellation.
func (o *Orchestrator) Run(ctx context.Context, records []identity.Record, sink Sink) (Summary, error) {
	if sink == nil {
		return Summary{}, services.Wrap(services.ErrConfiguration, "pipeline", "run", "sink is nil", nil)
	}
	em := &emitter{sink: sink, pending: make(map[int]Result)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for i, rec := range records {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, err := o.Process(gctx, rec)
			if err != nil {
				return err
			}
			res.Index = i
			return em.deliver(gctx, res)
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	summary := em.summary
	if err != nil {
		return summary, err
	}
	o.logger.Info("run complete",
		logging.Int("identities", summary.Identities),
		logging.Int("ok", summary.Count(StatusOK)),
		logging.Int("empty", summary.Count(StatusEmpty)),
		logging.Int("selected", summary.Selected),
		logging.Int("diagnostics", len(summary.Diagnostics)),
	)
	return summary, nil
}

// Process runs one identity. The only error it returns is context
// cancellation; everything else becomes a diagnostic on the Result.
func (o *Orchestrator) Process(ctx context.Context, rec identity.Record) (Result, error) {
	started := time.Now()
	ctx = services.WithIdentity(ctx, rec.Key())
	logger := logging.WithContext(ctx, o.logger)
	res := Result{Identity: rec}
	if rec.Blank() {
		return o.blank(logger, res, started), nil
	}

	sources := o.open(services.WithStage(ctx, "generate"), rec, &res)

	ranking, err := o.engine.Fuse(services.WithStage(ctx, "fuse"), sources)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		return Result{}, err
	}
	res.Sources = ranking.Sources
	for _, name := range sortedNames(ranking.Sources) {
		stats := ranking.Sources[name]
		o.metrics.observePulled(name, stats.Pulled)
		if stats.Err != nil {
			o.metrics.incUnavailable(name)
			res.Diagnostics = append(res.Diagnostics, diagnosticFor(rec, name, stats.Err))
			continue
		}
		if stats.Exhausted && stats.Pulled == 0 {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Identity:  rec.Key(),
				Generator: name,
				Kind:      services.KindEmptyOutput,
				Severity:  SeverityInfo,
				Message:   "generator produced no candidates",
			})
		}
	}

	res.Output = o.selector.Select(ranking.Entries)
	for name, n := range res.Output.Stats.Contributed {
		o.metrics.observeSelected(name, n)
	}

	res.Status = StatusOK
	if len(res.Output.Selections) == 0 {
		res.Status = StatusEmpty
		reason := "no generator produced candidates"
		if len(ranking.Entries) > 0 {
			reason = fmt.Sprintf("all %d candidates fell outside the strength bounds", len(ranking.Entries))
		}
		err := services.Wrap(services.ErrEmptyOutput, "select", rec.Key(), reason, nil)
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Identity: rec.Key(),
			Kind:     services.Kind(err),
			Severity: SeverityWarning,
			Message:  err.Error(),
		})
		logging.WarnWithContext(logger, "identity produced no candidates", services.KindEmptyOutput,
			logging.String(logging.FieldImpact, "identity has an empty output entry"),
			logging.String("reason", reason),
		)
	}

	res.Duration = time.Since(started)
	o.metrics.observeIdentity(res.Status, res.Duration)
	logger.Debug("identity processed",
		logging.String("status", string(res.Status)),
		logging.Int("selected", len(res.Output.Selections)),
		logging.Int("fused", len(ranking.Entries)),
		logging.Int("in_bounds", ranking.InBounds),
		logging.Int("excluded", res.Output.Stats.Excluded),
		logging.Duration("elapsed", res.Duration),
	)
	return res, nil
}

// blank records the empty output of a target line that carried no known field.
func (o *Orchestrator) blank(logger *slog.Logger, res Result, started time.Time) Result {
	rec := res.Identity
	err := services.Wrap(services.ErrValidation, "targets", rec.Key(),
		fmt.Sprintf("target %d", rec.Index()), identity.ErrEmptyIdentity)
	res.Status = StatusEmpty
	res.Diagnostics = []Diagnostic{{
		Identity: rec.Key(),
		Kind:     services.Kind(err),
		Severity: SeverityWarning,
		Message:  err.Error(),
	}}
	logging.WarnWithContext(logger, "target line has no known fields", services.KindInvalidIdentity,
		logging.String(logging.FieldImpact, "identity has an empty output entry"),
		logging.Int("target", rec.Index()),
	)
	res.Duration = time.Since(started)
	o.metrics.observeIdentity(res.Status, res.Duration)
	return res
}

// open starts every adapter concurrently and returns the streams that opened
// cleanly, in adapter order. Adapter errors become diagnostics.
func (o *Orchestrator) open(ctx context.Context, rec identity.Record, res *Result) []fusion.Source {
	streams := make([]candidate.Stream, len(o.adapters))
	errs := make([]error, len(o.adapters))
	var wg sync.WaitGroup
	for i, a := range o.adapters {
		wg.Go(func() {
			streams[i], errs[i] = a.Open(ctx, rec)
		})
	}
	wg.Wait()

	sources := make([]fusion.Source, 0, len(o.adapters))
	for i, a := range o.adapters {
		if errs[i] != nil {
			if streams[i] != nil {
				_ = streams[i].Close()
			}
			if services.Kind(errs[i]) == services.KindGeneratorUnavailable {
				o.metrics.incUnavailable(a.Name())
			}
			res.Diagnostics = append(res.Diagnostics, diagnosticFor(rec, a.Name(), errs[i]))
			continue
		}
		sources = append(sources, fusion.Source{Name: a.Name(), Priority: a.Priority(), Stream: streams[i]})
	}
	return sources
}

func diagnosticFor(rec identity.Record, generatorName string, err error) Diagnostic {
	severity := SeverityWarning
	if errors.Is(err, generator.ErrSkipped) {
		severity = SeverityInfo
	}
	return Diagnostic{
		Identity:  rec.Key(),
		Generator: generatorName,
		Kind:      services.Kind(err),
		Severity:  severity,
		Message:   err.Error(),
	}
}

func sortedNames(stats map[string]fusion.SourceStats) []string {
	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// emitter is the reorder buffer between workers and the sink.
type emitter struct {
	mu      sync.Mutex
	sink    Sink
	next    int
	pending map[int]Result
	summary Summary
}

func (e *emitter) deliver(ctx context.Context, res Result) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending[res.Index] = res
	for {
		ready, ok := e.pending[e.next]
		if !ok {
			return nil
		}
		delete(e.pending, e.next)
		if err := e.sink.Write(ctx, ready); err != nil {
			return fmt.Errorf("write result for %s: %w", ready.Identity.Key(), err)
		}
		e.summary.add(ready)
		e.next++
	}
}
