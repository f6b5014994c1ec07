package fusion

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sort"
	"sync"

	"passfuse/internal/candidate"
	"passfuse/internal/strength"
)

const (
	DefaultOverfetch = 2.0
	DefaultMinWindow = 16
	DefaultBatchSize = 8
	// DefaultScanFactor multiplies Target to obtain the default MaxEntries.
	DefaultScanFactor = 16
)

// Options tunes the engine.
type Options struct {
	// Budget is the per-identity output budget K.
	Budget int
	// Overfetch multiplies Budget to obtain the number of in-bounds entries at
	// which pulling stops.
	Overfetch float64
	// Scorer and Bounds decide which entries count toward the target. A nil
	// Scorer counts every entry. Entries are never dropped here.
	Scorer strength.Scorer
	Bounds strength.Bounds
	// MinWindow is the smallest look-ahead window of any source.
	MinWindow int
	// BatchSize is the number of new entries the highest-priority source may
	// contribute per round; lower priorities get proportionally fewer (min 1).
	BatchSize int
	// MaxPerSource caps how many candidates are read from one source (0 = no cap).
	MaxPerSource int
	// MaxEntries caps the unique entries held for one identity whatever their
	// strength (0 = DefaultScanFactor * Target).
	MaxEntries int
}

// Source is one generator stream taking part in fusion.
type Source struct {
	Name     string
	Priority float64
	Stream   candidate.Stream
}

// Entry is one unique password in the fused ranking.
type Entry struct {
	Password string
	// Sources lists contributing generators sorted by name.
	Sources []string
	// SourceRanks holds each contributing generator's own rank.
	SourceRanks map[string]int
	// FusedRank is min(rank/priority) over contributors; lower is better.
	FusedRank float64
	// Position is the 1-based place in the ranking.
	Position int
}

// SourceStats describes how one source was consumed.
type SourceStats struct {
	Pulled   int
	Accepted int
	Merged   int
	// Withdrawn counts entries removed because the source failed.
	Withdrawn int
	Window    int
	Exhausted bool
	Err       error
}

// Ranking is the fused result for one identity.
type Ranking struct {
	Entries []Entry
	Target  int
	// InBounds is the number of entries within the strength bounds.
	InBounds int
	Sources  map[string]SourceStats
}

// Engine fuses streams. It holds no per-identity state and is safe to share.
type Engine struct {
	opts Options
}

// New validates options and builds an engine.
func New(opts Options) (*Engine, error) {
	if opts.Budget <= 0 {
		return nil, fmt.Errorf("fusion budget must be positive (got %d)", opts.Budget)
	}
	if opts.Overfetch == 0 {
		opts.Overfetch = DefaultOverfetch
	}
	if opts.Overfetch < 1 || math.IsNaN(opts.Overfetch) || math.IsInf(opts.Overfetch, 0) {
		return nil, fmt.Errorf("fusion overfetch must be >= 1 (got %g)", opts.Overfetch)
	}
	if opts.MinWindow <= 0 {
		opts.MinWindow = DefaultMinWindow
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.MaxPerSource < 0 {
		return nil, fmt.Errorf("fusion max_per_source must be >= 0 (got %d)", opts.MaxPerSource)
	}
	if opts.Scorer != nil {
		if err := opts.Bounds.Validate(); err != nil {
			return nil, err
		}
	}
	e := &Engine{opts: opts}
	if opts.MaxEntries < 0 {
		return nil, fmt.Errorf("fusion max_entries must be >= 0 (got %d)", opts.MaxEntries)
	}
	if opts.MaxEntries == 0 {
		e.opts.MaxEntries = e.Target() * DefaultScanFactor
	}
	if e.opts.MaxEntries < e.Target() {
		return nil, fmt.Errorf("fusion max_entries %d is below the target %d", e.opts.MaxEntries, e.Target())
	}
	return e, nil
}

// Target returns the in-bounds entry count at which pulling stops.
func (e *Engine) Target() int {
	return int(math.Ceil(float64(e.opts.Budget) * e.opts.Overfetch))
}

// MaxEntries returns the unique-entry cap.
func (e *Engine) MaxEntries() int { return e.opts.MaxEntries }

func (e *Engine) inBounds(password string) bool {
	if e.opts.Scorer == nil {
		return true
	}
	return e.opts.Bounds.Contains(e.opts.Scorer.Score(password))
}

type puller struct {
	name     string
	priority float64
	stream   candidate.Stream
	window   int
	quota    int
	ch       chan candidate.Candidate
	err      error
	done     bool
	stats    SourceStats
}

func (p *puller) run(ctx context.Context, limit int) {
	defer close(p.ch)
	for n := 0; limit <= 0 || n < limit; n++ {
		c, ok, err := p.stream.Next(ctx)
		if err != nil {
			p.err = err
			return
		}
		if !ok {
			return
		}
		c.Source = p.name
		select {
		case p.ch <- c:
		case <-ctx.Done():
			return
		}
	}
}

// Fuse merges sources into a ranking. Streams are closed before it returns
// and must return promptly from Next once its context is cancelled. Sources
// must have unique names and positive priorities.
func (e *Engine) Fuse(ctx context.Context, sources []Source) (Ranking, error) {
	target := e.Target()
	ranking := Ranking{Target: target, Sources: make(map[string]SourceStats, len(sources))}

	pullers, err := e.pullers(sources, target)
	if err != nil {
		closeAll(sources)
		return ranking, err
	}

	pullCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	for _, p := range pullers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.run(pullCtx, e.opts.MaxPerSource)
		}()
	}

	r := e.newRanker(pullers)
	fuseErr := r.consume(ctx, target)

	cancel()
	wg.Wait()
	closeAll(sources)

	for _, p := range pullers {
		// Errors raised after the engine stopped reading come from teardown and are
		// not reported.
		if p.done && p.err == nil {
			p.stats.Exhausted = true
		}
		ranking.Sources[p.name] = p.stats
	}
	if fuseErr != nil {
		return ranking, fuseErr
	}

	ranking.Entries = finalize(r.entries)
	ranking.InBounds = r.inBounds
	return ranking, nil
}

func (e *Engine) pullers(sources []Source, target int) ([]*puller, error) {
	var total, highest float64
	seen := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		if s.Name == "" {
			return nil, errors.New("fusion source name must not be empty")
		}
		if _, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("fusion source %q listed twice", s.Name)
		}
		seen[s.Name] = struct{}{}
		if !(s.Priority > 0) || math.IsInf(s.Priority, 0) {
			return nil, fmt.Errorf("fusion source %q priority must be positive (got %g)", s.Name, s.Priority)
		}
		if s.Stream == nil {
			return nil, fmt.Errorf("fusion source %q has no stream", s.Name)
		}
		total += s.Priority
		highest = math.Max(highest, s.Priority)
	}

	pullers := make([]*puller, 0, len(sources))
	for _, s := range sources {
		window := int(math.Ceil(float64(target) * s.Priority / total))
		if window < e.opts.MinWindow {
			window = e.opts.MinWindow
		}
		quota := int(math.Round(float64(e.opts.BatchSize) * s.Priority / highest))
		if quota < 1 {
			quota = 1
		}
		pullers = append(pullers, &puller{
			name:     s.Name,
			priority: s.Priority,
			stream:   s.Stream,
			window:   window,
			quota:    quota,
			ch:       make(chan candidate.Candidate, window),
			stats:    SourceStats{Window: window},
		})
	}
	sort.SliceStable(pullers, func(i, j int) bool {
		if pullers[i].priority != pullers[j].priority {
			return pullers[i].priority > pullers[j].priority
		}
		return pullers[i].name < pullers[j].name
	})
	return pullers, nil
}

// ranker holds the growing ranking of one Fuse call.
type ranker struct {
	engine   *Engine
	pullers  []*puller
	index    map[string]*Entry
	entries  []*Entry
	valid    map[string]bool
	inBounds int
}

func (e *Engine) newRanker(pullers []*puller) *ranker {
	return &ranker{
		engine:  e,
		pullers: pullers,
		index:   make(map[string]*Entry),
		valid:   make(map[string]bool),
	}
}

func (r *ranker) full(target int) bool {
	return r.inBounds >= target || len(r.entries) >= r.engine.opts.MaxEntries
}

// consume runs weighted round-robin rounds until enough in-bounds entries are
// held, the entry cap is hit or every source is drained.
func (r *ranker) consume(ctx context.Context, target int) error {
	for !r.full(target) {
		progressed := false
		for _, p := range r.pullers {
			if p.done {
				continue
			}
			accepted := 0
			for accepted < p.quota && !r.full(target) {
				var (
					c  candidate.Candidate
					ok bool
				)
				select {
				case c, ok = <-p.ch:
				case <-ctx.Done():
					return ctx.Err()
				}
				if !ok {
					p.done = true
					if p.err != nil && !errors.Is(p.err, context.Canceled) {
						p.stats.Err = p.err
						r.withdraw(p)
					}
					break
				}
				progressed = true
				if r.add(p, c) {
					accepted++
				}
			}
		}
		if !progressed {
			break
		}
	}
	return nil
}

// add records c and reports whether it created a new entry.
func (r *ranker) add(p *puller, c candidate.Candidate) bool {
	p.stats.Pulled++
	fused := float64(c.Rank) / p.priority
	if existing, dup := r.index[c.Password]; dup {
		p.stats.Merged++
		merge(existing, p.name, c.Rank, fused)
		return false
	}
	entry := &Entry{
		Password:    c.Password,
		Sources:     []string{p.name},
		SourceRanks: map[string]int{p.name: c.Rank},
		FusedRank:   fused,
	}
	r.index[c.Password] = entry
	r.entries = append(r.entries, entry)
	if r.engine.inBounds(c.Password) {
		r.valid[c.Password] = true
		r.inBounds++
	}
	p.stats.Accepted++
	return true
}

// withdraw removes a failed source from the ranking. Entries only it proposed
// are dropped; shared entries lose its tag and get their fused rank recomputed.
func (r *ranker) withdraw(failed *puller) {
	priorities := make(map[string]float64, len(r.pullers))
	for _, p := range r.pullers {
		priorities[p.name] = p.priority
	}
	kept := r.entries[:0]
	for _, entry := range r.entries {
		if _, ok := entry.SourceRanks[failed.name]; !ok {
			kept = append(kept, entry)
			continue
		}
		failed.stats.Withdrawn++
		delete(entry.SourceRanks, failed.name)
		if len(entry.SourceRanks) == 0 {
			delete(r.index, entry.Password)
			if r.valid[entry.Password] {
				delete(r.valid, entry.Password)
				r.inBounds--
			}
			continue
		}
		entry.Sources = slices.DeleteFunc(entry.Sources, func(name string) bool { return name == failed.name })
		entry.FusedRank = math.Inf(1)
		for name, rank := range entry.SourceRanks {
			entry.FusedRank = math.Min(entry.FusedRank, float64(rank)/priorities[name])
		}
		kept = append(kept, entry)
	}
	clear(r.entries[len(kept):])
	r.entries = kept
}

func merge(entry *Entry, source string, rank int, fused float64) {
	if prev, ok := entry.SourceRanks[source]; ok {
		// A generator repeating itself keeps its first (best) rank.
		if rank >= prev {
			return
		}
	} else {
		entry.Sources = append(entry.Sources, source)
		sort.Strings(entry.Sources)
	}
	entry.SourceRanks[source] = rank
	if fused < entry.FusedRank {
		entry.FusedRank = fused
	}
}

func finalize(entries []*Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = *e
	}
	SortEntries(out)
	for i := range out {
		out[i].Position = i + 1
	}
	return out
}

// SortEntries orders entries by fused rank, ties broken lexicographically.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return Less(entries[i], entries[j])
	})
}

// Less is the total order of the ranking.
func Less(a, b Entry) bool {
	if a.FusedRank != b.FusedRank {
		return a.FusedRank < b.FusedRank
	}
	return a.Password < b.Password
}

func closeAll(sources []Source) {
	for _, s := range sources {
		if s.Stream != nil {
			_ = s.Stream.Close()
		}
	}
}
