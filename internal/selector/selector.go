package selector

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"passfuse/internal/fusion"
	"passfuse/internal/strength"
)

// DefaultFairness reserves the whole budget proportionally to priority.
const DefaultFairness = 1.0

// Unattributed credits an entry that carries no source names.
const Unattributed = "-"

// Options configures a Selector.
type Options struct {
	Budget int
	// Fairness is the share of the budget reserved per source by priority, in [0,1].
	Fairness float64
	Bounds   strength.Bounds
	// Priorities maps generator name to weight; missing names count as weight 1.
	Priorities map[string]float64
	Exclude    Exclusion
}

// Selection is one entry of the final list.
type Selection struct {
	Password  string   `json:"password"`
	Rank      int      `json:"rank"`
	Sources   []string `json:"sources"`
	FusedRank float64  `json:"fused_rank"`
	Strength  float64  `json:"strength"`
	// Credit is the source whose reservation or leftover slot admitted the entry.
	Credit string `json:"credit"`
}

// Stats summarizes one selection.
type Stats struct {
	Considered int            `json:"considered"`
	Filtered   map[string]int `json:"filtered"`
	// Excluded counts entries dropped by the exclusion filter.
	Excluded int `json:"excluded"`
	// ExclusionSkipped is set when the exclusion filter would have left fewer
	// than Budget entries and was not applied.
	ExclusionSkipped bool           `json:"exclusion_skipped,omitempty"`
	Reserved         map[string]int `json:"reserved"`
	Contributed      map[string]int `json:"contributed"`
}

// Output is the selected list plus selection statistics.
type Output struct {
	Selections []Selection
	Stats      Stats
}

// Passwords returns the selected passwords in rank order.
func (o Output) Passwords() []string {
	out := make([]string, len(o.Selections))
	for i, s := range o.Selections {
		out[i] = s.Password
	}
	return out
}

// Selector applies the budget. It is stateless apart from the shared scorer.
type Selector struct {
	opts   Options
	scorer strength.Scorer
}

// New validates options and wraps scorer.
func New(opts Options, scorer strength.Scorer) (*Selector, error) {
	if opts.Budget <= 0 {
		return nil, fmt.Errorf("selector budget must be positive (got %d)", opts.Budget)
	}
	if math.IsNaN(opts.Fairness) || opts.Fairness < 0 || opts.Fairness > 1 {
		return nil, fmt.Errorf("selector fairness must be within [0,1] (got %g)", opts.Fairness)
	}
	if err := opts.Bounds.Validate(); err != nil {
		return nil, err
	}
	if scorer == nil {
		return nil, errors.New("selector requires a strength scorer")
	}
	for name, w := range opts.Priorities {
		if !(w > 0) {
			return nil, fmt.Errorf("selector priority for %q must be positive (got %g)", name, w)
		}
	}
	opts.Exclude = opts.Exclude.compile()
	return &Selector{opts: opts, scorer: scorer}, nil
}

type scored struct {
	entry    fusion.Entry
	strength float64
}

// Select filters and truncates entries. Input order does not matter; the
// result is ordered by fused rank then password.
func (s *Selector) Select(entries []fusion.Entry) Output {
	stats := Stats{
		Considered:  len(entries),
		Filtered:    map[string]int{},
		Reserved:    map[string]int{},
		Contributed: map[string]int{},
	}

	sorted := append([]fusion.Entry(nil), entries...)
	fusion.SortEntries(sorted)

	survivors := make([]scored, 0, len(sorted))
	for _, e := range sorted {
		score := s.scorer.Score(e.Password)
		if !s.opts.Bounds.Contains(score) {
			for _, src := range e.Sources {
				stats.Filtered[src]++
			}
			continue
		}
		survivors = append(survivors, scored{entry: e, strength: score})
	}
	survivors = s.exclude(survivors, &stats)

	n := min(s.opts.Budget, len(survivors))
	if n == 0 {
		return Output{Stats: stats}
	}

	remaining := s.reservations(survivors)
	for name, r := range remaining {
		stats.Reserved[name] = r
	}

	credit := make([]string, len(survivors))
	picked := 0
	// Reservations first, in fused-rank order.
	for i, c := range survivors {
		if picked == n {
			break
		}
		if src := s.reservationOwner(c.entry, remaining); src != "" {
			remaining[src]--
			credit[i] = src
			picked++
		}
	}
	// Leftover slots by global fused rank.
	for i, c := range survivors {
		if picked == n {
			break
		}
		if credit[i] == "" {
			credit[i] = s.bestSource(c.entry)
			picked++
		}
	}

	selections := make([]Selection, 0, n)
	for i, c := range survivors {
		if credit[i] == "" {
			continue
		}
		stats.Contributed[credit[i]]++
		selections = append(selections, Selection{
			Password:  c.entry.Password,
			Sources:   append([]string(nil), c.entry.Sources...),
			FusedRank: c.entry.FusedRank,
			Strength:  c.strength,
			Credit:    credit[i],
		})
	}
	sort.SliceStable(selections, func(i, j int) bool {
		if selections[i].FusedRank != selections[j].FusedRank {
			return selections[i].FusedRank < selections[j].FusedRank
		}
		return selections[i].Password < selections[j].Password
	})
	for i := range selections {
		selections[i].Rank = i + 1
	}
	return Output{Selections: selections, Stats: stats}
}

// exclude applies the exclusion filter unless fewer than Budget entries would
// remain, in which case survivors are returned unchanged.
func (s *Selector) exclude(survivors []scored, stats *Stats) []scored {
	if !s.opts.Exclude.enabled() {
		return survivors
	}
	kept := make([]scored, 0, len(survivors))
	for _, c := range survivors {
		if !s.opts.Exclude.Excludes(c.entry.Password) {
			kept = append(kept, c)
		}
	}
	if len(kept) < s.opts.Budget {
		stats.ExclusionSkipped = len(kept) < len(survivors)
		return survivors
	}
	stats.Excluded = len(survivors) - len(kept)
	return kept
}

func (s *Selector) weight(source string) float64 {
	if w, ok := s.opts.Priorities[source]; ok {
		return w
	}
	return 1
}

// reservations computes floor(K * fairness * w_i / sum w) over the sources
// present among survivors.
func (s *Selector) reservations(survivors []scored) map[string]int {
	present := map[string]struct{}{}
	for _, c := range survivors {
		for _, src := range c.entry.Sources {
			present[src] = struct{}{}
		}
	}
	var total float64
	for src := range present {
		total += s.weight(src)
	}
	out := make(map[string]int, len(present))
	for src := range present {
		out[src] = int(math.Floor(float64(s.opts.Budget) * s.opts.Fairness * s.weight(src) / total))
	}
	return out
}

// contributors orders an entry's sources by their own weighted rank.
func (s *Selector) contributors(e fusion.Entry) []string {
	names := append([]string(nil), e.Sources...)
	sort.SliceStable(names, func(i, j int) bool {
		ri := float64(e.SourceRanks[names[i]]) / s.weight(names[i])
		rj := float64(e.SourceRanks[names[j]]) / s.weight(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names
}

func (s *Selector) reservationOwner(e fusion.Entry, remaining map[string]int) string {
	for _, src := range s.contributors(e) {
		if remaining[src] > 0 {
			return src
		}
	}
	return ""
}

func (s *Selector) bestSource(e fusion.Entry) string {
	names := s.contributors(e)
	if len(names) == 0 {
		return Unattributed
	}
	return names[0]
}
