package strength

import (
	"fmt"
	"math"
	"sync"
	"unicode/utf8"

	"github.com/nbutton23/zxcvbn-go"
)

// MaxScoredLength caps the input handed to zxcvbn; longer strings score +Inf.
const MaxScoredLength = 64

// Scorer maps a password to a strength score. Implementations must be
// deterministic and safe for concurrent use.
type Scorer interface {
	Score(password string) float64
}

// Func adapts a plain function to Scorer.
type Func func(password string) float64

// Score implements Scorer.
func (f Func) Score(password string) float64 { return f(password) }

// Entropy scores passwords with zxcvbn's entropy estimate (bits). No user
// inputs are supplied so the score never depends on the identity.
type Entropy struct{}

// Score implements Scorer.
func (Entropy) Score(password string) (score float64) {
	if password == "" {
		return 0
	}
	if utf8.RuneCountInString(password) > MaxScoredLength {
		return math.Inf(1)
	}
	defer func() {
		if r := recover(); r != nil {
			score = math.Inf(1)
		}
	}()
	return zxcvbn.PasswordStrength(password, nil).Entropy
}

// Bounds is the accepted strength interval, inclusive on both ends.
type Bounds struct {
	Min float64
	Max float64
}

// Contains reports whether score lies inside the bounds.
func (b Bounds) Contains(score float64) bool {
	return score >= b.Min && score <= b.Max
}

// Validate rejects inverted or negative bounds.
func (b Bounds) Validate() error {
	if math.IsNaN(b.Min) || math.IsNaN(b.Max) {
		return fmt.Errorf("strength bounds must be numbers")
	}
	if b.Min < 0 {
		return fmt.Errorf("strength.min must be >= 0 (got %g)", b.Min)
	}
	if b.Max < b.Min {
		return fmt.Errorf("strength.max (%g) must be >= strength.min (%g)", b.Max, b.Min)
	}
	return nil
}

// Memo caches scores of an underlying scorer. Once capacity entries are held
// new results are computed but no longer stored.
type Memo struct {
	scorer   Scorer
	capacity int

	mu     sync.RWMutex
	scores map[string]float64
}

// NewMemo wraps scorer. capacity <= 0 means unbounded.
func NewMemo(scorer Scorer, capacity int) *Memo {
	return &Memo{scorer: scorer, capacity: capacity, scores: make(map[string]float64)}
}

// Score implements Scorer.
func (m *Memo) Score(password string) float64 {
	m.mu.RLock()
	score, ok := m.scores[password]
	m.mu.RUnlock()
	if ok {
		return score
	}
	score = m.scorer.Score(password)
	m.mu.Lock()
	if m.capacity <= 0 || len(m.scores) < m.capacity {
		m.scores[password] = score
	}
	m.mu.Unlock()
	return score
}

// Len returns the number of cached scores.
func (m *Memo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.scores)
}
