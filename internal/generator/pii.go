package generator

import (
	"context"
	"iter"
	"strings"

	"passfuse/internal/candidate"
	"passfuse/internal/identity"
	"passfuse/internal/textutil"
)

// PII is the built-in mutation generator. It combines the identity's variants
// with the rule set's word lists in a fixed phase order, so earlier phases
// (direct PII, PII combinations) outrank generic guesses.
type PII struct {
	name  string
	rules *RuleSet
}

// NewPII builds a pii generator; a nil rule set selects the embedded default.
func NewPII(name string, rules *RuleSet) (*PII, error) {
	if rules == nil {
		var err error
		if rules, err = DefaultRuleSet(); err != nil {
			return nil, err
		}
	}
	return &PII{name: name, rules: rules}, nil
}

func (p *PII) Name() string { return p.name }

// Required is empty: every record carries at least one usable field.
func (p *PII) Required() []identity.Field { return nil }

func (p *PII) Generate(_ context.Context, rec identity.Record) (candidate.Stream, error) {
	next, stop := iter.Pull(p.candidates(rec))
	seen := make(map[string]struct{})
	emitted := 0
	pull := func() (string, bool, error) {
		for {
			if p.rules.MaxCandidates > 0 && emitted >= p.rules.MaxCandidates {
				return "", false, nil
			}
			pw, ok := next()
			if !ok {
				return "", false, nil
			}
			if !p.rules.accepts(pw) {
				continue
			}
			if _, dup := seen[pw]; dup {
				continue
			}
			seen[pw] = struct{}{}
			emitted++
			return pw, true, nil
		}
	}
	return candidate.NewRanked(p.name, pull, keepLine, func() error {
		stop()
		return nil
	}), nil
}

func keepLine(line string) (string, float64, bool, bool) {
	return line, 0, false, line != ""
}

// candidates yields the raw phase sequence for rec, before length filtering
// and deduplication.
func (p *PII) candidates(rec identity.Record) iter.Seq[string] {
	v := identity.DeriveVariants(rec)
	rs := p.rules
	bases := append(append([]string(nil), v.Names...), v.Accounts...)

	return func(yield func(string) bool) {
		emit := func(values ...string) bool {
			for _, s := range values {
				if !yield(s) {
					return false
				}
			}
			return true
		}

		// Direct fragments and fragment pairs.
		for _, group := range [][]string{v.Names, v.Dates, v.Phones, v.Emails, v.Accounts} {
			if !emit(group...) {
				return
			}
		}
		for _, n := range bases {
			for _, d := range v.Dates {
				if !emit(n+d, d+n, textutil.Title(n)+d) {
					return
				}
			}
		}
		for _, n := range bases {
			for _, d := range head(v.Dates, 4) {
				for _, s := range rs.Specials {
					if !emit(n+d+s, textutil.Title(n)+d+s) {
						return
					}
				}
			}
		}
		for _, n := range bases {
			for _, ph := range v.Phones {
				if !emit(n+ph, ph+n) {
					return
				}
			}
			for _, e := range v.Emails {
				if e == n {
					continue
				}
				if !emit(n+e, e+n) {
					return
				}
			}
		}

		// Fragment plus generic affixes.
		for _, n := range bases {
			for _, s := range rs.Suffixes {
				if !emit(n+s, textutil.Title(n)+s, s+n) {
					return
				}
			}
		}
		for _, n := range bases {
			for _, s := range rs.Specials {
				if !emit(n+s, textutil.Title(n)+s, s+n) {
					return
				}
			}
		}
		if !emit(rs.Common...) {
			return
		}
		for _, n := range append(append([]string(nil), v.Names...), head(rs.Common, 50)...) {
			for _, s := range []string{"", "1", "!", "123", "@"} {
				w := rs.leetSpeak(n + s)
				if w != n+s && !emit(w, textutil.Title(w)) {
					return
				}
			}
		}
		for _, n := range head(v.Names, 15) {
			if !emit(n+n, n+n+n) {
				return
			}
		}
		for _, n := range head(v.Names, 20) {
			for _, w := range rs.Words {
				if !emit(n+w, n+textutil.Title(w), w+n, textutil.Title(w)+n) {
					return
				}
			}
		}
		for _, n := range head(v.Names, 8) {
			for _, k := range rs.Keyboard {
				if !emit(n+k, k+n) {
					return
				}
			}
		}
		for _, n := range head(v.Names, 10) {
			for _, b := range rs.Brands {
				if !emit(n+textutil.Title(b), textutil.Title(b)+n) {
					return
				}
			}
		}
		if month := birthMonth(rec); month != "" {
			if !emit(month, textutil.Title(month)) {
				return
			}
			for _, n := range head(v.Names, 5) {
				if !emit(n+textutil.Title(month), n+textutil.Title(month[:3])) {
					return
				}
			}
		}
		for _, n := range head(v.Names, 5) {
			for _, r := range rs.Regions {
				if !emit(n+strings.ToUpper(r), strings.ToUpper(r)+n) {
					return
				}
			}
		}
	}
}

var monthNames = [...]string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

func birthMonth(rec identity.Record) string {
	birth, ok := rec.Value(identity.FieldBirth)
	if !ok {
		return ""
	}
	d, ok := identity.ParseBirth(birth)
	if !ok {
		return ""
	}
	return monthNames[d.Month-1]
}

func head(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
