package generator

import (
	_ "embed"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/goccy/go-yaml"

	"passfuse/internal/services"
)

//go:embed default_rules.yaml
var defaultRulesData []byte

const (
	defaultMinLength     = 6
	defaultMaxLength     = 32
	defaultMaxCandidates = 10000
)

// RuleSet holds the word lists and limits of the pii generator.
type RuleSet struct {
	MinLength     int               `yaml:"min_length"`
	MaxLength     int               `yaml:"max_length"`
	MaxCandidates int               `yaml:"max_candidates"`
	Suffixes      []string          `yaml:"suffixes"`
	Specials      []string          `yaml:"specials"`
	Common        []string          `yaml:"common"`
	Words         []string          `yaml:"words"`
	Keyboard      []string          `yaml:"keyboard"`
	Brands        []string          `yaml:"brands"`
	Regions       []string          `yaml:"regions"`
	Leet          map[string]string `yaml:"leet"`

	leetMap map[rune]string
}

// DefaultRuleSet returns the embedded rule set.
func DefaultRuleSet() (*RuleSet, error) {
	return ParseRuleSet(defaultRulesData)
}

// LoadRuleSet reads a YAML rule set from path.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "generator", "rule set", "read "+path, err)
	}
	rs, err := ParseRuleSet(data)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "generator", "rule set", path, err)
	}
	return rs, nil
}

// ParseRuleSet decodes and validates a YAML rule set. Unknown keys are rejected.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.UnmarshalWithOptions(data, &rs, yaml.DisallowUnknownField()); err != nil {
		return nil, fmt.Errorf("decode rule set: %w", err)
	}
	if rs.MinLength == 0 {
		rs.MinLength = defaultMinLength
	}
	if rs.MaxLength == 0 {
		rs.MaxLength = defaultMaxLength
	}
	if rs.MaxCandidates == 0 {
		rs.MaxCandidates = defaultMaxCandidates
	}
	if rs.MinLength < 1 || rs.MaxLength < rs.MinLength {
		return nil, fmt.Errorf("rule set length bounds [%d, %d] are invalid", rs.MinLength, rs.MaxLength)
	}
	if rs.MaxCandidates < 0 {
		return nil, fmt.Errorf("max_candidates must not be negative")
	}
	rs.leetMap = make(map[rune]string, len(rs.Leet))
	for from, to := range rs.Leet {
		r, size := utf8.DecodeRuneInString(from)
		if size == 0 || size != len(from) {
			return nil, fmt.Errorf("leet key %q must be a single character", from)
		}
		rs.leetMap[r] = to
	}
	return &rs, nil
}

// accepts reports whether password is within the length bounds, counted in runes.
func (rs *RuleSet) accepts(password string) bool {
	n := utf8.RuneCountInString(password)
	return n >= rs.MinLength && n <= rs.MaxLength
}

// leetSpeak substitutes mapped characters, matching case-insensitively.
func (rs *RuleSet) leetSpeak(word string) string {
	if len(rs.leetMap) == 0 {
		return word
	}
	out := make([]rune, 0, len(word))
	for _, r := range word {
		lower := r
		if r >= 'A' && r <= 'Z' {
			lower = r + ('a' - 'A')
		}
		if sub, ok := rs.leetMap[lower]; ok {
			out = append(out, []rune(sub)...)
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
