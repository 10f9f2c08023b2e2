package triage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/risklens/assets"
	"github.com/doeshing/risklens/internal/pkg/filesystem"
)

// Rule describes one declarative intent pattern. The pattern set is a
// versioned table rather than scattered regexps so coverage and edge cases
// stay enumerable and testable in isolation from dispatch.
type Rule struct {
	Name    string `yaml:"name"`
	Action  string `yaml:"action"`
	Tier    string `yaml:"tier"`
	Pattern string `yaml:"pattern"`
}

// RulesFile is the YAML schema root for ~/.risklens/triage.yaml.
type RulesFile struct {
	Version int    `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

// Rule tiers drive the reported confidence.
const (
	TierExact      = "exact"
	TierCollective = "collective"
)

type compiledRule struct {
	re   *regexp.Regexp
	rule Rule
}

func loadRules(path string) (RulesFile, error) {
	var rules RulesFile
	path = expandPath(path)
	data, err := os.ReadFile(path)
	if err != nil {
		// fall back to the embedded defaults
		return defaultRules()
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RulesFile{}, err
	}
	if len(rules.Rules) == 0 {
		return defaultRules()
	}
	return rules, nil
}

func expandPath(path string) string {
	if path == "" {
		return filesystem.AppDir("triage.yaml")
	}
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(filesystem.UserHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}

// defaultRules parses the embedded pattern table. Rules are tried in order:
// explicit single-ticker actions first, then collective phrasing, then the
// caller falls through to the LLM path. Ticker captures are validated
// separately against the reserved-word list before a rule is accepted.
func defaultRules() (RulesFile, error) {
	var rules RulesFile
	if err := yaml.Unmarshal(assets.DefaultTriageYAML, &rules); err != nil {
		return RulesFile{}, fmt.Errorf("parse embedded triage rules: %w", err)
	}
	return rules, nil
}

// reservedTokens are collective nouns and stopwords that look ticker-shaped
// when written in caps. A capture hitting this list invalidates the match
// instead of being accepted as a symbol.
var reservedTokens = map[string]bool{
	"A": true, "ALL": true, "AN": true, "AND": true, "ARE": true,
	"AT": true, "FOR": true, "I": true, "IN": true, "IS": true,
	"ME": true, "MY": true, "OF": true, "ON": true, "OR": true,
	"SHOW": true, "THE": true, "TO": true, "WHAT": true,
}

// tickerShape matches a plausible exchange symbol: 1-5 uppercase letters.
var tickerShape = regexp.MustCompile(`^[A-Z]{1,5}$`)

// ValidTicker reports whether token is acceptable as a portfolio symbol:
// uppercase, 1-5 letters, and not a reserved word.
func ValidTicker(token string) bool {
	if !tickerShape.MatchString(token) {
		return false
	}
	return !reservedTokens[token]
}
