package detection

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sentinelops/logsentry/internal/model"
)

// RulesFile is the YAML rule declaration format. All rules share one shape:
// threshold-over-sliding-window counting keyed by an event field.
type RulesFile struct {
	Rules []RuleConfig `yaml:"rules"`
}

type RuleConfig struct {
	Name        string            `yaml:"name"`
	Severity    string            `yaml:"severity"`
	Window      string            `yaml:"window"`
	DedupWindow string            `yaml:"dedup_window,omitempty"`
	Threshold   int               `yaml:"threshold"`
	Description string            `yaml:"description"`
	Match       map[string]string `yaml:"match"`
	GroupBy     string            `yaml:"group_by"`
}

// Compile turns the declaration into an executable Rule. Match entries become
// an AND of field equality checks; group_by becomes a field extractor.
func (c *RuleConfig) Compile() (Rule, error) {
	window, err := time.ParseDuration(strings.TrimSpace(c.Window))
	if err != nil {
		return Rule{}, fmt.Errorf("%w: rule %q window: %v", ErrInvalidRule, c.Name, err)
	}
	var dedup time.Duration
	if strings.TrimSpace(c.DedupWindow) != "" {
		dedup, err = time.ParseDuration(strings.TrimSpace(c.DedupWindow))
		if err != nil {
			return Rule{}, fmt.Errorf("%w: rule %q dedup_window: %v", ErrInvalidRule, c.Name, err)
		}
	}
	if len(c.Match) == 0 {
		return Rule{}, fmt.Errorf("%w: rule %q needs at least one match criterion", ErrInvalidRule, c.Name)
	}
	if strings.TrimSpace(c.GroupBy) == "" {
		return Rule{}, fmt.Errorf("%w: rule %q needs group_by", ErrInvalidRule, c.Name)
	}

	match := make(map[string]string, len(c.Match))
	for k, v := range c.Match {
		match[k] = v
	}
	groupBy := strings.TrimSpace(c.GroupBy)

	r := Rule{
		Name: c.Name,
		Predicate: func(e *model.Event) bool {
			for field, want := range match {
				if e.Field(field) != want {
					return false
				}
			}
			return true
		},
		GroupKey:            func(e *model.Event) string { return e.Field(groupBy) },
		Window:              window,
		DedupWindow:         dedup,
		Threshold:           c.Threshold,
		Severity:            model.Severity(strings.ToUpper(strings.TrimSpace(c.Severity))),
		DescriptionTemplate: c.Description,
	}
	if err := r.validate(); err != nil {
		return Rule{}, err
	}
	return r, nil
}

// LoadRegistry builds the rule registry from a YAML config file. An empty
// path yields the built-in default rules.
func LoadRegistry(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRegistry()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules config: %w", err)
	}
	var f RulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules config: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rules config %s declares no rules", path)
	}
	rules := make([]Rule, 0, len(f.Rules))
	for i := range f.Rules {
		r, err := f.Rules[i].Compile()
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return NewRegistry(rules...)
}

// DefaultRegistry returns the rule set used when no rules file is configured.
func DefaultRegistry() (*Registry, error) {
	return NewRegistry(BruteForceRule())
}

// BruteForceRule flags repeated failed logins from a single origin IP.
func BruteForceRule() Rule {
	return Rule{
		Name:                "Brute Force Attempt",
		Predicate:           func(e *model.Event) bool { return e.Action == "LOGIN_FAILED" },
		GroupKey:            func(e *model.Event) string { return e.IP },
		Window:              5 * time.Minute,
		Threshold:           5,
		Severity:            model.SeverityHigh,
		DescriptionTemplate: "Detected {count} failed login attempts from IP {groupValue}",
	}
}
