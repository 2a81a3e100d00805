package detection

import (
	"errors"
	"fmt"
	"time"

	"github.com/sentinelops/logsentry/internal/model"
)

var (
	// ErrInvalidRule indicates a rule declaration is incomplete or invalid.
	ErrInvalidRule = errors.New("invalid detection rule")
)

// Predicate reports whether an event participates in a rule's aggregate.
type Predicate func(*model.Event) bool

// GroupKeyFunc extracts the value an event is bucketed by before threshold
// comparison. A degenerate value (empty string) is still a valid group.
type GroupKeyFunc func(*model.Event) string

// Rule is one threshold-over-window detection rule. Rules are declared at
// process start and read-only afterwards.
type Rule struct {
	Name      string
	Predicate Predicate
	GroupKey  GroupKeyFunc
	// Window is the trailing span events are aggregated over, always as the
	// half-open interval [now-Window, now).
	Window time.Duration
	// DedupWindow is how long an emitted alert suppresses new alerts for the
	// same rule and group. Zero means reuse Window.
	DedupWindow         time.Duration
	Threshold           int
	Severity            model.Severity
	DescriptionTemplate string
}

func (r *Rule) dedupWindow() time.Duration {
	if r.DedupWindow > 0 {
		return r.DedupWindow
	}
	return r.Window
}

func (r *Rule) validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRule)
	}
	if r.Predicate == nil || r.GroupKey == nil {
		return fmt.Errorf("%w: rule %q needs a predicate and a group key", ErrInvalidRule, r.Name)
	}
	if r.Window <= 0 {
		return fmt.Errorf("%w: rule %q needs a positive window", ErrInvalidRule, r.Name)
	}
	if r.Threshold < 1 {
		return fmt.Errorf("%w: rule %q needs a threshold of at least 1", ErrInvalidRule, r.Name)
	}
	if !r.Severity.IsValid() {
		return fmt.Errorf("%w: rule %q has unknown severity %q", ErrInvalidRule, r.Name, r.Severity)
	}
	return nil
}

// Registry is the process-wide rule set, built once at startup and passed by
// reference into the scheduler. It is immutable after construction.
type Registry struct {
	rules []Rule
}

// NewRegistry validates the given rules and builds a registry over a copy.
func NewRegistry(rules ...Rule) (*Registry, error) {
	seen := make(map[string]struct{}, len(rules))
	for i := range rules {
		if err := rules[i].validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[rules[i].Name]; dup {
			return nil, fmt.Errorf("%w: duplicate rule name %q", ErrInvalidRule, rules[i].Name)
		}
		seen[rules[i].Name] = struct{}{}
	}
	out := make([]Rule, len(rules))
	copy(out, rules)
	return &Registry{rules: out}, nil
}

// Rules returns the registered rules.
func (reg *Registry) Rules() []Rule {
	out := make([]Rule, len(reg.rules))
	copy(out, reg.rules)
	return out
}

// Len returns the number of registered rules.
func (reg *Registry) Len() int { return len(reg.rules) }

// Draft is a candidate alert produced by rule evaluation, not yet admitted
// past deduplication.
type Draft struct {
	Rule        string
	Severity    model.Severity
	Key         string
	Description string
}
