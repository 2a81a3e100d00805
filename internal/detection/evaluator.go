package detection

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Evaluator applies threshold rules to aggregator output, producing alert
// drafts. Deterministic for a fixed store state and now; no hidden state.
type Evaluator struct {
	Agg *Aggregator
}

func NewEvaluator(agg *Aggregator) *Evaluator { return &Evaluator{Agg: agg} }

// Evaluate aggregates the rule's window anchored at now and produces one
// draft per group whose count reached the threshold. The comparison is
// inclusive: N or more occurrences trigger.
func (ev *Evaluator) Evaluate(ctx context.Context, rule Rule, now time.Time) ([]Draft, error) {
	results, err := ev.Agg.Aggregate(ctx, rule.Predicate, rule.GroupKey, rule.Window, now)
	if err != nil {
		return nil, err
	}
	drafts := make([]Draft, 0, len(results))
	for _, r := range results {
		if r.Count < rule.Threshold {
			continue
		}
		drafts = append(drafts, Draft{
			Rule:        rule.Name,
			Severity:    rule.Severity,
			Key:         r.GroupValue,
			Description: renderDescription(rule.DescriptionTemplate, r.Count, r.GroupValue),
		})
	}
	return drafts, nil
}

// renderDescription interpolates {count} and {groupValue} into the rule's
// description template.
func renderDescription(tpl string, count int, groupValue string) string {
	return strings.NewReplacer(
		"{count}", strconv.Itoa(count),
		"{groupValue}", groupValue,
	).Replace(tpl)
}
