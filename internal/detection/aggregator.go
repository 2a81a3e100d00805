package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/sentinelops/logsentry/internal/model"
)

// EventSource is the read side of the event store the aggregator consumes.
// QueryWindow returns events with timestamps in the half-open interval
// [from, to).
type EventSource interface {
	QueryWindow(ctx context.Context, from, to time.Time) ([]model.Event, error)
}

// Aggregator computes per-group counts of events matching a predicate over a
// trailing window. It holds no state of its own; repeated calls against an
// unchanged store return identical results.
type Aggregator struct {
	Events EventSource
}

func NewAggregator(events EventSource) *Aggregator { return &Aggregator{Events: events} }

// Aggregate fetches events in [now-window, now), drops those failing the
// predicate, groups the rest by groupKey and counts. One result per distinct
// group value that appeared at least once; result order is unspecified.
func (a *Aggregator) Aggregate(ctx context.Context, predicate Predicate, groupKey GroupKeyFunc, window time.Duration, now time.Time) ([]model.AggregateResult, error) {
	events, err := a.Events.QueryWindow(ctx, now.Add(-window), now)
	if err != nil {
		return nil, fmt.Errorf("query event window: %w", err)
	}
	counts := make(map[string]int)
	for i := range events {
		e := &events[i]
		if !predicate(e) {
			continue
		}
		counts[groupKey(e)]++
	}
	out := make([]model.AggregateResult, 0, len(counts))
	for v, c := range counts {
		out = append(out, model.AggregateResult{GroupValue: v, Count: c})
	}
	return out, nil
}
