package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sentinelops/logsentry/internal/model"
)

// Deps carries the collaborators a Scheduler drives each cycle.
type Deps struct {
	Registry  *Registry
	Evaluator *Evaluator
	Gate      *Gate
	Alerts    AlertSink
	// Interval is the tick period. The demo cadence of the reference system
	// is a parameter here, not a correctness requirement.
	Interval time.Duration
	// StoreTimeout bounds each store interaction within a cycle.
	StoreTimeout time.Duration
	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Scheduler drives the evaluate -> dedup -> persist pipeline on a fixed
// cadence. It owns its ticker lifecycle explicitly: Start launches the loop,
// Stop cancels future ticks without awaiting an in-flight cycle.
//
// The scheduler is the error boundary of last resort for detection: a failing
// or panicking rule is logged and never aborts the remaining rules, the next
// tick, or the host process.
type Scheduler struct {
	deps   Deps
	cancel context.CancelFunc
}

func NewScheduler(deps Deps) *Scheduler {
	if deps.Interval <= 0 {
		deps.Interval = 30 * time.Second
	}
	if deps.StoreTimeout <= 0 {
		deps.StoreTimeout = 5 * time.Second
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Scheduler{deps: deps}
}

// Start launches the tick loop in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Stop cancels the tick loop. An in-flight cycle is not awaited; alerting is
// non-transactional and a truncated cycle simply re-evaluates next start.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Scheduler) run(ctx context.Context) {
	t := time.NewTicker(s.deps.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle evaluates every registered rule once, anchored at a single now.
// Rules are independent: a failure in one is logged and counted, and the
// remaining rules still evaluate.
func (s *Scheduler) RunCycle(ctx context.Context) {
	now := s.deps.Clock()
	start := time.Now()
	for _, rule := range s.deps.Registry.Rules() {
		if err := s.runRule(ctx, rule, now); err != nil {
			ruleFailuresTotal.WithLabelValues(rule.Name).Inc()
			log.Error().Err(err).Str("rule", rule.Name).Msg("rule evaluation failed")
		}
	}
	cyclesTotal.Inc()
	cycleDuration.Observe(time.Since(start).Seconds())
}

func (s *Scheduler) runRule(ctx context.Context, rule Rule, now time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule panicked: %v", r)
		}
	}()

	ectx, cancel := context.WithTimeout(ctx, s.deps.StoreTimeout)
	drafts, err := s.deps.Evaluator.Evaluate(ectx, rule, now)
	cancel()
	if err != nil {
		return err
	}
	draftsTotal.WithLabelValues(rule.Name).Add(float64(len(drafts)))

	// Per draft the lookup must complete before the write; cross-draft order
	// carries no guarantee.
	for _, d := range drafts {
		emitted, derr := s.emitDraft(ctx, rule, d, now)
		if derr != nil {
			return derr
		}
		if !emitted {
			suppressedTotal.WithLabelValues(rule.Name).Inc()
			log.Debug().Str("rule", d.Rule).Str("key", d.Key).Msg("draft suppressed by dedup gate")
			continue
		}
		alertsEmittedTotal.WithLabelValues(rule.Name).Inc()
		log.Info().Str("rule", d.Rule).Str("key", d.Key).Str("severity", string(d.Severity)).Msg("alert emitted")
	}
	return nil
}

func (s *Scheduler) emitDraft(ctx context.Context, rule Rule, d Draft, now time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.deps.StoreTimeout)
	defer cancel()

	ok, err := s.deps.Gate.Admit(ctx, d, rule.dedupWindow(), now)
	if err != nil || !ok {
		return false, err
	}
	alert := &model.Alert{
		Rule:        d.Rule,
		Severity:    d.Severity,
		Key:         d.Key,
		Description: d.Description,
		CreatedAt:   now,
	}
	if err := s.deps.Alerts.Insert(ctx, alert); err != nil {
		s.deps.Gate.Unreserve(ctx, d)
		return false, fmt.Errorf("persist alert: %w", err)
	}
	return true, nil
}
