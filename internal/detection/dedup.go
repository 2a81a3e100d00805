package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/sentinelops/logsentry/internal/model"
)

// AlertSink is the alert store surface the dedup gate and scheduler depend on.
type AlertSink interface {
	HasRecent(ctx context.Context, rule, key string, since time.Time) (bool, error)
	Insert(ctx context.Context, a *model.Alert) error
}

// Reserver is an insert-if-absent reservation keyed by rule and group.
// Implementations must expire a reservation on their own once its TTL lapses;
// Release only shortens that lifetime.
type Reserver interface {
	TryReserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type redisReserver struct {
	rdb *redis.Client
}

// NewRedisReserver wraps a redis client as a Reserver. A nil client yields a
// nil Reserver, which disables reservations entirely.
func NewRedisReserver(rdb *redis.Client) Reserver {
	if rdb == nil {
		return nil
	}
	return &redisReserver{rdb: rdb}
}

func (r *redisReserver) TryReserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339Nano), ttl).Result()
}

func (r *redisReserver) Release(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}

// Gate suppresses drafts that duplicate a recently emitted alert for the same
// rule and group key.
//
// The store lookup followed by the caller's insert is a check-then-act
// sequence: two overlapping cycles can both pass the lookup and emit twice.
// With a Reserver configured the gate additionally takes a reservation keyed
// by rule+group with the dedup window as TTL, so only one of the racers
// admits. The reserver being absent or failing degrades back to the
// store-only check, never to a missed alert.
type Gate struct {
	Alerts   AlertSink
	Reserver Reserver
}

func NewGate(alerts AlertSink, reserver Reserver) *Gate {
	return &Gate{Alerts: alerts, Reserver: reserver}
}

// Admit reports whether the draft should be forwarded to the alert store.
// false means a live alert for the same rule and key already covers the
// incident; nothing is written and the original alert's lifetime is not
// extended.
//
// An admitted draft holds a reservation until the caller either persists the
// alert or hands the reservation back via Unreserve.
func (g *Gate) Admit(ctx context.Context, d Draft, dedupWindow time.Duration, now time.Time) (bool, error) {
	found, err := g.Alerts.HasRecent(ctx, d.Rule, d.Key, now.Add(-dedupWindow))
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	if found {
		return false, nil
	}
	if g.Reserver != nil {
		ok, rerr := g.Reserver.TryReserve(ctx, reservationKey(d.Rule, d.Key), dedupWindow)
		if rerr != nil {
			log.Warn().Err(rerr).Str("rule", d.Rule).Str("key", d.Key).Msg("dedup reservation unavailable, falling back to store check")
			return true, nil
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Unreserve drops the reservation taken by Admit so the next cycle can retry
// a draft whose insert failed. Without it a failed insert would leave the
// reservation pinning the suppression for the full dedup window with no alert
// row behind it. Release is best effort; the TTL remains the backstop.
func (g *Gate) Unreserve(ctx context.Context, d Draft) {
	if g.Reserver == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := g.Reserver.Release(ctx, reservationKey(d.Rule, d.Key)); err != nil {
		log.Warn().Err(err).Str("rule", d.Rule).Str("key", d.Key).Msg("dedup reservation release failed, expiring by ttl")
	}
}

func reservationKey(rule, key string) string {
	return "alert:dedup:" + rule + ":" + key
}
