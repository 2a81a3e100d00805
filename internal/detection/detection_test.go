package detection

import (
	"context"
	"sync"
	"time"

	"github.com/sentinelops/logsentry/internal/model"
)

// memEvents is an in-memory EventSource applying the store's half-open
// window semantics.
type memEvents struct {
	mu     sync.Mutex
	events []model.Event
	err    error
	calls  int
}

func (m *memEvents) QueryWindow(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := []model.Event{}
	for _, e := range m.events {
		if !e.Timestamp.Before(from) && e.Timestamp.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEvents) queryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *memEvents) add(action string, level model.Level, ip string, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, model.Event{
		Service:   "auth",
		Level:     level,
		Action:    action,
		IP:        ip,
		Timestamp: ts,
	})
}

// memReserver is an in-memory Reserver. TTL expiry is not modeled; tests
// exercise reserve, collision, and release directly.
type memReserver struct {
	mu         sync.Mutex
	keys       map[string]struct{}
	reserveErr error
	releaseErr error
	released   []string
}

func (m *memReserver) TryReserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if m.reserveErr != nil {
		return false, m.reserveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]struct{}{}
	}
	if _, held := m.keys[key]; held {
		return false, nil
	}
	m.keys[key] = struct{}{}
	return true, nil
}

func (m *memReserver) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, key)
	if m.releaseErr != nil {
		return m.releaseErr
	}
	delete(m.keys, key)
	return nil
}

// memAlerts is an in-memory AlertSink.
type memAlerts struct {
	alerts    []model.Alert
	insertErr error
	lookupErr error
}

func (m *memAlerts) HasRecent(ctx context.Context, rule, key string, since time.Time) (bool, error) {
	if m.lookupErr != nil {
		return false, m.lookupErr
	}
	for _, a := range m.alerts {
		if a.Rule == rule && a.Key == key && !a.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memAlerts) Insert(ctx context.Context, a *model.Alert) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.alerts = append(m.alerts, *a)
	return nil
}
