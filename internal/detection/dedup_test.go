package detection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sentinelops/logsentry/internal/model"
)

func TestGate_SuppressesRecentAlert(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 5 * time.Minute
	alerts := &memAlerts{alerts: []model.Alert{{
		Rule:      "Brute Force Attempt",
		Key:       "10.0.0.5",
		CreatedAt: now.Add(-window / 2),
	}}}

	gate := NewGate(alerts, nil)
	draft := Draft{Rule: "Brute Force Attempt", Key: "10.0.0.5", Severity: model.SeverityHigh}
	ok, err := gate.Admit(context.Background(), draft, window, now)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if ok {
		t.Fatal("draft within the dedup window must be suppressed")
	}
}

func TestGate_AdmitsAfterWindowLapses(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 5 * time.Minute
	alerts := &memAlerts{alerts: []model.Alert{{
		Rule:      "Brute Force Attempt",
		Key:       "10.0.0.5",
		CreatedAt: now.Add(-window - time.Millisecond),
	}}}

	gate := NewGate(alerts, nil)
	draft := Draft{Rule: "Brute Force Attempt", Key: "10.0.0.5", Severity: model.SeverityHigh}
	ok, err := gate.Admit(context.Background(), draft, window, now)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !ok {
		t.Fatal("draft must be admitted once the original alert's dedup window lapsed")
	}
}

func TestGate_DistinctKeyIsIndependent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 5 * time.Minute
	alerts := &memAlerts{alerts: []model.Alert{{
		Rule:      "Brute Force Attempt",
		Key:       "10.0.0.5",
		CreatedAt: now.Add(-time.Minute),
	}}}

	gate := NewGate(alerts, nil)
	ok, err := gate.Admit(context.Background(), Draft{Rule: "Brute Force Attempt", Key: "10.0.0.9"}, window, now)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !ok {
		t.Fatal("an alert for another key must not suppress this draft")
	}
}

func TestGate_ReservationSuppressesSecondAdmit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gate := NewGate(&memAlerts{}, &memReserver{})
	draft := Draft{Rule: "Brute Force Attempt", Key: "10.0.0.5"}

	ok, err := gate.Admit(context.Background(), draft, 5*time.Minute, now)
	if err != nil || !ok {
		t.Fatalf("first admit: ok=%v err=%v", ok, err)
	}
	// No alert row yet, so only the reservation stands between the racers.
	ok, err = gate.Admit(context.Background(), draft, 5*time.Minute, now)
	if err != nil {
		t.Fatalf("second admit: %v", err)
	}
	if ok {
		t.Fatal("held reservation must suppress the second admit")
	}
}

func TestGate_UnreserveAllowsRetry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reserver := &memReserver{}
	gate := NewGate(&memAlerts{}, reserver)
	draft := Draft{Rule: "Brute Force Attempt", Key: "10.0.0.5"}

	if ok, err := gate.Admit(context.Background(), draft, 5*time.Minute, now); err != nil || !ok {
		t.Fatalf("first admit: ok=%v err=%v", ok, err)
	}
	gate.Unreserve(context.Background(), draft)
	if len(reserver.released) != 1 {
		t.Fatalf("expected one release call, got %d", len(reserver.released))
	}
	ok, err := gate.Admit(context.Background(), draft, 5*time.Minute, now)
	if err != nil {
		t.Fatalf("retry admit: %v", err)
	}
	if !ok {
		t.Fatal("draft must be admitted again after the reservation is handed back")
	}
}

func TestGate_ReserverErrorDegradesToAdmit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	gate := NewGate(&memAlerts{}, &memReserver{reserveErr: errors.New("reserver down")})
	ok, err := gate.Admit(context.Background(), Draft{Rule: "r", Key: "k"}, time.Minute, now)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	if !ok {
		t.Fatal("a failing reserver must degrade to the store check, not suppress")
	}
}

func TestGate_LookupErrorPropagates(t *testing.T) {
	alerts := &memAlerts{lookupErr: errors.New("store unavailable")}
	gate := NewGate(alerts, nil)
	_, err := gate.Admit(context.Background(), Draft{Rule: "r", Key: "k"}, time.Minute, time.Now())
	if err == nil {
		t.Fatal("expected lookup error to propagate")
	}
}
