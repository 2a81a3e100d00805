package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sentinelops/logsentry/internal/model"
)

// AlertStore persists emitted alerts and serves the recency queries the
// dedup gate and the dashboard depend on.
type AlertStore struct {
	DB *Database
}

func NewAlertStore(db *Database) *AlertStore { return &AlertStore{DB: db} }

const createAlertsSchema = `
CREATE TABLE IF NOT EXISTS alerts (
	id          UUID PRIMARY KEY,
	rule        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	group_key   TEXT NOT NULL,
	description TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_rule_key_created ON alerts (rule, group_key, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts (created_at DESC);
`

// EnsureSchema creates the alerts table and indexes if missing.
func (s *AlertStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, createAlertsSchema); err != nil {
		return fmt.Errorf("ensure alerts schema: %w", err)
	}
	return nil
}

// Insert persists a new alert. A missing ID is assigned here.
func (s *AlertStore) Insert(ctx context.Context, a *model.Alert) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	const q = `
	INSERT INTO alerts(id, rule, severity, group_key, description, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := s.DB.ExecContext(ctx, q, a.ID, a.Rule, string(a.Severity), a.Key, a.Description, a.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// HasRecent reports whether an alert for the same rule and group key was
// created at or after since.
func (s *AlertStore) HasRecent(ctx context.Context, rule, key string, since time.Time) (bool, error) {
	const q = `SELECT 1 FROM alerts WHERE rule=$1 AND group_key=$2 AND created_at >= $3 LIMIT 1`
	rows, err := s.DB.QueryContext(ctx, q, rule, key, since.UTC())
	if err != nil {
		return false, fmt.Errorf("recent alert lookup: %w", err)
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

// ListRecent returns the most recent alerts ordered by created_at descending.
func (s *AlertStore) ListRecent(ctx context.Context, limit int) ([]model.Alert, error) {
	const q = `
	SELECT id, rule, severity, group_key, description, created_at
	FROM alerts
	ORDER BY created_at DESC
	LIMIT $1
	`
	rows, err := s.DB.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()
	out := make([]model.Alert, 0, limit)
	for rows.Next() {
		var a model.Alert
		if err := rows.Scan(&a.ID, &a.Rule, &a.Severity, &a.Key, &a.Description, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
