package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sentinelops/logsentry/internal/model"
)

// EventStore is the append-only persistence for ingested events. Known fields
// live in typed columns; everything else the client sent is kept as a jsonb
// attribute bag so new event shapes need no migration.
type EventStore struct {
	DB *Database
}

func NewEventStore(db *Database) *EventStore { return &EventStore{DB: db} }

const createEventsSchema = `
CREATE TABLE IF NOT EXISTS events (
	id          BIGSERIAL PRIMARY KEY,
	service     TEXT NOT NULL,
	level       TEXT NOT NULL,
	action      TEXT NOT NULL,
	ip          TEXT,
	ts          TIMESTAMPTZ NOT NULL,
	received_at TIMESTAMPTZ NOT NULL,
	attrs       JSONB NOT NULL DEFAULT '{}'::jsonb
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON events (ts);
CREATE INDEX IF NOT EXISTS idx_events_action_ts ON events (action, ts);
`

// EnsureSchema creates the events table and indexes if missing.
func (s *EventStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, createEventsSchema); err != nil {
		return fmt.Errorf("ensure events schema: %w", err)
	}
	return nil
}

// Insert appends one event. Events are immutable once stored.
func (s *EventStore) Insert(ctx context.Context, e *model.Event) error {
	attrs := e.Attrs
	if attrs == nil {
		attrs = map[string]any{}
	}
	attrsJSON, err := json.Marshal(attrs)
	if err != nil {
		return fmt.Errorf("marshal event attrs: %w", err)
	}
	var ip any
	if e.IP != "" {
		ip = e.IP
	}
	const q = `
	INSERT INTO events(service, level, action, ip, ts, received_at, attrs)
	VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb)
	`
	if _, err := s.DB.ExecContext(ctx, q, e.Service, string(e.Level), e.Action, ip, e.Timestamp.UTC(), e.ReceivedAt.UTC(), string(attrsJSON)); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// QueryWindow returns all events with ts in the half-open interval [from, to).
// Out-of-order arrivals are naturally included as long as their timestamp
// still lands inside the range at query time.
func (s *EventStore) QueryWindow(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	const q = `
	SELECT service, level, action, ip, ts, received_at, attrs
	FROM events
	WHERE ts >= $1 AND ts < $2
	`
	rows, err := s.DB.QueryContext(ctx, q, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("query events window: %w", err)
	}
	defer rows.Close()
	out := make([]model.Event, 0, 64)
	for rows.Next() {
		var e model.Event
		var ip sql.NullString
		var attrsRaw []byte
		if err := rows.Scan(&e.Service, &e.Level, &e.Action, &ip, &e.Timestamp, &e.ReceivedAt, &attrsRaw); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if ip.Valid {
			e.IP = ip.String
		}
		if e.Attrs, err = decodeAttrs(attrsRaw); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// decodeAttrs unpacks the jsonb attribute bag. Postgres guarantees valid
// JSON, so a failure here means the row is corrupt and the window read is
// refused rather than returning a truncated event.
func decodeAttrs(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var attrs map[string]any
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, fmt.Errorf("decode event attrs: %w", err)
	}
	return attrs, nil
}
