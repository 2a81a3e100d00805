package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sentinelops/logsentry/internal/model"
)

// EventWriter is the write side of the event store the collector uses.
type EventWriter interface {
	Insert(ctx context.Context, e *model.Event) error
}

// AlertReader serves the dashboard's alert listing.
type AlertReader interface {
	ListRecent(ctx context.Context, limit int) ([]model.Alert, error)
}

const maxAlertQueryLimit = 500

type LogHandler struct {
	events       EventWriter
	alerts       AlertReader
	defaultLimit int
}

func NewLogHandler(events EventWriter, alerts AlertReader, defaultLimit int) *LogHandler {
	if defaultLimit <= 0 {
		defaultLimit = 50
	}
	return &LogHandler{events: events, alerts: alerts, defaultLimit: defaultLimit}
}

// IngestLog accepts one event. The payload is free-form JSON; service, level
// and action are required, receivedAt is always assigned server-side, and
// unknown fields are kept in the event's attribute bag.
func (h *LogHandler) IngestLog(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		log.Debug().Err(err).Msg("IngestLog: invalid JSON body")
		writeError(c, http.StatusBadRequest, "INVALID_PARAMETER", "invalid JSON body")
		return
	}

	ev, err := eventFromBody(body)
	if err != nil {
		log.Debug().Err(err).Msg("IngestLog: event validation failed")
		writeError(c, http.StatusBadRequest, "INVALID_PARAMETER", err.Error())
		return
	}

	ev.ReceivedAt = time.Now().UTC()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = ev.ReceivedAt
	}

	if err := h.events.Insert(c.Request.Context(), ev); err != nil {
		ingestEventsTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Str("service", ev.Service).Str("action", ev.Action).Msg("IngestLog: failed to persist event")
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	ingestEventsTotal.WithLabelValues("accepted").Inc()
	log.Info().Str("service", ev.Service).Str("action", ev.Action).Msg("log received")
	c.JSON(http.StatusCreated, gin.H{"status": "received"})
}

// ListAlerts returns the most recent alerts ordered by createdAt descending.
func (h *LogHandler) ListAlerts(c *gin.Context) {
	limit := h.defaultLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(c, http.StatusBadRequest, "INVALID_PARAMETER", "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > maxAlertQueryLimit {
		limit = maxAlertQueryLimit
	}

	alerts, err := h.alerts.ListRecent(c.Request.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("ListAlerts: failed to query alerts")
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": alerts})
}

func (h *LogHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// eventFromBody lifts the known fields out of the raw payload; everything
// else stays in the attribute bag.
func eventFromBody(body map[string]any) (*model.Event, error) {
	ev := &model.Event{
		Service: stringField(body, "service"),
		Level:   model.Level(strings.ToUpper(stringField(body, "level"))),
		Action:  stringField(body, "action"),
		IP:      stringField(body, "ip"),
	}
	if raw, ok := body["timestamp"]; ok {
		s, ok := raw.(string)
		if !ok {
			return nil, errors.New("timestamp must be an RFC 3339 string")
		}
		if s != "" {
			ts, err := parseTimestamp(s)
			if err != nil {
				return nil, err
			}
			ev.Timestamp = ts
		}
	}
	attrs := make(map[string]any)
	for k, v := range body {
		switch k {
		case "service", "level", "action", "ip", "timestamp", "receivedAt":
			continue
		}
		attrs[k] = v
	}
	if len(attrs) > 0 {
		ev.Attrs = attrs
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}

func stringField(body map[string]any, key string) string {
	s, _ := body[key].(string)
	return s
}

func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
