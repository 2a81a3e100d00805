package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sentinelops/logsentry/internal/model"
)

type memWriter struct {
	events []model.Event
	err    error
}

func (m *memWriter) Insert(ctx context.Context, e *model.Event) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, *e)
	return nil
}

type memReader struct {
	alerts []model.Alert
	err    error
	limit  int
}

func (m *memReader) ListRecent(ctx context.Context, limit int) ([]model.Alert, error) {
	m.limit = limit
	if m.err != nil {
		return nil, m.err
	}
	if limit > len(m.alerts) {
		limit = len(m.alerts)
	}
	return m.alerts[:limit], nil
}

func newTestRouter(events EventWriter, alerts AlertReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewApi(router, events, alerts, 50)
	return router
}

func postLog(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/logs", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIngestLog_MissingRequiredField(t *testing.T) {
	writer := &memWriter{}
	router := newTestRouter(writer, &memReader{})

	for _, body := range []string{
		`{"level":"WARN","action":"LOGIN_FAILED"}`,
		`{"service":"auth","action":"LOGIN_FAILED"}`,
		`{"service":"auth","level":"WARN"}`,
	} {
		w := postLog(router, body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status = %d, want 400", body, w.Code)
		}
	}
	if len(writer.events) != 0 {
		t.Fatalf("rejected events must not be persisted: %#v", writer.events)
	}
}

func TestIngestLog_InvalidLevel(t *testing.T) {
	router := newTestRouter(&memWriter{}, &memReader{})
	w := postLog(router, `{"service":"auth","level":"FATAL","action":"LOGIN_FAILED"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestIngestLog_Accepted(t *testing.T) {
	writer := &memWriter{}
	router := newTestRouter(writer, &memReader{})

	w := postLog(router, `{"service":"auth","level":"warn","action":"LOGIN_FAILED","ip":"10.0.0.5","timestamp":"2026-03-01T12:00:00Z","username":"bob"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
	}
	if len(writer.events) != 1 {
		t.Fatalf("expected one stored event, got %#v", writer.events)
	}
	e := writer.events[0]
	if e.Service != "auth" || e.Level != model.LevelWarn || e.Action != "LOGIN_FAILED" || e.IP != "10.0.0.5" {
		t.Fatalf("unexpected event: %#v", e)
	}
	if e.ReceivedAt.IsZero() {
		t.Fatal("receivedAt must be assigned server-side")
	}
	if !e.Timestamp.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("timestamp = %v", e.Timestamp)
	}
	if got, ok := e.Attrs["username"]; !ok || got != "bob" {
		t.Fatalf("free-form attribute lost: %#v", e.Attrs)
	}
}

func TestIngestLog_TimestampDefaultsToReceivedAt(t *testing.T) {
	writer := &memWriter{}
	router := newTestRouter(writer, &memReader{})
	w := postLog(router, `{"service":"auth","level":"INFO","action":"LOGIN_SUCCESS"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	e := writer.events[0]
	if !e.Timestamp.Equal(e.ReceivedAt) {
		t.Fatalf("missing timestamp must default to receivedAt: %v vs %v", e.Timestamp, e.ReceivedAt)
	}
}

func TestIngestLog_NonStringTimestampRejected(t *testing.T) {
	writer := &memWriter{}
	router := newTestRouter(writer, &memReader{})
	// an epoch number must not be silently dropped and replaced by receivedAt
	w := postLog(router, `{"service":"auth","level":"WARN","action":"LOGIN_FAILED","timestamp":1740830400}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", w.Code, w.Body.String())
	}
	if len(writer.events) != 0 {
		t.Fatalf("rejected event must not be persisted: %#v", writer.events)
	}
}

func TestIngestLog_StoreFailure(t *testing.T) {
	router := newTestRouter(&memWriter{err: errors.New("connection refused")}, &memReader{})
	w := postLog(router, `{"service":"auth","level":"WARN","action":"LOGIN_FAILED"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	// internal error detail must not leak to the caller
	if strings.Contains(w.Body.String(), "connection refused") {
		t.Fatalf("internal error leaked: %s", w.Body.String())
	}
}

func TestListAlerts(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reader := &memReader{alerts: []model.Alert{
		{ID: "a2", Rule: "Brute Force Attempt", Severity: model.SeverityHigh, Key: "10.0.0.5", CreatedAt: now},
		{ID: "a1", Rule: "Brute Force Attempt", Severity: model.SeverityHigh, Key: "10.0.0.9", CreatedAt: now.Add(-time.Minute)},
	}}
	router := newTestRouter(&memWriter{}, reader)

	req := httptest.NewRequest(http.MethodGet, "/v1/alerts", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if reader.limit != 50 {
		t.Fatalf("default limit = %d, want 50", reader.limit)
	}
	var resp struct {
		Items []model.Alert `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Items) != 2 || resp.Items[0].ID != "a2" {
		t.Fatalf("unexpected items: %#v", resp.Items)
	}
}

func TestListAlerts_LimitHandling(t *testing.T) {
	reader := &memReader{}
	router := newTestRouter(&memWriter{}, reader)

	req := httptest.NewRequest(http.MethodGet, "/v1/alerts?limit=10", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || reader.limit != 10 {
		t.Fatalf("status=%d limit=%d", w.Code, reader.limit)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/alerts?limit=99999", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if reader.limit != maxAlertQueryLimit {
		t.Fatalf("oversized limit not capped: %d", reader.limit)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/alerts?limit=abc", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid limit must 400, got %d", w.Code)
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(&memWriter{}, &memReader{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}
