package model

import (
	"errors"
	"fmt"
	"time"
)

// Level represents the severity level of an ingested event.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// IsValid checks if the level is one of the known values.
func (l Level) IsValid() bool {
	switch l {
	case LevelInfo, LevelWarn, LevelError:
		return true
	default:
		return false
	}
}

// Validation errors
var (
	ErrMissingService = errors.New("missing required field: service")
	ErrMissingLevel   = errors.New("missing required field: level")
	ErrMissingAction  = errors.New("missing required field: action")
	ErrInvalidLevel   = errors.New("invalid event level")
)

// Event is one ingested structured record describing an action taken by or
// against a monitored service. Service, Level and Action are required;
// everything else the client sent lands in the Attrs bag, so future event
// shapes need no schema change.
type Event struct {
	Service    string         `json:"service"`
	Level      Level          `json:"level"`
	Action     string         `json:"action"`
	IP         string         `json:"ip,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	ReceivedAt time.Time      `json:"receivedAt"`
	Attrs      map[string]any `json:"attrs,omitempty"`
}

// Validate checks that the event carries all required fields and a known level.
func (e *Event) Validate() error {
	if e.Service == "" {
		return ErrMissingService
	}
	if e.Level == "" {
		return ErrMissingLevel
	}
	if !e.Level.IsValid() {
		return ErrInvalidLevel
	}
	if e.Action == "" {
		return ErrMissingAction
	}
	return nil
}

// Field returns the value of a named event field as a string. Known fields
// resolve to the typed struct members; anything else is looked up in the
// attribute bag. Unknown names yield "" so rules grouping on absent fields
// bucket into the empty group rather than failing.
func (e *Event) Field(name string) string {
	switch name {
	case "service":
		return e.Service
	case "level":
		return string(e.Level)
	case "action":
		return e.Action
	case "ip":
		return e.IP
	}
	if v, ok := e.Attrs[name]; ok {
		return fmt.Sprint(v)
	}
	return ""
}
