// Package events carries the platform event stream. Domain packages emit
// typed events; the bus fans them out to subscribers matched by glob pattern.
package events

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Event is the generic wire representation every typed event lowers to.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Emitter is implemented by every typed event in this package.
type Emitter interface {
	EventType() string
	Event() *Event
}

func newEvent(eventType string, attrs map[string]string) *Event {
	return &Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       eventType,
		Attributes: attrs,
		Timestamp:  time.Now().UTC(),
	}
}

func intToString(v int64) string { return strconv.FormatInt(v, 10) }

func floatToString(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
