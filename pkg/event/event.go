package event

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrMissingID    = errors.New("event has no id")
	ErrMissingStart = errors.New("event has no start time")
)

// Event is one calendar entry as the backend returns it. The cache keys it by
// ID, range-indexes it by StartTime, and treats every other field as opaque
// payload to be stored and returned verbatim.
type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	Timezone    string
	StartTime   time.Time
	EndTime     time.Time
	Metadata    map[string]any
	UpdatedAt   time.Time
}

// Validate checks that the event can be keyed and range-indexed. Events
// failing this check must never reach the store.
func (e Event) Validate() error {
	if e.ID == "" {
		return ErrMissingID
	}
	if e.StartTime.IsZero() {
		return ErrMissingStart
	}
	return nil
}

// Normalized returns a copy with both timestamps converted to UTC, so that
// every stored and compared timestamp refers to the same absolute instant
// regardless of the offset representation it arrived with.
func (e Event) Normalized() Event {
	e.StartTime = e.StartTime.UTC()
	if !e.EndTime.IsZero() {
		e.EndTime = e.EndTime.UTC()
	}
	return e
}

// ParseInstant parses an RFC3339 timestamp into an absolute UTC instant.
// The backend occasionally emits timestamps without a zone designator; by
// contract those are UTC, so a missing designator is treated as "Z" here,
// once, instead of ad hoc at every call site.
func ParseInstant(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t.UTC(), nil
	}
	if !hasZoneDesignator(s) {
		if t, retryErr := time.Parse(time.RFC3339, s+"Z"); retryErr == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}

// hasZoneDesignator reports whether the timestamp's time part carries an
// explicit UTC marker or a numeric offset.
func hasZoneDesignator(s string) bool {
	i := strings.IndexByte(s, 'T')
	if i < 0 {
		return false
	}
	timePart := s[i+1:]
	return strings.ContainsAny(timePart, "Zz+-")
}
