package event_bus

import "time"

const (
	// EventsReconciled is published after a cache range was reconciled
	// against an authoritative event list.
	EventsReconciled EventType = "cache.events_reconciled"

	// CacheFallbackServed is published when a read was answered from the
	// local cache because the backend was unreachable.
	CacheFallbackServed EventType = "cache.fallback_served"

	// CacheCleared is published after a full cache reset.
	CacheCleared EventType = "cache.cleared"
)

type ReconciledPayload struct {
	UserID   int64
	From     time.Time
	To       time.Time
	Upserted int
	Deleted  int
}

type FallbackPayload struct {
	UserID int64
	From   time.Time
	To     time.Time
	Served int
}

type ClearedPayload struct {
	UserID int64
}
