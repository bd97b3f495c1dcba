package remote

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minical/minical/pkg/event"
)

// ClientStub is an in-memory stand-in for the backend, used by tests.
type ClientStub struct {
	mu     sync.Mutex
	events map[string]event.Event

	// Unavailable makes every call fail with ErrUnavailable, simulating a
	// network outage.
	Unavailable bool

	ListCalls   int
	CreateCalls int
	UpdateCalls int
	DeleteCalls int
}

func NewClientStub() *ClientStub {
	return &ClientStub{events: make(map[string]event.Event)}
}

// Seed inserts events directly, bypassing call counters.
func (c *ClientStub) Seed(events ...event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range events {
		c.events[e.ID] = e
	}
}

// Remove deletes events directly, bypassing call counters.
func (c *ClientStub) Remove(eventIds ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range eventIds {
		delete(c.events, id)
	}
}

func (c *ClientStub) ListEvents(ctx context.Context, from time.Time, to time.Time) ([]event.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ListCalls++

	if c.Unavailable {
		return nil, ErrUnavailable
	}

	result := make([]event.Event, 0, len(c.events))
	for _, e := range c.events {
		if !e.StartTime.Before(from) && !e.StartTime.After(to) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (c *ClientStub) CreateEvent(ctx context.Context, e event.Event) (*event.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CreateCalls++

	if c.Unavailable {
		return nil, ErrUnavailable
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	c.events[e.ID] = e
	return &e, nil
}

func (c *ClientStub) UpdateEvent(ctx context.Context, e event.Event) (*event.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.UpdateCalls++

	if c.Unavailable {
		return nil, ErrUnavailable
	}

	if _, ok := c.events[e.ID]; !ok {
		return nil, ErrNotFound
	}
	c.events[e.ID] = e
	return &e, nil
}

func (c *ClientStub) DeleteEvent(ctx context.Context, eventId string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.DeleteCalls++

	if c.Unavailable {
		return ErrUnavailable
	}

	if _, ok := c.events[eventId]; !ok {
		return ErrNotFound
	}
	delete(c.events, eventId)
	return nil
}
