package eventcache

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/minical/minical/pkg/event"
)

type cacheKey struct {
	userId  int64
	eventId string
}

type RepositoryStub struct {
	mu             sync.RWMutex
	items          map[cacheKey]event.Event
	inTransaction  bool
	transactionErr error
}

func NewRepositoryStub() *RepositoryStub {
	return &RepositoryStub{
		items: make(map[cacheKey]event.Event),
	}
}

func (r *RepositoryStub) WithTransaction(ctx context.Context, fn func(repo Repository) error) error {
	r.mu.Lock()

	// Snapshot the current state for rollback
	original := make(map[cacheKey]event.Event, len(r.items))
	for k, v := range r.items {
		original[k] = v
	}

	r.inTransaction = true
	r.transactionErr = nil
	r.mu.Unlock()

	err := fn(r)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.inTransaction = false

	if err != nil || r.transactionErr != nil {
		r.items = original
		if err != nil {
			return err
		}
		return r.transactionErr
	}

	return nil
}

func (r *RepositoryStub) UpsertEvents(ctx context.Context, userId int64, events []event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range events {
		r.items[cacheKey{userId, e.ID}] = e
	}
	return nil
}

func (r *RepositoryStub) GetEvents(ctx context.Context, userId int64, from, to time.Time) ([]event.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]event.Event, 0)
	for k, e := range r.items {
		if k.userId == userId && !e.StartTime.Before(from) && !e.StartTime.After(to) {
			result = append(result, e)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StartTime.Equal(result[j].StartTime) {
			return result[i].ID < result[j].ID
		}
		return result[i].StartTime.Before(result[j].StartTime)
	})

	return result, nil
}

func (r *RepositoryStub) GetEventIDs(ctx context.Context, userId int64, from, to time.Time) ([]string, error) {
	events, err := r.GetEvents(ctx, userId, from, to)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (r *RepositoryStub) DeleteEvent(ctx context.Context, userId int64, eventId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, cacheKey{userId, eventId})
	return nil
}

func (r *RepositoryStub) DeleteAllExcept(ctx context.Context, userId int64, keepIds []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	keep := make(map[string]struct{}, len(keepIds))
	for _, id := range keepIds {
		keep[id] = struct{}{}
	}

	for k := range r.items {
		if k.userId != userId {
			continue
		}
		if _, ok := keep[k.eventId]; !ok {
			delete(r.items, k)
		}
	}
	return nil
}

func (r *RepositoryStub) Clear(ctx context.Context, userId int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k := range r.items {
		if k.userId == userId {
			delete(r.items, k)
		}
	}
	return nil
}

func (r *RepositoryStub) ClearAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = make(map[cacheKey]event.Event)
	return nil
}

// Helper method to set transaction error (for testing transaction rollback)
func (r *RepositoryStub) SetTransactionError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transactionErr = err
}

// Helper method to get all events of a user (useful for test assertions)
func (r *RepositoryStub) AllEvents(userId int64) []event.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]event.Event, 0, len(r.items))
	for k, e := range r.items {
		if k.userId == userId {
			result = append(result, e)
		}
	}
	return result
}
