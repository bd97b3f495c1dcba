package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minical/minical/internal/event_bus"
	"github.com/minical/minical/internal/utils"
	"github.com/minical/minical/pkg/event"
	"github.com/minical/minical/pkg/eventcache"
	"github.com/minical/minical/pkg/kvcache"
	"github.com/minical/minical/pkg/remote"
	"github.com/minical/minical/pkg/user"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Source says which data source answered a read.
type Source string

const (
	SourceRemote Source = "remote"
	SourceCache  Source = "cache"
)

const lastSyncKey = "last_sync"

// Result is a range read together with its provenance.
type Result struct {
	Events []event.Event
	Source Source
}

// Service drives the remote-first, cache-fallback flow: authoritative reads
// reconcile the cache, mutations write through it, and when the backend is
// unreachable reads degrade to the local mirror. The service itself never
// retries; retry policy stays with the Mini App.
type Service struct {
	remote remote.Client
	cache  *eventcache.Service
	kv     kvcache.Repository
	bus    *event_bus.EventBus
	clock  utils.Clock
	group  singleflight.Group
}

func NewService(remoteClient remote.Client, cache *eventcache.Service, kv kvcache.Repository, bus *event_bus.EventBus, clock utils.Clock) *Service {
	return &Service{
		remote: remoteClient,
		cache:  cache,
		kv:     kv,
		bus:    bus,
		clock:  clock,
	}
}

// EventsForRange returns the best-known events for [from, to]. The remote
// list is authoritative; when it arrives, the cache is reconciled against it.
// Only when the backend is unreachable does the read fall back to the cache.
// Concurrent fetches for the same user and range are collapsed into one
// remote call.
func (s *Service) EventsForRange(ctx context.Context, from, to time.Time) (Result, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to get current user: %w", err)
	}

	key := fmt.Sprintf("%d|%d|%d", userId, from.UnixMilli(), to.UnixMilli())
	fetched, err, _ := s.group.Do(key, func() (any, error) {
		return s.fetchAndReconcile(ctx, userId, from, to)
	})
	if err == nil {
		return Result{Events: fetched.([]event.Event), Source: SourceRemote}, nil
	}

	if !errors.Is(err, remote.ErrUnavailable) {
		return Result{}, err
	}

	log.Warnf("backend unreachable, serving range from local cache: %v", err)
	cached, cacheErr := s.cache.QueryRange(ctx, from, to)
	if cacheErr != nil {
		return Result{}, fmt.Errorf("fallback read failed: %w", cacheErr)
	}

	s.bus.Publish(event_bus.NewEvent(ctx, event_bus.CacheFallbackServed, event_bus.FallbackPayload{
		UserID: userId,
		From:   from,
		To:     to,
		Served: len(cached),
	}))

	return Result{Events: cached, Source: SourceCache}, nil
}

func (s *Service) fetchAndReconcile(ctx context.Context, userId int64, from, to time.Time) ([]event.Event, error) {
	events, err := s.remote.ListEvents(ctx, from, to)
	if err != nil {
		return nil, err
	}

	if err := s.cache.ReconcileRange(ctx, events, from, to); err != nil {
		return nil, err
	}
	s.stampLastSync(ctx, userId)

	s.bus.Publish(event_bus.NewEvent(ctx, event_bus.EventsReconciled, event_bus.ReconciledPayload{
		UserID:   userId,
		From:     from,
		To:       to,
		Upserted: len(events),
	}))

	return events, nil
}

// CreateEvent stores a new event upstream and mirrors the result locally.
func (s *Service) CreateEvent(ctx context.Context, e event.Event) (*event.Event, error) {
	created, err := s.remote.CreateEvent(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("failed to create event upstream: %w", err)
	}
	if err := s.cache.UpsertMany(ctx, []event.Event{*created}); err != nil {
		return nil, fmt.Errorf("event created upstream but caching it failed: %w", err)
	}
	return created, nil
}

// UpdateEvent modifies an event upstream and mirrors the result locally.
func (s *Service) UpdateEvent(ctx context.Context, e event.Event) (*event.Event, error) {
	updated, err := s.remote.UpdateEvent(ctx, e)
	if err != nil {
		return nil, fmt.Errorf("failed to update event upstream: %w", err)
	}
	if err := s.cache.UpsertMany(ctx, []event.Event{*updated}); err != nil {
		return nil, fmt.Errorf("event updated upstream but caching it failed: %w", err)
	}
	return updated, nil
}

// DeleteEvent removes an event upstream, then locally. An event already gone
// upstream still gets removed from the cache.
func (s *Service) DeleteEvent(ctx context.Context, eventId string) error {
	err := s.remote.DeleteEvent(ctx, eventId)
	if err != nil && !errors.Is(err, remote.ErrNotFound) {
		return fmt.Errorf("failed to delete event upstream: %w", err)
	}
	if err := s.cache.DeleteOne(ctx, eventId); err != nil {
		return fmt.Errorf("event deleted upstream but evicting it failed: %w", err)
	}
	return nil
}

// RefreshWindow performs a wide-window cleanup: it lists [from, to] upstream,
// drops every cached record not in that list regardless of date, and upserts
// the fresh copies.
func (s *Service) RefreshWindow(ctx context.Context, from, to time.Time) ([]event.Event, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	events, err := s.remote.ListEvents(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list events upstream: %w", err)
	}

	if err := s.cache.ReconcileAll(ctx, events); err != nil {
		return nil, err
	}
	s.stampLastSync(ctx, userId)

	s.bus.Publish(event_bus.NewEvent(ctx, event_bus.EventsReconciled, event_bus.ReconciledPayload{
		UserID:   userId,
		From:     from,
		To:       to,
		Upserted: len(events),
	}))

	return events, nil
}

// Reset wipes the user's local mirror and auxiliary cache (logout path).
func (s *Service) Reset(ctx context.Context) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	if err := s.cache.Clear(ctx); err != nil {
		return err
	}
	if err := s.kv.Clear(ctx, userId); err != nil {
		return err
	}

	s.bus.Publish(event_bus.NewEvent(ctx, event_bus.CacheCleared, event_bus.ClearedPayload{UserID: userId}))
	return nil
}

// LastSync returns when the user's cache last caught up with the backend.
func (s *Service) LastSync(ctx context.Context) (time.Time, bool, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get current user: %w", err)
	}

	value, found, err := s.kv.Get(ctx, userId, lastSyncKey)
	if err != nil || !found {
		return time.Time{}, false, err
	}

	at, err := event.ParseInstant(value)
	if err != nil {
		log.Warnf("discarding unparseable %s stamp %q: %v", lastSyncKey, value, err)
		return time.Time{}, false, nil
	}
	return at, true, nil
}

func (s *Service) stampLastSync(ctx context.Context, userId int64) {
	stamp := s.clock.Now().UTC().Format(time.RFC3339)
	if err := s.kv.Put(ctx, userId, lastSyncKey, stamp); err != nil {
		// Sync metadata is advisory; the reconciliation itself succeeded.
		log.Warnf("failed to stamp %s: %v", lastSyncKey, err)
	}
}
