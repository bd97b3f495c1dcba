package eventcache

import (
	"context"
	"fmt"
	"time"

	"github.com/minical/minical/pkg/event"
	"github.com/minical/minical/pkg/user"
)

// Service is the local mirror of the remote calendar. It is never the source
// of truth: authoritative reads overwrite whatever is cached, and
// reconciliation removes entries the backend no longer returns.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// UpsertMany inserts or overwrites each event by id. Events that cannot be
// keyed or range-indexed are rejected before anything is written.
func (s *Service) UpsertMany(ctx context.Context, events []event.Event) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	normalized, err := normalize(events)
	if err != nil {
		return err
	}

	if err := s.repo.UpsertEvents(ctx, userId, normalized); err != nil {
		return fmt.Errorf("failed to upsert events: %w", err)
	}
	return nil
}

// ReconcileRange makes the cached state for [from, to] exactly match the
// authoritative list: cached events starting inside the range whose id is
// absent from the list are deleted, everything in the list is upserted. The
// scan-then-mutate sequence runs in one transaction, so concurrent readers
// never observe the range mid-reconciliation.
//
// Only the range bound determines deletion eligibility: a cached event
// starting outside [from, to] survives even if the caller passed a list that
// happens to include out-of-range events.
func (s *Service) ReconcileRange(ctx context.Context, authoritative []event.Event, from, to time.Time) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	normalized, err := normalize(authoritative)
	if err != nil {
		return err
	}

	authoritativeIds := make(map[string]struct{}, len(normalized))
	for _, e := range normalized {
		authoritativeIds[e.ID] = struct{}{}
	}

	from, to = from.UTC(), to.UTC()

	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		cachedIds, err := repo.GetEventIDs(ctx, userId, from, to)
		if err != nil {
			return fmt.Errorf("failed to scan cached range: %w", err)
		}
		for _, id := range cachedIds {
			if _, ok := authoritativeIds[id]; ok {
				continue
			}
			if err := repo.DeleteEvent(ctx, userId, id); err != nil {
				return fmt.Errorf("failed to delete stale event %s: %w", id, err)
			}
		}
		if err := repo.UpsertEvents(ctx, userId, normalized); err != nil {
			return fmt.Errorf("failed to upsert authoritative events: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reconcile range: %w", err)
	}

	return nil
}

// DeleteOne removes a single record if present; deleting an absent id is a
// no-op success.
func (s *Service) DeleteOne(ctx context.Context, eventId string) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.DeleteEvent(ctx, userId, eventId)
}

// QueryRange returns all cached events whose start time lies within [from, to]
// (inclusive), ascending by start time. Pure read.
func (s *Service) QueryRange(ctx context.Context, from, to time.Time) ([]event.Event, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return s.repo.GetEvents(ctx, userId, from.UTC(), to.UTC())
}

// PurgeAllExcept deletes every cached record whose id is not in validIds,
// regardless of date range. The single DELETE statement keeps it atomic, and
// last writer wins against concurrent range reconciliations.
func (s *Service) PurgeAllExcept(ctx context.Context, validIds []string) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	if err := s.repo.DeleteAllExcept(ctx, userId, validIds); err != nil {
		return fmt.Errorf("failed to purge cache: %w", err)
	}
	return nil
}

// ReconcileAll is the unbounded-range sibling of ReconcileRange: it makes the
// user's whole mirror exactly match the given list, purging everything else
// regardless of date. Purge and upsert run in one transaction so readers never
// observe the mirror half-replaced.
func (s *Service) ReconcileAll(ctx context.Context, authoritative []event.Event) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	normalized, err := normalize(authoritative)
	if err != nil {
		return err
	}

	validIds := make([]string, 0, len(normalized))
	for _, e := range normalized {
		validIds = append(validIds, e.ID)
	}

	err = s.repo.WithTransaction(ctx, func(repo Repository) error {
		if err := repo.DeleteAllExcept(ctx, userId, validIds); err != nil {
			return fmt.Errorf("failed to purge cache: %w", err)
		}
		if err := repo.UpsertEvents(ctx, userId, normalized); err != nil {
			return fmt.Errorf("failed to upsert authoritative events: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reconcile cache: %w", err)
	}

	return nil
}

// Clear deletes all cached records of the current user (logout/reset path).
func (s *Service) Clear(ctx context.Context) error {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	if err := s.repo.Clear(ctx, userId); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

func normalize(events []event.Event) ([]event.Event, error) {
	normalized := make([]event.Event, 0, len(events))
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("rejecting event %q: %w", e.ID, err)
		}
		normalized = append(normalized, e.Normalized())
	}
	return normalized, nil
}
