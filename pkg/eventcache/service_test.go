package eventcache

import (
	"context"
	"testing"
	"time"

	"github.com/minical/minical/pkg/event"
	"github.com/minical/minical/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test setup helper
func setupServiceTest(t *testing.T) (*Service, context.Context) {
	repo := setupTestRepository(t)
	service := NewService(repo)
	ctx := user.WithId(context.Background(), 1)
	return service, ctx
}

func TestService_ReconcileRangeRemovesStaleEntries(t *testing.T) {
	service, ctx := setupServiceTest(t)

	// Given: A, B, C all start inside the range
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	a := createTestEvent("a", "A", from.Add(24*time.Hour))
	b := createTestEvent("b", "B", from.Add(48*time.Hour))
	c := createTestEvent("c", "C", from.Add(72*time.Hour))
	require.NoError(t, service.UpsertMany(ctx, []event.Event{a, b, c}))

	// When: the authoritative list no longer contains B
	require.NoError(t, service.ReconcileRange(ctx, []event.Event{a, c}, from, to))

	// Then
	events, err := service.QueryRange(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].ID)
	assert.Equal(t, "c", events[1].ID)
}

func TestService_ReconcileRangeRespectsRangeBounds(t *testing.T) {
	service, ctx := setupServiceTest(t)

	// Given: an event cached outside the reconciled range
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	outside := createTestEvent("d", "Outside", time.Date(2024, 2, 15, 9, 0, 0, 0, time.UTC))
	require.NoError(t, service.UpsertMany(ctx, []event.Event{outside}))

	// When: the range is reconciled against an empty authoritative list
	require.NoError(t, service.ReconcileRange(ctx, []event.Event{}, from, to))

	// Then: the out-of-range event is untouched
	events, err := service.QueryRange(ctx, outside.StartTime, outside.StartTime)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "d", events[0].ID)
}

func TestService_ReconcileRangeOverwritesModifiedEvents(t *testing.T) {
	service, ctx := setupServiceTest(t)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	cached := createTestEvent("a", "Old title", from.Add(24*time.Hour))
	require.NoError(t, service.UpsertMany(ctx, []event.Event{cached}))

	// When: the authoritative copy carries new field values
	fresh := cached
	fresh.Title = "New title"
	fresh.Location = "Room 4"
	require.NoError(t, service.ReconcileRange(ctx, []event.Event{fresh}, from, to))

	// Then: the authoritative read overwrote the cache
	events, err := service.QueryRange(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "New title", events[0].Title)
	assert.Equal(t, "Room 4", events[0].Location)
}

func TestService_ReconcileRangeEndToEnd(t *testing.T) {
	service, ctx := setupServiceTest(t)

	// Given: E1 and E2 seeded in January
	e1 := createTestEvent("e1", "E1", time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC))
	e2 := createTestEvent("e2", "E2", time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, service.UpsertMany(ctx, []event.Event{e1, e2}))

	// When: January is reconciled against [E2, E3]
	e3 := createTestEvent("e3", "E3", time.Date(2024, 1, 12, 8, 0, 0, 0, time.UTC))
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	require.NoError(t, service.ReconcileRange(ctx, []event.Event{e2, e3}, from, to))

	// Then: January holds exactly [E2, E3] in start-time order, E1 is gone
	events, err := service.QueryRange(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "e2", events[0].ID)
	assert.Equal(t, "e3", events[1].ID)
}

func TestService_ReconcileRangeNormalizesMixedOffsets(t *testing.T) {
	service, ctx := setupServiceTest(t)

	// Given: an authoritative event expressed in a non-UTC offset whose
	// instant falls inside the range
	warsaw := time.FixedZone("CET", 3600)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	e := event.Event{
		ID:        "offset",
		Title:     "Morning",
		StartTime: time.Date(2024, 1, 1, 10, 30, 0, 0, warsaw), // 09:30 UTC
		EndTime:   time.Date(2024, 1, 1, 11, 30, 0, 0, warsaw),
	}

	// When
	require.NoError(t, service.ReconcileRange(ctx, []event.Event{e}, from, to))

	// Then: the stored instant is the same absolute time, in UTC
	events, err := service.QueryRange(ctx, from, to)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].StartTime.Equal(e.StartTime))
	assert.Equal(t, time.UTC, events[0].StartTime.Location())
}

func TestService_UpsertManyRejectsMalformedEvents(t *testing.T) {
	service, ctx := setupServiceTest(t)

	start := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)

	noId := event.Event{Title: "No id", StartTime: start}
	assert.ErrorIs(t, service.UpsertMany(ctx, []event.Event{noId}), event.ErrMissingID)

	noStart := event.Event{ID: "x", Title: "No start"}
	assert.ErrorIs(t, service.UpsertMany(ctx, []event.Event{noStart}), event.ErrMissingStart)

	// Nothing was persisted
	events, err := service.QueryRange(ctx, start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestService_PurgeAllExcept(t *testing.T) {
	service, ctx := setupServiceTest(t)

	// Given: A, B, C cached across arbitrary dates
	a := createTestEvent("a", "A", time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC))
	b := createTestEvent("b", "B", time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC))
	c := createTestEvent("c", "C", time.Date(2025, 3, 20, 10, 0, 0, 0, time.UTC))
	require.NoError(t, service.UpsertMany(ctx, []event.Event{a, b, c}))

	// When
	require.NoError(t, service.PurgeAllExcept(ctx, []string{"a", "c"}))

	// Then
	events, err := service.QueryRange(ctx, a.StartTime.Add(-time.Hour), c.StartTime.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].ID)
	assert.Equal(t, "c", events[1].ID)
}

func TestService_ReconcileAllReplacesWholeMirror(t *testing.T) {
	service, ctx := setupServiceTest(t)

	// Given: cached events across distant dates
	old := createTestEvent("old", "Old", time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC))
	kept := createTestEvent("kept", "Kept", time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, service.UpsertMany(ctx, []event.Event{old, kept}))

	// When: the whole mirror is reconciled against [kept, fresh]
	fresh := createTestEvent("fresh", "Fresh", time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, service.ReconcileAll(ctx, []event.Event{kept, fresh}))

	// Then: only the authoritative list remains, regardless of date
	events, err := service.QueryRange(ctx, old.StartTime.Add(-time.Hour), fresh.StartTime.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "kept", events[0].ID)
	assert.Equal(t, "fresh", events[1].ID)
}

func TestService_DeleteThenQuery(t *testing.T) {
	service, ctx := setupServiceTest(t)

	a := createTestEvent("a", "A", time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, service.UpsertMany(ctx, []event.Event{a}))

	require.NoError(t, service.DeleteOne(ctx, "a"))

	events, err := service.QueryRange(ctx, a.StartTime.Add(-time.Hour), a.StartTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, events)

	// Deleting again is still a no-op success
	assert.NoError(t, service.DeleteOne(ctx, "a"))
}

func TestService_Clear(t *testing.T) {
	service, ctx := setupServiceTest(t)

	a := createTestEvent("a", "A", time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC))
	b := createTestEvent("b", "B", time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, service.UpsertMany(ctx, []event.Event{a, b}))

	require.NoError(t, service.Clear(ctx))

	events, err := service.QueryRange(ctx, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestService_RequiresUserInContext(t *testing.T) {
	service, _ := setupServiceTest(t)

	// Context without a user id
	ctx := context.Background()

	_, err := service.QueryRange(ctx, time.Now(), time.Now())
	assert.ErrorIs(t, err, user.ErrNoUser)

	err = service.UpsertMany(ctx, []event.Event{createTestEvent("a", "A", time.Now())})
	assert.ErrorIs(t, err, user.ErrNoUser)
}
