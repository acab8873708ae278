package storage_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagewatch/internal/events"
	"pagewatch/internal/storage"
	"pagewatch/internal/testsupport"
)

func newEvent(path string, at time.Time) *events.AnalyticsEvent {
	return &events.AnalyticsEvent{
		ID:        events.NewEventID(at),
		PagePath:  path,
		Timestamp: at,
		Hour:      at.Hour(),
		DayOfWeek: int(at.Weekday()),
		Referrer:  events.DirectReferrer,
		UserID:    "user-1",
	}
}

func TestInsertEventCounters(t *testing.T) {
	store := testsupport.NewLocalStore(t, 1000)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertEvent(ctx, newEvent("/", now)))
	require.NoError(t, store.InsertEvent(ctx, newEvent("/", now.Add(time.Minute))))
	require.NoError(t, store.InsertEvent(ctx, newEvent("/pricing", now.Add(2*time.Minute))))

	total, err := store.CountTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	home, err := store.CountByPage(ctx, "/")
	require.NoError(t, err)
	assert.Equal(t, int64(2), home)

	pricing, err := store.CountByPage(ctx, "/pricing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), pricing)

	missing, err := store.CountByPage(ctx, "/never-seen")
	require.NoError(t, err)
	assert.Equal(t, int64(0), missing)
}

// TestEventCapEviction: the raw event list evicts oldest-first at the cap
// while the counters keep counting past it.
func TestEventCapEviction(t *testing.T) {
	const eventCap = 5
	store := testsupport.NewLocalStore(t, eventCap)
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < eventCap+3; i++ {
		path := fmt.Sprintf("/p%d", i)
		require.NoError(t, store.InsertEvent(ctx, newEvent(path, base.Add(time.Duration(i)*time.Second))))
	}

	log, err := store.QueryEvents(ctx)
	require.NoError(t, err)
	require.Len(t, log, eventCap)
	// Oldest three evicted, order preserved
	assert.Equal(t, "/p3", log[0].PagePath)
	assert.Equal(t, "/p7", log[eventCap-1].PagePath)

	total, err := store.CountTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(eventCap+3), total)

	evicted, err := store.CountByPage(ctx, "/p0")
	require.NoError(t, err)
	assert.Equal(t, int64(1), evicted)
}

func TestInsertConversion(t *testing.T) {
	store := testsupport.NewLocalStore(t, 1000)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	conv := &events.ConversionEvent{
		ID:        events.NewEventID(now),
		PagePath:  "/signup",
		Timestamp: now,
		Referrer:  "instagram",
		UserID:    "user-1",
	}
	require.NoError(t, store.InsertConversion(ctx, conv))

	got, err := store.QueryConversions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "/signup", got[0].PagePath)

	// Conversions do not touch the view counters
	total, err := store.CountTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestCorruptedDataDegradesToEmpty(t *testing.T) {
	store := testsupport.NewLocalStore(t, 1000)
	ctx := context.Background()

	require.NoError(t, store.SetValue(ctx, "pagewatch:events", "{definitely not json"))
	require.NoError(t, store.SetValue(ctx, "pagewatch:views:total", "NaN"))

	log, err := store.QueryEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, log)

	total, err := store.CountTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	// Writes recover from the corrupted state
	require.NoError(t, store.InsertEvent(ctx, newEvent("/", time.Now())))
	log, err = store.QueryEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, log, 1)
}

func TestResetClearsNamespace(t *testing.T) {
	store := testsupport.NewLocalStore(t, 1000)
	ctx := context.Background()

	require.NoError(t, store.InsertEvent(ctx, newEvent("/", time.Now())))
	require.NoError(t, store.SetValue(ctx, storage.KeyIdentity, `{"user_id":"u"}`))

	require.NoError(t, store.Reset(ctx))

	total, err := store.CountTotal(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	log, err := store.QueryEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, log)

	_, ok, err := store.GetValue(ctx, storage.KeyIdentity)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetValueOverwrites(t *testing.T) {
	store := testsupport.NewLocalStore(t, 1000)
	ctx := context.Background()

	require.NoError(t, store.SetValue(ctx, "pagewatch:example", "one"))
	require.NoError(t, store.SetValue(ctx, "pagewatch:example", "two"))

	got, ok, err := store.GetValue(ctx, "pagewatch:example")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "two", got)
}
