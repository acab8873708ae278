package identity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagewatch/internal/identity"
	"pagewatch/internal/storage"
	"pagewatch/internal/testsupport"
)

func TestGetOrCreateFirstVisit(t *testing.T) {
	local := testsupport.NewLocalStore(t, 1000)
	store := identity.NewStore(local, testsupport.Logger())

	ident, err := store.GetOrCreate(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, ident.UserID)
	assert.Equal(t, 1, ident.VisitCount)
	assert.False(t, ident.FirstVisit.IsZero())
}

// TestVisitCountPerProcessLifetime: after k process lifetimes the counter
// is k, the user ID never changes and first_visit stays identical.
func TestVisitCountPerProcessLifetime(t *testing.T) {
	local := testsupport.NewLocalStore(t, 1000)
	ctx := context.Background()

	first, err := identity.NewStore(local, testsupport.Logger()).GetOrCreate(ctx)
	require.NoError(t, err)

	last := first
	for k := 2; k <= 5; k++ {
		// A fresh Store is a new process lifetime over the same device
		ident, err := identity.NewStore(local, testsupport.Logger()).GetOrCreate(ctx)
		require.NoError(t, err)

		assert.Equal(t, first.UserID, ident.UserID)
		assert.Equal(t, k, ident.VisitCount)
		assert.True(t, first.FirstVisit.Equal(ident.FirstVisit))
		last = ident
	}
	assert.Equal(t, 5, last.VisitCount)
}

// TestGetOrCreateIsIdempotentWithinProcess: repeated calls in one process
// lifetime do not bump the counter again.
func TestGetOrCreateIsIdempotentWithinProcess(t *testing.T) {
	local := testsupport.NewLocalStore(t, 1000)
	store := identity.NewStore(local, testsupport.Logger())
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		ident, err := store.GetOrCreate(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, ident)
	}
}

func TestCorruptedRecordIsFirstVisit(t *testing.T) {
	local := testsupport.NewLocalStore(t, 1000)
	ctx := context.Background()

	require.NoError(t, local.SetValue(ctx, storage.KeyIdentity, "{not json"))

	ident, err := identity.NewStore(local, testsupport.Logger()).GetOrCreate(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, ident.UserID)
	assert.Equal(t, 1, ident.VisitCount)
}

func TestForgetStartsNewLifetime(t *testing.T) {
	local := testsupport.NewLocalStore(t, 1000)
	store := identity.NewStore(local, testsupport.Logger())
	ctx := context.Background()

	first, err := store.GetOrCreate(ctx)
	require.NoError(t, err)

	store.Forget()

	second, err := store.GetOrCreate(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, 2, second.VisitCount)
}

func TestClockControlsFirstVisit(t *testing.T) {
	local := testsupport.NewLocalStore(t, 1000)
	fixed := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	store := identity.NewStore(local, testsupport.Logger()).
		WithClock(func() time.Time { return fixed })

	ident, err := store.GetOrCreate(context.Background())
	require.NoError(t, err)
	assert.True(t, fixed.Equal(ident.FirstVisit))
}
