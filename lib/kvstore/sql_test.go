package kvstore

import (
	"context"
	"path/filepath"
	"testing"

	"simstats-backend/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func TestSQL(t *testing.T) {
	opener, err := NewSQL(SQLConfig{
		File: filepath.Join(t.TempDir(), "simstats.db"),
	}, &telemetry.RecorderAPI{})
	require.NoError(t, err)

	ctx := context.Background()
	store, err := opener.Open(ctx)
	require.NoError(t, err)

	raw, err := store.Get(ctx, "nuro-sim-usage/logs/y2024/m1/d2/day_used")
	require.NoError(t, err)
	require.True(t, IsNull(raw))

	require.NoError(t, store.Put(ctx, "nuro-sim-usage/logs/y2024/m1/d2/day_used", 10))
	require.NoError(t, store.Put(ctx, "/nuro-sim-usage/logs/y2024/m1/d2/day_used/", 25))

	raw, err = store.Get(ctx, "nuro-sim-usage/logs/y2024/m1/d2/day_used")
	require.NoError(t, err)
	require.Equal(t, "25", string(raw))
	require.NoError(t, store.Close())

	// values survive reopening the file
	store, err = opener.Open(ctx)
	require.NoError(t, err)
	defer store.Close()

	raw, err = store.Get(ctx, "nuro-sim-usage/logs/y2024/m1/d2/day_used")
	require.NoError(t, err)
	require.Equal(t, "25", string(raw))
}

func TestNewSQLRequiresTarget(t *testing.T) {
	_, err := NewSQL(SQLConfig{}, &telemetry.RecorderAPI{})
	require.Error(t, err)
}
