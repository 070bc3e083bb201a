package events_test

import (
	"context"
	"testing"

	ctestsupport "github.com/karloscodes/cartridge/testsupport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trafficlens/internal/config"
	"trafficlens/internal/events"
	"trafficlens/internal/testsupport"
)

func TestNewStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		store, err := events.NewStore(ctx, &config.Config{StoreBackend: config.MemoryStore}, nil, ctestsupport.NewTestLogger())
		require.NoError(t, err)
		assert.IsType(t, &events.MemoryStore{}, store)
	})

	t.Run("sqlite", func(t *testing.T) {
		db := testsupport.SetupTestDB(t)
		store, err := events.NewStore(ctx, &config.Config{StoreBackend: config.SQLiteStore}, db, ctestsupport.NewTestLogger())
		require.NoError(t, err)
		assert.IsType(t, &events.GormStore{}, store)
	})

	t.Run("sqlite without connection", func(t *testing.T) {
		_, err := events.NewStore(ctx, &config.Config{StoreBackend: config.SQLiteStore}, nil, ctestsupport.NewTestLogger())
		assert.Error(t, err)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := events.NewStore(ctx, &config.Config{StoreBackend: "cassandra"}, nil, ctestsupport.NewTestLogger())
		assert.Error(t, err)
	})
}
