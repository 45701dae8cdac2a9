package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/gomoku-lan/testing/suite"
)

func TestNewRedisStorage(t *testing.T) {
	t.Run("Connects to a live server", func(t *testing.T) {
		ctx, st := suite.New(t)

		// When: the storage is opened against the container
		redisStorage, err := NewRedisStorage(ctx, st.Addr, 0)

		// Then: it is usable and closes cleanly
		require.NoError(t, err)
		assert.NoError(t, redisStorage.Connection.Set(ctx, "k", "v", 0).Err())
		assert.NoError(t, redisStorage.Close())
	})

	t.Run("Fails fast when nothing listens", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		redisStorage, err := NewRedisStorage(ctx, "127.0.0.1:1", 0)

		require.Error(t, err)
		assert.Nil(t, redisStorage)
	})
}
