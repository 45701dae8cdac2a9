package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/gomoku-lan/internal/entity"
)

type memoryRepo struct {
	mu      sync.Mutex
	stored  map[string]entity.MatchSnapshot
	writes  int
	deleted []string
	failing bool
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{stored: make(map[string]entity.MatchSnapshot)}
}

func (that *memoryRepo) CreateOrUpdate(_ context.Context, snapshot *entity.MatchSnapshot) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.failing {
		return errors.New("redis is down")
	}

	that.writes++
	that.stored[snapshot.ID] = *snapshot

	return nil
}

func (that *memoryRepo) DeleteByID(_ context.Context, id string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.stored, id)
	that.deleted = append(that.deleted, id)

	return nil
}

func (that *memoryRepo) get(id string) (entity.MatchSnapshot, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	snapshot, ok := that.stored[id]

	return snapshot, ok
}

func startPublisher(t *testing.T, repo *memoryRepo) (*SnapshotPublisher, context.CancelFunc, <-chan error) {
	t.Helper()

	publisher := NewSnapshotPublisher(slog.New(slog.NewTextHandler(io.Discard, nil)), repo)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- publisher.Run(ctx)
	}()

	t.Cleanup(cancel)

	return publisher, cancel, done
}

func TestSnapshotPublisher(t *testing.T) {
	t.Run("Latest snapshot is stored", func(t *testing.T) {
		// Given: a running publisher
		repo := newMemoryRepo()
		publisher, _, _ := startPublisher(t, repo)

		// When: several snapshots are published quickly
		for _, phase := range []string{"waiting", "playing", "finished"} {
			publisher.Publish(entity.MatchSnapshot{ID: "m1", Phase: phase})
		}

		// Then: the stored one is eventually the last
		require.Eventually(t, func() bool {
			snapshot, ok := repo.get("m1")
			return ok && snapshot.Phase == "finished"
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("Stored match is removed on shutdown", func(t *testing.T) {
		repo := newMemoryRepo()
		publisher, cancel, done := startPublisher(t, repo)

		publisher.Publish(entity.MatchSnapshot{ID: "m2", Phase: "playing"})
		require.Eventually(t, func() bool {
			_, ok := repo.get("m2")
			return ok
		}, time.Second, 10*time.Millisecond)

		// When: the publisher stops
		cancel()

		// Then: the key is deleted
		require.NoError(t, <-done)
		_, ok := repo.get("m2")
		assert.False(t, ok)
		assert.Equal(t, []string{"m2"}, repo.deleted)
	})

	t.Run("Storage failures do not stop publishing", func(t *testing.T) {
		repo := newMemoryRepo()
		repo.failing = true
		publisher, cancel, done := startPublisher(t, repo)

		publisher.Publish(entity.MatchSnapshot{ID: "m3"})
		time.Sleep(50 * time.Millisecond)

		repo.mu.Lock()
		repo.failing = false
		repo.mu.Unlock()

		publisher.Publish(entity.MatchSnapshot{ID: "m3", Phase: "playing"})
		require.Eventually(t, func() bool {
			_, ok := repo.get("m3")
			return ok
		}, time.Second, 10*time.Millisecond)

		cancel()
		require.NoError(t, <-done)
	})

	t.Run("Nothing to clean when nothing was stored", func(t *testing.T) {
		repo := newMemoryRepo()
		_, cancel, done := startPublisher(t, repo)

		cancel()

		require.NoError(t, <-done)
		assert.Empty(t, repo.deleted)
	})
}
