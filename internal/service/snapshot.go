package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/gomoku-lan/internal/entity"
)

const cleanupTimeout = 2 * time.Second

type matchRepo interface {
	CreateOrUpdate(ctx context.Context, snapshot *entity.MatchSnapshot) error
	DeleteByID(ctx context.Context, id string) error
}

// SnapshotPublisher saves match snapshots off the game's hot path. Only the latest
// snapshot is kept, older ones that were not written yet are skipped.
type SnapshotPublisher struct {
	logger    *slog.Logger
	matchRepo matchRepo

	mu      sync.Mutex
	pending *entity.MatchSnapshot
	lastID  string

	notify chan struct{}
}

func NewSnapshotPublisher(logger *slog.Logger, matchRepo matchRepo) *SnapshotPublisher {
	return &SnapshotPublisher{
		logger:    logger.With("component", "snapshot_publisher"),
		matchRepo: matchRepo,
		notify:    make(chan struct{}, 1),
	}
}

// Publish never blocks.
func (that *SnapshotPublisher) Publish(snapshot entity.MatchSnapshot) {
	that.mu.Lock()
	that.pending = &snapshot
	that.mu.Unlock()

	select {
	case that.notify <- struct{}{}:
	default:
	}
}

// Run writes snapshots until ctx is cancelled, then removes the stored match.
func (that *SnapshotPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
			defer cancel()

			return that.cleanup(cleanupCtx)
		case <-that.notify:
			if err := that.flush(ctx); err != nil {
				that.logger.Warn("failed to save snapshot", "error", err)
			}
		}
	}
}

func (that *SnapshotPublisher) flush(ctx context.Context) error {
	that.mu.Lock()
	snapshot := that.pending
	that.pending = nil
	that.mu.Unlock()

	if snapshot == nil {
		return nil
	}

	if err := that.matchRepo.CreateOrUpdate(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to store match %s: %w", snapshot.ID, err)
	}

	that.mu.Lock()
	that.lastID = snapshot.ID
	that.mu.Unlock()

	return nil
}

func (that *SnapshotPublisher) cleanup(ctx context.Context) error {
	that.mu.Lock()
	id := that.lastID
	that.mu.Unlock()

	if id == "" {
		return nil
	}

	if err := that.matchRepo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("failed to delete match %s: %w", id, err)
	}

	return nil
}
