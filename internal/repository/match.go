package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/gomoku-lan/internal/entity"
)

var ErrMatchNotFound = errors.New("match not found")

const matchKeyPrefix = "match:"

type MatchRepository interface {
	CreateOrUpdate(ctx context.Context, snapshot *entity.MatchSnapshot) error
	GetByID(ctx context.Context, id string) (*entity.MatchSnapshot, error)
	DeleteByID(ctx context.Context, id string) error
}

type dbMatch struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMatchRepository stores live snapshots. A ttl of zero keeps them until deleted.
func NewMatchRepository(client *redis.Client, ttl time.Duration) MatchRepository {
	return &dbMatch{
		client: client,
		ttl:    ttl,
	}
}

func (that *dbMatch) CreateOrUpdate(ctx context.Context, snapshot *entity.MatchSnapshot) error {
	matchJSON, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("could not marshal match: %w", err)
	}

	err = that.client.Set(ctx, matchKeyPrefix+snapshot.ID, matchJSON, that.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set match: %w", err)
	}

	return nil
}

func (that *dbMatch) GetByID(ctx context.Context, id string) (*entity.MatchSnapshot, error) {
	response, err := that.client.Get(ctx, matchKeyPrefix+id).Result()

	if errors.Is(err, redis.Nil) {
		return &entity.MatchSnapshot{}, ErrMatchNotFound
	}

	if err != nil {
		return &entity.MatchSnapshot{}, fmt.Errorf("failed to get match by id: %w", err)
	}

	var snapshot entity.MatchSnapshot
	if err = json.Unmarshal([]byte(response), &snapshot); err != nil {
		return &entity.MatchSnapshot{}, fmt.Errorf("failed to unmarshal match: %w", err)
	}

	return &snapshot, nil
}

func (that *dbMatch) DeleteByID(ctx context.Context, id string) error {
	err := that.client.Del(ctx, matchKeyPrefix+id).Err()
	if err != nil {
		return fmt.Errorf("failed to delete match by id: %w", err)
	}

	return nil
}
