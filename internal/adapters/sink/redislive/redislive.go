// Package redislive implements the live store on Redis: one key per
// (source, entity) holding the most recent snapshot, with a TTL so stale
// entities age out.
package redislive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marketpulse/internal/application/ports"
	"marketpulse/internal/config"
	"marketpulse/internal/domain/models"
)

// Adapter implements the LiveStorePort interface for Redis.
type Adapter struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a new Redis adapter and verifies connectivity.
func New(cfg config.CacheConfig) (ports.LiveStorePort, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Adapter{client: client, ttl: cfg.TTL}, nil
}

func key(source, entityKey string) string {
	return fmt.Sprintf("latest:%s:%s", source, entityKey)
}

// UpsertSnapshot overwrites the latest snapshot for the entity. SET on the
// same key is the upsert: re-sending a snapshot can never duplicate.
func (a *Adapter) UpsertSnapshot(ctx context.Context, snap models.CanonicalSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return &models.SinkError{Kind: models.SinkConstraint, Err: err}
	}
	if err := a.client.Set(ctx, key(snap.Source, snap.EntityKey), data, a.ttl).Err(); err != nil {
		return &models.SinkError{Kind: models.SinkConnection, Err: err}
	}
	return nil
}

// GetLatest returns the most recent snapshot for one entity, nil when the
// key is missing or expired.
func (a *Adapter) GetLatest(ctx context.Context, source, entityKey string) (*models.CanonicalSnapshot, error) {
	data, err := a.client.Get(ctx, key(source, entityKey)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, &models.SinkError{Kind: models.SinkConnection, Err: err}
	}

	var snap models.CanonicalSnapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return nil, &models.SinkError{Kind: models.SinkConstraint, Err: err}
	}
	return &snap, nil
}

// GetLatestBySource returns every tracked entity's latest snapshot for a
// source, scanning the key space rather than KEYS to stay cheap on large DBs.
func (a *Adapter) GetLatestBySource(ctx context.Context, source string) ([]models.CanonicalSnapshot, error) {
	pattern := fmt.Sprintf("latest:%s:*", source)

	var keys []string
	iter := a.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, &models.SinkError{Kind: models.SinkConnection, Err: err}
	}
	if len(keys) == 0 {
		return []models.CanonicalSnapshot{}, nil
	}

	values, err := a.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, &models.SinkError{Kind: models.SinkConnection, Err: err}
	}

	snaps := make([]models.CanonicalSnapshot, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}
		var snap models.CanonicalSnapshot
		if err := json.Unmarshal([]byte(raw), &snap); err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// Close closes the connection.
func (a *Adapter) Close() error {
	return a.client.Close()
}
