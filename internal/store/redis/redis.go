// Package redis snapshots per-asset price series to Redis so indicator
// history survives restarts without waiting for windows to refill.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"pricewatch/internal/model"
)

const (
	seriesKeyPrefix = "series:"

	// seriesTTL bounds how long a stale snapshot is trusted. A series older
	// than this is worthless for indicators anyway.
	seriesTTL = 24 * time.Hour
)

// Config configures the Redis store.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Store reads and writes series snapshots.
type Store struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks and the
// pub/sub notification sink.
func (s *Store) Client() *goredis.Client { return s.client }

// New creates a Store and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Store{client: client}, nil
}

// SaveSeries writes one asset's samples as a JSON snapshot.
func (s *Store) SaveSeries(ctx context.Context, asset string, samples []model.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	data, err := json.Marshal(samples)
	if err != nil {
		return fmt.Errorf("marshal series %s: %w", asset, err)
	}
	return s.client.Set(ctx, seriesKeyPrefix+asset, data, seriesTTL).Err()
}

// SaveAllSeries pipelines snapshots for many assets in one roundtrip.
func (s *Store) SaveAllSeries(ctx context.Context, series map[string][]model.Sample) error {
	pipe := s.client.Pipeline()
	for asset, samples := range series {
		if len(samples) == 0 {
			continue
		}
		data, err := json.Marshal(samples)
		if err != nil {
			return fmt.Errorf("marshal series %s: %w", asset, err)
		}
		pipe.Set(ctx, seriesKeyPrefix+asset, data, seriesTTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// LoadSeries reads one asset's snapshot. Returns (nil, nil) when absent.
func (s *Store) LoadSeries(ctx context.Context, asset string) ([]model.Sample, error) {
	data, err := s.client.Get(ctx, seriesKeyPrefix+asset).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis GET %s%s: %w", seriesKeyPrefix, asset, err)
	}

	var samples []model.Sample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("unmarshal series %s: %w", asset, err)
	}
	return samples, nil
}

// Close releases the client.
func (s *Store) Close() error { return s.client.Close() }
