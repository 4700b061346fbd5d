package prices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/nft-checkout/internal/cache"
	"github.com/noah-isme/nft-checkout/internal/catalog"
	"github.com/noah-isme/nft-checkout/internal/money"
)

// SnapshotStore persists snapshots outside the process so replicas and
// restarts can reuse them.
type SnapshotStore interface {
	// Load returns the most recently saved snapshot for provider. ok is false
	// when nothing is stored.
	Load(ctx context.Context, provider string) (snap Snapshot, ok bool, err error)
	Save(ctx context.Context, provider string, snap Snapshot) error
}

// RedisStore keeps the latest snapshot per provider as JSON in Redis.
type RedisStore struct {
	client    redis.UniversalClient
	retention time.Duration
}

// NewRedisStore builds a store whose entries expire after retention.
func NewRedisStore(client redis.UniversalClient, retention time.Duration) *RedisStore {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &RedisStore{client: client, retention: retention}
}

type storedSnapshot struct {
	FetchedAt time.Time         `json:"fetchedAt"`
	Prices    map[string]string `json:"prices"`
}

// Load implements SnapshotStore.
func (s *RedisStore) Load(ctx context.Context, provider string) (Snapshot, bool, error) {
	if s == nil || s.client == nil {
		return Snapshot{}, false, nil
	}
	data, err := s.client.Get(ctx, cache.KeyPriceSnapshot(provider)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}
	var stored storedSnapshot
	if err := json.Unmarshal(data, &stored); err != nil {
		return Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	snap := Snapshot{
		Prices:    make(map[catalog.ProductCode]money.Money, len(stored.Prices)),
		FetchedAt: stored.FetchedAt,
	}
	for rawCode, rawMinor := range stored.Prices {
		code, err := catalog.Parse(rawCode)
		if err != nil {
			continue
		}
		n, ok := new(big.Int).SetString(rawMinor, 10)
		if !ok {
			return Snapshot{}, false, fmt.Errorf("decode snapshot: bad amount %q for %s", rawMinor, rawCode)
		}
		price, err := money.FromMinor(n)
		if err != nil {
			return Snapshot{}, false, fmt.Errorf("decode snapshot: %w", err)
		}
		snap.Prices[code] = price
	}
	return snap, true, nil
}

// Save implements SnapshotStore.
func (s *RedisStore) Save(ctx context.Context, provider string, snap Snapshot) error {
	if s == nil || s.client == nil {
		return nil
	}
	stored := storedSnapshot{FetchedAt: snap.FetchedAt.UTC(), Prices: make(map[string]string, len(snap.Prices))}
	for code, price := range snap.Prices {
		stored.Prices[string(code)] = price.MinorString()
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, cache.KeyPriceSnapshot(provider), data, s.retention).Err()
}
