package prices_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nft-checkout/internal/catalog"
	"github.com/noah-isme/nft-checkout/internal/money"
	"github.com/noah-isme/nft-checkout/internal/prices"
)

func TestRedisStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := prices.NewRedisStore(client, time.Hour)
	ctx := context.Background()

	_, ok, err := store.Load(ctx, prices.ProviderOpenSea)
	require.NoError(t, err)
	require.False(t, ok)

	fetched := time.Date(2024, 5, 1, 12, 0, 0, 123_000_000, time.UTC)
	snap := prices.Snapshot{
		Prices: map[catalog.ProductCode]money.Money{
			catalog.APE:   money.MustParse("12.000000000000000001"),
			catalog.AZUKI: money.MustParse("5"),
		},
		FetchedAt: fetched,
	}
	require.NoError(t, store.Save(ctx, prices.ProviderOpenSea, snap))
	require.True(t, mr.Exists("nftcheckout:prices:opensea"))
	require.Equal(t, time.Hour, mr.TTL("nftcheckout:prices:opensea"))

	got, ok, err := store.Load(ctx, prices.ProviderOpenSea)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.FetchedAt.Equal(fetched))
	require.Len(t, got.Prices, 2)
	require.Equal(t, "12000000000000000001", got.Prices[catalog.APE].MinorString())
}

func TestRedisStoreRejectsCorruptEntries(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := prices.NewRedisStore(client, 0)

	require.NoError(t, mr.Set("nftcheckout:prices:mock", "{"))
	_, _, err = store.Load(context.Background(), prices.ProviderMock)
	require.Error(t, err)

	require.NoError(t, mr.Set("nftcheckout:prices:mock", `{"fetchedAt":"2024-05-01T00:00:00Z","prices":{"APE":"1.5"}}`))
	_, _, err = store.Load(context.Background(), prices.ProviderMock)
	require.Error(t, err)
}

func TestNilStoreIsNoop(t *testing.T) {
	var store *prices.RedisStore
	require.NoError(t, store.Save(context.Background(), "mock", prices.Snapshot{}))
	_, ok, err := store.Load(context.Background(), "mock")
	require.NoError(t, err)
	require.False(t, ok)
}
