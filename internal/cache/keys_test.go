package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/nft-checkout/internal/cache"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "nftcheckout:prices:opensea", cache.KeyPriceSnapshot("OpenSea"))
	assert.Equal(t, "nftcheckout:prices:default", cache.KeyPriceSnapshot(" "))
	assert.Equal(t, "nftcheckout:prices:mock:refresh", cache.KeyPriceRefreshLock("mock"))
	assert.Equal(t, "nftcheckout:ratelimit:", cache.KeyRateLimit())
}
