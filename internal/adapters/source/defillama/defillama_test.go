package defillama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/config"
	"marketpulse/internal/domain/models"
)

func testCfg(baseURL string, topN int) config.DefiLlamaConfig {
	return config.DefiLlamaConfig{
		BaseURL:  baseURL,
		Interval: time.Hour,
		TopN:     topN,
		Timeout:  5 * time.Second,
	}
}

func TestProtocolsFetchPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	p := NewProtocols(testCfg(srv.URL, 100))
	_, xerr := p.Fetch(context.Background())
	require.Nil(t, xerr)
	assert.Equal(t, "/protocols", gotPath)
}

func TestProtocolsTransform(t *testing.T) {
	raw := models.RawPayload(`[
		{"slug": "aave", "tvl": 600, "tvlPrevDay": 500, "tvlPrevWeek": 400},
		{"slug": "uniswap", "tvl": "300", "tvlPrevDay": null},
		{"name": "Maker", "tvl": 100},
		{"slug": "broken", "tvl": [1, 2, 3]},
		{"tvl": 50}
	]`)

	p := NewProtocols(testCfg("http://unused", 100))
	observedAt := time.Now()
	batch, dropped := p.Transform(raw, observedAt)

	// The series-shaped tvl and the nameless record drop; numeric strings and
	// name-fallback slugs survive.
	require.Len(t, batch, 3)
	assert.Equal(t, 2, dropped)

	assert.Equal(t, "aave", batch[0].EntityKey)
	assert.Equal(t, "uniswap", batch[1].EntityKey)
	assert.Equal(t, "maker", batch[2].EntityKey)

	aave := batch[0].Measures
	assert.InDelta(t, 600.0, aave["tvl"], 1e-9)
	assert.InDelta(t, 20.0, aave["change_1d"], 1e-9)
	assert.InDelta(t, 50.0, aave["change_7d"], 1e-9)
	assert.InDelta(t, 60.0, aave["market_share"], 1e-9)

	// Null prior TVL coalesces to 0, which guards the division.
	assert.Equal(t, 0.0, batch[1].Measures["change_1d"])

	var share float64
	for _, snap := range batch {
		share += snap.Measures["market_share"]
		assert.Equal(t, SourceProtocols, snap.Source)
		assert.Equal(t, observedAt, snap.ObservedAt)
	}
	assert.InDelta(t, 100.0, share, 1e-9)
}

func TestProtocolsTransformTopN(t *testing.T) {
	raw := models.RawPayload(`[
		{"slug": "small", "tvl": 10},
		{"slug": "big", "tvl": 1000},
		{"slug": "mid", "tvl": 100}
	]`)

	p := NewProtocols(testCfg("http://unused", 2))
	batch, dropped := p.Transform(raw, time.Now())

	require.Len(t, batch, 2)
	assert.Zero(t, dropped)
	assert.Equal(t, "big", batch[0].EntityKey)
	assert.Equal(t, "mid", batch[1].EntityKey)

	// Market share is computed over the survivors only.
	share := batch[0].Measures["market_share"] + batch[1].Measures["market_share"]
	assert.InDelta(t, 100.0, share, 1e-9)
}

func TestProtocolsTransformDedupes(t *testing.T) {
	raw := models.RawPayload(`[
		{"slug": "aave", "tvl": 600},
		{"slug": "Aave", "tvl": 500}
	]`)

	p := NewProtocols(testCfg("http://unused", 100))
	batch, dropped := p.Transform(raw, time.Now())

	require.Len(t, batch, 1)
	assert.Equal(t, 1, dropped)
	assert.InDelta(t, 600.0, batch[0].Measures["tvl"], 1e-9)
}

func TestChainsTransformArrayShape(t *testing.T) {
	raw := models.RawPayload(`[
		{"name": "Ethereum", "tvl": 750, "tvlPrevDay": 700},
		{"name": "Solana", "tvl": 250},
		{"name": "", "tvl": 10}
	]`)

	c := NewChains(testCfg("http://unused", 0))
	batch, dropped := c.Transform(raw, time.Now())

	require.Len(t, batch, 2)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, "ethereum", batch[0].EntityKey)
	assert.InDelta(t, 75.0, batch[0].Measures["market_share"], 1e-9)
	assert.InDelta(t, 25.0, batch[1].Measures["market_share"], 1e-9)
}

func TestChainsTransformMapShape(t *testing.T) {
	raw := models.RawPayload(`{
		"Ethereum": {"tvl": 750, "tvlPrevDay": 700},
		"Solana": {"tvl": 250},
		"Weird": 42
	}`)

	c := NewChains(testCfg("http://unused", 0))
	batch, dropped := c.Transform(raw, time.Now())

	require.Len(t, batch, 2)
	assert.Equal(t, 1, dropped)

	keys := map[string]bool{}
	for _, snap := range batch {
		keys[snap.EntityKey] = true
		assert.Equal(t, SourceChains, snap.Source)
	}
	assert.True(t, keys["ethereum"])
	assert.True(t, keys["solana"])
}

func TestStablecoinsTransform(t *testing.T) {
	raw := models.RawPayload(`{"peggedAssets": [
		{"symbol": "USDT", "circulating": {"peggedUSD": 110000000}, "price": 1.0002},
		{"symbol": "USDC", "circulating": {"peggedUSD": "30000000"}},
		{"symbol": "", "circulating": {"peggedUSD": 500}},
		{"symbol": "DAI", "circulating": {}}
	]}`)

	s := NewStablecoins(testCfg("http://unused", 0))
	batch, dropped := s.Transform(raw, time.Now())

	require.Len(t, batch, 2)
	assert.Equal(t, 2, dropped)

	assert.Equal(t, "USDT", batch[0].EntityKey)
	assert.InDelta(t, 1.0002, batch[0].Measures["price"], 1e-9)

	// Numeric-string circulation parses; missing price coalesces to 0.
	assert.Equal(t, "USDC", batch[1].EntityKey)
	assert.InDelta(t, 30000000.0, batch[1].Measures["circulating"], 1e-9)
	assert.Equal(t, 0.0, batch[1].Measures["price"])
}

func TestFetchSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewChains(testCfg(srv.URL, 0))
	_, xerr := c.Fetch(context.Background())
	require.NotNil(t, xerr)
	assert.Equal(t, models.ExtractHTTPStatus, xerr.Kind)
	assert.Equal(t, http.StatusInternalServerError, xerr.Status)
}
