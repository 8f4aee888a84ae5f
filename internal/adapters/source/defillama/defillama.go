// Package defillama implements the three DefiLlama-backed sources: protocol
// TVL, per-chain TVL, and stablecoin circulation. The upstream reports
// inconsistent shapes (numbers as strings, list-or-map documents, scalar TVL
// fields that occasionally arrive as series); every known variant is mapped
// explicitly and anything unrecognized drops the record.
package defillama

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"marketpulse/internal/adapters/source/httpfetch"
	"marketpulse/internal/config"
	"marketpulse/internal/domain/models"
	"marketpulse/internal/transform"
)

const (
	SourceProtocols   = "defillama-protocols"
	SourceChains      = "defillama-chains"
	SourceStablecoins = "defillama-stables"
)

type adapter struct {
	name   string
	path   string
	cfg    config.DefiLlamaConfig
	client *http.Client
}

func (a *adapter) Name() string            { return a.name }
func (a *adapter) Interval() time.Duration { return a.cfg.Interval }

func (a *adapter) Fetch(ctx context.Context) (models.RawPayload, *models.ExtractError) {
	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + a.path
	body, xerr := httpfetch.Get(ctx, a.client, endpoint)
	if xerr != nil {
		return nil, xerr
	}
	return body, nil
}

// Protocols is the protocol-TVL source.
type Protocols struct{ adapter }

// NewProtocols creates the protocol-TVL source adapter.
func NewProtocols(cfg config.DefiLlamaConfig) *Protocols {
	return &Protocols{adapter{
		name:   SourceProtocols,
		path:   "/protocols",
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}}
}

// Transform keeps the top-N protocols by TVL, computes change percentages
// against the reported prior TVLs, and assigns market share across the
// surviving batch. A protocol whose tvl field is not a scalar number (the
// upstream occasionally returns a series) is dropped, by decoding rule.
func (p *Protocols) Transform(raw models.RawPayload, observedAt time.Time) (models.Batch, int) {
	batch := models.Batch{}
	dropped := 0

	gjson.ParseBytes(raw).ForEach(func(_, rec gjson.Result) bool {
		slug := rec.Get("slug").Str
		if slug == "" {
			slug = rec.Get("name").Str
		}
		tvl, ok := transform.Float(rec.Get("tvl"))
		if slug == "" || !ok {
			dropped++
			return true
		}

		measures := map[string]float64{
			"tvl":       tvl,
			"change_1d": transform.ChangePct(tvl, transform.FloatOrZero(rec.Get("tvlPrevDay"))),
			"change_7d": transform.ChangePct(tvl, transform.FloatOrZero(rec.Get("tvlPrevWeek"))),
			"change_1m": transform.ChangePct(tvl, transform.FloatOrZero(rec.Get("tvlPrevMonth"))),
		}
		batch = append(batch, models.CanonicalSnapshot{
			EntityKey:  transform.NormalizeSlug(slug),
			ObservedAt: observedAt,
			Source:     SourceProtocols,
			Measures:   measures,
		})
		return true
	})

	var dupes int
	batch, dupes = transform.DedupeKeys(batch)
	dropped += dupes

	// Top-N selection is part of this source's semantics; the stable sort
	// keeps output deterministic for identical inputs.
	sort.SliceStable(batch, func(i, j int) bool {
		return batch[i].Measures["tvl"] > batch[j].Measures["tvl"]
	})
	if p.cfg.TopN > 0 && len(batch) > p.cfg.TopN {
		batch = batch[:p.cfg.TopN]
	}
	transform.ApplyMarketShare(batch, "tvl", "market_share")

	return batch, dropped
}

// Chains is the per-chain TVL source.
type Chains struct{ adapter }

// NewChains creates the chain-TVL source adapter.
func NewChains(cfg config.DefiLlamaConfig) *Chains {
	return &Chains{adapter{
		name:   SourceChains,
		path:   "/v2/chains",
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}}
}

// Transform accepts both documented payload shapes: an array of chain objects
// or a chain-name → object map. Anything else drops per record.
func (c *Chains) Transform(raw models.RawPayload, observedAt time.Time) (models.Batch, int) {
	batch := models.Batch{}
	dropped := 0

	appendChain := func(name string, rec gjson.Result) {
		tvl, ok := transform.Float(rec.Get("tvl"))
		if name == "" || !ok {
			dropped++
			return
		}
		batch = append(batch, models.CanonicalSnapshot{
			EntityKey:  transform.NormalizeSlug(name),
			ObservedAt: observedAt,
			Source:     SourceChains,
			Measures: map[string]float64{
				"tvl":       tvl,
				"change_1d": transform.ChangePct(tvl, transform.FloatOrZero(rec.Get("tvlPrevDay"))),
				"change_7d": transform.ChangePct(tvl, transform.FloatOrZero(rec.Get("tvlPrevWeek"))),
			},
		})
	}

	doc := gjson.ParseBytes(raw)
	switch {
	case doc.IsArray():
		doc.ForEach(func(_, rec gjson.Result) bool {
			appendChain(rec.Get("name").Str, rec)
			return true
		})
	case doc.IsObject():
		doc.ForEach(func(key, rec gjson.Result) bool {
			if !rec.IsObject() {
				dropped++
				return true
			}
			appendChain(key.Str, rec)
			return true
		})
	}

	var dupes int
	batch, dupes = transform.DedupeKeys(batch)
	dropped += dupes

	transform.ApplyMarketShare(batch, "tvl", "market_share")
	return batch, dropped
}

// Stablecoins is the stablecoin-circulation source.
type Stablecoins struct{ adapter }

// NewStablecoins creates the stablecoin source adapter.
func NewStablecoins(cfg config.DefiLlamaConfig) *Stablecoins {
	return &Stablecoins{adapter{
		name:   SourceStablecoins,
		path:   "/stablecoins?includePrices=true",
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}}
}

// Transform reads the peggedAssets list; symbol and circulating USD amount
// are required, price coalesces to 0 when the upstream omits it.
func (s *Stablecoins) Transform(raw models.RawPayload, observedAt time.Time) (models.Batch, int) {
	batch := models.Batch{}
	dropped := 0

	gjson.GetBytes(raw, "peggedAssets").ForEach(func(_, rec gjson.Result) bool {
		symbol := rec.Get("symbol").Str
		circulating, ok := transform.Float(rec.Get("circulating.peggedUSD"))
		if symbol == "" || !ok {
			dropped++
			return true
		}
		batch = append(batch, models.CanonicalSnapshot{
			EntityKey:  transform.NormalizeSymbol(symbol),
			ObservedAt: observedAt,
			Source:     SourceStablecoins,
			Measures: map[string]float64{
				"circulating": circulating,
				"price":       transform.FloatOrZero(rec.Get("price")),
			},
		})
		return true
	})

	var dupes int
	batch, dupes = transform.DedupeKeys(batch)
	dropped += dupes

	return batch, dropped
}
