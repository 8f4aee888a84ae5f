// Package synthetic implements a generated, no-network source for test
// deployments. Payloads mimic the shape variance of real upstreams so the
// full cleansing path is exercised.
package synthetic

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"marketpulse/internal/application/ports"
	"marketpulse/internal/config"
	"marketpulse/internal/domain/models"
	"marketpulse/internal/transform"
)

const SourceName = "synthetic"

var basePrices = map[string]float64{
	"BTCUSDT":  99000.0,
	"ETHUSDT":  3000.0,
	"SOLUSDT":  200.0,
	"DOGEUSDT": 0.30,
	"TONUSDT":  3.90,
}

// Adapter implements ports.SourcePort with generated data.
type Adapter struct {
	cfg config.SyntheticConfig

	mu   sync.Mutex
	rng  *rand.Rand
	last map[string]float64
}

// New creates the synthetic source adapter.
func New(cfg config.SyntheticConfig) ports.SourcePort {
	return &Adapter{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
		last: make(map[string]float64),
	}
}

func (a *Adapter) Name() string            { return SourceName }
func (a *Adapter) Interval() time.Duration { return a.cfg.Interval }

type record struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Prev   float64 `json:"prev"`
	Volume float64 `json:"volume"`
}

// Fetch generates a random-walk price per configured symbol.
func (a *Adapter) Fetch(ctx context.Context) (models.RawPayload, *models.ExtractError) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewExtractError(models.ExtractTimeout, "%v", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	records := make([]record, 0, len(a.cfg.Symbols))
	for _, symbol := range a.cfg.Symbols {
		symbol = transform.NormalizeSymbol(symbol)
		prev, ok := a.last[symbol]
		if !ok {
			prev = basePrices[symbol]
			if prev == 0 {
				prev = 100
			}
		}
		// Bounded ±2% random walk.
		price := prev * (1 + (a.rng.Float64()-0.5)*0.04)
		a.last[symbol] = price

		records = append(records, record{
			Symbol: symbol,
			Price:  price,
			Prev:   prev,
			Volume: a.rng.Float64() * 1e6,
		})
	}

	payload, err := json.Marshal(records)
	if err != nil {
		return nil, models.NewExtractError(models.ExtractDecode, "assemble payload: %v", err)
	}
	return payload, nil
}

// Transform maps generated records to snapshots through the same cleansing
// helpers the real sources use.
func (a *Adapter) Transform(raw models.RawPayload, observedAt time.Time) (models.Batch, int) {
	batch := models.Batch{}
	dropped := 0

	gjson.ParseBytes(raw).ForEach(func(_, rec gjson.Result) bool {
		symbol := transform.NormalizeSymbol(rec.Get("symbol").Str)
		price, ok := transform.Float(rec.Get("price"))
		if symbol == "" || !ok {
			dropped++
			return true
		}
		prev := transform.FloatOrZero(rec.Get("prev"))
		batch = append(batch, models.CanonicalSnapshot{
			EntityKey:  symbol,
			ObservedAt: observedAt,
			Source:     SourceName,
			Measures: map[string]float64{
				"price":      price,
				"change_pct": transform.ChangePct(price, prev),
				"volume":     transform.FloatOrZero(rec.Get("volume")),
			},
		})
		return true
	})

	var dupes int
	batch, dupes = transform.DedupeKeys(batch)
	dropped += dupes

	return batch, dropped
}
