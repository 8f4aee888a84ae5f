// Package binance implements the market-tick source: per-symbol 24h ticker,
// order book, and 1m klines, cleansed into one snapshot per symbol.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"marketpulse/internal/adapters/source/httpfetch"
	"marketpulse/internal/application/ports"
	"marketpulse/internal/config"
	"marketpulse/internal/domain/models"
	"marketpulse/internal/transform"
)

const SourceName = "binance"

// Adapter implements ports.SourcePort for Binance REST.
type Adapter struct {
	cfg    config.BinanceConfig
	client *http.Client
}

// New creates the Binance source adapter.
func New(cfg config.BinanceConfig) ports.SourcePort {
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (a *Adapter) Name() string            { return SourceName }
func (a *Adapter) Interval() time.Duration { return a.cfg.Interval }

// symbolDocument is the assembled raw payload element for one symbol.
type symbolDocument struct {
	Symbol    string          `json:"symbol"`
	Ticker    json.RawMessage `json:"ticker"`
	Orderbook json.RawMessage `json:"orderbook"`
	Klines    json.RawMessage `json:"klines"`
}

// Fetch pulls ticker, order book, and klines for every configured symbol and
// assembles them into a single document. Any endpoint failure fails the whole
// fetch: the payload is complete or absent, never truncated.
func (a *Adapter) Fetch(ctx context.Context) (models.RawPayload, *models.ExtractError) {
	docs := make([]symbolDocument, 0, len(a.cfg.Symbols))
	for _, symbol := range a.cfg.Symbols {
		symbol = transform.NormalizeSymbol(symbol)

		ticker, xerr := a.get(ctx, "/api/v3/ticker/24hr", url.Values{"symbol": {symbol}})
		if xerr != nil {
			return nil, xerr
		}
		orderbook, xerr := a.get(ctx, "/api/v3/depth", url.Values{
			"symbol": {symbol},
			"limit":  {fmt.Sprint(a.cfg.OrderbookDepth)},
		})
		if xerr != nil {
			return nil, xerr
		}
		klines, xerr := a.get(ctx, "/api/v3/klines", url.Values{
			"symbol":   {symbol},
			"interval": {"1m"},
			"limit":    {fmt.Sprint(a.cfg.KlineLimit)},
		})
		if xerr != nil {
			return nil, xerr
		}

		docs = append(docs, symbolDocument{
			Symbol:    symbol,
			Ticker:    ticker,
			Orderbook: orderbook,
			Klines:    klines,
		})
	}

	payload, err := json.Marshal(docs)
	if err != nil {
		return nil, models.NewExtractError(models.ExtractDecode, "assemble payload: %v", err)
	}
	return payload, nil
}

func (a *Adapter) get(ctx context.Context, path string, params url.Values) (json.RawMessage, *models.ExtractError) {
	endpoint := strings.TrimRight(a.cfg.BaseURL, "/") + path + "?" + params.Encode()
	body, xerr := httpfetch.Get(ctx, a.client, endpoint)
	if xerr != nil {
		return nil, xerr
	}
	return json.RawMessage(body), nil
}

// Transform cleanses the assembled document into one snapshot per symbol.
// Symbols missing their identifier or kline series are dropped and counted.
func (a *Adapter) Transform(raw models.RawPayload, observedAt time.Time) (models.Batch, int) {
	batch := models.Batch{}
	dropped := 0

	gjson.ParseBytes(raw).ForEach(func(_, doc gjson.Result) bool {
		snap, ok := transformSymbol(doc, observedAt)
		if !ok {
			dropped++
			return true
		}
		batch = append(batch, snap)
		return true
	})

	// Every snapshot in the batch shares observedAt, so the natural key is
	// unique only if the symbols are.
	var dupes int
	batch, dupes = transform.DedupeKeys(batch)
	dropped += dupes

	return batch, dropped
}

func transformSymbol(doc gjson.Result, observedAt time.Time) (models.CanonicalSnapshot, bool) {
	symbol := transform.NormalizeSymbol(doc.Get("symbol").Str)
	klines := doc.Get("klines").Array()
	if symbol == "" || len(klines) == 0 {
		return models.CanonicalSnapshot{}, false
	}

	// Kline layout: [openTime, open, high, low, close, volume, closeTime, ...]
	latest := klines[len(klines)-1]
	closePrice, ok := transform.Float(latest.Get("4"))
	if !ok {
		return models.CanonicalSnapshot{}, false
	}

	closes := make([]float64, 0, len(klines))
	for _, k := range klines {
		if v, ok := transform.Float(k.Get("4")); ok {
			closes = append(closes, v)
		}
	}

	ticker := doc.Get("ticker")
	orderbook := doc.Get("orderbook")

	measures := map[string]float64{
		"close":                closePrice,
		"open":                 transform.FloatOrZero(latest.Get("1")),
		"last_price":           transform.FloatOrZero(ticker.Get("lastPrice")),
		"price_change_pct_24h": transform.FloatOrZero(ticker.Get("priceChangePercent")),
		"volume_24h_quote":     transform.FloatOrZero(ticker.Get("quoteVolume")),
	}

	window := klines
	if len(window) > 60 {
		window = window[len(window)-60:]
	}
	var high, low float64
	for i, k := range window {
		h := transform.FloatOrZero(k.Get("2"))
		l := transform.FloatOrZero(k.Get("3"))
		if i == 0 || h > high {
			high = h
		}
		if i == 0 || l < low {
			low = l
		}
	}
	measures["high"] = high
	measures["low"] = low

	if len(closes) >= 60 {
		measures["price_change_pct_1h"] = transform.ChangePct(closePrice, closes[len(closes)-60])
	} else {
		measures["price_change_pct_1h"] = 0
	}

	high24, okHigh := transform.Float(ticker.Get("highPrice"))
	low24, okLow := transform.Float(ticker.Get("lowPrice"))
	if okHigh && okLow {
		measures["high_low_range_24h"] = high24 - low24
	} else {
		measures["high_low_range_24h"] = 0
	}

	bidPrice, okBid := topOfBook(orderbook.Get("bids"))
	askPrice, okAsk := topOfBook(orderbook.Get("asks"))
	if okBid && okAsk {
		measures["bid_ask_spread"] = askPrice - bidPrice
	} else {
		measures["bid_ask_spread"] = 0
	}
	measures["bid_depth_quote"] = depthQuoteTotal(orderbook.Get("bids"))
	measures["ask_depth_quote"] = depthQuoteTotal(orderbook.Get("asks"))

	addIndicators(measures, closes)

	return models.CanonicalSnapshot{
		EntityKey:  symbol,
		ObservedAt: observedAt,
		Source:     SourceName,
		Measures:   measures,
	}, true
}

func topOfBook(levels gjson.Result) (float64, bool) {
	arr := levels.Array()
	if len(arr) == 0 {
		return 0, false
	}
	return transform.Float(arr[0].Get("0"))
}

func depthQuoteTotal(levels gjson.Result) float64 {
	var total float64
	for _, level := range levels.Array() {
		price := transform.FloatOrZero(level.Get("0"))
		qty := transform.FloatOrZero(level.Get("1"))
		total += price * qty
	}
	return total
}

func addIndicators(measures map[string]float64, closes []float64) {
	coalesce := func(v float64, ok bool) float64 {
		if !ok {
			return 0
		}
		return v
	}
	measures["sma_7"] = coalesce(transform.SMA(closes, 7))
	measures["sma_30"] = coalesce(transform.SMA(closes, 30))
	measures["ema_12"] = coalesce(transform.EMA(closes, 12))
	measures["rsi_14"] = coalesce(transform.RSI(closes, 14))

	macd, signal, ok := transform.MACD(closes, 12, 26, 9)
	if !ok {
		macd, signal = 0, 0
	}
	measures["macd"] = macd
	measures["macd_signal"] = signal

	vol, ok := transform.AnnualizedVolatility(transform.LogReturns(closes), 1440)
	if !ok {
		vol = 0
	}
	measures["volatility_24h"] = vol
}
