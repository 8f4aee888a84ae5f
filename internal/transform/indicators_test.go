package transform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSMA(t *testing.T) {
	v, ok := SMA([]float64{1, 2, 3, 4, 5}, 3)
	assert.True(t, ok)
	assert.InDelta(t, 4.0, v, 1e-9)

	_, ok = SMA([]float64{1, 2}, 3)
	assert.False(t, ok)

	_, ok = SMA([]float64{1, 2, 3}, 0)
	assert.False(t, ok)
}

func TestEMAConstantSeries(t *testing.T) {
	series := make([]float64, 30)
	for i := range series {
		series[i] = 50
	}
	v, ok := EMA(series, 12)
	assert.True(t, ok)
	assert.InDelta(t, 50.0, v, 1e-9)
}

func TestEMATracksTrend(t *testing.T) {
	var rising []float64
	for i := 0; i < 30; i++ {
		rising = append(rising, float64(100+i))
	}
	ema, ok := EMA(rising, 12)
	assert.True(t, ok)
	sma, _ := SMA(rising, 12)
	// EMA weights recent values harder, so it sits above the SMA in an uptrend.
	assert.Greater(t, ema, sma)
}

func TestRSI(t *testing.T) {
	var rising []float64
	for i := 0; i < 20; i++ {
		rising = append(rising, float64(i))
	}
	v, ok := RSI(rising, 14)
	assert.True(t, ok)
	assert.Equal(t, 100.0, v)

	var falling []float64
	for i := 20; i > 0; i-- {
		falling = append(falling, float64(i))
	}
	v, ok = RSI(falling, 14)
	assert.True(t, ok)
	assert.InDelta(t, 0.0, v, 1e-9)

	_, ok = RSI([]float64{1, 2, 3}, 14)
	assert.False(t, ok)
}

func TestMACD(t *testing.T) {
	var series []float64
	for i := 0; i < 60; i++ {
		series = append(series, 100+float64(i)*0.5)
	}
	macd, signal, ok := MACD(series, 12, 26, 9)
	assert.True(t, ok)
	// A steady uptrend keeps the fast EMA above the slow one.
	assert.Greater(t, macd, 0.0)
	assert.Greater(t, signal, 0.0)

	_, _, ok = MACD(series[:20], 12, 26, 9)
	assert.False(t, ok)
}

func TestLogReturns(t *testing.T) {
	returns := LogReturns([]float64{100, 110, 99})
	assert.Len(t, returns, 2)
	assert.InDelta(t, math.Log(1.1), returns[0], 1e-9)

	// Non-positive values are skipped, not propagated as NaN.
	returns = LogReturns([]float64{100, 0, 110})
	assert.Empty(t, returns)
}

func TestAnnualizedVolatility(t *testing.T) {
	_, ok := AnnualizedVolatility(nil, 1440)
	assert.False(t, ok)

	v, ok := AnnualizedVolatility([]float64{0.01, 0.01, 0.01}, 1440)
	assert.True(t, ok)
	assert.Equal(t, 0.0, v)

	v, ok = AnnualizedVolatility([]float64{0.01, -0.01, 0.01, -0.01}, 1440)
	assert.True(t, ok)
	assert.Greater(t, v, 0.0)
	assert.False(t, math.IsNaN(v))
}
