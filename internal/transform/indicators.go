package transform

import "math"

// Technical indicators computed from kline close series. Each returns ok=false
// when the series is too short; callers coalesce that to 0 like any other
// missing measure.

// SMA is the simple moving average over the trailing period.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// EMA is the exponential moving average seeded with the SMA of the first
// period.
func EMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	multiplier := 2 / float64(period+1)
	ema, _ := SMA(values[:period], period)
	for _, v := range values[period:] {
		ema = (v-ema)*multiplier + ema
	}
	return ema, true
}

// RSI is the relative strength index over the trailing period. A window with
// no losses reports 100.
func RSI(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) <= period {
		return 0, false
	}
	var gains, losses float64
	window := values[len(values)-period-1:]
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change >= 0 {
			gains += change
		} else {
			losses -= change
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// MACD returns the MACD line and its signal line for the standard 12/26/9
// parameterization.
func MACD(values []float64, fast, slow, signal int) (macd, signalLine float64, ok bool) {
	if len(values) < slow+signal {
		return 0, 0, false
	}
	multFast := 2 / float64(fast+1)
	multSlow := 2 / float64(slow+1)
	emaFast, _ := SMA(values[:fast], fast)
	emaSlow, _ := SMA(values[:slow], slow)

	for _, v := range values[fast:slow] {
		emaFast = (v-emaFast)*multFast + emaFast
	}

	line := make([]float64, 0, len(values)-slow)
	for _, v := range values[slow:] {
		emaFast = (v-emaFast)*multFast + emaFast
		emaSlow = (v-emaSlow)*multSlow + emaSlow
		line = append(line, emaFast-emaSlow)
	}
	if len(line) < signal {
		return 0, 0, false
	}
	sig, _ := EMA(line, signal)
	return line[len(line)-1], sig, true
}

// LogReturns computes ln(curr/prev) over consecutive positive values.
func LogReturns(values []float64) []float64 {
	var returns []float64
	for i := 1; i < len(values); i++ {
		prev, curr := values[i-1], values[i]
		if prev <= 0 || curr <= 0 {
			continue
		}
		returns = append(returns, math.Log(curr/prev))
	}
	return returns
}

// AnnualizedVolatility scales the standard deviation of per-period log
// returns by the number of periods per day.
func AnnualizedVolatility(logReturns []float64, periodsPerDay int) (float64, bool) {
	if len(logReturns) == 0 {
		return 0, false
	}
	var mean float64
	for _, r := range logReturns {
		mean += r
	}
	mean /= float64(len(logReturns))

	var variance float64
	for _, r := range logReturns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(logReturns))
	return math.Sqrt(variance * float64(periodsPerDay)), true
}
