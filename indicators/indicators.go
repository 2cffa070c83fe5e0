// Package indicators wraps go-talib for the oscillators and bands the
// strategies need. Every function returns slices aligned with its input; values
// inside an indicator's warm-up window are NaN so callers cannot mistake them
// for real readings.
package indicators

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Bands is a Bollinger band triple aligned with the input closes.
type Bands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Width returns (upper-lower)/middle at i, or NaN when undefined.
func (b Bands) Width(i int) float64 {
	if i < 0 || i >= len(b.Middle) {
		return math.NaN()
	}
	mid := b.Middle[i]
	if math.IsNaN(mid) || mid == 0 {
		return math.NaN()
	}
	return (b.Upper[i] - b.Lower[i]) / mid
}

// Bollinger computes SMA-based bands with dev population standard deviations.
func Bollinger(closes []float64, period int, dev float64) Bands {
	n := len(closes)
	if period <= 1 || n < period {
		return Bands{Upper: nanSlice(n), Middle: nanSlice(n), Lower: nanSlice(n)}
	}
	up, mid, lo := talib.BBands(closes, period, dev, dev, talib.SMA)
	warm := period - 1
	return Bands{
		Upper:  maskWarmup(up, warm),
		Middle: maskWarmup(mid, warm),
		Lower:  maskWarmup(lo, warm),
	}
}

// WilliamsR computes Williams %R in the range [-100, 0].
func WilliamsR(highs, lows, closes []float64, period int) []float64 {
	n := len(closes)
	if period <= 0 || n < period || len(highs) != n || len(lows) != n {
		return nanSlice(n)
	}
	return maskWarmup(talib.WillR(highs, lows, closes, period), period-1)
}

// KDJ computes the K, D and J lines:
//
//	RSV = 100 * (close - lowest(low, period)) / (highest(high, period) - lowest(low, period))
//	K = EMA(RSV, kPeriod), D = EMA(K, dPeriod), J = 3K - 2D
//
// A flat window (highest == lowest) yields RSV 50.
func KDJ(highs, lows, closes []float64, period, kPeriod, dPeriod int) (k, d, j []float64) {
	n := len(closes)
	k, d, j = nanSlice(n), nanSlice(n), nanSlice(n)
	if period <= 0 || kPeriod <= 0 || dPeriod <= 0 || len(highs) != n || len(lows) != n {
		return k, d, j
	}
	warm := period - 1
	if n <= warm+kPeriod-1+dPeriod-1 {
		return k, d, j
	}

	hh := talib.Max(highs, period)
	ll := talib.Min(lows, period)
	rsv := make([]float64, 0, n-warm)
	for i := warm; i < n; i++ {
		rng := hh[i] - ll[i]
		if rng == 0 {
			rsv = append(rsv, 50)
			continue
		}
		rsv = append(rsv, 100*(closes[i]-ll[i])/rng)
	}

	kk := talib.Ema(rsv, kPeriod)
	kk = kk[kPeriod-1:]
	dd := talib.Ema(kk, dPeriod)

	off := warm + kPeriod - 1
	for i := dPeriod - 1; i < len(dd); i++ {
		k[off+i] = kk[i]
		d[off+i] = dd[i]
		j[off+i] = 3*kk[i] - 2*dd[i]
	}
	return k, d, j
}

// At returns xs[i], or NaN when i is out of range.
func At(xs []float64, i int) float64 {
	if i < 0 || i >= len(xs) {
		return math.NaN()
	}
	return xs[i]
}

func maskWarmup(xs []float64, warm int) []float64 {
	out := make([]float64, len(xs))
	copy(out, xs)
	for i := 0; i < warm && i < len(out); i++ {
		out[i] = math.NaN()
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
