package sim

import (
	"math"
	"time"

	"fxlink/internal/domain"
)

// bar is one OHLC candle. Indicator math runs on float64; the decimal
// walk is quantized before it lands here.
type bar struct {
	bucket  int64 // unix seconds of bar open
	open    float64
	high    float64
	low     float64
	closePx float64
}

func (b bar) median() float64 {
	return (b.high + b.low) / 2
}

// barSeries accumulates candles for one symbol and timeframe,
// chronological, last bar forming.
type barSeries struct {
	tf   domain.Timeframe
	bars []bar
}

func newBarSeries(tf domain.Timeframe) *barSeries {
	return &barSeries{tf: tf}
}

func bucketFor(ts time.Time, tf domain.Timeframe) int64 {
	secs := int64(tf.Duration() / time.Second)
	return ts.Unix() - ts.Unix()%secs
}

// update folds one price into the forming bar, opening a new bar when
// the timestamp crosses a bucket boundary.
func (b *barSeries) update(ts time.Time, price float64) {
	bucket := bucketFor(ts, b.tf)
	n := len(b.bars)
	if n > 0 && b.bars[n-1].bucket == bucket {
		cur := &b.bars[n-1]
		if price > cur.high {
			cur.high = price
		}
		if price < cur.low {
			cur.low = price
		}
		cur.closePx = price
		return
	}
	b.bars = append(b.bars, bar{bucket: bucket, open: price, high: price, low: price, closePx: price})
}

func (b *barSeries) append(candle bar) {
	b.bars = append(b.bars, candle)
}

// at returns the bar at the given shift. Shift 0 is the forming bar.
func (b *barSeries) at(shift int) (bar, bool) {
	idx := len(b.bars) - 1 - shift
	if shift < 0 || idx < 0 {
		return bar{}, false
	}
	return b.bars[idx], true
}

func (b *barSeries) size() int {
	return len(b.bars)
}

// ==================================================
// Indicator math
// ==================================================

const (
	awesomeFastPeriod = 5
	awesomeSlowPeriod = 34
)

// awesome computes the Awesome Oscillator at shift: the fast SMA of
// bar medians minus the slow SMA.
func (b *barSeries) awesome(shift int) (float64, bool) {
	if len(b.bars)-shift < awesomeSlowPeriod {
		return 0, false
	}
	fast := b.medianSum(shift, awesomeFastPeriod) / awesomeFastPeriod
	slow := b.medianSum(shift, awesomeSlowPeriod) / awesomeSlowPeriod
	return fast - slow, true
}

func (b *barSeries) medianSum(shift, period int) float64 {
	sum := 0.0
	for i := 0; i < period; i++ {
		candle, _ := b.at(shift + i)
		sum += candle.median()
	}
	return sum
}

// stochRaw is the unslowed %K at shift: where the close sits inside
// the high-low range of the last kPeriod bars, 0..100. A flat range
// reads as 50.
func (b *barSeries) stochRaw(shift, kPeriod int) (float64, bool) {
	if kPeriod <= 0 {
		return 0, false
	}
	cur, ok := b.at(shift)
	if !ok {
		return 0, false
	}

	hh := math.Inf(-1)
	ll := math.Inf(1)
	for i := 0; i < kPeriod; i++ {
		candle, ok := b.at(shift + i)
		if !ok {
			return 0, false
		}
		if candle.high > hh {
			hh = candle.high
		}
		if candle.low < ll {
			ll = candle.low
		}
	}

	if hh == ll {
		return 50.0, true
	}
	return (cur.closePx - ll) / (hh - ll) * 100, true
}

// stochMain is %K after slowing: the average of the raw value over the
// slowing window.
func (b *barSeries) stochMain(shift int, spec domain.IndicatorSpec) (float64, bool) {
	slowing := spec.Slowing
	if slowing <= 0 {
		slowing = 1
	}
	sum := 0.0
	for i := 0; i < slowing; i++ {
		v, ok := b.stochRaw(shift+i, spec.KPeriod)
		if !ok {
			return 0, false
		}
		sum += v
	}
	return sum / float64(slowing), true
}

// stochSignal is the SMA of the main line over the signal period.
func (b *barSeries) stochSignal(shift int, spec domain.IndicatorSpec) (float64, bool) {
	d := spec.DPeriod
	if d <= 0 {
		d = 1
	}
	sum := 0.0
	for i := 0; i < d; i++ {
		v, ok := b.stochMain(shift+i, spec)
		if !ok {
			return 0, false
		}
		sum += v
	}
	return sum / float64(d), true
}
