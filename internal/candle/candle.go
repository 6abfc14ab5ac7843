// Package candle picks the candle that represents a reporting window out of
// whatever the source returned.
package candle

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shahid-2020/candlesheet/internal/clock"
	"github.com/shahid-2020/candlesheet/internal/window"
	"github.com/shahid-2020/candlesheet/types"
)

const (
	// Timestamps below this are taken to be seconds since epoch.
	secondsThreshold = 10_000_000_000
	// ExactTolerance is how far a candle may start from the target and still
	// count as an exact match, inclusive.
	ExactTolerance = 60_000
)

// Outcome records which rule produced a candle.
type Outcome string

const (
	OutcomeExact      Outcome = "exact"
	OutcomeNearest    Outcome = "nearest-before"
	OutcomeFirst      Outcome = "first"
	OutcomeAggregated Outcome = "aggregated"
	OutcomeDegraded   Outcome = "degraded"
)

// Normalize converts a source timestamp to milliseconds since epoch.
func Normalize(ts int64) int64 {
	if ts < secondsThreshold {
		return ts * 1000
	}
	return ts
}

// StartTime returns the candle start as an IST instant.
func StartTime(c types.RawCandle) time.Time {
	return time.UnixMilli(Normalize(c.Timestamp)).In(clock.IST)
}

// Select picks the candle for w.TargetStart. The first candle within
// ExactTolerance wins. Failing that, the latest candle starting at or before
// the target is used, so a bar from a later period is never reported. As a
// last resort the first candle is returned.
func Select(w types.ResolvedWindow, candles []types.RawCandle) (types.RawCandle, Outcome, bool) {
	if len(candles) == 0 {
		return types.RawCandle{}, "", false
	}
	target := w.TargetStart.UnixMilli()

	for _, c := range candles {
		diff := Normalize(c.Timestamp) - target
		if diff < 0 {
			diff = -diff
		}
		if diff <= ExactTolerance {
			return c, OutcomeExact, true
		}
	}

	best := -1
	var bestTS int64
	for i, c := range candles {
		ts := Normalize(c.Timestamp)
		if ts > target {
			continue
		}
		if best < 0 || ts > bestTS {
			best, bestTS = i, ts
		}
	}
	if best >= 0 {
		return candles[best], OutcomeNearest, true
	}

	return candles[0], OutcomeFirst, true
}

// Aggregate merges the last two bars, in time order, into one wider candle.
// A single bar is passed through and reported as degraded.
func Aggregate(candles []types.RawCandle) (types.RawCandle, Outcome, bool) {
	switch len(candles) {
	case 0:
		return types.RawCandle{}, "", false
	case 1:
		return candles[0], OutcomeDegraded, true
	}

	sorted := make([]types.RawCandle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Normalize(sorted[i].Timestamp) < Normalize(sorted[j].Timestamp)
	})

	first, last := sorted[len(sorted)-2], sorted[len(sorted)-1]
	return types.RawCandle{
		Timestamp: first.Timestamp,
		Open:      first.Open,
		High:      max(first.High, last.High),
		Low:       min(first.Low, last.Low),
		Close:     last.Close,
		Volume:    first.Volume + last.Volume,
	}, OutcomeAggregated, true
}

// Pick applies the selection policy of the given window mode.
func Pick(mode window.Mode, w types.ResolvedWindow, candles []types.RawCandle) (types.RawCandle, Outcome, bool) {
	if mode == window.NHourAggregate {
		return Aggregate(candles)
	}
	return Select(w, candles)
}

// AveragePrice is (open+close)/2 rounded half away from zero to two places.
func AveragePrice(open, closePrice float64) float64 {
	avg := decimal.NewFromFloat(open).
		Add(decimal.NewFromFloat(closePrice)).
		Div(decimal.NewFromInt(2)).
		Round(2)
	f, _ := avg.Float64()
	return f
}

func NewRecord(inst types.Instrument, c types.RawCandle) types.OHLCVRecord {
	return types.OHLCVRecord{
		InstrumentToken: inst.Token,
		Symbol:          inst.Symbol,
		Open:            c.Open,
		High:            c.High,
		Low:             c.Low,
		Close:           c.Close,
		LastPrice:       c.Close,
		Volume:          c.Volume,
		AveragePrice:    AveragePrice(c.Open, c.Close),
		Timestamp:       StartTime(c),
	}
}
