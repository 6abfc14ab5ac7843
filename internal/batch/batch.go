// Package batch fetches and reduces candles for a whole basket with bounded
// parallelism. One instrument's failure never affects another's.
package batch

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/shahid-2020/candlesheet/internal/candle"
	"github.com/shahid-2020/candlesheet/internal/provider"
	"github.com/shahid-2020/candlesheet/internal/window"
	"github.com/shahid-2020/candlesheet/types"
)

const DefaultConcurrency = 5

// Summary accounts for every requested instrument exactly once:
// Requested == Fetched + len(Gaps) + len(Failures).
type Summary struct {
	Requested int
	Fetched   int
	Gaps      []types.Instrument
	Failures  []*types.FetchError
}

type Orchestrator struct {
	Source provider.CandleSource
	Mode   window.Mode
	// Interval defaults to one hour.
	Interval    types.Interval
	Concurrency int
	Logger      logrus.FieldLogger
}

type result struct {
	record  types.OHLCVRecord
	outcome candle.Outcome
	ok      bool
	err     *types.FetchError
}

// Run returns records in basket order. Instruments that failed or had no
// candle are absent from the slice and listed in the Summary.
func (o *Orchestrator) Run(ctx context.Context, basket []types.Instrument, w types.ResolvedWindow) ([]types.OHLCVRecord, Summary) {
	summary := Summary{Requested: len(basket)}
	if len(basket) == 0 {
		return []types.OHLCVRecord{}, summary
	}

	log := o.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	limit := o.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]result, len(basket))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, inst := range basket {
		g.Go(func() error {
			results[i] = o.fetchOne(ctx, inst, w)
			return nil
		})
	}
	_ = g.Wait()

	records := make([]types.OHLCVRecord, 0, len(basket))
	for i, res := range results {
		inst := basket[i]
		entry := log.WithFields(logrus.Fields{"symbol": inst.Symbol, "token": inst.Token})
		switch {
		case res.err != nil:
			entry.WithError(res.err.Err).Warn("fetch failed, skipping instrument")
			summary.Failures = append(summary.Failures, res.err)
		case !res.ok:
			entry.Info("no candle for window")
			summary.Gaps = append(summary.Gaps, inst)
		default:
			entry = entry.WithField("outcome", res.outcome)
			if res.outcome == candle.OutcomeDegraded {
				entry.Warn("only one bar available to aggregate")
			} else {
				entry.Debug("candle selected")
			}
			records = append(records, res.record)
		}
	}
	summary.Fetched = len(records)

	return records, summary
}

func (o *Orchestrator) fetchOne(ctx context.Context, inst types.Instrument, w types.ResolvedWindow) (res result) {
	defer func() {
		if r := recover(); r != nil {
			res = result{err: &types.FetchError{Instrument: inst, Err: fmt.Errorf("panic: %v", r)}}
		}
	}()

	interval := o.Interval
	if interval == "" {
		interval = types.IntervalOneHour
	}

	candles, err := o.Source.Candles(ctx, inst.Token, interval, w.From, w.To)
	if err != nil {
		return result{err: &types.FetchError{Instrument: inst, Err: err}}
	}

	raw, outcome, ok := candle.Pick(o.Mode, w, candles)
	if !ok {
		return result{}
	}
	return result{record: candle.NewRecord(inst, raw), outcome: outcome, ok: true}
}
