// Package marketdata composes candle sources so a broker outage can be
// bridged by a delayed public feed.
package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shahid-2020/candlesheet/internal/provider"
	"github.com/shahid-2020/candlesheet/types"
)

// MarketData asks the primary source first and goes to the secondary when
// the primary fails or has nothing.
type MarketData struct {
	primary   provider.CandleSource
	secondary provider.CandleSource
	log       logrus.FieldLogger
}

func NewMarketData(primary, secondary provider.CandleSource, logger logrus.FieldLogger) *MarketData {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MarketData{primary: primary, secondary: secondary, log: logger}
}

// WithFallback wraps every source built by factory in a MarketData. A nil
// secondary returns factory unchanged.
func WithFallback(factory provider.SourceFactory, secondary provider.CandleSource, logger logrus.FieldLogger) provider.SourceFactory {
	if secondary == nil {
		return factory
	}
	return func(s *provider.Session) provider.CandleSource {
		return NewMarketData(factory(s), secondary, logger)
	}
}

func (m *MarketData) Name() string {
	if m.secondary == nil {
		return m.primary.Name()
	}
	return m.primary.Name() + "+" + m.secondary.Name()
}

func (m *MarketData) Candles(ctx context.Context, token string, interval types.Interval, from, to time.Time) ([]types.RawCandle, error) {
	data, err := m.primary.Candles(ctx, token, interval, from, to)
	if err == nil && len(data) > 0 {
		return data, nil
	}
	if m.secondary == nil {
		return data, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	entry := m.log.WithFields(logrus.Fields{
		"token":    token,
		"primary":  m.primary.Name(),
		"fallback": m.secondary.Name(),
	})
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Info("falling back to secondary source")

	fallback, fbErr := m.secondary.Candles(ctx, token, interval, from, to)
	switch {
	case fbErr != nil && err != nil:
		return nil, errors.Join(err, fmt.Errorf("%s: %w", m.secondary.Name(), fbErr))
	case fbErr != nil:
		return nil, fmt.Errorf("%s: %w", m.secondary.Name(), fbErr)
	case len(fallback) == 0 && err != nil:
		return nil, err
	}
	return fallback, nil
}
