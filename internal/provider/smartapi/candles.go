package smartapi

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/shahid-2020/candlesheet/internal/window"
	"github.com/shahid-2020/candlesheet/types"
)

type CandleSource struct {
	client *Client
	jwt    string
}

type candleRequest struct {
	Exchange    types.Exchange `json:"exchange"`
	SymbolToken string         `json:"symboltoken"`
	Interval    types.Interval `json:"interval"`
	FromDate    string         `json:"fromdate"`
	ToDate      string         `json:"todate"`
}

func (s *CandleSource) Name() string {
	return "smartapi"
}

func (s *CandleSource) Candles(ctx context.Context, token string, interval types.Interval, from, to time.Time) ([]types.RawCandle, error) {
	body, err := s.client.post(ctx, candlesPath, s.jwt, candleRequest{
		Exchange:    types.ExchangeNSE,
		SymbolToken: token,
		Interval:    interval,
		FromDate:    window.FormatQuery(from),
		ToDate:      window.FormatQuery(to),
	})
	if err != nil {
		return nil, err
	}

	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, nil
	}

	var candles []types.RawCandle
	for i, tuple := range data.Array() {
		c, err := parseTuple(tuple)
		if err != nil {
			s.client.log.WithFields(logrus.Fields{
				"token": token,
				"index": i,
			}).WithError(err).Warn("skipping malformed candle")
			continue
		}
		candles = append(candles, c)
	}
	return candles, nil
}

// parseTuple reads [time, open, high, low, close, volume]. The time is an
// ISO-8601 string or an epoch number kept in its own unit.
func parseTuple(v gjson.Result) (types.RawCandle, error) {
	if !v.IsArray() {
		return types.RawCandle{}, fmt.Errorf("candle is not an array: %s", v.Raw)
	}
	fields := v.Array()
	if len(fields) < 5 {
		return types.RawCandle{}, fmt.Errorf("candle has %d fields, want at least 5", len(fields))
	}

	var ts int64
	switch fields[0].Type {
	case gjson.String:
		t, err := time.Parse(time.RFC3339, fields[0].Str)
		if err != nil {
			return types.RawCandle{}, fmt.Errorf("parse candle time: %w", err)
		}
		ts = t.UnixMilli()
	case gjson.Number:
		ts = fields[0].Int()
	default:
		return types.RawCandle{}, fmt.Errorf("unsupported candle time %s", fields[0].Raw)
	}

	c := types.RawCandle{
		Timestamp: ts,
		Open:      fields[1].Float(),
		High:      fields[2].Float(),
		Low:       fields[3].Float(),
		Close:     fields[4].Float(),
	}
	if len(fields) > 5 {
		c.Volume = fields[5].Int()
	}
	return c, nil
}
