package types

import "time"

type Exchange string

const (
	ExchangeNSE Exchange = "NSE"
)

// Interval names follow the SmartAPI historical candle API.
type Interval string

const (
	IntervalOneMinute     Interval = "ONE_MINUTE"
	IntervalFiveMinute    Interval = "FIVE_MINUTE"
	IntervalFifteenMinute Interval = "FIFTEEN_MINUTE"
	IntervalThirtyMinute  Interval = "THIRTY_MINUTE"
	IntervalOneHour       Interval = "ONE_HOUR"
	IntervalOneDay        Interval = "ONE_DAY"
)

func (i Interval) Duration() time.Duration {
	switch i {
	case IntervalOneMinute:
		return time.Minute
	case IntervalFiveMinute:
		return 5 * time.Minute
	case IntervalFifteenMinute:
		return 15 * time.Minute
	case IntervalThirtyMinute:
		return 30 * time.Minute
	case IntervalOneHour:
		return time.Hour
	case IntervalOneDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

// Instrument is one basket entry: the exchange trading symbol and the
// exchange instrument token the broker keys candles by.
type Instrument struct {
	Symbol string `json:"symbol" mapstructure:"symbol"`
	Token  string `json:"token" mapstructure:"token"`
}

// RawCandle is a candle tuple as the source returned it. Timestamp keeps the
// source unit, which may be seconds or milliseconds since epoch.
type RawCandle struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    int64   `json:"volume"`
}

// ResolvedWindow is the query range sent to the source together with the
// instant the wanted candle is expected to start.
type ResolvedWindow struct {
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	TargetStart time.Time `json:"target_start"`
}

type OHLCVRecord struct {
	InstrumentToken string    `json:"instrument_token"`
	Symbol          string    `json:"symbol"`
	Open            float64   `json:"open"`
	High            float64   `json:"high"`
	Low             float64   `json:"low"`
	Close           float64   `json:"close"`
	LastPrice       float64   `json:"last_price"`
	Volume          int64     `json:"volume"`
	AveragePrice    float64   `json:"average_price"`
	Timestamp       time.Time `json:"timestamp"`
}
