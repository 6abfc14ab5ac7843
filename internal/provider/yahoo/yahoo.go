package yahoo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/shahid-2020/candlesheet/internal/httpclient"
	"github.com/shahid-2020/candlesheet/internal/ratelimit"
	"github.com/shahid-2020/candlesheet/types"
)

const DefaultBaseURL = "https://query2.finance.yahoo.com"

type Config struct {
	BaseURL string
	// Symbols maps exchange tokens to trading symbols; Yahoo has no notion
	// of the broker token.
	Symbols map[string]string
	HTTP    httpclient.Doer
	Logger  logrus.FieldLogger
}

type YahooProvider struct {
	baseURL string
	symbols map[string]string
	client  httpclient.Doer
	log     logrus.FieldLogger
}

func NewYahooProvider(cfg Config) *YahooProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.HTTP == nil {
		cfg.HTTP = httpclient.NewClient(httpclient.ClientConfig{
			HttpClient: &http.Client{Timeout: 30 * time.Second},
			RateLimits: []ratelimit.Limit{
				{Count: 10, Per: time.Second},
				{Count: 500, Per: time.Minute},
				{Count: 2000, Per: time.Hour},
			},
			RetryConfig: httpclient.RetryConfig{
				MaxRetries:    3,
				BaseDelay:     100 * time.Millisecond,
				MaxDelay:      2 * time.Second,
				RetryOnStatus: []int{429, 500, 502, 503},
			},
			Logger: cfg.Logger,
		})
	}

	return &YahooProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		symbols: cfg.Symbols,
		client:  cfg.HTTP,
		log:     cfg.Logger,
	}
}

// SymbolsFromBasket builds the token to symbol map Config.Symbols expects.
func SymbolsFromBasket(basket []types.Instrument) map[string]string {
	m := make(map[string]string, len(basket))
	for _, inst := range basket {
		m[inst.Token] = inst.Symbol
	}
	return m
}

func (y *YahooProvider) Name() string {
	return "yahoo"
}

// Candles returns bars with second resolution timestamps, as Yahoo reports
// them. Bars whose close is null are dropped.
func (y *YahooProvider) Candles(ctx context.Context, token string, interval types.Interval, from, to time.Time) ([]types.RawCandle, error) {
	symbol, ok := y.symbols[token]
	if !ok {
		return nil, fmt.Errorf("no symbol known for token %s", token)
	}
	yInterval, err := y.formatInterval(interval)
	if err != nil {
		return nil, err
	}
	if to.IsZero() {
		to = from.Add(interval.Duration())
	}

	q := url.Values{}
	q.Set("interval", yInterval)
	q.Set("period1", fmt.Sprint(from.Unix()))
	q.Set("period2", fmt.Sprint(to.Unix()))
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.baseURL, url.PathEscape(y.formatSymbol(symbol)), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", uuid.NewString())
	req.Header.Set("Accept", "application/json")

	res, err := y.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("non-OK response: %d %s", res.StatusCode, string(body))
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("failed to parse response for %s", symbol)
	}

	if e := gjson.GetBytes(body, "chart.error"); e.Exists() && e.Type != gjson.Null {
		return nil, fmt.Errorf("yahoo error for %s: %s", symbol, e.Get("description").String())
	}

	result := gjson.GetBytes(body, "chart.result.0")
	timestamps := result.Get("timestamp").Array()
	quote := result.Get("indicators.quote.0")
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()

	candles := make([]types.RawCandle, 0, len(timestamps))
	for i, ts := range timestamps {
		if i >= len(closes) || closes[i].Type == gjson.Null {
			continue
		}
		c := types.RawCandle{
			Timestamp: ts.Int(),
			Open:      at(opens, i),
			High:      at(highs, i),
			Low:       at(lows, i),
			Close:     closes[i].Float(),
		}
		if i < len(volumes) {
			c.Volume = volumes[i].Int()
		}
		candles = append(candles, c)
	}

	if dropped := len(timestamps) - len(candles); dropped > 0 {
		y.log.WithFields(logrus.Fields{"symbol": symbol, "dropped": dropped}).Debug("dropped null yahoo bars")
	}
	return candles, nil
}

func at(values []gjson.Result, i int) float64 {
	if i < len(values) {
		return values[i].Float()
	}
	return 0
}

func (y *YahooProvider) formatSymbol(symbol string) string {
	return strings.TrimSuffix(symbol, "-EQ") + ".NS"
}

func (y *YahooProvider) formatInterval(interval types.Interval) (string, error) {
	switch interval {
	case types.IntervalOneMinute:
		return "1m", nil
	case types.IntervalFiveMinute:
		return "5m", nil
	case types.IntervalFifteenMinute:
		return "15m", nil
	case types.IntervalThirtyMinute:
		return "30m", nil
	case types.IntervalOneHour:
		return "1h", nil
	case types.IntervalOneDay:
		return "1d", nil
	default:
		return "", fmt.Errorf("unsupported interval: %s", interval)
	}
}
