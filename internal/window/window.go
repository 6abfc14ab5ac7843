package window

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shahid-2020/candlesheet/internal/clock"
	"github.com/shahid-2020/candlesheet/types"
)

// Mode selects how the reporting window is derived from the trigger time.
type Mode int

const (
	// MarketAligned reports hourly bars anchored at the 09:15 session open.
	MarketAligned Mode = iota
	// ClockAligned reports the bar starting at the top of the current hour.
	ClockAligned
	// NHourAggregate merges the last two hourly bars into one wider candle.
	NHourAggregate
)

const (
	SessionOpen  = 9*time.Hour + 15*time.Minute
	SessionClose = 15*time.Hour + 30*time.Minute
	BarLength    = time.Hour

	// CloseWindow is how long before the close a trigger is treated as the
	// closing run.
	CloseWindow = 5 * time.Minute
	// TriggerSlack absorbs a scheduler tick firing slightly before a boundary.
	TriggerSlack = time.Minute

	aggregateLookback = 3 * time.Hour
	aggregateSpan     = 2 * time.Hour

	queryLayout = "2006-01-02 15:04"
)

var ErrNoCompletedCandle = errors.New("no completed candle in session yet")

func (m Mode) String() string {
	switch m {
	case MarketAligned:
		return "market-aligned"
	case ClockAligned:
		return "clock-aligned"
	case NHourAggregate:
		return "n-hour-aggregate"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "market-aligned", "market":
		return MarketAligned, nil
	case "clock-aligned", "clock":
		return ClockAligned, nil
	case "n-hour-aggregate", "aggregate":
		return NHourAggregate, nil
	default:
		return 0, fmt.Errorf("unknown window mode %q", s)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Resolver turns the current time into the window to query and the candle
// start to pick from the response.
type Resolver struct {
	Mode Mode
	Now  clock.Func
}

func NewResolver(mode Mode, now clock.Func) *Resolver {
	if now == nil {
		now = clock.Now
	}
	return &Resolver{Mode: mode, Now: now}
}

func (r *Resolver) Resolve() (types.ResolvedWindow, error) {
	now := clock.Now
	if r.Now != nil {
		now = r.Now
	}
	return ResolveAt(r.Mode, now())
}

// ResolveAt computes the window for an explicit instant.
func ResolveAt(mode Mode, now time.Time) (types.ResolvedWindow, error) {
	now = now.In(clock.IST).Truncate(time.Minute)

	switch mode {
	case MarketAligned:
		target, err := marketTarget(now)
		if err != nil {
			return types.ResolvedWindow{}, err
		}
		return types.ResolvedWindow{From: target, To: target.Add(BarLength), TargetStart: target}, nil
	case ClockAligned:
		target := time.Date(now.Year(), now.Month(), now.Day(), now.Hour(), 0, 0, 0, clock.IST)
		return types.ResolvedWindow{From: target, To: target.Add(BarLength), TargetStart: target}, nil
	case NHourAggregate:
		return types.ResolvedWindow{
			From:        now.Add(-aggregateLookback),
			To:          now,
			TargetStart: now.Add(-aggregateSpan),
		}, nil
	default:
		return types.ResolvedWindow{}, fmt.Errorf("unsupported window mode %s", mode)
	}
}

// marketTarget returns the start of the latest completed session bar, so a
// trigger at b+1h+1m reports bar b. Close to the bell it returns the
// session's final boundary instead, since the latest completed bar was
// already reported by the previous trigger.
func marketTarget(now time.Time) (time.Time, error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, clock.IST)
	open := midnight.Add(SessionOpen)
	closeAt := midnight.Add(SessionClose)
	final := open.Add((closeAt.Sub(open) - 1) / BarLength * BarLength)

	if !now.Before(closeAt.Add(-CloseWindow)) {
		return final, nil
	}

	elapsed := now.Add(TriggerSlack).Sub(open) - BarLength
	if elapsed < 0 {
		return time.Time{}, ErrNoCompletedCandle
	}
	return open.Add(elapsed / BarLength * BarLength), nil
}

// FormatQuery renders t the way the broker expects its from/to dates:
// YYYY-MM-DD HH:MM in IST.
func FormatQuery(t time.Time) string {
	return t.In(clock.IST).Format(queryLayout)
}

// SessionBounds returns the open and close instants of the IST trading day
// containing t.
func SessionBounds(t time.Time) (open, closeAt time.Time) {
	t = t.In(clock.IST)
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, clock.IST)
	return midnight.Add(SessionOpen), midnight.Add(SessionClose)
}
