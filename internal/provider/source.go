package provider

import (
	"context"
	"time"

	"github.com/shahid-2020/candlesheet/types"
)

// CandleSource returns raw candles for one instrument over [from, to].
// An empty slice with a nil error means the source had no data.
type CandleSource interface {
	Name() string
	Candles(ctx context.Context, token string, interval types.Interval, from, to time.Time) ([]types.RawCandle, error)
}

// Session is a broker login valid for one invocation.
type Session struct {
	JWTToken     string
	RefreshToken string
	FeedToken    string
}

// Authenticator logs in to the broker. Failures are *types.AuthError.
type Authenticator interface {
	Authenticate(ctx context.Context) (*Session, error)
}

// SourceFactory binds a CandleSource to a session.
type SourceFactory func(*Session) CandleSource
