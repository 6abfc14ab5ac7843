package types

import (
	"errors"
	"fmt"
)

// ErrNoData marks an instrument for which the source returned no candles.
// It is a gap, not a failure.
var ErrNoData = errors.New("no candle data")

// AuthError aborts a whole invocation.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

type FetchError struct {
	Instrument Instrument
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s (%s): %v", e.Instrument.Symbol, e.Instrument.Token, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type SinkError struct {
	Instrument Instrument
	Err        error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("write %s (%s): %v", e.Instrument.Symbol, e.Instrument.Token, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
