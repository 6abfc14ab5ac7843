// Package sink defines where selected records are written.
package sink

import (
	"context"

	"github.com/shahid-2020/candlesheet/types"
)

// Destination is a resolved per-instrument target, such as a spreadsheet tab.
type Destination struct {
	Key string
	ID  int64
}

type Sink interface {
	// EnsureDestination finds or creates the target named key. Calling it
	// again for the same key returns the same destination.
	EnsureDestination(ctx context.Context, key string) (Destination, error)
	// AppendOrInit writes a header before the first row of an empty
	// destination and appends otherwise.
	AppendOrInit(ctx context.Context, dest Destination, rec types.OHLCVRecord) error
}

// Discard accepts every write and keeps nothing.
var Discard Sink = discard{}

type discard struct{}

func (discard) EnsureDestination(_ context.Context, key string) (Destination, error) {
	return Destination{Key: key}, nil
}

func (discard) AppendOrInit(context.Context, Destination, types.OHLCVRecord) error {
	return nil
}
